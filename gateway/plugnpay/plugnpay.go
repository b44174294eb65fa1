package plugnpay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// Plug'n Pay has one endpoint; test mode is a property of the account
	apiSandboxURL    = "https://pay1.plugnpay.com/payment/pnpremote.cgi"
	apiProductionURL = "https://pay1.plugnpay.com/payment/pnpremote.cgi"

	defaultCurrency = "USD"

	// Remote modes
	modeAuth      = "auth"
	modeMark      = "mark"
	modeVoid      = "void"
	modeReturn    = "return"
	modeNewReturn = "newreturn"

	finalStatusSuccess = "success"
)

var statusMessages = map[string]string{
	"success": "Success",
	"badcard": "Card declined",
	"problem": "Problem processing transaction",
	"fraud":   "Transaction flagged by fraud screening",
	"pending": "Transaction pending",
}

// PlugnPayGateway implements gateway.Gateway for the Plug'n Pay remote API
type PlugnPayGateway struct {
	publisher    string
	password     string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new Plug'n Pay gateway
func NewGateway() gateway.Gateway {
	return &PlugnPayGateway{}
}

func (g *PlugnPayGateway) Name() string {
	return "plugnpay"
}

func (g *PlugnPayGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "plugnpay",
		DisplayName:        "Plug'n Pay",
		Homepage:           "http://www.plugnpay.com/",
		SupportedCountries: []string{"US"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDiscover},
		DefaultCurrency:    defaultCurrency,
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *PlugnPayGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "Publisher name",
			Example:     "pnpdemo",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "Remote client password",
			Example:     "secret",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *PlugnPayGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *PlugnPayGateway) Initialize(config map[string]string) error {
	g.publisher = config["login"]
	g.password = config["password"]
	if g.publisher == "" || g.password == "" {
		return errors.New("plugnpay: login and password are required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *PlugnPayGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.auth(ctx, "authonly", money, card, opts)
}

func (g *PlugnPayGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.auth(ctx, "authpostauth", money, card, opts)
}

// Capture marks an authorization for settlement
func (g *PlugnPayGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "orderID")
	}
	post := url.Values{}
	post.Set("orderID", authorization)
	post.Set("card-amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	return g.commit(ctx, modeMark, post)
}

func (g *PlugnPayGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "orderID")
	}
	post := url.Values{}
	post.Set("orderID", authorization)
	post.Set("txn-type", "auth")
	return g.commit(ctx, modeVoid, post)
}

// Credit returns money against a previous order; with opts.Metadata["card_number"]
// and no identification it issues a stand-alone newreturn instead
func (g *PlugnPayGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	post := url.Values{}
	post.Set("card-amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	if identification != "" {
		post.Set("orderID", identification)
		return g.commit(ctx, modeReturn, post)
	}
	number := opts.Metadata["card_number"]
	if number == "" {
		return nil, gateway.MissingField(g.Name(), "orderID")
	}
	post.Set("card-number", number)
	post.Set("card-exp", opts.Metadata["card_exp"])
	post.Set("currency", strings.ToLower(opts.CurrencyOr(defaultCurrency)))
	return g.commit(ctx, modeNewReturn, post)
}

func (g *PlugnPayGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *PlugnPayGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *PlugnPayGateway) auth(ctx context.Context, authType string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}

	post := url.Values{}
	post.Set("authtype", authType)
	post.Set("card-amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	post.Set("currency", strings.ToLower(opts.CurrencyOr(defaultCurrency)))
	post.Set("card-number", card.Digits())
	post.Set("card-name", card.Name())
	post.Set("card-exp", fmt.Sprintf("%02d/%02d", card.Month, card.Year%100))
	if card.VerificationValue != "" {
		post.Set("card-cvv", card.VerificationValue)
	}
	if opts.OrderID != "" {
		post.Set("orderID", opts.OrderID)
	}
	if opts.Email != "" {
		post.Set("email", opts.Email)
	}
	if opts.IP != "" {
		post.Set("ipaddress", opts.IP)
	}
	if addr := opts.Address(); addr != nil {
		post.Set("card-address1", addr.Address1)
		post.Set("card-address2", addr.Address2)
		post.Set("card-city", addr.City)
		post.Set("card-state", addr.State)
		post.Set("card-zip", addr.Zip)
		post.Set("card-country", addr.Country)
		if addr.Phone != "" {
			post.Set("phone", addr.Phone)
		}
	}

	return g.commit(ctx, modeAuth, post)
}

func (g *PlugnPayGateway) commit(ctx context.Context, mode string, post url.Values) (*gateway.Response, error) {
	post.Set("publisher-name", g.publisher)
	post.Set("publisher-password", g.password)
	post.Set("mode", mode)
	post.Set("convert", "underscores")
	post.Set("dontsndmail", "yes")
	post.Set("app-level", "0")

	httpResp, err := g.httpClient.PostForm(ctx, "", post, nil)
	if err != nil {
		return nil, fmt.Errorf("plugnpay: %s request failed: %w", mode, err)
	}

	params, err := gateway.ParseQueryString(string(httpResp.Body))
	if err != nil {
		return nil, fmt.Errorf("plugnpay: invalid response: %v: %w", err, gateway.ErrResponse)
	}
	status := params["FinalStatus"]
	if status == "" {
		return nil, fmt.Errorf("plugnpay: response without FinalStatus: %w", gateway.ErrResponse)
	}

	success := status == finalStatusSuccess
	message := statusMessages[status]
	if !success && params["MErrMsg"] != "" {
		message = strings.TrimSpace(params["MErrMsg"])
	}

	resp := gateway.NewResponse(success, message, params)
	resp.Authorization = params["orderID"]
	if resp.Authorization == "" {
		resp.Authorization = post.Get("orderID")
	}
	resp.FraudReview = status == "fraud"
	resp.Test = !g.isProduction
	resp.AVSResult = gateway.NewAVSResult(params["avs_code"])
	resp.CVVResult = gateway.NewCVVResult(params["cvvresp"])
	if !success {
		resp.ErrorCode = params["resp_code"]
		if resp.ErrorCode == "" {
			resp.ErrorCode = status
		}
	}

	return resp, nil
}
