package trustcommerce

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// TrustCommerce sends test transactions to the live host with demo=y
	apiSandboxURL    = "https://vault.trustcommerce.com/trans/"
	apiProductionURL = "https://vault.trustcommerce.com/trans/"

	// Actions
	actionSale     = "sale"
	actionPreauth  = "preauth"
	actionPostauth = "postauth"
	actionVoid     = "void"
	actionCredit   = "credit"
	actionStore    = "store"
	actionUnstore  = "unstore"
)

var declineMessages = map[string]string{
	"decline":      "The credit card was declined",
	"avs":          "AVS failed; the address entered does not match the billing address on file at the bank",
	"cvv":          "CVV failed; the number provided is not the correct verification number for the card",
	"call":         "The card must be authorized manually over the phone",
	"expiredcard":  "The credit card has expired",
	"carderror":    "Card number is invalid",
	"authexpired":  "Attempt to postauth an expired (more than 14 days old) preauth",
	"fraud":        "CrediGuard fraud score was below requested threshold",
	"blacklist":    "CrediGuard blacklist value was triggered",
	"velocity":     "CrediGuard velocity control was triggered",
	"dailylimit":   "Daily limit in transaction count or amount has been reached",
	"weeklylimit":  "Weekly limit in transaction count or amount has been reached",
	"monthlylimit": "Monthly limit in transaction count or amount has been reached",
}

// TrustCommerceGateway implements gateway.Gateway for the TrustCommerce query API
type TrustCommerceGateway struct {
	custID       string
	password     string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new TrustCommerce gateway
func NewGateway() gateway.Gateway {
	return &TrustCommerceGateway{}
}

func (g *TrustCommerceGateway) Name() string {
	return "trustcommerce"
}

func (g *TrustCommerceGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "trustcommerce",
		DisplayName:        "TrustCommerce",
		Homepage:           "http://www.trustcommerce.com/",
		SupportedCountries: []string{"US"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandDiscover, gateway.BrandAmericanExpress, gateway.BrandDinersClub, gateway.BrandJCB},
		DefaultCurrency:    "USD",
		MoneyFormat:        gateway.MoneyCents,
	}
}

func (g *TrustCommerceGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "TrustCommerce customer id",
			Example:     "TestMerchant",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "TrustCommerce password",
			Example:     "password",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *TrustCommerceGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *TrustCommerceGateway) Initialize(config map[string]string) error {
	g.custID = config["login"]
	g.password = config["password"]
	if g.custID == "" || g.password == "" {
		return errors.New("trustcommerce: login and password are required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *TrustCommerceGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, actionPreauth, money, card, opts)
}

// Purchase charges the card, or the stored card named by opts.BillingID
func (g *TrustCommerceGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, actionSale, money, card, opts)
}

func (g *TrustCommerceGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return g.referenceTransaction(ctx, actionPostauth, money, authorization)
}

func (g *TrustCommerceGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "transid")
	}
	post := url.Values{}
	post.Set("transid", authorization)
	return g.commit(ctx, actionVoid, post)
}

func (g *TrustCommerceGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	return g.referenceTransaction(ctx, actionCredit, money, identification)
}

// Store saves the card in the TrustCommerce Citadel vault and returns its billingid
func (g *TrustCommerceGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	post := url.Values{}
	if opts.BillingID != "" {
		post.Set("billingid", opts.BillingID)
	}
	addCreditCard(post, card)
	addAddress(post, opts.Address())
	return g.commit(ctx, actionStore, post)
}

func (g *TrustCommerceGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "billingid")
	}
	post := url.Values{}
	post.Set("billingid", identification)
	return g.commit(ctx, actionUnstore, post)
}

func (g *TrustCommerceGateway) cardTransaction(ctx context.Context, action string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}

	post := url.Values{}
	post.Set("amount", gateway.FormatAmount(money, gateway.MoneyCents))
	switch {
	case opts.BillingID != "":
		post.Set("billingid", opts.BillingID)
	case card != nil:
		addCreditCard(post, card)
	default:
		return nil, gateway.MissingField(g.Name(), "card")
	}
	if opts.OrderID != "" {
		post.Set("ticket", opts.OrderID)
	}
	if opts.Email != "" {
		post.Set("email", opts.Email)
	}
	if opts.IP != "" {
		post.Set("ip", opts.IP)
	}
	addAddress(post, opts.Address())

	return g.commit(ctx, action, post)
}

func (g *TrustCommerceGateway) referenceTransaction(ctx context.Context, action string, money int64, transID string) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if transID == "" {
		return nil, gateway.MissingField(g.Name(), "transid")
	}
	post := url.Values{}
	post.Set("transid", transID)
	post.Set("amount", gateway.FormatAmount(money, gateway.MoneyCents))
	return g.commit(ctx, action, post)
}

func addCreditCard(post url.Values, card *gateway.CreditCard) {
	post.Set("media", "cc")
	post.Set("name", card.Name())
	post.Set("cc", card.Digits())
	post.Set("exp", card.ExpiryMMYY())
	if card.VerificationValue != "" {
		post.Set("cvv", card.VerificationValue)
	}
}

func addAddress(post url.Values, addr *gateway.Address) {
	if addr == nil {
		return
	}
	post.Set("address1", addr.Address1)
	post.Set("address2", addr.Address2)
	post.Set("city", addr.City)
	post.Set("state", addr.State)
	post.Set("zip", addr.Zip)
	post.Set("country", addr.Country)
	if addr.Phone != "" {
		post.Set("phone", addr.Phone)
	}
	// AVS is only requested when an address is present
	post.Set("avs", "y")
}

func (g *TrustCommerceGateway) commit(ctx context.Context, action string, post url.Values) (*gateway.Response, error) {
	post.Set("custid", g.custID)
	post.Set("password", g.password)
	post.Set("action", action)
	if !g.isProduction {
		post.Set("demo", "y")
	}

	httpResp, err := g.httpClient.PostForm(ctx, "", post, nil)
	if err != nil {
		return nil, fmt.Errorf("trustcommerce: %s request failed: %w", action, err)
	}

	params := gateway.ParseKeyValueLines(string(httpResp.Body))
	status := params["status"]
	if status == "" {
		return nil, fmt.Errorf("trustcommerce: response without status: %w", gateway.ErrResponse)
	}

	success := status == "approved" || status == "accepted"
	resp := gateway.NewResponse(success, message(params), params)
	resp.Test = !g.isProduction
	resp.Authorization = params["transid"]
	if action == actionStore || action == actionUnstore {
		resp.Authorization = params["billingid"]
	}
	resp.AVSResult = gateway.NewAVSResult(params["avs"])
	resp.CVVResult = gateway.NewCVVResult(params["cvv"])
	if !success {
		resp.ErrorCode = status
		if params["declinetype"] != "" {
			resp.ErrorCode = params["declinetype"]
		}
	}

	return resp, nil
}

func message(params map[string]string) string {
	switch params["status"] {
	case "approved", "accepted":
		return "The transaction was successful"
	case "decline":
		if msg, ok := declineMessages[params["declinetype"]]; ok {
			return msg
		}
		return "The credit card was declined"
	case "baddata":
		return "Invalid fields: " + strings.ReplaceAll(params["offenders"], ",", ", ")
	case "error":
		return "An error occurred: " + params["errortype"]
	default:
		return "The transaction was not successful"
	}
}
