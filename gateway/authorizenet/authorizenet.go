package authorizenet

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// API URLs
	apiSandboxURL    = "https://test.authorize.net/gateway/transact.dll"
	apiProductionURL = "https://secure.authorize.net/gateway/transact.dll"

	apiVersion = "3.1"
	delimChar  = "|"
	encapChar  = "$"

	// Transaction types
	typeAuthCapture      = "AUTH_CAPTURE"
	typeAuthOnly         = "AUTH_ONLY"
	typePriorAuthCapture = "PRIOR_AUTH_CAPTURE"
	typeVoid             = "VOID"
	typeCredit           = "CREDIT"

	// Response codes
	responseApproved = "1"
	responseDeclined = "2"
	responseError    = "3"
	responseReview   = "4"
)

// positions in the delimited response
const (
	fieldResponseCode       = 0
	fieldResponseReasonCode = 2
	fieldResponseReasonText = 3
	fieldAuthorizationCode  = 4
	fieldAVSResultCode      = 5
	fieldTransactionID      = 6
	fieldCardCode           = 38
)

var fieldNames = map[int]string{
	fieldResponseCode:       "response_code",
	fieldResponseReasonCode: "response_reason_code",
	fieldResponseReasonText: "response_reason_text",
	fieldAuthorizationCode:  "authorization_code",
	fieldAVSResultCode:      "avs_result_code",
	fieldTransactionID:      "transaction_id",
	fieldCardCode:           "card_code",
}

// AuthorizeNetGateway implements gateway.Gateway for the Authorize.Net AIM interface
type AuthorizeNetGateway struct {
	login          string
	transactionKey string
	testRequests   bool
	isProduction   bool
	baseURL        string
	httpClient     *gateway.HTTPClient
}

// NewGateway creates a new Authorize.Net gateway
func NewGateway() gateway.Gateway {
	return &AuthorizeNetGateway{}
}

func (g *AuthorizeNetGateway) Name() string {
	return "authorizenet"
}

func (g *AuthorizeNetGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "authorizenet",
		DisplayName:        "Authorize.Net",
		Homepage:           "http://www.authorize.net/",
		SupportedCountries: []string{"US", "CA", "GB"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDiscover, gateway.BrandDinersClub, gateway.BrandJCB},
		DefaultCurrency:    "USD",
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *AuthorizeNetGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "API login ID",
			Example:     "5KP3u95bQpv",
			MaxLength:   20,
		},
		{
			Key:         "transactionKey",
			Required:    true,
			Type:        "string",
			Description: "Transaction key generated in the merchant interface",
			Example:     "4Ktq966gC55GAX7S",
			Secret:      true,
			MaxLength:   16,
		},
		{
			Key:         "testRequests",
			Required:    false,
			Type:        "boolean",
			Description: "Send x_test_request=TRUE so live accounts do not settle",
			Example:     "false",
		},
		gateway.EnvironmentField(),
	}
}

func (g *AuthorizeNetGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *AuthorizeNetGateway) Initialize(config map[string]string) error {
	g.login = config["login"]
	g.transactionKey = config["transactionKey"]

	if g.login == "" || g.transactionKey == "" {
		return errors.New("authorizenet: login and transactionKey are required")
	}

	g.testRequests = config["testRequests"] == "true"
	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *AuthorizeNetGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, typeAuthOnly, money, card, opts)
}

func (g *AuthorizeNetGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, typeAuthCapture, money, card, opts)
}

func (g *AuthorizeNetGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	post := url.Values{}
	post.Set("x_trans_id", authorization)
	post.Set("x_amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	return g.commit(ctx, typePriorAuthCapture, post)
}

func (g *AuthorizeNetGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	post := url.Values{}
	post.Set("x_trans_id", authorization)
	return g.commit(ctx, typeVoid, post)
}

// Credit refunds a settled transaction; AIM requires the card number (last four digits suffice)
// in opts.Metadata["card_number"].
func (g *AuthorizeNetGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "x_trans_id")
	}
	cardNumber := opts.Metadata["card_number"]
	if cardNumber == "" {
		return nil, gateway.MissingField(g.Name(), "card_number")
	}
	post := url.Values{}
	post.Set("x_trans_id", identification)
	post.Set("x_card_num", cardNumber)
	post.Set("x_amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	addInvoice(post, opts)
	return g.commit(ctx, typeCredit, post)
}

func (g *AuthorizeNetGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *AuthorizeNetGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *AuthorizeNetGateway) cardTransaction(ctx context.Context, txType string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}

	post := url.Values{}
	post.Set("x_amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	if opts.Currency != "" {
		post.Set("x_currency_code", opts.CurrencyOr("USD"))
	}
	addCreditCard(post, card)
	addInvoice(post, opts)
	addCustomerData(post, opts)
	addAddress(post, opts.Address())

	return g.commit(ctx, txType, post)
}

func addCreditCard(post url.Values, card *gateway.CreditCard) {
	post.Set("x_card_num", card.Digits())
	post.Set("x_exp_date", card.ExpiryMMYYYY())
	if card.VerificationValue != "" {
		post.Set("x_card_code", card.VerificationValue)
	}
	post.Set("x_first_name", card.FirstName)
	post.Set("x_last_name", card.LastName)
}

func addInvoice(post url.Values, opts gateway.Options) {
	if opts.OrderID != "" {
		post.Set("x_invoice_num", gateway.Truncate(opts.OrderID, 20))
	}
	if opts.Description != "" {
		post.Set("x_description", gateway.Truncate(opts.Description, 255))
	}
}

func addCustomerData(post url.Values, opts gateway.Options) {
	if opts.Email != "" {
		post.Set("x_email", opts.Email)
		post.Set("x_email_customer", "FALSE")
	}
	if opts.Customer != "" {
		post.Set("x_cust_id", opts.Customer)
	}
	if opts.IP != "" {
		post.Set("x_customer_ip", opts.IP)
	}
}

func addAddress(post url.Values, addr *gateway.Address) {
	if addr == nil {
		return
	}
	post.Set("x_address", addr.Street())
	post.Set("x_company", addr.Company)
	post.Set("x_phone", addr.Phone)
	post.Set("x_zip", addr.Zip)
	post.Set("x_city", addr.City)
	post.Set("x_country", addr.Country)
	post.Set("x_state", addr.State)
	if addr.State == "" {
		post.Set("x_state", "n/a")
	}
}

func (g *AuthorizeNetGateway) commit(ctx context.Context, txType string, post url.Values) (*gateway.Response, error) {
	post.Set("x_version", apiVersion)
	post.Set("x_login", g.login)
	post.Set("x_tran_key", g.transactionKey)
	post.Set("x_relay_response", "FALSE")
	post.Set("x_type", txType)
	post.Set("x_delim_data", "TRUE")
	post.Set("x_delim_char", delimChar)
	post.Set("x_encap_char", encapChar)
	if g.testRequests {
		post.Set("x_test_request", "TRUE")
	}

	httpResp, err := g.httpClient.PostForm(ctx, "", post, nil)
	if err != nil {
		return nil, fmt.Errorf("authorizenet: %s request failed: %w", strings.ToLower(txType), err)
	}

	fields, err := parseResponse(string(httpResp.Body))
	if err != nil {
		return nil, err
	}

	code := fields["response_code"]
	resp := gateway.NewResponse(code == responseApproved, fields["response_reason_text"], fields)
	resp.Authorization = fields["transaction_id"]
	resp.FraudReview = code == responseReview
	resp.Test = g.testRequests || !g.isProduction
	resp.AVSResult = gateway.NewAVSResult(fields["avs_result_code"])
	resp.CVVResult = gateway.NewCVVResult(fields["card_code"])
	if !resp.Success {
		resp.ErrorCode = fields["response_reason_code"]
	}

	return resp, nil
}

// parseResponse splits a "$1$|$1$|$1$|$This transaction has been approved.$|..." body
func parseResponse(body string) (map[string]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("authorizenet: empty response: %w", gateway.ErrResponse)
	}

	body = strings.TrimPrefix(body, encapChar)
	body = strings.TrimSuffix(body, encapChar)
	values := strings.Split(body, encapChar+delimChar+encapChar)

	switch values[fieldResponseCode] {
	case responseApproved, responseDeclined, responseError, responseReview:
	default:
		return nil, fmt.Errorf("authorizenet: unrecognised response %q: %w", gateway.Truncate(body, 64), gateway.ErrResponse)
	}

	fields := make(map[string]string, len(fieldNames))
	for index, name := range fieldNames {
		if index < len(values) {
			fields[name] = values[index]
		} else {
			fields[name] = ""
		}
	}
	return fields, nil
}
