package paypal

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
	apiSandboxURL    = "https://api-3t.sandbox.paypal.com/nvp"
	apiProductionURL = "https://api-3t.paypal.com/nvp"

	apiVersion      = "124.0"
	defaultCurrency = "USD"

	// API methods
	methodDoDirectPayment   = "DoDirectPayment"
	methodDoCapture         = "DoCapture"
	methodDoVoid            = "DoVoid"
	methodRefundTransaction = "RefundTransaction"

	// Acknowledgement values
	ackSuccess            = "Success"
	ackSuccessWithWarning = "SuccessWithWarning"

	// Error code returned when fraud management filters hold a payment
	errorFraudReview = "11610"
)

var cardTypes = map[string]string{
	gateway.BrandVisa:            "Visa",
	gateway.BrandMaster:          "MasterCard",
	gateway.BrandDiscover:        "Discover",
	gateway.BrandAmericanExpress: "Amex",
	gateway.BrandMaestro:         "Maestro",
	gateway.BrandSwitch:          "Maestro",
	gateway.BrandSolo:            "Solo",
}

// PayPalGateway implements gateway.Gateway for PayPal Website Payments Pro (NVP API)
type PayPalGateway struct {
	username     string
	password     string
	signature    string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new PayPal gateway
func NewGateway() gateway.Gateway {
	return &PayPalGateway{}
}

func (g *PayPalGateway) Name() string {
	return "paypal"
}

func (g *PayPalGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "paypal",
		DisplayName:        "PayPal Website Payments Pro",
		Homepage:           "https://www.paypal.com/cgi-bin/webscr?cmd=_wp-pro-overview-outside",
		SupportedCountries: []string{"US", "GB", "CA"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDiscover, gateway.BrandMaestro, gateway.BrandSwitch, gateway.BrandSolo},
		DefaultCurrency:    defaultCurrency,
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *PayPalGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "PayPal API username",
			Example:     "seller_api1.example.com",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "PayPal API password",
			Example:     "QFZCWN5HZM8VBG7Q",
			Secret:      true,
		},
		{
			Key:         "signature",
			Required:    true,
			Type:        "string",
			Description: "PayPal API signature",
			Example:     "A.d9eRKfd1yVkRrtmMfCFLTqa6M9AyodL0SJkhYztxUi8W9pCXF6.4NI",
			Secret:      true,
			MinLength:   20,
		},
		gateway.EnvironmentField(),
	}
}

func (g *PayPalGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *PayPalGateway) Initialize(config map[string]string) error {
	g.username = config["login"]
	g.password = config["password"]
	g.signature = config["signature"]
	if g.username == "" || g.password == "" || g.signature == "" {
		return errors.New("paypal: login, password and signature are required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *PayPalGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.directPayment(ctx, "Authorization", money, card, opts)
}

func (g *PayPalGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.directPayment(ctx, "Sale", money, card, opts)
}

func (g *PayPalGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "authorization")
	}
	post := url.Values{}
	post.Set("AUTHORIZATIONID", authorization)
	post.Set("AMT", gateway.FormatAmount(money, gateway.MoneyDollars))
	post.Set("CURRENCYCODE", opts.CurrencyOr(defaultCurrency))
	post.Set("COMPLETETYPE", "Complete")
	if opts.Description != "" {
		post.Set("NOTE", opts.Description)
	}
	return g.commit(ctx, methodDoCapture, post)
}

func (g *PayPalGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "authorization")
	}
	post := url.Values{}
	post.Set("AUTHORIZATIONID", authorization)
	if opts.Description != "" {
		post.Set("NOTE", opts.Description)
	}
	return g.commit(ctx, methodDoVoid, post)
}

// Credit refunds the transaction; a zero amount requests a full refund
func (g *PayPalGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "transaction id")
	}
	post := url.Values{}
	post.Set("TRANSACTIONID", identification)
	if money == 0 {
		post.Set("REFUNDTYPE", "Full")
	} else {
		post.Set("REFUNDTYPE", "Partial")
		post.Set("AMT", gateway.FormatAmount(money, gateway.MoneyDollars))
		post.Set("CURRENCYCODE", opts.CurrencyOr(defaultCurrency))
	}
	if opts.Description != "" {
		post.Set("NOTE", opts.Description)
	}
	return g.commit(ctx, methodRefundTransaction, post)
}

func (g *PayPalGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *PayPalGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *PayPalGateway) directPayment(ctx context.Context, action string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	cardType, ok := cardTypes[card.DetectedBrand()]
	if !ok {
		return nil, fmt.Errorf("paypal: card brand %q is not accepted: %w", card.DetectedBrand(), gateway.ErrInvalidCard)
	}

	post := url.Values{}
	post.Set("PAYMENTACTION", action)
	post.Set("AMT", gateway.FormatAmount(money, gateway.MoneyDollars))
	post.Set("CURRENCYCODE", opts.CurrencyOr(defaultCurrency))
	post.Set("CREDITCARDTYPE", cardType)
	post.Set("ACCT", card.Digits())
	post.Set("EXPDATE", card.ExpiryMMYYYY())
	if card.VerificationValue != "" {
		post.Set("CVV2", card.VerificationValue)
	}
	post.Set("FIRSTNAME", card.FirstName)
	post.Set("LASTNAME", card.LastName)
	if issue := opts.Metadata["issue_number"]; issue != "" {
		post.Set("ISSUENUMBER", issue)
	}

	if opts.IP != "" {
		post.Set("IPADDRESS", opts.IP)
	}
	if opts.Email != "" {
		post.Set("EMAIL", opts.Email)
	}
	if opts.OrderID != "" {
		post.Set("INVNUM", gateway.Truncate(opts.OrderID, 127))
	}
	if opts.Description != "" {
		post.Set("DESC", gateway.Truncate(opts.Description, 127))
	}
	addAddress(post, opts.Address())

	return g.commit(ctx, methodDoDirectPayment, post)
}

func addAddress(post url.Values, addr *gateway.Address) {
	if addr == nil {
		return
	}
	post.Set("STREET", addr.Address1)
	if addr.Address2 != "" {
		post.Set("STREET2", addr.Address2)
	}
	post.Set("CITY", addr.City)
	post.Set("STATE", addr.State)
	post.Set("ZIP", addr.Zip)
	post.Set("COUNTRYCODE", addr.Country)
	if addr.Phone != "" {
		post.Set("SHIPTOPHONENUM", addr.Phone)
	}
}

func (g *PayPalGateway) commit(ctx context.Context, method string, post url.Values) (*gateway.Response, error) {
	post.Set("METHOD", method)
	post.Set("VERSION", apiVersion)
	post.Set("USER", g.username)
	post.Set("PWD", g.password)
	post.Set("SIGNATURE", g.signature)

	httpResp, err := g.httpClient.PostForm(ctx, "", post, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal: %s request failed: %w", method, err)
	}

	params, err := gateway.ParseQueryString(string(httpResp.Body))
	if err != nil {
		return nil, fmt.Errorf("paypal: invalid response: %v: %w", err, gateway.ErrResponse)
	}
	ack := params["ACK"]
	if ack == "" {
		return nil, fmt.Errorf("paypal: response without ACK: %w", gateway.ErrResponse)
	}

	return g.buildResponse(params), nil
}

func (g *PayPalGateway) buildResponse(params map[string]string) *gateway.Response {
	ack := params["ACK"]
	errorCode := params["L_ERRORCODE0"]
	success := ack == ackSuccess || ack == ackSuccessWithWarning

	message := ack
	if !success || ack == ackSuccessWithWarning {
		if long := params["L_LONGMESSAGE0"]; long != "" {
			message = long
		} else if short := params["L_SHORTMESSAGE0"]; short != "" {
			message = short
		}
	}

	resp := gateway.NewResponse(success, message, params)
	resp.Authorization = authorizationFrom(params)
	resp.FraudReview = errorCode == errorFraudReview
	resp.Test = !g.isProduction
	resp.AVSResult = gateway.NewAVSResult(params["AVSCODE"])
	resp.CVVResult = gateway.NewCVVResult(params["CVV2MATCH"])
	if !success {
		resp.ErrorCode = errorCode
	}

	return resp
}

// authorizationFrom picks the id each method returns: payments and captures
// return TRANSACTIONID, voids AUTHORIZATIONID, refunds REFUNDTRANSACTIONID
func authorizationFrom(params map[string]string) string {
	for _, key := range []string{"TRANSACTIONID", "AUTHORIZATIONID", "REFUNDTRANSACTIONID"} {
		if v := strings.TrimSpace(params[key]); v != "" {
			return v
		}
	}
	return ""
}
