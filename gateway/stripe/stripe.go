package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/gateway"
	stripeapi "github.com/stripe/stripe-go/v82"
)

const (
	// Stripe uses one host for live and test mode; the key decides
	apiSandboxURL    = "https://api.stripe.com"
	apiProductionURL = "https://api.stripe.com"

	defaultCurrency = "usd"
)

// StripeGateway implements gateway.Gateway for the Stripe charges API
type StripeGateway struct {
	secretKey    string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new Stripe gateway
func NewGateway() gateway.Gateway {
	return &StripeGateway{}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "stripe",
		DisplayName:        "Stripe",
		Homepage:           "https://stripe.com/",
		SupportedCountries: []string{"US", "CA", "GB", "AU", "IE", "FR", "NL", "BE", "DE", "ES"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDiscover, gateway.BrandJCB, gateway.BrandDinersClub},
		DefaultCurrency:    strings.ToUpper(defaultCurrency),
		MoneyFormat:        gateway.MoneyCents,
	}
}

func (g *StripeGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "secretKey",
			Required:    true,
			Type:        "string",
			Description: "Stripe secret API key",
			Example:     "sk_test_4eC39HqLyjWDarjtT1zdp7dc",
			Secret:      true,
			Pattern:     "^(sk|rk)_(test|live)_",
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "Signing secret for webhook endpoints",
			Example:     "whsec_...",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *StripeGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *StripeGateway) Initialize(config map[string]string) error {
	g.secretKey = config["secretKey"]
	if g.secretKey == "" {
		return errors.New("stripe: secretKey is required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *StripeGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.charge(ctx, false, money, card, opts)
}

func (g *StripeGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.charge(ctx, true, money, card, opts)
}

func (g *StripeGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "charge id")
	}
	post := url.Values{}
	if money > 0 {
		post.Set("amount", amount(money, opts))
	}
	body, status, err := g.post(ctx, "/v1/charges/"+url.PathEscape(authorization)+"/capture", post)
	if err != nil {
		return nil, err
	}
	return g.chargeResponse(body, status)
}

// Void refunds the uncaptured charge, releasing the authorization
func (g *StripeGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "charge id")
	}
	post := url.Values{}
	post.Set("charge", authorization)
	body, status, err := g.post(ctx, "/v1/refunds", post)
	if err != nil {
		return nil, err
	}
	return g.refundResponse(body, status)
}

// Credit refunds money from a captured charge; a zero amount refunds the remainder
func (g *StripeGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "charge id")
	}
	post := url.Values{}
	post.Set("charge", identification)
	if money > 0 {
		post.Set("amount", amount(money, opts))
	}
	if reason := opts.Metadata["reason"]; reason != "" {
		post.Set("reason", reason)
	}
	body, status, err := g.post(ctx, "/v1/refunds", post)
	if err != nil {
		return nil, err
	}
	return g.refundResponse(body, status)
}

// Store creates a customer holding the card; the customer id is the billing id
func (g *StripeGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	post := url.Values{}
	addCard(post, card, opts.Address())
	if opts.Description != "" {
		post.Set("description", opts.Description)
	}
	if opts.Email != "" {
		post.Set("email", opts.Email)
	}
	body, status, err := g.post(ctx, "/v1/customers", post)
	if err != nil {
		return nil, err
	}
	return g.customerResponse(body, status)
}

func (g *StripeGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "customer id")
	}
	httpResp, err := g.httpClient.Do(ctx, &gateway.HTTPRequest{
		Method:           http.MethodDelete,
		Endpoint:         "/v1/customers/" + url.PathEscape(identification),
		Headers:          g.headers(),
		AllowErrorStatus: true,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: request failed: %w", err)
	}
	return g.customerResponse(httpResp.Body, httpResp.StatusCode)
}

func (g *StripeGateway) charge(ctx context.Context, capture bool, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}

	post := url.Values{}
	post.Set("amount", amount(money, opts))
	post.Set("currency", strings.ToLower(opts.CurrencyOr(defaultCurrency)))
	post.Set("capture", strconv.FormatBool(capture))
	if opts.Description != "" {
		post.Set("description", opts.Description)
	}
	if opts.Email != "" {
		post.Set("receipt_email", opts.Email)
	}
	if opts.OrderID != "" {
		post.Set("metadata[order_id]", opts.OrderID)
	}
	if opts.IP != "" {
		post.Set("metadata[ip]", opts.IP)
	}

	switch {
	case opts.BillingID != "":
		post.Set("customer", opts.BillingID)
	case card != nil:
		addCard(post, card, opts.Address())
	default:
		return nil, gateway.MissingField(g.Name(), "card")
	}

	body, status, err := g.post(ctx, "/v1/charges", post)
	if err != nil {
		return nil, err
	}
	return g.chargeResponse(body, status)
}

// amount renders cents in the currency's smallest unit
func amount(money int64, opts gateway.Options) string {
	currency := opts.CurrencyOr(defaultCurrency)
	if gateway.CurrencyExponent(currency) == 0 {
		return gateway.LocalizedAmount(money, currency)
	}
	return gateway.FormatAmount(money, gateway.MoneyCents)
}

func addCard(post url.Values, card *gateway.CreditCard, addr *gateway.Address) {
	post.Set("card[number]", card.Digits())
	post.Set("card[exp_month]", strconv.Itoa(card.Month))
	post.Set("card[exp_year]", strconv.Itoa(card.Year))
	if card.VerificationValue != "" {
		post.Set("card[cvc]", card.VerificationValue)
	}
	post.Set("card[name]", card.Name())
	if addr == nil {
		return
	}
	post.Set("card[address_line1]", addr.Address1)
	post.Set("card[address_line2]", addr.Address2)
	post.Set("card[address_city]", addr.City)
	post.Set("card[address_state]", addr.State)
	post.Set("card[address_zip]", addr.Zip)
	post.Set("card[address_country]", addr.Country)
}

func (g *StripeGateway) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + g.secretKey,
	}
}

// post sends a form request; error statuses are returned for envelope parsing
func (g *StripeGateway) post(ctx context.Context, endpoint string, values url.Values) ([]byte, int, error) {
	headers := g.headers()
	headers["Idempotency-Key"] = uuid.NewString()

	httpResp, err := g.httpClient.Do(ctx, &gateway.HTTPRequest{
		Method:           http.MethodPost,
		Endpoint:         endpoint,
		Headers:          headers,
		Body:             []byte(values.Encode()),
		ContentType:      gateway.ContentTypeForm,
		AllowErrorStatus: true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("stripe: request failed: %w", err)
	}
	return httpResp.Body, httpResp.StatusCode, nil
}

type errorEnvelope struct {
	Error *stripeapi.Error `json:"error"`
}

// decode fills v from a 2xx body, or returns the failure response built from Stripe's error envelope
func (g *StripeGateway) decode(body []byte, status int, v any) (*gateway.Response, error) {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("stripe: invalid JSON response: %v: %w", err, gateway.ErrResponse)
	}
	if envelope.Error != nil {
		return g.errorResponse(envelope.Error), nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("stripe: %w", &gateway.ResponseError{StatusCode: status, Body: body})
	}
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("stripe: invalid JSON response: %v: %w", err, gateway.ErrResponse)
	}
	return nil, nil
}

func (g *StripeGateway) errorResponse(e *stripeapi.Error) *gateway.Response {
	params := map[string]string{
		"type":         string(e.Type),
		"code":         string(e.Code),
		"decline_code": string(e.DeclineCode),
		"param":        e.Param,
		"charge":       e.ChargeID,
	}
	resp := gateway.NewResponse(false, e.Msg, params)
	resp.Test = !g.isProduction
	resp.Authorization = e.ChargeID
	resp.ErrorCode = string(e.Code)
	if resp.ErrorCode == "" {
		resp.ErrorCode = string(e.Type)
	}
	return resp
}

func (g *StripeGateway) chargeResponse(body []byte, status int) (*gateway.Response, error) {
	var charge stripeapi.Charge
	if failure, err := g.decode(body, status, &charge); failure != nil || err != nil {
		return failure, err
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("stripe: charge without id: %w", gateway.ErrResponse)
	}

	success := charge.Paid && charge.Status != stripeapi.ChargeStatusFailed
	message := "Transaction approved"
	if !success {
		message = charge.FailureMessage
	}

	params := map[string]string{
		"id":       charge.ID,
		"status":   string(charge.Status),
		"captured": strconv.FormatBool(charge.Captured),
		"amount":   strconv.FormatInt(charge.Amount, 10),
		"currency": string(charge.Currency),
	}

	resp := gateway.NewResponse(success, message, params)
	resp.Authorization = charge.ID
	resp.Test = !charge.Livemode
	if !success {
		resp.ErrorCode = charge.FailureCode
	}
	if charge.Outcome != nil {
		params["outcome_type"] = string(charge.Outcome.Type)
		resp.FraudReview = string(charge.Outcome.Type) == "manual_review"
	}
	if details := charge.PaymentMethodDetails; details != nil && details.Card != nil && details.Card.Checks != nil {
		checks := details.Card.Checks
		resp.AVSResult = gateway.NewAVSResultFromMatches(checkCode(string(checks.AddressLine1Check)), checkCode(string(checks.AddressPostalCodeCheck)))
		resp.CVVResult = gateway.NewCVVResult(cvcCode(string(checks.CVCCheck)))
	}

	return resp, nil
}

func (g *StripeGateway) refundResponse(body []byte, status int) (*gateway.Response, error) {
	var refund stripeapi.Refund
	if failure, err := g.decode(body, status, &refund); failure != nil || err != nil {
		return failure, err
	}
	if refund.ID == "" {
		return nil, fmt.Errorf("stripe: refund without id: %w", gateway.ErrResponse)
	}

	success := refund.Status != stripeapi.RefundStatusFailed && refund.Status != stripeapi.RefundStatusCanceled
	params := map[string]string{
		"id":     refund.ID,
		"status": string(refund.Status),
		"amount": strconv.FormatInt(refund.Amount, 10),
	}
	message := "Transaction approved"
	if !success {
		message = "Refund " + string(refund.Status)
	}

	resp := gateway.NewResponse(success, message, params)
	resp.Authorization = refund.ID
	resp.Test = !g.isProduction
	return resp, nil
}

func (g *StripeGateway) customerResponse(body []byte, status int) (*gateway.Response, error) {
	var customer stripeapi.Customer
	if failure, err := g.decode(body, status, &customer); failure != nil || err != nil {
		return failure, err
	}
	if customer.ID == "" {
		return nil, fmt.Errorf("stripe: customer without id: %w", gateway.ErrResponse)
	}

	params := map[string]string{
		"id":      customer.ID,
		"deleted": strconv.FormatBool(customer.Deleted),
	}
	resp := gateway.NewResponse(true, "Transaction approved", params)
	resp.Authorization = customer.ID
	resp.Test = !customer.Livemode
	return resp, nil
}

func checkCode(check string) string {
	switch check {
	case "pass":
		return "Y"
	case "fail":
		return "N"
	default:
		return ""
	}
}

func cvcCode(check string) string {
	switch check {
	case "pass":
		return "M"
	case "fail":
		return "N"
	case "unavailable":
		return "U"
	case "unchecked":
		return "P"
	default:
		return ""
	}
}
