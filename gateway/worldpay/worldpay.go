package worldpay

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// API URLs
	apiSandboxURL    = "https://secure-test.worldpay.com/jsp/merchant/xml/paymentService.jsp"
	apiProductionURL = "https://secure.worldpay.com/jsp/merchant/xml/paymentService.jsp"

	apiVersion      = "1.4"
	defaultCurrency = "GBP"
	doctype         = `<!DOCTYPE paymentService PUBLIC "-//WorldPay//DTD WorldPay PaymentService v1//EN" "http://dtd.worldpay.com/paymentService_v1.dtd">`

	eventAuthorised = "AUTHORISED"
)

var cardCodes = map[string]string{
	gateway.BrandVisa:            "VISA-SSL",
	gateway.BrandMaster:          "ECMC-SSL",
	gateway.BrandDiscover:        "DISCOVER-SSL",
	gateway.BrandAmericanExpress: "AMEX-SSL",
	gateway.BrandJCB:             "JCB-SSL",
	gateway.BrandMaestro:         "MAESTRO-SSL",
	gateway.BrandLaser:           "LASER-SSL",
	gateway.BrandDinersClub:      "DINERS-SSL",
	gateway.BrandSwitch:          "MAESTRO-SSL",
	gateway.BrandSolo:            "SOLO_GB-SSL",
}

// WorldpayGateway implements gateway.Gateway for the Worldpay XML Direct API
type WorldpayGateway struct {
	merchantCode string
	authUser     string
	password     string
	installation string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
	now          func() time.Time
}

// NewGateway creates a new Worldpay gateway
func NewGateway() gateway.Gateway {
	return &WorldpayGateway{now: time.Now}
}

func (g *WorldpayGateway) Name() string {
	return "worldpay"
}

func (g *WorldpayGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "worldpay",
		DisplayName:        "Worldpay",
		Homepage:           "http://www.worldpay.com/",
		SupportedCountries: []string{"HK", "US", "GB", "AU"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDiscover, gateway.BrandJCB, gateway.BrandMaestro, gateway.BrandLaser, gateway.BrandSwitch, gateway.BrandSolo},
		DefaultCurrency:    defaultCurrency,
		MoneyFormat:        gateway.MoneyCents,
	}
}

func (g *WorldpayGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "Worldpay merchant code",
			Example:     "MYMERCHANT",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "XML password for the merchant code",
			Example:     "secret",
			Secret:      true,
		},
		{
			Key:         "username",
			Required:    false,
			Type:        "string",
			Description: "Basic auth user when it differs from the merchant code",
			Example:     "MYMERCHANT",
		},
		{
			Key:         "installationId",
			Required:    false,
			Type:        "number",
			Description: "Installation id sent on submit orders",
			Example:     "12345",
		},
		gateway.EnvironmentField(),
	}
}

func (g *WorldpayGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *WorldpayGateway) Initialize(config map[string]string) error {
	g.merchantCode = config["login"]
	g.password = config["password"]
	if g.merchantCode == "" || g.password == "" {
		return errors.New("worldpay: login and password are required")
	}
	g.authUser = config["username"]
	if g.authUser == "" {
		g.authUser = g.merchantCode
	}
	g.installation = config["installationId"]

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)
	if g.now == nil {
		g.now = time.Now
	}

	return nil
}

type paymentService struct {
	XMLName      xml.Name `xml:"paymentService"`
	Version      string   `xml:"version,attr"`
	MerchantCode string   `xml:"merchantCode,attr"`
	Submit       *submit  `xml:"submit,omitempty"`
	Modify       *modify  `xml:"modify,omitempty"`
}

type submit struct {
	Order order `xml:"order"`
}

type order struct {
	OrderCode      string         `xml:"orderCode,attr"`
	InstallationID string         `xml:"installationId,attr,omitempty"`
	Description    string         `xml:"description"`
	Amount         amount         `xml:"amount"`
	PaymentDetails paymentDetails `xml:"paymentDetails"`
	Shopper        *shopper       `xml:"shopper,omitempty"`
}

type amount struct {
	Value        string `xml:"value,attr"`
	CurrencyCode string `xml:"currencyCode,attr"`
	Exponent     string `xml:"exponent,attr"`
}

type paymentDetails struct {
	Card    cardDetails
	Session *session `xml:"session,omitempty"`
}

// cardDetails is rendered under the Worldpay payment method code, e.g. VISA-SSL
type cardDetails struct {
	XMLName        xml.Name
	CardNumber     string       `xml:"cardNumber"`
	ExpiryDate     expiryDate   `xml:"expiryDate"`
	CardHolderName string       `xml:"cardHolderName"`
	IssueNumber    string       `xml:"issueNumber,omitempty"`
	CVC            string       `xml:"cvc,omitempty"`
	CardAddress    *cardAddress `xml:"cardAddress,omitempty"`
}

type expiryDate struct {
	Date date `xml:"date"`
}

type date struct {
	DayOfMonth string `xml:"dayOfMonth,attr,omitempty"`
	Month      string `xml:"month,attr"`
	Year       string `xml:"year,attr"`
}

type cardAddress struct {
	Address address `xml:"address"`
}

type address struct {
	Address1     string `xml:"address1,omitempty"`
	Address2     string `xml:"address2,omitempty"`
	PostalCode   string `xml:"postalCode,omitempty"`
	City         string `xml:"city,omitempty"`
	State        string `xml:"state,omitempty"`
	CountryCode  string `xml:"countryCode,omitempty"`
	TelephoneNum string `xml:"telephoneNumber,omitempty"`
}

type session struct {
	ShopperIPAddress string `xml:"shopperIPAddress,attr"`
	ID               string `xml:"id,attr"`
}

type shopper struct {
	Email string `xml:"shopperEmailAddress"`
}

type modify struct {
	OrderModification orderModification `xml:"orderModification"`
}

type orderModification struct {
	OrderCode string         `xml:"orderCode,attr"`
	Capture   *captureAction `xml:"capture,omitempty"`
	Cancel    *struct{}      `xml:"cancel,omitempty"`
	Refund    *refundAction  `xml:"refund,omitempty"`
}

type captureAction struct {
	Date   date   `xml:"date"`
	Amount amount `xml:"amount"`
}

type refundAction struct {
	Amount amount `xml:"amount"`
}

type replyDocument struct {
	XMLName xml.Name `xml:"paymentService"`
	Reply   reply    `xml:"reply"`
}

type reply struct {
	Error       *replyError  `xml:"error"`
	OrderStatus *orderStatus `xml:"orderStatus"`
	Ok          *okReply     `xml:"ok"`
}

// bareReply is a reply element sent without the paymentService envelope
type bareReply struct {
	XMLName xml.Name `xml:"reply"`
	reply
}

func (r reply) failed() bool {
	return r.Error != nil || (r.OrderStatus != nil && r.OrderStatus.Error != nil)
}

type replyError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type orderStatus struct {
	OrderCode string      `xml:"orderCode,attr"`
	Error     *replyError `xml:"error"`
	Payment   *payment    `xml:"payment"`
}

type payment struct {
	PaymentMethod string      `xml:"paymentMethod"`
	LastEvent     string      `xml:"lastEvent"`
	CVCResult     description `xml:"CVCResultCode"`
	AVSResult     description `xml:"AVSResultCode"`
	ReturnCode    returnCode  `xml:"ISO8583ReturnCode"`
	RiskScore     riskScore   `xml:"riskScore"`
}

type description struct {
	Description string `xml:"description,attr"`
}

type returnCode struct {
	Code        string `xml:"code,attr"`
	Description string `xml:"description,attr"`
}

type riskScore struct {
	Value string `xml:"value,attr"`
}

type okReply struct {
	CaptureReceived *received `xml:"captureReceived"`
	CancelReceived  *received `xml:"cancelReceived"`
	RefundReceived  *received `xml:"refundReceived"`
}

type received struct {
	OrderCode string `xml:"orderCode,attr"`
}

func (g *WorldpayGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	code, ok := cardCodes[card.DetectedBrand()]
	if !ok {
		return nil, fmt.Errorf("worldpay: card brand %q is not accepted: %w", card.DetectedBrand(), gateway.ErrInvalidCard)
	}

	orderCode := opts.OrderID
	if orderCode == "" {
		orderCode = uuid.NewString()
	}
	desc := opts.Description
	if desc == "" {
		desc = "Purchase"
	}

	o := order{
		OrderCode:      orderCode,
		InstallationID: g.installation,
		Description:    desc,
		Amount:         g.amount(money, opts),
		PaymentDetails: paymentDetails{Card: newCardDetails(code, card, opts)},
	}
	if opts.IP != "" {
		o.PaymentDetails.Session = &session{ShopperIPAddress: opts.IP, ID: orderCode}
	}
	if opts.Email != "" {
		o.Shopper = &shopper{Email: opts.Email}
	}

	resp, err := g.commit(ctx, paymentService{Submit: &submit{Order: o}})
	if err != nil {
		return nil, err
	}
	if resp.Authorization == "" {
		resp.Authorization = orderCode
	}
	return resp, nil
}

// Purchase authorizes and then captures; the capture decides success and the
// authorization token of the first step is kept
func (g *WorldpayGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	auth, err := g.Authorize(ctx, money, card, opts)
	if err != nil || !auth.Success {
		return auth, err
	}

	capture, err := g.Capture(ctx, money, auth.Authorization, opts)
	if err != nil {
		// the order stays authorised; hand back its code so the caller can void it
		auth.Success = false
		auth.Message = "capture failed: " + err.Error()
		return auth, err
	}
	capture.Authorization = auth.Authorization
	capture.AVSResult = auth.AVSResult
	capture.CVVResult = auth.CVVResult
	for key, value := range auth.Params {
		if _, exists := capture.Params[key]; !exists {
			capture.Params[key] = value
		}
	}
	return capture, nil
}

func (g *WorldpayGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "order code")
	}
	today := g.now()
	return g.commit(ctx, paymentService{Modify: &modify{OrderModification: orderModification{
		OrderCode: authorization,
		Capture: &captureAction{
			Date: date{
				DayOfMonth: strconv.Itoa(today.Day()),
				Month:      fmt.Sprintf("%02d", int(today.Month())),
				Year:       strconv.Itoa(today.Year()),
			},
			Amount: g.amount(money, opts),
		},
	}}})
}

func (g *WorldpayGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "order code")
	}
	return g.commit(ctx, paymentService{Modify: &modify{OrderModification: orderModification{
		OrderCode: authorization,
		Cancel:    &struct{}{},
	}}})
}

func (g *WorldpayGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "order code")
	}
	return g.commit(ctx, paymentService{Modify: &modify{OrderModification: orderModification{
		OrderCode: identification,
		Refund:    &refundAction{Amount: g.amount(money, opts)},
	}}})
}

func (g *WorldpayGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *WorldpayGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

// amount renders money in the currency's minor unit with its exponent
func (g *WorldpayGateway) amount(money int64, opts gateway.Options) amount {
	currency := opts.CurrencyOr(defaultCurrency)
	exponent := gateway.CurrencyExponent(currency)
	value := gateway.FormatAmount(money, gateway.MoneyCents)
	if exponent == 0 {
		value = gateway.LocalizedAmount(money, currency)
	}
	return amount{Value: value, CurrencyCode: currency, Exponent: strconv.Itoa(exponent)}
}

func newCardDetails(code string, card *gateway.CreditCard, opts gateway.Options) cardDetails {
	details := cardDetails{
		XMLName:        xml.Name{Local: code},
		CardNumber:     card.Digits(),
		ExpiryDate:     expiryDate{Date: date{Month: fmt.Sprintf("%02d", card.Month), Year: strconv.Itoa(card.Year)}},
		CardHolderName: card.Name(),
		IssueNumber:    opts.Metadata["issue_number"],
		CVC:            card.VerificationValue,
	}
	if addr := opts.Address(); addr != nil {
		details.CardAddress = &cardAddress{Address: address{
			Address1:     addr.Address1,
			Address2:     addr.Address2,
			PostalCode:   addr.Zip,
			City:         addr.City,
			State:        addr.State,
			CountryCode:  addr.Country,
			TelephoneNum: addr.Phone,
		}}
	}
	return details
}

func (g *WorldpayGateway) commit(ctx context.Context, doc paymentService) (*gateway.Response, error) {
	doc.Version = apiVersion
	doc.MerchantCode = g.merchantCode

	body, err := gateway.MarshalXML(doc, doctype)
	if err != nil {
		return nil, fmt.Errorf("worldpay: %w", err)
	}

	httpResp, err := g.httpClient.Do(ctx, &gateway.HTTPRequest{
		Method:           http.MethodPost,
		Headers:          map[string]string{"Authorization": gateway.BasicAuth(g.authUser, g.password)},
		Body:             body,
		ContentType:      gateway.ContentTypeXML,
		AllowErrorStatus: true,
	})
	if err != nil {
		return nil, fmt.Errorf("worldpay: request failed: %w", err)
	}

	// error statuses still carry a paymentService error document
	r, parseErr := parseReply(httpResp.Body)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if parseErr != nil || !r.failed() {
			return nil, fmt.Errorf("worldpay: request failed: %w", &gateway.ResponseError{StatusCode: httpResp.StatusCode, Body: httpResp.Body})
		}
	} else if parseErr != nil {
		return nil, fmt.Errorf("worldpay: %w", parseErr)
	}

	return g.buildResponse(r)
}

// parseReply accepts the paymentService envelope or a bare reply element
func parseReply(body []byte) (reply, error) {
	var doc replyDocument
	err := gateway.UnmarshalXML(body, &doc)
	if err == nil {
		return doc.Reply, nil
	}
	var bare bareReply
	if gateway.UnmarshalXML(body, &bare) == nil {
		return bare.reply, nil
	}
	return reply{}, err
}

func (g *WorldpayGateway) buildResponse(r reply) (*gateway.Response, error) {
	params := map[string]string{}
	var resp *gateway.Response

	switch {
	case r.Error != nil:
		resp = g.errorResponse(r.Error, params)
	case r.OrderStatus != nil && r.OrderStatus.Error != nil:
		params["order_code"] = r.OrderStatus.OrderCode
		resp = g.errorResponse(r.OrderStatus.Error, params)
		resp.Authorization = r.OrderStatus.OrderCode
	case r.OrderStatus != nil && r.OrderStatus.Payment != nil:
		p := r.OrderStatus.Payment
		params["order_code"] = r.OrderStatus.OrderCode
		params["payment_method"] = p.PaymentMethod
		params["last_event"] = p.LastEvent
		params["cvc_result"] = p.CVCResult.Description
		params["avs_result"] = p.AVSResult.Description
		params["return_code"] = p.ReturnCode.Code
		params["risk_score"] = p.RiskScore.Value

		success := p.LastEvent == eventAuthorised
		message := "SUCCESS"
		if !success {
			message = p.LastEvent
			if p.ReturnCode.Description != "" {
				message = p.ReturnCode.Description
			}
		}
		resp = gateway.NewResponse(success, message, params)
		resp.Authorization = r.OrderStatus.OrderCode
		if !success {
			resp.ErrorCode = p.ReturnCode.Code
		}
		street, postal := avsMatches(p.AVSResult.Description)
		resp.AVSResult = gateway.NewAVSResultFromMatches(street, postal)
		resp.CVVResult = gateway.NewCVVResult(cvcCode(p.CVCResult.Description))
	case r.Ok != nil:
		var rec *received
		switch {
		case r.Ok.CaptureReceived != nil:
			rec = r.Ok.CaptureReceived
			params["ok"] = "captureReceived"
		case r.Ok.CancelReceived != nil:
			rec = r.Ok.CancelReceived
			params["ok"] = "cancelReceived"
		case r.Ok.RefundReceived != nil:
			rec = r.Ok.RefundReceived
			params["ok"] = "refundReceived"
		default:
			return nil, fmt.Errorf("worldpay: empty ok reply: %w", gateway.ErrResponse)
		}
		params["order_code"] = rec.OrderCode
		resp = gateway.NewResponse(true, "SUCCESS", params)
		resp.Authorization = rec.OrderCode
	default:
		return nil, fmt.Errorf("worldpay: unrecognised reply: %w", gateway.ErrResponse)
	}

	resp.Test = !g.isProduction
	return resp, nil
}

func (g *WorldpayGateway) errorResponse(e *replyError, params map[string]string) *gateway.Response {
	message := strings.TrimSpace(e.Message)
	params["error_code"] = e.Code
	params["error_message"] = message
	resp := gateway.NewResponse(false, message, params)
	resp.ErrorCode = e.Code
	return resp
}

func avsMatches(desc string) (street, postal string) {
	switch strings.ToUpper(strings.TrimSpace(desc)) {
	case "APPROVED":
		return "Y", "Y"
	case "FAILED", "DENIED", "NO MATCH":
		return "N", "N"
	case "POSTCODE MATCH":
		return "N", "Y"
	case "ADDRESS MATCH":
		return "Y", "N"
	default:
		return "", ""
	}
}

func cvcCode(desc string) string {
	switch strings.ToUpper(strings.TrimSpace(desc)) {
	case "APPROVED":
		return "M"
	case "FAILED":
		return "N"
	case "NOT SUPPLIED BY SHOPPER":
		return "S"
	case "NOT SENT TO ACQUIRER", "NOT CHECKED BY ACQUIRER":
		return "P"
	case "UNKNOWN":
		return "U"
	default:
		return ""
	}
}
