package eway

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// eWAY serves test and live traffic from one host
	apiSandboxURL    = "https://www.eway.com.au"
	apiProductionURL = "https://www.eway.com.au"

	sandboxPaymentPath    = "/gateway_cvn/xmltest/testpage.asp"
	productionPaymentPath = "/gateway_cvn/xmlpayment.asp"
	refundPath            = "/gateway/xmlpaymentrefund.asp"

	// Customer id of the public test gateway
	testCustomerID = "87654321"
)

// payment is the XML CVN payment request; eWAY expects every element present
type payment struct {
	XMLName            xml.Name `xml:"ewaygateway"`
	CustomerID         string   `xml:"ewayCustomerID"`
	TotalAmount        string   `xml:"ewayTotalAmount"`
	CustomerFirstName  string   `xml:"ewayCustomerFirstName"`
	CustomerLastName   string   `xml:"ewayCustomerLastName"`
	CustomerEmail      string   `xml:"ewayCustomerEmail"`
	CustomerAddress    string   `xml:"ewayCustomerAddress"`
	CustomerPostcode   string   `xml:"ewayCustomerPostcode"`
	InvoiceDescription string   `xml:"ewayCustomerInvoiceDescription"`
	InvoiceRef         string   `xml:"ewayCustomerInvoiceRef"`
	CardHoldersName    string   `xml:"ewayCardHoldersName"`
	CardNumber         string   `xml:"ewayCardNumber"`
	CardExpiryMonth    string   `xml:"ewayCardExpiryMonth"`
	CardExpiryYear     string   `xml:"ewayCardExpiryYear"`
	TrxnNumber         string   `xml:"ewayTrxnNumber"`
	Option1            string   `xml:"ewayOption1"`
	Option2            string   `xml:"ewayOption2"`
	Option3            string   `xml:"ewayOption3"`
	CVN                string   `xml:"ewayCVN"`
}

type refund struct {
	XMLName            xml.Name `xml:"ewaygateway"`
	CustomerID         string   `xml:"ewayCustomerID"`
	TotalAmount        string   `xml:"ewayTotalAmount"`
	CardExpiryMonth    string   `xml:"ewayCardExpiryMonth"`
	CardExpiryYear     string   `xml:"ewayCardExpiryYear"`
	OriginalTrxnNumber string   `xml:"ewayOriginalTrxnNumber"`
	Option1            string   `xml:"ewayOption1"`
	Option2            string   `xml:"ewayOption2"`
	Option3            string   `xml:"ewayOption3"`
	RefundPassword     string   `xml:"ewayRefundPassword"`
}

type reply struct {
	XMLName       xml.Name `xml:"ewayResponse"`
	TrxnError     string   `xml:"ewayTrxnError"`
	TrxnStatus    string   `xml:"ewayTrxnStatus"`
	TrxnNumber    string   `xml:"ewayTrxnNumber"`
	TrxnReference string   `xml:"ewayTrxnReference"`
	TrxnOption1   string   `xml:"ewayTrxnOption1"`
	TrxnOption2   string   `xml:"ewayTrxnOption2"`
	TrxnOption3   string   `xml:"ewayTrxnOption3"`
	AuthCode      string   `xml:"ewayAuthCode"`
	ReturnAmount  string   `xml:"ewayReturnAmount"`
}

func (r reply) params() map[string]string {
	return map[string]string{
		"ewayTrxnError":     r.TrxnError,
		"ewayTrxnStatus":    r.TrxnStatus,
		"ewayTrxnNumber":    r.TrxnNumber,
		"ewayTrxnReference": r.TrxnReference,
		"ewayTrxnOption1":   r.TrxnOption1,
		"ewayTrxnOption2":   r.TrxnOption2,
		"ewayTrxnOption3":   r.TrxnOption3,
		"ewayAuthCode":      r.AuthCode,
		"ewayReturnAmount":  r.ReturnAmount,
	}
}

// EwayGateway implements gateway.Gateway for the eWAY XML CVN API
type EwayGateway struct {
	customerID     string
	refundPassword string
	isProduction   bool
	baseURL        string
	paymentPath    string
	httpClient     *gateway.HTTPClient
}

// NewGateway creates a new eWAY gateway
func NewGateway() gateway.Gateway {
	return &EwayGateway{}
}

func (g *EwayGateway) Name() string {
	return "eway"
}

func (g *EwayGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "eway",
		DisplayName:        "eWAY",
		Homepage:           "http://www.eway.com.au/",
		SupportedCountries: []string{"AU"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDinersClub},
		DefaultCurrency:    "AUD",
		MoneyFormat:        gateway.MoneyCents,
	}
}

func (g *EwayGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "eWAY customer id",
			Example:     testCustomerID,
			Pattern:     "^[0-9]+$",
		},
		{
			Key:         "refundPassword",
			Required:    false,
			Type:        "string",
			Description: "XML refund password, needed for credits",
			Example:     "refundpass",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *EwayGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *EwayGateway) Initialize(config map[string]string) error {
	g.customerID = config["login"]
	if g.customerID == "" {
		return errors.New("eway: login is required")
	}
	g.refundPassword = config["refundPassword"]

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	g.paymentPath = sandboxPaymentPath
	if g.isProduction {
		g.baseURL = apiProductionURL
		g.paymentPath = productionPaymentPath
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *EwayGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}

	p := payment{
		CustomerID:         g.customerID,
		TotalAmount:        gateway.FormatAmount(money, gateway.MoneyCents),
		CustomerFirstName:  card.FirstName,
		CustomerLastName:   card.LastName,
		CustomerEmail:      opts.Email,
		InvoiceDescription: gateway.Truncate(opts.Description, 255),
		InvoiceRef:         gateway.Truncate(opts.OrderID, 50),
		CardHoldersName:    card.Name(),
		CardNumber:         card.Digits(),
		CardExpiryMonth:    fmt.Sprintf("%02d", card.Month),
		CardExpiryYear:     fmt.Sprintf("%02d", card.Year%100),
		CVN:                card.VerificationValue,
	}
	if opts.Invoice != "" {
		p.InvoiceRef = gateway.Truncate(opts.Invoice, 50)
	}
	if addr := opts.Address(); addr != nil {
		p.CustomerAddress = strings.Join(nonEmpty(addr.Street(), addr.City, addr.State, addr.Country), ", ")
		p.CustomerPostcode = addr.Zip
	}

	return g.commit(ctx, g.paymentPath, p)
}

func (g *EwayGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpAuthorize)
}

func (g *EwayGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpCapture)
}

func (g *EwayGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpVoid)
}

// Credit refunds a previous transaction; eWAY wants the original card expiry
// in opts.Metadata["card_expiry_month"] and ["card_expiry_year"]
func (g *EwayGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "ewayTrxnNumber")
	}
	if g.refundPassword == "" {
		return nil, gateway.MissingField(g.Name(), "refundPassword")
	}
	if err := gateway.RequireFields(g.Name(), opts.Metadata, "card_expiry_month", "card_expiry_year"); err != nil {
		return nil, err
	}

	r := refund{
		CustomerID:         g.customerID,
		TotalAmount:        gateway.FormatAmount(money, gateway.MoneyCents),
		CardExpiryMonth:    opts.Metadata["card_expiry_month"],
		CardExpiryYear:     opts.Metadata["card_expiry_year"],
		OriginalTrxnNumber: identification,
		RefundPassword:     g.refundPassword,
	}
	return g.commit(ctx, refundPath, r)
}

func (g *EwayGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *EwayGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *EwayGateway) commit(ctx context.Context, path string, doc any) (*gateway.Response, error) {
	body, err := gateway.MarshalXML(doc, "")
	if err != nil {
		return nil, fmt.Errorf("eway: %w", err)
	}

	httpResp, err := g.httpClient.PostXML(ctx, path, body, nil)
	if err != nil {
		return nil, fmt.Errorf("eway: request failed: %w", err)
	}

	var r reply
	if err := gateway.UnmarshalXML(httpResp.Body, &r); err != nil {
		return nil, fmt.Errorf("eway: %w", err)
	}
	if r.TrxnStatus == "" {
		return nil, fmt.Errorf("eway: response without ewayTrxnStatus: %w", gateway.ErrResponse)
	}

	success := strings.EqualFold(r.TrxnStatus, "true")
	code, message := splitTrxnError(r.TrxnError)

	resp := gateway.NewResponse(success, message, r.params())
	resp.Authorization = r.TrxnNumber
	resp.Test = !g.isProduction
	if !success {
		resp.ErrorCode = code
	}

	return resp, nil
}

// splitTrxnError separates "00,Transaction Approved" into bank code and text
func splitTrxnError(s string) (string, string) {
	code, message, found := strings.Cut(strings.TrimSpace(s), ",")
	if !found {
		return "", code
	}
	return strings.TrimSpace(code), strings.TrimSpace(message)
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
