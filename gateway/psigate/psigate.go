package psigate

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// API URLs
	apiSandboxURL    = "https://realtimestaging.psigate.com/xml"
	apiProductionURL = "https://realtime.psigate.com/xml"

	// Card actions
	actionSale     = "0"
	actionPreAuth  = "1"
	actionPostAuth = "2"
	actionCredit   = "3"
	actionVoid     = "9"

	approvedStatus = "APPROVED"
)

// order is the XML Messenger request document
type order struct {
	XMLName        xml.Name `xml:"Order"`
	StoreID        string   `xml:"StoreID"`
	Passphrase     string   `xml:"Passphrase"`
	OrderID        string   `xml:"OrderID,omitempty"`
	Email          string   `xml:"Email,omitempty"`
	CustomerIP     string   `xml:"CustomerIP,omitempty"`
	Comments       string   `xml:"Comments,omitempty"`
	PaymentType    string   `xml:"PaymentType"`
	CardAction     string   `xml:"CardAction"`
	SubTotal       string   `xml:"SubTotal,omitempty"`
	TransRefNumber string   `xml:"TransRefNumber,omitempty"`
	CardNumber     string   `xml:"CardNumber,omitempty"`
	CardExpMonth   string   `xml:"CardExpMonth,omitempty"`
	CardExpYear    string   `xml:"CardExpYear,omitempty"`
	CardIDCode     string   `xml:"CardIDCode,omitempty"`
	CardIDNumber   string   `xml:"CardIDNumber,omitempty"`
	Bname          string   `xml:"Bname,omitempty"`
	Bcompany       string   `xml:"Bcompany,omitempty"`
	Baddress1      string   `xml:"Baddress1,omitempty"`
	Baddress2      string   `xml:"Baddress2,omitempty"`
	Bcity          string   `xml:"Bcity,omitempty"`
	Bprovince      string   `xml:"Bprovince,omitempty"`
	Bpostalcode    string   `xml:"Bpostalcode,omitempty"`
	Bcountry       string   `xml:"Bcountry,omitempty"`
	Phone          string   `xml:"Phone,omitempty"`
	Sname          string   `xml:"Sname,omitempty"`
	Saddress1      string   `xml:"Saddress1,omitempty"`
	Saddress2      string   `xml:"Saddress2,omitempty"`
	Scity          string   `xml:"Scity,omitempty"`
	Sprovince      string   `xml:"Sprovince,omitempty"`
	Spostalcode    string   `xml:"Spostalcode,omitempty"`
	Scountry       string   `xml:"Scountry,omitempty"`
}

type result struct {
	XMLName         xml.Name `xml:"Result"`
	TransTime       string   `xml:"TransTime"`
	OrderID         string   `xml:"OrderID"`
	TransactionType string   `xml:"TransactionType"`
	Approved        string   `xml:"Approved"`
	ReturnCode      string   `xml:"ReturnCode"`
	ErrMsg          string   `xml:"ErrMsg"`
	SubTotal        string   `xml:"SubTotal"`
	FullTotal       string   `xml:"FullTotal"`
	CardNumber      string   `xml:"CardNumber"`
	TransRefNumber  string   `xml:"TransRefNumber"`
	CardIDResult    string   `xml:"CardIDResult"`
	AVSResult       string   `xml:"AVSResult"`
	CardAuthNumber  string   `xml:"CardAuthNumber"`
	CardRefNumber   string   `xml:"CardRefNumber"`
	CardType        string   `xml:"CardType"`
	IPResult        string   `xml:"IPResult"`
}

func (r result) params() map[string]string {
	return map[string]string{
		"TransTime":       r.TransTime,
		"OrderID":         r.OrderID,
		"TransactionType": r.TransactionType,
		"Approved":        r.Approved,
		"ReturnCode":      r.ReturnCode,
		"ErrMsg":          r.ErrMsg,
		"SubTotal":        r.SubTotal,
		"FullTotal":       r.FullTotal,
		"CardNumber":      r.CardNumber,
		"TransRefNumber":  r.TransRefNumber,
		"CardIDResult":    r.CardIDResult,
		"AVSResult":       r.AVSResult,
		"CardAuthNumber":  r.CardAuthNumber,
		"CardRefNumber":   r.CardRefNumber,
		"CardType":        r.CardType,
		"IPResult":        r.IPResult,
	}
}

// PSiGateGateway implements gateway.Gateway for the PSiGate XML Messenger
type PSiGateGateway struct {
	storeID      string
	passphrase   string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new PSiGate gateway
func NewGateway() gateway.Gateway {
	return &PSiGateGateway{}
}

func (g *PSiGateGateway) Name() string {
	return "psigate"
}

func (g *PSiGateGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "psigate",
		DisplayName:        "PSiGate",
		Homepage:           "http://www.psigate.com/",
		SupportedCountries: []string{"CA"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress},
		DefaultCurrency:    "CAD",
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *PSiGateGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "PSiGate store id",
			Example:     "teststore",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "PSiGate passphrase",
			Example:     "psigate1234",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *PSiGateGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *PSiGateGateway) Initialize(config map[string]string) error {
	g.storeID = config["login"]
	g.passphrase = config["password"]
	if g.storeID == "" || g.passphrase == "" {
		return errors.New("psigate: login and password are required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

func (g *PSiGateGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, actionPreAuth, money, card, opts)
}

func (g *PSiGateGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, actionSale, money, card, opts)
}

func (g *PSiGateGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return g.followUp(ctx, actionPostAuth, money, authorization, opts)
}

// Void cancels a same-day transaction; PSiGate identifies it by order id plus
// the TransRefNumber passed in opts.Metadata["trans_ref_number"]
func (g *PSiGateGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if authorization == "" {
		return nil, gateway.MissingField(g.Name(), "OrderID")
	}
	o := g.newOrder(actionVoid)
	o.OrderID = authorization
	o.TransRefNumber = opts.Metadata["trans_ref_number"]
	return g.commit(ctx, o)
}

func (g *PSiGateGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	return g.followUp(ctx, actionCredit, money, identification, opts)
}

func (g *PSiGateGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *PSiGateGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *PSiGateGateway) newOrder(action string) order {
	return order{
		StoreID:     g.storeID,
		Passphrase:  g.passphrase,
		PaymentType: "CC",
		CardAction:  action,
	}
}

func (g *PSiGateGateway) cardTransaction(ctx context.Context, action string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}

	o := g.newOrder(action)
	o.OrderID = opts.OrderID
	if o.OrderID == "" {
		o.OrderID = uuid.New().String()
	}
	o.SubTotal = gateway.FormatAmount(money, gateway.MoneyDollars)
	o.Email = opts.Email
	o.CustomerIP = opts.IP
	o.Comments = opts.Description
	o.CardNumber = card.Digits()
	o.CardExpMonth = fmt.Sprintf("%02d", card.Month)
	o.CardExpYear = fmt.Sprintf("%02d", card.Year%100)
	if card.VerificationValue != "" {
		o.CardIDCode = "1"
		o.CardIDNumber = card.VerificationValue
	}

	if addr := opts.Address(); addr != nil {
		o.Bname = addr.Name
		if o.Bname == "" {
			o.Bname = card.Name()
		}
		o.Bcompany = addr.Company
		o.Baddress1 = addr.Address1
		o.Baddress2 = addr.Address2
		o.Bcity = addr.City
		o.Bprovince = addr.State
		o.Bpostalcode = addr.Zip
		o.Bcountry = addr.Country
		o.Phone = addr.Phone
	} else {
		o.Bname = card.Name()
	}
	if ship := opts.ShippingAddress; ship != nil {
		o.Sname = ship.Name
		o.Saddress1 = ship.Address1
		o.Saddress2 = ship.Address2
		o.Scity = ship.City
		o.Sprovince = ship.State
		o.Spostalcode = ship.Zip
		o.Scountry = ship.Country
	}

	return g.commit(ctx, o)
}

func (g *PSiGateGateway) followUp(ctx context.Context, action string, money int64, orderID string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, gateway.MissingField(g.Name(), "OrderID")
	}
	o := g.newOrder(action)
	o.OrderID = orderID
	o.SubTotal = gateway.FormatAmount(money, gateway.MoneyDollars)
	return g.commit(ctx, o)
}

func (g *PSiGateGateway) commit(ctx context.Context, o order) (*gateway.Response, error) {
	body, err := gateway.MarshalXML(o, "")
	if err != nil {
		return nil, fmt.Errorf("psigate: %w", err)
	}

	httpResp, err := g.httpClient.PostXML(ctx, "", body, nil)
	if err != nil {
		return nil, fmt.Errorf("psigate: request failed: %w", err)
	}

	var res result
	if err := gateway.UnmarshalXML(httpResp.Body, &res); err != nil {
		return nil, fmt.Errorf("psigate: %w", err)
	}
	if res.Approved == "" {
		return nil, fmt.Errorf("psigate: result without approval status: %w", gateway.ErrResponse)
	}

	success := strings.EqualFold(res.Approved, approvedStatus)
	message := "Success"
	if !success {
		message = strings.TrimSpace(res.ErrMsg)
		if message == "" {
			message = res.Approved
		}
	}

	resp := gateway.NewResponse(success, message, res.params())
	resp.Authorization = res.OrderID
	if resp.Authorization == "" {
		resp.Authorization = o.OrderID
	}
	resp.Test = !g.isProduction
	resp.AVSResult = gateway.NewAVSResult(res.AVSResult)
	resp.CVVResult = gateway.NewCVVResult(res.CardIDResult)
	if !success {
		resp.ErrorCode = returnCode(res.ReturnCode, res.Approved)
	}

	return resp, nil
}

// returnCode extracts the leading code of "N:TESTDECLINE" style return codes
func returnCode(code, status string) string {
	if code == "" {
		return status
	}
	parts := strings.SplitN(code, ":", 3)
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return code
}
