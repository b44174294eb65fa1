package payflow

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
	apiSandboxURL    = "https://pilot-payflowpro.paypal.com"
	apiProductionURL = "https://payflowpro.paypal.com"

	xmlPayNamespace = "http://www.paypal.com/XMLPay"
	xmlPayVersion   = "2.1"
	requestTimeout  = "30"
	defaultPartner  = "PayPal"
	defaultCurrency = "USD"

	// Result codes
	resultApproved    = "0"
	resultFraudReview = "126"
)

var cardTypes = map[string]string{
	gateway.BrandVisa:            "Visa",
	gateway.BrandMaster:          "MasterCard",
	gateway.BrandDiscover:        "Discover",
	gateway.BrandAmericanExpress: "Amex",
	gateway.BrandJCB:             "JCB",
	gateway.BrandDinersClub:      "DinersClub",
	gateway.BrandSwitch:          "Switch",
	gateway.BrandSolo:            "Solo",
}

// PayflowGateway implements gateway.Gateway for PayPal Payflow Pro (XMLPay)
type PayflowGateway struct {
	vendor       string
	user         string
	password     string
	partner      string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new Payflow Pro gateway
func NewGateway() gateway.Gateway {
	return &PayflowGateway{}
}

func (g *PayflowGateway) Name() string {
	return "payflow"
}

func (g *PayflowGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "payflow",
		DisplayName:        "PayPal Payflow Pro",
		Homepage:           "https://www.paypal.com/cgi-bin/webscr?cmd=_payflow-pro-overview-outside",
		SupportedCountries: []string{"US", "CA", "SG", "AU"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandJCB, gateway.BrandDiscover, gateway.BrandDinersClub},
		DefaultCurrency:    defaultCurrency,
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *PayflowGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "Merchant login (vendor) name",
			Example:     "mymerchant",
		},
		{
			Key:         "user",
			Required:    false,
			Type:        "string",
			Description: "API user, defaults to the login",
			Example:     "apiuser",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "API user password",
			Example:     "secret",
			Secret:      true,
		},
		{
			Key:         "partner",
			Required:    false,
			Type:        "string",
			Description: "Reseller partner id",
			Example:     defaultPartner,
		},
		gateway.EnvironmentField(),
	}
}

func (g *PayflowGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *PayflowGateway) Initialize(config map[string]string) error {
	g.vendor = config["login"]
	g.password = config["password"]
	if g.vendor == "" || g.password == "" {
		return errors.New("payflow: login and password are required")
	}

	g.user = config["user"]
	if g.user == "" {
		g.user = g.vendor
	}
	g.partner = config["partner"]
	if g.partner == "" {
		g.partner = defaultPartner
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

// XMLPay request documents

type xmlPayRequest struct {
	XMLName     xml.Name    `xml:"XMLPayRequest"`
	Timeout     string      `xml:"Timeout,attr"`
	Version     string      `xml:"version,attr"`
	Xmlns       string      `xml:"xmlns,attr"`
	RequestData requestData `xml:"RequestData"`
	RequestAuth requestAuth `xml:"RequestAuth"`
}

type requestData struct {
	Vendor       string      `xml:"Vendor"`
	Partner      string      `xml:"Partner"`
	Transactions transaction `xml:"Transactions>Transaction"`
}

type transaction struct {
	CustRef       string     `xml:"CustRef,attr,omitempty"`
	Verbosity     string     `xml:"Verbosity"`
	Sale          *payAction `xml:"Sale,omitempty"`
	Authorization *payAction `xml:"Authorization,omitempty"`
	Capture       *refAction `xml:"Capture,omitempty"`
	Void          *refAction `xml:"Void,omitempty"`
	Credit        *refAction `xml:"Credit,omitempty"`
}

type payAction struct {
	PayData payData `xml:"PayData"`
}

type refAction struct {
	PNRef   string   `xml:"PNRef"`
	Invoice *invoice `xml:"Invoice,omitempty"`
}

type payData struct {
	Invoice invoice `xml:"Invoice"`
	Tender  tender  `xml:"Tender"`
}

type invoice struct {
	CustIP      string   `xml:"CustIP,omitempty"`
	InvNum      string   `xml:"InvNum,omitempty"`
	Description string   `xml:"Description,omitempty"`
	BillTo      *billTo  `xml:"BillTo,omitempty"`
	ShipTo      *billTo  `xml:"ShipTo,omitempty"`
	TotalAmt    totalAmt `xml:"TotalAmt"`
}

type billTo struct {
	Name    string      `xml:"Name,omitempty"`
	Email   string      `xml:"EMail,omitempty"`
	Phone   string      `xml:"Phone,omitempty"`
	Company string      `xml:"CustCode,omitempty"`
	Address *xmlAddress `xml:"Address,omitempty"`
}

type xmlAddress struct {
	Street  string `xml:"Street"`
	City    string `xml:"City"`
	State   string `xml:"State"`
	Country string `xml:"Country"`
	Zip     string `xml:"Zip"`
}

type totalAmt struct {
	Currency string `xml:"Currency,attr"`
	Value    string `xml:",chardata"`
}

type tender struct {
	Card card `xml:"Card"`
}

type card struct {
	CardType   string    `xml:"CardType"`
	CardNum    string    `xml:"CardNum"`
	ExpDate    string    `xml:"ExpDate"`
	NameOnCard string    `xml:"NameOnCard"`
	CVNum      string    `xml:"CVNum,omitempty"`
	ExtData    []extData `xml:"ExtData"`
}

type extData struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:"Value,attr"`
}

type requestAuth struct {
	User     string `xml:"UserPass>User"`
	Password string `xml:"UserPass>Password"`
}

// XMLPay response document

type xmlPayResponse struct {
	XMLName xml.Name            `xml:"XMLPayResponse"`
	Results []transactionResult `xml:"ResponseData>TransactionResults>TransactionResult"`
}

type transactionResult struct {
	Result          string `xml:"Result"`
	Message         string `xml:"Message"`
	PNRef           string `xml:"PNRef"`
	AuthCode        string `xml:"AuthCode"`
	HostCode        string `xml:"HostCode"`
	StreetMatch     string `xml:"AVSResult>StreetMatch"`
	ZipMatch        string `xml:"AVSResult>ZipMatch"`
	CVResult        string `xml:"CVResult"`
	ProcessorAVS    string `xml:"ProcessorResult>AVSResult"`
	ProcessorCV     string `xml:"ProcessorResult>CVResult"`
	IAVSResult      string `xml:"IAVSResult"`
	DuplicateResult string `xml:"Duplicate"`
}

func (g *PayflowGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	action, err := g.payAction(money, card, opts)
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, transaction{CustRef: opts.Customer, Authorization: action})
}

func (g *PayflowGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	action, err := g.payAction(money, card, opts)
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, transaction{CustRef: opts.Customer, Sale: action})
}

func (g *PayflowGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	return g.commit(ctx, transaction{Capture: &refAction{
		PNRef:   authorization,
		Invoice: &invoice{TotalAmt: g.amount(money, opts)},
	}})
}

func (g *PayflowGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	return g.commit(ctx, transaction{Void: &refAction{PNRef: authorization}})
}

func (g *PayflowGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "PNRef")
	}
	return g.commit(ctx, transaction{Credit: &refAction{
		PNRef:   identification,
		Invoice: &invoice{TotalAmt: g.amount(money, opts)},
	}})
}

func (g *PayflowGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *PayflowGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *PayflowGateway) amount(money int64, opts gateway.Options) totalAmt {
	return totalAmt{
		Currency: opts.CurrencyOr(defaultCurrency),
		Value:    gateway.FormatAmount(money, gateway.MoneyDollars),
	}
}

func (g *PayflowGateway) payAction(money int64, cc *gateway.CreditCard, opts gateway.Options) (*payAction, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if cc == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	cardType, ok := cardTypes[cc.DetectedBrand()]
	if !ok {
		return nil, fmt.Errorf("payflow: unsupported card brand %q: %w", cc.DetectedBrand(), gateway.ErrInvalidCard)
	}

	inv := invoice{
		CustIP:      opts.IP,
		InvNum:      gateway.Truncate(opts.OrderID, 9),
		Description: opts.Description,
		TotalAmt:    g.amount(money, opts),
	}
	if addr := opts.Address(); addr != nil {
		inv.BillTo = newBillTo(addr, opts.Email)
	}
	if opts.ShippingAddress != nil {
		inv.ShipTo = newBillTo(opts.ShippingAddress, "")
	}

	return &payAction{PayData: payData{
		Invoice: inv,
		Tender: tender{Card: card{
			CardType:   cardType,
			CardNum:    cc.Digits(),
			ExpDate:    fmt.Sprintf("%04d%02d", cc.Year, cc.Month),
			NameOnCard: cc.FirstName,
			CVNum:      cc.VerificationValue,
			ExtData:    []extData{{Name: "LASTNAME", Value: cc.LastName}},
		}},
	}}, nil
}

func newBillTo(addr *gateway.Address, email string) *billTo {
	return &billTo{
		Name:    addr.Name,
		Email:   email,
		Phone:   addr.Phone,
		Company: addr.Company,
		Address: &xmlAddress{
			Street:  addr.Street(),
			City:    addr.City,
			State:   addr.State,
			Country: addr.Country,
			Zip:     addr.Zip,
		},
	}
}

func (g *PayflowGateway) commit(ctx context.Context, tx transaction) (*gateway.Response, error) {
	tx.Verbosity = "MEDIUM"
	body, err := gateway.MarshalXML(xmlPayRequest{
		Timeout: requestTimeout,
		Version: xmlPayVersion,
		Xmlns:   xmlPayNamespace,
		RequestData: requestData{
			Vendor:       g.vendor,
			Partner:      g.partner,
			Transactions: tx,
		},
		RequestAuth: requestAuth{User: g.user, Password: g.password},
	}, "")
	if err != nil {
		return nil, fmt.Errorf("payflow: %w", err)
	}

	headers := map[string]string{
		"X-VPS-Timeout":                 requestTimeout,
		"X-VPS-VIT-Integration-Product": "GoMerchant",
		"X-VPS-VIT-Integration-Version": "1.0",
		"X-VPS-VIT-Runtime-Version":     "go",
		"X-VPS-Request-ID":              strings.ReplaceAll(uuid.NewString(), "-", ""),
	}

	httpResp, err := g.httpClient.PostXML(ctx, "", body, headers)
	if err != nil {
		return nil, fmt.Errorf("payflow: request failed: %w", err)
	}

	return g.parseResponse(httpResp.Body)
}

func (g *PayflowGateway) parseResponse(body []byte) (*gateway.Response, error) {
	var doc xmlPayResponse
	if err := gateway.UnmarshalXML(body, &doc); err != nil {
		return nil, fmt.Errorf("payflow: %w", err)
	}
	if len(doc.Results) == 0 {
		return nil, fmt.Errorf("payflow: response has no transaction result: %w", gateway.ErrResponse)
	}
	result := doc.Results[0]

	params := map[string]string{
		"result":         result.Result,
		"message":        result.Message,
		"pn_ref":         result.PNRef,
		"auth_code":      result.AuthCode,
		"host_code":      result.HostCode,
		"street_match":   result.StreetMatch,
		"zip_match":      result.ZipMatch,
		"cv_result":      result.CVResult,
		"iavs_result":    result.IAVSResult,
		"processor_avs":  result.ProcessorAVS,
		"processor_cvv2": result.ProcessorCV,
	}

	resp := gateway.NewResponse(result.Result == resultApproved, result.Message, params)
	resp.Authorization = result.PNRef
	resp.FraudReview = result.Result == resultFraudReview
	resp.Test = !g.isProduction
	resp.AVSResult = gateway.NewAVSResultFromMatches(matchCode(result.StreetMatch), matchCode(result.ZipMatch))
	resp.CVVResult = gateway.NewCVVResult(cvvCode(result.CVResult))
	if !resp.Success {
		resp.ErrorCode = result.Result
	}
	return resp, nil
}

func matchCode(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "match", "y":
		return "Y"
	case "no match", "n":
		return "N"
	case "":
		return ""
	default:
		return "X"
	}
}

func cvvCode(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "match":
		return "M"
	case "no match":
		return "N"
	case "service not available":
		return "U"
	case "service not requested":
		return "P"
	default:
		return ""
	}
}
