package sagepay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// API URLs
	apiSandboxURL    = "https://test.sagepay.com/gateway/service/"
	apiProductionURL = "https://live.sagepay.com/gateway/service/"

	protocolVersion = "3.00"
	defaultCurrency = "GBP"

	// Transaction types
	txPayment  = "PAYMENT"
	txDeferred = "DEFERRED"
	txRelease  = "RELEASE"
	txAbort    = "ABORT"
	txVoid     = "VOID"
	txRefund   = "REFUND"

	tokenSeparator = ";"
	statusOK       = "OK"
)

var endpoints = map[string]string{
	txPayment:  "vspdirect-register.vsp",
	txDeferred: "vspdirect-register.vsp",
	txRelease:  "release.vsp",
	txAbort:    "abort.vsp",
	txVoid:     "void.vsp",
	txRefund:   "refund.vsp",
}

var cardTypes = map[string]string{
	gateway.BrandVisa:            "VISA",
	gateway.BrandMaster:          "MC",
	gateway.BrandAmericanExpress: "AMEX",
	gateway.BrandDinersClub:      "DC",
	gateway.BrandJCB:             "JCB",
	gateway.BrandMaestro:         "MAESTRO",
	gateway.BrandSwitch:          "MAESTRO",
	gateway.BrandSolo:            "SOLO",
	gateway.BrandLaser:           "LASER",
}

// characters Sage Pay accepts in a VendorTxCode
var vendorTxCodeInvalid = regexp.MustCompile(`[^A-Za-z0-9{}._-]`)

// SagePayGateway implements gateway.Gateway for the Sage Pay Direct protocol
type SagePayGateway struct {
	vendor       string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new Sage Pay gateway
func NewGateway() gateway.Gateway {
	return &SagePayGateway{}
}

func (g *SagePayGateway) Name() string {
	return "sagepay"
}

func (g *SagePayGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "sagepay",
		DisplayName:        "Sage Pay Direct",
		Homepage:           "http://www.sagepay.com/",
		SupportedCountries: []string{"GB", "IE"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDinersClub, gateway.BrandJCB, gateway.BrandMaestro, gateway.BrandSwitch, gateway.BrandSolo, gateway.BrandLaser},
		DefaultCurrency:    defaultCurrency,
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *SagePayGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "Sage Pay vendor name",
			Example:     "myvendor",
			MaxLength:   15,
		},
		gateway.EnvironmentField(),
	}
}

func (g *SagePayGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *SagePayGateway) Initialize(config map[string]string) error {
	g.vendor = config["login"]
	if g.vendor == "" {
		return errors.New("sagepay: login is required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

// token is the compound authorization handed back to callers
type token struct {
	VendorTxCode string
	VPSTxID      string
	TxAuthNo     string
	SecurityKey  string
	Action       string
}

func (t token) String() string {
	return gateway.JoinAuthorization(tokenSeparator, t.VendorTxCode, t.VPSTxID, t.TxAuthNo, t.SecurityKey, t.Action)
}

func parseToken(authorization string) (token, error) {
	parts := gateway.SplitAuthorization(authorization, tokenSeparator, 5)
	t := token{VendorTxCode: parts[0], VPSTxID: parts[1], TxAuthNo: parts[2], SecurityKey: parts[3], Action: parts[4]}
	if t.VendorTxCode == "" || t.VPSTxID == "" || t.SecurityKey == "" {
		return token{}, gateway.MissingField("sagepay", "authorization (VendorTxCode;VPSTxId;TxAuthNo;SecurityKey;action)")
	}
	return t, nil
}

func (g *SagePayGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.register(ctx, txDeferred, money, card, opts)
}

func (g *SagePayGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.register(ctx, txPayment, money, card, opts)
}

// Capture releases a DEFERRED transaction
func (g *SagePayGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	t, err := parseToken(authorization)
	if err != nil {
		return nil, err
	}
	post := url.Values{}
	addRelatedTransaction(post, "", t)
	post.Set("ReleaseAmount", gateway.FormatAmount(money, gateway.MoneyDollars))
	return g.commit(ctx, txRelease, post, t)
}

// Void aborts a DEFERRED transaction and voids a PAYMENT
func (g *SagePayGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	t, err := parseToken(authorization)
	if err != nil {
		return nil, err
	}
	txType := txVoid
	if t.Action == txDeferred {
		txType = txAbort
	}
	post := url.Values{}
	addRelatedTransaction(post, "", t)
	return g.commit(ctx, txType, post, t)
}

// Credit refunds a settled transaction under a fresh VendorTxCode
func (g *SagePayGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	t, err := parseToken(identification)
	if err != nil {
		return nil, err
	}
	vendorTxCode := newVendorTxCode("")
	post := url.Values{}
	post.Set("VendorTxCode", vendorTxCode)
	post.Set("Amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	post.Set("Currency", opts.CurrencyOr(defaultCurrency))
	post.Set("Description", description(opts))
	addRelatedTransaction(post, "Related", t)
	return g.commit(ctx, txRefund, post, token{VendorTxCode: vendorTxCode})
}

func (g *SagePayGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *SagePayGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *SagePayGateway) register(ctx context.Context, txType string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	cardType, ok := cardTypes[card.DetectedBrand()]
	if !ok {
		return nil, fmt.Errorf("sagepay: card brand %q is not accepted: %w", card.DetectedBrand(), gateway.ErrInvalidCard)
	}

	vendorTxCode := newVendorTxCode(opts.OrderID)
	post := url.Values{}
	post.Set("VendorTxCode", vendorTxCode)
	post.Set("Amount", gateway.FormatAmount(money, gateway.MoneyDollars))
	post.Set("Currency", opts.CurrencyOr(defaultCurrency))
	post.Set("Description", description(opts))

	post.Set("CardHolder", gateway.Truncate(card.Name(), 50))
	post.Set("CardNumber", card.Digits())
	post.Set("ExpiryDate", card.ExpiryMMYY())
	post.Set("CardType", cardType)
	if card.VerificationValue != "" {
		post.Set("CV2", card.VerificationValue)
	}
	if issue := opts.Metadata["issue_number"]; issue != "" {
		post.Set("IssueNumber", issue)
	}

	addAddress(post, "Billing", card, opts.Address())
	shipping := opts.ShippingAddress
	if shipping == nil {
		shipping = opts.Address()
	}
	addAddress(post, "Delivery", card, shipping)

	if opts.Email != "" {
		post.Set("CustomerEMail", gateway.Truncate(opts.Email, 255))
	}
	if opts.IP != "" {
		post.Set("ClientIPAddress", opts.IP)
	}
	post.Set("ApplyAVSCV2", "0")

	return g.commit(ctx, txType, post, token{VendorTxCode: vendorTxCode, Action: txType})
}

// newVendorTxCode sanitizes the order id or generates a unique code
func newVendorTxCode(orderID string) string {
	code := vendorTxCodeInvalid.ReplaceAllString(orderID, "")
	if code == "" {
		code = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return gateway.Truncate(code, 40)
}

func description(opts gateway.Options) string {
	if opts.Description != "" {
		return gateway.Truncate(opts.Description, 100)
	}
	if opts.OrderID != "" {
		return gateway.Truncate(opts.OrderID, 100)
	}
	return "Transaction"
}

func addRelatedTransaction(post url.Values, prefix string, t token) {
	post.Set(prefix+"VendorTxCode", t.VendorTxCode)
	post.Set(prefix+"VPSTxId", t.VPSTxID)
	post.Set(prefix+"SecurityKey", t.SecurityKey)
	if t.TxAuthNo != "" {
		post.Set(prefix+"TxAuthNo", t.TxAuthNo)
	}
}

func addAddress(post url.Values, prefix string, card *gateway.CreditCard, addr *gateway.Address) {
	if addr == nil {
		return
	}
	first, last := card.FirstName, card.LastName
	if name := strings.Fields(addr.Name); len(name) > 1 {
		first, last = strings.Join(name[:len(name)-1], " "), name[len(name)-1]
	}
	post.Set(prefix+"Firstnames", gateway.Truncate(first, 20))
	post.Set(prefix+"Surname", gateway.Truncate(last, 20))
	post.Set(prefix+"Address1", gateway.Truncate(addr.Address1, 100))
	if addr.Address2 != "" {
		post.Set(prefix+"Address2", gateway.Truncate(addr.Address2, 100))
	}
	post.Set(prefix+"City", gateway.Truncate(addr.City, 40))
	post.Set(prefix+"PostCode", gateway.Truncate(addr.Zip, 10))
	post.Set(prefix+"Country", addr.Country)
	if addr.Country == "US" && addr.State != "" {
		post.Set(prefix+"State", addr.State)
	}
	if addr.Phone != "" {
		post.Set(prefix+"Phone", gateway.Truncate(addr.Phone, 20))
	}
}

func (g *SagePayGateway) commit(ctx context.Context, txType string, post url.Values, t token) (*gateway.Response, error) {
	post.Set("VPSProtocol", protocolVersion)
	post.Set("TxType", txType)
	post.Set("Vendor", g.vendor)

	httpResp, err := g.httpClient.PostForm(ctx, endpoints[txType], post, nil)
	if err != nil {
		return nil, fmt.Errorf("sagepay: %s request failed: %w", strings.ToLower(txType), err)
	}

	params := gateway.ParseKeyValueLines(string(httpResp.Body))
	status := params["Status"]
	if status == "" {
		return nil, fmt.Errorf("sagepay: response without Status: %w", gateway.ErrResponse)
	}

	success := status == statusOK
	resp := gateway.NewResponse(success, params["StatusDetail"], params)
	resp.Test = !g.isProduction
	if !success {
		resp.ErrorCode = status
	}

	switch txType {
	case txPayment, txDeferred, txRefund:
		t.VPSTxID = params["VPSTxId"]
		t.TxAuthNo = params["TxAuthNo"]
		t.SecurityKey = params["SecurityKey"]
		if txType == txRefund {
			t.Action = txRefund
		}
		if t.VPSTxID != "" {
			resp.Authorization = t.String()
		}
	default:
		// modifications keep referring to the original transaction
		resp.Authorization = t.String()
	}

	resp.AVSResult = gateway.NewAVSResultFromMatches(matchCode(params["AddressResult"]), matchCode(params["PostCodeResult"]))
	resp.CVVResult = gateway.NewCVVResult(cv2Code(params["CV2Result"]))

	return resp, nil
}

func matchCode(result string) string {
	switch result {
	case "MATCHED":
		return "Y"
	case "NOTMATCHED":
		return "N"
	default:
		return ""
	}
}

func cv2Code(result string) string {
	switch result {
	case "MATCHED":
		return "M"
	case "NOTMATCHED":
		return "N"
	case "NOTCHECKED":
		return "P"
	case "NOTPROVIDED":
		return "S"
	default:
		return ""
	}
}
