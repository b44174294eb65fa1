package moneris

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/gateway"
)

const (
	// API URLs
	apiSandboxURL    = "https://esqa.moneris.com/gateway2/servlet/MpgRequest"
	apiProductionURL = "https://www3.moneris.com/gateway2/servlet/MpgRequest"

	// Transaction types
	txnPurchase           = "purchase"
	txnPreauth            = "preauth"
	txnCompletion         = "completion"
	txnPurchaseCorrection = "purchasecorrection"
	txnRefund             = "refund"
	txnResAddCC           = "res_add_cc"
	txnResDelete          = "res_delete"
	txnResPurchaseCC      = "res_purchase_cc"
	txnResPreauthCC       = "res_preauth_cc"

	// SSL-enabled merchant
	cryptType = "7"

	tokenSeparator = ";"
)

// MonerisGateway implements gateway.Gateway for Moneris eSelect Plus
type MonerisGateway struct {
	storeID      string
	apiToken     string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new Moneris gateway
func NewGateway() gateway.Gateway {
	return &MonerisGateway{}
}

func (g *MonerisGateway) Name() string {
	return "moneris"
}

func (g *MonerisGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "moneris",
		DisplayName:        "Moneris eSelect Plus",
		Homepage:           "http://www.moneris.com/",
		SupportedCountries: []string{"CA"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDinersClub, gateway.BrandDiscover},
		DefaultCurrency:    "CAD",
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *MonerisGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "Moneris store id",
			Example:     "store1",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "Moneris API token",
			Example:     "yesguy",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *MonerisGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *MonerisGateway) Initialize(config map[string]string) error {
	g.storeID = config["login"]
	g.apiToken = config["password"]
	if g.storeID == "" || g.apiToken == "" {
		return errors.New("moneris: login and password are required")
	}

	g.isProduction = gateway.IsProduction(config)
	g.baseURL = apiSandboxURL
	if g.isProduction {
		g.baseURL = apiProductionURL
	}
	g.httpClient = gateway.NewDefaultHTTPClient(g.baseURL)

	return nil
}

type request struct {
	XMLName  xml.Name `xml:"request"`
	StoreID  string   `xml:"store_id"`
	APIToken string   `xml:"api_token"`
	Txn      txn
}

// txn is rendered under the element named by XMLName; field order follows the MPG DTD
type txn struct {
	XMLName    xml.Name
	DataKey    string `xml:"data_key,omitempty"`
	OrderID    string `xml:"order_id,omitempty"`
	CustID     string `xml:"cust_id,omitempty"`
	Amount     string `xml:"amount,omitempty"`
	CompAmount string `xml:"comp_amount,omitempty"`
	TxnNumber  string `xml:"txn_number,omitempty"`
	Pan        string `xml:"pan,omitempty"`
	ExpDate    string `xml:"expdate,omitempty"`
	CryptType  string `xml:"crypt_type,omitempty"`
}

type receipt struct {
	ReceiptID    string `xml:"ReceiptId"`
	ReferenceNum string `xml:"ReferenceNum"`
	ResponseCode string `xml:"ResponseCode"`
	ISO          string `xml:"ISO"`
	AuthCode     string `xml:"AuthCode"`
	TransType    string `xml:"TransType"`
	Complete     string `xml:"Complete"`
	Message      string `xml:"Message"`
	TransAmount  string `xml:"TransAmount"`
	CardType     string `xml:"CardType"`
	TransID      string `xml:"TransID"`
	TimedOut     string `xml:"TimedOut"`
	DataKey      string `xml:"DataKey"`
	ResSuccess   string `xml:"ResSuccess"`
	AvsResult    string `xml:"AvsResultCode"`
	CvdResult    string `xml:"CvdResultCode"`
}

type response struct {
	XMLName xml.Name `xml:"response"`
	Receipt receipt  `xml:"receipt"`
}

func (g *MonerisGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if opts.BillingID != "" {
		return g.vaultTransaction(ctx, txnResPreauthCC, money, opts)
	}
	return g.cardTransaction(ctx, txnPreauth, money, card, opts)
}

// Purchase charges the card, or the vault profile named by opts.BillingID
func (g *MonerisGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if opts.BillingID != "" {
		return g.vaultTransaction(ctx, txnResPurchaseCC, money, opts)
	}
	return g.cardTransaction(ctx, txnPurchase, money, card, opts)
}

func (g *MonerisGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	transID, orderID, err := g.splitToken(authorization)
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, txn{
		XMLName:    xml.Name{Local: txnCompletion},
		OrderID:    orderID,
		CompAmount: gateway.FormatAmount(money, gateway.MoneyDollars),
		TxnNumber:  transID,
		CryptType:  cryptType,
	})
}

func (g *MonerisGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	transID, orderID, err := g.splitToken(authorization)
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, txn{
		XMLName:   xml.Name{Local: txnPurchaseCorrection},
		OrderID:   orderID,
		TxnNumber: transID,
		CryptType: cryptType,
	})
}

func (g *MonerisGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	transID, orderID, err := g.splitToken(identification)
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, txn{
		XMLName:   xml.Name{Local: txnRefund},
		OrderID:   orderID,
		Amount:    gateway.FormatAmount(money, gateway.MoneyDollars),
		TxnNumber: transID,
		CryptType: cryptType,
	})
}

// Store adds the card to the Moneris vault; the data key becomes the authorization
func (g *MonerisGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	return g.commit(ctx, txn{
		XMLName:   xml.Name{Local: txnResAddCC},
		CustID:    opts.Customer,
		Pan:       card.Digits(),
		ExpDate:   card.ExpiryYYMM(),
		CryptType: cryptType,
	})
}

func (g *MonerisGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	if identification == "" {
		return nil, gateway.MissingField(g.Name(), "data key")
	}
	return g.commit(ctx, txn{
		XMLName: xml.Name{Local: txnResDelete},
		DataKey: identification,
	})
}

func (g *MonerisGateway) cardTransaction(ctx context.Context, kind string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	return g.commit(ctx, txn{
		XMLName:   xml.Name{Local: kind},
		OrderID:   orderID(opts),
		CustID:    opts.Customer,
		Amount:    gateway.FormatAmount(money, gateway.MoneyDollars),
		Pan:       card.Digits(),
		ExpDate:   card.ExpiryYYMM(),
		CryptType: cryptType,
	})
}

func (g *MonerisGateway) vaultTransaction(ctx context.Context, kind string, money int64, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	return g.commit(ctx, txn{
		XMLName:   xml.Name{Local: kind},
		DataKey:   opts.BillingID,
		OrderID:   orderID(opts),
		CustID:    opts.Customer,
		Amount:    gateway.FormatAmount(money, gateway.MoneyDollars),
		CryptType: cryptType,
	})
}

func orderID(opts gateway.Options) string {
	if opts.OrderID != "" {
		return opts.OrderID
	}
	return uuid.NewString()
}

func (g *MonerisGateway) splitToken(token string) (transID, orderID string, err error) {
	parts := gateway.SplitAuthorization(token, tokenSeparator, 2)
	if parts[0] == "" || parts[1] == "" {
		return "", "", gateway.MissingField(g.Name(), "authorization (TransID;order_id)")
	}
	return parts[0], parts[1], nil
}

func (g *MonerisGateway) commit(ctx context.Context, t txn) (*gateway.Response, error) {
	body, err := gateway.MarshalXML(request{StoreID: g.storeID, APIToken: g.apiToken, Txn: t}, "")
	if err != nil {
		return nil, fmt.Errorf("moneris: %w", err)
	}

	httpResp, err := g.httpClient.PostXML(ctx, "", body, nil)
	if err != nil {
		return nil, fmt.Errorf("moneris: request failed: %w", err)
	}

	var doc response
	if err := gateway.UnmarshalXML(httpResp.Body, &doc); err != nil {
		return nil, fmt.Errorf("moneris: %w", err)
	}

	return g.buildResponse(doc.Receipt, t), nil
}

func (g *MonerisGateway) buildResponse(r receipt, t txn) *gateway.Response {
	params := map[string]string{
		"receipt_id":    r.ReceiptID,
		"reference_num": r.ReferenceNum,
		"response_code": r.ResponseCode,
		"iso":           r.ISO,
		"auth_code":     r.AuthCode,
		"trans_type":    r.TransType,
		"complete":      r.Complete,
		"message":       r.Message,
		"trans_amount":  r.TransAmount,
		"card_type":     r.CardType,
		"trans_id":      r.TransID,
		"timed_out":     r.TimedOut,
		"data_key":      r.DataKey,
		"res_success":   r.ResSuccess,
	}

	vault := t.XMLName.Local == txnResAddCC || t.XMLName.Local == txnResDelete

	var success bool
	if vault {
		success = strings.EqualFold(r.ResSuccess, "true")
	} else {
		success = approved(r)
	}

	resp := gateway.NewResponse(success, strings.TrimSpace(r.Message), params)
	resp.Test = !g.isProduction
	if !success {
		resp.ErrorCode = r.ResponseCode
	}

	if vault {
		resp.Authorization = r.DataKey
	} else if r.TransID != "" {
		resp.Authorization = gateway.JoinAuthorization(tokenSeparator, r.TransID, r.ReceiptID)
	}

	resp.AVSResult = gateway.NewAVSResult(r.AvsResult)
	resp.CVVResult = gateway.NewCVVResult(cvdCode(r.CvdResult))

	return resp
}

// approved requires a completed receipt with a response code below 50
func approved(r receipt) bool {
	if !strings.EqualFold(r.Complete, "true") {
		return false
	}
	code, err := strconv.Atoi(strings.TrimSpace(r.ResponseCode))
	if err != nil {
		return false
	}
	return code >= 0 && code < 50
}

// cvdCode drops the leading card-type digit from a CVD result such as "1M"
func cvdCode(result string) string {
	result = strings.TrimSpace(result)
	if len(result) == 2 {
		return result[1:]
	}
	return ""
}
