package datacash

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
	apiSandboxURL    = "https://testserver.datacash.com/Transaction"
	apiProductionURL = "https://mars.datacash.com/Transaction"

	// Transaction methods
	methodAuth    = "auth"
	methodPre     = "pre"
	methodFulfill = "fulfill"
	methodCancel  = "cancel"
	methodRefund  = "txn_refund"

	statusAccepted  = "1"
	defaultCurrency = "GBP"

	tokenSeparator = ";"
)

// DataCashGateway implements gateway.Gateway for the DataCash XML API
type DataCashGateway struct {
	client       string
	password     string
	isProduction bool
	baseURL      string
	httpClient   *gateway.HTTPClient
}

// NewGateway creates a new DataCash gateway
func NewGateway() gateway.Gateway {
	return &DataCashGateway{}
}

func (g *DataCashGateway) Name() string {
	return "datacash"
}

func (g *DataCashGateway) Info() gateway.Info {
	return gateway.Info{
		Name:               "datacash",
		DisplayName:        "DataCash",
		Homepage:           "http://www.datacash.com/",
		SupportedCountries: []string{"GB"},
		SupportedBrands:    []string{gateway.BrandVisa, gateway.BrandMaster, gateway.BrandAmericanExpress, gateway.BrandDiscover, gateway.BrandDinersClub, gateway.BrandJCB, gateway.BrandMaestro, gateway.BrandSwitch, gateway.BrandSolo, gateway.BrandLaser},
		DefaultCurrency:    defaultCurrency,
		MoneyFormat:        gateway.MoneyDollars,
	}
}

func (g *DataCashGateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{
			Key:         "login",
			Required:    true,
			Type:        "string",
			Description: "DataCash client id",
			Example:     "99000001",
			Pattern:     "^[0-9]+$",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "DataCash client password",
			Example:     "secret",
			Secret:      true,
		},
		gateway.EnvironmentField(),
	}
}

func (g *DataCashGateway) ValidateConfig(config map[string]string) error {
	return gateway.ValidateConfigFields(g.Name(), config, g.GetRequiredConfig())
}

func (g *DataCashGateway) Initialize(config map[string]string) error {
	g.client = config["login"]
	g.password = config["password"]
	if g.client == "" || g.password == "" {
		return errors.New("datacash: login and password are required")
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
	XMLName        xml.Name       `xml:"Request"`
	Authentication authentication `xml:"Authentication"`
	Transaction    transaction    `xml:"Transaction"`
}

type authentication struct {
	Client   string `xml:"client"`
	Password string `xml:"password"`
}

type transaction struct {
	CardTxn     *cardTxn     `xml:"CardTxn,omitempty"`
	HistoricTxn *historicTxn `xml:"HistoricTxn,omitempty"`
	TxnDetails  *txnDetails  `xml:"TxnDetails,omitempty"`
}

type cardTxn struct {
	Method string  `xml:"method"`
	Card   xmlCard `xml:"Card"`
}

type xmlCard struct {
	Pan         string  `xml:"pan"`
	ExpiryDate  string  `xml:"expirydate"`
	IssueNumber string  `xml:"issuenumber,omitempty"`
	Cv2Avs      *cv2Avs `xml:"Cv2Avs,omitempty"`
}

type cv2Avs struct {
	StreetAddress1 string `xml:"street_address1,omitempty"`
	StreetAddress2 string `xml:"street_address2,omitempty"`
	StreetAddress3 string `xml:"street_address3,omitempty"`
	StreetAddress4 string `xml:"street_address4,omitempty"`
	Postcode       string `xml:"postcode,omitempty"`
	Cv2            string `xml:"cv2,omitempty"`
}

type historicTxn struct {
	Method    string `xml:"method"`
	AuthCode  string `xml:"authcode,omitempty"`
	Reference string `xml:"reference"`
}

type txnDetails struct {
	MerchantReference string `xml:"merchantreference,omitempty"`
	Amount            amount `xml:"amount"`
}

type amount struct {
	Currency string `xml:"currency,attr"`
	Value    string `xml:",chardata"`
}

type response struct {
	XMLName           xml.Name `xml:"Response"`
	Status            string   `xml:"status"`
	Reason            string   `xml:"reason"`
	Information       string   `xml:"information"`
	Mode              string   `xml:"mode"`
	DatacashReference string   `xml:"datacash_reference"`
	MerchantReference string   `xml:"merchantreference"`
	AuthCode          string   `xml:"CardTxn>authcode"`
	CardScheme        string   `xml:"CardTxn>card_scheme"`
	Country           string   `xml:"CardTxn>country"`
	Cv2AvsStatus      string   `xml:"CardTxn>Cv2Avs>cv2avs_status"`
	CAReference       string   `xml:"ContAuthTxn>ca_reference"`
}

func (g *DataCashGateway) Authorize(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, methodPre, money, card, opts)
}

func (g *DataCashGateway) Purchase(ctx context.Context, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return g.cardTransaction(ctx, methodAuth, money, card, opts)
}

// Capture fulfils a pre-authorization using the reference and authcode from its token
func (g *DataCashGateway) Capture(ctx context.Context, money int64, authorization string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	reference, authCode, _ := splitToken(authorization)
	if reference == "" || authCode == "" {
		return nil, gateway.MissingField(g.Name(), "authorization reference and authcode")
	}
	return g.commit(ctx, transaction{
		HistoricTxn: &historicTxn{Method: methodFulfill, AuthCode: authCode, Reference: reference},
		TxnDetails:  &txnDetails{Amount: g.amount(money, opts)},
	})
}

func (g *DataCashGateway) Void(ctx context.Context, authorization string, opts gateway.Options) (*gateway.Response, error) {
	reference, _, _ := splitToken(authorization)
	if reference == "" {
		return nil, gateway.MissingField(g.Name(), "authorization reference")
	}
	return g.commit(ctx, transaction{
		HistoricTxn: &historicTxn{Method: methodCancel, Reference: reference},
	})
}

func (g *DataCashGateway) Credit(ctx context.Context, money int64, identification string, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	reference, _, _ := splitToken(identification)
	if reference == "" {
		return nil, gateway.MissingField(g.Name(), "authorization reference")
	}
	return g.commit(ctx, transaction{
		HistoricTxn: &historicTxn{Method: methodRefund, Reference: reference},
		TxnDetails:  &txnDetails{Amount: g.amount(money, opts)},
	})
}

func (g *DataCashGateway) Store(ctx context.Context, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpStore)
}

func (g *DataCashGateway) Unstore(ctx context.Context, identification string, opts gateway.Options) (*gateway.Response, error) {
	return nil, gateway.NotSupported(g.Name(), gateway.OpUnstore)
}

func (g *DataCashGateway) amount(money int64, opts gateway.Options) amount {
	return amount{
		Currency: opts.CurrencyOr(defaultCurrency),
		Value:    gateway.FormatAmount(money, gateway.MoneyDollars),
	}
}

func (g *DataCashGateway) cardTransaction(ctx context.Context, method string, money int64, card *gateway.CreditCard, opts gateway.Options) (*gateway.Response, error) {
	if err := gateway.CheckAmount(money); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, gateway.MissingField(g.Name(), "card")
	}
	reference, err := merchantReference(opts.OrderID)
	if err != nil {
		return nil, err
	}

	xc := xmlCard{
		Pan:        card.Digits(),
		ExpiryDate: fmt.Sprintf("%02d/%02d", card.Month, card.Year%100),
		Cv2Avs:     newCv2Avs(card, opts.Address()),
	}
	if issue := opts.Metadata["issue_number"]; issue != "" {
		xc.IssueNumber = issue
	}

	return g.commit(ctx, transaction{
		CardTxn: &cardTxn{Method: method, Card: xc},
		TxnDetails: &txnDetails{
			MerchantReference: reference,
			Amount:            g.amount(money, opts),
		},
	})
}

// merchantReference returns a 6 to 30 character reference, generating one when absent
func merchantReference(orderID string) (string, error) {
	if orderID == "" {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:30], nil
	}
	if len(orderID) < 6 {
		return "", gateway.InvalidField("datacash", "order id", "must be at least 6 characters")
	}
	return gateway.Truncate(orderID, 30), nil
}

func newCv2Avs(card *gateway.CreditCard, addr *gateway.Address) *cv2Avs {
	c := &cv2Avs{Cv2: card.VerificationValue}
	if addr != nil {
		c.StreetAddress1 = addr.Address1
		c.StreetAddress2 = addr.Address2
		c.StreetAddress3 = addr.City
		c.StreetAddress4 = addr.State
		c.Postcode = addr.Zip
	}
	if *c == (cv2Avs{}) {
		return nil
	}
	return c
}

func (g *DataCashGateway) commit(ctx context.Context, tx transaction) (*gateway.Response, error) {
	body, err := gateway.MarshalXML(request{
		Authentication: authentication{Client: g.client, Password: g.password},
		Transaction:    tx,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("datacash: %w", err)
	}

	httpResp, err := g.httpClient.PostXML(ctx, "", body, nil)
	if err != nil {
		return nil, fmt.Errorf("datacash: request failed: %w", err)
	}

	var doc response
	if err := gateway.UnmarshalXML(httpResp.Body, &doc); err != nil {
		return nil, fmt.Errorf("datacash: %w", err)
	}

	return g.buildResponse(doc, tx), nil
}

func (g *DataCashGateway) buildResponse(doc response, tx transaction) *gateway.Response {
	params := map[string]string{
		"status":             doc.Status,
		"reason":             doc.Reason,
		"information":        doc.Information,
		"mode":               doc.Mode,
		"datacash_reference": doc.DatacashReference,
		"merchantreference":  doc.MerchantReference,
		"authcode":           doc.AuthCode,
		"card_scheme":        doc.CardScheme,
		"country":            doc.Country,
		"cv2avs_status":      doc.Cv2AvsStatus,
		"ca_reference":       doc.CAReference,
	}

	message := doc.Reason
	if doc.Information != "" && doc.Status != statusAccepted {
		message = doc.Reason + ": " + doc.Information
	}

	resp := gateway.NewResponse(doc.Status == statusAccepted, message, params)
	resp.Test = strings.EqualFold(doc.Mode, "TEST") || !g.isProduction
	if !resp.Success {
		resp.ErrorCode = doc.Status
	}

	// Only card transactions produce a token reusable by fulfill/cancel/refund
	if tx.CardTxn != nil {
		resp.Authorization = gateway.JoinAuthorization(tokenSeparator, doc.DatacashReference, doc.AuthCode, doc.CAReference)
	} else {
		resp.Authorization = doc.DatacashReference
	}

	street, postal, cvv := cv2AvsCodes(doc.Cv2AvsStatus)
	resp.AVSResult = gateway.NewAVSResultFromMatches(street, postal)
	resp.CVVResult = gateway.NewCVVResult(cvv)

	return resp
}

func splitToken(token string) (reference, authCode, caReference string) {
	parts := gateway.SplitAuthorization(token, tokenSeparator, 3)
	return parts[0], parts[1], parts[2]
}

func cv2AvsCodes(status string) (street, postal, cvv string) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ALL MATCH":
		return "Y", "Y", "M"
	case "SECURITY CODE MATCH ONLY":
		return "N", "N", "M"
	case "ADDRESS MATCH ONLY":
		return "Y", "Y", "N"
	case "NO DATA MATCHES":
		return "N", "N", "N"
	case "DATA NOT CHECKED":
		return "", "", "P"
	default:
		return "", "", ""
	}
}
