package datacash

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mstgnz/gomerchant/gateway"
)

const acceptedResponse = `<?xml version="1.0" encoding="ISO-8859-1"?>
<Response>
  <CardTxn>
    <Cv2Avs>
      <cv2avs_status>ALL MATCH</cv2avs_status>
    </Cv2Avs>
    <authcode>123456</authcode>
    <card_scheme>Visa</card_scheme>
    <country>United Kingdom</country>
  </CardTxn>
  <datacash_reference>4400200045583767</datacash_reference>
  <merchantreference>AA004630</merchantreference>
  <mode>TEST</mode>
  <reason>ACCEPTED</reason>
  <status>1</status>
  <time>1169223906</time>
</Response>`

const declinedResponse = `<Response>
  <CardTxn>
    <authcode>DECLINED</authcode>
  </CardTxn>
  <datacash_reference>4400200045583768</datacash_reference>
  <mode>TEST</mode>
  <reason>DECLINED</reason>
  <status>7</status>
</Response>`

const historicResponse = `<Response>
  <datacash_reference>4400200045583767</datacash_reference>
  <mode>TEST</mode>
  <reason>FULFILLED OK</reason>
  <status>1</status>
</Response>`

func testCard() *gateway.CreditCard {
	return &gateway.CreditCard{
		FirstName:         "Longbob",
		LastName:          "Longsen",
		Number:            "4242424242424242",
		Month:             9,
		Year:              2030,
		VerificationValue: "123",
	}
}

func newTestGateway(t *testing.T, reply string) (*DataCashGateway, *string) {
	t.Helper()
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	g := NewGateway().(*DataCashGateway)
	if err := g.Initialize(map[string]string{
		"login":       "99000001",
		"password":    "secret",
		"environment": "sandbox",
	}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	g.baseURL = server.URL
	g.httpClient = gateway.NewDefaultHTTPClient(server.URL)
	return g, &captured
}

func TestValidateConfig(t *testing.T) {
	g := NewGateway()
	if err := g.ValidateConfig(map[string]string{"login": "99000001", "password": "secret", "environment": "sandbox"}); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
	if err := g.ValidateConfig(map[string]string{"login": "abc", "password": "secret", "environment": "sandbox"}); err == nil {
		t.Error("expected pattern error for non-numeric client id")
	}
}

func TestPurchase(t *testing.T) {
	g, captured := newTestGateway(t, acceptedResponse)

	resp, err := g.Purchase(context.Background(), 198, testCard(), gateway.Options{
		OrderID:        "AA004630",
		BillingAddress: &gateway.Address{Address1: "1 Market Street", City: "London", Zip: "SW1A 1AA", Country: "GB"},
	})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	if !resp.Success || resp.Message != "ACCEPTED" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Authorization != "4400200045583767;123456;" {
		t.Errorf("Authorization = %q", resp.Authorization)
	}
	if resp.AVSResult.Code != "Y" || resp.CVVResult.Code != "M" {
		t.Errorf("AVS %q CVV %q", resp.AVSResult.Code, resp.CVVResult.Code)
	}
	if !resp.Test {
		t.Error("TEST mode responses are test responses")
	}

	for _, fragment := range []string{
		`<Authentication><client>99000001</client><password>secret</password></Authentication>`,
		`<method>auth</method>`,
		`<pan>4242424242424242</pan>`,
		`<expirydate>09/30</expirydate>`,
		`<street_address1>1 Market Street</street_address1>`,
		`<postcode>SW1A 1AA</postcode>`,
		`<cv2>123</cv2>`,
		`<merchantreference>AA004630</merchantreference>`,
		`<amount currency="GBP">1.98</amount>`,
	} {
		if !strings.Contains(*captured, fragment) {
			t.Errorf("request missing %s\n%s", fragment, *captured)
		}
	}
}

func TestAuthorizeDeclined(t *testing.T) {
	g, captured := newTestGateway(t, declinedResponse)

	resp, err := g.Authorize(context.Background(), 100, testCard(), gateway.Options{OrderID: "ORDER-0001", Currency: "eur"})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if resp.Success || resp.ErrorCode != "7" || resp.Message != "DECLINED" {
		t.Errorf("unexpected response %+v", resp)
	}
	if !strings.Contains(*captured, "<method>pre</method>") || !strings.Contains(*captured, `<amount currency="EUR">1.00</amount>`) {
		t.Errorf("unexpected request\n%s", *captured)
	}
}

func TestMerchantReference(t *testing.T) {
	ref, err := merchantReference("")
	if err != nil || len(ref) != 30 {
		t.Errorf("generated reference %q, err %v", ref, err)
	}
	if _, err := merchantReference("abc"); !errors.Is(err, gateway.ErrInvalidField) {
		t.Errorf("expected ErrMissingField for short reference, got %v", err)
	}
	ref, _ = merchantReference(strings.Repeat("x", 40))
	if len(ref) != 30 {
		t.Errorf("reference not truncated: %d", len(ref))
	}
}

func TestCapture(t *testing.T) {
	g, captured := newTestGateway(t, historicResponse)

	resp, err := g.Capture(context.Background(), 100, "4400200045583767;123456;", gateway.Options{})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !resp.Success || resp.Authorization != "4400200045583767" {
		t.Errorf("unexpected response %+v", resp)
	}
	fragment := `<HistoricTxn><method>fulfill</method><authcode>123456</authcode><reference>4400200045583767</reference></HistoricTxn>`
	if !strings.Contains(*captured, fragment) {
		t.Errorf("request missing %s\n%s", fragment, *captured)
	}
}

func TestCaptureRequiresAuthCode(t *testing.T) {
	g, _ := newTestGateway(t, historicResponse)

	_, err := g.Capture(context.Background(), 100, "4400200045583767", gateway.Options{})
	if !errors.Is(err, gateway.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestVoidAndCredit(t *testing.T) {
	g, captured := newTestGateway(t, historicResponse)

	if _, err := g.Void(context.Background(), "4400200045583767;123456;", gateway.Options{}); err != nil {
		t.Fatalf("Void() error = %v", err)
	}
	if !strings.Contains(*captured, `<HistoricTxn><method>cancel</method><reference>4400200045583767</reference></HistoricTxn>`) {
		t.Errorf("unexpected void request\n%s", *captured)
	}
	if strings.Contains(*captured, "<TxnDetails>") {
		t.Error("void must not send an amount")
	}

	if _, err := g.Credit(context.Background(), 50, "4400200045583767;123456;", gateway.Options{}); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if !strings.Contains(*captured, "<method>txn_refund</method>") || !strings.Contains(*captured, `<amount currency="GBP">0.50</amount>`) {
		t.Errorf("unexpected credit request\n%s", *captured)
	}
}

func TestStoreNotSupported(t *testing.T) {
	g, _ := newTestGateway(t, acceptedResponse)

	if _, err := g.Store(context.Background(), testCard(), gateway.Options{}); !errors.Is(err, gateway.ErrNotSupported) {
		t.Errorf("Store() expected ErrNotSupported, got %v", err)
	}
	if _, err := g.Unstore(context.Background(), "1", gateway.Options{}); !errors.Is(err, gateway.ErrNotSupported) {
		t.Errorf("Unstore() expected ErrNotSupported, got %v", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	g, _ := newTestGateway(t, "not xml")

	_, err := g.Void(context.Background(), "1", gateway.Options{})
	if !errors.Is(err, gateway.ErrResponse) {
		t.Errorf("expected ErrResponse, got %v", err)
	}
}
