package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/mstgnz/gomerchant/gateway"
)

const chargeSucceeded = `{
  "id": "ch_1GqIC8HYgolSBA35",
  "object": "charge",
  "amount": 400,
  "captured": true,
  "currency": "usd",
  "livemode": false,
  "paid": true,
  "status": "succeeded",
  "outcome": {"network_status": "approved_by_network", "risk_level": "normal", "type": "authorized"},
  "payment_method_details": {
    "type": "card",
    "card": {
      "brand": "visa",
      "last4": "4242",
      "checks": {"address_line1_check": "pass", "address_postal_code_check": "fail", "cvc_check": "pass"}
    }
  }
}`

const chargeReview = `{"id": "ch_review", "object": "charge", "paid": true, "status": "succeeded", "outcome": {"type": "manual_review"}}`

const cardDeclined = `{
  "error": {
    "charge": "ch_declined",
    "code": "card_declined",
    "decline_code": "generic_decline",
    "message": "Your card was declined.",
    "type": "card_error"
  }
}`

const refundSucceeded = `{"id": "re_1", "object": "refund", "amount": 400, "status": "succeeded"}`

const customerCreated = `{"id": "cus_1", "object": "customer", "livemode": false}`

const customerDeleted = `{"id": "cus_1", "object": "customer", "deleted": true}`

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

type capturedRequest struct {
	mu      sync.Mutex
	method  string
	path    string
	form    url.Values
	headers http.Header
}

func newTestGateway(t *testing.T, status int, reply string) (*StripeGateway, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		captured.mu.Lock()
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.form = r.PostForm
		captured.headers = r.Header.Clone()
		captured.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	g := NewGateway().(*StripeGateway)
	if err := g.Initialize(map[string]string{
		"secretKey":   "sk_test_123",
		"environment": "sandbox",
	}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	g.baseURL = server.URL
	g.httpClient = gateway.NewDefaultHTTPClient(server.URL)
	return g, captured
}

func TestValidateConfig(t *testing.T) {
	g := NewGateway()
	if err := g.ValidateConfig(map[string]string{"secretKey": "sk_test_123", "environment": "sandbox"}); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
	if err := g.ValidateConfig(map[string]string{"secretKey": "pk_test_123", "environment": "sandbox"}); err == nil {
		t.Error("expected error for publishable key")
	}
}

func TestPurchase(t *testing.T) {
	g, captured := newTestGateway(t, http.StatusOK, chargeSucceeded)

	resp, err := g.Purchase(context.Background(), 400, testCard(), gateway.Options{
		OrderID:        "order-1",
		Description:    "Widget",
		BillingAddress: &gateway.Address{Address1: "1 Main St", Zip: "94107", Country: "US"},
	})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	if !resp.Success || resp.Authorization != "ch_1GqIC8HYgolSBA35" || !resp.Test {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.AVSResult.Code != "A" {
		t.Errorf("AVS code = %q, want A", resp.AVSResult.Code)
	}
	if resp.CVVResult.Code != "M" {
		t.Errorf("CVV code = %q, want M", resp.CVVResult.Code)
	}

	if captured.method != http.MethodPost || captured.path != "/v1/charges" {
		t.Errorf("request %s %s", captured.method, captured.path)
	}
	if captured.headers.Get("Authorization") != "Bearer sk_test_123" {
		t.Errorf("Authorization header = %q", captured.headers.Get("Authorization"))
	}
	if captured.headers.Get("Idempotency-Key") == "" {
		t.Error("missing Idempotency-Key")
	}
	want := map[string]string{
		"amount":                "400",
		"currency":              "usd",
		"capture":               "true",
		"card[number]":          "4242424242424242",
		"card[exp_month]":       "9",
		"card[exp_year]":        "2030",
		"card[cvc]":             "123",
		"card[name]":            "Longbob Longsen",
		"card[address_line1]":   "1 Main St",
		"card[address_zip]":     "94107",
		"metadata[order_id]":    "order-1",
		"description":           "Widget",
		"card[address_country]": "US",
	}
	for key, value := range want {
		if got := captured.form.Get(key); got != value {
			t.Errorf("%s = %q, want %q", key, got, value)
		}
	}
}

func TestAuthorizeZeroDecimalCurrency(t *testing.T) {
	g, captured := newTestGateway(t, http.StatusOK, chargeSucceeded)

	if _, err := g.Authorize(context.Background(), 10000, testCard(), gateway.Options{Currency: "JPY"}); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if captured.form.Get("capture") != "false" || captured.form.Get("amount") != "100" || captured.form.Get("currency") != "jpy" {
		t.Errorf("unexpected form %v", captured.form)
	}
}

func TestCardDeclined(t *testing.T) {
	g, _ := newTestGateway(t, http.StatusPaymentRequired, cardDeclined)

	resp, err := g.Purchase(context.Background(), 400, testCard(), gateway.Options{})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if resp.Success || resp.Message != "Your card was declined." || resp.ErrorCode != "card_declined" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Authorization != "ch_declined" || resp.Params["decline_code"] != "generic_decline" {
		t.Errorf("unexpected declined details %+v", resp)
	}
}

func TestFraudReview(t *testing.T) {
	g, _ := newTestGateway(t, http.StatusOK, chargeReview)

	resp, err := g.Purchase(context.Background(), 400, testCard(), gateway.Options{})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if !resp.FraudReview {
		t.Error("manual_review outcome should flag fraud review")
	}
}

func TestPurchaseWithCustomer(t *testing.T) {
	g, captured := newTestGateway(t, http.StatusOK, chargeSucceeded)

	if _, err := g.Purchase(context.Background(), 400, nil, gateway.Options{BillingID: "cus_1"}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if captured.form.Get("customer") != "cus_1" || captured.form.Has("card[number]") {
		t.Errorf("unexpected form %v", captured.form)
	}
}

func TestReferenceTransactions(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		call  func(g *StripeGateway) (*gateway.Response, error)
		path  string
		want  map[string]string
		auth  string
	}{
		{
			name:  "capture",
			reply: chargeSucceeded,
			call: func(g *StripeGateway) (*gateway.Response, error) {
				return g.Capture(context.Background(), 300, "ch_1", gateway.Options{})
			},
			path: "/v1/charges/ch_1/capture",
			want: map[string]string{"amount": "300"},
			auth: "ch_1GqIC8HYgolSBA35",
		},
		{
			name:  "void",
			reply: refundSucceeded,
			call: func(g *StripeGateway) (*gateway.Response, error) {
				return g.Void(context.Background(), "ch_1", gateway.Options{})
			},
			path: "/v1/refunds",
			want: map[string]string{"charge": "ch_1", "amount": ""},
			auth: "re_1",
		},
		{
			name:  "credit",
			reply: refundSucceeded,
			call: func(g *StripeGateway) (*gateway.Response, error) {
				return g.Credit(context.Background(), 150, "ch_1", gateway.Options{Metadata: map[string]string{"reason": "requested_by_customer"}})
			},
			path: "/v1/refunds",
			want: map[string]string{"charge": "ch_1", "amount": "150", "reason": "requested_by_customer"},
			auth: "re_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, captured := newTestGateway(t, http.StatusOK, tt.reply)
			resp, err := tt.call(g)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if !resp.Success || resp.Authorization != tt.auth {
				t.Errorf("unexpected response %+v", resp)
			}
			if captured.path != tt.path {
				t.Errorf("path = %q, want %q", captured.path, tt.path)
			}
			for key, value := range tt.want {
				if got := captured.form.Get(key); got != value {
					t.Errorf("%s = %q, want %q", key, got, value)
				}
			}
		})
	}
}

func TestStoreAndUnstore(t *testing.T) {
	g, captured := newTestGateway(t, http.StatusOK, customerCreated)

	resp, err := g.Store(context.Background(), testCard(), gateway.Options{Email: "jim@example.com"})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !resp.Success || resp.Authorization != "cus_1" {
		t.Errorf("unexpected store response %+v", resp)
	}
	if captured.path != "/v1/customers" || captured.form.Get("email") != "jim@example.com" {
		t.Errorf("unexpected store request %s %v", captured.path, captured.form)
	}

	g, captured = newTestGateway(t, http.StatusOK, customerDeleted)
	resp, err = g.Unstore(context.Background(), "cus_1", gateway.Options{})
	if err != nil {
		t.Fatalf("Unstore() error = %v", err)
	}
	if !resp.Success || resp.Params["deleted"] != "true" {
		t.Errorf("unexpected unstore response %+v", resp)
	}
	if captured.method != http.MethodDelete || captured.path != "/v1/customers/cus_1" {
		t.Errorf("request %s %s", captured.method, captured.path)
	}
}

func TestErrorResponses(t *testing.T) {
	t.Run("server error without envelope", func(t *testing.T) {
		g, _ := newTestGateway(t, http.StatusBadGateway, `{}`)
		_, err := g.Void(context.Background(), "ch_1", gateway.Options{})
		var respErr *gateway.ResponseError
		if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusBadGateway {
			t.Errorf("expected ResponseError 502, got %v", err)
		}
	})

	t.Run("non JSON body", func(t *testing.T) {
		g, _ := newTestGateway(t, http.StatusOK, "<html>")
		_, err := g.Void(context.Background(), "ch_1", gateway.Options{})
		if !errors.Is(err, gateway.ErrResponse) {
			t.Errorf("expected ErrResponse, got %v", err)
		}
	})

	t.Run("invalid request", func(t *testing.T) {
		g, _ := newTestGateway(t, http.StatusBadRequest, `{"error": {"type": "invalid_request_error", "message": "No such charge: ch_x", "param": "charge"}}`)
		resp, err := g.Void(context.Background(), "ch_x", gateway.Options{})
		if err != nil {
			t.Fatalf("Void() error = %v", err)
		}
		if resp.Success || resp.ErrorCode != "invalid_request_error" {
			t.Errorf("unexpected response %+v", resp)
		}
	})
}
