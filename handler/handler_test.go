package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/gateway/bogus"
	"github.com/mstgnz/gomerchant/gateway/stripe"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	router   chi.Router
	registry *gateway.Registry
	accounts *config.AccountConfig
	service  *gateway.Service
	cache    *gateway.LRUCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := gateway.NewRegistry()
	registry.Register("bogus", bogus.NewGateway)
	registry.Register("stripe", stripe.NewGateway)

	accounts := config.NewAccountConfig(nil)
	cache := gateway.NewLRUCache(10, 0)
	service := gateway.NewService(registry, accounts, cache, nil)

	configHandler := NewConfigHandler(accounts, registry, service)
	gatewayHandler := NewGatewayHandler(registry)
	paymentHandler := NewPaymentHandler(service, registry, config.App().Validator)
	webhookHandler := NewWebhookHandler(accounts)

	r := chi.NewRouter()
	r.Get("/v1/gateways", gatewayHandler.ListGateways)
	r.Get("/v1/gateways/{gateway}", gatewayHandler.GetGateway)
	r.Get("/v1/accounts/{account}", configHandler.ListAccountGateways)
	r.Put("/v1/accounts/{account}/{gateway}", configHandler.SetConfig)
	r.Get("/v1/accounts/{account}/{gateway}", configHandler.GetConfig)
	r.Delete("/v1/accounts/{account}/{gateway}", configHandler.DeleteConfig)
	r.Post("/v1/accounts/{account}/{gateway}/{operation}", paymentHandler.Operation)
	r.Post("/webhooks/stripe/{account}", webhookHandler.StripeWebhook)

	return &testEnv{
		router:   r,
		registry: registry,
		accounts: accounts,
		service:  service,
		cache:    cache,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	var env envelope
	decodeBody(t, rr, &env)
	return rr, env
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), "body: %s", rr.Body.String())
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func bogusCard(number string) *gateway.CreditCard {
	return &gateway.CreditCard{
		FirstName: "Longbob",
		LastName:  "Longsen",
		Number:    number,
		Month:     9,
		Year:      2030,
		Brand:     gateway.BrandBogus,
	}
}

