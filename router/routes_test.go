package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/gateway/bogus"
	"github.com/mstgnz/gomerchant/handler"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T, mutate func(*config.AppConfig)) http.Handler {
	t.Helper()

	cfg := &config.AppConfig{
		APIKey:           testAPIKey,
		AllowedOrigins:   "https://shop.example.com",
		RateLimit:        100,
		TransactionLimit: 50,
	}
	if mutate != nil {
		mutate(cfg)
	}

	registry := gateway.NewRegistry()
	registry.Register("bogus", bogus.NewGateway)
	accounts := config.NewAccountConfig(nil)

	h, stop := New(Deps{
		Config:   cfg,
		Registry: registry,
		Accounts: accounts,
		Service:  gateway.NewService(registry, accounts, gateway.NewLRUCache(10, 0), nil),
		Health:   handler.HealthOptions{Storage: okPinger{}},
	})
	t.Cleanup(stop)
	return h
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAPIKey}
}

func TestRoutes_Public(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := serve(h, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = serve(h, "GET", "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
}

func TestRoutes_Authentication(t *testing.T) {
	h := newTestRouter(t, nil)

	tests := []struct {
		name       string
		headers    map[string]string
		expectCode int
	}{
		{"missing_token", nil, http.StatusUnauthorized},
		{"wrong_token", map[string]string{"Authorization": "Bearer wrong"}, http.StatusUnauthorized},
		{"valid_token", authHeader(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, "GET", "/v1/gateways", "", tt.headers)
			assert.Equal(t, tt.expectCode, rr.Code)
		})
	}
}

func TestRoutes_EndpointRegistration(t *testing.T) {
	h := newTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		expectCode int
	}{
		{"list_gateways", "GET", "/v1/gateways", "", http.StatusOK},
		{"get_gateway", "GET", "/v1/gateways/bogus", "", http.StatusOK},
		{"list_account_gateways", "GET", "/v1/accounts/shop-1", "", http.StatusOK},
		{"get_missing_config", "GET", "/v1/accounts/shop-1/bogus", "", http.StatusNotFound},
		{"transactions_without_reader", "GET", "/v1/transactions", "", http.StatusNotImplemented},
		{"stats_without_opensearch", "GET", "/v1/stats/bogus", "", http.StatusNotImplemented},
		{"method_not_allowed", "PATCH", "/v1/gateways", `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.method, tt.path, tt.body, authHeader())
			assert.Equal(t, tt.expectCode, rr.Code, rr.Body.String())
		})
	}
}

func TestRoutes_PurchaseFlow(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := serve(h, "PUT", "/v1/accounts/shop-1/bogus", `{"environment":"test"}`, authHeader())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := `{"amount":1000,"card":{"firstName":"Longbob","lastName":"Longsen","number":"1","month":9,"year":2030,"brand":"bogus"}}`
	rr = serve(h, "POST", "/v1/accounts/shop-1/bogus/purchase", body, authHeader())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Success bool             `json:"success"`
		Data    gateway.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "53433", resp.Data.Authorization)

	rr = serve(h, "POST", "/v1/accounts/shop-1/bogus/void", `{"authorization":"2"}`, authHeader())
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
}

func TestRoutes_RequestValidation(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest("POST", "/v1/accounts/shop-1/bogus/purchase", strings.NewReader("amount=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestRoutes_CORS(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := serve(h, "OPTIONS", "/v1/gateways", "", map[string]string{
		"Origin":                        "https://shop.example.com",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = serve(h, "OPTIONS", "/v1/gateways", "", map[string]string{
		"Origin":                        "https://evil.example.com",
		"Access-Control-Request-Method": "GET",
	})
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_IPWhitelist(t *testing.T) {
	h := newTestRouter(t, func(cfg *config.AppConfig) {
		cfg.IPWhitelist = "10.0.0.1"
	})

	rr := serve(h, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// forwarding headers from an untrusted peer are ignored
	rr = serve(h, "GET", "/health", "", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRoutes_IPWhitelistBehindTrustedProxy(t *testing.T) {
	h := newTestRouter(t, func(cfg *config.AppConfig) {
		cfg.IPWhitelist = "10.0.0.1"
		cfg.TrustedProxies = "192.0.2.0/24"
	})

	// httptest requests come from 192.0.2.1
	rr := serve(h, "GET", "/health", "", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, "GET", "/health", "", map[string]string{"X-Forwarded-For": "10.0.0.9"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRoutes_RateLimit(t *testing.T) {
	h := newTestRouter(t, func(cfg *config.AppConfig) {
		cfg.RateLimit = 2
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(h, "GET", "/health", "", nil).Code)
	}
	rr := serve(h, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}
