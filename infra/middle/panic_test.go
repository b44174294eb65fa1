package middle

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/gomerchant/infra/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecovery(t *testing.T) {
	cases := []struct {
		name  string
		value any
	}{
		{"string", "adapter blew up"},
		{"error", errors.New("gateway exploded")},
		{"integer", 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequestIDMiddleware()(PanicRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tc.value)
			})))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/accounts/shop-1/stripe/purchase", nil))

			require.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
			assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

			var body response.Response
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, http.StatusInternalServerError, body.Code)
			assert.Equal(t, "Internal server error", body.Message)
			assert.Equal(t, "an unexpected error occurred", body.Error)
		})
	}
}

func TestPanicRecovery_PassThrough(t *testing.T) {
	h := PanicRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestPanicRecoveryWithCustomHandler(t *testing.T) {
	var captured any
	h := PanicRecoveryWithCustomHandler(func(w http.ResponseWriter, r *http.Request, v any) {
		captured = v
		w.WriteHeader(http.StatusServiceUnavailable)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("custom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/gateways", nil))

	assert.Equal(t, "custom", captured)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPanicRecovery_AbortHandlerPropagates(t *testing.T) {
	h := PanicRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	})
}
