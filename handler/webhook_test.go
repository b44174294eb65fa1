package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

const testEvent = `{"id":"evt_123","object":"event","api_version":"2025-05-28.basil","type":"charge.succeeded","livemode":false,"data":{"object":{}}}`

func (e *testEnv) postWebhook(t *testing.T, account, payload, signature string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/stripe/"+account, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	var env envelope
	decodeBody(t, rr, &env)
	return rr, env
}

func signedHeader(payload, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestWebhookHandler_StripeWebhook(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.accounts.SetConfig("shop-1", "stripe", map[string]string{
		"secretKey":     "sk_test_1",
		"webhookSecret": testWebhookSecret,
		"environment":   "sandbox",
	}))
	require.NoError(t, env.accounts.SetConfig("shop-2", "stripe", map[string]string{
		"secretKey":   "sk_test_2",
		"environment": "sandbox",
	}))

	t.Run("valid_signature", func(t *testing.T) {
		rr, resp := env.postWebhook(t, "shop-1", testEvent, signedHeader(testEvent, testWebhookSecret))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var receipt WebhookReceipt
		decodeData(t, resp, &receipt)
		assert.Equal(t, "evt_123", receipt.ID)
		assert.Equal(t, "charge.succeeded", receipt.Type)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		rr, resp := env.postWebhook(t, "shop-1", testEvent, signedHeader(testEvent, "whsec_other"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.False(t, resp.Success)
	})

	t.Run("missing_signature", func(t *testing.T) {
		rr, _ := env.postWebhook(t, "shop-1", testEvent, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("tampered_payload", func(t *testing.T) {
		header := signedHeader(testEvent, testWebhookSecret)
		rr, _ := env.postWebhook(t, "shop-1", strings.Replace(testEvent, "evt_123", "evt_999", 1), header)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("secret_not_configured", func(t *testing.T) {
		rr, resp := env.postWebhook(t, "shop-2", testEvent, signedHeader(testEvent, testWebhookSecret))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Webhook secret not configured", resp.Message)
	})

	t.Run("unknown_account", func(t *testing.T) {
		rr, _ := env.postWebhook(t, "shop-3", testEvent, signedHeader(testEvent, testWebhookSecret))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
