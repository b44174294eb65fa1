package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway records calls and answers with canned results
type stubGateway struct {
	name        string
	config      map[string]string
	initialized int
	calls       []string
	resp        *Response
	err         error
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) Info() Info { return Info{Name: g.name} }

func (g *stubGateway) GetRequiredConfig() []ConfigField {
	return []ConfigField{
		{Key: "login", Required: true, Type: "string"},
		EnvironmentField(),
	}
}

func (g *stubGateway) ValidateConfig(config map[string]string) error {
	return ValidateConfigFields(g.name, config, g.GetRequiredConfig())
}

func (g *stubGateway) Initialize(config map[string]string) error {
	g.config = config
	g.initialized++
	return nil
}

func (g *stubGateway) answer(op string) (*Response, error) {
	g.calls = append(g.calls, op)
	if g.err != nil {
		return g.resp, g.err
	}
	if g.resp != nil {
		return g.resp, nil
	}
	return NewResponse(true, "Approved", nil), nil
}

func (g *stubGateway) Purchase(ctx context.Context, money int64, card *CreditCard, opts Options) (*Response, error) {
	return g.answer(OpPurchase)
}

func (g *stubGateway) Authorize(ctx context.Context, money int64, card *CreditCard, opts Options) (*Response, error) {
	return g.answer(OpAuthorize)
}

func (g *stubGateway) Capture(ctx context.Context, money int64, authorization string, opts Options) (*Response, error) {
	return g.answer(OpCapture)
}

func (g *stubGateway) Void(ctx context.Context, authorization string, opts Options) (*Response, error) {
	return g.answer(OpVoid)
}

func (g *stubGateway) Credit(ctx context.Context, money int64, identification string, opts Options) (*Response, error) {
	return g.answer(OpCredit)
}

func (g *stubGateway) Store(ctx context.Context, card *CreditCard, opts Options) (*Response, error) {
	return g.answer(OpStore)
}

func (g *stubGateway) Unstore(ctx context.Context, identification string, opts Options) (*Response, error) {
	return nil, NotSupported(g.name, OpUnstore)
}

type mapConfigSource map[string]map[string]string

func (m mapConfigSource) GetConfig(account, gatewayName string) (map[string]string, error) {
	config, ok := m[account+"/"+gatewayName]
	if !ok {
		return nil, fmt.Errorf("no configuration for %s/%s", account, gatewayName)
	}
	return config, nil
}

type recordingTxLogger struct {
	mu        sync.Mutex
	requests  []TransactionEntry
	responses []*Response
	errors    []string
	failOn    string
}

func (l *recordingTxLogger) LogRequest(ctx context.Context, entry TransactionEntry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOn == "request" {
		return "", errors.New("log store down")
	}
	l.requests = append(l.requests, entry)
	return fmt.Sprintf("tx-%d", len(l.requests)), nil
}

func (l *recordingTxLogger) LogResponse(ctx context.Context, id string, resp *Response, processingMs int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOn == "response" {
		return errors.New("log store down")
	}
	l.responses = append(l.responses, resp)
	return nil
}

func (l *recordingTxLogger) LogError(ctx context.Context, id string, errorCode, errorMsg string, processingMs int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, errorCode)
	return nil
}

func newTestService(gw *stubGateway, txlog TransactionLogger) *Service {
	registry := NewRegistry()
	registry.Register(gw.name, func() Gateway { return gw })
	configs := mapConfigSource{
		"shop/" + gw.name: {"login": "merchant", "environment": "sandbox"},
	}
	return NewService(registry, configs, NewLRUCache(10, time.Hour), txlog)
}

func TestService_Purchase(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	txlog := &recordingTxLogger{}
	service := newTestService(gw, txlog)

	resp, err := service.Purchase(context.Background(), "shop", "stub", 1000, validCard(), Options{OrderID: "A-1", Currency: "USD"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{OpPurchase}, gw.calls)

	require.Len(t, txlog.requests, 1)
	entry := txlog.requests[0]
	assert.Equal(t, "shop", entry.Account)
	assert.Equal(t, "stub", entry.Gateway)
	assert.Equal(t, "sandbox", entry.Environment)
	assert.Equal(t, OpPurchase, entry.Operation)
	assert.Equal(t, int64(1000), entry.Amount)
	assert.Equal(t, "A-1", entry.OrderID)
	assert.Equal(t, "XXXX-XXXX-XXXX-4242", entry.Card["number"])
	assert.Len(t, txlog.responses, 1)
}

func TestService_CachesInitializedGateway(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	service := newTestService(gw, nil)

	for i := 0; i < 3; i++ {
		_, err := service.Capture(context.Background(), "shop", "stub", 500, "auth-1", Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, gw.initialized)

	service.Invalidate("shop", "stub")
	_, err := service.Void(context.Background(), "shop", "stub", "auth-1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, gw.initialized)
}

func TestService_ValidatesInput(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	service := newTestService(gw, nil)
	ctx := context.Background()

	expired := validCard()
	expired.Year = 2001

	_, err := service.Purchase(ctx, "shop", "stub", -1, validCard(), Options{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Authorize(ctx, "shop", "stub", 100, nil, Options{})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = service.Authorize(ctx, "shop", "stub", 100, expired, Options{})
	assert.ErrorIs(t, err, ErrInvalidCard)

	_, err = service.Capture(ctx, "shop", "stub", 100, "", Options{})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = service.Purchase(ctx, "shop", "stub", 0, validCard(), Options{})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Authorize(ctx, "shop", "stub", 0, nil, Options{BillingID: "cus_123"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Store(ctx, "shop", "stub", expired, Options{})
	assert.ErrorIs(t, err, ErrInvalidCard)

	assert.Empty(t, gw.calls)
}

func TestService_StoredCardCharge(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	service := newTestService(gw, nil)
	ctx := context.Background()

	_, err := service.Purchase(ctx, "shop", "stub", 1000, nil, Options{BillingID: "cus_123"})
	require.NoError(t, err)

	expired := validCard()
	expired.Year = 2001
	_, err = service.Authorize(ctx, "shop", "stub", 1000, expired, Options{BillingID: "cus_123"})
	require.NoError(t, err)

	assert.Equal(t, []string{OpPurchase, OpAuthorize}, gw.calls)
}

func TestService_CreditWithoutIdentification(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	service := newTestService(gw, nil)

	// stand-alone refunds carry the card in Metadata instead of a reference
	_, err := service.Credit(context.Background(), "shop", "stub", 1000, "", Options{
		Metadata: map[string]string{"card_number": "4242424242424242"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{OpCredit}, gw.calls)

	_, err = service.Credit(context.Background(), "shop", "stub", 0, "tx-1", Options{})
	require.NoError(t, err)
}

func TestService_UnknownAccountOrGateway(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	service := newTestService(gw, nil)

	_, err := service.Void(context.Background(), "nobody", "stub", "auth", Options{})
	assert.Error(t, err)

	_, err = service.Gateway("shop", "missing")
	assert.Error(t, err)
}

func TestService_InvalidStoredConfig(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	registry := NewRegistry()
	registry.Register("stub", func() Gateway { return gw })
	service := NewService(registry, mapConfigSource{"shop/stub": {"environment": "sandbox"}}, nil, nil)

	_, err := service.Gateway("shop", "stub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required field 'login' is missing")
	assert.Equal(t, 0, gw.initialized)
}

func TestService_LogsErrors(t *testing.T) {
	gw := &stubGateway{name: "stub"}
	txlog := &recordingTxLogger{}
	service := newTestService(gw, txlog)

	_, err := service.Unstore(context.Background(), "shop", "stub", "billing-1", Options{})
	assert.ErrorIs(t, err, ErrNotSupported)

	gw.err = &ConnectionError{URL: "https://example.com", Err: errors.New("refused")}
	_, err = service.Credit(context.Background(), "shop", "stub", 100, "tx-1", Options{})
	assert.ErrorIs(t, err, ErrConnection)

	assert.Equal(t, []string{"NOT_SUPPORTED", "CONNECTION_ERROR"}, txlog.errors)
}

func TestService_PendingAuthorizationSurvivesError(t *testing.T) {
	pending := NewResponse(false, "capture failed", nil)
	pending.Authorization = "order-1"
	gw := &stubGateway{name: "stub", resp: pending, err: &ResponseError{StatusCode: 502}}
	txlog := &recordingTxLogger{}
	service := newTestService(gw, txlog)

	resp, err := service.Purchase(context.Background(), "shop", "stub", 100, validCard(), Options{})
	assert.ErrorIs(t, err, ErrResponse)
	require.NotNil(t, resp)
	assert.Equal(t, "order-1", resp.Authorization)
	assert.Equal(t, []string{"RESPONSE_ERROR"}, txlog.errors)

	// an error without an authorization drops the response
	gw.resp = NewResponse(false, "partial", nil)
	resp, err = service.Purchase(context.Background(), "shop", "stub", 100, validCard(), Options{})
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestService_DeclineIsNotAnError(t *testing.T) {
	gw := &stubGateway{name: "stub", resp: NewResponse(false, "Declined", nil)}
	service := newTestService(gw, nil)

	resp, err := service.Purchase(context.Background(), "shop", "stub", 100, validCard(), Options{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestService_LoggingFailureDoesNotFailTransaction(t *testing.T) {
	for _, failOn := range []string{"request", "response"} {
		t.Run(failOn, func(t *testing.T) {
			gw := &stubGateway{name: "stub"}
			service := newTestService(gw, &recordingTxLogger{failOn: failOn})

			resp, err := service.Store(context.Background(), "shop", "stub", validCard(), Options{})
			require.NoError(t, err)
			assert.True(t, resp.Success)
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NotSupported("x", OpVoid), "NOT_SUPPORTED"},
		{&ConnectionError{Err: errors.New("x")}, "CONNECTION_ERROR"},
		{fmt.Errorf("wrapped: %w", &ResponseError{StatusCode: 500}), "RESPONSE_ERROR"},
		{MissingField("x", "order_id"), "INVALID_REQUEST"},
		{InvalidField("x", "order_id", "is too short"), "INVALID_REQUEST"},
		{&ConnectionError{Err: context.DeadlineExceeded}, "TIMEOUT"},
		{errors.New("parse failure"), "GATEWAY_ERROR"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err))
	}
}
