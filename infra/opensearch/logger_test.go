package opensearch

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, *fakeOpenSearch) {
	t.Helper()
	fake := newFakeOpenSearch(t)
	client, err := NewClient(fake.config(), nil)
	require.NoError(t, err)

	l := NewLogger(client)
	l.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return l, fake
}

func TestLogger_LogRequestAndResponse(t *testing.T) {
	l, fake := newTestLogger(t)
	ctx := context.Background()

	id, err := l.LogRequest(ctx, gateway.TransactionEntry{
		Account:   "shop-1",
		Gateway:   "stripe",
		Operation: gateway.OpPurchase,
		Amount:    1000,
		Currency:  "USD",
		Card:      map[string]string{"number": "XXXX-XXXX-XXXX-4242"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	indexed := fake.last(t)
	assert.Equal(t, http.MethodPut, indexed.Method)
	assert.Equal(t, "/gomerchant-stripe-transactions/_doc/"+id, indexed.Path)

	var doc gateway.Transaction
	require.NoError(t, json.Unmarshal([]byte(indexed.Body), &doc))
	assert.Equal(t, "shop-1", doc.Account)
	assert.Equal(t, int64(1000), doc.Amount)
	assert.Equal(t, "XXXX-XXXX-XXXX-4242", doc.Card["number"])
	assert.Equal(t, l.now(), doc.CreatedAt)

	resp := gateway.NewResponse(true, "Transaction approved", nil)
	resp.Authorization = "ch_123"
	require.NoError(t, l.LogResponse(ctx, id, resp, 42))

	updated := fake.last(t)
	assert.Equal(t, "/gomerchant-stripe-transactions/_update/"+id, updated.Path)

	var update struct {
		Doc map[string]any `json:"doc"`
	}
	require.NoError(t, json.Unmarshal([]byte(updated.Body), &update))
	assert.Equal(t, true, update.Doc["success"])
	assert.Equal(t, "ch_123", update.Doc["authorization"])
	assert.Equal(t, float64(42), update.Doc["processingMs"])

	err = l.LogResponse(ctx, id, resp, 42)
	assert.Error(t, err, "a transaction is completed once")
}

func TestLogger_LogError(t *testing.T) {
	l, fake := newTestLogger(t)
	ctx := context.Background()

	id, err := l.LogRequest(ctx, gateway.TransactionEntry{Account: "shop-1", Gateway: "payflow", Operation: gateway.OpVoid})
	require.NoError(t, err)

	require.NoError(t, l.LogError(ctx, id, "INVALID_RESPONSE", "bad body password=hunter2", 7))

	var update struct {
		Doc map[string]any `json:"doc"`
	}
	require.NoError(t, json.Unmarshal([]byte(fake.last(t).Body), &update))
	assert.Equal(t, false, update.Doc["success"])
	assert.Equal(t, "INVALID_RESPONSE", update.Doc["errorCode"])
	assert.Equal(t, "bad body password=***REDACTED***", update.Doc["error"])
}

func TestLogger_ListTransactions(t *testing.T) {
	l, fake := newTestLogger(t)
	fake.search = `{"hits":{"hits":[
		{"_source":{"id":"b","account":"shop-1","gateway":"stripe","operation":"purchase","amount":500,"success":true,"createdAt":"2026-03-04T05:06:08Z"}},
		{"_source":{"id":"a","account":"shop-1","gateway":"stripe","operation":"purchase","amount":100,"success":false,"createdAt":"2026-03-04T05:06:07Z"}}
	]}}`

	transactions, err := l.ListTransactions(context.Background(), gateway.TransactionQuery{
		Account:   "shop-1",
		Gateway:   "stripe",
		Operation: gateway.OpPurchase,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, "b", transactions[0].ID)
	assert.Equal(t, int64(500), transactions[0].Amount)
	assert.False(t, transactions[1].Success)

	req := fake.last(t)
	assert.Equal(t, "/gomerchant-stripe-transactions/_search", req.Path)

	var query map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &query))
	assert.Equal(t, float64(10), query["size"])
	assert.Contains(t, req.Body, `"account":"shop-1"`)
	assert.Contains(t, req.Body, `"operation":"purchase"`)
}

func TestLogger_ListTransactionsAllGateways(t *testing.T) {
	l, fake := newTestLogger(t)
	fake.search = `{"hits":{"hits":[]}}`

	transactions, err := l.ListTransactions(context.Background(), gateway.TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, transactions)

	req := fake.last(t)
	assert.Equal(t, "/gomerchant-*-transactions/_search", req.Path)
	assert.Contains(t, req.Body, "match_all")
	assert.Contains(t, req.Body, `"size":50`)
}

func TestLogger_GatewayStats(t *testing.T) {
	l, fake := newTestLogger(t)
	fake.search = `{
		"hits":{"total":{"value":10}},
		"aggregations":{"success_count":{"doc_count":7},"avg_processing_time":{"value":123.5}}
	}`

	stats, err := l.GatewayStats(context.Background(), "moneris", 0)
	require.NoError(t, err)
	assert.Equal(t, &GatewayStats{
		Gateway:         "moneris",
		Hours:           24,
		Total:           10,
		Successful:      7,
		Failed:          3,
		AvgProcessingMs: 123.5,
	}, stats)
	assert.Contains(t, fake.last(t).Body, "now-24h")
}

func TestLogger_LogSystemEvent(t *testing.T) {
	l, fake := newTestLogger(t)

	var sink logger.Sink = l
	err := sink.LogSystemEvent(context.Background(), logger.SystemLog{
		Level:   logger.LevelError,
		Message: `gateway said {"password": "hunter2"}`,
	})
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/gomerchant-system-logs/_doc", req.Path)
	assert.NotContains(t, req.Body, "hunter2")
}

func TestLogger_Disabled(t *testing.T) {
	fake := newFakeOpenSearch(t)
	cfg := fake.config()
	cfg.EnableOpenSearch = false
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	l := NewLogger(client)
	ctx := context.Background()

	id, err := l.LogRequest(ctx, gateway.TransactionEntry{Gateway: "stripe"})
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, l.LogResponse(ctx, id, gateway.NewResponse(true, "", nil), 1))
	assert.NoError(t, l.LogError(ctx, id, "X", "Y", 1))
	assert.NoError(t, l.LogSystemEvent(ctx, logger.SystemLog{Message: "hello"}))

	_, err = l.ListTransactions(ctx, gateway.TransactionQuery{})
	assert.Error(t, err)
	_, err = l.GatewayStats(ctx, "stripe", 1)
	assert.Error(t, err)

	assert.Empty(t, fake.recorded())
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"json", `{"password":"x","amount":"1"}`, `{"password":"***REDACTED***","amount":"1"}`},
		{"json_with_spaces", `{"cvv" : "123"}`, `{"cvv" :"***REDACTED***"}`},
		{"query_string", "x_login=me&x_tran_key=abc&x_amount=1", "x_login=me&x_tran_key=***REDACTED***&x_amount=1"},
		{"no_secrets", "Transaction declined", "Transaction declined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForLog(tt.input))
		})
	}
}

func TestSearchSize(t *testing.T) {
	assert.Equal(t, defaultSearchSize, searchSize(0))
	assert.Equal(t, 5, searchSize(5))
	assert.Equal(t, maxSearchSize, searchSize(100000))
}
