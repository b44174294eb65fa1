package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	defaultSearchSize = 50
	maxSearchSize     = 500
)

// GatewayStats summarizes the transactions of one gateway over a time window
type GatewayStats struct {
	Gateway         string  `json:"gateway"`
	Hours           int     `json:"hours"`
	Total           int64   `json:"total"`
	Successful      int64   `json:"successful"`
	Failed          int64   `json:"failed"`
	AvgProcessingMs float64 `json:"avgProcessingMs"`
}

// Logger writes gateway transactions and system logs to OpenSearch
type Logger struct {
	client  *Client
	now     func() time.Time
	pending map[string]string // transaction id -> index
	mu      sync.Mutex
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client:  client,
		now:     time.Now,
		pending: make(map[string]string),
	}
}

// LogRequest indexes a new transaction document and returns its id
func (l *Logger) LogRequest(ctx context.Context, entry gateway.TransactionEntry) (string, error) {
	if !l.client.IsEnabled() {
		return "", nil
	}

	doc := gateway.Transaction{
		ID:            uuid.New().String(),
		Account:       entry.Account,
		Gateway:       entry.Gateway,
		Environment:   entry.Environment,
		Operation:     entry.Operation,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		OrderID:       entry.OrderID,
		Authorization: entry.Authorization,
		Card:          entry.Card,
		ClientIP:      entry.ClientIP,
		CreatedAt:     l.now().UTC(),
	}
	indexName := TransactionIndexName(entry.Gateway)

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docJSON),
	}
	if err := l.do(ctx, req, "index transaction"); err != nil {
		return "", err
	}

	l.mu.Lock()
	l.pending[doc.ID] = indexName
	l.mu.Unlock()

	return doc.ID, nil
}

// LogResponse completes a transaction document with the processor outcome
func (l *Logger) LogResponse(ctx context.Context, id string, resp *gateway.Response, processingMs int64) error {
	if !l.client.IsEnabled() {
		return nil
	}
	if resp == nil {
		return errors.New("response cannot be nil")
	}

	fields := map[string]any{
		"success":      resp.Success,
		"message":      SanitizeForLog(resp.Message),
		"errorCode":    resp.ErrorCode,
		"test":         resp.Test,
		"processingMs": processingMs,
		"completedAt":  l.now().UTC(),
	}
	if resp.Authorization != "" {
		fields["authorization"] = resp.Authorization
	}
	return l.complete(ctx, id, fields)
}

// LogError completes a transaction document that failed before a processor outcome was known
func (l *Logger) LogError(ctx context.Context, id string, errorCode, errorMsg string, processingMs int64) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.complete(ctx, id, map[string]any{
		"success":      false,
		"errorCode":    errorCode,
		"error":        SanitizeForLog(errorMsg),
		"processingMs": processingMs,
		"completedAt":  l.now().UTC(),
	})
}

func (l *Logger) complete(ctx context.Context, id string, fields map[string]any) error {
	l.mu.Lock()
	indexName, ok := l.pending[id]
	delete(l.pending, id)
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown transaction log id: %s", id)
	}

	body, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	retries := 3
	req := opensearchapi.UpdateRequest{
		Index:           indexName,
		DocumentID:      id,
		Body:            bytes.NewReader(body),
		RetryOnConflict: &retries,
	}
	return l.do(ctx, req, "update transaction")
}

// ListTransactions searches logged transactions, newest first
func (l *Logger) ListTransactions(ctx context.Context, q gateway.TransactionQuery) ([]gateway.Transaction, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	var filters []map[string]any
	if q.Account != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"account": q.Account}})
	}
	if q.Operation != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"operation": q.Operation}})
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"createdAt": map[string]string{"order": "desc"}},
		},
		"size": searchSize(q.Limit),
	}

	indexName := TransactionIndexName("*")
	if q.Gateway != "" {
		indexName = TransactionIndexName(q.Gateway)
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source gateway.Transaction `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := l.search(ctx, indexName, searchQuery, &searchResult); err != nil {
		return nil, err
	}

	transactions := make([]gateway.Transaction, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		transactions[i] = hit.Source
	}
	return transactions, nil
}

// GatewayStats aggregates the transactions of a gateway over the last hours
func (l *Logger) GatewayStats(ctx context.Context, gatewayName string, hours int) (*GatewayStats, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}
	if hours <= 0 {
		hours = 24
	}

	aggQuery := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"createdAt": map[string]any{
					"gte": fmt.Sprintf("now-%dh", hours),
				},
			},
		},
		"aggs": map[string]any{
			"success_count": map[string]any{
				"filter": map[string]any{
					"term": map[string]any{"success": true},
				},
			},
			"avg_processing_time": map[string]any{
				"avg": map[string]any{
					"field": "processingMs",
				},
			},
		},
		"track_total_hits": true,
		"size":             0,
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			SuccessCount struct {
				DocCount int64 `json:"doc_count"`
			} `json:"success_count"`
			AvgProcessingTime struct {
				Value *float64 `json:"value"`
			} `json:"avg_processing_time"`
		} `json:"aggregations"`
	}
	if err := l.search(ctx, TransactionIndexName(gatewayName), aggQuery, &result); err != nil {
		return nil, err
	}

	stats := &GatewayStats{
		Gateway:    gatewayName,
		Hours:      hours,
		Total:      result.Hits.Total.Value,
		Successful: result.Aggregations.SuccessCount.DocCount,
	}
	stats.Failed = stats.Total - stats.Successful
	if avg := result.Aggregations.AvgProcessingTime.Value; avg != nil {
		stats.AvgProcessingMs = *avg
	}
	return stats, nil
}

func (l *Logger) search(ctx context.Context, indexName string, query map[string]any, out any) error {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	ignoreUnavailable := true
	req := opensearchapi.SearchRequest{
		Index:             []string{indexName},
		Body:              bytes.NewReader(queryJSON),
		IgnoreUnavailable: &ignoreUnavailable,
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch search error: %s", res.String())
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode search results: %w", err)
	}
	return nil
}

// LogSystemEvent indexes a system log entry; Logger is a logger.Sink
func (l *Logger) LogSystemEvent(ctx context.Context, entry logger.SystemLog) error {
	if !l.client.IsEnabled() {
		return nil
	}

	entry.Message = SanitizeForLog(entry.Message)
	entry.Error = SanitizeForLog(entry.Error)

	logJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal system log: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: systemLogsIndex,
		Body:  bytes.NewReader(logJSON),
	}
	return l.do(ctx, req, "index system log")
}

type requester interface {
	Do(ctx context.Context, transport opensearchapi.Transport) (*opensearchapi.Response, error)
}

func (l *Logger) do(ctx context.Context, req requester, action string) error {
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	defer res.Body.Close()
	defer io.Copy(io.Discard, res.Body)

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

func searchSize(limit int) int {
	if limit <= 0 {
		return defaultSearchSize
	}
	return min(limit, maxSearchSize)
}

var sensitivePatterns = func() []*regexp.Regexp {
	sensitiveFields := []string{
		"cardNumber", "card_number", "number", "cvv", "cvc", "verification_value",
		"apiKey", "api_key", "secretKey", "secret_key", "password", "token",
		"x_tran_key", "publisher-password", "Passphrase",
	}

	var patterns []*regexp.Regexp
	for _, field := range sensitiveFields {
		quoted := regexp.QuoteMeta(field)
		patterns = append(patterns,
			regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*"[^"]*"`, quoted)),
			regexp.MustCompile(fmt.Sprintf(`\b%s=[^&\s]+`, quoted)),
		)
	}
	return patterns
}()

// SanitizeForLog removes credentials and card data echoed back in processor messages
func SanitizeForLog(data string) string {
	if data == "" {
		return data
	}

	result := data
	for _, re := range sensitivePatterns {
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			i := strings.IndexAny(match, ":=")
			if match[i] == '=' {
				return match[:i+1] + "***REDACTED***"
			}
			return match[:i+1] + `"***REDACTED***"`
		})
	}
	return result
}
