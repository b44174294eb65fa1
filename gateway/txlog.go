package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TransactionEntry describes an outgoing gateway call before it is sent
type TransactionEntry struct {
	Account       string            `json:"account"`
	Gateway       string            `json:"gateway"`
	Environment   string            `json:"environment,omitempty"`
	Operation     string            `json:"operation"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	OrderID       string            `json:"orderId,omitempty"`
	Authorization string            `json:"authorization,omitempty"`
	Card          map[string]string `json:"card,omitempty"`
	ClientIP      string            `json:"clientIp,omitempty"`
}

// Transaction is a logged call together with its outcome
type Transaction struct {
	ID            string            `json:"id"`
	Account       string            `json:"account"`
	Gateway       string            `json:"gateway"`
	Environment   string            `json:"environment,omitempty"`
	Operation     string            `json:"operation"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	OrderID       string            `json:"orderId,omitempty"`
	Card          map[string]string `json:"card,omitempty"`
	ClientIP      string            `json:"clientIp,omitempty"`
	Success       bool              `json:"success"`
	Message       string            `json:"message,omitempty"`
	Authorization string            `json:"authorization,omitempty"`
	ErrorCode     string            `json:"errorCode,omitempty"`
	Error         string            `json:"error,omitempty"`
	Test          bool              `json:"test"`
	ProcessingMs  int64             `json:"processingMs"`
	CreatedAt     time.Time         `json:"createdAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

// TransactionQuery filters logged transactions; zero values match everything
type TransactionQuery struct {
	Account   string
	Gateway   string
	Operation string
	Limit     int
}

// TransactionLogger records every gateway call made through the Service
type TransactionLogger interface {
	LogRequest(ctx context.Context, entry TransactionEntry) (string, error)
	LogResponse(ctx context.Context, id string, resp *Response, processingMs int64) error
	LogError(ctx context.Context, id string, errorCode, errorMsg string, processingMs int64) error
}

// TransactionReader is implemented by loggers that can be queried
type TransactionReader interface {
	ListTransactions(ctx context.Context, q TransactionQuery) ([]Transaction, error)
}

// NopLogger discards all transaction logs
type NopLogger struct{}

func (NopLogger) LogRequest(context.Context, TransactionEntry) (string, error) {
	return "", nil
}

func (NopLogger) LogResponse(context.Context, string, *Response, int64) error {
	return nil
}

func (NopLogger) LogError(context.Context, string, string, string, int64) error {
	return nil
}

// MultiLogger fans every call out to several loggers and keeps their ids apart
type MultiLogger struct {
	loggers []TransactionLogger
	ids     map[string][]string
	mu      sync.Mutex
}

// NewMultiLogger combines loggers; nil entries are skipped
func NewMultiLogger(loggers ...TransactionLogger) *MultiLogger {
	m := &MultiLogger{ids: make(map[string][]string)}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogRequest(ctx context.Context, entry TransactionEntry) (string, error) {
	childIDs := make([]string, len(m.loggers))
	var errs []error
	for i, l := range m.loggers {
		id, err := l.LogRequest(ctx, entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		childIDs[i] = id
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.ids[id] = childIDs
	m.mu.Unlock()

	return id, errors.Join(errs...)
}

func (m *MultiLogger) LogResponse(ctx context.Context, id string, resp *Response, processingMs int64) error {
	return m.each(id, func(l TransactionLogger, childID string) error {
		return l.LogResponse(ctx, childID, resp, processingMs)
	})
}

func (m *MultiLogger) LogError(ctx context.Context, id string, errorCode, errorMsg string, processingMs int64) error {
	return m.each(id, func(l TransactionLogger, childID string) error {
		return l.LogError(ctx, childID, errorCode, errorMsg, processingMs)
	})
}

// ListTransactions reads from the first logger that supports queries
func (m *MultiLogger) ListTransactions(ctx context.Context, q TransactionQuery) ([]Transaction, error) {
	for _, l := range m.loggers {
		if r, ok := l.(TransactionReader); ok {
			return r.ListTransactions(ctx, q)
		}
	}
	return nil, errors.New("no queryable transaction logger configured")
}

func (m *MultiLogger) each(id string, fn func(TransactionLogger, string) error) error {
	m.mu.Lock()
	childIDs, ok := m.ids[id]
	delete(m.ids, id)
	m.mu.Unlock()

	if !ok {
		return errors.New("unknown transaction log id: " + id)
	}

	var errs []error
	for i, l := range m.loggers {
		if childIDs[i] == "" {
			continue
		}
		if err := fn(l, childIDs[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
