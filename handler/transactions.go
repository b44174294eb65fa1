package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/opensearch"
	"github.com/mstgnz/gomerchant/infra/response"
)

// StatsReader aggregates logged transactions per gateway
type StatsReader interface {
	GatewayStats(ctx context.Context, gatewayName string, hours int) (*opensearch.GatewayStats, error)
}

// TransactionHandler serves the transaction log
type TransactionHandler struct {
	reader       gateway.TransactionReader
	stats        StatsReader
	defaultLimit int
}

// NewTransactionHandler creates a new transaction handler; stats may be nil
func NewTransactionHandler(reader gateway.TransactionReader, stats StatsReader, defaultLimit int) *TransactionHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &TransactionHandler{
		reader:       reader,
		stats:        stats,
		defaultLimit: defaultLimit,
	}
}

// ListTransactions returns logged transactions, newest first
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		response.Error(w, http.StatusNotImplemented, "Transaction log is not queryable", nil)
		return
	}

	q := r.URL.Query()
	query := gateway.TransactionQuery{
		Account:   q.Get("account"),
		Gateway:   q.Get("gateway"),
		Operation: q.Get("operation"),
		Limit:     h.defaultLimit,
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			response.Error(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		query.Limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	transactions, err := h.reader.ListTransactions(ctx, query)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	response.Success(w, http.StatusOK, "Transactions retrieved", transactions)
}

// GatewayStats summarizes a gateway's transactions over the last hours
func (h *TransactionHandler) GatewayStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		response.Error(w, http.StatusNotImplemented, "Statistics require OpenSearch logging", nil)
		return
	}

	hours := 24
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		if n, err := strconv.Atoi(hoursStr); err == nil && n > 0 && n <= 24*90 {
			hours = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.stats.GatewayStats(ctx, chi.URLParam(r, "gateway"), hours)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get stats", err)
		return
	}

	response.Success(w, http.StatusOK, "Statistics retrieved", stats)
}
