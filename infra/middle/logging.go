package middle

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/logger"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey config.CKey = "requestID"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// RequestIDMiddleware propagates the caller's X-Request-ID or assigns a new one
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request id stored by RequestIDMiddleware
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLoggingMiddleware logs every request with its status and duration
func RequestLoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			account, gatewayName := accountAndGatewayFromPath(r.URL.Path)
			logCtx := logger.LogContext{
				Account:   account,
				Gateway:   gatewayName,
				RequestID: GetRequestID(r.Context()),
				Fields: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      rw.statusCode,
					"bytes":       rw.written,
					"duration_ms": time.Since(start).Milliseconds(),
					"client_ip":   GetClientIP(r),
					"user_agent":  r.UserAgent(),
				},
			}

			switch {
			case rw.statusCode >= 500:
				logger.Warn("Request failed", logCtx)
			case r.URL.Path == "/health":
				logger.Debug("Request completed", logCtx)
			default:
				logger.Info("Request completed", logCtx)
			}
		})
	}
}

// accountAndGatewayFromPath extracts the account and gateway of
// /v1/accounts/{account}/{gateway}/... and /webhooks/{gateway}/{account}
func accountAndGatewayFromPath(path string) (account, gatewayName string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(segments) >= 3 && segments[0] == "v1" && segments[1] == "accounts":
		account = segments[2]
		if len(segments) >= 4 {
			gatewayName = segments[3]
		}
	case len(segments) >= 3 && segments[0] == "webhooks":
		gatewayName, account = segments[1], segments[2]
	case len(segments) >= 3 && segments[0] == "v1" && (segments[1] == "gateways" || segments[1] == "stats"):
		gatewayName = segments[2]
	}
	return account, gatewayName
}
