package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrNotSupported  = errors.New("operation not supported")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidField  = errors.New("invalid field value")
	ErrInvalidCard   = errors.New("invalid credit card")
	ErrConnection    = errors.New("connection failed")
	ErrResponse      = errors.New("unexpected gateway response")
)

// ConnectionError wraps a transport failure talking to a processor
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// ResponseError is returned when a processor answers with a non-2xx status
type ResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	body := string(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("unexpected response status %d: %s", e.StatusCode, body)
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrResponse
}

// NotSupported builds the error returned for operations a processor lacks
func NotSupported(gatewayName, operation string) error {
	return fmt.Errorf("%s: %s: %w", gatewayName, operation, ErrNotSupported)
}

// MissingField builds the error returned when a required value is absent
func MissingField(gatewayName, field string) error {
	return fmt.Errorf("%s: %s: %w", gatewayName, field, ErrMissingField)
}

// InvalidField builds the error returned when a value is present but unusable
func InvalidField(gatewayName, field, reason string) error {
	return fmt.Errorf("%s: %s %s: %w", gatewayName, field, reason, ErrInvalidField)
}

// RequireFields checks that every key is present and non-empty
func RequireFields(gatewayName string, values map[string]string, keys ...string) error {
	for _, key := range keys {
		if values[key] == "" {
			return MissingField(gatewayName, key)
		}
	}
	return nil
}
