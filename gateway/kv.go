package gateway

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// ParseKeyValueLines parses bodies made of "key=value" lines
func ParseKeyValueLines(body string) map[string]string {
	params := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		params[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return params
}

// ParseQueryString parses a url-encoded response body, keeping the first value per key
func ParseQueryString(body string) (map[string]string, error) {
	values, err := url.ParseQuery(strings.TrimSpace(body))
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(values))
	for key, v := range values {
		if len(v) > 0 {
			params[key] = v[0]
		}
	}
	return params, nil
}

// JoinAuthorization builds a compound authorization token
func JoinAuthorization(sep string, parts ...string) string {
	return strings.Join(parts, sep)
}

// SplitAuthorization splits a compound token into exactly n parts, padding with empty strings
func SplitAuthorization(token, sep string, n int) []string {
	parts := strings.SplitN(token, sep, n)
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

// BasicAuth returns an HTTP Basic authorization header value
func BasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// Truncate limits s to n bytes, as processors reject over-long fields
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
