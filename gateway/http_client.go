package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultRetryMax = 2 // three attempts in total

	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeXML  = "text/xml"
	ContentTypeJSON = "application/json"
)

// HTTPClientConfig represents configuration for the gateway HTTP client
type HTTPClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RetryMax       int
	DefaultHeaders map[string]string
}

// HTTPRequest represents a single call to a processor
type HTTPRequest struct {
	Method      string
	Endpoint    string
	Headers     map[string]string
	Body        []byte
	ContentType string

	// AllowErrorStatus returns non-2xx responses instead of a ResponseError,
	// for processors that carry their error details in the body.
	AllowErrorStatus bool
}

// HTTPResponse represents a processor reply
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// HTTPClient is the transport shared by all gateway adapters
type HTTPClient struct {
	config *HTTPClientConfig
	client *retryablehttp.Client
}

// NewHTTPClient creates a new gateway HTTP client
func NewHTTPClient(config *HTTPClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryMax < 0 {
		config.RetryMax = 0
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: config.Timeout}
	rc.RetryMax = config.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.CheckRetry = retryOnDialFailure
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{
		config: config,
		client: rc,
	}
}

var (
	transportMu       sync.RWMutex
	transportTimeout  = defaultTimeout
	transportRetryMax = defaultRetryMax
)

// SetTransportDefaults changes the timeout and retry budget of clients built by
// NewDefaultHTTPClient from now on; zero or negative values restore the defaults
func SetTransportDefaults(timeout time.Duration, retryMax int) {
	transportMu.Lock()
	defer transportMu.Unlock()

	transportTimeout = defaultTimeout
	if timeout > 0 {
		transportTimeout = timeout
	}
	transportRetryMax = defaultRetryMax
	if retryMax >= 0 {
		transportRetryMax = retryMax
	}
}

// NewDefaultHTTPClient builds a client with the standard gateway headers
func NewDefaultHTTPClient(baseURL string) *HTTPClient {
	transportMu.RLock()
	timeout, retryMax := transportTimeout, transportRetryMax
	transportMu.RUnlock()

	return NewHTTPClient(&HTTPClientConfig{
		BaseURL:  baseURL,
		Timeout:  timeout,
		RetryMax: retryMax,
		DefaultHeaders: map[string]string{
			"User-Agent": "GoMerchant/1.0",
		},
	})
}

// retryOnDialFailure only retries when the request never reached the processor.
// Anything after the connection is established may already have moved money.
func retryOnDialFailure(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// PostForm sends url-encoded values
func (c *HTTPClient) PostForm(ctx context.Context, endpoint string, values url.Values, headers map[string]string) (*HTTPResponse, error) {
	return c.Do(ctx, &HTTPRequest{
		Method:      http.MethodPost,
		Endpoint:    endpoint,
		Headers:     headers,
		Body:        []byte(values.Encode()),
		ContentType: ContentTypeForm,
	})
}

// PostXML sends an XML document
func (c *HTTPClient) PostXML(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error) {
	return c.Do(ctx, &HTTPRequest{
		Method:      http.MethodPost,
		Endpoint:    endpoint,
		Headers:     headers,
		Body:        body,
		ContentType: ContentTypeXML,
	})
}

// PostJSON marshals payload and sends it as JSON
func (c *HTTPClient) PostJSON(ctx context.Context, endpoint string, payload any, headers map[string]string) (*HTTPResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
	}
	return c.Do(ctx, &HTTPRequest{
		Method:      http.MethodPost,
		Endpoint:    endpoint,
		Headers:     headers,
		Body:        body,
		ContentType: ContentTypeJSON,
	})
}

// Do sends the request and returns the processor reply
func (c *HTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	fullURL := c.buildURL(req.Endpoint)

	var body any
	if req.Body != nil {
		body = req.Body
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &ConnectionError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{URL: fullURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	response := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	if !req.AllowErrorStatus && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return response, &ResponseError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return response, nil
}

func joinURL(base, endpoint string) string {
	if base == "" {
		return endpoint
	}
	if endpoint == "" {
		return base
	}
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// buildURL resolves relative endpoints against the base URL
func (c *HTTPClient) buildURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return joinURL(c.config.BaseURL, endpoint)
}
