package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gateway/transact.dll", r.URL.Path)
		assert.Equal(t, ContentTypeForm, r.Header.Get("Content-Type"))
		assert.Equal(t, "GoMerchant/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "10.00", r.PostForm.Get("x_amount"))

		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewDefaultHTTPClient(server.URL)
	resp, err := client.PostForm(context.Background(), "gateway/transact.dll",
		url.Values{"x_amount": {"10.00"}}, map[string]string{"X-Custom": "yes"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))
}

func TestHTTPClient_PostXMLAndJSON(t *testing.T) {
	var mu sync.Mutex
	var contentTypes []string
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		contentTypes = append(contentTypes, r.Header.Get("Content-Type"))
		bodies = append(bodies, string(body))
	}))
	defer server.Close()

	client := NewDefaultHTTPClient(server.URL)
	_, err := client.PostXML(context.Background(), "", []byte("<request/>"), nil)
	require.NoError(t, err)
	_, err = client.PostJSON(context.Background(), "/json", map[string]int{"amount": 100}, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ContentTypeXML, ContentTypeJSON}, contentTypes)
	assert.Equal(t, []string{"<request/>", `{"amount":100}`}, bodies)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server exploded"))
	}))
	defer server.Close()

	client := NewDefaultHTTPClient(server.URL)
	resp, err := client.PostXML(context.Background(), "", []byte("<x/>"), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponse))
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusInternalServerError, respErr.StatusCode)
	require.NotNil(t, resp)
	assert.Equal(t, "server exploded", string(resp.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "status errors must not be retried")
}

func TestHTTPClient_AllowErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"declined"}}`))
	}))
	defer server.Close()

	client := NewDefaultHTTPClient(server.URL)
	resp, err := client.Do(context.Background(), &HTTPRequest{
		Endpoint:         "/v1/charges",
		AllowErrorStatus: true,
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestHTTPClient_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewHTTPClient(&HTTPClientConfig{BaseURL: baseURL, RetryMax: 1, Timeout: time.Second})
	_, err := client.PostXML(context.Background(), "", []byte("<x/>"), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, baseURL, connErr.URL)
}

func TestHTTPClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewDefaultHTTPClient(server.URL)
	_, err := client.PostXML(ctx, "", nil, nil)
	assert.True(t, errors.Is(err, ErrConnection))
}

func TestRetryOnDialFailure(t *testing.T) {
	ctx := context.Background()

	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	retry, err := retryOnDialFailure(ctx, nil, &url.Error{Op: "Post", URL: "https://example.com", Err: dialErr})
	assert.NoError(t, err)
	assert.True(t, retry)

	retry, _ = retryOnDialFailure(ctx, nil, errors.New("read: connection reset"))
	assert.False(t, retry)

	retry, _ = retryOnDialFailure(ctx, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	assert.False(t, retry)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, endpoint, want string
	}{
		{"https://api.example.com", "/v1", "https://api.example.com/v1"},
		{"https://api.example.com/", "/v1", "https://api.example.com/v1"},
		{"https://api.example.com", "v1", "https://api.example.com/v1"},
		{"https://api.example.com", "", "https://api.example.com"},
		{"", "/v1", "/v1"},
	}

	for _, tt := range tests {
		if got := joinURL(tt.base, tt.endpoint); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.endpoint, got, tt.want)
		}
	}

	client := NewDefaultHTTPClient("https://base.example.com")
	assert.Equal(t, "https://other.example.com/x", client.buildURL("https://other.example.com/x"))
}

func TestSetTransportDefaults(t *testing.T) {
	t.Cleanup(func() { SetTransportDefaults(0, defaultRetryMax) })

	SetTransportDefaults(5*time.Second, 0)
	c := NewDefaultHTTPClient("https://example.com")
	assert.Equal(t, 5*time.Second, c.config.Timeout)
	assert.Equal(t, 0, c.client.RetryMax)

	SetTransportDefaults(0, -1)
	c = NewDefaultHTTPClient("https://example.com")
	assert.Equal(t, defaultTimeout, c.config.Timeout)
	assert.Equal(t, defaultRetryMax, c.client.RetryMax)
}
