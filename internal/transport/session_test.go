package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(retries int) *Session {
	return NewSession(Config{
		Client: &http.Client{Timeout: 2 * time.Second},
		Backoff: BackoffConfig{
			MaxRetries:      retries,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
}

func TestSessionGetEncodesParams(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/data", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("appid"))
		assert.Equal(t, "what is pi", r.URL.Query().Get("i"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := newTestSession(2).Get(context.Background(), srv.URL+"/data", url.Values{
		"appid": {"abc"},
		"i":     {"what is pi"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, resp.Text())
	assert.Equal(t, srv.URL+"/data", resp.URL)

	var body map[string]any
	require.NoError(t, resp.JSON(&body))
	assert.Equal(t, true, body["ok"])
}

func TestSessionClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestSession(3).Get(context.Background(), srv.URL, url.Values{"appid": {"secret"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.NotContains(t, err.Error(), "secret")

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSessionServerErrorIsRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	resp, err := newTestSession(3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text())
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestSessionRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestSession(1).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
}

func TestSessionNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestSession(0).Get(context.Background(), addr, url.Values{"appid": {"secret"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.NotContains(t, err.Error(), "secret")
}

func TestResponseJSONMalformed(t *testing.T) {
	resp := &Response{URL: "http://example.test", StatusCode: 200, Body: []byte("not json")}
	var v map[string]any
	err := resp.JSON(&v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestSessionWithoutClient(t *testing.T) {
	s := NewSession(Config{Backoff: BackoffConfig{InitialInterval: time.Millisecond}})
	_, err := s.Get(context.Background(), "http://example.test", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestSessionNotImplementedKeepsBreakerClosed(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Query().Get("i") == "gibberish" {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		_, _ = w.Write([]byte("42"))
	}))
	defer srv.Close()

	s := newTestSession(2)
	for i := 0; i < 8; i++ {
		_, err := s.Get(context.Background(), srv.URL+"/v1/spoken", url.Values{"i": {"gibberish"}})
		var upErr *UpstreamError
		require.True(t, errors.As(err, &upErr))
		assert.Equal(t, http.StatusNotImplemented, upErr.StatusCode)
	}

	resp, err := s.Get(context.Background(), srv.URL+"/v1/spoken", url.Values{"i": {"meaning of life"}})
	require.NoError(t, err)
	assert.Equal(t, "42", resp.Text())
	assert.Equal(t, int32(9), atomic.LoadInt32(&hits))
}

func TestSessionCancelledCallsKeepBreakerClosed(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/slow" {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := newTestSession(0)
	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		timer := time.AfterFunc(10*time.Millisecond, cancel)
		_, err := s.Get(ctx, srv.URL+"/slow", nil)
		timer.Stop()
		cancel()
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	}

	resp, err := s.Get(context.Background(), srv.URL+"/fast", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"cancelled", &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}, true},
		{"unauthorized", &statusError{code: http.StatusUnauthorized, err: errUnexpected}, true},
		{"not implemented", &statusError{code: http.StatusNotImplemented, err: errServerError}, true},
		{"rate limited", &statusError{code: http.StatusTooManyRequests, err: errRateLimited}, false},
		{"bad gateway", &statusError{code: http.StatusBadGateway, err: errServerError}, false},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, breakerSuccess(tt.err))
		})
	}
}

func TestSessionKeepsExistingQuery(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := newTestSession(0).Get(context.Background(), srv.URL+"/api?token=t0k&units=metric", url.Values{
		"input": {"pi"},
		"units": {"imperial"},
	})
	require.NoError(t, err)
	assert.Equal(t, url.Values{
		"token": {"t0k"},
		"input": {"pi"},
		"units": {"imperial"},
	}, got)
}

func TestSessionBodyLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	s := NewSession(Config{
		Client:       &http.Client{Timeout: 2 * time.Second},
		Backoff:      BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond},
		MaxBodyBytes: 16,
	})
	_, err := s.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, errBodyTooLarge))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	s = NewSession(Config{
		Client:       &http.Client{Timeout: 2 * time.Second},
		Backoff:      BackoffConfig{InitialInterval: time.Millisecond},
		MaxBodyBytes: 64,
	})
	resp, err := s.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 64)
}

func TestResponseRawJSON(t *testing.T) {
	resp := &Response{URL: "http://example.test", StatusCode: 200, Body: []byte("null")}
	raw, err := resp.RawJSON()
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "null", string(raw))

	resp.Body = []byte("<html>")
	_, err = resp.RawJSON()
	assert.True(t, errors.Is(err, ErrUpstream))
}
