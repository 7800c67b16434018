package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultMaxBodyBytes caps upstream bodies when Config.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 10 << 20

// Config bundles the HTTP client and resilience settings of a Session.
type Config struct {
	Client  *http.Client
	Backoff BackoffConfig

	// MaxBodyBytes limits how much of an upstream body is read.
	MaxBodyBytes int64
}

var (
	// ErrUpstream is matched by every failure talking to an upstream provider:
	// network errors, non-2xx statuses and undecodable bodies.
	ErrUpstream = errors.New("upstream failure")

	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errBodyTooLarge  = errors.New("response body too large")
)

// UpstreamError describes a failed upstream call.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Response is a fully read upstream response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string without any decoding.
func (r *Response) Text() string {
	return string(r.Body)
}

// RawJSON returns a copy of the body after checking that it is valid JSON.
// A literal null body yields the non-nil message "null".
func (r *Response) RawJSON() (json.RawMessage, error) {
	if !json.Valid(r.Body) {
		return nil, &UpstreamError{URL: r.URL, StatusCode: r.StatusCode, Err: errors.New("decode json: invalid body")}
	}
	return append(json.RawMessage(nil), r.Body...), nil
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &UpstreamError{URL: r.URL, StatusCode: r.StatusCode, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

// Session issues GET requests on behalf of the provider clients. It owns
// retries and one circuit breaker per upstream host; it is safe for concurrent use.
type Session struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewSession creates a Session around the shared HTTP client.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get issues a GET to rawURL with params added to its query string.
// Parameters already present in rawURL are kept; params wins on conflicts.
func (s *Session) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &UpstreamError{URL: rawURL, Err: err}
	}
	if len(params) > 0 {
		query := u.Query()
		for k, v := range params {
			query[k] = v
		}
		u.RawQuery = query.Encode()
	}
	target := u.String()

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	}

	resp, err := s.doRequestWithResilience(ctx, s.breakerFor(u.Host), buildRequest)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			return nil, err
		}
		// Strip the query so credentials never end up in error messages.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		u.RawQuery = ""
		return nil, &UpstreamError{URL: u.String(), Err: err}
	}
	return resp, nil
}

func (s *Session) breakerFor(host string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[host]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        host,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
			IsSuccessful: breakerSuccess,
		})
		s.breakers[host] = cb
	}
	return cb
}

// breakerSuccess decides which outcomes count against upstream health.
// Client errors, 501 answers and caller cancellation say nothing about it.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return !retryable(statusErr.code)
	}
	return false
}

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", e.err, e.code) }
func (e *statusError) Unwrap() error { return e.err }

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker.
func (s *Session) doRequestWithResilience(
	ctx context.Context,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*Response, error) {
	cfg := s.cfg
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, &statusError{code: resp.StatusCode, err: errRateLimited}
			case resp.StatusCode >= 500:
				return nil, &statusError{code: resp.StatusCode, err: errServerError}
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return nil, &statusError{code: resp.StatusCode, err: errUnexpected}
			}

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
			if readErr != nil {
				return nil, readErr
			}
			if int64(len(body)) > maxBody {
				return nil, errBodyTooLarge
			}

			return &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       body,
			}, nil
		})

		if err == nil {
			resp, ok := result.(*Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			resp.URL = req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if errors.Is(err, errBodyTooLarge) {
			return nil, &UpstreamError{
				URL:        req.URL.Scheme + "://" + req.URL.Host + req.URL.Path,
				StatusCode: http.StatusOK,
				Err:        err,
			}
		}

		var statusErr *statusError
		if errors.As(err, &statusErr) && !retryable(statusErr.code) {
			return nil, &UpstreamError{
				URL:        req.URL.Scheme + "://" + req.URL.Host + req.URL.Path,
				StatusCode: statusErr.code,
				Err:        statusErr.err,
			}
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			if statusErr != nil {
				return nil, &UpstreamError{
					URL:        req.URL.Scheme + "://" + req.URL.Host + req.URL.Path,
					StatusCode: statusErr.code,
					Err:        statusErr.err,
				}
			}
			return nil, lastErr
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// retryable reports whether a response status is worth another attempt.
// 501 is what the knowledge provider answers for queries it cannot interpret.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code != http.StatusNotImplemented)
}
