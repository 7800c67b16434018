package providers

import (
	"context"
	"net/url"
	"strconv"

	"github.com/i474232898/assistant-api-facade/internal/transport"
)

// Getter is the slice of the transport session the provider clients need.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*transport.Response, error)
}

// Option customises a provider client.
type Option func(*options)

type options struct {
	baseURL string
}

// WithBaseURL overrides the upstream base URL, e.g. for a proxy or a test server.
// An empty value keeps the default.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

func buildOptions(defaultBase string, opts []Option) options {
	o := options{baseURL: defaultBase}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
