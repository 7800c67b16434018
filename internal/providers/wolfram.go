package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DefaultWolframURL is the Wolfram|Alpha API host.
const DefaultWolframURL = "https://api.wolframalpha.com"

// OutputJSON and OutputXML are the formats the full query endpoint can return.
const (
	OutputJSON = "json"
	OutputXML  = "xml"
)

// WolframClient builds requests for the Wolfram|Alpha spoken, simple and full
// results APIs.
type WolframClient struct {
	name    string
	apiKey  string
	baseURL string
	session Getter
}

func NewWolframClient(session Getter, apiKey string, opts ...Option) *WolframClient {
	o := buildOptions(DefaultWolframURL, opts)
	return &WolframClient{
		name:    "wolframalpha",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(o.baseURL, "/"),
		session: session,
	}
}

func (c *WolframClient) Name() string {
	return c.name
}

// Spoken returns the plain text answer of /v1/spoken.
func (c *WolframClient) Spoken(ctx context.Context, query, units string) (string, error) {
	return c.text(ctx, "/v1/spoken", query, units)
}

// Simple returns the raw body of /v1/simple.
func (c *WolframClient) Simple(ctx context.Context, query, units string) (string, error) {
	return c.text(ctx, "/v1/simple", query, units)
}

// Full queries /v2/query. With OutputJSON (or an empty output) the body is
// decoded; any other output format is returned as the raw body string.
func (c *WolframClient) Full(ctx context.Context, query, units, output string) (any, error) {
	if output == "" {
		output = OutputJSON
	}

	// The full results API names the query "input", unlike v1 which uses "i".
	values := url.Values{}
	values.Set("appid", c.apiKey)
	values.Set("input", query)
	values.Set("output", output)
	values.Set("units", units)

	resp, err := c.session.Get(ctx, c.baseURL+"/v2/query", values)
	if err != nil {
		return nil, fmt.Errorf("%s full: %w", c.name, err)
	}

	if output != OutputJSON {
		return resp.Text(), nil
	}

	var payload any
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("%s full: %w", c.name, err)
	}
	return payload, nil
}

func (c *WolframClient) text(ctx context.Context, path, query, units string) (string, error) {
	values := url.Values{}
	values.Set("appid", c.apiKey)
	values.Set("i", query)
	values.Set("units", units)

	resp, err := c.session.Get(ctx, c.baseURL+path, values)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", c.name, path, err)
	}
	return resp.Text(), nil
}
