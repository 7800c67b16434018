package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// FederatedQuery is the payload forwarded to the shared intermediary service.
type FederatedQuery struct {
	Input string
	Units string
}

// FederatedClient talks to the shared intermediary service used when the
// operator has no personal knowledge key.
type FederatedClient struct {
	name    string
	baseURL string
	session Getter
}

func NewFederatedClient(session Getter, baseURL string) *FederatedClient {
	return &FederatedClient{
		name:    "federated",
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
	}
}

func (c *FederatedClient) Name() string {
	return c.name
}

// WolframSpoken asks the intermediary for a spoken knowledge answer.
func (c *FederatedClient) WolframSpoken(ctx context.Context, q FederatedQuery) (string, error) {
	values := url.Values{}
	values.Set("input", q.Input)
	values.Set("units", q.Units)

	resp, err := c.session.Get(ctx, c.baseURL+"/wolframalpha/spoken", values)
	if err != nil {
		return "", fmt.Errorf("%s spoken: %w", c.name, err)
	}
	return resp.Text(), nil
}
