package external

import (
	"context"

	"github.com/i474232898/assistant-api-facade/internal/providers"
)

// KnowledgeMode tells which backend serves knowledge queries.
type KnowledgeMode string

const (
	KnowledgeLocal       KnowledgeMode = "local"
	KnowledgeFederated   KnowledgeMode = "federated"
	KnowledgeUnavailable KnowledgeMode = "unavailable"
)

// Answer formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Answer is a knowledge provider response.
type Answer struct {
	Source KnowledgeMode `json:"source"`
	Format string        `json:"format"`
	// Text holds the raw body for text and xml answers.
	Text string `json:"text,omitempty"`
	// Data holds the decoded body for json answers.
	Data any `json:"data,omitempty"`
}

// FederatedKnowledge is implemented by fallback clients able to answer
// spoken knowledge queries.
type FederatedKnowledge interface {
	WolframSpoken(ctx context.Context, q providers.FederatedQuery) (string, error)
}

// knowledgeBackend is resolved once at construction. A nil Answer with a nil
// error means the backend cannot serve that query shape.
type knowledgeBackend interface {
	mode() KnowledgeMode
	spoken(ctx context.Context, query, units string) (*Answer, error)
	simple(ctx context.Context, query, units string) (*Answer, error)
	full(ctx context.Context, query, units, output string) (*Answer, error)
}

type localKnowledge struct {
	client *providers.WolframClient
}

func (localKnowledge) mode() KnowledgeMode { return KnowledgeLocal }

func (k localKnowledge) spoken(ctx context.Context, query, units string) (*Answer, error) {
	text, err := k.client.Spoken(ctx, query, units)
	if err != nil {
		return nil, err
	}
	return &Answer{Source: KnowledgeLocal, Format: FormatText, Text: text}, nil
}

func (k localKnowledge) simple(ctx context.Context, query, units string) (*Answer, error) {
	text, err := k.client.Simple(ctx, query, units)
	if err != nil {
		return nil, err
	}
	return &Answer{Source: KnowledgeLocal, Format: FormatText, Text: text}, nil
}

func (k localKnowledge) full(ctx context.Context, query, units, output string) (*Answer, error) {
	body, err := k.client.Full(ctx, query, units, output)
	if err != nil {
		return nil, err
	}
	if output == providers.OutputJSON {
		return &Answer{Source: KnowledgeLocal, Format: FormatJSON, Data: body}, nil
	}
	text, _ := body.(string)
	return &Answer{Source: KnowledgeLocal, Format: output, Text: text}, nil
}

// federatedKnowledge only knows the spoken query shape.
type federatedKnowledge struct {
	client FederatedKnowledge
}

func (federatedKnowledge) mode() KnowledgeMode { return KnowledgeFederated }

func (k federatedKnowledge) spoken(ctx context.Context, query, units string) (*Answer, error) {
	text, err := k.client.WolframSpoken(ctx, providers.FederatedQuery{Input: query, Units: units})
	if err != nil {
		return nil, err
	}
	return &Answer{Source: KnowledgeFederated, Format: FormatText, Text: text}, nil
}

func (federatedKnowledge) simple(context.Context, string, string) (*Answer, error) {
	return nil, nil
}

func (federatedKnowledge) full(context.Context, string, string, string) (*Answer, error) {
	return nil, nil
}

type unavailableKnowledge struct{}

func (unavailableKnowledge) mode() KnowledgeMode { return KnowledgeUnavailable }

func (unavailableKnowledge) spoken(context.Context, string, string) (*Answer, error) {
	return nil, nil
}

func (unavailableKnowledge) simple(context.Context, string, string) (*Answer, error) {
	return nil, nil
}

func (unavailableKnowledge) full(context.Context, string, string, string) (*Answer, error) {
	return nil, nil
}
