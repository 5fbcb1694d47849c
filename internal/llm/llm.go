package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat-completion call. Deadlines come from the caller's
// context; providers do not set their own timeouts.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
}

type Reply struct {
	Content    string
	Model      string
	TokensUsed int
}

type Provider interface {
	Answer(ctx context.Context, req Request) (Reply, error)
}

// Kind selects the provider adapter. Response shapes differ per provider,
// so each kind maps to a dedicated adapter rather than probing fields.
type Kind string

const (
	KindOpenRouter  Kind = "openrouter"
	KindHuggingFace Kind = "huggingface"
	KindDeepSeek    Kind = "deepseek"
)

type Config struct {
	Kind    Kind
	APIKey  string
	BaseURL string
	Referer string
	Title   string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case KindOpenRouter:
		return NewOpenRouterProvider(cfg), nil
	case KindHuggingFace:
		return NewHuggingFaceProvider(cfg), nil
	case KindDeepSeek:
		return NewDeepSeekProvider(cfg), nil
	default:
		return nil, ErrUnsupportedProvider{Kind: cfg.Kind}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
