package llm

import (
	"errors"
	"net/http"
	"testing"
)

func TestNewProvider_Kinds(t *testing.T) {
	provider, err := NewProvider(Config{Kind: KindOpenRouter, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*OpenRouterProvider); !ok {
		t.Errorf("expected OpenRouterProvider, got %T", provider)
	}

	provider, err = NewProvider(Config{Kind: KindHuggingFace, APIKey: "hf-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*HuggingFaceProvider); !ok {
		t.Errorf("expected HuggingFaceProvider, got %T", provider)
	}

	provider, err = NewProvider(Config{Kind: KindDeepSeek})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := provider.(*DeepSeekProvider); !ok {
		t.Errorf("expected DeepSeekProvider, got %T", provider)
	}
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider(Config{Kind: Kind("perplexity")})
	if err == nil {
		t.Fatal("expected error for unsupported kind")
	}
	var unsupported ErrUnsupportedProvider
	if !errors.As(err, &unsupported) {
		t.Errorf("expected ErrUnsupportedProvider, got %T", err)
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(&StatusError{Code: http.StatusTooManyRequests, Body: "slow down"}) {
		t.Error("expected 429 to be rate limited")
	}
	if IsRateLimited(&StatusError{Code: http.StatusBadGateway}) {
		t.Error("502 must not be rate limited")
	}
	if IsRateLimited(errors.New("boom")) {
		t.Error("plain error must not be rate limited")
	}
}

func TestDefaultIfEmpty(t *testing.T) {
	if got := defaultIfEmpty("", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
	if got := defaultIfEmpty("value", "fallback"); got != "value" {
		t.Errorf("expected value, got %s", got)
	}
}
