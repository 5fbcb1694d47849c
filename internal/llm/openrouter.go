package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// OpenRouterProvider speaks the OpenAI-compatible chat-completions wire
// format used by OpenRouter.
type OpenRouterProvider struct {
	apiKey  string
	baseURL string
	referer string
	title   string
	client  *http.Client
}

func NewOpenRouterProvider(cfg Config) *OpenRouterProvider {
	return &OpenRouterProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"), "/"),
		referer: cfg.Referer,
		title:   defaultIfEmpty(cfg.Title, "answerd"),
		client:  &http.Client{},
	}
}

type chatCompletionBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatCompletionReply struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenRouterProvider) Answer(ctx context.Context, req Request) (Reply, error) {
	if p.apiKey == "" {
		return Reply{}, ErrMissingAPIKey
	}
	messages := make([]Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatCompletionBody{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return Reply{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if p.referer != "" {
		httpReq.Header.Set("HTTP-Referer", p.referer)
	}
	httpReq.Header.Set("X-Title", p.title)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diagnostic, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Reply{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(diagnostic))}
	}

	var parsed chatCompletionReply
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Reply{}, err
	}
	if len(parsed.Choices) == 0 {
		return Reply{}, ErrNoChoices
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return Reply{}, ErrEmptyReply
	}
	return Reply{
		Content:    content,
		Model:      req.Model,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
