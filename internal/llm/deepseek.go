package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const deepSeekChatModel = "deepseek-chat"

// DeepSeekProvider is OpenAI-shaped but pins the chat model, matching the
// provider's free tier.
type DeepSeekProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewDeepSeekProvider(cfg Config) *DeepSeekProvider {
	return &DeepSeekProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(defaultIfEmpty(cfg.BaseURL, "https://api.deepseek.com"), "/"),
		client:  &http.Client{},
	}
}

func (p *DeepSeekProvider) Answer(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(chatCompletionBody{
		Model:       deepSeekChatModel,
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
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
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

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
		Model:      deepSeekChatModel,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
