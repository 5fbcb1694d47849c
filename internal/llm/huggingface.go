package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const defaultHuggingFaceModel = "mistralai/Mistral-7B-Instruct-v0.2"

// HuggingFaceProvider adapts the Inference API's text-generation shape to
// the shared Reply contract. It is used as the rate-limit fallback.
type HuggingFaceProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewHuggingFaceProvider(cfg Config) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(defaultIfEmpty(cfg.BaseURL, "https://api-inference.huggingface.co"), "/"),
		client:  &http.Client{},
	}
}

type huggingFaceBody struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
}

type huggingFaceParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

func (p *HuggingFaceProvider) Answer(ctx context.Context, req Request) (Reply, error) {
	if p.apiKey == "" {
		return Reply{}, ErrMissingAPIKey
	}
	model := req.Model
	if model == "" {
		model = defaultHuggingFaceModel
	}
	body, err := json.Marshal(huggingFaceBody{
		Inputs: req.Prompt,
		Parameters: huggingFaceParameters{
			MaxNewTokens:   req.MaxTokens,
			Temperature:    req.Temperature,
			DoSample:       true,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return Reply{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models/"+model, bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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

	var parsed []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Reply{}, err
	}
	if len(parsed) == 0 {
		return Reply{}, ErrNoChoices
	}
	content := parsed[0].GeneratedText
	if strings.TrimSpace(content) == "" {
		return Reply{}, ErrEmptyReply
	}
	return Reply{
		Content: content,
		Model:   "huggingface",
		// The inference API reports no usage; estimate four chars per token.
		TokensUsed: len(content) / 4,
	}, nil
}
