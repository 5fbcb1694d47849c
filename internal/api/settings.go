package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/douletlabs/answerd/internal/answer"
	"github.com/douletlabs/answerd/internal/catalog"
	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/secrets"
	"github.com/douletlabs/answerd/internal/store"
)

var encryptSecret = secrets.Encrypt

// settingsRequest uses pointers so a merge-style update can tell "absent"
// from "set to the zero value". Credentials are write-only: a non-empty
// value replaces the stored ciphertext, an explicit empty string clears it.
type settingsRequest struct {
	APIKey         *string  `json:"api_key"`
	HuggingFaceKey *string  `json:"hugging_face_key"`
	Model          *string  `json:"model"`
	Temperature    *float64 `json:"temperature"`
	MaxTokens      *int     `json:"max_tokens"`
	TimeoutSeconds *int     `json:"timeout_seconds"`
	AutoAnswer     *bool    `json:"auto_answer"`
	ShowButton     *bool    `json:"show_button"`
	EnableSounds   *bool    `json:"enable_sounds"`
	AnonymousMode  *bool    `json:"anonymous_mode"`
	AnswerStyle    *string  `json:"answer_style"`
	Language       *string  `json:"language"`
	CustomPrompt   *string  `json:"custom_prompt"`
}

type settingsResponse struct {
	Configured         bool     `json:"configured"`
	Model              string   `json:"model"`
	ModelName          string   `json:"model_name"`
	Temperature        float64  `json:"temperature"`
	MaxTokens          int      `json:"max_tokens"`
	TimeoutSeconds     int      `json:"timeout_seconds"`
	AutoAnswer         bool     `json:"auto_answer"`
	ShowButton         bool     `json:"show_button"`
	EnableSounds       bool     `json:"enable_sounds"`
	AnonymousMode      bool     `json:"anonymous_mode"`
	AnswerStyle        string   `json:"answer_style"`
	Language           string   `json:"language"`
	CustomPrompt       string   `json:"custom_prompt"`
	FreeModels         []string `json:"free_models"`
	LastAnswer         string   `json:"last_answer,omitempty"`
	HasAPIKey          bool     `json:"has_api_key"`
	APIKeyHint         string   `json:"api_key_hint,omitempty"`
	HasHuggingFaceKey  bool     `json:"has_hugging_face_key"`
	HuggingFaceKeyHint string   `json:"hugging_face_key_hint,omitempty"`
}

// defaultSettings is the view served before the first update, built from
// deployment config.
func (s *Server) defaultSettings() store.Settings {
	return store.Settings{
		Model:          s.cfg.DefaultModel,
		Temperature:    s.cfg.DefaultTemperature,
		MaxTokens:      s.cfg.DefaultMaxTokens,
		TimeoutSeconds: s.cfg.AnswerTimeout,
		ShowButton:     true,
		AnswerStyle:    "detailed",
		Language:       "auto",
	}
}

func (s *Server) loadSettings(ctx context.Context) (store.Settings, bool, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return store.Settings{}, false, err
	}
	if settings == nil {
		return s.defaultSettings(), false, nil
	}
	return *settings, true, nil
}

func (s *Server) decryptSecret(encrypted string) string {
	if encrypted == "" || s.cfg.SecretsKey == "" {
		return ""
	}
	key, err := secrets.ParseKey(s.cfg.SecretsKey)
	if err != nil {
		return ""
	}
	plain, err := secrets.Decrypt(key, encrypted)
	if err != nil {
		return ""
	}
	return plain
}

func keyHint(key string) string {
	if len(key) >= 4 {
		return key[len(key)-4:]
	}
	return ""
}

func (s *Server) settingsView(settings store.Settings, configured bool) settingsResponse {
	response := settingsResponse{
		Configured:        configured,
		Model:             settings.Model,
		ModelName:         catalog.DisplayName(settings.Model),
		Temperature:       settings.Temperature,
		MaxTokens:         settings.MaxTokens,
		TimeoutSeconds:    settings.TimeoutSeconds,
		AutoAnswer:        settings.AutoAnswer,
		ShowButton:        settings.ShowButton,
		EnableSounds:      settings.EnableSounds,
		AnonymousMode:     settings.AnonymousMode,
		AnswerStyle:       settings.AnswerStyle,
		Language:          settings.Language,
		CustomPrompt:      settings.CustomPrompt,
		FreeModels:        settings.FreeModels,
		LastAnswer:        settings.LastAnswer,
		HasAPIKey:         settings.APIKeyEnc != "",
		HasHuggingFaceKey: settings.HuggingFaceKeyEnc != "",
	}
	if response.HasAPIKey {
		response.APIKeyHint = keyHint(s.decryptSecret(settings.APIKeyEnc))
	}
	if response.HasHuggingFaceKey {
		response.HuggingFaceKeyHint = keyHint(s.decryptSecret(settings.HuggingFaceKeyEnc))
	}
	return response
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, configured, err := s.loadSettings(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.settingsView(settings, configured))
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	settings, err := s.applySettings(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.settingsView(settings, true))
}

// applySettings merges the request into the stored row, persists it, and
// notifies subscribers so they reload the full settings map.
func (s *Server) applySettings(ctx context.Context, req settingsRequest) (store.Settings, error) {
	settings, configured, err := s.loadSettings(ctx)
	if err != nil {
		return store.Settings{}, err
	}

	if req.Model != nil {
		settings.Model = strings.TrimSpace(*req.Model)
	}
	if req.Temperature != nil {
		settings.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		settings.MaxTokens = *req.MaxTokens
	}
	if req.TimeoutSeconds != nil {
		settings.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.AutoAnswer != nil {
		settings.AutoAnswer = *req.AutoAnswer
	}
	if req.ShowButton != nil {
		settings.ShowButton = *req.ShowButton
	}
	if req.EnableSounds != nil {
		settings.EnableSounds = *req.EnableSounds
	}
	if req.AnonymousMode != nil {
		settings.AnonymousMode = *req.AnonymousMode
	}
	if req.AnswerStyle != nil {
		settings.AnswerStyle = *req.AnswerStyle
	}
	if req.Language != nil {
		settings.Language = *req.Language
	}
	if req.CustomPrompt != nil {
		settings.CustomPrompt = *req.CustomPrompt
	}

	if req.APIKey != nil {
		enc, err := s.encryptCredential(*req.APIKey)
		if err != nil {
			return store.Settings{}, err
		}
		settings.APIKeyEnc = enc
	}
	if req.HuggingFaceKey != nil {
		enc, err := s.encryptCredential(*req.HuggingFaceKey)
		if err != nil {
			return store.Settings{}, err
		}
		settings.HuggingFaceKeyEnc = enc
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if !configured || settings.CreatedAt == "" {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		return store.Settings{}, err
	}
	s.broker.Publish(events.Event{
		Topic:   events.SettingsTopic,
		Type:    "settings_updated",
		Ts:      now,
		Source:  "api",
		Payload: map[string]any{},
	})
	return settings, nil
}

func (s *Server) encryptCredential(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	key, err := secrets.ParseKey(s.cfg.SecretsKey)
	if err != nil {
		return "", err
	}
	return encryptSecret(key, plain)
}

type testConnectionRequest struct {
	APIKey string `json:"api_key"`
}

type testConnectionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// testConnection validates the key format locally. No request is sent to
// the provider; a well-formed key is reported as connected.
func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		settings, _, err := s.loadSettings(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		apiKey = s.decryptSecret(settings.APIKeyEnc)
	}
	if ok, reason := validAPIKeyFormat(apiKey); !ok {
		writeJSON(w, testConnectionResponse{Success: false, Error: reason})
		return
	}
	writeJSON(w, testConnectionResponse{Success: true})
}

func validAPIKeyFormat(apiKey string) (bool, string) {
	if apiKey == "" {
		return false, "No API key configured."
	}
	if !strings.HasPrefix(apiKey, "sk-") && !strings.HasPrefix(apiKey, "or-") {
		return false, "API key must start with sk- or or-."
	}
	return true, ""
}

func (s *Server) refreshModels(w http.ResponseWriter, r *http.Request) {
	models := s.catalog.Refresh(r.Context())
	writeJSON(w, map[string]any{"models": models})
}

func (s *Server) streamSettings(w http.ResponseWriter, r *http.Request) {
	s.streamTopic(w, r, events.SettingsTopic, nil)
}

// orchestratorConfig assembles the per-request answer configuration from
// stored settings and deployment defaults.
func (s *Server) orchestratorConfig(settings store.Settings) answer.Config {
	temperature := settings.Temperature
	if temperature <= 0 {
		temperature = s.cfg.DefaultTemperature
	}
	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.DefaultMaxTokens
	}
	return answer.Config{
		APIKey:                 s.decryptSecret(settings.APIKeyEnc),
		HuggingFaceKey:         s.decryptSecret(settings.HuggingFaceKeyEnc),
		Model:                  defaultString(settings.Model, s.cfg.DefaultModel),
		Temperature:            temperature,
		MaxTokens:              maxTokens,
		TimeoutSeconds:         settings.TimeoutSeconds,
		DefaultTimeoutSeconds:  s.cfg.AnswerTimeout,
		DetailedTimeoutSeconds: s.cfg.DetailedTimeout,
		CustomPrompt:           settings.CustomPrompt,
		Language:               settings.Language,
		AnswerStyle:            settings.AnswerStyle,
		OpenRouterBaseURL:      s.cfg.OpenRouterBaseURL,
		HuggingFaceBaseURL:     s.cfg.HuggingFaceBaseURL,
		Referer:                "https://douletlabs.com/answers",
		Title:                  "Doulet AI Assistant",
	}
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
