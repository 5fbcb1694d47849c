package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/douletlabs/answerd/internal/answer"
	"github.com/douletlabs/answerd/internal/config"
	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/secrets"
	"github.com/douletlabs/answerd/internal/store"
)

type ResolveInput struct {
	AskID string
}

type ResolveOutput struct {
	Status string `json:"status"`
}

type AskFailureInput struct {
	AskID string
	Error string
}

type AskStatusInput struct {
	AskID string
}

type Publisher interface {
	Publish(event events.Event)
}

// answerer lets tests swap the orchestrator for a stub.
type answerer interface {
	GetAnswer(ctx context.Context, q answer.Query) (*answer.Result, error)
}

var newAnswerer = func(cfg answer.Config) answerer {
	return answer.New(cfg)
}

type AskActivities struct {
	store  store.Store
	broker Publisher
	cfg    config.Config
}

func NewAskActivities(st store.Store, broker Publisher, cfg config.Config) *AskActivities {
	return &AskActivities{store: st, broker: broker, cfg: cfg}
}

// ResolveAnswer runs the full answer flow for a stored ask: mark it
// running, invoke the orchestrator, and persist the outcome. Failures are
// returned to the workflow, which persists them via MarkAskFailed.
func (a *AskActivities) ResolveAnswer(ctx context.Context, input ResolveInput) (ResolveOutput, error) {
	ask, err := a.store.GetAsk(ctx, input.AskID)
	if err != nil {
		return ResolveOutput{}, err
	}
	if ask == nil {
		return ResolveOutput{}, fmt.Errorf("ask %s not found", input.AskID)
	}

	ask.Status = store.AskStatusRunning
	ask.UpdatedAt = now()
	if err := a.store.UpdateAsk(ctx, *ask); err != nil {
		return ResolveOutput{}, err
	}
	a.appendAskEvent(ctx, ask.ID, "ask.running", map[string]any{"status": store.AskStatusRunning})

	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return ResolveOutput{}, err
	}
	if settings == nil {
		settings = &store.Settings{}
	}

	orchestrator := newAnswerer(a.orchestratorConfig(*settings))
	result, err := orchestrator.GetAnswer(ctx, answer.Query{
		Text: ask.Text,
		Mode: answer.Mode(ask.Mode),
	})
	if err != nil {
		return ResolveOutput{}, err
	}

	ask.Status = store.AskStatusCompleted
	ask.Answer = result.Answer
	ask.Model = result.Model
	ask.TokensUsed = result.TokensUsed
	ask.Enhanced = result.Enhanced
	ask.Fallback = result.Fallback
	ask.UpdatedAt = now()
	if err := a.store.UpdateAsk(ctx, *ask); err != nil {
		return ResolveOutput{}, err
	}

	settings.LastAnswer = result.Answer
	settings.UpdatedAt = now()
	if settings.CreatedAt == "" {
		settings.CreatedAt = settings.UpdatedAt
	}
	_ = a.store.UpsertSettings(ctx, *settings)

	a.appendAskEvent(ctx, ask.ID, "ask.completed", map[string]any{
		"status":      store.AskStatusCompleted,
		"model":       result.Model,
		"tokens_used": result.TokensUsed,
		"enhanced":    result.Enhanced,
		"fallback":    result.Fallback,
	})
	return ResolveOutput{Status: store.AskStatusCompleted}, nil
}

func (a *AskActivities) MarkAskFailed(ctx context.Context, input AskFailureInput) error {
	return a.markAsk(ctx, input.AskID, store.AskStatusFailed, input.Error)
}

func (a *AskActivities) MarkAskCancelled(ctx context.Context, input AskStatusInput) error {
	return a.markAsk(ctx, input.AskID, store.AskStatusCancelled, "")
}

func (a *AskActivities) markAsk(ctx context.Context, askID string, status string, errorMessage string) error {
	ask, err := a.store.GetAsk(ctx, askID)
	if err != nil {
		return err
	}
	if ask == nil {
		return errors.New("ask " + askID + " not found")
	}
	ask.Status = status
	ask.Error = errorMessage
	ask.UpdatedAt = now()
	if err := a.store.UpdateAsk(ctx, *ask); err != nil {
		return err
	}
	payload := map[string]any{"status": status}
	if errorMessage != "" {
		payload["error"] = errorMessage
	}
	a.appendAskEvent(ctx, askID, "ask."+status, payload)
	return nil
}

func (a *AskActivities) appendAskEvent(ctx context.Context, askID string, eventType string, payload map[string]any) {
	seq, _ := a.store.NextSeq(ctx, askID)
	event := store.AskEvent{
		AskID:     askID,
		Seq:       seq,
		Type:      events.NormalizeType(eventType),
		Timestamp: now(),
		Source:    "worker",
		TraceID:   uuid.New().String(),
		Payload:   payload,
	}
	_ = a.store.AppendEvent(ctx, event)
	if a.broker != nil {
		a.broker.Publish(events.Event{
			Topic:   events.AskTopic(event.AskID),
			Seq:     event.Seq,
			Type:    event.Type,
			Ts:      event.Timestamp,
			Source:  event.Source,
			TraceID: event.TraceID,
			Payload: event.Payload,
		})
	}
}

func (a *AskActivities) orchestratorConfig(settings store.Settings) answer.Config {
	temperature := settings.Temperature
	if temperature <= 0 {
		temperature = a.cfg.DefaultTemperature
	}
	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.cfg.DefaultMaxTokens
	}
	model := settings.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}
	return answer.Config{
		APIKey:                 a.decryptSecret(settings.APIKeyEnc),
		HuggingFaceKey:         a.decryptSecret(settings.HuggingFaceKeyEnc),
		Model:                  model,
		Temperature:            temperature,
		MaxTokens:              maxTokens,
		TimeoutSeconds:         settings.TimeoutSeconds,
		DefaultTimeoutSeconds:  a.cfg.AnswerTimeout,
		DetailedTimeoutSeconds: a.cfg.DetailedTimeout,
		CustomPrompt:           settings.CustomPrompt,
		Language:               settings.Language,
		AnswerStyle:            settings.AnswerStyle,
		OpenRouterBaseURL:      a.cfg.OpenRouterBaseURL,
		HuggingFaceBaseURL:     a.cfg.HuggingFaceBaseURL,
		Referer:                "https://douletlabs.com/answers",
		Title:                  "Doulet AI Assistant",
	}
}

func (a *AskActivities) decryptSecret(encrypted string) string {
	if encrypted == "" || a.cfg.SecretsKey == "" {
		return ""
	}
	key, err := secrets.ParseKey(a.cfg.SecretsKey)
	if err != nil {
		return ""
	}
	plain, err := secrets.Decrypt(key, encrypted)
	if err != nil {
		return ""
	}
	return plain
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
