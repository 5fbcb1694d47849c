// Package answer turns a highlighted question into an AI answer. It owns
// prompt construction, the request timeout, the rate-limit fallback chain,
// and the short-answer escalation retry.
package answer

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/douletlabs/answerd/internal/llm"
)

// Mode selects the answer depth. Standard answers go out as-is; detailed
// and unlimited answers below their word floor trigger one escalation
// retry with a larger token budget.
type Mode string

const (
	ModeStandard  Mode = "standard"
	ModeDetailed  Mode = "detailed"
	ModeUnlimited Mode = "unlimited"
)

const (
	detailedWordFloor  = 50
	unlimitedWordFloor = 100

	detailedAdoptFactor  = 1.5
	unlimitedAdoptFactor = 2.0

	detailedMinWords  = 200
	unlimitedMinWords = 400

	detailedTokenBudget  = 4000
	unlimitedTokenBudget = 6000

	fallbackMaxTokens = 3000

	escalationTempBoost = 0.2
)

// Query is one answer request. Zero-valued override fields fall back to
// the stored settings carried in Config.
type Query struct {
	Text           string
	Mode           Mode
	PromptOverride string
	Model          string
	Temperature    float64
	MaxTokens      int
}

type Result struct {
	Answer     string
	Model      string
	TokensUsed int
	Enhanced   bool
	Fallback   bool
}

// Config carries the resolved user settings plus deployment defaults for
// one answer request. Keys arrive already decrypted.
type Config struct {
	APIKey         string
	HuggingFaceKey string

	Model       string
	Temperature float64
	MaxTokens   int

	// TimeoutSeconds bounds the whole request including escalation and
	// fallback. Zero means the mode default applies.
	TimeoutSeconds         int
	DefaultTimeoutSeconds  int
	DetailedTimeoutSeconds int

	CustomPrompt string
	Language     string
	AnswerStyle  string

	OpenRouterBaseURL  string
	HuggingFaceBaseURL string
	Referer            string
	Title              string
}

type Orchestrator struct {
	cfg      Config
	primary  llm.Provider
	fallback llm.Provider
}

var newProvider = llm.NewProvider

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{cfg: cfg}
	if cfg.APIKey != "" {
		o.primary, _ = newProvider(llm.Config{
			Kind:    llm.KindOpenRouter,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Referer: cfg.Referer,
			Title:   cfg.Title,
		})
	}
	if cfg.HuggingFaceKey != "" {
		o.fallback, _ = newProvider(llm.Config{
			Kind:    llm.KindHuggingFace,
			APIKey:  cfg.HuggingFaceKey,
			BaseURL: cfg.HuggingFaceBaseURL,
		})
	}
	return o
}

// ValidateText rejects selections too short or too empty to be questions.
func ValidateText(text string) *Error {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 3 {
		return newError(KindValidation, "Selected text is too short. Select at least 3 characters.")
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return nil
		}
	}
	return newError(KindValidation, "Selected text has no readable content.")
}

// GetAnswer runs the full answer flow. It makes at most three provider
// calls: the primary request, plus either one escalation retry or one
// rate-limit fallback, never both.
func (o *Orchestrator) GetAnswer(ctx context.Context, q Query) (*Result, error) {
	if verr := ValidateText(q.Text); verr != nil {
		return nil, verr
	}
	if o.primary == nil {
		return nil, newError(KindMissingCredential, "No API key found. Add your OpenRouter API key in settings.")
	}

	timeout := o.timeoutFor(q.Mode)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := q.PromptOverride
	if prompt == "" {
		prompt = BuildPrompt(q.Text, PromptSettings{
			CustomPrompt: o.cfg.CustomPrompt,
			Language:     o.cfg.Language,
			AnswerStyle:  o.cfg.AnswerStyle,
		})
	}

	temperature := o.cfg.Temperature
	if q.Temperature > 0 {
		temperature = q.Temperature
	}
	maxTokens := o.cfg.MaxTokens
	if q.MaxTokens > 0 {
		maxTokens = q.MaxTokens
	}

	req := llm.Request{
		Prompt:      prompt,
		Model:       defaultString(q.Model, o.cfg.Model),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if q.Mode == ModeDetailed || q.Mode == ModeUnlimited {
		req.SystemPrompt = detailedSystemPrompt
	}

	reply, err := o.primary.Answer(ctx, req)
	if err != nil {
		return o.recover(ctx, prompt, timeout, err)
	}

	result := &Result{
		Answer:     reply.Content,
		Model:      reply.Model,
		TokensUsed: reply.TokensUsed,
	}

	if floor := wordFloor(q.Mode); floor > 0 && countWords(reply.Content) < floor {
		o.escalate(ctx, q.Mode, prompt, req, result)
	}
	return result, nil
}

// escalate retries once demanding a longer answer and adopts the retry
// only when it is meaningfully longer than the first attempt. Errors on
// the retry leave the original answer in place.
func (o *Orchestrator) escalate(ctx context.Context, mode Mode, prompt string, req llm.Request, result *Result) {
	minWords, budget, factor := detailedMinWords, detailedTokenBudget, detailedAdoptFactor
	if mode == ModeUnlimited {
		minWords, budget, factor = unlimitedMinWords, unlimitedTokenBudget, unlimitedAdoptFactor
	}
	if req.MaxTokens > budget {
		budget = req.MaxTokens
	}

	retry := llm.Request{
		Prompt:       escalatedPrompt(prompt, minWords),
		SystemPrompt: escalatedSystemPrompt,
		Model:        req.Model,
		Temperature:  boostedTemperature(req.Temperature),
		MaxTokens:    budget,
	}

	reply, err := o.primary.Answer(ctx, retry)
	if err != nil {
		return
	}
	if float64(countWords(reply.Content)) > factor*float64(countWords(result.Answer)) {
		result.Answer = reply.Content
		result.Model = reply.Model
		result.TokensUsed = reply.TokensUsed
		result.Enhanced = true
	}
}

// recover translates a primary failure into either a fallback answer or a
// classified error. Only a 429 with a configured Hugging Face key earns a
// second request.
func (o *Orchestrator) recover(ctx context.Context, prompt string, timeout time.Duration, err error) (*Result, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, newError(KindTimeout, "Request timed out after %d seconds. Try a shorter selection or raise the timeout in settings.", int(timeout.Seconds()))
	}
	if errors.Is(err, llm.ErrNoChoices) {
		return nil, newError(KindInvalidResponse, "The AI service returned an invalid response. Try again.")
	}
	if errors.Is(err, llm.ErrEmptyReply) {
		return nil, newError(KindEmptyResponse, "The AI service returned an empty answer. Try again or switch models.")
	}
	if llm.IsRateLimited(err) {
		if o.fallback == nil {
			return nil, newError(KindRateLimited, "OpenRouter daily limit reached (429). Add a Hugging Face API key in settings for fallback support.")
		}
		maxTokens := o.cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = fallbackMaxTokens
		}
		reply, fallbackErr := o.fallback.Answer(ctx, llm.Request{
			Prompt:      prompt,
			Temperature: o.cfg.Temperature,
			MaxTokens:   maxTokens,
		})
		if fallbackErr != nil {
			return nil, newError(KindRateLimited, "OpenRouter daily limit reached and the Hugging Face fallback also failed: %v", fallbackErr)
		}
		return &Result{
			Answer:     reply.Content,
			Model:      reply.Model,
			TokensUsed: reply.TokensUsed,
			Fallback:   true,
		}, nil
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return nil, newError(KindProviderError, "The AI service rejected the request (status %d): %s", statusErr.Code, statusErr.Body)
	}
	return nil, newError(KindInternal, "Failed to get an answer: %v", err)
}

func (o *Orchestrator) timeoutFor(mode Mode) time.Duration {
	seconds := o.cfg.TimeoutSeconds
	if seconds <= 0 {
		switch mode {
		case ModeDetailed, ModeUnlimited:
			seconds = o.cfg.DetailedTimeoutSeconds
		default:
			seconds = o.cfg.DefaultTimeoutSeconds
		}
	}
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func wordFloor(mode Mode) int {
	switch mode {
	case ModeDetailed:
		return detailedWordFloor
	case ModeUnlimited:
		return unlimitedWordFloor
	default:
		return 0
	}
}

func boostedTemperature(temp float64) float64 {
	boosted := temp + escalationTempBoost
	if boosted > 1.0 {
		boosted = 1.0
	}
	return boosted
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
