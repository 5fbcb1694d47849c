package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/douletlabs/answerd/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"settings",
		"asks",
		"ask_events",
		"ask_event_sequences",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) GetSettings(ctx context.Context) (*store.Settings, error) {
	const query = `
		SELECT api_key_enc, hugging_face_key_enc, model, temperature, max_tokens, timeout_seconds,
			auto_answer, show_button, enable_sounds, anonymous_mode,
			answer_style, language, custom_prompt, free_models, last_answer,
			created_at, updated_at
		FROM settings
		WHERE id = 1
	`
	var createdAt time.Time
	var updatedAt time.Time
	var freeModels []byte
	settings := store.Settings{}
	if err := p.db.QueryRowContext(ctx, query).Scan(
		&settings.APIKeyEnc,
		&settings.HuggingFaceKeyEnc,
		&settings.Model,
		&settings.Temperature,
		&settings.MaxTokens,
		&settings.TimeoutSeconds,
		&settings.AutoAnswer,
		&settings.ShowButton,
		&settings.EnableSounds,
		&settings.AnonymousMode,
		&settings.AnswerStyle,
		&settings.Language,
		&settings.CustomPrompt,
		&freeModels,
		&settings.LastAnswer,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(freeModels) > 0 {
		if err := json.Unmarshal(freeModels, &settings.FreeModels); err != nil {
			return nil, err
		}
	}
	settings.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	settings.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &settings, nil
}

func (p *PostgresStore) UpsertSettings(ctx context.Context, settings store.Settings) error {
	freeModels, err := json.Marshal(settings.FreeModels)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO settings
			(id, api_key_enc, hugging_face_key_enc, model, temperature, max_tokens, timeout_seconds,
			 auto_answer, show_button, enable_sounds, anonymous_mode,
			 answer_style, language, custom_prompt, free_models, last_answer,
			 created_at, updated_at)
		VALUES
			(1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id)
		DO UPDATE SET
			api_key_enc = EXCLUDED.api_key_enc,
			hugging_face_key_enc = EXCLUDED.hugging_face_key_enc,
			model = EXCLUDED.model,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			timeout_seconds = EXCLUDED.timeout_seconds,
			auto_answer = EXCLUDED.auto_answer,
			show_button = EXCLUDED.show_button,
			enable_sounds = EXCLUDED.enable_sounds,
			anonymous_mode = EXCLUDED.anonymous_mode,
			answer_style = EXCLUDED.answer_style,
			language = EXCLUDED.language,
			custom_prompt = EXCLUDED.custom_prompt,
			free_models = EXCLUDED.free_models,
			last_answer = EXCLUDED.last_answer,
			updated_at = EXCLUDED.updated_at
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		settings.APIKeyEnc,
		settings.HuggingFaceKeyEnc,
		settings.Model,
		settings.Temperature,
		settings.MaxTokens,
		settings.TimeoutSeconds,
		settings.AutoAnswer,
		settings.ShowButton,
		settings.EnableSounds,
		settings.AnonymousMode,
		settings.AnswerStyle,
		settings.Language,
		settings.CustomPrompt,
		freeModels,
		settings.LastAnswer,
		parseTimestampValue(settings.CreatedAt),
		parseTimestampValue(settings.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) CreateAsk(ctx context.Context, ask store.Ask) error {
	status := strings.TrimSpace(ask.Status)
	if status == "" {
		status = store.AskStatusPending
	}
	const query = `
		INSERT INTO asks
			(id, text, mode, status, answer, model, tokens_used, enhanced, fallback, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		ask.ID,
		ask.Text,
		ask.Mode,
		status,
		ask.Answer,
		ask.Model,
		ask.TokensUsed,
		ask.Enhanced,
		ask.Fallback,
		nullString(ask.Error),
		parseTimestampValue(ask.CreatedAt),
		parseTimestampValue(ask.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) GetAsk(ctx context.Context, askID string) (*store.Ask, error) {
	const query = `
		SELECT id, text, mode, status, answer, model, tokens_used, enhanced, fallback, error, created_at, updated_at
		FROM asks
		WHERE id = $1
	`
	row := p.db.QueryRowContext(ctx, query, askID)
	ask, err := scanAsk(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return ask, nil
}

func (p *PostgresStore) ListAsks(ctx context.Context) ([]store.Ask, error) {
	const query = `
		SELECT id, text, mode, status, answer, model, tokens_used, enhanced, fallback, error, created_at, updated_at
		FROM asks
		ORDER BY created_at DESC, id
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	asks := []store.Ask{}
	for rows.Next() {
		ask, err := scanAsk(rows)
		if err != nil {
			return nil, err
		}
		asks = append(asks, *ask)
	}
	return asks, rows.Err()
}

func (p *PostgresStore) UpdateAsk(ctx context.Context, ask store.Ask) error {
	const query = `
		UPDATE asks
		SET status = $2, answer = $3, model = $4, tokens_used = $5, enhanced = $6,
			fallback = $7, error = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := p.db.ExecContext(
		ctx,
		query,
		ask.ID,
		ask.Status,
		ask.Answer,
		ask.Model,
		ask.TokensUsed,
		ask.Enhanced,
		ask.Fallback,
		nullString(ask.Error),
		parseTimestampValue(ask.UpdatedAt),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("ask not found: %s", ask.ID)
	}
	return nil
}

func (p *PostgresStore) DeleteAsk(ctx context.Context, askID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM asks WHERE id = $1", askID)
	return err
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.AskEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	eventType := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(event.Type)), "_", ".")
	traceID := strings.TrimSpace(event.TraceID)
	var traceIDValue any
	if traceID == "" {
		traceIDValue = nil
	} else if _, err := uuid.Parse(traceID); err != nil {
		traceIDValue = nil
	} else {
		traceIDValue = traceID
	}
	const query = `
		INSERT INTO ask_events (ask_id, seq, type, timestamp, source, trace_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		event.AskID,
		event.Seq,
		eventType,
		parseTimestampValue(event.Timestamp),
		event.Source,
		traceIDValue,
		encoded,
	)
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, askID string, afterSeq int64) ([]store.AskEvent, error) {
	const query = `
		SELECT ask_id, seq, type, timestamp, source, trace_id, payload
		FROM ask_events
		WHERE ask_id = $1 AND seq > $2
		ORDER BY seq
	`
	rows, err := p.db.QueryContext(ctx, query, askID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []store.AskEvent{}
	for rows.Next() {
		var event store.AskEvent
		var timestamp time.Time
		var traceID sql.NullString
		var payload []byte
		if err := rows.Scan(&event.AskID, &event.Seq, &event.Type, &timestamp, &event.Source, &traceID, &payload); err != nil {
			return nil, err
		}
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		event.TraceID = traceID.String
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (p *PostgresStore) NextSeq(ctx context.Context, askID string) (int64, error) {
	const query = `
		INSERT INTO ask_event_sequences (ask_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (ask_id)
		DO UPDATE SET last_seq = ask_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, askID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsk(row rowScanner) (*store.Ask, error) {
	var ask store.Ask
	var askError sql.NullString
	var createdAt time.Time
	var updatedAt time.Time
	if err := row.Scan(
		&ask.ID,
		&ask.Text,
		&ask.Mode,
		&ask.Status,
		&ask.Answer,
		&ask.Model,
		&ask.TokensUsed,
		&ask.Enhanced,
		&ask.Fallback,
		&askError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	ask.Error = askError.String
	ask.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	ask.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &ask, nil
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func parseTimestampValue(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}
