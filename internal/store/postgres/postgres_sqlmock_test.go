package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/douletlabs/answerd/internal/store"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	cleanup := func() {
		_ = db.Close()
	}
	return &PostgresStore{db: db}, mock, cleanup
}

func TestVerifySchema_MissingTable(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").
		WithArgs("public.settings").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

	if err := verifySchema(ctx, db); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestVerifySchema_QueryError(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnError(errors.New("connection reset"))

	if err := verifySchema(ctx, db); err == nil {
		t.Fatal("expected query error")
	}
}

func TestGetSettings_NoRow(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT api_key_enc").
		WillReturnRows(sqlmock.NewRows([]string{"api_key_enc"}))

	settings, err := p.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings != nil {
		t.Fatal("expected nil settings for empty table")
	}
}

func TestGetSettings_ScansRow(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	columns := []string{
		"api_key_enc", "hugging_face_key_enc", "model", "temperature", "max_tokens", "timeout_seconds",
		"auto_answer", "show_button", "enable_sounds", "anonymous_mode",
		"answer_style", "language", "custom_prompt", "free_models", "last_answer",
		"created_at", "updated_at",
	}
	mock.ExpectQuery("SELECT api_key_enc").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"enc-key", "", "amazon/nova-2-lite-v1:free", 0.7, 400, 30,
			false, true, false, false,
			"concise", "auto", "", []byte(`["a/one:free","b/two:free"]`), "",
			now, now,
		))

	settings, err := p.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings == nil {
		t.Fatal("expected settings")
	}
	if settings.Model != "amazon/nova-2-lite-v1:free" {
		t.Errorf("unexpected model: %s", settings.Model)
	}
	if len(settings.FreeModels) != 2 {
		t.Errorf("expected 2 free models, got %v", settings.FreeModels)
	}
	if settings.CreatedAt != now.Format(time.RFC3339Nano) {
		t.Errorf("unexpected created_at: %s", settings.CreatedAt)
	}
}

func TestUpsertSettings_Exec(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO settings").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.UpsertSettings(context.Background(), store.Settings{
		Model:       "amazon/nova-2-lite-v1:free",
		Temperature: 0.7,
		FreeModels:  []string{"a"},
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestCreateAsk_DefaultsStatus(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO asks").
		WithArgs(
			"a1", "question", "detailed", store.AskStatusPending,
			"", "", 0, false, false, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.CreateAsk(context.Background(), store.Ask{ID: "a1", Text: "question", Mode: "detailed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestGetAsk_NotFound(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, text, mode").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ask, err := p.GetAsk(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ask != nil {
		t.Fatal("expected nil for missing ask")
	}
}

func TestUpdateAsk_NotFound(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE asks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.UpdateAsk(context.Background(), store.Ask{ID: "missing", Status: store.AskStatusFailed})
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestAppendEvent_InvalidTraceIDStoredAsNull(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO ask_events").
		WithArgs("a1", int64(1), "ask.started", sqlmock.AnyArg(), "answerd", nil, []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.AppendEvent(context.Background(), store.AskEvent{
		AskID:   "a1",
		Seq:     1,
		Type:    "Ask_Started",
		Source:  "answerd",
		TraceID: "not-a-uuid",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListEvents_FiltersAfterSeq(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT ask_id, seq, type").
		WithArgs("a1", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"ask_id", "seq", "type", "timestamp", "source", "trace_id", "payload"}).
			AddRow("a1", int64(3), "ask.completed", now, "worker", nil, []byte(`{"answer":"done"}`)))

	events, err := p.ListEvents(context.Background(), "a1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Seq != 3 {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Payload["answer"] != "done" {
		t.Errorf("unexpected payload: %v", events[0].Payload)
	}
}

func TestNextSeq(t *testing.T) {
	p, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO ask_event_sequences").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(4)))

	seq, err := p.NextSeq(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != 4 {
		t.Errorf("expected seq 4, got %d", seq)
	}
}

func TestNullString(t *testing.T) {
	if nullString("  ") != nil {
		t.Error("expected nil for blank string")
	}
	if nullString("x") != "x" {
		t.Error("expected passthrough for non-blank string")
	}
}

func TestParseTimestampValue(t *testing.T) {
	parsed := parseTimestampValue("2026-03-01T12:00:00Z")
	if parsed.Year() != 2026 || parsed.Month() != 3 {
		t.Errorf("unexpected parse result: %v", parsed)
	}
	if parseTimestampValue("garbage").IsZero() {
		t.Error("expected fallback to now for garbage input")
	}
}
