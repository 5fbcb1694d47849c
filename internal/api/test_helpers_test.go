package api

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/douletlabs/answerd/internal/config"
	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetSettings(ctx context.Context) (*store.Settings, error) {
	args := m.Called(ctx)
	if value := args.Get(0); value != nil {
		return value.(*store.Settings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpsertSettings(ctx context.Context, settings store.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockStore) CreateAsk(ctx context.Context, ask store.Ask) error {
	args := m.Called(ctx, ask)
	return args.Error(0)
}

func (m *MockStore) GetAsk(ctx context.Context, askID string) (*store.Ask, error) {
	args := m.Called(ctx, askID)
	if value := args.Get(0); value != nil {
		return value.(*store.Ask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListAsks(ctx context.Context) ([]store.Ask, error) {
	args := m.Called(ctx)
	var result []store.Ask
	if value := args.Get(0); value != nil {
		result = value.([]store.Ask)
	}
	return result, args.Error(1)
}

func (m *MockStore) UpdateAsk(ctx context.Context, ask store.Ask) error {
	args := m.Called(ctx, ask)
	return args.Error(0)
}

func (m *MockStore) DeleteAsk(ctx context.Context, askID string) error {
	args := m.Called(ctx, askID)
	return args.Error(0)
}

func (m *MockStore) AppendEvent(ctx context.Context, event store.AskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStore) ListEvents(ctx context.Context, askID string, afterSeq int64) ([]store.AskEvent, error) {
	args := m.Called(ctx, askID, afterSeq)
	var result []store.AskEvent
	if value := args.Get(0); value != nil {
		result = value.([]store.AskEvent)
	}
	return result, args.Error(1)
}

func (m *MockStore) NextSeq(ctx context.Context, askID string) (int64, error) {
	args := m.Called(ctx, askID)
	return args.Get(0).(int64), args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.Event) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, topic string) <-chan events.Event {
	args := m.Called(ctx, topic)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.Event); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.Event); ok {
			return ch
		}
	}
	return nil
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartAsk(ctx context.Context, askID string) error {
	args := m.Called(ctx, askID)
	return args.Error(0)
}

func (m *MockWorkflowService) CancelAsk(ctx context.Context, askID string) error {
	args := m.Called(ctx, askID)
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Refresh(ctx context.Context) []string {
	args := m.Called(ctx)
	var result []string
	if value := args.Get(0); value != nil {
		result = value.([]string)
	}
	return result
}

// recordingBroker is a lightweight broker stand-in for handlers that
// publish without needing subscriber fan-out.
type recordingBroker struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBroker) Publish(event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBroker) Subscribe(ctx context.Context, topic string) <-chan events.Event {
	ch := make(chan events.Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (b *recordingBroker) recorded() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.published...)
}

func testConfig() config.Config {
	return config.Config{
		SecretsKey:         "0123456789abcdef0123456789abcdef",
		DefaultModel:       "amazon/nova-2-lite-v1:free",
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   400,
		AnswerTimeout:      30,
		DetailedTimeout:    120,
		OpenRouterBaseURL:  "https://openrouter.ai/api/v1",
		HuggingFaceBaseURL: "https://api-inference.huggingface.co",
	}
}

func newTestServer(t *testing.T, store store.Store, broker Broker, workflows WorkflowService, catalog CatalogFetcher, cfg config.Config) *httptest.Server {
	t.Helper()
	server := NewServer(store, broker, workflows, catalog, cfg)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}
