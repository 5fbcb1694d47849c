package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/douletlabs/answerd/internal/store"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// -store=memory development mode.
type MemoryStore struct {
	mu       sync.RWMutex
	settings *store.Settings
	asks     map[string]store.Ask
	events   map[string][]store.AskEvent
	seq      map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		asks:   map[string]store.Ask{},
		events: map[string][]store.AskEvent{},
		seq:    map[string]int64{},
	}
}

func (m *MemoryStore) GetSettings(ctx context.Context) (*store.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	copied := *m.settings
	copied.FreeModels = append([]string(nil), m.settings.FreeModels...)
	return &copied, nil
}

func (m *MemoryStore) UpsertSettings(ctx context.Context, settings store.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := settings
	copied.FreeModels = append([]string(nil), settings.FreeModels...)
	m.settings = &copied
	return nil
}

func (m *MemoryStore) CreateAsk(ctx context.Context, ask store.Ask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ask.Status == "" {
		ask.Status = store.AskStatusPending
	}
	m.asks[ask.ID] = ask
	return nil
}

func (m *MemoryStore) GetAsk(ctx context.Context, askID string) (*store.Ask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ask, ok := m.asks[askID]
	if !ok {
		return nil, nil
	}
	copied := ask
	return &copied, nil
}

func (m *MemoryStore) ListAsks(ctx context.Context) ([]store.Ask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asks := make([]store.Ask, 0, len(m.asks))
	for _, ask := range m.asks {
		asks = append(asks, ask)
	}
	sort.Slice(asks, func(i, j int) bool {
		if asks[i].CreatedAt == asks[j].CreatedAt {
			return asks[i].ID < asks[j].ID
		}
		return asks[i].CreatedAt > asks[j].CreatedAt
	})
	return asks, nil
}

func (m *MemoryStore) UpdateAsk(ctx context.Context, ask store.Ask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.asks[ask.ID]; !ok {
		return fmt.Errorf("ask not found: %s", ask.ID)
	}
	m.asks[ask.ID] = ask
	return nil
}

func (m *MemoryStore) DeleteAsk(ctx context.Context, askID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.asks, askID)
	delete(m.events, askID)
	delete(m.seq, askID)
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.AskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.AskID] = append(m.events[event.AskID], event)
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, askID string, afterSeq int64) ([]store.AskEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.events[askID]
	filtered := make([]store.AskEvent, 0, len(all))
	for _, event := range all {
		if event.Seq > afterSeq {
			filtered = append(filtered, event)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Seq < filtered[j].Seq })
	return filtered, nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, askID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[askID]++
	return m.seq[askID], nil
}
