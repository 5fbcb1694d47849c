package events

import (
	"context"
	"strings"
	"sync"
)

// Event is a notification fanned out to subscribers of a topic. The service
// uses the "settings" topic for settings-change notifications and "ask:<id>"
// topics for answer-run lifecycle events.
type Event struct {
	Topic   string         `json:"topic"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Ts      string         `json:"ts"`
	Source  string         `json:"source"`
	TraceID string         `json:"trace_id,omitempty"`
	Payload map[string]any `json:"payload"`
}

const SettingsTopic = "settings"

func AskTopic(askID string) string {
	return "ask:" + askID
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan Event]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, topic string) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = map[chan Event]struct{}{}
	}
	b.subscribers[topic][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[topic] != nil {
			delete(b.subscribers[topic], ch)
			if len(b.subscribers[topic]) == 0 {
				delete(b.subscribers, topic)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish never blocks; slow subscribers miss events rather than stalling
// the publisher.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	subscribers := b.subscribers[event.Topic]
	chans := make([]chan Event, 0, len(subscribers))
	for ch := range subscribers {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}
