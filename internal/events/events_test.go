package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func receiveEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before receive")
		}
		return ev
	case <-timer.C:
		t.Fatal("timed out waiting for event")
	}

	return Event{}
}

func waitForClosed(t *testing.T, ch <-chan Event) {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestNewBroker(t *testing.T) {
	b := NewBroker()
	if b == nil {
		t.Fatal("expected broker")
	}
	if b.subscribers == nil {
		t.Fatal("expected subscriber map")
	}
}

func TestSubscribeAndPublish(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, SettingsTopic)
	b.Publish(Event{Topic: SettingsTopic, Type: "settings.updated", Seq: 1})

	ev := receiveEvent(t, ch)
	if ev.Type != "settings.updated" {
		t.Errorf("expected settings.updated, got %s", ev.Type)
	}
}

func TestPublish_TopicIsolation(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settingsCh := b.Subscribe(ctx, SettingsTopic)
	askCh := b.Subscribe(ctx, AskTopic("a1"))

	b.Publish(Event{Topic: AskTopic("a1"), Type: "ask.completed"})

	ev := receiveEvent(t, askCh)
	if ev.Type != "ask.completed" {
		t.Errorf("expected ask.completed, got %s", ev.Type)
	}
	select {
	case ev := <-settingsCh:
		t.Fatalf("settings subscriber received foreign event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_ClosedOnContextCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, SettingsTopic)
	cancel()
	waitForClosed(t, ch)

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Topic: SettingsTopic, Type: "settings.updated"})
}

func TestPublish_DoesNotBlockOnFullSubscriber(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = b.Subscribe(ctx, SettingsTopic)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Topic: SettingsTopic, Seq: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}

func TestPublish_Concurrent(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, AskTopic("a2"))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Publish(Event{Topic: AskTopic("a2"), Seq: int64(n)})
		}(i)
	}
	wg.Wait()

	receiveEvent(t, ch)
}

func TestNormalizeType(t *testing.T) {
	if got := NormalizeType("  Ask.Completed "); got != "ask.completed" {
		t.Errorf("expected ask.completed, got %s", got)
	}
}

func TestAskTopic(t *testing.T) {
	if got := AskTopic("abc"); got != "ask:abc" {
		t.Errorf("expected ask:abc, got %s", got)
	}
}
