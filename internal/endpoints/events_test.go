package endpoints

import (
	"testing"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
)

func drain(sub *Subscription) []string {
	var out []string
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev.Method)
		default:
			return out
		}
	}
}

func TestEventStreamBacklogReplay(t *testing.T) {
	s := NewEventStream(2, 4)

	for _, m := range []string{"a", "b", "c"} {
		if err := s.Deliver(channel.Event{Method: m}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	sub := s.Subscribe()
	got := drain(sub)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("expected backlog [b c], got %v", got)
	}

	// backlog is consumed by the first subscriber
	second := s.Subscribe()
	if got := drain(second); len(got) != 0 {
		t.Errorf("expected empty replay, got %v", got)
	}
}

func TestEventStreamFanOut(t *testing.T) {
	s := NewEventStream(0, 4)
	a, b := s.Subscribe(), s.Subscribe()

	_ = s.Deliver(channel.Event{Method: "onAdReceived"})
	_ = s.Deliver(channel.Event{Method: "onAdImpression"})

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		got := drain(sub)
		if len(got) != 2 || got[0] != "onAdReceived" || got[1] != "onAdImpression" {
			t.Errorf("subscriber %s: expected ordered events, got %v", name, got)
		}
	}
}

func TestEventStreamDisconnectsSlowSubscriber(t *testing.T) {
	s := NewEventStream(0, 1)
	sub := s.Subscribe()

	_ = s.Deliver(channel.Event{Method: "first"})
	_ = s.Deliver(channel.Event{Method: "second"})

	if s.Subscribers() != 0 {
		t.Errorf("expected slow subscriber to be removed, have %d", s.Subscribers())
	}
	ev, ok := <-sub.Events()
	if !ok || ev.Method != "first" {
		t.Errorf("expected buffered first event, got %v %v", ev, ok)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("expected channel to be closed")
	}
}

func TestEventStreamClose(t *testing.T) {
	s := NewEventStream(4, 4)
	sub := s.Subscribe()
	s.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("expected subscription to be closed")
	}
	if err := s.Deliver(channel.Event{Method: "late"}); err != ErrStreamClosed {
		t.Errorf("expected ErrStreamClosed, got %v", err)
	}
	sub.Cancel()

	late := s.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Error("expected subscription after close to be closed")
	}
}
