package channel

import (
	"sync"
	"time"
)

// Recorder is an in-memory Messenger and Sink that keeps every event it sees
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{})}
}

// InvokeMethod records an event
func (r *Recorder) InvokeMethod(method string, arguments map[string]any) {
	r.record(Event{Method: method, Arguments: arguments})
}

// Deliver records an event
func (r *Recorder) Deliver(ev Event) error {
	r.record(ev)
	return nil
}

func (r *Recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Methods returns the recorded method names in order
func (r *Recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Method
	}
	return out
}

// Reset forgets all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// WaitFor blocks until an event with the given method has been recorded,
// returning the first match.
func (r *Recorder) WaitFor(method string, timeout time.Duration) (Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		r.mu.Lock()
		for _, ev := range r.events {
			if ev.Method == method {
				r.mu.Unlock()
				return ev, true
			}
		}
		notify := r.notify
		r.mu.Unlock()

		select {
		case <-notify:
		case <-deadline.C:
			return Event{}, false
		}
	}
}

// WaitForCount blocks until at least n events have been recorded
func (r *Recorder) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		r.mu.Lock()
		count := len(r.events)
		notify := r.notify
		r.mu.Unlock()
		if count >= n {
			return true
		}

		select {
		case <-notify:
		case <-deadline.C:
			return false
		}
	}
}
