package endpoints

import (
	"errors"
	"sync"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// ErrStreamClosed is returned by Deliver after Close
var ErrStreamClosed = errors.New("event stream closed")

// EventStream fans outward events out to the connected event stream
// subscribers. It is the channel.Sink of the HTTP transport.
//
// Events raised while nobody is subscribed are kept in a bounded backlog and
// replayed to the next subscriber. A subscriber that falls a full buffer
// behind is disconnected rather than skipped over, so a connected subscriber
// never sees a gap.
type EventStream struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	backlog     []channel.Event
	backlogSize int
	bufferSize  int
	closed      bool
}

// Subscription is one connected event stream client
type Subscription struct {
	events chan channel.Event
	stream *EventStream
	once   sync.Once
}

// NewEventStream creates a stream keeping up to backlogSize undelivered
// events and buffering bufferSize events per subscriber.
func NewEventStream(backlogSize, bufferSize int) *EventStream {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &EventStream{
		subscribers: make(map[*Subscription]struct{}),
		backlogSize: backlogSize,
		bufferSize:  bufferSize,
	}
}

// Deliver implements channel.Sink
func (s *EventStream) Deliver(ev channel.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}

	if len(s.subscribers) == 0 {
		if s.backlogSize <= 0 {
			return nil
		}
		if len(s.backlog) >= s.backlogSize {
			log := logger.Channel()
			log.Warn().Str("method", s.backlog[0].Method).Msg("Event backlog full, dropping oldest event")
			s.backlog = s.backlog[1:]
		}
		s.backlog = append(s.backlog, ev)
		return nil
	}

	for sub := range s.subscribers {
		select {
		case sub.events <- ev:
		default:
			log := logger.Channel()
			log.Warn().Msg("Event subscriber too slow, disconnecting")
			s.removeLocked(sub)
		}
	}
	return nil
}

// Subscribe registers a new subscriber. The backlog, if any, is replayed to it first.
func (s *EventStream) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.bufferSize
	if len(s.backlog) > size {
		size = len(s.backlog)
	}
	sub := &Subscription{events: make(chan channel.Event, size), stream: s}
	if s.closed {
		sub.once.Do(func() { close(sub.events) })
		return sub
	}
	for _, ev := range s.backlog {
		sub.events <- ev
	}
	s.backlog = nil
	s.subscribers[sub] = struct{}{}
	return sub
}

// Subscribers returns the number of connected subscribers
func (s *EventStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Close disconnects every subscriber
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subscribers {
		s.removeLocked(sub)
	}
}

func (s *EventStream) removeLocked(sub *Subscription) {
	delete(s.subscribers, sub)
	sub.once.Do(func() { close(sub.events) })
}

// Events returns the event channel. It is closed when the subscription ends.
func (sub *Subscription) Events() <-chan channel.Event {
	return sub.events
}

// Cancel ends the subscription
func (sub *Subscription) Cancel() {
	sub.stream.mu.Lock()
	defer sub.stream.mu.Unlock()
	sub.stream.removeLocked(sub)
}
