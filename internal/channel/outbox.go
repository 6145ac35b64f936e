package channel

import (
	"sync"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Sink receives outward events one at a time, in order
type Sink interface {
	Deliver(ev Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev Event) error

// Deliver calls f(ev)
func (f SinkFunc) Deliver(ev Event) error {
	return f(ev)
}

// Outbox is a FIFO queue with a single consumer goroutine.
// Events reach the sink in exactly the order InvokeMethod was called.
type Outbox struct {
	sink    Sink
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewOutbox creates an outbox and starts its consumer
func NewOutbox(sink Sink, size int, m *metrics.Metrics) *Outbox {
	if size <= 0 {
		size = 1
	}
	o := &Outbox{
		sink:    sink,
		metrics: m,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

// InvokeMethod queues an outward event. It blocks while the queue is full.
// Events sent after Close are discarded.
func (o *Outbox) InvokeMethod(method string, arguments map[string]any) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		log := logger.Channel()
		log.Debug().Str("method", method).Msg("Outbox closed, event discarded")
		return
	}
	o.queue <- Event{Method: method, Arguments: arguments}
	o.metrics.SetOutboxDepth(len(o.queue))
}

func (o *Outbox) run() {
	defer close(o.done)
	log := logger.Channel()

	for ev := range o.queue {
		if err := o.sink.Deliver(ev); err != nil {
			log.Warn().Err(err).Str("method", ev.Method).Msg("Failed to deliver outward event")
			continue
		}
		o.metrics.RecordEvent(ev.Method)
		o.metrics.SetOutboxDepth(len(o.queue))
	}
}

// Close stops accepting events, drains the queue and waits for the consumer
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		<-o.done
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	<-o.done
}
