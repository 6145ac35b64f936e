package openwrap

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Tracker ping kinds
const (
	PingWin    = "win"
	PingLoss   = "loss"
	PingBilled = "billed"
)

type ping struct {
	kind string
	url  string
}

// Tracker fires bid notification URLs on a bounded worker pool.
// Pings are best effort: a full queue drops them rather than block an ad.
type Tracker struct {
	httpClient *http.Client
	metrics    *metrics.Metrics

	queue  chan ping
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// TrackerStats reports tracker counters
type TrackerStats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
	Queued  int   `json:"queued"`
}

// NewTracker starts a tracker with the default pool size
func NewTracker(httpClient *http.Client, m *metrics.Metrics) *Tracker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.TrackerTimeout}
	}
	t := &Tracker{
		httpClient: httpClient,
		metrics:    m,
		queue:      make(chan ping, config.TrackerQueueSize),
		stopCh:     make(chan struct{}),
	}
	for i := 0; i < config.TrackerWorkers; i++ {
		t.wg.Add(1)
		go t.worker()
	}
	return t
}

// Fire queues a ping. Empty URLs are ignored.
func (t *Tracker) Fire(kind, url string) {
	if t == nil || url == "" {
		return
	}
	select {
	case <-t.stopCh:
		return
	default:
	}

	select {
	case t.queue <- ping{kind: kind, url: url}:
	default:
		t.dropped.Add(1)
		t.metrics.RecordTrackerPing(kind, false)
	}
}

func (t *Tracker) worker() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			return
		case p := <-t.queue:
			ctx, cancel := context.WithTimeout(context.Background(), config.TrackerTimeout)
			err := t.send(ctx, p)
			cancel()
			if err != nil {
				t.failed.Add(1)
				log := logger.SDK()
				log.Debug().Err(err).Str("kind", p.kind).Msg("Tracker ping failed")
			} else {
				t.sent.Add(1)
			}
			t.metrics.RecordTrackerPing(p.kind, err == nil)
		}
	}
}

func (t *Tracker) send(ctx context.Context, p ping) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}
	return nil
}

// Stats returns current counters
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Sent:    t.sent.Load(),
		Failed:  t.failed.Load(),
		Dropped: t.dropped.Load(),
		Queued:  len(t.queue),
	}
}

// Close stops the workers. Queued pings are abandoned.
func (t *Tracker) Close() {
	t.once.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}
