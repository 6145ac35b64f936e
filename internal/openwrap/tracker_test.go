package openwrap

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestTrackerFiresPings(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tr := NewTracker(server.Client(), nil)
	defer tr.Close()

	tr.Fire(PingWin, server.URL+"/win")
	tr.Fire(PingLoss, server.URL+"/fail")
	tr.Fire(PingBilled, "")

	ok := waitFor(t, 2*time.Second, func() bool {
		s := tr.Stats()
		return s.Sent+s.Failed == 2
	})
	if !ok {
		t.Fatalf("pings not delivered: %+v", tr.Stats())
	}

	stats := tr.Stats()
	if stats.Sent != 1 || stats.Failed != 1 {
		t.Errorf("expected 1 sent and 1 failed, got %+v", stats)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Errorf("expected 2 requests, got %v", paths)
	}
}

func TestTrackerNilSafe(t *testing.T) {
	var tr *Tracker
	tr.Fire(PingWin, "http://example.com")
}

func TestTrackerIgnoresFireAfterClose(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.Close()
	tr.Fire(PingWin, "http://127.0.0.1:1/win")

	if s := tr.Stats(); s.Queued != 0 || s.Dropped != 0 {
		t.Errorf("expected nothing queued after close, got %+v", s)
	}
}
