package bridge

import (
	"sort"
	"sync"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Registry maps ad ids to live ad clients
type Registry struct {
	mu      sync.RWMutex
	ads     map[int]AdClient
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		ads:     make(map[int]AdClient),
		metrics: m,
	}
}

// Register adds a client under its ad id. A live client with the same id is
// replaced; it is not destroyed.
func (r *Registry) Register(c AdClient) {
	r.mu.Lock()
	prev, exists := r.ads[c.AdID()]
	r.ads[c.AdID()] = c
	r.mu.Unlock()

	if exists && prev != c {
		log := logger.Bridge()
		log.Warn().
			Int("ad_id", c.AdID()).
			Str("previous_format", string(prev.Format())).
			Str("format", string(c.Format())).
			Msg("Ad id reused before destroy, replacing registry entry")
		r.metrics.AdUnregistered(string(prev.Format()))
	}
	if prev != c {
		r.metrics.AdRegistered(string(c.Format()))
	}
}

// Unregister removes c. An entry that has since been replaced by another
// client is left alone. Reports whether anything was removed.
func (r *Registry) Unregister(c AdClient) bool {
	r.mu.Lock()
	current, ok := r.ads[c.AdID()]
	if !ok || current != c {
		r.mu.Unlock()
		return false
	}
	delete(r.ads, c.AdID())
	r.mu.Unlock()

	r.metrics.AdUnregistered(string(c.Format()))
	return true
}

// Get returns the client registered under adID
func (r *Registry) Get(adID int) (AdClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ads[adID]
	return c, ok
}

// Len returns the number of live clients
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ads)
}

// Clients returns the live clients ordered by ad id
func (r *Registry) Clients() []AdClient {
	r.mu.RLock()
	out := make([]AdClient, 0, len(r.ads))
	for _, c := range r.ads {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AdID() < out[j].AdID() })
	return out
}
