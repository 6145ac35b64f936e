package openwrap

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const queueSize = 64

// serialQueue runs tasks one at a time, in order, on its own goroutine.
// Tasks posted after stop are discarded.
type serialQueue struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *serialQueue) run() {
	for {
		select {
		case <-q.done:
			return
		case fn := <-q.tasks:
			fn()
		}
	}
}

func (q *serialQueue) post(fn func()) {
	select {
	case <-q.done:
	case q.tasks <- fn:
	}
}

func (q *serialQueue) stop() {
	q.once.Do(func() { close(q.done) })
}

// adUnit is the state shared by every ad object: its request and impression,
// the held bid and the auction lifecycle.
type adUnit struct {
	sdk    *SDK
	format Format
	queue  *serialQueue
	log    zerolog.Logger

	// ctx lives until Destroy
	ctx       context.Context
	cancelAll context.CancelFunc

	mu         sync.Mutex
	request    Request
	impression Impression
	bid        *Bid
	loading    bool
	destroyed  bool
	generation uint64
}

func newAdUnit(sdk *SDK, format Format, pubID string, profileID int, adUnitID string) *adUnit {
	ctx, cancel := context.WithCancel(context.Background())
	return &adUnit{
		sdk:       sdk,
		format:    format,
		queue:     newSerialQueue(),
		log:       sdk.Logger().With().Str("format", string(format)).Str("ad_unit", adUnitID).Logger(),
		ctx:       ctx,
		cancelAll: cancel,
		request: Request{
			PubID:     pubID,
			ProfileID: profileID,
			AdUnitID:  adUnitID,
		},
		impression: Impression{
			ID:       newRequestID(),
			AdUnitID: adUnitID,
		},
	}
}

// Request returns a copy of the ad request
func (a *adUnit) Request() Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.request.clone()
}

// UpdateRequest mutates the ad request in place. Takes effect on the next load.
func (a *adUnit) UpdateRequest(fn func(r *Request)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.request)
}

// Impression returns a copy of the impression
func (a *adUnit) Impression() Impression {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.impression.clone()
}

// UpdateImpression mutates the impression in place. Takes effect on the next load.
func (a *adUnit) UpdateImpression(fn func(imp *Impression)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.impression)
}

// Bid returns a copy of the held bid, or nil
func (a *adUnit) Bid() *Bid {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bid.Clone()
}

// WinningBid implements BidsProvider
func (a *adUnit) WinningBid() *Bid {
	return a.Bid()
}

// TargetingInfo implements BidsProvider
func (a *adUnit) TargetingInfo() map[string]string {
	bid := a.Bid()
	if bid == nil {
		return nil
	}
	return bid.TargetingInfo
}

func (a *adUnit) setBid(bid *Bid) {
	a.mu.Lock()
	a.bid = bid
	a.mu.Unlock()
}

func (a *adUnit) isDestroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

// post runs fn on the callback goroutine unless the ad is destroyed by then
func (a *adUnit) post(fn func()) {
	a.queue.post(func() {
		if a.isDestroyed() {
			return
		}
		fn()
	})
}

// startAuction runs an auction in the background and hands the result to
// onResult on the callback goroutine. It reports false when the ad is
// destroyed or already loading.
func (a *adUnit) startAuction(sizes []AdSize, onResult func(bid *Bid, err *Error)) bool {
	a.mu.Lock()
	if a.destroyed || a.loading {
		a.mu.Unlock()
		return false
	}
	a.loading = true
	a.generation++
	gen := a.generation
	req := a.request.clone()
	imp := a.impression.clone()
	a.mu.Unlock()

	go func() {
		bid, err := a.sdk.auction(a.ctx, a.format, req, imp, sizes)
		a.post(func() {
			a.mu.Lock()
			stale := gen != a.generation
			if !stale {
				a.loading = false
			}
			a.mu.Unlock()
			if stale {
				return
			}
			onResult(bid, err)
		})
	}()
	return true
}

// Loading reports whether an auction is in flight
func (a *adUnit) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// destroyUnit cancels in-flight work and stops callbacks. It reports false
// when the ad was already destroyed.
func (a *adUnit) destroyUnit() bool {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return false
	}
	a.destroyed = true
	a.bid = nil
	a.mu.Unlock()

	a.cancelAll()
	a.queue.stop()
	return true
}
