package openwrap

import (
	"time"
)

// fullScreenCallbacks is implemented by Interstitial and RewardedAd to turn
// lifecycle transitions into their public listener calls.
type fullScreenCallbacks interface {
	adReceived()
	adFailedToLoad(err *Error)
	adFailedToShow(err *Error)
	appLeaving()
	adOpened()
	adClosed()
	adClicked()
	adExpired()
	adImpression()
	videoCompleted()
	rewardReceived(r Reward)
}

// fullScreenAd is the load, ready and show state machine shared by
// interstitial and rewarded ads.
type fullScreenAd struct {
	*adUnit
	handler InterstitialEvent
	cb      fullScreenCallbacks

	// guarded by adUnit.mu
	ready       bool
	adServerWon bool
	showing     bool
	expiry      *time.Timer
}

func newFullScreenAd(sdk *SDK, format Format, pubID string, profileID int, adUnitID string, handler InterstitialEvent) *fullScreenAd {
	f := &fullScreenAd{
		adUnit:  newAdUnit(sdk, format, pubID, profileID, adUnitID),
		handler: handler,
	}
	if handler != nil {
		handler.SetEventListener(&fullScreenEventListener{f: f})
	}
	return f
}

// LoadAd starts an auction. Ignored while loading or on screen.
func (f *fullScreenAd) LoadAd() {
	f.mu.Lock()
	if f.showing {
		f.mu.Unlock()
		f.log.Debug().Msg("Ad is on screen, ignoring loadAd")
		return
	}
	f.ready = false
	f.adServerWon = false
	f.stopExpiryLocked()
	f.mu.Unlock()

	if !f.startAuction([]AdSize{FullScreenSize}, f.onAuctionResult) && !f.isDestroyed() {
		f.log.Debug().Msg("Ad is already loading, ignoring loadAd")
	}
}

// IsReady reports whether Show would present an ad
func (f *fullScreenAd) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready || f.destroyed {
		return false
	}
	return f.adServerWon || f.bid == nil || !f.bid.Expired(time.Now())
}

// Show presents the loaded ad. Failures arrive through the listener.
func (f *fullScreenAd) Show() {
	f.mu.Lock()
	switch {
	case f.destroyed:
		f.mu.Unlock()
		return
	case f.showing:
		f.mu.Unlock()
		f.post(func() { f.cb.adFailedToShow(NewError(ErrCodeAdAlreadyShown, "ad is already showing")) })
		return
	case !f.ready:
		f.mu.Unlock()
		f.post(func() { f.cb.adFailedToShow(NewError(ErrCodeAdNotReady, "ad is not ready")) })
		return
	case !f.adServerWon && f.bid != nil && f.bid.Expired(time.Now()):
		f.ready = false
		f.mu.Unlock()
		f.post(func() { f.cb.adFailedToShow(NewError(ErrCodeAdExpired, "ad has expired")) })
		return
	}
	f.ready = false
	f.showing = true
	f.stopExpiryLocked()
	adServer := f.adServerWon
	bid := f.bid.Clone()
	f.mu.Unlock()

	if adServer {
		f.post(f.handler.Show)
		return
	}
	f.sdk.tracker.Fire(PingWin, bid.NURL)
	go f.present(bid)
}

// Destroy releases the ad and its event handler
func (f *fullScreenAd) Destroy() {
	f.mu.Lock()
	f.stopExpiryLocked()
	f.mu.Unlock()
	if !f.destroyUnit() {
		return
	}
	if f.handler != nil {
		f.handler.Destroy()
	}
}

func (f *fullScreenAd) onAuctionResult(bid *Bid, err *Error) {
	f.setBid(bid)
	if f.handler != nil {
		f.handler.RequestAd(bid)
		return
	}
	if err != nil {
		f.cb.adFailedToLoad(err)
		return
	}
	f.markReady(false)
}

func (f *fullScreenAd) markReady(adServer bool) {
	f.mu.Lock()
	f.ready = true
	f.adServerWon = adServer
	f.stopExpiryLocked()
	if !adServer && f.bid != nil && !f.bid.ExpiresAt.IsZero() {
		f.expiry = time.AfterFunc(time.Until(f.bid.ExpiresAt), func() { f.post(f.expire) })
	}
	f.mu.Unlock()
	f.cb.adReceived()
}

func (f *fullScreenAd) expire() {
	f.mu.Lock()
	if !f.ready || f.adServerWon {
		f.mu.Unlock()
		return
	}
	f.ready = false
	f.expiry = nil
	f.mu.Unlock()
	f.cb.adExpired()
}

func (f *fullScreenAd) stopExpiryLocked() {
	if f.expiry != nil {
		f.expiry.Stop()
		f.expiry = nil
	}
}

func (f *fullScreenAd) closed() {
	f.mu.Lock()
	f.showing = false
	f.mu.Unlock()
	f.cb.adClosed()
}

func (f *fullScreenAd) present(bid *Bid) {
	err := f.sdk.presenter.PresentFullScreen(f.ctx, bid, &presentation{f: f, bid: bid})
	if err == nil {
		return
	}
	f.post(func() {
		f.mu.Lock()
		f.showing = false
		f.mu.Unlock()
		owErr := asError(err)
		if owErr.Code == ErrCodeInternal {
			owErr = NewError(ErrCodeRender, owErr.Message)
		}
		f.cb.adFailedToShow(owErr)
	})
}

// presentation relays presenter events onto the callback goroutine
type presentation struct {
	f   *fullScreenAd
	bid *Bid
}

func (p *presentation) Opened()          { p.f.post(p.f.cb.adOpened) }
func (p *presentation) Clicked()         { p.f.post(p.f.cb.adClicked) }
func (p *presentation) LeftApplication() { p.f.post(p.f.cb.appLeaving) }
func (p *presentation) VideoCompleted()  { p.f.post(p.f.cb.videoCompleted) }
func (p *presentation) Closed()          { p.f.post(p.f.closed) }

func (p *presentation) Impression() {
	p.f.post(func() {
		p.f.sdk.tracker.Fire(PingBilled, p.bid.BURL)
		p.f.cb.adImpression()
	})
}

func (p *presentation) Rewarded(r Reward) {
	p.f.post(func() { p.f.cb.rewardReceived(r) })
}

// fullScreenEventListener relays ad server decisions onto the callback goroutine
type fullScreenEventListener struct {
	f *fullScreenAd
}

func (e *fullScreenEventListener) OnOpenWrapPartnerWin(bidID string) {
	f := e.f
	f.post(func() {
		bid := f.Bid()
		if bid == nil || (bidID != "" && bidID != bid.ID) {
			f.cb.adFailedToLoad(NewError(ErrCodeOpenWrapSignaling, "partner win signalled for an unknown bid"))
			return
		}
		f.markReady(false)
	})
}

func (e *fullScreenEventListener) OnAdServerWin() {
	f := e.f
	f.post(func() {
		if bid := f.Bid(); bid != nil {
			f.sdk.tracker.Fire(PingLoss, bid.LURL)
		}
		f.markReady(true)
	})
}

func (e *fullScreenEventListener) OnAdServerImpressionRecorded() {
	e.f.post(e.f.cb.adImpression)
}

func (e *fullScreenEventListener) OnFailedToLoad(err *Error) {
	f := e.f
	f.post(func() { f.cb.adFailedToLoad(err) })
}

func (e *fullScreenEventListener) OnFailedToShow(err *Error) {
	f := e.f
	f.post(func() {
		f.mu.Lock()
		f.showing = false
		f.mu.Unlock()
		f.cb.adFailedToShow(err)
	})
}

func (e *fullScreenEventListener) OnAdClick()           { e.f.post(e.f.cb.adClicked) }
func (e *fullScreenEventListener) OnAdClosed()          { e.f.post(e.f.closed) }
func (e *fullScreenEventListener) OnAdOpened()          { e.f.post(e.f.cb.adOpened) }
func (e *fullScreenEventListener) OnAdLeftApplication() { e.f.post(e.f.cb.appLeaving) }

func (e *fullScreenEventListener) OnAdExpired() {
	f := e.f
	f.post(func() {
		f.mu.Lock()
		f.ready = false
		f.mu.Unlock()
		f.cb.adExpired()
	})
}

func (e *fullScreenEventListener) BidsProvider() BidsProvider {
	return e.f.adUnit
}
