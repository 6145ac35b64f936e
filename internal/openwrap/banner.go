package openwrap

import (
	"time"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
)

// BannerViewListener receives banner lifecycle callbacks. All callbacks for
// one banner arrive in order on a single goroutine.
type BannerViewListener interface {
	OnAdReceived(b *BannerView)
	OnAdFailed(b *BannerView, err *Error)
	OnAppLeaving(b *BannerView)
	OnAdOpened(b *BannerView)
	OnAdClosed(b *BannerView)
	OnAdClicked(b *BannerView)
	OnAdImpression(b *BannerView)
}

// BannerView loads and displays banner ads, optionally through a header
// bidding event handler that lets the ad server compete with OpenWrap.
type BannerView struct {
	*adUnit
	sizes   []AdSize
	handler BannerEvent
	view    *AdView

	// guarded by adUnit.mu
	listener        BannerViewListener
	creativeSize    *AdSize
	refreshPaused   bool
	refreshInterval time.Duration
	refreshTimer    *time.Timer
}

// NewBannerView creates a banner that renders OpenWrap bids directly
func NewBannerView(sdk *SDK, pubID string, profileID int, adUnitID string, sizes ...AdSize) *BannerView {
	if len(sizes) == 0 {
		sizes = []AdSize{BannerSize}
	}
	return &BannerView{
		adUnit: newAdUnit(sdk, FormatBanner, pubID, profileID, adUnitID),
		sizes:  append([]AdSize(nil), sizes...),
		view:   &AdView{},
	}
}

// NewBannerViewWithEventHandler creates a banner whose ad server competes
// with OpenWrap through handler. Requested sizes come from the handler.
func NewBannerViewWithEventHandler(sdk *SDK, pubID string, profileID int, adUnitID string, handler BannerEvent) *BannerView {
	b := NewBannerView(sdk, pubID, profileID, adUnitID, handler.RequestedAdSizes()...)
	b.handler = handler
	handler.SetEventListener(&bannerEventListener{b: b})
	return b
}

// SetListener sets the lifecycle listener
func (b *BannerView) SetListener(l BannerViewListener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

// AdView returns the view creatives are rendered into
func (b *BannerView) AdView() *AdView {
	return b.view
}

// Sizes returns the requested ad sizes
func (b *BannerView) Sizes() []AdSize {
	return append([]AdSize(nil), b.sizes...)
}

// CreativeSize returns the size of the displayed creative, or nil before
// the first ad is received.
func (b *BannerView) CreativeSize() *AdSize {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.creativeSize == nil {
		return nil
	}
	s := *b.creativeSize
	return &s
}

// LoadAd starts an auction. Calls while a load is in flight are ignored.
func (b *BannerView) LoadAd() {
	b.stopRefreshTimer()
	if !b.startAuction(b.sizes, b.onAuctionResult) && !b.isDestroyed() {
		b.log.Debug().Msg("Banner is already loading, ignoring loadAd")
	}
}

// ForceRefresh reloads immediately. It reports false when the banner is
// destroyed or a load is already in flight.
func (b *BannerView) ForceRefresh() bool {
	if b.isDestroyed() || b.Loading() {
		return false
	}
	b.LoadAd()
	return true
}

// PauseAutoRefresh suspends the refresh timer until ResumeAutoRefresh
func (b *BannerView) PauseAutoRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshPaused = true
	if b.refreshTimer != nil {
		b.refreshTimer.Stop()
		b.refreshTimer = nil
	}
}

// ResumeAutoRefresh restarts the refresh timer if auto refresh is active
func (b *BannerView) ResumeAutoRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshPaused = false
	b.armRefreshLocked()
}

// RefreshInterval returns the active auto refresh interval, zero when disabled
func (b *BannerView) RefreshInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshInterval
}

// Destroy releases the banner. The event handler is destroyed with it.
func (b *BannerView) Destroy() {
	b.stopRefreshTimer()
	if !b.destroyUnit() {
		return
	}
	b.view.RemoveAllViews()
	if b.handler != nil {
		b.handler.Destroy()
	}
}

func (b *BannerView) onAuctionResult(bid *Bid, err *Error) {
	b.setBid(bid)
	if b.handler != nil {
		b.handler.RequestAd(bid)
		return
	}
	if err != nil {
		b.failed(err)
		return
	}
	go b.render(bid)
}

// render runs off the callback goroutine since presenters may block
func (b *BannerView) render(bid *Bid) {
	err := b.sdk.presenter.RenderBanner(b.ctx, b.view, bid)
	b.post(func() {
		if err != nil {
			owErr := asError(err)
			if owErr.Code == ErrCodeInternal {
				owErr = NewError(ErrCodeRender, owErr.Message)
			}
			b.failed(owErr)
			return
		}
		size := bid.Size()
		b.mu.Lock()
		b.creativeSize = &size
		b.mu.Unlock()

		b.sdk.tracker.Fire(PingWin, bid.NURL)
		b.notify(func(l BannerViewListener) { l.OnAdReceived(b) })
		b.sdk.tracker.Fire(PingBilled, bid.BURL)
		b.notify(func(l BannerViewListener) { l.OnAdImpression(b) })
		b.scheduleRefresh(bid.RefreshInterval)
	})
}

func (b *BannerView) renderAdServer() {
	bid := b.Bid()
	if bid != nil {
		b.sdk.tracker.Fire(PingLoss, bid.LURL)
	}
	// The ad server creative is drawn by the host, not by this view
	b.view.RemoveAllViews()
	if len(b.sizes) > 0 {
		size := b.sizes[0]
		b.mu.Lock()
		b.creativeSize = &size
		b.mu.Unlock()
	}
	b.notify(func(l BannerViewListener) { l.OnAdReceived(b) })
	if bid != nil {
		b.scheduleRefresh(bid.RefreshInterval)
	}
}

func (b *BannerView) failed(err *Error) {
	b.log.Debug().Int("code", err.Code).Str("reason", err.Message).Msg("Banner failed")
	b.notify(func(l BannerViewListener) { l.OnAdFailed(b, err) })
}

func (b *BannerView) notify(fn func(l BannerViewListener)) {
	b.mu.Lock()
	l := b.listener
	b.mu.Unlock()
	if l != nil {
		fn(l)
	}
}

// scheduleRefresh arms the refresh timer. seconds <= 0 disables auto refresh.
func (b *BannerView) scheduleRefresh(seconds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seconds <= 0 {
		b.refreshInterval = 0
		return
	}
	interval := time.Duration(seconds) * time.Second
	if interval < config.MinRefreshInterval {
		interval = config.MinRefreshInterval
	}
	b.refreshInterval = interval
	b.armRefreshLocked()
}

func (b *BannerView) armRefreshLocked() {
	if b.destroyed || b.refreshPaused || b.refreshInterval <= 0 || b.refreshTimer != nil {
		return
	}
	b.refreshTimer = time.AfterFunc(b.refreshInterval, func() {
		b.mu.Lock()
		b.refreshTimer = nil
		b.mu.Unlock()
		b.LoadAd()
	})
}

func (b *BannerView) stopRefreshTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refreshTimer != nil {
		b.refreshTimer.Stop()
		b.refreshTimer = nil
	}
}

// bannerEventListener relays ad server decisions onto the banner's
// callback goroutine.
type bannerEventListener struct {
	b *BannerView
}

func (e *bannerEventListener) OnOpenWrapPartnerWin(bidID string) {
	b := e.b
	b.post(func() {
		bid := b.Bid()
		if bid == nil || (bidID != "" && bidID != bid.ID) {
			b.failed(NewError(ErrCodeOpenWrapSignaling, "partner win signalled for an unknown bid"))
			return
		}
		go b.render(bid)
	})
}

func (e *bannerEventListener) OnAdServerWin() {
	e.b.post(e.b.renderAdServer)
}

func (e *bannerEventListener) OnAdServerImpressionRecorded() {
	b := e.b
	b.post(func() { b.notify(func(l BannerViewListener) { l.OnAdImpression(b) }) })
}

func (e *bannerEventListener) OnFailedToLoad(err *Error) {
	b := e.b
	b.post(func() { b.failed(err) })
}

func (e *bannerEventListener) OnFailedToShow(err *Error) {
	e.b.log.Debug().Int("code", err.Code).Msg("Ignoring show failure for banner")
}

func (e *bannerEventListener) OnAdClick() {
	b := e.b
	b.post(func() { b.notify(func(l BannerViewListener) { l.OnAdClicked(b) }) })
}

func (e *bannerEventListener) OnAdClosed() {
	b := e.b
	b.post(func() { b.notify(func(l BannerViewListener) { l.OnAdClosed(b) }) })
}

func (e *bannerEventListener) OnAdOpened() {
	b := e.b
	b.post(func() { b.notify(func(l BannerViewListener) { l.OnAdOpened(b) }) })
}

func (e *bannerEventListener) OnAdLeftApplication() {
	b := e.b
	b.post(func() { b.notify(func(l BannerViewListener) { l.OnAppLeaving(b) }) })
}

func (e *bannerEventListener) OnAdExpired() {}

func (e *bannerEventListener) BidsProvider() BidsProvider {
	return e.b.adUnit
}
