package openwrap

// InterstitialListener receives interstitial lifecycle callbacks, in order,
// on a single goroutine per ad.
type InterstitialListener interface {
	OnAdReceived(i *Interstitial)
	OnAdFailedToLoad(i *Interstitial, err *Error)
	OnAdFailedToShow(i *Interstitial, err *Error)
	OnAppLeaving(i *Interstitial)
	OnAdOpened(i *Interstitial)
	OnAdClosed(i *Interstitial)
	OnAdClicked(i *Interstitial)
	OnAdExpired(i *Interstitial)
	OnAdImpression(i *Interstitial)
}

// VideoListener is told when a video creative plays to the end
type VideoListener interface {
	OnVideoPlaybackCompleted(i *Interstitial)
}

// Interstitial is a full-screen ad
type Interstitial struct {
	*fullScreenAd

	// guarded by adUnit.mu
	listener      InterstitialListener
	videoListener VideoListener
}

// NewInterstitial creates an interstitial that presents OpenWrap bids directly
func NewInterstitial(sdk *SDK, pubID string, profileID int, adUnitID string) *Interstitial {
	return NewInterstitialWithEventHandler(sdk, pubID, profileID, adUnitID, nil)
}

// NewInterstitialWithEventHandler creates an interstitial whose ad server
// competes with OpenWrap through handler.
func NewInterstitialWithEventHandler(sdk *SDK, pubID string, profileID int, adUnitID string, handler InterstitialEvent) *Interstitial {
	i := &Interstitial{
		fullScreenAd: newFullScreenAd(sdk, FormatInterstitial, pubID, profileID, adUnitID, handler),
	}
	i.cb = i
	return i
}

// SetListener sets the lifecycle listener
func (i *Interstitial) SetListener(l InterstitialListener) {
	i.mu.Lock()
	i.listener = l
	i.mu.Unlock()
}

// SetVideoListener sets the video listener
func (i *Interstitial) SetVideoListener(l VideoListener) {
	i.mu.Lock()
	i.videoListener = l
	i.mu.Unlock()
}

func (i *Interstitial) notify(fn func(l InterstitialListener)) {
	i.mu.Lock()
	l := i.listener
	i.mu.Unlock()
	if l != nil {
		fn(l)
	}
}

func (i *Interstitial) adReceived() {
	i.notify(func(l InterstitialListener) { l.OnAdReceived(i) })
}

func (i *Interstitial) adFailedToLoad(err *Error) {
	i.notify(func(l InterstitialListener) { l.OnAdFailedToLoad(i, err) })
}

func (i *Interstitial) adFailedToShow(err *Error) {
	i.notify(func(l InterstitialListener) { l.OnAdFailedToShow(i, err) })
}

func (i *Interstitial) appLeaving() {
	i.notify(func(l InterstitialListener) { l.OnAppLeaving(i) })
}

func (i *Interstitial) adOpened() {
	i.notify(func(l InterstitialListener) { l.OnAdOpened(i) })
}

func (i *Interstitial) adClosed() {
	i.notify(func(l InterstitialListener) { l.OnAdClosed(i) })
}

func (i *Interstitial) adClicked() {
	i.notify(func(l InterstitialListener) { l.OnAdClicked(i) })
}

func (i *Interstitial) adExpired() {
	i.notify(func(l InterstitialListener) { l.OnAdExpired(i) })
}

func (i *Interstitial) adImpression() {
	i.notify(func(l InterstitialListener) { l.OnAdImpression(i) })
}

func (i *Interstitial) videoCompleted() {
	i.mu.Lock()
	l := i.videoListener
	i.mu.Unlock()
	if l != nil {
		l.OnVideoPlaybackCompleted(i)
	}
}

// interstitials grant no rewards
func (i *Interstitial) rewardReceived(Reward) {}
