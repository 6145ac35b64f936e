package openwrap

// RewardedAdListener receives rewarded ad lifecycle callbacks, in order, on
// a single goroutine per ad.
type RewardedAdListener interface {
	OnAdReceived(r *RewardedAd)
	OnAdFailedToLoad(r *RewardedAd, err *Error)
	OnAdFailedToShow(r *RewardedAd, err *Error)
	OnAppLeaving(r *RewardedAd)
	OnAdOpened(r *RewardedAd)
	OnAdClosed(r *RewardedAd)
	OnAdClicked(r *RewardedAd)
	OnAdExpired(r *RewardedAd)
	OnAdImpression(r *RewardedAd)
	OnReceiveReward(r *RewardedAd, reward Reward)
}

// SkipAlertDialogInfo is the dialog shown when the user tries to skip a
// rewarded video before it completes.
type SkipAlertDialogInfo struct {
	Title       string
	Message     string
	ResumeTitle string
	CloseTitle  string
}

// RewardedAd is a full-screen ad that grants a reward on completion
type RewardedAd struct {
	*fullScreenAd

	// guarded by adUnit.mu
	listener  RewardedAdListener
	skipAlert *SkipAlertDialogInfo
}

// NewRewardedAd creates a rewarded ad that presents OpenWrap bids directly
func NewRewardedAd(sdk *SDK, pubID string, profileID int, adUnitID string) *RewardedAd {
	return NewRewardedAdWithEventHandler(sdk, pubID, profileID, adUnitID, nil)
}

// NewRewardedAdWithEventHandler creates a rewarded ad whose ad server
// competes with OpenWrap through handler.
func NewRewardedAdWithEventHandler(sdk *SDK, pubID string, profileID int, adUnitID string, handler InterstitialEvent) *RewardedAd {
	r := &RewardedAd{
		fullScreenAd: newFullScreenAd(sdk, FormatRewarded, pubID, profileID, adUnitID, handler),
	}
	r.cb = r
	return r
}

// SetListener sets the lifecycle listener
func (r *RewardedAd) SetListener(l RewardedAdListener) {
	r.mu.Lock()
	r.listener = l
	r.mu.Unlock()
}

// SetSkipAlertDialogInfo sets the skip confirmation dialog
func (r *RewardedAd) SetSkipAlertDialogInfo(info SkipAlertDialogInfo) {
	r.mu.Lock()
	r.skipAlert = &info
	r.mu.Unlock()
}

// SkipAlertDialogInfo returns the skip dialog, or nil when unset
func (r *RewardedAd) SkipAlertDialogInfo() *SkipAlertDialogInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipAlert == nil {
		return nil
	}
	info := *r.skipAlert
	return &info
}

func (r *RewardedAd) notify(fn func(l RewardedAdListener)) {
	r.mu.Lock()
	l := r.listener
	r.mu.Unlock()
	if l != nil {
		fn(l)
	}
}

func (r *RewardedAd) adReceived() {
	r.notify(func(l RewardedAdListener) { l.OnAdReceived(r) })
}

func (r *RewardedAd) adFailedToLoad(err *Error) {
	r.notify(func(l RewardedAdListener) { l.OnAdFailedToLoad(r, err) })
}

func (r *RewardedAd) adFailedToShow(err *Error) {
	r.notify(func(l RewardedAdListener) { l.OnAdFailedToShow(r, err) })
}

func (r *RewardedAd) appLeaving() {
	r.notify(func(l RewardedAdListener) { l.OnAppLeaving(r) })
}

func (r *RewardedAd) adOpened() {
	r.notify(func(l RewardedAdListener) { l.OnAdOpened(r) })
}

func (r *RewardedAd) adClosed() {
	r.notify(func(l RewardedAdListener) { l.OnAdClosed(r) })
}

func (r *RewardedAd) adClicked() {
	r.notify(func(l RewardedAdListener) { l.OnAdClicked(r) })
}

func (r *RewardedAd) adExpired() {
	r.notify(func(l RewardedAdListener) { l.OnAdExpired(r) })
}

func (r *RewardedAd) adImpression() {
	r.notify(func(l RewardedAdListener) { l.OnAdImpression(r) })
}

// video completion is reported through the reward
func (r *RewardedAd) videoCompleted() {}

func (r *RewardedAd) rewardReceived(reward Reward) {
	r.notify(func(l RewardedAdListener) { l.OnReceiveReward(r, reward) })
}
