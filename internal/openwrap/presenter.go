package openwrap

import (
	"context"
	"sync"
)

// Creative sources
const (
	SourceOpenWrap = "openwrap"
	SourceAdServer = "adserver"
)

// Creative is what an AdView currently displays
type Creative struct {
	Source  string `json:"source"`
	BidID   string `json:"bidId,omitempty"`
	Markup  string `json:"markup,omitempty"`
	Type    string `json:"type,omitempty"`
	Width   int    `json:"w"`
	Height  int    `json:"h"`
	Partner string `json:"partner,omitempty"`
}

// AdView is the container a banner renders into
type AdView struct {
	mu       sync.RWMutex
	creative *Creative
}

// Show replaces the displayed creative
func (v *AdView) Show(c Creative) {
	v.mu.Lock()
	v.creative = &c
	v.mu.Unlock()
}

// RemoveAllViews empties the container
func (v *AdView) RemoveAllViews() {
	v.mu.Lock()
	v.creative = nil
	v.mu.Unlock()
}

// Creative returns the displayed creative, or nil when empty
func (v *AdView) Creative() *Creative {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.creative == nil {
		return nil
	}
	c := *v.creative
	return &c
}

// Empty reports whether nothing is displayed
func (v *AdView) Empty() bool {
	return v.Creative() == nil
}

// FullScreenEvents receives what happens while a full-screen creative is on screen
type FullScreenEvents interface {
	Opened()
	Impression()
	Clicked()
	LeftApplication()
	VideoCompleted()
	Rewarded(r Reward)
	Closed()
}

// Presenter renders creatives. Implementations may block; ad objects call
// them off their callback goroutine.
type Presenter interface {
	RenderBanner(ctx context.Context, view *AdView, bid *Bid) error
	PresentFullScreen(ctx context.Context, bid *Bid, events FullScreenEvents) error
}

// HeadlessPresenter renders without a screen: banners are placed into the
// view and full-screen ads play through to completion immediately.
type HeadlessPresenter struct{}

// RenderBanner places the bid's creative into view
func (HeadlessPresenter) RenderBanner(ctx context.Context, view *AdView, bid *Bid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bid.Creative == "" {
		return NewError(ErrCodeRender, "bid has no creative")
	}
	view.Show(Creative{
		Source:  SourceOpenWrap,
		BidID:   bid.ID,
		Markup:  bid.Creative,
		Type:    bid.CreativeType,
		Width:   bid.Width,
		Height:  bid.Height,
		Partner: bid.PartnerName,
	})
	return nil
}

// PresentFullScreen opens, records the impression, completes video,
// grants the reward and closes.
func (HeadlessPresenter) PresentFullScreen(ctx context.Context, bid *Bid, events FullScreenEvents) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bid.Creative == "" {
		return NewError(ErrCodeRender, "bid has no creative")
	}
	events.Opened()
	events.Impression()
	if bid.CreativeType == "video" {
		events.VideoCompleted()
	}
	if r := bid.FirstReward(); r != nil {
		events.Rewarded(*r)
	}
	events.Closed()
	return nil
}
