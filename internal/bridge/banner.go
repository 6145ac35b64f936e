package bridge

import (
	"context"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// BannerClient wraps a BannerView
type BannerClient struct {
	baseClient
	banner       *openwrap.BannerView
	eventHandler *BannerEventHandler
}

func newBannerClient(env clientEnv, adID int, pubID string, profileID int, adUnitID string, sizes []openwrap.AdSize, headerBidding bool) *BannerClient {
	c := &BannerClient{baseClient: newBaseClient(env, adID, openwrap.FormatBanner)}
	if headerBidding {
		c.eventHandler = newBannerEventHandler(adID, env.messenger, sizes, c.log)
		c.banner = openwrap.NewBannerViewWithEventHandler(env.sdk, pubID, profileID, adUnitID, c.eventHandler)
		c.handler = c.eventHandler
	} else {
		c.banner = openwrap.NewBannerView(env.sdk, pubID, profileID, adUnitID, sizes...)
	}
	c.banner.SetListener(&bannerListener{c: c})
	c.ad = c.banner
	c.self = c
	return c
}

// Dispatch handles POBBannerView#<path>
func (c *BannerClient) Dispatch(ctx context.Context, path []string, call *channel.MethodCall) (any, error) {
	switch path[0] {
	case "pauseAutoRefresh":
		c.banner.PauseAutoRefresh()
		return nil, nil

	case "resumeAutoRefresh":
		c.banner.ResumeAutoRefresh()
		return nil, nil

	case "forceRefresh":
		return c.banner.ForceRefresh(), nil

	case "getCreativeSize":
		size := c.banner.CreativeSize()
		if size == nil {
			return map[string]any{}, nil
		}
		return map[string]any{"w": size.Width, "h": size.Height}, nil

	default:
		return c.dispatchCommon(path, call)
	}
}

// View returns the banner's view. After an ad server win the view is cleared
// first, since the application draws the ad server creative itself.
func (c *BannerClient) View() *openwrap.AdView {
	view := c.banner.AdView()
	if c.eventHandler != nil && c.eventHandler.IsAdServerWin() {
		view.RemoveAllViews()
	}
	return view
}

// EventHandler returns the header bidding handler, or nil
func (c *BannerClient) EventHandler() *BannerEventHandler {
	return c.eventHandler
}

type bannerListener struct {
	c *BannerClient
}

func (l *bannerListener) OnAdReceived(*openwrap.BannerView) { l.c.send("onAdReceived", nil) }
func (l *bannerListener) OnAppLeaving(*openwrap.BannerView) { l.c.send("onAppLeaving", nil) }
func (l *bannerListener) OnAdOpened(*openwrap.BannerView)   { l.c.send("onAdOpened", nil) }
func (l *bannerListener) OnAdClosed(*openwrap.BannerView)   { l.c.send("onAdClosed", nil) }
func (l *bannerListener) OnAdClicked(*openwrap.BannerView)  { l.c.send("onAdClicked", nil) }

func (l *bannerListener) OnAdImpression(*openwrap.BannerView) { l.c.send("onAdImpression", nil) }

func (l *bannerListener) OnAdFailed(_ *openwrap.BannerView, err *openwrap.Error) {
	l.c.sendError("onAdFailed", err)
}
