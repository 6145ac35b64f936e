package bridge

import (
	"context"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// InterstitialClient wraps an Interstitial
type InterstitialClient struct {
	baseClient
	interstitial *openwrap.Interstitial
	eventHandler *InterstitialEventHandler
}

func newInterstitialClient(env clientEnv, adID int, pubID string, profileID int, adUnitID string, headerBidding bool) *InterstitialClient {
	c := &InterstitialClient{baseClient: newBaseClient(env, adID, openwrap.FormatInterstitial)}
	if headerBidding {
		c.eventHandler = newInterstitialEventHandler(adID, env.messenger, c.log)
		c.interstitial = openwrap.NewInterstitialWithEventHandler(env.sdk, pubID, profileID, adUnitID, c.eventHandler)
		c.handler = c.eventHandler
	} else {
		c.interstitial = openwrap.NewInterstitial(env.sdk, pubID, profileID, adUnitID)
	}
	c.ad = c.interstitial
	c.self = c
	return c
}

// Dispatch handles POBInterstitial#<path>
func (c *InterstitialClient) Dispatch(ctx context.Context, path []string, call *channel.MethodCall) (any, error) {
	switch path[0] {
	case "show":
		c.interstitial.Show()
		return nil, nil

	case "isReady":
		return c.interstitial.IsReady(), nil

	case "setListener":
		c.interstitial.SetListener(&interstitialListener{c: &c.baseClient})
		return nil, nil

	case "setVideoListener":
		c.interstitial.SetVideoListener(&videoListener{c: &c.baseClient})
		return nil, nil

	default:
		return c.dispatchCommon(path, call)
	}
}

type interstitialListener struct {
	c *baseClient
}

func (l *interstitialListener) OnAdReceived(*openwrap.Interstitial)   { l.c.send("onAdReceived", nil) }
func (l *interstitialListener) OnAppLeaving(*openwrap.Interstitial)   { l.c.send("onAppLeaving", nil) }
func (l *interstitialListener) OnAdOpened(*openwrap.Interstitial)     { l.c.send("onAdOpened", nil) }
func (l *interstitialListener) OnAdClosed(*openwrap.Interstitial)     { l.c.send("onAdClosed", nil) }
func (l *interstitialListener) OnAdClicked(*openwrap.Interstitial)    { l.c.send("onAdClicked", nil) }
func (l *interstitialListener) OnAdExpired(*openwrap.Interstitial)    { l.c.send("onAdExpired", nil) }
func (l *interstitialListener) OnAdImpression(*openwrap.Interstitial) { l.c.send("onAdImpression", nil) }

func (l *interstitialListener) OnAdFailedToLoad(_ *openwrap.Interstitial, err *openwrap.Error) {
	l.c.sendError("onAdFailedToLoad", err)
}

func (l *interstitialListener) OnAdFailedToShow(_ *openwrap.Interstitial, err *openwrap.Error) {
	l.c.sendError("onAdFailedToShow", err)
}

type videoListener struct {
	c *baseClient
}

func (l *videoListener) OnVideoPlaybackCompleted(*openwrap.Interstitial) {
	l.c.send("onVideoPlaybackCompleted", nil)
}
