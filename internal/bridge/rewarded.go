package bridge

import (
	"context"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// RewardedClient wraps a RewardedAd
type RewardedClient struct {
	baseClient
	rewarded     *openwrap.RewardedAd
	eventHandler *InterstitialEventHandler
}

func newRewardedClient(env clientEnv, adID int, pubID string, profileID int, adUnitID string, headerBidding bool) *RewardedClient {
	c := &RewardedClient{baseClient: newBaseClient(env, adID, openwrap.FormatRewarded)}
	if headerBidding {
		c.eventHandler = newInterstitialEventHandler(adID, env.messenger, c.log)
		c.rewarded = openwrap.NewRewardedAdWithEventHandler(env.sdk, pubID, profileID, adUnitID, c.eventHandler)
		c.handler = c.eventHandler
	} else {
		c.rewarded = openwrap.NewRewardedAd(env.sdk, pubID, profileID, adUnitID)
	}
	c.ad = c.rewarded
	c.self = c
	return c
}

// Dispatch handles POBRewardedAd#<path>
func (c *RewardedClient) Dispatch(ctx context.Context, path []string, call *channel.MethodCall) (any, error) {
	switch path[0] {
	case "show":
		c.rewarded.Show()
		return nil, nil

	case "isReady":
		return c.rewarded.IsReady(), nil

	case "setListener":
		c.rewarded.SetListener(&rewardedListener{c: &c.baseClient})
		return nil, nil

	case "setSkipAlertDialogInfo":
		return nil, c.setSkipAlertDialogInfo(call)

	default:
		return c.dispatchCommon(path, call)
	}
}

func (c *RewardedClient) setSkipAlertDialogInfo(call *channel.MethodCall) error {
	title, ok1 := call.String("title")
	message, ok2 := call.String("message")
	resumeTitle, ok3 := call.String("resumeTitle")
	closeTitle, ok4 := call.String("closeTitle")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return channel.NewPlatformError(
			channel.CodePlatformException,
			"Error while calling setSkipAlertDialogInfoParams on POBRewardedAd class.",
			"Cannot set skip alert dialog info params as one of the received values from "+
				"title, message, resumeTitle and closeTitle is null.",
		)
	}
	c.rewarded.SetSkipAlertDialogInfo(openwrap.SkipAlertDialogInfo{
		Title:       title,
		Message:     message,
		ResumeTitle: resumeTitle,
		CloseTitle:  closeTitle,
	})
	return nil
}

type rewardedListener struct {
	c *baseClient
}

func (l *rewardedListener) OnAdReceived(*openwrap.RewardedAd)   { l.c.send("onAdReceived", nil) }
func (l *rewardedListener) OnAppLeaving(*openwrap.RewardedAd)   { l.c.send("onAppLeaving", nil) }
func (l *rewardedListener) OnAdOpened(*openwrap.RewardedAd)     { l.c.send("onAdOpened", nil) }
func (l *rewardedListener) OnAdClosed(*openwrap.RewardedAd)     { l.c.send("onAdClosed", nil) }
func (l *rewardedListener) OnAdClicked(*openwrap.RewardedAd)    { l.c.send("onAdClicked", nil) }
func (l *rewardedListener) OnAdExpired(*openwrap.RewardedAd)    { l.c.send("onAdExpired", nil) }
func (l *rewardedListener) OnAdImpression(*openwrap.RewardedAd) { l.c.send("onAdImpression", nil) }

func (l *rewardedListener) OnAdFailedToLoad(_ *openwrap.RewardedAd, err *openwrap.Error) {
	l.c.sendError("onAdFailedToLoad", err)
}

func (l *rewardedListener) OnAdFailedToShow(_ *openwrap.RewardedAd, err *openwrap.Error) {
	l.c.sendError("onAdFailedToShow", err)
}

func (l *rewardedListener) OnReceiveReward(_ *openwrap.RewardedAd, reward openwrap.Reward) {
	l.c.send("onReceiveReward", map[string]any{
		"currencyType": reward.CurrencyType,
		"amount":       reward.Amount,
	})
}
