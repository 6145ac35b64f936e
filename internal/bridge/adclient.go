package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Argument keys shared by every route
const (
	KeyAdID              = "adId"
	KeyErrorCode         = "errorCode"
	KeyErrorMessage      = "errorMessage"
	KeyOpenWrapTargeting = "openWrapTargeting"
	KeyPubID             = "pubId"
	KeyProfileID         = "profileId"
	KeyAdUnitID          = "adUnitId"
	KeyHeaderBidding     = "isHeaderBidding"
	KeyAdSizes           = "adSizes"
)

// AdClient owns one SDK ad object and answers the per-instance routes for it
type AdClient interface {
	AdID() int
	Format() openwrap.Format
	// Dispatch handles path, the method segments after the format route
	Dispatch(ctx context.Context, path []string, call *channel.MethodCall) (any, error)
	Destroy()
}

// adObject is the part of the SDK surface every ad format shares
type adObject interface {
	UpdateRequest(fn func(r *openwrap.Request))
	UpdateImpression(fn func(imp *openwrap.Impression))
	Bid() *openwrap.Bid
	LoadAd()
	Destroy()
}

// eventHandlerClient is the channel side of a header bidding event handler
type eventHandlerClient interface {
	Dispatch(name string, call *channel.MethodCall) (any, error)
}

// clientEnv is what every client needs from the plugin
type clientEnv struct {
	sdk       *openwrap.SDK
	messenger channel.Messenger
	registry  *Registry
}

// baseClient implements the routes common to all formats
type baseClient struct {
	clientEnv
	self    AdClient
	adID    int
	format  openwrap.Format
	ad      adObject
	handler eventHandlerClient
	log     zerolog.Logger
}

func newBaseClient(env clientEnv, adID int, format openwrap.Format) baseClient {
	return baseClient{
		clientEnv: env,
		adID:      adID,
		format:    format,
		log:       logger.Ad(adID, string(format)),
	}
}

// AdID returns the caller assigned id
func (c *baseClient) AdID() int {
	return c.adID
}

// Format returns the ad format
func (c *baseClient) Format() openwrap.Format {
	return c.format
}

// Destroy unregisters the client, then releases the SDK object
func (c *baseClient) Destroy() {
	c.registry.Unregister(c.self)
	c.ad.Destroy()
	c.log.Debug().Msg("Ad destroyed")
}

func (c *baseClient) dispatchCommon(path []string, call *channel.MethodCall) (any, error) {
	switch path[0] {
	case "setRequest":
		c.setRequest(call)
		return nil, nil

	case "setImpression":
		c.setImpression(call)
		return nil, nil

	case "loadAd":
		c.ad.LoadAd()
		return nil, nil

	case "getBid":
		return bidToMap(c.ad.Bid()), nil

	case "destroy":
		c.Destroy()
		return nil, nil

	case "EventHandler":
		if len(path) < 2 {
			return nil, channel.ErrNotImplemented
		}
		if c.handler == nil {
			c.log.Debug().Str("callback", path[1]).Msg("Event handler callback without header bidding, dropping")
			return nil, channel.ErrNoReply
		}
		return c.handler.Dispatch(path[1], call)

	default:
		return nil, channel.ErrNotImplemented
	}
}

// setRequest applies only the keys present in the call. Nullable keys sent
// as null clear the field.
func (c *baseClient) setRequest(call *channel.MethodCall) {
	c.ad.UpdateRequest(func(r *openwrap.Request) {
		if v, ok := call.Bool("debug"); ok {
			r.Debug = v
		}
		if v, ok := call.Int("networkTimeout"); ok {
			r.NetworkTimeout = time.Duration(v) * time.Second
		}
		if v, ok := call.Bool("bidSummary"); ok {
			r.BidSummary = v
		}
		if v, ok := call.Bool("testMode"); ok {
			r.TestMode = v
		}
		if call.IsNull("versionId") {
			r.VersionID = nil
		} else if v, ok := call.Int("versionId"); ok {
			r.VersionID = &v
		}
		if call.IsNull("adServerUrl") {
			r.AdServerURL = ""
		} else if v, ok := call.String("adServerUrl"); ok {
			r.AdServerURL = v
		}
	})
}

func (c *baseClient) setImpression(call *channel.MethodCall) {
	c.ad.UpdateImpression(func(imp *openwrap.Impression) {
		if v, ok := call.Int("adPosition"); ok {
			imp.AdPosition = c.sdk.Position(v)
		}
		if call.IsNull("testCreativeId") {
			imp.TestCreativeID = ""
		} else if v, ok := call.String("testCreativeId"); ok {
			imp.TestCreativeID = v
		}
		if call.IsNull("customParams") {
			imp.CustomParams = nil
		} else if v, ok := call.StringListMap("customParams"); ok {
			imp.CustomParams = v
		}
	})
}

// send raises an outward event tagged with the ad id
func (c *baseClient) send(method string, extra map[string]any) {
	args := map[string]any{KeyAdID: c.adID}
	for k, v := range extra {
		args[k] = v
	}
	c.messenger.InvokeMethod(method, args)
}

func (c *baseClient) sendError(method string, err *openwrap.Error) {
	c.send(method, errorArgs(err))
}

func errorArgs(err *openwrap.Error) map[string]any {
	if err == nil {
		err = openwrap.NewError(openwrap.ErrCodeInternal, unknownErrorMessage)
	}
	return map[string]any{
		KeyErrorCode:    err.Code,
		KeyErrorMessage: err.Message,
	}
}

// bidToMap snapshots a bid for getBid. Unset optional fields are omitted.
func bidToMap(bid *openwrap.Bid) map[string]any {
	out := make(map[string]any)
	if bid == nil {
		return out
	}

	out["bidId"] = bid.ID
	out["impressionId"] = bid.ImpressionID
	out["price"] = bid.Price
	out["grossPrice"] = bid.GrossPrice
	out["width"] = bid.Width
	out["height"] = bid.Height
	out["status"] = bid.Status
	out["creativeId"] = bid.CreativeID
	out["creative"] = bid.Creative
	out["creativeType"] = bid.CreativeType
	out["partnerName"] = bid.PartnerName
	out["refreshInterval"] = bid.RefreshInterval

	if bid.Bundle != "" {
		out["bundle"] = bid.Bundle
	}
	if bid.NURL != "" {
		out["nurl"] = bid.NURL
	}
	if bid.LURL != "" {
		out["lurl"] = bid.LURL
	}
	if bid.DealID != "" {
		out["dealId"] = bid.DealID
	}
	if bid.TargetingInfo != nil {
		out["targetingInfo"] = targetingMap(bid.TargetingInfo)
	}
	if r := bid.FirstReward(); r != nil {
		out["rewardAmount"] = r.Amount
		out["rewardCurrencyType"] = r.CurrencyType
	}
	return out
}

func targetingMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
