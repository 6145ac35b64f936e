// Package bridge dispatches method channel calls onto the OpenWrap SDK and
// relays SDK callbacks back to the application as outward events.
package bridge

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Routes understood by the plugin
const (
	RouteSDK          = "OpenWrapSDK"
	RouteBanner       = "POBBannerView"
	RouteInterstitial = "POBInterstitial"
	RouteRewarded     = "POBRewardedAd"

	MethodInitBanner       = "initBannerAd"
	MethodInitInterstitial = "initInterstitialAd"
	MethodInitRewarded     = "initRewardedAd"
)

var routeFormats = map[string]openwrap.Format{
	RouteBanner:       openwrap.FormatBanner,
	RouteInterstitial: openwrap.FormatInterstitial,
	RouteRewarded:     openwrap.FormatRewarded,
}

// Plugin is the entry point of the method channel
type Plugin struct {
	mu        sync.Mutex
	sdk       *openwrap.SDK
	registry  *Registry
	messenger channel.Messenger
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewPlugin creates a plugin. m may be nil.
func NewPlugin(sdk *openwrap.SDK, registry *Registry, messenger channel.Messenger, m *metrics.Metrics) *Plugin {
	if registry == nil {
		registry = NewRegistry(m)
	}
	return &Plugin{
		sdk:       sdk,
		registry:  registry,
		messenger: messenger,
		metrics:   m,
		log:       logger.Bridge(),
	}
}

// Registry returns the instance registry
func (p *Plugin) Registry() *Registry {
	return p.registry
}

// HandleMethodCall implements channel.Handler. Calls are handled one at a time.
func (p *Plugin) HandleMethodCall(ctx context.Context, call *channel.MethodCall) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := strings.Split(call.Method, "#")
	switch names[0] {
	case RouteSDK:
		if len(names) < 2 {
			return nil, channel.ErrNotImplemented
		}
		return p.handleSDK(names[1], call)

	case MethodInitBanner:
		return nil, p.initAd(openwrap.FormatBanner, call)

	case MethodInitInterstitial:
		return nil, p.initAd(openwrap.FormatInterstitial, call)

	case MethodInitRewarded:
		return nil, p.initAd(openwrap.FormatRewarded, call)

	case RouteBanner, RouteInterstitial, RouteRewarded:
		if len(names) < 2 {
			return nil, channel.ErrNotImplemented
		}
		return p.forward(ctx, names, call)

	default:
		return nil, channel.ErrNotImplemented
	}
}

type initParams struct {
	adID          int
	pubID         string
	profileID     int
	adUnitID      string
	headerBidding bool
	sizes         []openwrap.AdSize
}

func missingParameters(keys []string) *channel.PlatformError {
	return channel.NewPlatformError(
		channel.CodeMissingParameters,
		"Missing required parameter/s",
		strings.Join(keys, ", "),
	)
}

func parseInitParams(format openwrap.Format, call *channel.MethodCall) (initParams, error) {
	var (
		p       initParams
		missing []string
		ok      bool
	)
	if p.adID, ok = call.Int(KeyAdID); !ok {
		missing = append(missing, KeyAdID)
	}
	if p.pubID, ok = call.String(KeyPubID); !ok {
		missing = append(missing, KeyPubID)
	}
	if p.profileID, ok = call.Int(KeyProfileID); !ok {
		missing = append(missing, KeyProfileID)
	}
	if p.adUnitID, ok = call.String(KeyAdUnitID); !ok {
		missing = append(missing, KeyAdUnitID)
	}
	if p.headerBidding, ok = call.Bool(KeyHeaderBidding); !ok {
		missing = append(missing, KeyHeaderBidding)
	}
	if format == openwrap.FormatBanner {
		if p.sizes, ok = adSizesFrom(call); !ok {
			missing = append(missing, KeyAdSizes)
		}
	}
	if len(missing) > 0 {
		return p, missingParameters(missing)
	}
	return p, nil
}

// adSizesFrom reads a non-empty list of {w,h} maps
func adSizesFrom(call *channel.MethodCall) ([]openwrap.AdSize, bool) {
	list, ok := call.List(KeyAdSizes)
	if !ok || len(list) == 0 {
		return nil, false
	}
	sizes := make([]openwrap.AdSize, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		w, okW := channel.AsInt(m["w"])
		h, okH := channel.AsInt(m["h"])
		if !okW || !okH || w <= 0 || h <= 0 {
			return nil, false
		}
		sizes = append(sizes, openwrap.AdSize{Width: w, Height: h})
	}
	return sizes, true
}

func (p *Plugin) initAd(format openwrap.Format, call *channel.MethodCall) error {
	params, err := parseInitParams(format, call)
	if err != nil {
		p.log.Warn().Err(err).Str("method", call.Method).Msg("Rejected ad init")
		return err
	}

	// A reused id tears down the live client so its late callbacks never
	// reach the application under the new client's id
	if prev, ok := p.registry.Get(params.adID); ok {
		p.log.Warn().
			Int("ad_id", params.adID).
			Str("previous_format", string(prev.Format())).
			Str("format", string(format)).
			Msg("Ad id reused before destroy, destroying previous ad")
		prev.Destroy()
	}

	env := clientEnv{sdk: p.sdk, messenger: p.messenger, registry: p.registry}
	var client AdClient
	switch format {
	case openwrap.FormatBanner:
		client = newBannerClient(env, params.adID, params.pubID, params.profileID, params.adUnitID, params.sizes, params.headerBidding)
	case openwrap.FormatInterstitial:
		client = newInterstitialClient(env, params.adID, params.pubID, params.profileID, params.adUnitID, params.headerBidding)
	case openwrap.FormatRewarded:
		client = newRewardedClient(env, params.adID, params.pubID, params.profileID, params.adUnitID, params.headerBidding)
	}
	p.registry.Register(client)

	p.log.Debug().
		Int("ad_id", params.adID).
		Str("format", string(format)).
		Str("pub_id", params.pubID).
		Int("profile_id", params.profileID).
		Str("ad_unit_id", params.adUnitID).
		Bool("header_bidding", params.headerBidding).
		Msg("Ad initialized")
	return nil
}

// forward routes a per-instance call to its client. Calls for unknown ids
// or for an id of another format are dropped without a reply.
func (p *Plugin) forward(ctx context.Context, names []string, call *channel.MethodCall) (any, error) {
	route := names[0]
	adID, ok := call.Int(KeyAdID)
	if !ok {
		p.drop(route, call, "missing ad id")
		return nil, channel.ErrNoReply
	}
	client, ok := p.registry.Get(adID)
	if !ok {
		p.drop(route, call, "unknown ad id")
		return nil, channel.ErrNoReply
	}
	if client.Format() != routeFormats[route] {
		p.drop(route, call, "ad id belongs to another format")
		return nil, channel.ErrNoReply
	}
	return client.Dispatch(logger.WithAdID(ctx, adID), names[1:], call)
}

func (p *Plugin) drop(route string, call *channel.MethodCall, reason string) {
	adID, _ := call.Argument(KeyAdID)
	p.log.Warn().
		Str("method", call.Method).
		Interface("ad_id", adID).
		Msg("Dropping call: " + reason)
	p.metrics.RecordDropped(route)
}

// View returns the view of the banner registered under adID. Unknown ids
// and non-banner ids yield an empty view.
func (p *Plugin) View(adID int) *openwrap.AdView {
	client, ok := p.registry.Get(adID)
	if !ok {
		return &openwrap.AdView{}
	}
	banner, ok := client.(*BannerClient)
	if !ok {
		return &openwrap.AdView{}
	}
	return banner.View()
}

// Close destroys every live ad
func (p *Plugin) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.registry.Clients() {
		c.Destroy()
	}
}
