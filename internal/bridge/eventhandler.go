package bridge

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

const unknownErrorMessage = "unknown error occurred"

// eventHandler relays the header bidding exchange between the SDK and the
// application, which runs the ad server auction.
type eventHandler struct {
	adID      int
	messenger channel.Messenger
	log       zerolog.Logger

	mu          sync.Mutex
	listener    openwrap.EventListener
	adServerWin bool
}

// SetEventListener is called by the SDK when the handler is attached
func (h *eventHandler) SetEventListener(l openwrap.EventListener) {
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()
}

// Destroy detaches the SDK listener
func (h *eventHandler) Destroy() {
	h.mu.Lock()
	h.listener = nil
	h.mu.Unlock()
}

// IsAdServerWin reports whether the ad server won the last auction
func (h *eventHandler) IsAdServerWin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adServerWin
}

func (h *eventHandler) eventListener() openwrap.EventListener {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listener
}

// RequestAd asks the application to run the ad server auction with the
// OpenWrap targeting attached.
func (h *eventHandler) RequestAd(bid *openwrap.Bid) {
	h.mu.Lock()
	h.adServerWin = false
	l := h.listener
	h.mu.Unlock()

	if l == nil {
		return
	}
	targeting := map[string]any{}
	if provider := l.BidsProvider(); provider != nil {
		if info := provider.TargetingInfo(); info != nil {
			targeting = targetingMap(info)
		}
	}
	h.messenger.InvokeMethod("requestAd", map[string]any{
		KeyAdID:              h.adID,
		KeyOpenWrapTargeting: targeting,
	})
}

func (h *eventHandler) setAdServerWin(won bool) {
	h.mu.Lock()
	h.adServerWin = won
	h.mu.Unlock()
}

// dispatchCommon handles the callbacks both formats understand. handled is
// false for names the caller should try itself.
func (h *eventHandler) dispatchCommon(name string, call *channel.MethodCall) (handled bool) {
	l := h.eventListener()
	switch name {
	case "onOpenWrapPartnerWin":
		h.setAdServerWin(false)
		h.log.Info().Msg("OpenWrap partner win")
		if l != nil {
			bidID, _ := call.String("bidId")
			l.OnOpenWrapPartnerWin(bidID)
		}
	case "onAdServerWin":
		h.setAdServerWin(true)
		h.log.Info().Msg("Ad server won")
		if l != nil {
			l.OnAdServerWin()
		}
	case "onAdServerImpressionRecorded":
		if l != nil {
			l.OnAdServerImpressionRecorded()
		}
	case "onAdClick":
		if l != nil {
			l.OnAdClick()
		}
	case "onAdClosed":
		if l != nil {
			l.OnAdClosed()
		}
	case "onAdOpened":
		if l != nil {
			l.OnAdOpened()
		}
	case "onAdLeftApplication":
		if l != nil {
			l.OnAdLeftApplication()
		}
	default:
		return false
	}
	return true
}

// errorFromCall builds an SDK error from errorCode/errorMessage, falling
// back to an internal error when either is missing.
func errorFromCall(call *channel.MethodCall) *openwrap.Error {
	code, okCode := call.Int(KeyErrorCode)
	message, okMessage := call.String(KeyErrorMessage)
	if !okCode || !okMessage {
		return openwrap.NewError(openwrap.ErrCodeInternal, unknownErrorMessage)
	}
	return openwrap.NewError(code, message)
}

// BannerEventHandler is the header bidding handler of a banner
type BannerEventHandler struct {
	eventHandler
	sizes []openwrap.AdSize
}

func newBannerEventHandler(adID int, messenger channel.Messenger, sizes []openwrap.AdSize, log zerolog.Logger) *BannerEventHandler {
	return &BannerEventHandler{
		eventHandler: eventHandler{adID: adID, messenger: messenger, log: log},
		sizes:        sizes,
	}
}

// RequestedAdSizes returns the sizes the application asked for
func (h *BannerEventHandler) RequestedAdSizes() []openwrap.AdSize {
	return append([]openwrap.AdSize(nil), h.sizes...)
}

// Dispatch handles an EventHandler#<name> callback
func (h *BannerEventHandler) Dispatch(name string, call *channel.MethodCall) (any, error) {
	if h.dispatchCommon(name, call) {
		return nil, nil
	}
	switch name {
	case "onFailed":
		h.log.Info().Msg("Ad server failed to load")
		if l := h.eventListener(); l != nil {
			l.OnFailedToLoad(errorFromCall(call))
		}
		return nil, nil
	default:
		return nil, channel.ErrNotImplemented
	}
}

// InterstitialEventHandler is the header bidding handler of full-screen ads
type InterstitialEventHandler struct {
	eventHandler
}

func newInterstitialEventHandler(adID int, messenger channel.Messenger, log zerolog.Logger) *InterstitialEventHandler {
	return &InterstitialEventHandler{
		eventHandler: eventHandler{adID: adID, messenger: messenger, log: log},
	}
}

// Show asks the application to present the ad server creative
func (h *InterstitialEventHandler) Show() {
	h.messenger.InvokeMethod("show", map[string]any{KeyAdID: h.adID})
}

// Dispatch handles an EventHandler#<name> callback
func (h *InterstitialEventHandler) Dispatch(name string, call *channel.MethodCall) (any, error) {
	if h.dispatchCommon(name, call) {
		return nil, nil
	}
	l := h.eventListener()
	switch name {
	case "onFailedToLoad":
		if l != nil {
			l.OnFailedToLoad(errorFromCall(call))
		}
	case "onFailedToShow":
		if l != nil {
			l.OnFailedToShow(errorFromCall(call))
		}
	case "onAdExpired":
		if l != nil {
			l.OnAdExpired()
		}
	default:
		return nil, channel.ErrNotImplemented
	}
	return nil, nil
}
