package openwrap

// BidsProvider exposes the bid an ad object currently holds
type BidsProvider interface {
	WinningBid() *Bid
	TargetingInfo() map[string]string
}

// EventListener is implemented by ad objects and handed to their header
// bidding event handler, which reports the ad server's decision through it.
type EventListener interface {
	OnOpenWrapPartnerWin(bidID string)
	OnAdServerWin()
	OnAdServerImpressionRecorded()
	OnFailedToLoad(err *Error)
	OnFailedToShow(err *Error)
	OnAdClick()
	OnAdClosed()
	OnAdOpened()
	OnAdLeftApplication()
	OnAdExpired()
	BidsProvider() BidsProvider
}

// BannerEvent is a header bidding event handler for banners
type BannerEvent interface {
	// RequestAd asks the ad server to run its auction. bid is nil when
	// OpenWrap produced no bid.
	RequestAd(bid *Bid)
	SetEventListener(l EventListener)
	RequestedAdSizes() []AdSize
	Destroy()
}

// InterstitialEvent is a header bidding event handler for full-screen ads
type InterstitialEvent interface {
	RequestAd(bid *Bid)
	SetEventListener(l EventListener)
	// Show asks the ad server to present its creative
	Show()
	Destroy()
}
