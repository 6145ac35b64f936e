package openwrap

import (
	"fmt"
	"time"

	"github.com/prebid/openrtb/v17/adcom1"
)

// Format is an ad format
type Format string

const (
	FormatBanner       Format = "banner"
	FormatInterstitial Format = "interstitial"
	FormatRewarded     Format = "rewarded"
)

// AdSize is a creative size in points
type AdSize struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

func (s AdSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Standard sizes
var (
	BannerSize     = AdSize{Width: 320, Height: 50}
	MediumRectSize = AdSize{Width: 300, Height: 250}
	FullScreenSize = AdSize{Width: 320, Height: 480}
)

// Request configures the network side of one ad object's auctions
type Request struct {
	PubID     string
	ProfileID int
	AdUnitID  string

	Debug          bool
	BidSummary     bool
	TestMode       bool
	NetworkTimeout time.Duration // zero means the SDK default
	VersionID      *int          // nil means the live profile version
	AdServerURL    string
}

// Impression configures the slot side of one ad object's auctions
type Impression struct {
	ID             string
	AdUnitID       string
	AdPosition     adcom1.PlacementPosition
	TestCreativeID string
	CustomParams   map[string][]string
}

func cloneCustomParams(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (imp Impression) clone() Impression {
	imp.CustomParams = cloneCustomParams(imp.CustomParams)
	return imp
}

func (r Request) clone() Request {
	if r.VersionID != nil {
		v := *r.VersionID
		r.VersionID = &v
	}
	return r
}
