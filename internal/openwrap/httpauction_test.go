package openwrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prebid/openrtb/v17/adcom1"
	"github.com/prebid/openrtb/v17/openrtb2"
)

func testAuctionRequest(format Format) *AuctionRequest {
	return &AuctionRequest{
		Format: format,
		Settings: Settings{
			SSLEnabled:     true,
			LocationAccess: true,
			AdvertisingID:  true,
		},
		Request: Request{
			PubID:     "156276",
			ProfileID: 1165,
			AdUnitID:  "/15671365/pm_sdk/PMSDK-Demo-App-Banner",
		},
		Impression: Impression{
			ID:       "imp-1",
			AdUnitID: "/15671365/pm_sdk/PMSDK-Demo-App-Banner",
		},
		Sizes: []AdSize{BannerSize},
	}
}

const bidResponseJSON = `{
	"id": "resp-1",
	"seatbid": [
		{"seat": "pubmatic", "bid": [
			{"id": "bid-low", "impid": "imp-1", "price": 0.5, "adm": "<div>low</div>", "w": 320, "h": 50}
		]},
		{"seat": "appnexus", "bid": [
			{"id": "bid-high", "impid": "imp-1", "price": 1.25, "adm": "<div>high</div>", "w": 320, "h": 50,
			 "nurl": "http://t/win", "lurl": "http://t/loss", "dealid": "deal-9", "exp": 600,
			 "ext": {"prebid": {"targeting": {"hb_pb": "1.20"}, "type": "banner"}, "refreshInterval": 45}}
		]}
	]
}`

func TestHTTPAuctioneerSelectsHighestBid(t *testing.T) {
	var got openrtb2.BidRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bidResponseJSON))
	}))
	defer server.Close()

	a := NewHTTPAuctioneer(HTTPAuctioneerConfig{Endpoint: server.URL})
	bid, err := a.Auction(context.Background(), testAuctionRequest(FormatBanner))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bid.ID != "bid-high" {
		t.Errorf("expected bid-high, got %s", bid.ID)
	}
	if bid.PartnerName != "appnexus" {
		t.Errorf("expected partner appnexus, got %s", bid.PartnerName)
	}
	if bid.RefreshInterval != 45 {
		t.Errorf("expected refresh interval 45, got %d", bid.RefreshInterval)
	}
	if bid.NURL != "http://t/win" || bid.LURL != "http://t/loss" {
		t.Errorf("unexpected notice urls: %s %s", bid.NURL, bid.LURL)
	}
	if remaining := time.Until(bid.ExpiresAt); remaining < 9*time.Minute || remaining > 10*time.Minute {
		t.Errorf("expected expiry from exp=600, got %v", remaining)
	}

	tgt := bid.TargetingInfo
	checks := map[string]string{
		"hb_pb":           "1.20",
		TargetingBidID:    "bid-high",
		TargetingStatus:   "1",
		TargetingPrice:    "1.25",
		TargetingSize:     "320x50",
		TargetingPartner:  "appnexus",
		TargetingDealID:   "deal-9",
		TargetingPlatform: "banner",
	}
	for k, want := range checks {
		if tgt[k] != want {
			t.Errorf("targeting %s: expected %q, got %q", k, want, tgt[k])
		}
	}

	if len(got.Imp) != 1 || got.Imp[0].TagID != "/15671365/pm_sdk/PMSDK-Demo-App-Banner" {
		t.Fatalf("unexpected imp: %+v", got.Imp)
	}
	if got.App == nil || got.App.Publisher == nil || got.App.Publisher.ID != "156276" {
		t.Errorf("expected publisher 156276, got %+v", got.App)
	}
}

func TestHTTPAuctioneerNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	a := NewHTTPAuctioneer(HTTPAuctioneerConfig{Endpoint: server.URL})
	_, err := a.Auction(context.Background(), testAuctionRequest(FormatBanner))
	if owErr := asError(err); owErr == nil || owErr.Code != ErrCodeNoAds {
		t.Errorf("expected no ads error, got %v", err)
	}
}

func TestHTTPAuctioneerErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   int
	}{
		{"bad request", http.StatusBadRequest, "", ErrCodeInvalidRequest},
		{"server error", http.StatusBadGateway, "", ErrCodeServer},
		{"malformed body", http.StatusOK, "{not json", ErrCodeInvalidResponse},
		{"zero price", http.StatusOK, `{"id":"r","seatbid":[{"bid":[{"id":"b","impid":"1","price":0}]}]}`, ErrCodeNoAds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			a := NewHTTPAuctioneer(HTTPAuctioneerConfig{Endpoint: server.URL})
			_, err := a.Auction(context.Background(), testAuctionRequest(FormatBanner))
			owErr := asError(err)
			if owErr == nil || owErr.Code != tt.code {
				t.Errorf("expected code %d, got %v", tt.code, err)
			}
		})
	}
}

func TestHTTPAuctioneerBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewHTTPAuctioneer(HTTPAuctioneerConfig{
		Endpoint: server.URL,
		Breaker:  &BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Hour},
	})

	for i := 0; i < 2; i++ {
		a.Auction(context.Background(), testAuctionRequest(FormatBanner))
	}
	if a.Breaker().State() != StateOpen {
		t.Fatalf("expected breaker open, got %s", a.Breaker().State())
	}

	_, err := a.Auction(context.Background(), testAuctionRequest(FormatBanner))
	if owErr := asError(err); owErr == nil || owErr.Code != ErrCodeNetwork {
		t.Errorf("expected network error while open, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests to reach the server, got %d", hits.Load())
	}
}

func TestHTTPAuctioneerEndpointOverride(t *testing.T) {
	var defaultHits, overrideHits atomic.Int32
	defaultServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer defaultServer.Close()
	overrideServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideHits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer overrideServer.Close()

	a := NewHTTPAuctioneer(HTTPAuctioneerConfig{Endpoint: defaultServer.URL})
	req := testAuctionRequest(FormatBanner)
	req.Profile = &Profile{Endpoint: "http://127.0.0.1:1/unused", Enabled: true}
	req.Request.AdServerURL = overrideServer.URL
	a.Auction(context.Background(), req)

	if overrideHits.Load() != 1 || defaultHits.Load() != 0 {
		t.Errorf("expected ad server url to win, got default=%d override=%d", defaultHits.Load(), overrideHits.Load())
	}
}

func TestBuildBidRequestBanner(t *testing.T) {
	req := testAuctionRequest(FormatBanner)
	version := 3
	req.Request.VersionID = &version
	req.Request.TestMode = true
	req.Request.Debug = true
	req.Impression.AdPosition = adcom1.PlacementPosition(4)
	req.Impression.TestCreativeID = "crid-1"
	req.Impression.CustomParams = map[string][]string{"genre": {"news", "sport"}}
	req.Sizes = []AdSize{BannerSize, MediumRectSize}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out := BuildBidRequest(ctx, req)

	if out.ID == "" {
		t.Error("expected a request id")
	}
	if out.Test != 1 {
		t.Error("expected test flag")
	}
	if out.TMax <= 0 || out.TMax > 2000 {
		t.Errorf("expected tmax from deadline, got %d", out.TMax)
	}
	imp := out.Imp[0]
	if imp.ID != "imp-1" {
		t.Errorf("expected impression id imp-1, got %s", imp.ID)
	}
	if imp.Instl != 0 {
		t.Error("banner should not be interstitial")
	}
	if imp.Banner == nil || len(imp.Banner.Format) != 2 || imp.Banner.Format[1].W != 300 {
		t.Fatalf("unexpected banner formats: %+v", imp.Banner)
	}
	if imp.Banner.Pos == nil || *imp.Banner.Pos != adcom1.PlacementPosition(4) {
		t.Errorf("expected position 4, got %v", imp.Banner.Pos)
	}
	if imp.Secure == nil || *imp.Secure != 1 {
		t.Error("expected secure impression")
	}

	var ie impExt
	if err := json.Unmarshal(imp.Ext, &ie); err != nil {
		t.Fatalf("bad imp ext: %v", err)
	}
	if ie.TestCrID != "crid-1" || len(ie.CustomParams["genre"]) != 2 || ie.Reward != 0 {
		t.Errorf("unexpected imp ext: %+v", ie)
	}

	var re requestExt
	if err := json.Unmarshal(out.Ext, &re); err != nil {
		t.Fatalf("bad request ext: %v", err)
	}
	if re.Wrapper.PubID != "156276" || re.Wrapper.ProfileID != 1165 {
		t.Errorf("unexpected wrapper: %+v", re.Wrapper)
	}
	if re.Wrapper.VersionID == nil || *re.Wrapper.VersionID != 3 {
		t.Errorf("expected version 3, got %v", re.Wrapper.VersionID)
	}
	if !re.Prebid.Debug {
		t.Error("expected debug flag")
	}
}

func TestBuildBidRequestSettings(t *testing.T) {
	req := testAuctionRequest(FormatRewarded)
	req.Sizes = nil
	paid := true
	gender := GenderFemale
	req.Settings.Coppa = true
	req.Settings.AdvertisingID = false
	req.Settings.Location = &Location{Source: LocationSourceUserProvided, Latitude: 18.5, Longitude: 73.8}
	req.Settings.ApplicationInfo = &ApplicationInfo{
		Domain:     "example.com",
		StoreURL:   "https://play.google.com/store/apps/details?id=com.example",
		Paid:       &paid,
		Categories: "IAB-1, IAB-2",
	}
	req.Settings.UserInfo = &UserInfo{BirthYear: 1990, Gender: &gender, City: "Pune"}

	out := BuildBidRequest(context.Background(), req)

	if out.Regs == nil || out.Regs.COPPA != 1 {
		t.Error("expected coppa")
	}
	if out.Device.Lmt == nil || *out.Device.Lmt != 1 {
		t.Error("expected limited ad tracking")
	}
	if out.Device.Geo == nil || out.Device.Geo.Type != adcom1.LocationType(3) {
		t.Errorf("expected user provided geo, got %+v", out.Device.Geo)
	}
	if out.App.Paid != 1 || len(out.App.Cat) != 2 || out.App.Cat[1] != "IAB-2" {
		t.Errorf("unexpected app: %+v", out.App)
	}
	if out.User == nil || out.User.Yob != 1990 || out.User.Gender != "F" || out.User.Geo.City != "Pune" {
		t.Errorf("unexpected user: %+v", out.User)
	}
	imp := out.Imp[0]
	if imp.Instl != 1 {
		t.Error("rewarded should be interstitial")
	}
	if len(imp.Banner.Format) != 1 || imp.Banner.Format[0].W != 320 || imp.Banner.Format[0].H != 480 {
		t.Errorf("expected full screen size, got %+v", imp.Banner.Format)
	}
	var ie impExt
	json.Unmarshal(imp.Ext, &ie)
	if ie.Reward != 1 {
		t.Error("expected reward flag on rewarded impression")
	}
	if out.TMax != 0 {
		t.Errorf("expected no tmax without deadline, got %d", out.TMax)
	}
}

func TestBuildBidRequestLocationAccessDenied(t *testing.T) {
	req := testAuctionRequest(FormatBanner)
	req.Settings.LocationAccess = false
	req.Settings.Location = &Location{Latitude: 1, Longitude: 2}

	out := BuildBidRequest(context.Background(), req)
	if out.Device.Geo != nil {
		t.Error("location should not be sent without location access")
	}
}
