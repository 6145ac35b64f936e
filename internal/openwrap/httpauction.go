package openwrap

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prebid/openrtb/v17/openrtb2"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
)

// OpenWrap targeting keys sent to the ad server
const (
	TargetingBidID    = "pwtsid"
	TargetingStatus   = "pwtbst"
	TargetingPrice    = "pwtecp"
	TargetingSize     = "pwtsz"
	TargetingPartner  = "pwtpid"
	TargetingDealID   = "pwtdid"
	TargetingPlatform = "pwtplt"
)

// HTTPAuctioneerConfig configures an HTTPAuctioneer
type HTTPAuctioneerConfig struct {
	Endpoint   string
	HTTPClient *http.Client
	Breaker    *BreakerConfig
	Metrics    *metrics.Metrics
}

// HTTPAuctioneer runs auctions against an OpenRTB 2.5 endpoint
type HTTPAuctioneer struct {
	endpoint   string
	httpClient *http.Client
	breaker    *Breaker
	now        func() time.Time
}

// NewHTTPAuctioneer creates an auctioneer
func NewHTTPAuctioneer(cfg HTTPAuctioneerConfig) *HTTPAuctioneer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultAuctionURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	breakerCfg := cfg.Breaker
	if breakerCfg == nil {
		breakerCfg = DefaultBreakerConfig()
	}
	if cfg.Metrics != nil && breakerCfg.OnStateChange == nil {
		m := cfg.Metrics
		breakerCfg.OnStateChange = func(_, to string) { m.SetCircuitState(to) }
	}
	return &HTTPAuctioneer{
		endpoint:   cfg.Endpoint,
		httpClient: cfg.HTTPClient,
		breaker:    NewBreaker(breakerCfg),
		now:        time.Now,
	}
}

// Breaker returns the endpoint circuit breaker
func (a *HTTPAuctioneer) Breaker() *Breaker {
	return a.breaker
}

// Auction posts the bid request and returns the highest priced bid
func (a *HTTPAuctioneer) Auction(ctx context.Context, req *AuctionRequest) (*Bid, error) {
	ortbReq := BuildBidRequest(ctx, req)
	body, err := json.Marshal(ortbReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bid request: %w", err)
	}

	endpoint := a.endpoint
	if req.Profile != nil && req.Profile.Endpoint != "" {
		endpoint = req.Profile.Endpoint
	}
	if req.Request.AdServerURL != "" {
		endpoint = req.Request.AdServerURL
	}

	var status int
	var respBody []byte
	err = a.breaker.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-openrtb-version", "2.5")

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		respBody, err = io.ReadAll(io.LimitReader(resp.Body, config.MaxAuctionResponseSize))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if status >= 500 {
			return NewError(ErrCodeServer, fmt.Sprintf("auction endpoint returned status %d", status))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var owErr *Error
		if errors.As(err, &owErr) || errors.Is(err, ErrCircuitOpen) {
			return nil, err
		}
		return nil, NewError(ErrCodeNetwork, err.Error())
	}

	switch {
	case status == http.StatusNoContent:
		return nil, ErrNoBid
	case status >= 400:
		return nil, NewError(ErrCodeInvalidRequest, fmt.Sprintf("auction endpoint rejected request with status %d", status))
	}

	var ortbResp openrtb2.BidResponse
	if err := json.Unmarshal(respBody, &ortbResp); err != nil {
		return nil, NewError(ErrCodeInvalidResponse, "malformed bid response")
	}
	return a.selectBid(&ortbResp, req)
}

// bidExt is the OpenWrap / Prebid extension carried on each bid
type bidExt struct {
	Prebid struct {
		Targeting map[string]string `json:"targeting"`
		Type      string            `json:"type"`
	} `json:"prebid"`
	RefreshInterval int      `json:"refreshInterval"`
	Reward          []Reward `json:"reward"`
	OrigBidCPM      float64  `json:"origbidcpm"`
	CreativeType    string   `json:"crtype"`
}

func (a *HTTPAuctioneer) selectBid(resp *openrtb2.BidResponse, req *AuctionRequest) (*Bid, error) {
	var best *openrtb2.Bid
	var seat string
	for i := range resp.SeatBid {
		sb := &resp.SeatBid[i]
		for j := range sb.Bid {
			b := &sb.Bid[j]
			if b.Price <= 0 {
				continue
			}
			if best == nil || b.Price > best.Price {
				best = b
				seat = sb.Seat
			}
		}
	}
	if best == nil {
		return nil, ErrNoBid
	}

	var ext bidExt
	if len(best.Ext) > 0 {
		if err := json.Unmarshal(best.Ext, &ext); err != nil {
			return nil, NewError(ErrCodeInvalidResponse, "malformed bid extension")
		}
	}

	creativeType := ext.CreativeType
	if creativeType == "" {
		creativeType = ext.Prebid.Type
	}
	if creativeType == "" {
		creativeType = "banner"
	}

	grossPrice := ext.OrigBidCPM
	if grossPrice == 0 {
		grossPrice = best.Price
	}

	now := a.now()
	expiry := config.DefaultBidExpiry
	if best.Exp > 0 {
		expiry = time.Duration(best.Exp) * time.Second
	}

	bid := &Bid{
		ID:              best.ID,
		ImpressionID:    best.ImpID,
		Bundle:          best.Bundle,
		Price:           best.Price,
		GrossPrice:      grossPrice,
		Width:           int(best.W),
		Height:          int(best.H),
		Status:          BidStatusWon,
		CreativeID:      best.CrID,
		NURL:            best.NURL,
		LURL:            best.LURL,
		BURL:            best.BURL,
		Creative:        best.AdM,
		CreativeType:    creativeType,
		PartnerName:     seat,
		DealID:          best.DealID,
		RefreshInterval: ext.RefreshInterval,
		Rewards:         ext.Reward,
		ExpiresAt:       now.Add(expiry),
	}
	if bid.Width == 0 && len(req.Sizes) > 0 {
		bid.Width, bid.Height = req.Sizes[0].Width, req.Sizes[0].Height
	}
	bid.TargetingInfo = targetingFor(bid, ext.Prebid.Targeting)
	return bid, nil
}

// targetingFor merges partner targeting with the OpenWrap keys
func targetingFor(bid *Bid, partner map[string]string) map[string]string {
	out := make(map[string]string, len(partner)+7)
	for k, v := range partner {
		out[k] = v
	}
	out[TargetingBidID] = bid.ID
	out[TargetingStatus] = strconv.Itoa(bid.Status)
	out[TargetingPrice] = strconv.FormatFloat(bid.Price, 'f', 2, 64)
	out[TargetingSize] = bid.Size().String()
	out[TargetingPartner] = bid.PartnerName
	out[TargetingPlatform] = bid.CreativeType
	if bid.DealID != "" {
		out[TargetingDealID] = bid.DealID
	}
	return out
}

// impExt carries wrapper settings and publisher key-values on the impression
type impExt struct {
	Reward       int                 `json:"reward,omitempty"`
	TestCrID     string              `json:"testcrid,omitempty"`
	CustomParams map[string][]string `json:"key_val,omitempty"`
}

type requestExt struct {
	Wrapper struct {
		PubID      string `json:"pubid"`
		ProfileID  int    `json:"profileid"`
		VersionID  *int   `json:"versionid,omitempty"`
		BidSummary bool   `json:"bidsummary,omitempty"`
	} `json:"wrapper"`
	Prebid struct {
		Debug bool `json:"debug,omitempty"`
	} `json:"prebid"`
}

// BuildBidRequest converts an AuctionRequest into an OpenRTB 2.5 bid request
func BuildBidRequest(ctx context.Context, req *AuctionRequest) *openrtb2.BidRequest {
	s := req.Settings
	r := req.Request

	imp := openrtb2.Imp{
		ID:    req.Impression.ID,
		TagID: r.AdUnitID,
	}
	if imp.ID == "" {
		imp.ID = "1"
	}
	if req.Impression.AdUnitID != "" {
		imp.TagID = req.Impression.AdUnitID
	}

	sizes := req.Sizes
	if len(sizes) == 0 && req.Format != FormatBanner {
		sizes = []AdSize{FullScreenSize}
	}
	formats := make([]openrtb2.Format, 0, len(sizes))
	for _, sz := range sizes {
		formats = append(formats, openrtb2.Format{W: int64(sz.Width), H: int64(sz.Height)})
	}
	pos := req.Impression.AdPosition
	imp.Banner = &openrtb2.Banner{Format: formats, Pos: &pos}
	if req.Format != FormatBanner {
		imp.Instl = 1
	}
	if s.SSLEnabled {
		secure := int8(1)
		imp.Secure = &secure
	}
	if req.Profile != nil && req.Profile.BidFloor > 0 {
		imp.BidFloor = req.Profile.BidFloor
		imp.BidFloorCur = "USD"
	}

	ie := impExt{
		TestCrID:     req.Impression.TestCreativeID,
		CustomParams: req.Impression.CustomParams,
	}
	if req.Format == FormatRewarded {
		ie.Reward = 1
	}
	imp.Ext, _ = json.Marshal(ie)

	app := &openrtb2.App{
		Publisher: &openrtb2.Publisher{ID: r.PubID},
	}
	if info := s.ApplicationInfo; info != nil {
		app.Domain = info.Domain
		app.StoreURL = info.StoreURL
		app.Keywords = info.Keywords
		if info.Categories != "" {
			for _, c := range strings.Split(info.Categories, ",") {
				if c = strings.TrimSpace(c); c != "" {
					app.Cat = append(app.Cat, c)
				}
			}
		}
		if info.Paid != nil && *info.Paid {
			app.Paid = 1
		}
	}

	device := &openrtb2.Device{}
	if !s.AdvertisingID {
		lmt := int8(1)
		device.Lmt = &lmt
	}
	if s.LocationAccess && s.Location != nil {
		device.Geo = &openrtb2.Geo{
			Lat:  s.Location.Latitude,
			Lon:  s.Location.Longitude,
			Type: s.Location.Source.GeoType(),
		}
	}

	var user *openrtb2.User
	if u := s.UserInfo; u != nil {
		user = &openrtb2.User{
			Yob:      int64(u.BirthYear),
			Keywords: u.Keywords,
		}
		if u.Gender != nil {
			user.Gender = u.Gender.String()
		}
		if u.Country != "" || u.City != "" || u.Metro != "" || u.Zip != "" || u.Region != "" {
			user.Geo = &openrtb2.Geo{
				Country: u.Country,
				City:    u.City,
				Metro:   u.Metro,
				ZIP:     u.Zip,
				Region:  u.Region,
			}
		}
	}

	var re requestExt
	re.Wrapper.PubID = r.PubID
	re.Wrapper.ProfileID = r.ProfileID
	re.Wrapper.VersionID = r.VersionID
	if re.Wrapper.VersionID == nil && req.Profile != nil {
		re.Wrapper.VersionID = req.Profile.VersionID
	}
	re.Wrapper.BidSummary = r.BidSummary
	re.Prebid.Debug = r.Debug
	ext, _ := json.Marshal(re)

	out := &openrtb2.BidRequest{
		ID:     newRequestID(),
		Imp:    []openrtb2.Imp{imp},
		App:    app,
		Device: device,
		User:   user,
		AT:     1,
		Cur:    []string{"USD"},
		Ext:    ext,
	}
	if s.Coppa {
		out.Regs = &openrtb2.Regs{COPPA: 1}
	}
	if r.TestMode || (req.Profile != nil && req.Profile.TestMode) {
		out.Test = 1
	}
	if deadline, ok := ctx.Deadline(); ok {
		if ms := time.Until(deadline).Milliseconds(); ms > 0 {
			out.TMax = ms
		}
	}
	return out
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b[:])
}
