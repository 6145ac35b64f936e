package openwrap

import (
	"context"
	"errors"
	"time"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
)

// ErrNoBid is returned by an Auctioneer when the auction produced no bid
var ErrNoBid = NewError(ErrCodeNoAds, "no ads available")

// AuctionRequest is everything an Auctioneer needs for one auction
type AuctionRequest struct {
	Format     Format
	Settings   Settings
	Request    Request
	Impression Impression
	Sizes      []AdSize
	Profile    *Profile
}

// Auctioneer runs one OpenWrap auction and returns the winning bid
type Auctioneer interface {
	Auction(ctx context.Context, req *AuctionRequest) (*Bid, error)
}

// AuctioneerFunc adapts a function to Auctioneer
type AuctioneerFunc func(ctx context.Context, req *AuctionRequest) (*Bid, error)

// Auction calls f(ctx, req)
func (f AuctioneerFunc) Auction(ctx context.Context, req *AuctionRequest) (*Bid, error) {
	return f(ctx, req)
}

// auction resolves the profile, runs the auction and records metrics.
// The returned error is always an *Error.
func (s *SDK) auction(ctx context.Context, format Format, req Request, imp Impression, sizes []AdSize) (*Bid, *Error) {
	log := s.Logger()
	if s.auctioneer == nil {
		return nil, NewError(ErrCodeInvalidRequest, "no auction endpoint configured")
	}
	if req.PubID == "" || req.AdUnitID == "" {
		return nil, NewError(ErrCodeInvalidRequest, "publisher id and ad unit id are required")
	}

	profile := s.resolveProfile(ctx, req)
	if profile != nil && !profile.Enabled {
		return nil, NewError(ErrCodeAdRequestNotAllowed, "profile is disabled")
	}

	timeout := req.NetworkTimeout
	if timeout <= 0 && profile != nil {
		timeout = profile.Timeout
	}
	if timeout <= 0 {
		timeout = config.DefaultNetworkTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	bid, err := s.auctioneer.Auction(ctx, &AuctionRequest{
		Format:     format,
		Settings:   s.Settings(),
		Request:    req,
		Impression: imp,
		Sizes:      sizes,
		Profile:    profile,
	})
	owErr := asError(err)
	if owErr == nil && bid == nil {
		owErr = ErrNoBid
	}

	status := "ok"
	if owErr != nil {
		status = "error"
		if owErr.Code == ErrCodeNoAds {
			status = "no_bid"
		}
	}
	s.metrics.RecordAuction(string(format), status, time.Since(start))

	if owErr != nil {
		log.Debug().
			Str("ad_unit", req.AdUnitID).
			Int("code", owErr.Code).
			Str("reason", owErr.Message).
			Msg("Auction produced no ad")
		return nil, owErr
	}

	s.metrics.RecordBid(string(format), bid.PartnerName, bid.Price)
	log.Debug().
		Str("ad_unit", req.AdUnitID).
		Str("bid_id", bid.ID).
		Float64("price", bid.Price).
		Str("partner", bid.PartnerName).
		Msg("Auction won")
	return bid, nil
}

func (s *SDK) resolveProfile(ctx context.Context, req Request) *Profile {
	if s.profiles == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, config.ProfileLookupTimeout)
	defer cancel()

	profile, err := s.profiles.GetProfile(ctx, req.PubID, req.ProfileID)
	if err != nil {
		// A broken store must not block ads; fall back to request values
		if !errors.Is(err, context.Canceled) {
			log := s.Logger()
			log.Warn().Err(err).
				Str("pub_id", req.PubID).
				Int("profile_id", req.ProfileID).
				Msg("Profile lookup failed")
		}
		return nil
	}
	return profile
}
