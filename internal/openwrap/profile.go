package openwrap

import (
	"context"
	"time"
)

// Profile holds per publisher profile overrides resolved before an auction
type Profile struct {
	PubID     string        `json:"pub_id"`
	ProfileID int           `json:"profile_id"`
	Name      string        `json:"name,omitempty"`
	Endpoint  string        `json:"endpoint,omitempty"`
	VersionID *int          `json:"version_id,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	TestMode  bool          `json:"test_mode"`
	BidFloor  float64       `json:"bid_floor,omitempty"`
	Enabled   bool          `json:"enabled"`
}

// ProfileStore resolves profiles. A missing profile is (nil, nil).
type ProfileStore interface {
	GetProfile(ctx context.Context, pubID string, profileID int) (*Profile, error)
}
