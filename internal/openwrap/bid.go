package openwrap

import (
	"fmt"
	"time"
)

// BidStatusWon marks a bid that won the OpenWrap auction
const BidStatusWon = 1

// Reward is what a rewarded creative grants on completion
type Reward struct {
	CurrencyType string `json:"currencyType"`
	Amount       int    `json:"amount"`
}

// Bid is the winning bid held by an ad object
type Bid struct {
	ID              string
	ImpressionID    string
	Bundle          string
	Price           float64
	GrossPrice      float64
	Width           int
	Height          int
	Status          int
	CreativeID      string
	NURL            string
	LURL            string
	BURL            string
	Creative        string
	CreativeType    string // banner, video or native
	PartnerName     string
	DealID          string
	RefreshInterval int // seconds, zero disables auto refresh
	TargetingInfo   map[string]string
	Rewards         []Reward
	ExpiresAt       time.Time
}

// FirstReward returns the first reward, or nil
func (b *Bid) FirstReward() *Reward {
	if b == nil || len(b.Rewards) == 0 {
		return nil
	}
	r := b.Rewards[0]
	return &r
}

// Size returns the creative size
func (b *Bid) Size() AdSize {
	return AdSize{Width: b.Width, Height: b.Height}
}

// Expired reports whether the bid can no longer be rendered
func (b *Bid) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && !now.Before(b.ExpiresAt)
}

// Clone returns a deep copy
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	out := *b
	if b.TargetingInfo != nil {
		out.TargetingInfo = make(map[string]string, len(b.TargetingInfo))
		for k, v := range b.TargetingInfo {
			out.TargetingInfo[k] = v
		}
	}
	out.Rewards = append([]Reward(nil), b.Rewards...)
	return &out
}

func (b *Bid) String() string {
	return fmt.Sprintf("bid %s from %s at %.2f (%dx%d)", b.ID, b.PartnerName, b.Price, b.Width, b.Height)
}
