// Package config provides shared configuration constants for the bridge
package config

import "time"

// Channel defaults
const (
	// ChannelName is the name the application layer opens the method channel with
	ChannelName = "flutter_openwrap_sdk"

	// BannerViewType is the platform view type served by the banner view provider
	BannerViewType = "POBBannerView"

	// OutboxSize is the buffered capacity of the outward event queue
	OutboxSize = 256

	// MaxFrameSize is the largest single JSON frame accepted on the stdio transport (1MB)
	MaxFrameSize = 1024 * 1024
)

// Server timeout defaults
const (
	// ServerReadTimeout is the maximum duration for reading the entire request
	ServerReadTimeout = 5 * time.Second

	// ServerWriteTimeout is zero so the event stream is not cut off
	ServerWriteTimeout = 0

	// ServerIdleTimeout is the maximum time to wait for the next request when keep-alives are enabled
	ServerIdleTimeout = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Auction defaults
const (
	// DefaultNetworkTimeout applies when Request.networkTimeout is unset
	DefaultNetworkTimeout = 5 * time.Second

	// DefaultAuctionURL is the OpenWrap translator endpoint
	DefaultAuctionURL = "https://ow.pubmatic.com/openrtb/2.5"

	// MaxAuctionResponseSize caps the auction response body (1MB)
	MaxAuctionResponseSize = 1024 * 1024

	// DefaultBidExpiry applies when the winning bid carries no exp
	DefaultBidExpiry = 30 * time.Minute

	// MinRefreshInterval is the smallest banner refresh interval honored
	MinRefreshInterval = 30 * time.Second
)

// Tracker defaults
const (
	// TrackerWorkers is the number of concurrent notification URL workers
	TrackerWorkers = 2

	// TrackerQueueSize is the max pending tracker pings before dropping
	TrackerQueueSize = 64

	// TrackerTimeout bounds a single tracker ping
	TrackerTimeout = 2 * time.Second
)

// Profile store defaults
const (
	// ProfileCacheTTL is how long a resolved profile stays in Redis
	ProfileCacheTTL = 5 * time.Minute

	// ProfileLookupTimeout bounds profile resolution before an auction
	ProfileLookupTimeout = 500 * time.Millisecond
)

// Redis defaults
const (
	// RedisPoolSize is the default connection pool size
	RedisPoolSize = 10
)
