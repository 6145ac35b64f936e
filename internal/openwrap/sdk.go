// Package openwrap is a Go rendition of the OpenWrap mobile SDK surface:
// process-wide settings, ad request configuration, header-bidding contracts
// and the banner, interstitial and rewarded ad objects.
//
// Ads are sourced from an OpenRTB auction endpoint through an Auctioneer and
// rendered through a Presenter. Every ad object raises its callbacks serially
// on its own goroutine.
package openwrap

import (
	"fmt"
	"sync"

	"github.com/prebid/openrtb/v17/adcom1"
	"github.com/rs/zerolog"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Version is the SDK version reported by getVersion
const Version = "2.1.0"

// LogLevel is the SDK log level, using the channel's wire values
type LogLevel int

const (
	LogLevelAll LogLevel = iota
	LogLevelVerbose
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelOff
)

// Valid reports whether l is a known level
func (l LogLevel) Valid() bool {
	return l >= LogLevelAll && l <= LogLevelOff
}

// ZerologLevel maps the SDK level onto zerolog
func (l LogLevel) ZerologLevel() zerolog.Level {
	switch l {
	case LogLevelAll, LogLevelVerbose:
		return zerolog.TraceLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

// LocationSource tells how a Location was obtained
type LocationSource int

const (
	LocationSourceGPS LocationSource = iota
	LocationSourceIPAddress
	LocationSourceUserProvided
)

// GeoType returns the OpenRTB location type. Unknown sources count as GPS.
func (s LocationSource) GeoType() adcom1.LocationType {
	if s < LocationSourceGPS || s > LocationSourceUserProvided {
		s = LocationSourceGPS
	}
	return adcom1.LocationType(s + 1)
}

// Location is a device location supplied by the application
type Location struct {
	Source    LocationSource
	Latitude  float64
	Longitude float64
}

// Gender of the user
type Gender int

const (
	GenderMale Gender = iota
	GenderFemale
	GenderOther
)

// String returns the OpenRTB gender code
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "M"
	case GenderFemale:
		return "F"
	default:
		return "O"
	}
}

// ApplicationInfo describes the publishing application
type ApplicationInfo struct {
	Domain     string
	StoreURL   string
	Paid       *bool
	Categories string // comma separated IAB categories
	Keywords   string
}

// UserInfo describes the user. Zero values are omitted from auctions.
type UserInfo struct {
	BirthYear int
	Gender    *Gender
	Country   string
	City      string
	Metro     string
	Zip       string
	Region    string
	Keywords  string
}

// Settings is a snapshot of the process-wide SDK configuration
type Settings struct {
	LogLevel           LogLevel
	Coppa              bool
	SSLEnabled         bool
	LocationAccess     bool
	UseInternalBrowser bool
	AdvertisingID      bool
	Location           *Location
	ApplicationInfo    *ApplicationInfo
	UserInfo           *UserInfo
}

// Options wires an SDK to its collaborators
type Options struct {
	Auctioneer Auctioneer
	Presenter  Presenter
	Profiles   ProfileStore
	Tracker    *Tracker
	Metrics    *metrics.Metrics
	Positions  PositionTable

	// Platform is "android" or "ios". It picks the position table when
	// Positions is nil and the fallback for unknown gender values.
	Platform string
}

// SDK holds process-wide settings and the collaborators every ad object uses.
// Settings are read by every subsequent auction.
type SDK struct {
	mu       sync.RWMutex
	settings Settings
	log      zerolog.Logger

	auctioneer Auctioneer
	presenter  Presenter
	profiles   ProfileStore
	tracker    *Tracker
	metrics    *metrics.Metrics
	positions  PositionTable
	platform   string
}

// New creates an SDK. A nil Presenter means HeadlessPresenter and a nil
// position table means the table for opts.Platform, Android when unknown.
func New(opts Options) *SDK {
	if opts.Presenter == nil {
		opts.Presenter = HeadlessPresenter{}
	}
	if opts.Positions == nil {
		table, err := PositionTableFor(opts.Platform)
		if err != nil {
			table = AndroidPositions
		}
		opts.Positions = table
	}
	return &SDK{
		settings: Settings{
			LogLevel:       LogLevelWarn,
			SSLEnabled:     true,
			LocationAccess: true,
			AdvertisingID:  true,
		},
		log:        logger.SDK().Level(LogLevelWarn.ZerologLevel()),
		auctioneer: opts.Auctioneer,
		presenter:  opts.Presenter,
		profiles:   opts.Profiles,
		tracker:    opts.Tracker,
		metrics:    opts.Metrics,
		positions:  opts.Positions,
		platform:   opts.Platform,
	}
}

// GenderFor maps a gender wire value. Out of range values fall back to male
// on Android and to other on iOS, as the platform SDKs do.
func (s *SDK) GenderFor(wire int) Gender {
	if wire >= int(GenderMale) && wire <= int(GenderOther) {
		return Gender(wire)
	}
	if s.platform == PlatformIOS {
		return GenderOther
	}
	return GenderMale
}

// Version returns the SDK version
func (s *SDK) Version() string {
	return Version
}

// Settings returns a copy of the current settings
func (s *SDK) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Logger returns the SDK logger at the configured level
func (s *SDK) Logger() zerolog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log
}

// Position maps a wire ad position through the configured platform table
func (s *SDK) Position(wire int) adcom1.PlacementPosition {
	return s.positions(wire)
}

// SetLogLevel sets the SDK log level
func (s *SDK) SetLogLevel(level LogLevel) error {
	if !level.Valid() {
		return fmt.Errorf("unknown log level %d", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.LogLevel = level
	s.log = logger.SDK().Level(level.ZerologLevel())
	return nil
}

// AllowLocationAccess toggles use of the device location
func (s *SDK) AllowLocationAccess(allow bool) {
	s.mu.Lock()
	s.settings.LocationAccess = allow
	s.mu.Unlock()
}

// SetUseInternalBrowser toggles opening clicks in the in-app browser
func (s *SDK) SetUseInternalBrowser(use bool) {
	s.mu.Lock()
	s.settings.UseInternalBrowser = use
	s.mu.Unlock()
}

// SetLocation sets the location used in auctions
func (s *SDK) SetLocation(loc Location) {
	s.mu.Lock()
	s.settings.Location = &loc
	s.mu.Unlock()
}

// SetCoppa marks traffic as directed to children
func (s *SDK) SetCoppa(enable bool) {
	s.mu.Lock()
	s.settings.Coppa = enable
	s.mu.Unlock()
}

// SetSSLEnabled requires secure creatives
func (s *SDK) SetSSLEnabled(enable bool) {
	s.mu.Lock()
	s.settings.SSLEnabled = enable
	s.mu.Unlock()
}

// AllowAdvertisingID toggles sending the advertising id
func (s *SDK) AllowAdvertisingID(allow bool) {
	s.mu.Lock()
	s.settings.AdvertisingID = allow
	s.mu.Unlock()
}

// SetApplicationInfo replaces the application info
func (s *SDK) SetApplicationInfo(info ApplicationInfo) {
	s.mu.Lock()
	s.settings.ApplicationInfo = &info
	s.mu.Unlock()
}

// SetUserInfo replaces the user info
func (s *SDK) SetUserInfo(info UserInfo) {
	s.mu.Lock()
	s.settings.UserInfo = &info
	s.mu.Unlock()
}
