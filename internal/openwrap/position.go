package openwrap

import (
	"fmt"

	"github.com/prebid/openrtb/v17/adcom1"
)

// PositionTable maps the channel's adPosition wire value to an OpenRTB placement position.
//
// The two platform SDKs order their ad position enums differently, so the
// table in use follows the platform the application layer was built for.
type PositionTable func(wire int) adcom1.PlacementPosition

// androidOrder is the Android SDK enum order; wire values are ordinals into it
var androidOrder = []adcom1.PlacementPosition{
	adcom1.PlacementPosition(0), // unknown
	adcom1.PlacementPosition(1), // above the fold
	adcom1.PlacementPosition(3), // below the fold
	adcom1.PlacementPosition(4), // header
	adcom1.PlacementPosition(5), // footer
	adcom1.PlacementPosition(6), // sidebar
	adcom1.PlacementPosition(7), // full screen
}

// AndroidPositions looks the wire value up by ordinal. Out of range is unknown.
func AndroidPositions(wire int) adcom1.PlacementPosition {
	if wire < 0 || wire >= len(androidOrder) {
		return androidOrder[0]
	}
	return androidOrder[wire]
}

// IOSPositions skips the deprecated "locked" position: values from 2 shift by one.
func IOSPositions(wire int) adcom1.PlacementPosition {
	if wire < 2 {
		return adcom1.PlacementPosition(wire)
	}
	return adcom1.PlacementPosition(wire + 1)
}

// Platforms the application layer can be built for
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// PositionTableFor returns the table for "android" or "ios"
func PositionTableFor(platform string) (PositionTable, error) {
	switch platform {
	case "", PlatformAndroid:
		return AndroidPositions, nil
	case PlatformIOS:
		return IOSPositions, nil
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}
