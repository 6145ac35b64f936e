package bridge

import (
	"fmt"
	"net/url"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

func sdkCallError(method, details string) *channel.PlatformError {
	return channel.NewPlatformError(
		channel.CodePlatformException,
		fmt.Sprintf("Error while calling %s on OpenWrapSDK class.", method),
		details,
	)
}

// handleSDK answers OpenWrapSDK#<method>
func (p *Plugin) handleSDK(method string, call *channel.MethodCall) (any, error) {
	sdk := p.sdk
	switch method {
	case "setLogLevel":
		level, ok := call.IntValue()
		if !ok {
			return nil, sdkCallError(method, "Cannot set log level as the received log level is null.")
		}
		if !openwrap.LogLevel(level).Valid() {
			return nil, sdkCallError(method, fmt.Sprintf("Cannot set log level as %d is not a valid log level.", level))
		}
		if err := sdk.SetLogLevel(openwrap.LogLevel(level)); err != nil {
			return nil, sdkCallError(method, err.Error())
		}
		return nil, nil

	case "getVersion":
		return sdk.Version(), nil

	case "allowLocationAccess":
		return boolSetting(method, call, sdk.AllowLocationAccess)

	case "setUseInternalBrowser":
		return boolSetting(method, call, sdk.SetUseInternalBrowser)

	case "setCoppa":
		return boolSetting(method, call, sdk.SetCoppa)

	case "setSSLEnabled":
		return boolSetting(method, call, sdk.SetSSLEnabled)

	case "allowAdvertisingId":
		return boolSetting(method, call, sdk.AllowAdvertisingID)

	case "setLocation":
		source := openwrap.LocationSourceGPS
		if v, ok := call.Int("source"); ok && v >= 0 && v <= int(openwrap.LocationSourceUserProvided) {
			source = openwrap.LocationSource(v)
		}
		lat, okLat := call.Float("latitude")
		lon, okLon := call.Float("longitude")
		if !okLat || !okLon {
			return nil, sdkCallError(method, "Cannot set location as latitude or longitude is null.")
		}
		sdk.SetLocation(openwrap.Location{Source: source, Latitude: lat, Longitude: lon})
		return nil, nil

	case "setApplicationInfo":
		info, err := applicationInfoFrom(call)
		if err != nil {
			return nil, sdkCallError(method, err.Error())
		}
		sdk.SetApplicationInfo(info)
		return nil, nil

	case "setUserInfo":
		sdk.SetUserInfo(userInfoFrom(call, sdk.GenderFor))
		return nil, nil

	default:
		return nil, channel.ErrNotImplemented
	}
}

// boolSetting applies a primitive bool payload. A null payload is ignored.
func boolSetting(method string, call *channel.MethodCall, set func(bool)) (any, error) {
	if call.Arguments == nil {
		return nil, nil
	}
	v, ok := call.BoolValue()
	if !ok {
		return nil, sdkCallError(method, "Expected a boolean argument.")
	}
	set(v)
	return nil, nil
}

func applicationInfoFrom(call *channel.MethodCall) (openwrap.ApplicationInfo, error) {
	var info openwrap.ApplicationInfo
	info.Domain, _ = call.String("domain")
	if v, ok := call.String("storeURL"); ok {
		if _, err := url.ParseRequestURI(v); err != nil {
			return info, fmt.Errorf("Cannot set store URL as %q is not a valid URL.", v)
		}
		info.StoreURL = v
	}
	if v, ok := call.Bool("paid"); ok {
		info.Paid = &v
	}
	info.Categories, _ = call.String("categories")
	info.Keywords, _ = call.String("appKeywords")
	return info, nil
}

func userInfoFrom(call *channel.MethodCall, gender func(int) openwrap.Gender) openwrap.UserInfo {
	var info openwrap.UserInfo
	if v, ok := call.Int("birthYear"); ok {
		info.BirthYear = v
	}
	if v, ok := call.Int("gender"); ok {
		g := gender(v)
		info.Gender = &g
	}
	info.Country, _ = call.String("country")
	info.City, _ = call.String("city")
	info.Metro, _ = call.String("metro")
	info.Zip, _ = call.String("zip")
	info.Region, _ = call.String("region")
	info.Keywords, _ = call.String("userKeywords")
	return info
}
