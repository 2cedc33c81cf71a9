package verification

import (
	"strings"

	"github.com/mileusna/useragent"
)

// DeviceSummary renders a user agent as "Browser Version on OS (Type)".
func DeviceSummary(userAgent string) string {
	if userAgent == "" {
		return "Unknown device"
	}

	ua := useragent.Parse(userAgent)

	browser := "Unknown Browser"
	if ua.Name != "" {
		browser = strings.TrimSpace(ua.Name + " " + ua.Version)
	}

	os := "Unknown OS"
	if ua.OS != "" {
		os = strings.TrimSpace(ua.OS + " " + ua.OSVersion)
	}

	deviceType := "Desktop"
	switch {
	case ua.Bot:
		deviceType = "Bot"
	case ua.Mobile:
		deviceType = "Mobile"
	case ua.Tablet:
		deviceType = "Tablet"
	}

	return browser + " on " + os + " (" + deviceType + ")"
}
