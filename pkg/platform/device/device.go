// Package device turns a raw User-Agent header into the short client label
// recorded on audit events.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Describe returns "Browser on OS", or "Browser on Platform" for mobile
// clients. An empty User-Agent yields "", so events from non-HTTP sources
// such as the intake consumer carry no device.
func Describe(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}

	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}

	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = "Unknown Browser"
	}

	if ua.Mobile() {
		if platform := strings.TrimSpace(ua.Platform()); platform != "" {
			return browser + " on " + platform
		}
	}

	os := strings.TrimSpace(ua.OS())
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}
