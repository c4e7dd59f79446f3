package useragent

import "strings"

// Parse extracts the operating system and browser family from a User-Agent
// header. Unrecognized values come back as "Unknown".
func Parse(ua string) (os, browser string) {
	s := strings.ToLower(ua)

	// Order matters: iOS agents also say "mac os x", Android agents say "linux".
	switch {
	case strings.Contains(s, "iphone") || strings.Contains(s, "ipad"):
		os = "iOS"
	case strings.Contains(s, "android"):
		os = "Android"
	case strings.Contains(s, "windows"):
		os = "Windows"
	case strings.Contains(s, "mac os"):
		os = "macOS"
	case strings.Contains(s, "linux"):
		os = "Linux"
	default:
		os = "Unknown"
	}

	// Edge and Opera agents also contain "chrome"; Chrome agents contain "safari".
	switch {
	case strings.Contains(s, "edg/") || strings.Contains(s, "edge"):
		browser = "Edge"
	case strings.Contains(s, "opr/") || strings.Contains(s, "opera"):
		browser = "Opera"
	case strings.Contains(s, "firefox"):
		browser = "Firefox"
	case strings.Contains(s, "chrome") || strings.Contains(s, "crios"):
		browser = "Chrome"
	case strings.Contains(s, "safari"):
		browser = "Safari"
	default:
		browser = "Unknown"
	}
	return os, browser
}

// Summary renders ua as "<browser> on <os>", or "" for an empty header.
func Summary(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	os, browser := Parse(ua)
	return browser + " on " + os
}
