package utils

import (
	"net/url"
	"strings"
)

// URIEqual compares two URIs per RFC 3986 normalization rules:
// scheme and host are case-insensitive, the port must match exactly,
// and a single trailing slash on the path is insignificant.
func URIEqual(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}

	if !strings.EqualFold(ua.Scheme, ub.Scheme) {
		return false
	}
	if !strings.EqualFold(ua.Hostname(), ub.Hostname()) {
		return false
	}
	if ua.Port() != ub.Port() {
		return false
	}
	return trimTrailingSlash(ua.Path) == trimTrailingSlash(ub.Path)
}

func trimTrailingSlash(path string) string {
	if path == "/" || path == "" {
		return ""
	}
	return strings.TrimSuffix(path, "/")
}
