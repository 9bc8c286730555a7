package assetcrawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when an extraction is requested for a URL that
// cannot be fetched.
var ErrInvalidURL = errors.New("invalid url")

// Resolve resolves ref against base and returns the absolute URL with its
// fragment stripped. It reports false for empty or unparseable references and
// for anything that does not resolve to an http or https URL (data:,
// javascript:, mailto:, blob: ...).
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if !isNetworkScheme(u.Scheme) || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func isNetworkScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// NormalizeRootURL cleans a requested root URL: surrounding whitespace and
// the fragment are dropped and a missing scheme defaults to http.
func NormalizeRootURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url: %w", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("Unable to parse url %s: %w", raw, ErrInvalidURL)
	}
	if !isNetworkScheme(u.Scheme) || u.Host == "" {
		return "", fmt.Errorf("url %s is not an http(s) url: %w", raw, ErrInvalidURL)
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// sameOrigin reports whether a and b share scheme and host.
func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
