package assetcrawler

import (
	"net/url"
	"regexp"
)

var (
	cssImportPattern = regexp.MustCompile(`@import\s+(?:url\(\s*['"]?([^'")]+)['"]?\s*\)|['"]([^'"]+)['"])`)
	cssURLPattern    = regexp.MustCompile(`url\(\s*['"]?([^'")]+?)['"]?\s*\)`)
)

// ScanCSS returns the absolute URLs referenced by a stylesheet through
// @import and url(...). References are resolved against the stylesheet's
// own URL; inline data and other non-network references are dropped.
func ScanCSS(css string, base *url.URL) []string {
	var set assetSet
	for _, m := range cssImportPattern.FindAllStringSubmatch(css, -1) {
		ref := m[1]
		if ref == "" {
			ref = m[2]
		}
		set.addRef(base, ref)
	}
	for _, ref := range cssURLRefs(css) {
		set.addRef(base, ref)
	}
	return set.urls
}

// cssURLRefs returns the raw url(...) arguments found in css.
func cssURLRefs(css string) []string {
	var refs []string
	for _, m := range cssURLPattern.FindAllStringSubmatch(css, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// assetSet is an insertion-ordered set of absolute URLs.
type assetSet struct {
	urls []string
	seen map[string]bool
}

func (s *assetSet) add(u string) bool {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if u == "" || s.seen[u] {
		return false
	}
	s.seen[u] = true
	s.urls = append(s.urls, u)
	return true
}

func (s *assetSet) addRef(base *url.URL, ref string) {
	if u, ok := Resolve(base, ref); ok {
		s.add(u)
	}
}
