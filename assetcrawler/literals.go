package assetcrawler

import (
	"regexp"
	"strings"
)

// LiteralScanner finds candidate URLs inside script text. It is heuristic by
// nature; swap it or use NopLiteralScanner to disable it.
type LiteralScanner interface {
	// ImportTargets returns module/chunk paths referenced by the script.
	ImportTargets(script string) []string
	// EndpointPaths returns string literals that look like API calls.
	EndpointPaths(script string) []string
}

// RegexpLiteralScanner is the default LiteralScanner.
type RegexpLiteralScanner struct{}

// NopLiteralScanner never finds anything.
type NopLiteralScanner struct{}

func (NopLiteralScanner) ImportTargets(string) []string { return nil }
func (NopLiteralScanner) EndpointPaths(string) []string { return nil }

var (
	importPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bimport\(\s*["'\x60]([^"'\x60]+)["'\x60]\s*\)`),
		regexp.MustCompile(`\bimport\s[^;"'\x60]*?\bfrom\s*["']([^"']+\.m?js)["']`),
		regexp.MustCompile(`\brequire\(\s*["']([^"']+\.m?js)["']\s*\)`),
		regexp.MustCompile(`["']([^"'\s]+\.chunk\.js)["']`),
	}
	endpointPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\bfetch|\baxios(?:\.(?:get|post|put|patch|delete))?|\$\.(?:get|getJSON|post|ajax))\(\s*["'\x60]([^"'\x60\s]+)["'\x60]`),
		regexp.MustCompile(`["'\x60](/(?:api|graphql|rest|v\d+)(?:/[^"'\x60\s]*)?)["'\x60]`),
	}
)

func (RegexpLiteralScanner) ImportTargets(script string) []string {
	return matchAll(script, importPatterns)
}

func (RegexpLiteralScanner) EndpointPaths(script string) []string {
	var paths []string
	for _, m := range matchAll(script, endpointPatterns) {
		if strings.HasPrefix(m, "/") || strings.HasPrefix(m, "http://") || strings.HasPrefix(m, "https://") {
			paths = append(paths, m)
		}
	}
	return paths
}

// matchAll returns the first capture group of every match, deduplicated and
// in order of first appearance. Template-literal interpolations are dropped.
func matchAll(text string, patterns []*regexp.Regexp) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			c := strings.TrimSpace(m[1])
			if c == "" || strings.Contains(c, "${") || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
