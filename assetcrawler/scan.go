package assetcrawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// linkRels lists the rel values whose href is fetched as an asset.
var linkRels = map[string]bool{
	"icon":                         true,
	"apple-touch-icon":             true,
	"apple-touch-icon-precomposed": true,
	"manifest":                     true,
	"preload":                      true,
	"prefetch":                     true,
	"modulepreload":                true,
}

// mediaSelectors maps element selectors to the attribute holding the asset.
var mediaSelectors = []struct {
	selector string
	attr     string
}{
	{"source[src]", "src"},
	{"video[src]", "src"},
	{"video[poster]", "poster"},
	{"audio[src]", "src"},
	{"track[src]", "src"},
	{"embed[src]", "src"},
	{"object[data]", "data"},
	{"iframe[src]", "src"},
}

// scriptTypes are the <script type> values whose body is JavaScript. An
// absent or empty type also means JavaScript.
var scriptTypes = map[string]bool{
	"text/javascript":          true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"text/ecmascript":          true,
	"application/ecmascript":   true,
	"module":                   true,
}

// PageScan is what a single pass over an HTML document yields.
type PageScan struct {
	// Assets is the URL-deduplicated asset set in discovery order.
	Assets []string
	// Inline holds the synthesized inline script and style files.
	Inline []*extractiondb.ExtractedFile
	// Scripts holds the inline script bodies, for payload probing.
	Scripts []string
}

// Scanner extracts asset references from HTML documents.
type Scanner struct {
	literals LiteralScanner
}

// NewScanner creates a Scanner. A nil literals scanner disables script
// literal scanning.
func NewScanner(literals LiteralScanner) *Scanner {
	if literals == nil {
		literals = NopLiteralScanner{}
	}
	return &Scanner{literals: literals}
}

// Scan parses htmlText once and collects every asset it references, resolved
// against pageURL (or the document's <base href>).
func (s *Scanner) Scan(htmlText string, pageURL *url.URL) (*PageScan, error) {
	root, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("Unable to parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, ok := Resolve(pageURL, href); ok {
			base, _ = url.Parse(b)
		}
	}

	var set assetSet
	scan := &PageScan{}
	add := func(ref string) { set.addRef(base, ref) }

	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		rels := strings.Fields(strings.ToLower(sel.AttrOr("rel", "")))
		for _, rel := range rels {
			if rel == "stylesheet" || linkRels[rel] {
				add(href)
				return
			}
		}
		if hasFontExtension(href) {
			add(href)
		}
	})

	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		add(sel.AttrOr("src", ""))
	})

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		add(sel.AttrOr("src", ""))
	})
	doc.Find("img[srcset], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		for _, candidate := range srcsetURLs(sel.AttrOr("srcset", "")) {
			add(candidate)
		}
	})

	for _, m := range mediaSelectors {
		doc.Find(m.selector).Each(func(_ int, sel *goquery.Selection) {
			add(sel.AttrOr(m.attr, ""))
		})
	}

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		for _, ref := range cssURLRefs(sel.AttrOr("style", "")) {
			add(ref)
		}
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, ok := sel.Attr("src"); ok || !isJavaScript(sel) {
			return
		}
		body := sel.Text()
		if strings.TrimSpace(body) == "" {
			return
		}
		scan.Scripts = append(scan.Scripts, body)
		scan.Inline = append(scan.Inline, inlineFile("inline-script", "js", body, Classify("x.js", "")))
		for _, target := range s.literals.ImportTargets(body) {
			add(target)
		}
	})

	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		body := sel.Text()
		if strings.TrimSpace(body) == "" {
			return
		}
		scan.Inline = append(scan.Inline, inlineFile("inline-style", "css", body, Classify("x.css", "")))
		for _, u := range ScanCSS(body, base) {
			set.add(u)
		}
	})

	scan.Assets = set.urls
	return scan, nil
}

func isJavaScript(sel *goquery.Selection) bool {
	typ := strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "")))
	if mt, _, ok := strings.Cut(typ, ";"); ok {
		typ = strings.TrimSpace(mt)
	}
	return typ == "" || scriptTypes[typ]
}

// srcsetURLs returns the URL part of every srcset candidate.
func srcsetURLs(srcset string) []string {
	var urls []string
	for _, entry := range strings.Split(srcset, ",") {
		if parts := strings.Fields(entry); len(parts) > 0 {
			urls = append(urls, parts[0])
		}
	}
	return urls
}

func inlineFile(prefix, ext, body string, c Classification) *extractiondb.ExtractedFile {
	name := fmt.Sprintf("%s-%s.%s", prefix, randomSuffix(), ext)
	return &extractiondb.ExtractedFile{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     c.Folder + "/" + name,
		Type:     c.Type,
		Size:     int64(len(body)),
		Content:  body,
		MimeType: c.MimeType,
	}
}

// randomSuffix returns 8 random hex characters.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
