package assetcrawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// commonEndpoints are probed on every origin in addition to whatever the
// page's scripts mention.
var commonEndpoints = []string{
	"/api",
	"/api/health",
	"/api/status",
	"/api/v1",
	"/health",
	"/status",
	"/graphql",
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// capturedPayload is the document stored for each captured endpoint.
type capturedPayload struct {
	URL         string          `json:"url"`
	Method      string          `json:"method"`
	Status      int             `json:"status"`
	ContentType string          `json:"contentType"`
	CapturedAt  time.Time       `json:"capturedAt"`
	Data        json.RawMessage `json:"data"`
}

// payloadCandidates returns the same-origin endpoints worth probing, script
// literals first, capped at limit.
func payloadCandidates(root *url.URL, scripts []string, literals LiteralScanner, limit int) []string {
	var set assetSet
	consider := func(ref string) {
		if len(set.urls) >= limit {
			return
		}
		abs, ok := Resolve(root, ref)
		if !ok {
			return
		}
		u, err := url.Parse(abs)
		if err != nil || !sameOrigin(root, u) {
			return
		}
		set.add(abs)
	}
	for _, script := range scripts {
		for _, p := range literals.EndpointPaths(script) {
			consider(p)
		}
	}
	for _, p := range commonEndpoints {
		consider(p)
	}
	return set.urls
}

// probePayloads speculatively GETs API-looking endpoints, at most BatchSize
// at a time, and keeps the JSON answers. Probe failures are expected and
// ignored; only storage errors are reported.
func (c *Crawler) probePayloads(ctx context.Context, id string, root *url.URL, scripts []string, paths *pathSet, log logger.Logger) {
	candidates := payloadCandidates(root, scripts, c.scanner.literals, c.cfg.MaxPayloadProbes)
	log.Debug("Probing payload endpoints", logger.Int("candidates", len(candidates)))

	var g errgroup.Group
	g.SetLimit(c.cfg.BatchSize)
	for _, endpoint := range candidates {
		endpoint := endpoint
		g.Go(func() error {
			file, ok := c.capturePayload(ctx, endpoint)
			if !ok {
				return nil
			}
			if err := c.storeFile(ctx, id, paths, file); err != nil {
				return fmt.Errorf("Unable to store payload %s: %w", endpoint, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Payload capture incomplete", logger.Error(err))
	}
}

func (c *Crawler) capturePayload(ctx context.Context, endpoint string) (*extractiondb.ExtractedFile, bool) {
	resp, err := c.fetcher.getRequest(ctx, endpoint, c.cfg.AssetTimeout, c.cfg.MaxResponseBytes)
	if err != nil {
		return nil, false
	}
	if !strings.Contains(strings.ToLower(resp.contentType), "json") || !json.Valid(resp.body) {
		return nil, false
	}
	doc, err := json.MarshalIndent(capturedPayload{
		URL:         endpoint,
		Method:      http.MethodGet,
		Status:      resp.status,
		ContentType: resp.contentType,
		CapturedAt:  time.Now().UTC(),
		Data:        resp.body,
	}, "", "  ")
	if err != nil {
		return nil, false
	}

	u, _ := url.Parse(endpoint)
	name := payloadName(u)
	content := string(doc)
	return &extractiondb.ExtractedFile{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      folderPayloads + "/" + name,
		Type:      extractiondb.TypePayload,
		Size:      int64(len(content)),
		Content:   content,
		MimeType:  "application/json",
		SourceURL: endpoint,
	}, true
}

// payloadName turns an endpoint path into a flat file name, e.g.
// /api/v1/users -> api_v1_users.json.
func payloadName(u *url.URL) string {
	p := strings.Trim(u.Path, "/")
	p = strings.TrimSuffix(p, ".json")
	p = unsafeNameChars.ReplaceAllString(strings.ReplaceAll(p, "/", "_"), "-")
	if p == "" {
		p = "root"
	}
	return p + ".json"
}
