// Package assetcrawler extracts a single web page together with the assets it
// references: stylesheets, scripts, images, fonts, media, inline code,
// CSS-embedded references and, optionally, speculative API payloads.
package assetcrawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
	"github.com/google/uuid"
)

// ErrNotRunning is returned by Cancel when no extraction with that id is in
// progress in this process.
var ErrNotRunning = errors.New("extraction is not running")

const cancelledMessage = "extraction cancelled"

// Options describes one extraction request.
type Options struct {
	URL               string
	IncludePayloads   bool
	IncludeSourcePage bool
}

// Crawler drives extractions from the root page fetch to completion.
type Crawler struct {
	store   extractiondb.Store
	fetcher *Fetcher
	scanner *Scanner
	cfg     Config
	log     logger.Logger

	mu      sync.Mutex
	running map[string]*runHandle
}

type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithHTTPClient sets the client used for every fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.fetcher = NewFetcher(client, c.cfg)
	}
}

// WithLiteralScanner replaces the script literal scanner.
func WithLiteralScanner(ls LiteralScanner) Option {
	return func(c *Crawler) {
		c.scanner = NewScanner(ls)
	}
}

// New creates a new Crawler.
func New(store extractiondb.Store, log logger.Logger, cfg Config, opts ...Option) *Crawler {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	c := &Crawler{
		store:   store,
		fetcher: NewFetcher(nil, cfg),
		scanner: NewScanner(RegexpLiteralScanner{}),
		cfg:     cfg,
		log:     log,
		running: make(map[string]*runHandle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartExtraction records a new pending extraction and processes it in the
// background. It returns as soon as the record exists.
func (c *Crawler) StartExtraction(ctx context.Context, opts Options) (*extractiondb.ExtractionResult, error) {
	rootURL, err := NormalizeRootURL(opts.URL)
	if err != nil {
		return nil, err
	}
	opts.URL = rootURL

	r, err := c.store.Create(ctx, rootURL)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &runHandle{cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.running[r.ID] = h
	c.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			c.mu.Lock()
			delete(c.running, r.ID)
			c.mu.Unlock()
			close(h.done)
		}()
		_ = c.Run(runCtx, r.ID, opts)
	}()
	return r, nil
}

// Cancel stops a running extraction at its next batch boundary.
func (c *Crawler) Cancel(id string) error {
	c.mu.Lock()
	h, ok := c.running[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("Unable to cancel extraction %s: %w", id, ErrNotRunning)
	}
	h.cancel()
	return nil
}

// Wait blocks until the background run of id has finished or ctx is done.
// It returns immediately when nothing is running under that id.
func (c *Crawler) Wait(ctx context.Context, id string) error {
	c.mu.Lock()
	h, ok := c.running[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes an existing extraction synchronously. Any error that ends
// the extraction is also recorded on it as status failed.
func (c *Crawler) Run(ctx context.Context, id string, opts Options) (err error) {
	log := c.log.With(logger.String("extraction_id", id), logger.String("url", opts.URL))
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction panicked: %v", p)
		}
		if err != nil {
			c.handleError(ctx, id, err, log)
		}
	}()
	return c.run(ctx, id, opts, log)
}

func (c *Crawler) run(ctx context.Context, id string, opts Options, log logger.Logger) error {
	if _, err := c.store.Update(ctx, id, extractiondb.Update{Status: extractiondb.StatusPtr(extractiondb.StatusProcessing)}); err != nil {
		return err
	}
	log.Info("Starting extraction")

	page, pageURL, err := c.fetcher.FetchRoot(ctx, opts.URL)
	if err != nil {
		return fmt.Errorf("Unable to fetch %s: %w", opts.URL, err)
	}

	scan, err := c.scanner.Scan(page, pageURL)
	if err != nil {
		return err
	}
	paths := newPathSet()
	for _, f := range scan.Inline {
		if err := c.storeFile(ctx, id, paths, f); err != nil {
			return err
		}
	}
	if opts.IncludeSourcePage {
		if err := c.storeFile(ctx, id, paths, sourcePage(page, opts.URL)); err != nil {
			return err
		}
	}

	q := newAssetQueue(opts.URL, pageURL.String())
	for _, u := range scan.Assets {
		q.push(u, 0)
	}
	log.Info("Scanned root page", logger.Int("assets", len(scan.Assets)), logger.Int("inline", len(scan.Inline)))
	if err := c.drain(ctx, id, q, paths, log); err != nil {
		return err
	}

	if opts.IncludePayloads {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.probePayloads(context.WithoutCancel(ctx), id, pageURL, scan.Scripts, paths, log)
	}

	r, err := c.store.Update(ctx, id, extractiondb.Update{Status: extractiondb.StatusPtr(extractiondb.StatusCompleted)})
	if err != nil {
		return err
	}
	log.Info("Completed extraction", logger.Int("files", r.TotalFiles), logger.Int64("bytes", r.TotalSize))
	return nil
}

// storeFile appends f to the extraction under a path no other file of it uses.
func (c *Crawler) storeFile(ctx context.Context, id string, paths *pathSet, f *extractiondb.ExtractedFile) error {
	paths.claim(f)
	return c.store.AppendFile(ctx, id, f)
}

// handleError logs err and marks the extraction failed.
func (c *Crawler) handleError(ctx context.Context, id string, err error, log logger.Logger) {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = cancelledMessage
	}
	log.Error("Extraction failed", logger.Error(err))
	_, uerr := c.store.Update(context.WithoutCancel(ctx), id, extractiondb.Update{
		Status: extractiondb.StatusPtr(extractiondb.StatusFailed),
		Error:  extractiondb.StringPtr(msg),
	})
	if uerr != nil {
		log.Error("Unable to mark extraction failed", logger.Error(uerr))
	}
}

func sourcePage(page, pageURL string) *extractiondb.ExtractedFile {
	return &extractiondb.ExtractedFile{
		ID:        uuid.NewString(),
		Name:      "index.html",
		Path:      "index.html",
		Type:      extractiondb.TypeHTML,
		Size:      int64(len(page)),
		Content:   page,
		MimeType:  "text/html",
		SourceURL: pageURL,
	}
}
