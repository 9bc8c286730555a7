package assetcrawler

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
)

// maxCSSDepth is the deepest level whose stylesheets are scanned for more
// references. Depth 0 is everything referenced by the page itself.
const maxCSSDepth = 0

type queuedAsset struct {
	url   string
	depth int
}

// assetQueue is the still-open asset set of one extraction.
type assetQueue struct {
	pending []queuedAsset
	seen    map[string]bool
}

func newAssetQueue(exclude ...string) *assetQueue {
	q := &assetQueue{seen: make(map[string]bool)}
	for _, u := range exclude {
		q.seen[u] = true
	}
	return q
}

func (q *assetQueue) push(u string, depth int) bool {
	if q.seen[u] {
		return false
	}
	q.seen[u] = true
	q.pending = append(q.pending, queuedAsset{url: u, depth: depth})
	return true
}

func (q *assetQueue) next(n int) []queuedAsset {
	if n > len(q.pending) {
		n = len(q.pending)
	}
	batch := q.pending[:n:n]
	q.pending = q.pending[n:]
	return batch
}

// drain fetches the queue in fixed-size batches until it is empty. Within a
// batch every member runs to completion regardless of its siblings; the next
// batch starts only after the whole batch has settled. Cancellation of ctx is
// observed between batches only.
func (c *Crawler) drain(ctx context.Context, id string, q *assetQueue, paths *pathSet, log logger.Logger) error {
	fetchCtx := context.WithoutCancel(ctx)
	for batchNum := 0; len(q.pending) > 0; batchNum++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := q.next(c.cfg.BatchSize)
		log.Debug("Fetching asset batch", logger.Int("batch", batchNum), logger.Int("size", len(batch)))

		discovered := make([][]string, len(batch))
		var wg sync.WaitGroup
		for i, a := range batch {
			wg.Add(1)
			go func(i int, a queuedAsset) {
				defer wg.Done()
				discovered[i] = c.fetchOne(fetchCtx, id, a, paths, log)
			}(i, a)
		}
		wg.Wait()

		for i, urls := range discovered {
			for _, u := range urls {
				q.push(u, batch[i].depth+1)
			}
		}
	}
	return nil
}

// fetchOne fetches and stores a single asset. Failures are logged and
// swallowed. It returns the references found in the asset when it is a
// stylesheet that may still be followed.
func (c *Crawler) fetchOne(ctx context.Context, id string, a queuedAsset, paths *pathSet, log logger.Logger) []string {
	file, err := c.fetcher.FetchAsset(ctx, a.url)
	if errors.Is(err, ErrSkipped) {
		log.Debug("Skipping asset", logger.String("asset", a.url))
		return nil
	}
	if err != nil {
		log.Warn("Unable to fetch asset", logger.String("asset", a.url), logger.Error(err))
		return nil
	}
	if err := c.storeFile(ctx, id, paths, file); err != nil {
		log.Error("Unable to store asset", logger.String("asset", a.url), logger.Error(err))
		return nil
	}

	if file.Type != extractiondb.TypeCSS || file.Binary || a.depth > maxCSSDepth {
		return nil
	}
	base, err := url.Parse(a.url)
	if err != nil {
		return nil
	}
	return ScanCSS(file.Content, base)
}
