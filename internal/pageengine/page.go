package pageengine

import (
	"context"
	"sync"

	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

// PageResult is ScrapePage's combined output: the map phase's crawl-frontier
// links plus the scrape phase's per-asset tally.
type PageResult struct {
	PageLinks []string
	Stats     ScrapeStats
}

// ScrapePage fuses map_page and scrape_assets for a crawl-mode caller that
// wants link discovery and asset downloads off one page visit. Unlike a
// standalone ScrapeAssets call, its asset workers each get their own
// spawn()'d fetcher clone so concurrent downloads for this page don't
// serialize against each other's mutex, and every clone is closed before
// returning.
func (e *PageEngine) ScrapePage(
	ctx context.Context,
	f fetcher.Fetcher,
	collector schema.Collector,
	manifest *storage.Manifest,
	mapParams MapParams,
	scrapeParams ScrapeParams,
) (PageResult, failure.ClassifiedError) {
	mapResult, err := e.MapPage(ctx, f, collector, mapParams)
	if err != nil {
		return PageResult{}, err
	}

	var mu sync.Mutex
	var clones []fetcher.Fetcher
	scrapeParams.WorkerFetcher = func(workerIndex int) fetcher.Fetcher {
		clone := f.Spawn()
		mu.Lock()
		clones = append(clones, clone)
		mu.Unlock()
		return clone
	}

	stats := e.ScrapeAssets(ctx, f, manifest, mapResult, scrapeParams)

	for _, clone := range clones {
		clone.Close()
	}

	return PageResult{PageLinks: mapResult.PageLinks, Stats: stats}, nil
}
