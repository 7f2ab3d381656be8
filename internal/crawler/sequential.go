package crawler

import (
	"context"
	"net/url"

	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/pageengine"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
)

// SequentialCrawl walks the site breadth-first on a single goroutine,
// reusing one fetcher and reloading/saving each host's manifest around
// every page -- the same shape a parallel run uses per worker, just
// without the worker pool.
func SequentialCrawl(
	ctx context.Context,
	engine *pageengine.PageEngine,
	f fetcher.Fetcher,
	collector schema.Collector,
	robot RobotPolicy,
	params CrawlParams,
) (Set[string], error) {
	return withCrossDomainFallback(params, func(sameDomainOnly bool) (Set[string], error) {
		return runSequentialCrawl(ctx, engine, f, collector, robot, params, sameDomainOnly)
	})
}

func runSequentialCrawl(
	ctx context.Context,
	engine *pageengine.PageEngine,
	f fetcher.Fetcher,
	collector schema.Collector,
	robot RobotPolicy,
	params CrawlParams,
	sameDomainOnly bool,
) (Set[string], error) {
	startURL, err := url.Parse(params.StartURL)
	if err != nil {
		return nil, err
	}

	queue := NewFIFOQueue[crawlItem]()
	queue.Enqueue(crawlItem{url: params.StartURL, depth: 0})
	visited := NewSet[string]()

	for {
		item, ok := queue.Dequeue()
		if !ok {
			break
		}
		if visited.Contains(item.url) || item.depth > params.MaxDepth {
			continue
		}
		if sameDomainOnly && !sameHost(item.url, startURL.String()) {
			continue
		}

		pageURL, parseErr := url.Parse(item.url)
		if parseErr != nil {
			continue
		}
		if decision, decideErr := robot.Decide(*pageURL); decideErr == nil && !decision.Allowed {
			continue
		}
		visited.Add(item.url)

		host := storage.SanitizeHost(item.url)
		manifestPath := storage.ManifestPath(params.OutDir, host)
		manifest := storage.LoadManifest(manifestPath)

		result, scrapeErr := engine.ScrapePage(
			ctx, f, collector, &manifest,
			params.BuildMapParams(*pageURL, item.depth),
			params.BuildScrapeParams(host),
		)
		storage.SaveManifest(manifestPath, manifest)

		if params.Progress != nil {
			params.Progress(item.url, item.depth, queue.Size())
		}
		if scrapeErr != nil {
			continue
		}

		for _, link := range result.PageLinks {
			if visited.Contains(link) {
				continue
			}
			if sameDomainOnly && !sameHost(link, startURL.String()) {
				continue
			}
			queue.Enqueue(crawlItem{url: link, depth: item.depth + 1})
		}
	}

	return visited, nil
}
