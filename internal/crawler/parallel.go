package crawler

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/pageengine"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
)

// parallelQueueCapacity bounds the in-flight work channel. A real crawl's
// frontier is comfortably under this for any site this tool is meant to
// run against; sizing it dynamically would need an unbounded queue
// goroutine for little practical benefit here.
const parallelQueueCapacity = 100000

// ParallelCrawl walks the site over a worker pool, each worker holding its
// own spawn()'d fetcher so concurrent page visits never contend on one
// fetcher's mutex. A shared lock still serializes each host's manifest
// load-scrape-save cycle, since two workers could otherwise race to visit
// different pages of the same host at once.
func ParallelCrawl(
	ctx context.Context,
	engine *pageengine.PageEngine,
	f fetcher.Fetcher,
	collector schema.Collector,
	robot RobotPolicy,
	params CrawlParams,
) (Set[string], error) {
	return withCrossDomainFallback(params, func(sameDomainOnly bool) (Set[string], error) {
		return runParallelCrawl(ctx, engine, f, collector, robot, params, sameDomainOnly)
	})
}

func runParallelCrawl(
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

	workers := params.Workers
	if workers < 1 {
		workers = 1
	}

	workQueue := make(chan crawlItem, parallelQueueCapacity)
	var seenMu sync.Mutex
	seen := NewSet[string]()
	visited := NewSet[string]()
	var manifestMu sync.Mutex
	var closeOnce sync.Once
	var pending int64 = 1

	seen.Add(params.StartURL)
	workQueue <- crawlItem{url: params.StartURL, depth: 0}

	finishItem := func(newlyEnqueued int) {
		if atomic.AddInt64(&pending, int64(newlyEnqueued)-1) == 0 {
			closeOnce.Do(func() { close(workQueue) })
		}
	}

	process := func(workerFetcher fetcher.Fetcher, item crawlItem) []string {
		pageURL, parseErr := url.Parse(item.url)
		if parseErr != nil {
			return nil
		}
		if decision, decideErr := robot.Decide(*pageURL); decideErr == nil && !decision.Allowed {
			return nil
		}
		seenMu.Lock()
		visited.Add(item.url)
		seenMu.Unlock()

		host := storage.SanitizeHost(item.url)
		manifestPath := storage.ManifestPath(params.OutDir, host)

		manifestMu.Lock()
		defer manifestMu.Unlock()

		manifest := storage.LoadManifest(manifestPath)
		result, scrapeErr := engine.ScrapePage(
			ctx, workerFetcher, collector, &manifest,
			params.BuildMapParams(*pageURL, item.depth),
			params.BuildScrapeParams(host),
		)
		storage.SaveManifest(manifestPath, manifest)
		if scrapeErr != nil {
			return nil
		}
		return result.PageLinks
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerFetcher := f.Spawn()
			defer workerFetcher.Close()

			for item := range workQueue {
				if item.depth > params.MaxDepth {
					finishItem(0)
					continue
				}
				links := process(workerFetcher, item)
				if params.Progress != nil {
					params.Progress(item.url, item.depth, len(workQueue))
				}

				enqueued := 0
				for _, link := range links {
					if sameDomainOnly && !sameHost(link, startURL.String()) {
						continue
					}
					seenMu.Lock()
					already := seen.Contains(link)
					if !already {
						seen.Add(link)
					}
					seenMu.Unlock()
					if already {
						continue
					}
					workQueue <- crawlItem{url: link, depth: item.depth + 1}
					enqueued++
				}
				finishItem(enqueued)
			}
		}()
	}
	wg.Wait()

	return visited, nil
}
