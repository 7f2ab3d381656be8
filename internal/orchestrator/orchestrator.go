package orchestrator

import (
	"context"
	"math"
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/crawler"
	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/pageengine"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

/*
Responsibilities
- Drive a single seed through the non-crawl path: one page, escalating
  across up to MaxIterations attempts when the site comes back with a 403
- Decide, per iteration, how long to wait and how long to allow the
  iteration to run, and whether this attempt should go through the browser
  backend instead of the plain HTTP one
- Fuse map+scrape (scrape_page) or keep them as two calls with the map
  result logged in between (map_page, then scrape_assets), matching
  whichever the caller's MapFirst setting asks for
- Run the caller's post-run completion hook once every seed has been
  attempted

Non-goals
- Breadth-first link discovery (internal/crawler) -- this package handles
  exactly one page per seed, by design; a caller that also wants to crawl
  dispatches to internal/crawler directly instead of through RunSeed
- robots.txt fetching/caching (internal/robots)
*/

const (
	// iterationDelayFactor and iterationTimeoutFactor escalate the
	// per-iteration delay and timeout the same way pkg/timeutil's backoff
	// curve escalates retry delay: base * factor^iteration.
	iterationDelayFactor   = 1.2
	iterationTimeoutFactor = 1.5

	defaultIterationTimeout = 30 * time.Second
	maxIterationTimeout     = 120 * time.Second
)

// FetcherFactory builds a fetcher configured for one iteration's timeout and
// backend mode. RunSeed closes whatever it returns before the next
// iteration starts.
type FetcherFactory func(timeout time.Duration, useBrowser bool) fetcher.Fetcher

// SeedParams configures a single RunSeed call.
type SeedParams struct {
	SeedURL string
	OutDir  string
	Delay   time.Duration

	MaxIterations int
	// ForceBrowser mirrors args.js: when set, every iteration uses the
	// browser backend regardless of prior 403s.
	ForceBrowser bool
	// MapFirst chooses between the two-call map_page+scrape_assets flow
	// (true) and the fused ScrapePage flow (false).
	MapFirst bool

	NewFetcher        FetcherFactory
	BuildMapParams    func(useBrowser bool, delay time.Duration) pageengine.MapParams
	BuildScrapeParams func(useBrowser bool, delay time.Duration) pageengine.ScrapeParams
	Progress          pageengine.ProgressFunc

	// OnIteration, when set, is called once at the start of every
	// iteration (including the first) so a caller can log/report it the
	// way it likes.
	OnIteration func(iteration, maxIterations int, timeout, delay time.Duration, useBrowser bool)
}

// RunSeed fetches one seed page, escalating delay/timeout/backend across up
// to MaxIterations attempts. It returns nil once one iteration succeeds, or
// the last iteration's error once every attempt is exhausted.
func RunSeed(ctx context.Context, engine *pageengine.PageEngine, metadataSink metadata.MetadataSink, collector schema.Collector, robot crawler.RobotPolicy, params SeedParams) failure.ClassifiedError {
	pageURL, parseErr := url.Parse(params.SeedURL)
	if parseErr != nil {
		return recordOrchestratorError(metadataSink, params.SeedURL, &OrchestratorError{Message: parseErr.Error(), Retryable: false, Cause: ErrCauseInvalidURL})
	}

	if decision, decideErr := robot.Decide(*pageURL); decideErr == nil && !decision.Allowed {
		return recordOrchestratorError(metadataSink, params.SeedURL, &OrchestratorError{Message: "robots.txt disallows this URL", Retryable: false, Cause: ErrCauseRobotsDisallowed})
	}

	maxIterations := params.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}

	host := storage.SanitizeHost(params.SeedURL)
	manifestPath := storage.ManifestPath(params.OutDir, host)
	manifest := storage.LoadManifest(manifestPath)

	var lastErr failure.ClassifiedError
	had403 := false

	for iteration := 0; iteration < maxIterations; iteration++ {
		delayI := scaleDuration(params.Delay, iterationDelayFactor, iteration)
		timeoutI := capDuration(scaleDuration(defaultIterationTimeout, iterationTimeoutFactor, iteration), maxIterationTimeout)
		useBrowser := params.ForceBrowser || (iteration > 0 && had403)

		if params.OnIteration != nil {
			params.OnIteration(iteration, maxIterations, timeoutI, delayI, useBrowser)
		}

		f := params.NewFetcher(timeoutI, useBrowser)
		iterErr := runIteration(ctx, engine, f, collector, &manifest, *pageURL, useBrowser, delayI, params)
		f.Close()

		if iterErr == nil {
			storage.SaveManifest(manifestPath, manifest)
			return nil
		}

		lastErr = iterErr
		if isForbidden(iterErr) && iteration < maxIterations-1 {
			had403 = true
			continue
		}
		storage.SaveManifest(manifestPath, manifest)
		return lastErr
	}

	return lastErr
}

// runIteration executes one attempt at the seed page, either as two calls
// (MapFirst) or fused into one (ScrapePage). Per-asset download failures
// never surface here -- ScrapeAssets/ScrapePage already fold those into
// their ScrapeStats instead of aborting the iteration.
func runIteration(
	ctx context.Context,
	engine *pageengine.PageEngine,
	f fetcher.Fetcher,
	collector schema.Collector,
	manifest *storage.Manifest,
	pageURL url.URL,
	useBrowser bool,
	delay time.Duration,
	params SeedParams,
) failure.ClassifiedError {
	mapParams := params.BuildMapParams(useBrowser, delay)
	mapParams.PageURL = pageURL
	mapParams.UseBrowser = useBrowser

	scrapeParams := params.BuildScrapeParams(useBrowser, delay)
	scrapeParams.UseBrowser = useBrowser
	scrapeParams.Delay = delay
	scrapeParams.Progress = params.Progress

	if params.MapFirst {
		mapResult, err := engine.MapPage(ctx, f, collector, mapParams)
		if err != nil {
			return err
		}
		engine.ScrapeAssets(ctx, f, manifest, mapResult, scrapeParams)
		return nil
	}

	_, err := engine.ScrapePage(ctx, f, collector, manifest, mapParams, scrapeParams)
	return err
}

// isForbidden reports whether err is the fetcher's own signal that a page
// came back 403 -- the one failure that escalates to the browser backend
// for the next iteration instead of aborting the seed outright.
func isForbidden(err failure.ClassifiedError) bool {
	fetchErr, ok := err.(*fetcher.FetchError)
	if !ok {
		return false
	}
	return fetchErr.Cause == fetcher.ErrCauseRequestPageForbidden || fetchErr.Cause == fetcher.ErrCauseRepeated403
}

func scaleDuration(base time.Duration, factor float64, exponent int) time.Duration {
	return time.Duration(float64(base) * math.Pow(factor, float64(exponent)))
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
