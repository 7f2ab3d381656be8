package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/config"
	"github.com/rohmanhakim/docs-harvester/internal/crawler"
	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/keepawake"
	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/orchestrator"
	"github.com/rohmanhakim/docs-harvester/internal/pageengine"
	"github.com/rohmanhakim/docs-harvester/internal/robots"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/internal/summary"
	"github.com/rohmanhakim/docs-harvester/pkg/hashutil"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
	"github.com/rohmanhakim/docs-harvester/pkg/timeutil"
)

// allowAllRobots is the RobotPolicy used when NoRobots() is set: every
// decision is allowed, with no robots.txt ever fetched.
type allowAllRobots struct{}

func (allowAllRobots) Decide(u url.URL) (robots.Decision, error) {
	return robots.Decision{Url: u, Allowed: true, Reason: robots.AllowedByRobots}, nil
}

func retryParamFrom(cfg config.Config) retry.RetryParam {
	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	return retry.NewRetryParam(cfg.BaseDelay(), cfg.Jitter(), cfg.RandomSeed(), cfg.MaxAttempt(), backoff)
}

func buildFetcher(sink metadata.MetadataSink, cfg config.Config, timeout time.Duration, useBrowser bool) fetcher.Fetcher {
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{Timeout: timeout}, cfg.UserAgent())
	if useBrowser || cfg.BrowserMode() {
		f.SetBrowserMode(nil, cfg.HumanBypass())
	} else if cfg.ChallengeProxyURL() != "" {
		f.SetProxyMode(cfg.ChallengeProxyURL())
	}
	return &f
}

func buildRobotPolicy(sink metadata.MetadataSink, cfg config.Config) crawler.RobotPolicy {
	if cfg.NoRobots() {
		return allowAllRobots{}
	}
	robot := robots.NewCachedRobot(sink)
	robot.Init(cfg.UserAgent())
	return &robot
}

func buildCollector(sink metadata.MetadataSink, f fetcher.Fetcher, retryParam retry.RetryParam) schema.Collector {
	fetchManifest := func(manifestURL string) ([]byte, error) {
		parsed, err := url.Parse(manifestURL)
		if err != nil {
			return nil, err
		}
		body, fetchErr := f.FetchBytes(context.Background(), *parsed, 0, retryParam)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	}
	return schema.NewCollector(sink, fetchManifest)
}

func typeFilterAllows(cfg config.Config, kind string) bool {
	filter := cfg.TypeFilter()
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[kind]
	return ok
}

// RunCrawl executes cfg end to end: one pass (crawl or single-seed
// iteration) per seed URL, then the done-script completion hook.
func RunCrawl(cfg config.Config) error {
	sink := metadata.NewConsoleRecorder()
	hashAlgo := hashutil.HashAlgoSHA256
	localSink := storage.NewLocalSink(sink)
	engine := pageengine.NewPageEngine(sink, &localSink, hashAlgo)
	robotPolicy := buildRobotPolicy(sink, cfg)
	retryParam := retryParamFrom(cfg)

	if cfg.KeepAwake() {
		inhibitor := keepawake.Acquire("docs-harvester run")
		defer inhibitor.Release()
	}

	ctx := context.Background()
	allowPDF := typeFilterAllows(cfg, "pdf")
	allowImage := typeFilterAllows(cfg, "image") || typeFilterAllows(cfg, "images")
	allowText := typeFilterAllows(cfg, "text")

	startedAt := time.Now()
	totalPages := 0

	for _, seed := range cfg.SeedURLs() {
		seedURL := seed.String()
		if cfg.Crawl() {
			f := buildFetcher(sink, cfg, cfg.Timeout(), cfg.BrowserMode())
			collector := buildCollector(sink, f, retryParam)

			params := crawler.CrawlParams{
				StartURL:       seedURL,
				MaxDepth:       cfg.MaxDepth(),
				SameDomainOnly: cfg.SameHostOnly(),
				OutDir:         cfg.OutputDir(),
				Delay:          cfg.BaseDelay(),
				Workers:        cfg.Concurrency(),
				BuildMapParams: func(pageURL url.URL, depth int) pageengine.MapParams {
					return pageengine.MapParams{
						PageURL:      pageURL,
						CrawlDepth:   depth,
						RetryParam:   retryParam,
						MaxPDFs:      cfg.AssetCountCap(),
						ImageLimit:   cfg.AssetCountCap(),
						HeadWorkers:  cfg.HeadWorkers(),
						MinImageSize: cfg.MinImageBytes(),
						MaxImageSize: cfg.MaxImageBytes(),
						ExtractText:  allowText,
						UseBrowser:   cfg.BrowserMode(),
						SameHost:     pageURL.Host,
					}
				},
				BuildScrapeParams: func(host string) pageengine.ScrapeParams {
					return pageengine.ScrapeParams{
						OutDir:           cfg.OutputDir(),
						Host:             host,
						Delay:            cfg.BaseDelay(),
						RequestedWorkers: cfg.Concurrency(),
						SafeAssetWorkers: cfg.SafeAssetWorkers(),
						UseBrowser:       cfg.BrowserMode(),
						AllowPDF:         allowPDF,
						AllowImage:       allowImage,
						AllowText:        allowText,
						RetryParam:       retryParam,
					}
				},
				Progress: func(pageURL string, depth int, pending int) {
					fmt.Fprintf(os.Stderr, "[%d] %s (queue=%d)\n", depth, pageURL, pending)
				},
			}

			var visited crawler.Set[string]
			var visitErr error
			if cfg.Concurrency() > 1 {
				visited, visitErr = crawler.ParallelCrawl(ctx, &engine, f, collector, robotPolicy, params)
			} else {
				visited, visitErr = crawler.SequentialCrawl(ctx, &engine, f, collector, robotPolicy, params)
			}
			f.Close()
			totalPages += len(visited)
			if visitErr != nil {
				return fmt.Errorf("crawl of %s failed: %w", seedURL, visitErr)
			}
			continue
		}

		seedParams := orchestrator.SeedParams{
			SeedURL:       seedURL,
			OutDir:        cfg.OutputDir(),
			Delay:         cfg.BaseDelay(),
			MaxIterations: cfg.MaxIterations(),
			ForceBrowser:  cfg.BrowserMode(),
			MapFirst:      true,
			NewFetcher: func(timeout time.Duration, useBrowser bool) fetcher.Fetcher {
				return buildFetcher(sink, cfg, timeout, useBrowser)
			},
			BuildMapParams: func(useBrowser bool, delay time.Duration) pageengine.MapParams {
				return pageengine.MapParams{
					RetryParam:   retryParam,
					MaxPDFs:      cfg.AssetCountCap(),
					ImageLimit:   cfg.AssetCountCap(),
					HeadWorkers:  cfg.HeadWorkers(),
					MinImageSize: cfg.MinImageBytes(),
					MaxImageSize: cfg.MaxImageBytes(),
					ExtractText:  allowText,
				}
			},
			BuildScrapeParams: func(useBrowser bool, delay time.Duration) pageengine.ScrapeParams {
				return pageengine.ScrapeParams{
					OutDir:           cfg.OutputDir(),
					Host:             storage.SanitizeHost(seedURL),
					RequestedWorkers: cfg.Concurrency(),
					SafeAssetWorkers: cfg.SafeAssetWorkers(),
					AllowPDF:         allowPDF,
					AllowImage:       allowImage,
					AllowText:        allowText,
					RetryParam:       retryParam,
				}
			},
			Progress: func(event pageengine.ProgressEvent) {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", event.Kind, event.Message)
			},
			OnIteration: func(iteration, maxIterations int, timeout, delay time.Duration, useBrowser bool) {
				if iteration > 0 {
					fmt.Fprintf(os.Stderr, "Iteration %d/%d (timeout=%v, delay=%v, browser=%v)\n", iteration+1, maxIterations, timeout, delay, useBrowser)
				}
			},
		}

		seedCtx := ctx
		if cfg.RetryTimeout() > 0 {
			var cancel context.CancelFunc
			seedCtx, cancel = context.WithTimeout(ctx, cfg.RetryTimeout())
			defer cancel()
		}

		collector := buildCollector(sink, buildFetcher(sink, cfg, cfg.Timeout(), cfg.BrowserMode()), retryParam)
		if err := orchestrator.RunSeed(seedCtx, &engine, sink, collector, robotPolicy, seedParams); err != nil {
			return fmt.Errorf("scrape of %s failed: %w", seedURL, err)
		}
		totalPages++
	}

	sink.RecordFinalCrawlStats(totalPages, len(sink.Errors()), len(sink.Artifacts()), time.Since(startedAt))
	report := summary.Build(sink.FinalStats(), sink.Artifacts(), sink.Errors(), time.Now())
	if err := report.WriteFiles(cfg.OutputDir()); err != nil {
		fmt.Fprintf(os.Stderr, "summary: failed to write report: %v\n", err)
	}

	orchestrator.RunDoneScript(cfg.DoneScript(), cfg.OutputDir())
	return nil
}
