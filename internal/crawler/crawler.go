package crawler

import (
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/pageengine"
	"github.com/rohmanhakim/docs-harvester/internal/robots"
)

/*
Responsibilities
- Walk a site breadth-first from a seed URL, honoring max depth and an
  optional same-domain restriction
- Dispatch every visited page to PageEngine.ScrapePage for link discovery
  and asset downloads
- Retry once, cross-domain, when a same-domain-only crawl turns up nothing
  but the seed itself -- the same-domain filter is usually right, but a
  site that redirects to a different host on its landing page would
  otherwise crawl exactly one page and stop
- Run either single-goroutine (sequential) or over a worker pool (parallel)

Non-goals
- robots.txt parsing itself (internal/robots)
- per-page fetch/extract/download mechanics (internal/pageengine)
*/

// RobotPolicy is the crawl-time subset of internal/robots.CachedRobot's
// surface, narrowed so this package depends on a policy decision rather
// than on robots.txt fetching/caching mechanics.
type RobotPolicy interface {
	Decide(u url.URL) (robots.Decision, error)
}

// crawlItem is one queue entry: a discovered URL and the depth it was
// discovered at relative to the seed.
type crawlItem struct {
	url   string
	depth int
}

// CrawlParams configures a single crawl run (sequential or parallel).
type CrawlParams struct {
	StartURL       string
	MaxDepth       int
	SameDomainOnly bool
	OutDir         string
	Delay          time.Duration
	Workers        int

	// BuildMapParams/BuildScrapeParams let the caller supply per-page
	// parameters (limits, type filters, size bounds) without this package
	// needing to know pageengine's full parameter surface up front.
	// BuildScrapeParams takes the page's sanitized host so ScrapeParams.Host
	// stays correct even when a cross-domain-fallback crawl touches more
	// than one host.
	BuildMapParams    func(pageURL url.URL, depth int) pageengine.MapParams
	BuildScrapeParams func(host string) pageengine.ScrapeParams

	// Progress, when set, receives one notification per page visited.
	Progress func(pageURL string, depth int, pending int)
}

func sameHost(rawA, rawB string) bool {
	a, errA := url.Parse(rawA)
	b, errB := url.Parse(rawB)
	if errA != nil || errB != nil {
		return false
	}
	return a.Host == b.Host
}

// withCrossDomainFallback runs runOnce with params.SameDomainOnly as given;
// if that restriction produced nothing beyond the seed itself, it retries
// once with the restriction lifted.
func withCrossDomainFallback(
	params CrawlParams,
	runOnce func(sameDomainOnly bool) (Set[string], error),
) (Set[string], error) {
	visited, err := runOnce(params.SameDomainOnly)
	if err != nil {
		return visited, err
	}
	if params.SameDomainOnly && visited.Size() <= 1 {
		return runOnce(false)
	}
	return visited, nil
}
