package robots

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/robots/cache"
	"github.com/temoto/robotstxt"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration (process-wide, never evicted)
- Enforce allow/disallow rules before a page is visited

Robots checks occur when a URL is taken from the frontier, before it is
fetched. A host whose
robots.txt could not be fetched at all (network failure) surfaces that as
an error rather than silently allowing or blocking -- callers decide
whether that's fatal for the crawl. A host that returns 404/4xx for
robots.txt has no restrictions and crawls freely; this is not a failure.
*/

type robotState struct {
	mu        sync.RWMutex
	fetcher   *RobotsFetcher
	sink      metadata.MetadataSink
	userAgent string
	policies  map[string]*robotstxt.RobotsData
}

// CachedRobot enforces robots.txt policy per host, fetching and caching
// lazily on first consult. The zero value is not usable; construct with
// NewCachedRobot and call Init or InitWithCache before Decide.
type CachedRobot struct {
	state *robotState
}

// NewCachedRobot creates a CachedRobot recording through sink. Call Init or
// InitWithCache before the first Decide.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		state: &robotState{
			sink:     sink,
			policies: make(map[string]*robotstxt.RobotsData),
		},
	}
}

// Init configures the user-agent this robot enforces rules for and uses an
// in-memory cache for fetched robots.txt bodies.
func (c *CachedRobot) Init(userAgent string) {
	c.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache is like Init but lets the caller supply the underlying
// robots.txt body cache (e.g. shared across multiple CachedRobot instances).
func (c *CachedRobot) InitWithCache(userAgent string, bodyCache cache.Cache) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	c.state.userAgent = userAgent
	c.state.fetcher = NewRobotsFetcher(c.state.sink, userAgent, bodyCache)
}

// Decide reports whether u may be fetched under the policy for its host,
// fetching and caching that host's robots.txt on first consult.
func (c *CachedRobot) Decide(u url.URL) (Decision, error) {
	data, err := c.policyFor(u)
	if err != nil {
		return Decision{}, err
	}

	if data == nil || len(data.Groups) == 0 {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet}, nil
	}

	group := data.FindGroup(c.state.userAgent)
	if group == nil {
		return Decision{Url: u, Allowed: true, Reason: NoMatchingRules}, nil
	}

	allowed := group.Test(u.Path)
	reason := DisallowedByRobots
	if allowed {
		reason = AllowedByRobots
	}

	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: group.CrawlDelay,
	}, nil
}

func (c *CachedRobot) policyFor(u url.URL) (*robotstxt.RobotsData, error) {
	key := u.Scheme + "://" + u.Host

	c.state.mu.RLock()
	cached, ok := c.state.policies[key]
	c.state.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, fetchErr := c.state.fetcher.Fetch(context.Background(), u.Scheme, u.Host)
	if fetchErr != nil {
		c.state.sink.RecordError(
			time.Now(),
			"robots",
			"CachedRobot.Decide",
			mapRobotsErrorToMetadataCause(fetchErr),
			fetchErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, u.Host),
				metadata.NewAttr(metadata.AttrURL, u.String()),
			},
		)
		return nil, fetchErr
	}

	c.state.mu.Lock()
	c.state.policies[key] = data
	c.state.mu.Unlock()

	return data, nil
}
