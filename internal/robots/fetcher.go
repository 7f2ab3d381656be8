package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/robots/cache"
	"github.com/temoto/robotstxt"
)

/*
RobotsFetcher

Responsibilities:
- Fetch robots.txt per host using net/http
- Parse robots.txt content via temoto/robotstxt (full wildcard/anchor support)
- Handle HTTP status codes according to spec
- Cache the raw body using the provided Cache implementation

The Fetcher returns a parsed *robotstxt.RobotsData. It does not decide
whether any particular URL is allowed; see robot.go for that.
*/

// RobotsFetcher fetches and parses robots.txt files from hosts.
type RobotsFetcher struct {
	httpClient *http.Client
	userAgent  string
	cache      cache.Cache
}

// NewRobotsFetcher creates a new RobotsFetcher with the given dependencies.
// The cache parameter is optional - if nil, no caching will be performed.
func NewRobotsFetcher(
	metadataSink metadata.MetadataSink,
	userAgent string,
	cache cache.Cache,
) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		cache:      cache,
	}
}

// NewRobotsFetcherWithClient creates a new RobotsFetcher with a custom HTTP
// client. Useful for testing.
func NewRobotsFetcherWithClient(
	metadataSink metadata.MetadataSink,
	userAgent string,
	httpClient *http.Client,
	cache cache.Cache,
) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		cache:      cache,
	}
}

func cacheKey(scheme, hostname string) string {
	return fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)
}

// Fetch retrieves and parses the robots.txt file from the given host.
// The scheme (http/https) must be provided to construct the URL.
func (f *RobotsFetcher) Fetch(ctx context.Context, scheme, hostname string) (*robotstxt.RobotsData, *RobotsError) {
	key := cacheKey(scheme, hostname)
	if f.cache != nil {
		if body, found := f.cache.Get(key); found {
			data, err := robotstxt.FromBytes([]byte(body))
			if err == nil {
				return data, nil
			}
			// fall through and refetch on cache corruption
		}
	}

	robotsURL := key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, &RobotsError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCausePreFetchFailure,
		}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain,text/html,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &RobotsError{
			Message:   fmt.Sprintf("failed to fetch robots.txt: %v", err),
			Retryable: true,
			Cause:     ErrCauseHttpFetchFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, data, parseErr := f.readAndParse(resp)
		if parseErr != nil {
			return nil, parseErr
		}
		if f.cache != nil {
			f.cache.Put(key, body)
		}
		return data, nil

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return nil, &RobotsError{
			Message:   fmt.Sprintf("redirect loop or too many redirects for %s", robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpTooManyRedirects,
		}

	case resp.StatusCode == 429:
		return nil, &RobotsError{
			Message:   fmt.Sprintf("rate limited (429) when fetching %s", robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpTooManyRequests,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// No robots.txt present: per spec, treat as no restrictions.
		data, _ := robotstxt.FromBytes(nil)
		if f.cache != nil {
			f.cache.Put(key, "")
		}
		return data, nil

	case resp.StatusCode >= 500:
		return nil, &RobotsError{
			Message:   fmt.Sprintf("server error (%d) when fetching %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpServerError,
		}

	default:
		return nil, &RobotsError{
			Message:   fmt.Sprintf("unexpected status code %d for %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpUnexpectedStatus,
		}
	}
}

func (f *RobotsFetcher) readAndParse(resp *http.Response) (string, *robotstxt.RobotsData, *RobotsError) {
	const maxSize = 500 * 1024
	limitedReader := io.LimitReader(resp.Body, maxSize+1)

	content, err := io.ReadAll(limitedReader)
	if err != nil {
		return "", nil, &RobotsError{
			Message:   fmt.Sprintf("failed to read robots.txt body: %v", err),
			Retryable: true,
			Cause:     ErrCauseParseError,
		}
	}
	if len(content) > maxSize {
		content = content[:maxSize]
	}

	data, err := robotstxt.FromBytes(content)
	if err != nil {
		return "", nil, &RobotsError{
			Message:   fmt.Sprintf("failed to parse robots.txt: %v", err),
			Retryable: false,
			Cause:     ErrCauseParseError,
		}
	}
	return string(content), data, nil
}

func (f *RobotsFetcher) UserAgent() string {
	return f.userAgent
}

func (f *RobotsFetcher) HttpClient() *http.Client {
	return f.httpClient
}

func (f *RobotsFetcher) Cache() cache.Cache {
	return f.cache
}
