package fetcher

import (
	"context"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
)

// FetcherMode selects which backend performs the actual network request.
// Operations dispatch on this tag instead of through separate implementations
// per backend.
type FetcherMode string

const (
	ModeHttpx   FetcherMode = "httpx"
	ModeBrowser FetcherMode = "browser"
	ModeProxy   FetcherMode = "proxy"
)

// Fetcher is the small public surface every backend mode honors.
type Fetcher interface {
	Init(httpClient *http.Client, userAgent string)
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchUrl url.URL,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
	FetchBytes(ctx context.Context, fetchUrl url.URL, delay time.Duration, retryParam retry.RetryParam) ([]byte, failure.ClassifiedError)
	FetchBinary(ctx context.Context, fetchUrl url.URL, destination string, timeout time.Duration, delay time.Duration, retryParam retry.RetryParam) failure.ClassifiedError
	HeadMetadata(ctx context.Context, fetchUrl url.URL, timeout time.Duration, delay time.Duration) (string, int64, failure.ClassifiedError)
	Spawn() *HtmlFetcher
	Close()
}

// HtmlFetcher is the single-owner fetch backend. The name predates the
// merge of the httpx/browser/proxy backends into one mode-tagged type; it
// now implements fetch_html, fetch_bytes, fetch_binary and head_metadata.
type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	userAgent    string

	mode           FetcherMode
	proxyURL       string
	humanBypass    bool
	jsHeavyHosts   map[string]bool
	browserBackend *browserBackend

	mu             sync.Mutex
	rateLimitFloor time.Duration
	lastPageURL    string
	rng            *rand.Rand
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
		mode:         ModeHttpx,
		jsHeavyHosts: map[string]bool{},
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Init wires the transport and the user-agent string used for every
// subsequent request.
func (h *HtmlFetcher) Init(httpClient *http.Client, userAgent string) {
	h.httpClient = httpClient
	h.userAgent = userAgent
}

// SetBrowserMode switches the instance to browser-automation mode. jsHeavyHosts
// lists hosts that get the longer network-idle wait; humanBypass pauses the
// process on an unresolved challenge instead of failing the attempt.
func (h *HtmlFetcher) SetBrowserMode(jsHeavyHosts []string, humanBypass bool) {
	h.mode = ModeBrowser
	h.humanBypass = humanBypass
	h.jsHeavyHosts = make(map[string]bool, len(jsHeavyHosts))
	for _, host := range jsHeavyHosts {
		h.jsHeavyHosts[host] = true
	}
}

// SetProxyMode switches the instance to challenge-proxy mode, POSTing every
// fetch_html request through proxyURL's /v1 endpoint.
func (h *HtmlFetcher) SetProxyMode(proxyURL string) {
	h.mode = ModeProxy
	h.proxyURL = proxyURL
}

// Spawn returns a sibling fetcher with identical configuration and its own
// connection pool and browser context, for use from another goroutine. A
// fetcher is otherwise single-owner.
func (h *HtmlFetcher) Spawn() *HtmlFetcher {
	sibling := HtmlFetcher{
		metadataSink: h.metadataSink,
		httpClient:   &http.Client{Timeout: h.httpClient.Timeout},
		userAgent:    h.userAgent,
		mode:         h.mode,
		proxyURL:     h.proxyURL,
		humanBypass:  h.humanBypass,
		jsHeavyHosts: h.jsHeavyHosts,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return &sibling
}

// Close releases the browser context, if one was ever created. It is a
// no-op in httpx and proxy mode.
func (h *HtmlFetcher) Close() {
	if h.browserBackend != nil {
		h.browserBackend.close()
		h.browserBackend = nil
	}
}
