package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

const (
	defaultNetworkIdleWait = 4 * time.Second
	jsHeavyNetworkIdleWait = 15 * time.Second
	challengeClearanceWait = 20 * time.Second
	challengePollInterval  = 2 * time.Second
)

var challengeMarkers = []string{
	"Just a moment",
	"_cf_chl_opt",
	"challenge-platform",
}

// browserBackend owns the lazily-created chromedp allocator and browser
// context for a single HtmlFetcher instance.
type browserBackend struct {
	allocCtx     context.Context
	allocClose   context.CancelFunc
	browserCtx   context.Context
	browserClose context.CancelFunc
}

func newBrowserBackend(parent context.Context, userAgent string) *browserBackend {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
	allocCtx, allocClose := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserClose := chromedp.NewContext(allocCtx)
	return &browserBackend{
		allocCtx:     allocCtx,
		allocClose:   allocClose,
		browserCtx:   browserCtx,
		browserClose: browserClose,
	}
}

func (b *browserBackend) close() {
	if b.browserClose != nil {
		b.browserClose()
	}
	if b.allocClose != nil {
		b.allocClose()
	}
}

func (h *HtmlFetcher) ensureBrowserBackend(ctx context.Context) *browserBackend {
	if h.browserBackend == nil {
		h.browserBackend = newBrowserBackend(ctx, h.userAgent)
	}
	return h.browserBackend
}

// fetchHTMLBrowser navigates to fetchUrl in a persistent browser context,
// waits for the DOM plus a network-idle grace period, and retries once if
// the launch itself fails (e.g. no browser binary was found on first use).
func (h *HtmlFetcher) fetchHTMLBrowser(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	html, err := h.navigateAndCapture(ctx, fetchUrl)
	if err != nil {
		h.browserBackend = nil // drop the broken context, retry once with a fresh one
		html, err = h.navigateAndCapture(ctx, fetchUrl)
		if err != nil {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("browser navigation failed: %v", err),
				Retryable: false,
				Cause:     ErrCauseBrowserUnavailable,
			}
		}
	}

	if containsChallengeMarker(html) {
		cleared, clearedHTML := h.waitForChallengeClearance(ctx, fetchUrl)
		if !cleared {
			return FetchResult{}, &FetchError{
				Message:   "challenge page did not clear",
				Retryable: true,
				Cause:     ErrCauseBrowserUnavailable,
			}
		}
		html = clearedHTML
	}

	return FetchResult{
		url:  fetchUrl,
		body: []byte(html),
		meta: ResponseMeta{
			statusCode:          200,
			contentType:         "text/html; charset=utf-8",
			transferredSizeByte: uint64(len(html)),
			responseHeaders:     map[string]string{"Content-Type": "text/html; charset=utf-8"},
		},
	}, nil
}

func (h *HtmlFetcher) navigateAndCapture(ctx context.Context, fetchUrl url.URL) (string, error) {
	backend := h.ensureBrowserBackend(ctx)

	idleWait := defaultNetworkIdleWait
	if h.jsHeavyHosts[fetchUrl.Hostname()] {
		idleWait = jsHeavyNetworkIdleWait
	}

	var html string
	err := chromedp.Run(backend.browserCtx,
		chromedp.Navigate(fetchUrl.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(idleWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

// waitForChallengeClearance polls for automatic clearance of a bot
// challenge page, or blocks for a human signal when humanBypass is set.
func (h *HtmlFetcher) waitForChallengeClearance(ctx context.Context, fetchUrl url.URL) (bool, string) {
	if h.humanBypass {
		fmt.Printf("docs-harvester: challenge detected on %s — resolve it in the browser window, then press Enter to continue\n", fetchUrl.String())
		fmt.Scanln()
		html, err := h.navigateAndCapture(ctx, fetchUrl)
		return err == nil && !containsChallengeMarker(html), html
	}

	deadline := time.Now().Add(challengeClearanceWait)
	for time.Now().Before(deadline) {
		time.Sleep(challengePollInterval)
		html, err := h.navigateAndCapture(ctx, fetchUrl)
		if err == nil && !containsChallengeMarker(html) {
			return true, html
		}
	}
	return false, ""
}

func containsChallengeMarker(html string) bool {
	for _, marker := range challengeMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// fetchHTMLProxy dispatches fetch_html through the challenge-proxy's /v1
// endpoint instead of a direct browser or httpx request.
func (h *HtmlFetcher) fetchHTMLProxy(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	html, statusOK, err := postChallengeProxyRequest(ctx, h.proxyURL, fetchUrl.String(), 30*time.Second)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("challenge proxy request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseChallengeFailed,
		}
	}
	if !statusOK {
		return FetchResult{}, &FetchError{
			Message:   "challenge proxy reported non-ok status",
			Retryable: false,
			Cause:     ErrCauseChallengeFailed,
		}
	}
	return FetchResult{
		url:  fetchUrl,
		body: []byte(html),
		meta: ResponseMeta{
			statusCode:          200,
			contentType:         "text/html; charset=utf-8",
			transferredSizeByte: uint64(len(html)),
			responseHeaders:     map[string]string{"Content-Type": "text/html; charset=utf-8"},
		},
	}, nil
}

// fetchBytesInPage issues the GET as an in-page fetch() from the browser's
// current document so that same-origin cookies are attached, mitigating
// interstitial bot protection on manifest endpoints.
func (h *HtmlFetcher) fetchBytesInPage(ctx context.Context, fetchUrl url.URL) ([]byte, failure.ClassifiedError) {
	backend := h.ensureBrowserBackend(ctx)

	script := fmt.Sprintf("fetch(%q).then(r => r.text())", fetchUrl.String())
	var body string
	err := chromedp.Run(backend.browserCtx,
		chromedp.Evaluate(script, &body, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, &FetchError{
			Message:   fmt.Sprintf("in-page fetch failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	return []byte(body), nil
}
