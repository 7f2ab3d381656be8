package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests across the httpx/browser/proxy backends
- Apply headers, timeouts and the politeness wait
- Handle redirects safely
- Classify responses

Fetch Semantics

- Only successful HTML responses are processed by fetch_html
- Non-HTML content is discarded
- Redirect chains are bounded by the underlying http.Client
- All responses are logged with metadata

The fetcher never parses content; it only returns bytes and metadata.
*/

// Fetch performs fetch_html: GET fetchUrl, retrying per the status-driven
// ladder, and records the most recent URL as the Referer for subsequent
// asset fetches from this instance.
func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	time.Sleep(h.computeWait(0))

	var lastFetchErr *FetchError
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		result, err := h.fetchHTMLOnce(ctx, fetchUrl)
		if fetchErr, ok := err.(*FetchError); ok {
			lastFetchErr = fetchErr
		}
		return result, err
	}
	retryResult := retry.Retry(retryParam, fetchTask)

	duration := time.Since(startTime)

	result := retryResult.Value()
	err := retryResult.Err()
	retryCount := retryResult.Attempts()

	// The 403 ladder retries within pkg/retry, which reports exhaustion as a
	// generic *retry.RetryError. Re-surface it as a *FetchError so callers
	// (the orchestrator's browser-mode escalation) can keep matching on
	// FetchError.Cause instead of losing the 403 classification.
	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) && lastFetchErr != nil && lastFetchErr.Cause == ErrCauseRequestPageForbidden {
		err = &FetchError{
			Message:   lastFetchErr.Message,
			Retryable: true,
			Cause:     ErrCauseRepeated403,
		}
	}

	var statusCode int
	var contentType string

	if err == nil {
		statusCode = result.Code()
		contentType = h.extractContentType(result.Headers())
		h.setLastPageURL(fetchUrl.String())
		h.decayRateLimitFloor()
	}

	h.metadataSink.RecordFetch(
		fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	)

	if err != nil {
		if errors.Is(err, &retry.RetryError{}) {
			h.recordRetryError(callerMethod, fetchUrl, err)
		} else {
			h.recordFetchError(callerMethod, fetchUrl, err)
		}
		return FetchResult{}, err
	}

	return result, nil
}

// fetchHTMLOnce performs a single attempt, dispatching on the instance's
// backend mode. The politeness wait is applied once per Fetch call, not
// per retry attempt — retry spacing is governed by retryParam's own
// backoff curve.
func (h *HtmlFetcher) fetchHTMLOnce(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	switch h.mode {
	case ModeBrowser:
		return h.fetchHTMLBrowser(ctx, fetchUrl)
	case ModeProxy:
		return h.fetchHTMLProxy(ctx, fetchUrl)
	default:
		return h.performFetch(ctx, fetchUrl)
	}
}

func (h *HtmlFetcher) extractContentType(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok {
		return ct
	}
	return ""
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			metadata.CauseRetryFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrMessage, retryError.Error()),
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

// performFetch is the httpx backend: a plain GET with browser-like headers,
// status classification, and a post-hoc retry-after/rate-floor update.
func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	headers := requestHeaders(h.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if isRetryTriggeringStatus(resp.StatusCode) {
		h.installWaitFromResponse(resp)
	}

	switch {
	case resp.StatusCode == 501:
		if alt, ok := iiifAltSizeURL(fetchUrl); ok {
			return h.performFetch(ctx, alt)
		}
		return FetchResult{}, &FetchError{
			Message:   "iiif endpoint returned 501",
			Retryable: false,
			Cause:     ErrCauseIIIF501,
		}

	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}

	case resp.StatusCode == 429:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}

	case resp.StatusCode == 403:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: true,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("non-HTML content type: %s", contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	if looksThrottled(body) {
		h.raiseRateLimitFloor(30 * time.Second)
		return FetchResult{}, &FetchError{
			Message:   "response body indicates throttling",
			Retryable: true,
			Cause:     ErrCauseThrottledBody,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	result := FetchResult{
		url:  fetchUrl,
		body: body,
		meta: ResponseMeta{
			statusCode:          resp.StatusCode,
			contentType:         contentType,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
		},
	}

	return result, nil
}

// installWaitFromResponse honors Retry-After when present and, for a 429,
// never waits less than 30s (with or without Retry-After); the resulting
// wait is installed as the new rate-limit floor for this instance.
func (h *HtmlFetcher) installWaitFromResponse(resp *http.Response) {
	wait, hasRetryAfter := retryAfterWait(resp.Header)
	if resp.StatusCode == http.StatusTooManyRequests {
		if !hasRetryAfter || wait < 30*time.Second {
			wait = 30 * time.Second
		}
		hasRetryAfter = true
	}
	if hasRetryAfter {
		h.raiseRateLimitFloor(wait)
	}
}

// iiifAltSizeURL implements the IIIF 501 recovery rule: a URL containing
// /full/full/ is retried with /full/max/ and vice versa.
func iiifAltSizeURL(u url.URL) (url.URL, bool) {
	s := u.String()
	switch {
	case strings.Contains(s, "/full/full/"):
		alt := u
		alt2 := strings.Replace(s, "/full/full/", "/full/max/", 1)
		parsed, err := url.Parse(alt2)
		if err != nil {
			return alt, false
		}
		return *parsed, true
	case strings.Contains(s, "/full/max/"):
		alt2 := strings.Replace(s, "/full/max/", "/full/full/", 1)
		parsed, err := url.Parse(alt2)
		if err != nil {
			return u, false
		}
		return *parsed, true
	default:
		return u, false
	}
}

func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}
