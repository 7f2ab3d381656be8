package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

// HeadMetadata performs head_metadata: a HEAD request used for pre-download
// image filtering by content-type and size. It is not part of the retry
// ladder surface since callers treat a failed HEAD as "skip, don't retry" —
// the asset is still reachable via a plain GET later if the caller chooses.
func (h *HtmlFetcher) HeadMetadata(
	ctx context.Context,
	fetchUrl url.URL,
	timeout time.Duration,
	delay time.Duration,
) (string, int64, failure.ClassifiedError) {
	time.Sleep(h.computeWait(delay))

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodHead, fetchUrl.String(), nil)
	if err != nil {
		return "", 0, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	for key, value := range requestHeaders(h.userAgent) {
		req.Header.Set(key, value)
	}
	if referer := h.refererHeader(); referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", 0, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", 0, &FetchError{
			Message:   fmt.Sprintf("head request failed: %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	contentLength := int64(-1)
	if raw := resp.Header.Get("Content-Length"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			contentLength = parsed
		}
	}
	return contentType, contentLength, nil
}
