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

// FetchBytes performs fetch_bytes: a plain GET returning the raw body,
// used for manifest JSON. In browser mode, a URL that looks like a
// manifest is instead issued as an in-page fetch() from the last page URL
// so that same-origin cookies apply.
func (h *HtmlFetcher) FetchBytes(
	ctx context.Context,
	fetchUrl url.URL,
	delay time.Duration,
	retryParam retry.RetryParam,
) ([]byte, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.FetchBytes"

	time.Sleep(h.computeWait(delay))

	fetchTask := func() ([]byte, failure.ClassifiedError) {
		if h.mode == ModeBrowser && looksLikeManifestRequest(fetchUrl) {
			return h.fetchBytesInPage(ctx, fetchUrl)
		}
		return h.fetchBytesHTTP(ctx, fetchUrl)
	}

	retryResult := retry.Retry(retryParam, fetchTask)
	if retryResult.IsFailure() {
		h.recordBytesError(callerMethod, fetchUrl, retryResult.Err())
		return nil, retryResult.Err()
	}
	return retryResult.Value(), nil
}

func looksLikeManifestRequest(u url.URL) bool {
	path := strings.ToLower(u.Path)
	return strings.HasSuffix(path, ".json") || strings.Contains(path, "manifest.json")
}

func (h *HtmlFetcher) fetchBytesHTTP(ctx context.Context, fetchUrl url.URL) ([]byte, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return nil, &FetchError{
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
		return nil, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if isRetryTriggeringStatus(resp.StatusCode) {
		h.installWaitFromResponse(resp)
	}

	if resp.StatusCode == 501 {
		if alt, ok := iiifAltSizeURL(fetchUrl); ok {
			return h.fetchBytesHTTP(ctx, alt)
		}
		return nil, &FetchError{
			Message:   "iiif endpoint returned 501",
			Retryable: false,
			Cause:     ErrCauseIIIF501,
		}
	}

	if resp.StatusCode >= 500 {
		return nil, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}
	}
	if resp.StatusCode == 429 {
		return nil, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}
	}
	if resp.StatusCode == 403 {
		return nil, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: true,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	return body, nil
}

func (h *HtmlFetcher) recordBytesError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchErr *FetchError
	cause := metadata.CauseUnknown
	if errors.As(err, &fetchErr) {
		cause = mapFetchErrorToMetadataCause(fetchErr)
	} else {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			cause = metadata.CauseRetryFailure
		}
	}
	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	)
}
