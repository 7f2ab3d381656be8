package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
)

// FetchBinary performs fetch_binary: a streamed download to a temporary
// location in destination's parent directory, renamed into place only once
// the transfer completes successfully.
func (h *HtmlFetcher) FetchBinary(
	ctx context.Context,
	fetchUrl url.URL,
	destination string,
	timeout time.Duration,
	delay time.Duration,
	retryParam retry.RetryParam,
) failure.ClassifiedError {
	callerMethod := "HtmlFetcher.FetchBinary"

	time.Sleep(h.computeWait(delay))

	fetchTask := func() (struct{}, failure.ClassifiedError) {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return struct{}{}, h.downloadOnce(attemptCtx, fetchUrl, destination)
	}

	retryResult := retry.Retry(retryParam, fetchTask)
	if retryResult.IsFailure() {
		h.recordBytesError(callerMethod, fetchUrl, retryResult.Err())
		return retryResult.Err()
	}
	return nil
}

func (h *HtmlFetcher) downloadOnce(ctx context.Context, fetchUrl url.URL, destination string) failure.ClassifiedError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return &FetchError{
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
		return &FetchError{
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
			return h.downloadOnce(ctx, alt, destination)
		}
		return &FetchError{Message: "iiif endpoint returned 501", Retryable: false, Cause: ErrCauseIIIF501}
	}
	if resp.StatusCode >= 500 {
		return &FetchError{Message: fmt.Sprintf("server error: %d", resp.StatusCode), Retryable: true, Cause: ErrCauseRequest5xx}
	}
	if resp.StatusCode == 429 {
		return &FetchError{Message: "rate limited (429)", Retryable: true, Cause: ErrCauseRequestTooMany}
	}
	if resp.StatusCode == 403 {
		return &FetchError{Message: "access forbidden (403)", Retryable: true, Cause: ErrCauseRequestPageForbidden}
	}
	if resp.StatusCode >= 400 {
		return &FetchError{Message: fmt.Sprintf("client error: %d", resp.StatusCode), Retryable: false, Cause: ErrCauseRequestPageForbidden}
	}

	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FetchError{Message: fmt.Sprintf("failed to create directory: %v", err), Retryable: false, Cause: ErrCauseFileSystem}
	}

	tmp, err := os.CreateTemp(dir, ".fetch-*.tmp")
	if err != nil {
		return &FetchError{Message: fmt.Sprintf("failed to create temp file: %v", err), Retryable: false, Cause: ErrCauseFileSystem}
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr != nil {
			return &FetchError{Message: fmt.Sprintf("failed to stream body: %v", copyErr), Retryable: true, Cause: ErrCauseReadResponseBodyError}
		}
		return &FetchError{Message: fmt.Sprintf("failed to finalize temp file: %v", closeErr), Retryable: false, Cause: ErrCauseFileSystem}
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		os.Remove(tmpPath)
		return &FetchError{Message: fmt.Sprintf("failed to rename into place: %v", err), Retryable: false, Cause: ErrCauseFileSystem}
	}

	return nil
}
