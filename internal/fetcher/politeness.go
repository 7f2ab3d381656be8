package fetcher

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/rohmanhakim/docs-harvester/pkg/retry"
	"github.com/rohmanhakim/docs-harvester/pkg/timeutil"
)

// defaultMaxAttempts is the retry ladder for most statuses.
const defaultMaxAttempts = 3

// serverErrorMaxAttempts is the longer ladder reserved for 5xx responses.
const serverErrorMaxAttempts = 6

const serverErrorBaseWait = 5 * time.Second

var throttleBodyMarkers = []string{
	"rate limit",
	"too many requests",
	"throttl",
	"slow down",
	"try again",
}

const throttleBodySniffLimit = 50 * 1024

// isRetryTriggeringStatus reports whether a status code should trigger a
// retry attempt at all.
func isRetryTriggeringStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// looksThrottled sniffs a bounded prefix of a 2xx body for throttle wording
// some hosts use instead of a proper 429.
func looksThrottled(body []byte) bool {
	sniff := body
	if len(sniff) > throttleBodySniffLimit {
		sniff = sniff[:throttleBodySniffLimit]
	}
	lower := bytes.ToLower(sniff)
	for _, marker := range throttleBodyMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	return false
}

// DefaultRetryParam builds the default 3-attempt ladder. The CLI does not
// call it: every fetch uses the single ladder built from the configuration
// (cli.retryParamFrom).
func DefaultRetryParam(jitter time.Duration, randomSeed int64) retry.RetryParam {
	return retry.NewRetryParam(
		1*time.Second,
		jitter,
		randomSeed,
		defaultMaxAttempts,
		timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
	)
}

// ServerErrorRetryParam builds a deeper 6-attempt ladder: a 5-second base
// wait doubling each attempt, capped. Nothing calls it; 5xx responses are
// retried on the same configured ladder as every other retryable failure.
func ServerErrorRetryParam(jitter time.Duration, randomSeed int64) retry.RetryParam {
	return retry.NewRetryParam(
		serverErrorBaseWait,
		jitter,
		randomSeed,
		serverErrorMaxAttempts,
		timeutil.NewBackoffParam(serverErrorBaseWait, 2.0, 2*time.Minute),
	)
}

// retryAfterWait parses a Retry-After header, numeric-seconds or HTTP-date,
// returning (wait, true) when present and parseable.
func retryAfterWait(header http.Header) (time.Duration, bool) {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(raw); err == nil {
		wait := time.Until(when)
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}
	return 0, false
}

// computeWait applies the politeness formula: max(delay, rate_limit_floor)
// with +/-15% jitter plus a small random offset, bounded tighter when the
// base delay is already short.
func (h *HtmlFetcher) computeWait(delay time.Duration) time.Duration {
	h.mu.Lock()
	floor := h.rateLimitFloor
	rng := h.rng
	h.mu.Unlock()

	base := delay
	if floor > base {
		base = floor
	}
	if base <= 0 {
		return 0
	}

	jitterSpan := float64(base) * 0.15
	jitter := time.Duration((rng.Float64()*2 - 1) * jitterSpan)

	var offsetCap time.Duration
	if delay < 500*time.Millisecond {
		offsetCap = 20 * time.Millisecond
	} else {
		offsetCap = 50 * time.Millisecond
	}
	offset := time.Duration(rng.Float64() * float64(offsetCap))

	wait := base + jitter + offset
	if wait < 0 {
		wait = 0
	}
	return wait
}

// raiseRateLimitFloor installs wait as the new floor if it exceeds the
// current one; the floor is monotonically increasing except for the decay
// applied after a successful HTML fetch.
func (h *HtmlFetcher) raiseRateLimitFloor(wait time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if wait > h.rateLimitFloor {
		h.rateLimitFloor = wait
	}
}

// decayRateLimitFloor shrinks the floor by 10% after a fully successful
// HTML fetch. Asset fetches never decay the floor: they are bursty and a
// poor signal of server health.
func (h *HtmlFetcher) decayRateLimitFloor() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitFloor = time.Duration(float64(h.rateLimitFloor) * 0.9)
}

func (h *HtmlFetcher) setLastPageURL(u string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPageURL = u
}

func (h *HtmlFetcher) refererHeader() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastPageURL
}
