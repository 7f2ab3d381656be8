package metadata

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// Recorder is the default MetadataSink: it emits one structured zerolog
// event per call and keeps a small running tally so a crawl summary can be
// built without re-reading the log.
type Recorder struct {
	log zerolog.Logger

	mu         sync.Mutex
	artifacts  []ArtifactRecord
	errors     []ErrorRecord
	fetches    int
	assetErrs  int
	finalStats CrawlStats
}

// NewRecorder builds a Recorder writing structured JSON lines to w.
// Pass os.Stdout for console output; callers that want human-readable
// output during interactive runs can wrap w in zerolog.ConsoleWriter.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		log: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// NewConsoleRecorder builds a Recorder writing colorized, human-readable
// lines to stderr, matching the teacher's "structured logging preferred,
// readable in a terminal" convention.
func NewConsoleRecorder() *Recorder {
	return NewRecorder(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func (r *Recorder) RecordFetch(
	fetchURL string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.mu.Lock()
	r.fetches++
	r.mu.Unlock()

	r.log.Info().
		Str("url", fetchURL).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("depth", crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordAssetFetch(
	fetchURL string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	r.log.Info().
		Str("asset_url", fetchURL).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset_fetch")
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.mu.Lock()
	r.errors = append(r.errors, ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errorString,
		observedAt:  observedAt,
		attrs:       attrs,
	})
	r.mu.Unlock()

	event := r.log.Error().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Str("cause", causeString(cause))
	for _, a := range attrs {
		event = event.Str(string(a.Key), a.Value)
	}
	event.Msg(errorString)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	r.artifacts = append(r.artifacts, ArtifactRecord{Kind: kind, Path: path, Attrs: attrs})
	r.mu.Unlock()

	event := r.log.Info().
		Str("kind", kind.String()).
		Str("path", path)
	for _, a := range attrs {
		event = event.Str(string(a.Key), a.Value)
	}
	event.Msg("artifact")
}

func (r *Recorder) RecordFinalCrawlStats(
	totalPages int,
	totalErrors int,
	totalAssets int,
	duration time.Duration,
) {
	r.mu.Lock()
	r.finalStats = CrawlStats{
		TotalPages:  totalPages,
		TotalErrors: totalErrors,
		TotalAssets: totalAssets,
		DurationMs:  duration.Milliseconds(),
	}
	r.mu.Unlock()

	r.log.Info().
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Int("total_assets", totalAssets).
		Dur("duration", duration).
		Msg("crawl_finished")
}

// FinalStats returns the most recently recorded terminal crawl summary, or
// the zero value if RecordFinalCrawlStats has not been called yet.
func (r *Recorder) FinalStats() CrawlStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalStats
}

// Artifacts returns a copy of every artifact recorded so far, for building
// a post-run summary report.
func (r *Recorder) Artifacts() []ArtifactRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ArtifactRecord, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

// Errors returns a copy of every error recorded so far.
func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

func causeString(c ErrorCause) string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}
