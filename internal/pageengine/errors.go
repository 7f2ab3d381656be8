package pageengine

import (
	"fmt"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

// PageEngineErrorCause classifies a failure that aborts map_page or
// scrape_assets/scrape_page outright. Per-asset download failures are
// recorded with this type (ErrCauseFetchFailed) but never returned -- they
// are counted in ScrapeStats.Failed instead, matching the rest of the pipeline's recoverable-continue
// convention.
type PageEngineErrorCause string

const (
	ErrCauseFetchFailed  PageEngineErrorCause = "fetch failed"
	ErrCauseParseFailed  PageEngineErrorCause = "parse failed"
	ErrCauseManifestSave PageEngineErrorCause = "manifest save failed"
)

type PageEngineError struct {
	Message   string
	Retryable bool
	Cause     PageEngineErrorCause
}

func (e *PageEngineError) Error() string {
	return fmt.Sprintf("pageengine error: %s: %s", e.Cause, e.Message)
}

func (e *PageEngineError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapPageEngineErrorToMetadataCause maps pageengine-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapPageEngineErrorToMetadataCause(err *PageEngineError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseFetchFailed:
		return metadata.CauseNetworkFailure
	case ErrCauseParseFailed:
		return metadata.CauseContentInvalid
	case ErrCauseManifestSave:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
