package orchestrator

import (
	"fmt"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

// OrchestratorErrorCause classifies a failure that keeps RunSeed from
// attempting the page at all -- a bad URL or a robots.txt disallow. Anything
// that happens once fetching starts comes back as whatever MapPage/ScrapePage
// already returned (a *fetcher.FetchError or a *pageengine.PageEngineError).
type OrchestratorErrorCause string

const (
	ErrCauseInvalidURL       OrchestratorErrorCause = "invalid url"
	ErrCauseRobotsDisallowed OrchestratorErrorCause = "robots disallowed"
)

type OrchestratorError struct {
	Message   string
	Retryable bool
	Cause     OrchestratorErrorCause
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("orchestrator error: %s: %s", e.Cause, e.Message)
}

func (e *OrchestratorError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapOrchestratorErrorToMetadataCause maps orchestrator-local error
// semantics to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapOrchestratorErrorToMetadataCause(err *OrchestratorError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseRobotsDisallowed:
		return metadata.CausePolicyDisallow
	default:
		return metadata.CauseUnknown
	}
}

// recordOrchestratorError logs err to metadataSink (when one was supplied)
// and returns it unchanged, so call sites can return in one line.
func recordOrchestratorError(metadataSink metadata.MetadataSink, subjectURL string, err *OrchestratorError) *OrchestratorError {
	if metadataSink != nil {
		metadataSink.RecordError(
			time.Now(),
			"orchestrator",
			"RunSeed",
			mapOrchestratorErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, subjectURL)},
		)
	}
	return err
}
