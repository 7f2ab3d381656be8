package schema

import (
	"fmt"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

type SchemaErrorCause string

const (
	ErrCauseManifestFetchFailed SchemaErrorCause = "manifest fetch failed"
	ErrCauseManifestInvalid     SchemaErrorCause = "manifest invalid json"
)

// SchemaError reports a manifest that could not be retrieved or parsed.
// Always recoverable: a bad manifest just means that candidate's images are
// skipped, never that the whole page fails.
type SchemaError struct {
	ManifestURL string
	Cause       SchemaErrorCause
	Underlying  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s (%s)", e.Cause, e.ManifestURL)
}

func (e *SchemaError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func mapSchemaErrorToMetadataCause(err *SchemaError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseManifestFetchFailed:
		return metadata.CauseNetworkFailure
	case ErrCauseManifestInvalid:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
