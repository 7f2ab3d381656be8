package storage

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/hashutil"
)

/*
Responsibilities
- Persist PDFs, images, and extracted text
- Derive deterministic, collision-free filenames (see paths.go)
- Keep the per-host manifest in sync with what actually landed on disk

Output Characteristics
- Stable directory layout: out_dir/<host>/{pdfs,images,texts}/
- Idempotent writes (canonical_path_for_* short-circuits re-downloads upstream)
- Overwrite-safe reruns
*/

type Sink interface {
	Write(
		outDir string,
		host string,
		kind AssetKind,
		sourceURL string,
		contentType string,
		content []byte,
		hashAlgo hashutil.HashAlgo,
	) (WriteResult, failure.ClassifiedError)
}

type LocalSink struct {
	metadataSink metadata.MetadataSink
}

func NewLocalSink(metadataSink metadata.MetadataSink) LocalSink {
	return LocalSink{metadataSink: metadataSink}
}

func (s *LocalSink) Write(
	outDir string,
	host string,
	kind AssetKind,
	sourceURL string,
	contentType string,
	content []byte,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, failure.ClassifiedError) {
	writeResult, err := write(outDir, host, kind, sourceURL, contentType, content, hashAlgo)
	if err != nil {
		var storageError *StorageError
		errors.As(err, &storageError)
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalSink.Write",
			mapStorageErrorToMetadataCause(storageError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceURL),
				metadata.NewAttr(metadata.AttrHost, host),
				metadata.NewAttr(metadata.AttrWritePath, storageError.Path),
			},
		)
		return WriteResult{}, storageError
	}

	s.metadataSink.RecordArtifact(
		artifactKindFor(kind),
		writeResult.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, writeResult.Path()),
			metadata.NewAttr(metadata.AttrURL, sourceURL),
			metadata.NewAttr(metadata.AttrHost, host),
			metadata.NewAttr(metadata.AttrField, writeResult.ContentHash()),
		},
	)
	return writeResult, nil
}

func write(
	outDir string,
	host string,
	kind AssetKind,
	sourceURL string,
	contentType string,
	content []byte,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, *StorageError) {
	var (
		fullPath string
		err      error
	)
	switch kind {
	case AssetPDF:
		fullPath, err = PathForPDF(outDir, host, sourceURL, contentType)
	case AssetImage:
		fullPath, err = PathForImage(outDir, host, sourceURL, contentType)
	default:
		fullPath, err = PathForText(outDir, host, sourceURL, contentType)
	}
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      fullPath,
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCausePathError,
			Path:      filepath.Dir(fullPath),
		}
	}

	contentHash, err := hashutil.HashBytes(content, hashAlgo)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
			Path:      fullPath,
		}
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      fullPath,
		}
	}

	return NewWriteResult(sourceURL, fullPath, contentHash), nil
}

func artifactKindFor(kind AssetKind) metadata.ArtifactKind {
	switch kind {
	case AssetPDF:
		return metadata.ArtifactPDF
	case AssetImage:
		return metadata.ArtifactImage
	default:
		return metadata.ArtifactText
	}
}
