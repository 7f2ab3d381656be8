package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const manifestFilename = "manifest.json"

// ManifestPath returns the conventional manifest location for a host's
// output directory.
func ManifestPath(outDir, host string) string {
	return filepath.Join(outDir, host, manifestFilename)
}

// LoadManifest reads the JSON-shaped manifest at path. A missing or
// malformed file yields an empty manifest rather than an error, matching
// spec.md's "never fail the crawl over manifest bookkeeping" contract.
func LoadManifest(path string) Manifest {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewManifest()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return NewManifest()
	}
	if m.URLs == nil {
		m.URLs = make(map[string]string)
	}
	if m.Types == nil {
		m.Types = make(map[string]string)
	}
	return m
}

// SaveManifest writes m as JSON to path, creating parent directories as
// needed.
func SaveManifest(path string, m Manifest) *StorageError {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCausePathError,
			Path:      path,
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseManifestCorrupt,
			Path:      path,
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
			Path:      path,
		}
	}
	return nil
}
