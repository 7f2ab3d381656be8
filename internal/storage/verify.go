package storage

import (
	"os"

	"github.com/rohmanhakim/docs-harvester/pkg/hashutil"
)

// Mismatch describes a single on-disk integrity failure found by Verify.
type Mismatch struct {
	SourceURL string
	Path      string
	Reason    string
}

// Verify re-hashes every checksummed entry in m and reports any file that
// is missing or whose content no longer matches the recorded checksum.
// Entries with no recorded checksum are skipped -- absence of a checksum
// is not itself an error (see Manifest doc comment).
func Verify(m Manifest, hashAlgo hashutil.HashAlgo) []Mismatch {
	var mismatches []Mismatch

	for sourceURL, want := range m.Checksums {
		path, ok := m.URLs[sourceURL]
		if !ok {
			mismatches = append(mismatches, Mismatch{SourceURL: sourceURL, Reason: "no recorded path"})
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			mismatches = append(mismatches, Mismatch{SourceURL: sourceURL, Path: path, Reason: "missing or unreadable"})
			continue
		}

		got, err := hashutil.HashBytes(content, hashAlgo)
		if err != nil || got != want {
			mismatches = append(mismatches, Mismatch{SourceURL: sourceURL, Path: path, Reason: "checksum mismatch"})
		}
	}

	return mismatches
}
