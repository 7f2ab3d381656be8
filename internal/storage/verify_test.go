package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/pkg/hashutil"
)

func TestVerify_NoMismatchesForIntactFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	content := []byte("hello")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	hash, err := hashutil.HashBytes(content, hashutil.HashAlgoSHA256)
	if err != nil {
		t.Fatal(err)
	}

	m := storage.NewManifest()
	m.Put("https://example.com/a.pdf", path, "application/pdf", hash)

	mismatches := storage.Verify(m, hashutil.HashAlgoSHA256)
	if len(mismatches) != 0 {
		t.Errorf("expected no mismatches, got %+v", mismatches)
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	m := storage.NewManifest()
	m.Put("https://example.com/a.pdf", path, "application/pdf", "not-the-real-hash")

	mismatches := storage.Verify(m, hashutil.HashAlgoSHA256)
	if len(mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(mismatches))
	}
	if mismatches[0].Reason != "checksum mismatch" {
		t.Errorf("unexpected reason: %q", mismatches[0].Reason)
	}
}

func TestVerify_DetectsMissingFile(t *testing.T) {
	m := storage.NewManifest()
	m.Put("https://example.com/a.pdf", filepath.Join(t.TempDir(), "gone.pdf"), "application/pdf", "somehash")

	mismatches := storage.Verify(m, hashutil.HashAlgoSHA256)
	if len(mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(mismatches))
	}
	if mismatches[0].Reason != "missing or unreadable" {
		t.Errorf("unexpected reason: %q", mismatches[0].Reason)
	}
}

func TestVerify_SkipsEntriesWithoutChecksum(t *testing.T) {
	m := storage.NewManifest()
	m.Put("https://example.com/a.pdf", filepath.Join(t.TempDir(), "gone.pdf"), "application/pdf", "")

	mismatches := storage.Verify(m, hashutil.HashAlgoSHA256)
	if len(mismatches) != 0 {
		t.Errorf("expected no mismatches for checksum-less entries, got %+v", mismatches)
	}
}
