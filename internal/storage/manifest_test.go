package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rohmanhakim/docs-harvester/internal/storage"
)

func TestLoadManifest_MissingFileYieldsEmpty(t *testing.T) {
	m := storage.LoadManifest(filepath.Join(t.TempDir(), "missing.json"))
	if len(m.URLs) != 0 || len(m.Types) != 0 {
		t.Errorf("expected empty manifest, got %+v", m)
	}
}

func TestLoadManifest_MalformedFileYieldsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	m := storage.LoadManifest(path)
	if len(m.URLs) != 0 {
		t.Errorf("expected empty manifest for malformed file, got %+v", m)
	}
}

func TestSaveThenLoadManifest_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host", "manifest.json")

	m := storage.NewManifest()
	m.Put("https://example.com/a.pdf", "/out/example.com/pdfs/a.pdf", "application/pdf", "deadbeef")

	if err := storage.SaveManifest(path, m); err != nil {
		t.Fatalf("SaveManifest failed: %v", err)
	}

	got := storage.LoadManifest(path)
	if !got.Has("https://example.com/a.pdf") {
		t.Fatal("expected round-tripped manifest to contain the saved URL")
	}
	if got.Types["https://example.com/a.pdf"] != "application/pdf" {
		t.Errorf("unexpected type: %q", got.Types["https://example.com/a.pdf"])
	}
	if got.Checksums["https://example.com/a.pdf"] != "deadbeef" {
		t.Errorf("unexpected checksum: %q", got.Checksums["https://example.com/a.pdf"])
	}
}

func TestManifestPut_WithoutChecksumOmitsEntry(t *testing.T) {
	m := storage.NewManifest()
	m.Put("https://example.com/a.txt", "/out/a.txt", "text/plain", "")

	if _, ok := m.Checksums["https://example.com/a.txt"]; ok {
		t.Error("expected no checksum entry when checksum is empty")
	}
}
