package pageengine_test

import (
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
)

type testSink struct {
	errors    []string
	artifacts []string
}

func (s *testSink) RecordFetch(string, int, time.Duration, string, int, int) {}
func (s *testSink) RecordAssetFetch(string, int, time.Duration, int)         {}
func (s *testSink) RecordError(_ time.Time, _ string, _ string, _ metadata.ErrorCause, errorString string, _ []metadata.Attribute) {
	s.errors = append(s.errors, errorString)
}
func (s *testSink) RecordArtifact(_ metadata.ArtifactKind, path string, _ []metadata.Attribute) {
	s.artifacts = append(s.artifacts, path)
}
func (s *testSink) RecordFinalCrawlStats(int, int, int, time.Duration) {}
