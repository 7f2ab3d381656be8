package crawler_test

import (
	"net/url"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/robots"
)

type testSink struct{}

func (testSink) RecordFetch(string, int, time.Duration, string, int, int) {}
func (testSink) RecordAssetFetch(string, int, time.Duration, int)         {}
func (testSink) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}
func (testSink) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}
func (testSink) RecordFinalCrawlStats(int, int, int, time.Duration)                {}

// allowAllRobot lets every URL through; it's the baseline policy for tests
// that aren't exercising robots.txt enforcement itself.
type allowAllRobot struct{}

func (allowAllRobot) Decide(u url.URL) (robots.Decision, error) {
	return robots.Decision{Url: u, Allowed: true, Reason: robots.AllowedByRobots}, nil
}

// denyPathRobot disallows any URL whose path matches denyPath exactly.
type denyPathRobot struct {
	denyPath string
}

func (d denyPathRobot) Decide(u url.URL) (robots.Decision, error) {
	if u.Path == d.denyPath {
		return robots.Decision{Url: u, Allowed: false, Reason: robots.DisallowedByRobots}, nil
	}
	return robots.Decision{Url: u, Allowed: true, Reason: robots.AllowedByRobots}, nil
}
