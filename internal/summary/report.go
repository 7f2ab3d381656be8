// Package summary builds the per-run completion report: aggregate counts
// per host, written once after the last seed finishes. It never reads
// anything back -- a pure reporting artifact with no bearing on crawl
// correctness or control flow.
package summary

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
)

// HostStats aggregates what a run wrote and failed on for one host.
type HostStats struct {
	Pages         int
	PDFs          int
	Images        int
	TextFiles     int
	ErrorsByCause map[string]int
}

// Report is the full aggregate a run produces, ready to render as
// Markdown or HTML.
type Report struct {
	GeneratedAt time.Time
	Duration    time.Duration
	TotalPages  int
	TotalErrors int
	TotalAssets int
	Hosts       map[string]*HostStats
}

// Build aggregates a Recorder's artifacts and errors into a Report.
// generatedAt is passed in rather than read from time.Now() so callers
// control the report's timestamp deterministically.
func Build(stats metadata.CrawlStats, artifacts []metadata.ArtifactRecord, errors []metadata.ErrorRecord, generatedAt time.Time) Report {
	report := Report{
		GeneratedAt: generatedAt,
		Duration:    time.Duration(stats.DurationMs) * time.Millisecond,
		TotalPages:  stats.TotalPages,
		TotalErrors: stats.TotalErrors,
		TotalAssets: stats.TotalAssets,
		Hosts:       map[string]*HostStats{},
	}

	for _, a := range artifacts {
		host := hostFor(a.Attrs)
		hs := report.hostStats(host)
		switch a.Kind {
		case metadata.ArtifactPDF:
			hs.PDFs++
		case metadata.ArtifactImage:
			hs.Images++
		case metadata.ArtifactText:
			hs.TextFiles++
			hs.Pages++
		}
	}

	for _, e := range errors {
		host := hostFor(e.Attrs())
		hs := report.hostStats(host)
		hs.ErrorsByCause[causeLabel(e.Cause())]++
	}

	return report
}

func (r *Report) hostStats(host string) *HostStats {
	hs, ok := r.Hosts[host]
	if !ok {
		hs = &HostStats{ErrorsByCause: map[string]int{}}
		r.Hosts[host] = hs
	}
	return hs
}

func hostFor(attrs []metadata.Attribute) string {
	for _, a := range attrs {
		if a.Key == metadata.AttrHost && a.Value != "" {
			return a.Value
		}
	}
	for _, a := range attrs {
		if a.Key == metadata.AttrURL {
			if parsed, err := url.Parse(a.Value); err == nil && parsed.Host != "" {
				return parsed.Host
			}
		}
	}
	return "unknown"
}

func causeLabel(cause metadata.ErrorCause) string {
	switch cause {
	case metadata.CauseNetworkFailure:
		return "network_failure"
	case metadata.CausePolicyDisallow:
		return "policy_disallow"
	case metadata.CauseContentInvalid:
		return "content_invalid"
	case metadata.CauseStorageFailure:
		return "storage_failure"
	case metadata.CauseInvariantViolation:
		return "invariant_violation"
	case metadata.CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

// Markdown renders the report as a single Markdown document.
func (r Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Crawl summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Total pages: %d\n", r.TotalPages)
	fmt.Fprintf(&b, "- Total assets: %d\n", r.TotalAssets)
	fmt.Fprintf(&b, "- Total errors: %d\n", r.TotalErrors)
	fmt.Fprintf(&b, "- Duration: %s\n\n", r.Duration)

	hosts := make([]string, 0, len(r.Hosts))
	for host := range r.Hosts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		hs := r.Hosts[host]
		fmt.Fprintf(&b, "## %s\n\n", host)
		fmt.Fprintf(&b, "| kind | count |\n")
		fmt.Fprintf(&b, "|---|---|\n")
		fmt.Fprintf(&b, "| pages | %d |\n", hs.Pages)
		fmt.Fprintf(&b, "| pdfs | %d |\n", hs.PDFs)
		fmt.Fprintf(&b, "| images | %d |\n", hs.Images)
		fmt.Fprintf(&b, "| text files | %d |\n", hs.TextFiles)
		b.WriteString("\n")

		if len(hs.ErrorsByCause) > 0 {
			fmt.Fprintf(&b, "Errors:\n\n")
			causes := make([]string, 0, len(hs.ErrorsByCause))
			for cause := range hs.ErrorsByCause {
				causes = append(causes, cause)
			}
			sort.Strings(causes)
			for _, cause := range causes {
				fmt.Fprintf(&b, "- %s: %d\n", cause, hs.ErrorsByCause[cause])
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
