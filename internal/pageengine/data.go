package pageengine

import "time"

// ImageItem pairs a discovered image URL with the full-resolution URL the
// thumbnail heuristic and schema detector derived for it, plus the content
// type a HEAD probe confirmed (when size-filtering ran).
type ImageItem struct {
	OriginalURL string
	FetchURL    string
	ContentType string
}

// TextResult carries extracted page text through to the scrape phase so it
// can be written before any asset downloads start.
type TextResult struct {
	PageURL string
	Text    string
}

// MapResult is everything map_page discovers about a single page: link
// targets for the crawl frontier, and candidate assets for the scrape
// phase. Building it never touches disk; besides the page fetch, the only
// network traffic is the optional HEAD size probes and any IIIF manifest
// fetches the schema collector makes.
type MapResult struct {
	PageLinks  []string
	PDFURLs    []string
	ImageItems []ImageItem
	Text       *TextResult
}

// ProgressKind tags a single progress callback invocation.
type ProgressKind string

const (
	ProgressTotal ProgressKind = "total"
	ProgressText  ProgressKind = "text"
	ProgressPDF   ProgressKind = "pdf"
	ProgressImage ProgressKind = "image"
	ProgressAsset ProgressKind = "asset"
)

// ProgressEvent reports one step of asset scraping. Total is sent exactly
// once at the start of scrape_assets/scrape_page with Kind=ProgressTotal;
// every completed item after that reports its own kind.
type ProgressEvent struct {
	Kind    ProgressKind
	Total   int
	Message string
}

// ProgressFunc receives progress events. A nil ProgressFunc is valid and
// simply means nobody is listening.
type ProgressFunc func(ProgressEvent)

func (p ProgressFunc) emit(event ProgressEvent) {
	if p != nil {
		p(event)
	}
}

// ScrapeStats summarizes what a single scrape_assets/scrape_page call did,
// for the caller's own per-run reporting.
type ScrapeStats struct {
	TextWritten   bool
	PDFsWritten   int
	ImagesWritten int
	Skipped       int
	Failed        int
	Duration      time.Duration
}
