package pageengine

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-harvester/internal/extractor"
	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
)

// MapParams configures a single map_page call.
type MapParams struct {
	PageURL      url.URL
	CrawlDepth   int
	RetryParam   retry.RetryParam
	MaxPDFs      int
	ImageLimit   int
	HeadWorkers  int
	MinImageSize int64 // <= 0 means unbounded
	MaxImageSize int64 // <= 0 means unbounded
	ExtractText  bool
	UseBrowser   bool
	SameHost     string // restricts PageLinks when non-empty
}

// MapPage fetches a page once and runs every discovery pass over it: page
// links for the crawl frontier, PDF links, schema-aware image discovery
// (with optional HEAD size-filtering), and readable text. It never writes
// anything to disk -- that's scrape_assets/scrape_page's job.
func (e *PageEngine) MapPage(
	ctx context.Context,
	f fetcher.Fetcher,
	collector schema.Collector,
	params MapParams,
) (MapResult, failure.ClassifiedError) {
	fetchResult, err := f.Fetch(ctx, params.CrawlDepth, params.PageURL, params.RetryParam)
	if err != nil {
		return MapResult{}, err
	}

	doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(fetchResult.Body()))
	if parseErr != nil {
		pageEngineErr := &PageEngineError{
			Message:   parseErr.Error(),
			Retryable: false,
			Cause:     ErrCauseParseFailed,
		}
		e.recordError("MapPage", params.PageURL.String(), pageEngineErr)
		return MapResult{}, pageEngineErr
	}

	pageURLString := params.PageURL.String()
	rawHTML := string(fetchResult.Body())

	pageLinks := extractor.FindPageLinks(doc, pageURLString, params.SameHost)
	pdfURLs := extractor.FindPDFURLs(doc, pageURLString)
	if params.MaxPDFs > 0 && len(pdfURLs) > params.MaxPDFs {
		pdfURLs = pdfURLs[:params.MaxPDFs]
	}

	imageCandidates := collector.CollectImageURLs(doc, pageURLString, rawHTML, params.ImageLimit)
	imageItems := e.buildImageItems(ctx, f, imageCandidates, params)

	result := MapResult{
		PageLinks:  pageLinks,
		PDFURLs:    pdfURLs,
		ImageItems: imageItems,
	}

	if params.ExtractText {
		if text := extractor.ExtractText(doc); strings.TrimSpace(text) != "" {
			result.Text = &TextResult{PageURL: pageURLString, Text: text}
		}
	}

	return result, nil
}

// buildImageItems resolves each candidate image URL's best-resolution
// variant and, when a HEAD pass is worth running, its content type and
// size. A HEAD pass only runs with more than a handful of candidates and
// more than one usable worker -- browser mode always collapses to one,
// since the shared browser backend can't drive concurrent navigations.
func (e *PageEngine) buildImageItems(
	ctx context.Context,
	f fetcher.Fetcher,
	candidates []string,
	params MapParams,
) []ImageItem {
	items := make([]ImageItem, len(candidates))
	for i, raw := range candidates {
		items[i] = ImageItem{OriginalURL: raw, FetchURL: extractor.GetBestImageURL(raw)}
	}

	headWorkers := params.HeadWorkers
	if params.UseBrowser {
		headWorkers = 1
	}
	if headWorkers <= 1 || len(items) <= 4 {
		return items
	}

	sem := make(chan struct{}, headWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var filtered []ImageItem

	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item ImageItem) {
			defer wg.Done()
			defer func() { <-sem }()

			resolved, keep := e.headFilterImage(ctx, f, item, params)
			if !keep {
				return
			}
			mu.Lock()
			filtered = append(filtered, resolved)
			mu.Unlock()
		}(item)
	}
	wg.Wait()
	return filtered
}

// headFilterImage confirms one image item's content type and size via a
// HEAD request, falling back to the original URL when the rewritten
// full-resolution guess turns out not to be an image at all.
func (e *PageEngine) headFilterImage(ctx context.Context, f fetcher.Fetcher, item ImageItem, params MapParams) (ImageItem, bool) {
	fetchURL, err := url.Parse(item.FetchURL)
	if err != nil {
		return item, true
	}

	contentType, size, headErr := f.HeadMetadata(ctx, *fetchURL, 0, 0)
	if headErr != nil || !strings.HasPrefix(contentType, "image/") {
		if item.FetchURL != item.OriginalURL {
			if originalURL, parseErr := url.Parse(item.OriginalURL); parseErr == nil {
				contentType, size, headErr = f.HeadMetadata(ctx, *originalURL, 0, 0)
				if headErr == nil && strings.HasPrefix(contentType, "image/") {
					item.FetchURL = item.OriginalURL
				}
			}
		}
	}
	if headErr != nil {
		return item, true
	}

	item.ContentType = contentType
	if size >= 0 {
		if params.MinImageSize > 0 && size < params.MinImageSize {
			return item, false
		}
		if params.MaxImageSize > 0 && size > params.MaxImageSize {
			return item, false
		}
	}
	return item, true
}

func (e *PageEngine) recordError(action, subjectURL string, err *PageEngineError) {
	if e.metadataSink == nil {
		return
	}
	e.metadataSink.RecordError(
		time.Now(),
		"pageengine",
		action,
		mapPageEngineErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, subjectURL)},
	)
}
