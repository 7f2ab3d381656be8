package pageengine

import (
	"context"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
)

// ScrapeParams configures a single scrape_assets/scrape_page call.
type ScrapeParams struct {
	OutDir           string
	Host             string
	Delay            time.Duration
	RequestedWorkers int
	SafeAssetWorkers int
	UseBrowser       bool
	AllowPDF         bool
	AllowImage       bool
	AllowText        bool
	RetryParam       retry.RetryParam
	Progress         ProgressFunc

	// WorkerFetcher, when set, supplies a dedicated fetcher for each asset
	// worker goroutine (e.g. spawn()'d clones so a crawl-mode caller's
	// workers don't contend over one fetcher's mutex). nil means every
	// worker shares the fetcher passed to ScrapeAssets directly.
	WorkerFetcher func(workerIndex int) fetcher.Fetcher
}

type assetWork struct {
	sourceURL   string
	fetchURL    string
	kind        storage.AssetKind
	contentType string
}

// ScrapeAssets writes a page's text (if any) and downloads every PDF/image
// the map phase found that isn't already recorded in manifest, using the
// parallelism rule effectiveAssetWorkers derives. It mutates manifest in
// place; saving it to disk is the caller's responsibility, the same way
// map_page leaves HTML fetching to the caller's fetcher instance.
func (e *PageEngine) ScrapeAssets(
	ctx context.Context,
	f fetcher.Fetcher,
	manifest *storage.Manifest,
	mapResult MapResult,
	params ScrapeParams,
) ScrapeStats {
	started := time.Now()
	stats := ScrapeStats{}

	if mapResult.Text != nil && params.AllowText {
		if e.writeText(*mapResult.Text, manifest, params) {
			stats.TextWritten = true
			params.Progress.emit(ProgressEvent{Kind: ProgressText, Message: mapResult.Text.PageURL})
		}
	}

	work := e.buildWorklist(mapResult, manifest, params)
	params.Progress.emit(ProgressEvent{Kind: ProgressTotal, Total: len(work)})

	effective := effectiveAssetWorkers(params.RequestedWorkers, params.SafeAssetWorkers, params.UseBrowser, mapResult.ImageItems, len(work))

	var manifestMu sync.Mutex
	record := func(item assetWork, ok bool) {
		if !ok {
			stats.Failed++
			return
		}
		switch item.kind {
		case storage.AssetPDF:
			stats.PDFsWritten++
			params.Progress.emit(ProgressEvent{Kind: ProgressPDF, Message: item.sourceURL})
		case storage.AssetImage:
			stats.ImagesWritten++
			params.Progress.emit(ProgressEvent{Kind: ProgressImage, Message: item.sourceURL})
		}
		params.Progress.emit(ProgressEvent{Kind: ProgressAsset, Message: item.sourceURL})
	}

	if effective <= 1 {
		for _, item := range work {
			_, ok := e.downloadAsset(ctx, f, manifest, &manifestMu, item, params)
			record(item, ok)
		}
		stats.Duration = time.Since(started)
		return stats
	}

	workCh := make(chan struct {
		item  assetWork
		index int
	}, len(work))
	for i, item := range work {
		workCh <- struct {
			item  assetWork
			index int
		}{item, i}
	}
	close(workCh)

	var wg sync.WaitGroup
	var recordMu sync.Mutex
	for w := 0; w < effective; w++ {
		wg.Add(1)
		workerIndex := w
		go func() {
			defer wg.Done()
			if d := staggerDelay(params.Delay, effective, workerIndex); d > 0 {
				time.Sleep(d)
			}
			workerFetcher := f
			if params.WorkerFetcher != nil {
				workerFetcher = params.WorkerFetcher(workerIndex)
			}
			for entry := range workCh {
				_, ok := e.downloadAsset(ctx, workerFetcher, manifest, &manifestMu, entry.item, params)
				recordMu.Lock()
				record(entry.item, ok)
				recordMu.Unlock()
			}
		}()
	}
	wg.Wait()

	stats.Duration = time.Since(started)
	return stats
}

func (e *PageEngine) writeText(text TextResult, manifest *storage.Manifest, params ScrapeParams) bool {
	writeResult, err := e.storageSink.Write(params.OutDir, params.Host, storage.AssetText, text.PageURL, "text/plain", []byte(text.Text), e.hashAlgo)
	if err != nil {
		return false
	}
	manifest.Put(text.PageURL, writeResult.Path(), "text/plain", writeResult.ContentHash())
	return true
}

// buildWorklist collects every PDF/image the map phase found that isn't
// already recorded in manifest, filtered by the caller's type allowlist.
func (e *PageEngine) buildWorklist(mapResult MapResult, manifest *storage.Manifest, params ScrapeParams) []assetWork {
	var work []assetWork
	if params.AllowPDF {
		for _, pdfURL := range mapResult.PDFURLs {
			if manifest.Has(pdfURL) {
				continue
			}
			work = append(work, assetWork{sourceURL: pdfURL, fetchURL: pdfURL, kind: storage.AssetPDF, contentType: "application/pdf"})
		}
	}
	if params.AllowImage {
		for _, item := range mapResult.ImageItems {
			if manifest.Has(item.OriginalURL) {
				continue
			}
			fetchURL := item.FetchURL
			if fetchURL == "" {
				fetchURL = item.OriginalURL
			}
			work = append(work, assetWork{
				sourceURL:   item.OriginalURL,
				fetchURL:    fetchURL,
				kind:        storage.AssetImage,
				contentType: item.ContentType,
			})
		}
	}
	return work
}

// downloadAsset checks whether a canonical copy of this asset already
// exists on disk at the size the remote host currently reports; if so it
// just records the manifest entry. Otherwise it streams the asset down via
// fetch_binary, falling back to the asset's original URL once when the
// rewritten fetch URL fails for an image.
func (e *PageEngine) downloadAsset(
	ctx context.Context,
	f fetcher.Fetcher,
	manifest *storage.Manifest,
	manifestMu *sync.Mutex,
	item assetWork,
	params ScrapeParams,
) (string, bool) {
	canonicalPath, pathErr := canonicalPathFor(params.OutDir, params.Host, item)
	if pathErr == nil {
		if info, statErr := os.Stat(canonicalPath); statErr == nil {
			if e.remoteSizeMatches(ctx, f, item.fetchURL, info.Size()) {
				manifestMu.Lock()
				manifest.Put(item.sourceURL, canonicalPath, item.contentType, "")
				manifestMu.Unlock()
				return canonicalPath, true
			}
		}
	}

	destPath, downloadErr := e.fetchBinaryAsset(ctx, f, item, params)
	if downloadErr != nil && item.kind == storage.AssetImage && item.fetchURL != item.sourceURL {
		retryItem := item
		retryItem.fetchURL = item.sourceURL
		destPath, downloadErr = e.fetchBinaryAsset(ctx, f, retryItem, params)
	}
	if downloadErr != nil {
		e.recordError("ScrapeAssets", item.sourceURL, &PageEngineError{
			Message:   downloadErr.Error(),
			Retryable: downloadErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCauseFetchFailed,
		})
		return "", false
	}

	manifestMu.Lock()
	manifest.Put(item.sourceURL, destPath, item.contentType, "")
	manifestMu.Unlock()

	e.metadataSink.RecordArtifact(artifactKindFor(item.kind), destPath, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrWritePath, destPath),
		metadata.NewAttr(metadata.AttrURL, item.sourceURL),
		metadata.NewAttr(metadata.AttrHost, params.Host),
	})
	return destPath, true
}

func (e *PageEngine) remoteSizeMatches(ctx context.Context, f fetcher.Fetcher, fetchURL string, localSize int64) bool {
	parsed, err := url.Parse(fetchURL)
	if err != nil {
		return false
	}
	_, remoteSize, headErr := f.HeadMetadata(ctx, *parsed, 0, 0)
	return headErr == nil && remoteSize >= 0 && remoteSize == localSize
}

func (e *PageEngine) fetchBinaryAsset(ctx context.Context, f fetcher.Fetcher, item assetWork, params ScrapeParams) (string, failure.ClassifiedError) {
	destPath, err := pathFor(params.OutDir, params.Host, item)
	if err != nil {
		return "", &PageEngineError{Message: err.Error(), Retryable: false, Cause: ErrCauseFetchFailed}
	}
	fetchURL, err := url.Parse(item.fetchURL)
	if err != nil {
		return "", &PageEngineError{Message: err.Error(), Retryable: false, Cause: ErrCauseFetchFailed}
	}
	if classifiedErr := f.FetchBinary(ctx, *fetchURL, destPath, 0, params.Delay, params.RetryParam); classifiedErr != nil {
		return "", classifiedErr
	}
	return destPath, nil
}

func canonicalPathFor(outDir, host string, item assetWork) (string, error) {
	switch item.kind {
	case storage.AssetPDF:
		return storage.CanonicalPathForPDF(outDir, host, item.sourceURL, item.contentType)
	default:
		return storage.CanonicalPathForImage(outDir, host, item.sourceURL, item.contentType)
	}
}

func pathFor(outDir, host string, item assetWork) (string, error) {
	switch item.kind {
	case storage.AssetPDF:
		return storage.PathForPDF(outDir, host, item.sourceURL, item.contentType)
	default:
		return storage.PathForImage(outDir, host, item.sourceURL, item.contentType)
	}
}

func artifactKindFor(kind storage.AssetKind) metadata.ArtifactKind {
	if kind == storage.AssetPDF {
		return metadata.ArtifactPDF
	}
	return metadata.ArtifactImage
}
