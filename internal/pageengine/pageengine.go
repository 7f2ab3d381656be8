package pageengine

import (
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
	"github.com/rohmanhakim/docs-harvester/pkg/hashutil"
)

/*
Responsibilities
- Turn one already-fetched-or-to-be-fetched page into a MapResult (map_page)
- Turn a MapResult's assets into files on disk plus an updated manifest
  (scrape_assets)
- Fuse both for crawl callers that want link discovery and asset downloads
  off a single page fetch (scrape_page)

PageEngine itself holds no per-page state; every method takes the fetcher,
collector, and parameters it needs so a caller can run many pages
concurrently against independent PageEngine-free call sites, or reuse one
PageEngine across an entire host.
*/

// largeIIIFMinCount is the floor under which a mostly-large-IIIF image set
// doesn't trigger the single-worker parallelism downgrade -- a handful of
// large scans isn't worth serializing a whole page's asset downloads over.
const largeIIIFMinCount = 10

type PageEngine struct {
	metadataSink metadata.MetadataSink
	storageSink  storage.Sink
	hashAlgo     hashutil.HashAlgo
}

func NewPageEngine(metadataSink metadata.MetadataSink, storageSink storage.Sink, hashAlgo hashutil.HashAlgo) PageEngine {
	return PageEngine{
		metadataSink: metadataSink,
		storageSink:  storageSink,
		hashAlgo:     hashAlgo,
	}
}

// SaveManifest persists manifest to its conventional path under outDir,
// classifying any write failure into the same PageEngineError surface as
// the rest of the package.
func (e *PageEngine) SaveManifest(outDir, host string, manifest storage.Manifest) failure.ClassifiedError {
	path := storage.ManifestPath(outDir, host)
	if storageErr := storage.SaveManifest(path, manifest); storageErr != nil {
		pageEngineErr := &PageEngineError{
			Message:   storageErr.Error(),
			Retryable: true,
			Cause:     ErrCauseManifestSave,
		}
		e.recordError("SaveManifest", path, pageEngineErr)
		return pageEngineErr
	}
	return nil
}

// isLargeIIIFImage reports whether a fetch URL looks like a full-region
// IIIF image request, the shape most likely to be a large, slow download.
func isLargeIIIFImage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "/iiif/image/") && strings.Contains(u.Path, "/full/")
}

// effectiveAssetWorkers derives how many goroutines scrape_assets/scrape_page
// should actually use:
//   - browser mode never parallelizes asset downloads: the shared browser
//     backend can only drive one navigation at a time.
//   - a worklist dominated by large IIIF images downgrades to a single
//     worker too, since those downloads are already bandwidth-bound and
//     running several at once mostly adds contention.
//   - otherwise it's whatever the caller asked for, capped by the
//     configured safety ceiling and by the size of the worklist itself.
func effectiveAssetWorkers(requested, safeAssetWorkers int, useBrowser bool, imageItems []ImageItem, workItemCount int) int {
	if workItemCount <= 0 {
		return 1
	}
	if useBrowser {
		return 1
	}

	largeCount := 0
	for _, item := range imageItems {
		if isLargeIIIFImage(item.FetchURL) {
			largeCount++
		}
	}
	if len(imageItems) > 0 && largeCount >= largeIIIFMinCount && largeCount*2 >= len(imageItems) {
		return 1
	}

	workers := requested
	if safeAssetWorkers > 0 && safeAssetWorkers < workers {
		workers = safeAssetWorkers
	}
	if workItemCount < workers {
		workers = workItemCount
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// staggerDelay spaces a worker pool's first requests out across delay
// instead of firing effective workers' worth of requests in the same
// instant. index is the worker's position, 0-based.
func staggerDelay(delay time.Duration, effective, index int) time.Duration {
	if effective <= 1 || delay <= 0 {
		return 0
	}
	return time.Duration(float64(delay) / float64(effective) * float64(index%effective))
}
