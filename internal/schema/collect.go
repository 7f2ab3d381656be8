package schema

import (
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-harvester/internal/extractor"
	"github.com/rohmanhakim/docs-harvester/internal/metadata"
)

// Collector runs schema detection and the matching extraction strategy to
// assemble the full-resolution image list for a page.
type Collector struct {
	metadataSink  metadata.MetadataSink
	fetchManifest FetchManifest
}

func NewCollector(metadataSink metadata.MetadataSink, fetchManifest FetchManifest) Collector {
	return Collector{metadataSink: metadataSink, fetchManifest: fetchManifest}
}

// CollectImageURLs detects which schema(s) apply to the page and runs each
// in descending confidence order, deduplicating across schemas while
// preserving first-insertion order and dropping anything
// extractor.ShouldSkipImageURL rejects. Generic HTML always runs as a
// supplement. limit <= 0 means unlimited.
func (c Collector) CollectImageURLs(
	doc *goquery.Document,
	pageURL string,
	rawHTML string,
	limit int,
) []string {
	seen := make(map[string]bool)
	var urls []string

	add := func(u string) {
		if u == "" || extractor.ShouldSkipImageURL(u) || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, detection := range DetectImageSchemas(pageURL, doc, rawHTML) {
		switch detection.Schema {
		case SchemaContentDM:
			for _, u := range FindContentDMFullResURLs(pageURL, rawHTML) {
				add(u)
			}
		case SchemaNYPL:
			for _, u := range c.extractNYPL(pageURL, rawHTML) {
				add(u)
			}
		case SchemaIIIFManifest:
			for _, u := range c.extractIIIFManifest(doc, pageURL, rawHTML) {
				add(u)
			}
		case SchemaGenericHTML:
			for _, u := range extractor.FindImageURLs(doc, pageURL) {
				add(u)
			}
		}
	}

	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	return urls
}

func (c Collector) extractNYPL(pageURL, rawHTML string) []string {
	if c.fetchManifest != nil {
		for _, manifestURL := range FindNYPLManifestURLs(pageURL) {
			if urls := c.fetchAndParse(manifestURL); len(urls) > 0 {
				return urls
			}
		}
	}
	return FindNYPLIIIFImageURLs(rawHTML)
}

func (c Collector) extractIIIFManifest(doc *goquery.Document, pageURL, rawHTML string) []string {
	if c.fetchManifest == nil {
		return nil
	}
	var urls []string
	for _, manifestURL := range FindIIIFManifestURLs(doc, pageURL, rawHTML) {
		urls = append(urls, c.fetchAndParse(manifestURL)...)
	}
	return urls
}

func (c Collector) fetchAndParse(manifestURL string) []string {
	raw, err := c.fetchManifest(manifestURL)
	if err != nil {
		c.recordError(manifestURL, ErrCauseManifestFetchFailed, err)
		return nil
	}
	urls := ParseIIIFManifest(raw)
	if urls == nil {
		c.recordError(manifestURL, ErrCauseManifestInvalid, nil)
	}
	return urls
}

func (c Collector) recordError(manifestURL string, cause SchemaErrorCause, underlying error) {
	if c.metadataSink == nil {
		return
	}
	schemaErr := &SchemaError{ManifestURL: manifestURL, Cause: cause, Underlying: underlying}
	c.metadataSink.RecordError(
		time.Now(),
		"schema",
		"Collector.CollectImageURLs",
		mapSchemaErrorToMetadataCause(schemaErr),
		schemaErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, manifestURL),
		},
	)
}
