package schema

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	contentdmItemRe = regexp.MustCompile(`(?i)/digital/collection/([^/?#]+)/id/(\d+)`)
	iiifImageAPIRe  = regexp.MustCompile(`(?i)(https?://[^/]+/digital/iiif/2/[^/]+)/full/[^/]+/\d+/[^/]+\.(jpg|png|webp)`)
	nyplItemsRe     = regexp.MustCompile(`(?i)^https?://(www\.)?digitalcollections\.nypl\.org/items/[a-f0-9-]{36}`)
)

// DetectImageSchemas classifies pageURL/doc/htmlStr against every known
// schema and returns results in descending confidence order. Generic HTML
// always appears last as the universal fallback.
func DetectImageSchemas(pageURL string, doc *goquery.Document, htmlStr string) []DetectionResult {
	var results []DetectionResult
	isNYPL := nyplItemsRe.MatchString(pageURL)

	if isNYPL {
		results = append(results, DetectionResult{Schema: SchemaNYPL, Confidence: 1.0})
	}

	switch {
	case contentdmItemRe.MatchString(pageURL):
		results = append(results, DetectionResult{Schema: SchemaContentDM, Confidence: 0.95})
	case htmlStr != "" && iiifImageAPIRe.MatchString(htmlStr):
		results = append(results, DetectionResult{Schema: SchemaContentDM, Confidence: 0.8})
	}

	if !isNYPL {
		if len(FindIIIFManifestURLs(doc, pageURL, htmlStr)) > 0 {
			results = append(results, DetectionResult{Schema: SchemaIIIFManifest, Confidence: 0.9})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	results = append(results, DetectionResult{Schema: SchemaGenericHTML, Confidence: 0.5})
	return results
}

// looksLikeManifestURL filters out viewer URLs (uv.html#?manifest=...,
// Mirador config pages) that merely reference a manifest rather than being
// one.
func looksLikeManifestURL(u string) bool {
	lower := strings.ToLower(u)
	if !strings.Contains(lower, "/manifest.json") {
		return false
	}
	if strings.Contains(lower, "uv.html") || strings.Contains(lower, "mirador") {
		return false
	}
	return true
}
