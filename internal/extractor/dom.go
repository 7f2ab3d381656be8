package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-harvester/internal/metadata"
	"github.com/rohmanhakim/docs-harvester/pkg/failure"
)

/*
Responsibilities
- Parse HTML into a DOM tree
- Collect PDF links, image candidates, and page links in single tree walks
- Extract readable text from the best-matching content container

Extraction is pure with respect to the parsed DOM: no network calls, no
mutation of caller state beyond the returned ExtractionResult.
*/

var styleURLRe = regexp.MustCompile(`url\s*\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// thumbToFull is the ordered table get_best_image_url applies to derive a
// full-resolution URL from a thumbnail one. Every rule is applied in order,
// each to the output of the rules before it.
var thumbToFull = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)/thumb(s|nails?)/`), "/full/"},
	{regexp.MustCompile(`(?i)/small/`), "/large/"},
	{regexp.MustCompile(`(?i)_s\.`), "_b."},
	{regexp.MustCompile(`(?i)-thumb`), ""},
	{regexp.MustCompile(`(?i)_thumb`), ""},
	{regexp.MustCompile(`(?i)/thumb/`), "/original/"},
	{regexp.MustCompile(`(?i)thumbnail`), "original"},
}

type DomExtractor struct {
	metadataSink metadata.MetadataSink
}

func NewDomExtractor(metadataSink metadata.MetadataSink) DomExtractor {
	return DomExtractor{metadataSink: metadataSink}
}

// Extract parses htmlByte and runs every extraction pass over it: PDF links,
// image candidates, page links, and readable text.
func (d *DomExtractor) Extract(
	sourceURL url.URL,
	htmlByte []byte,
) (ExtractionResult, failure.ClassifiedError) {
	result, err := d.extract(sourceURL, htmlByte)
	if err != nil {
		var extractionError *ExtractionError
		errors.As(err, &extractionError)
		d.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"DomExtractor.Extract",
			mapExtractionErrorToMetadataCause(extractionError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceURL.String()),
			},
		)
		return ExtractionResult{}, extractionError
	}
	return result, nil
}

func (d *DomExtractor) extract(sourceURL url.URL, htmlByte []byte) (ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlByte))
	if err != nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	base := sourceURL.String()
	return ExtractionResult{
		PDFURLs:   FindPDFURLs(doc, base),
		ImageURLs: FindImageURLs(doc, base),
		PageLinks: FindPageLinks(doc, base, ""),
		Text:      ExtractText(doc),
	}, nil
}

// resolveNew resolves raw against base and appends it to urls if it is new,
// rejecting fragment/mailto/javascript/data URLs the way every caller must.
func resolveNew(base string, seen map[string]bool, raw string, urls *[]string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "mailto:") ||
		strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "data:") {
		return
	}
	abs := resolveURL(base, raw)
	if abs == "" || seen[abs] {
		return
	}
	seen[abs] = true
	*urls = append(*urls, abs)
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}

// FindPDFURLs collects PDF links from a[href], object[data], embed[src],
// resolving relative URLs and deduping while preserving first-seen order.
func FindPDFURLs(doc *goquery.Document, baseURL string) []string {
	seen := make(map[string]bool)
	var urls []string

	doc.Find("a[href], object[data], embed[src]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			href, _ = s.Attr("data")
		}
		if href == "" {
			href, _ = s.Attr("src")
		}
		if href == "" {
			return
		}

		isPDF := strings.HasSuffix(strings.ToLower(href), ".pdf")
		if !isPDF {
			typ, _ := s.Attr("type")
			isPDF = strings.ToLower(strings.TrimSpace(typ)) == "application/pdf"
		}
		if !isPDF {
			return
		}
		resolveNew(baseURL, seen, href, &urls)
	})

	return urls
}

// FindImageURLs walks img/source/video/a/object/embed plus
// link[rel=preload][as=image] and inline style="background-image:url(...)"
// declarations in one pass, applying the srcset/data-attribute/src priority
// order and the <a>/<video> special cases.
func FindImageURLs(doc *goquery.Document, baseURL string) []string {
	seen := make(map[string]bool)
	var urls []string

	addFromAttr := func(val string) {
		val = strings.TrimSpace(val)
		if val == "" {
			return
		}
		if strings.Contains(val, ",") && strings.Contains(val, " ") {
			if picked := pickLargestSrcset(val, baseURL); picked != "" && !seen[picked] {
				seen[picked] = true
				urls = append(urls, picked)
			}
			return
		}
		resolveNew(baseURL, seen, val, &urls)
	}

	doc.Find("img, source, video, a, object, embed").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "img":
			if srcset, ok := s.Attr("srcset"); ok && srcset != "" {
				addFromAttr(srcset)
				return
			}
			for _, attr := range imageDataAttrs {
				if val, ok := s.Attr(attr); ok && val != "" {
					addFromAttr(val)
					return
				}
			}
			if src, ok := s.Attr("src"); ok && src != "" {
				addFromAttr(src)
			}
		case "source":
			if srcset, ok := s.Attr("srcset"); ok && srcset != "" {
				addFromAttr(srcset)
			} else if src, ok := s.Attr("src"); ok && looksLikeImage(src) {
				addFromAttr(src)
			}
		case "video":
			if poster, ok := s.Attr("poster"); ok && poster != "" {
				addFromAttr(poster)
			}
		case "a":
			href, _ := s.Attr("href")
			href = strings.TrimSpace(href)
			if href != "" && looksLikeImage(href) {
				addFromAttr(href)
			}
		case "object", "embed":
			data, _ := s.Attr("data")
			if data == "" {
				data, _ = s.Attr("src")
			}
			if data != "" && looksLikeImage(data) {
				addFromAttr(data)
			}
		}
	})

	doc.Find(`link[rel="preload"][as="image"][href]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			addFromAttr(href)
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		for _, m := range styleURLRe.FindAllStringSubmatch(style, -1) {
			candidate := strings.TrimSpace(m[1])
			if candidate != "" && !strings.HasPrefix(candidate, "data:") && looksLikeImage(candidate) {
				addFromAttr(candidate)
			}
		}
	})

	return urls
}

func pickLargestSrcset(srcset, baseURL string) string {
	type entry struct {
		url   string
		width int
	}
	var entries []entry
	for _, part := range strings.Split(srcset, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bits := strings.Fields(part)
		if len(bits) == 0 {
			continue
		}
		width := 0
		for _, b := range bits[1:] {
			if strings.HasSuffix(b, "w") {
				if w, err := strconv.Atoi(strings.TrimSuffix(b, "w")); err == nil {
					width = w
				}
				break
			}
		}
		entries = append(entries, entry{url: resolveURL(baseURL, bits[0]), width: width})
	}
	if len(entries) == 0 {
		return ""
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.width > best.width {
			best = e
		}
	}
	return best.url
}

// looksLikeImage reports whether a URL/path has a known image extension or a
// path segment suggesting a media route, for the extension-less <a>/source
// fallback cases.
func looksLikeImage(raw string) bool {
	u, err := url.Parse(raw)
	path := raw
	if err == nil {
		path = u.Path
	}
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, hint := range imagePathHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// ShouldSkipImageURL reports whether url looks like UI chrome (favicons,
// social icons) or a tracking/analytics pixel that should never be fetched.
func ShouldSkipImageURL(raw string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	lowerPath := strings.ToLower(path)
	for _, p := range skipImagePathPatterns {
		if strings.Contains(lowerPath, p) {
			return true
		}
	}
	lowerURL := strings.ToLower(raw)
	for _, s := range skipImageURLSubstrings {
		if strings.Contains(lowerURL, s) {
			return true
		}
	}
	return false
}

// GetBestImageURL applies the thumbnail-to-full-resolution regex
// substitution table, returning the original URL unchanged if no rule fires.
func GetBestImageURL(raw string) string {
	result := raw
	for _, rule := range thumbToFull {
		result = rule.pattern.ReplaceAllString(result, rule.repl)
	}
	return result
}

// FindPageLinks collects absolute http(s) links that are not themselves
// asset links (PDF/image extensions), optionally restricted to sameHost.
func FindPageLinks(doc *goquery.Document, baseURL string, sameHost string) []string {
	seen := make(map[string]bool)
	var urls []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		var candidates []string
		resolveNew(baseURL, seen, href, &candidates)
		for _, abs := range candidates {
			parsed, err := url.Parse(abs)
			if err != nil {
				continue
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				continue
			}
			lowerPath := strings.ToLower(parsed.Path)
			isAsset := false
			for _, ext := range assetLinkExtensions {
				if strings.HasSuffix(lowerPath, ext) {
					isAsset = true
					break
				}
			}
			if isAsset {
				continue
			}
			if sameHost != "" && parsed.Host != sameHost {
				continue
			}
			urls = append(urls, abs)
		}
	})

	return urls
}

// ExtractText strips noise elements and returns the text of the first
// matching semantic container (main, article, [role=main], .content,
// .article, .post-content, .entry-content), falling back to body. Blank
// lines are collapsed; output is UTF-8.
func ExtractText(doc *goquery.Document) string {
	clone := cloneDocument(doc)
	clone.Find(noiseSelector).Remove()

	var container *goquery.Selection
	for _, sel := range textContainerSelectors {
		if found := clone.Find(sel).First(); found.Length() > 0 {
			container = found
			break
		}
	}
	if container == nil {
		if body := clone.Find("body").First(); body.Length() > 0 {
			container = body
		} else {
			container = clone.Selection
		}
	}

	return normalizeText(container.Text())
}

// cloneDocument re-parses the document's HTML so noise removal doesn't
// mutate the caller's tree.
func cloneDocument(doc *goquery.Document) *goquery.Document {
	html, err := doc.Html()
	if err != nil {
		return doc
	}
	clone, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return doc
	}
	return clone
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
