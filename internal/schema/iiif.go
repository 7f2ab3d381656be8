package schema

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	iiifManifestInlineRe = regexp.MustCompile(`(?i)manifest=([^&\s'"]+manifest\.json)`)
	iiifManifestURLRe    = regexp.MustCompile(`(?i)https?://[^\s'"<>]+manifest\.json(?:\?[^\s'"]*)?`)
	nyplIIIF3Re          = regexp.MustCompile(`(?i)(https?://iiif\.nypl\.org/iiif/3/[a-f0-9]+)/full/[^/]+/\d+/[^/]+\.(jpg|png|webp)`)
	bodleianObjectRe     = regexp.MustCompile(`(?i)digital\.bodleian\.ox\.ac\.uk/objects/([a-f0-9-]{36})`)
	archiveOrgDetailsRe  = regexp.MustCompile(`(?i)archive\.org/details/([^/?#]+)`)
	stanfordPurlRe       = regexp.MustCompile(`(?i)purl\.stanford\.edu/([a-z0-9_-]+)`)
	nyplUUIDRe           = regexp.MustCompile(`(?i)[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)
)

// FindContentDMFullResURLs derives full-resolution IIIF image URLs for a
// CONTENTdm item page: the page's own collection/id pair, plus any
// thumbnail IIIF Image API URLs already embedded in the HTML, rewritten to
// full/full/0/default.<ext>.
func FindContentDMFullResURLs(pageURL, rawHTML string) []string {
	seen := make(map[string]bool)
	var out []string

	parsed, err := url.Parse(pageURL)
	base := "https://"
	if err == nil {
		scheme := parsed.Scheme
		if scheme == "" {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, parsed.Host)
	}

	if err == nil {
		if m := contentdmItemRe.FindStringSubmatch(parsed.Path); m != nil {
			full := fmt.Sprintf("%s/digital/iiif/2/%s:%s/full/full/0/default.jpg", base, m[1], m[2])
			if !seen[full] {
				seen[full] = true
				out = append(out, full)
			}
		}
	}

	if rawHTML != "" {
		for _, m := range iiifImageAPIRe.FindAllStringSubmatch(rawHTML, -1) {
			prefix, ext := m[1], strings.ToLower(m[2])
			full := fmt.Sprintf("%s/full/full/0/default.%s", prefix, ext)
			if !seen[full] {
				seen[full] = true
				out = append(out, full)
			}
		}
	}

	return out
}

// FindNYPLManifestURLs returns the api-collections.nypl.org manifest URL
// for an NYPL item page, or nil if pageURL doesn't match that pattern.
func FindNYPLManifestURLs(pageURL string) []string {
	if !nyplItemsRe.MatchString(pageURL) {
		return nil
	}
	uuid := nyplUUIDRe.FindString(pageURL)
	if uuid == "" {
		return nil
	}
	return []string{fmt.Sprintf("https://api-collections.nypl.org/manifests/%s", uuid)}
}

// FindNYPLIIIFImageURLs extracts NYPL IIIF 3 image URLs embedded in HTML
// and rewrites their size segment to full/max (IIIF 3 uses "max", not
// "full", for the largest available size).
func FindNYPLIIIFImageURLs(rawHTML string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range nyplIIIF3Re.FindAllStringSubmatch(rawHTML, -1) {
		prefix, ext := m[1], m[2]
		full := fmt.Sprintf("%s/full/max/0/default.%s", prefix, ext)
		if !seen[full] {
			seen[full] = true
			out = append(out, full)
		}
	}
	return out
}

// FindIIIFManifestURLs collects candidate IIIF manifest URLs from iframe
// viewer embeds, anchor/embed/object attributes, any attribute whose name
// contains "manifest", and raw-HTML regex scanning, plus URL-derived
// endpoints for known aggregators (Digital Bodleian, Internet Archive,
// Stanford PURL). Absolute, deduplicated, preserving first-insertion order.
func FindIIIFManifestURLs(doc *goquery.Document, baseURL, rawHTML string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || !looksLikeManifestURL(raw) {
			return
		}
		abs := resolveAgainst(baseURL, raw)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	scanAttr := func(val string) {
		for _, m := range iiifManifestInlineRe.FindAllStringSubmatch(val, -1) {
			add(m[1])
		}
		for _, m := range iiifManifestURLRe.FindAllString(val, -1) {
			add(m)
		}
	}

	if doc != nil {
		doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			scanAttr(src)
		})
		doc.Find("a[href], embed[src], object[data]").Each(func(_ int, s *goquery.Selection) {
			attr, _ := s.Attr("href")
			if attr == "" {
				attr, _ = s.Attr("src")
			}
			if attr == "" {
				attr, _ = s.Attr("data")
			}
			scanAttr(attr)
		})
		doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			for _, a := range s.Nodes[0].Attr {
				if strings.Contains(strings.ToLower(a.Key), "manifest") && a.Val != "" {
					add(a.Val)
				}
			}
		})
	}

	if rawHTML != "" {
		scanAttr(rawHTML)
	}

	if derived := findDerivedIIIFManifestURLs(baseURL); len(derived) > 0 {
		for _, u := range derived {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}

	return out
}

// findDerivedIIIFManifestURLs derives manifest endpoints from URL shape
// alone, for JS-heavy viewers that never put the manifest URL in the
// initial HTML: manifest=/iiif-content= query or fragment parameters
// (Universal Viewer, Mirador), Digital Bodleian object pages, Internet
// Archive detail pages, and Stanford PURLs.
func findDerivedIIIFManifestURLs(pageURL string) []string {
	var out []string
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return out
	}

	for _, raw := range []string{parsed.RawQuery, strings.TrimPrefix(parsed.Fragment, "?")} {
		if raw == "" {
			continue
		}
		values, err := url.ParseQuery(raw)
		if err != nil {
			continue
		}
		for _, key := range []string{"manifest", "iiif-content", "iiif_content"} {
			for _, v := range values[key] {
				v, _ = url.QueryUnescape(v)
				if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
					out = append(out, v)
				}
			}
		}
	}

	combined := parsed.Host + parsed.Path
	if m := bodleianObjectRe.FindStringSubmatch(combined); m != nil {
		out = append(out, fmt.Sprintf("https://iiif.bodleian.ox.ac.uk/iiif/manifest/%s.json", m[1]))
	}
	if m := archiveOrgDetailsRe.FindStringSubmatch(combined); m != nil {
		out = append(out, fmt.Sprintf("https://iiif.archive.org/iiif/%s/manifest.json", m[1]))
	}
	if m := stanfordPurlRe.FindStringSubmatch(combined); m != nil {
		out = append(out, fmt.Sprintf("https://purl.stanford.edu/%s/iiif/manifest", m[1]))
	}

	return out
}

func resolveAgainst(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}

// iiifResource is the minimal shape ParseIIIFManifest needs from a IIIF v2
// image resource or v3 annotation body.
type iiifResource struct {
	ID      string      `json:"id"`
	IDAlt   string      `json:"@id"`
	Service interface{} `json:"service"`
}

func (r iiifResource) identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return r.IDAlt
}

func serviceID(svc interface{}) string {
	switch v := svc.(type) {
	case map[string]interface{}:
		if id, ok := v["@id"].(string); ok && id != "" {
			return id
		}
		if id, ok := v["id"].(string); ok {
			return id
		}
	case []interface{}:
		if len(v) > 0 {
			return serviceID(v[0])
		}
	}
	return ""
}

func imageFromResource(res iiifResource) string {
	if sid := serviceID(res.Service); sid != "" {
		return strings.TrimRight(sid, "/") + "/full/max/0/default.jpg"
	}
	id := res.identifier()
	if id == "" {
		return ""
	}
	lower := strings.ToLower(id)
	if strings.Contains(lower, "iiif") || strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".webp") {
		return toFullResIIIF(id)
	}
	return ""
}

func toFullResIIIF(u string) string {
	lower := strings.ToLower(u)
	if strings.Contains(lower, "/full/max/") || strings.Contains(lower, "/full/full/") {
		return u
	}
	if strings.Contains(lower, "/full/") && strings.Contains(lower, "iiif") {
		base := u[:strings.Index(lower, "/full/")]
		tail := "/0/default.jpg"
		if idx := strings.Index(lower, "/0/default."); idx >= 0 {
			tail = u[idx:]
		}
		return base + "/full/max" + tail
	}
	return u
}

type iiifRendering struct {
	ID    string `json:"id"`
	IDAlt string `json:"@id"`
}

func (r iiifRendering) identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return r.IDAlt
}

func bestURLFromRendering(rendering []iiifRendering) string {
	var fullFull string
	for _, r := range rendering {
		id := r.identifier()
		if id == "" {
			continue
		}
		if strings.Contains(id, "/full/max/") {
			return id
		}
		if strings.Contains(id, "/full/full/") {
			fullFull = id
		}
	}
	return fullFull
}

type iiifAnnotation struct {
	Body iiifResource `json:"body"`
}

type iiifAnnotationPage struct {
	Items []iiifAnnotation `json:"items"`
}

type iiifImageAnnotation struct {
	Resource iiifResource `json:"resource"`
}

type iiifCanvas struct {
	Type      string                 `json:"type"`
	Rendering []iiifRendering        `json:"rendering"`
	Items     []iiifAnnotationPage   `json:"items"`
	Images    []iiifImageAnnotation  `json:"images"`
}

type iiifSequenceOrCollection struct {
	Type     string            `json:"type"`
	Canvases []json.RawMessage `json:"canvases"`
	Items    []json.RawMessage `json:"items"`
}

type iiifManifestDoc struct {
	Sequences []iiifSequenceOrCollection `json:"sequences"`
	Items     []json.RawMessage          `json:"items"`
}

// ParseIIIFManifest walks a IIIF v2 (sequences/canvases/images) or v3
// (items/items/items/body) manifest and returns full-resolution image URLs
// in document order, preferring a canvas's rendering[] "Original" entry
// (NYPL-style) when present.
func ParseIIIFManifest(raw []byte) []string {
	var doc iiifManifestDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	walkCanvas := func(c iiifCanvas) {
		if u := bestURLFromRendering(c.Rendering); u != "" {
			add(u)
			return
		}
		for _, page := range c.Items {
			for _, ann := range page.Items {
				if u := imageFromResource(ann.Body); u != "" {
					add(u)
					return
				}
			}
		}
		for _, img := range c.Images {
			if u := imageFromResource(img.Resource); u != "" {
				add(u)
			}
		}
	}

	things := doc.Sequences
	if len(things) == 0 && len(doc.Items) > 0 {
		// v3 top-level items are canvases directly.
		for _, raw := range doc.Items {
			var c iiifCanvas
			if err := json.Unmarshal(raw, &c); err == nil {
				walkCanvas(c)
			}
		}
		return out
	}

	for _, thing := range things {
		if thing.Type == "Canvas" {
			continue
		}
		for _, raw := range thing.Canvases {
			var c iiifCanvas
			if err := json.Unmarshal(raw, &c); err == nil {
				walkCanvas(c)
			}
		}
		for _, raw := range thing.Items {
			var c iiifCanvas
			if err := json.Unmarshal(raw, &c); err == nil {
				walkCanvas(c)
			}
		}
	}

	return out
}
