package storage

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var nonHostChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeHost extracts the netloc of rawURL and replaces any character
// outside word/dot/dash with an underscore. An unparseable or hostless URL
// sanitizes to "unknown".
func SanitizeHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	host := u.Hostname()
	if host == "" {
		return "unknown"
	}
	slug := nonHostChar.ReplaceAllString(host, "_")
	if slug == "" {
		return "unknown"
	}
	return slug
}

var pdfExtByType = map[string]string{
	"application/pdf": "pdf",
}

var imageExtByType = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/tiff":    "tiff",
	"image/bmp":     "bmp",
	"image/svg+xml": "svg",
}

var textExtByType = map[string]string{
	"text/plain": "txt",
	"text/html":  "html",
}

// iiifCanvasID matches the IIIF Image API path shape
// /image/{ident}/.../full/... and captures ident.
var iiifCanvasID = regexp.MustCompile(`/image/([^/]+)/.*/full/`)
var iiifIdentDigits = regexp.MustCompile(`^[0-9]+$`)
var iiifIdentHex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// PathForPDF returns an absolute, unique path for a PDF fetched from
// sourceURL, under outDir/<host>/pdfs/.
func PathForPDF(outDir, host, sourceURL, contentType string) (string, error) {
	return pathFor(outDir, host, AssetPDF, sourceURL, contentType, true)
}

// PathForImage returns an absolute, unique path for an image fetched from
// sourceURL, under outDir/<host>/images/.
func PathForImage(outDir, host, sourceURL, contentType string) (string, error) {
	return pathFor(outDir, host, AssetImage, sourceURL, contentType, true)
}

// PathForText returns an absolute, unique path for extracted page text,
// under outDir/<host>/texts/.
func PathForText(outDir, host, sourceURL, contentType string) (string, error) {
	return pathFor(outDir, host, AssetText, sourceURL, contentType, true)
}

// CanonicalPathForPDF is PathForPDF without uniqueness suffixing, used to
// detect "we already downloaded this" before fetching.
func CanonicalPathForPDF(outDir, host, sourceURL, contentType string) (string, error) {
	return pathFor(outDir, host, AssetPDF, sourceURL, contentType, false)
}

// CanonicalPathForImage is PathForImage without uniqueness suffixing.
func CanonicalPathForImage(outDir, host, sourceURL, contentType string) (string, error) {
	return pathFor(outDir, host, AssetImage, sourceURL, contentType, false)
}

// CanonicalPathForText is PathForText without uniqueness suffixing.
func CanonicalPathForText(outDir, host, sourceURL, contentType string) (string, error) {
	return pathFor(outDir, host, AssetText, sourceURL, contentType, false)
}

func pathFor(outDir, host string, kind AssetKind, sourceURL, contentType string, unique bool) (string, error) {
	ext := extensionFor(kind, sourceURL, contentType)
	base := basenameFor(sourceURL, ext)
	dir := filepath.Join(outDir, host, kind.dirName())

	candidate := filepath.Join(dir, base+"."+ext)
	if !unique {
		return candidate, nil
	}

	stem := base
	for i := 0; ; i++ {
		if i > 0 {
			candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(i)+"."+ext)
		}
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
}

// basenameFor derives the local filename stem from a source URL. It applies
// the IIIF canvas-collision rule before falling back to the last path
// segment, sanitized the same way as a host.
func basenameFor(sourceURL, ext string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "asset"
	}

	if m := iiifCanvasID.FindStringSubmatch(u.Path); m != nil {
		ident := m[1]
		if iiifIdentDigits.MatchString(ident) || iiifIdentHex.MatchString(ident) {
			last := lastSegment(u.Path)
			last = strings.TrimSuffix(last, "."+ext)
			return sanitizeSegment(ident) + "_" + sanitizeSegment(last)
		}
	}

	last := lastSegment(u.Path)
	if last == "" {
		last = "index"
	}
	last = strings.TrimSuffix(last, "."+ext)
	return sanitizeSegment(last)
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx == -1 {
		return p
	}
	return p[idx+1:]
}

func sanitizeSegment(s string) string {
	slug := nonHostChar.ReplaceAllString(s, "_")
	if slug == "" {
		return "asset"
	}
	return slug
}

// extensionFor picks the output file extension in order: explicit MIME
// mapping, URL path extension, then "bin".
func extensionFor(kind AssetKind, sourceURL, contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	var table map[string]string
	switch kind {
	case AssetPDF:
		table = pdfExtByType
	case AssetImage:
		table = imageExtByType
	case AssetText:
		table = textExtByType
	}
	if ext, ok := table[contentType]; ok {
		return ext
	}

	if u, err := url.Parse(sourceURL); err == nil {
		if ext := strings.TrimPrefix(filepath.Ext(u.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	return "bin"
}
