package schema_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, htmlSrc string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	require.NoError(t, err)
	return doc
}

func TestDetectImageSchemas_NYPL(t *testing.T) {
	url := "https://digitalcollections.nypl.org/items/510d47e3-0d3c-a3d9-e040-e00a18064a99"
	results := schema.DetectImageSchemas(url, mustDoc(t, "<html></html>"), "")
	require.NotEmpty(t, results)
	assert.Equal(t, schema.SchemaNYPL, results[0].Schema)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.Equal(t, schema.SchemaGenericHTML, results[len(results)-1].Schema)
}

func TestDetectImageSchemas_ContentDMByURL(t *testing.T) {
	url := "https://example.contentdm.oclc.org/digital/collection/coll1/id/42"
	results := schema.DetectImageSchemas(url, mustDoc(t, "<html></html>"), "")
	assert.Equal(t, schema.SchemaContentDM, results[0].Schema)
	assert.Equal(t, 0.95, results[0].Confidence)
}

func TestDetectImageSchemas_ContentDMByEmbeddedIIIF(t *testing.T) {
	html := `<img src="https://example.com/digital/iiif/2/coll:1/full/200,/0/default.jpg">`
	results := schema.DetectImageSchemas("https://example.com/viewer", mustDoc(t, html), html)
	assert.Equal(t, schema.SchemaContentDM, results[0].Schema)
	assert.Equal(t, 0.8, results[0].Confidence)
}

func TestDetectImageSchemas_GenericOnly(t *testing.T) {
	results := schema.DetectImageSchemas("https://example.com/page", mustDoc(t, "<html><body><p>hi</p></body></html>"), "")
	require.Len(t, results, 1)
	assert.Equal(t, schema.SchemaGenericHTML, results[0].Schema)
}

func TestFindContentDMFullResURLs_FromItemPage(t *testing.T) {
	urls := schema.FindContentDMFullResURLs("https://example.contentdm.oclc.org/digital/collection/coll1/id/42", "")
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.contentdm.oclc.org/digital/iiif/2/coll1:42/full/full/0/default.jpg", urls[0])
}

func TestFindNYPLManifestURLs(t *testing.T) {
	urls := schema.FindNYPLManifestURLs("https://digitalcollections.nypl.org/items/510d47e3-0d3c-a3d9-e040-e00a18064a99")
	require.Len(t, urls, 1)
	assert.Equal(t, "https://api-collections.nypl.org/manifests/510d47e3-0d3c-a3d9-e040-e00a18064a99", urls[0])
}

func TestFindIIIFManifestURLs_FromIframe(t *testing.T) {
	html := `<iframe src="https://viewer.library.wales/uv.html#?manifest=https://example.com/iiif/book1/manifest.json"></iframe>`
	urls := schema.FindIIIFManifestURLs(mustDoc(t, html), "https://example.com/page", html)
	assert.Contains(t, urls, "https://example.com/iiif/book1/manifest.json")
}

func TestFindIIIFManifestURLs_DerivedBodleian(t *testing.T) {
	pageURL := "https://digital.bodleian.ox.ac.uk/objects/12345678-1234-1234-1234-123456789012/"
	urls := schema.FindIIIFManifestURLs(mustDoc(t, "<html></html>"), pageURL, "")
	assert.Contains(t, urls, "https://iiif.bodleian.ox.ac.uk/iiif/manifest/12345678-1234-1234-1234-123456789012.json")
}
