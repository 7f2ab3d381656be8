package schema

// ImageSchema identifies the image-storage convention a page uses.
type ImageSchema string

const (
	SchemaNYPL         ImageSchema = "nypl"
	SchemaContentDM    ImageSchema = "contentdm"
	SchemaIIIFManifest ImageSchema = "iiif_manifest"
	SchemaGenericHTML  ImageSchema = "generic_html"
)

// DetectionResult pairs a candidate schema with the detector's confidence
// that it actually applies to the page under inspection.
type DetectionResult struct {
	Schema     ImageSchema
	Confidence float64
}

// FetchManifest retrieves the raw bytes of an IIIF manifest document. The
// caller supplies this (backed by internal/fetcher) so the schema package
// stays free of network concerns.
type FetchManifest func(manifestURL string) ([]byte, error)
