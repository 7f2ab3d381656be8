package storage

// AssetKind selects which output subdirectory and MIME/extension table a
// path computation uses.
type AssetKind int

const (
	AssetPDF AssetKind = iota
	AssetImage
	AssetText
)

func (k AssetKind) dirName() string {
	switch k {
	case AssetPDF:
		return "pdfs"
	case AssetImage:
		return "images"
	case AssetText:
		return "texts"
	default:
		return "misc"
	}
}

// WriteResult describes a single completed asset write.
type WriteResult struct {
	sourceURL   string
	path        string
	contentHash string
}

func NewWriteResult(sourceURL string, path string, contentHash string) WriteResult {
	return WriteResult{
		sourceURL:   sourceURL,
		path:        path,
		contentHash: contentHash,
	}
}

func (w *WriteResult) SourceURL() string {
	return w.sourceURL
}

func (w *WriteResult) Path() string {
	return w.path
}

func (w *WriteResult) ContentHash() string {
	return w.contentHash
}

// Manifest is the per-host keyed object persisted alongside downloaded
// assets. urls and types are required by spec.md §3; checksums is a
// supplement (see DESIGN.md) used only by the verify subcommand to detect
// on-disk corruption between runs -- it is never consulted to decide
// whether an asset has "already been downloaded" (canonical_path_for_*
// answers that).
type Manifest struct {
	URLs      map[string]string `json:"urls"`
	Types     map[string]string `json:"types"`
	Checksums map[string]string `json:"checksums,omitempty"`
}

func NewManifest() Manifest {
	return Manifest{
		URLs:      make(map[string]string),
		Types:     make(map[string]string),
		Checksums: make(map[string]string),
	}
}

// Put records a completed download in the manifest. checksum may be empty
// when the caller opted out of integrity hashing for this asset.
func (m *Manifest) Put(sourceURL, localPath, contentType, checksum string) {
	if m.URLs == nil {
		m.URLs = make(map[string]string)
	}
	if m.Types == nil {
		m.Types = make(map[string]string)
	}
	m.URLs[sourceURL] = localPath
	m.Types[sourceURL] = contentType
	if checksum != "" {
		if m.Checksums == nil {
			m.Checksums = make(map[string]string)
		}
		m.Checksums[sourceURL] = checksum
	}
}

// Has reports whether sourceURL has already been recorded in the manifest.
func (m *Manifest) Has(sourceURL string) bool {
	_, ok := m.URLs[sourceURL]
	return ok
}
