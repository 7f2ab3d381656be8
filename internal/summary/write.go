package summary

import (
	"os"
	"path/filepath"

	"github.com/gomarkdown/markdown"
)

const (
	markdownFileName = "summary.md"
	htmlFileName     = "summary.html"
)

// WriteFiles renders the report to <outDir>/summary.md and
// <outDir>/summary.html, overwriting any prior run's summary.
func (r Report) WriteFiles(outDir string) error {
	md := r.Markdown()

	if err := os.WriteFile(filepath.Join(outDir, markdownFileName), []byte(md), 0644); err != nil {
		return err
	}

	html := markdown.ToHTML([]byte(md), nil, nil)
	return os.WriteFile(filepath.Join(outDir, htmlFileName), html, 0644)
}
