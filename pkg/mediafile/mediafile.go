// Package mediafile defines the format-neutral metadata shape that the
// per-format parsers (epub, and eventually cbz/m4b) produce.
package mediafile

import (
	"fmt"
	"strings"
)

const (
	DataSourceEPUBMetadata = "epub_metadata"
	DataSourceFilename     = "filename"
)

type ParsedMetadata struct {
	Title        string   `json:"title,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	Series       string   `json:"series,omitempty"`
	SeriesNumber *float64 `json:"series_number,omitempty"`
	Description  string   `json:"description,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	// DataSource names where this metadata came from, one of the DataSource
	// constants.
	DataSource string `json:"data_source,omitempty"`
}

func (m *ParsedMetadata) String() string {
	return fmt.Sprintf("Title:     %s\nAuthor(s): %s\nSeries:    %s\nSource:    %s",
		m.Title, strings.Join(m.Authors, ", "), m.Series, m.DataSource)
}

// FromFilename builds a last-resort metadata record from just the file name,
// used when a format parser fails or the format has no embedded metadata.
func FromFilename(fileName string) *ParsedMetadata {
	title := fileName
	if idx := strings.LastIndex(title, "."); idx > 0 {
		title = title[:idx]
	}
	title = strings.ReplaceAll(title, "_", " ")
	return &ParsedMetadata{
		Title:      strings.TrimSpace(title),
		DataSource: DataSourceFilename,
	}
}
