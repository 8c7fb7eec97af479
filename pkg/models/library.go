package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Library struct {
	bun.BaseModel `bun:"table:libraries,alias:l"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `bun:",nullzero" json:"name"`
	// FileFormatPriority is a comma-separated list of book formats (e.g.
	// "epub,cbz") that decides which file represents a book. Empty means
	// insertion order.
	FileFormatPriority string         `json:"file_format_priority"`
	LibraryPaths       []*LibraryPath `bun:"rel:has-many" json:"library_paths,omitempty"`
	DeletedAt          *time.Time     `json:"deleted_at,omitempty"`
}

// FormatPriority returns the parsed format priority list, or nil when the
// library uses insertion order.
func (l *Library) FormatPriority() []string {
	if l.FileFormatPriority == "" {
		return nil
	}
	parts := strings.Split(l.FileFormatPriority, ",")
	formats := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			formats = append(formats, p)
		}
	}
	return formats
}
