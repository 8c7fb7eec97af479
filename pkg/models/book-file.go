package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	FormatEPUB = "epub"
	FormatCBZ  = "cbz"
	FormatM4B  = "m4b"
	// FormatNone marks a supplementary file that sits next to a book but isn't
	// a readable book format itself (covers, sidecar metadata, extras).
	FormatNone = "none"
)

// BookFormats lists every recognized book format extension (without the dot).
var BookFormats = []string{FormatEPUB, FormatCBZ, FormatM4B}

// IsBookFormat reports whether the given format string is a recognized book
// format (as opposed to FormatNone or garbage).
func IsBookFormat(format string) bool {
	for _, f := range BookFormats {
		if f == format {
			return true
		}
	}
	return false
}

type BookFile struct {
	bun.BaseModel `bun:"table:book_files,alias:bf"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	BookID    int       `bun:",nullzero" json:"book_id"`
	Book      *Book     `bun:"rel:belongs-to" json:"book,omitempty"`
	// SubPath is the directory portion of the file's location relative to the
	// owning library path, forward-slash separated, empty for the root.
	SubPath  string `json:"sub_path"`
	FileName string `bun:",nullzero" json:"file_name"`
	// Format is one of the Format constants; FormatNone for supplements.
	Format        string `bun:",nullzero" json:"format"`
	IsBookFormat  bool   `json:"is_book_format"`
	FilesizeBytes int64  `json:"filesize_bytes"`
	// InitialHash is the content fingerprint captured when the file was first
	// ingested; CurrentHash tracks the latest observed state.
	InitialHash string `json:"initial_hash"`
	CurrentHash string `json:"current_hash"`
}
