package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID            int          `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	LibraryID     int          `bun:",nullzero" json:"library_id"`
	Library       *Library     `bun:"rel:belongs-to" json:"library,omitempty"`
	LibraryPathID int          `bun:",nullzero" json:"library_path_id"`
	LibraryPath   *LibraryPath `bun:"rel:belongs-to" json:"library_path,omitempty"`
	Title         string       `bun:",nullzero" json:"title"`
	Files         []*BookFile  `bun:"rel:has-many" json:"files,omitempty"`
	// MetadataUpdatedAt bumps whenever user-visible metadata changes; device
	// sync uses it to decide whether a book's metadata needs re-sending.
	MetadataUpdatedAt time.Time  `json:"metadata_updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the book is currently soft-deleted.
func (b *Book) Deleted() bool {
	return b.DeletedAt != nil
}

// PrimaryFile picks the file that represents this book on disk. When the
// library has a format priority list, the first file matching the earliest
// listed format wins; otherwise the first book-format file in insertion order
// does. Supplementary files never qualify. Returns nil for a shell book with
// no book-format files.
func (b *Book) PrimaryFile(priority []string) *BookFile {
	for _, format := range priority {
		for _, f := range b.Files {
			if f.IsBookFormat && f.Format == format {
				return f
			}
		}
	}
	for _, f := range b.Files {
		if f.IsBookFormat {
			return f
		}
	}
	return nil
}
