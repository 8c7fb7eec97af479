package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	BookdropStatusPendingReview = "pending_review"
)

// BookdropFile is a file that landed in the bookdrop inbox folder and is
// waiting for someone to review and import it into a library.
type BookdropFile struct {
	bun.BaseModel `bun:"table:bookdrop_files,alias:bd"`

	ID        string    `bun:",pk" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// FilePath is the absolute path of the dropped file. Unique: duplicate
	// filesystem notifications for the same path must not create extra rows.
	FilePath      string `bun:",nullzero" json:"file_path"`
	FileName      string `bun:",nullzero" json:"file_name"`
	Format        string `bun:",nullzero" json:"format"`
	FilesizeBytes int64  `json:"filesize_bytes"`
	ContentHash   string `json:"content_hash"`
	Status        string `bun:",nullzero" json:"status"`
	// ExtractedMetadata and FetchedMetadata are opaque JSON blobs produced by
	// the metadata extractors; the review UI renders them as-is.
	ExtractedMetadata string `json:"extracted_metadata"`
	FetchedMetadata   string `json:"fetched_metadata"`
}
