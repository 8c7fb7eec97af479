package kobo

import (
	"time"

	"github.com/uptrace/bun"
)

// LibrarySnapshot is an immutable, point-in-time record of the books a user's
// device should hold. Devices sync by paging through a snapshot's rows and by
// diffing two snapshots against each other; the rows themselves never change
// after the snapshot completes, only their synced flags do.
type LibrarySnapshot struct {
	bun.BaseModel `bun:"table:library_snapshots,alias:ls"`

	ID          string     `bun:"id,pk" json:"id"`
	UserID      int        `bun:"user_id,notnull" json:"user_id"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
	CompletedAt *time.Time `bun:"completed_at" json:"completed_at"`

	Books []*SnapshotBook `bun:"rel:has-many,join:id=snapshot_id" json:"books,omitempty"`
}

// SnapshotBook is one book as it existed when its snapshot was taken: which
// file represented it, the file's content fingerprint and size, and the
// metadata timestamp. Synced tracks whether this row has been delivered to
// the device yet.
type SnapshotBook struct {
	bun.BaseModel `bun:"table:snapshot_books,alias:sb"`

	ID                string    `bun:"id,pk" json:"id"`
	SnapshotID        string    `bun:"snapshot_id,notnull" json:"snapshot_id"`
	BookID            int       `bun:"book_id,notnull" json:"book_id"`
	FileID            int       `bun:"file_id,notnull" json:"file_id"`
	FileHash          string    `bun:"file_hash,notnull" json:"file_hash"`
	FileSize          int64     `bun:"file_size,notnull" json:"file_size"`
	MetadataUpdatedAt time.Time `bun:"metadata_updated_at,notnull" json:"metadata_updated_at"`
	Synced            bool      `bun:"synced,notnull" json:"synced"`
}

// ShelfBook marks a book as belonging to a user's sync shelf. Only shelved
// books are considered when a snapshot is created.
type ShelfBook struct {
	bun.BaseModel `bun:"table:sync_shelf_books,alias:ssb"`

	ID        int       `bun:"id,pk,nullzero" json:"id"`
	UserID    int       `bun:"user_id,notnull" json:"user_id"`
	BookID    int       `bun:"book_id,notnull" json:"book_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// DeletedBookProgress is written when a removed book is reported to a device,
// preserving a marker (and, when known, the last reading position) for a book
// the device is about to drop. It doubles as the paging cursor for removals:
// a removed book is only reported until its marker exists.
type DeletedBookProgress struct {
	bun.BaseModel `bun:"table:deleted_book_progress,alias:dbp"`

	ID              string    `bun:"id,pk" json:"id"`
	UserID          int       `bun:"user_id,notnull" json:"user_id"`
	BookID          int       `bun:"book_id,notnull" json:"book_id"`
	SnapshotID      string    `bun:"snapshot_id,notnull" json:"snapshot_id"`
	ProgressPercent *float64  `bun:"progress_percent" json:"progress_percent"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}
