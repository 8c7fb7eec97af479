package kobo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// fileContentHash returns the fingerprint recorded for a snapshot row. The
// scanner's content hash is used when available; otherwise a stable stand-in
// is derived from the file's location and size.
func fileContentHash(file *models.BookFile) string {
	if file.CurrentHash != "" {
		return file.CurrentHash
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s:%d", file.SubPath, file.FileName, file.FilesizeBytes)))
	return hex.EncodeToString(sum[:])[:16]
}

// CreateSnapshot materializes a new snapshot for the user: every non-deleted
// book on their sync shelf, in a library they can access, whose primary file
// is device-compatible under the given settings. Rows start unsynced.
func (svc *Service) CreateSnapshot(ctx context.Context, userID int, settings *config.UserConfig) (*LibrarySnapshot, error) {
	user := &models.User{}
	err := svc.db.NewSelect().
		Model(user).
		Relation("LibraryAccess").
		Where("u.id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}

	books := []*models.Book{}
	err = svc.db.NewSelect().
		Model(&books).
		Relation("Library").
		Relation("Files", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("bf.id ASC")
		}).
		Join("JOIN sync_shelf_books AS ssb ON ssb.book_id = b.id").
		Where("ssb.user_id = ?", userID).
		Where("b.deleted_at IS NULL").
		Order("b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	snapshot := &LibrarySnapshot{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
	}

	rows := []*SnapshotBook{}
	for _, book := range books {
		if !user.HasLibraryAccess(book.LibraryID) {
			continue
		}
		var priority []string
		if book.Library != nil {
			priority = book.Library.FormatPriority()
		}
		file := book.PrimaryFile(priority)
		if file == nil {
			continue
		}
		if !Compatible(file.Format, file.FilesizeBytes, settings) {
			continue
		}
		rows = append(rows, &SnapshotBook{
			ID:                uuid.New().String(),
			SnapshotID:        snapshot.ID,
			BookID:            book.ID,
			FileID:            file.ID,
			FileHash:          fileContentHash(file),
			FileSize:          file.FilesizeBytes,
			MetadataUpdatedAt: book.MetadataUpdatedAt,
			Synced:            false,
		})
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(snapshot).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		if len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		}
		completed := time.Now()
		snapshot.CompletedAt = &completed
		_, err := tx.NewUpdate().
			Model(snapshot).
			Column("completed_at").
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	snapshot.Books = rows
	return snapshot, nil
}

// RetrieveSnapshot fetches a snapshot by ID, without its book rows.
func (svc *Service) RetrieveSnapshot(ctx context.Context, id string) (*LibrarySnapshot, error) {
	snapshot := &LibrarySnapshot{}
	err := svc.db.NewSelect().
		Model(snapshot).
		Where("ls.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Snapshot")
		}
		return nil, errors.WithStack(err)
	}
	return snapshot, nil
}

// markSynced flips the synced flag for the given rows inside the caller's
// transaction, so a page is handed out at most once.
func markSynced(ctx context.Context, tx bun.Tx, page []*SnapshotBook) error {
	if len(page) == 0 {
		return nil
	}
	ids := make([]string, 0, len(page))
	for _, row := range page {
		ids = append(ids, row.ID)
	}
	_, err := tx.NewUpdate().
		Model((*SnapshotBook)(nil)).
		Set("synced = ?", true).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, row := range page {
		row.Synced = true
	}
	return nil
}

// UnsyncedPage returns the next page of undelivered rows in a snapshot and
// marks exactly those rows synced, so repeated calls walk the snapshot
// without ever repeating a row.
func (svc *Service) UnsyncedPage(ctx context.Context, snapshotID string, limit int) ([]*SnapshotBook, error) {
	var page []*SnapshotBook
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		page = []*SnapshotBook{}
		err := tx.NewSelect().
			Model(&page).
			Where("sb.snapshot_id = ?", snapshotID).
			Where("sb.synced = ?", false).
			Order("sb.book_id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		return markSynced(ctx, tx, page)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// MarkUnchangedSynced fast-forwards the current snapshot past books the
// device already holds: any book present in both snapshots with the same
// content hash is marked synced in the current one. Returns the number of
// rows flipped.
func (svc *Service) MarkUnchangedSynced(ctx context.Context, previousID, currentID string) (int, error) {
	result, err := svc.db.ExecContext(ctx, `
		UPDATE snapshot_books SET synced = TRUE
		WHERE snapshot_id = ? AND synced = FALSE
		  AND EXISTS (
		    SELECT 1 FROM snapshot_books prev
		    WHERE prev.snapshot_id = ?
		      AND prev.book_id = snapshot_books.book_id
		      AND prev.file_hash = snapshot_books.file_hash
		  )
	`, currentID, previousID)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(rowsAffected), nil
}

// AddedPage returns a page of books present in the current snapshot but not
// the previous one, marking the returned rows synced. Diffing a snapshot
// against itself yields nothing.
func (svc *Service) AddedPage(ctx context.Context, previousID, currentID string, limit int) ([]*SnapshotBook, error) {
	var page []*SnapshotBook
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		page = []*SnapshotBook{}
		err := tx.NewSelect().
			Model(&page).
			Where("sb.snapshot_id = ?", currentID).
			Where("sb.synced = ?", false).
			Where("sb.book_id NOT IN (SELECT book_id FROM snapshot_books WHERE snapshot_id = ?)", previousID).
			Order("sb.book_id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		return markSynced(ctx, tx, page)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ChangedPage returns a page of books present in both snapshots whose content
// hash differs, marking the returned current rows synced. Metadata timestamp
// differences alone do not count as a change.
func (svc *Service) ChangedPage(ctx context.Context, previousID, currentID string, limit int) ([]*SnapshotBook, error) {
	var page []*SnapshotBook
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		page = []*SnapshotBook{}
		err := tx.NewSelect().
			Model(&page).
			Where("sb.snapshot_id = ?", currentID).
			Where("sb.synced = ?", false).
			Where(`EXISTS (
				SELECT 1 FROM snapshot_books prev
				WHERE prev.snapshot_id = ?
				  AND prev.book_id = sb.book_id
				  AND prev.file_hash != sb.file_hash
			)`, previousID).
			Order("sb.book_id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		return markSynced(ctx, tx, page)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// RemovedPage returns a page of books present in the previous snapshot but
// not the current one. For each returned book a DeletedBookProgress marker is
// recorded against the current snapshot; the marker also serves as the
// cursor, so a removal is only ever reported once.
func (svc *Service) RemovedPage(ctx context.Context, previousID, currentID string, limit int) ([]*SnapshotBook, error) {
	previous, err := svc.RetrieveSnapshot(ctx, previousID)
	if err != nil {
		return nil, err
	}

	var page []*SnapshotBook
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		page = []*SnapshotBook{}
		err := tx.NewSelect().
			Model(&page).
			Where("sb.snapshot_id = ?", previousID).
			Where("sb.book_id NOT IN (SELECT book_id FROM snapshot_books WHERE snapshot_id = ?)", currentID).
			Where(`NOT EXISTS (
				SELECT 1 FROM deleted_book_progress dbp
				WHERE dbp.snapshot_id = ?
				  AND dbp.user_id = ?
				  AND dbp.book_id = sb.book_id
			)`, currentID, previous.UserID).
			Order("sb.book_id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(page) == 0 {
			return nil
		}

		now := time.Now()
		markers := make([]*DeletedBookProgress, 0, len(page))
		for _, row := range page {
			markers = append(markers, &DeletedBookProgress{
				ID:         uuid.New().String(),
				UserID:     previous.UserID,
				BookID:     row.BookID,
				SnapshotID: currentID,
				CreatedAt:  now,
			})
		}
		_, err = tx.NewInsert().Model(&markers).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// DeleteSnapshot removes a snapshot and its own book rows. Other snapshots'
// rows are untouched.
func (svc *Service) DeleteSnapshot(ctx context.Context, id string) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*SnapshotBook)(nil)).
			Where("snapshot_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		result, err := tx.NewDelete().
			Model((*LibrarySnapshot)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if rowsAffected == 0 {
			return errcodes.NotFound("Snapshot")
		}
		return nil
	})
}

// AddShelfBook puts a book on the user's sync shelf. Adding a book that is
// already shelved is a no-op.
func (svc *Service) AddShelfBook(ctx context.Context, userID, bookID int) error {
	shelfBook := &ShelfBook{
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: time.Now(),
	}
	_, err := svc.db.NewInsert().
		Model(shelfBook).
		On("CONFLICT (user_id, book_id) DO NOTHING").
		Exec(ctx)
	return errors.WithStack(err)
}

// RemoveShelfBook takes a book off the user's sync shelf.
func (svc *Service) RemoveShelfBook(ctx context.Context, userID, bookID int) error {
	_, err := svc.db.NewDelete().
		Model((*ShelfBook)(nil)).
		Where("user_id = ?", userID).
		Where("book_id = ?", bookID).
		Exec(ctx)
	return errors.WithStack(err)
}
