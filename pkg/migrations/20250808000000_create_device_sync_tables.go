package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE library_snapshots (
				id TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				completed_at DATETIME
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_library_snapshots_user ON library_snapshots(user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE snapshot_books (
				id TEXT PRIMARY KEY,
				snapshot_id TEXT NOT NULL REFERENCES library_snapshots(id) ON DELETE CASCADE,
				book_id INTEGER NOT NULL,
				file_id INTEGER NOT NULL,
				file_hash TEXT NOT NULL,
				file_size INTEGER NOT NULL,
				metadata_updated_at DATETIME NOT NULL,
				synced BOOLEAN NOT NULL DEFAULT FALSE
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_snapshot_books_snapshot ON snapshot_books(snapshot_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_snapshot_books_book ON snapshot_books(book_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// One row per book per snapshot.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_snapshot_books_snapshot_book ON snapshot_books(snapshot_id, book_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE sync_shelf_books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				UNIQUE(user_id, book_id)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_sync_shelf_books_user ON sync_shelf_books(user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE deleted_book_progress (
				id TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				book_id INTEGER NOT NULL,
				snapshot_id TEXT NOT NULL,
				progress_percent REAL,
				created_at DATETIME NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_deleted_book_progress_user ON deleted_book_progress(user_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"deleted_book_progress", "sync_shelf_books", "snapshot_books", "library_snapshots"} {
			if _, err := db.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
