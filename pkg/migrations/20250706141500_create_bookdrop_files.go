package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE bookdrop_files (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				file_path TEXT NOT NULL,
				file_name TEXT NOT NULL,
				format TEXT NOT NULL,
				filesize_bytes INTEGER NOT NULL DEFAULT 0,
				content_hash TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				extracted_metadata TEXT NOT NULL DEFAULT '',
				fetched_metadata TEXT NOT NULL DEFAULT ''
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Duplicate filesystem notifications for one path must collapse into a
		// single pending row.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_bookdrop_files_file_path ON bookdrop_files (file_path)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_bookdrop_files_status ON bookdrop_files (status)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}
	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS bookdrop_files`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
