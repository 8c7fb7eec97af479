package bookdrop

import (
	"archive/zip"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreateFileIdempotent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	file := &models.BookdropFile{
		FilePath: "/drop/new.epub",
		FileName: "new.epub",
		Format:   models.FormatEPUB,
	}
	created, err := svc.CreateFile(ctx, file)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.BookdropStatusPendingReview, created.Status)

	// Replayed notification for the same path returns the original row.
	dup, err := svc.CreateFile(ctx, &models.BookdropFile{
		FilePath: "/drop/new.epub",
		FileName: "new.epub",
		Format:   models.FormatEPUB,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, dup.ID)

	count, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteByPathPrefix(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	paths := []string{
		"/drop/series/one.epub",
		"/drop/series/two.epub",
		"/drop/series-extras/three.epub",
		"/drop/other.epub",
	}
	for _, p := range paths {
		_, err := svc.CreateFile(ctx, &models.BookdropFile{
			FilePath: p,
			FileName: filepath.Base(p),
			Format:   models.FormatEPUB,
		})
		require.NoError(t, err)
	}

	// Deleting the directory removes its subtree but not the sibling whose
	// name merely shares the prefix string.
	deleted, err := svc.DeleteByPathPrefix(ctx, "/drop/series")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := svc.ListFiles(ctx, ListFilesOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "/drop/series-extras/three.epub", remaining[0].FilePath)
	assert.Equal(t, "/drop/other.epub", remaining[1].FilePath)

	// Deleting one exact file path works too.
	deleted, err = svc.DeleteByPathPrefix(ctx, "/drop/other.epub")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestHandleUpsertCreatesPendingRecord(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	var notified int
	m := NewMonitor(svc, t.TempDir(), 10, func(pending int) { notified = pending })

	dir := t.TempDir()
	path := filepath.Join(dir, "wizard.epub")
	writeZip(t, path, map[string]string{
		"mimetype": "application/epub+zip",
		"content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>A Wizard of Earthsea</dc:title>
    <dc:creator>Ursula K. Le Guin</dc:creator>
  </metadata>
</package>`,
	})

	require.NoError(t, m.handleEvent(ctx, Event{Path: path, Kind: EventCreated}))

	rec, err := svc.RetrieveFile(ctx, RetrieveFileOptions{FilePath: &path})
	require.NoError(t, err)
	assert.Equal(t, "wizard.epub", rec.FileName)
	assert.Equal(t, models.FormatEPUB, rec.Format)
	assert.Equal(t, models.BookdropStatusPendingReview, rec.Status)
	assert.NotEmpty(t, rec.ContentHash)
	assert.Contains(t, rec.ExtractedMetadata, "A Wizard of Earthsea")
	assert.Equal(t, 1, notified)
}

func TestHandleUpsertSkipsUnknownAndMismatched(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)
	m := NewMonitor(svc, t.TempDir(), 10, nil)

	dir := t.TempDir()

	// Unknown extension: ignored outright.
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0644))
	require.NoError(t, m.handleEvent(ctx, Event{Path: notes, Kind: EventCreated}))

	// .epub extension but plain text content: mime check rejects it.
	fake := filepath.Join(dir, "fake.epub")
	require.NoError(t, os.WriteFile(fake, []byte("not a zip archive"), 0644))
	require.NoError(t, m.handleEvent(ctx, Event{Path: fake, Kind: EventCreated}))

	// Missing path: quietly skipped.
	require.NoError(t, m.handleEvent(ctx, Event{Path: filepath.Join(dir, "ghost.epub"), Kind: EventModified}))

	files, err := svc.ListFiles(ctx, ListFilesOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestHandleDeleteRemovesRecords(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	var notified int
	m := NewMonitor(svc, t.TempDir(), 10, func(pending int) { notified = pending })

	_, err := svc.CreateFile(ctx, &models.BookdropFile{
		FilePath: "/drop/gone.epub",
		FileName: "gone.epub",
		Format:   models.FormatEPUB,
	})
	require.NoError(t, err)

	require.NoError(t, m.handleEvent(ctx, Event{Path: "/drop/gone.epub", Kind: EventDeleted}))

	files, err := svc.ListFiles(ctx, ListFilesOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, 0, notified)

	// Deleting a path with no records doesn't notify again.
	notified = -1
	require.NoError(t, m.handleEvent(ctx, Event{Path: "/drop/gone.epub", Kind: EventDeleted}))
	assert.Equal(t, -1, notified)
}
