package worker

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/foliobooks/folio/pkg/books"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/jobs"
	"github.com/foliobooks/folio/pkg/libraries"
	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testContext struct {
	t   *testing.T
	ctx context.Context
	db  *bun.DB

	worker         *Worker
	jobService     *jobs.Service
	bookService    *books.Service
	libraryService *libraries.Service
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	cfg := &config.Config{WorkerProcesses: 1}

	return &testContext{
		t:   t,
		ctx: context.Background(),
		db:  db,

		worker:         New(cfg, db),
		jobService:     jobs.NewService(db),
		bookService:    books.NewService(db),
		libraryService: libraries.NewService(db),
	}
}

func (tc *testContext) createLibrary(dir, formatPriority string) *models.Library {
	tc.t.Helper()

	library := &models.Library{
		Name:               filepath.Base(dir),
		FileFormatPriority: formatPriority,
		LibraryPaths:       []*models.LibraryPath{{Filepath: dir}},
	}
	require.NoError(tc.t, tc.libraryService.CreateLibrary(tc.ctx, library))
	return library
}

func (tc *testContext) writeFile(dir, relPath, content string) string {
	tc.t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(relPath))
	require.NoError(tc.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tc.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runScan creates a scan job for one library (or all when library is nil) and
// processes it synchronously.
func (tc *testContext) runScan(library *models.Library) {
	tc.t.Helper()

	data := &models.JobScanData{}
	if library != nil {
		data.LibraryID = &library.ID
	}
	job := &models.Job{
		Type:       models.JobTypeScan,
		Status:     models.JobStatusPending,
		DataParsed: data,
	}
	require.NoError(tc.t, tc.jobService.CreateJob(tc.ctx, job))
	require.NoError(tc.t, tc.worker.ProcessScanJob(tc.ctx, job))
}

func (tc *testContext) listBooks(library *models.Library, includeDeleted bool) []*models.Book {
	tc.t.Helper()

	b, err := tc.bookService.ListBooks(tc.ctx, books.ListBooksOptions{
		LibraryID:      &library.ID,
		IncludeDeleted: includeDeleted,
	})
	require.NoError(tc.t, err)
	return b
}
