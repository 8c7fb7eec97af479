package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/foliobooks/folio/pkg/books"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessScanJobIngestsNewBooks(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dir := t.TempDir()
	tc.writeFile(dir, "Earthsea_Quartet/book.epub", "epub content")
	tc.writeFile(dir, "Earthsea_Quartet/cover.jpg", "jpeg bytes")
	tc.writeFile(dir, "standalone_title.epub", "more epub content")
	library := tc.createLibrary(dir, "")

	tc.runScan(library)

	allBooks := tc.listBooks(library, false)
	require.Len(t, allBooks, 2)

	byTitle := map[string]int{}
	for i, b := range allBooks {
		byTitle[b.Title] = i
	}
	require.Contains(t, byTitle, "Earthsea Quartet")
	require.Contains(t, byTitle, "standalone title")

	grouped := allBooks[byTitle["Earthsea Quartet"]]
	require.Len(t, grouped.Files, 2)
	for _, f := range grouped.Files {
		assert.NotEmpty(t, f.InitialHash)
		assert.Equal(t, f.InitialHash, f.CurrentHash)
	}

	single := allBooks[byTitle["standalone title"]]
	require.Len(t, single.Files, 1)
	assert.True(t, single.Files[0].IsBookFormat)

	// A second scan of an unchanged tree is a no-op.
	tc.runScan(library)
	assert.Len(t, tc.listBooks(library, true), 2)
}

func TestProcessScanJobSoftDeletesAndRestores(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dir := t.TempDir()
	tc.writeFile(dir, "keeper.epub", "keeper")
	goner := tc.writeFile(dir, "goner.epub", "goner content")
	library := tc.createLibrary(dir, "")

	tc.runScan(library)
	require.Len(t, tc.listBooks(library, false), 2)

	require.NoError(t, os.Remove(goner))
	tc.runScan(library)

	live := tc.listBooks(library, false)
	require.Len(t, live, 1)
	assert.Equal(t, "keeper", live[0].Title)

	all := tc.listBooks(library, true)
	require.Len(t, all, 2)
	var deleted *int
	for _, b := range all {
		if b.Deleted() {
			deleted = &b.ID
			// The file rows survive the soft delete.
			assert.NotEmpty(t, b.Files)
		}
	}
	require.NotNil(t, deleted)

	// The file comes back: the same book is restored, not re-ingested.
	tc.writeFile(dir, "goner.epub", "goner content")
	tc.runScan(library)

	live = tc.listBooks(library, false)
	require.Len(t, live, 2)
	assert.Len(t, tc.listBooks(library, true), 2)

	restored, err := tc.bookService.RetrieveBook(tc.ctx, books.RetrieveBookOptions{ID: deleted})
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)
}

func TestProcessScanJobDeletesIndividualFiles(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dir := t.TempDir()
	tc.writeFile(dir, "dune/dune.epub", "epub")
	cover := tc.writeFile(dir, "dune/cover.jpg", "jpeg")
	library := tc.createLibrary(dir, "")

	tc.runScan(library)
	allBooks := tc.listBooks(library, false)
	require.Len(t, allBooks, 1)
	require.Len(t, allBooks[0].Files, 2)

	// The supplement disappears; the book keeps its primary file.
	require.NoError(t, os.Remove(cover))
	tc.runScan(library)

	allBooks = tc.listBooks(library, false)
	require.Len(t, allBooks, 1)
	require.Len(t, allBooks[0].Files, 1)
	assert.Equal(t, "dune.epub", allBooks[0].Files[0].FileName)
}

func TestProcessScanJobAttachesNewFormatToExistingBook(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dir := t.TempDir()
	tc.writeFile(dir, "hyperion/hyperion.epub", "epub")
	library := tc.createLibrary(dir, "epub,cbz")

	tc.runScan(library)
	require.Len(t, tc.listBooks(library, false), 1)

	// A CBZ edition lands next to the existing book.
	tc.writeFile(dir, "hyperion/hyperion.cbz", "cbz content")
	tc.runScan(library)

	allBooks := tc.listBooks(library, false)
	require.Len(t, allBooks, 1)
	require.Len(t, allBooks[0].Files, 2)
}

func TestProcessScanJobOfflineLibraryIsLeftAlone(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	parent := t.TempDir()
	dir := filepath.Join(parent, "library")
	tc.writeFile(dir, "book.epub", "content")
	library := tc.createLibrary(dir, "")

	tc.runScan(library)
	require.Len(t, tc.listBooks(library, false), 1)

	// The whole mount vanishes. Nothing gets soft-deleted.
	require.NoError(t, os.RemoveAll(dir))
	tc.runScan(library)

	allBooks := tc.listBooks(library, true)
	require.Len(t, allBooks, 1)
	assert.False(t, allBooks[0].Deleted())
}

func TestProcessScanJobTargetsSingleLibrary(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dirA := t.TempDir()
	dirB := t.TempDir()
	tc.writeFile(dirA, "a.epub", "a")
	tc.writeFile(dirB, "b.epub", "b")
	libraryA := tc.createLibrary(dirA, "")
	libraryB := tc.createLibrary(dirB, "")

	tc.runScan(libraryA)

	assert.Len(t, tc.listBooks(libraryA, true), 1)
	assert.Empty(t, tc.listBooks(libraryB, true))

	// An untargeted job picks up the rest.
	tc.runScan(nil)
	assert.Len(t, tc.listBooks(libraryB, true), 1)
}
