package worker

import (
	"testing"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupKey(t *testing.T) {
	t.Parallel()

	// Files in the same directory share a group.
	a := scanner.ScannedFile{LibraryPathID: 1, SubPath: "dune", FileName: "dune.epub", Format: models.FormatEPUB}
	b := scanner.ScannedFile{LibraryPathID: 1, SubPath: "dune", FileName: "cover.jpg", Format: models.FormatNone}
	assert.Equal(t, groupKey(a), groupKey(b))

	// Root-level files group by stem instead.
	c := scanner.ScannedFile{LibraryPathID: 1, SubPath: "", FileName: "dune.epub", Format: models.FormatEPUB}
	d := scanner.ScannedFile{LibraryPathID: 1, SubPath: "", FileName: "dune.cbz", Format: models.FormatCBZ}
	e := scanner.ScannedFile{LibraryPathID: 1, SubPath: "", FileName: "other.epub", Format: models.FormatEPUB}
	assert.Equal(t, groupKey(c), groupKey(d))
	assert.NotEqual(t, groupKey(c), groupKey(e))

	// Different library paths never share groups.
	f := scanner.ScannedFile{LibraryPathID: 2, SubPath: "dune", FileName: "dune.epub", Format: models.FormatEPUB}
	assert.NotEqual(t, groupKey(a), groupKey(f))
}

func TestFileFingerprint(t *testing.T) {
	t.Parallel()

	a := scanner.ScannedFile{LibraryPathID: 1, SubPath: "x", FileName: "a.epub", FilesizeBytes: 10}
	same := scanner.ScannedFile{LibraryPathID: 1, SubPath: "x", FileName: "a.epub", FilesizeBytes: 10}
	resized := scanner.ScannedFile{LibraryPathID: 1, SubPath: "x", FileName: "a.epub", FilesizeBytes: 11}

	assert.Len(t, fileFingerprint(a), 16)
	assert.Equal(t, fileFingerprint(a), fileFingerprint(same))
	assert.NotEqual(t, fileFingerprint(a), fileFingerprint(resized))
}

func TestIngestSkipsSupplementOnlyGroups(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dir := t.TempDir()
	library := tc.createLibrary(dir, "")
	libraryPath := library.LibraryPaths[0]

	newPaths := []scanner.ScannedFile{
		{LibraryID: library.ID, LibraryPathID: libraryPath.ID, SubPath: "artbook", FileName: "cover.jpg", Format: models.FormatNone, FilesizeBytes: 5},
	}

	created, err := tc.worker.processor.Ingest(tc.ctx, library, nil, newPaths)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, tc.listBooks(library, true))
}

func TestIngestRootStemCollapsesFormats(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	dir := t.TempDir()
	library := tc.createLibrary(dir, "epub,cbz")
	libraryPath := library.LibraryPaths[0]

	newPaths := []scanner.ScannedFile{
		{LibraryID: library.ID, LibraryPathID: libraryPath.ID, SubPath: "", FileName: "dune.cbz", Format: models.FormatCBZ, FilesizeBytes: 100},
		{LibraryID: library.ID, LibraryPathID: libraryPath.ID, SubPath: "", FileName: "dune.epub", Format: models.FormatEPUB, FilesizeBytes: 50},
	}

	created, err := tc.worker.processor.Ingest(tc.ctx, library, nil, newPaths)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "dune", created[0].Title)
	assert.Len(t, created[0].Files, 2)

	// The library's priority decides the primary file.
	primary := created[0].PrimaryFile(library.FormatPriority())
	require.NotNil(t, primary)
	assert.Equal(t, "dune.epub", primary.FileName)
}
