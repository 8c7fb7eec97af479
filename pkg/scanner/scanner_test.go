package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func scanKeys(t *testing.T, files []ScannedFile) []string {
	t.Helper()
	keys := make([]string, len(files))
	for i, f := range files {
		keys[i] = f.Key()
	}
	sort.Strings(keys)
	return keys
}

func testLibrary(root string) (*models.Library, *models.LibraryPath) {
	library := &models.Library{ID: 1, Name: "Test"}
	libraryPath := &models.LibraryPath{ID: 10, LibraryID: 1, Filepath: root}
	return library, libraryPath
}

func TestScanClassifiesByExtension(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.epub"), 10)
	writeFile(t, filepath.Join(root, "sub", "b.cbz"), 20)
	writeFile(t, filepath.Join(root, "sub", "deep", "c.m4b"), 30)
	writeFile(t, filepath.Join(root, "sub", "notes.txt"), 5)

	library, libraryPath := testLibrary(root)
	files, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)

	byName := map[string]ScannedFile{}
	for _, f := range files {
		byName[f.FileName] = f
	}
	require.Len(t, byName, 4)

	assert.Equal(t, models.FormatEPUB, byName["a.epub"].Format)
	assert.Equal(t, "", byName["a.epub"].SubPath)
	assert.Equal(t, int64(10), byName["a.epub"].FilesizeBytes)

	assert.Equal(t, models.FormatCBZ, byName["b.cbz"].Format)
	assert.Equal(t, "sub", byName["b.cbz"].SubPath)

	assert.Equal(t, models.FormatM4B, byName["c.m4b"].Format)
	assert.Equal(t, "sub/deep", byName["c.m4b"].SubPath)

	assert.Equal(t, models.FormatNone, byName["notes.txt"].Format)
	assert.False(t, byName["notes.txt"].IsBookFormat())
}

func TestScanSkipsSupplementsWhenUnsupported(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.epub"), 10)
	writeFile(t, filepath.Join(root, "cover.jpg"), 10)
	writeFile(t, filepath.Join(root, "metadata.opf"), 10)

	library, libraryPath := testLibrary(root)
	files, err := Scan(context.Background(), library, libraryPath, false)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "a.epub", files[0].FileName)
}

func TestScanIgnoresHiddenAndHousekeeping(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.epub"), 10)
	writeFile(t, filepath.Join(root, ".hidden.epub"), 10)
	writeFile(t, filepath.Join(root, ".git", "b.epub"), 10)
	writeFile(t, filepath.Join(root, "$RECYCLE.BIN", "c.epub"), 10)
	writeFile(t, filepath.Join(root, "@eaDir", "d.epub"), 10)
	writeFile(t, filepath.Join(root, "System Volume Information", "e.epub"), 10)

	library, libraryPath := testLibrary(root)
	files, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "a.epub", files[0].FileName)
}

func TestScanFollowsSymlinkedDirectories(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}

	root := t.TempDir()
	external := t.TempDir()
	writeFile(t, filepath.Join(external, "linked.epub"), 10)
	require.NoError(t, os.Symlink(external, filepath.Join(root, "linked")))
	writeFile(t, filepath.Join(root, "a.epub"), 10)

	library, libraryPath := testLibrary(root)
	files, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.FileName
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.epub", "linked.epub"}, names)
}

func TestScanSurvivesSymlinkLoops(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "a.epub"), 10)
	// sub/loop points back at the root.
	require.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop")))

	library, libraryPath := testLibrary(root)
	files, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "a.epub", files[0].FileName)
}

func TestScanIsDeterministic(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.epub"), 10)
	writeFile(t, filepath.Join(root, "sub", "b.cbz"), 20)
	writeFile(t, filepath.Join(root, "sub", "c.txt"), 5)

	library, libraryPath := testLibrary(root)

	first, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)
	second, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)

	assert.Equal(t, scanKeys(t, first), scanKeys(t, second))
}

func TestScanEmptyLibraryPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	library, libraryPath := testLibrary(root)
	files, err := Scan(context.Background(), library, libraryPath, true)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fileName string
		expected string
	}{
		{"a.epub", models.FormatEPUB},
		{"a.EPUB", models.FormatEPUB},
		{"b.cbz", models.FormatCBZ},
		{"c.m4b", models.FormatM4B},
		{"cover.jpg", models.FormatNone},
		{"noext", models.FormatNone},
		{"archive.epub.bak", models.FormatNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.fileName), tt.fileName)
	}
}
