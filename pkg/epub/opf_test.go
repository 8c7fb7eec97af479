package epub

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>A Wizard of Earthsea</dc:title>
    <dc:creator id="creator01">Ursula K. Le Guin</dc:creator>
    <dc:publisher>Parnassus Press</dc:publisher>
    <dc:description>The first book of Earthsea.</dc:description>
    <meta refines="#creator01" property="role">aut</meta>
    <meta name="calibre:series" content="Earthsea Cycle"/>
    <meta name="calibre:series_index" content="1"/>
  </metadata>
</package>`

const multiTitleOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="t1">The Tombs of Atuan</dc:title>
    <dc:title id="t2">Earthsea 2</dc:title>
    <dc:creator>Ursula K. Le Guin</dc:creator>
    <meta refines="#t1" property="title-type">main</meta>
    <meta refines="#t2" property="title-type">collection</meta>
  </metadata>
</package>`

func TestParseOPF(t *testing.T) {
	t.Parallel()

	md, err := ParseOPF(strings.NewReader(sampleOPF))
	require.NoError(t, err)

	assert.Equal(t, "A Wizard of Earthsea", md.Title)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, md.Authors)
	assert.Equal(t, "Earthsea Cycle", md.Series)
	require.NotNil(t, md.SeriesNumber)
	assert.Equal(t, 1.0, *md.SeriesNumber)
	assert.Equal(t, "Parnassus Press", md.Publisher)
	assert.Equal(t, "The first book of Earthsea.", md.Description)
}

func TestParseOPFMainTitle(t *testing.T) {
	t.Parallel()

	md, err := ParseOPF(strings.NewReader(multiTitleOPF))
	require.NoError(t, err)
	assert.Equal(t, "The Tombs of Atuan", md.Title)
	// Sole creator counts as the author even without a role refinement.
	assert.Equal(t, []string{"Ursula K. Le Guin"}, md.Authors)
}

func writeEPUB(t *testing.T, path string, files map[string]string) {
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

func TestParse(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wizard.epub")
	writeEPUB(t, path, map[string]string{
		"mimetype":            "application/epub+zip",
		"OEBPS/content.opf":   sampleOPF,
		"OEBPS/chapter1.html": "<html></html>",
	})

	md, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "A Wizard of Earthsea", md.Title)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, md.Authors)
}

func TestParseNoOPF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.epub")
	writeEPUB(t, path, map[string]string{
		"mimetype": "application/epub+zip",
	})

	_, err := Parse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no opf file found")
}
