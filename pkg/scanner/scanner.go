package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/pathkey"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ScannedFile describes one file found during a library walk. It only lives
// for the duration of a single scan pass and is never persisted directly.
type ScannedFile struct {
	LibraryID     int
	LibraryPathID int
	SubPath       string
	FileName      string
	// Format is one of the models.Format constants; models.FormatNone when
	// the file is a supplement rather than a book.
	Format        string
	FilesizeBytes int64
}

// Key returns the identity key used to match this file against persisted
// records.
func (sf ScannedFile) Key() string {
	return pathkey.Key(sf.LibraryPathID, sf.SubPath, sf.FileName)
}

// IsBookFormat reports whether this file was classified as a book.
func (sf ScannedFile) IsBookFormat() bool {
	return sf.Format != models.FormatNone
}

// Housekeeping directories that operating systems and NAS appliances leave
// behind; never worth descending into.
var ignoredDirNames = map[string]struct{}{
	"$RECYCLE.BIN":              {},
	"System Volume Information": {},
	"__MACOSX":                  {},
	"@eaDir":                    {},
	"#recycle":                  {},
	"lost+found":                {},
}

func ignored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := ignoredDirNames[name]
	return ok
}

// Classify maps a file name to a book format by extension, or
// models.FormatNone when the extension isn't a recognized book format.
func Classify(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if models.IsBookFormat(ext) {
		return ext
	}
	return models.FormatNone
}

// Scan walks one library path and returns a descriptor for every relevant
// regular file. Symlinks are followed (with loop protection), hidden and
// housekeeping entries are skipped, and unreadable entries are logged and
// skipped without aborting the walk. When collectSupplements is false, files
// that aren't a recognized book format are dropped.
//
// The walk is read-only: it never mutates the filesystem or the database.
func Scan(ctx context.Context, library *models.Library, libraryPath *models.LibraryPath, collectSupplements bool) ([]ScannedFile, error) {
	log := logger.FromContext(ctx).Data(logger.Data{
		"library_id":      library.ID,
		"library_path_id": libraryPath.ID,
	})

	root, err := filepath.Abs(libraryPath.Filepath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s := &walker{
		log:                log,
		library:            library,
		libraryPath:        libraryPath,
		root:               root,
		collectSupplements: collectSupplements,
		visitedDirs:        map[string]struct{}{},
	}

	if err := s.walk(root); err != nil {
		return nil, err
	}

	return s.files, nil
}

type walker struct {
	log                logger.Logger
	library            *models.Library
	libraryPath        *models.LibraryPath
	root               string
	collectSupplements bool

	// visitedDirs holds resolved directory paths so that symlink cycles don't
	// recurse forever.
	visitedDirs map[string]struct{}
	files       []ScannedFile
}

func (w *walker) walk(dir string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.log.Warn("skipping unresolvable directory", logger.Data{"path": dir, "error": err.Error()})
		return nil
	}
	if _, seen := w.visitedDirs[resolved]; seen {
		return nil
	}
	w.visitedDirs[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Unreadable directories are skipped entirely.
		w.log.Warn("skipping unreadable directory", logger.Data{"path": dir, "error": err.Error()})
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if ignored(name) {
			continue
		}

		path := filepath.Join(dir, name)

		// Stat (not Lstat) so symlinks resolve to their targets.
		info, err := os.Stat(path)
		if err != nil {
			w.log.Warn("skipping unreadable entry", logger.Data{"path": path, "error": err.Error()})
			continue
		}

		if info.IsDir() {
			if err := w.walk(path); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		format := Classify(name)
		if format == models.FormatNone && !w.collectSupplements {
			continue
		}

		subPath, err := pathkey.SubPath(w.root, path)
		if err != nil {
			w.log.Warn("skipping file outside library path", logger.Data{"path": path, "error": err.Error()})
			continue
		}

		w.files = append(w.files, ScannedFile{
			LibraryID:     w.library.ID,
			LibraryPathID: w.libraryPath.ID,
			SubPath:       subPath,
			FileName:      name,
			Format:        format,
			FilesizeBytes: info.Size(),
		})
	}

	return nil
}
