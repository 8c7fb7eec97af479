package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foliobooks/folio/pkg/books"
	"github.com/foliobooks/folio/pkg/mediafile"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/scanner"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Processor turns new scanned paths into persisted books. Files sharing a
// directory become one book; files at a library path's root become one book
// per file stem, so "dune.epub" and "dune.cbz" side by side still collapse
// into a single book.
type Processor struct {
	bookService *books.Service
}

func NewProcessor(bookService *books.Service) *Processor {
	return &Processor{bookService: bookService}
}

// SupportsSupplementaryFiles reports that ingestion handles non-book files
// (covers, sidecars, extras) by attaching them to the book sharing their
// directory. The reconciler uses this to decide whether missing supplements
// count as deleted files.
func (p *Processor) SupportsSupplementaryFiles() bool {
	return true
}

// fileFingerprint derives a cheap content fingerprint from a file's identity
// and size. Scans can't afford to hash file contents, so a size change is
// what registers as a content change.
func fileFingerprint(sf scanner.ScannedFile) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sf.Key(), sf.FilesizeBytes)))
	return hex.EncodeToString(sum[:])[:16]
}

func stem(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

// groupKey buckets a scanned file into the book it belongs to: its directory,
// or its file stem when it sits at the library path's root.
func groupKey(sf scanner.ScannedFile) string {
	if sf.SubPath == "" {
		return fmt.Sprintf("stem|%d|%s", sf.LibraryPathID, stem(sf.FileName))
	}
	return fmt.Sprintf("dir|%d|%s", sf.LibraryPathID, sf.SubPath)
}

func toBookFile(sf scanner.ScannedFile) *models.BookFile {
	fingerprint := fileFingerprint(sf)
	return &models.BookFile{
		SubPath:       sf.SubPath,
		FileName:      sf.FileName,
		Format:        sf.Format,
		IsBookFormat:  sf.IsBookFormat(),
		FilesizeBytes: sf.FilesizeBytes,
		InitialHash:   fingerprint,
		CurrentHash:   fingerprint,
	}
}

// Ingest persists the new paths a reconciliation pass produced. Files that
// belong to an already-persisted book (new formats or supplements appearing
// next to it) are attached to that book; the rest are grouped into new books.
// Groups containing only supplements and no book file are skipped.
func (p *Processor) Ingest(ctx context.Context, library *models.Library, existing []*models.Book, newPaths []scanner.ScannedFile) ([]*models.Book, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"library_id": library.ID})
	priority := library.FormatPriority()

	// Index existing live books by the directory (or root stem) their
	// primary file occupies.
	byGroup := map[string]*models.Book{}
	for _, book := range existing {
		if book.Deleted() {
			continue
		}
		file := book.PrimaryFile(priority)
		if file == nil {
			continue
		}
		byGroup[groupKey(scanner.ScannedFile{
			LibraryPathID: book.LibraryPathID,
			SubPath:       file.SubPath,
			FileName:      file.FileName,
			Format:        file.Format,
		})] = book
	}

	groups := map[string][]scanner.ScannedFile{}
	order := []string{}
	for _, sf := range newPaths {
		key := groupKey(sf)

		if book, ok := byGroup[key]; ok {
			file := toBookFile(sf)
			file.BookID = book.ID
			if err := p.bookService.CreateFile(ctx, file); err != nil {
				return nil, errors.WithStack(err)
			}
			continue
		}

		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], sf)
	}
	sort.Strings(order)

	created := []*models.Book{}
	for _, key := range order {
		group := groups[key]

		hasBookFile := false
		for _, sf := range group {
			if sf.IsBookFormat() {
				hasBookFile = true
				break
			}
		}
		if !hasBookFile {
			log.Warn("skipping supplements with no book file", logger.Data{
				"sub_path":  group[0].SubPath,
				"file_name": group[0].FileName,
			})
			continue
		}

		book := &models.Book{
			LibraryID:     library.ID,
			LibraryPathID: group[0].LibraryPathID,
			Title:         titleFor(group),
		}
		for _, sf := range group {
			book.Files = append(book.Files, toBookFile(sf))
		}

		if err := p.bookService.CreateBook(ctx, book); err != nil {
			return nil, errors.WithStack(err)
		}
		byGroup[key] = book
		created = append(created, book)
	}

	return created, nil
}

// titleFor derives a book title from its group: the directory name for
// directory-grouped books, the primary file's stem for root-level ones.
func titleFor(group []scanner.ScannedFile) string {
	if group[0].SubPath != "" {
		name := path.Base(group[0].SubPath)
		return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	}
	for _, sf := range group {
		if sf.IsBookFormat() {
			return mediafile.FromFilename(sf.FileName).Title
		}
	}
	return mediafile.FromFilename(group[0].FileName).Title
}
