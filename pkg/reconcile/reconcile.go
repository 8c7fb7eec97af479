// Package reconcile compares a library scan against persisted state and
// classifies files as new, deleted, or restored. It is pure set algebra: all
// side effects (creating books, soft-deleting, restoring) are applied by the
// caller.
package reconcile

import (
	"fmt"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/pathkey"
	"github.com/foliobooks/folio/pkg/scanner"
	"github.com/pkg/errors"
)

// Result holds the disjoint candidate sets produced by one reconciliation
// pass.
type Result struct {
	// NewPaths are scanned files with no persisted counterpart; they go to a
	// format processor for ingestion.
	NewPaths []scanner.ScannedFile
	// DeletedBooks are non-deleted books whose primary file is no longer on
	// disk; candidates for soft-deletion.
	DeletedBooks []*models.Book
	// DeletedFiles are individual file rows (additional formats, supplements)
	// no longer on disk. A book can lose a file without losing the book.
	DeletedFiles []*models.BookFile
	// RestoredBooks are soft-deleted books whose primary file reappeared;
	// candidates for clearing the soft-delete markers.
	RestoredBooks []*models.Book
}

// fileKey derives the identity key of a persisted file row from its owning
// book's library path. Must match what the scanner computes for the same file
// on disk.
func fileKey(book *models.Book, file *models.BookFile) string {
	return pathkey.Key(book.LibraryPathID, file.SubPath, file.FileName)
}

// Reconcile computes the new/deleted/restored candidate sets for one library.
// books must be the library's full persisted set, soft-deleted books
// included, with files loaded. supportsSupplements mirrors the format
// processor's capability: when false, missing supplementary file rows are
// left alone.
//
// The caller must not interleave mutations between obtaining the scan, the
// persisted set, and applying the result; the whole pass assumes one
// consistent snapshot of both.
func Reconcile(library *models.Library, scan []scanner.ScannedFile, books []*models.Book, supportsSupplements bool) (*Result, error) {
	nonDeleted := 0
	for _, b := range books {
		if !b.Deleted() {
			nonDeleted++
		}
	}

	// An existing library that suddenly scans empty almost always means the
	// storage is unmounted or offline. Fail fast instead of soft-deleting the
	// whole library.
	if nonDeleted > 0 && len(scan) == 0 {
		return nil, errcodes.StorageOffline(library.Name)
	}

	priority := library.FormatPriority()

	scanKeys := make(map[string]struct{}, len(scan))
	for _, sf := range scan {
		scanKeys[sf.Key()] = struct{}{}
	}

	// Keys already represented in the database: every file row of every book,
	// soft-deleted books included, so a restored file is handled by
	// restoration rather than re-ingested as a new path. Any duplicate here
	// means two distinct persisted rows collide on one identity, which the
	// write paths are supposed to prevent.
	knownKeys := make(map[string]struct{})
	for _, b := range books {
		for _, f := range b.Files {
			k := fileKey(b, f)
			if _, dup := knownKeys[k]; dup {
				return nil, errors.WithStack(fmt.Errorf("identity key collision on %q in library %d", k, library.ID))
			}
			knownKeys[k] = struct{}{}
		}
	}

	result := &Result{}

	// 1. New paths. Runs before any deletion/restoration classification so a
	// file that merely moved inside one scan isn't double-processed.
	for _, sf := range scan {
		if _, known := knownKeys[sf.Key()]; !known {
			result.NewPaths = append(result.NewPaths, sf)
		}
	}

	for _, b := range books {
		pf := b.PrimaryFile(priority)

		if b.Deleted() {
			// 4. Restoration: the soft-deleted book's primary file is back.
			if pf != nil {
				if _, onDisk := scanKeys[fileKey(b, pf)]; onDisk {
					result.RestoredBooks = append(result.RestoredBooks, b)
				}
			}
			continue
		}

		// 2. Deleted books: the expected primary location is gone.
		if pf != nil {
			if _, onDisk := scanKeys[fileKey(b, pf)]; !onDisk {
				result.DeletedBooks = append(result.DeletedBooks, b)
			}
		}

		// 3. Deleted files: individual rows gone from disk. Supplements only
		// count when the processor manages them.
		for _, f := range b.Files {
			if !f.IsBookFormat && !supportsSupplements {
				continue
			}
			if _, onDisk := scanKeys[fileKey(b, f)]; !onDisk {
				result.DeletedFiles = append(result.DeletedFiles, f)
			}
		}
	}

	return result, nil
}
