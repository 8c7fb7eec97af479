package worker

import (
	"context"

	"github.com/foliobooks/folio/pkg/books"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/libraries"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/foliobooks/folio/pkg/reconcile"
	"github.com/foliobooks/folio/pkg/scanner"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ProcessScanJob scans the targeted library (or every library when the job
// has no target), reconciles the scan against persisted state, and applies
// the result: new paths are ingested, vanished books soft-deleted, vanished
// files removed, and reappeared books restored.
func (w *Worker) ProcessScanJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)

	if job.DataParsed == nil {
		if err := job.UnmarshalData(); err != nil {
			return err
		}
	}
	data, ok := job.DataParsed.(*models.JobScanData)
	if !ok {
		return errors.New("unexpected payload for scan job")
	}

	var libs []*models.Library
	if data.LibraryID != nil {
		library, err := w.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: data.LibraryID})
		if err != nil {
			return err
		}
		libs = []*models.Library{library}
	} else {
		var err error
		libs, err = w.libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
		if err != nil {
			return err
		}
	}

	for _, library := range libs {
		if err := w.scanLibrary(ctx, library); err != nil {
			// One broken library shouldn't stop the others from scanning.
			log.Err(err).Error("scan library error", logger.Data{"library_id": library.ID})
		}
	}

	return nil
}

func (w *Worker) scanLibrary(ctx context.Context, library *models.Library) error {
	log := logger.FromContext(ctx).Data(logger.Data{"library_id": library.ID})

	allBooks, err := w.bookService.ListBooks(ctx, books.ListBooksOptions{
		LibraryID:      &library.ID,
		IncludeDeleted: true,
	})
	if err != nil {
		return err
	}

	for _, libraryPath := range library.LibraryPaths {
		pathBooks := []*models.Book{}
		for _, book := range allBooks {
			if book.LibraryPathID == libraryPath.ID {
				pathBooks = append(pathBooks, book)
			}
		}

		scan, err := scanner.Scan(ctx, library, libraryPath, w.processor.SupportsSupplementaryFiles())
		if err != nil {
			log.Err(err).Error("scan error", logger.Data{"library_path_id": libraryPath.ID})
			continue
		}

		result, err := reconcile.Reconcile(library, scan, pathBooks, w.processor.SupportsSupplementaryFiles())
		if err != nil {
			var codedErr *errcodes.Error
			if errors.As(err, &codedErr) && codedErr.Code == "storage_offline" {
				// The mount is probably gone; touching the records now would
				// soft-delete the whole library. Leave everything alone.
				log.Warn("library path looks offline, skipping", logger.Data{"library_path_id": libraryPath.ID})
				continue
			}
			return err
		}

		created, err := w.processor.Ingest(ctx, library, pathBooks, result.NewPaths)
		if err != nil {
			return err
		}

		softDeleted := map[int]struct{}{}
		for _, book := range result.DeletedBooks {
			if err := w.bookService.SoftDeleteBook(ctx, book); err != nil {
				return err
			}
			softDeleted[book.ID] = struct{}{}
		}
		for _, file := range result.DeletedFiles {
			// A soft-deleted book keeps its file rows so that a rescan can
			// still recognize and restore it.
			if _, ok := softDeleted[file.BookID]; ok {
				continue
			}
			if err := w.bookService.DeleteFile(ctx, file); err != nil {
				return err
			}
		}
		for _, book := range result.RestoredBooks {
			if err := w.bookService.RestoreBook(ctx, book); err != nil {
				return err
			}
		}

		log.Info("library path reconciled", logger.Data{
			"library_path_id": libraryPath.ID,
			"scanned":         len(scan),
			"created":         len(created),
			"deleted_books":   len(result.DeletedBooks),
			"deleted_files":   len(result.DeletedFiles),
			"restored_books":  len(result.RestoredBooks),
		})
	}

	return nil
}
