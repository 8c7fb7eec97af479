package bookdrop

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveFileOptions struct {
	ID       *string
	FilePath *string
}

type ListFilesOptions struct {
	Limit  *int
	Offset *int
	Status *string

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateFile records a dropped file pending review. It is idempotent on
// FilePath: replayed notifications for a path that already has a row return
// the existing row untouched.
func (svc *Service) CreateFile(ctx context.Context, file *models.BookdropFile) (*models.BookdropFile, error) {
	existing, err := svc.RetrieveFile(ctx, RetrieveFileOptions{FilePath: &file.FilePath})
	if err == nil {
		return existing, nil
	}
	var cerr *errcodes.Error
	if !errors.As(err, &cerr) {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = file.CreatedAt

	if file.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		file.ID = id.String()
	}
	if file.Status == "" {
		file.Status = models.BookdropStatusPendingReview
	}

	_, err = svc.db.
		NewInsert().
		Model(file).
		On("CONFLICT (file_path) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// A concurrent insert may have won the conflict; read back the row that
	// actually holds the path.
	return svc.RetrieveFile(ctx, RetrieveFileOptions{FilePath: &file.FilePath})
}

func (svc *Service) RetrieveFile(ctx context.Context, opts RetrieveFileOptions) (*models.BookdropFile, error) {
	file := &models.BookdropFile{}

	q := svc.db.
		NewSelect().
		Model(file)

	if opts.ID != nil {
		q = q.Where("bd.id = ?", *opts.ID)
	}
	if opts.FilePath != nil {
		q = q.Where("bd.file_path = ?", *opts.FilePath)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Bookdrop file")
		}
		return nil, errors.WithStack(err)
	}

	return file, nil
}

func (svc *Service) ListFiles(ctx context.Context, opts ListFilesOptions) ([]*models.BookdropFile, error) {
	f, _, err := svc.listFilesWithTotal(ctx, opts)
	return f, errors.WithStack(err)
}

func (svc *Service) ListFilesWithTotal(ctx context.Context, opts ListFilesOptions) ([]*models.BookdropFile, int, error) {
	opts.includeTotal = true
	return svc.listFilesWithTotal(ctx, opts)
}

func (svc *Service) listFilesWithTotal(ctx context.Context, opts ListFilesOptions) ([]*models.BookdropFile, int, error) {
	files := []*models.BookdropFile{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&files).
		Order("bd.created_at ASC", "bd.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Status != nil {
		q = q.Where("bd.status = ?", *opts.Status)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return files, total, nil
}

// CountPending returns the number of files waiting for review.
func (svc *Service) CountPending(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.BookdropFile)(nil)).
		Where("status = ?", models.BookdropStatusPendingReview).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// DeleteByPathPrefix removes every record whose path equals prefix or sits
// under it. A deleted directory takes its whole subtree of records with it.
func (svc *Service) DeleteByPathPrefix(ctx context.Context, prefix string) (int, error) {
	res, err := svc.db.
		NewDelete().
		Model((*models.BookdropFile)(nil)).
		Where("file_path = ?", prefix).
		WhereOr("file_path LIKE ?", prefix+"/%").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(affected), nil
}

// hashFile computes the sha256 of the file's full content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
