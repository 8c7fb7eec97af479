package apikeys

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"time"

	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// generateKey creates a cryptographically secure random API key.
func generateKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.WithStack(err)
	}
	return "fk_" + base64.URLEncoding.EncodeToString(bytes), nil
}

// Create issues a new API key for a user.
func (svc *Service) Create(ctx context.Context, userID int, name string) (*APIKey, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	apiKey := &APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = svc.db.NewInsert().Model(apiKey).Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return apiKey, nil
}

// List returns all API keys for a user.
func (svc *Service) List(ctx context.Context, userID int) ([]*APIKey, error) {
	keys := []*APIKey{}
	err := svc.db.NewSelect().
		Model(&keys).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return keys, nil
}

// RetrieveByKey looks an API key up by its secret value and stamps the access
// time. Unknown keys return a not-found error.
func (svc *Service) RetrieveByKey(ctx context.Context, key string) (*APIKey, error) {
	apiKey := &APIKey{}
	err := svc.db.NewSelect().
		Model(apiKey).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("API key")
		}
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	apiKey.LastAccessedAt = &now
	_, err = svc.db.NewUpdate().
		Model(apiKey).
		Column("last_accessed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return apiKey, nil
}

// Delete removes an API key, but only when the user owns it.
func (svc *Service) Delete(ctx context.Context, userID int, keyID string) error {
	result, err := svc.db.NewDelete().
		Model((*APIKey)(nil)).
		Where("id = ?", keyID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if rowsAffected == 0 {
		return errcodes.NotFound("API key")
	}
	return nil
}
