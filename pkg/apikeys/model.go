package apikeys

import (
	"time"

	"github.com/uptrace/bun"
)

// APIKey is a device credential. E-readers authenticate their sync requests
// with one of these instead of a user session.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak" json:"-"`

	ID             string     `bun:"id,pk" json:"id"`
	UserID         int        `bun:"user_id,notnull" json:"user_id"`
	Name           string     `bun:"name,notnull" json:"name"`
	Key            string     `bun:"key,notnull,unique" json:"key"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	LastAccessedAt *time.Time `bun:"last_accessed_at" json:"last_accessed_at"`
}
