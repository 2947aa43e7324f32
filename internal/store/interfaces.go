// Package store holds control-plane persistence: the restaurant registry
// table and the cache in front of it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/model"
)

var (
	// ErrNotFound is returned when a key is not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("duplicate entry")
)

// RegistryStore persists restaurant registrations.
type RegistryStore interface {
	Migrate(ctx context.Context) error
	GetTenant(ctx context.Context, tenantID int64) (*model.Tenant, error)
	// CreateTenant inserts the row and sets tenant.ID from the generated key.
	CreateTenant(ctx context.Context, tenant *model.Tenant) error
	DeleteTenant(ctx context.Context, tenantID int64) error
	Ping(ctx context.Context) error
	Close() error
}

// Cache interface for in-memory caching
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
