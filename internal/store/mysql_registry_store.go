package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"go.uber.org/zap"
)

const createAdminsTable = `
	CREATE TABLE IF NOT EXISTS admins (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		db_name VARCHAR(64) NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

// MySQLRegistryStore implements RegistryStore on the control-plane database.
type MySQLRegistryStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLRegistryStore creates a registry store on an open control-plane pool.
// The store takes ownership of db.
func NewMySQLRegistryStore(db *sql.DB, logger *zap.Logger) *MySQLRegistryStore {
	return &MySQLRegistryStore{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the admins table if it does not exist.
func (s *MySQLRegistryStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createAdminsTable); err != nil {
		return fmt.Errorf("failed to migrate admins table: %w", err)
	}
	return nil
}

// GetTenant retrieves a restaurant registration by id.
func (s *MySQLRegistryStore) GetTenant(ctx context.Context, tenantID int64) (*model.Tenant, error) {
	query := `
		SELECT id, username, email, password, db_name, created_at
		FROM admins
		WHERE id = ?
	`

	var tenant model.Tenant
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&tenant.ID,
		&tenant.Username,
		&tenant.Email,
		&tenant.PasswordHash,
		&tenant.Datastore,
		&tenant.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return &tenant, nil
}

// CreateTenant inserts a registration row.
func (s *MySQLRegistryStore) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	query := `
		INSERT INTO admins (username, email, password, db_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		tenant.Username,
		tenant.Email,
		tenant.PasswordHash,
		tenant.Datastore,
		tenant.CreatedAt,
	)
	if err != nil {
		if IsDuplicateEntry(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read tenant id: %w", err)
	}
	tenant.ID = id

	return nil
}

// DeleteTenant removes a registration row.
func (s *MySQLRegistryStore) DeleteTenant(ctx context.Context, tenantID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE id = ?`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks the control-plane connection.
func (s *MySQLRegistryStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the control-plane pool.
func (s *MySQLRegistryStore) Close() error {
	return s.db.Close()
}
