package tenant

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	"go.uber.org/zap"
)

// Provisioner creates and removes restaurant datastores.
type Provisioner interface {
	Provision(ctx context.Context, name string) error
	Deprovision(ctx context.Context, name string) error
}

// tenantSchema lists the tables of a restaurant datastore. %[1]s is the
// quoted database name; every statement is database-qualified so the
// control-plane connection never switches its active database.
var tenantSchema = []struct {
	table string
	ddl   string
}{
	{"users", `CREATE TABLE IF NOT EXISTS %[1]s.users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL
	)`},
	{"sections", `CREATE TABLE IF NOT EXISTS %[1]s.sections (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`},
	{"tables", `CREATE TABLE IF NOT EXISTS %[1]s.` + "`tables`" + ` (
		id INT AUTO_INCREMENT PRIMARY KEY,
		table_number VARCHAR(50) NOT NULL UNIQUE,
		status VARCHAR(50) NOT NULL DEFAULT 'empty',
		section_id INT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (section_id) REFERENCES %[1]s.sections(id)
	)`},
	{"orders", `CREATE TABLE IF NOT EXISTS %[1]s.orders (
		id INT AUTO_INCREMENT PRIMARY KEY,
		customer_name VARCHAR(255),
		phone VARCHAR(50),
		table_number VARCHAR(50),
		items JSON NOT NULL,
		total_amount DECIMAL(10, 2) NOT NULL DEFAULT 0,
		payment_method VARCHAR(50),
		status VARCHAR(50) NOT NULL DEFAULT 'Pending',
		is_deleted TINYINT(1) NOT NULL DEFAULT 0,
		created_on TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`},
	{"menu", `CREATE TABLE IF NOT EXISTS %[1]s.menu (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		image VARCHAR(1024),
		price DECIMAL(10, 2) NOT NULL,
		category VARCHAR(255) NOT NULL
	)`},
	{"settings", `CREATE TABLE IF NOT EXISTS %[1]s.settings (
		id INT AUTO_INCREMENT PRIMARY KEY,
		restaurantName VARCHAR(255) NOT NULL,
		address VARCHAR(255),
		phone VARCHAR(50),
		email VARCHAR(255),
		operatingHours VARCHAR(255),
		upiId VARCHAR(255),
		isOpen BOOLEAN NOT NULL DEFAULT TRUE
	)`},
}

// SchemaProvisioner provisions restaurant datastores through the control-plane pool.
type SchemaProvisioner struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaProvisioner creates a provisioner.
func NewSchemaProvisioner(db *sql.DB, logger *zap.Logger) *SchemaProvisioner {
	return &SchemaProvisioner{
		db:     db,
		logger: logger,
	}
}

// Provision creates the database and its tables. It is idempotent.
func (p *SchemaProvisioner) Provision(ctx context.Context, name string) error {
	quoted, err := datastore.QuoteIdentifier(name)
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+quoted); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}

	for _, t := range tenantSchema {
		if _, err := p.db.ExecContext(ctx, fmt.Sprintf(t.ddl, quoted)); err != nil {
			return fmt.Errorf("failed to create table %s.%s: %w", name, t.table, err)
		}
	}

	p.logger.Info("Provisioned restaurant datastore",
		zap.String("datastore", name),
		zap.Int("tables", len(tenantSchema)))
	return nil
}

// Deprovision drops the database if it exists.
func (p *SchemaProvisioner) Deprovision(ctx context.Context, name string) error {
	quoted, err := datastore.QuoteIdentifier(name)
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+quoted); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}
