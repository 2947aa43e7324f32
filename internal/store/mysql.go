package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TusharKoshti-1/Qr-System/internal/config"
	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the control plane and the data access layer react to.
const (
	MySQLErrDupEntry        uint16 = 1062
	MySQLErrBadNull         uint16 = 1048
	MySQLErrRowIsReferenced uint16 = 1451
	MySQLErrNoReferencedRow uint16 = 1452
	MySQLErrLockWaitTimeout uint16 = 1205
	MySQLErrLockDeadlock    uint16 = 1213
	MySQLErrBadDB           uint16 = 1049
	MySQLErrDBAccessDenied  uint16 = 1044
)

// MySQLConfig builds the driver configuration for the given database. An
// empty dbName connects without selecting a database.
func MySQLConfig(cfg config.ControlPlaneConfig, dbName string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = dbName
	mc.ParseTime = true
	mc.MultiStatements = false
	// UPDATE reports matched rows, so rewriting an unchanged value is not
	// mistaken for a missing row.
	mc.ClientFoundRows = true
	mc.Timeout = cfg.DialTimeout
	return mc
}

// OpenControlPlane opens and pings the pool for the control-plane database.
func OpenControlPlane(ctx context.Context, cfg config.ControlPlaneConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", MySQLConfig(cfg, cfg.Database).FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open control plane: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping control plane: %w", err)
	}

	return db, nil
}

// MySQLErrorNumber returns the server error number carried by err, if any.
func MySQLErrorNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

// IsDuplicateEntry reports whether err is a unique-key violation.
func IsDuplicateEntry(err error) bool {
	n, ok := MySQLErrorNumber(err)
	return ok && n == MySQLErrDupEntry
}
