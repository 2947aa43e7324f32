package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchemaProvisioner_Provision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewSchemaProvisioner(db, zap.NewNop())

	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS `admin_abc`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.sections").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.`tables`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.menu").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.settings").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.Provision(context.Background(), "admin_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaProvisioner_ProvisionFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewSchemaProvisioner(db, zap.NewNop())

	mock.ExpectExec("CREATE DATABASE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `admin_abc`.users").WillReturnError(errors.New("disk full"))

	err = p.Provision(context.Background(), "admin_abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users")
}

func TestSchemaProvisioner_RejectsUnsafeNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewSchemaProvisioner(db, zap.NewNop())

	err = p.Provision(context.Background(), "x`; DROP DATABASE mysql; --")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorCodeInvalidRequest))

	err = p.Deprovision(context.Background(), "a b")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaProvisioner_Deprovision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewSchemaProvisioner(db, zap.NewNop())
	mock.ExpectExec("DROP DATABASE IF EXISTS `admin_abc`").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.Deprovision(context.Background(), "admin_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
