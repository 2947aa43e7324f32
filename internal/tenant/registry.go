// Package tenant maps restaurants to their isolated datastores and registers
// new restaurants.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"github.com/TusharKoshti-1/Qr-System/internal/model"
	"github.com/TusharKoshti-1/Qr-System/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	datastorePrefix     = "admin_"
	maxPasswordBytes    = 72 // bcrypt limit
	compensationTimeout = 10 * time.Second
)

// RegisterRequest carries the fields needed to register a restaurant.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request fields.
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)

	if r.Username == "" || r.Email == "" || r.Password == "" {
		return apperrors.InvalidArgument("username, email and password are required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperrors.InvalidArgument("invalid email address")
	}
	if len(r.Password) > maxPasswordBytes {
		return apperrors.InvalidArgument(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// Options configures a Registry.
type Options struct {
	CacheTTL   time.Duration
	BcryptCost int
}

// Registry resolves restaurant ids to datastore names and registers restaurants.
type Registry struct {
	store       store.RegistryStore
	cache       store.Cache
	provisioner Provisioner
	opts        Options
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewRegistry creates a registry.
func NewRegistry(
	registryStore store.RegistryStore,
	cache store.Cache,
	provisioner Provisioner,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Registry {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Registry{
		store:       registryStore,
		cache:       cache,
		provisioner: provisioner,
		opts:        opts,
		metrics:     m,
		logger:      logger,
	}
}

// Resolve returns the datastore name of a restaurant. The mapping never
// changes after registration, so hits are served from cache.
func (r *Registry) Resolve(ctx context.Context, tenantID int64) (string, error) {
	if tenantID <= 0 {
		return "", apperrors.TenantNotFound(tenantID)
	}

	cacheKey := datastoreCacheKey(tenantID)
	if cached, err := r.cache.Get(ctx, cacheKey); err == nil {
		if name, ok := cached.(string); ok {
			return name, nil
		}
	}

	r.logger.Debug("Cache miss for tenant, fetching from registry",
		zap.Int64("tenant_id", tenantID))

	tenant, err := r.store.GetTenant(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperrors.TenantNotFound(tenantID)
	}
	if err != nil {
		return "", apperrors.TransientIO("registry.resolve", err).WithDetail("tenant_id", tenantID)
	}

	if err := r.cache.Set(ctx, cacheKey, tenant.Datastore, r.opts.CacheTTL); err != nil {
		r.logger.Warn("Failed to cache tenant datastore",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err))
	}

	return tenant.Datastore, nil
}

// Register creates a restaurant account with a freshly provisioned datastore.
// The registry row is written first; if provisioning then fails the row is
// removed again, so no restaurant ever resolves to a missing datastore.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*model.Tenant, error) {
	if err := req.Validate(); err != nil {
		r.metrics.RecordRegistration("invalid")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), r.opts.BcryptCost)
	if err != nil {
		return nil, apperrors.InternalError("failed to hash password", err)
	}

	tenant := &model.Tenant{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Datastore:    newDatastoreName(),
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.store.CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			r.metrics.RecordRegistration("duplicate")
			return nil, apperrors.DuplicateTenant(req.Email, err)
		}
		r.metrics.RecordRegistration("failed")
		return nil, apperrors.TransientIO("registry.create", err)
	}

	if err := r.provisioner.Provision(ctx, tenant.Datastore); err != nil {
		r.metrics.RecordRegistration("failed")
		r.logger.Error("Failed to provision restaurant datastore",
			zap.Int64("tenant_id", tenant.ID),
			zap.String("datastore", tenant.Datastore),
			zap.Error(err))
		r.compensate(ctx, tenant)
		return nil, apperrors.DatastoreUnavailable(tenant.Datastore, err)
	}

	if err := r.cache.Set(ctx, datastoreCacheKey(tenant.ID), tenant.Datastore, r.opts.CacheTTL); err != nil {
		r.logger.Warn("Failed to cache new tenant datastore",
			zap.Int64("tenant_id", tenant.ID),
			zap.Error(err))
	}

	r.metrics.RecordRegistration("ok")
	r.logger.Info("Registered restaurant",
		zap.Int64("tenant_id", tenant.ID),
		zap.String("datastore", tenant.Datastore))

	return tenant, nil
}

// compensate undoes a half-finished registration. It runs even if the
// caller's context is already canceled.
func (r *Registry) compensate(ctx context.Context, tenant *model.Tenant) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := r.store.DeleteTenant(ctx, tenant.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Error("Failed to remove registry row after provisioning failure",
			zap.Int64("tenant_id", tenant.ID),
			zap.Error(err))
	}
	if err := r.provisioner.Deprovision(ctx, tenant.Datastore); err != nil {
		r.logger.Warn("Failed to drop partially provisioned datastore",
			zap.String("datastore", tenant.Datastore),
			zap.Error(err))
	}
}

// Ping checks the registry store.
func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func newDatastoreName() string {
	return datastorePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func datastoreCacheKey(tenantID int64) string {
	return fmt.Sprintf("tenant:datastore:%d", tenantID)
}
