// Package datastore routes requests to per-restaurant MySQL databases. Each
// restaurant gets its own bounded pool; callers borrow a Handle with the
// restaurant's database selected and must release it on every path.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrRouterClosed is returned by Acquire after Close.
var ErrRouterClosed = errors.New("datastore router closed")

// Opener opens a pool for a DSN. Production uses sql.Open("mysql", dsn).
type Opener func(dsn string) (*sql.DB, error)

// Config bounds each per-restaurant pool.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AcquireTimeout bounds the wait for a free connection.
	AcquireTimeout time.Duration
	// IdleTTL closes pools unused for this long. Zero disables the sweeper.
	IdleTTL time.Duration
}

// Stats reports handle accounting. Acquired == Released + Outstanding always holds.
type Stats struct {
	Acquired       int64
	Released       int64
	Outstanding    int64
	DoubleReleases int64
	Pools          int
}

type pool struct {
	db       *sql.DB
	active   int
	lastUsed time.Time
}

// Router owns one bounded pool per restaurant datastore.
type Router struct {
	template *mysql.Config
	cfg      Config
	open     Opener
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	pools  map[string]*pool
	closed bool

	acquired       atomic.Int64
	released       atomic.Int64
	doubleReleases atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRouter creates a router. template supplies address and credentials;
// its DBName is replaced per datastore. A nil opener uses the MySQL driver.
func NewRouter(template *mysql.Config, cfg Config, opener Opener, m *metrics.Metrics, logger *zap.Logger) *Router {
	if opener == nil {
		opener = func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		}
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	r := &Router{
		template: template,
		cfg:      cfg,
		open:     opener,
		logger:   logger,
		metrics:  m,
		pools:    make(map[string]*pool),
		stopCh:   make(chan struct{}),
	}

	if cfg.IdleTTL > 0 {
		r.wg.Add(1)
		go r.sweepIdle()
	}

	return r
}

// Acquire borrows a connection for datastore and selects it as the active
// database. It waits at most AcquireTimeout for a free connection and fails
// with PoolExhausted otherwise. A failed selection releases the connection
// before returning DatastoreUnavailable.
func (r *Router) Acquire(ctx context.Context, datastore string) (*Handle, error) {
	quoted, err := QuoteIdentifier(datastore)
	if err != nil {
		return nil, err
	}

	p, err := r.checkout(datastore)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	acquireCtx, cancel := context.WithTimeout(ctx, r.cfg.AcquireTimeout)
	conn, err := p.db.Conn(acquireCtx)
	cancel()
	if err != nil {
		r.checkin(datastore)
		return nil, r.acquireError(ctx, datastore, err, time.Since(start))
	}

	if _, err := conn.ExecContext(ctx, "USE "+quoted); err != nil {
		conn.Close()
		r.checkin(datastore)
		r.metrics.RecordAcquire("unavailable", time.Since(start))
		r.logger.Warn("Failed to select datastore",
			zap.String("datastore", datastore),
			zap.Error(err))
		return nil, apperrors.DatastoreUnavailable(datastore, err)
	}

	r.metrics.RecordAcquire("ok", time.Since(start))
	r.acquired.Add(1)
	r.metrics.SetOutstandingHandles(r.outstanding())

	return &Handle{
		conn:      conn,
		datastore: datastore,
		router:    r,
	}, nil
}

// WithHandle acquires a handle, runs fn and releases the handle on every
// path, including a panic in fn.
func (r *Router) WithHandle(ctx context.Context, datastore string, fn func(h *Handle) error) error {
	h, err := r.Acquire(ctx, datastore)
	if err != nil {
		return err
	}
	defer h.Release()

	return fn(h)
}

// Stats returns a snapshot of handle accounting.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	pools := len(r.pools)
	r.mu.Unlock()

	acquired := r.acquired.Load()
	released := r.released.Load()
	return Stats{
		Acquired:       acquired,
		Released:       released,
		Outstanding:    acquired - released,
		DoubleReleases: r.doubleReleases.Load(),
		Pools:          pools,
	}
}

// Close stops the sweeper and closes every pool. Outstanding handles keep
// their connections until released.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pools := r.pools
	r.pools = make(map[string]*pool)
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()

	var g errgroup.Group
	for name, p := range pools {
		name, db := name, p.db
		g.Go(func() error {
			if err := db.Close(); err != nil {
				return fmt.Errorf("close pool %s: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()

	r.metrics.SetOpenPools(0)
	r.logger.Info("Datastore router closed", zap.Int("pools", len(pools)))
	return err
}

// checkout returns the pool for datastore, opening it on first use, and
// marks it busy so the sweeper leaves it alone.
func (r *Router) checkout(datastore string) (*pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, apperrors.DatastoreUnavailable(datastore, ErrRouterClosed)
	}

	p, ok := r.pools[datastore]
	if !ok {
		db, err := r.openPool(datastore)
		if err != nil {
			r.logger.Error("Failed to open datastore pool",
				zap.String("datastore", datastore),
				zap.Error(err))
			return nil, apperrors.DatastoreUnavailable(datastore, err)
		}
		p = &pool{db: db}
		r.pools[datastore] = p
		r.metrics.SetOpenPools(len(r.pools))
		r.logger.Debug("Opened datastore pool", zap.String("datastore", datastore))
	}

	p.active++
	p.lastUsed = time.Now()
	return p, nil
}

func (r *Router) checkin(datastore string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[datastore]; ok {
		p.active--
		p.lastUsed = time.Now()
	}
}

func (r *Router) openPool(datastore string) (*sql.DB, error) {
	cfg := r.template.Clone()
	cfg.DBName = datastore

	db, err := r.open(cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(r.cfg.MaxOpenConns)
	db.SetMaxIdleConns(r.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(r.cfg.ConnMaxLifetime)
	return db, nil
}

func (r *Router) acquireError(ctx context.Context, datastore string, err error, waited time.Duration) error {
	switch {
	case ctx.Err() != nil:
		r.metrics.RecordAcquire("canceled", waited)
		return apperrors.TransientIO("datastore.acquire", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		r.metrics.RecordAcquire("exhausted", waited)
		r.logger.Warn("Datastore pool exhausted",
			zap.String("datastore", datastore),
			zap.Duration("waited", waited),
			zap.Int("max_open_conns", r.cfg.MaxOpenConns))
		return apperrors.PoolExhausted(datastore, err)
	default:
		r.metrics.RecordAcquire("unavailable", waited)
		r.logger.Warn("Failed to connect to datastore",
			zap.String("datastore", datastore),
			zap.Error(err))
		return apperrors.DatastoreUnavailable(datastore, err)
	}
}

func (r *Router) release(h *Handle) {
	if err := h.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		r.logger.Warn("Failed to return connection to pool",
			zap.String("datastore", h.datastore),
			zap.Error(err))
	}
	r.checkin(h.datastore)
	r.released.Add(1)
	r.metrics.SetOutstandingHandles(r.outstanding())
}

func (r *Router) recordDoubleRelease(datastore string) {
	r.doubleReleases.Add(1)
	r.metrics.IncDoubleRelease()
	r.logger.Warn("Handle released more than once", zap.String("datastore", datastore))
}

func (r *Router) outstanding() int64 {
	return r.acquired.Load() - r.released.Load()
}

func (r *Router) sweepIdle() {
	defer r.wg.Done()

	interval := r.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			r.closeIdle(now)
		}
	}
}

// closeIdle closes pools with no borrowed handles that have not been used
// within IdleTTL.
func (r *Router) closeIdle(now time.Time) int {
	r.mu.Lock()
	var idle []*sql.DB
	for name, p := range r.pools {
		if p.active == 0 && now.Sub(p.lastUsed) >= r.cfg.IdleTTL {
			idle = append(idle, p.db)
			delete(r.pools, name)
			r.logger.Debug("Closing idle datastore pool", zap.String("datastore", name))
		}
	}
	r.metrics.SetOpenPools(len(r.pools))
	r.mu.Unlock()

	for _, db := range idle {
		if err := db.Close(); err != nil {
			r.logger.Warn("Failed to close idle pool", zap.Error(err))
		}
	}
	return len(idle)
}
