// Package idempotency remembers the response to a create request carrying an
// Idempotency-Key header so a retried submission is answered from the cache
// instead of inserting a second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HeaderName is the request header carrying the client's key.
const HeaderName = "Idempotency-Key"

// MaxKeyLength bounds client supplied keys.
const MaxKeyLength = 255

// ErrNotFound is returned when no response is stored for a key.
var ErrNotFound = errors.New("idempotency key not found")

// Response is a remembered HTTP response.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Options configures a Store.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

// Store keeps responses in Redis keyed by restaurant, route and client key.
type Store struct {
	client  *redis.Client
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewStore creates a Redis backed store.
func NewStore(client *redis.Client, opts Options, m *metrics.Metrics, logger *zap.Logger) *Store {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "pos:idem"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Store{
		client:  client,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Key builds the storage key. Client keys are hashed so arbitrary header
// values never reach the Redis keyspace verbatim.
func (s *Store) Key(tenantID int64, route, clientKey string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(tenantID, 10) + ":" + route + ":" + clientKey))
	return fmt.Sprintf("%s:%d:%s", s.opts.KeyPrefix, tenantID, hex.EncodeToString(sum[:]))
}

// Get returns the response stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Response, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.RecordIdempotencyLookup("miss")
		return nil, ErrNotFound
	}
	if err != nil {
		s.metrics.RecordIdempotencyLookup("error")
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		s.metrics.RecordIdempotencyLookup("error")
		return nil, fmt.Errorf("failed to unmarshal idempotent response: %w", err)
	}

	s.metrics.RecordIdempotencyLookup("hit")
	return &resp, nil
}

// Set stores resp under key for the configured TTL. An existing entry is kept.
func (s *Store) Set(ctx context.Context, key string, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotent response: %w", err)
	}

	stored, err := s.client.SetNX(ctx, key, data, s.opts.TTL).Result()
	if err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	if !stored {
		s.logger.Debug("idempotency key already stored", zap.String("key", key))
	}
	return nil
}
