package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"github.com/TusharKoshti-1/Qr-System/internal/util/workerpool"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RelayOptions configures a Relay.
type RelayOptions struct {
	// ChannelPrefix is joined with the tenant id to name the Redis channel.
	ChannelPrefix string
	// QueueSize bounds the outbound publish queue.
	QueueSize int
	// PublishTimeout bounds a single Redis PUBLISH.
	PublishTimeout time.Duration
	// EnqueueTimeout bounds how long Publish waits for room in a full queue
	// before giving up on remote delivery of that event.
	EnqueueTimeout time.Duration
}

// envelope is the Redis message body. Origin lets an instance skip its own
// events, which it already delivered locally.
type envelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// Relay fans events out across server instances through Redis pub/sub. An
// event is delivered to the local Hub when published and reaches other
// instances through the tenant's channel, so an event published anywhere
// reaches every dashboard of that tenant.
type Relay struct {
	client   *redis.Client
	hub      *Hub
	opts     RelayOptions
	instance string
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// A single worker keeps outbound publishes in submission order.
	outbound *workerpool.WorkerPool
	// pubMu makes local delivery order and outbound queue order the same.
	pubMu sync.Mutex

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewRelay creates a relay feeding hub. Start must be called before events
// from other instances are received.
func NewRelay(client *redis.Client, hub *Hub, opts RelayOptions, m *metrics.Metrics, logger *zap.Logger) *Relay {
	if opts.ChannelPrefix == "" {
		opts.ChannelPrefix = "pos:events"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 250 * time.Millisecond
	}
	return &Relay{
		client:   client,
		hub:      hub,
		opts:     opts,
		instance: uuid.NewString(),
		metrics:  m,
		logger:   logger,
		outbound: workerpool.New(workerpool.Config{
			Name:       "event-relay",
			MaxWorkers: 1,
			QueueSize:  opts.QueueSize,
			Logger:     logger,
		}),
	}
}

// Channel returns the Redis channel carrying tenantID's events.
func (r *Relay) Channel(tenantID int64) string {
	return fmt.Sprintf("%s:%d", r.opts.ChannelPrefix, tenantID)
}

// Start subscribes to every tenant channel and begins feeding the hub.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return errors.New("relay already started")
	}

	ps := r.client.PSubscribe(ctx, r.opts.ChannelPrefix+":*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("failed to subscribe to %s:*: %w", r.opts.ChannelPrefix, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return r.receive(gctx, ps.Channel())
	})

	r.pubsub = ps
	r.cancel = cancel
	r.group = g

	r.logger.Info("Event relay started", zap.String("pattern", r.opts.ChannelPrefix+":*"))
	return nil
}

func (r *Relay) receive(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			tenantID, err := r.tenantFromChannel(msg.Channel)
			if err != nil {
				r.logger.Warn("Ignoring message on unexpected channel",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || len(env.Event) == 0 {
				r.logger.Warn("Ignoring malformed relay message",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			if env.Origin == r.instance {
				continue
			}
			r.hub.deliver(tenantID, env.Event)
		}
	}
}

func (r *Relay) tenantFromChannel(channel string) (int64, error) {
	suffix, ok := strings.CutPrefix(channel, r.opts.ChannelPrefix+":")
	if !ok {
		return 0, fmt.Errorf("channel outside prefix %q", r.opts.ChannelPrefix)
	}
	return strconv.ParseInt(suffix, 10, 64)
}

// Publish delivers e to local subscribers, then queues it for the other
// instances. Local delivery never waits on Redis. If the queue stays full for
// EnqueueTimeout or Redis rejects the publish, other instances miss the event
// but the order of what they do receive is kept.
func (r *Relay) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("Failed to encode event",
			zap.String("type", string(e.Kind)),
			zap.Int64("tenant_id", e.TenantID),
			zap.Error(err))
		return
	}
	message, err := json.Marshal(envelope{Origin: r.instance, Event: payload})
	if err != nil {
		r.logger.Error("Failed to encode relay message", zap.Error(err))
		return
	}
	r.metrics.RecordBroadcastEvent(string(e.Kind))

	tenantID := e.TenantID
	task := workerpool.Task{
		Name: string(e.Kind),
		Fn: func(ctx context.Context) error {
			pctx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
			defer cancel()

			if err := r.client.Publish(pctx, r.Channel(tenantID), message).Err(); err != nil {
				r.metrics.RecordRelayPublish("error")
				r.logger.Warn("Redis publish failed, event reached local dashboards only",
					zap.Int64("tenant_id", tenantID),
					zap.Error(err))
				return err
			}
			r.metrics.RecordRelayPublish("success")
			return nil
		},
	}

	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.hub.deliver(tenantID, payload)

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.EnqueueTimeout)
	defer cancel()
	if err := r.outbound.SubmitWithContext(qctx, task); err != nil {
		r.metrics.RecordRelayPublish("dropped")
		r.logger.Warn("Relay queue unavailable, event reached local dashboards only",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err))
	}
}

// Ping checks the Redis connection.
func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Stop flushes queued publishes and ends the subscription.
func (r *Relay) Stop(timeout time.Duration) error {
	var errs []error
	if err := r.outbound.Stop(timeout); err != nil {
		errs = append(errs, err)
	}

	r.mu.Lock()
	ps, cancel, g := r.pubsub, r.cancel, r.group
	r.pubsub, r.cancel, r.group = nil, nil, nil
	r.mu.Unlock()

	if ps != nil {
		cancel()
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := g.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	r.logger.Info("Event relay stopped")
	return errors.Join(errs...)
}
