// Package broadcast delivers change events to the live dashboards of the
// restaurant that produced them. Every connection has its own bounded queue
// and delivery goroutine, so a stalled dashboard never delays the request
// that published the event or the other dashboards.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("broadcast hub closed")

// Conn is a live connection to one dashboard.
type Conn interface {
	// Send writes one message, giving up after timeout.
	Send(msg []byte, timeout time.Duration) error
	Close() error
}

// Publisher accepts events after a successful write. Delivery problems are
// handled by the publisher and never reported to the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Options configures a Hub.
type Options struct {
	SendTimeout time.Duration
	BufferSize  int
	// HeartbeatInterval is how long a connection may go without a frame
	// before a ping message is sent to it.
	HeartbeatInterval time.Duration
}

type room struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Hub tracks the subscribers of every restaurant.
type Hub struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	rooms  map[int64]*room
	closed bool

	wg sync.WaitGroup
}

// NewHub creates a hub. The caller owns it and must Close it at shutdown.
func NewHub(opts Options, m *metrics.Metrics, logger *zap.Logger) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	return &Hub{
		opts:    opts,
		logger:  logger,
		metrics: m,
		rooms:   make(map[int64]*room),
	}
}

// Subscribe registers conn for tenantID's events and starts its delivery
// goroutine. The subscription ends when the returned Subscriber is closed or
// a send fails.
func (h *Hub) Subscribe(tenantID int64, conn Conn) (*Subscriber, error) {
	s := &Subscriber{
		hub:      h,
		tenantID: tenantID,
		conn:     conn,
		out:      make(chan []byte, h.opts.BufferSize),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	r, ok := h.rooms[tenantID]
	if !ok {
		r = &room{subs: make(map[*Subscriber]struct{})}
		h.rooms[tenantID] = r
	}
	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()
	h.wg.Add(1)
	h.mu.Unlock()

	h.metrics.AddSubscribers(1)
	h.logger.Debug("Dashboard subscribed", zap.Int64("tenant_id", tenantID))

	go s.run()
	return s, nil
}

// Publish encodes e once and queues it for every subscriber of e.TenantID.
func (h *Hub) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to encode event",
			zap.String("type", string(e.Kind)),
			zap.Int64("tenant_id", e.TenantID),
			zap.Error(err))
		return
	}
	h.metrics.RecordBroadcastEvent(string(e.Kind))
	h.deliver(e.TenantID, payload)
}

// deliver queues an encoded event. Queuing happens under the room lock so
// concurrent publishers produce one order that all subscribers observe.
// Subscribers whose queue is full are dropped.
func (h *Hub) deliver(tenantID int64, payload []byte) {
	var slow []*Subscriber

	h.mu.RLock()
	r, ok := h.rooms[tenantID]
	if ok {
		r.mu.Lock()
		for s := range r.subs {
			if !s.enqueue(payload) {
				slow = append(slow, s)
			}
		}
		r.mu.Unlock()
	}
	h.mu.RUnlock()

	for _, s := range slow {
		s.fail("slow_consumer", apperrors.DeliveryFailure(errors.New("send queue full")))
	}
}

// SubscriberCount returns the number of live subscribers of tenantID.
func (h *Hub) SubscriberCount(tenantID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[tenantID]
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// RoomCount returns the number of restaurants with live subscribers.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Close disconnects every subscriber and waits for delivery goroutines to
// exit or ctx to be done.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []*Subscriber
	for _, r := range h.rooms {
		r.mu.Lock()
		for s := range r.subs {
			all = append(all, s)
		}
		r.mu.Unlock()
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Broadcast hub closed", zap.Int("subscribers", len(all)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// remove drops s from its room and deletes the room once empty.
func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[s.tenantID]
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.subs, s)
	empty := len(r.subs) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, s.tenantID)
	}
}
