package broadcast

import (
	"sync"
	"time"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"go.uber.org/zap"
)

// Subscriber is one dashboard connection registered with a Hub.
type Subscriber struct {
	hub      *Hub
	tenantID int64
	conn     Conn

	// out is never closed; done signals shutdown so enqueue cannot race a close.
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// TenantID returns the restaurant the subscriber listens to.
func (s *Subscriber) TenantID() int64 {
	return s.tenantID
}

// Done is closed when the subscription ends.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes and closes the connection. It is idempotent and safe to
// call while a delivery is in flight.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.hub.logger.Debug("Closing dashboard connection", zap.Error(err))
		}
		s.hub.metrics.AddSubscribers(-1)
	})
}

// enqueue queues msg without blocking. It reports false when the queue is full.
func (s *Subscriber) enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}

	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

// heartbeat is sent on idle connections so proxies keep them open and a
// peer that went away is found by a failing write.
var heartbeat = []byte(`{"type":"ping"}`)

func (s *Subscriber) run() {
	defer s.hub.wg.Done()

	idle := time.NewTimer(s.hub.opts.HeartbeatInterval)
	defer idle.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := s.conn.Send(msg, s.hub.opts.SendTimeout); err != nil {
				s.fail("send", apperrors.DeliveryFailure(err))
				return
			}
		case <-idle.C:
			if err := s.conn.Send(heartbeat, s.hub.opts.SendTimeout); err != nil {
				s.fail("heartbeat", apperrors.DeliveryFailure(err))
				return
			}
		}
		idle.Reset(s.hub.opts.HeartbeatInterval)
	}
}

// fail ends a subscription after a delivery failure. The failure stays here.
func (s *Subscriber) fail(reason string, err error) {
	select {
	case <-s.done:
		return
	default:
	}

	s.hub.metrics.RecordDeliveryFailure(reason)
	s.hub.logger.Info("Dropping dashboard connection",
		zap.Int64("tenant_id", s.tenantID),
		zap.String("reason", reason),
		zap.Error(err))
	s.Close()
}
