package handler

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

// asTenant marks every request as coming from tenantID.
func asTenant(tenantID int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithTenantID(r.Context(), tenantID)))
	})
}

func dialEvents(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	return websocket.Dial(url, "", origin)
}

func TestEventsStreamsOwnTenantOnly(t *testing.T) {
	env := newTestEnv(t)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	srv := httptest.NewServer(asTenant(1, env.httpRouter))
	defer srv.Close()

	ws, err := dialEvents(t, srv, "http://localhost")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return env.hub.SubscriberCount(1) == 1 }, time.Second, 5*time.Millisecond)

	env.hub.Publish(context.Background(), broadcast.SectionDeleted(2, 8))
	env.hub.Publish(context.Background(), broadcast.SectionDeleted(1, 7))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw string
	require.NoError(t, websocket.Message.Receive(ws, &raw))

	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, "delete_section", msg["type"])
	assert.EqualValues(t, 7, msg["id"])
}

func TestEventsUnsubscribesOnClientClose(t *testing.T) {
	env := newTestEnv(t)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	srv := httptest.NewServer(asTenant(1, env.httpRouter))
	defer srv.Close()

	ws, err := dialEvents(t, srv, "http://localhost")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.hub.SubscriberCount(1) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool { return env.hub.SubscriberCount(1) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventsRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("admin_a", nil)

	srv := httptest.NewServer(asTenant(1, env.httpRouter))
	defer srv.Close()

	_, err := dialEvents(t, srv, "http://evil.example")
	assert.Error(t, err)
	assert.Equal(t, 0, env.hub.SubscriberCount(1))
}

func TestEventsRejectsUnknownTenant(t *testing.T) {
	env := newTestEnv(t)
	env.registry.On("Resolve", mock.Anything, int64(1)).Return("", apperrors.TenantNotFound(1))

	srv := httptest.NewServer(asTenant(1, env.httpRouter))
	defer srv.Close()

	_, err := dialEvents(t, srv, "http://localhost")
	assert.Error(t, err)
}

// pipeConn is a websocket transport without deadline support.
type pipeConn struct {
	io.Reader
	io.WriteCloser
	closed atomic.Bool
}

func (c *pipeConn) Close() error {
	c.closed.Store(true)
	return c.WriteCloser.Close()
}

// dialPipe completes a client handshake over in-memory pipes and returns the
// client side of the connection.
func dialPipe(t *testing.T) (*websocket.Conn, *pipeConn) {
	t.Helper()
	fromClient, clientOut := io.Pipe()
	clientIn, toClient := io.Pipe()
	t.Cleanup(func() {
		fromClient.Close()
		toClient.Close()
	})

	go func() {
		req, err := http.ReadRequest(bufio.NewReader(fromClient))
		if err != nil {
			return
		}
		sum := sha1.Sum([]byte(req.Header.Get("Sec-Websocket-Key") + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
		io.WriteString(toClient, "HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: "+base64.StdEncoding.EncodeToString(sum[:])+"\r\n\r\n")
		io.Copy(io.Discard, fromClient)
	}()

	cfg, err := websocket.NewConfig("ws://pos.test/api/events", "http://localhost")
	require.NoError(t, err)
	conn := &pipeConn{Reader: clientIn, WriteCloser: clientOut}
	ws, err := websocket.NewClient(cfg, conn)
	require.NoError(t, err)
	return ws, conn
}

func TestEventsClosesFeedWhenDeadlineCannotBeCleared(t *testing.T) {
	env := newTestEnv(t)
	ws, conn := dialPipe(t)

	done := make(chan struct{})
	go func() {
		env.handlers.serveEvents(1, ws)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("live feed kept running without a usable deadline")
	}
	assert.True(t, conn.closed.Load())
	assert.Equal(t, 0, env.hub.SubscriberCount(1))
}
