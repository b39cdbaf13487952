package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building-access-service/internal/types"
)

func newTestHub() *EventHub {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewEventHub(logger)
}

// newWSPair dials a loopback WebSocket and returns the server-side connection
func newWSPair(t *testing.T) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- c
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-accepted:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(time.Second):
		t.Fatal("server side of the WebSocket pair never arrived")
		return nil
	}
}

func TestEventHubSurvivesStaleConnectionSweep(t *testing.T) {
	hub := newTestHub()
	hub.pingInterval = 10 * time.Millisecond

	stale := &hubConn{
		id:       "stale",
		conn:     newWSPair(t),
		send:     make(chan EventMessage, 1),
		lastPing: time.Now().Add(-2 * time.Minute),
	}
	hub.connections[stale.id] = stale

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 0 },
		time.Second, 10*time.Millisecond, "stale connection was never swept")

	// The run loop must stay responsive after the sweep: register a live
	// connection and broadcast through it
	live := &hubConn{
		id:       "live",
		conn:     newWSPair(t),
		send:     make(chan EventMessage, 4),
		lastPing: time.Now(),
	}
	select {
	case hub.register <- live:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("hub stopped accepting registrations after sweeping a stale connection")
	}
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, types.EventAccessGranted, map[string]string{"door_id": "front"}))
	select {
	case msg := <-live.send:
		assert.Equal(t, types.EventAccessGranted, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached the live connection")
	}
}

func TestEventHubSubscriptionUpdate(t *testing.T) {
	hub := newTestHub()
	conn := &hubConn{id: "c1", send: make(chan EventMessage, 1)}

	// No subscription means every event is wanted
	assert.True(t, conn.wants(types.EventAccessGranted))

	hub.handleClientMessage(conn, []byte(`{"type":"subscribe","eventTypes":["access.denied","not.a.real.event"]}`))
	assert.Equal(t, []types.EventType{types.EventAccessDenied}, conn.eventTypes)
	assert.False(t, conn.wants(types.EventAccessGranted))
	assert.True(t, conn.wants(types.EventAccessDenied))

	// Non-subscribe frames leave the subscription alone
	hub.handleClientMessage(conn, []byte(`{"type":"noise"}`))
	assert.Equal(t, []types.EventType{types.EventAccessDenied}, conn.eventTypes)
}
