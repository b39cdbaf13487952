package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/types"
)

// EventMessage is the frame sent to WebSocket clients
type EventMessage struct {
	Type      types.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      interface{}     `json:"data"`
}

// hubConn represents a single WebSocket connection
type hubConn struct {
	id         string
	conn       *websocket.Conn
	send       chan EventMessage
	eventTypes []types.EventType
	lastPing   time.Time
	remoteAddr string
}

// wants reports whether the connection's subscription covers the event
func (c *hubConn) wants(eventType types.EventType) bool {
	if len(c.eventTypes) == 0 {
		return true
	}
	for _, et := range c.eventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// EventHub broadcasts domain events to connected dashboard clients. It
// implements the event publisher interface so it can sit behind the bus as
// a secondary, best-effort sink.
type EventHub struct {
	connections map[string]*hubConn
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *logrus.Logger
	broadcast   chan EventMessage
	register    chan *hubConn
	unregister  chan *hubConn
	done        chan struct{}

	pingInterval   time.Duration
	pongTimeout    time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
	maxConnections int
}

// NewEventHub creates an event hub
func NewEventHub(logger *logrus.Logger) *EventHub {
	return &EventHub{
		connections: make(map[string]*hubConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:         logger,
		broadcast:      make(chan EventMessage, 256),
		register:       make(chan *hubConn),
		unregister:     make(chan *hubConn),
		done:           make(chan struct{}),
		pingInterval:   30 * time.Second,
		pongTimeout:    60 * time.Second,
		writeTimeout:   10 * time.Second,
		readTimeout:    60 * time.Second,
		maxConnections: 100,
	}
}

// Publish broadcasts an event to connected clients. Dropped frames are not
// an error; the bus is the durable channel, this one is live display only.
func (h *EventHub) Publish(ctx context.Context, eventType types.EventType, payload interface{}) error {
	message := EventMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.WithField("event_type", eventType).Debug("Broadcast channel full, dropping frame")
	}
	return nil
}

// Close stops the hub
func (h *EventHub) Close() error {
	h.Stop()
	return nil
}

// Start starts the hub's broadcast loop
func (h *EventHub) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop stops the hub
func (h *EventHub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *EventHub) run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case conn := <-h.register:
			h.addConn(conn)
		case conn := <-h.unregister:
			h.removeConn(conn)
		case message := <-h.broadcast:
			h.fanOut(message)
		case <-ticker.C:
			h.pingConnections()
		}
	}
}

func (h *EventHub) addConn(conn *hubConn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.connections) >= h.maxConnections {
		h.logger.WithField("connection_id", conn.id).Warn("Maximum WebSocket connections reached")
		conn.conn.Close()
		return
	}

	h.connections[conn.id] = conn
	h.logger.WithFields(logrus.Fields{
		"connection_id": conn.id,
		"remote_addr":   conn.remoteAddr,
		"total_conns":   len(h.connections),
	}).Info("WebSocket connection registered")
}

func (h *EventHub) removeConn(conn *hubConn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.connections[conn.id]; exists {
		delete(h.connections, conn.id)
		close(conn.send)
		h.logger.WithFields(logrus.Fields{
			"connection_id": conn.id,
			"total_conns":   len(h.connections),
		}).Info("WebSocket connection unregistered")
	}
}

func (h *EventHub) fanOut(message EventMessage) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, conn := range h.connections {
		if !conn.wants(message.Type) {
			continue
		}
		select {
		case conn.send <- message:
		default:
			// Connection is blocked, drop it
			go func(c *hubConn) {
				h.unregister <- c
			}(conn)
		}
	}
}

func (h *EventHub) pingConnections() {
	h.mutex.RLock()
	connections := make([]*hubConn, 0, len(h.connections))
	for _, conn := range h.connections {
		connections = append(connections, conn)
	}
	h.mutex.RUnlock()

	// pingConnections runs on the hub goroutine, which is the only receiver
	// on the unregister channel; dropping stale connections must go through
	// removeConn directly or the loop deadlocks on its own channel
	for _, conn := range connections {
		if time.Since(conn.lastPing) > h.pongTimeout {
			h.logger.WithField("connection_id", conn.id).Warn("WebSocket connection timed out")
			h.removeConn(conn)
			continue
		}

		conn.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			h.removeConn(conn)
		}
	}
}

// ConnectionCount returns the current number of WebSocket connections
func (h *EventHub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections)
}

// WebSocketHandler handles GET /api/v1/ws and upgrades the connection.
// Clients may pass ?events=access.granted,access.denied to subscribe to a
// subset; no parameter means all events.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	var eventTypes []types.EventType
	if raw := r.URL.Query().Get("events"); raw != "" {
		for _, et := range splitComma(raw) {
			candidate := types.EventType(et)
			if !types.IsValidEventType(candidate) {
				h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown event type: %s", et))
				return
			}
			eventTypes = append(eventTypes, candidate)
		}
	}

	conn, err := h.wsHub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	wsConn := &hubConn{
		id:         fmt.Sprintf("conn_%d", time.Now().UnixNano()),
		conn:       conn,
		send:       make(chan EventMessage, 256),
		eventTypes: eventTypes,
		lastPing:   time.Now(),
		remoteAddr: r.RemoteAddr,
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.wsHub.readTimeout))
	conn.SetPongHandler(func(string) error {
		wsConn.lastPing = time.Now()
		conn.SetReadDeadline(time.Now().Add(h.wsHub.readTimeout))
		return nil
	})

	h.wsHub.register <- wsConn

	go h.wsHub.writePump(wsConn)
	go h.wsHub.readPump(wsConn)
}

// WebSocketStatus handles GET /api/v1/ws/status
func (h *Handlers) WebSocketStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": h.wsHub.ConnectionCount(),
	})
}

func (h *EventHub) writePump(conn *hubConn) {
	defer conn.conn.Close()

	for message := range conn.send {
		conn.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.conn.WriteJSON(message); err != nil {
			h.logger.WithError(err).WithField("connection_id", conn.id).Debug("Failed to write WebSocket message")
			return
		}
	}

	conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *EventHub) readPump(conn *hubConn) {
	defer func() {
		h.unregister <- conn
		conn.conn.Close()
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).WithField("connection_id", conn.id).Debug("WebSocket connection error")
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.handleClientMessage(conn, data)
		}

		conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

// handleClientMessage processes subscription updates from clients
func (h *EventHub) handleClientMessage(conn *hubConn, data []byte) {
	var message struct {
		Type       string   `json:"type"`
		EventTypes []string `json:"eventTypes"`
	}
	if err := json.Unmarshal(data, &message); err != nil {
		return
	}

	if message.Type != "subscribe" {
		return
	}

	var eventTypes []types.EventType
	for _, et := range message.EventTypes {
		candidate := types.EventType(et)
		if types.IsValidEventType(candidate) {
			eventTypes = append(eventTypes, candidate)
		}
	}

	// fanOut reads eventTypes under the hub mutex; guard the update the
	// same way since this runs on the connection's read goroutine
	h.mutex.Lock()
	conn.eventTypes = eventTypes
	h.mutex.Unlock()

	h.logger.WithFields(logrus.Fields{
		"connection_id": conn.id,
		"event_types":   message.EventTypes,
	}).Debug("WebSocket subscription updated")
}

func splitComma(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
