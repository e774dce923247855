// Package ws owns the websocket edge: it upgrades connections, runs the
// read/write pumps, and moves envelope frames between sockets and the
// message handler.
package ws

import (
	"net/http"
	"sync"

	"github.com/auxroom/auxroom/internal/infrastructure/metrics"
	"github.com/auxroom/auxroom/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler consumes decoded client messages. Payload is nil for message
// types the registry does not know.
type Handler interface {
	HandleMessage(clientID, msgType string, payload any)
	ClientClosed(clientID string)
}

type Hub struct {
	codec   *protocol.Codec
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[string]*Client
	handler Handler

	upgrader websocket.Upgrader
}

func NewHub(codec *protocol.Codec, m *metrics.Metrics, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		codec:   codec,
		metrics: m,
		log:     logger,
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetHandler must run before Serve accepts the first connection; the hub
// and its handler reference each other, so wiring happens in two steps.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Serve upgrades one HTTP request and runs the connection until either
// side closes it.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("ws upgrade failed", "error", err)
		return
	}

	client := newClient(conn, uuid.NewString())

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	h.metrics.ActiveConnections.Inc()

	go client.writePump(h)
	client.readPump(h)
}

// Send encodes and queues a message for one connection. A slow client
// whose buffer is full loses the frame rather than stalling the room.
func (h *Hub) Send(clientID string, msg *protocol.Message) {
	frame, err := h.codec.Encode(msg.Type, msg.Payload)
	if err != nil {
		h.log.Errorw("encode failed", "type", msg.Type, "error", err)
		return
	}
	if frame[0]&0x01 != 0 {
		h.metrics.CompressedFrames.Inc()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	// frame is only ever closed under the write lock (CloseClient,
	// unregister), so it cannot close while we hold the read lock.
	select {
	case client.frame <- frame:
	default:
		h.metrics.FramesDropped.Inc()
		h.log.Warnw("client buffer full, dropping frame", "client", clientID, "type", msg.Type)
	}
}

// CloseClient flushes queued frames and closes the connection. Used when
// the server ends a session (kick, rejected join, invalid token).
func (h *Hub) CloseClient(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
		close(client.frame)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.ActiveConnections.Dec()
	}
}

// unregister tears down after the read pump exits. No-op if CloseClient
// already removed the client.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	cur, ok := h.clients[c.ID]
	if ok && cur == c {
		delete(h.clients, c.ID)
		close(c.frame)
	}
	h.mu.Unlock()

	if ok && cur == c {
		h.metrics.ActiveConnections.Dec()
		h.handler.ClientClosed(c.ID)
	}
}
