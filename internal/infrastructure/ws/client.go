package ws

import (
	"errors"

	"github.com/auxroom/auxroom/internal/protocol"
	"github.com/gorilla/websocket"
)

// Client is one live websocket connection. Clients have no identity of
// their own; the coordinator maps them to room members after admission.
type Client struct {
	ID    string
	conn  *connWrapper
	frame chan []byte
}

func newClient(conn *websocket.Conn, id string) *Client {
	return &Client{
		ID:    id,
		conn:  newConnWrapper(conn),
		frame: make(chan []byte, 64), // buffered to avoid dead-locks on slow clients
	}
}

// readPump decodes inbound frames and hands them to the hub's handler.
// A frame that fails envelope validation closes the connection; a frame
// whose compressed payload is corrupt is logged and discarded.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		msgType, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debugw("ws read error", "client", c.ID, "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			h.log.Debugw("dropping non-binary ws message", "client", c.ID)
			continue
		}

		h.metrics.FramesIn.Inc()

		msg, err := h.codec.DecodeMessage(raw)
		if err != nil {
			if errors.Is(err, protocol.ErrCorruptPayload) {
				h.log.Warnw("corrupt payload, discarding frame", "client", c.ID)
				continue
			}
			h.log.Warnw("malformed frame, closing connection", "client", c.ID, "error", err)
			return
		}

		h.handler.HandleMessage(c.ID, msg.Type, msg.Payload)
	}
}

func (c *Client) writePump(h *Hub) {
	defer func() {
		_ = c.conn.Close()
	}()

	for frame := range c.frame {
		if err := c.conn.WriteBinary(frame); err != nil {
			h.log.Debugw("ws write error", "client", c.ID, "error", err)
			return
		}
		h.metrics.FramesOut.Inc()
	}
}
