package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomhub/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// Client wraps one websocket connection: an id stable for the session, a
// buffered send channel drained by the write pump, and a read pump feeding
// decoded envelopes to the hub's event handler.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	log  *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, hub *Hub, log *slog.Logger, sendBufferSize int) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		id:   id,
		conn: conn,
		hub:  hub,
		log:  log,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Consume queues one outbound event. It never blocks: a full buffer means
// the client cannot keep up with the fanout and reports an error so the hub
// drops the session.
func (c *Client) Consume(event string, payload any) error {
	select {
	case <-c.done:
		return fmt.Errorf("session %s closed", c.id)
	default:
	}

	frame, err := json.Marshal(protocol.OutboundEnvelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("send buffer full for session %s", c.id)
	}
}

// close releases the session exactly once: the done channel stops both
// pumps and the hub runs its disconnect cleanup.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		c.hub.disconnect(c.id)
	})
}

func (c *Client) readPump() {
	defer c.close()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected websocket close", "connection_id", c.id, "error", err)
			}
			return
		}

		var envelope protocol.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.log.Debug("Discarding malformed frame", "connection_id", c.id, "error", err)
			continue
		}
		if envelope.Event == "" {
			continue
		}
		c.hub.handler.Handle(c.id, envelope.Event, envelope.Payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
