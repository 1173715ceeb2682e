package ws

import (
	"context"
	"encoding/json"
	"time"

	"video-recon-pipeline/internal/domain/ports/repository"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxClientMessageBytes = 4 << 10

// Client is one WebSocket consumer. Reads and writes run on separate
// goroutines; the send channel decouples the hub from the socket. The
// client carries its own context, scoped to the connection: the upgrade
// request's context is canceled by net/http the moment the handler
// returns, long before the pumps are done with it.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	ctx    context.Context
	cancel context.CancelFunc

	pingInterval time.Duration
	pongWait     time.Duration

	status repository.JobStatusStore
	log    *zerolog.Logger
}

type clientMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id,omitempty"`
	JobID    string `json:"job_id,omitempty"`
}

func newClient(parent context.Context, conn *websocket.Conn, hub *Hub, status repository.JobStatusStore, pingInterval, pongWait time.Duration, logger *zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(parent)
	return &Client{
		id:           conn.RemoteAddr().String(),
		conn:         conn,
		send:         make(chan []byte, 32),
		hub:          hub,
		ctx:          ctx,
		cancel:       cancel,
		pingInterval: pingInterval,
		pongWait:     pongWait,
		status:       status,
		log:          logger,
	}
}

func (c *Client) close() {
	c.cancel()
	_ = c.conn.Close()
}

// readPump consumes client control messages: identify and subscribe_job.
// A subscribe_job gets an immediate reply with the job's current record
// so late subscribers do not start blind.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(maxClientMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "identify":
			if msg.ClientID != "" {
				c.id = msg.ClientID
			}
		case "subscribe_job":
			job, err := c.status.Get(c.ctx, msg.JobID)
			if err != nil {
				continue
			}
			reply, err := json.Marshal(Envelope{Type: "job_status", Data: job})
			if err != nil {
				continue
			}
			select {
			case c.send <- reply:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
