package ws

import (
	"context"
	"encoding/json"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Envelope is the wire frame the gateway broadcasts to every client.
type Envelope struct {
	Type      string         `json:"type"` // progress_update | system_metrics | error_report
	Data      any            `json:"data"`
	Timestamp model.UnixTime `json:"timestamp"`
}

// Hub fans messages out to all connected WebSocket clients. All client
// set mutations go through the register/unregister channels so the run
// loop is the only goroutine touching the map.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	log        *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "WSHub").Logger()
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		log:        &l,
	}
}

// Broadcast wraps payload in an envelope and queues it for every client.
// The event payload is forwarded verbatim under "data".
func (h *Hub) Broadcast(eventType string, payload any) {
	env := Envelope{Type: eventType, Data: payload, Timestamp: model.Now()}
	b, err := json.Marshal(env)
	if err != nil {
		h.log.Warn().Err(err).Str("type", eventType).Msg("envelope marshal failed")
		return
	}
	metrics.IncGatewayEvent(eventType)
	select {
	case h.broadcast <- b:
	default:
		h.log.Warn().Str("type", eventType).Msg("broadcast queue full, dropping event")
	}
}

func (h *Hub) Run(ctx context.Context) error {
	h.log.Info().Msg("Starting ws hub")
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.close()
			}
			h.log.Info().Msg("Stopping ws hub")
			return ctx.Err()
		case c := <-h.register:
			h.clients[c] = true
			metrics.SetWSClients(len(h.clients))
			h.log.Info().Str("client_id", c.id).Int("clients", len(h.clients)).Msg("client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			metrics.SetWSClients(len(h.clients))
			h.log.Info().Str("client_id", c.id).Int("clients", len(h.clients)).Msg("client disconnected")
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(h.clients, c)
					c.close()
				}
			}
			metrics.SetWSClients(len(h.clients))
		}
	}
}
