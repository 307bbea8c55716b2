// Package ws pushes round engine events to players over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"taixiu-dealer/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ConnMetrics observes connection churn. Optional.
type ConnMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

// Hub fans events out to every open connection of the event's player.
// It implements ports.RoundObserver.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.RoundEvent
	done       chan struct{}

	open    atomic.Int64
	metrics ConnMetrics
	log     zerolog.Logger
}

// Client is one WebSocket connection.
type Client struct {
	hub      *Hub
	username string
	conn     *websocket.Conn
	send     chan []byte // closed by the hub
	control  chan []byte // replies to the client, never closed
}

// inbound is what players may send. Only ping is understood.
type inbound struct {
	Type string `json:"type"`
}

// NewHub creates a Hub. Call Run before publishing.
func NewHub(metrics ConnMetrics, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan domain.RoundEvent, 256),
		done:       make(chan struct{}),
		metrics:    metrics,
		log:        log,
	}
}

// Run serves registrations and deliveries until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.username]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.username] = set
			}
			set[client] = struct{}{}
			h.open.Add(1)
			if h.metrics != nil {
				h.metrics.ConnectionOpened()
			}
			h.log.Debug().Str("username", client.username).Msg("ws client registered")

		case client := <-h.unregister:
			h.remove(client)

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					h.remove(client)
				}
			}
			return
		}
	}
}

// Publish queues ev for delivery. It never blocks; events are dropped when the queue is full.
func (h *Hub) Publish(ev domain.RoundEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn().Str("type", string(ev.Type)).Str("username", ev.Username).Msg("ws broadcast queue full, event dropped")
	}
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	return int(h.open.Load())
}

func (h *Hub) deliver(ev domain.RoundEvent) {
	set := h.clients[ev.Username]
	if len(set) == 0 {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(ev.Type)).Msg("failed to encode ws event")
		return
	}
	for client := range set {
		select {
		case client.send <- data:
		default:
			// Slow reader.
			h.remove(client)
		}
	}
}

// remove must run on the Run goroutine.
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.username]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.username)
	}
	close(client.send)
	h.open.Add(-1)
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
	h.log.Debug().Str("username", client.username).Msg("ws client unregistered")
}

// ServeWS upgrades the request and streams username's events to it.
// initial events are sent before anything published afterwards.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, username string, initial ...domain.RoundEvent) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("username", username).Msg("failed to upgrade to websocket")
		return
	}

	client := &Client{
		hub:      h,
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		control:  make(chan []byte, 1),
	}
	for _, ev := range initial {
		if data, err := json.Marshal(ev); err == nil && len(client.send) < sendBuffer {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("username", c.username).Msg("websocket error")
			}
			return
		}

		if msg.Type == "ping" {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().UTC(),
			})
			select {
			case c.control <- pong:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case data := <-c.control:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
