package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	clientSendBuf       = 256
	publishBuf          = 4096
	maxConsecutiveDrops = 50
)

// Hub fans egress envelopes out to WebSocket clients. All bookkeeping runs
// on the hub goroutine; Publish never blocks the subscriber — when the
// publish channel is full the message is dropped and counted.
type Hub struct {
	register   chan *wsClient
	unregister chan *wsClient
	publish    chan []byte

	clients map[*wsClient]struct{}

	publishDrops atomic.Uint64
	upgrader     websocket.Upgrader
	log          *zap.Logger
}

type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	drops int
}

// NewHub creates a hub; run it with go hub.Run(ctx).
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		publish:    make(chan []byte, publishBuf),
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run is the hub event loop; it stops when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("ws hub started")
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.publish:
			for c := range h.clients {
				select {
				case c.send <- msg:
					c.drops = 0
				default:
					// Slow client: skip the message, evict after too many.
					c.drops++
					if c.drops >= maxConsecutiveDrops {
						delete(h.clients, c)
						close(c.send)
					}
				}
			}
		}
	}
}

// Publish queues one payload for broadcast. Safe from any goroutine.
func (h *Hub) Publish(payload []byte) {
	msg := make([]byte, len(payload)) // payload is the subscriber's reused buffer
	copy(msg, payload)
	select {
	case h.publish <- msg:
	default:
		h.publishDrops.Add(1)
	}
}

// PublishDrops returns the number of broadcasts dropped at the hub inlet.
func (h *Hub) PublishDrops() uint64 {
	return h.publishDrops.Load()
}

// ServeWS upgrades an HTTP request into a streaming client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, clientSendBuf)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

// readPump discards client frames; it exists to notice closes and answer
// control frames.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
