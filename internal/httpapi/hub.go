package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rtgssim/internal/domain"
	"rtgssim/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// tickMessage is what the hub broadcasts after every Tick call.
type tickMessage struct {
	Result orchestrator.TickResult `json:"result"`
	Events []domain.Event          `json:"events"`
}

// client is one connected dashboard.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out tick broadcasts to every connected client, mirroring the
// register/unregister/broadcast channel loop used elsewhere in the
// example corpus for WebSocket hubs.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	mu         sync.RWMutex
}

// NewHub builds an idle Hub; call Run to start its event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run drives the hub's event loop. It never returns; call it in a
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastTick marshals a tick result and its events and queues them for
// every connected client. A full broadcast channel drops the message
// rather than blocking the tick loop.
func (h *Hub) BroadcastTick(result orchestrator.TickResult, events []domain.Event) {
	data, err := json.Marshal(tickMessage{Result: result, Events: events})
	if err != nil {
		log.Printf("httpapi: failed to marshal tick message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("httpapi: broadcast channel full, dropping tick %d", result.Tick)
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// the resulting client with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register <- c

	go c.writePump(h)
	go c.readPump(h)
}

func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
