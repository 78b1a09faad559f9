// Package notify pushes reminders to connected browsers over websockets.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	appLog "vnsched/internal/log"
	"vnsched/internal/metrics"
	"vnsched/internal/model"
)

// Message is what clients receive.
type Message struct {
	Type    string             `json:"type"`
	ID      int64              `json:"id,omitempty"`
	Message string             `json:"message,omitempty"`
	Event   *model.EventRecord `json:"event,omitempty"`
}

// client is anything the hub can hand encoded messages to.
type client interface {
	sendChannel() chan []byte
	close()
}

type conn struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte
}

func (c *conn) sendChannel() chan []byte { return c.send }

func (c *conn) close() {
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
}

// Hub fans messages out to every connected client. A client that cannot
// keep up is dropped rather than allowed to block the others.
type Hub struct {
	clients    map[client]bool
	broadcast  chan Message
	register   chan client
	unregister chan client

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	// OriginPatterns is passed to websocket.Accept. Empty means same-origin
	// only.
	OriginPatterns []string
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan client),
		unregister: make(chan client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			appLog.Debug("ws client connected", "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.sendChannel())
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(n))
			appLog.Debug("ws client disconnected", "clients", n)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				appLog.Error("ws message encode failed", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.sendChannel() <- data:
				default:
					close(c.sendChannel())
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for c := range h.clients {
		close(c.sendChannel())
		c.close()
	}
	h.clients = make(map[client]bool)
	h.mu.Unlock()
	metrics.WSClients.Set(0)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		appLog.Warn("ws broadcast queue full, dropping message", "type", msg.Type)
	}
}

// Notify broadcasts a reminder for ev.
func (h *Hub) Notify(_ context.Context, ev model.Event, text string) error {
	rec := ev.Record()
	h.Broadcast(Message{Type: "reminder", ID: ev.ID, Message: text, Event: &rec})
	return nil
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		appLog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := &conn{hub: h, ws: ws, send: make(chan []byte, 64)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		c.close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *conn) writePump() {
	defer c.leave()

	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.ws.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			appLog.Debug("ws write failed", "err", err)
			return
		}
	}
}

// readPump only drains the socket so disconnects are noticed.
func (c *conn) readPump() {
	defer c.leave()

	for {
		if _, _, err := c.ws.Read(c.hub.ctx); err != nil {
			return
		}
	}
}

func (c *conn) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.ctx.Done():
	}
	c.close()
}
