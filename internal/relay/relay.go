// Package relay pushes session events to browser dashboards over
// websockets. It subscribes to the event bus like any other consumer and
// fans frames out to connected clients; a client that cannot keep up is
// disconnected rather than allowed to stall the fanout.
package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rig-control/rigproxy/internal/adapter"
	"github.com/rig-control/rigproxy/internal/bus"
)

// Frame is the JSON message sent to dashboard clients.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SessionReader is what the relay needs from the session manager to
// greet new clients with the current snapshot.
type SessionReader interface {
	GetState() *adapter.RadioState
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump(writeTimeout time.Duration) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub owns the client set and the bus subscription.
type Hub struct {
	session      SessionReader
	events       *bus.Bus
	queue        int
	writeTimeout time.Duration

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a relay hub. Call Run to start forwarding.
func NewHub(session SessionReader, events *bus.Bus, clientQueue int, writeTimeout time.Duration) *Hub {
	return &Hub{
		session:      session,
		events:       events,
		queue:        clientQueue,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard may be served from a different origin than
			// the control API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
}

// Run subscribes to the bus and forwards events until Stop.
func (h *Hub) Run() {
	ch, cancel := h.events.Subscribe(bus.DefaultBuffer)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		for {
			select {
			case <-h.done:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				h.broadcast(Frame{Type: string(ev.Kind()), Data: ev})
			}
		}
	}()
}

// Stop closes the bus subscription and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
	h.wg.Wait()

	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and registers the client. The current
// state snapshot is sent immediately so the dashboard renders without
// waiting for the next poll cycle.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: upgrade: %v", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.queue),
	}
	go c.writePump(h.writeTimeout)

	// Registration and the greeting share the critical section so no
	// broadcast can land in the queue ahead of the snapshot.
	h.mu.Lock()
	h.clients[c.id] = c
	h.sendTo(c, Frame{Type: "radioState", Data: bus.RadioState{
		State: h.session.GetState(),
		At:    time.Now(),
	}})
	h.mu.Unlock()

	// Read loop exists only to notice the close handshake; inbound
	// frames are ignored.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ClientCount reports the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("relay: marshal frame: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			log.Printf("relay: client %s too slow, disconnecting", c.id)
			h.remove(c)
		}
	}
}

func (h *Hub) sendTo(c *client, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		log.Printf("relay: marshal frame: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}
