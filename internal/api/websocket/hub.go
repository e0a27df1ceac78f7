// Package websocket streams cross-match job progress to connected
// clients over gorilla/websocket, fed by internal/eventbus stage events.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrocross/nway/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope every event is wrapped in before being sent
// to a client.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Client is one upgraded WebSocket connection, optionally scoped to a
// single job ID (empty means "all jobs").
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	id    string
	jobID string
}

// Hub fans out job progress events to every interested client. It
// subscribes once to the shared eventbus.EventBus at construction and
// translates each eventbus.StageProgress into a per-client message,
// filtered by job ID.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan eventbus.StageProgress
	register   chan *Client
	unregister chan *Client
	nextID     int
}

// NewHub creates a Hub and subscribes it to bus's stage-progress topic.
func NewHub(ctx context.Context, bus eventbus.EventBus) (*Hub, error) {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan eventbus.StageProgress, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
	_, err := bus.Subscribe(ctx, eventbus.StageEventTopic, func(e eventbus.Event) {
		if p, ok := e.Data.(eventbus.StageProgress); ok {
			select {
			case h.broadcast <- p:
			default:
				log.Println("websocket: broadcast channel full, dropping progress event")
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Run starts the hub's main loop; it returns when ctx is cancelled,
// closing every connected client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("websocket: client connected: %s", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("websocket: client disconnected: %s", client.id)
			}
			h.mu.Unlock()

		case p := <-h.broadcast:
			h.dispatch(p)
		}
	}
}

func (h *Hub) dispatch(p eventbus.StageProgress) {
	msg := Message{Type: "job.progress", Timestamp: time.Now().UTC(), Data: p}
	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("websocket: failed to marshal progress message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.jobID != "" && client.jobID != p.JobID {
			continue
		}
		select {
		case client.send <- bytes:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the resulting
// client, scoped to jobID (empty subscribes to every job).
func (h *Hub) HandleWebSocket(jobID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket: upgrade failed: %v", err)
			return
		}

		h.mu.Lock()
		h.nextID++
		clientID := string(rune('A'+h.nextID%26)) + "-" + time.Now().Format("150405")
		h.mu.Unlock()

		client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), id: clientID, jobID: jobID}
		h.register <- client

		welcome := Message{
			Type:      "connection.established",
			Timestamp: time.Now().UTC(),
			Data:      map[string]any{"client_id": clientID, "job_id": jobID},
		}
		if bytes, err := json.Marshal(welcome); err == nil {
			client.send <- bytes
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error: %v", err)
			}
			break
		}
		// clients only receive progress; any inbound frame (ping, etc.)
		// is discarded after refreshing the read deadline above.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
