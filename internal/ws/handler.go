package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ai-character-chat-simulator/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBuffer = 64
)

// Message is the envelope of every frame in both directions
type Message struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// StateFunc returns the events that bring a fresh client up to date
type StateFunc func() []Message

// Client is one connected browser
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

// Hub keeps the set of clients and fans published events out to all of them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	state      StateFunc
	upgrader   websocket.Upgrader
	log        *logger.Logger
	mu         sync.Mutex
}

// NewHub creates a hub. allowedOrigins of ["*"] or empty accepts any origin.
func NewHub(state StateFunc, allowedOrigins []string, log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		state:      state,
		log:        log.WithComponent("ws_hub"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client registered", "client_id", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn("client removed due to blocked channel", "client_id", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish broadcasts one event to every connected client
func (h *Hub) Publish(eventType string, content any) {
	data, err := json.Marshal(Message{Type: eventType, Content: content})
	if err != nil {
		h.log.LogError(err, "failed to encode event", "type", eventType)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWs upgrades the request and starts the client's pumps
func (h *Hub) ServeWs(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.LogError(err, "websocket upgrade failed")
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Hub:  h,
	}

	// Queued before registration, so nothing else can close Send yet
	for _, data := range h.encodeState() {
		client.Send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) encodeState() [][]byte {
	if h.state == nil {
		return nil
	}
	var out [][]byte
	for _, m := range h.state() {
		data, err := json.Marshal(m)
		if err != nil {
			h.log.LogError(err, "failed to encode state", "type", m.Type)
			continue
		}
		if len(out) < sendBuffer {
			out = append(out, data)
		}
	}
	return out
}

// sendMessage queues a frame for this client only while the hub still holds it
func (c *Client) sendMessage(msgType string, content any) {
	data, err := json.Marshal(Message{Type: msgType, Content: content})
	if err != nil {
		c.Hub.log.LogError(err, "failed to encode message", "type", msgType)
		return
	}
	c.queue(data)
}

func (c *Client) queue(data []byte) {
	c.Hub.mu.Lock()
	defer c.Hub.mu.Unlock()
	if !c.Hub.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn("dropping message for slow client", "client_id", c.ID)
	}
}

// ReadPump handles inbound frames: "ping" is answered with "pong", "sync" with the
// full current state
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket closed unexpectedly", "client_id", c.ID, "error", err.Error())
			}
			return
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.Hub.log.Debug("ignoring malformed frame", "client_id", c.ID)
			continue
		}

		switch message.Type {
		case "ping":
			c.sendMessage("pong", nil)
		case "sync":
			for _, data := range c.Hub.encodeState() {
				c.queue(data)
			}
		default:
			c.sendMessage("error", "unknown message type: "+message.Type)
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
