package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var ErrClientClosed = errors.New("server: websocket client closed")

// Message is the envelope for everything pushed to browsers.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Inbound is a message received from a browser.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hooks connect the manager to the application. All fields are optional.
type Hooks struct {
	// Authorize resolves the session a connection belongs to; returning
	// false rejects the upgrade.
	Authorize    func(r *http.Request) (sessionID string, ok bool)
	OnConnect    func(c *Client)
	OnMessage    func(c *Client, msg Inbound)
	OnDisconnect func(c *Client)
}

// Client is one websocket connection.
type Client struct {
	ID        string
	SessionID string

	manager *WebSocketManager
	conn    *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Send queues msg for this client only.
func (c *Client) Send(msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.closed:
		return ErrClientClosed
	default:
		// slow consumer
		c.manager.log.Warn("websocket send buffer full, dropping client", zap.String("client", c.ID))
		c.close()
		return ErrClientClosed
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// WebSocketManager tracks connected clients and fans messages out to them.
type WebSocketManager struct {
	log      *zap.Logger
	hooks    Hooks
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	quit       chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
}

func NewWebSocketManager(log *zap.Logger, hooks Hooks) *WebSocketManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketManager{
		log:   log,
		hooks: hooks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, sendBuffer),
		quit:       make(chan struct{}),
	}
}

// Start runs the registration loop. It must be called before HandleWebSocket.
func (m *WebSocketManager) Start() {
	m.startOnce.Do(func() { go m.run() })
}

// Stop disconnects every client and ends the loop.
func (m *WebSocketManager) Stop() {
	m.stopOnce.Do(func() { close(m.quit) })
}

func (m *WebSocketManager) run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			m.clients[c] = true
			m.mu.Unlock()
			m.log.Debug("websocket client connected", zap.String("client", c.ID), zap.Int("clients", m.GetClientCount()))

		case c := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
			}
			m.mu.Unlock()
			c.close()
			m.log.Debug("websocket client disconnected", zap.String("client", c.ID), zap.Int("clients", m.GetClientCount()))

		case msg := <-m.broadcast:
			for _, c := range m.snapshot() {
				_ = c.Send(msg)
			}

		case <-m.quit:
			for _, c := range m.snapshot() {
				c.close()
			}
			return
		}
	}
}

func (m *WebSocketManager) snapshot() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		out = append(out, c)
	}
	return out
}

// BroadcastMessage sends msg to every connected client.
func (m *WebSocketManager) BroadcastMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case m.broadcast <- msg:
	case <-m.quit:
	}
}

// SendToSession sends msg to every connection of one viewer session.
func (m *WebSocketManager) SendToSession(sessionID string, msg Message) int {
	n := 0
	for _, c := range m.snapshot() {
		if c.SessionID == sessionID && c.Send(msg) == nil {
			n++
		}
	}
	return n
}

func (m *WebSocketManager) GetClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
func (m *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if m.hooks.Authorize != nil {
		id, ok := m.hooks.Authorize(r)
		if !ok {
			http.Error(w, "unknown session", http.StatusUnauthorized)
			return
		}
		sessionID = id
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		manager:   m,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
	}

	select {
	case m.register <- c:
	case <-m.quit:
		c.close()
		return
	}

	go m.writePump(c)
	if m.hooks.OnConnect != nil {
		m.hooks.OnConnect(c)
	}
	m.readPump(c)
}

func (m *WebSocketManager) readPump(c *Client) {
	defer func() {
		if m.hooks.OnDisconnect != nil {
			m.hooks.OnDisconnect(c)
		}
		select {
		case m.unregister <- c:
		case <-m.quit:
			c.close()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Warn("websocket read failed", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}
		if m.hooks.OnMessage != nil {
			m.hooks.OnMessage(c, msg)
		}
	}
}

func (m *WebSocketManager) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
