package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ikkim/shopcore-backend/internal/events"
	"github.com/ikkim/shopcore-backend/pkg/logger"
)

const (
	maxMessagesPerSecond = 10
	sendBufferSize       = 64
)

// ClientMessage is what a connected client may send. Only ping is understood.
type ClientMessage struct {
	Type string `json:"type"`
}

// Client is one socket session. A user may hold several.
type Client struct {
	Hub     *Hub
	Conn    *Conn
	UserID  uint
	IsAdmin bool
	Send    chan []byte

	sendMu sync.Mutex
	closed bool

	rateMu        sync.Mutex
	messageCount  int
	lastResetTime time.Time
}

func NewClient(hub *Hub, conn *Conn, userID uint, isAdmin bool) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		UserID:  userID,
		IsAdmin: isAdmin,
		Send:    make(chan []byte, sendBufferSize),
	}
}

// queue hands payload to the session writer. It reports false only when the
// buffer is full; a closed session silently drops the payload.
func (c *Client) queue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes Send once; later calls are no-ops.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub pushes order events to the owning user's sessions and to every admin session.
type Hub struct {
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu sync.RWMutex
}

type BroadcastMessage struct {
	UserID  uint // zero reaches admins only
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			sessions := len(h.clients[client.UserID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"is_admin":       client.IsAdmin,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientList, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	remaining := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		return
	}
	if len(remaining) == 0 {
		delete(h.clients, client.UserID)
	} else {
		h.clients[client.UserID] = remaining
	}
	client.closeSend()

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"user_id":            client.UserID,
		"remaining_sessions": len(remaining),
	})
}

func (h *Hub) deliver(message *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, clientList := range h.clients {
		for _, client := range clientList {
			if userID != message.UserID && !client.IsAdmin {
				continue
			}
			if !client.queue(message.Message) {
				go h.Unregister(client)
				logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
					"user_id": userID,
				})
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clientList := range h.clients {
		for _, client := range clientList {
			client.closeSend()
		}
		delete(h.clients, userID)
	}
}

// Register and Unregister are no-ops once Run has returned.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUser queues message for userID and all admins. A full queue drops it.
func (h *Hub) SendToUser(userID uint, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal message", err)
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{UserID: userID, Message: data}:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"user_id": userID,
		})
	}
	return nil
}

func (h *Hub) Name() string {
	return "websocket"
}

// Handle forwards order events. Guest orders reach admins only.
func (h *Hub) Handle(event events.Event) error {
	var userID uint
	if !event.IsGuest && event.UserID != nil {
		userID = *event.UserID
	}
	return h.SendToUser(userID, event)
}

// HandleClientMessage answers pings, rate limited per session.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.rateMu.Lock()
	now := time.Now()
	if now.Sub(client.lastResetTime) >= time.Second {
		client.messageCount = 0
		client.lastResetTime = now
	}
	client.messageCount++
	count := client.messageCount
	client.rateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == "ping" {
		client.queue([]byte(`{"type":"pong"}`))
	}
}
