package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"fanlink/internal/infrastructure/metrics"
	"fanlink/internal/infrastructure/presence"
	"fanlink/internal/infrastructure/ratelimit"
)

// Client represents one WebSocket connection. A user may hold several at
// once (phone and laptop); presence flips offline only when the last one
// drops.
type Client struct {
	UserID string
	ConnID string
	Conn   *websocket.Conn
	Send   chan []byte

	mutex sync.Mutex
	rooms map[string]bool
	subs  map[string]*presence.Subscription
}

func NewClient(userID, connID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		ConnID: connID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		rooms:  make(map[string]bool),
		subs:   make(map[string]*presence.Subscription),
	}
}

// Manager manages all active WebSocket connections
type Manager struct {
	clients     map[string]map[string]*Client // userID -> connID -> client
	rooms       map[string]map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client
	presence    *presence.Service
	rateLimiter *ratelimit.RateLimiter
	mutex       sync.RWMutex
}

// NewManager creates a new WebSocket connection manager
func NewManager(presenceService *presence.Service, rateLimiter *ratelimit.RateLimiter) *Manager {
	return &Manager{
		clients:     make(map[string]map[string]*Client),
		rooms:       make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		presence:    presenceService,
		rateLimiter: rateLimiter,
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.registerClient(client)

			case client := <-m.Unregister:
				m.unregisterClient(client)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) registerClient(client *Client) {
	m.mutex.Lock()
	if m.clients[client.UserID] == nil {
		m.clients[client.UserID] = make(map[string]*Client)
	}
	firstConn := len(m.clients[client.UserID]) == 0
	m.clients[client.UserID][client.ConnID] = client
	m.mutex.Unlock()

	metrics.ActiveConnections.Inc()
	log.Printf("Client registered: %s (%s)", client.UserID, client.ConnID)

	if firstConn && m.presence != nil {
		if err := m.presence.SetOnline(context.Background(), client.UserID); err != nil {
			log.Printf("Failed to set %s online: %v", client.UserID, err)
		}
	}
}

func (m *Manager) unregisterClient(client *Client) {
	m.mutex.Lock()
	conns, ok := m.clients[client.UserID]
	if !ok || conns[client.ConnID] == nil {
		m.mutex.Unlock()
		return
	}
	delete(conns, client.ConnID)
	lastConn := len(conns) == 0
	if lastConn {
		delete(m.clients, client.UserID)
	}
	for roomID, members := range m.rooms {
		if members[client] {
			delete(members, client)
			if len(members) == 0 {
				delete(m.rooms, roomID)
			}
		}
	}
	m.mutex.Unlock()

	client.cancelSubscriptions()
	close(client.Send)
	metrics.ActiveConnections.Dec()
	log.Printf("Client unregistered: %s (%s)", client.UserID, client.ConnID)

	// Disconnect hook: the last dropped connection flips presence offline
	// and clears typing flags, with no cooperation from the client.
	if lastConn && m.presence != nil {
		m.presence.Disconnected(client.UserID)
	}
}

// SendToUser sends a message to every open connection of a user.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	conns := m.clients[userID]
	targets := make([]*Client, 0, len(conns))
	for _, client := range conns {
		targets = append(targets, client)
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		select {
		case client.Send <- message:
		default:
			log.Printf("Send buffer full for %s (%s), dropping message", client.UserID, client.ConnID)
		}
	}
}

// BroadcastToRoom sends a message to every client in a room, optionally
// excluding one user.
func (m *Manager) BroadcastToRoom(roomID string, message []byte, excludeUserID string) {
	m.mutex.RLock()
	targets := make([]*Client, 0, len(m.rooms[roomID]))
	for client := range m.rooms[roomID] {
		if excludeUserID != "" && client.UserID == excludeUserID {
			continue
		}
		targets = append(targets, client)
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		select {
		case client.Send <- message:
		default:
			log.Printf("Send buffer full for %s (%s), dropping broadcast", client.UserID, client.ConnID)
		}
	}
}

// RoomSize reports how many connections are currently in a room.
func (m *Manager) RoomSize(roomID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms[roomID])
}

func (m *Manager) addClientToRoom(client *Client, roomID string) {
	m.mutex.Lock()
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[*Client]bool)
	}
	m.rooms[roomID][client] = true
	m.mutex.Unlock()

	client.mutex.Lock()
	client.rooms[roomID] = true
	client.mutex.Unlock()
}

func (m *Manager) removeClientFromRoom(client *Client, roomID string) {
	m.mutex.Lock()
	if members, ok := m.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	m.mutex.Unlock()

	client.mutex.Lock()
	delete(client.rooms, roomID)
	client.mutex.Unlock()
}

func (c *Client) addSubscription(key string, sub *presence.Subscription) {
	c.mutex.Lock()
	if old, ok := c.subs[key]; ok {
		old.Cancel()
	}
	c.subs[key] = sub
	c.mutex.Unlock()
}

func (c *Client) removeSubscription(key string) {
	c.mutex.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mutex.Unlock()

	if ok {
		sub.Cancel()
	}
}

func (c *Client) cancelSubscriptions() {
	c.mutex.Lock()
	subs := c.subs
	c.subs = make(map[string]*presence.Subscription)
	c.mutex.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		err := c.Conn.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			log.Printf("error: %v", err)
			return
		}
	}
}
