package websocket

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"fanlink/internal/infrastructure/presence"
)

// WebSocket Message Types
const (
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeJoinRoom        = "join_room"
	MessageTypeLeaveRoom       = "leave_room"
	MessageTypeTyping          = "typing"
	MessageTypeWatchPresence   = "watch_presence"
	MessageTypeUnwatchPresence = "unwatch_presence"
	MessageTypePresence        = "presence"
	MessageTypeError           = "error"
)

// WebSocket Message Structure
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type JoinRoomData struct {
	RoomID string `json:"room_id"`
}

type TypingData struct {
	ConversationID string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

type WatchPresenceData struct {
	UserID string `json:"user_id"`
}

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage

	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		log.Printf("WebSocket: Failed to unmarshal message from client %s: %v", client.UserID, err)
		m.sendErrorToClient(client, "Invalid message format")
		return
	}

	switch wsMessage.Type {
	case MessageTypePing:
		m.handlePing(client)

	case MessageTypeJoinRoom:
		m.handleJoinRoom(client, wsMessage.Data)

	case MessageTypeLeaveRoom:
		m.handleLeaveRoom(client, wsMessage.Data)

	case MessageTypeTyping:
		m.handleTyping(client, wsMessage.Data)

	case MessageTypeWatchPresence:
		m.handleWatchPresence(client, wsMessage.Data)

	case MessageTypeUnwatchPresence:
		m.handleUnwatchPresence(client, wsMessage.Data)

	default:
		log.Printf("WebSocket: Unknown message type '%s' from client %s", wsMessage.Type, client.UserID)
		m.sendErrorToClient(client, "Unknown message type: "+wsMessage.Type)
	}
}

func (m *Manager) handlePing(client *Client) {
	m.sendToClient(client, WSMessage{
		Type:      MessageTypePong,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleJoinRoom puts the connection in a room. Conversation rooms also get
// a typing-update subscription so the client sees the other side typing.
func (m *Manager) handleJoinRoom(client *Client, raw json.RawMessage) {
	var data JoinRoomData
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" {
		m.sendErrorToClient(client, "room_id is required")
		return
	}

	m.addClientToRoom(client, data.RoomID)

	if m.presence != nil && isConversationRoom(data.RoomID) {
		sub := m.presence.SubscribeConversation(data.RoomID)
		client.addSubscription("typing:"+data.RoomID, sub)
		go m.forwardUpdates(client, sub)
	}

	log.Printf("WebSocket: %s joined room %s", client.UserID, data.RoomID)
}

func (m *Manager) handleLeaveRoom(client *Client, raw json.RawMessage) {
	var data JoinRoomData
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" {
		m.sendErrorToClient(client, "room_id is required")
		return
	}

	m.removeClientFromRoom(client, data.RoomID)
	client.removeSubscription("typing:" + data.RoomID)

	log.Printf("WebSocket: %s left room %s", client.UserID, data.RoomID)
}

func (m *Manager) handleTyping(client *Client, raw json.RawMessage) {
	if m.presence == nil {
		return
	}

	var data TypingData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		m.sendErrorToClient(client, "conversation_id is required")
		return
	}

	if m.rateLimiter != nil {
		if allowed, _ := m.rateLimiter.Allow(client.UserID, "typing"); !allowed {
			// Typing is best-effort signaling; just drop the event.
			return
		}
	}

	if err := m.presence.SetTyping(context.Background(), data.ConversationID, client.UserID, data.Typing); err != nil {
		log.Printf("WebSocket: typing update failed for %s: %v", client.UserID, err)
	}
}

func (m *Manager) handleWatchPresence(client *Client, raw json.RawMessage) {
	if m.presence == nil {
		return
	}

	var data WatchPresenceData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		m.sendErrorToClient(client, "user_id is required")
		return
	}

	sub := m.presence.SubscribeUser(data.UserID)
	client.addSubscription("presence:"+data.UserID, sub)
	go m.forwardUpdates(client, sub)

	// Immediately push the current state so the watcher is never blank
	// until the next change.
	if status, err := m.presence.GetStatus(context.Background(), data.UserID); err == nil {
		m.sendToClient(client, wsUpdateMessage(presence.Update{Presence: status}))
	}
}

func (m *Manager) handleUnwatchPresence(client *Client, raw json.RawMessage) {
	var data WatchPresenceData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		m.sendErrorToClient(client, "user_id is required")
		return
	}

	client.removeSubscription("presence:" + data.UserID)
}

// forwardUpdates pumps one subscription into the client's send buffer until
// the subscription is canceled.
func (m *Manager) forwardUpdates(client *Client, sub *presence.Subscription) {
	for update := range sub.C {
		m.sendToClient(client, wsUpdateMessage(update))
	}
}

func wsUpdateMessage(update presence.Update) WSMessage {
	kind := MessageTypePresence
	if update.Typing != nil {
		kind = MessageTypeTyping
	}

	data, _ := json.Marshal(update)
	return WSMessage{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (m *Manager) sendToClient(client *Client, message WSMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("WebSocket: marshal failed: %v", err)
		return
	}

	select {
	case client.Send <- payload:
	default:
		log.Printf("WebSocket: send buffer full for %s (%s)", client.UserID, client.ConnID)
	}
}

func (m *Manager) sendErrorToClient(client *Client, message string) {
	data, _ := json.Marshal(map[string]string{"message": message})
	m.sendToClient(client, WSMessage{
		Type:      MessageTypeError,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// isConversationRoom distinguishes two-party conversation rooms (derived
// "userA_userB" ids) from stream rooms ("stream:<id>").
func isConversationRoom(roomID string) bool {
	return !strings.HasPrefix(roomID, "stream:")
}
