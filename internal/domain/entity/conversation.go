package entity

import (
	"sort"
	"strings"
	"time"
)

// ParticipantMeta is a cached display snapshot, not authoritative identity
// data. Fields are merged, never clobbered, on redundant ensure calls.
type ParticipantMeta struct {
	DisplayName string `json:"display_name,omitempty" firestore:"displayName,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty" firestore:"photoURL,omitempty"`
}

type Conversation struct {
	ID              string                     `json:"id" firestore:"id"`
	Participants    []string                   `json:"participants" firestore:"participants"`
	ParticipantMeta map[string]ParticipantMeta `json:"participant_meta" firestore:"participantMeta"`
	LastMessage     string                     `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageKind string                     `json:"last_message_kind,omitempty" firestore:"lastMessageKind,omitempty"`
	LastMessageAt   time.Time                  `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount     map[string]int             `json:"unread_count" firestore:"unreadCount"` // participant ID -> count
	MessageCount    int64                      `json:"message_count" firestore:"messageCount"`
	CreatedAt       time.Time                  `json:"created_at" firestore:"createdAt"`
	UpdatedAt       time.Time                  `json:"updated_at" firestore:"updatedAt"`
}

// DeriveConversationID builds the deterministic id for an unordered user
// pair: the two ids sorted and joined. Existence checks become pure lookups
// and the same pair can never produce two conversations.
func DeriveConversationID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}
