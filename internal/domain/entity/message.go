package entity

import "time"

const (
	MessageKindText      = "text"
	MessageKindImage     = "image"
	MessageKindVideo     = "video"
	MessageKindCallEvent = "call_event"
	MessageKindSystem    = "system"
	MessageKindTip       = "tip"
)

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	Body           string    `json:"body" firestore:"body"` // text, or a blob URL for media kinds
	Kind           string    `json:"kind" firestore:"kind"`
	Seq            int64     `json:"seq" firestore:"seq"` // per-conversation insertion order, breaks timestamp ties
	Locked         bool      `json:"locked" firestore:"locked"`
	Price          int64     `json:"price,omitempty" firestore:"price,omitempty"` // minor units, only when locked
	UnlockedBy     []string  `json:"unlocked_by" firestore:"unlockedBy"`          // append-only
	ReadBy         []string  `json:"read_by" firestore:"readBy"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}

// IsMedia reports whether the body references an external blob.
func (m *Message) IsMedia() bool {
	return m.Kind == MessageKindImage || m.Kind == MessageKindVideo
}

// ViewableBy reports whether viewerID may see the full body. The sender
// always can; others need the message unlocked for them.
func (m *Message) ViewableBy(viewerID string) bool {
	if !m.Locked || viewerID == m.SenderID {
		return true
	}
	for _, id := range m.UnlockedBy {
		if id == viewerID {
			return true
		}
	}
	return false
}

// Redacted returns the placeholder view for a viewer without access: no
// body, only the locked flag and price so the client can offer an unlock.
func (m *Message) Redacted() *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           m.Kind,
		Seq:            m.Seq,
		Locked:         true,
		Price:          m.Price,
		CreatedAt:      m.CreatedAt,
	}
}
