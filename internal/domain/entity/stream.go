package entity

import "time"

// Stream is one live broadcast session. SessionEarnings is monotone while
// the session is active and resets when the creator starts a new one. The
// audio/video transport itself is external; this record only gates and
// relays the paid chat alongside it.
type Stream struct {
	ID              string    `json:"id" firestore:"id"`
	CreatorID       string    `json:"creator_id" firestore:"creatorId"`
	Title           string    `json:"title" firestore:"title"`
	MessagePrice    int64     `json:"message_price" firestore:"messagePrice"` // per-chat-line toll in minor units, 0 = free chat
	Active          bool      `json:"active" firestore:"active"`
	SessionEarnings int64     `json:"session_earnings" firestore:"sessionEarnings"`
	StartedAt       time.Time `json:"started_at" firestore:"startedAt"`
	EndedAt         time.Time `json:"ended_at,omitempty" firestore:"endedAt,omitempty"`
}

// StreamChatLine is a relayed (not durably stored) chat line inside a live
// stream. Tip lines carry the tipped amount so clients can render them
// distinctly.
type StreamChatLine struct {
	StreamID   string    `json:"stream_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"` // text, tip
	Amount     int64     `json:"amount,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}
