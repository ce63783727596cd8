package entity

import "time"

// UnlockRepair records a charged-but-not-granted unlock: the viewer's debit
// committed but the grant write to the message failed. Real money moved, so
// the state is queryable and a background pass completes the grant using the
// existing charge record instead of re-debiting.
type UnlockRepair struct {
	ID             string    `json:"id" firestore:"id"` // idempotency key of the charge
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	MessageID      string    `json:"message_id" firestore:"messageId"`
	ViewerID       string    `json:"viewer_id" firestore:"viewerId"`
	Amount         int64     `json:"amount" firestore:"amount"`
	Attempts       int       `json:"attempts" firestore:"attempts"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
	LastAttemptAt  time.Time `json:"last_attempt_at" firestore:"lastAttemptAt"`
}
