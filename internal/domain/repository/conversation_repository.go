package repository

import (
	"context"

	"fanlink/internal/domain/entity"
)

// ConversationRepository owns conversation records, their unread counters and
// last-message snapshots. AppendMessage writes the message and the counter
// update in one transaction so a reader can never observe one without the
// other; counters are never mutated from anywhere else.
type ConversationRepository interface {
	EnsureConversation(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error)
	AppendMessage(ctx context.Context, message *entity.Message) (*entity.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
}
