package repository

import (
	"context"

	"fanlink/internal/domain/entity"
)

type MessageRepository interface {
	GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	// ListByConversation returns at most limit most-recent messages in
	// ascending creation order.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error)
	// Watch pushes the current window and every subsequent change until ctx
	// is canceled; the channel closes after cancellation.
	Watch(ctx context.Context, conversationID string, limit int) (<-chan []*entity.Message, error)
	// AddUnlockedViewer appends viewerID to the message's unlocked set.
	// Idempotent: an already-present viewer is a no-op, never an error.
	AddUnlockedViewer(ctx context.Context, conversationID, messageID, viewerID string) error
	MarkRead(ctx context.Context, conversationID, messageID, userID string) error
	Delete(ctx context.Context, conversationID, messageID string) error
}
