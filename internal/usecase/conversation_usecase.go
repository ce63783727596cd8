package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/pkg/errors"
)

type ConversationUseCase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	notifier         Notifier
}

func NewConversationUseCase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) *ConversationUseCase {
	return &ConversationUseCase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		notifier:         notifier,
	}
}

// EnsureConversation returns the conversation for the pair, creating it if
// this is the first contact. The id is derived from the pair, so concurrent
// ensures from both sides converge on the same record. Display metadata is
// re-snapshotted on every call; stale fields get refreshed, empty ones never
// clobber.
func (uc *ConversationUseCase) EnsureConversation(ctx context.Context, userID, otherUserID string) (*entity.Conversation, error) {
	if otherUserID == "" || otherUserID == userID {
		return nil, errors.BadRequest("Cannot open a conversation with yourself", nil)
	}

	self, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	other, err := uc.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}

	conv := &entity.Conversation{
		ID:           entity.DeriveConversationID(userID, otherUserID),
		Participants: []string{userID, otherUserID},
		ParticipantMeta: map[string]entity.ParticipantMeta{
			userID:      self.Snapshot(),
			otherUserID: other.Snapshot(),
		},
		UnreadCount: map[string]int{userID: 0, otherUserID: 0},
	}

	result, err := uc.conversationRepo.EnsureConversation(ctx, conv)
	if err != nil {
		log.Printf("EnsureConversation Error: %v", err)
		return nil, err
	}

	return result, nil
}

func (uc *ConversationUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conv, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if !conv.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	return conv, nil
}

// ListConversations returns the user's chat list ordered by recent activity.
func (uc *ConversationUseCase) ListConversations(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	return uc.conversationRepo.ListByUserID(ctx, userID, limit, offset)
}

// MarkRead zeroes the caller's unread counter. Other participants' counters
// are untouched. The caller's other devices get a sync event so badges clear
// everywhere.
func (uc *ConversationUseCase) MarkRead(ctx context.Context, userID, conversationID string) error {
	conv, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}

	if err := uc.conversationRepo.MarkRead(ctx, conversationID, userID); err != nil {
		log.Printf("MarkRead Error: %v", err)
		return err
	}

	if uc.notifier != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"type":            "conversation_read",
			"conversation_id": conversationID,
			"user_id":         userID,
			"timestamp":       time.Now().UTC(),
		})
		if err == nil {
			uc.notifier.SendToUser(userID, payload)
		}
	}

	return nil
}
