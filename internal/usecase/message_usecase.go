package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/internal/infrastructure/metrics"
	"fanlink/internal/infrastructure/ratelimit"
	"fanlink/pkg/errors"
)

type MessageUseCase struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	blobStore        BlobStore
	notifier         Notifier
	rateLimiter      *ratelimit.RateLimiter
}

func NewMessageUseCase(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	blobStore BlobStore,
	notifier Notifier,
	rateLimiter *ratelimit.RateLimiter,
) *MessageUseCase {
	return &MessageUseCase{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		blobStore:        blobStore,
		notifier:         notifier,
		rateLimiter:      rateLimiter,
	}
}

type SendMessageInput struct {
	RecipientID string
	Body        string
	Kind        string
	Locked      bool
	Price       int64 // minor units, required when Locked
}

func validateSendInput(input SendMessageInput) error {
	switch input.Kind {
	case entity.MessageKindText, entity.MessageKindImage, entity.MessageKindVideo, entity.MessageKindCallEvent:
	case "":
		// defaulted to text by the caller
	default:
		return errors.BadRequest("Unsupported message kind", nil)
	}

	if input.Locked {
		if input.Price <= 0 {
			return errors.InvalidPrice("Locked messages require a positive price")
		}
	} else if input.Price != 0 {
		return errors.InvalidPrice("Price is only valid on locked messages")
	}

	if input.Body == "" {
		return errors.BadRequest("Message body is required", nil)
	}

	return nil
}

// SendMessage validates, ensures the pair's conversation exists, and appends.
// Price validation happens before anything is written: an invalid price never
// produces a partial message. The append itself carries the unread increment
// and preview update in the same transaction.
func (uc *MessageUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(senderID, "send_message"); !allowed {
			return nil, errors.TooManyRequests("You are sending messages too quickly", wait)
		}
	}

	if input.RecipientID == "" || input.RecipientID == senderID {
		return nil, errors.BadRequest("Cannot message yourself", nil)
	}
	if err := validateSendInput(input); err != nil {
		return nil, err
	}

	kind := input.Kind
	if kind == "" {
		kind = entity.MessageKindText
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	recipient, err := uc.userRepo.GetByID(ctx, input.RecipientID)
	if err != nil {
		return nil, err
	}

	conv := &entity.Conversation{
		ID:           entity.DeriveConversationID(senderID, input.RecipientID),
		Participants: []string{senderID, input.RecipientID},
		ParticipantMeta: map[string]entity.ParticipantMeta{
			senderID:          sender.Snapshot(),
			input.RecipientID: recipient.Snapshot(),
		},
		UnreadCount: map[string]int{senderID: 0, input.RecipientID: 0},
	}
	if _, err := uc.conversationRepo.EnsureConversation(ctx, conv); err != nil {
		log.Printf("SendMessage Error: failed to ensure conversation: %v", err)
		return nil, err
	}

	message := &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           input.Body,
		Kind:           kind,
		Locked:         input.Locked,
		Price:          input.Price,
	}

	saved, err := uc.conversationRepo.AppendMessage(ctx, message)
	if err != nil {
		log.Printf("SendMessage Error: %v", err)
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(kind).Inc()

	uc.notifyNewMessage(ctx, saved, input.RecipientID)

	return saved, nil
}

// notifyNewMessage pushes the new message to both sides. The recipient gets
// the redacted view when the message is locked; the sender's other devices
// get the full record.
func (uc *MessageUseCase) notifyNewMessage(ctx context.Context, message *entity.Message, recipientID string) {
	if uc.notifier == nil {
		return
	}

	conv, err := uc.conversationRepo.GetByID(ctx, message.ConversationID)
	if err != nil {
		log.Printf("notifyNewMessage: failed to load conversation %s: %v", message.ConversationID, err)
		conv = nil
	}

	send := func(userID string, view *entity.Message) {
		envelope := map[string]interface{}{
			"type":            "new_message",
			"conversation_id": message.ConversationID,
			"message":         view,
			"timestamp":       time.Now().UTC(),
		}
		if conv != nil {
			envelope["conversation"] = conv
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			log.Printf("notifyNewMessage: marshal failed: %v", err)
			return
		}
		uc.notifier.SendToUser(userID, payload)
	}

	recipientView := message
	if !message.ViewableBy(recipientID) {
		recipientView = message.Redacted()
	}

	send(recipientID, recipientView)
	send(message.SenderID, message)
}

// ListMessages returns the most recent window in ascending order, with
// locked bodies redacted for viewers who have not paid. Redaction happens at
// read time so an unlock is visible on the very next fetch.
func (uc *MessageUseCase) ListMessages(ctx context.Context, viewerID, conversationID string, limit int) ([]*entity.Message, error) {
	conv, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	messages, err := uc.messageRepo.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	return redactForViewer(messages, viewerID), nil
}

// WatchMessages streams live windows for the viewer, redacted the same way
// as ListMessages. The stream ends when ctx is canceled.
func (uc *MessageUseCase) WatchMessages(ctx context.Context, viewerID, conversationID string, limit int) (<-chan []*entity.Message, error) {
	conv, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	source, err := uc.messageRepo.Watch(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	out := make(chan []*entity.Message, 1)
	go func() {
		defer close(out)
		for batch := range source {
			select {
			case out <- redactForViewer(batch, viewerID):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func redactForViewer(messages []*entity.Message, viewerID string) []*entity.Message {
	result := make([]*entity.Message, 0, len(messages))
	for _, m := range messages {
		if m.ViewableBy(viewerID) {
			result = append(result, m)
		} else {
			result = append(result, m.Redacted())
		}
	}
	return result
}

// MarkMessageRead records a per-message read receipt and tells the sender.
func (uc *MessageUseCase) MarkMessageRead(ctx context.Context, userID, conversationID, messageID string) error {
	conv, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errors.Forbidden("You are not a participant in this conversation", nil)
	}

	if err := uc.messageRepo.MarkRead(ctx, conversationID, messageID, userID); err != nil {
		return err
	}

	if uc.notifier != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"type":            "message_read",
			"conversation_id": conversationID,
			"message_id":      messageID,
			"reader_id":       userID,
			"timestamp":       time.Now().UTC(),
		})
		if err == nil {
			uc.notifier.SendToUser(conv.OtherParticipant(userID), payload)
		}
	}

	return nil
}

// DeleteMessage removes a message the caller sent. The media blob, if any,
// is deleted best-effort: a failed blob delete only warns, the message record
// is already gone. Unread counters are not adjusted; the count tracks
// messages received, not messages still present.
func (uc *MessageUseCase) DeleteMessage(ctx context.Context, userID, conversationID, messageID string) error {
	message, err := uc.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != userID {
		return errors.Forbidden("Only the sender can delete a message", nil)
	}

	if err := uc.messageRepo.Delete(ctx, conversationID, messageID); err != nil {
		log.Printf("DeleteMessage Error: %v", err)
		return err
	}

	if message.IsMedia() && uc.blobStore != nil {
		if err := uc.blobStore.DeleteFileByURL(ctx, message.Body); err != nil {
			log.Printf("Warning: failed to delete blob for message %s: %v", messageID, err)
		}
	}

	if uc.notifier != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"type":            "message_deleted",
			"conversation_id": conversationID,
			"message_id":      messageID,
			"timestamp":       time.Now().UTC(),
		})
		if err == nil {
			if conv, convErr := uc.conversationRepo.GetByID(ctx, conversationID); convErr == nil {
				for _, participant := range conv.Participants {
					uc.notifier.SendToUser(participant, payload)
				}
			}
		}
	}

	return nil
}
