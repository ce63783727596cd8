package repository

import (
	"context"
	"log"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/pkg/errors"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

// EnsureConversation creates the record if absent and merges participant
// metadata if present. Merge semantics: concurrent callers never clobber
// each other's cached display data with empty fields.
func (r *firestoreConversationRepository) EnsureConversation(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, error) {
	docRef := r.client.Collection("conversations").Doc(conv.ID)

	var result *entity.Conversation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}

			now := time.Now()
			conv.CreatedAt = now
			conv.UpdatedAt = now
			if conv.UnreadCount == nil {
				conv.UnreadCount = make(map[string]int)
			}
			result = conv
			return tx.Set(docRef, conv)
		}

		var existing entity.Conversation
		if err := doc.DataTo(&existing); err != nil {
			return err
		}

		if existing.ParticipantMeta == nil {
			existing.ParticipantMeta = make(map[string]entity.ParticipantMeta)
		}
		for userID, meta := range conv.ParticipantMeta {
			merged := existing.ParticipantMeta[userID]
			if meta.DisplayName != "" {
				merged.DisplayName = meta.DisplayName
			}
			if meta.PhotoURL != "" {
				merged.PhotoURL = meta.PhotoURL
			}
			existing.ParticipantMeta[userID] = merged
		}
		existing.UpdatedAt = time.Now()

		result = &existing
		return tx.Set(docRef, existing)
	})

	if err != nil {
		return nil, mapStoreError("Failed to ensure conversation", err)
	}

	return result, nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection("conversations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, mapStoreError("Failed to get conversation", err)
	}

	var conv entity.Conversation
	if err := doc.DataTo(&conv); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}

	return &conv, nil
}

func (r *firestoreConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	query := r.client.Collection("conversations").
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching conversations for user %s: %v", userID, err)
		return nil, 0, mapStoreError("Failed to fetch conversations", err)
	}

	total := int64(len(allDocs))

	var conversations []*entity.Conversation
	for _, doc := range allDocs {
		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			log.Printf("Error parsing conversation data for user %s: %v", userID, err)
			continue
		}
		conversations = append(conversations, &conv)
	}

	// Equal last-activity timestamps are ordered by id for determinism.
	sort.SliceStable(conversations, func(i, j int) bool {
		if conversations[i].LastMessageAt.Equal(conversations[j].LastMessageAt) {
			return conversations[i].ID < conversations[j].ID
		}
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})

	start := offset
	if start > len(conversations) {
		start = len(conversations)
	}
	end := len(conversations)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return conversations[start:end], total, nil
}

// AppendMessage writes the message document and the owning conversation's
// preview, unread counter and sequence counter in one transaction. A reader
// can never observe the new last-message without the matching unread
// increment.
func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, message *entity.Message) (*entity.Message, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	convRef := r.client.Collection("conversations").Doc(message.ConversationID)
	msgRef := convRef.Collection("messages").Doc(message.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		convDoc, err := tx.Get(convRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Conversation", err)
			}
			return err
		}

		var conv entity.Conversation
		if err := convDoc.DataTo(&conv); err != nil {
			return err
		}

		if !conv.HasParticipant(message.SenderID) && message.Kind != entity.MessageKindSystem {
			return errors.Forbidden("Sender is not a participant in this conversation", nil)
		}

		now := time.Now()
		conv.MessageCount++
		message.Seq = conv.MessageCount
		message.CreatedAt = now

		if message.Kind != entity.MessageKindSystem {
			conv.LastMessage = previewText(message)
			conv.LastMessageKind = message.Kind
			conv.LastMessageAt = now
			if conv.UnreadCount == nil {
				conv.UnreadCount = make(map[string]int)
			}
			for _, participantID := range conv.Participants {
				if participantID != message.SenderID {
					conv.UnreadCount[participantID]++
				}
			}
		}
		conv.UpdatedAt = now

		if err := tx.Set(convRef, conv); err != nil {
			return err
		}
		return tx.Set(msgRef, message)
	})

	if err != nil {
		if errors.Is(err, "NOT_FOUND") || errors.Is(err, "FORBIDDEN") {
			return nil, err
		}
		return nil, mapStoreError("Failed to append message", err)
	}

	return message, nil
}

func (r *firestoreConversationRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	convRef := r.client.Collection("conversations").Doc(conversationID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(convRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Conversation", err)
			}
			return err
		}

		var conv entity.Conversation
		if err := doc.DataTo(&conv); err != nil {
			return err
		}

		if !conv.HasParticipant(userID) {
			return errors.Forbidden("User is not a participant in this conversation", nil)
		}

		if conv.UnreadCount == nil {
			conv.UnreadCount = make(map[string]int)
		}
		// Only the reader's own counter; the other participant's is untouched.
		conv.UnreadCount[userID] = 0
		conv.UpdatedAt = time.Now()

		return tx.Set(convRef, conv)
	})

	if err != nil {
		if errors.Is(err, "NOT_FOUND") || errors.Is(err, "FORBIDDEN") {
			return err
		}
		return mapStoreError("Failed to mark conversation read", err)
	}

	return nil
}

// previewText is what lands in the conversation list. Locked messages never
// leak their body there.
func previewText(message *entity.Message) string {
	if message.Locked {
		return "Locked " + message.Kind
	}
	switch message.Kind {
	case entity.MessageKindImage:
		return "Sent a photo"
	case entity.MessageKindVideo:
		return "Sent a video"
	case entity.MessageKindCallEvent:
		return "Call"
	default:
		return message.Body
	}
}
