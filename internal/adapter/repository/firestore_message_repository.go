package repository

import (
	"context"
	"log"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/pkg/errors"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messagesRef(conversationID string) *firestore.CollectionRef {
	return r.client.Collection("conversations").Doc(conversationID).Collection("messages")
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.messagesRef(conversationID).Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, mapStoreError("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}

	return &message, nil
}

func (r *firestoreMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	// Fetch the most recent window by seq descending, then flip to ascending
	// for the caller. Seq is assigned at append time, so ties in createdAt
	// can never reorder messages.
	query := r.messagesRef(conversationID).OrderBy("seq", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, mapStoreError("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for conversation %s: %v", conversationID, err)
			return nil, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].Seq < messages[j].Seq })

	return messages, nil
}

// Watch streams the live message window over a Firestore snapshot listener.
// The first delivery is the current window; each store change pushes a fresh
// one. Cancel ctx to stop: the goroutine drains and closes the channel, and
// no delivery happens after cancellation.
func (r *firestoreMessageRepository) Watch(ctx context.Context, conversationID string, limit int) (<-chan []*entity.Message, error) {
	query := r.messagesRef(conversationID).OrderBy("seq", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	snapshots := query.Snapshots(ctx)
	updates := make(chan []*entity.Message, 1)

	go func() {
		defer close(updates)
		defer snapshots.Stop()

		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("Watch: snapshot stream for conversation %s ended: %v", conversationID, err)
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("Watch: failed to read snapshot for conversation %s: %v", conversationID, err)
				continue
			}

			var messages []*entity.Message
			for _, doc := range docs {
				var message entity.Message
				if err := doc.DataTo(&message); err != nil {
					continue
				}
				messages = append(messages, &message)
			}
			sort.Slice(messages, func(i, j int) bool { return messages[i].Seq < messages[j].Seq })

			select {
			case updates <- messages:
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, nil
}

// AddUnlockedViewer appends viewerID to the unlocked set inside a
// transaction. The set only grows, and re-adding a present viewer is a
// no-op so unlock retries stay idempotent.
func (r *firestoreMessageRepository) AddUnlockedViewer(ctx context.Context, conversationID, messageID, viewerID string) error {
	msgRef := r.messagesRef(conversationID).Doc(messageID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(msgRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Message", err)
			}
			return err
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return err
		}

		for _, id := range message.UnlockedBy {
			if id == viewerID {
				return nil
			}
		}

		message.UnlockedBy = append(message.UnlockedBy, viewerID)
		return tx.Set(msgRef, message)
	})

	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return err
		}
		return mapStoreError("Failed to update unlocked viewers", err)
	}

	return nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, conversationID, messageID, userID string) error {
	msgRef := r.messagesRef(conversationID).Doc(messageID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(msgRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				// Message may be old or deleted - silently skip.
				log.Printf("MarkRead: Message %s not found in conversation %s", messageID, conversationID)
				return nil
			}
			return err
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return err
		}

		for _, reader := range message.ReadBy {
			if reader == userID {
				return nil
			}
		}

		message.ReadBy = append(message.ReadBy, userID)
		return tx.Set(msgRef, message)
	})

	if err != nil {
		return mapStoreError("Failed to update message read status", err)
	}

	return nil
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, conversationID, messageID string) error {
	_, err := r.messagesRef(conversationID).Doc(messageID).Delete(ctx)
	if err != nil {
		return mapStoreError("Failed to delete message", err)
	}

	return nil
}
