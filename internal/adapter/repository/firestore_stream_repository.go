package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/pkg/errors"
)

type firestoreStreamRepository struct {
	client *firestore.Client
}

func NewFirestoreStreamRepository(client *firestore.Client) repository.StreamRepository {
	return &firestoreStreamRepository{
		client: client,
	}
}

func (r *firestoreStreamRepository) Create(ctx context.Context, stream *entity.Stream) error {
	if stream.ID == "" {
		stream.ID = uuid.New().String()
	}
	stream.StartedAt = time.Now()
	stream.Active = true
	stream.SessionEarnings = 0 // counter resets with every new session

	_, err := r.client.Collection("streams").Doc(stream.ID).Set(ctx, stream)
	if err != nil {
		return mapStoreError("Failed to create stream", err)
	}

	return nil
}

func (r *firestoreStreamRepository) GetByID(ctx context.Context, id string) (*entity.Stream, error) {
	doc, err := r.client.Collection("streams").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Stream", err)
		}
		return nil, mapStoreError("Failed to get stream", err)
	}

	var stream entity.Stream
	if err := doc.DataTo(&stream); err != nil {
		return nil, errors.Internal("Failed to parse stream data", err)
	}

	return &stream, nil
}

func (r *firestoreStreamRepository) GetActiveByCreator(ctx context.Context, creatorID string) (*entity.Stream, error) {
	query := r.client.Collection("streams").
		Where("creatorId", "==", creatorID).
		Where("active", "==", true).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Active stream", nil)
		}
		return nil, mapStoreError("Failed to query active stream", err)
	}

	var stream entity.Stream
	if err := doc.DataTo(&stream); err != nil {
		return nil, errors.Internal("Failed to parse stream data", err)
	}

	return &stream, nil
}

func (r *firestoreStreamRepository) AddEarnings(ctx context.Context, streamID string, amount int64) (*entity.Stream, error) {
	streamRef := r.client.Collection("streams").Doc(streamID)

	var updated *entity.Stream

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(streamRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Stream", err)
			}
			return err
		}

		var stream entity.Stream
		if err := doc.DataTo(&stream); err != nil {
			return err
		}

		if !stream.Active {
			return errors.BadRequest("Stream is no longer live", nil)
		}

		stream.SessionEarnings += amount
		updated = &stream

		return tx.Set(streamRef, stream)
	})

	if err != nil {
		if errors.Is(err, "NOT_FOUND") || errors.Is(err, "BAD_REQUEST") {
			return nil, err
		}
		return nil, mapStoreError("Failed to add stream earnings", err)
	}

	return updated, nil
}

func (r *firestoreStreamRepository) End(ctx context.Context, streamID string) error {
	_, err := r.client.Collection("streams").Doc(streamID).Update(ctx, []firestore.Update{
		{Path: "active", Value: false},
		{Path: "endedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Stream", err)
		}
		return mapStoreError("Failed to end stream", err)
	}

	return nil
}
