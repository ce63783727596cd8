package repository

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
)

type firestoreUnlockRepairRepository struct {
	client *firestore.Client
}

func NewFirestoreUnlockRepairRepository(client *firestore.Client) repository.UnlockRepairRepository {
	return &firestoreUnlockRepairRepository{
		client: client,
	}
}

func (r *firestoreUnlockRepairRepository) Put(ctx context.Context, repair *entity.UnlockRepair) error {
	_, err := r.client.Collection("unlock_repairs").Doc(repair.ID).Set(ctx, repair)
	if err != nil {
		return mapStoreError("Failed to record unlock repair", err)
	}

	return nil
}

func (r *firestoreUnlockRepairRepository) List(ctx context.Context, limit int) ([]*entity.UnlockRepair, error) {
	query := r.client.Collection("unlock_repairs").OrderBy("createdAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var repairs []*entity.UnlockRepair
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapStoreError("Failed to iterate unlock repairs", err)
		}

		var repair entity.UnlockRepair
		if err := doc.DataTo(&repair); err != nil {
			log.Printf("Error converting document to unlock repair: %v", err)
			continue
		}

		repairs = append(repairs, &repair)
	}

	return repairs, nil
}

func (r *firestoreUnlockRepairRepository) Update(ctx context.Context, repair *entity.UnlockRepair) error {
	_, err := r.client.Collection("unlock_repairs").Doc(repair.ID).Set(ctx, repair)
	if err != nil {
		return mapStoreError("Failed to update unlock repair", err)
	}

	return nil
}

func (r *firestoreUnlockRepairRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("unlock_repairs").Doc(id).Delete(ctx)
	if err != nil {
		return mapStoreError("Failed to delete unlock repair", err)
	}

	return nil
}
