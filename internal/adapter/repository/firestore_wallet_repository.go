package repository

import (
	"context"
	"log"
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

type firestoreWalletRepository struct {
	client *firestore.Client
}

func NewFirestoreWalletRepository(client *firestore.Client) repository.WalletRepository {
	return &firestoreWalletRepository{
		client: client,
	}
}

func (r *firestoreWalletRepository) GetWallet(ctx context.Context, userID string) (*entity.Wallet, error) {
	doc, err := r.client.Collection("wallets").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Wallet", err)
		}
		return nil, mapStoreError("Failed to get wallet", err)
	}

	var wallet entity.Wallet
	if err := doc.DataTo(&wallet); err != nil {
		return nil, errors.Internal("Failed to parse wallet data", err)
	}

	return &wallet, nil
}

// Debit applies a negative delta with check-then-apply semantics inside one
// Firestore transaction. The ledger entry doc id is the idempotency key, so
// a replayed debit finds its own record and returns AlreadyApplied instead
// of charging twice.
func (r *firestoreWalletRepository) Debit(ctx context.Context, userID string, amount int64, reason, idempotencyKey, counterparty string) (*entity.LedgerEntry, error) {
	if amount <= 0 {
		return nil, errors.BadRequest("Debit amount must be positive", nil)
	}

	var entry *entity.LedgerEntry

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		entryRef := r.client.Collection("ledger_entries").Doc(idempotencyKey)
		entryDoc, err := tx.Get(entryRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var existing entity.LedgerEntry
			if err := entryDoc.DataTo(&existing); err != nil {
				return err
			}
			entry = &existing
			return errors.AlreadyApplied(idempotencyKey)
		}

		walletRef := r.client.Collection("wallets").Doc(userID)
		walletDoc, err := tx.Get(walletRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				// Absent wallet means balance 0: any positive debit fails.
				return errors.InsufficientFunds(amount, 0)
			}
			return err
		}

		var wallet entity.Wallet
		if err := walletDoc.DataTo(&wallet); err != nil {
			return err
		}

		if wallet.Balance < amount {
			return errors.InsufficientFunds(amount, wallet.Balance)
		}

		now := time.Now()
		entry = &entity.LedgerEntry{
			ID:              idempotencyKey,
			UserID:          userID,
			Counterparty:    counterparty,
			Type:            entity.LedgerEntryDebit,
			Amount:          -amount,
			PreviousBalance: wallet.Balance,
			NewBalance:      wallet.Balance - amount,
			Reason:          reason,
			CreatedAt:       now,
		}

		wallet.Balance -= amount
		wallet.LastTxnAt = now
		wallet.UpdatedAt = now

		if err := tx.Set(walletRef, wallet); err != nil {
			return err
		}
		return tx.Set(entryRef, entry)
	})

	if err != nil {
		if errors.Is(err, "ALREADY_APPLIED") || errors.Is(err, "INSUFFICIENT_FUNDS") {
			return entry, err
		}
		return nil, mapStoreError("Failed to apply debit", err)
	}

	return entry, nil
}

// Credit always succeeds for a valid user; the wallet is created implicitly
// on first credit.
func (r *firestoreWalletRepository) Credit(ctx context.Context, userID string, amount int64, reason, counterparty string) (*entity.LedgerEntry, error) {
	if amount <= 0 {
		return nil, errors.BadRequest("Credit amount must be positive", nil)
	}

	var entry *entity.LedgerEntry

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		walletRef := r.client.Collection("wallets").Doc(userID)
		walletDoc, err := tx.Get(walletRef)

		now := time.Now()
		var wallet entity.Wallet
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			wallet = entity.Wallet{
				UserID:    userID,
				Balance:   0,
				Currency:  "USD",
				CreatedAt: now,
			}
		} else {
			if err := walletDoc.DataTo(&wallet); err != nil {
				return err
			}
		}

		entry = &entity.LedgerEntry{
			ID:              uuid.New().String(),
			UserID:          userID,
			Counterparty:    counterparty,
			Type:            entity.LedgerEntryCredit,
			Amount:          amount,
			PreviousBalance: wallet.Balance,
			NewBalance:      wallet.Balance + amount,
			Reason:          reason,
			CreatedAt:       now,
		}

		wallet.Balance += amount
		wallet.LastTxnAt = now
		wallet.UpdatedAt = now

		if err := tx.Set(walletRef, wallet); err != nil {
			return err
		}
		return tx.Set(r.client.Collection("ledger_entries").Doc(entry.ID), entry)
	})

	if err != nil {
		return nil, mapStoreError("Failed to apply credit", err)
	}

	return entry, nil
}

func (r *firestoreWalletRepository) GetEntryByID(ctx context.Context, entryID string) (*entity.LedgerEntry, error) {
	doc, err := r.client.Collection("ledger_entries").Doc(entryID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Ledger entry", err)
		}
		return nil, mapStoreError("Failed to get ledger entry", err)
	}

	var entry entity.LedgerEntry
	if err := doc.DataTo(&entry); err != nil {
		return nil, errors.Internal("Failed to parse ledger entry data", err)
	}

	return &entry, nil
}

func (r *firestoreWalletRepository) ListEntriesByUser(ctx context.Context, userID string, limit, offset int) ([]entity.LedgerEntry, error) {
	query := r.client.Collection("ledger_entries").Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []entity.LedgerEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapStoreError("Failed to iterate ledger entries", err)
		}

		var entry entity.LedgerEntry
		if err := doc.DataTo(&entry); err != nil {
			log.Printf("Error converting document to ledger entry: %v", err)
			continue
		}

		entries = append(entries, entry)
	}

	if entries == nil {
		entries = []entity.LedgerEntry{}
	}

	return entries, nil
}
