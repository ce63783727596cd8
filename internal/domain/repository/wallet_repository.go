package repository

import (
	"context"

	"fanlink/internal/domain/entity"
)

// WalletRepository owns all balance mutation. Debit is a single transactional
// unit: idempotency-key replay check, balance check and decrement, and the
// ledger entry write either all commit or none do. No other component reads
// and writes balances directly.
type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (*entity.Wallet, error)
	Debit(ctx context.Context, userID string, amount int64, reason, idempotencyKey, counterparty string) (*entity.LedgerEntry, error)
	Credit(ctx context.Context, userID string, amount int64, reason, counterparty string) (*entity.LedgerEntry, error)
	GetEntryByID(ctx context.Context, entryID string) (*entity.LedgerEntry, error)
	ListEntriesByUser(ctx context.Context, userID string, limit, offset int) ([]entity.LedgerEntry, error)
}
