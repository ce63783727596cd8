package usecase

import (
	"context"
	"strings"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/internal/infrastructure/metrics"
	"fanlink/pkg/errors"
)

type WalletUseCase struct {
	walletRepo repository.WalletRepository
	userRepo   repository.UserRepository
}

func NewWalletUseCase(
	walletRepo repository.WalletRepository,
	userRepo repository.UserRepository,
) *WalletUseCase {
	return &WalletUseCase{
		walletRepo: walletRepo,
		userRepo:   userRepo,
	}
}

type CreditWalletInput struct {
	UserID       string
	Amount       int64
	Reason       string
	Counterparty string
}

// GetBalance returns the user's wallet. A user who has never been credited
// has no wallet document yet; that is a zero balance, not an error.
func (uc *WalletUseCase) GetBalance(ctx context.Context, userID string) (*entity.Wallet, error) {
	wallet, err := uc.walletRepo.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return &entity.Wallet{
				UserID:   userID,
				Balance:  0,
				Currency: "USD",
			}, nil
		}
		return nil, err
	}

	return wallet, nil
}

// Credit applies an already-verified credit instruction, typically from the
// payment processor webhook. The processor has confirmed the money; this
// only records it.
func (uc *WalletUseCase) Credit(ctx context.Context, input CreditWalletInput) (*entity.LedgerEntry, error) {
	if input.Amount <= 0 {
		return nil, errors.BadRequest("Credit amount must be positive", nil)
	}

	reason := input.Reason
	if reason == "" {
		reason = "topup"
	}

	entry, err := uc.walletRepo.Credit(ctx, input.UserID, input.Amount, reason, input.Counterparty)
	if err != nil {
		return nil, err
	}

	metrics.LedgerAmount.WithLabelValues(entity.LedgerEntryCredit, reasonClass(reason)).Add(float64(input.Amount))

	return entry, nil
}

// ListTransactions returns the user's ledger history, most recent first.
func (uc *WalletUseCase) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]entity.LedgerEntry, error) {
	return uc.walletRepo.ListEntriesByUser(ctx, userID, limit, offset)
}

type EarningsSummary struct {
	UserID   string           `json:"user_id"`
	Total    int64            `json:"total"`
	ByReason map[string]int64 `json:"by_reason"`
	Entries  int              `json:"entries"`
}

// GetEarnings sums the creator's credit entries from the ledger. The ledger,
// not any cached counter, is the source of truth for payout; session earnings
// counters on streams are display-only.
func (uc *WalletUseCase) GetEarnings(ctx context.Context, creatorID string) (*EarningsSummary, error) {
	user, err := uc.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if user.Role != "creator" && user.Role != "admin" {
		return nil, errors.Forbidden("Earnings are only available to creators", nil)
	}

	summary := &EarningsSummary{
		UserID:   creatorID,
		ByReason: make(map[string]int64),
	}

	const page = 200
	offset := 0
	for {
		entries, err := uc.walletRepo.ListEntriesByUser(ctx, creatorID, page, offset)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			if entry.Type != entity.LedgerEntryCredit {
				continue
			}
			class := reasonClass(entry.Reason)
			if class == "topup" {
				// Top-ups are the user's own money, not earnings.
				continue
			}
			summary.Total += entry.Amount
			summary.ByReason[class] += entry.Amount
			summary.Entries++
		}

		if len(entries) < page {
			break
		}
		offset += page
	}

	return summary, nil
}

// reasonClass collapses "unlock:<messageID>" style reasons to their prefix
// for aggregation.
func reasonClass(reason string) string {
	if idx := strings.IndexByte(reason, ':'); idx > 0 {
		return reason[:idx]
	}
	return reason
}
