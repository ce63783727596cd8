package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanlink/internal/domain/entity"
	"fanlink/pkg/errors"
)

func setupWalletFixture(t *testing.T) (*WalletUseCase, *fakeWalletRepo) {
	t.Helper()

	wallets := newFakeWalletRepo()
	users := newFakeUserRepo(
		&entity.User{ID: "creator", DisplayName: "Cleo", Role: "creator"},
		&entity.User{ID: "fan", DisplayName: "Finn", Role: "fan"},
	)

	return NewWalletUseCase(wallets, users), wallets
}

func TestGetBalanceZeroForNewUser(t *testing.T) {
	uc, _ := setupWalletFixture(t)

	// No wallet document yet: zero balance, not an error.
	wallet, err := uc.GetBalance(context.Background(), "fan")
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
	assert.Equal(t, "fan", wallet.UserID)
}

func TestCreditCreatesWallet(t *testing.T) {
	uc, wallets := setupWalletFixture(t)

	entry, err := uc.Credit(context.Background(), CreditWalletInput{
		UserID: "fan",
		Amount: 2500,
		Reason: "topup:ref-123",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.LedgerEntryCredit, entry.Type)
	assert.Equal(t, int64(2500), entry.Amount)
	assert.Equal(t, int64(0), entry.PreviousBalance)
	assert.Equal(t, int64(2500), entry.NewBalance)
	assert.Equal(t, int64(2500), wallets.balance("fan"))
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	uc, _ := setupWalletFixture(t)

	_, err := uc.Credit(context.Background(), CreditWalletInput{UserID: "fan", Amount: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = uc.Credit(context.Background(), CreditWalletInput{UserID: "fan", Amount: -50})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestGetEarningsClassifiesLedger(t *testing.T) {
	uc, wallets := setupWalletFixture(t)
	ctx := context.Background()

	// Earnings from fans plus one top-up of the creator's own money.
	_, err := wallets.Credit(ctx, "creator", 500, "unlock:m1", "fan")
	require.NoError(t, err)
	_, err = wallets.Credit(ctx, "creator", 300, "stream_tip:s1", "fan")
	require.NoError(t, err)
	_, err = wallets.Credit(ctx, "creator", 200, "stream_toll:s1", "fan")
	require.NoError(t, err)
	_, err = wallets.Credit(ctx, "creator", 9999, "topup:ref", "")
	require.NoError(t, err)

	summary, err := uc.GetEarnings(ctx, "creator")
	require.NoError(t, err)

	// Top-ups are not earnings.
	assert.Equal(t, int64(1000), summary.Total)
	assert.Equal(t, int64(500), summary.ByReason["unlock"])
	assert.Equal(t, int64(300), summary.ByReason["stream_tip"])
	assert.Equal(t, int64(200), summary.ByReason["stream_toll"])
	assert.Equal(t, 3, summary.Entries)
}

func TestGetEarningsCreatorsOnly(t *testing.T) {
	uc, _ := setupWalletFixture(t)

	_, err := uc.GetEarnings(context.Background(), "fan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestListTransactionsMostRecentFirst(t *testing.T) {
	uc, wallets := setupWalletFixture(t)
	ctx := context.Background()

	wallets.fund("fan", 1000)
	_, err := wallets.Debit(ctx, "fan", 300, "unlock:m1", "m1:fan", "creator")
	require.NoError(t, err)
	_, err = wallets.Credit(ctx, "fan", 500, "topup:ref", "")
	require.NoError(t, err)

	entries, err := uc.ListTransactions(ctx, "fan", 20, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.LedgerEntryCredit, entries[0].Type)
	assert.Equal(t, entity.LedgerEntryDebit, entries[1].Type)
}
