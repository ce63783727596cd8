package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanlink/internal/domain/entity"
	"fanlink/pkg/errors"
)

func setupUnlockFixture(t *testing.T) (*UnlockUseCase, *fakeWalletRepo, *fakeChatStore, *fakeRepairRepo) {
	t.Helper()

	wallets := newFakeWalletRepo()
	store := newFakeChatStore()
	repairs := newFakeRepairRepo()

	uc := NewUnlockUseCase(wallets, messageRepoView{store}, store, repairs, newFakeNotifier(), nil)

	return uc, wallets, store, repairs
}

func seedLockedMessage(t *testing.T, store *fakeChatStore, id string, price int64) *entity.Message {
	t.Helper()

	ctx := context.Background()
	conv := &entity.Conversation{
		ID:           entity.DeriveConversationID("creator", "fan"),
		Participants: []string{"creator", "fan"},
		UnreadCount:  map[string]int{"creator": 0, "fan": 0},
	}
	_, err := store.EnsureConversation(ctx, conv)
	require.NoError(t, err)

	msg := &entity.Message{
		ID:             id,
		ConversationID: conv.ID,
		SenderID:       "creator",
		Body:           "https://example.com/media/" + id + ".jpg",
		Kind:           entity.MessageKindImage,
		Locked:         true,
		Price:          price,
	}
	_, err = store.AppendMessage(ctx, msg)
	require.NoError(t, err)

	return msg
}

func TestUnlockMessage(t *testing.T) {
	uc, wallets, store, _ := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)
	wallets.fund("fan", 1000)

	unlocked, err := uc.UnlockMessage(context.Background(), "fan", msg.ConversationID, msg.ID)
	require.NoError(t, err)

	assert.True(t, unlocked.ViewableBy("fan"))
	assert.Equal(t, int64(500), wallets.balance("fan"))
	// The creator was paid.
	assert.Equal(t, int64(500), wallets.balance("creator"))
}

func TestUnlockMessageIdempotent(t *testing.T) {
	uc, wallets, store, _ := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)
	wallets.fund("fan", 1000)

	ctx := context.Background()

	_, err := uc.UnlockMessage(ctx, "fan", msg.ConversationID, msg.ID)
	require.NoError(t, err)

	// Unlocking again must not charge a second time.
	unlocked, err := uc.UnlockMessage(ctx, "fan", msg.ConversationID, msg.ID)
	require.NoError(t, err)
	assert.True(t, unlocked.ViewableBy("fan"))
	assert.Equal(t, int64(500), wallets.balance("fan"))
	assert.Equal(t, int64(500), wallets.balance("creator"))
}

func TestUnlockMessageInsufficientFunds(t *testing.T) {
	uc, wallets, store, _ := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)
	wallets.fund("fan", 100)

	_, err := uc.UnlockMessage(context.Background(), "fan", msg.ConversationID, msg.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, "INSUFFICIENT_FUNDS"))

	// The failure carries the amounts for the top-up prompt.
	appErr := err.(*errors.AppError)
	assert.Equal(t, int64(500), appErr.Meta["required"])
	assert.Equal(t, int64(100), appErr.Meta["balance"])

	// Nothing was charged, nothing was granted.
	assert.Equal(t, int64(100), wallets.balance("fan"))
	stored, err := messageRepoView{store}.GetByID(context.Background(), msg.ConversationID, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.ViewableBy("fan"))
}

func TestUnlockMessageSenderNeverCharged(t *testing.T) {
	uc, wallets, store, _ := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)

	// The sender already sees their own message; no wallet needed.
	unlocked, err := uc.UnlockMessage(context.Background(), "creator", msg.ConversationID, msg.ID)
	require.NoError(t, err)
	assert.True(t, unlocked.ViewableBy("creator"))
	assert.Equal(t, int64(0), wallets.balance("creator"))
}

func TestConcurrentUnlocksNeverOverdraw(t *testing.T) {
	uc, wallets, store, _ := setupUnlockFixture(t)
	wallets.fund("fan", 1000)

	const price = 300
	const attempts = 5

	messageIDs := make([]string, attempts)
	var conversationID string
	for i := range messageIDs {
		msg := seedLockedMessage(t, store, fmt.Sprintf("m%d", i), price)
		messageIDs[i] = msg.ID
		conversationID = msg.ConversationID
	}

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = uc.UnlockMessage(context.Background(), "fan", conversationID, messageIDs[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.Is(err, "INSUFFICIENT_FUNDS"), "unexpected error: %v", err)
		}
	}

	// 1000 buys exactly three 300-unit unlocks, never a fourth, and the
	// balance can never go negative.
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(1000-3*price), wallets.balance("fan"))
	assert.GreaterOrEqual(t, wallets.balance("fan"), int64(0))
}

func TestUnlockGrantFailureEnqueuesRepair(t *testing.T) {
	uc, wallets, store, repairs := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)
	wallets.fund("fan", 1000)

	store.failGrant = true

	_, err := uc.UnlockMessage(context.Background(), "fan", msg.ConversationID, msg.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, "UNLOCK_PENDING"))

	// Charged but not granted: the charge stands and the repair is queued.
	assert.Equal(t, int64(500), wallets.balance("fan"))
	assert.Equal(t, 1, repairs.count())

	pending, err := uc.ListPendingRepairs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msg.ID, pending[0].MessageID)
	assert.Equal(t, "fan", pending[0].ViewerID)
}

func TestReconciliationCompletesGrant(t *testing.T) {
	uc, wallets, store, repairs := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)
	wallets.fund("fan", 1000)

	store.failGrant = true
	_, err := uc.UnlockMessage(context.Background(), "fan", msg.ConversationID, msg.ID)
	require.True(t, errors.Is(err, "UNLOCK_PENDING"))

	// Store recovers; the reconciliation pass finishes the grant without a
	// second charge.
	store.failGrant = false
	uc.runReconciliationPass(context.Background())

	assert.Equal(t, 0, repairs.count())
	assert.Equal(t, int64(500), wallets.balance("fan"))

	stored, err := messageRepoView{store}.GetByID(context.Background(), msg.ConversationID, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.ViewableBy("fan"))

	// Retrying the unlock after reconciliation is a no-op.
	_, err = uc.UnlockMessage(context.Background(), "fan", msg.ConversationID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), wallets.balance("fan"))
}

func TestReconciliationRefundsWhenMessageGone(t *testing.T) {
	uc, wallets, store, repairs := setupUnlockFixture(t)
	msg := seedLockedMessage(t, store, "m1", 500)
	wallets.fund("fan", 1000)

	store.failGrant = true
	_, err := uc.UnlockMessage(context.Background(), "fan", msg.ConversationID, msg.ID)
	require.True(t, errors.Is(err, "UNLOCK_PENDING"))
	store.failGrant = false

	// Message deleted before reconciliation could grant access.
	require.NoError(t, store.Delete(context.Background(), msg.ConversationID, msg.ID))

	uc.runReconciliationPass(context.Background())

	// Access can never be granted, so the charge comes back.
	assert.Equal(t, 0, repairs.count())
	assert.Equal(t, int64(1000), wallets.balance("fan"))
}
