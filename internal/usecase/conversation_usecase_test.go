package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanlink/internal/domain/entity"
	"fanlink/pkg/errors"
)

func setupConversationFixture(t *testing.T) (*ConversationUseCase, *fakeChatStore) {
	t.Helper()

	store := newFakeChatStore()
	users := newFakeUserRepo(
		&entity.User{ID: "creator", DisplayName: "Cleo", PhotoURL: "https://example.com/cleo.jpg", Role: "creator"},
		&entity.User{ID: "fan", DisplayName: "Finn", Role: "fan"},
	)

	return NewConversationUseCase(store, users, newFakeNotifier()), store
}

func TestEnsureConversationIdempotent(t *testing.T) {
	uc, _ := setupConversationFixture(t)
	ctx := context.Background()

	first, err := uc.EnsureConversation(ctx, "fan", "creator")
	require.NoError(t, err)

	// Ensured from the other side, the same record comes back.
	second, err := uc.EnsureConversation(ctx, "creator", "fan")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, entity.DeriveConversationID("fan", "creator"), first.ID)

	// Display metadata was snapshotted for both participants.
	assert.Equal(t, "Cleo", first.ParticipantMeta["creator"].DisplayName)
	assert.Equal(t, "Finn", first.ParticipantMeta["fan"].DisplayName)
}

func TestEnsureConversationRejectsSelf(t *testing.T) {
	uc, _ := setupConversationFixture(t)

	_, err := uc.EnsureConversation(context.Background(), "fan", "fan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestEnsureConversationUnknownRecipient(t *testing.T) {
	uc, _ := setupConversationFixture(t)

	_, err := uc.EnsureConversation(context.Background(), "fan", "nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestGetConversationRequiresParticipant(t *testing.T) {
	uc, _ := setupConversationFixture(t)
	ctx := context.Background()

	conv, err := uc.EnsureConversation(ctx, "fan", "creator")
	require.NoError(t, err)

	_, err = uc.GetConversation(ctx, "mallory", conv.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestMarkReadZeroesOwnCounterOnly(t *testing.T) {
	uc, store := setupConversationFixture(t)
	ctx := context.Background()

	conv, err := uc.EnsureConversation(ctx, "fan", "creator")
	require.NoError(t, err)

	// Simulate unread on both sides.
	for i := 0; i < 3; i++ {
		_, err := store.AppendMessage(ctx, &entity.Message{
			ID:             entity.DeriveConversationID("fan", "creator") + "-m" + string(rune('0'+i)),
			ConversationID: conv.ID,
			SenderID:       "creator",
			Body:           "hello",
			Kind:           entity.MessageKindText,
		})
		require.NoError(t, err)
	}
	_, err = store.AppendMessage(ctx, &entity.Message{
		ID:             "from-fan",
		ConversationID: conv.ID,
		SenderID:       "fan",
		Body:           "hi",
		Kind:           entity.MessageKindText,
	})
	require.NoError(t, err)

	require.NoError(t, uc.MarkRead(ctx, "fan", conv.ID))

	updated, err := store.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.UnreadCount["fan"])
	// The other participant's counter is untouched.
	assert.Equal(t, 1, updated.UnreadCount["creator"])
}

func TestListConversationsRecentFirst(t *testing.T) {
	uc, store := setupConversationFixture(t)
	ctx := context.Background()

	conv, err := uc.EnsureConversation(ctx, "fan", "creator")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, &entity.Message{
		ID:             "m1",
		ConversationID: conv.ID,
		SenderID:       "creator",
		Body:           "latest",
		Kind:           entity.MessageKindText,
	})
	require.NoError(t, err)

	list, total, err := uc.ListConversations(ctx, "fan", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "latest", list[0].LastMessage)

	// Non-participants see nothing.
	list, total, err = uc.ListConversations(ctx, "mallory", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, list)
}
