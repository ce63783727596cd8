package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanlink/internal/domain/entity"
	"fanlink/pkg/errors"
)

func setupLiveChatFixture(t *testing.T) (*LiveChatUseCase, *fakeStreamRepo, *fakeWalletRepo, *fakeNotifier) {
	t.Helper()

	streams := newFakeStreamRepo()
	wallets := newFakeWalletRepo()
	users := newFakeUserRepo(
		&entity.User{ID: "creator", DisplayName: "Cleo", Role: "creator"},
		&entity.User{ID: "fan", DisplayName: "Finn", Role: "fan"},
	)
	notifier := newFakeNotifier()

	return NewLiveChatUseCase(streams, wallets, users, notifier, nil), streams, wallets, notifier
}

func startStream(t *testing.T, uc *LiveChatUseCase, price int64) *entity.Stream {
	t.Helper()
	stream, err := uc.StartStream(context.Background(), "creator", StartStreamInput{
		Title:        "late night",
		MessagePrice: price,
	})
	require.NoError(t, err)
	return stream
}

func TestStartStream(t *testing.T) {
	uc, _, _, _ := setupLiveChatFixture(t)

	stream := startStream(t, uc, 100)
	assert.True(t, stream.Active)
	assert.Equal(t, int64(0), stream.SessionEarnings)

	// A second concurrent stream for the same creator is rejected.
	_, err := uc.StartStream(context.Background(), "creator", StartStreamInput{Title: "again"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestStartStreamFanForbidden(t *testing.T) {
	uc, _, _, _ := setupLiveChatFixture(t)

	_, err := uc.StartStream(context.Background(), "fan", StartStreamInput{Title: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSendChatTollMovesMoneyBeforeRelay(t *testing.T) {
	uc, streams, wallets, notifier := setupLiveChatFixture(t)
	stream := startStream(t, uc, 100)
	wallets.fund("fan", 250)

	line, err := uc.SendChat(context.Background(), "fan", stream.ID, StreamChatInput{Body: "hello!"})
	require.NoError(t, err)

	assert.Equal(t, entity.MessageKindText, line.Kind)
	assert.Equal(t, int64(150), wallets.balance("fan"))
	assert.Equal(t, int64(100), wallets.balance("creator"))

	updated, err := streams.GetByID(context.Background(), stream.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), updated.SessionEarnings)

	assert.Equal(t, 1, notifier.roomMessageCount(StreamRoomID(stream.ID)))
}

func TestSendChatInsufficientFundsShortCircuits(t *testing.T) {
	uc, streams, wallets, notifier := setupLiveChatFixture(t)
	stream := startStream(t, uc, 100)
	wallets.fund("fan", 40)

	_, err := uc.SendChat(context.Background(), "fan", stream.ID, StreamChatInput{Body: "hello!"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, "INSUFFICIENT_FUNDS"))

	// Nothing moved, nothing was relayed.
	assert.Equal(t, int64(40), wallets.balance("fan"))
	assert.Equal(t, int64(0), wallets.balance("creator"))
	updated, _ := streams.GetByID(context.Background(), stream.ID)
	assert.Equal(t, int64(0), updated.SessionEarnings)
	assert.Equal(t, 0, notifier.roomMessageCount(StreamRoomID(stream.ID)))
}

func TestSendChatCreatorChatsFree(t *testing.T) {
	uc, _, wallets, notifier := setupLiveChatFixture(t)
	stream := startStream(t, uc, 100)

	_, err := uc.SendChat(context.Background(), "creator", stream.ID, StreamChatInput{Body: "welcome"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), wallets.balance("creator"))
	assert.Equal(t, 1, notifier.roomMessageCount(StreamRoomID(stream.ID)))
}

func TestSendChatFreeStream(t *testing.T) {
	uc, _, wallets, _ := setupLiveChatFixture(t)
	stream := startStream(t, uc, 0)

	// No toll configured: no wallet needed at all.
	_, err := uc.SendChat(context.Background(), "fan", stream.ID, StreamChatInput{Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallets.balance("fan"))
}

func TestSendTip(t *testing.T) {
	uc, streams, wallets, _ := setupLiveChatFixture(t)
	stream := startStream(t, uc, 0)
	wallets.fund("fan", 1000)

	line, err := uc.SendTip(context.Background(), "fan", stream.ID, StreamTipInput{Amount: 750, Body: "great show"})
	require.NoError(t, err)

	// The relayed line is tagged so clients can highlight it.
	assert.Equal(t, entity.MessageKindTip, line.Kind)
	assert.Equal(t, int64(750), line.Amount)

	assert.Equal(t, int64(250), wallets.balance("fan"))
	assert.Equal(t, int64(750), wallets.balance("creator"))
	updated, _ := streams.GetByID(context.Background(), stream.ID)
	assert.Equal(t, int64(750), updated.SessionEarnings)
}

func TestSendTipValidation(t *testing.T) {
	uc, _, wallets, _ := setupLiveChatFixture(t)
	stream := startStream(t, uc, 0)
	wallets.fund("fan", 1000)

	_, err := uc.SendTip(context.Background(), "fan", stream.ID, StreamTipInput{Amount: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "INVALID_PRICE"))

	_, err = uc.SendTip(context.Background(), "creator", stream.ID, StreamTipInput{Amount: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestEndedStreamRejectsChat(t *testing.T) {
	uc, _, wallets, _ := setupLiveChatFixture(t)
	stream := startStream(t, uc, 0)
	wallets.fund("fan", 1000)

	_, err := uc.EndStream(context.Background(), "creator", stream.ID)
	require.NoError(t, err)

	_, err = uc.SendChat(context.Background(), "fan", stream.ID, StreamChatInput{Body: "too late"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = uc.SendTip(context.Background(), "fan", stream.ID, StreamTipInput{Amount: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	// Only the owner can end a stream.
	other := startStream(t, uc, 0)
	_, err = uc.EndStream(context.Background(), "fan", other.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSessionEarningsResetPerSession(t *testing.T) {
	uc, streams, wallets, _ := setupLiveChatFixture(t)
	wallets.fund("fan", 1000)

	first := startStream(t, uc, 0)
	_, err := uc.SendTip(context.Background(), "fan", first.ID, StreamTipInput{Amount: 300})
	require.NoError(t, err)
	_, err = uc.EndStream(context.Background(), "creator", first.ID)
	require.NoError(t, err)

	second := startStream(t, uc, 0)
	updated, err := streams.GetByID(context.Background(), second.ID)
	require.NoError(t, err)

	// The counter starts at zero for the new session; the ledger keeps the
	// full history.
	assert.Equal(t, int64(0), updated.SessionEarnings)
	assert.Equal(t, int64(300), wallets.balance("creator"))
}
