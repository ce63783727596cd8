package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/internal/infrastructure/metrics"
	"fanlink/internal/infrastructure/ratelimit"
	"fanlink/pkg/errors"
	"fanlink/pkg/logger"
)

type LiveChatUseCase struct {
	streamRepo  repository.StreamRepository
	walletRepo  repository.WalletRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	rateLimiter *ratelimit.RateLimiter
}

func NewLiveChatUseCase(
	streamRepo repository.StreamRepository,
	walletRepo repository.WalletRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	rateLimiter *ratelimit.RateLimiter,
) *LiveChatUseCase {
	return &LiveChatUseCase{
		streamRepo:  streamRepo,
		walletRepo:  walletRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}
}

// StreamRoomID is the websocket room a stream's viewers join.
func StreamRoomID(streamID string) string {
	return "stream:" + streamID
}

type StartStreamInput struct {
	Title        string
	MessagePrice int64 // per-chat-line toll in minor units, 0 = free chat
}

type StreamChatInput struct {
	Body      string
	ClientKey string // optional idempotency key for the toll debit
}

type StreamTipInput struct {
	Amount    int64
	Body      string
	ClientKey string
}

func (uc *LiveChatUseCase) StartStream(ctx context.Context, creatorID string, input StartStreamInput) (*entity.Stream, error) {
	user, err := uc.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if user.Role != "creator" && user.Role != "admin" {
		return nil, errors.Forbidden("Only creators can start a stream", nil)
	}

	if input.MessagePrice < 0 {
		return nil, errors.InvalidPrice("Message price cannot be negative")
	}

	if existing, err := uc.streamRepo.GetActiveByCreator(ctx, creatorID); err == nil && existing != nil {
		return nil, errors.Conflict("You already have an active stream")
	} else if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	stream := &entity.Stream{
		CreatorID:    creatorID,
		Title:        input.Title,
		MessagePrice: input.MessagePrice,
	}
	if err := uc.streamRepo.Create(ctx, stream); err != nil {
		log.Printf("StartStream Error: %v", err)
		return nil, err
	}

	return stream, nil
}

func (uc *LiveChatUseCase) GetStream(ctx context.Context, streamID string) (*entity.Stream, error) {
	return uc.streamRepo.GetByID(ctx, streamID)
}

func (uc *LiveChatUseCase) EndStream(ctx context.Context, creatorID, streamID string) (*entity.Stream, error) {
	stream, err := uc.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.CreatorID != creatorID {
		return nil, errors.Forbidden("Only the stream owner can end it", nil)
	}
	if !stream.Active {
		return stream, nil
	}

	if err := uc.streamRepo.End(ctx, streamID); err != nil {
		log.Printf("EndStream Error: %v", err)
		return nil, err
	}
	stream.Active = false
	stream.EndedAt = time.Now()

	uc.broadcast(streamID, map[string]interface{}{
		"type":      "stream_ended",
		"stream_id": streamID,
		"timestamp": time.Now().UTC(),
	})

	return stream, nil
}

// SendChat relays a chat line into a live stream, charging the configured
// per-line toll first when one is set. The order is fixed: debit the sender,
// credit the broadcaster, bump the session counter, then relay. Earnings are
// only ever credited after the debit has committed.
func (uc *LiveChatUseCase) SendChat(ctx context.Context, senderID, streamID string, input StreamChatInput) (*entity.StreamChatLine, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(senderID, "stream_chat"); !allowed {
			return nil, errors.TooManyRequests("You are chatting too quickly", wait)
		}
	}

	if input.Body == "" {
		return nil, errors.BadRequest("Chat message is required", nil)
	}

	stream, err := uc.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !stream.Active {
		return nil, errors.BadRequest("Stream is no longer live", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	toll := stream.MessagePrice
	if toll > 0 && senderID != stream.CreatorID {
		if err := uc.charge(ctx, senderID, stream, toll, "stream_toll:"+streamID, input.ClientKey); err != nil {
			return nil, err
		}
	}

	line := &entity.StreamChatLine{
		StreamID:   streamID,
		SenderID:   senderID,
		SenderName: sender.DisplayName,
		Body:       input.Body,
		Kind:       entity.MessageKindText,
		SentAt:     time.Now(),
	}

	uc.relay(line)
	metrics.StreamChatLines.WithLabelValues(line.Kind).Inc()

	return line, nil
}

// SendTip debits an explicit amount and relays a tagged chat line so viewers
// can render the tip distinctly.
func (uc *LiveChatUseCase) SendTip(ctx context.Context, senderID, streamID string, input StreamTipInput) (*entity.StreamChatLine, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(senderID, "tip"); !allowed {
			return nil, errors.TooManyRequests("Too many tips in a row", wait)
		}
	}

	if input.Amount <= 0 {
		return nil, errors.InvalidPrice("Tip amount must be positive")
	}

	stream, err := uc.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if !stream.Active {
		return nil, errors.BadRequest("Stream is no longer live", nil)
	}
	if senderID == stream.CreatorID {
		return nil, errors.BadRequest("You cannot tip your own stream", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	if err := uc.charge(ctx, senderID, stream, input.Amount, "stream_tip:"+streamID, input.ClientKey); err != nil {
		return nil, err
	}

	line := &entity.StreamChatLine{
		StreamID:   streamID,
		SenderID:   senderID,
		SenderName: sender.DisplayName,
		Body:       input.Body,
		Kind:       entity.MessageKindTip,
		Amount:     input.Amount,
		SentAt:     time.Now(),
	}

	uc.relay(line)
	metrics.StreamChatLines.WithLabelValues(line.Kind).Inc()

	return line, nil
}

// charge moves amount from the sender to the broadcaster and bumps the
// stream's session counter. The insufficient-funds short-circuit happens
// before the transactional debit; if the stream ended between the check and
// the counter bump, the debit is reversed so nobody pays into a dead stream.
func (uc *LiveChatUseCase) charge(ctx context.Context, senderID string, stream *entity.Stream, amount int64, reason, clientKey string) error {
	wallet, err := uc.walletRepo.GetWallet(ctx, senderID)
	if err != nil && !errors.Is(err, "NOT_FOUND") {
		return err
	}
	var balance int64
	if wallet != nil {
		balance = wallet.Balance
	}
	if balance < amount {
		return errors.InsufficientFunds(amount, balance)
	}

	key := clientKey
	if key == "" {
		key = uuid.New().String()
	}

	entry, err := uc.walletRepo.Debit(ctx, senderID, amount, reason, key, stream.CreatorID)
	replayed := false
	if err != nil {
		if errors.Is(err, "ALREADY_APPLIED") {
			replayed = true
		} else {
			return err
		}
	}

	if replayed {
		// The money already moved on a previous attempt; nothing more to do.
		return nil
	}

	metrics.LedgerAmount.WithLabelValues(entity.LedgerEntryDebit, reasonClass(reason)).Add(float64(amount))

	if _, err := uc.streamRepo.AddEarnings(ctx, stream.ID, amount); err != nil {
		if errors.Is(err, "BAD_REQUEST") || errors.Is(err, "NOT_FOUND") {
			// Stream died under us and the broadcaster was never credited.
			// Give the money back.
			if _, refundErr := uc.walletRepo.Credit(ctx, senderID, amount, "refund:"+stream.ID, stream.CreatorID); refundErr != nil {
				logger.LogLedgerError(key, "stream_toll_refund", refundErr)
			}
			return errors.BadRequest("Stream is no longer live", nil)
		}
		// Counter bump failed transiently; the counter is display-only and
		// the ledger stays correct, so the line goes through.
		log.Printf("charge: earnings counter update failed for stream %s: %v", stream.ID, err)
	}

	if _, creditErr := uc.walletRepo.Credit(ctx, stream.CreatorID, amount, reason, senderID); creditErr != nil {
		entryID := key
		if entry != nil {
			entryID = entry.ID
		}
		logger.LogLedgerError(entryID, "stream_creator_credit", creditErr)
	} else {
		metrics.LedgerAmount.WithLabelValues(entity.LedgerEntryCredit, reasonClass(reason)).Add(float64(amount))
	}

	return nil
}

func (uc *LiveChatUseCase) relay(line *entity.StreamChatLine) {
	uc.broadcast(line.StreamID, map[string]interface{}{
		"type":      "stream_chat",
		"stream_id": line.StreamID,
		"line":      line,
		"timestamp": time.Now().UTC(),
	})
}

func (uc *LiveChatUseCase) broadcast(streamID string, envelope map[string]interface{}) {
	if uc.notifier == nil {
		return
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("broadcast: marshal failed: %v", err)
		return
	}
	uc.notifier.BroadcastToRoom(StreamRoomID(streamID), payload, "")
}
