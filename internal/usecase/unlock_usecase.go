package usecase

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"fanlink/internal/domain/entity"
	"fanlink/internal/domain/repository"
	"fanlink/internal/infrastructure/metrics"
	"fanlink/internal/infrastructure/ratelimit"
	"fanlink/pkg/errors"
	"fanlink/pkg/logger"
)

type UnlockUseCase struct {
	walletRepo       repository.WalletRepository
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	repairRepo       repository.UnlockRepairRepository
	notifier         Notifier
	rateLimiter      *ratelimit.RateLimiter
}

func NewUnlockUseCase(
	walletRepo repository.WalletRepository,
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	repairRepo repository.UnlockRepairRepository,
	notifier Notifier,
	rateLimiter *ratelimit.RateLimiter,
) *UnlockUseCase {
	return &UnlockUseCase{
		walletRepo:       walletRepo,
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		repairRepo:       repairRepo,
		notifier:         notifier,
		rateLimiter:      rateLimiter,
	}
}

func unlockKey(messageID, viewerID string) string {
	return messageID + ":" + viewerID
}

// UnlockMessage charges the viewer and grants access to a locked message.
//
// The order is fixed: short-circuit if already viewable, balance check,
// debit under the unlock's idempotency key, then grant. A replayed debit is
// treated as success so a retry after any failure can never double-charge.
// If the grant write fails after the debit committed, the charge is recorded
// as a repair entry and the caller gets an UNLOCK_PENDING result; the
// reconciliation job completes the grant from the existing charge, never by
// debiting again.
func (uc *UnlockUseCase) UnlockMessage(ctx context.Context, viewerID, conversationID, messageID string) (*entity.Message, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(viewerID, "unlock"); !allowed {
			return nil, errors.TooManyRequests("Too many unlock attempts", wait)
		}
	}

	conv, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}

	message, err := uc.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}

	// Already unlocked (or never locked, or own message): success, no charge.
	if message.ViewableBy(viewerID) {
		return message, nil
	}

	price := message.Price
	if price <= 0 {
		// Locked with no price should not exist; grant rather than charge
		// nothing and fail.
		log.Printf("UnlockMessage: message %s locked with price %d, granting without charge", messageID, price)
		if err := uc.messageRepo.AddUnlockedViewer(ctx, conversationID, messageID, viewerID); err != nil {
			return nil, err
		}
		return uc.messageRepo.GetByID(ctx, conversationID, messageID)
	}

	// Early balance check so the common insufficient-funds case never
	// reaches the transactional debit. The debit re-checks under the
	// transaction; this is not the enforcement point.
	wallet, err := uc.walletRepo.GetWallet(ctx, viewerID)
	if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}
	var balance int64
	if wallet != nil {
		balance = wallet.Balance
	}
	if balance < price {
		metrics.MessageUnlocks.WithLabelValues("insufficient_funds").Inc()
		return nil, errors.InsufficientFunds(price, balance)
	}

	key := unlockKey(messageID, viewerID)
	reason := "unlock:" + messageID

	entry, err := uc.walletRepo.Debit(ctx, viewerID, price, reason, key, message.SenderID)
	replayed := false
	if err != nil {
		switch {
		case errors.Is(err, "ALREADY_APPLIED"):
			// Charged on a previous attempt; continue to the grant.
			replayed = true
		case errors.Is(err, "INSUFFICIENT_FUNDS"):
			metrics.MessageUnlocks.WithLabelValues("insufficient_funds").Inc()
			return nil, err
		default:
			// Nothing was charged; safe to surface as-is.
			return nil, err
		}
	}

	if !replayed {
		metrics.LedgerAmount.WithLabelValues(entity.LedgerEntryDebit, "unlock").Add(float64(price))

		// The viewer's debit is committed; pay the creator. A transient
		// failure here is logged against the debit entry for ledger
		// reconciliation and does not block the viewer's grant.
		if _, creditErr := uc.walletRepo.Credit(ctx, message.SenderID, price, reason, viewerID); creditErr != nil {
			entryID := key
			if entry != nil {
				entryID = entry.ID
			}
			logger.LogLedgerError(entryID, "unlock_creator_credit", creditErr)
		} else {
			metrics.LedgerAmount.WithLabelValues(entity.LedgerEntryCredit, "unlock").Add(float64(price))
		}
	}

	if err := uc.messageRepo.AddUnlockedViewer(ctx, conversationID, messageID, viewerID); err != nil {
		// Charged but not granted. Record it so the background pass can
		// finish the grant; the viewer must never end up paying for nothing.
		repair := &entity.UnlockRepair{
			ID:             key,
			ConversationID: conversationID,
			MessageID:      messageID,
			ViewerID:       viewerID,
			Amount:         price,
			CreatedAt:      time.Now(),
		}
		if putErr := uc.repairRepo.Put(ctx, repair); putErr != nil {
			// Even the repair record failed; the ledger entry alone still
			// proves the charge. Loud log, manual follow-up possible.
			logger.Error("UnlockMessage: charge %s recorded but repair enqueue failed: grant_err=%v put_err=%v", key, err, putErr)
		}
		metrics.MessageUnlocks.WithLabelValues("pending").Inc()
		metrics.UnlockRepairsPending.Inc()
		return nil, errors.UnlockPending(messageID)
	}

	if replayed {
		metrics.MessageUnlocks.WithLabelValues("replayed").Inc()
	} else {
		metrics.MessageUnlocks.WithLabelValues("granted").Inc()
	}

	unlocked, err := uc.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		// The grant is committed; return the local view rather than failing.
		message.UnlockedBy = append(message.UnlockedBy, viewerID)
		unlocked = message
	}

	uc.notifyUnlocked(message.SenderID, conversationID, messageID, viewerID)

	return unlocked, nil
}

func (uc *UnlockUseCase) notifyUnlocked(senderID, conversationID, messageID, viewerID string) {
	if uc.notifier == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":            "message_unlocked",
		"conversation_id": conversationID,
		"message_id":      messageID,
		"viewer_id":       viewerID,
		"timestamp":       time.Now().UTC(),
	})
	if err != nil {
		return
	}
	uc.notifier.SendToUser(senderID, payload)
	uc.notifier.SendToUser(viewerID, payload)
}

// ListPendingRepairs exposes the charged-but-not-granted backlog for
// operators.
func (uc *UnlockUseCase) ListPendingRepairs(ctx context.Context, limit int) ([]*entity.UnlockRepair, error) {
	return uc.repairRepo.List(ctx, limit)
}

// StartReconciliationJob runs the background pass that completes grants for
// charged-but-not-granted unlocks. Each pass retries the grant write only;
// the charge already exists and is never repeated.
func (uc *UnlockUseCase) StartReconciliationJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Unlock reconciliation job started (interval %s)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Unlock reconciliation job stopped")
			return
		case <-ticker.C:
			uc.runReconciliationPass(ctx)
		}
	}
}

func (uc *UnlockUseCase) runReconciliationPass(ctx context.Context) {
	repairs, err := uc.repairRepo.List(ctx, 100)
	if err != nil {
		log.Printf("Reconciliation: failed to list repairs: %v", err)
		return
	}

	for _, repair := range repairs {
		if err := uc.reconcileOne(ctx, repair); err != nil {
			repair.Attempts++
			repair.LastAttemptAt = time.Now()
			if updateErr := uc.repairRepo.Update(ctx, repair); updateErr != nil {
				log.Printf("Reconciliation: failed to update repair %s: %v", repair.ID, updateErr)
			}
			log.Printf("Reconciliation: repair %s attempt %d failed: %v", repair.ID, repair.Attempts, err)
		}
	}
}

func (uc *UnlockUseCase) reconcileOne(ctx context.Context, repair *entity.UnlockRepair) error {
	// The charge record must exist; it is what authorizes the grant.
	if _, err := uc.walletRepo.GetEntryByID(ctx, repair.ID); err != nil {
		if errors.Is(err, "NOT_FOUND") {
			// No charge after all. Drop the repair; nothing is owed.
			log.Printf("Reconciliation: repair %s has no charge record, dropping", repair.ID)
			if delErr := uc.repairRepo.Delete(ctx, repair.ID); delErr == nil {
				metrics.UnlockRepairsPending.Dec()
			}
			return nil
		}
		return err
	}

	err := uc.messageRepo.AddUnlockedViewer(ctx, repair.ConversationID, repair.MessageID, repair.ViewerID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			// Message deleted while the repair was pending. Refund: access
			// can no longer be granted, so the charge must come back.
			if _, refundErr := uc.walletRepo.Credit(ctx, repair.ViewerID, repair.Amount, "refund:"+repair.MessageID, ""); refundErr != nil {
				return refundErr
			}
			log.Printf("Reconciliation: message %s gone, refunded %d to %s", repair.MessageID, repair.Amount, repair.ViewerID)
			if delErr := uc.repairRepo.Delete(ctx, repair.ID); delErr != nil {
				return delErr
			}
			metrics.UnlockRepairsPending.Dec()
			return nil
		}
		return err
	}

	if err := uc.repairRepo.Delete(ctx, repair.ID); err != nil {
		return err
	}
	metrics.UnlockRepairsPending.Dec()

	log.Printf("Reconciliation: completed unlock of message %s for %s", repair.MessageID, repair.ViewerID)

	// Tell the viewer the unlock finally landed.
	if uc.notifier != nil {
		payload, marshalErr := json.Marshal(map[string]interface{}{
			"type":            "message_unlocked",
			"conversation_id": repair.ConversationID,
			"message_id":      repair.MessageID,
			"viewer_id":       repair.ViewerID,
			"timestamp":       time.Now().UTC(),
		})
		if marshalErr == nil {
			uc.notifier.SendToUser(repair.ViewerID, payload)
		}
	}

	return nil
}
