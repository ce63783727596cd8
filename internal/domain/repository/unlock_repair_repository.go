package repository

import (
	"context"

	"fanlink/internal/domain/entity"
)

// UnlockRepairRepository holds charged-but-not-granted unlocks awaiting
// reconciliation. Entries are keyed by the charge's idempotency key so a
// repeated enqueue of the same failure overwrites rather than duplicates.
type UnlockRepairRepository interface {
	Put(ctx context.Context, repair *entity.UnlockRepair) error
	List(ctx context.Context, limit int) ([]*entity.UnlockRepair, error)
	Update(ctx context.Context, repair *entity.UnlockRepair) error
	Delete(ctx context.Context, id string) error
}
