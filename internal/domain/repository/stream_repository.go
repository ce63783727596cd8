package repository

import (
	"context"

	"fanlink/internal/domain/entity"
)

type StreamRepository interface {
	Create(ctx context.Context, stream *entity.Stream) error
	GetByID(ctx context.Context, id string) (*entity.Stream, error)
	GetActiveByCreator(ctx context.Context, creatorID string) (*entity.Stream, error)
	// AddEarnings transactionally increments the session earnings counter of
	// an active stream. The counter never decreases within a session.
	AddEarnings(ctx context.Context, streamID string, amount int64) (*entity.Stream, error)
	End(ctx context.Context, streamID string) error
}
