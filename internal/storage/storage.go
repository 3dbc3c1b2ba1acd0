package storage

import (
	"context"

	"fushumaDex/internal/model"
)

// Storage defines a sink for sampled pool snapshots and quotes.
type Storage interface {
	PutSnapshotBatch(ctx context.Context, snapshots []model.PoolSnapshot) error
	PutSwapQuote(ctx context.Context, quote model.SwapQuote) error
	PutPositionQuote(ctx context.Context, quote model.PositionQuote) error
}
