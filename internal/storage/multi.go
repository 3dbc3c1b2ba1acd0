package storage

import (
	"context"

	"fushumaDex/internal/model"
)

// Multi fans every write out to each sink in order, stopping at the first error.
type Multi []Storage

func (m Multi) PutSnapshotBatch(ctx context.Context, snapshots []model.PoolSnapshot) error {
	for _, sink := range m {
		if err := sink.PutSnapshotBatch(ctx, snapshots); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutSwapQuote(ctx context.Context, quote model.SwapQuote) error {
	for _, sink := range m {
		if err := sink.PutSwapQuote(ctx, quote); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutPositionQuote(ctx context.Context, quote model.PositionQuote) error {
	for _, sink := range m {
		if err := sink.PutPositionQuote(ctx, quote); err != nil {
			return err
		}
	}
	return nil
}
