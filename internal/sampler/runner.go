package sampler

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fushumaDex/internal/chain"
	"fushumaDex/internal/metrics"
	"fushumaDex/internal/model"
	"fushumaDex/internal/storage"
	"fushumaDex/internal/v3math"
)

// ChainReader is the subset of *chain.Client the sampler needs.
type ChainReader interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// PoolReader reads pool and token state; *dex.StateReader satisfies it.
type PoolReader interface {
	PoolStateAt(ctx context.Context, pool common.Address, blockNumber uint64) (model.PoolState, error)
	PoolMeta(ctx context.Context, pool common.Address) (model.PoolMeta, error)
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// PoolSink receives pool metadata; *postgres.Store satisfies it.
type PoolSink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// RunConfig holds runtime settings for the sampler.
type RunConfig struct {
	FromBlock  uint64
	ToBlock    uint64
	Step       uint64
	BatchSize  int
	Pools      []common.Address
	Checkpoint Checkpointer
	Retry      chain.RetryPolicy
	// Concurrency caps parallel pool reads per height; zero or less means one per pool.
	Concurrency int
	Metrics     *metrics.Sampler
}

// Runner samples pool state at evenly spaced block heights and writes snapshots to storage.
type Runner struct {
	cfg     RunConfig
	chain   ChainReader
	pools   PoolReader
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainReader ChainReader, poolReader PoolReader, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		chain:   chainReader,
		pools:   poolReader,
		storage: storageSink,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes the sampling loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain reader is nil")
	}
	if r.pools == nil {
		return fmt.Errorf("pool reader is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.Step == 0 {
		return fmt.Errorf("sample step must be greater than zero")
	}
	if r.cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	if from > to {
		r.logger.Info("nothing to sample", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	cursor, err := NewHeightCursor(from, to, r.cfg.Step)
	if err != nil {
		return err
	}
	if r.cfg.Checkpoint != nil {
		last, ok, err := r.cfg.Checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			cursor.ResumeAfter(last)
			next, _ := cursor.Peek()
			r.logger.Info("resume from checkpoint", zap.Uint64("last_sampled", last), zap.Uint64("from", next))
		}
	}

	first, ok := cursor.Peek()
	if !ok {
		r.logger.Info("nothing to sample", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	decimals, err := r.loadPools(ctx, chainIDValue, first)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := cursor.NextBatch(r.cfg.BatchSize)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}

		first, last := batch[0], batch[len(batch)-1]
		r.logger.Info("sample batch", zap.Uint64("from", first), zap.Uint64("to", last), zap.Int("heights", len(batch)))

		snapshots := make([]model.PoolSnapshot, 0, len(batch)*len(r.cfg.Pools))
		inconsistent := 0
		for _, height := range batch {
			ts, err := r.blockTimestampWithRetry(ctx, height)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", height, err)
			}
			states, err := r.poolStatesAt(ctx, height)
			if err != nil {
				return err
			}
			sampledAt := r.now().UTC()
			for i, pool := range r.cfg.Pools {
				snap, err := buildSnapshot(chainIDValue, pool, height, ts, states[i], decimals[pool], sampledAt)
				if err != nil {
					return fmt.Errorf("snapshot %s at %d: %w", pool.Hex(), height, err)
				}
				if !snap.TickConsistent {
					inconsistent++
					r.cfg.Metrics.RecordTickInconsistent()
					r.logger.Warn("slot0 tick disagrees with sqrt price",
						zap.String("pool", pool.Hex()),
						zap.Uint64("block_number", height),
						zap.Int32("tick", snap.Tick),
						zap.Int32("derived_tick", snap.DerivedTick),
					)
				}
				snapshots = append(snapshots, snap)
			}
		}

		if err := r.storage.PutSnapshotBatch(ctx, snapshots); err != nil {
			return fmt.Errorf("store snapshots: %w", err)
		}

		r.cfg.Metrics.RecordSnapshots(len(snapshots))
		r.cfg.Metrics.SetLastBlock(last)

		if r.cfg.Checkpoint != nil {
			if err := r.cfg.Checkpoint.Save(ctx, last); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("snapshots", len(snapshots)),
			zap.Int("tick_inconsistent", inconsistent),
			zap.Uint64("from", first),
			zap.Uint64("to", last),
		)
	}
}

type tokenDecimals struct {
	token0 uint8
	token1 uint8
}

func (r *Runner) loadPools(ctx context.Context, chainID, firstBlock uint64) (map[common.Address]tokenDecimals, error) {
	out := make(map[common.Address]tokenDecimals, len(r.cfg.Pools))
	records := make([]model.Pool, 0, len(r.cfg.Pools))
	for _, pool := range r.cfg.Pools {
		var meta model.PoolMeta
		err := chain.WithRetry(ctx, r.cfg.Retry, func(ctx context.Context) error {
			var err error
			meta, err = r.pools.PoolMeta(ctx, pool)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("pool meta %s: %w", pool.Hex(), err)
		}

		token0, err := r.tokenMetaWithRetry(ctx, common.HexToAddress(meta.Token0))
		if err != nil {
			return nil, fmt.Errorf("token0 meta %s: %w", meta.Token0, err)
		}
		token1, err := r.tokenMetaWithRetry(ctx, common.HexToAddress(meta.Token1))
		if err != nil {
			return nil, fmt.Errorf("token1 meta %s: %w", meta.Token1, err)
		}

		out[pool] = tokenDecimals{token0: token0.Decimals, token1: token1.Decimals}
		records = append(records, model.Pool{
			ChainID:           chainID,
			Address:           pool.Hex(),
			Token0:            meta.Token0,
			Token1:            meta.Token1,
			Decimals0:         token0.Decimals,
			Decimals1:         token1.Decimals,
			Fee:               meta.Fee,
			TickSpacing:       meta.TickSpacing,
			FirstSampledBlock: firstBlock,
		})
		r.logger.Info("pool loaded",
			zap.String("pool", pool.Hex()),
			zap.String("token0", token0.Symbol),
			zap.String("token1", token1.Symbol),
			zap.Uint32("fee", meta.Fee),
		)
	}

	if sink, ok := r.storage.(PoolSink); ok {
		if err := sink.UpsertPools(ctx, records); err != nil {
			return nil, fmt.Errorf("store pools: %w", err)
		}
	}
	return out, nil
}

// buildSnapshot turns a pool state read at height into a snapshot, re-deriving the
// tick from the sqrt price to cross-check slot0.
func buildSnapshot(chainID uint64, pool common.Address, height, timestamp uint64, state model.PoolState, dec tokenDecimals, sampledAt time.Time) (model.PoolSnapshot, error) {
	derived, err := v3math.TickAtSqrtPrice(state.SqrtPriceX96)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	price, err := v3math.SqrtPriceToPrice(state.SqrtPriceX96, dec.token0, dec.token1)
	if err != nil {
		return model.PoolSnapshot{}, err
	}

	liquidity := "0"
	if state.Liquidity != nil {
		liquidity = state.Liquidity.String()
	}

	return model.PoolSnapshot{
		ChainID:        chainID,
		PoolAddress:    pool.Hex(),
		BlockNumber:    height,
		Timestamp:      timestamp,
		SqrtPriceX96:   state.SqrtPriceX96.String(),
		Tick:           int32(state.Tick),
		DerivedTick:    int32(derived),
		TickConsistent: derived == state.Tick,
		Liquidity:      liquidity,
		Fee:            state.Fee,
		Price:          price.String(),
		SampledAt:      sampledAt.Format(time.RFC3339Nano),
	}, nil
}

// poolStatesAt reads every configured pool at height in parallel; results keep pool order.
func (r *Runner) poolStatesAt(ctx context.Context, height uint64) ([]model.PoolState, error) {
	states := make([]model.PoolState, len(r.cfg.Pools))
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Concurrency > 0 {
		g.SetLimit(r.cfg.Concurrency)
	}
	for i, pool := range r.cfg.Pools {
		i, pool := i, pool
		g.Go(func() error {
			state, err := r.poolStateWithRetry(gctx, pool, height)
			if err != nil {
				return fmt.Errorf("pool state %s at %d: %w", pool.Hex(), height, err)
			}
			states[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

func (r *Runner) poolStateWithRetry(ctx context.Context, pool common.Address, height uint64) (model.PoolState, error) {
	var state model.PoolState
	err := chain.WithRetry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		state, err = r.pools.PoolStateAt(ctx, pool, height)
		if err != nil {
			r.cfg.Metrics.RecordRPCFailure("pool_state")
			r.logger.Warn("pool state fetch failed", zap.Error(err), zap.String("pool", pool.Hex()), zap.Uint64("block_number", height))
		}
		return err
	})
	return state, err
}

func (r *Runner) tokenMetaWithRetry(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	var meta model.TokenMeta
	err := chain.WithRetry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		meta, err = r.pools.TokenMeta(ctx, token)
		return err
	})
	return meta, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.cfg.Metrics.RecordRPCFailure("block_timestamp")
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
