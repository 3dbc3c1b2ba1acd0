package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fushumaDex/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pools, snapshots and quotes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables. It is safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, decimals0, decimals1, fee, tick_spacing,
				first_sampled_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				decimals0 = EXCLUDED.decimals0,
				decimals1 = EXCLUDED.decimals1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				first_sampled_block = LEAST(pools.first_sampled_block, EXCLUDED.first_sampled_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Token0,
			pool.Token1,
			int16(pool.Decimals0),
			int16(pool.Decimals1),
			int64(pool.Fee),
			pool.TickSpacing,
			int64(pool.FirstSampledBlock),
		)
	}
	return sendBatch(ctx, s.pool, batch, len(pools))
}

// PutSnapshotBatch upserts pool snapshots keyed by pool and block.
func (s *Store) PutSnapshotBatch(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				chain_id, pool_address, block_number, block_ts, sqrt_price_x96, tick, derived_tick,
				tick_consistent, liquidity, fee, price, sampled_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9::numeric, $10, $11::numeric, $12::timestamptz)
			ON CONFLICT (chain_id, pool_address, block_number)
			DO UPDATE SET
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				tick = EXCLUDED.tick,
				derived_tick = EXCLUDED.derived_tick,
				tick_consistent = EXCLUDED.tick_consistent,
				liquidity = EXCLUDED.liquidity,
				fee = EXCLUDED.fee,
				price = EXCLUDED.price,
				sampled_at = EXCLUDED.sampled_at
		`,
			int64(snap.ChainID),
			snap.PoolAddress,
			int64(snap.BlockNumber),
			int64(snap.Timestamp),
			snap.SqrtPriceX96,
			snap.Tick,
			snap.DerivedTick,
			snap.TickConsistent,
			snap.Liquidity,
			int64(snap.Fee),
			snap.Price,
			snap.SampledAt,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(snapshots))
}

// PutSwapQuote records a swap quote.
func (s *Store) PutSwapQuote(ctx context.Context, q model.SwapQuote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swap_quotes (
			chain_id, pool_address, zero_for_one, amount_in, fee_ppm, fee_amount, amount_in_used,
			amount_out, sqrt_price_before, sqrt_price_after, tick_before, tick_after,
			price_before, price_after, price_impact, quoted_at
		) VALUES (
			$1, $2, $3, $4::numeric, $5, $6::numeric, $7::numeric,
			$8::numeric, $9::numeric, $10::numeric, $11, $12,
			$13::numeric, $14::numeric, $15::numeric, $16::timestamptz
		)
	`,
		int64(q.ChainID),
		q.PoolAddress,
		q.ZeroForOne,
		q.AmountIn,
		int64(q.FeePpm),
		q.FeeAmount,
		q.AmountInUsed,
		q.AmountOut,
		q.SqrtPriceBefore,
		q.SqrtPriceAfter,
		q.TickBefore,
		q.TickAfter,
		q.PriceBefore,
		q.PriceAfter,
		q.PriceImpact,
		q.QuotedAt,
	)
	return err
}

// PutPositionQuote records a position quote.
func (s *Store) PutPositionQuote(ctx context.Context, q model.PositionQuote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO position_quotes (
			chain_id, pool_address, tick_lower, tick_upper, tick_current, sqrt_price_x96,
			amount0_desired, amount1_desired, liquidity, amount0, amount1,
			price_lower, price_upper, in_range, quoted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6::numeric,
			$7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric,
			$12::numeric, $13::numeric, $14, $15::timestamptz
		)
	`,
		int64(q.ChainID),
		q.PoolAddress,
		q.TickLower,
		q.TickUpper,
		q.TickCurrent,
		q.SqrtPriceX96,
		q.Amount0Desired,
		q.Amount1Desired,
		q.Liquidity,
		q.Amount0,
		q.Amount1,
		q.PriceLower,
		q.PriceUpper,
		q.InRange,
		q.QuotedAt,
	)
	return err
}

// LoadCheckpoint returns the last sampled block for a name.
func (s *Store) LoadCheckpoint(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("checkpoint name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_sampled_block FROM sampler_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveCheckpoint upserts the last sampled block for a name.
func (s *Store) SaveCheckpoint(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("checkpoint name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sampler_state (name, last_sampled_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_sampled_block = EXCLUDED.last_sampled_block, updated_at = now()
	`, name, int64(block))
	return err
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, n int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
