package quote

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"fushumaDex/internal/chain"
	"fushumaDex/internal/model"
)

// StateSource returns the current state of a pool; *dex.StateReader satisfies it.
type StateSource interface {
	PoolState(ctx context.Context, pool common.Address) (model.PoolState, error)
}

// Config holds quote service settings.
type Config struct {
	ChainID  uint64
	Decimals Decimals
	Retry    chain.RetryPolicy
}

// Service fetches fresh pool state and runs the pool math against it.
type Service struct {
	cfg    Config
	source StateSource
	logger *zap.Logger
	now    func() time.Time
}

func NewService(cfg Config, source StateSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// QuoteSwap quotes an exact-input swap step against the pool's current state.
func (s *Service) QuoteSwap(ctx context.Context, pool common.Address, amountIn *big.Int, zeroForOne bool) (model.SwapQuote, error) {
	state, err := s.fetchState(ctx, pool)
	if err != nil {
		return model.SwapQuote{}, err
	}

	quote, err := SwapFromState(state, amountIn, zeroForOne, s.cfg.Decimals)
	if err != nil {
		s.logger.Warn("swap quote failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return model.SwapQuote{}, fmt.Errorf("quote swap: %w", err)
	}
	quote.ChainID = s.cfg.ChainID
	quote.PoolAddress = pool.Hex()
	quote.QuotedAt = s.now().UTC().Format(time.RFC3339Nano)

	s.logger.Info("swap quoted",
		zap.String("pool", pool.Hex()),
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount_in", quote.AmountIn),
		zap.String("amount_out", quote.AmountOut),
		zap.Int32("tick_before", quote.TickBefore),
		zap.Int32("tick_after", quote.TickAfter),
	)
	return quote, nil
}

// QuotePosition sizes a liquidity position against the pool's current state.
func (s *Service) QuotePosition(ctx context.Context, pool common.Address, tickLower, tickUpper int, amount0, amount1 *big.Int) (model.PositionQuote, error) {
	state, err := s.fetchState(ctx, pool)
	if err != nil {
		return model.PositionQuote{}, err
	}

	quote, err := PositionFromState(state, tickLower, tickUpper, amount0, amount1, s.cfg.Decimals)
	if err != nil {
		s.logger.Warn("position quote failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return model.PositionQuote{}, fmt.Errorf("quote position: %w", err)
	}
	quote.ChainID = s.cfg.ChainID
	quote.PoolAddress = pool.Hex()
	quote.QuotedAt = s.now().UTC().Format(time.RFC3339Nano)

	s.logger.Info("position quoted",
		zap.String("pool", pool.Hex()),
		zap.Int("tick_lower", tickLower),
		zap.Int("tick_upper", tickUpper),
		zap.String("liquidity", quote.Liquidity),
		zap.Bool("in_range", quote.InRange),
	)
	return quote, nil
}

func (s *Service) fetchState(ctx context.Context, pool common.Address) (model.PoolState, error) {
	if s.source == nil {
		return model.PoolState{}, fmt.Errorf("state source is nil")
	}
	var state model.PoolState
	err := chain.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		state, err = s.source.PoolState(ctx, pool)
		if err != nil {
			s.logger.Warn("pool state fetch failed", zap.String("pool", pool.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return model.PoolState{}, fmt.Errorf("fetch pool state: %w", err)
	}
	return state, nil
}
