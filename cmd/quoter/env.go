package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"fushumaDex/internal/chain"
	"fushumaDex/internal/config"
	"fushumaDex/internal/dex"
	"fushumaDex/internal/model"
	"fushumaDex/internal/quote"
	"fushumaDex/internal/storage"
	"fushumaDex/internal/storage/postgres"
	"fushumaDex/internal/v3math"
)

// quoteEnv carries what the swap and position commands share.
type quoteEnv struct {
	cfg    config.QuoteConfig
	logger *zap.Logger
	sink   storage.Storage
	pg     *postgres.Store
	client *chain.Client
	reader *dex.StateReader
}

func addQuoteFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.String("pool", "", "pool address")
	flags.String("sqrt-price", "", "offline mode: Q64.96 sqrt price instead of reading the pool")
	flags.String("liquidity", "0", "offline mode: in-range liquidity")
	flags.Uint32("fee", uint32(v3math.FeeMedium), "offline mode: pool fee in hundredths of a bip")
	flags.Int("decimals0", -1, "token0 decimals override, negative reads them from chain")
	flags.Int("decimals1", -1, "token1 decimals override, negative reads them from chain")
	flags.String("out", "", "append quotes to this JSONL file")
	flags.String("pg-dsn", "", "Postgres DSN for quote records")
	flags.Int("max-retries", 3, "maximum retry attempts")
	flags.Duration("retry-backoff", 300*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newQuoteEnv(ctx context.Context, cmd *cobra.Command) (*quoteEnv, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	env := &quoteEnv{cfg: cfg, logger: logger}
	env.sink, env.pg, err = openSinks(ctx, cfg.Out, cfg.PGDSN)
	if err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

func (e *quoteEnv) close() {
	if e.client != nil {
		e.client.Close()
	}
	if e.pg != nil {
		e.pg.Close()
	}
	_ = e.logger.Sync()
}

func (e *quoteEnv) retry() chain.RetryPolicy {
	return chain.RetryPolicy{MaxRetries: e.cfg.MaxRetries, BaseDelay: e.cfg.RetryBackoff}
}

func (e *quoteEnv) connect(ctx context.Context) (common.Address, uint64, error) {
	if e.cfg.RPCURL == "" {
		return common.Address{}, 0, fmt.Errorf("rpc url is required")
	}
	pool, err := dex.ParseAddress(e.cfg.Pool)
	if err != nil {
		return common.Address{}, 0, err
	}

	e.client, err = chain.NewClient(ctx, e.cfg.RPCURL)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("connect rpc: %w", err)
	}
	e.reader = dex.NewStateReader(e.client, e.logger)

	chainID, err := e.client.GetChainID(ctx)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return common.Address{}, 0, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	return pool, chainID.Uint64(), nil
}

// resolvePool reads pool metadata and token decimals, honouring decimal overrides.
func (e *quoteEnv) resolvePool(ctx context.Context, pool common.Address) (model.PoolMeta, quote.Decimals, error) {
	var meta model.PoolMeta
	err := chain.WithRetry(ctx, e.retry(), func(ctx context.Context) error {
		var err error
		meta, err = e.reader.PoolMeta(ctx, pool)
		return err
	})
	if err != nil {
		return model.PoolMeta{}, quote.Decimals{}, fmt.Errorf("pool meta: %w", err)
	}

	dec0, err := e.decimals(ctx, e.cfg.Decimals0, meta.Token0)
	if err != nil {
		return model.PoolMeta{}, quote.Decimals{}, fmt.Errorf("token0 decimals: %w", err)
	}
	dec1, err := e.decimals(ctx, e.cfg.Decimals1, meta.Token1)
	if err != nil {
		return model.PoolMeta{}, quote.Decimals{}, fmt.Errorf("token1 decimals: %w", err)
	}
	return meta, quote.Decimals{Token0: dec0, Token1: dec1}, nil
}

func (e *quoteEnv) decimals(ctx context.Context, override int, token string) (uint8, error) {
	if override >= 0 {
		return uint8(override), nil
	}
	var meta model.TokenMeta
	err := chain.WithRetry(ctx, e.retry(), func(ctx context.Context) error {
		var err error
		meta, err = e.reader.TokenMeta(ctx, common.HexToAddress(token))
		return err
	})
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// offlineState builds a pool state from flags when --sqrt-price is given.
func offlineState(flags *pflag.FlagSet) (model.PoolState, bool, error) {
	if !flags.Changed("sqrt-price") {
		return model.PoolState{}, false, nil
	}
	raw, _ := flags.GetString("sqrt-price")
	sqrtPrice, err := parseBigInt("sqrt-price", raw)
	if err != nil {
		return model.PoolState{}, true, err
	}
	tick, err := v3math.TickAtSqrtPrice(sqrtPrice)
	if err != nil {
		return model.PoolState{}, true, err
	}
	rawLiquidity, _ := flags.GetString("liquidity")
	liquidity, err := parseAmount("liquidity", rawLiquidity)
	if err != nil {
		return model.PoolState{}, true, err
	}
	fee, _ := flags.GetUint32("fee")
	return model.PoolState{
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		Liquidity:    liquidity,
		Fee:          fee,
	}, true, nil
}

// offlineDecimals treats unset overrides as zero, i.e. raw token units.
func offlineDecimals(cfg config.QuoteConfig) quote.Decimals {
	dec := quote.Decimals{}
	if cfg.Decimals0 > 0 {
		dec.Token0 = uint8(cfg.Decimals0)
	}
	if cfg.Decimals1 > 0 {
		dec.Token1 = uint8(cfg.Decimals1)
	}
	return dec
}

func openSinks(ctx context.Context, out, dsn string) (storage.Storage, *postgres.Store, error) {
	var sinks storage.Multi
	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	var pg *postgres.Store
	if dsn != "" {
		var err error
		pg, err = postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		sinks = append(sinks, pg)
	}
	if len(sinks) == 0 {
		return nil, nil, nil
	}
	return sinks, pg, nil
}

func quotedAt() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func flagBigInt(flags *pflag.FlagSet, name string) (*big.Int, error) {
	raw, _ := flags.GetString(name)
	return parseAmount(name, raw)
}
