package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"fushumaDex/internal/model"
	"fushumaDex/internal/quote"
	"fushumaDex/internal/v3math"
)

func newPositionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Size a liquidity position for a tick range",
		RunE:  runPosition,
	}

	addQuoteFlags(cmd.Flags())
	cmd.Flags().Int("tick-lower", 0, "lower tick of the range")
	cmd.Flags().Int("tick-upper", 0, "upper tick of the range")
	cmd.Flags().String("price-lower", "", "lower price, snapped to the nearest usable tick")
	cmd.Flags().String("price-upper", "", "upper price, snapped to the nearest usable tick")
	cmd.Flags().String("amount0", "0", "desired token0 amount in raw units")
	cmd.Flags().String("amount1", "0", "desired token1 amount in raw units")
	return cmd
}

func runPosition(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	amount0, err := flagBigInt(flags, "amount0")
	if err != nil {
		return err
	}
	amount1, err := flagBigInt(flags, "amount1")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newQuoteEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.close()

	var q model.PositionQuote
	state, offline, err := offlineState(flags)
	if err != nil {
		return err
	}
	if offline {
		dec := offlineDecimals(env.cfg)
		lower, upper, err := rangeTicks(flags, v3math.FeeTier(state.Fee), dec)
		if err != nil {
			return err
		}
		q, err = quote.PositionFromState(state, lower, upper, amount0, amount1, dec)
		if err != nil {
			return err
		}
		q.PoolAddress = env.cfg.Pool
		q.QuotedAt = quotedAt()
	} else {
		pool, chainID, err := env.connect(ctx)
		if err != nil {
			return err
		}
		meta, dec, err := env.resolvePool(ctx, pool)
		if err != nil {
			return err
		}
		lower, upper, err := rangeTicks(flags, v3math.FeeTier(meta.Fee), dec)
		if err != nil {
			return err
		}
		svc := quote.NewService(quote.Config{ChainID: chainID, Decimals: dec, Retry: env.retry()}, env.reader, env.logger)
		if q, err = svc.QuotePosition(ctx, pool, lower, upper, amount0, amount1); err != nil {
			return err
		}
	}

	if env.sink != nil {
		if err := env.sink.PutPositionQuote(ctx, q); err != nil {
			return fmt.Errorf("store position quote: %w", err)
		}
		env.logger.Debug("position quote stored", zap.String("out", env.cfg.Out), zap.String("pg_dsn", redactDSN(env.cfg.PGDSN)))
	}
	return printJSON(cmd.OutOrStdout(), q)
}

// rangeTicks reads the range either as ticks or as prices snapped to usable ticks.
func rangeTicks(flags *pflag.FlagSet, fee v3math.FeeTier, dec quote.Decimals) (int, int, error) {
	lower, err := boundTick(flags, "tick-lower", "price-lower", fee, dec)
	if err != nil {
		return 0, 0, err
	}
	upper, err := boundTick(flags, "tick-upper", "price-upper", fee, dec)
	if err != nil {
		return 0, 0, err
	}
	return lower, upper, nil
}

func boundTick(flags *pflag.FlagSet, tickFlag, priceFlag string, fee v3math.FeeTier, dec quote.Decimals) (int, error) {
	tickSet, priceSet := flags.Changed(tickFlag), flags.Changed(priceFlag)
	switch {
	case tickSet && priceSet:
		return 0, fmt.Errorf("--%s and --%s are mutually exclusive", tickFlag, priceFlag)
	case tickSet:
		return flags.GetInt(tickFlag)
	case priceSet:
		raw, _ := flags.GetString(priceFlag)
		return snapPrice(raw, fee, dec)
	default:
		return 0, fmt.Errorf("one of --%s or --%s is required", tickFlag, priceFlag)
	}
}

func snapPrice(raw string, fee v3math.FeeTier, dec quote.Decimals) (int, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	spacing, err := v3math.TickSpacing(fee)
	if err != nil {
		return 0, err
	}
	tick, err := v3math.PriceToTick(price, dec.Token0, dec.Token1)
	if err != nil {
		return 0, err
	}
	return v3math.NearestUsableTick(tick, spacing)
}
