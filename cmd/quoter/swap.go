package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fushumaDex/internal/model"
	"fushumaDex/internal/quote"
)

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a single-step exact-input swap",
		RunE:  runSwap,
	}

	addQuoteFlags(cmd.Flags())
	cmd.Flags().String("amount-in", "", "exact input amount in raw token units")
	cmd.Flags().Bool("zero-for-one", false, "sell token0 for token1")
	return cmd
}

func runSwap(cmd *cobra.Command, _ []string) error {
	amountIn, err := flagBigInt(cmd.Flags(), "amount-in")
	if err != nil {
		return err
	}
	zeroForOne, _ := cmd.Flags().GetBool("zero-for-one")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newQuoteEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.close()

	var q model.SwapQuote
	state, offline, err := offlineState(cmd.Flags())
	if err != nil {
		return err
	}
	if offline {
		q, err = quote.SwapFromState(state, amountIn, zeroForOne, offlineDecimals(env.cfg))
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
		_, dec, err := env.resolvePool(ctx, pool)
		if err != nil {
			return err
		}
		svc := quote.NewService(quote.Config{ChainID: chainID, Decimals: dec, Retry: env.retry()}, env.reader, env.logger)
		if q, err = svc.QuoteSwap(ctx, pool, amountIn, zeroForOne); err != nil {
			return err
		}
	}

	if env.sink != nil {
		if err := env.sink.PutSwapQuote(ctx, q); err != nil {
			return fmt.Errorf("store swap quote: %w", err)
		}
		env.logger.Debug("swap quote stored", zap.String("out", env.cfg.Out), zap.String("pg_dsn", redactDSN(env.cfg.PGDSN)))
	}
	return printJSON(cmd.OutOrStdout(), q)
}
