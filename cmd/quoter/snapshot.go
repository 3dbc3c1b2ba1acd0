package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fushumaDex/internal/chain"
	"fushumaDex/internal/config"
	"fushumaDex/internal/dex"
	"fushumaDex/internal/metrics"
	"fushumaDex/internal/model"
	"fushumaDex/internal/sampler"
	"fushumaDex/internal/storage"
	"fushumaDex/internal/storage/postgres"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Sample pool state at evenly spaced block heights",
		RunE:  runSnapshot,
	}

	cmd.Flags().String("rpc", "", "archive RPC URL")
	cmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	cmd.Flags().Uint64("from", 0, "first block (inclusive)")
	cmd.Flags().Uint64("to", 0, "last block (inclusive), 0 means latest")
	cmd.Flags().Uint64("step", 100, "blocks between samples")
	cmd.Flags().Int("batch-size", 50, "heights per storage batch")
	cmd.Flags().String("out", "./data/snapshots.jsonl", "output JSONL path, empty disables")
	cmd.Flags().String("checkpoint", "./data/snapshot_checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; also holds the checkpoint when set")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Int("concurrency", 4, "parallel pool reads per block height")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	return cmd
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	pools, err := dex.ParseAddresses(cfg.Pools)
	if err != nil {
		return err
	}
	if len(pools) == 0 {
		return fmt.Errorf("pool list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	sink, pg, err := openSinks(ctx, cfg.Out, cfg.PGDSN)
	if err != nil {
		return err
	}
	if pg != nil {
		defer pg.Close()
	}
	if sink == nil {
		return fmt.Errorf("an --out path or --pg-dsn is required")
	}

	var samplerMetrics *metrics.Sampler
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		if samplerMetrics, err = metrics.NewSampler(registry); err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	runner := sampler.NewRunner(sampler.RunConfig{
		FromBlock:   cfg.FromBlock,
		ToBlock:     cfg.ToBlock,
		Step:        cfg.Step,
		BatchSize:   cfg.BatchSize,
		Pools:       pools,
		Checkpoint:  checkpointFor(cfg, pg),
		Retry:       chain.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff},
		Concurrency: cfg.Concurrency,
		Metrics:     samplerMetrics,
	}, chainClient, dex.NewStateReader(chainClient, logger), poolAware(sink, pg), logger)

	logger.Info("snapshot start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("step", cfg.Step),
		zap.Int("pools", len(pools)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	return runner.Run(ctx)
}

func checkpointFor(cfg config.SnapshotConfig, pg *postgres.Store) sampler.Checkpointer {
	if !cfg.CheckpointEnabled {
		return nil
	}
	if pg != nil {
		return sampler.NewNamedCheckpoint(pg, "snapshot:"+strings.ToLower(strings.Join(cfg.Pools, ",")))
	}
	return sampler.NewFileCheckpoint(cfg.Checkpoint)
}

// pooledSink exposes pool upserts on a fan-out sink so the sampler records pool metadata.
type pooledSink struct {
	storage.Storage
	pg *postgres.Store
}

func (s pooledSink) UpsertPools(ctx context.Context, pools []model.Pool) error {
	return s.pg.UpsertPools(ctx, pools)
}

func poolAware(sink storage.Storage, pg *postgres.Store) storage.Storage {
	if pg == nil {
		return sink
	}
	return pooledSink{Storage: sink, pg: pg}
}
