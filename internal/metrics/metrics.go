package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Sampler tracks snapshot sampling progress. A nil *Sampler records nothing.
type Sampler struct {
	snapshots        prometheus.Counter
	tickInconsistent prometheus.Counter
	rpcFailures      *prometheus.CounterVec
	lastBlock        prometheus.Gauge
}

func NewSampler(r prometheus.Registerer) (*Sampler, error) {
	m := &Sampler{
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quoter",
			Name:      "snapshots_total",
			Help:      "number of pool snapshots written",
		}),
		tickInconsistent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quoter",
			Name:      "snapshot_tick_inconsistent_total",
			Help:      "number of snapshots whose slot0 tick disagrees with the sqrt price",
		}),
		rpcFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quoter",
			Name:      "rpc_failures_total",
			Help:      "number of failed RPC reads, before retry",
		}, []string{"call"}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quoter",
			Name:      "last_sampled_block",
			Help:      "highest block whose snapshots were stored",
		}),
	}
	for _, c := range []prometheus.Collector{m.snapshots, m.tickInconsistent, m.rpcFailures, m.lastBlock} {
		if err := r.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Sampler) RecordSnapshots(n int) {
	if m == nil {
		return
	}
	m.snapshots.Add(float64(n))
}

func (m *Sampler) RecordTickInconsistent() {
	if m == nil {
		return
	}
	m.tickInconsistent.Inc()
}

func (m *Sampler) RecordRPCFailure(call string) {
	if m == nil {
		return
	}
	m.rpcFailures.WithLabelValues(call).Inc()
}

func (m *Sampler) SetLastBlock(block uint64) {
	if m == nil {
		return
	}
	m.lastBlock.Set(float64(block))
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
