package sampler

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"fushumaDex/internal/chain"
	"fushumaDex/internal/metrics"
	"fushumaDex/internal/model"
	"fushumaDex/internal/v3math"
)

var (
	testPool   = common.HexToAddress("0x36696169C63e42cd08ce11f5deeBbCeBae652050")
	testToken0 = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	testToken1 = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
)

type fakeChain struct {
	latest uint64
}

func (f *fakeChain) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(56), nil }

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*3, nil
}

type fakePools struct {
	mu sync.Mutex
	// slot0 reports a wrong tick at this height when non-zero.
	skewAt   uint64
	failOnce map[uint64]bool
	calls    int
}

func (f *fakePools) PoolStateAt(_ context.Context, pool common.Address, height uint64) (model.PoolState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOnce[height] {
		delete(f.failOnce, height)
		return model.PoolState{}, errors.New("header not found")
	}
	tick := int(height) - 100
	if pool != testPool {
		tick = -tick
	}
	sqrtPrice, err := v3math.SqrtPriceAtTick(tick)
	if err != nil {
		return model.PoolState{}, err
	}
	reported := tick
	if f.skewAt != 0 && height == f.skewAt {
		reported = tick + 1
	}
	return model.PoolState{
		SqrtPriceX96: sqrtPrice,
		Tick:         reported,
		Liquidity:    big.NewInt(1_000_000),
		Fee:          500,
	}, nil
}

func (f *fakePools) PoolMeta(context.Context, common.Address) (model.PoolMeta, error) {
	return model.PoolMeta{Token0: testToken0.Hex(), Token1: testToken1.Hex(), Fee: 500, TickSpacing: 10}, nil
}

func (f *fakePools) TokenMeta(_ context.Context, token common.Address) (model.TokenMeta, error) {
	return model.TokenMeta{Address: token.Hex(), Decimals: 18, Symbol: "TKN"}, nil
}

type memStorage struct {
	batches [][]model.PoolSnapshot
	pools   []model.Pool
	// failAt rejects the n-th batch (1-based) when non-zero.
	failAt int
}

func (m *memStorage) PutSnapshotBatch(_ context.Context, snapshots []model.PoolSnapshot) error {
	if m.failAt > 0 && len(m.batches)+1 == m.failAt {
		return errors.New("disk full")
	}
	m.batches = append(m.batches, snapshots)
	return nil
}

func (m *memStorage) PutSwapQuote(context.Context, model.SwapQuote) error { return nil }

func (m *memStorage) PutPositionQuote(context.Context, model.PositionQuote) error { return nil }

func (m *memStorage) UpsertPools(_ context.Context, pools []model.Pool) error {
	m.pools = append(m.pools, pools...)
	return nil
}

func (m *memStorage) all() []model.PoolSnapshot {
	var out []model.PoolSnapshot
	for _, batch := range m.batches {
		out = append(out, batch...)
	}
	return out
}

func newTestRunner(cfg RunConfig, pools *fakePools, sink *memStorage) *Runner {
	r := NewRunner(cfg, &fakeChain{latest: 110}, pools, sink, nil)
	r.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestRunnerSamplesHeightsInBatches(t *testing.T) {
	sink := &memStorage{}
	cp := NewNamedCheckpoint(memStateStore{}, "test")
	r := newTestRunner(RunConfig{
		FromBlock:  100,
		ToBlock:    105,
		Step:       2,
		BatchSize:  2,
		Pools:      []common.Address{testPool},
		Checkpoint: cp,
	}, &fakePools{}, sink)

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, sink.batches, 2)

	snaps := sink.all()
	require.Len(t, snaps, 4)
	var heights []uint64
	for _, snap := range snaps {
		heights = append(heights, snap.BlockNumber)
		require.True(t, snap.TickConsistent)
		require.Equal(t, snap.Tick, snap.DerivedTick)
		require.Equal(t, uint64(56), snap.ChainID)
		require.Equal(t, 1_700_000_000+snap.BlockNumber*3, snap.Timestamp)
		require.Equal(t, "2024-05-01T00:00:00Z", snap.SampledAt)
	}
	require.Equal(t, []uint64{100, 102, 104, 105}, heights)
	require.Equal(t, "1", snaps[0].Price)

	last, ok, err := cp.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(105), last)

	require.Len(t, sink.pools, 1)
	require.Equal(t, uint64(100), sink.pools[0].FirstSampledBlock)
	require.Equal(t, uint8(18), sink.pools[0].Decimals0)
	require.Equal(t, int32(10), sink.pools[0].TickSpacing)
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	sink := &memStorage{}
	store := memStateStore{"test": 102}
	r := newTestRunner(RunConfig{
		FromBlock:  100,
		ToBlock:    105,
		Step:       2,
		BatchSize:  10,
		Pools:      []common.Address{testPool},
		Checkpoint: NewNamedCheckpoint(store, "test"),
	}, &fakePools{}, sink)

	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, []uint64{104, 105}, blockNumbers(sink.all()))
	require.Len(t, sink.pools, 1)
	require.Equal(t, uint64(104), sink.pools[0].FirstSampledBlock)
}

func TestRunnerResumeKeepsSampleGrid(t *testing.T) {
	cfg := RunConfig{
		FromBlock: 100,
		ToBlock:   110,
		Step:      5,
		BatchSize: 1,
		Pools:     []common.Address{testPool},
	}

	single := &memStorage{}
	require.NoError(t, newTestRunner(cfg, &fakePools{}, single).Run(context.Background()))
	want := blockNumbers(single.all())
	require.Equal(t, []uint64{100, 105, 110}, want)

	store := memStateStore{}
	cfg.Checkpoint = NewNamedCheckpoint(store, "grid")

	interrupted := &memStorage{failAt: 2}
	require.Error(t, newTestRunner(cfg, &fakePools{}, interrupted).Run(context.Background()))
	require.Equal(t, uint64(100), store["grid"])

	resumed := &memStorage{}
	require.NoError(t, newTestRunner(cfg, &fakePools{}, resumed).Run(context.Background()))

	got := append(blockNumbers(interrupted.all()), blockNumbers(resumed.all())...)
	require.Equal(t, want, got)
}

func TestRunnerResumeReachesOffGridEnd(t *testing.T) {
	sink := &memStorage{}
	r := newTestRunner(RunConfig{
		FromBlock:  100,
		ToBlock:    112,
		Step:       5,
		BatchSize:  10,
		Pools:      []common.Address{testPool},
		Checkpoint: NewNamedCheckpoint(memStateStore{"test": 110}, "test"),
	}, &fakePools{}, sink)

	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, []uint64{112}, blockNumbers(sink.all()))
}

func blockNumbers(snaps []model.PoolSnapshot) []uint64 {
	out := make([]uint64, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.BlockNumber)
	}
	return out
}

func TestRunnerNothingToSample(t *testing.T) {
	sink := &memStorage{}
	r := newTestRunner(RunConfig{
		FromBlock:  100,
		ToBlock:    105,
		Step:       1,
		BatchSize:  10,
		Pools:      []common.Address{testPool},
		Checkpoint: NewNamedCheckpoint(memStateStore{"test": 105}, "test"),
	}, &fakePools{}, sink)

	require.NoError(t, r.Run(context.Background()))
	require.Empty(t, sink.batches)
	require.Empty(t, sink.pools)
}

func TestRunnerFlagsInconsistentTick(t *testing.T) {
	sink := &memStorage{}
	r := newTestRunner(RunConfig{
		FromBlock: 100,
		ToBlock:   102,
		Step:      1,
		BatchSize: 10,
		Pools:     []common.Address{testPool},
	}, &fakePools{skewAt: 101}, sink)

	require.NoError(t, r.Run(context.Background()))
	snaps := sink.all()
	require.Len(t, snaps, 3)
	require.True(t, snaps[0].TickConsistent)
	require.False(t, snaps[1].TickConsistent)
	require.Equal(t, int32(1), snaps[1].DerivedTick)
	require.Equal(t, int32(2), snaps[1].Tick)
	require.True(t, snaps[2].TickConsistent)
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	sink := &memStorage{}
	pools := &fakePools{failOnce: map[uint64]bool{101: true}}
	r := newTestRunner(RunConfig{
		FromBlock: 100,
		ToBlock:   102,
		Step:      1,
		BatchSize: 10,
		Pools:     []common.Address{testPool},
		Retry:     chain.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
	}, pools, sink)

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, sink.all(), 3)
	require.Equal(t, 4, pools.calls)
}

func TestRunnerUsesLatestBlock(t *testing.T) {
	sink := &memStorage{}
	r := newTestRunner(RunConfig{
		FromBlock: 106,
		Step:      2,
		BatchSize: 10,
		Pools:     []common.Address{testPool},
	}, &fakePools{}, sink)

	require.NoError(t, r.Run(context.Background()))
	snaps := sink.all()
	require.Len(t, snaps, 3)
	require.Equal(t, uint64(110), snaps[2].BlockNumber)
}

func TestRunnerValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  RunConfig
	}{
		{name: "zero step", cfg: RunConfig{BatchSize: 1, Pools: []common.Address{testPool}}},
		{name: "zero batch", cfg: RunConfig{Step: 1, Pools: []common.Address{testPool}}},
		{name: "no pools", cfg: RunConfig{Step: 1, BatchSize: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRunner(tc.cfg, &fakePools{}, &memStorage{})
			require.Error(t, r.Run(context.Background()))
		})
	}
}

func TestRunnerSamplesPoolsConcurrently(t *testing.T) {
	other := common.HexToAddress("0x172fcD41E0913e95784454622d1c3724f546f849")
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSampler(reg)
	require.NoError(t, err)

	sink := &memStorage{}
	pools := &fakePools{skewAt: 103}
	r := newTestRunner(RunConfig{
		FromBlock:   101,
		ToBlock:     104,
		Step:        1,
		BatchSize:   2,
		Pools:       []common.Address{testPool, other},
		Concurrency: 2,
		Metrics:     m,
	}, pools, sink)

	require.NoError(t, r.Run(context.Background()))
	snaps := sink.all()
	require.Len(t, snaps, 8)
	for i := 0; i < len(snaps); i += 2 {
		require.Equal(t, testPool.Hex(), snaps[i].PoolAddress)
		require.Equal(t, other.Hex(), snaps[i+1].PoolAddress)
		require.Equal(t, snaps[i].BlockNumber, snaps[i+1].BlockNumber)
		require.Equal(t, -snaps[i].DerivedTick, snaps[i+1].DerivedTick)
	}
	require.Len(t, sink.pools, 2)

	count, err := testutil.GatherAndCount(reg, "quoter_snapshots_total", "quoter_snapshot_tick_inconsistent_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 8.0, gatherValue(t, reg, "quoter_snapshots_total"))
	require.Equal(t, 2.0, gatherValue(t, reg, "quoter_snapshot_tick_inconsistent_total"))
	require.Equal(t, 104.0, gatherValue(t, reg, "quoter_last_sampled_block"))
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		metric := family.GetMetric()[0]
		if metric.GetCounter() != nil {
			return metric.GetCounter().GetValue()
		}
		return metric.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
