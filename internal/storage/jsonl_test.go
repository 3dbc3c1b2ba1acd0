package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fushumaDex/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestJsonlStorageAppendsSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshots.jsonl")
	store := NewJsonlStorage(path)
	ctx := context.Background()

	require.NoError(t, store.PutSnapshotBatch(ctx, []model.PoolSnapshot{
		{ChainID: 56, BlockNumber: 100, Tick: -5, SqrtPriceX96: "79228162514264337593543950336"},
		{ChainID: 56, BlockNumber: 110, Tick: -4},
	}))
	require.NoError(t, store.PutSnapshotBatch(ctx, []model.PoolSnapshot{{ChainID: 56, BlockNumber: 120}}))

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	var first model.PoolSnapshot
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, uint64(100), first.BlockNumber)
	require.Equal(t, int32(-5), first.Tick)
	require.Equal(t, "79228162514264337593543950336", first.SqrtPriceX96)
}

func TestJsonlStorageEmptyBatchCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	require.NoError(t, NewJsonlStorage(path).PutSnapshotBatch(context.Background(), nil))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestJsonlStorageQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.jsonl")
	store := NewJsonlStorage(path)
	ctx := context.Background()

	require.NoError(t, store.PutSwapQuote(ctx, model.SwapQuote{AmountIn: "1000", ZeroForOne: true}))
	require.NoError(t, store.PutPositionQuote(ctx, model.PositionQuote{TickLower: -60, TickUpper: 60}))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"amount_in":"1000"`)
	require.Contains(t, lines[1], `"tick_lower":-60`)
}
