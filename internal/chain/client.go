package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrStateUnavailable reports an eth_call at a block the node has pruned.
var ErrStateUnavailable = errors.New("historical state unavailable, archive node required")

// maxCachedTimestamps bounds the block timestamp cache; the oldest entries go first.
const maxCachedTimestamps = 8192

// Client wraps go-ethereum RPC for the reads pool quoting and sampling need.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	chainIDMu sync.Mutex
	chainID   *big.Int

	tsMu    sync.RWMutex
	tsCache map[uint64]uint64
	tsOrder []uint64
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID, asking the node only once.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.chainIDMu.Lock()
	defer c.chainIDMu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// BlockTimestamp returns the timestamp of block number. Timestamps never change, so
// they are cached.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.tsMu.RLock()
	ts, ok := c.tsCache[number]
	c.tsMu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}

	c.tsMu.Lock()
	c.rememberTimestamp(number, header.Time)
	c.tsMu.Unlock()
	return header.Time, nil
}

func (c *Client) rememberTimestamp(number, ts uint64) {
	if _, ok := c.tsCache[number]; ok {
		return
	}
	if len(c.tsOrder) >= maxCachedTimestamps {
		oldest := c.tsOrder[0]
		c.tsOrder = c.tsOrder[1:]
		delete(c.tsCache, oldest)
	}
	c.tsCache[number] = ts
	c.tsOrder = append(c.tsOrder, number)
}

// CallContract performs an eth_call. A nil blockNumber reads the latest state.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := c.ethClient.CallContract(ctx, msg, blockNumber)
	if err != nil && blockNumber != nil && isPrunedState(err) {
		return nil, fmt.Errorf("%w: block %s: %v", ErrStateUnavailable, blockNumber, err)
	}
	return out, err
}

func isPrunedState(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "missing trie node") ||
		strings.Contains(msg, "header not found") ||
		(strings.Contains(msg, "historical state") && strings.Contains(msg, "not available"))
}
