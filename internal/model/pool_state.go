package model

import "math/big"

// PoolState is the live pool state a quote is computed from. It is read fresh for
// every quote and never mutated.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int
	Liquidity    *big.Int
	Fee          uint32
}
