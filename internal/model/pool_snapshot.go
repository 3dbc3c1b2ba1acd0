package model

// PoolSnapshot is pool state observed at a block height.
type PoolSnapshot struct {
	ChainID        uint64 `json:"chain_id"`
	PoolAddress    string `json:"pool_address"`
	BlockNumber    uint64 `json:"block_number"`
	Timestamp      uint64 `json:"timestamp"`
	SqrtPriceX96   string `json:"sqrt_price_x96"`
	Tick           int32  `json:"tick"`
	DerivedTick    int32  `json:"derived_tick"`
	TickConsistent bool   `json:"tick_consistent"`
	Liquidity      string `json:"liquidity"`
	Fee            uint32 `json:"fee"`
	Price          string `json:"price"`
	SampledAt      string `json:"sampled_at"`
}
