package model

// Pool represents a V3 pool metadata record for storage.
type Pool struct {
	ChainID           uint64 `json:"chain_id"`
	Address           string `json:"address"`
	Token0            string `json:"token0"`
	Token1            string `json:"token1"`
	Decimals0         uint8  `json:"decimals0"`
	Decimals1         uint8  `json:"decimals1"`
	Fee               uint32 `json:"fee"`
	TickSpacing       int32  `json:"tick_spacing"`
	FirstSampledBlock uint64 `json:"first_sampled_block"`
}
