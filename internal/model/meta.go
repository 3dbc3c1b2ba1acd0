package model

// PoolMeta is the immutable part of a V3 pool read from chain.
type PoolMeta struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

// TokenMeta is ERC20 metadata. Decimals drive human-readable prices; symbol and name
// are best effort and may be empty.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}
