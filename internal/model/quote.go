package model

// SwapQuote is a single-step swap simulation against a pool state.
type SwapQuote struct {
	ChainID         uint64 `json:"chain_id"`
	PoolAddress     string `json:"pool_address"`
	ZeroForOne      bool   `json:"zero_for_one"`
	AmountIn        string `json:"amount_in"`
	FeePpm          uint32 `json:"fee_ppm"`
	FeeAmount       string `json:"fee_amount"`
	AmountInUsed    string `json:"amount_in_used"`
	AmountOut       string `json:"amount_out"`
	SqrtPriceBefore string `json:"sqrt_price_before"`
	SqrtPriceAfter  string `json:"sqrt_price_after"`
	TickBefore      int32  `json:"tick_before"`
	TickAfter       int32  `json:"tick_after"`
	PriceBefore     string `json:"price_before"`
	PriceAfter      string `json:"price_after"`
	PriceImpact     string `json:"price_impact"`
	QuotedAt        string `json:"quoted_at"`
}

// PositionQuote sizes a liquidity position for a tick range.
type PositionQuote struct {
	ChainID        uint64 `json:"chain_id"`
	PoolAddress    string `json:"pool_address"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	TickCurrent    int32  `json:"tick_current"`
	SqrtPriceX96   string `json:"sqrt_price_x96"`
	Amount0Desired string `json:"amount0_desired"`
	Amount1Desired string `json:"amount1_desired"`
	Liquidity      string `json:"liquidity"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`
	PriceLower     string `json:"price_lower"`
	PriceUpper     string `json:"price_upper"`
	InRange        bool   `json:"in_range"`
	QuotedAt       string `json:"quoted_at"`
}
