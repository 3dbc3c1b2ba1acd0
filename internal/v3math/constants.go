package v3math

import "math/big"

const (
	// MinTick is the lowest tick any pool can use.
	MinTick = -887272
	// MaxTick is the highest tick any pool can use.
	MaxTick = -MinTick

	// FeeDenominator is the fee unit: fees are expressed in hundredths of a bip (parts per million).
	FeeDenominator = 1_000_000
)

var (
	Q32  = new(big.Int).Lsh(big.NewInt(1), 32)
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	// MinSqrtRatio is SqrtPriceAtTick(MinTick).
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is SqrtPriceAtTick(MaxTick).
	MaxSqrtRatio = mustParseDecimal("1461446703485210103287273052203988822378723970342")
)

func mustParseDecimal(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("v3math: bad decimal constant " + s)
	}
	return v
}

func mustParseHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("v3math: bad hex constant " + s)
	}
	return v
}
