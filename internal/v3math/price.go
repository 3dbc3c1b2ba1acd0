package v3math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept when dividing prices.
const PriceScale int32 = 48

// SqrtPriceToPrice converts a Q64.96 sqrt price into a token1-per-token0 price
// adjusted for token decimals.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: sqrt price %v", ErrInvalidPrice, sqrtPriceX96)
	}
	ratioX192 := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	raw := decimal.NewFromBigInt(ratioX192, 0).DivRound(decimal.NewFromBigInt(Q192, 0), PriceScale)
	return raw.Shift(int32(decimals0) - int32(decimals1)), nil
}

// TickToPrice returns the decimal-adjusted price at a tick.
func TickToPrice(tick int, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	sqrtPrice, err := SqrtPriceAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return SqrtPriceToPrice(sqrtPrice, decimals0, decimals1)
}

// PriceToSqrtPrice converts a decimal-adjusted price back to Q64.96, truncating.
func PriceToSqrtPrice(price decimal.Decimal, decimals0, decimals1 uint8) (*big.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	raw := price.Shift(int32(decimals1) - int32(decimals0)).Rat()
	scaled := new(big.Int).Mul(raw.Num(), Q192)
	scaled.Quo(scaled, raw.Denom())
	return scaled.Sqrt(scaled), nil
}

// PriceToTick returns the greatest tick whose price does not exceed price.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 uint8) (int, error) {
	sqrtPrice, err := PriceToSqrtPrice(price, decimals0, decimals1)
	if err != nil {
		return 0, err
	}
	tick, err := TickAtSqrtPrice(sqrtPrice)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidPrice, price, err)
	}
	return tick, nil
}
