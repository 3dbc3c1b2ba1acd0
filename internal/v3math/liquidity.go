package v3math

import (
	"fmt"
	"math/big"
)

// All functions here divide with truncation so a caller never provisions more than it can back.

func checkRange(sqrtA, sqrtB *big.Int) (*big.Int, *big.Int, error) {
	if sqrtA == nil || sqrtB == nil || sqrtA.Sign() <= 0 || sqrtB.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: range bound must be positive", ErrSqrtPriceOutOfRange)
	}
	lower, upper := sortRatios(sqrtA, sqrtB)
	if lower.Cmp(upper) == 0 {
		return nil, nil, fmt.Errorf("%w: both bounds are %s", ErrDegenerateRange, lower)
	}
	return lower, upper, nil
}

// Amount0ForLiquidity returns liquidity * 2^96 * (sqrtB - sqrtA) / sqrtB / sqrtA.
// The bounds may be passed in either order.
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) (*big.Int, error) {
	lower, upper, err := checkRange(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if isNegativeOrNil(liquidity) {
		return nil, fmt.Errorf("%w: liquidity %v", ErrInvalidAmount, liquidity)
	}
	return amount0Delta(lower, upper, liquidity), nil
}

// Amount1ForLiquidity returns liquidity * (sqrtB - sqrtA) / 2^96.
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) (*big.Int, error) {
	lower, upper, err := checkRange(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if isNegativeOrNil(liquidity) {
		return nil, fmt.Errorf("%w: liquidity %v", ErrInvalidAmount, liquidity)
	}
	return amount1Delta(lower, upper, liquidity), nil
}

// LiquidityForAmount0 is the inverse of Amount0ForLiquidity.
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) (*big.Int, error) {
	lower, upper, err := checkRange(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if isNegativeOrNil(amount0) {
		return nil, fmt.Errorf("%w: amount0 %v", ErrInvalidAmount, amount0)
	}
	return liquidity0(lower, upper, amount0), nil
}

// LiquidityForAmount1 is the inverse of Amount1ForLiquidity.
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) (*big.Int, error) {
	lower, upper, err := checkRange(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if isNegativeOrNil(amount1) {
		return nil, fmt.Errorf("%w: amount1 %v", ErrInvalidAmount, amount1)
	}
	return liquidity1(lower, upper, amount1), nil
}

// LiquidityForAmounts returns the largest liquidity the two amounts can back for the
// range [sqrtA, sqrtB] at the current price.
func LiquidityForAmounts(sqrtCurrent, sqrtA, sqrtB, amount0, amount1 *big.Int) (*big.Int, error) {
	lower, upper, err := checkRange(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if sqrtCurrent == nil || sqrtCurrent.Sign() <= 0 {
		return nil, fmt.Errorf("%w: current %v", ErrSqrtPriceOutOfRange, sqrtCurrent)
	}
	if isNegativeOrNil(amount0) || isNegativeOrNil(amount1) {
		return nil, fmt.Errorf("%w: amount0 %v amount1 %v", ErrInvalidAmount, amount0, amount1)
	}

	switch {
	case sqrtCurrent.Cmp(lower) <= 0:
		return liquidity0(lower, upper, amount0), nil
	case sqrtCurrent.Cmp(upper) < 0:
		// binding side wins
		l0 := liquidity0(sqrtCurrent, upper, amount0)
		l1 := liquidity1(lower, sqrtCurrent, amount1)
		return minBig(l0, l1), nil
	default:
		return liquidity1(lower, upper, amount1), nil
	}
}

// AmountsForLiquidity returns the token amounts a position of the given liquidity
// holds at the current price.
func AmountsForLiquidity(sqrtCurrent, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int, error) {
	lower, upper, err := checkRange(sqrtA, sqrtB)
	if err != nil {
		return nil, nil, err
	}
	if sqrtCurrent == nil || sqrtCurrent.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: current %v", ErrSqrtPriceOutOfRange, sqrtCurrent)
	}
	if isNegativeOrNil(liquidity) {
		return nil, nil, fmt.Errorf("%w: liquidity %v", ErrInvalidAmount, liquidity)
	}

	switch {
	case sqrtCurrent.Cmp(lower) <= 0:
		return amount0Delta(lower, upper, liquidity), new(big.Int), nil
	case sqrtCurrent.Cmp(upper) < 0:
		return amount0Delta(sqrtCurrent, upper, liquidity), amount1Delta(lower, sqrtCurrent, liquidity), nil
	default:
		return new(big.Int), amount1Delta(lower, upper, liquidity), nil
	}
}

func amount0Delta(lower, upper, liquidity *big.Int) *big.Int {
	numerator := new(big.Int).Lsh(liquidity, 96)
	out := mulDiv(numerator, new(big.Int).Sub(upper, lower), upper)
	return out.Quo(out, lower)
}

func amount1Delta(lower, upper, liquidity *big.Int) *big.Int {
	return mulDiv(liquidity, new(big.Int).Sub(upper, lower), Q96)
}

func liquidity0(lower, upper, amount0 *big.Int) *big.Int {
	intermediate := mulDiv(lower, upper, Q96)
	return mulDiv(amount0, intermediate, new(big.Int).Sub(upper, lower))
}

func liquidity1(lower, upper, amount1 *big.Int) *big.Int {
	return mulDiv(amount1, Q96, new(big.Int).Sub(upper, lower))
}
