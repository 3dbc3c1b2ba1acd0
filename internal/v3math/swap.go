package v3math

import (
	"fmt"
	"math/big"
)

// SwapStep is the outcome of one swap step at constant liquidity.
type SwapStep struct {
	AmountOut     *big.Int
	SqrtPriceNext *big.Int
	// AmountInUsed is the post-fee input that moved the price; AmountInUsed+FeeAmount is the full input.
	AmountInUsed *big.Int
	FeeAmount    *big.Int
}

var feeDenominator = big.NewInt(FeeDenominator)

// ComputeSwapStep simulates an exact-input swap of amountIn against liquidity at
// sqrtPriceCurrent. It never crosses a tick: liquidity is assumed constant for the whole step.
// The fee is taken from the input before any price movement is computed.
func ComputeSwapStep(amountIn, sqrtPriceCurrent, liquidity *big.Int, feePpm uint32, zeroForOne bool) (SwapStep, error) {
	if isNegativeOrNil(amountIn) {
		return SwapStep{}, fmt.Errorf("%w: amount in %v", ErrInvalidSwapState, amountIn)
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return SwapStep{}, fmt.Errorf("%w: liquidity %v", ErrInvalidSwapState, liquidity)
	}
	if !inSqrtRange(sqrtPriceCurrent) {
		return SwapStep{}, fmt.Errorf("%w: sqrt price %v", ErrInvalidSwapState, sqrtPriceCurrent)
	}
	if feePpm >= FeeDenominator {
		return SwapStep{}, fmt.Errorf("%w: fee %d ppm", ErrInvalidSwapState, feePpm)
	}

	feeAmount := mulDiv(amountIn, big.NewInt(int64(feePpm)), feeDenominator)
	amountInAfterFee := new(big.Int).Sub(amountIn, feeAmount)

	liquidityX96 := new(big.Int).Lsh(liquidity, 96)
	var next, amountOut *big.Int
	if zeroForOne {
		// L*P*2^96 / (L*2^96 + dx*P), rounded up so the output never exceeds the exact curve
		denominator := new(big.Int).Mul(amountInAfterFee, sqrtPriceCurrent)
		denominator.Add(denominator, liquidityX96)
		next = mulDivRoundingUp(liquidityX96, sqrtPriceCurrent, denominator)
		if next.Cmp(sqrtPriceCurrent) > 0 {
			return SwapStep{}, fmt.Errorf("%w: price moved up selling token0", ErrInvalidSwapState)
		}
		if next.Cmp(MinSqrtRatio) < 0 {
			return SwapStep{}, fmt.Errorf("%w: next sqrt price %s below minimum", ErrInvalidSwapState, next)
		}
		amountOut = amount1Delta(next, sqrtPriceCurrent, liquidity)
	} else {
		// P + dy*2^96/L
		next = mulDiv(amountInAfterFee, Q96, liquidity)
		next.Add(next, sqrtPriceCurrent)
		if next.Cmp(sqrtPriceCurrent) < 0 {
			return SwapStep{}, fmt.Errorf("%w: price moved down selling token1", ErrInvalidSwapState)
		}
		if next.Cmp(MaxSqrtRatio) > 0 {
			return SwapStep{}, fmt.Errorf("%w: next sqrt price %s above maximum", ErrInvalidSwapState, next)
		}
		amountOut = amount0Delta(sqrtPriceCurrent, next, liquidity)
	}

	return SwapStep{
		AmountOut:     amountOut,
		SqrtPriceNext: next,
		AmountInUsed:  amountInAfterFee,
		FeeAmount:     feeAmount,
	}, nil
}
