package quote

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"fushumaDex/internal/model"
	"fushumaDex/internal/v3math"
)

// Decimals are the token decimals used for human-readable prices.
type Decimals struct {
	Token0 uint8
	Token1 uint8
}

// SwapFromState quotes one swap step against state. The pool fee is charged on input.
func SwapFromState(state model.PoolState, amountIn *big.Int, zeroForOne bool, dec Decimals) (model.SwapQuote, error) {
	step, err := v3math.ComputeSwapStep(amountIn, state.SqrtPriceX96, state.Liquidity, state.Fee, zeroForOne)
	if err != nil {
		return model.SwapQuote{}, err
	}
	tickAfter, err := v3math.TickAtSqrtPrice(step.SqrtPriceNext)
	if err != nil {
		return model.SwapQuote{}, fmt.Errorf("tick after swap: %w", err)
	}

	before, err := v3math.SqrtPriceToPrice(state.SqrtPriceX96, dec.Token0, dec.Token1)
	if err != nil {
		return model.SwapQuote{}, err
	}
	after, err := v3math.SqrtPriceToPrice(step.SqrtPriceNext, dec.Token0, dec.Token1)
	if err != nil {
		return model.SwapQuote{}, err
	}

	return model.SwapQuote{
		ZeroForOne:      zeroForOne,
		AmountIn:        amountIn.String(),
		FeePpm:          state.Fee,
		FeeAmount:       step.FeeAmount.String(),
		AmountInUsed:    step.AmountInUsed.String(),
		AmountOut:       step.AmountOut.String(),
		SqrtPriceBefore: state.SqrtPriceX96.String(),
		SqrtPriceAfter:  step.SqrtPriceNext.String(),
		TickBefore:      int32(state.Tick),
		TickAfter:       int32(tickAfter),
		PriceBefore:     before.String(),
		PriceAfter:      after.String(),
		PriceImpact:     PriceImpact(before, after).String(),
	}, nil
}

// PriceImpact returns |after - before| / before.
func PriceImpact(before, after decimal.Decimal) decimal.Decimal {
	if before.IsZero() {
		return decimal.Zero
	}
	return after.Sub(before).Abs().DivRound(before, 18)
}

// PositionFromState sizes a position in [tickLower, tickUpper] from the desired amounts.
func PositionFromState(state model.PoolState, tickLower, tickUpper int, amount0, amount1 *big.Int, dec Decimals) (model.PositionQuote, error) {
	priceRange, err := v3math.NewPriceRange(tickLower, tickUpper, v3math.FeeTier(state.Fee))
	if err != nil {
		return model.PositionQuote{}, err
	}
	sqrtLower, sqrtUpper, err := priceRange.SqrtPrices()
	if err != nil {
		return model.PositionQuote{}, err
	}

	liquidity, err := v3math.LiquidityForAmounts(state.SqrtPriceX96, sqrtLower, sqrtUpper, amount0, amount1)
	if err != nil {
		return model.PositionQuote{}, err
	}
	used0, used1, err := v3math.AmountsForLiquidity(state.SqrtPriceX96, sqrtLower, sqrtUpper, liquidity)
	if err != nil {
		return model.PositionQuote{}, err
	}

	priceLower, err := v3math.SqrtPriceToPrice(sqrtLower, dec.Token0, dec.Token1)
	if err != nil {
		return model.PositionQuote{}, err
	}
	priceUpper, err := v3math.SqrtPriceToPrice(sqrtUpper, dec.Token0, dec.Token1)
	if err != nil {
		return model.PositionQuote{}, err
	}

	inRange := state.SqrtPriceX96.Cmp(sqrtLower) > 0 && state.SqrtPriceX96.Cmp(sqrtUpper) < 0

	return model.PositionQuote{
		TickLower:      int32(tickLower),
		TickUpper:      int32(tickUpper),
		TickCurrent:    int32(state.Tick),
		SqrtPriceX96:   state.SqrtPriceX96.String(),
		Amount0Desired: amount0.String(),
		Amount1Desired: amount1.String(),
		Liquidity:      liquidity.String(),
		Amount0:        used0.String(),
		Amount1:        used1.String(),
		PriceLower:     priceLower.String(),
		PriceUpper:     priceUpper.String(),
		InRange:        inRange,
	}, nil
}
