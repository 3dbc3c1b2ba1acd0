package v3math

import (
	"errors"
	"math/big"
	"testing"

	"pgregory.net/rapid"
)

func TestTickRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tick := rapid.IntRange(MinTick, MaxTick).Draw(t, "tick")
		sqrtPrice, err := SqrtPriceAtTick(tick)
		if err != nil {
			t.Fatalf("sqrt at %d: %v", tick, err)
		}
		if !inSqrtRange(sqrtPrice) {
			t.Fatalf("tick %d: sqrt price %s outside bounds", tick, sqrtPrice)
		}
		got, err := TickAtSqrtPrice(sqrtPrice)
		if err != nil {
			t.Fatalf("tick at %s: %v", sqrtPrice, err)
		}
		if got != tick {
			t.Fatalf("round trip: %d -> %s -> %d", tick, sqrtPrice, got)
		}
	})
}

func TestUsableTickRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fee := rapid.SampledFrom([]FeeTier{FeeLowest, FeeLow, FeeMedium, FeeHigh}).Draw(t, "fee")
		spacing := TickSpacings[fee]
		n := rapid.IntRange(MinUsableTick(spacing)/spacing, MaxUsableTick(spacing)/spacing).Draw(t, "n")
		tick := n * spacing
		if !IsUsableTick(tick, spacing) {
			t.Fatalf("tick %d should be usable for spacing %d", tick, spacing)
		}
		sqrtPrice, err := SqrtPriceAtTick(tick)
		if err != nil {
			t.Fatalf("sqrt at %d: %v", tick, err)
		}
		if got, _ := TickAtSqrtPrice(sqrtPrice); got != tick {
			t.Fatalf("round trip: %d -> %d", tick, got)
		}
	})
}

func TestSqrtPriceMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		t1 := rapid.IntRange(MinTick, MaxTick-1).Draw(t, "t1")
		t2 := rapid.IntRange(t1+1, MaxTick).Draw(t, "t2")
		p1, err := SqrtPriceAtTick(t1)
		if err != nil {
			t.Fatalf("sqrt at %d: %v", t1, err)
		}
		p2, err := SqrtPriceAtTick(t2)
		if err != nil {
			t.Fatalf("sqrt at %d: %v", t2, err)
		}
		if p1.Cmp(p2) >= 0 {
			t.Fatalf("not increasing: P(%d)=%s >= P(%d)=%s", t1, p1, t2, p2)
		}
	})
}

func TestLiquidityConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lower := rapid.IntRange(-300000, 299000).Draw(t, "lower")
		upper := rapid.IntRange(lower+2, 300000).Draw(t, "upper")
		current := rapid.IntRange(lower+1, upper-1).Draw(t, "current")
		amount0 := new(big.Int).SetUint64(rapid.Uint64().Draw(t, "amount0"))
		amount1 := new(big.Int).SetUint64(rapid.Uint64().Draw(t, "amount1"))

		sqrtA, _ := SqrtPriceAtTick(lower)
		sqrtB, _ := SqrtPriceAtTick(upper)
		sqrtCurrent, _ := SqrtPriceAtTick(current)

		liquidity, err := LiquidityForAmounts(sqrtCurrent, sqrtA, sqrtB, amount0, amount1)
		if err != nil {
			t.Fatalf("liquidity: %v", err)
		}
		used0, used1, err := AmountsForLiquidity(sqrtCurrent, sqrtA, sqrtB, liquidity)
		if err != nil {
			t.Fatalf("amounts: %v", err)
		}
		if used0.Cmp(amount0) > 0 {
			t.Fatalf("over-allocated token0: %s > %s", used0, amount0)
		}
		if used1.Cmp(amount1) > 0 {
			t.Fatalf("over-allocated token1: %s > %s", used1, amount1)
		}
	})
}

func TestSwapDirectionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tick := rapid.IntRange(-400000, 400000).Draw(t, "tick")
		liquidity := new(big.Int).SetUint64(rapid.Uint64Range(1, 1<<62).Draw(t, "liquidity"))
		amountIn := new(big.Int).SetUint64(rapid.Uint64().Draw(t, "amountIn"))
		fee := rapid.SampledFrom([]uint32{100, 500, 3000, 10000}).Draw(t, "fee")
		zeroForOne := rapid.Bool().Draw(t, "zeroForOne")

		sqrtPrice, _ := SqrtPriceAtTick(tick)
		step, err := ComputeSwapStep(amountIn, sqrtPrice, liquidity, fee, zeroForOne)
		if errors.Is(err, ErrInvalidSwapState) {
			// the step would leave the price domain
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if zeroForOne && step.SqrtPriceNext.Cmp(sqrtPrice) > 0 {
			t.Fatalf("selling token0 raised the price: %s -> %s", sqrtPrice, step.SqrtPriceNext)
		}
		if !zeroForOne && step.SqrtPriceNext.Cmp(sqrtPrice) < 0 {
			t.Fatalf("selling token1 lowered the price: %s -> %s", sqrtPrice, step.SqrtPriceNext)
		}
		total := new(big.Int).Add(step.AmountInUsed, step.FeeAmount)
		if total.Cmp(amountIn) != 0 {
			t.Fatalf("input not conserved: %s + %s != %s", step.AmountInUsed, step.FeeAmount, amountIn)
		}
	})
}
