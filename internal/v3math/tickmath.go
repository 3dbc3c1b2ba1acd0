package v3math

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// tickRatioFactors[k] is sqrt(1.0001^-(2^(k+1))) in UQ128.128, applied when bit k+1 of |tick| is set.
var tickRatioFactors = mustUint256Table(
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
)

var (
	oddTickRatio  = mustUint256("fffcb933bd6fad37aa2d162d1a594001")
	evenTickRatio = mustUint256("100000000000000000000000000000000")
	maxUint256    = mustUint256("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	lowMask32     = uint256.NewInt(0xffffffff)

	// log2(sqrt(1.0001)) in Q64 and the error bounds used to bracket the tick.
	logSqrt10001Factor = mustParseHex("3627a301d71055774c85")
	tickLowOffset      = mustParseHex("28f6481ab7f045a5af012a19d003aaa")
	tickHighOffset     = mustParseHex("db2df09e81959a81455e260799a0632f")
)

// SqrtPriceAtTick returns sqrt(1.0001^tick) as a Q64.96 value.
func SqrtPriceAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(uint256.Int)
	if absTick&0x1 != 0 {
		ratio.Set(oddTickRatio)
	} else {
		ratio.Set(evenTickRatio)
	}
	for k, factor := range tickRatioFactors {
		if absTick&(1<<(k+1)) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the result is never below the true price.
	remainder := new(uint256.Int).And(ratio, lowMask32)
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}

	return ratio.ToBig(), nil
}

// TickAtSqrtPrice returns the greatest tick t with SqrtPriceAtTick(t) <= sqrtPriceX96.
func TickAtSqrtPrice(sqrtPriceX96 *big.Int) (int, error) {
	if !inSqrtRange(sqrtPriceX96) {
		return 0, fmt.Errorf("%w: %v", ErrSqrtPriceOutOfRange, sqrtPriceX96)
	}

	ratio := new(big.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	r := new(big.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	log2 := new(big.Int).Lsh(big.NewInt(int64(msb-128)), 64)
	f := new(big.Int)
	for i := 0; i < 14; i++ {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f.Rsh(r, 128)
		log2.Or(log2, new(big.Int).Lsh(f, uint(63-i)))
		r.Rsh(r, uint(f.Uint64()))
	}

	logSqrt10001 := new(big.Int).Mul(log2, logSqrt10001Factor)

	low := new(big.Int).Sub(logSqrt10001, tickLowOffset)
	tickLow := int(low.Rsh(low, 128).Int64())
	high := new(big.Int).Add(logSqrt10001, tickHighOffset)
	tickHigh := int(high.Rsh(high, 128).Int64())

	if tickLow == tickHigh {
		return tickLow, nil
	}
	if tickHigh > MaxTick {
		return tickLow, nil
	}
	atHigh, err := SqrtPriceAtTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if atHigh.Cmp(sqrtPriceX96) <= 0 {
		return tickHigh, nil
	}
	return tickLow, nil
}

func mustUint256(hex string) *uint256.Int {
	v, overflow := uint256.FromBig(mustParseHex(hex))
	if overflow {
		panic("v3math: constant overflows 256 bits: " + hex)
	}
	return v
}

func mustUint256Table(hexes ...string) []*uint256.Int {
	out := make([]*uint256.Int, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, mustUint256(h))
	}
	return out
}
