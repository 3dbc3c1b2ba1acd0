package v3math

import (
	"fmt"
	"math/big"
)

// FeeTier is a pool fee in hundredths of a bip.
type FeeTier uint32

const (
	FeeLowest FeeTier = 100
	FeeLow    FeeTier = 500
	FeeMedium FeeTier = 3000
	FeeHigh   FeeTier = 10000
)

// TickSpacings maps each supported fee tier to its tick spacing.
var TickSpacings = map[FeeTier]int{
	FeeLowest: 1,
	FeeLow:    10,
	FeeMedium: 60,
	FeeHigh:   200,
}

// TickSpacing returns the tick spacing for a fee tier.
func TickSpacing(fee FeeTier) (int, error) {
	spacing, ok := TickSpacings[fee]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownFeeTier, fee)
	}
	return spacing, nil
}

// IsUsableTick reports whether tick is in range and on the spacing grid.
func IsUsableTick(tick, spacing int) bool {
	if spacing <= 0 || tick < MinTick || tick > MaxTick {
		return false
	}
	return tick%spacing == 0
}

func MinUsableTick(spacing int) int {
	return -(MaxTick / spacing) * spacing
}

func MaxUsableTick(spacing int) int {
	return (MaxTick / spacing) * spacing
}

// NearestUsableTick rounds tick to the closest multiple of spacing, halves toward positive
// infinity, clamped to the usable bounds.
func NearestUsableTick(tick, spacing int) (int, error) {
	if spacing <= 0 {
		return 0, fmt.Errorf("%w: tick spacing %d", ErrInvalidPriceRange, spacing)
	}
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	q, r := tick/spacing, tick%spacing
	if r < 0 {
		q--
		r += spacing
	}
	rounded := q * spacing
	if 2*r >= spacing {
		rounded += spacing
	}
	if rounded < MinUsableTick(spacing) {
		return MinUsableTick(spacing), nil
	}
	if rounded > MaxUsableTick(spacing) {
		return MaxUsableTick(spacing), nil
	}
	return rounded, nil
}

// PriceRange is a pair of usable ticks bounding a position.
type PriceRange struct {
	TickLower int
	TickUpper int
}

// NewPriceRange validates lower < upper and that both ticks are usable for the fee tier.
func NewPriceRange(tickLower, tickUpper int, fee FeeTier) (PriceRange, error) {
	spacing, err := TickSpacing(fee)
	if err != nil {
		return PriceRange{}, err
	}
	if tickLower >= tickUpper {
		return PriceRange{}, fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidPriceRange, tickLower, tickUpper)
	}
	if !IsUsableTick(tickLower, spacing) {
		return PriceRange{}, fmt.Errorf("%w: lower tick %d not usable with spacing %d", ErrInvalidPriceRange, tickLower, spacing)
	}
	if !IsUsableTick(tickUpper, spacing) {
		return PriceRange{}, fmt.Errorf("%w: upper tick %d not usable with spacing %d", ErrInvalidPriceRange, tickUpper, spacing)
	}
	return PriceRange{TickLower: tickLower, TickUpper: tickUpper}, nil
}

// SqrtPrices returns the sqrt prices at the range bounds.
func (r PriceRange) SqrtPrices() (lower, upper *big.Int, err error) {
	if lower, err = SqrtPriceAtTick(r.TickLower); err != nil {
		return nil, nil, err
	}
	if upper, err = SqrtPriceAtTick(r.TickUpper); err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}
