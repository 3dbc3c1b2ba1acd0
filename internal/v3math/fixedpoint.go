package v3math

import "math/big"

// mulDiv returns floor(a*b/denominator). Operands are never mutated.
func mulDiv(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denominator)
}

// mulDivRoundingUp returns ceil(a*b/denominator) for non-negative operands.
func mulDivRoundingUp(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	quotient, remainder := new(big.Int).QuoRem(product, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

// sortRatios returns the two sqrt prices in ascending order.
func sortRatios(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

func isNegativeOrNil(v *big.Int) bool {
	return v == nil || v.Sign() < 0
}

// inSqrtRange reports whether v lies in [MinSqrtRatio, MaxSqrtRatio].
func inSqrtRange(v *big.Int) bool {
	return v != nil && v.Cmp(MinSqrtRatio) >= 0 && v.Cmp(MaxSqrtRatio) <= 0
}
