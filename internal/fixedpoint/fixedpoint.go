package fixedpoint

import "math/big"

// Amounts throughout the engine are 18-decimal fixed point: an integer count
// of 10^-18 units. USD values routinely exceed the int64 range, so amounts
// travel as *big.Int and intermediate products are computed at arbitrary
// width before the final division.

// Decimals is the fixed-point precision of every engine amount.
const Decimals = 18

var (
	// Unit is one whole token (10^18). Treat as read-only.
	Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

	// MaxUint256 is the largest 256-bit value, used to represent an
	// infinite health factor for debt-free positions. Treat as read-only.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// MulDiv returns a*b/denom with the product computed at full width and the
// quotient truncated toward zero. Panics if denom is zero.
func MulDiv(a, b, denom *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, denom)
}

// Pow10 returns 10^n as a fresh big.Int. n must be non-negative.
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FromInt64 scales a whole-token count up to fixed point.
func FromInt64(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), Unit)
}

// Clone returns a copy of v, mapping nil to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is non-nil and strictly greater than zero.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
