package engine

import (
	"math/big"

	"github.com/TariqLash/TTC/internal/fixedpoint"
)

// Collateralization parameters. A liquidation threshold of 50 over a
// precision of 100 means an account needs 200% overcollateralization to sit
// at the minimum health factor.
const (
	LiquidationThreshold = 50
	LiquidationPrecision = 100
	LiquidationBonus     = 10
)

// MinHealthFactor is 1.0 in 18-decimal fixed point. Accounts at or above
// it cannot be liquidated.
var MinHealthFactor = fixedpoint.Clone(fixedpoint.Unit)

// Params exposes the collateralization constants for callers that need to
// reproduce the engine's math.
type Params struct {
	LiquidationThreshold int64
	LiquidationPrecision int64
	LiquidationBonus     int64
	MinHealthFactor      *big.Int
}

// healthFactorFrom computes the 18-decimal health factor for the given
// collateral value and debt, both 18-decimal USD. With zero debt no price
// movement can endanger the account, so the factor saturates at the
// largest representable value.
func healthFactorFrom(collateralUsd, debt *big.Int) *big.Int {
	if debt == nil || debt.Sign() == 0 {
		return fixedpoint.Clone(fixedpoint.MaxUint256)
	}
	adjusted := fixedpoint.MulDiv(collateralUsd,
		big.NewInt(LiquidationThreshold), big.NewInt(LiquidationPrecision))
	return fixedpoint.MulDiv(adjusted, fixedpoint.Unit, debt)
}
