package engine

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

var (
	// ErrAmountZero rejects operations with a zero or negative amount.
	ErrAmountZero = errors.New("amount must be more than zero")
	// ErrRegistryLengthMismatch rejects construction with unequal asset
	// and feed lists.
	ErrRegistryLengthMismatch = errors.New("asset and feed lists differ in length")
	// ErrAssetNotAllowed rejects operations on assets outside the registry.
	ErrAssetNotAllowed = errors.New("asset not allowed as collateral")
	// ErrTransferFailed surfaces a token transfer that reported failure.
	ErrTransferFailed = errors.New("token transfer failed")
	// ErrMintFailed surfaces a synthetic mint that reported failure.
	ErrMintFailed = errors.New("synthetic mint failed")
	// ErrInsufficientDebt rejects burning more synthetic than is owed.
	ErrInsufficientDebt = errors.New("burn exceeds outstanding debt")
	// ErrHealthFactorOk rejects liquidating a healthy account.
	ErrHealthFactorOk = errors.New("health factor is not below minimum")
	// ErrHealthFactorNotImproved rejects liquidations that fail to raise
	// the target's health factor.
	ErrHealthFactorNotImproved = errors.New("health factor not improved")
	// ErrReentrantCall rejects a mutation entered while another is running.
	ErrReentrantCall = errors.New("reentrant call")
)

// BreaksHealthFactorError reports a mutation that would leave an account
// undercollateralized. Factor is the 18-decimal health factor the account
// would have had.
type BreaksHealthFactorError struct {
	Account uuid.UUID
	Factor  *big.Int
}

func (e *BreaksHealthFactorError) Error() string {
	return fmt.Sprintf("operation breaks health factor for %s: factor %s", e.Account, e.Factor)
}
