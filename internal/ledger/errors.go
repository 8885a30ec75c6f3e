package ledger

import "errors"

// ErrInsufficientCollateral is returned when a debit would take an
// account's tracked collateral balance below zero.
var ErrInsufficientCollateral = errors.New("insufficient collateral balance")
