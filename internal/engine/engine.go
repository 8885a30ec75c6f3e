// Package engine implements the collateralized debt core: deposits, mints,
// redemptions, burns, and liquidations over per-account collateral and debt
// ledgers, valued through an oracle adapter.
//
// The engine is single-threaded. Callers serialize mutations externally;
// the internal guard only converts reentrancy bugs into clean errors. Every
// mutation is all-or-nothing: effects apply in checks-effects-interactions
// order, and any failure unwinds everything already applied.
package engine

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/fixedpoint"
	"github.com/TariqLash/TTC/internal/ledger"
	"github.com/TariqLash/TTC/internal/observability"
	"github.com/TariqLash/TTC/internal/oracle"
)

// Operation is the record of one applied mutation, handed to the Recorder
// after the mutation commits.
type Operation struct {
	ID               uuid.UUID
	Kind             string
	Account          uuid.UUID
	Asset            string
	CollateralAmount *big.Int
	DebtAmount       *big.Int
	Counterparty     uuid.UUID
	CreatedAt        time.Time
}

// Recorder receives committed operations. Implementations must not block
// the caller; the persistence writer buffers internally.
type Recorder interface {
	Record(op Operation)
}

// Engine owns the collateral and debt ledgers and sequences all token
// movement through its custody account.
type Engine struct {
	registry   *Registry
	collateral *ledger.CollateralLedger
	debt       *ledger.DebtLedger
	oracle     *oracle.Adapter
	ttc        SyntheticToken
	supply     SupplyAuthority
	custody    uuid.UUID
	guard      callGuard
	recorder   Recorder
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// New wires an engine. recorder and metrics may be nil.
func New(
	registry *Registry,
	adapter *oracle.Adapter,
	ttc SyntheticToken,
	supply SupplyAuthority,
	recorder Recorder,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		registry:   registry,
		collateral: ledger.NewCollateralLedger(),
		debt:       ledger.NewDebtLedger(),
		oracle:     adapter,
		ttc:        ttc,
		supply:     supply,
		custody:    supply.Holder(),
		recorder:   recorder,
		metrics:    metrics,
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Custody returns the account that holds deposited collateral and stages
// synthetic burns.
func (e *Engine) Custody() uuid.UUID { return e.custody }

// Params returns the engine's collateralization constants.
func (e *Engine) Params() Params {
	return Params{
		LiquidationThreshold: LiquidationThreshold,
		LiquidationPrecision: LiquidationPrecision,
		LiquidationBonus:     LiquidationBonus,
		MinHealthFactor:      fixedpoint.Clone(MinHealthFactor),
	}
}

// Assets returns the allowed collateral symbols.
func (e *Engine) Assets() []string { return e.registry.Assets() }

// FeedFor returns the price feed backing an allowed asset.
func (e *Engine) FeedFor(asset string) (string, error) { return e.registry.FeedFor(asset) }

// mutate runs one mutation under the reentrancy guard. fn applies effects
// through the unit of work and returns the operation record to commit; on
// error every applied effect is rolled back.
func (e *Engine) mutate(kind string, fn func(u *unitOfWork) (Operation, error)) error {
	if !e.guard.enter() {
		e.countRejected(kind, ErrReentrantCall)
		return ErrReentrantCall
	}
	defer e.guard.exit()

	start := time.Now()
	u := newUnitOfWork()
	op, err := fn(u)
	if err != nil {
		u.rollback()
		e.countRejected(kind, err)
		return err
	}

	op.ID = uuid.New()
	op.Kind = kind
	op.CreatedAt = time.Now().UTC()
	if e.recorder != nil {
		e.recorder.Record(op)
	}
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(kind).Inc()
		e.metrics.OpDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	return nil
}

func (e *Engine) countRejected(kind string, err error) {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(kind, rejectReason(err)).Inc()
	}
	e.log.Debug().Str("op", kind).Err(err).Msg("operation rejected")
}

func rejectReason(err error) string {
	var breaks *BreaksHealthFactorError
	switch {
	case errors.Is(err, ErrAmountZero):
		return "amount_zero"
	case errors.Is(err, ErrAssetNotAllowed):
		return "asset_not_allowed"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrMintFailed):
		return "mint_failed"
	case errors.Is(err, ledger.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ErrInsufficientDebt):
		return "insufficient_debt"
	case errors.Is(err, ErrHealthFactorOk):
		return "health_factor_ok"
	case errors.Is(err, ErrHealthFactorNotImproved):
		return "health_factor_not_improved"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	case errors.As(err, &breaks):
		return "breaks_health_factor"
	default:
		return "other"
	}
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountZero
	}
	return nil
}

// addCollateral credits the ledger then pulls tokens into custody. The
// caller must have approved custody as a spender.
func (e *Engine) addCollateral(u *unitOfWork, caller uuid.UUID, asset string, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	tok, err := e.registry.TokenFor(asset)
	if err != nil {
		return err
	}
	amt := fixedpoint.Clone(amount)

	e.collateral.Credit(caller, asset, amt)
	u.onRollback(func() { e.collateral.MustDebit(caller, asset, amt) })

	if !tok.TransferFrom(e.custody, caller, e.custody, amt) {
		return fmt.Errorf("%w: pulling %s %s from %s", ErrTransferFailed, amt, asset, caller)
	}
	u.onRollback(func() {
		if !tok.Transfer(e.custody, caller, amt) {
			panic(fmt.Sprintf("FATAL: collateral refund failed for %s %s to %s", amt, asset, caller))
		}
	})
	return nil
}

// releaseCollateral debits from's ledger entry then pays tokens out of
// custody to to. Used by redemptions (from == to) and liquidation seizure.
func (e *Engine) releaseCollateral(u *unitOfWork, from, to uuid.UUID, asset string, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	tok, err := e.registry.TokenFor(asset)
	if err != nil {
		return err
	}
	amt := fixedpoint.Clone(amount)

	if err := e.collateral.Debit(from, asset, amt); err != nil {
		return err
	}
	u.onRollback(func() { e.collateral.Credit(from, asset, amt) })

	if !tok.Transfer(e.custody, to, amt) {
		return fmt.Errorf("%w: releasing %s %s to %s", ErrTransferFailed, amt, asset, to)
	}
	u.onRollback(func() {
		if !tok.Transfer(to, e.custody, amt) {
			panic(fmt.Sprintf("FATAL: collateral clawback failed for %s %s from %s", amt, asset, to))
		}
	})
	return nil
}

// mintSynthetic records debt, checks the account stays collateralized, then
// mints to the caller. The health check runs on the post-increment debt so
// an unbacked mint never reaches the token.
func (e *Engine) mintSynthetic(u *unitOfWork, caller uuid.UUID, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := fixedpoint.Clone(amount)

	e.debt.Increase(caller, amt)
	u.onRollback(func() { e.debt.Decrease(caller, amt) })

	if err := e.requireHealthy(caller); err != nil {
		return err
	}

	if !e.supply.Mint(caller, amt) {
		return fmt.Errorf("%w: %s to %s", ErrMintFailed, amt, caller)
	}
	u.onRollback(func() {
		if !e.ttc.Transfer(caller, e.custody, amt) {
			panic(fmt.Sprintf("FATAL: mint reversal transfer failed for %s from %s", amt, caller))
		}
		if err := e.supply.Burn(amt); err != nil {
			panic(fmt.Sprintf("FATAL: mint reversal burn failed: %v", err))
		}
	})
	return nil
}

// burnSynthetic retires amount of onBehalfOf's debt, paid from payer's
// token balance. Payer must have approved custody as a spender.
func (e *Engine) burnSynthetic(u *unitOfWork, amount *big.Int, onBehalfOf, payer uuid.UUID) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := fixedpoint.Clone(amount)

	if e.debt.Minted(onBehalfOf).Cmp(amt) < 0 {
		return fmt.Errorf("%w: %s owes %s, burning %s",
			ErrInsufficientDebt, onBehalfOf, e.debt.Minted(onBehalfOf), amt)
	}
	e.debt.Decrease(onBehalfOf, amt)
	u.onRollback(func() { e.debt.Increase(onBehalfOf, amt) })

	if !e.ttc.TransferFrom(e.custody, payer, e.custody, amt) {
		return fmt.Errorf("%w: pulling %s TTC from %s", ErrTransferFailed, amt, payer)
	}
	u.onRollback(func() {
		if !e.ttc.Transfer(e.custody, payer, amt) {
			panic(fmt.Sprintf("FATAL: synthetic refund failed for %s to %s", amt, payer))
		}
	})

	if err := e.supply.Burn(amt); err != nil {
		return fmt.Errorf("burning %s TTC: %w", amt, err)
	}
	u.onRollback(func() {
		if !e.supply.Mint(e.custody, amt) {
			panic(fmt.Sprintf("FATAL: burn reversal mint failed for %s", amt))
		}
	})
	return nil
}

// requireHealthy fails with BreaksHealthFactorError when account sits below
// the minimum health factor.
func (e *Engine) requireHealthy(account uuid.UUID) error {
	hf, err := e.HealthFactor(account)
	if err != nil {
		return err
	}
	if hf.Cmp(MinHealthFactor) < 0 {
		return &BreaksHealthFactorError{Account: account, Factor: hf}
	}
	return nil
}

// DepositCollateral locks amount of asset for caller.
func (e *Engine) DepositCollateral(caller uuid.UUID, asset string, amount *big.Int) error {
	return e.mutate("deposit", func(u *unitOfWork) (Operation, error) {
		if err := e.addCollateral(u, caller, asset, amount); err != nil {
			return Operation{}, err
		}
		return Operation{
			Account:          caller,
			Asset:            asset,
			CollateralAmount: fixedpoint.Clone(amount),
		}, nil
	})
}

// MintTTC mints amount of synthetic against caller's locked collateral.
func (e *Engine) MintTTC(caller uuid.UUID, amount *big.Int) error {
	return e.mutate("mint", func(u *unitOfWork) (Operation, error) {
		if err := e.mintSynthetic(u, caller, amount); err != nil {
			return Operation{}, err
		}
		return Operation{
			Account:    caller,
			DebtAmount: fixedpoint.Clone(amount),
		}, nil
	})
}

// DepositCollateralAndMintTTC performs deposit and mint as one atomic
// operation.
func (e *Engine) DepositCollateralAndMintTTC(caller uuid.UUID, asset string, collateralAmount, mintAmount *big.Int) error {
	return e.mutate("deposit_and_mint", func(u *unitOfWork) (Operation, error) {
		if err := e.addCollateral(u, caller, asset, collateralAmount); err != nil {
			return Operation{}, err
		}
		if err := e.mintSynthetic(u, caller, mintAmount); err != nil {
			return Operation{}, err
		}
		return Operation{
			Account:          caller,
			Asset:            asset,
			CollateralAmount: fixedpoint.Clone(collateralAmount),
			DebtAmount:       fixedpoint.Clone(mintAmount),
		}, nil
	})
}

// RedeemCollateral returns amount of asset to caller, provided the account
// stays collateralized.
func (e *Engine) RedeemCollateral(caller uuid.UUID, asset string, amount *big.Int) error {
	return e.mutate("redeem", func(u *unitOfWork) (Operation, error) {
		if err := e.releaseCollateral(u, caller, caller, asset, amount); err != nil {
			return Operation{}, err
		}
		if err := e.requireHealthy(caller); err != nil {
			return Operation{}, err
		}
		return Operation{
			Account:          caller,
			Asset:            asset,
			CollateralAmount: fixedpoint.Clone(amount),
		}, nil
	})
}

// BurnTTC retires amount of caller's debt using caller's own tokens.
func (e *Engine) BurnTTC(caller uuid.UUID, amount *big.Int) error {
	return e.mutate("burn", func(u *unitOfWork) (Operation, error) {
		if err := e.burnSynthetic(u, amount, caller, caller); err != nil {
			return Operation{}, err
		}
		// Burning debt can only raise the health factor, but the check is
		// cheap and keeps the invariant uniform across mutations.
		if err := e.requireHealthy(caller); err != nil {
			return Operation{}, err
		}
		return Operation{
			Account:    caller,
			DebtAmount: fixedpoint.Clone(amount),
		}, nil
	})
}

// RedeemCollateralForTTC burns debt and withdraws collateral atomically.
// The burn runs first so the redemption is judged against the reduced debt.
func (e *Engine) RedeemCollateralForTTC(caller uuid.UUID, asset string, collateralAmount, burnAmount *big.Int) error {
	return e.mutate("redeem_for_ttc", func(u *unitOfWork) (Operation, error) {
		if err := e.burnSynthetic(u, burnAmount, caller, caller); err != nil {
			return Operation{}, err
		}
		if err := e.releaseCollateral(u, caller, caller, asset, collateralAmount); err != nil {
			return Operation{}, err
		}
		if err := e.requireHealthy(caller); err != nil {
			return Operation{}, err
		}
		return Operation{
			Account:          caller,
			Asset:            asset,
			CollateralAmount: fixedpoint.Clone(collateralAmount),
			DebtAmount:       fixedpoint.Clone(burnAmount),
		}, nil
	})
}

// Liquidate lets caller repay debtToCover of user's debt in exchange for
// the equivalent collateral in asset plus a bonus. The target must be below
// the minimum health factor, the liquidation must improve it, and the
// liquidator's own account must remain healthy.
func (e *Engine) Liquidate(caller uuid.UUID, asset string, user uuid.UUID, debtToCover *big.Int) error {
	return e.mutate("liquidate", func(u *unitOfWork) (Operation, error) {
		if err := validAmount(debtToCover); err != nil {
			return Operation{}, err
		}
		feedID, err := e.registry.FeedFor(asset)
		if err != nil {
			return Operation{}, err
		}

		startFactor, err := e.HealthFactor(user)
		if err != nil {
			return Operation{}, err
		}
		if startFactor.Cmp(MinHealthFactor) >= 0 {
			return Operation{}, fmt.Errorf("%w: %s at %s", ErrHealthFactorOk, user, startFactor)
		}

		seized, err := e.oracle.AmountForUsd(feedID, debtToCover)
		if err != nil {
			return Operation{}, err
		}
		bonus := fixedpoint.MulDiv(seized,
			big.NewInt(LiquidationBonus), big.NewInt(LiquidationPrecision))
		total := new(big.Int).Add(seized, bonus)

		if err := e.burnSynthetic(u, debtToCover, user, caller); err != nil {
			return Operation{}, err
		}
		if err := e.releaseCollateral(u, user, caller, asset, total); err != nil {
			return Operation{}, err
		}

		endFactor, err := e.HealthFactor(user)
		if err != nil {
			return Operation{}, err
		}
		if endFactor.Cmp(startFactor) <= 0 {
			return Operation{}, fmt.Errorf("%w: %s to %s", ErrHealthFactorNotImproved, startFactor, endFactor)
		}
		if err := e.requireHealthy(caller); err != nil {
			return Operation{}, err
		}

		e.log.Info().
			Stringer("liquidator", caller).
			Stringer("user", user).
			Str("asset", asset).
			Str("debt_covered", debtToCover.String()).
			Str("collateral_seized", total.String()).
			Str("start_factor", startFactor.String()).
			Str("end_factor", endFactor.String()).
			Msg("liquidation applied")

		return Operation{
			Account:          user,
			Asset:            asset,
			CollateralAmount: total,
			DebtAmount:       fixedpoint.Clone(debtToCover),
			Counterparty:     caller,
		}, nil
	})
}

// CollateralBalance returns account's locked balance of asset.
func (e *Engine) CollateralBalance(account uuid.UUID, asset string) *big.Int {
	return e.collateral.Balance(account, asset)
}

// DebtOf returns account's outstanding synthetic debt.
func (e *Engine) DebtOf(account uuid.UUID) *big.Int {
	return e.debt.Minted(account)
}

// CollateralValueUsd sums the USD value of account's locked collateral
// across all allowed assets.
func (e *Engine) CollateralValueUsd(account uuid.UUID) (*big.Int, error) {
	total := new(big.Int)
	for _, sym := range e.registry.Assets() {
		bal := e.collateral.Balance(account, sym)
		if bal.Sign() == 0 {
			continue
		}
		feedID, err := e.registry.FeedFor(sym)
		if err != nil {
			return nil, err
		}
		val, err := e.oracle.UsdValue(feedID, bal)
		if err != nil {
			return nil, err
		}
		total.Add(total, val)
	}
	return total, nil
}

// AccountInformation returns account's debt and total collateral value.
func (e *Engine) AccountInformation(account uuid.UUID) (debt, collateralUsd *big.Int, err error) {
	collateralUsd, err = e.CollateralValueUsd(account)
	if err != nil {
		return nil, nil, err
	}
	return e.debt.Minted(account), collateralUsd, nil
}

// HealthFactor returns account's 18-decimal health factor.
func (e *Engine) HealthFactor(account uuid.UUID) (*big.Int, error) {
	debt, collateralUsd, err := e.AccountInformation(account)
	if err != nil {
		return nil, err
	}
	return healthFactorFrom(collateralUsd, debt), nil
}

// UsdValue prices an amount of an allowed asset in 18-decimal USD.
func (e *Engine) UsdValue(asset string, amount *big.Int) (*big.Int, error) {
	feedID, err := e.registry.FeedFor(asset)
	if err != nil {
		return nil, err
	}
	return e.oracle.UsdValue(feedID, amount)
}

// TokenAmountFromUsd converts an 18-decimal USD value into an amount of an
// allowed asset at the current price.
func (e *Engine) TokenAmountFromUsd(asset string, usd *big.Int) (*big.Int, error) {
	feedID, err := e.registry.FeedFor(asset)
	if err != nil {
		return nil, err
	}
	return e.oracle.AmountForUsd(feedID, usd)
}
