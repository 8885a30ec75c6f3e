// Package server exposes the engine over a chi HTTP API. The engine is
// single-threaded, so the handler serializes mutations behind a write lock
// while queries share a read lock.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/engine"
	"github.com/TariqLash/TTC/internal/ledger"
	"github.com/TariqLash/TTC/internal/oracle"
	"github.com/TariqLash/TTC/internal/persistence"
	"github.com/TariqLash/TTC/internal/token"
)

// OperationStore serves account history from the operation log. It is nil
// when the service runs without Postgres.
type OperationStore interface {
	ListByAccount(ctx context.Context, account uuid.UUID, limit int) ([]persistence.OperationRow, error)
}

// Handler carries the engine and its collaborators for the HTTP API.
type Handler struct {
	mu      sync.RWMutex
	eng     *engine.Engine
	ttc     *token.Synthetic
	assets  map[string]*token.Asset
	feeds   *oracle.FeedStore
	ops     OperationStore
	devMode bool
	log     zerolog.Logger
}

func NewHandler(
	eng *engine.Engine,
	ttc *token.Synthetic,
	assets map[string]*token.Asset,
	feeds *oracle.FeedStore,
	ops OperationStore,
	devMode bool,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		eng:     eng,
		ttc:     ttc,
		assets:  assets,
		feeds:   feeds,
		ops:     ops,
		devMode: devMode,
		log:     log.With().Str("component", "http").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Message: details})
}

// mapEngineError maps engine errors to HTTP status codes: malformed input
// is 400, balance shortfalls are 422, collateralization conflicts are 409,
// missing prices and reentrancy are 503.
func mapEngineError(err error) int {
	var breaks *engine.BreaksHealthFactorError
	switch {
	case errors.Is(err, engine.ErrAmountZero),
		errors.Is(err, engine.ErrAssetNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientCollateral),
		errors.Is(err, engine.ErrInsufficientDebt),
		errors.Is(err, engine.ErrTransferFailed),
		errors.Is(err, engine.ErrMintFailed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &breaks),
		errors.Is(err, engine.ErrHealthFactorOk),
		errors.Is(err, engine.ErrHealthFactorNotImproved):
		return http.StatusConflict
	case errors.Is(err, engine.ErrReentrantCall),
		errors.Is(err, oracle.ErrUnknownFeed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, op string, err error) {
	writeError(w, mapEngineError(err), op+" rejected", err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func parseAccount(w http.ResponseWriter, s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func parseAmountOrReject(w http.ResponseWriter, s string) (*big.Int, bool) {
	amt, err := parseAmount(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return nil, false
	}
	return amt, true
}

// --- mutations ---

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountOrReject(w, req.Amount)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.DepositCollateral(account, req.Asset, amount)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountOrReject(w, req.Amount)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.MintTTC(account, amount)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "mint", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

func (h *Handler) DepositAndMint(w http.ResponseWriter, r *http.Request) {
	var req depositAndMintRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	collateral, ok := parseAmountOrReject(w, req.CollateralAmount)
	if !ok {
		return
	}
	mint, ok := parseAmountOrReject(w, req.MintAmount)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.DepositCollateralAndMintTTC(account, req.Asset, collateral, mint)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "deposit_and_mint", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountOrReject(w, req.Amount)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.RedeemCollateral(account, req.Asset, amount)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "redeem", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

func (h *Handler) Burn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountOrReject(w, req.Amount)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.BurnTTC(account, amount)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "burn", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

func (h *Handler) RedeemForTTC(w http.ResponseWriter, r *http.Request) {
	var req redeemForTTCRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	collateral, ok := parseAmountOrReject(w, req.CollateralAmount)
	if !ok {
		return
	}
	burn, ok := parseAmountOrReject(w, req.BurnAmount)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.RedeemCollateralForTTC(account, req.Asset, collateral, burn)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "redeem_for_ttc", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

func (h *Handler) Liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !decode(w, r, &req) {
		return
	}
	liquidator, ok := parseAccount(w, req.Liquidator)
	if !ok {
		return
	}
	user, ok := parseAccount(w, req.User)
	if !ok {
		return
	}
	debtToCover, ok := parseAmountOrReject(w, req.DebtToCover)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.eng.Liquidate(liquidator, req.Asset, user, debtToCover)
	h.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, "liquidate", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}

// Approve lets an account authorize the engine's custody account to pull
// tokens, mirroring the allowance flow of the underlying token books.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountOrReject(w, req.Amount)
	if !ok {
		return
	}

	custody := h.eng.Custody()
	if req.Token == h.ttc.Symbol() {
		h.ttc.Approve(account, custody, amount)
	} else if asset, found := h.assets[req.Token]; found {
		asset.Approve(account, custody, amount)
	} else {
		writeError(w, http.StatusBadRequest, "unknown token", req.Token)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Status: "approved"})
}

// --- queries ---

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	debt, collateralUsd, err := h.eng.AccountInformation(account)
	if err != nil {
		h.writeEngineError(w, "account query", err)
		return
	}
	hf, err := h.eng.HealthFactor(account)
	if err != nil {
		h.writeEngineError(w, "account query", err)
		return
	}

	collateral := make(map[string]string)
	for _, sym := range h.eng.Assets() {
		bal := h.eng.CollateralBalance(account, sym)
		if bal.Sign() > 0 {
			collateral[sym] = bal.String()
		}
	}

	writeJSON(w, http.StatusOK, accountResponse{
		Account:            account.String(),
		Debt:               debt.String(),
		CollateralValueUsd: collateralUsd.String(),
		HealthFactor:       hf.String(),
		Collateral:         collateral,
		TTCBalance:         h.ttc.BalanceOf(account).String(),
	})
}

func (h *Handler) GetCollateral(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	asset := chi.URLParam(r, "asset")

	h.mu.RLock()
	defer h.mu.RUnlock()

	balance := h.eng.CollateralBalance(account, asset)
	value, err := h.eng.UsdValue(asset, balance)
	if err != nil {
		h.writeEngineError(w, "collateral query", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":   account.String(),
		"asset":     asset,
		"balance":   balance.String(),
		"usd_value": value.String(),
	})
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	hf, err := h.eng.HealthFactor(account)
	if err != nil {
		h.writeEngineError(w, "health query", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":       account.String(),
		"health_factor": hf.String(),
	})
}

// GetUsdValue prices ?amount of the asset in 18-decimal USD.
func (h *Handler) GetUsdValue(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, ok := parseAmountOrReject(w, r.URL.Query().Get("amount"))
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	value, err := h.eng.UsdValue(asset, amount)
	if err != nil {
		h.writeEngineError(w, "usd value query", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":     asset,
		"amount":    amount.String(),
		"usd_value": value.String(),
	})
}

// GetAssetAmount converts ?usd of 18-decimal USD into asset units at the
// current price.
func (h *Handler) GetAssetAmount(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	usd, ok := parseAmountOrReject(w, r.URL.Query().Get("usd"))
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	amount, err := h.eng.TokenAmountFromUsd(asset, usd)
	if err != nil {
		h.writeEngineError(w, "asset amount query", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":     asset,
		"usd_value": usd.String(),
		"amount":    amount.String(),
	})
}

func (h *Handler) GetParams(w http.ResponseWriter, r *http.Request) {
	p := h.eng.Params()
	writeJSON(w, http.StatusOK, paramsResponse{
		LiquidationThreshold: p.LiquidationThreshold,
		LiquidationPrecision: p.LiquidationPrecision,
		LiquidationBonus:     p.LiquidationBonus,
		MinHealthFactor:      p.MinHealthFactor.String(),
		Assets:               h.eng.Assets(),
	})
}

func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")

	h.mu.RLock()
	defer h.mu.RUnlock()

	feed, err := h.eng.FeedFor(asset)
	if err != nil {
		h.writeEngineError(w, "price query", err)
		return
	}
	q, err := h.feeds.LatestQuote(feed)
	if err != nil {
		h.writeEngineError(w, "price query", err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Asset:    asset,
		Feed:     q.FeedID,
		Price:    q.Price.String(),
		Decimals: q.Decimals,
		Sequence: q.Sequence,
	})
}

func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	if h.ops == nil {
		writeError(w, http.StatusNotImplemented, "operation log disabled", "")
		return
	}
	account, ok := parseAccount(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := parseAmount(s); err == nil && n.IsInt64() {
			limit = int(n.Int64())
		}
	}

	rows, err := h.ops.ListByAccount(r.Context(), account, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "operation query failed", err.Error())
		return
	}

	out := make([]operationResponse, 0, len(rows))
	for _, row := range rows {
		op := operationResponse{
			OpID:      row.OpID.String(),
			Kind:      row.Kind,
			Account:   row.Account.String(),
			CreatedAt: row.CreatedAt.Format(time.RFC3339Nano),
		}
		if row.Asset.Valid {
			op.Asset = row.Asset.String
		}
		if row.CollateralAmount.Valid {
			op.CollateralAmount = row.CollateralAmount.String
		}
		if row.DebtAmount.Valid {
			op.DebtAmount = row.DebtAmount.String
		}
		if row.Counterparty.Valid {
			op.Counterparty = row.Counterparty.UUID.String()
		}
		out = append(out, op)
	}
	writeJSON(w, http.StatusOK, out)
}

// --- dev endpoints, enabled with TTC_DEV_MODE ---

// Faucet mints collateral tokens to an account. Test environments only;
// real collateral arrives through the issuer.
func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if !decode(w, r, &req) {
		return
	}
	account, ok := parseAccount(w, req.Account)
	if !ok {
		return
	}
	amount, ok := parseAmountOrReject(w, req.Amount)
	if !ok {
		return
	}
	asset, found := h.assets[req.Asset]
	if !found {
		writeError(w, http.StatusBadRequest, "unknown asset", req.Asset)
		return
	}
	asset.Mint(account, amount)
	writeJSON(w, http.StatusOK, okResponse{Status: "minted"})
}

// SetPrice overwrites a feed directly, bypassing NATS sequencing.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if !decode(w, r, &req) {
		return
	}
	price, ok := parseAmountOrReject(w, req.Price)
	if !ok {
		return
	}
	if req.Feed == "" || price.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "invalid price update", "")
		return
	}
	h.feeds.SetPrice(req.Feed, price, req.Decimals)
	writeJSON(w, http.StatusOK, okResponse{Status: "applied"})
}
