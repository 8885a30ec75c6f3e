package server

import (
	"fmt"
	"math/big"
)

// Amounts cross the wire as decimal integer strings in 18-decimal base
// units; JSON numbers cannot carry them.

type depositRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type depositAndMintRequest struct {
	Account          string `json:"account"`
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateral_amount"`
	MintAmount       string `json:"mint_amount"`
}

type redeemRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type burnRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type redeemForTTCRequest struct {
	Account          string `json:"account"`
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateral_amount"`
	BurnAmount       string `json:"burn_amount"`
}

type liquidateRequest struct {
	Liquidator  string `json:"liquidator"`
	User        string `json:"user"`
	Asset       string `json:"asset"`
	DebtToCover string `json:"debt_to_cover"`
}

type approveRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"` // "TTC" or a collateral symbol
	Amount  string `json:"amount"`
}

type faucetRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type setPriceRequest struct {
	Feed     string `json:"feed"`
	Price    string `json:"price"`
	Decimals int32  `json:"decimals"`
}

type accountResponse struct {
	Account            string            `json:"account"`
	Debt               string            `json:"debt"`
	CollateralValueUsd string            `json:"collateral_value_usd"`
	HealthFactor       string            `json:"health_factor"`
	Collateral         map[string]string `json:"collateral"`
	TTCBalance         string            `json:"ttc_balance"`
}

type paramsResponse struct {
	LiquidationThreshold int64    `json:"liquidation_threshold"`
	LiquidationPrecision int64    `json:"liquidation_precision"`
	LiquidationBonus     int64    `json:"liquidation_bonus"`
	MinHealthFactor      string   `json:"min_health_factor"`
	Assets               []string `json:"assets"`
}

type priceResponse struct {
	Asset    string `json:"asset"`
	Feed     string `json:"feed"`
	Price    string `json:"price"`
	Decimals int32  `json:"decimals"`
	Sequence uint64 `json:"sequence"`
}

type operationResponse struct {
	OpID             string `json:"op_id"`
	Kind             string `json:"kind"`
	Account          string `json:"account"`
	Asset            string `json:"asset,omitempty"`
	CollateralAmount string `json:"collateral_amount,omitempty"`
	DebtAmount       string `json:"debt_amount,omitempty"`
	Counterparty     string `json:"counterparty,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type okResponse struct {
	Status string `json:"status"`
}

// parseAmount parses a decimal integer string into a base-unit amount.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return v, nil
}
