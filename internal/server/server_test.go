package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TariqLash/TTC/internal/engine"
	"github.com/TariqLash/TTC/internal/observability"
	"github.com/TariqLash/TTC/internal/oracle"
	"github.com/TariqLash/TTC/internal/token"
)

type testEnv struct {
	router http.Handler
	weth   *token.Asset
	ttc    *token.Synthetic
	feeds  *oracle.FeedStore
}

func newTestEnv(t *testing.T, devMode bool) *testEnv {
	t.Helper()

	custody := uuid.New()
	ttc, auth := token.NewSynthetic("Tricoin", "TTC", custody)
	weth := token.NewAsset("Wrapped Ether", "WETH")

	feeds := oracle.NewFeedStore()
	feeds.SetPrice("ETH/USD", big.NewInt(2000_00000000), 8)

	reg, err := engine.NewRegistry(
		[]string{"WETH"},
		[]string{"ETH/USD"},
		map[string]engine.CollateralAsset{"WETH": weth},
	)
	require.NoError(t, err)

	eng := engine.New(reg, oracle.NewAdapter(feeds), ttc, auth, nil, nil, zerolog.Nop())
	h := NewHandler(eng, ttc, map[string]*token.Asset{"WETH": weth}, feeds, nil, devMode, zerolog.Nop())
	router := NewRouter(h, observability.NewHealthChecker(), nil, zerolog.Nop())

	return &testEnv{router: router, weth: weth, ttc: ttc, feeds: feeds}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

const wadSuffix = "000000000000000000"

func TestDepositMintAndQueryAccount(t *testing.T) {
	env := newTestEnv(t, true)
	account := uuid.New().String()

	rec := env.do(t, http.MethodPost, "/api/v1/dev/faucet", faucetRequest{
		Account: account, Asset: "WETH", Amount: "10" + wadSuffix,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/approvals", approveRequest{
		Account: account, Token: "WETH", Amount: "10" + wadSuffix,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/positions/deposit-and-mint", depositAndMintRequest{
		Account:          account,
		Asset:            "WETH",
		CollateralAmount: "10" + wadSuffix,
		MintAmount:       "100" + wadSuffix,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/accounts/"+account, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "100"+wadSuffix, resp.Debt)
	require.Equal(t, "20000"+wadSuffix, resp.CollateralValueUsd)
	require.Equal(t, "100"+wadSuffix, resp.TTCBalance)
	require.Equal(t, map[string]string{"WETH": "10" + wadSuffix}, resp.Collateral)
	require.Equal(t, "100"+wadSuffix, resp.HealthFactor)
}

func TestMintBeyondLimitReturnsConflict(t *testing.T) {
	env := newTestEnv(t, true)
	account := uuid.New().String()

	env.do(t, http.MethodPost, "/api/v1/dev/faucet", faucetRequest{Account: account, Asset: "WETH", Amount: "1" + wadSuffix})
	env.do(t, http.MethodPost, "/api/v1/approvals", approveRequest{Account: account, Token: "WETH", Amount: "1" + wadSuffix})
	env.do(t, http.MethodPost, "/api/v1/positions/deposit", depositRequest{Account: account, Asset: "WETH", Amount: "1" + wadSuffix})

	rec := env.do(t, http.MethodPost, "/api/v1/positions/mint", mintRequest{
		Account: account, Amount: "5000" + wadSuffix,
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t, true)
	account := uuid.New().String()

	cases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"bad account", "/api/v1/positions/deposit", depositRequest{Account: "nope", Asset: "WETH", Amount: "1"}, http.StatusBadRequest},
		{"bad amount", "/api/v1/positions/deposit", depositRequest{Account: account, Asset: "WETH", Amount: "1.5"}, http.StatusBadRequest},
		{"zero amount", "/api/v1/positions/deposit", depositRequest{Account: account, Asset: "WETH", Amount: "0"}, http.StatusBadRequest},
		{"unknown asset", "/api/v1/positions/deposit", depositRequest{Account: account, Asset: "DOGE", Amount: "1"}, http.StatusBadRequest},
		{"unknown approve token", "/api/v1/approvals", approveRequest{Account: account, Token: "DOGE", Amount: "1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := env.do(t, http.MethodPost, tc.path, tc.body)
		require.Equal(t, tc.want, rec.Code, "%s: %s", tc.name, rec.Body.String())
	}
}

func TestDepositWithoutApprovalReturns422(t *testing.T) {
	env := newTestEnv(t, true)
	account := uuid.New().String()

	env.do(t, http.MethodPost, "/api/v1/dev/faucet", faucetRequest{Account: account, Asset: "WETH", Amount: "1" + wadSuffix})

	rec := env.do(t, http.MethodPost, "/api/v1/positions/deposit", depositRequest{
		Account: account, Asset: "WETH", Amount: "1" + wadSuffix,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestLiquidateHealthyReturnsConflict(t *testing.T) {
	env := newTestEnv(t, true)
	user := uuid.New().String()
	liquidator := uuid.New().String()

	env.do(t, http.MethodPost, "/api/v1/dev/faucet", faucetRequest{Account: user, Asset: "WETH", Amount: "10" + wadSuffix})
	env.do(t, http.MethodPost, "/api/v1/approvals", approveRequest{Account: user, Token: "WETH", Amount: "10" + wadSuffix})
	env.do(t, http.MethodPost, "/api/v1/positions/deposit-and-mint", depositAndMintRequest{
		Account: user, Asset: "WETH", CollateralAmount: "10" + wadSuffix, MintAmount: "100" + wadSuffix,
	})

	rec := env.do(t, http.MethodPost, "/api/v1/liquidations", liquidateRequest{
		Liquidator: liquidator, User: user, Asset: "WETH", DebtToCover: "100" + wadSuffix,
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestPriceEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/v1/assets/WETH/price", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ETH/USD", resp.Feed)
	require.Equal(t, "200000000000", resp.Price)
	require.Equal(t, int32(8), resp.Decimals)

	rec = env.do(t, http.MethodGet, "/api/v1/assets/DOGE/price", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversionEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	// 2 ETH at $2000 is $4000.
	rec := env.do(t, http.MethodGet, "/api/v1/assets/WETH/usd-value?amount=2"+wadSuffix, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	require.Equal(t, "4000"+wadSuffix, conv["usd_value"])

	// $100 at $2000 is 0.05 ETH.
	rec = env.do(t, http.MethodGet, "/api/v1/assets/WETH/amount?usd=100"+wadSuffix, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	require.Equal(t, "50000000000000000", conv["amount"])

	rec = env.do(t, http.MethodGet, "/api/v1/assets/WETH/usd-value?amount=nope", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	account := uuid.New().String()

	// No debt saturates to the largest representable factor.
	rec := env.do(t, http.MethodGet, "/api/v1/accounts/"+account+"/health", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, account, resp["account"])
	require.NotEmpty(t, resp["health_factor"])
}

func TestParamsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/params", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp paramsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(50), resp.LiquidationThreshold)
	require.Equal(t, int64(100), resp.LiquidationPrecision)
	require.Equal(t, int64(10), resp.LiquidationBonus)
	require.Equal(t, "1"+wadSuffix, resp.MinHealthFactor)
	require.Equal(t, []string{"WETH"}, resp.Assets)
}

func TestDevRoutesDisabledInProduction(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/v1/dev/faucet", faucetRequest{
		Account: uuid.New().String(), Asset: "WETH", Amount: "1",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationsWithoutStoreReturns501(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/accounts/"+uuid.New().String()+"/operations", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Readiness starts false until startup wiring flips it.
	rec = env.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
