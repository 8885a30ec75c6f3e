package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TariqLash/TTC/internal/observability"
)

// NewRouter assembles the API routes around a handler.
func NewRouter(h *Handler, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log, metrics))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/params", h.GetParams)
		r.Get("/assets/{asset}/price", h.GetPrice)
		r.Get("/assets/{asset}/usd-value", h.GetUsdValue)
		r.Get("/assets/{asset}/amount", h.GetAssetAmount)

		r.Route("/positions", func(r chi.Router) {
			r.Post("/deposit", h.Deposit)
			r.Post("/mint", h.Mint)
			r.Post("/deposit-and-mint", h.DepositAndMint)
			r.Post("/redeem", h.Redeem)
			r.Post("/burn", h.Burn)
			r.Post("/redeem-for-ttc", h.RedeemForTTC)
		})

		r.Post("/liquidations", h.Liquidate)
		r.Post("/approvals", h.Approve)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/health", h.GetHealth)
			r.Get("/{id}/collateral/{asset}", h.GetCollateral)
			r.Get("/{id}/operations", h.ListOperations)
		})

		if h.devMode {
			r.Route("/dev", func(r chi.Router) {
				r.Post("/faucet", h.Faucet)
				r.Post("/prices", h.SetPrice)
			})
		}
	})

	return r
}
