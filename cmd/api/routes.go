package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"finhealth/internal/shared/config"
	"finhealth/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)

	// The aggregator cannot present a bearer token.
	mux.HandleFunc("POST /webhooks/aggregator", deps.WebhookHandler.HandleAggregatorWebhook)

	authMiddleware := middleware.Auth(deps.JWT)
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(h))
	}

	th := deps.TransactionHandler
	protected("GET /api/transactions", th.HandleListTransactions)
	protected("POST /api/transactions", th.HandleCreateTransaction)
	protected("DELETE /api/transactions", th.HandleClearTransactions)
	protected("POST /api/transactions/import", th.HandleImport)
	protected("GET /api/transactions/{id}", th.HandleGetTransaction)
	protected("PUT /api/transactions/{id}", th.HandleUpdateTransaction)
	protected("DELETE /api/transactions/{id}", th.HandleDeleteTransaction)
	protected("POST /api/transactions/{id}/not-duplicate", th.HandleNotDuplicate)

	ch := deps.CategoryHandler
	protected("GET /api/categories", ch.HandleListCategories)
	protected("POST /api/categories", ch.HandleCreateCategory)
	protected("GET /api/categories/{id}", ch.HandleGetCategory)
	protected("PUT /api/categories/{id}", ch.HandleUpdateCategory)
	protected("DELETE /api/categories/{id}", ch.HandleDeleteCategory)

	gh := deps.GoalHandler
	protected("GET /api/goals", gh.HandleListGoals)
	protected("POST /api/goals", gh.HandleCreateGoal)
	protected("GET /api/goals/{id}", gh.HandleGetGoal)
	protected("PUT /api/goals/{id}", gh.HandleUpdateGoal)
	protected("DELETE /api/goals/{id}", gh.HandleDeleteGoal)
	protected("POST /api/goals/{id}/contribute", gh.HandleContribute)

	protected("GET /api/score", deps.ScoreHandler.HandleGetScore)
	protected("POST /api/score/recompute", deps.ScoreHandler.HandleRecompute)

	lh := deps.LinkHandler
	protected("POST /api/links/token", lh.HandleCreateToken)
	protected("POST /api/links/exchange", lh.HandleExchange)
	protected("GET /api/links", lh.HandleListLinks)
	protected("DELETE /api/links/{id}", lh.HandleRemoveLink)
	protected("POST /api/links/{id}/refresh", lh.HandleRefreshLink)
	protected("GET /api/held-transactions", lh.HandleListHeld)
	protected("POST /api/held-transactions/{id}/accept", lh.HandleAcceptHeld)
	protected("POST /api/held-transactions/{id}/dismiss", lh.HandleDismissHeld)

	handler := middleware.Tracing(mux)
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.Logging(log)(handler)

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Info().Msg("TLS security middleware enabled (HSTS)")
	}

	return handler
}
