package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hivefund/reconciler/src/security"
	"github.com/hivefund/reconciler/src/utils"
	"golang.org/x/time/rate"
)

// NewRouter builds the API routes.
func NewRouter(verification *VerificationHandler, reconciliation *ReconciliationHandler, auth *security.AuthService, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(RateLimitMiddleware(limiter))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", reconciliation.HandleHealth)

		r.Get("/verification/{year}", verification.HandleVerifyPeriod)
		r.Post("/verification", verification.HandleVerifyBatch)
		r.Get("/reconciliation/{year}", reconciliation.HandleReconcile)
		r.Get("/categories/{year}", reconciliation.HandleCategories)

		r.Group(func(r chi.Router) {
			r.Use(AdminMiddleware(auth))
			r.Post("/admin/cache/clear", reconciliation.HandleClearCache)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})
	return r
}
