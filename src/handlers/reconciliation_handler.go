// src/handlers/reconciliation_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/services"
	"github.com/hivefund/reconciler/src/utils"
)

type ReconciliationHandler struct {
	service services.ReconciliationService
	started time.Time
}

func NewReconciliationHandler(service services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service, started: time.Now()}
}

// HandleHealth serves GET /api/health.
func (h *ReconciliationHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}, http.StatusOK)
}

// HandleReconcile serves GET /api/reconciliation/{year}. A report built from partial sources is
// still a 200; the failed sources are listed inside it.
func (h *ReconciliationHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	year, err := parseYear(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.Reconcile(r.Context(), year)
	if report == nil {
		ctxLogger.Error("Error reconciling period", "year", year, "error", err)
		sendServiceError(w, err)
		return
	}
	if err != nil {
		ctxLogger.Warn("Returning partial reconciliation", "year", year, "error", err)
	}
	utils.SendJSON(w, report, http.StatusOK)
}

// HandleCategories serves GET /api/categories/{year}.
func (h *ReconciliationHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	year, err := parseYear(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.CategoryReport(r.Context(), year)
	if err != nil {
		ctxLogger.Error("Error building category report", "year", year, "error", err)
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

// HandleClearCache serves POST /api/admin/cache/clear.
func (h *ReconciliationHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	logger.FromContext(r.Context()).Info("Caches cleared by admin")
	utils.SendJSON(w, map[string]string{"message": "caches cleared"}, http.StatusOK)
}
