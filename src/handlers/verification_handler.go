// src/handlers/verification_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/hivefund/reconciler/src/security/validation"
	"github.com/hivefund/reconciler/src/services"
	"github.com/hivefund/reconciler/src/utils"
)

const maxVerifyBodyBytes = 4 << 20

// VerifyBatchRequest is the body of POST /api/verification. Rows use the ledger export's columns.
type VerifyBatchRequest struct {
	Account       string             `json:"account"`
	ToleranceDays *int               `json:"tolerance_days"`
	Transactions  []models.LedgerRow `json:"transactions"`
}

// VerifyBatchResponse adds the rows rejected before verification.
type VerifyBatchResponse struct {
	*models.VerificationReport
	Rejected []string `json:"rejected"`
}

type VerificationHandler struct {
	service          services.ReconciliationService
	ledgerProcessor  *processors.LedgerProcessor
	defaultTolerance int
}

func NewVerificationHandler(service services.ReconciliationService, ledgerProcessor *processors.LedgerProcessor, defaultTolerance int) *VerificationHandler {
	return &VerificationHandler{service: service, ledgerProcessor: ledgerProcessor, defaultTolerance: defaultTolerance}
}

// HandleVerifyPeriod serves GET /api/verification/{year}?tolerance=N.
func (h *VerificationHandler) HandleVerifyPeriod(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	year, err := parseYear(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tolerance := -1 // service default
	if raw := r.URL.Query().Get("tolerance"); raw != "" {
		tolerance, err = validation.ValidateIntString(raw, "tolerance", 0, 366)
		if err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctxLogger.Info("Handling VerifyPeriod", "year", year, "tolerance", tolerance)
	report, err := h.service.VerifyPeriod(r.Context(), year, tolerance)
	if err != nil {
		if report != nil {
			// the batch itself is returned, every line unverified
			ctxLogger.Error("Verification ran without transfer data", "year", year, "error", err)
			utils.SendJSON(w, report, statusFor(err))
			return
		}
		ctxLogger.Error("Error verifying period", "year", year, "error", err)
		sendServiceError(w, err)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

// HandleVerifyBatch serves POST /api/verification.
func (h *VerificationHandler) HandleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxVerifyBodyBytes)
	var req VerifyBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Transactions) > validation.MaxBatchSize {
		utils.SendJSONError(w, fmt.Sprintf("batch exceeds %d transactions", validation.MaxBatchSize), http.StatusBadRequest)
		return
	}
	if req.Account != "" {
		if err := validation.ValidateAccountName(req.Account, "account"); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	tolerance := h.defaultTolerance
	if req.ToleranceDays != nil {
		tolerance = *req.ToleranceDays
	}

	txs, rejected := h.ledgerProcessor.Process(req.Transactions)
	rejectedMsgs := make([]string, 0, len(rejected))
	for _, e := range rejected {
		rejectedMsgs = append(rejectedMsgs, e.Error())
	}

	ctxLogger.Info("Handling VerifyBatch", "account", req.Account, "transactions", len(txs), "rejected", len(rejected))
	report, err := h.service.VerifyTransactions(r.Context(), txs, req.Account, tolerance)
	if err != nil && report == nil {
		ctxLogger.Error("Error verifying batch", "error", err)
		sendServiceError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	utils.SendJSON(w, VerifyBatchResponse{VerificationReport: report, Rejected: rejectedMsgs}, status)
}
