// src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/hivefund/reconciler/src/models"
)

// Define common service errors
var (
	ErrInvalidYear        = errors.New("invalid reporting year")
	ErrInvalidTolerance   = errors.New("invalid tolerance")
	ErrAuthoritativeTotal = errors.New("authoritative total unavailable")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
)

// ReconciliationService is the single entry point shared by the HTTP API and the CLI.
type ReconciliationService interface {
	// VerifyPeriod verifies the organization's ledger lines of one year against its outgoing
	// transfers. When the transfer source fails, the report is still returned (every result
	// unverified) together with the error.
	VerifyPeriod(ctx context.Context, year, baseToleranceDays int) (*models.VerificationReport, error)
	VerifyTransactions(ctx context.Context, transactions []models.Transaction, account string, baseToleranceDays int) (*models.VerificationReport, error)

	// Reconcile returns the directional report for one year. A partial report is returned with
	// a multi-error naming every failed source.
	Reconcile(ctx context.Context, year int) (*models.ReconciliationReport, error)
	CategoryReport(ctx context.Context, year int) (*models.CategoryReport, error)

	InvalidateCache()
}
