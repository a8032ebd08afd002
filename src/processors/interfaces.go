package processors

import (
	"context"

	"github.com/hivefund/reconciler/src/models"
)

// TransferSource returns the time-ordered transfers involving an account. The source owns
// connection handling, auth and retry; failures surface as *models.SourceUnavailableError.
type TransferSource interface {
	Transfers(ctx context.Context, account string, r *models.DateRange) ([]models.Transfer, error)
}

// ProgressFunc is called after each transaction of a verification batch.
type ProgressFunc func(done, total int)

// VerificationProcessor batch-verifies ledger transactions against chain transfers.
type VerificationProcessor interface {
	VerifyBatch(ctx context.Context, transactions []models.Transaction, counterpartyAccount string, baseToleranceDays int, onProgress ProgressFunc) ([]models.VerificationResult, error)
}

// ReconciliationProcessor aggregates and cross-checks directional totals for a period.
type ReconciliationProcessor interface {
	Reconcile(in ReconcileInput) models.ReconciliationReport
}

// CategoryMapper maps transactions onto a fixed taxonomy.
type CategoryMapper interface {
	MapToCategory(tx models.Transaction, taxonomy models.Taxonomy) (string, bool)
	Classify(tx models.Transaction, taxonomy models.Taxonomy) models.CategoryMatch
	MapTransactions(txs []models.Transaction, taxonomy models.Taxonomy) models.MappingResult
}

// ScaleCorrector rescales mapped totals against an authoritative total.
type ScaleCorrector interface {
	Scale(mapping models.MappingResult, authoritativeTotal float64) models.CategoryReport
}

// RateLookup resolves the average HIVE->HBD rate for a year.
type RateLookup interface {
	YearlyRate(year int) (float64, bool)
}
