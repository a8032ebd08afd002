package sources

import (
	"context"

	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
)

// TransferSource is the chain transfer log as seen through the relational bridge.
type TransferSource = processors.TransferSource

// LedgerSource returns the processed ledger.
type LedgerSource interface {
	Transactions(ctx context.Context) ([]models.Transaction, error)
}

// ManualRecordsSource returns the curated loans and refunds.
type ManualRecordsSource interface {
	ManualRecords(ctx context.Context) ([]models.ManualRecord, error)
}
