package models

// VerificationStatus is the outcome of verifying one ledger transaction against the chain.
type VerificationStatus string

const (
	StatusVerified    VerificationStatus = "verified"
	StatusDiscrepancy VerificationStatus = "discrepancy"
	StatusNotFound    VerificationStatus = "not_found"
	StatusUnverified  VerificationStatus = "unverified"
)

// Discrepancy describes how the best amount match differs from the declared transaction.
type Discrepancy struct {
	AmountDelta      float64 `json:"amount_delta"`
	DateDeltaDays    int     `json:"date_delta_days"`
	CurrencyMismatch bool    `json:"currency_mismatch"`
	DeclaredCurrency string  `json:"declared_currency"`
	TransferCurrency string  `json:"transfer_currency"`
}

// VerificationResult is produced once per input transaction.
type VerificationResult struct {
	TransactionID    string             `json:"transaction_id"`
	Recipient        string             `json:"recipient"`
	Date             string             `json:"date"`
	Status           VerificationStatus `json:"status"`
	ToleranceDays    int                `json:"tolerance_days"`
	Transfer         *Transfer          `json:"transfer,omitempty"`
	Discrepancy      *Discrepancy       `json:"discrepancy,omitempty"`
	CurrencyMismatch bool               `json:"currency_mismatch"`
	SharedTransfer   bool               `json:"shared_transfer"` // Transfer already matched an earlier transaction of the batch
	Excluded         bool               `json:"excluded"`
	Reason           string             `json:"reason,omitempty"`
}

// VerificationSummary counts the statuses of a batch.
type VerificationSummary struct {
	BatchID         string `json:"batch_id"`
	Account         string `json:"account"`
	Total           int    `json:"total"`
	Verified        int    `json:"verified"`
	Discrepancies   int    `json:"discrepancies"`
	NotFound        int    `json:"not_found"`
	Unverified      int    `json:"unverified"`
	Excluded        int    `json:"excluded"`
	CurrencySwaps   int    `json:"currency_swaps"`
	SharedTransfers int    `json:"shared_transfers"`
	Error           string `json:"error,omitempty"`
}

// VerificationReport is the payload returned by the verification endpoints.
type VerificationReport struct {
	Summary VerificationSummary  `json:"summary"`
	Results []VerificationResult `json:"results"`
}
