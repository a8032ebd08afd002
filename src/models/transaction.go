// src/models/transaction.go
package models

import "time"

// Currency tags used by the ledger and the chain.
const (
	CurrencyHBD  = "HBD"  // stable, pegged
	CurrencyHIVE = "HIVE" // volatile
)

// Transaction is a processed, immutable ledger record. Flags and TotalSpend are derived once by
// the ledger processor.
type Transaction struct {
	ID           string    `json:"id"`
	Recipient    string    `json:"recipient"`
	Date         time.Time `json:"date"`
	AmountHBD    float64   `json:"hbd"`
	AmountHIVE   float64   `json:"hive"`
	HiveToHBD    float64   `json:"hive_hbd_rate"` // Rate used for TotalSpend; 0 when unknown
	Project      string    `json:"project"`
	Category     string    `json:"category"`
	Country      string    `json:"country"`
	Type         string    `json:"type"`
	IsLoan       bool      `json:"is_loan"`
	IsRefund     bool      `json:"is_refund"`
	IsLoanRefund bool      `json:"is_loan_refund"`
	TotalSpend   float64   `json:"total_spend"` // HBD-equivalent
}

// Leg is one declared (amount, currency) pair of a transaction.
type Leg struct {
	Amount   float64
	Currency string
}

// IsLoanOrRefund reports whether the record reconciles through the aggregator instead of
// blockchain verification.
func (t Transaction) IsLoanOrRefund() bool {
	return t.IsLoan || t.IsRefund || t.IsLoanRefund
}

// Legs returns the non-zero declared amounts, stable currency first.
func (t Transaction) Legs() []Leg {
	var legs []Leg
	if t.AmountHBD != 0 {
		legs = append(legs, Leg{Amount: t.AmountHBD, Currency: CurrencyHBD})
	}
	if t.AmountHIVE != 0 {
		legs = append(legs, Leg{Amount: t.AmountHIVE, Currency: CurrencyHIVE})
	}
	return legs
}

// Transfer is an immutable on-chain money movement. Amount and Timestamp are ground truth.
type Transfer struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Memo      string    `json:"memo"`
}

// ManualRecordKind classifies hand-curated inflows.
type ManualRecordKind string

const (
	KindLoan        ManualRecordKind = "loan"
	KindLoanRefund  ManualRecordKind = "loan_refund"
	KindEventRefund ManualRecordKind = "event_refund"
)

// ManualRecord is a loan, loan repayment or event refund from the curated dataset.
type ManualRecord struct {
	Date         time.Time        `json:"date"`
	AmountHBD    float64          `json:"hbd"`
	AmountHIVE   float64          `json:"hive"`
	Counterparty string           `json:"counterparty"`
	Kind         ManualRecordKind `json:"kind"`
	Note         string           `json:"note,omitempty"`
}

// AmountIn returns the record's amount in the given currency.
func (m ManualRecord) AmountIn(currency string) float64 {
	if currency == CurrencyHIVE {
		return m.AmountHIVE
	}
	return m.AmountHBD
}
