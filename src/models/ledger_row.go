// src/models/ledger_row.go
package models

// LedgerRow is the unified, intermediate representation of one ledger line as exported from the
// spreadsheet. Values are kept as strings; the ledger processor owns parsing and enrichment.
type LedgerRow struct {
	Recipient  string `json:"recipient"`
	Date       string `json:"date"`
	AmountHBD  string `json:"hbd"`
	AmountHIVE string `json:"hive"`
	HiveToHBD  string `json:"hive_hbd_rate"` // Optional pre-computed HIVE->HBD conversion rate
	Project    string `json:"project"`
	Category   string `json:"category"`
	Country    string `json:"country"`
	Type       string `json:"type"`
	RawLine    string `json:"-"`
}
