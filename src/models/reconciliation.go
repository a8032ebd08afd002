package models

import "time"

// Period is a half-open reporting interval [Start, End).
type Period struct {
	Year  int       `json:"year"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// YearPeriod returns the calendar-year period in UTC.
func YearPeriod(year int) Period {
	return Period{
		Year:  year,
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// CurrencyTotals holds one total per tracked currency.
type CurrencyTotals struct {
	HBD  float64 `json:"hbd"`
	HIVE float64 `json:"hive"`
}

// Get returns the total for the given currency tag.
func (c CurrencyTotals) Get(currency string) float64 {
	if currency == CurrencyHIVE {
		return c.HIVE
	}
	return c.HBD
}

// Difference compares a paperwork-side total against the transfer-side total.
type Difference struct {
	AbsoluteDifference float64 `json:"absolute_difference"`
	PercentDifference  float64 `json:"percent_difference"` // relative to the transfer side
}

// DirectionDifference holds one Difference per currency.
type DirectionDifference struct {
	HBD  Difference `json:"hbd"`
	HIVE Difference `json:"hive"`
}

// SourceStatus records whether a source loaded. A failed source is never reported as zero.
type SourceStatus struct {
	Name    string `json:"name"`
	Loaded  bool   `json:"loaded"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// OutgoingSection compares ledger disbursements to transfers sent by the organization.
type OutgoingSection struct {
	Ledger     *CurrencyTotals      `json:"ledger,omitempty"`
	Transfers  *CurrencyTotals      `json:"transfers,omitempty"`
	Difference *DirectionDifference `json:"difference,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// IncomingSection compares curated loans/refunds to transfers received by the organization.
type IncomingSection struct {
	Transfers       *CurrencyTotals      `json:"transfers,omitempty"`
	FromLoanWallets *CurrencyTotals      `json:"from_loan_wallets,omitempty"`
	FromOthers      *CurrencyTotals      `json:"from_others,omitempty"`
	Manual          *CurrencyTotals      `json:"manual,omitempty"`
	Loans           *CurrencyTotals      `json:"loans,omitempty"`
	LoanRefunds     *CurrencyTotals      `json:"loan_refunds,omitempty"`
	EventRefunds    *CurrencyTotals      `json:"event_refunds,omitempty"`
	Difference      *DirectionDifference `json:"difference,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// UnaccountedSet lists blockchain activity with no same-day paperwork. Sample is bounded;
// Count and TotalAmount always cover the full set.
type UnaccountedSet struct {
	Count           int            `json:"count"`
	TotalAmount     CurrencyTotals `json:"total_amount"`
	SampleLimitedTo int            `json:"sample_limited_to"`
	Sample          []Transfer     `json:"sample"`
}

// UnaccountedSection holds both directions; a nil set comes with its error.
type UnaccountedSection struct {
	Outgoing      *UnaccountedSet `json:"outgoing,omitempty"`
	OutgoingError string          `json:"outgoing_error,omitempty"`
	Incoming      *UnaccountedSet `json:"incoming,omitempty"`
	IncomingError string          `json:"incoming_error,omitempty"`
}

// ReconciliationReport is the result of reconciling one period across all sources.
type ReconciliationReport struct {
	Period       Period             `json:"period"`
	Organization string             `json:"organization"`
	Sources      []SourceStatus     `json:"sources"`
	Outgoing     OutgoingSection    `json:"outgoing"`
	Incoming     IncomingSection    `json:"incoming"`
	Unaccounted  UnaccountedSection `json:"unaccounted"`
	Partial      bool               `json:"partial"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
