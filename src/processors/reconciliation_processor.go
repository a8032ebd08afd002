// src/processors/reconciliation_processor.go
package processors

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/shopspring/decimal"
)

// DefaultSampleLimit bounds the unaccounted samples when the caller passes no limit.
const DefaultSampleLimit = 50

const (
	SourceLedger    = "ledger"
	SourceTransfers = "transfers"
	SourceManual    = "manual_records"
)

// ReconcileInput carries every source for one period. A non-nil *Err marks the source as
// unreadable; its slice is then ignored.
type ReconcileInput struct {
	Period       models.Period
	Organization string
	Ledger       []models.Transaction
	LedgerErr    error
	Transfers    []models.Transfer
	TransfersErr error
	Manual       []models.ManualRecord
	ManualErr    error
	LoanWallets  []string
	SampleLimit  int
}

// reconciliationProcessorImpl implements ReconciliationProcessor.
type reconciliationProcessorImpl struct{}

// NewReconciliationProcessor creates a new instance of ReconciliationProcessor.
func NewReconciliationProcessor() ReconciliationProcessor {
	return &reconciliationProcessorImpl{}
}

// Reconcile sums and cross-checks directional totals. Sections whose inputs failed to load are
// left nil and carry the source error instead of zeros.
func (p *reconciliationProcessorImpl) Reconcile(in ReconcileInput) models.ReconciliationReport {
	org := NormalizeAccount(in.Organization)
	limit := in.SampleLimit
	if limit <= 0 {
		limit = DefaultSampleLimit
	}

	report := models.ReconciliationReport{
		Period:       in.Period,
		Organization: in.Organization,
		GeneratedAt:  time.Now().UTC(),
	}

	var ledger []models.Transaction
	if in.LedgerErr == nil {
		for _, tx := range in.Ledger {
			if in.Period.Contains(tx.Date) {
				ledger = append(ledger, tx)
			}
		}
	}

	var outgoing, incoming []models.Transfer
	if in.TransfersErr == nil {
		for _, t := range in.Transfers {
			if !in.Period.Contains(t.Timestamp) {
				continue
			}
			sender, recipient := NormalizeAccount(t.Sender), NormalizeAccount(t.Recipient)
			switch {
			case sender == org && recipient == org:
				// self-transfers move nothing
			case sender == org:
				outgoing = append(outgoing, t)
			case recipient == org:
				incoming = append(incoming, t)
			}
		}
		sortTransfers(outgoing)
		sortTransfers(incoming)
	}

	var manual []models.ManualRecord
	if in.ManualErr == nil {
		for _, m := range in.Manual {
			if in.Period.Contains(m.Date) {
				manual = append(manual, m)
			}
		}
	}

	report.Sources = []models.SourceStatus{
		sourceStatus(SourceLedger, len(ledger), in.LedgerErr),
		sourceStatus(SourceTransfers, len(outgoing)+len(incoming), in.TransfersErr),
		sourceStatus(SourceManual, len(manual), in.ManualErr),
	}
	report.Partial = in.LedgerErr != nil || in.TransfersErr != nil || in.ManualErr != nil

	// Outgoing: ledger disbursements vs transfers sent.
	if in.LedgerErr == nil {
		report.Outgoing.Ledger = ledgerTotals(ledger)
	}
	if in.TransfersErr == nil {
		report.Outgoing.Transfers = transferTotals(outgoing)
	}
	if report.Outgoing.Ledger != nil && report.Outgoing.Transfers != nil {
		report.Outgoing.Difference = difference(*report.Outgoing.Ledger, *report.Outgoing.Transfers)
	}
	report.Outgoing.Error = joinErrors(in.LedgerErr, in.TransfersErr)

	// Incoming: curated loans/refunds vs transfers received.
	if in.TransfersErr == nil {
		report.Incoming.Transfers = transferTotals(incoming)
		fromLoans, fromOthers := splitByWallet(incoming, in.LoanWallets)
		report.Incoming.FromLoanWallets = transferTotals(fromLoans)
		report.Incoming.FromOthers = transferTotals(fromOthers)
	}
	if in.ManualErr == nil {
		report.Incoming.Manual = manualTotals(manual, "")
		report.Incoming.Loans = manualTotals(manual, models.KindLoan)
		report.Incoming.LoanRefunds = manualTotals(manual, models.KindLoanRefund)
		report.Incoming.EventRefunds = manualTotals(manual, models.KindEventRefund)
	}
	if report.Incoming.Manual != nil && report.Incoming.Transfers != nil {
		report.Incoming.Difference = difference(*report.Incoming.Manual, *report.Incoming.Transfers)
	}
	report.Incoming.Error = joinErrors(in.ManualErr, in.TransfersErr)

	// Unaccounted: strict same-day, same-amount matching; outgoing also needs the same currency.
	if in.LedgerErr == nil && in.TransfersErr == nil {
		report.Unaccounted.Outgoing = unaccounted(outgoing, ledgerPool(ledger), true, limit)
	} else {
		report.Unaccounted.OutgoingError = report.Outgoing.Error
	}
	if in.ManualErr == nil && in.TransfersErr == nil {
		report.Unaccounted.Incoming = unaccounted(incoming, manualPool(manual), false, limit)
	} else {
		report.Unaccounted.IncomingError = report.Incoming.Error
	}

	if report.Outgoing.Difference != nil {
		logger.L.Info("Outgoing totals reconciled",
			"event", "reconcile.outgoing",
			"year", in.Period.Year,
			"ledgerHBD", report.Outgoing.Ledger.HBD,
			"transfersHBD", report.Outgoing.Transfers.HBD,
			"diffPctHBD", report.Outgoing.Difference.HBD.PercentDifference,
			"ledgerHIVE", report.Outgoing.Ledger.HIVE,
			"transfersHIVE", report.Outgoing.Transfers.HIVE,
			"diffPctHIVE", report.Outgoing.Difference.HIVE.PercentDifference)
	}
	if report.Partial {
		logger.L.Warn("Reconciliation report is partial",
			"event", "reconcile.partial",
			"year", in.Period.Year,
			"outgoingError", report.Outgoing.Error,
			"incomingError", report.Incoming.Error)
	}
	return report
}

func sourceStatus(name string, records int, err error) models.SourceStatus {
	if err != nil {
		return models.SourceStatus{Name: name, Error: err.Error()}
	}
	return models.SourceStatus{Name: name, Loaded: true, Records: records}
}

func joinErrors(errs ...error) string {
	var parts []string
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}

func sortTransfers(ts []models.Transfer) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].Timestamp.Equal(ts[j].Timestamp) {
			return ts[i].Timestamp.Before(ts[j].Timestamp)
		}
		return ts[i].ID < ts[j].ID
	})
}

// totalsAccumulator sums per-currency amounts exactly.
type totalsAccumulator struct {
	hbd  decimal.Decimal
	hive decimal.Decimal
}

func (a *totalsAccumulator) add(currency string, amount float64) {
	d := decimal.NewFromFloat(amount)
	if strings.EqualFold(currency, models.CurrencyHIVE) {
		a.hive = a.hive.Add(d)
		return
	}
	a.hbd = a.hbd.Add(d)
}

func (a *totalsAccumulator) totals() *models.CurrencyTotals {
	return &models.CurrencyTotals{
		HBD:  a.hbd.Round(3).InexactFloat64(),
		HIVE: a.hive.Round(3).InexactFloat64(),
	}
}

func ledgerTotals(txs []models.Transaction) *models.CurrencyTotals {
	var acc totalsAccumulator
	for _, tx := range txs {
		if tx.IsLoanOrRefund() {
			continue
		}
		acc.add(models.CurrencyHBD, tx.AmountHBD)
		acc.add(models.CurrencyHIVE, tx.AmountHIVE)
	}
	return acc.totals()
}

func transferTotals(ts []models.Transfer) *models.CurrencyTotals {
	var acc totalsAccumulator
	for _, t := range ts {
		acc.add(t.Currency, t.Amount)
	}
	return acc.totals()
}

// manualTotals sums records of the given kind; an empty kind sums all of them.
func manualTotals(records []models.ManualRecord, kind models.ManualRecordKind) *models.CurrencyTotals {
	var acc totalsAccumulator
	for _, m := range records {
		if kind != "" && m.Kind != kind {
			continue
		}
		acc.add(models.CurrencyHBD, m.AmountHBD)
		acc.add(models.CurrencyHIVE, m.AmountHIVE)
	}
	return acc.totals()
}

func splitByWallet(ts []models.Transfer, wallets []string) (fromWallets, others []models.Transfer) {
	known := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		known[NormalizeAccount(w)] = true
	}
	for _, t := range ts {
		if known[NormalizeAccount(t.Sender)] {
			fromWallets = append(fromWallets, t)
		} else {
			others = append(others, t)
		}
	}
	return fromWallets, others
}

func difference(paperwork, transfers models.CurrencyTotals) *models.DirectionDifference {
	return &models.DirectionDifference{
		HBD:  diff(paperwork.HBD, transfers.HBD),
		HIVE: diff(paperwork.HIVE, transfers.HIVE),
	}
}

func diff(paperwork, transfers float64) models.Difference {
	abs := decimal.NewFromFloat(transfers).Sub(decimal.NewFromFloat(paperwork)).Abs()
	d := models.Difference{AbsoluteDifference: abs.Round(3).InexactFloat64()}
	if transfers != 0 {
		pct := abs.Div(decimal.NewFromFloat(math.Abs(transfers))).Mul(decimal.NewFromInt(100))
		d.PercentDifference = pct.Round(4).InexactFloat64()
	}
	return d
}

// matchKey identifies a paperwork entry for the strict unaccounted check. An empty currency
// matches on day and amount alone.
type matchKey struct {
	day      string
	currency string
	milli    int64
}

func keyFor(t time.Time, currency string, amount float64) matchKey {
	return matchKey{
		day:      t.UTC().Format("2006-01-02"),
		currency: strings.ToUpper(currency),
		milli:    int64(math.Round(amount * 1000)),
	}
}

func ledgerPool(txs []models.Transaction) map[matchKey]int {
	pool := make(map[matchKey]int)
	for _, tx := range txs {
		if tx.IsLoanOrRefund() {
			continue
		}
		for _, leg := range tx.Legs() {
			pool[keyFor(tx.Date, leg.Currency, leg.Amount)]++
		}
	}
	return pool
}

// manualPool keys curated records by day and amount only.
func manualPool(records []models.ManualRecord) map[matchKey]int {
	pool := make(map[matchKey]int)
	for _, m := range records {
		for _, currency := range []string{models.CurrencyHBD, models.CurrencyHIVE} {
			if amount := m.AmountIn(currency); amount != 0 {
				pool[keyFor(m.Date, "", amount)]++
			}
		}
	}
	return pool
}

// unaccounted returns the transfers with no paperwork entry on the same calendar day for the same
// amount, and the same currency when matchCurrency is set. Each paperwork entry covers at most one
// transfer.
func unaccounted(ts []models.Transfer, pool map[matchKey]int, matchCurrency bool, limit int) *models.UnaccountedSet {
	set := &models.UnaccountedSet{SampleLimitedTo: limit, Sample: []models.Transfer{}}
	var acc totalsAccumulator
	for _, t := range ts {
		currency := t.Currency
		if !matchCurrency {
			currency = ""
		}
		k := keyFor(t.Timestamp, currency, t.Amount)
		if pool[k] > 0 {
			pool[k]--
			continue
		}
		set.Count++
		acc.add(t.Currency, t.Amount)
		if len(set.Sample) < limit {
			set.Sample = append(set.Sample, t)
		}
	}
	set.TotalAmount = *acc.totals()
	return set
}
