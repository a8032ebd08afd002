// src/processors/verification_processor.go
package processors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
)

const (
	reasonExcluded       = "loan/refund record; reconciled through incoming totals"
	reasonNoAmount       = "no declared amount"
	reasonNoRecipient    = "no transfer from counterparty to recipient with this amount"
	reasonSourceDown     = "transfer source unavailable"
	reasonOutsideWindow  = "amount matched outside the date window"
	reasonCurrencySwap   = "amount and date matched; currency tag differs"
	reasonSharedTransfer = "transfer already matched an earlier transaction of this batch"
)

type batchIDKey struct{}

// WithBatchID attaches a caller-chosen batch id to ctx for VerifyBatch to use.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchIDFromContext returns the batch id stored in ctx, or a fresh one.
func BatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(batchIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// verificationProcessorImpl implements VerificationProcessor.
type verificationProcessorImpl struct {
	source TransferSource
	policy TolerancePolicy
}

// NewVerificationProcessor creates a VerificationProcessor. A nil policy means FixedTolerance.
func NewVerificationProcessor(source TransferSource, policy TolerancePolicy) VerificationProcessor {
	if policy == nil {
		policy = FixedTolerance
	}
	return &verificationProcessorImpl{source: source, policy: policy}
}

// VerifyBatch returns exactly one result per transaction, in input order. The counterparty's
// transfers are fetched once for the whole batch; if that fetch fails every result stays
// unverified and the error is returned. Matching is first-match-wins per transaction: two
// identical ledger lines may link to the same transfer, which is flagged via SharedTransfer.
func (p *verificationProcessorImpl) VerifyBatch(ctx context.Context, transactions []models.Transaction, counterpartyAccount string, baseToleranceDays int, onProgress ProgressFunc) ([]models.VerificationResult, error) {
	batchID := BatchIDFromContext(ctx)
	log := logger.FromContext(ctx).With("batchID", batchID, "account", counterpartyAccount)

	results := make([]models.VerificationResult, len(transactions))
	pending := 0
	for i, tx := range transactions {
		results[i] = models.VerificationResult{
			TransactionID: tx.ID,
			Recipient:     tx.Recipient,
			Date:          tx.Date.Format("2006-01-02"),
			Status:        models.StatusUnverified,
		}
		if tx.IsLoanOrRefund() {
			results[i].Excluded = true
			results[i].Reason = reasonExcluded
			continue
		}
		pending++
	}

	if pending == 0 {
		reportProgress(onProgress, len(transactions), len(transactions))
		return results, nil
	}

	all, err := p.source.Transfers(ctx, counterpartyAccount, nil)
	if err != nil {
		for i := range results {
			if !results[i].Excluded {
				results[i].Reason = reasonSourceDown
			}
		}
		log.Error("Transfer fetch failed; batch left unverified", "transactions", len(transactions), "error", err)
		return results, fmt.Errorf("verify batch %s: %w", batchID, models.NewSourceUnavailable("transfers", err))
	}

	account := NormalizeAccount(counterpartyAccount)
	byRecipient := make(map[string][]models.Transfer)
	outbound := 0
	for _, t := range all {
		if NormalizeAccount(t.Sender) != account {
			continue
		}
		key := NormalizeAccount(t.Recipient)
		byRecipient[key] = append(byRecipient[key], t)
		outbound++
	}
	log.Debug("Transfers fetched for batch", "fetched", len(all), "outbound", outbound, "transactions", len(transactions))

	claimed := make(map[string]string) // transfer ID -> first transaction ID
	for i, tx := range transactions {
		if results[i].Excluded {
			reportProgress(onProgress, i+1, len(transactions))
			continue
		}
		tolerance := p.policy(tx.Date, baseToleranceDays)
		classify(&results[i], tx, byRecipient[NormalizeAccount(tx.Recipient)], tolerance)

		if t := results[i].Transfer; t != nil {
			if first, ok := claimed[t.ID]; ok {
				results[i].SharedTransfer = true
				if results[i].Reason == "" {
					results[i].Reason = reasonSharedTransfer
				}
				log.Debug("Transfer matched by more than one transaction", "transferID", t.ID, "first", first, "second", tx.ID)
			} else {
				claimed[t.ID] = tx.ID
			}
		}
		reportProgress(onProgress, i+1, len(transactions))
	}

	summary := Summarize(results)
	logger.Event(ctx, slog.LevelInfo, "verification.batch", "Verification batch completed",
		"batchID", batchID,
		"total", summary.Total,
		"verified", summary.Verified,
		"discrepancies", summary.Discrepancies,
		"notFound", summary.NotFound,
		"excluded", summary.Excluded,
		"sharedTransfers", summary.SharedTransfers)
	return results, nil
}

// classify fills in the status of one result. All declared legs are ranked together inside the
// date window; only if none matches is the window dropped to look for a dated discrepancy.
func classify(res *models.VerificationResult, tx models.Transaction, candidates []models.Transfer, tolerance int) {
	res.ToleranceDays = tolerance
	legs := tx.Legs()
	if len(legs) == 0 {
		res.Status = models.StatusNotFound
		res.Reason = reasonNoAmount
		return
	}

	if best, _, ok := bestLegMatch(legs, candidates, tx.Date, tolerance); ok {
		transfer := best.Transfer
		res.Status = models.StatusVerified
		res.Transfer = &transfer
		res.CurrencyMismatch = best.CurrencyMismatch
		if best.CurrencyMismatch {
			res.Reason = reasonCurrencySwap
		}
		return
	}

	if best, leg, ok := bestLegMatch(legs, candidates, tx.Date, UnboundedWindow); ok {
		transfer := best.Transfer
		res.Status = models.StatusDiscrepancy
		res.Transfer = &transfer
		res.CurrencyMismatch = best.CurrencyMismatch
		res.Reason = reasonOutsideWindow
		res.Discrepancy = &models.Discrepancy{
			AmountDelta:      best.AmountDelta,
			DateDeltaDays:    best.AbsDateDeltaDays,
			CurrencyMismatch: best.CurrencyMismatch,
			DeclaredCurrency: leg.Currency,
			TransferCurrency: transfer.Currency,
		}
		return
	}

	res.Status = models.StatusNotFound
	res.Reason = reasonNoRecipient
}

// legMatch is a ranked match together with the leg that produced it.
type legMatch struct {
	Match
	leg      models.Leg
	legIndex int
}

// bestLegMatch ranks every leg's candidates together: currency-exact first, then the smallest
// date delta, then leg order and candidate order.
func bestLegMatch(legs []models.Leg, candidates []models.Transfer, date time.Time, window int) (Match, models.Leg, bool) {
	var all []legMatch
	for i, leg := range legs {
		for _, m := range Rank(candidates, leg.Amount, leg.Currency, date, window) {
			all = append(all, legMatch{Match: m, leg: leg, legIndex: i})
		}
	}
	if len(all) == 0 {
		return Match{}, models.Leg{}, false
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.CurrencyMismatch != b.CurrencyMismatch {
			return !a.CurrencyMismatch
		}
		if a.AbsDateDeltaDays != b.AbsDateDeltaDays {
			return a.AbsDateDeltaDays < b.AbsDateDeltaDays
		}
		if a.legIndex != b.legIndex {
			return a.legIndex < b.legIndex
		}
		return a.Index < b.Index
	})
	return all[0].Match, all[0].leg, true
}

func reportProgress(fn ProgressFunc, done, total int) {
	if fn != nil {
		fn(done, total)
	}
}

// Summarize counts the statuses of a batch.
func Summarize(results []models.VerificationResult) models.VerificationSummary {
	s := models.VerificationSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case models.StatusVerified:
			s.Verified++
		case models.StatusDiscrepancy:
			s.Discrepancies++
		case models.StatusNotFound:
			s.NotFound++
		case models.StatusUnverified:
			s.Unverified++
		}
		if r.Excluded {
			s.Excluded++
		}
		if r.CurrencyMismatch {
			s.CurrencySwaps++
		}
		if r.SharedTransfer {
			s.SharedTransfers++
		}
	}
	return s
}
