// src/processors/ledger_processor.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/security/validation"
)

// Year bound for ledger dates; anything outside is a typo.
const (
	minLedgerYear = 2016
	maxLedgerYear = 2100
	maxAmount     = 1e12
)

var acceptedDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02.01.2006",
}

// LedgerProcessor enriches raw ledger rows into immutable Transactions.
type LedgerProcessor struct {
	rates RateLookup
}

// NewLedgerProcessor creates a LedgerProcessor using rates for rows without their own conversion.
func NewLedgerProcessor(rates RateLookup) *LedgerProcessor {
	return &LedgerProcessor{rates: rates}
}

// Process converts every row it can. Rows with a bad date or amount are skipped and their errors
// returned alongside the processed transactions; they never fail the whole ledger.
func (p *LedgerProcessor) Process(rows []models.LedgerRow) ([]models.Transaction, []error) {
	txs := make([]models.Transaction, 0, len(rows))
	var skipped []error
	seen := make(map[string]int)

	for i, row := range rows {
		tx, err := p.ProcessRow(row)
		if err != nil {
			logger.L.Warn("Skipping ledger row", "row", i+1, "recipient", row.Recipient, "date", row.Date, "error", err)
			skipped = append(skipped, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		// identical lines are legitimate (repeated payouts); keep their IDs distinct
		seen[tx.ID]++
		if n := seen[tx.ID]; n > 1 {
			tx.ID = fmt.Sprintf("%s-%d", tx.ID, n)
		}
		txs = append(txs, tx)
	}
	return txs, skipped
}

// ProcessRow parses and enriches a single row.
func (p *LedgerProcessor) ProcessRow(row models.LedgerRow) (models.Transaction, error) {
	date, err := ParseLedgerDate(row.Date)
	if err != nil {
		return models.Transaction{}, err
	}

	hbd, err := parseAmount(row.AmountHBD, "hbd")
	if err != nil {
		return models.Transaction{}, err
	}
	hive, err := parseAmount(row.AmountHIVE, "hive")
	if err != nil {
		return models.Transaction{}, err
	}
	recordRate, err := parseAmount(row.HiveToHBD, "hive_hbd_rate")
	if err != nil {
		return models.Transaction{}, err
	}

	txType := clean(row.Type)
	project, category := clean(row.Project), clean(row.Category)
	if err := validation.ValidateStringMaxLength(project, validation.MaxLabelLength, "project"); err != nil {
		return models.Transaction{}, err
	}
	if err := validation.ValidateStringMaxLength(category, validation.MaxLabelLength, "category"); err != nil {
		return models.Transaction{}, err
	}
	if err := validation.ValidateStringMaxLength(txType, validation.DefaultMaxStringLength, "type"); err != nil {
		return models.Transaction{}, err
	}
	isLoan, isRefund, isLoanRefund := ClassifyType(txType)

	rate := 0.0
	if hive != 0 {
		rate, _ = ResolveRate(recordRate, date, p.rates)
	}

	tx := models.Transaction{
		Recipient:    NormalizeAccount(clean(row.Recipient)),
		Date:         date,
		AmountHBD:    hbd,
		AmountHIVE:   hive,
		HiveToHBD:    rate,
		Project:      project,
		Category:     category,
		Country:      clean(row.Country),
		Type:         txType,
		IsLoan:       isLoan,
		IsRefund:     isRefund,
		IsLoanRefund: isLoanRefund,
		TotalSpend:   hbd + hive*rate,
	}
	tx.ID = generateHash(row, tx)
	return tx, nil
}

// ParseLedgerDate accepts the layouts in acceptedDateLayouts within the sane year bound.
func ParseLedgerDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, &models.DateParseError{Value: s, Reason: "empty"}
	}
	for _, layout := range acceptedDateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		if t.Year() < minLedgerYear || t.Year() > maxLedgerYear {
			return time.Time{}, &models.DateParseError{Value: s, Reason: fmt.Sprintf("year outside %d-%d", minLedgerYear, maxLedgerYear)}
		}
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, &models.DateParseError{Value: s, Reason: "no accepted layout"}
}

// ClassifyType derives the loan/refund flags from the free-text type tag.
func ClassifyType(typeTag string) (isLoan, isRefund, isLoanRefund bool) {
	t := strings.ToLower(typeTag)
	loan := strings.Contains(t, "loan")
	refund := strings.Contains(t, "refund") || strings.Contains(t, "repay")
	switch {
	case loan && refund:
		return false, false, true
	case loan:
		return true, false, false
	case refund:
		return false, true, false
	}
	return false, false, false
}

func parseAmount(s, field string) (float64, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	cleaned = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(cleaned, models.CurrencyHIVE), models.CurrencyHBD))
	cleaned = strings.ReplaceAll(cleaned, ",", "") // thousands separators
	return validation.ValidateFloatString(cleaned, field, true, -maxAmount, maxAmount)
}

func clean(s string) string {
	return strings.TrimSpace(validation.SanitizeText(validation.StripUnprintable(s)))
}

// generateHash creates a stable ID from the raw line, or from the parsed fields when no raw line
// was captured.
func generateHash(row models.LedgerRow, tx models.Transaction) string {
	input := row.RawLine
	if input == "" {
		input = fmt.Sprintf("%s|%s|%.3f|%.3f|%s|%s|%s", tx.Recipient, tx.Date.Format("2006-01-02"), tx.AmountHBD, tx.AmountHIVE, tx.Project, tx.Category, tx.Type)
	}
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
