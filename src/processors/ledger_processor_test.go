package processors

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/security/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLedgerDate(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"2023-03-15", "2023-03-15"},
		{" 2023-03-15 ", "2023-03-15"},
		{"2023-03-15T22:10:00Z", "2023-03-15"},
		{"2023-03-15 08:00:00", "2023-03-15"},
		{"15/03/2023", "2023-03-15"},
		{"15.03.2023", "2023-03-15"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLedgerDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, d(tt.expected), got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseLedgerDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2015-12-31", "2101-01-01", "03/15/2023"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseLedgerDate(in)
			var dpe *models.DateParseError
			assert.True(t, errors.As(err, &dpe), "expected DateParseError for %q", in)
		})
	}
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		tag                      string
		loan, refund, loanRefund bool
	}{
		{"Loan", true, false, false},
		{"Refund", false, true, false},
		{"loan refund", false, false, true},
		{"Loan Repayment", false, false, true},
		{"repay", false, true, false},
		{"Disbursement", false, false, false},
		{"", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			loan, refund, loanRefund := ClassifyType(tt.tag)
			assert.Equal(t, tt.loan, loan)
			assert.Equal(t, tt.refund, refund)
			assert.Equal(t, tt.loanRefund, loanRefund)
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("1,250.50 HBD", "hbd")
	require.NoError(t, err)
	assert.Equal(t, 1250.5, v)

	v, err = parseAmount(" 12 hive ", "hive")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	v, err = parseAmount("", "hive")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = parseAmount("twelve", "hbd")
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
}

func TestProcessRow(t *testing.T) {
	p := NewLedgerProcessor(YearlyRates{2023: 0.33})

	tx, err := p.ProcessRow(models.LedgerRow{
		Recipient:  " @Alice ",
		Date:       "2023-06-01",
		AmountHBD:  "10",
		AmountHIVE: "100",
		Project:    "<b>HiveFest</b>",
		Category:   "Tom &amp; Jerry",
		Type:       "Disbursement",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", tx.Recipient)
	assert.Equal(t, d("2023-06-01"), tx.Date)
	assert.Equal(t, "HiveFest", tx.Project)
	assert.Equal(t, "Tom & Jerry", tx.Category)
	assert.Equal(t, 0.33, tx.HiveToHBD)
	assert.InDelta(t, 43.0, tx.TotalSpend, 1e-9)
	assert.False(t, tx.IsLoanOrRefund())
	assert.Len(t, tx.ID, 16)
}

func TestProcessRow_RateResolution(t *testing.T) {
	p := NewLedgerProcessor(YearlyRates{2023: 0.33})

	own, err := p.ProcessRow(models.LedgerRow{Recipient: "a", Date: "2023-01-01", AmountHIVE: "10", HiveToHBD: "0.5"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, own.HiveToHBD)
	assert.Equal(t, 5.0, own.TotalSpend)

	missing, err := p.ProcessRow(models.LedgerRow{Recipient: "a", Date: "2019-01-01", AmountHBD: "2", AmountHIVE: "10"})
	require.NoError(t, err)
	assert.Zero(t, missing.HiveToHBD)
	assert.Equal(t, 2.0, missing.TotalSpend)

	stableOnly, err := p.ProcessRow(models.LedgerRow{Recipient: "a", Date: "2023-01-01", AmountHBD: "7"})
	require.NoError(t, err)
	assert.Zero(t, stableOnly.HiveToHBD)
}

func TestProcess_SkipsBadRowsAndDedupesIDs(t *testing.T) {
	rows := []models.LedgerRow{
		{Recipient: "alice", Date: "2023-01-01", AmountHBD: "5"},
		{Recipient: "alice", Date: "not a date", AmountHBD: "5"},
		{Recipient: "alice", Date: "2023-01-01", AmountHBD: "5"},
		{Recipient: "bob", Date: "2023-01-02", AmountHBD: "abc"},
		{Recipient: "carol", Date: "2023-01-03", AmountHBD: "1", Type: "Loan"},
	}

	txs, skipped := NewLedgerProcessor(nil).Process(rows)

	require.Len(t, txs, 3)
	require.Len(t, skipped, 2)
	assert.Contains(t, skipped[0].Error(), "row 2")
	var dpe *models.DateParseError
	assert.True(t, errors.As(skipped[0], &dpe))
	assert.Contains(t, skipped[1].Error(), "row 4")

	assert.Equal(t, txs[0].ID+"-2", txs[1].ID)
	assert.True(t, txs[2].IsLoan)
}

func TestResolveRate(t *testing.T) {
	rates := YearlyRates{2022: 0.4, 2021: 0}

	rate, src := ResolveRate(0.25, d("2022-05-01"), rates)
	assert.Equal(t, 0.25, rate)
	assert.Equal(t, RateFromRecord, src)

	rate, src = ResolveRate(0, d("2022-05-01"), rates)
	assert.Equal(t, 0.4, rate)
	assert.Equal(t, RateFromYearly, src)

	rate, src = ResolveRate(0, d("2021-05-01"), rates)
	assert.Zero(t, rate)
	assert.Equal(t, RateMissing, src)

	rate, src = ResolveRate(0, d("2022-05-01"), nil)
	assert.Zero(t, rate)
	assert.Equal(t, RateMissing, src)
}

func TestProcessRow_RejectsOverlongLabels(t *testing.T) {
	p := NewLedgerProcessor(nil)
	_, err := p.ProcessRow(models.LedgerRow{
		Recipient: "alice",
		Date:      "2023-01-01",
		AmountHBD: "1",
		Project:   strings.Repeat("x", validation.MaxLabelLength+1),
	})
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
}
