package processors

import (
	"errors"
	"testing"

	"github.com/hivefund/reconciler/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_EmptyInputs(t *testing.T) {
	report := NewReconciliationProcessor().Reconcile(ReconcileInput{Period: models.YearPeriod(2023), Organization: org})

	assert.False(t, report.Partial)
	require.NotNil(t, report.Outgoing.Ledger)
	require.NotNil(t, report.Outgoing.Transfers)
	assert.Equal(t, models.CurrencyTotals{}, *report.Outgoing.Ledger)
	assert.Equal(t, models.CurrencyTotals{}, *report.Outgoing.Transfers)
	assert.Equal(t, models.CurrencyTotals{}, *report.Incoming.Transfers)
	assert.Equal(t, models.CurrencyTotals{}, *report.Incoming.Manual)
	require.NotNil(t, report.Outgoing.Difference)
	assert.Zero(t, report.Outgoing.Difference.HBD.PercentDifference)

	require.NotNil(t, report.Unaccounted.Outgoing)
	require.NotNil(t, report.Unaccounted.Incoming)
	assert.Zero(t, report.Unaccounted.Outgoing.Count)
	assert.NotNil(t, report.Unaccounted.Outgoing.Sample)
	assert.Empty(t, report.Unaccounted.Outgoing.Sample)
	assert.Empty(t, report.Unaccounted.Incoming.Sample)
	assert.Len(t, report.Sources, 3)
}

func reconcileFixture() ReconcileInput {
	return ReconcileInput{
		Period:       models.YearPeriod(2023),
		Organization: "@Hive.Fund",
		Ledger: []models.Transaction{
			{ID: "l1", Recipient: "alice", Date: d("2023-02-01"), AmountHBD: 100},
			{ID: "l2", Recipient: "bob", Date: d("2023-02-03"), AmountHIVE: 40},
			{ID: "l3", Recipient: "lender", Date: d("2023-03-01"), AmountHBD: 500, IsLoanRefund: true},
			{ID: "l4", Recipient: "carol", Date: d("2022-12-31"), AmountHBD: 7},
		},
		Transfers: []models.Transfer{
			transfer("o1", "2023-02-01", org, "alice", 100, "HBD"),
			transfer("o2", "2023-02-04", org, "bob", 40, "HIVE"), // one day late: unaccounted by the strict check
			transfer("o3", "2023-02-10", org, "mallory", 25, "HBD"),
			transfer("i1", "2023-01-15", "lender", org, 1000, "HBD"),
			transfer("i2", "2023-04-01", "stranger", org, 3, "HIVE"),
			transfer("self", "2023-04-01", org, org, 9, "HBD"),
			transfer("old", "2022-06-01", org, "alice", 1, "HBD"),
			transfer("other", "2023-04-01", "x", "y", 1, "HBD"),
		},
		Manual: []models.ManualRecord{
			{Date: d("2023-01-15"), AmountHBD: 1000, Counterparty: "lender", Kind: models.KindLoan},
			{Date: d("2023-05-01"), AmountHIVE: 10, Counterparty: "venue", Kind: models.KindEventRefund},
		},
		LoanWallets: []string{"@Lender"},
	}
}

func TestReconcile_Totals(t *testing.T) {
	report := NewReconciliationProcessor().Reconcile(reconcileFixture())

	assert.Equal(t, models.CurrencyTotals{HBD: 100, HIVE: 40}, *report.Outgoing.Ledger)
	assert.Equal(t, models.CurrencyTotals{HBD: 125, HIVE: 40}, *report.Outgoing.Transfers)
	assert.Equal(t, 25.0, report.Outgoing.Difference.HBD.AbsoluteDifference)
	assert.Equal(t, 20.0, report.Outgoing.Difference.HBD.PercentDifference)
	assert.Equal(t, 0.0, report.Outgoing.Difference.HIVE.AbsoluteDifference)

	assert.Equal(t, models.CurrencyTotals{HBD: 1000, HIVE: 3}, *report.Incoming.Transfers)
	assert.Equal(t, models.CurrencyTotals{HBD: 1000}, *report.Incoming.FromLoanWallets)
	assert.Equal(t, models.CurrencyTotals{HIVE: 3}, *report.Incoming.FromOthers)
	assert.Equal(t, models.CurrencyTotals{HBD: 1000, HIVE: 10}, *report.Incoming.Manual)
	assert.Equal(t, models.CurrencyTotals{HBD: 1000}, *report.Incoming.Loans)
	assert.Equal(t, models.CurrencyTotals{}, *report.Incoming.LoanRefunds)
	assert.Equal(t, models.CurrencyTotals{HIVE: 10}, *report.Incoming.EventRefunds)

	// the record side (10) exceeds the transfer side (3): percent is relative to transfers
	assert.Equal(t, 7.0, report.Incoming.Difference.HIVE.AbsoluteDifference)
	assert.InDelta(t, 233.3333, report.Incoming.Difference.HIVE.PercentDifference, 1e-4)
}

func TestReconcile_Unaccounted(t *testing.T) {
	report := NewReconciliationProcessor().Reconcile(reconcileFixture())

	out := report.Unaccounted.Outgoing
	require.NotNil(t, out)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []string{"o2", "o3"}, []string{out.Sample[0].ID, out.Sample[1].ID})
	assert.Equal(t, models.CurrencyTotals{HBD: 25, HIVE: 40}, out.TotalAmount)

	in := report.Unaccounted.Incoming
	require.NotNil(t, in)
	assert.Equal(t, 1, in.Count)
	assert.Equal(t, "i2", in.Sample[0].ID)
}

func TestReconcile_PaperworkCoversOneTransferOnly(t *testing.T) {
	in := ReconcileInput{
		Period:       models.YearPeriod(2023),
		Organization: org,
		Ledger:       []models.Transaction{{ID: "l", Recipient: "a", Date: d("2023-02-01"), AmountHBD: 5}},
		Transfers: []models.Transfer{
			transfer("t1", "2023-02-01", org, "a", 5, "HBD"),
			transfer("t2", "2023-02-01", org, "a", 5, "HBD"),
		},
	}
	report := NewReconciliationProcessor().Reconcile(in)
	require.Equal(t, 1, report.Unaccounted.Outgoing.Count)
	assert.Equal(t, "t2", report.Unaccounted.Outgoing.Sample[0].ID)
}

func TestReconcile_IncomingCoverageIgnoresCurrency(t *testing.T) {
	in := ReconcileInput{
		Period:       models.YearPeriod(2023),
		Organization: org,
		Transfers: []models.Transfer{
			transfer("in", "2023-03-01", "lender", org, 100, "HIVE"),
			transfer("out", "2023-03-01", org, "alice", 100, "HIVE"),
		},
		Ledger: []models.Transaction{{ID: "l", Recipient: "alice", Date: d("2023-03-01"), AmountHBD: 100}},
		Manual: []models.ManualRecord{{Date: d("2023-03-01"), AmountHBD: 100, Counterparty: "lender", Kind: models.KindLoan}},
	}
	report := NewReconciliationProcessor().Reconcile(in)

	require.NotNil(t, report.Unaccounted.Incoming)
	assert.Zero(t, report.Unaccounted.Incoming.Count)

	// outgoing still needs the declared currency
	require.NotNil(t, report.Unaccounted.Outgoing)
	assert.Equal(t, 1, report.Unaccounted.Outgoing.Count)
}

func TestReconcile_SampleLimit(t *testing.T) {
	in := ReconcileInput{Period: models.YearPeriod(2023), Organization: org, SampleLimit: 2}
	for i, day := range []string{"2023-01-05", "2023-01-03", "2023-01-04", "2023-01-01"} {
		in.Transfers = append(in.Transfers, transfer(string(rune('a'+i)), day, org, "z", float64(i+1), "HBD"))
	}
	report := NewReconciliationProcessor().Reconcile(in)

	out := report.Unaccounted.Outgoing
	assert.Equal(t, 4, out.Count)
	assert.Equal(t, 2, out.SampleLimitedTo)
	require.Len(t, out.Sample, 2)
	// time-ordered
	assert.Equal(t, "d", out.Sample[0].ID)
	assert.Equal(t, "b", out.Sample[1].ID)
	assert.Equal(t, 10.0, out.TotalAmount.HBD)
}

func TestReconcile_PartialSources(t *testing.T) {
	in := reconcileFixture()
	in.TransfersErr = models.NewSourceUnavailable("transfers", errors.New("timeout"))

	report := NewReconciliationProcessor().Reconcile(in)
	assert.True(t, report.Partial)

	// ledger side is still reported, the transfer side carries the error instead of zeros
	require.NotNil(t, report.Outgoing.Ledger)
	assert.Nil(t, report.Outgoing.Transfers)
	assert.Nil(t, report.Outgoing.Difference)
	assert.Contains(t, report.Outgoing.Error, "timeout")

	require.NotNil(t, report.Incoming.Manual)
	assert.Nil(t, report.Incoming.Transfers)
	assert.Contains(t, report.Incoming.Error, "timeout")

	assert.Nil(t, report.Unaccounted.Outgoing)
	assert.Nil(t, report.Unaccounted.Incoming)
	assert.NotEmpty(t, report.Unaccounted.OutgoingError)
	assert.NotEmpty(t, report.Unaccounted.IncomingError)

	var transfersStatus models.SourceStatus
	for _, s := range report.Sources {
		if s.Name == SourceTransfers {
			transfersStatus = s
		}
	}
	assert.False(t, transfersStatus.Loaded)
	assert.NotEmpty(t, transfersStatus.Error)
}

func TestReconcile_ManualOnlyFailure(t *testing.T) {
	in := reconcileFixture()
	in.ManualErr = errors.New("dataset missing")

	report := NewReconciliationProcessor().Reconcile(in)
	assert.True(t, report.Partial)
	assert.NotNil(t, report.Outgoing.Difference)
	assert.Empty(t, report.Outgoing.Error)
	assert.Nil(t, report.Incoming.Manual)
	assert.NotNil(t, report.Incoming.Transfers)
	assert.NotNil(t, report.Unaccounted.Outgoing)
	assert.Nil(t, report.Unaccounted.Incoming)
}

func TestDiff(t *testing.T) {
	assert.Equal(t, models.Difference{AbsoluteDifference: 5, PercentDifference: 0}, diff(5, 0))
	assert.Equal(t, models.Difference{AbsoluteDifference: 0.1, PercentDifference: 10}, diff(0.9, 1))
}
