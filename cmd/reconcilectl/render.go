package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/utils"
	"github.com/olekukonko/tablewriter"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amount(v float64) string {
	return strconv.FormatFloat(utils.RoundFloat(v, 3), 'f', 3, 64)
}

func totalsRow(label string, t *models.CurrencyTotals) []string {
	if t == nil {
		return []string{label, "n/a", "n/a"}
	}
	return []string{label, amount(t.HBD), amount(t.HIVE)}
}

func renderVerification(w io.Writer, format string, report *models.VerificationReport) error {
	if format == "json" {
		return writeJSON(w, report)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Recipient", "Status", "Tolerance", "Transfer", "Note"})
	for _, r := range report.Results {
		transfer := ""
		if r.Transfer != nil {
			transfer = fmt.Sprintf("%s %s %s", r.Transfer.Timestamp.Format("2006-01-02"), amount(r.Transfer.Amount), r.Transfer.Currency)
		}
		table.Append([]string{r.Date, r.Recipient, string(r.Status), strconv.Itoa(r.ToleranceDays), transfer, r.Reason})
	}
	table.Render()

	s := report.Summary
	fmt.Fprintf(w, "\n%d transactions: %d verified, %d discrepancies, %d not found, %d unverified (%d excluded), %d currency swaps, %d shared transfers\n",
		s.Total, s.Verified, s.Discrepancies, s.NotFound, s.Unverified, s.Excluded, s.CurrencySwaps, s.SharedTransfers)
	if s.Error != "" {
		fmt.Fprintf(w, "error: %s\n", s.Error)
	}
	return nil
}

func renderReconciliation(w io.Writer, format string, report *models.ReconciliationReport) error {
	if format == "json" {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Reconciliation %d for @%s\n\n", report.Period.Year, report.Organization)

	sourcesTable := tablewriter.NewWriter(w)
	sourcesTable.SetHeader([]string{"Source", "Loaded", "Records", "Error"})
	for _, s := range report.Sources {
		sourcesTable.Append([]string{s.Name, strconv.FormatBool(s.Loaded), strconv.Itoa(s.Records), s.Error})
	}
	sourcesTable.Render()

	fmt.Fprintln(w, "\nOutgoing")
	out := tablewriter.NewWriter(w)
	out.SetHeader([]string{"", "HBD", "HIVE"})
	out.Append(totalsRow("ledger", report.Outgoing.Ledger))
	out.Append(totalsRow("transfers", report.Outgoing.Transfers))
	if d := report.Outgoing.Difference; d != nil {
		out.Append([]string{"difference", amount(d.HBD.AbsoluteDifference), amount(d.HIVE.AbsoluteDifference)})
		out.Append([]string{"difference %", amount(d.HBD.PercentDifference), amount(d.HIVE.PercentDifference)})
	}
	out.Render()

	fmt.Fprintln(w, "\nIncoming")
	in := tablewriter.NewWriter(w)
	in.SetHeader([]string{"", "HBD", "HIVE"})
	in.Append(totalsRow("transfers", report.Incoming.Transfers))
	in.Append(totalsRow("from loan wallets", report.Incoming.FromLoanWallets))
	in.Append(totalsRow("from others", report.Incoming.FromOthers))
	in.Append(totalsRow("manual records", report.Incoming.Manual))
	if d := report.Incoming.Difference; d != nil {
		in.Append([]string{"difference", amount(d.HBD.AbsoluteDifference), amount(d.HIVE.AbsoluteDifference)})
		in.Append([]string{"difference %", amount(d.HBD.PercentDifference), amount(d.HIVE.PercentDifference)})
	}
	in.Render()

	renderUnaccounted(w, "outgoing", report.Unaccounted.Outgoing, report.Unaccounted.OutgoingError)
	renderUnaccounted(w, "incoming", report.Unaccounted.Incoming, report.Unaccounted.IncomingError)
	if report.Partial {
		fmt.Fprintln(w, "\nreport is PARTIAL: see source errors above")
	}
	return nil
}

func renderUnaccounted(w io.Writer, direction string, set *models.UnaccountedSet, errMsg string) {
	if set == nil {
		fmt.Fprintf(w, "\nUnaccounted %s: unavailable (%s)\n", direction, errMsg)
		return
	}
	fmt.Fprintf(w, "\nUnaccounted %s: %d transfers, %s HBD, %s HIVE\n", direction, set.Count, amount(set.TotalAmount.HBD), amount(set.TotalAmount.HIVE))
	if len(set.Sample) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "From", "To", "Amount", "Currency", "Memo"})
	for _, t := range set.Sample {
		table.Append([]string{t.Timestamp.Format("2006-01-02 15:04"), t.Sender, t.Recipient, amount(t.Amount), t.Currency, t.Memo})
	}
	table.Render()
}

func renderCategories(w io.Writer, format string, report *models.CategoryReport) error {
	if format == "json" {
		return writeJSON(w, report)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Count", "HBD", "HIVE", "Total", "Scaled"})
	for _, b := range report.Buckets {
		table.Append([]string{b.Name, strconv.Itoa(b.Count), amount(b.TotalHBD), amount(b.TotalHIVE), amount(b.TotalStable), amount(b.ScaledStable)})
	}
	table.Append([]string{"(excluded)", strconv.Itoa(report.ExcludedCount), "", "", amount(report.ExcludedTotal), ""})
	table.Render()

	fmt.Fprintf(w, "\nauthoritative total %s, scale factor %.4f, coverage %.1f%%, scaled total %s\n",
		amount(report.AuthoritativeTotal), report.ScaleFactor, report.CoverageRatio*100, amount(report.ScaledTotal))
	if report.ProportionsAssumed {
		fmt.Fprintln(w, "bucket shares assume unmapped spend follows the mapped distribution")
	}
	return nil
}
