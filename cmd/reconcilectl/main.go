/*Operator CLI for the reconciler: runs the same service as the HTTP API.*/
package main

import (
	"github.com/alecthomas/kong"
)

// globals holds options shared by every command
type globals struct {
	Format   string `enum:"table,json" default:"table" help:"Output format (table or json)."`
	LogLevel string `name:"log-level" default:"warn" help:"Log level for diagnostics written to stderr."`
}

// cli commands / args available
var cli struct {
	Globals globals `embed:""`

	Verify        verifyCmd        `cmd:"" help:"Verify one year of ledger lines against chain transfers."`
	Reconcile     reconcileCmd     `cmd:"" help:"Reconcile directional totals for one year."`
	Categories    categoriesCmd    `cmd:"" help:"Map one year of spend to categories, scaled to the on-chain total."`
	LoadTransfers loadTransfersCmd `cmd:"" name:"load-transfers" help:"Load a JSON transfer snapshot into the bridge database."`
	Token         tokenCmd         `cmd:"" help:"Issue an admin bearer token for the HTTP API."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("reconcilectl"),
		kong.Description("Disbursement reconciliation for the organization's ledger, chain transfers and curated records."),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
