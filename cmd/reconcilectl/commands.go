package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hivefund/reconciler/src/app"
	"github.com/hivefund/reconciler/src/config"
	"github.com/hivefund/reconciler/src/database"
	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/model"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/security"
	"github.com/hivefund/reconciler/src/sources"
)

func setup(g *globals) (*app.App, error) {
	config.LoadConfig()
	logger.InitLoggerWithWriter(os.Stderr, g.LogLevel)
	return app.New(config.Cfg)
}

type verifyCmd struct {
	Year      int `required:"" help:"Reporting year."`
	Tolerance int `default:"-1" help:"Base date tolerance in days (-1 uses BASE_TOLERANCE_DAYS)."`
}

func (c *verifyCmd) Run(g *globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Service.VerifyPeriod(context.Background(), c.Year, c.Tolerance)
	if report != nil {
		if rerr := renderVerification(os.Stdout, g.Format, report); rerr != nil {
			return rerr
		}
	}
	return err
}

type reconcileCmd struct {
	Year int `required:"" help:"Reporting year."`
}

func (c *reconcileCmd) Run(g *globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Service.Reconcile(context.Background(), c.Year)
	if report == nil {
		return err
	}
	if rerr := renderReconciliation(os.Stdout, g.Format, report); rerr != nil {
		return rerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: partial report: %v\n", err)
	}
	return nil
}

type categoriesCmd struct {
	Year int `required:"" help:"Reporting year."`
}

func (c *categoriesCmd) Run(g *globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Service.CategoryReport(context.Background(), c.Year)
	if err != nil {
		return err
	}
	return renderCategories(os.Stdout, g.Format, report)
}

type loadTransfersCmd struct {
	File string `required:"" type:"existingfile" help:"JSON array of transfers."`
}

func (c *loadTransfersCmd) Run(g *globals) error {
	config.LoadConfig()
	logger.InitLoggerWithWriter(os.Stderr, g.LogLevel)

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	transfers, err := sources.ReadTransferSnapshot(f)
	if err != nil {
		return err
	}
	n, total, err := loadSnapshot(context.Background(), config.Cfg.DatabasePath, c.File, transfers)
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d transfers into %s (%d total)\n", n, config.Cfg.DatabasePath, total)
	return nil
}

// loadSnapshot upserts the transfers and returns how many were written and how many the bridge holds.
func loadSnapshot(ctx context.Context, dbPath, source string, transfers []models.Transfer) (int, int, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return 0, 0, err
	}
	defer db.Close()
	if err := database.RunMigrations(db); err != nil {
		return 0, 0, err
	}
	n, err := model.UpsertTransfers(ctx, db, transfers)
	if err != nil {
		return 0, 0, err
	}
	if err := model.RecordSnapshotLoad(ctx, db, source, n); err != nil {
		return n, 0, err
	}
	total, err := model.CountTransfers(ctx, db)
	return n, total, err
}

type tokenCmd struct {
	Subject string        `default:"operator" help:"Token subject."`
	TTL     time.Duration `name:"ttl" default:"1h" help:"Token lifetime."`
}

func (c *tokenCmd) Run(g *globals) error {
	config.LoadConfig()
	auth := security.NewAuthService(config.Cfg.AdminJWTSecret)
	if !auth.Enabled() {
		return errors.New("ADMIN_JWT_SECRET must be set (32+ characters) to issue tokens")
	}
	token, err := auth.GenerateToken(c.Subject, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
