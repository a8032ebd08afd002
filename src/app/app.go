// Package app wires the reconciliation core from configuration. The HTTP server and the
// operator CLI share it so both run the same path.
package app

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hivefund/reconciler/src/config"
	"github.com/hivefund/reconciler/src/database"
	"github.com/hivefund/reconciler/src/dataset"
	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/hivefund/reconciler/src/security"
	"github.com/hivefund/reconciler/src/services"
	"github.com/hivefund/reconciler/src/sources"
	"github.com/patrickmn/go-cache"
)

// App holds the wired components.
type App struct {
	Config          *config.AppConfig
	DB              *sql.DB
	Dataset         *dataset.Dataset
	LedgerProcessor *processors.LedgerProcessor
	Service         services.ReconciliationService
	Auth            *security.AuthService
}

// TolerancePolicy builds the period-dependent date window from cfg.
func TolerancePolicy(cfg *config.AppConfig) processors.TolerancePolicy {
	return processors.ToleranceWindows{
		EarlyPeriodEndYear: cfg.EarlyPeriodEndYear,
		EarlyDays:          cfg.EarlyPeriodToleranceDays,
		MidPeriodEndYear:   cfg.MidPeriodEndYear,
		MidDays:            cfg.MidPeriodToleranceDays,
		MinDays:            cfg.MinToleranceDays,
	}.Policy()
}

// New opens the transfer bridge, loads the dataset and wires the service.
func New(cfg *config.AppConfig) (*App, error) {
	ds, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	logger.L.Info("Initializing database...", "path", cfg.DatabasePath)
	if err := database.InitDB(cfg.DatabasePath); err != nil {
		return nil, err
	}
	return Wire(cfg, database.DB, ds), nil
}

// Wire builds the service over an already opened bridge.
func Wire(cfg *config.AppConfig, db *sql.DB, ds *dataset.Dataset) *App {
	organization := ds.Organization
	if strings.TrimSpace(cfg.OrganizationAccount) != "" {
		organization = processors.NormalizeAccount(cfg.OrganizationAccount)
	}

	transfers := sources.NewCachedTransferSource(
		sources.NewSQLTransferSource(db, cfg.SourceTimeout, cfg.SourceMaxRetries),
		cfg.TransferCacheTTL,
	)
	ledger := sources.NewCSVLedgerSource(cfg.LedgerSource, cfg.SourceTimeout, ds.YearlyRates)

	service := services.NewReconciliationService(
		services.Dependencies{
			Ledger:    ledger,
			Transfers: transfers,
			Manual:    ds,
			Verifier:  processors.NewVerificationProcessor(transfers, TolerancePolicy(cfg)),
			Cache:     cache.New(cfg.ReportCacheTTL, cfg.ReportCacheCleanupTimeout),
		},
		services.Settings{
			Organization:      organization,
			LoanWallets:       ds.LoanWallets,
			Taxonomy:          ds.Taxonomy,
			Rates:             ds.YearlyRates,
			BaseToleranceDays: cfg.BaseToleranceDays,
			SampleLimit:       cfg.UnaccountedSampleLimit,
		},
	)

	logger.L.Info("Reconciliation service wired",
		"organization", organization,
		"datasetVersion", ds.Version,
		"taxonomyVersion", ds.Taxonomy.Version,
		"ledger", cfg.LedgerSource)

	return &App{
		Config:          cfg,
		DB:              db,
		Dataset:         ds,
		LedgerProcessor: processors.NewLedgerProcessor(ds.YearlyRates),
		Service:         service,
		Auth:            security.NewAuthService(cfg.AdminJWTSecret),
	}
}

// Close releases the bridge connection.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
