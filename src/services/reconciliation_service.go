// src/services/reconciliation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/hivefund/reconciler/src/sources"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const (
	ckVerification         = "res_verification_year_%d_tol_%d"
	ckReconciliation       = "agg_reconciliation_year_%d"
	ckCategories           = "agg_categories_year_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	minYear         = 2016
	maxYear         = 2100
	maxToleranceDay = 366
)

// Settings is the per-deployment configuration of the service.
type Settings struct {
	Organization      string
	LoanWallets       []string
	Taxonomy          models.Taxonomy
	Rates             processors.RateLookup
	BaseToleranceDays int
	SampleLimit       int
}

// Dependencies are the collaborators of the service. Nil processors fall back to the defaults.
type Dependencies struct {
	Ledger     sources.LedgerSource
	Transfers  processors.TransferSource
	Manual     sources.ManualRecordsSource
	Verifier   processors.VerificationProcessor
	Aggregator processors.ReconciliationProcessor
	Categories *processors.CategoryProcessor
	Cache      *cache.Cache
}

// cacheInvalidator is implemented by sources that memoize their own results.
type cacheInvalidator interface {
	Invalidate()
}

type reconciliationServiceImpl struct {
	deps     Dependencies
	settings Settings
}

// NewReconciliationService wires the shared reconciliation core.
func NewReconciliationService(deps Dependencies, settings Settings) ReconciliationService {
	if deps.Verifier == nil {
		deps.Verifier = processors.NewVerificationProcessor(deps.Transfers, nil)
	}
	if deps.Aggregator == nil {
		deps.Aggregator = processors.NewReconciliationProcessor()
	}
	if deps.Categories == nil {
		deps.Categories = processors.NewCategoryProcessor()
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	settings.Organization = processors.NormalizeAccount(settings.Organization)
	return &reconciliationServiceImpl{deps: deps, settings: settings}
}

func validateYear(year int) error {
	if year < minYear || year > maxYear {
		return fmt.Errorf("%w: %d (expected %d-%d)", ErrInvalidYear, year, minYear, maxYear)
	}
	return nil
}

func validateTolerance(days int) error {
	if days < 0 || days > maxToleranceDay {
		return fmt.Errorf("%w: %d days (expected 0-%d)", ErrInvalidTolerance, days, maxToleranceDay)
	}
	return nil
}

func (s *reconciliationServiceImpl) VerifyPeriod(ctx context.Context, year, baseToleranceDays int) (*models.VerificationReport, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	if baseToleranceDays < 0 {
		baseToleranceDays = s.settings.BaseToleranceDays
	}
	if err := validateTolerance(baseToleranceDays); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf(ckVerification, year, baseToleranceDays)
	if cached, found := s.deps.Cache.Get(cacheKey); found {
		return cached.(*models.VerificationReport), nil
	}

	ledger, err := s.deps.Ledger.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	period := models.YearPeriod(year)
	inPeriod := make([]models.Transaction, 0, len(ledger))
	for _, tx := range ledger {
		if period.Contains(tx.Date) {
			inPeriod = append(inPeriod, tx)
		}
	}

	report, err := s.verify(ctx, inPeriod, s.settings.Organization, baseToleranceDays)
	if err == nil {
		s.deps.Cache.Set(cacheKey, report, cache.DefaultExpiration)
	}
	return report, err
}

func (s *reconciliationServiceImpl) VerifyTransactions(ctx context.Context, transactions []models.Transaction, account string, baseToleranceDays int) (*models.VerificationReport, error) {
	if err := validateTolerance(baseToleranceDays); err != nil {
		return nil, err
	}
	if account == "" {
		account = s.settings.Organization
	}
	return s.verify(ctx, transactions, account, baseToleranceDays)
}

func (s *reconciliationServiceImpl) verify(ctx context.Context, transactions []models.Transaction, account string, baseToleranceDays int) (*models.VerificationReport, error) {
	batchID := uuid.NewString()
	ctx = processors.WithBatchID(ctx, batchID)
	ctx = logger.ToContext(ctx, logger.FromContext(ctx).With("batchID", batchID))

	results, err := s.deps.Verifier.VerifyBatch(ctx, transactions, account, baseToleranceDays, func(done, total int) {
		if done == total || done%500 == 0 {
			logger.FromContext(ctx).Debug("Verification progress", "done", done, "total", total)
		}
	})
	if results == nil {
		results = []models.VerificationResult{}
	}

	summary := processors.Summarize(results)
	summary.BatchID = batchID
	summary.Account = processors.NormalizeAccount(account)
	if err != nil {
		summary.Error = err.Error()
	}
	return &models.VerificationReport{Summary: summary, Results: results}, err
}

func (s *reconciliationServiceImpl) Reconcile(ctx context.Context, year int) (*models.ReconciliationReport, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf(ckReconciliation, year)
	if cached, found := s.deps.Cache.Get(cacheKey); found {
		return cached.(*models.ReconciliationReport), nil
	}

	in := s.loadSources(ctx, year)
	report := s.deps.Aggregator.Reconcile(in)
	if err := sourceErrors(in); err != nil {
		logger.FromContext(ctx).Warn("Reconciliation built from partial sources", "year", year, "error", err)
		return &report, err
	}
	s.deps.Cache.Set(cacheKey, &report, cache.DefaultExpiration)
	return &report, nil
}

// loadSources fetches the ledger, the year's transfers and the manual records concurrently.
func (s *reconciliationServiceImpl) loadSources(ctx context.Context, year int) processors.ReconcileInput {
	period := models.YearPeriod(year)
	in := processors.ReconcileInput{
		Period:       period,
		Organization: s.settings.Organization,
		LoanWallets:  s.settings.LoanWallets,
		SampleLimit:  s.settings.SampleLimit,
	}

	// The group is a fan-out only: each fetch keeps its own error in the input so one failed
	// source neither cancels nor hides the others, and Wait always returns nil.
	var g errgroup.Group
	g.Go(func() error {
		in.Ledger, in.LedgerErr = s.deps.Ledger.Transactions(ctx)
		return nil
	})
	g.Go(func() error {
		in.Transfers, in.TransfersErr = s.deps.Transfers.Transfers(ctx, s.settings.Organization, &models.DateRange{From: period.Start, To: period.End})
		return nil
	})
	g.Go(func() error {
		in.Manual, in.ManualErr = s.deps.Manual.ManualRecords(ctx)
		return nil
	})
	_ = g.Wait()
	return in
}

// sourceErrors combines the per-source failures of in.
func sourceErrors(in processors.ReconcileInput) error {
	var result *multierror.Error
	for _, err := range []error{in.LedgerErr, in.TransfersErr, in.ManualErr} {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (s *reconciliationServiceImpl) CategoryReport(ctx context.Context, year int) (*models.CategoryReport, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf(ckCategories, year)
	if cached, found := s.deps.Cache.Get(cacheKey); found {
		return cached.(*models.CategoryReport), nil
	}

	// One load feeds both the authoritative total and the mapped ledger.
	in := s.loadSources(ctx, year)
	recon := s.deps.Aggregator.Reconcile(in)
	if recon.Outgoing.Transfers == nil {
		return nil, fmt.Errorf("%w: %s", ErrAuthoritativeTotal, recon.Outgoing.Error)
	}
	if in.LedgerErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, in.LedgerErr)
	}
	if sourceErrors(in) == nil {
		s.deps.Cache.Set(fmt.Sprintf(ckReconciliation, year), &recon, cache.DefaultExpiration)
	}

	period := in.Period
	disbursements := make([]models.Transaction, 0, len(in.Ledger))
	for _, tx := range in.Ledger {
		if period.Contains(tx.Date) && !tx.IsLoanOrRefund() {
			disbursements = append(disbursements, tx)
		}
	}

	authoritative := s.authoritativeTotal(ctx, year, *recon.Outgoing.Transfers)
	report := s.deps.Categories.MapAndScale(disbursements, s.settings.Taxonomy, authoritative)
	report.Period = &period
	s.deps.Cache.Set(cacheKey, &report, cache.DefaultExpiration)
	return &report, nil
}

// authoritativeTotal converts the outgoing on-chain totals to their stable equivalent.
func (s *reconciliationServiceImpl) authoritativeTotal(ctx context.Context, year int, outgoing models.CurrencyTotals) float64 {
	rate, source := processors.ResolveRate(0, time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC), s.settings.Rates)
	if source == processors.RateMissing && outgoing.HIVE != 0 {
		logger.FromContext(ctx).Warn("No yearly rate; HIVE outflow left out of the authoritative total", "year", year, "hive", outgoing.HIVE)
	}
	return outgoing.HBD + outgoing.HIVE*rate
}

func (s *reconciliationServiceImpl) InvalidateCache() {
	s.deps.Cache.Flush()
	for _, src := range []interface{}{s.deps.Ledger, s.deps.Transfers, s.deps.Manual} {
		if inv, ok := src.(cacheInvalidator); ok {
			inv.Invalidate()
		}
	}
	logger.L.Info("Report caches invalidated")
}

// IsSourceFailure reports whether err stems from an unavailable collaborator.
func IsSourceFailure(err error) bool {
	return errors.Is(err, models.ErrSourceUnavailable) || errors.Is(err, ErrLedgerUnavailable) || errors.Is(err, ErrAuthoritativeTotal)
}
