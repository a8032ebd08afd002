// src/processors/scale_corrector.go
package processors

import (
	"math"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
)

// invariantTolerance is the relative slack allowed when checking the scaled sum.
const invariantTolerance = 1e-6

// scaleCorrectorImpl implements ScaleCorrector.
type scaleCorrectorImpl struct{}

// NewScaleCorrector creates a new instance of ScaleCorrector.
func NewScaleCorrector() ScaleCorrector {
	return &scaleCorrectorImpl{}
}

// Scale multiplies every bucket figure by authoritativeTotal / GrandTotal. The denominator is
// the grand total of every transaction fed to the mapper, not authoritativeTotal / MappedTotal:
// with partial coverage the latter would push the scaled buckets up to the full authoritative
// total. Bucket shares are kept and the unmapped remainder stays visible through CoverageRatio,
// so the scaled buckets sum to authoritativeTotal × CoverageRatio. A zero GrandTotal yields a
// factor of 1.0.
func (s *scaleCorrectorImpl) Scale(mapping models.MappingResult, authoritativeTotal float64) models.CategoryReport {
	factor := 1.0
	coverage := 0.0
	if mapping.GrandTotal != 0 {
		factor = authoritativeTotal / mapping.GrandTotal
		coverage = mapping.MappedTotal / mapping.GrandTotal
	}

	report := models.CategoryReport{
		Buckets:            make([]models.CategoryBucket, len(mapping.Buckets)),
		AuthoritativeTotal: authoritativeTotal,
		GrandTotal:         mapping.GrandTotal,
		MappedTotal:        mapping.MappedTotal,
		ExcludedTotal:      mapping.ExcludedTotal,
		ExcludedCount:      mapping.ExcludedCount,
		ExcludedProjects:   mapping.ExcludedProjects,
		ScaleFactor:        factor,
		CoverageRatio:      coverage,
		ProportionsAssumed: true,
	}
	if report.ExcludedProjects == nil {
		report.ExcludedProjects = []string{}
	}

	for i, b := range mapping.Buckets {
		b.ScaledHBD = b.TotalHBD * factor
		b.ScaledHIVE = b.TotalHIVE * factor
		b.ScaledStable = b.TotalStable * factor
		report.Buckets[i] = b
		report.ScaledTotal += b.ScaledStable
	}

	expected := authoritativeTotal * coverage
	if !withinRelative(report.ScaledTotal, expected, invariantTolerance) {
		logger.L.Warn("Scaled category totals do not match authoritative total x coverage",
			"event", "scale.invariant_violated",
			"scaledTotal", report.ScaledTotal,
			"expected", expected,
			"scaleFactor", factor,
			"coverageRatio", coverage)
	} else {
		logger.L.Debug("Category totals scaled",
			"event", "scale.applied",
			"scaledTotal", report.ScaledTotal,
			"authoritativeTotal", authoritativeTotal,
			"scaleFactor", factor,
			"coverageRatio", coverage)
	}
	return report
}

func withinRelative(a, b, tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}

// CategoryProcessor composes the mapper and the corrector.
type CategoryProcessor struct {
	mapper CategoryMapper
	scaler ScaleCorrector
}

// NewCategoryProcessor creates a CategoryProcessor with the default mapper and corrector.
func NewCategoryProcessor() *CategoryProcessor {
	return &CategoryProcessor{mapper: NewCategoryMapper(), scaler: NewScaleCorrector()}
}

// MapAndScale maps the transactions and rescales the buckets against authoritativeTotal.
// It keeps no state between calls.
func (p *CategoryProcessor) MapAndScale(txs []models.Transaction, taxonomy models.Taxonomy, authoritativeTotal float64) models.CategoryReport {
	report := p.scaler.Scale(p.mapper.MapTransactions(txs, taxonomy), authoritativeTotal)
	report.TaxonomyVersion = taxonomy.Version
	return report
}
