package processors

import (
	"testing"

	"github.com/hivefund/reconciler/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScale_SumMatchesAuthoritativeTimesCoverage(t *testing.T) {
	mapping := models.MappingResult{
		Buckets: []models.CategoryBucket{
			{Name: "A", TotalHBD: 100, TotalStable: 100},
			{Name: "B", TotalHIVE: 100, TotalStable: 50},
		},
		GrandTotal:    200,
		MappedTotal:   150,
		ExcludedTotal: 50,
		ExcludedCount: 1,
	}

	report := NewScaleCorrector().Scale(mapping, 400)

	assert.Equal(t, 2.0, report.ScaleFactor)
	assert.Equal(t, 0.75, report.CoverageRatio)
	assert.True(t, report.ProportionsAssumed)
	require.Len(t, report.Buckets, 2)
	assert.Equal(t, 200.0, report.Buckets[0].ScaledStable)
	assert.Equal(t, 200.0, report.Buckets[0].ScaledHBD)
	assert.Equal(t, 100.0, report.Buckets[1].ScaledStable)
	assert.Equal(t, 200.0, report.Buckets[1].ScaledHIVE)
	assert.InDelta(t, report.AuthoritativeTotal*report.CoverageRatio, report.ScaledTotal, 1e-9)
	assert.NotNil(t, report.ExcludedProjects)

	// the input mapping is not modified
	assert.Zero(t, mapping.Buckets[0].ScaledStable)
}

func TestScale_NothingMapped(t *testing.T) {
	mapping := models.MappingResult{
		Buckets:       []models.CategoryBucket{{Name: "A"}},
		GrandTotal:    80,
		ExcludedTotal: 80,
		ExcludedCount: 2,
	}

	report := NewScaleCorrector().Scale(mapping, 120)
	assert.Equal(t, 1.5, report.ScaleFactor)
	assert.Zero(t, report.CoverageRatio)
	assert.Zero(t, report.ScaledTotal)
	assert.Equal(t, 80.0, report.ExcludedTotal)
}

func TestScale_ZeroGrandTotal(t *testing.T) {
	report := NewScaleCorrector().Scale(models.MappingResult{}, 500)
	assert.Equal(t, 1.0, report.ScaleFactor)
	assert.Zero(t, report.CoverageRatio)
	assert.Empty(t, report.Buckets)
}

func TestMapAndScale(t *testing.T) {
	txs := []models.Transaction{
		{Project: "HiveFest", AmountHBD: 60, TotalSpend: 60},
		{Project: "Core Development", AmountHBD: 20, TotalSpend: 20},
		{Project: "Garden Party", AmountHBD: 20, TotalSpend: 20},
	}
	p := NewCategoryProcessor()

	first := p.MapAndScale(txs, testTaxonomy(), 50)
	second := p.MapAndScale(txs, testTaxonomy(), 50)
	assert.Equal(t, first, second)

	assert.Equal(t, "test-1", first.TaxonomyVersion)
	assert.Equal(t, 0.5, first.ScaleFactor)
	assert.Equal(t, 0.8, first.CoverageRatio)
	assert.Equal(t, 30.0, first.Buckets[0].ScaledStable)
	assert.Equal(t, 10.0, first.Buckets[2].ScaledStable)
	assert.Equal(t, []string{"Garden Party"}, first.ExcludedProjects)
	assert.InDelta(t, 40.0, first.ScaledTotal, 1e-9)
}
