package processors

import (
	"time"

	"github.com/hivefund/reconciler/src/logger"
)

// YearlyRates maps a calendar year to its average HIVE->HBD rate.
type YearlyRates map[int]float64

// YearlyRate implements RateLookup.
func (r YearlyRates) YearlyRate(year int) (float64, bool) {
	rate, ok := r[year]
	return rate, ok && rate > 0
}

// Rate sources reported by ResolveRate.
const (
	RateFromRecord = "record"
	RateFromYearly = "yearly_average"
	RateMissing    = "missing"
)

// ResolveRate picks the record's own conversion when present, then the yearly average.
// When neither exists the rate is 0 and the volatile amount does not count towards TotalSpend.
func ResolveRate(recordRate float64, date time.Time, rates RateLookup) (float64, string) {
	if recordRate > 0 {
		return recordRate, RateFromRecord
	}
	if rates != nil {
		if rate, ok := rates.YearlyRate(date.Year()); ok {
			return rate, RateFromYearly
		}
	}
	logger.L.Debug("No HIVE->HBD rate found, defaulting to 0", "date", date.Format("2006-01-02"))
	return 0, RateMissing
}
