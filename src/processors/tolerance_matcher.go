// src/processors/tolerance_matcher.go
package processors

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hivefund/reconciler/src/models"
)

// AmountEpsilon absorbs floating-point noise on 3-decimal chain amounts. It is not a business
// tolerance: amounts that differ by a real milli-unit do not match.
const AmountEpsilon = 0.0005

// UnboundedWindow disables the date window in Rank.
const UnboundedWindow = -1

// Match is one candidate transfer that agrees with the target amount.
type Match struct {
	Transfer         models.Transfer
	Index            int // position in the candidate slice
	DateDeltaDays    int // transfer day minus target day
	AbsDateDeltaDays int
	AmountDelta      float64
	CurrencyMismatch bool
}

// TolerancePolicy returns the date window (days) for a record dated `date`, given the caller's
// base tolerance.
type TolerancePolicy func(date time.Time, baseDays int) int

// FixedTolerance applies the base tolerance unchanged.
func FixedTolerance(_ time.Time, baseDays int) int {
	if baseDays < 0 {
		return 0
	}
	return baseDays
}

// ToleranceWindows configures PeriodTolerancePolicy. Early records were entered with much less
// care than later ones, so their windows are wider.
type ToleranceWindows struct {
	EarlyPeriodEndYear int
	EarlyDays          int
	MidPeriodEndYear   int
	MidDays            int
	MinDays            int
}

// Policy builds the period-dependent TolerancePolicy.
func (w ToleranceWindows) Policy() TolerancePolicy {
	return func(date time.Time, baseDays int) int {
		days := baseDays
		year := date.Year()
		switch {
		case year <= w.EarlyPeriodEndYear:
			days = max(baseDays, w.EarlyDays)
		case year <= w.MidPeriodEndYear:
			days = max(baseDays, w.MidDays)
		}
		if days < w.MinDays {
			days = w.MinDays
		}
		return days
	}
}

// NormalizeAccount lower-cases an account name and strips whitespace and the leading "@" marker.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(account), "@"))
}

// AmountsEqual compares two amounts within AmountEpsilon.
func AmountsEqual(a, b float64) bool {
	return math.Abs(a-b) < AmountEpsilon
}

// DayDelta returns the number of calendar days (UTC) from a to b.
func DayDelta(a, b time.Time) int {
	da := truncateDay(a)
	db := truncateDay(b)
	return int(math.Round(db.Sub(da).Hours() / 24))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Rank returns the candidates whose amount equals targetAmount and whose date falls in the
// inclusive window [targetDate-N, targetDate+N]. Currency-exact matches come first, then the
// smallest date delta; remaining ties keep input order. Currency mismatches are flagged, not
// dropped. A negative dateToleranceDays disables the window.
func Rank(candidates []models.Transfer, targetAmount float64, targetCurrency string, targetDate time.Time, dateToleranceDays int) []Match {
	var matches []Match
	for i, c := range candidates {
		if !AmountsEqual(c.Amount, targetAmount) {
			continue
		}
		delta := DayDelta(targetDate, c.Timestamp)
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		if dateToleranceDays >= 0 && abs > dateToleranceDays {
			continue
		}
		matches = append(matches, Match{
			Transfer:         c,
			Index:            i,
			DateDeltaDays:    delta,
			AbsDateDeltaDays: abs,
			AmountDelta:      c.Amount - targetAmount,
			CurrencyMismatch: !strings.EqualFold(c.Currency, targetCurrency),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CurrencyMismatch != matches[j].CurrencyMismatch {
			return !matches[i].CurrencyMismatch
		}
		return matches[i].AbsDateDeltaDays < matches[j].AbsDateDeltaDays
	})
	return matches
}
