package processors

import (
	"testing"
	"time"

	"github.com/hivefund/reconciler/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_WindowIsInclusive(t *testing.T) {
	candidates := []models.Transfer{
		transfer("early", "2023-03-07", "org", "a", 10, "HBD"),
		transfer("edge", "2023-03-08", "org", "a", 10, "HBD"),
		transfer("late", "2023-03-13", "org", "a", 10, "HBD"),
	}

	matches := Rank(candidates, 10, "HBD", d("2023-03-10"), 2)
	require.Len(t, matches, 1)
	assert.Equal(t, "edge", matches[0].Transfer.ID)
	assert.Equal(t, -2, matches[0].DateDeltaDays)
	assert.Equal(t, 2, matches[0].AbsDateDeltaDays)
	assert.Equal(t, 1, matches[0].Index)
}

func TestRank_AmountEpsilon(t *testing.T) {
	candidates := []models.Transfer{
		transfer("noise", "2023-03-10", "org", "a", 10.0001, "HBD"),
		transfer("milli", "2023-03-10", "org", "a", 10.001, "HBD"),
	}
	matches := Rank(candidates, 10, "HBD", d("2023-03-10"), 0)
	require.Len(t, matches, 1)
	assert.Equal(t, "noise", matches[0].Transfer.ID)
}

func TestRank_Ordering(t *testing.T) {
	candidates := []models.Transfer{
		transfer("swap-same-day", "2023-03-10", "org", "a", 10, "HIVE"),
		transfer("exact-far", "2023-03-12", "org", "a", 10, "HBD"),
		transfer("exact-near-1", "2023-03-11", "org", "a", 10, "HBD"),
		transfer("exact-near-2", "2023-03-09", "org", "a", 10, "HBD"),
	}
	matches := Rank(candidates, 10, "HBD", d("2023-03-10"), 3)
	require.Len(t, matches, 4)

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Transfer.ID
	}
	// currency-exact first, then smallest delta, ties keep input order
	assert.Equal(t, []string{"exact-near-1", "exact-near-2", "exact-far", "swap-same-day"}, ids)
	assert.True(t, matches[3].CurrencyMismatch)
	assert.False(t, matches[0].CurrencyMismatch)
}

func TestRank_UnboundedWindow(t *testing.T) {
	candidates := []models.Transfer{transfer("x", "2021-01-01", "org", "a", 10, "HBD")}
	assert.Empty(t, Rank(candidates, 10, "HBD", d("2023-03-10"), 30))
	matches := Rank(candidates, 10, "HBD", d("2023-03-10"), UnboundedWindow)
	require.Len(t, matches, 1)
	assert.Equal(t, 798, matches[0].AbsDateDeltaDays)
}

func TestRank_NoCandidates(t *testing.T) {
	assert.Empty(t, Rank(nil, 10, "HBD", d("2023-03-10"), 1))
}

func TestDayDelta_IgnoresTimeOfDay(t *testing.T) {
	a := d("2023-03-10").Add(23 * time.Hour)
	b := d("2023-03-11").Add(time.Minute)
	assert.Equal(t, 1, DayDelta(a, b))
	assert.Equal(t, -1, DayDelta(b, a))
	assert.Equal(t, 0, DayDelta(a, d("2023-03-10")))
}

func TestNormalizeAccount(t *testing.T) {
	assert.Equal(t, "alice", NormalizeAccount(" @Alice "))
	assert.Equal(t, "hive.fund", NormalizeAccount("hive.fund"))
	assert.Equal(t, "", NormalizeAccount(""))
}

func TestFixedTolerance(t *testing.T) {
	assert.Equal(t, 3, FixedTolerance(d("2020-01-01"), 3))
	assert.Equal(t, 0, FixedTolerance(d("2020-01-01"), -5))
}

func TestToleranceWindows_Policy(t *testing.T) {
	policy := ToleranceWindows{EarlyPeriodEndYear: 2021, EarlyDays: 7, MidPeriodEndYear: 2023, MidDays: 3, MinDays: 1}.Policy()

	tests := []struct {
		date string
		base int
		want int
	}{
		{"2020-06-01", 1, 7},
		{"2021-12-31", 1, 7},
		{"2022-01-01", 1, 3},
		{"2023-06-01", 5, 5},
		{"2024-01-01", 2, 2},
		{"2024-01-01", 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy(d(tt.date), tt.base), "%s base %d", tt.date, tt.base)
	}
}
