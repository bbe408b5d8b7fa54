package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func labels(points []UsagePoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.Date)
	}
	return out
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, p)

	p, err = ParsePeriod(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	_, err = ParsePeriod("yearly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestResolveWindowDefaults(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		period  Period
		start   time.Time
		buckets int
	}{
		{PeriodDaily, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), 7},
		{PeriodWeekly, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), 6},
		{PeriodMonthly, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), 6},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			start, end, err := ResolveWindow(tc.period, nil, nil, now)
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, now, end)

			report := Build(Input{Period: tc.period, Start: start, End: end})
			assert.Len(t, report.UsageHistory, tc.buckets)
			assert.Len(t, report.BalanceHistory, tc.buckets)
		})
	}
}

func TestResolveWindowRejectsInvertedRange(t *testing.T) {
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := ResolveWindow(PeriodDaily, &start, &end, time.Now())
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, _, err = ResolveWindow(Period("hourly"), nil, nil, time.Now())
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestResolveWindowCapsBucketCount(t *testing.T) {
	end := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	_, _, err := ResolveWindow(PeriodDaily, ptr(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)), &end, end)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	cases := []struct {
		period   Period
		atLimit  time.Time
		overflow time.Time
	}{
		{PeriodDaily, time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC), time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC)},
		{PeriodWeekly, time.Date(2021, 10, 25, 0, 0, 0, 0, time.UTC), time.Date(2021, 10, 18, 0, 0, 0, 0, time.UTC)},
		{PeriodMonthly, time.Date(2016, 11, 1, 0, 0, 0, 0, time.UTC), time.Date(2016, 10, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			start, windowEnd, err := ResolveWindow(tc.period, ptr(tc.atLimit), &end, end)
			require.NoError(t, err)
			report := Build(Input{Period: tc.period, Start: start, End: windowEnd})
			assert.Len(t, report.UsageHistory, maxBuckets[tc.period])

			_, _, err = ResolveWindow(tc.period, ptr(tc.overflow), &end, end)
			assert.ErrorIs(t, err, ErrInvalidDateRange)
		})
	}
}

func TestBuildCountsUnsortedUsagePerBucket(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 18, 0, 0, 0, time.UTC)

	report := Build(Input{
		Period: PeriodDaily,
		Start:  start,
		End:    end,
		Usage: []UsageDelta{
			{Timestamp: time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), Credits: 1},
			{Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Credits: 1},
			{Timestamp: time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC), Credits: 2},
		},
	})

	credits := make([]int64, 0, len(report.UsageHistory))
	for _, p := range report.UsageHistory {
		credits = append(credits, p.Credits)
	}
	assert.Equal(t, []int64{1, 0, 3}, credits)
	assert.Equal(t, int64(3), report.UsedThisPeriod)
}

func TestBuildZeroEventsUsesCurrentBalanceEverywhere(t *testing.T) {
	start := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	report := Build(Input{
		Period:         PeriodDaily,
		Start:          start,
		End:            end,
		OpeningBalance: 42,
		CurrentBalance: 42,
	})

	require.Len(t, report.UsageHistory, 7)
	for i := range report.UsageHistory {
		assert.Zero(t, report.UsageHistory[i].Credits)
		assert.Equal(t, int64(42), report.BalanceHistory[i].Balance)
	}
	assert.Zero(t, report.TotalCredits)
	assert.Zero(t, report.Average)
	assert.Zero(t, report.TotalMoney)
	assert.Zero(t, report.CostPerCredit)
	assert.Equal(t, int64(42), report.CurrentCredits)
}

func TestBuildPurchaseThenTwoDebits(t *testing.T) {
	day := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	end := day.Add(15 * time.Hour)

	report := Build(Input{
		Period:         PeriodDaily,
		Start:          start,
		End:            end,
		OpeningBalance: 0,
		CurrentBalance: 98,
		Purchases: []PurchaseDelta{
			{Timestamp: day.Add(9 * time.Hour), Credits: 100, Amount: decimal.RequireFromString("12.50")},
		},
		Usage: []UsageDelta{
			{Timestamp: day.Add(10 * time.Hour), Credits: 1},
			{Timestamp: day.Add(11 * time.Hour), Credits: 1},
		},
	})

	assert.Equal(t, int64(2), report.UsedThisPeriod)
	assert.Equal(t, int64(2), report.TotalCredits)
	assert.Equal(t, int64(100), report.TotalCreditsPurchased)
	assert.Equal(t, 12.5, report.TotalMoney)
	assert.Equal(t, 0.125, report.CostPerCredit)

	last := report.BalanceHistory[len(report.BalanceHistory)-1]
	assert.Equal(t, "2024-03-20", last.Date)
	assert.Equal(t, int64(98), last.Balance)
	assert.Equal(t, int64(98), report.ProjectedBalance)
	assert.Equal(t, int64(0), report.BalanceHistory[0].Balance)
}

func TestBuildMonthlyThreeCalendarMonths(t *testing.T) {
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)

	report := Build(Input{
		Period: PeriodMonthly,
		Start:  start,
		End:    end,
		Usage: []UsageDelta{
			{Timestamp: time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), Credits: 4},
			{Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Credits: 3},
		},
	})

	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, labels(report.UsageHistory))
	assert.Equal(t, int64(4), report.UsageHistory[1].Credits)
	assert.Equal(t, int64(3), report.UsageHistory[2].Credits)
	assert.Equal(t, int64(2), report.Average)
}

func TestBuildWeeklyAlignsToMonday(t *testing.T) {
	start := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC) // Thursday
	end := time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC)  // Monday

	report := Build(Input{Period: PeriodWeekly, Start: start, End: end})

	assert.Equal(t, []string{"2024-03-04", "2024-03-11", "2024-03-18"}, labels(report.UsageHistory))
}

func TestBuildBalanceIsCumulativeFromOpening(t *testing.T) {
	start := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	report := Build(Input{
		Period:         PeriodDaily,
		Start:          start,
		End:            end,
		OpeningBalance: 50,
		CurrentBalance: 45,
		Usage: []UsageDelta{
			{Timestamp: time.Date(2024, 3, 19, 6, 0, 0, 0, time.UTC), Credits: 5},
		},
	})

	got := []int64{}
	for _, p := range report.BalanceHistory {
		got = append(got, p.Balance)
	}
	assert.Equal(t, []int64{50, 45, 45}, got)
	assert.Equal(t, int64(5), report.TotalCredits)
	assert.Equal(t, int64(1), report.Average)
}

func TestBuildLastBucketOverridesDrift(t *testing.T) {
	start := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	report := Build(Input{
		Period:         PeriodDaily,
		Start:          start,
		End:            end,
		OpeningBalance: 10,
		CurrentBalance: 13,
	})

	assert.Equal(t, int64(10), report.ProjectedBalance)
	assert.Equal(t, int64(13), report.BalanceHistory[1].Balance)
	assert.Equal(t, int64(10), report.BalanceHistory[0].Balance)
}
