package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveWindowsDefaults(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 30, 0, 0, time.UTC)

	daily, err := ResolveWindows(PeriodDaily, nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 3, 14), daily.Start)
	assert.Equal(t, day(2024, 3, 20), daily.End)
	assert.Equal(t, day(2024, 3, 13), daily.PrevEnd)
	assert.Equal(t, day(2024, 3, 7), daily.PrevStart)

	weekly, err := ResolveWindows(PeriodWeekly, nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 2, 28), weekly.Start)
	assert.Equal(t, day(2024, 2, 27), weekly.PrevEnd)
	assert.Equal(t, day(2024, 2, 6), weekly.PrevStart)

	monthly, err := ResolveWindows(PeriodMonthly, nil, nil, now)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 20), monthly.Start)
	assert.Equal(t, day(2024, 1, 19), monthly.PrevEnd)
	assert.Equal(t, day(2023, 11, 19), monthly.PrevStart)
}

func TestResolveWindowsValidation(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	start := day(2024, 3, 21)
	_, err := ResolveWindows(PeriodDaily, &start, nil, now)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = ParsePeriod("hourly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodDaily, p)
}

func TestResolveWindowsCapsTrendLength(t *testing.T) {
	end := day(2026, 10, 18)

	cases := []struct {
		period   Period
		atLimit  time.Time
		overflow time.Time
	}{
		{PeriodDaily, day(2025, 10, 18), day(2025, 10, 17)},
		{PeriodWeekly, day(2021, 10, 25), day(2021, 10, 18)},
		{PeriodMonthly, day(2016, 11, 30), day(2016, 10, 1)},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			w, err := ResolveWindows(tc.period, &tc.atLimit, &end, end)
			require.NoError(t, err)
			assert.Len(t, BuildTrend(tc.period, w, nil), maxTrendBuckets[tc.period])

			_, err = ResolveWindows(tc.period, &tc.overflow, &end, end)
			assert.ErrorIs(t, err, ErrInvalidDateRange)
		})
	}

	ancient := day(1, 1, 1)
	_, err := ResolveWindows(PeriodDaily, &ancient, &end, end)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	assert.Equal(t, day(2024, 2, 29), addMonths(day(2024, 3, 31), -1))
	assert.Equal(t, day(2023, 12, 29), addMonths(day(2024, 2, 29), -2))
}

func TestBuildTrendDaily(t *testing.T) {
	start, end := day(2024, 3, 1), day(2024, 3, 3)
	w, err := ResolveWindows(PeriodDaily, &start, &end, end)
	require.NoError(t, err)

	points := BuildTrend(PeriodDaily, w, []time.Time{
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []TrendPoint{
		{Date: "2024-03-01", Count: 1},
		{Date: "2024-03-02", Count: 0},
		{Date: "2024-03-03", Count: 2},
	}, points)
}

func TestBuildTrendWeeklyClampsLastChunk(t *testing.T) {
	start, end := day(2024, 3, 1), day(2024, 3, 16)
	w, err := ResolveWindows(PeriodWeekly, &start, &end, end)
	require.NoError(t, err)

	points := BuildTrend(PeriodWeekly, w, []time.Time{
		time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC),
	})
	require.Len(t, points, 3)
	assert.Equal(t, TrendPoint{Date: "2024-03-01", Count: 1}, points[0])
	assert.Equal(t, TrendPoint{Date: "2024-03-08", Count: 1}, points[1])
	assert.Equal(t, TrendPoint{Date: "2024-03-15", Count: 1}, points[2])
}

func TestBuildTrendMonthlyStartsOnFirstOfMonth(t *testing.T) {
	start, end := day(2024, 1, 20), day(2024, 3, 5)
	w, err := ResolveWindows(PeriodMonthly, &start, &end, end)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), TrendStart(PeriodMonthly, w))

	points := BuildTrend(PeriodMonthly, w, []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []TrendPoint{
		{Date: "2024-01-01", Count: 1},
		{Date: "2024-02-01", Count: 1},
		{Date: "2024-03-01", Count: 0},
	}, points)
}
