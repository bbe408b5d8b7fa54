package domain

import (
	"sort"
	"time"
)

const dateLabel = "2006-01-02"

// maxTrendBuckets bounds the trend length of a single summary.
var maxTrendBuckets = map[Period]int{
	PeriodDaily:   366,
	PeriodWeekly:  260,
	PeriodMonthly: 120,
}

// Windows holds day-aligned inclusive date ranges for the current and the
// comparison period. Query bounds use the exclusive ends.
type Windows struct {
	Start, End         time.Time
	PrevStart, PrevEnd time.Time
}

func (w Windows) EndExclusive() time.Time     { return w.End.AddDate(0, 0, 1) }
func (w Windows) PrevEndExclusive() time.Time { return w.PrevEnd.AddDate(0, 0, 1) }

// ResolveWindows applies the default lookback per period and mirrors the
// window length for the previous period.
func ResolveWindows(period Period, start, end *time.Time, now time.Time) (Windows, error) {
	windowEnd := truncateDay(now)
	if end != nil {
		windowEnd = truncateDay(*end)
	}

	var windowStart time.Time
	if start != nil {
		windowStart = truncateDay(*start)
	} else {
		switch period {
		case PeriodDaily:
			windowStart = windowEnd.AddDate(0, 0, -6)
		case PeriodWeekly:
			windowStart = windowEnd.AddDate(0, 0, -21)
		case PeriodMonthly:
			windowStart = addMonths(windowEnd, -2)
		default:
			return Windows{}, ErrInvalidPeriod
		}
	}
	if windowEnd.Before(windowStart) {
		return Windows{}, ErrInvalidDateRange
	}
	if limit, ok := maxTrendBuckets[period]; ok && trendBucketCount(period, windowStart, windowEnd) > limit {
		return Windows{}, ErrInvalidDateRange
	}

	w := Windows{Start: windowStart, End: windowEnd}
	w.PrevEnd = windowStart.AddDate(0, 0, -1)
	switch period {
	case PeriodDaily, PeriodWeekly:
		days := int(windowEnd.Sub(windowStart).Hours()/24) + 1
		w.PrevStart = w.PrevEnd.AddDate(0, 0, -(days - 1))
	case PeriodMonthly:
		months := (windowEnd.Year()-windowStart.Year())*12 + int(windowEnd.Month()) - int(windowStart.Month()) + 1
		w.PrevStart = addMonths(w.PrevEnd, -(months - 1))
	default:
		return Windows{}, ErrInvalidPeriod
	}
	return w, nil
}

func trendBucketCount(period Period, start, end time.Time) int {
	days := int(end.Sub(start).Hours() / 24)
	switch period {
	case PeriodDaily:
		return days + 1
	case PeriodWeekly:
		return days/7 + 1
	case PeriodMonthly:
		return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	default:
		return 0
	}
}

// TrendStart is the lower bound of the first trend bucket. Monthly trends
// begin on the first day of the start month.
func TrendStart(period Period, w Windows) time.Time {
	if period == PeriodMonthly {
		return time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return w.Start
}

// BuildTrend counts timestamps into per-day, 7-day or calendar-month
// buckets covering the window.
func BuildTrend(period Period, w Windows, times []time.Time) []TrendPoint {
	type bucket struct {
		start, end time.Time
	}

	var buckets []bucket
	endExclusive := w.EndExclusive()
	switch period {
	case PeriodDaily:
		for day := w.Start; !day.After(w.End); day = day.AddDate(0, 0, 1) {
			buckets = append(buckets, bucket{start: day, end: day.AddDate(0, 0, 1)})
		}
	case PeriodWeekly:
		for current := w.Start; !current.After(w.End); current = current.AddDate(0, 0, 7) {
			upper := current.AddDate(0, 0, 7)
			if upper.After(endExclusive) {
				upper = endExclusive
			}
			buckets = append(buckets, bucket{start: current, end: upper})
		}
	case PeriodMonthly:
		for current := TrendStart(period, w); !current.After(w.End); current = current.AddDate(0, 1, 0) {
			upper := current.AddDate(0, 1, 0)
			if upper.After(endExclusive) {
				upper = endExclusive
			}
			buckets = append(buckets, bucket{start: current, end: upper})
		}
	}

	sorted := make([]time.Time, len(times))
	for i, t := range times {
		sorted[i] = t.UTC()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	points := make([]TrendPoint, 0, len(buckets))
	idx := 0
	for _, b := range buckets {
		for idx < len(sorted) && sorted[idx].Before(b.start) {
			idx++
		}
		var count int64
		for idx < len(sorted) && sorted[idx].Before(b.end) {
			count++
			idx++
		}
		points = append(points, TrendPoint{Date: b.start.Format(dateLabel), Count: count})
	}
	return points
}

func FormatDate(t time.Time) string {
	return t.Format(dateLabel)
}

// addMonths clamps to the last day of the target month instead of
// overflowing into the next one.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
