package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dayLabel   = "2006-01-02"
	monthLabel = "2006-01"
)

// maxBuckets bounds the number of buckets a single report may span.
var maxBuckets = map[Period]int{
	PeriodDaily:   366,
	PeriodWeekly:  260,
	PeriodMonthly: 120,
}

// ResolveWindow fills in the default window for period. Defaulted starts
// are aligned to 00:00 UTC.
func ResolveWindow(period Period, start, end *time.Time, now time.Time) (time.Time, time.Time, error) {
	windowEnd := now.UTC()
	if end != nil {
		windowEnd = end.UTC()
	}

	var windowStart time.Time
	if start != nil {
		windowStart = start.UTC()
	} else {
		switch period {
		case PeriodDaily:
			windowStart = truncateDay(windowEnd.AddDate(0, 0, -6))
		case PeriodWeekly:
			windowStart = truncateDay(windowEnd.AddDate(0, 0, -35))
		case PeriodMonthly:
			windowStart = firstOfMonth(windowEnd).AddDate(0, -5, 0)
		default:
			return time.Time{}, time.Time{}, ErrInvalidPeriod
		}
	}

	if windowEnd.Before(windowStart) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	if limit, ok := maxBuckets[period]; ok && bucketCount(period, windowStart, windowEnd) > limit {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return windowStart, windowEnd, nil
}

// bucketCount is the number of buckets bucketStarts yields for the window.
func bucketCount(period Period, start, end time.Time) int {
	switch period {
	case PeriodDaily:
		return int(truncateDay(end).Sub(truncateDay(start)).Hours()/24) + 1
	case PeriodWeekly:
		return int(truncateDay(end).Sub(mondayOf(start)).Hours()/24)/7 + 1
	case PeriodMonthly:
		end = end.UTC()
		start = start.UTC()
		return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	default:
		return 0
	}
}

// Build buckets usage and balance for the window in in. Usage is scoped to
// the window; balance is cumulative from OpeningBalance.
func Build(in Input) Report {
	starts := bucketStarts(in.Period, in.Start, in.End)

	usage := make([]UsageDelta, 0, len(in.Usage))
	deltas := make([]UsageDelta, 0, len(in.Usage)+len(in.Purchases))
	for _, u := range in.Usage {
		ts := u.Timestamp.UTC()
		usage = append(usage, UsageDelta{Timestamp: ts, Credits: u.Credits})
		deltas = append(deltas, UsageDelta{Timestamp: ts, Credits: -u.Credits})
	}
	for _, p := range in.Purchases {
		deltas = append(deltas, UsageDelta{Timestamp: p.Timestamp.UTC(), Credits: p.Credits})
	}
	sortByTime(usage)
	sortByTime(deltas)

	report := Report{
		CurrentCredits: in.CurrentBalance,
		Period:         in.Period,
		UsageHistory:   make([]UsagePoint, 0, len(starts)),
		BalanceHistory: make([]BalancePoint, 0, len(starts)),
		Start:          in.Start,
		End:            in.End,
	}

	balance := in.OpeningBalance
	cursor, usageCursor := 0, 0
	for i, bucketStart := range starts {
		bucketEnd := nextBucket(in.Period, bucketStart)
		label := formatLabel(in.Period, bucketStart)

		for usageCursor < len(usage) && usage[usageCursor].Timestamp.Before(bucketStart) {
			usageCursor++
		}
		var used int64
		for usageCursor < len(usage) && usage[usageCursor].Timestamp.Before(bucketEnd) {
			used += usage[usageCursor].Credits
			usageCursor++
		}
		report.UsageHistory = append(report.UsageHistory, UsagePoint{Date: label, Credits: used})

		for cursor < len(deltas) && deltas[cursor].Timestamp.Before(bucketEnd) {
			balance += deltas[cursor].Credits
			cursor++
		}
		point := BalancePoint{Date: label, Balance: balance}
		if i == len(starts)-1 {
			report.ProjectedBalance = balance
			point.Balance = in.CurrentBalance
		}
		report.BalanceHistory = append(report.BalanceHistory, point)
	}

	for _, u := range in.Usage {
		report.TotalCredits += u.Credits
	}
	if n := len(report.UsageHistory); n > 0 {
		report.UsedThisPeriod = report.UsageHistory[n-1].Credits
		report.Average = report.TotalCredits / int64(n)
	}

	totalMoney := decimal.Zero
	for _, p := range in.Purchases {
		totalMoney = totalMoney.Add(p.Amount)
		report.TotalCreditsPurchased += p.Credits
	}
	report.TotalMoney = totalMoney.InexactFloat64()
	if report.TotalCreditsPurchased > 0 {
		report.CostPerCredit = totalMoney.
			Div(decimal.NewFromInt(report.TotalCreditsPurchased)).
			Round(4).
			InexactFloat64()
	}
	return report
}

func sortByTime(deltas []UsageDelta) {
	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].Timestamp.Before(deltas[j].Timestamp)
	})
}

func bucketStarts(period Period, start, end time.Time) []time.Time {
	var first time.Time
	switch period {
	case PeriodDaily:
		first = truncateDay(start)
	case PeriodWeekly:
		first = mondayOf(start)
	case PeriodMonthly:
		first = firstOfMonth(start)
	default:
		return nil
	}

	var starts []time.Time
	for current := first; !current.After(end); current = nextBucket(period, current) {
		starts = append(starts, current)
	}
	return starts
}

func nextBucket(period Period, t time.Time) time.Time {
	switch period {
	case PeriodDaily:
		return t.AddDate(0, 0, 1)
	case PeriodWeekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 1, 0)
	}
}

func formatLabel(period Period, t time.Time) string {
	if period == PeriodMonthly {
		return t.Format(monthLabel)
	}
	return t.Format(dayLabel)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func mondayOf(t time.Time) time.Time {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
