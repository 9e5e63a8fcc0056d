package stats

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

const (
	isoDate    = "2006-01-02"
	dayLabel   = "02/01"
	weekLength = 7
)

// bucket is a half-open [Start, End) window in the merchant time zone.
type bucket struct {
	Start time.Time
	End   time.Time
	Label string
}

// layout returns the chart buckets for tf as seen at now in loc: the last seven
// calendar days for week, day one of the month through today for month, and
// the twelve months of the current year for year.
func layout(tf enums.StatsTimeframe, now time.Time, loc *time.Location) ([]bucket, error) {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch tf {
	case enums.StatsTimeframeWeek:
		return dayBuckets(today.AddDate(0, 0, -(weekLength - 1)), today), nil
	case enums.StatsTimeframeMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return dayBuckets(first, today), nil
	case enums.StatsTimeframeYear:
		out := make([]bucket, 0, 12)
		for m := time.January; m <= time.December; m++ {
			start := time.Date(today.Year(), m, 1, 0, 0, 0, 0, loc)
			out = append(out, bucket{
				Start: start,
				End:   start.AddDate(0, 1, 0),
				Label: fmt.Sprintf("T%d", int(m)),
			})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

func dayBuckets(from, through time.Time) []bucket {
	var out []bucket
	for day := from; !day.After(through); day = day.AddDate(0, 0, 1) {
		out = append(out, bucket{
			Start: day,
			End:   day.AddDate(0, 0, 1),
			Label: day.Format(dayLabel),
		})
	}
	return out
}

// fill sums rows into buckets. Buckets without rows stay at zero; rows outside
// every bucket are ignored.
func fill(buckets []bucket, rows []RevenueRow) []ChartPoint {
	points := make([]ChartPoint, len(buckets))
	for i, b := range buckets {
		points[i] = ChartPoint{
			Label:   b.Label,
			Date:    b.Start.Format(isoDate),
			Revenue: decimal.Zero,
		}
	}
	for _, row := range rows {
		idx := locate(buckets, row.OrderDate)
		if idx < 0 {
			continue
		}
		points[idx].Revenue = points[idx].Revenue.Add(row.TotalAmount)
	}
	return points
}

func locate(buckets []bucket, at time.Time) int {
	for i, b := range buckets {
		if !at.Before(b.Start) && at.Before(b.End) {
			return i
		}
	}
	return -1
}
