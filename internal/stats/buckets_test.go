package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

func saigon(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestLayoutWeekHasSevenDaysEndingToday(t *testing.T) {
	loc := saigon(t)
	// 2025-03-05 00:30 local, still 2025-03-04 in UTC.
	now := time.Date(2025, 3, 4, 17, 30, 0, 0, time.UTC)

	buckets, err := layout(enums.StatsTimeframeWeek, now, loc)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	wantLabels := []string{"27/02", "28/02", "01/03", "02/03", "03/03", "04/03", "05/03"}
	for i, b := range buckets {
		if b.Label != wantLabels[i] {
			t.Fatalf("bucket %d: expected label %s, got %s", i, wantLabels[i], b.Label)
		}
		if b.End.Sub(b.Start) != 24*time.Hour {
			t.Fatalf("bucket %d: expected a one day window", i)
		}
	}
}

func TestLayoutMonthStopsAtToday(t *testing.T) {
	loc := saigon(t)
	now := time.Date(2025, 4, 10, 8, 0, 0, 0, loc)

	buckets, err := layout(enums.StatsTimeframeMonth, now, loc)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(buckets) != 10 {
		t.Fatalf("expected 10 buckets, got %d", len(buckets))
	}
	if buckets[0].Start.Format(isoDate) != "2025-04-01" || buckets[9].Start.Format(isoDate) != "2025-04-10" {
		t.Fatalf("unexpected range %s..%s", buckets[0].Start, buckets[9].Start)
	}

	first, err := layout(enums.StatsTimeframeMonth, time.Date(2025, 4, 1, 0, 0, 0, 0, loc), loc)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected a single bucket on the first of the month, got %d", len(first))
	}
}

func TestLayoutYearHasTwelveMonths(t *testing.T) {
	loc := saigon(t)
	buckets, err := layout(enums.StatsTimeframeYear, time.Date(2025, 2, 1, 12, 0, 0, 0, loc), loc)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(buckets))
	}
	if buckets[0].Label != "T1" || buckets[11].Label != "T12" {
		t.Fatalf("unexpected labels %s..%s", buckets[0].Label, buckets[11].Label)
	}
	if buckets[1].End.Format(isoDate) != "2025-03-01" {
		t.Fatalf("expected february to end on march 1st, got %s", buckets[1].End)
	}
}

func TestLayoutRejectsUnknownTimeframe(t *testing.T) {
	if _, err := layout("decade", time.Now(), time.UTC); err == nil {
		t.Fatalf("expected error for unknown timeframe")
	}
}

func TestFillGapFillsAndSums(t *testing.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets := dayBuckets(day, day.AddDate(0, 0, 2))
	rows := []RevenueRow{
		{OrderDate: day.Add(2 * time.Hour), TotalAmount: decimal.NewFromInt(100)},
		{OrderDate: day.Add(23 * time.Hour), TotalAmount: decimal.RequireFromString("0.50")},
		{OrderDate: day.AddDate(0, 0, 2), TotalAmount: decimal.NewFromInt(7)},
		{OrderDate: day.AddDate(0, 0, 3), TotalAmount: decimal.NewFromInt(1000)},
	}

	points := fill(buckets, rows)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	want := []string{"100.5", "0", "7"}
	for i, p := range points {
		if p.Revenue.String() != want[i] {
			t.Fatalf("point %d: expected %s, got %s", i, want[i], p.Revenue)
		}
	}
	if points[1].Date != "2025-01-02" {
		t.Fatalf("expected iso date on gap point, got %s", points[1].Date)
	}
}
