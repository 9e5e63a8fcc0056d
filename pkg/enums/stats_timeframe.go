package enums

import (
	"fmt"
	"strings"
)

// StatsTimeframe selects the bucket layout of the revenue chart.
type StatsTimeframe string

const (
	StatsTimeframeWeek  StatsTimeframe = "week"
	StatsTimeframeMonth StatsTimeframe = "month"
	StatsTimeframeYear  StatsTimeframe = "year"
)

var validStatsTimeframes = []StatsTimeframe{
	StatsTimeframeWeek,
	StatsTimeframeMonth,
	StatsTimeframeYear,
}

// String implements fmt.Stringer.
func (s StatsTimeframe) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StatsTimeframe.
func (s StatsTimeframe) IsValid() bool {
	for _, candidate := range validStatsTimeframes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStatsTimeframe converts raw input into a StatsTimeframe, defaulting to week.
func ParseStatsTimeframe(value string) (StatsTimeframe, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return StatsTimeframeWeek, nil
	}
	for _, candidate := range validStatsTimeframes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stats timeframe %q", value)
}
