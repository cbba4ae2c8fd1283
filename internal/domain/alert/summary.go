package alert

import "time"

// Summary aggregates a set of alerts for dashboard consumption.
type Summary struct {
	Total                int              `json:"total"`
	BySeverity           map[Severity]int `json:"by_severity"`
	ByCategory           map[Category]int `json:"by_category"`
	HealthcareSpecific   int              `json:"healthcare_specific"`
	LastHour             int              `json:"last_hour"`
	Last24Hours          int              `json:"last_24_hours"`
	Trend                Trend            `json:"trend"`
	AvgResolutionMinutes float64          `json:"avg_resolution_minutes"`
}

// Summarize computes counts, a volume trend, and mean resolution latency
// over the given alerts. The trend compares the trailing 24h window with
// the 24h window before it: >1.2x is increasing, <0.8x is decreasing.
// An empty input yields all-zero counts and a stable trend.
func Summarize(alerts []*Alert, now time.Time) Summary {
	s := Summary{
		BySeverity: map[Severity]int{
			SeverityLow:      0,
			SeverityMedium:   0,
			SeverityHigh:     0,
			SeverityCritical: 0,
		},
		ByCategory: map[Category]int{},
		Trend:      TrendStable,
	}

	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	twoDaysAgo := now.Add(-48 * time.Hour)

	var last24, prior24 int
	var resolvedCount int
	var resolvedTotal time.Duration

	for _, a := range alerts {
		s.Total++
		s.BySeverity[a.Severity]++
		s.ByCategory[a.Category]++
		if a.HealthcareSpecific {
			s.HealthcareSpecific++
		}
		if a.Timestamp.After(hourAgo) {
			s.LastHour++
		}
		if a.Timestamp.After(dayAgo) {
			last24++
		} else if a.Timestamp.After(twoDaysAgo) {
			prior24++
		}
		if latency, ok := a.ResolutionLatency(); ok {
			resolvedCount++
			resolvedTotal += latency
		}
	}

	s.Last24Hours = last24
	s.Trend = trendOf(last24, prior24)
	if resolvedCount > 0 {
		s.AvgResolutionMinutes = resolvedTotal.Minutes() / float64(resolvedCount)
	}
	return s
}

func trendOf(last24, prior24 int) Trend {
	if last24 == 0 && prior24 == 0 {
		return TrendStable
	}
	if prior24 == 0 {
		return TrendIncreasing
	}
	ratio := float64(last24) / float64(prior24)
	switch {
	case ratio > 1.2:
		return TrendIncreasing
	case ratio < 0.8:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
