package diffrec

// Summary holds the counts a report header needs.
type Summary struct {
	Endpoints   int `json:"endpoints"`
	Identical   int `json:"identical"`
	Added       int `json:"added"`
	Removed     int `json:"removed"`
	Different   int `json:"different"`
	Errors      int `json:"errors"`
	Skipped     int `json:"skipped"`
	Differences int `json:"differences"`

	// BySeverity counts individual differences per severity.
	BySeverity map[Severity]int `json:"by_severity"`
	// EndpointsBySeverity counts endpoints per aggregate severity.
	EndpointsBySeverity map[Severity]int `json:"endpoints_by_severity"`

	ScreenshotsChanged int `json:"screenshots_changed,omitempty"`
}

// Summarize computes a Summary in one pass over results.
func Summarize(results []EndpointResult) Summary {
	s := Summary{
		Endpoints:           len(results),
		BySeverity:          make(map[Severity]int, len(Severities)),
		EndpointsBySeverity: make(map[Severity]int, len(Severities)),
	}
	for _, r := range results {
		switch r.Status {
		case StatusIdentical:
			s.Identical++
		case StatusAdded:
			s.Added++
		case StatusRemoved:
			s.Removed++
		case StatusDifferent:
			s.Different++
		case StatusError:
			s.Errors++
		case StatusSkipped:
			s.Skipped++
		}
		for _, d := range r.Differences {
			s.Differences++
			s.BySeverity[d.Severity]++
		}
		if sev := AggregateSeverity(r); sev != "" {
			s.EndpointsBySeverity[sev]++
		}
	}
	return s
}

// CountScreenshots adds screenshot outcomes to s.
func (s *Summary) CountScreenshots(shots []ScreenshotResult) {
	for _, sh := range shots {
		if sh.Status != StatusIdentical {
			s.ScreenshotsChanged++
		}
	}
}

// Worst returns the most severe endpoint-level severity, "" when all
// endpoints are identical.
func (s Summary) Worst() Severity {
	for _, sev := range Severities {
		if s.EndpointsBySeverity[sev] > 0 {
			return sev
		}
	}
	return ""
}

// HasCritical reports whether any endpoint reached CRITICAL.
func (s Summary) HasCritical() bool { return s.EndpointsBySeverity[Critical] > 0 }
