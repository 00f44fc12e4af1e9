package diffrec

// Severity is the business-impact class of a difference.
type Severity string

const (
	Critical Severity = "CRITICAL"
	Major    Severity = "MAJOR"
	Minor    Severity = "MINOR"
	Info     Severity = "INFO"
)

// Severities lists all levels from most to least severe.
var Severities = []Severity{Critical, Major, Minor, Info}

// Rank orders severities: Critical 4 down to Info 1, unknown or empty 0.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 4
	case Major:
		return 3
	case Minor:
		return 2
	case Info:
		return 1
	}
	return 0
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Reason tags name the classifier rule that fired.
const (
	ReasonZeroCrossing  = "zero-crossing"
	ReasonLargeDecrease = "large-decrease"
	ReasonNumericDrift  = "numeric-drift"
	ReasonStructural    = "structural-change"
	ReasonNonCritical   = "non-critical-field"
	ReasonCosmeticText  = "cosmetic-text"
	ReasonCriticalField = "critical-field"
	ReasonTimeout       = "timeout"
)

// Classified is a Record with its severity and the rule that produced it.
type Classified struct {
	Record
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

// Status is the outcome of comparing one endpoint.
type Status string

const (
	StatusIdentical Status = "IDENTICAL"
	StatusAdded     Status = "ADDED"
	StatusRemoved   Status = "REMOVED"
	StatusDifferent Status = "DIFFERENT"
	StatusError     Status = "ERROR"
	StatusSkipped   Status = "SKIPPED" // endpoint budget exceeded
)

// EndpointResult groups everything found for one EndpointKey.
type EndpointResult struct {
	Endpoint         string       `json:"endpoint"`
	Status           Status       `json:"status"`
	Severity         Severity     `json:"severity,omitempty"`
	Differences      []Classified `json:"differences,omitempty"`
	Error            string       `json:"error,omitempty"`
	Note             string       `json:"note,omitempty"`
	BeforeStatusCode int          `json:"before_status_code,omitempty"`
	AfterStatusCode  int          `json:"after_status_code,omitempty"`
}

// AggregateSeverity derives the endpoint-level severity: the worst of its
// differences for DIFFERENT, MAJOR for ADDED, REMOVED and ERROR, INFO for
// SKIPPED, none for IDENTICAL.
func AggregateSeverity(r EndpointResult) Severity {
	switch r.Status {
	case StatusAdded, StatusRemoved, StatusError:
		return Major
	case StatusSkipped:
		return Info
	case StatusDifferent:
		var worst Severity
		for _, d := range r.Differences {
			worst = MaxSeverity(worst, d.Severity)
		}
		return worst
	}
	return ""
}

// ScreenshotResult is the visual comparison of one named screenshot.
type ScreenshotResult struct {
	Name      string   `json:"name"`
	Status    Status   `json:"status"`
	Severity  Severity `json:"severity,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	DiffRatio float64  `json:"diff_ratio,omitempty"` // changed pixels / total pixels
	Error     string   `json:"error,omitempty"`
}

// Duplicate notes an EndpointKey seen more than once in one snapshot.
type Duplicate struct {
	Endpoint    string `json:"endpoint"`
	Side        string `json:"side"` // "before" | "after"
	Count       int    `json:"count"`
	Conflicting bool   `json:"conflicting"` // payloads differ between occurrences
	Kept        string `json:"kept"`        // "first" | "last"
}

// Run is one full before/after comparison, the unit handed to reporters.
type Run struct {
	ID          string             `json:"id"` // UUIDv7
	BeforeID    string             `json:"before_id,omitempty"`
	AfterID     string             `json:"after_id,omitempty"`
	BeforeLabel string             `json:"before_label,omitempty"`
	AfterLabel  string             `json:"after_label,omitempty"`
	CreatedAt   int64              `json:"created_at"` // epoch milliseconds
	Results     []EndpointResult   `json:"results"`
	Screenshots []ScreenshotResult `json:"screenshots,omitempty"`
	Duplicates  []Duplicate        `json:"duplicates,omitempty"`
	Summary     Summary            `json:"summary"`
}
