// Package severity assigns a business-impact severity to each diff record.
//
// Rules are evaluated in a fixed priority order and the first match wins:
//
//  1. zero-crossing: numeric old > 0 and numeric new == 0 -> CRITICAL
//  2. large-decrease: relative drop above the threshold -> MAJOR
//  3. numeric-drift: any other numeric change -> MINOR
//  4. structural change -> MAJOR, or MINOR on a non-critical path
//
// Rules 1 to 3 apply to VALUE_CHANGED records. ARRAY_LENGTH_CHANGED records
// are checked against rules 1 and 2 on their lengths before rule 4.
// TYPE_CHANGED always falls to rule 4, even between a number and a numeric
// string.
//  5. text or boolean change -> MINOR, or MAJOR on a critical field name
//
// A Classifier holds no mutable state; Classify is safe for concurrent use.
package severity

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

// DefaultLargeDecreaseThreshold is the relative decrease above which a
// numeric change is MAJOR.
const DefaultLargeDecreaseThreshold = 0.30

// DefaultCriticalFieldPatterns name fields whose text changes are MAJOR.
var DefaultCriticalFieldPatterns = []string{"status", "count", "total"}

// DefaultNonCriticalFieldPatterns name paths whose structural changes are MINOR.
var DefaultNonCriticalFieldPatterns = []string{
	"timestamp", "re:_at$", "request_id", "requestid", "trace_id", "etag", "nonce",
}

// Config holds the classifier thresholds and patterns. The zero value is
// usable: New fills in defaults.
type Config struct {
	// DisableZeroCrossing turns rule 1 off. Zero value keeps it on.
	DisableZeroCrossing bool

	// LargeDecreaseThreshold is a fraction in (0, 1]. <= 0 means default.
	LargeDecreaseThreshold float64

	// CriticalFieldPatterns match the changed field name (last key of the
	// path). Nil means defaults; an empty non-nil slice disables the rule.
	CriticalFieldPatterns []string

	// NonCriticalFieldPatterns match the full dotted path. Nil means
	// defaults; an empty non-nil slice disables the downgrade.
	NonCriticalFieldPatterns []string
}

// Validate reports patterns that do not compile. Classification never fails
// on them; New simply ignores invalid patterns.
func (c Config) Validate() error {
	_, e1 := compileAll(c.CriticalFieldPatterns)
	_, e2 := compileAll(c.NonCriticalFieldPatterns)
	errs := append(e1, e2...)
	if c.LargeDecreaseThreshold > 1 {
		errs = append(errs, errors.New("severity: large_decrease_threshold must be <= 1"))
	}
	return errors.Join(errs...)
}

// Classifier applies the rules of a Config.
type Classifier struct {
	zeroCrossing bool
	threshold    float64
	critical     []pattern
	nonCritical  []pattern
}

// New builds a Classifier from cfg with defaults applied.
func New(cfg Config) *Classifier {
	c := &Classifier{
		zeroCrossing: !cfg.DisableZeroCrossing,
		threshold:    cfg.LargeDecreaseThreshold,
	}
	if c.threshold <= 0 || math.IsNaN(c.threshold) {
		c.threshold = DefaultLargeDecreaseThreshold
	}
	crit := cfg.CriticalFieldPatterns
	if crit == nil {
		crit = DefaultCriticalFieldPatterns
	}
	nonCrit := cfg.NonCriticalFieldPatterns
	if nonCrit == nil {
		nonCrit = DefaultNonCriticalFieldPatterns
	}
	c.critical, _ = compileAll(crit)
	c.nonCritical, _ = compileAll(nonCrit)
	return c
}

// Classify returns r with exactly one severity and reason.
func (c *Classifier) Classify(r diffrec.Record) diffrec.Classified {
	sev, reason := c.rule(r)
	return diffrec.Classified{Record: r, Severity: sev, Reason: reason}
}

// ClassifyAll classifies records in order.
func (c *Classifier) ClassifyAll(recs []diffrec.Record) []diffrec.Classified {
	out := make([]diffrec.Classified, len(recs))
	for i, r := range recs {
		out[i] = c.Classify(r)
	}
	return out
}

func (c *Classifier) rule(r diffrec.Record) (diffrec.Severity, string) {
	switch r.Kind {
	case diffrec.ValueChanged:
		if sev, reason, ok := c.numericRule(r, true); ok {
			return sev, reason
		}
	case diffrec.ArrayLengthChanged:
		// Lengths only escalate: an emptied or sharply shrunk array.
		if sev, reason, ok := c.numericRule(r, false); ok {
			return sev, reason
		}
	}

	if r.Kind.Structural() {
		if matchAny(c.nonCritical, r.Path.String()) {
			return diffrec.Minor, diffrec.ReasonNonCritical
		}
		return diffrec.Major, diffrec.ReasonStructural
	}

	if matchAny(c.critical, r.Path.Field()) {
		return diffrec.Major, diffrec.ReasonCriticalField
	}
	return diffrec.Minor, diffrec.ReasonCosmeticText
}

// numericRule applies rules 1 and 2, and rule 3 when drift is set.
func (c *Classifier) numericRule(r diffrec.Record, drift bool) (diffrec.Severity, string, bool) {
	o, oldNum := numeric(r.OldValue)
	n, newNum := numeric(r.NewValue)
	if !oldNum || !newNum {
		return "", "", false
	}
	if c.zeroCrossing && o > 0 && n == 0 {
		return diffrec.Critical, diffrec.ReasonZeroCrossing, true
	}
	if o > 0 && (o-n)/o > c.threshold {
		return diffrec.Major, diffrec.ReasonLargeDecrease, true
	}
	if drift {
		// The differ already compared the literals exactly.
		return diffrec.Minor, diffrec.ReasonNumericDrift, true
	}
	return "", "", false
}

// numeric reports v as a finite number. Numeric strings count; NaN, infinities
// and strings that fail to parse do not.
func numeric(v *jsonval.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.Kind() {
	case jsonval.Number:
		return v.Float64()
	case jsonval.String:
		s := strings.TrimSpace(v.Str())
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
