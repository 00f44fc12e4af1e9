package severity

import (
	"testing"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/internal/structdiff"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

func changed(path diffrec.Path, kind diffrec.Kind, before, after string) diffrec.Record {
	r := diffrec.Record{Path: path, Kind: kind}
	if before != "" {
		r.OldValue = diffrec.Ref(jsonval.MustParse(before))
	}
	if after != "" {
		r.NewValue = diffrec.Ref(jsonval.MustParse(after))
	}
	return r
}

var assets = diffrec.Path{diffrec.Key("sites"), diffrec.Key("Site657"), diffrec.Key("total_assets")}

func TestClassify_Rules(t *testing.T) {
	c := New(Config{})
	tests := []struct {
		name   string
		rec    diffrec.Record
		sev    diffrec.Severity
		reason string
	}{
		{"zero crossing", changed(assets, diffrec.ValueChanged, `1`, `0`), diffrec.Critical, diffrec.ReasonZeroCrossing},
		{"zero to one", changed(assets, diffrec.ValueChanged, `0`, `1`), diffrec.Minor, diffrec.ReasonNumericDrift},
		{"large decrease", changed(assets, diffrec.ValueChanged, `2535`, `1048`), diffrec.Major, diffrec.ReasonLargeDecrease},
		{"small decrease", changed(assets, diffrec.ValueChanged, `450`, `445`), diffrec.Minor, diffrec.ReasonNumericDrift},
		{"increase", changed(assets, diffrec.ValueChanged, `10`, `100`), diffrec.Minor, diffrec.ReasonNumericDrift},
		{"negative to zero", changed(assets, diffrec.ValueChanged, `-3`, `0`), diffrec.Minor, diffrec.ReasonNumericDrift},
		{"float zero", changed(assets, diffrec.ValueChanged, `0.5`, `0.0`), diffrec.Critical, diffrec.ReasonZeroCrossing},
		{"numeric strings", changed(assets, diffrec.ValueChanged, `"12"`, `"0"`), diffrec.Critical, diffrec.ReasonZeroCrossing},
		{"number to numeric string", changed(assets, diffrec.TypeChanged, `1`, `"0"`), diffrec.Major, diffrec.ReasonStructural},
		{"number to other numeric string", changed(assets, diffrec.TypeChanged, `5`, `"6"`), diffrec.Major, diffrec.ReasonStructural},
		{"same number retyped", changed(assets, diffrec.TypeChanged, `5`, `"5"`), diffrec.Major, diffrec.ReasonStructural},
		{"key removed", changed(assets, diffrec.KeyRemoved, `5`, ``), diffrec.Major, diffrec.ReasonStructural},
		{"key added", changed(assets, diffrec.KeyAdded, ``, `5`), diffrec.Major, diffrec.ReasonStructural},
		{"array emptied", changed(nil, diffrec.ArrayLengthChanged, `3`, `0`), diffrec.Critical, diffrec.ReasonZeroCrossing},
		{"array shrank", changed(nil, diffrec.ArrayLengthChanged, `3`, `2`), diffrec.Major, diffrec.ReasonLargeDecrease},
		{"array grew", changed(nil, diffrec.ArrayLengthChanged, `2`, `3`), diffrec.Major, diffrec.ReasonStructural},
		{"array shrank slightly", changed(nil, diffrec.ArrayLengthChanged, `10`, `9`), diffrec.Major, diffrec.ReasonStructural},
		{"non-critical array grew", changed(diffrec.Path{diffrec.Key("trace_ids")}, diffrec.ArrayLengthChanged, `1`, `2`), diffrec.Minor, diffrec.ReasonNonCritical},
		{"non-critical key", changed(diffrec.Path{diffrec.Key("meta"), diffrec.Key("updated_at")}, diffrec.KeyAdded, ``, `"x"`), diffrec.Minor, diffrec.ReasonNonCritical},
		{"request id removed", changed(diffrec.Path{diffrec.Key("headers"), diffrec.Key("X_Request_Id")}, diffrec.KeyRemoved, `"a"`, ``), diffrec.Minor, diffrec.ReasonNonCritical},
		{"cosmetic text", changed(diffrec.Path{diffrec.Key("label")}, diffrec.ValueChanged, `"Asset"`, `"asset"`), diffrec.Minor, diffrec.ReasonCosmeticText},
		{"status text", changed(diffrec.Path{diffrec.Key("job"), diffrec.Key("Status")}, diffrec.ValueChanged, `"ok"`, `"failed"`), diffrec.Major, diffrec.ReasonCriticalField},
		{"bool on count field", changed(diffrec.Path{diffrec.Key("has_count")}, diffrec.ValueChanged, `true`, `false`), diffrec.Major, diffrec.ReasonCriticalField},
		{"critical name only on last key", changed(diffrec.Path{diffrec.Key("totals"), diffrec.Key("label")}, diffrec.ValueChanged, `"a"`, `"b"`), diffrec.Minor, diffrec.ReasonCosmeticText},
		{"null to number", changed(assets, diffrec.TypeChanged, `null`, `3`), diffrec.Major, diffrec.ReasonStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.rec)
			if got.Severity != tt.sev || got.Reason != tt.reason {
				t.Errorf("got %s/%s, want %s/%s", got.Severity, got.Reason, tt.sev, tt.reason)
			}
		})
	}
}

func TestClassify_DifferOutput(t *testing.T) {
	c := New(Config{})
	tests := []struct {
		before, after string
		kind          diffrec.Kind
		sev           diffrec.Severity
		reason        string
	}{
		{`{"items":[1,2,3]}`, `{"items":[1,2,3,4]}`, diffrec.ArrayLengthChanged, diffrec.Major, diffrec.ReasonStructural},
		{`[1,2,3,4,5,6,7,8,9,10]`, `[1,2,3,4,5,6,7,8,9]`, diffrec.ArrayLengthChanged, diffrec.Major, diffrec.ReasonStructural},
		{`{"v":5}`, `{"v":"6"}`, diffrec.TypeChanged, diffrec.Major, diffrec.ReasonStructural},
		{`{"v":5}`, `{"v":"0"}`, diffrec.TypeChanged, diffrec.Major, diffrec.ReasonStructural},
		{`{"items":[1]}`, `{"items":[]}`, diffrec.ArrayLengthChanged, diffrec.Critical, diffrec.ReasonZeroCrossing},
	}
	for _, tt := range tests {
		recs := structdiff.Collect(jsonval.MustParse(tt.before), jsonval.MustParse(tt.after))
		if len(recs) != 1 {
			t.Fatalf("%s -> %s: got %d records, want 1", tt.before, tt.after, len(recs))
		}
		got := c.Classify(recs[0])
		if recs[0].Kind != tt.kind || got.Severity != tt.sev || got.Reason != tt.reason {
			t.Errorf("%s -> %s: got %s %s/%s, want %s %s/%s", tt.before, tt.after,
				recs[0].Kind, got.Severity, got.Reason, tt.kind, tt.sev, tt.reason)
		}
	}
}

func TestClassify_OutOfDomainNumbers(t *testing.T) {
	c := New(Config{})
	for _, s := range []string{`"NaN"`, `"inf"`, `"-Infinity"`, `"1.2.3"`, `"12abc"`, `""`} {
		r := changed(diffrec.Path{diffrec.Key("note")}, diffrec.ValueChanged, `"5"`, s)
		got := c.Classify(r)
		if got.Severity != diffrec.Minor || got.Reason != diffrec.ReasonCosmeticText {
			t.Errorf("%s: got %s/%s, want MINOR/cosmetic-text", s, got.Severity, got.Reason)
		}
	}
	// 1e999 overflows float64 and is not a finite number.
	r := changed(assets, diffrec.ValueChanged, `1`, `1e999`)
	if got := c.Classify(r); got.Reason == diffrec.ReasonNumericDrift {
		t.Errorf("overflowing literal classified as numeric: %s", got.Reason)
	}
}

func TestClassify_Threshold(t *testing.T) {
	r := changed(assets, diffrec.ValueChanged, `100`, `80`)
	if got := New(Config{}).Classify(r); got.Severity != diffrec.Minor {
		t.Errorf("20%% drop with default threshold: got %s", got.Severity)
	}
	if got := New(Config{LargeDecreaseThreshold: 0.1}).Classify(r); got.Reason != diffrec.ReasonLargeDecrease {
		t.Errorf("20%% drop with 10%% threshold: got %s", got.Reason)
	}
	// Exactly at the threshold does not exceed it.
	r = changed(assets, diffrec.ValueChanged, `100`, `70`)
	if got := New(Config{}).Classify(r); got.Reason != diffrec.ReasonNumericDrift {
		t.Errorf("30%% drop at 30%% threshold: got %s", got.Reason)
	}
}

func TestClassify_ZeroCrossingDisabled(t *testing.T) {
	c := New(Config{DisableZeroCrossing: true})
	got := c.Classify(changed(assets, diffrec.ValueChanged, `1`, `0`))
	if got.Severity != diffrec.Major || got.Reason != diffrec.ReasonLargeDecrease {
		t.Errorf("got %s/%s, want MAJOR/large-decrease", got.Severity, got.Reason)
	}
}

func TestClassify_CustomPatterns(t *testing.T) {
	c := New(Config{
		CriticalFieldPatterns:    []string{`re:^(state|phase)$`},
		NonCriticalFieldPatterns: []string{},
	})
	if got := c.Classify(changed(diffrec.Path{diffrec.Key("phase")}, diffrec.ValueChanged, `"a"`, `"b"`)); got.Severity != diffrec.Major {
		t.Errorf("regex critical: got %s", got.Severity)
	}
	if got := c.Classify(changed(diffrec.Path{diffrec.Key("status")}, diffrec.ValueChanged, `"a"`, `"b"`)); got.Severity != diffrec.Minor {
		t.Errorf("default critical should be replaced: got %s", got.Severity)
	}
	if got := c.Classify(changed(diffrec.Path{diffrec.Key("updated_at")}, diffrec.KeyAdded, ``, `1`)); got.Severity != diffrec.Major {
		t.Errorf("empty non-critical list should disable downgrade: got %s", got.Severity)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(Config{})
	recs := []diffrec.Record{
		changed(assets, diffrec.ValueChanged, `1`, `0`),
		changed(diffrec.Path{diffrec.Key("label")}, diffrec.ValueChanged, `"a"`, `"b"`),
		changed(nil, diffrec.ArrayLengthChanged, `4`, `1`),
	}
	first := c.ClassifyAll(recs)
	// Reverse order; each record must keep its classification.
	for i := len(recs) - 1; i >= 0; i-- {
		got := c.Classify(recs[i])
		if got.Severity != first[i].Severity || got.Reason != first[i].Reason {
			t.Errorf("record %d: order-dependent classification", i)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config: %v", err)
	}
	cfg := Config{CriticalFieldPatterns: []string{"status", "re:("}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid regex")
	}
	// New ignores the invalid pattern and keeps the valid one.
	c := New(cfg)
	got := c.Classify(changed(diffrec.Path{diffrec.Key("status")}, diffrec.ValueChanged, `"a"`, `"b"`))
	if got.Severity != diffrec.Major {
		t.Errorf("valid pattern next to invalid one: got %s", got.Severity)
	}
}
