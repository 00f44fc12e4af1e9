package structdiff

import (
	"sort"
	"strings"
	"testing"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

var fixtures = []string{
	`null`,
	`true`,
	`0`,
	`-12.5`,
	`"text"`,
	`[]`,
	`{}`,
	`[1, 2, 3]`,
	`{"a": 1, "b": [true, null, {"c": "d"}], "e": {"f": {"g": [[]]}}}`,
	`{"sites": {"Site657": {"total_assets": 1}, "All Facilities": {"total_assets": 2535}}}`,
	`[{"id": 1, "tags": ["x", "y"]}, {"id": 2, "tags": []}, null]`,
}

func TestDiff_Identity(t *testing.T) {
	for _, src := range fixtures {
		a := jsonval.MustParse(src)
		b := jsonval.MustParse(src) // independent deep copy
		if recs := Collect(a, b); len(recs) != 0 {
			t.Errorf("%s: expected no records, got %d (%v)", src, len(recs), recs[0].Kind)
		}
	}
}

func TestDiff_IntegerFloatEqual(t *testing.T) {
	recs := Collect(jsonval.MustParse(`{"n": 1, "m": [2]}`), jsonval.MustParse(`{"n": 1.0, "m": [2.00]}`))
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestDiff_Scenario(t *testing.T) {
	before := jsonval.MustParse(`{"sites": {"Site657": {"total_assets": 1}, "All Facilities": {"total_assets": 2535}}}`)
	after := jsonval.MustParse(`{"sites": {"Site657": {"total_assets": 0}, "All Facilities": {"total_assets": 1048}}}`)

	recs := Collect(before, after)
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	want := []string{"sites.Site657.total_assets", "sites.All Facilities.total_assets"}
	for i, r := range recs {
		if r.Path.String() != want[i] {
			t.Errorf("record %d path: got %q, want %q", i, r.Path, want[i])
		}
		if r.Kind != diffrec.ValueChanged {
			t.Errorf("record %d kind: got %s", i, r.Kind)
		}
	}
	if o, _ := recs[0].Old(); o.String() != "1" {
		t.Errorf("old value: got %s", o)
	}
	if n, _ := recs[0].New(); n.String() != "0" {
		t.Errorf("new value: got %s", n)
	}
}

func TestDiff_ArrayLengthChanged(t *testing.T) {
	recs := Collect(jsonval.MustParse(`[1,2,3]`), jsonval.MustParse(`[1,2]`))
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	r := recs[0]
	if r.Kind != diffrec.ArrayLengthChanged || len(r.Path) != 0 {
		t.Fatalf("got %s at %q", r.Kind, r.Path)
	}
	if o, _ := r.Old(); o.String() != "3" {
		t.Errorf("old length: got %s", o)
	}
	if n, _ := r.New(); n.String() != "2" {
		t.Errorf("new length: got %s", n)
	}
	if len(r.Tail) != 1 || r.Tail[0].String() != "3" {
		t.Errorf("tail: got %v", r.Tail)
	}
}

func TestDiff_ArrayPrefixStillCompared(t *testing.T) {
	recs := Collect(jsonval.MustParse(`[1,2,3]`), jsonval.MustParse(`[1,9]`))
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	if recs[0].Kind != diffrec.ArrayLengthChanged {
		t.Errorf("first record: got %s", recs[0].Kind)
	}
	if recs[1].Kind != diffrec.ValueChanged || recs[1].Path.String() != "[1]" {
		t.Errorf("second record: got %s at %q", recs[1].Kind, recs[1].Path)
	}
}

func TestDiff_ReorderIsPositional(t *testing.T) {
	recs := Collect(jsonval.MustParse(`["a","b"]`), jsonval.MustParse(`["b","a"]`))
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	for _, r := range recs {
		if r.Kind != diffrec.ValueChanged {
			t.Errorf("got %s, want VALUE_CHANGED", r.Kind)
		}
	}
}

func TestDiff_TypeChangedStopsRecursion(t *testing.T) {
	recs := Collect(jsonval.MustParse(`{"a": {"b": 1}}`), jsonval.MustParse(`{"a": [1]}`))
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	if recs[0].Kind != diffrec.TypeChanged || recs[0].Path.String() != "a" {
		t.Errorf("got %s at %q", recs[0].Kind, recs[0].Path)
	}
}

func TestDiff_KeyOrder(t *testing.T) {
	before := jsonval.MustParse(`{"z": 1, "gone": 2, "a": 3}`)
	after := jsonval.MustParse(`{"new2": 0, "a": 4, "z": 1, "new1": 0}`)

	var got []string
	for r := range Diff(before, after) {
		got = append(got, string(r.Kind)+":"+r.Path.String())
	}
	want := []string{"KEY_REMOVED:gone", "VALUE_CHANGED:a", "KEY_ADDED:new2", "KEY_ADDED:new1"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("order:\n got %v\nwant %v", got, want)
	}
}

func TestDiff_AbsentValues(t *testing.T) {
	recs := Collect(jsonval.MustParse(`{"a": 1}`), jsonval.MustParse(`{"b": null}`))
	if len(recs) != 2 {
		t.Fatalf("records: got %d", len(recs))
	}
	if recs[0].Kind != diffrec.KeyRemoved || recs[0].NewValue != nil || recs[0].OldValue == nil {
		t.Errorf("KEY_REMOVED values: %+v", recs[0])
	}
	if recs[1].Kind != diffrec.KeyAdded || recs[1].OldValue != nil || recs[1].NewValue == nil {
		t.Errorf("KEY_ADDED values: %+v", recs[1])
	}
	if !recs[1].NewValue.IsNull() {
		t.Errorf("added null should be present as null, got %s", recs[1].NewValue)
	}
}

func TestDiff_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{`{"a": 1, "b": [1,2,3]}`, `{"a": 2, "b": [1,2], "c": true}`},
		{`[1, {"x": "y"}]`, `[1, {"x": "z", "w": null}, 3]`},
		{`{"k": {"deep": [null]}}`, `{"k": "flat"}`},
		{`1`, `"1"`},
	}
	for _, p := range pairs {
		a, b := jsonval.MustParse(p[0]), jsonval.MustParse(p[1])
		ab, ba := Collect(a, b), Collect(b, a)
		if (len(ab) == 0) != (len(ba) == 0) {
			t.Fatalf("%s vs %s: detection not symmetric", p[0], p[1])
		}
		if pathSet(ab) != pathSet(ba) {
			t.Errorf("%s vs %s: paths differ\n ab=%s\n ba=%s", p[0], p[1], pathSet(ab), pathSet(ba))
		}
		for _, r := range ab {
			if r.Kind != diffrec.ValueChanged {
				continue
			}
			for _, s := range ba {
				if s.Path.String() == r.Path.String() && s.Kind == diffrec.ValueChanged {
					if !jsonval.Equal(*r.OldValue, *s.NewValue) || !jsonval.Equal(*r.NewValue, *s.OldValue) {
						t.Errorf("%s: values not swapped", r.Path)
					}
				}
			}
		}
	}
}

func pathSet(recs []diffrec.Record) string {
	paths := make([]string, len(recs))
	for i, r := range recs {
		paths[i] = r.Path.Display()
	}
	sort.Strings(paths)
	return strings.Join(paths, ",")
}

func TestApply_ReplaysToAfter(t *testing.T) {
	pairs := [][2]string{
		{`{"a": 1, "b": [1,2,3]}`, `{"a": 2, "b": [1,2], "c": true}`},
		{`[1, {"x": "y"}]`, `[1, {"x": "z", "w": null}, 3, [4]]`},
		{`{"k": {"deep": [null]}}`, `{"k": "flat"}`},
		{`{"sites": {"Site657": {"total_assets": 1}}}`, `{"sites": {"Site657": {"total_assets": 0}, "Other": {}}}`},
		{`[]`, `[[], {}, ""]`},
		{`"x"`, `null`},
	}
	for _, p := range pairs {
		before, after := jsonval.MustParse(p[0]), jsonval.MustParse(p[1])
		got, err := Apply(before, Collect(before, after))
		if err != nil {
			t.Fatalf("%s -> %s: %v", p[0], p[1], err)
		}
		if !jsonval.Equal(got, after) {
			t.Errorf("%s -> %s: replay got %s", p[0], p[1], got)
		}
	}
}

func TestDiff_MaxDepthTruncates(t *testing.T) {
	before := jsonval.MustParse(`{"a": {"b": {"c": {"d": 1}}}}`)
	after := jsonval.MustParse(`{"a": {"b": {"c": {"d": 2}}}}`)

	recs := Collect(before, after, WithMaxDepth(2))
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	r := recs[0]
	if r.Kind != diffrec.TypeChanged || !r.Truncated || r.Path.String() != "a.b" {
		t.Errorf("got %s truncated=%v at %q", r.Kind, r.Truncated, r.Path)
	}

	if recs := Collect(before, before, WithMaxDepth(1)); len(recs) != 0 {
		t.Errorf("equal subtree past max depth: got %d records", len(recs))
	}
}

func TestDiff_DeepNesting(t *testing.T) {
	depth := 5000
	src := strings.Repeat("[", depth) + "1" + strings.Repeat("]", depth)
	dst := strings.Repeat("[", depth) + "2" + strings.Repeat("]", depth)

	recs := Collect(jsonval.MustParse(src), jsonval.MustParse(dst))
	if len(recs) != 1 || !recs[0].Truncated {
		t.Fatalf("expected a single truncated record, got %d", len(recs))
	}
	if len(recs[0].Path) != DefaultMaxDepth {
		t.Errorf("truncation depth: got %d, want %d", len(recs[0].Path), DefaultMaxDepth)
	}
}

func TestDiff_EarlyStop(t *testing.T) {
	before := jsonval.MustParse(`[1,2,3,4,5]`)
	after := jsonval.MustParse(`[5,4,3,2,1]`)

	n := 0
	for range Diff(before, after) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("consumed %d records", n)
	}
}

func TestDiff_InvalidPayload(t *testing.T) {
	bad := jsonval.InvalidValue("<html>502 Bad Gateway</html>")
	recs := Collect(jsonval.MustParse(`{"ok": true}`), bad)
	if len(recs) != 1 || recs[0].Kind != diffrec.TypeChanged || len(recs[0].Path) != 0 {
		t.Fatalf("expected one TYPE_CHANGED at root, got %+v", recs)
	}
	if recs := Collect(bad, jsonval.InvalidValue("<html>502 Bad Gateway</html>")); len(recs) != 0 {
		t.Errorf("identical invalid payloads: got %d records", len(recs))
	}
}

func TestDiffAt_Prefix(t *testing.T) {
	prefix := diffrec.Path{diffrec.Key("data")}
	var got []diffrec.Record
	for r := range DiffAt(prefix, jsonval.MustParse(`{"x": 1}`), jsonval.MustParse(`{"x": 2}`)) {
		got = append(got, r)
	}
	if len(got) != 1 || got[0].Path.String() != "data.x" {
		t.Fatalf("got %v", got)
	}
}
