package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || len(strings.Split(id, "-")) != 5 {
		t.Fatalf("UUIDv7: unexpected format %q", id)
	}
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble %q in %q", id[14], id)
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 1000)
	for i := range 1000 {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("run_", UUIDv7())()
	if !strings.HasPrefix(id, "run_") || len(id) != 4+36 {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("snap_")
	if a, b := gen(), gen(); a != "snap_1" || b != "snap_2" {
		t.Fatalf("Sequence: got %q, %q", a, b)
	}
}

func TestTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Time(Prefixed("run_", UUIDv7())())
	if err != nil {
		t.Fatal(err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("Time: got %v", ts)
	}

	for _, bad := range []string{"run_1", "not-a-uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		if _, err := Time(bad); err == nil {
			t.Errorf("Time(%q): expected error", bad)
		}
	}
}

func TestNew(t *testing.T) {
	if New() == New() {
		t.Fatal("New: two calls returned the same ID")
	}
}
