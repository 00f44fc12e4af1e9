// Package match pairs the captured responses of two snapshots by EndpointKey.
package match

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
)

// Policy decides which response wins when one snapshot holds the same
// EndpointKey more than once.
type Policy string

const (
	KeepFirst Policy = "first"
	KeepLast  Policy = "last"
)

// ParsePolicy maps a config value to a Policy. Empty means KeepFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", KeepFirst:
		return KeepFirst, nil
	case KeepLast:
		return KeepLast, nil
	}
	return "", fmt.Errorf("match: unknown duplicate policy %q", s)
}

// Pair is one endpoint present in both snapshots.
type Pair struct {
	Key    string
	Before snapshot.CapturedResponse
	After  snapshot.CapturedResponse
}

// Entry is one endpoint present in a single snapshot.
type Entry struct {
	Key      string
	Response snapshot.CapturedResponse
}

// Result partitions the EndpointKeys of both snapshots. Each key appears in
// exactly one of Matched, Removed or Added; every list is sorted by key.
type Result struct {
	Matched    []Pair
	Removed    []Entry
	Added      []Entry
	Duplicates []diffrec.Duplicate
}

// Matcher pairs endpoints. The zero value is not usable; call New.
type Matcher struct {
	policy Policy
	logger *slog.Logger
}

// New creates a Matcher. An empty policy means KeepFirst; a nil logger
// means slog.Default().
func New(policy Policy, logger *slog.Logger) *Matcher {
	if policy == "" {
		policy = KeepFirst
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{policy: policy, logger: logger}
}

// Match pairs before and after by EndpointKey.
func (m *Matcher) Match(before, after []snapshot.CapturedResponse) Result {
	var res Result
	bi, dupB := m.index("before", before)
	ai, dupA := m.index("after", after)
	res.Duplicates = append(dupB, dupA...)

	for _, k := range sortedKeys(bi) {
		b := bi[k]
		if a, ok := ai[k]; ok {
			res.Matched = append(res.Matched, Pair{Key: k, Before: b, After: a})
			continue
		}
		res.Removed = append(res.Removed, Entry{Key: k, Response: b})
	}
	for _, k := range sortedKeys(ai) {
		if _, ok := bi[k]; !ok {
			res.Added = append(res.Added, Entry{Key: k, Response: ai[k]})
		}
	}
	return res
}

// index builds the key -> response map for one side, applying the policy and
// reporting every key seen more than once.
func (m *Matcher) index(side string, rs []snapshot.CapturedResponse) (map[string]snapshot.CapturedResponse, []diffrec.Duplicate) {
	out := make(map[string]snapshot.CapturedResponse, len(rs))
	counts := make(map[string]int)
	conflict := make(map[string]bool)
	var order []string

	for _, r := range rs {
		k := r.Key()
		prev, seen := out[k]
		counts[k]++
		if !seen {
			out[k] = r
			continue
		}
		if counts[k] == 2 {
			order = append(order, k)
		}
		if !jsonval.Equal(prev.Response, r.Response) {
			conflict[k] = true
		}
		if m.policy == KeepLast {
			out[k] = r
		}
	}

	dups := make([]diffrec.Duplicate, 0, len(order))
	for _, k := range order {
		d := diffrec.Duplicate{
			Endpoint:    k,
			Side:        side,
			Count:       counts[k],
			Conflicting: conflict[k],
			Kept:        string(m.policy),
		}
		m.logger.Warn("match: duplicate endpoint key",
			"endpoint", k, "side", side, "count", d.Count,
			"conflicting", d.Conflicting, "kept", d.Kept)
		dups = append(dups, d)
	}
	slices.SortFunc(dups, func(a, b diffrec.Duplicate) int {
		return strings.Compare(a.Endpoint, b.Endpoint)
	})
	return out, dups
}

func sortedKeys(m map[string]snapshot.CapturedResponse) []string {
	return slices.Sorted(maps.Keys(m))
}
