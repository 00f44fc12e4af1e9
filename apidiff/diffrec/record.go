// Package diffrec defines the data contract produced by apidiff: path-qualified
// difference records, their classification, and per-endpoint comparison
// results. Report renderers, sinks and the store import this package to
// consume comparison output.
package diffrec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

// Kind is the type of structural difference observed.
type Kind string

const (
	ValueChanged       Kind = "VALUE_CHANGED"
	KeyAdded           Kind = "KEY_ADDED"
	KeyRemoved         Kind = "KEY_REMOVED"
	TypeChanged        Kind = "TYPE_CHANGED"
	ArrayLengthChanged Kind = "ARRAY_LENGTH_CHANGED"
)

// Structural reports whether k describes a change of shape rather than of a
// scalar value.
func (k Kind) Structural() bool {
	switch k {
	case KeyAdded, KeyRemoved, TypeChanged, ArrayLengthChanged:
		return true
	}
	return false
}

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns an object-key segment.
func Key(k string) Segment { return Segment{Key: k} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{Index: i, IsIndex: true} }

// MarshalJSON encodes keys as JSON strings and indices as JSON numbers.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.IsIndex {
		return []byte(strconv.Itoa(s.Index)), nil
	}
	return json.Marshal(s.Key)
}

// UnmarshalJSON accepts a string (key) or an integer (index).
func (s *Segment) UnmarshalJSON(data []byte) error {
	var k string
	if err := json.Unmarshal(data, &k); err == nil {
		*s = Key(k)
		return nil
	}
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("diffrec: segment %s is neither key nor index", data)
	}
	*s = Index(i)
	return nil
}

// Path locates a value from the payload root. The empty path is the root.
type Path []Segment

// Append returns a new path with seg appended. p is never modified.
func (p Path) Append(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Field returns the last object key of the path, skipping trailing indices.
// It is "" for the root and for paths made only of indices.
func (p Path) Field() string {
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].IsIndex {
			return p[i].Key
		}
	}
	return ""
}

// String renders the path as dotted keys with bracketed indices, e.g.
// "sites.Site657.total_assets" or "items[3].id". The root renders as "".
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Key)
	}
	return b.String()
}

// Display is String with "$" standing in for the root.
func (p Path) Display() string {
	if len(p) == 0 {
		return "$"
	}
	return p.String()
}

// Record is one atomic structural difference. OldValue is nil for
// KEY_ADDED, NewValue is nil for KEY_REMOVED.
//
// For ARRAY_LENGTH_CHANGED the values are the two lengths and Tail holds
// the elements of the longer array beyond the common prefix.
type Record struct {
	Path      Path            `json:"path"`
	Kind      Kind            `json:"kind"`
	OldValue  *jsonval.Value  `json:"old_value,omitempty"`
	NewValue  *jsonval.Value  `json:"new_value,omitempty"`
	Tail      []jsonval.Value `json:"tail,omitempty"`
	Truncated bool            `json:"truncated,omitempty"` // emitted by the depth guard
}

// Old returns the old value and whether it is present.
func (r Record) Old() (jsonval.Value, bool) {
	if r.OldValue == nil {
		return jsonval.Value{}, false
	}
	return *r.OldValue, true
}

// New returns the new value and whether it is present.
func (r Record) New() (jsonval.Value, bool) {
	if r.NewValue == nil {
		return jsonval.Value{}, false
	}
	return *r.NewValue, true
}

// Ref returns a pointer to a copy of v, for building records.
func Ref(v jsonval.Value) *jsonval.Value { return &v }
