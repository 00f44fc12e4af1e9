// Package structdiff walks two JSON values in parallel and yields one
// diffrec.Record per difference.
//
// Comparison is positional for arrays: a reordered array is reported as
// per-index value changes, never as a move. The absence of records for a
// subtree means the subtree is equal.
package structdiff

import (
	"iter"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

// DefaultMaxDepth bounds recursion when no option overrides it.
const DefaultMaxDepth = 512

type options struct {
	maxDepth int
}

// Option configures Diff.
type Option func(*options)

// WithMaxDepth sets the nesting depth beyond which a differing subtree is
// reported as a single truncated TYPE_CHANGED record. n <= 0 keeps the
// default.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// Diff yields the differences between before and after, rooted at the empty
// path. The sequence is computed lazily; stopping the range stops the walk.
func Diff(before, after jsonval.Value, opts ...Option) iter.Seq[diffrec.Record] {
	return DiffAt(nil, before, after, opts...)
}

// DiffAt is Diff with a path prefix prepended to every record.
func DiffAt(prefix diffrec.Path, before, after jsonval.Value, opts ...Option) iter.Seq[diffrec.Record] {
	o := options{maxDepth: DefaultMaxDepth}
	for _, fn := range opts {
		fn(&o)
	}
	return func(yield func(diffrec.Record) bool) {
		w := walker{maxDepth: o.maxDepth, yield: yield}
		w.walk(prefix, before, after, 0)
	}
}

// Collect drains Diff into a slice.
func Collect(before, after jsonval.Value, opts ...Option) []diffrec.Record {
	var out []diffrec.Record
	for r := range Diff(before, after, opts...) {
		out = append(out, r)
	}
	return out
}

type walker struct {
	maxDepth int
	yield    func(diffrec.Record) bool
	stopped  bool
}

func (w *walker) emit(r diffrec.Record) bool {
	if w.stopped {
		return false
	}
	if !w.yield(r) {
		w.stopped = true
	}
	return !w.stopped
}

// walk returns false once the consumer stopped the iteration.
func (w *walker) walk(path diffrec.Path, before, after jsonval.Value, depth int) bool {
	if before.Kind() != after.Kind() {
		return w.emit(diffrec.Record{
			Path:     path,
			Kind:     diffrec.TypeChanged,
			OldValue: diffrec.Ref(before),
			NewValue: diffrec.Ref(after),
		})
	}

	if depth >= w.maxDepth && (before.Kind() == jsonval.Object || before.Kind() == jsonval.Array) {
		if jsonval.Equal(before, after) {
			return true
		}
		return w.emit(diffrec.Record{
			Path:      path,
			Kind:      diffrec.TypeChanged,
			OldValue:  diffrec.Ref(before),
			NewValue:  diffrec.Ref(after),
			Truncated: true,
		})
	}

	switch before.Kind() {
	case jsonval.Object:
		return w.walkObject(path, before, after, depth)
	case jsonval.Array:
		return w.walkArray(path, before, after, depth)
	case jsonval.Invalid:
		// Unparseable payloads have no structure to descend into.
		if before.Str() == after.Str() {
			return true
		}
		return w.emit(diffrec.Record{
			Path:     path,
			Kind:     diffrec.TypeChanged,
			OldValue: diffrec.Ref(before),
			NewValue: diffrec.Ref(after),
		})
	}

	if jsonval.Equal(before, after) {
		return true
	}
	return w.emit(diffrec.Record{
		Path:     path,
		Kind:     diffrec.ValueChanged,
		OldValue: diffrec.Ref(before),
		NewValue: diffrec.Ref(after),
	})
}

// walkObject visits the keys of before in their order, then the keys only
// present in after, in after's order.
func (w *walker) walkObject(path diffrec.Path, before, after jsonval.Value, depth int) bool {
	for _, k := range before.Keys() {
		ov, _ := before.Get(k)
		nv, ok := after.Get(k)
		child := path.Append(diffrec.Key(k))
		if !ok {
			if !w.emit(diffrec.Record{Path: child, Kind: diffrec.KeyRemoved, OldValue: diffrec.Ref(ov)}) {
				return false
			}
			continue
		}
		if !w.walk(child, ov, nv, depth+1) {
			return false
		}
	}
	for _, k := range after.Keys() {
		if _, ok := before.Get(k); ok {
			continue
		}
		nv, _ := after.Get(k)
		if !w.emit(diffrec.Record{Path: path.Append(diffrec.Key(k)), Kind: diffrec.KeyAdded, NewValue: diffrec.Ref(nv)}) {
			return false
		}
	}
	return true
}

func (w *walker) walkArray(path diffrec.Path, before, after jsonval.Value, depth int) bool {
	ol, nl := before.Len(), after.Len()
	common := min(ol, nl)

	if ol != nl {
		longer := before
		if nl > ol {
			longer = after
		}
		tail := make([]jsonval.Value, 0, max(ol, nl)-common)
		tail = append(tail, longer.Elems()[common:]...)
		if !w.emit(diffrec.Record{
			Path:     path,
			Kind:     diffrec.ArrayLengthChanged,
			OldValue: diffrec.Ref(jsonval.Int(int64(ol))),
			NewValue: diffrec.Ref(jsonval.Int(int64(nl))),
			Tail:     tail,
		}) {
			return false
		}
	}

	for i := range common {
		if !w.walk(path.Append(diffrec.Index(i)), before.Index(i), after.Index(i), depth+1) {
			return false
		}
	}
	return true
}
