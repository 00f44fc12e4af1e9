package structdiff

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

var errPath = errors.New("path does not resolve")

// Apply replays records, in order, as a patch against before. Replaying the
// output of Diff(before, after) yields a value equal to after.
func Apply(before jsonval.Value, records []diffrec.Record) (jsonval.Value, error) {
	out := before
	for _, r := range records {
		patched, err := applyAt(out, r.Path, r)
		if err != nil {
			return jsonval.Value{}, fmt.Errorf("structdiff: apply %s at %s: %w", r.Kind, r.Path.Display(), err)
		}
		out = patched
	}
	return out, nil
}

func applyAt(v jsonval.Value, path diffrec.Path, r diffrec.Record) (jsonval.Value, error) {
	if len(path) == 0 {
		return applyHere(v, r)
	}
	seg, rest := path[0], path[1:]

	if seg.IsIndex {
		if v.Kind() != jsonval.Array || seg.Index < 0 || seg.Index >= v.Len() {
			return jsonval.Value{}, errPath
		}
		elems := slices.Clone(v.Elems())
		child, err := applyAt(elems[seg.Index], rest, r)
		if err != nil {
			return jsonval.Value{}, err
		}
		elems[seg.Index] = child
		return jsonval.ArrayValue(elems...), nil
	}

	if v.Kind() != jsonval.Object {
		return jsonval.Value{}, errPath
	}
	if len(rest) == 0 {
		switch r.Kind {
		case diffrec.KeyAdded:
			nv, ok := r.New()
			if !ok {
				return jsonval.Value{}, errors.New("KEY_ADDED without new value")
			}
			return v.With(seg.Key, nv), nil
		case diffrec.KeyRemoved:
			return v.Without(seg.Key), nil
		}
	}
	child, ok := v.Get(seg.Key)
	if !ok {
		return jsonval.Value{}, errPath
	}
	patched, err := applyAt(child, rest, r)
	if err != nil {
		return jsonval.Value{}, err
	}
	return v.With(seg.Key, patched), nil
}

func applyHere(v jsonval.Value, r diffrec.Record) (jsonval.Value, error) {
	switch r.Kind {
	case diffrec.ValueChanged, diffrec.TypeChanged:
		nv, ok := r.New()
		if !ok {
			return jsonval.Value{}, errors.New("missing new value")
		}
		return nv, nil
	case diffrec.ArrayLengthChanged:
		if v.Kind() != jsonval.Array {
			return jsonval.Value{}, errPath
		}
		nv, ok := r.New()
		if !ok {
			return jsonval.Value{}, errors.New("missing new length")
		}
		f, ok := nv.Float64()
		if !ok || f < 0 {
			return jsonval.Value{}, fmt.Errorf("bad length %s", nv)
		}
		n := int(f)
		elems := v.Elems()
		if n <= len(elems) {
			return jsonval.ArrayValue(slices.Clone(elems[:n])...), nil
		}
		if len(elems)+len(r.Tail) != n {
			return jsonval.Value{}, fmt.Errorf("tail of %d does not reach length %d", len(r.Tail), n)
		}
		return jsonval.ArrayValue(slices.Concat(elems, r.Tail)...), nil
	}
	return jsonval.Value{}, fmt.Errorf("%s cannot apply at the root", r.Kind)
}
