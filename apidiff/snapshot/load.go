package snapshot

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

// LoadFile reads and parses a snapshot file. Screenshot paths are resolved
// against the file's directory and their bytes loaded; a screenshot that
// cannot be read keeps empty Data.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range s.Screenshots {
		sh := &s.Screenshots[i]
		if len(sh.Data) > 0 || sh.Path == "" {
			continue
		}
		p := sh.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if b, err := os.ReadFile(p); err == nil {
			sh.Data = b
		}
	}
	return s, nil
}

// Parse decodes a snapshot document.
//
// The document is an object holding a "responses" array, or failing that the
// first array whose objects carry a "url". A bare top-level array is accepted
// as the responses list. Each entry needs a string "url"; entries without one
// are skipped. The payload is "response" (any JSON) or "body" (text parsed as
// JSON, kept as an invalid value when it does not parse). Unknown fields are
// ignored.
func Parse(data []byte) (*Snapshot, error) {
	doc, err := jsonval.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse: %w", err)
	}

	var s Snapshot
	var list jsonval.Value
	switch doc.Kind() {
	case jsonval.Array:
		list = doc
	case jsonval.Object:
		var ok bool
		if list, ok = responsesField(doc); !ok {
			return nil, ErrNoResponses
		}
		s.ID = str(doc, "id")
		s.Label = str(doc, "label")
		if v, ok := doc.Get("captured_at"); ok {
			s.CapturedAt = parseTime(v)
		}
		if v, ok := doc.Get("screenshots"); ok && v.Kind() == jsonval.Array {
			s.Screenshots = parseScreenshots(v)
		}
	default:
		return nil, ErrNoResponses
	}

	s.Responses = make([]CapturedResponse, 0, list.Len())
	for _, e := range list.Elems() {
		if r, ok := parseResponse(e); ok {
			s.Responses = append(s.Responses, r)
		}
	}
	return &s, nil
}

func responsesField(doc jsonval.Value) (jsonval.Value, bool) {
	if v, ok := doc.Get("responses"); ok && v.Kind() == jsonval.Array {
		return v, true
	}
	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)
		if v.Kind() != jsonval.Array || v.Len() == 0 {
			continue
		}
		first := v.Index(0)
		if first.Kind() != jsonval.Object {
			continue
		}
		if u, ok := first.Get("url"); ok && u.Kind() == jsonval.String {
			return v, true
		}
	}
	return jsonval.Value{}, false
}

func parseResponse(e jsonval.Value) (CapturedResponse, bool) {
	if e.Kind() != jsonval.Object {
		return CapturedResponse{}, false
	}
	u, ok := e.Get("url")
	if !ok || u.Kind() != jsonval.String {
		return CapturedResponse{}, false
	}
	r := CapturedResponse{URL: u.Str(), Method: str(e, "method")}

	if v, ok := e.Get("status_code"); ok {
		if f, ok := v.Float64(); ok {
			r.StatusCode = int(f)
		}
	}
	if h, ok := e.Get("headers"); ok && h.Kind() == jsonval.Object {
		r.Headers = make(map[string]string, h.Len())
		for _, k := range h.Keys() {
			hv, _ := h.Get(k)
			if hv.Kind() == jsonval.String {
				r.Headers[k] = hv.Str()
			} else {
				r.Headers[k] = hv.String()
			}
		}
	}

	if v, ok := e.Get("response"); ok {
		r.Response = v
	} else if b, ok := e.Get("body"); ok && b.Kind() == jsonval.String {
		r.Response = jsonval.ParseOrInvalid([]byte(b.Str()))
	}
	return r, true
}

func parseScreenshots(list jsonval.Value) []Screenshot {
	var out []Screenshot
	for _, e := range list.Elems() {
		if e.Kind() != jsonval.Object {
			continue
		}
		sh := Screenshot{Name: str(e, "name"), Path: str(e, "path")}
		if d := str(e, "data"); d != "" {
			// Undecodable data stays empty and is reported by the comparison.
			sh.Data, _ = base64.StdEncoding.DecodeString(d)
		}
		if sh.Name == "" {
			sh.Name = filepath.Base(sh.Path)
		}
		if sh.Name == "" || sh.Name == "." {
			continue
		}
		out = append(out, sh)
	}
	return out
}

// parseTime accepts RFC 3339 text or epoch milliseconds.
func parseTime(v jsonval.Value) time.Time {
	switch v.Kind() {
	case jsonval.String:
		if t, err := time.Parse(time.RFC3339Nano, v.Str()); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(v.Str(), 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case jsonval.Number:
		if f, ok := v.Float64(); ok {
			return time.UnixMilli(int64(f)).UTC()
		}
	}
	return time.Time{}
}

func str(obj jsonval.Value, key string) string {
	v, ok := obj.Get(key)
	if !ok || v.Kind() != jsonval.String {
		return ""
	}
	return v.Str()
}
