// Package snapshot defines one capture of an application's observable API
// state and loads it from the JSON files produced by the capture tooling.
package snapshot

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

// ErrNoResponses is returned when a document has no array of captured
// responses.
var ErrNoResponses = errors.New("snapshot: no responses array")

// Snapshot is one full capture of observable API state.
type Snapshot struct {
	ID          string             `json:"id,omitempty"`
	Label       string             `json:"label,omitempty"`
	CapturedAt  time.Time          `json:"captured_at,omitzero"`
	Responses   []CapturedResponse `json:"responses"`
	Screenshots []Screenshot       `json:"screenshots,omitempty"`
}

// CapturedResponse is one API call observed during capture.
type CapturedResponse struct {
	URL        string            `json:"url"`
	Method     string            `json:"method,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Response   jsonval.Value     `json:"response"`
}

// MarshalJSON writes an Invalid payload as its raw text under "body", with
// no "response" key, so that Parse restores it as Invalid rather than as a
// JSON string.
func (r CapturedResponse) MarshalJSON() ([]byte, error) {
	type plain CapturedResponse
	if r.Response.Kind() != jsonval.Invalid {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		URL        string            `json:"url"`
		Method     string            `json:"method,omitempty"`
		StatusCode int               `json:"status_code,omitempty"`
		Headers    map[string]string `json:"headers,omitempty"`
		Body       string            `json:"body"`
	}{r.URL, r.Method, r.StatusCode, r.Headers, r.Response.Str()})
}

// Key returns the EndpointKey of the response URL.
func (r CapturedResponse) Key() string { return EndpointKeyOf(r.URL) }

// Screenshot is a named page image. Data holds PNG or JPEG bytes.
type Screenshot struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Data []byte `json:"data,omitempty"` // base64 in JSON
}

// Empty reports whether the snapshot carries no responses.
func (s *Snapshot) Empty() bool { return s == nil || len(s.Responses) == 0 }
