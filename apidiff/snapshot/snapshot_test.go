package snapshot

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/migverify/apidiff/jsonval"
)

func TestEndpointKeyOf(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"https://app.example.com/api/v1/assets?page=2#top", "/api/v1/assets"},
		{"http://localhost:8080/api/v1/assets/", "/api/v1/assets/"},
		{"/api/sites?x=1", "/api/sites"},
		{"https://app.example.com", "/"},
		{"https://app.example.com?q=1", "/"},
		{"http://[::1:bad/api", "http://[::1:bad/api"},
		{"%zz/api", "%zz/api"},
	}
	for _, tt := range tests {
		if got := EndpointKeyOf(tt.raw); got != tt.want {
			t.Errorf("EndpointKeyOf(%q): got %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParse_ResponsesField(t *testing.T) {
	doc := `{
		"label": "before",
		"captured_at": "2026-03-01T10:00:00Z",
		"responses": [
			{"url": "https://a/api/x", "method": "GET", "status_code": 200,
			 "headers": {"content-type": "application/json", "x-n": 3},
			 "response": {"b": 1, "a": 2}, "extra": true},
			{"url": "https://a/api/y", "body": "{\"ok\": true}"},
			{"url": "https://a/api/z", "body": "<html>oops</html>"},
			{"method": "GET"},
			"junk"
		]
	}`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if s.Label != "before" || !s.CapturedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("metadata: label=%q at=%v", s.Label, s.CapturedAt)
	}
	if len(s.Responses) != 3 {
		t.Fatalf("responses: got %d, want 3", len(s.Responses))
	}
	r := s.Responses[0]
	if r.Key() != "/api/x" || r.StatusCode != 200 || r.Method != "GET" {
		t.Errorf("first response: %+v", r)
	}
	if r.Headers["x-n"] != "3" {
		t.Errorf("non-string header: got %q", r.Headers["x-n"])
	}
	if got := r.Response.Keys(); len(got) != 2 || got[0] != "b" {
		t.Errorf("key order: got %v", got)
	}
	if v, _ := s.Responses[1].Response.Get("ok"); !v.Bool() {
		t.Errorf("body text not parsed: %s", s.Responses[1].Response)
	}
	if s.Responses[2].Response.Kind() != jsonval.Invalid {
		t.Errorf("unparseable body: got kind %s", s.Responses[2].Response.Kind())
	}
}

func TestParse_FallbackArrayField(t *testing.T) {
	doc := `{"meta": [1, 2], "calls": [{"url": "/api/a", "response": []}]}`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Responses) != 1 || s.Responses[0].URL != "/api/a" {
		t.Errorf("fallback field: %+v", s.Responses)
	}
}

func TestParse_BareArray(t *testing.T) {
	s, err := Parse([]byte(`[{"url": "/api/a", "response": 1}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Responses) != 1 {
		t.Errorf("responses: got %d", len(s.Responses))
	}
}

func TestParse_NoResponses(t *testing.T) {
	for _, doc := range []string{`{"label": "x"}`, `{"items": [{"id": 1}]}`, `42`} {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrNoResponses) {
			t.Errorf("%s: got %v, want ErrNoResponses", doc, err)
		}
	}
	if _, err := Parse([]byte(`{"responses": [`)); err == nil {
		t.Error("truncated document: expected error")
	}
}

func TestParse_EmptyResponses(t *testing.T) {
	s, err := Parse([]byte(`{"responses": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Empty() {
		t.Error("expected empty snapshot")
	}
}

func TestLoadFile_Screenshots(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G'}
	if err := os.WriteFile(filepath.Join(dir, "home.png"), png, 0o644); err != nil {
		t.Fatal(err)
	}
	doc := `{"responses": [], "screenshots": [
		{"name": "home", "path": "home.png"},
		{"name": "inline", "data": "` + base64.StdEncoding.EncodeToString([]byte("abc")) + `"},
		{"path": "missing.png"}
	]}`
	path := filepath.Join(dir, "before.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Screenshots) != 3 {
		t.Fatalf("screenshots: got %d", len(s.Screenshots))
	}
	if string(s.Screenshots[0].Data) != string(png) {
		t.Errorf("relative path not loaded")
	}
	if string(s.Screenshots[1].Data) != "abc" {
		t.Errorf("inline data: got %q", s.Screenshots[1].Data)
	}
	if s.Screenshots[2].Name != "missing.png" || len(s.Screenshots[2].Data) != 0 {
		t.Errorf("missing file: %+v", s.Screenshots[2])
	}
}

func TestMarshalParseRoundTrip(t *testing.T) {
	s := &Snapshot{
		ID:         "snap_1",
		Label:      "after",
		CapturedAt: time.UnixMilli(1760000000000).UTC(),
		Responses: []CapturedResponse{{
			URL: "/api/x", StatusCode: 200,
			Response: jsonval.MustParse(`{"z": [1, 2.5, null], "a": "t"}`),
		}},
		Screenshots: []Screenshot{{Name: "home", Data: []byte{1, 2, 3}}},
	}
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != s.ID || got.Label != s.Label || !got.CapturedAt.Equal(s.CapturedAt) {
		t.Errorf("metadata: %+v", got)
	}
	if !jsonval.Equal(got.Responses[0].Response, s.Responses[0].Response) {
		t.Errorf("payload: got %s", got.Responses[0].Response)
	}
	if string(got.Screenshots[0].Data) != "\x01\x02\x03" {
		t.Errorf("screenshot data: %v", got.Screenshots[0].Data)
	}
}

func TestLoadFile_KeepsInvalidPayload(t *testing.T) {
	s := &Snapshot{Responses: []CapturedResponse{
		{URL: "/api/broken", StatusCode: 502, Response: jsonval.InvalidValue("<html>Bad Gateway</html>")},
		{URL: "/api/text", Response: jsonval.StringValue("<html>Bad Gateway</html>")},
	}}
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "snap.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if r := got.Responses[0]; r.Response.Kind() != jsonval.Invalid || r.Response.Str() != "<html>Bad Gateway</html>" || r.StatusCode != 502 {
		t.Errorf("invalid payload: kind %s, %+v", r.Response.Kind(), r)
	}
	if r := got.Responses[1]; r.Response.Kind() != jsonval.String {
		t.Errorf("string payload: kind %s", r.Response.Kind())
	}

	h1, _ := Hash(s)
	s.Responses[0].Response = jsonval.StringValue("<html>Bad Gateway</html>")
	if h2, _ := Hash(s); h1 == h2 {
		t.Error("invalid and string payloads should hash differently")
	}
}

func TestHash_IgnoresMetadata(t *testing.T) {
	a := &Snapshot{Label: "a", Responses: []CapturedResponse{{URL: "/x", Response: jsonval.Int(1)}}}
	b := &Snapshot{Label: "b", ID: "other", Responses: []CapturedResponse{{URL: "/x", Response: jsonval.Int(1)}}}
	ha, _ := Hash(a)
	hb, _ := Hash(b)
	if ha != hb || len(ha) != 64 {
		t.Errorf("hash: %s vs %s", ha, hb)
	}
	b.Responses[0].Response = jsonval.Int(2)
	if hc, _ := Hash(b); hc == ha {
		t.Error("hash should change with payload")
	}
}
