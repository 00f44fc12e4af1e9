package capture

import (
	"encoding/base64"
	"net/url"
	"strings"
	"sync"

	"github.com/hazyhaar/migverify/apidiff/jsonval"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
)

// recorder collects the API responses of one page from network events. It
// knows nothing about Chrome: the Capturer feeds it events and a body
// fetcher.
type recorder struct {
	prefixes []string

	mu       sync.Mutex
	methods  map[string]string // request ID -> method
	pending  map[string]snapshot.CapturedResponse
	order    []string // request IDs in response order
	finished map[string]bool
}

func newRecorder(prefixes []string) *recorder {
	return &recorder{
		prefixes: prefixes,
		methods:  make(map[string]string),
		pending:  make(map[string]snapshot.CapturedResponse),
		finished: make(map[string]bool),
	}
}

// wanted reports whether a response is API traffic: a JSON MIME type and a
// path under one of the prefixes. No prefixes means every JSON response.
func (r *recorder) wanted(rawURL, mime string) bool {
	if !strings.Contains(strings.ToLower(mime), "json") {
		return false
	}
	if len(r.prefixes) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(u.Path, p) {
			return true
		}
	}
	return false
}

func (r *recorder) request(id, method string) {
	r.mu.Lock()
	r.methods[id] = method
	r.mu.Unlock()
}

func (r *recorder) response(id, rawURL string, status int, mime string, headers map[string]string) {
	if !r.wanted(rawURL, mime) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.pending[id]; !seen {
		r.order = append(r.order, id)
	}
	r.pending[id] = snapshot.CapturedResponse{
		URL:        rawURL,
		Method:     r.methods[id],
		StatusCode: status,
		Headers:    headers,
	}
}

func (r *recorder) finish(id string) {
	r.mu.Lock()
	r.finished[id] = true
	r.mu.Unlock()
}

// bodyFunc returns a response body and whether it is base64-encoded.
type bodyFunc func(requestID string) (body string, base64Encoded bool, err error)

// responses fetches the body of every finished response, in response order.
// Unfinished responses and failed fetches are reported as skipped.
func (r *recorder) responses(fetch bodyFunc) (out []snapshot.CapturedResponse, skipped []string) {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, id := range order {
		r.mu.Lock()
		resp, done := r.pending[id], r.finished[id]
		r.mu.Unlock()
		if !done {
			skipped = append(skipped, resp.URL)
			continue
		}
		body, b64, err := fetch(id)
		if err != nil {
			skipped = append(skipped, resp.URL)
			continue
		}
		raw := []byte(body)
		if b64 {
			if raw, err = base64.StdEncoding.DecodeString(body); err != nil {
				skipped = append(skipped, resp.URL)
				continue
			}
		}
		resp.Response = jsonval.ParseOrInvalid(raw)
		out = append(out, resp)
	}
	return out, skipped
}
