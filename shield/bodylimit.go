package shield

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// SnapshotBodyLimit bounds a snapshot document posted to /api/snapshots.
const SnapshotBodyLimit = 64 << 20

// DefaultBodyLimit bounds every other request body: compare requests and
// MCP-style JSON calls are small.
const DefaultBodyLimit = 1 << 20

// BodyLimits caps request bodies per path prefix. The longest matching
// prefix wins; Default applies elsewhere.
type BodyLimits struct {
	Default int64
	Paths   map[string]int64
}

// DefaultBodyLimits allows snapshot uploads up to SnapshotBodyLimit.
func DefaultBodyLimits() BodyLimits {
	return BodyLimits{
		Default: DefaultBodyLimit,
		Paths:   map[string]int64{"/api/snapshots": SnapshotBodyLimit},
	}
}

// For returns the limit applying to path.
func (l BodyLimits) For(path string) int64 {
	limit, best := l.Default, -1
	for prefix, n := range l.Paths {
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			limit, best = n, len(prefix)
		}
	}
	return limit
}

// MaxBody caps request bodies. A declared Content-Length over the limit is
// refused with 413 before the handler runs; otherwise reads past the limit
// fail with *http.MaxBytesError, which TooLarge recognises.
func MaxBody(l BodyLimits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := l.For(r.URL.Path)
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				fmt.Fprintf(w, `{"error":"request body larger than %d bytes"}`+"\n", limit)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// TooLarge reports whether err comes from a body cut off by MaxBody.
func TooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
