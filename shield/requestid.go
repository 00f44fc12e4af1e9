package shield

import (
	"log/slog"
	"net/http"

	"github.com/hazyhaar/migverify/idgen"
	"github.com/hazyhaar/migverify/kit"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestID keeps the caller's X-Request-Id or assigns one from gen, stores
// it in the context under kit.RequestIDKey and echoes it in the response.
func RequestID(gen idgen.Generator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = gen()
			}
			w.Header().Set(RequestIDHeader, id)
			logger.Debug("http: request", "request_id", id, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r.WithContext(kit.WithRequestID(r.Context(), id)))
		})
	}
}
