package apidiff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/kit"
	"github.com/hazyhaar/migverify/shield"
)

// RegisterHTTP mounts the API on r:
//
//	GET  /health
//	GET  /api/snapshots?label=&limit=
//	POST /api/snapshots?label=          body: snapshot document
//	POST /api/runs                      body: CompareRequest
//	GET  /api/runs?limit=
//	GET  /api/runs/{id}
//	GET  /api/runs/{id}/report?format=html|md|json
//	GET  /api/metrics?name=&limit=
func (s *Service) RegisterHTTP(r chi.Router) {
	ep := s.endpoints()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok", "watch": s.WatchStats()}
		if sql := s.SQLStats(); sql != nil {
			body["sql"] = sql
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Route("/api/snapshots", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			call(w, r, ep.listSnapshots, &ListRequest{
				Label: r.URL.Query().Get("label"),
				Limit: queryInt(r, "limit", 0),
			}, http.StatusOK)
		})
		r.Post("/", s.handleImport)
	})

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req CompareRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				code := http.StatusBadRequest
				if shield.TooLarge(err) {
					code = http.StatusRequestEntityTooLarge
				}
				writeError(w, code, err)
				return
			}
			call(w, r, ep.compare, &req, http.StatusCreated)
		})
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			call(w, r, ep.listRuns, &ListRequest{Limit: queryInt(r, "limit", 0)}, http.StatusOK)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			call(w, r, ep.getRun, &GetRunRequest{ID: chi.URLParam(r, "id")}, http.StatusOK)
		})
		r.Get("/{id}/report", s.handleReport)
	})

	r.Get("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		points, err := s.Metrics(r.Context(), MetricFilter{
			Name:  r.URL.Query().Get("name"),
			Limit: queryInt(r, "limit", 100),
		})
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"metrics": nonNil(points)})
	})
}

func (s *Service) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, shield.SnapshotBodyLimit+1))
	if shield.TooLarge(err) || len(data) > shield.SnapshotBodyLimit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("snapshot larger than %d bytes", shield.SnapshotBodyLimit))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := snapshot.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if label := r.URL.Query().Get("label"); label != "" {
		snap.Label = label
	}
	m, err := s.ImportSnapshot(r.Context(), snap, "http")
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = FormatHTML
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, run, format); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.Header().Set("Content-Type", ReportContentType(format))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// call runs ep with the HTTP transport context and writes its JSON response.
func call(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, req any, okStatus int) {
	ctx := kit.WithTransport(r.Context(), "http")
	ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
	if id := r.Header.Get("X-Request-Id"); id != "" {
		ctx = kit.WithRequestID(ctx, id)
	}
	resp, err := ep(ctx, req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, okStatus, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNoData):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
