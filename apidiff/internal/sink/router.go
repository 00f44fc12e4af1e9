package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
)

// Router fans out to all configured sinks. One sink error does not block
// the others: errors are logged and the first encountered is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) SendResult(ctx context.Context, runID string, res diffrec.EndpointResult) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendResult(ctx, runID, res); err != nil {
			r.logger.Warn("sink: send result failed", "run", runID, "endpoint", res.Endpoint, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendRun(ctx context.Context, run *diffrec.Run) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendRun(ctx, run); err != nil {
			r.logger.Warn("sink: send run failed", "run", run.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
