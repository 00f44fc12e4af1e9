package apidiff

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/internal/sink"
)

// Sink is the output interface for comparison runs.
type Sink = sink.Sink

// NewStdoutSink creates a JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink. Either function may be nil.
func NewCallbackSink(
	onResult func(ctx context.Context, runID string, res diffrec.EndpointResult) error,
	onRun func(ctx context.Context, run *diffrec.Run) error,
) Sink {
	return sink.NewCallback(onResult, onRun)
}

// NewSinkRouter fans out to every sink; one failing sink never blocks the
// others.
func NewSinkRouter(logger *slog.Logger, sinks ...Sink) Sink {
	return sink.NewRouter(logger, sinks...)
}

// BuildSinks creates the sinks listed in the configuration.
func BuildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for i, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, NewStdoutSink(os.Stdout))
		case "webhook":
			out = append(out, NewWebhookSink(c.URL, logger))
		default:
			return nil, fmt.Errorf("%w: sinks[%d]: unknown type %q", ErrInvalidInput, i, c.Type)
		}
	}
	return out, nil
}

// Publish sends every endpoint result, then the run, to s.
func Publish(ctx context.Context, s Sink, run *diffrec.Run) error {
	var firstErr error
	for _, r := range run.Results {
		if err := s.SendResult(ctx, run.ID, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.SendRun(ctx, run); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
