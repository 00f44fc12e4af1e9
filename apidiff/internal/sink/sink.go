// Package sink defines output backends for comparison runs.
package sink

import (
	"context"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
)

// Sink delivers comparison output to a backend (stdout, webhook,
// in-process callback).
type Sink interface {
	// SendResult delivers one endpoint result as soon as it is known.
	SendResult(ctx context.Context, runID string, res diffrec.EndpointResult) error
	// SendRun delivers a completed run.
	SendRun(ctx context.Context, run *diffrec.Run) error
	Close() error
}

// envelope tags every JSON message with its type.
type envelope struct {
	Type  string `json:"type"` // result | run
	RunID string `json:"run_id,omitempty"`
	Data  any    `json:"data"`
}
