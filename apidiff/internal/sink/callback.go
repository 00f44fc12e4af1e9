package sink

import (
	"context"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
)

// ResultFunc is called for each endpoint result.
type ResultFunc func(ctx context.Context, runID string, res diffrec.EndpointResult) error

// RunFunc is called for each completed run.
type RunFunc func(ctx context.Context, run *diffrec.Run) error

// Callback delivers output via Go function calls, without serialisation.
type Callback struct {
	onResult ResultFunc
	onRun    RunFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onResult ResultFunc, onRun RunFunc) *Callback {
	return &Callback{onResult: onResult, onRun: onRun}
}

func (c *Callback) SendResult(ctx context.Context, runID string, res diffrec.EndpointResult) error {
	if c.onResult != nil {
		return c.onResult(ctx, runID, res)
	}
	return nil
}

func (c *Callback) SendRun(ctx context.Context, run *diffrec.Run) error {
	if c.onRun != nil {
		return c.onRun(ctx, run)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
