// Package apidiff verifies a migration by diffing the API responses captured
// from the legacy and the migrated application.
//
// A Comparer pairs the endpoints of two snapshots, walks each payload pair,
// classifies every difference and returns a Run ordered by EndpointKey. The
// Service adds persistence, sinks, an HTTP API and MCP tools around it.
package apidiff

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/internal/match"
	"github.com/hazyhaar/migverify/apidiff/internal/severity"
	"github.com/hazyhaar/migverify/apidiff/internal/shots"
	"github.com/hazyhaar/migverify/apidiff/internal/structdiff"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/idgen"
)

// deadlineEvery is how many records are consumed between deadline checks.
const deadlineEvery = 64

// Comparer runs before/after comparisons. It is safe for concurrent use.
type Comparer struct {
	classify func(diffrec.Record) diffrec.Classified
	matcher  *match.Matcher
	maxDepth int
	workers  int
	timeout  time.Duration
	shotOpts shots.Options
	logger   *slog.Logger
	newID    idgen.Generator
	now      func() time.Time
}

// ComparerOption configures a Comparer.
type ComparerOption func(*Comparer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ComparerOption {
	return func(c *Comparer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator sets the run ID generator. Default: "run_" + UUIDv7.
func WithIDGenerator(g idgen.Generator) ComparerOption {
	return func(c *Comparer) { c.newID = g }
}

// WithClock overrides time.Now for run timestamps.
func WithClock(now func() time.Time) ComparerOption {
	return func(c *Comparer) { c.now = now }
}

// NewComparer builds a Comparer from cfg. A nil cfg means DefaultConfig().
func NewComparer(cfg *Config, opts ...ComparerOption) (*Comparer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	policy, err := match.ParsePolicy(cfg.Compare.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	c := &Comparer{
		classify: severity.New(cfg.Classifier.Severity()).Classify,
		maxDepth: cfg.Differ.MaxDepth,
		workers:  max(cfg.Compare.Workers, 1),
		timeout:  cfg.Compare.EndpointTimeout,
		shotOpts: shots.Options{
			PixelTolerance: cfg.Screenshots.PixelTolerance,
			ChangedRatio:   cfg.Screenshots.ChangedRatio,
		},
		logger: slog.Default(),
		newID:  idgen.Prefixed("run_", idgen.UUIDv7()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.matcher = match.New(policy, c.logger)
	return c, nil
}

// Compare diffs two snapshots. The only fatal conditions are an empty
// snapshot (ErrNoData) and ctx cancellation; a failure on one endpoint is
// reported in that endpoint's result.
func (c *Comparer) Compare(ctx context.Context, before, after *snapshot.Snapshot) (*diffrec.Run, error) {
	if before.Empty() {
		return nil, fmt.Errorf("%w: before", ErrNoData)
	}
	if after.Empty() {
		return nil, fmt.Errorf("%w: after", ErrNoData)
	}
	start := c.now()

	m := c.matcher.Match(before.Responses, after.Responses)
	results := make([]diffrec.EndpointResult, 0, len(m.Matched)+len(m.Added)+len(m.Removed))

	for _, e := range m.Removed {
		results = append(results, diffrec.EndpointResult{
			Endpoint:         e.Key,
			Status:           diffrec.StatusRemoved,
			Severity:         diffrec.Major,
			BeforeStatusCode: e.Response.StatusCode,
		})
	}
	for _, e := range m.Added {
		results = append(results, diffrec.EndpointResult{
			Endpoint:        e.Key,
			Status:          diffrec.StatusAdded,
			Severity:        diffrec.Major,
			AfterStatusCode: e.Response.StatusCode,
		})
	}

	matched := make([]diffrec.EndpointResult, len(m.Matched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range m.Matched {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			matched[i] = c.compareEndpoint(gctx, p.Key, p.Before, p.After)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("apidiff: compare: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("apidiff: compare: %w", err)
	}
	results = append(results, matched...)
	slices.SortFunc(results, func(a, b diffrec.EndpointResult) int {
		return strings.Compare(a.Endpoint, b.Endpoint)
	})

	run := &diffrec.Run{
		ID:          c.newID(),
		BeforeID:    before.ID,
		AfterID:     after.ID,
		BeforeLabel: before.Label,
		AfterLabel:  after.Label,
		CreatedAt:   start.UnixMilli(),
		Results:     results,
		Duplicates:  m.Duplicates,
	}
	if len(before.Screenshots) > 0 || len(after.Screenshots) > 0 {
		run.Screenshots = shots.Compare(before.Screenshots, after.Screenshots, c.shotOpts)
	}
	run.Summary = diffrec.Summarize(results)
	run.Summary.CountScreenshots(run.Screenshots)

	c.logger.Info("compare: run complete",
		"run", run.ID,
		"endpoints", run.Summary.Endpoints,
		"identical", run.Summary.Identical,
		"different", run.Summary.Different,
		"added", run.Summary.Added,
		"removed", run.Summary.Removed,
		"errors", run.Summary.Errors,
		"worst", run.Summary.Worst(),
		"duration", c.now().Sub(start))
	return run, nil
}

// compareEndpoint diffs and classifies one matched pair. It never panics and
// never returns an error: failures become an ERROR result, an exceeded
// budget a SKIPPED one.
func (c *Comparer) compareEndpoint(ctx context.Context, key string, before, after snapshot.CapturedResponse) (res diffrec.EndpointResult) {
	res = diffrec.EndpointResult{
		Endpoint:         key,
		BeforeStatusCode: before.StatusCode,
		AfterStatusCode:  after.StatusCode,
	}
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("compare: endpoint failed", "endpoint", key, "panic", p)
			res.Status = diffrec.StatusError
			res.Severity = diffrec.Major
			res.Differences = nil
			res.Error = fmt.Sprint(p)
		}
	}()

	var deadline time.Time
	if c.timeout > 0 {
		deadline = c.now().Add(c.timeout)
	}
	expired := func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && c.now().After(deadline))
	}

	var diffs []diffrec.Classified
	n := 0
	for r := range structdiff.Diff(before.Response, after.Response, structdiff.WithMaxDepth(c.maxDepth)) {
		diffs = append(diffs, c.classify(r))
		n++
		if n%deadlineEvery == 0 && expired() {
			c.logger.Warn("compare: endpoint budget exceeded",
				"endpoint", key, "budget", c.timeout, "records", n)
			res.Status = diffrec.StatusSkipped
			res.Severity = diffrec.Info
			res.Note = diffrec.ReasonTimeout
			return res
		}
	}

	if before.StatusCode != 0 && after.StatusCode != 0 && before.StatusCode != after.StatusCode {
		res.Note = fmt.Sprintf("status %d -> %d", before.StatusCode, after.StatusCode)
	}
	if len(diffs) == 0 {
		res.Status = diffrec.StatusIdentical
		return res
	}
	res.Status = diffrec.StatusDifferent
	res.Differences = diffs
	res.Severity = diffrec.AggregateSeverity(res)
	return res
}
