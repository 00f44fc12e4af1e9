package apidiff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/migverify/apidiff/diffrec"
	"github.com/hazyhaar/migverify/apidiff/internal/sink"
	"github.com/hazyhaar/migverify/apidiff/internal/store"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/dbopen"
	"github.com/hazyhaar/migverify/observability"
	"github.com/hazyhaar/migverify/trace"
)

// SnapshotMeta describes a stored snapshot without its body.
type SnapshotMeta = store.SnapshotMeta

// RunMeta describes a stored run without its per-endpoint results.
type RunMeta = store.RunMeta

// WatchOptions tunes WatchLatest polling.
type WatchOptions = store.WatchOptions

// WatchStats are the snapshot watcher counters.
type WatchStats = store.WatchStats

// Metric is one recorded comparison datapoint.
type Metric = observability.Metric

// MetricFilter selects metrics in Service.Metrics.
type MetricFilter = observability.Filter

// Service persists snapshots and runs, drives comparisons between stored
// snapshots and publishes runs to the configured sinks.
type Service struct {
	cfg      *Config
	store    *store.Store
	ownsDB   bool
	comparer *Comparer
	sinks    *sink.Router
	extra    []Sink
	logger   *slog.Logger
	cmpOpts  []ComparerOption
	db       *sql.DB
	metrics  *observability.Metrics
	mOpts    observability.Options

	watcher atomic.Pointer[store.Watcher]

	lastMu   sync.Mutex
	lastPair [2]string // before/after IDs of the last WatchLatest run
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithDB uses an already open database instead of cfg.Store.Path. The
// schema is applied; the caller keeps ownership of db.
func WithDB(db *sql.DB) ServiceOption {
	return func(s *Service) { s.db = db }
}

// WithSinks adds sinks on top of those in the configuration.
func WithSinks(sinks ...Sink) ServiceOption {
	return func(s *Service) { s.extra = append(s.extra, sinks...) }
}

// WithComparerOptions passes options to the underlying Comparer.
func WithComparerOptions(opts ...ComparerOption) ServiceOption {
	return func(s *Service) { s.cmpOpts = append(s.cmpOpts, opts...) }
}

// WithMetricsOptions tunes metric batching. Default: flush every 5s or
// every 100 datapoints.
func WithMetricsOptions(o observability.Options) ServiceOption {
	return func(s *Service) { s.mOpts = o }
}

// New creates a Service. A nil cfg means DefaultConfig().
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, logger: logger}
	for _, o := range opts {
		o(s)
	}

	cmp, err := NewComparer(cfg, append([]ComparerOption{WithLogger(logger)}, s.cmpOpts...)...)
	if err != nil {
		return nil, err
	}
	s.comparer = cmp

	sinks, err := BuildSinks(cfg.Sinks, logger)
	if err != nil {
		return nil, err
	}
	s.sinks = sink.NewRouter(logger, append(sinks, s.extra...)...)

	if s.db != nil {
		if err := dbopen.Migrate(context.Background(), s.db, store.Schema, observability.Schema); err != nil {
			return nil, fmt.Errorf("apidiff: %w", err)
		}
		s.store = store.New(s.db)
	} else {
		dbOpts := []dbopen.Option{dbopen.WithSchema(observability.Schema)}
		if cfg.Store.TraceSQL {
			trace.SetLogger(logger)
			trace.SetSlowThreshold(cfg.Store.SlowQuery)
			dbOpts = append(dbOpts, dbopen.WithDriver(trace.DriverName))
		}
		st, err := store.Open(cfg.Store.Path, dbOpts...)
		if err != nil {
			return nil, fmt.Errorf("apidiff: open store: %w", err)
		}
		s.store = st
		s.ownsDB = true
	}
	if s.mOpts.Logger == nil {
		s.mOpts.Logger = logger
	}
	s.metrics = observability.New(s.store.DB, s.mOpts)
	return s, nil
}

// Close flushes metrics, closes the sinks and, when the Service opened it,
// the database.
func (s *Service) Close() error {
	err := errors.Join(s.metrics.Close(), s.sinks.Close())
	if s.ownsDB {
		err = errors.Join(err, s.store.Close())
	}
	return err
}

// Comparer returns the Service's comparison driver.
func (s *Service) Comparer() *Comparer { return s.comparer }

// ImportSnapshot stores snap. source records where it came from.
func (s *Service) ImportSnapshot(ctx context.Context, snap *snapshot.Snapshot, source string) (*SnapshotMeta, error) {
	if snap.Empty() {
		return nil, ErrNoData
	}
	m, err := s.store.SaveSnapshot(ctx, snap, source)
	if err != nil {
		return nil, fmt.Errorf("apidiff: import: %w", err)
	}
	s.metrics.Count(observability.MetricSnapshotsStored, 1, map[string]string{"label": m.Label})
	s.logger.Info("apidiff: snapshot imported",
		"id", m.ID, "label", m.Label, "endpoints", m.Endpoints, "source", source)
	return m, nil
}

// ImportFile loads a snapshot file and stores it. A non-empty label
// overrides the one in the file.
func (s *Service) ImportFile(ctx context.Context, path, label string) (*SnapshotMeta, error) {
	snap, err := snapshot.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if label != "" {
		snap.Label = label
	}
	return s.ImportSnapshot(ctx, snap, path)
}

// GetSnapshot loads a stored snapshot.
func (s *Service) GetSnapshot(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, id)
	return snap, mapStoreErr(err)
}

// LatestSnapshot loads the most recent snapshot with label.
func (s *Service) LatestSnapshot(ctx context.Context, label string) (*snapshot.Snapshot, error) {
	snap, err := s.store.LatestSnapshot(ctx, label)
	return snap, mapStoreErr(err)
}

// ListSnapshots lists stored snapshots newest first, optionally by label.
func (s *Service) ListSnapshots(ctx context.Context, label string, limit int) ([]SnapshotMeta, error) {
	return s.store.ListSnapshots(ctx, label, limit)
}

// CompareStored compares two stored snapshots, persists the run and
// publishes it to the sinks. Sink failures are logged, not returned.
func (s *Service) CompareStored(ctx context.Context, beforeID, afterID string) (*diffrec.Run, error) {
	if beforeID == "" || afterID == "" {
		return nil, fmt.Errorf("%w: before_id and after_id are required", ErrInvalidInput)
	}
	before, err := s.GetSnapshot(ctx, beforeID)
	if err != nil {
		return nil, err
	}
	after, err := s.GetSnapshot(ctx, afterID)
	if err != nil {
		return nil, err
	}
	return s.compareAndRecord(ctx, before, after)
}

// CompareLatest compares the newest snapshots carrying the two labels.
func (s *Service) CompareLatest(ctx context.Context, beforeLabel, afterLabel string) (*diffrec.Run, error) {
	before, err := s.LatestSnapshot(ctx, beforeLabel)
	if err != nil {
		return nil, err
	}
	after, err := s.LatestSnapshot(ctx, afterLabel)
	if err != nil {
		return nil, err
	}
	return s.compareAndRecord(ctx, before, after)
}

func (s *Service) compareAndRecord(ctx context.Context, before, after *snapshot.Snapshot) (*diffrec.Run, error) {
	start := time.Now()
	run, err := s.comparer.Compare(ctx, before, after)
	if err != nil {
		s.metrics.Count(observability.MetricRunFailures, 1, nil)
		return nil, err
	}
	s.recordRunMetrics(run, time.Since(start))
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("apidiff: save run: %w", err)
	}
	if err := Publish(ctx, s.sinks, run); err != nil {
		s.logger.Warn("apidiff: publish run", "run", run.ID, "error", err)
	}
	return run, nil
}

func (s *Service) recordRunMetrics(run *diffrec.Run, d time.Duration) {
	s.metrics.Duration(observability.MetricRunDurationMs, d, nil)
	s.metrics.Count(observability.MetricRunEndpoints, run.Summary.Endpoints, nil)
	for _, sev := range diffrec.Severities {
		if n := run.Summary.BySeverity[sev]; n > 0 {
			s.metrics.Count(observability.MetricRunFindings, n, map[string]string{"severity": string(sev)})
		}
	}
}

// Metrics returns recorded datapoints newest first. Buffered datapoints are
// flushed first.
func (s *Service) Metrics(ctx context.Context, f MetricFilter) ([]Metric, error) {
	s.metrics.Flush()
	return s.metrics.Query(ctx, f)
}

// GetRun loads a stored run.
func (s *Service) GetRun(ctx context.Context, id string) (*diffrec.Run, error) {
	run, err := s.store.GetRun(ctx, id)
	return run, mapStoreErr(err)
}

// ListRuns lists stored runs newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	return s.store.ListRuns(ctx, limit)
}

// WatchLatest blocks until ctx is done, comparing the newest beforeLabel and
// afterLabel snapshots at start and whenever a snapshot is stored. A pair
// already compared is not compared again; a missing label waits for the next
// snapshot.
func (s *Service) WatchLatest(ctx context.Context, beforeLabel, afterLabel string, opts WatchOptions) {
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	opts.FireOnStart = true
	w := s.store.Watch(opts)
	s.watcher.Store(w)
	w.OnChange(ctx, func(ctx context.Context, version int64) error {
		return s.compareLatestPair(ctx, beforeLabel, afterLabel)
	})
}

func (s *Service) compareLatestPair(ctx context.Context, beforeLabel, afterLabel string) error {
	before, err := s.LatestSnapshot(ctx, beforeLabel)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	after, err := s.LatestSnapshot(ctx, afterLabel)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pair := [2]string{before.ID, after.ID}
	s.lastMu.Lock()
	seen := s.lastPair == pair
	s.lastMu.Unlock()
	if seen {
		return nil
	}

	run, err := s.compareAndRecord(ctx, before, after)
	if err != nil {
		return err
	}
	s.lastMu.Lock()
	s.lastPair = pair
	s.lastMu.Unlock()
	s.logger.Info("apidiff: watch compared latest",
		"run", run.ID, "before", before.ID, "after", after.ID, "worst", run.Summary.Worst())
	return nil
}

// SQLStats returns per-table statement counters when store.trace_sql is
// set, nil otherwise.
func (s *Service) SQLStats() []trace.TableStats {
	if !s.ownsDB || !s.cfg.Store.TraceSQL {
		return nil
	}
	return trace.Stats()
}

// WatchStats returns the counters of the running WatchLatest loop, zero
// when none is running.
func (s *Service) WatchStats() WatchStats {
	if w := s.watcher.Load(); w != nil {
		return w.Stats()
	}
	return WatchStats{}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
