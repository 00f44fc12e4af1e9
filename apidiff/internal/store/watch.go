package store

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two different values mean the data changed.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// SnapshotSeq is the default Detector: the highest snapshot seq, 0 when the
// table is empty. seq is AUTOINCREMENT, so it never goes backwards.
func SnapshotSeq(ctx context.Context, db *sql.DB) (int64, error) {
	var v sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(seq) FROM snapshots`).Scan(&v)
	return v.Int64, err
}

// WatchOptions tunes a Watcher.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action runs.
	// Further changes restart it. 0 fires immediately.
	Debounce time.Duration
	// FireOnStart runs the action once for the version present at start.
	FireOnStart bool
	// Detector overrides SnapshotSeq.
	Detector Detector
	Logger   *slog.Logger
}

func (o *WatchOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = SnapshotSeq
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// WatchStats are point-in-time counters.
type WatchStats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Runs            int64         `json:"runs"`
	AvgRunTime      time.Duration `json:"avg_run_time"`
}

// Watcher polls the snapshots table and runs an action when new snapshots
// land. It is safe for concurrent use.
type Watcher struct {
	db   *sql.DB
	opts WatchOptions

	version atomic.Int64

	mu      sync.Mutex
	advance chan struct{} // closed and replaced whenever version moves

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	runs    atomic.Int64
	runNs   atomic.Int64
}

// Watch creates a Watcher over the store. Call OnChange to start polling.
func (s *Store) Watch(opts WatchOptions) *Watcher {
	opts.applyDefaults()
	return &Watcher{db: s.DB, opts: opts, advance: make(chan struct{})}
}

// Stats returns the current counters.
func (w *Watcher) Stats() WatchStats {
	st := WatchStats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Runs:            w.runs.Load(),
	}
	if st.Runs > 0 {
		st.AvgRunTime = time.Duration(w.runNs.Load() / st.Runs)
	}
	return st
}

// Version returns the last version the action processed successfully.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange polls until ctx is cancelled. The version present at start is the
// baseline and only triggers action with FireOnStart. When the action fails the version is
// not advanced and the change is picked up again on the next poll.
func (w *Watcher) OnChange(ctx context.Context, action func(ctx context.Context, version int64) error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		w.errors.Add(1)
		log.Warn("watch: initial version check failed", "error", err)
	} else if w.opts.FireOnStart {
		w.fire(ctx, action, v)
	} else {
		w.setVersion(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	pending := int64(-1)

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			log.Info("watch: stopped")
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				pending = -1
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceC = debounce.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-debounceC:
			debounceC = nil
			if pending >= 0 {
				w.fire(ctx, action, pending)
				pending = -1
			}
		}
	}
}

// WaitForVersion blocks until the watcher has processed a version >= target
// or ctx is done.
func (w *Watcher) WaitForVersion(ctx context.Context, target int64) error {
	for {
		w.mu.Lock()
		ch := w.advance
		w.mu.Unlock()
		if w.version.Load() >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context, int64) error, ver int64) {
	log := w.opts.Logger
	log.Info("watch: running", "old_version", w.version.Load(), "new_version", ver)
	start := time.Now()
	if err := action(ctx, ver); err != nil {
		w.errors.Add(1)
		log.Error("watch: action failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.runs.Add(1)
	w.runNs.Add(int64(elapsed))
	w.setVersion(ver)
	log.Info("watch: action complete", "version", ver, "duration", elapsed)
}

func (w *Watcher) setVersion(v int64) {
	w.version.Store(v)
	w.mu.Lock()
	close(w.advance)
	w.advance = make(chan struct{})
	w.mu.Unlock()
}
