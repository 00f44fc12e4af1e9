// Package observability records comparison metrics in SQLite.
//
// Datapoints are buffered and flushed in batches by a background goroutine,
// so recording never waits on the database. Apply Schema to the database
// (dbopen.WithSchema) before creating a Metrics.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/migverify/dbopen"
)

// Metric names recorded by apidiff.
const (
	MetricRunDurationMs   = "run_duration_ms"
	MetricRunEndpoints    = "run_endpoints"
	MetricRunFindings     = "run_findings" // labels: severity
	MetricRunFailures     = "run_failures"
	MetricSnapshotsStored = "snapshots_stored"
)

// Metric is a single timeseries datapoint.
type Metric struct {
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Unit      string            `json:"unit,omitempty"` // "ms", "count"
}

// Filter selects metrics in Query. Zero fields are unbounded.
type Filter struct {
	Name  string
	Since time.Time
	Until time.Time
	Limit int
}

// Options tunes batching.
type Options struct {
	BufferSize    int           // flush when this many points are queued; default 100
	FlushInterval time.Duration // default 5s
	Logger        *slog.Logger
}

// Metrics buffers datapoints and flushes them to SQLite in batches.
type Metrics struct {
	db     *sql.DB
	opts   Options
	now    func() time.Time
	buffer []Metric
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New starts a Metrics on db.
func New(db *sql.DB, opts Options) *Metrics {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Metrics{
		db:     db,
		opts:   opts,
		now:    time.Now,
		buffer: make([]Metric, 0, opts.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.flushLoop()
	return m
}

// Record queues a datapoint. A zero Timestamp means now.
func (m *Metrics) Record(p Metric) {
	if p.Timestamp.IsZero() {
		p.Timestamp = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, p)
	if len(m.buffer) >= m.opts.BufferSize {
		m.flushLocked()
	}
}

// Count queues a counter datapoint.
func (m *Metrics) Count(name string, value int, labels map[string]string) {
	m.Record(Metric{Name: name, Value: float64(value), Labels: labels, Unit: "count"})
}

// Duration queues a duration datapoint in milliseconds.
func (m *Metrics) Duration(name string, d time.Duration, labels map[string]string) {
	m.Record(Metric{Name: name, Value: float64(d.Microseconds()) / 1000, Labels: labels, Unit: "ms"})
}

// Flush writes the buffered datapoints now.
func (m *Metrics) Flush() {
	m.mu.Lock()
	m.flushLocked()
	m.mu.Unlock()
}

// Query returns flushed datapoints, newest first.
func (m *Metrics) Query(ctx context.Context, f Filter) ([]Metric, error) {
	q := "SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries WHERE 1=1"
	var args []any
	if f.Name != "" {
		q += " AND metric_name = ?"
		args = append(args, f.Name)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		q += " AND timestamp <= ?"
		args = append(args, f.Until.UnixMilli())
	}
	q += " ORDER BY timestamp DESC, metric_id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var (
			p      Metric
			ts     int64
			labels sql.NullString
		)
		if err := rows.Scan(&p.Name, &ts, &p.Value, &labels, &p.Unit); err != nil {
			return nil, fmt.Errorf("observability: scan metric: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts)
		if labels.Valid {
			json.Unmarshal([]byte(labels.String), &p.Labels)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than retention and returns the count
// removed.
func (m *Metrics) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := m.db.ExecContext(ctx, "DELETE FROM metrics_timeseries WHERE timestamp < ?",
		m.now().Add(-retention).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes the buffer and stops the background goroutine. It is safe
// to call more than once.
func (m *Metrics) Close() error {
	m.once.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}

func (m *Metrics) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			m.Flush()
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

func (m *Metrics) flushLocked() {
	if len(m.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch := m.buffer
	err := dbopen.RunTx(ctx, m.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range batch {
			var labels sql.NullString
			if len(p.Labels) > 0 {
				if b, err := json.Marshal(p.Labels); err == nil {
					labels = sql.NullString{String: string(b), Valid: true}
				}
			}
			if _, err := stmt.ExecContext(ctx, p.Name, p.Timestamp.UnixMilli(), p.Value, labels, p.Unit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.opts.Logger.Error("observability: flush failed", "points", len(batch), "error", err)
	}
	m.buffer = make([]Metric, 0, m.opts.BufferSize)
}
