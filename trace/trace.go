// Package trace logs and counts the SQL issued against the apidiff store.
//
// Importing it registers the "sqlite-trace" driver, a wrapper around
// modernc.org/sqlite. Each statement is tagged with the store table it
// touches (snapshots, runs, metrics, ...) and logged through slog: Debug
// normally, Warn above the slow threshold, Error on failure. Request IDs
// are read from the context via kit.GetRequestID. Stats reports per-table
// counters.
//
//	db, err := dbopen.Open("data/apidiff.db", dbopen.WithDriver(trace.DriverName))
package trace

import (
	"cmp"
	"database/sql"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql name of the tracing driver.
const DriverName = "sqlite-trace"

// DefaultSlowThreshold is the duration above which a statement logs at Warn.
const DefaultSlowThreshold = 100 * time.Millisecond

var (
	logger atomic.Pointer[slog.Logger]
	slow   atomic.Int64
	tables sync.Map // table name -> *counters
)

func init() {
	sql.Register(DriverName, &tracedDriver{base: &sqlite.Driver{}})
}

// SetLogger sets the logger used by traced connections. Nil restores
// slog.Default().
func SetLogger(l *slog.Logger) { logger.Store(l) }

// SetSlowThreshold sets the Warn threshold. Zero or less restores the
// default.
func SetSlowThreshold(d time.Duration) { slow.Store(int64(d)) }

func currentLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func slowThreshold() time.Duration {
	if d := time.Duration(slow.Load()); d > 0 {
		return d
	}
	return DefaultSlowThreshold
}

// TableStats counts the traced statements of one store table.
type TableStats struct {
	Table      string `json:"table"`
	Statements int64  `json:"statements"`
	Slow       int64  `json:"slow"`
	Errors     int64  `json:"errors"`
}

type counters struct {
	statements, slow, errors atomic.Int64
}

func count(table string, isSlow, failed bool) {
	v, ok := tables.Load(table)
	if !ok {
		v, _ = tables.LoadOrStore(table, new(counters))
	}
	c := v.(*counters)
	c.statements.Add(1)
	if isSlow {
		c.slow.Add(1)
	}
	if failed {
		c.errors.Add(1)
	}
}

// Stats returns the counters of every table seen so far, sorted by table.
func Stats() []TableStats {
	var out []TableStats
	tables.Range(func(k, v any) bool {
		c := v.(*counters)
		out = append(out, TableStats{
			Table:      k.(string),
			Statements: c.statements.Load(),
			Slow:       c.slow.Load(),
			Errors:     c.errors.Load(),
		})
		return true
	})
	slices.SortFunc(out, func(a, b TableStats) int { return cmp.Compare(a.Table, b.Table) })
	return out
}

// ResetStats clears the per-table counters.
func ResetStats() { tables.Clear() }
