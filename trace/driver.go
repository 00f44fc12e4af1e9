package trace

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/migverify/kit"
)

var errNoContext = errors.New("trace: statement does not support context")

// tracedDriver opens connections whose statements are logged and counted.
type tracedDriver struct {
	base driver.Driver
}

func (d *tracedDriver) Open(name string) (driver.Conn, error) {
	c, err := d.base.Open(name)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: c}, nil
}

type conn struct {
	driver.Conn
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	pc, ok := c.Conn.(driver.ConnPrepareContext)
	if !ok {
		return nil, errNoContext
	}
	s := &stmt{query: query, table: tableOf(query)}
	start := time.Now()
	inner, err := pc.PrepareContext(ctx, query)
	if err != nil {
		s.observe(ctx, "prepare", start, -1, err)
		return nil, err
	}
	s.Stmt = inner
	return s, nil
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bc, ok := c.Conn.(driver.ConnBeginTx); ok {
		return bc.BeginTx(ctx, opts)
	}
	return nil, errNoContext
}

// stmt is a prepared statement tagged with the store table it touches.
type stmt struct {
	driver.Stmt
	query string
	table string
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := s.Stmt.(driver.StmtExecContext)
	if !ok {
		return nil, errNoContext
	}
	start := time.Now()
	res, err := ec.ExecContext(ctx, args)
	rows := int64(-1)
	if err == nil {
		rows, _ = res.RowsAffected()
	}
	s.observe(ctx, "exec", start, rows, err)
	return res, err
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := s.Stmt.(driver.StmtQueryContext)
	if !ok {
		return nil, errNoContext
	}
	start := time.Now()
	rows, err := qc.QueryContext(ctx, args)
	s.observe(ctx, "query", start, -1, err)
	return rows, err
}

// observe counts the statement against its table and logs it. Pragmas are
// only logged when slow or failed; the watcher issues one per poll.
func (s *stmt) observe(ctx context.Context, op string, start time.Time, rows int64, err error) {
	d := time.Since(start)
	slow := d > slowThreshold()
	count(s.table, slow, err != nil)

	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelError
	case slow:
		level = slog.LevelWarn
	case s.table == tablePragma:
		return
	}
	l := currentLogger()
	if !l.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs,
		slog.String("table", s.table),
		slog.String("op", op),
		slog.Duration("duration", d),
		slog.String("query", compact(s.query)),
	)
	if rows >= 0 {
		attrs = append(attrs, slog.Int64("rows", rows))
	}
	if id := kit.GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.LogAttrs(ctx, level, "sql: statement", attrs...)
}

const (
	tablePragma = "pragma"
	tableOther  = "other"
)

// tableOf names the store area a statement touches: the first table after
// FROM, INTO, UPDATE, TABLE or ON. metrics_timeseries folds to "metrics".
func tableOf(query string) string {
	f := strings.Fields(strings.ToLower(query))
	if len(f) > 0 && f[0] == "pragma" {
		return tablePragma
	}
	for i := 0; i < len(f)-1; i++ {
		switch f[i] {
		case "from", "into", "update", "table", "on":
		default:
			continue
		}
		j := i + 1
		for j < len(f) && (f[j] == "if" || f[j] == "not" || f[j] == "exists") {
			j++
		}
		if j == len(f) {
			break
		}
		name, _, _ := strings.Cut(f[j], "(")
		name = strings.Trim(name, "\"`;")
		if name == "" {
			continue
		}
		if strings.HasPrefix(name, "metrics") {
			return "metrics"
		}
		return name
	}
	return tableOther
}

// compact collapses the whitespace of multi-line statements.
func compact(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
