// Command apidiff verifies an application migration by diffing the API
// responses captured before and after it.
//
// Usage:
//
//	apidiff compare -before legacy.json -after migrated.json [-format md] [-out report.md]
//	apidiff capture -config apidiff.yaml -label legacy -out legacy.json
//	apidiff serve -config apidiff.yaml [-import legacy.json,migrated.json]
//	apidiff mcp -config apidiff.yaml
//
// compare exits with status 2 when the run holds a CRITICAL finding.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/migverify/apidiff"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/shield"
)

const version = "0.1.0"

// exitCritical is the compare exit status when a CRITICAL finding exists.
const exitCritical = 2

const usage = `usage: apidiff <command> [flags]

commands:
  compare   diff two snapshot files and print a report
  capture   record a snapshot with Chrome
  serve     run the HTTP API and the snapshot watcher
  mcp       serve MCP tools over stdio
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apidiff: %v\n", err)
	}
	os.Exit(code)
}

// run executes one subcommand and returns the process exit status.
func run(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) (int, error) {
	switch cmd {
	case "compare":
		return runCompare(ctx, args, stdout, stderr)
	case "capture":
		return exit(runCapture(ctx, args, stdout, stderr))
	case "serve":
		return exit(runServe(ctx, args, stderr))
	case "mcp":
		return exit(runMCP(ctx, args, stderr))
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0, nil
	}
	fmt.Fprint(stderr, usage)
	return 1, fmt.Errorf("unknown command %q", cmd)
}

func exit(err error) (int, error) {
	if err != nil {
		return 1, err
	}
	return 0, nil
}

// common holds the flags every subcommand accepts.
type common struct {
	configPath string
	logLevel   string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &common{}
	fs.StringVar(&c.configPath, "config", "", "path to apidiff.yaml config file")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return fs, c
}

func (c *common) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *common) config() (*apidiff.Config, error) {
	if c.configPath == "" {
		return apidiff.DefaultConfig(), nil
	}
	cfg, err := apidiff.LoadConfigFile(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runCompare(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	fs, c := newFlagSet("compare", stderr)
	beforePath := fs.String("before", "", "snapshot file captured from the legacy application")
	afterPath := fs.String("after", "", "snapshot file captured from the migrated application")
	format := fs.String("format", apidiff.FormatJSON, "report format: json, md, html")
	outPath := fs.String("out", "", "write the report to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}
	if *beforePath == "" || *afterPath == "" {
		return 1, errors.New("compare: -before and -after are required")
	}
	logger := c.logger(stderr)
	cfg, err := c.config()
	if err != nil {
		return 1, err
	}

	before, err := snapshot.LoadFile(*beforePath)
	if err != nil {
		return 1, fmt.Errorf("compare: %w", err)
	}
	after, err := snapshot.LoadFile(*afterPath)
	if err != nil {
		return 1, fmt.Errorf("compare: %w", err)
	}

	cmp, err := apidiff.NewComparer(cfg, apidiff.WithLogger(logger))
	if err != nil {
		return 1, err
	}
	run, err := cmp.Compare(ctx, before, after)
	if err != nil {
		return 1, err
	}

	if len(cfg.Sinks) > 0 {
		sinks, err := apidiff.BuildSinks(cfg.Sinks, logger)
		if err != nil {
			return 1, err
		}
		router := apidiff.NewSinkRouter(logger, sinks...)
		if err := apidiff.Publish(ctx, router, run); err != nil {
			logger.Warn("compare: publish failed", "run", run.ID, "error", err)
		}
		router.Close()
	}

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return 1, fmt.Errorf("compare: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := apidiff.WriteReport(out, run, *format); err != nil {
		return 1, err
	}

	if run.Summary.HasCritical() {
		return exitCritical, nil
	}
	return 0, nil
}

func runCapture(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("capture", stderr)
	label := fs.String("label", "", "snapshot label, e.g. legacy or migrated")
	outPath := fs.String("out", "", "write the snapshot to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := c.logger(stderr)
	cfg, err := c.config()
	if err != nil {
		return err
	}

	snap, err := apidiff.Capture(ctx, cfg, *label, logger)
	if err != nil {
		return err
	}
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return err
	}
	if *outPath == "" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(*outPath, data, 0o644)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs, c := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "listen address (overrides http.addr)")
	imports := fs.String("import", "", "comma-separated snapshot files to import at start")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := c.logger(stderr)
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	svc, err := apidiff.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, path := range strings.Split(*imports, ",") {
		if path = strings.TrimSpace(path); path == "" {
			continue
		}
		m, err := svc.ImportFile(ctx, path, "")
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info("serve: snapshot imported", "path", path, "id", m.ID, "label", m.Label)
	}

	if cfg.Watch.Enabled() {
		go svc.WatchLatest(ctx, cfg.Watch.BeforeLabel, cfg.Watch.AfterLabel, apidiff.WatchOptions{
			Interval: cfg.Watch.Interval,
			Debounce: cfg.Watch.Debounce,
		})
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(logger) {
		r.Use(mw)
	}
	svc.RegisterHTTP(r)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("serve: listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, args []string, stderr io.Writer) error {
	fs, c := newFlagSet("mcp", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := c.logger(stderr)
	cfg, err := c.config()
	if err != nil {
		return err
	}

	svc, err := apidiff.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "apidiff", Version: version}, nil)
	svc.RegisterMCP(srv)
	logger.Info("mcp: serving on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
