package apidiff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/migverify/apidiff/internal/browser"
	"github.com/hazyhaar/migverify/apidiff/internal/capture"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
)

// Capture launches (or connects to) Chrome, visits cfg.Capture.Pages and
// returns the recorded snapshot under label. The browser is closed on
// return.
func Capture(ctx context.Context, cfg *Config, label string, logger *slog.Logger) (*snapshot.Snapshot, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Capture.Pages) == 0 {
		return nil, fmt.Errorf("%w: no capture pages configured", ErrInvalidInput)
	}
	bc := cfg.Capture.Browser
	level, err := browser.ParseStealth(bc.Stealth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:         bc.Remote,
		Stealth:           level,
		ResourceBlocking:  bc.ResourceBlocking,
		NavigationTimeout: bc.NavigationTimeout,
		XvfbDisplay:       bc.XvfbDisplay,
		Logger:            logger,
	})
	defer mgr.Close()
	if _, err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("apidiff: capture: %w", err)
	}

	snap, err := capture.New(cfg.Capture, mgr, logger).Capture(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("apidiff: %w", err)
	}
	logger.Info("capture: snapshot ready", "id", snap.ID, "label", label,
		"responses", len(snap.Responses), "screenshots", len(snap.Screenshots))
	return snap, nil
}
