// Package capture records a snapshot of an application's API traffic by
// visiting its pages in Chrome and keeping every JSON response under the
// configured API prefixes.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/migverify/apidiff/internal/browser"
	"github.com/hazyhaar/migverify/apidiff/internal/config"
	"github.com/hazyhaar/migverify/apidiff/snapshot"
	"github.com/hazyhaar/migverify/idgen"
)

// Capturer visits the configured pages and builds a Snapshot.
type Capturer struct {
	cfg    config.CaptureConfig
	mgr    *browser.Manager
	logger *slog.Logger
	newID  idgen.Generator
	now    func() time.Time
}

// New creates a Capturer on a started browser manager.
func New(cfg config.CaptureConfig, mgr *browser.Manager, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		cfg:    cfg,
		mgr:    mgr,
		logger: logger,
		newID:  idgen.Prefixed("snap_", idgen.UUIDv7()),
		now:    time.Now,
	}
}

// Capture visits every page in order. A page that fails to load is logged
// and skipped; Capture fails only when ctx is done or no page yielded a
// response.
func (c *Capturer) Capture(ctx context.Context, label string) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{
		ID:         c.newID(),
		Label:      label,
		CapturedAt: c.now().UTC(),
	}
	for _, p := range c.cfg.Pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		resps, shot, err := c.capturePage(ctx, p)
		if err != nil {
			c.logger.Warn("capture: page failed", "page", p.ID, "url", p.URL, "error", err)
			continue
		}
		snap.Responses = append(snap.Responses, resps...)
		if shot != nil {
			snap.Screenshots = append(snap.Screenshots, *shot)
		}
		c.logger.Info("capture: page done", "page", p.ID, "responses", len(resps))
	}
	if snap.Empty() {
		return nil, fmt.Errorf("capture: %w", snapshot.ErrNoResponses)
	}
	return snap, nil
}

func (c *Capturer) capturePage(ctx context.Context, p config.PageConfig) ([]snapshot.CapturedResponse, *snapshot.Screenshot, error) {
	tab, err := c.mgr.NewTab(c.cfg.ExtraHeaders)
	if err != nil {
		return nil, nil, err
	}
	defer tab.Close()

	if err := (proto.NetworkEnable{}).Call(tab.Page); err != nil {
		return nil, nil, fmt.Errorf("capture: enable network: %w", err)
	}

	rec := newRecorder(c.cfg.APIPrefixes)
	listenCtx, stop := context.WithCancel(ctx)
	defer stop()
	wait := tab.Page.Context(listenCtx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			rec.request(string(e.RequestID), e.Request.Method)
		},
		func(e *proto.NetworkResponseReceived) {
			headers := make(map[string]string, len(e.Response.Headers))
			for k, v := range e.Response.Headers {
				headers[k] = v.Str()
			}
			rec.response(string(e.RequestID), e.Response.URL, e.Response.Status, e.Response.MIMEType, headers)
		},
		func(e *proto.NetworkLoadingFinished) {
			rec.finish(string(e.RequestID))
		},
	)
	listening := make(chan struct{})
	go func() {
		wait()
		close(listening)
	}()

	if err := tab.Navigate(ctx, p.URL); err != nil {
		return nil, nil, err
	}
	select {
	case <-time.After(c.cfg.Settle):
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	stop()
	<-listening

	resps, skipped := rec.responses(func(id string) (string, bool, error) {
		res, err := proto.NetworkGetResponseBody{RequestID: proto.NetworkRequestID(id)}.Call(tab.Page)
		if err != nil {
			return "", false, err
		}
		return res.Body, res.Base64Encoded, nil
	})
	if len(skipped) > 0 {
		c.logger.Warn("capture: responses without body", "page", p.ID, "count", len(skipped), "urls", skipped)
	}

	var shot *snapshot.Screenshot
	if c.cfg.Screenshots {
		data, err := tab.Screenshot(ctx, c.cfg.FullPage)
		if err != nil {
			c.logger.Warn("capture: screenshot failed", "page", p.ID, "error", err)
		} else {
			shot = &snapshot.Screenshot{Name: p.ID, Data: data}
		}
	}
	return resps, shot, nil
}
