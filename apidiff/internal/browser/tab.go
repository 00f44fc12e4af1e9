package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is a page prepared for capture: stealth patches, resource blocking and
// extra request headers. Listeners are attached between NewTab and Navigate
// so no response of the first load is missed.
type Tab struct {
	Page *rod.Page

	mgr     *Manager
	hijack  *rod.HijackRouter
	cleanup []func()
}

// NewTab opens a blank tab on the running browser.
func (m *Manager) NewTab(headers map[string]string) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, errors.New("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{Page: page, mgr: m}

	if len(headers) > 0 {
		dict := make([]string, 0, 2*len(headers))
		for k, v := range headers {
			dict = append(dict, k, v)
		}
		restore, err := page.SetExtraHeaders(dict)
		if err != nil {
			page.Close()
			return nil, fmt.Errorf("browser: extra headers: %w", err)
		}
		t.cleanup = append(t.cleanup, restore)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		router, err := blockResources(page, m.cfg.ResourceBlocking)
		if err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		} else {
			t.hijack = router
		}
	}
	return t, nil
}

// Navigate loads pageURL and waits for the load event within the manager's
// navigation timeout. A load timeout is logged, not returned: the network
// traffic seen so far is still usable.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.mgr.cfg.NavigationTimeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// Screenshot captures the viewport, or the whole page when fullPage is set,
// as PNG.
func (t *Tab) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := t.Page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close stops interception and closes the tab.
func (t *Tab) Close() error {
	if t.hijack != nil {
		t.hijack.Stop()
	}
	for _, f := range t.cleanup {
		f()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
