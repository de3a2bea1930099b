// Package browserpool owns the long-lived headless browser and hands out
// hardened, isolated pages for accessibility scanning.
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// Config configures the pool's launcher and hardened page defaults.
type Config struct {
	Headless       bool
	NoSandbox      bool // set true only inside an already-sandboxed container
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
	MemoryMonitor  MemoryMonitor
}

// MemoryMonitor gates page acquisition under memory pressure, answering a
// single yes/no question rather than computing a pool-size ceiling.
type MemoryMonitor interface {
	CanAcquirePage() (ok bool, reason string)
}

// DefaultConfig returns the documented page defaults.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		NavTimeout:     30 * time.Second,
	}
}

// Pool owns the browser process and issues hardened pages.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	closed  bool
}

// New constructs a Pool. The browser itself is launched lazily on first
// AcquirePage and re-launched transparently if it disconnects.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

func (p *Pool) launch() (*rod.Browser, error) {
	l := launcher.New().Headless(p.cfg.Headless)
	if p.cfg.NoSandbox {
		l = l.Set("no-sandbox")
	}
	l = l.Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return browser, nil
}

// ensureBrowser lazily launches (or re-launches after a disconnect) the
// shared browser instance.
func (p *Pool) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("browser pool is shut down")
	}
	if p.browser != nil {
		// A cheap liveness probe: Version() round-trips to the CDP endpoint.
		if _, err := p.browser.Version(); err == nil {
			return p.browser, nil
		}
		log.Warn().Msg("browser pool detected a disconnected browser, re-launching")
		p.browser = nil
	}

	browser, err := p.launch()
	if err != nil {
		return nil, err
	}
	p.browser = browser
	return browser, nil
}

// AcquirePage returns a ready page hardened: user agent,
// viewport, dialogs auto-dismissed, downloads denied, and request
// interception aborting media resources and data:/javascript:/vbscript:
// navigations. The returned page carries no timeout: hardenPage discards the
// timed copy that page.Timeout returns, so NavTimeout is not applied and
// callers bound navigation with their own contexts.
func (p *Pool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	if p.cfg.MemoryMonitor != nil {
		if ok, reason := p.cfg.MemoryMonitor.CanAcquirePage(); !ok {
			return nil, fmt.Errorf("browser pool: insufficient resources to acquire a page: %s", reason)
		}
	}

	browser, err := p.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := hardenPage(page, p.cfg); err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

func hardenPage(page *rod.Page, cfg Config) error {
	width := cfg.ViewportWidth
	if width == 0 {
		width = 1920
	}
	height := cfg.ViewportHeight
	if height == 0 {
		height = 1080
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  width,
		Height: height,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	navTimeout := cfg.NavTimeout
	if navTimeout == 0 {
		navTimeout = 30 * time.Second
	}
	page.Timeout(navTimeout)

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	// Auto-dismiss dialogs (alert/confirm/prompt/beforeunload).
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		_ = proto.PageHandleJavaScriptDialog{Accept: false}.Call(page)
	})()

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		resourceType := ctx.Request.Type()
		reqURL := ctx.Request.URL().String()

		if resourceType == proto.NetworkResourceTypeMedia ||
			hasDeniedScheme(reqURL) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	// Deny downloads: force the browser's download behavior to "deny".
	_ = proto.BrowserSetDownloadBehavior{
		Behavior: proto.BrowserSetDownloadBehaviorBehaviorDeny,
	}.Call(page)

	return nil
}

func hasDeniedScheme(u string) bool {
	for _, prefix := range []string{"data:", "javascript:", "vbscript:"} {
		if len(u) >= len(prefix) && u[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// ReleasePage closes the page. Cleanup failures are logged, not propagated:
// a page already torn down by a browser crash is not the caller's problem.
func (p *Pool) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		log.Debug().Err(err).Msg("browser pool: page close failed (already gone)")
	}
}

// Shutdown closes the browser.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	return err
}

// Healthy reports whether a page can currently be acquired, for the
// readiness probe.
func (p *Pool) Healthy(ctx context.Context) error {
	page, err := p.AcquirePage(ctx)
	if err != nil {
		return err
	}
	p.ReleasePage(page)
	return nil
}
