package browserpool

import "testing"

func TestHasDeniedScheme(t *testing.T) {
	cases := map[string]bool{
		"data:text/html,<script>":  true,
		"javascript:alert(1)":      true,
		"vbscript:msgbox(1)":       true,
		"https://example.com/a.js": false,
		"http://example.com":       false,
	}
	for url, want := range cases {
		if got := hasDeniedScheme(url); got != want {
			t.Errorf("hasDeniedScheme(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ViewportWidth != 1920 || cfg.ViewportHeight != 1080 {
		t.Errorf("unexpected default viewport: %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if !cfg.Headless {
		t.Error("expected headless default to be true")
	}
}

type fakeMonitor struct {
	ok     bool
	reason string
}

func (f fakeMonitor) CanAcquirePage() (bool, string) { return f.ok, f.reason }

func TestAcquirePage_RefusesUnderMemoryPressure(t *testing.T) {
	p := New(Config{MemoryMonitor: fakeMonitor{ok: false, reason: "rss above ceiling"}})
	_, err := p.AcquirePage(nil) //nolint:staticcheck // memory gate short-circuits before ctx use
	if err == nil {
		t.Fatal("expected AcquirePage to fail under memory pressure")
	}
}

func TestShutdown_NoBrowserLaunched(t *testing.T) {
	p := New(DefaultConfig())
	if err := p.Shutdown(); err != nil {
		t.Errorf("unexpected error shutting down an unlaunched pool: %v", err)
	}
}
