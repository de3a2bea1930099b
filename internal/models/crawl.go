package models

import "time"

// FrontierItem is an ephemeral, in-memory-only frontier entry:
// never persisted.
type FrontierItem struct {
	URL   string
	Depth int
}

// CrawlConfig configures one Crawler run.
type CrawlConfig struct {
	MaxPages         int
	MaxDepth         int
	RespectRobotsTxt bool
	CrawlDelay       time.Duration
	NavTimeout       time.Duration
	WaitForSelector  string        // optional CSS selector to await before extraction
	SelectorTimeout  time.Duration // bounded timeout for WaitForSelector
	PostLoadDelay    time.Duration
	UserAgent        string
}

// DefaultCrawlConfig returns the documented defaults.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxDepth:        2,
		CrawlDelay:      500 * time.Millisecond,
		NavTimeout:      30 * time.Second,
		SelectorTimeout: 5 * time.Second,
		PostLoadDelay:   0,
		UserAgent:       "Mozilla/5.0 (compatible; A11yScanWorker/1.0; +https://a11yworks.example/bot)",
	}
}

// CrawledPage is a successfully (or unsuccessfully) visited page recorded by
// the crawler, prior to rule-engine analysis.
type CrawledPage struct {
	URL        string
	Depth      int
	Title      string
	StatusCode int
	Error      string
}

// CrawlError records a page the crawler could not admit or fetch.
type CrawlError struct {
	URL   string
	Depth int
	Err   error
}

// CrawlResult is the Crawler's return value.
type CrawlResult struct {
	Pages    []CrawledPage
	Errors   []CrawlError
	Stopped  bool
}
