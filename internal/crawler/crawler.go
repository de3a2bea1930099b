// Package crawler discovers up to N pages within a target site via a
// single-threaded, strictly breadth-first frontier, cooperating with the
// URL Guard, the robots policy, and the browser pool to admit and fetch
// each page.
package crawler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/a11yworks/scanworker/internal/browserpool"
	"github.com/a11yworks/scanworker/internal/models"
	"github.com/a11yworks/scanworker/internal/robots"
	"github.com/a11yworks/scanworker/internal/urlguard"
)

// PageVisitor is invoked once per successfully loaded page, before the next
// frontier item is popped, so the orchestrator can run the rule engine and
// capture screenshots without the crawler knowing about either.
type PageVisitor func(ctx context.Context, page *rod.Page, item models.FrontierItem, title string)

// Crawler performs one single-threaded breadth-first crawl.
type Crawler struct {
	guard   *urlguard.Guard
	robots  *robots.Policy
	pool    *browserpool.Pool
	visitor PageVisitor

	stopped atomic.Bool
}

// New constructs a Crawler. visitor may be nil if the caller only needs
// CrawledPage bookkeeping (e.g. in tests).
func New(guard *urlguard.Guard, robotsPolicy *robots.Policy, pool *browserpool.Pool, visitor PageVisitor) *Crawler {
	return &Crawler{guard: guard, robots: robotsPolicy, pool: pool, visitor: visitor}
}

// Stop requests cooperative cancellation; the crawl returns partial results
// at the next loop iteration boundary.
func (c *Crawler) Stop() {
	c.stopped.Store(true)
}

// Crawl seeds the frontier with startURL at depth 0 and runs the
// breadth-first loop until the frontier empties, maxPages is reached, or
// Stop is called.
func (c *Crawler) Crawl(ctx context.Context, startURL string, cfg models.CrawlConfig) models.CrawlResult {
	seed, err := c.guard.ValidateWithDNS(ctx, startURL)
	if err != nil {
		return models.CrawlResult{
			Errors: []models.CrawlError{{URL: startURL, Depth: 0, Err: err}},
		}
	}

	visited := map[string]bool{}
	queued := map[string]bool{seed.Normalized: true}
	frontier := []models.FrontierItem{{URL: seed.Normalized, Depth: 0}}

	var result models.CrawlResult

	for len(frontier) > 0 && len(result.Pages) < cfg.MaxPages && !c.stopped.Load() {
		select {
		case <-ctx.Done():
			result.Stopped = true
			return result
		default:
		}

		item := frontier[0]
		frontier = frontier[1:]

		if visited[item.URL] {
			continue
		}
		if item.Depth > cfg.MaxDepth {
			continue
		}

		parsed, err := c.guard.ValidateSyntactic(item.URL)
		if err != nil {
			result.Errors = append(result.Errors, models.CrawlError{URL: item.URL, Depth: item.Depth, Err: err})
			continue
		}

		if cfg.RespectRobotsTxt {
			allowed := c.robots.IsAllowed(ctx, parsed.Scheme, parsed.Authority, parsed.Path, cfg.UserAgent)
			if !allowed {
				continue
			}
		}

		visited[item.URL] = true

		page, links, title, statusErr := c.fetch(ctx, item.URL, cfg)
		if statusErr != nil {
			result.Errors = append(result.Errors, models.CrawlError{URL: item.URL, Depth: item.Depth, Err: statusErr})
			if len(frontier) > 0 {
				time.Sleep(cfg.CrawlDelay)
			}
			continue
		}

		if c.visitor != nil && page != nil {
			c.visitor(ctx, page, item, title)
		}
		if page != nil {
			c.pool.ReleasePage(page)
		}

		result.Pages = append(result.Pages, models.CrawledPage{
			URL:        item.URL,
			Depth:      item.Depth,
			Title:      title,
			StatusCode: 200,
		})

		base, err := c.guard.ValidateSyntactic(item.URL)
		if err == nil {
			for _, href := range links {
				resolved := c.guard.ResolveRelative(base, href, true)
				if resolved == nil {
					continue
				}
				if visited[resolved.Normalized] || queued[resolved.Normalized] {
					continue
				}
				queued[resolved.Normalized] = true
				frontier = append(frontier, models.FrontierItem{URL: resolved.Normalized, Depth: item.Depth + 1})
			}
		}

		if len(frontier) > 0 {
			time.Sleep(cfg.CrawlDelay)
		}
	}

	if c.stopped.Load() {
		result.Stopped = true
	}
	return result
}

// fetch acquires a page, navigates with a bounded timeout, waits for an
// optional selector and a fixed post-load delay, then extracts the title and
// outbound links. The caller is responsible for releasing the returned page
// once the visitor has finished with it.
func (c *Crawler) fetch(ctx context.Context, targetURL string, cfg models.CrawlConfig) (*rod.Page, []string, string, error) {
	page, err := c.pool.AcquirePage(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavTimeout)
	defer cancel()

	var docResponse proto.NetworkResponseReceived
	waitDocResponse := page.Context(navCtx).WaitEvent(&docResponse)

	if err := page.Context(navCtx).Navigate(targetURL); err != nil {
		c.pool.ReleasePage(page)
		return nil, nil, "", err
	}
	waitDocResponse()

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Debug().Err(err).Str("url", targetURL).Msg("page load wait timed out, continuing with partial content")
	}

	if cfg.WaitForSelector != "" {
		timeout := cfg.SelectorTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		selCtx, selCancel := context.WithTimeout(ctx, timeout)
		_, _ = page.Context(selCtx).Element(cfg.WaitForSelector)
		selCancel()
	}
	if cfg.PostLoadDelay > 0 {
		time.Sleep(cfg.PostLoadDelay)
	}

	if docResponse.Response != nil && docResponse.Response.Status >= 400 {
		c.pool.ReleasePage(page)
		return nil, nil, "", httpStatusError{url: targetURL, status: int(docResponse.Response.Status)}
	}

	titleResult, err := page.Eval(`() => document.title`)
	title := ""
	if err == nil && titleResult != nil {
		title = titleResult.Value.Str()
	}

	linksResult, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => Array.from(document.querySelectorAll('a[href]')).map(a => a.getAttribute('href'))`,
	})
	var links []string
	if err == nil && linksResult != nil && !linksResult.Value.Nil() {
		for _, v := range linksResult.Value.Arr() {
			if s := v.Str(); s != "" {
				links = append(links, s)
			}
		}
	}

	return page, links, title, nil
}

type httpStatusError struct {
	url    string
	status int
}

func (e httpStatusError) Error() string {
	return fmt.Sprintf("crawler: %s returned HTTP status %d", e.url, e.status)
}
