// Package robots fetches, caches, and evaluates robots.txt with fail-open
// semantics. Cache key is host; cache has no TTL within a
// process. A cache miss triggers a single bounded, single-flight fetch per
// host, so concurrent scans against the same host never thunder the herd.
package robots

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const fetchTimeout = 10 * time.Second

// entry is a RobotsCacheEntry: process-local, lifetime = process.
type entry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// Policy evaluates robots.txt rules with a process-wide, read-mostly cache.
type Policy struct {
	client *http.Client
	mu     sync.RWMutex
	cache  map[string]*entry
	group  singleflight.Group
}

// New constructs a Policy with its own bounded HTTP client.
func New() *Policy {
	return &Policy{
		client: &http.Client{Timeout: fetchTimeout},
		cache:  make(map[string]*entry),
	}
}

func cacheKey(host string) string { return host }

// IsAllowed fetches (or reuses the cached parse of) robots.txt for the
// scheme+host of url and evaluates it for userAgent against path. Fetch
// failures, non-2xx responses, timeouts, and unparsed content all fail open
// (permit everything)
func (p *Policy) IsAllowed(ctx context.Context, scheme, host, path, userAgent string) bool {
	data := p.get(ctx, scheme, host)
	if data == nil {
		return true
	}
	group := data.FindGroup(userAgent)
	if group == nil {
		return true
	}
	return group.Test(path)
}

// CrawlDelay returns the crawl-delay directive in seconds, if any.
func (p *Policy) CrawlDelay(ctx context.Context, scheme, host, userAgent string) (int, bool) {
	data := p.get(ctx, scheme, host)
	if data == nil {
		return 0, false
	}
	group := data.FindGroup(userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return 0, false
	}
	return int(group.CrawlDelay / time.Second), true
}

// Sitemaps returns the sitemap URLs declared in robots.txt, if any.
func (p *Policy) Sitemaps(ctx context.Context, scheme, host string) []string {
	data := p.get(ctx, scheme, host)
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

func (p *Policy) get(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	key := cacheKey(host)

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return cached.data
	}

	result, _, _ := p.group.Do(key, func() (interface{}, error) {
		data := p.fetch(ctx, scheme, host)
		p.mu.Lock()
		p.cache[key] = &entry{data: data, fetchedAt: time.Now()}
		p.mu.Unlock()
		return data, nil
	})

	if result == nil {
		return nil
	}
	return result.(*robotstxt.RobotsData)
}

// fetch performs the single bounded GET; any failure produces a nil
// RobotsData, which IsAllowed/CrawlDelay/Sitemaps all treat as "permit
// everything, no directives".
func (p *Policy) fetch(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, scheme+"://"+host+"/robots.txt", nil)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("robots.txt request build failed, failing open")
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("robots.txt fetch failed, failing open")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().Int("status", resp.StatusCode).Str("host", host).Msg("robots.txt non-2xx, failing open")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("robots.txt read failed, failing open")
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("robots.txt unparsable, failing open")
		return nil
	}
	return data
}
