// Package orchestrator drives one accessibility scan job end to end: seed
// validation, crawling, per-page rule-engine evaluation, finding
// normalization, optional screenshot capture, and the final persisted
// commit. It is the single point that wires every other package together.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/a11yworks/scanworker/internal/browserpool"
	"github.com/a11yworks/scanworker/internal/crawler"
	"github.com/a11yworks/scanworker/internal/models"
	"github.com/a11yworks/scanworker/internal/persistence"
	"github.com/a11yworks/scanworker/internal/robots"
	"github.com/a11yworks/scanworker/internal/ruleengine"
	"github.com/a11yworks/scanworker/internal/screenshot"
	"github.com/a11yworks/scanworker/internal/urlguard"
)

// ProgressReporter abstracts the queue adapter's EmitProgress so tests can
// supply a stub.
type ProgressReporter interface {
	EmitProgress(ctx context.Context, jobID string, event models.ProgressEvent)
}

// Orchestrator owns one job's run from queued through a terminal status. It
// holds no per-job state between invocations: every Run call is independent.
type Orchestrator struct {
	guard    *urlguard.Guard
	robots   *robots.Policy
	pool     *browserpool.Pool
	runner   *ruleengine.Runner
	shots    *screenshot.Capturer
	gateway  *persistence.Gateway
	progress ProgressReporter

	cancelled atomic.Bool
}

// New wires the orchestrator from its already-constructed collaborators.
// The rule translator lives inside runner; the orchestrator only ever calls
// runner.Run and never touches translation directly.
func New(
	guard *urlguard.Guard,
	robotsPolicy *robots.Policy,
	pool *browserpool.Pool,
	runner *ruleengine.Runner,
	shots *screenshot.Capturer,
	gateway *persistence.Gateway,
	progress ProgressReporter,
) *Orchestrator {
	return &Orchestrator{
		guard:    guard,
		robots:   robotsPolicy,
		pool:     pool,
		runner:   runner,
		shots:    shots,
		gateway:  gateway,
		progress: progress,
	}
}

// Cancel requests cooperative cancellation of the in-flight Run call, if
// any. A cancelled run ends with ScanStatusCancelled rather than failed.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Run drives one job through the full state machine:
// queued -> crawling -> scanning -> processing -> completed|failed|cancelled.
// It returns a *models.ScanError on failure so the caller (the queue
// handler) can decide whether asynq should retry, based on Kind.Transient().
func (o *Orchestrator) Run(ctx context.Context, job models.JobMessage) error {
	o.cancelled.Store(false)

	seed, err := o.guard.ValidateWithDNS(ctx, job.URL)
	if err != nil {
		scanErr := models.NewScanError(models.ErrorKindInput, "seed url rejected", err)
		o.fail(ctx, job.ScanID, scanErr)
		return scanErr
	}

	if err := o.gateway.SetStatus(ctx, job.ScanID, string(models.ScanStatusCrawling), ""); err != nil {
		scanErr := models.NewScanError(models.ErrorKindPersistence, "set status crawling", err)
		return scanErr
	}

	pages, scanErr := o.crawlPhase(ctx, job, seed)
	if scanErr != nil {
		o.fail(ctx, job.ScanID, scanErr)
		return scanErr
	}
	if o.cancelled.Load() {
		_ = o.gateway.SetStatus(ctx, job.ScanID, string(models.ScanStatusCancelled), "")
		return nil
	}
	if len(pages) == 0 {
		scanErr := models.NewScanError(models.ErrorKindValidationExhausted, "no-pages", nil)
		o.fail(ctx, job.ScanID, scanErr)
		return scanErr
	}

	if err := o.gateway.SetStatus(ctx, job.ScanID, string(models.ScanStatusScanning), ""); err != nil {
		scanErr := models.NewScanError(models.ErrorKindPersistence, "set status scanning", err)
		return scanErr
	}

	resultPages, findingsByPage := o.scanPhase(ctx, job, pages)
	if o.cancelled.Load() {
		_ = o.gateway.SetStatus(ctx, job.ScanID, string(models.ScanStatusCancelled), "")
		return nil
	}

	if err := o.gateway.SetStatus(ctx, job.ScanID, string(models.ScanStatusProcessing), ""); err != nil {
		scanErr := models.NewScanError(models.ErrorKindPersistence, "set status processing", err)
		return scanErr
	}

	summary := summarize(resultPages, findingsByPage)
	o.progress.EmitProgress(ctx, job.ScanID, models.ProgressEvent{
		Stage:        models.ProgressStageProcessing,
		PagesScanned: len(resultPages),
		TotalPages:   job.MaxPages,
		IssuesFound:  summary.IssuesCount,
	})

	if successfulPageCount(resultPages) == 0 {
		scanErr := models.NewScanError(models.ErrorKindValidationExhausted, "all pages failed", nil)
		o.fail(ctx, job.ScanID, scanErr)
		return scanErr
	}

	if err := o.gateway.CommitScan(ctx, job.ScanID, resultPages, findingsByPage, summary); err != nil {
		scanErr := models.NewScanError(models.ErrorKindPersistence, "commit scan", err)
		return scanErr
	}

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, scanID string, scanErr *models.ScanError) {
	if err := o.gateway.MarkFailed(ctx, scanID, scanErr.Reason); err != nil {
		log.Error().Err(err).Str("scanId", scanID).Msg("failed to persist scan failure")
	}
}

// crawlPhase runs the crawler (or, for a single-page job, fetches just the
// seed) and returns the pages to feed into the scan phase.
func (o *Orchestrator) crawlPhase(ctx context.Context, job models.JobMessage, seed *urlguard.ParsedURL) ([]models.CrawledPage, *models.ScanError) {
	cfg := models.DefaultCrawlConfig()
	cfg.MaxPages = job.MaxPages
	if !job.Crawl {
		cfg.MaxDepth = 0
	}
	cfg.RespectRobotsTxt = job.Options.RespectRobotsTxt
	if job.Options.WaitTimeMs > 0 {
		cfg.PostLoadDelay = time.Duration(job.Options.WaitTimeMs) * time.Millisecond
	}

	c := crawler.New(o.guard, o.robots, o.pool, func(ctx context.Context, page *rod.Page, item models.FrontierItem, title string) {})
	result := c.Crawl(ctx, seed.Normalized, cfg)

	o.progress.EmitProgress(ctx, job.ScanID, models.ProgressEvent{
		Stage:        models.ProgressStageCrawling,
		PagesScanned: len(result.Pages),
		TotalPages:   job.MaxPages,
	})

	if len(result.Pages) == 0 && len(result.Errors) > 0 {
		first := result.Errors[0]
		return nil, models.NewScanError(models.ErrorKindNetwork, "seed page unreachable", first.Err)
	}
	return result.Pages, nil
}

// scanPhase re-fetches each crawled page (the crawler already navigated
// away once per page; the rule engine needs a live page handle, so pages
// are visited a second time here under a fresh browser page) and runs the
// rule engine plus the normalizer against each.
func (o *Orchestrator) scanPhase(ctx context.Context, job models.JobMessage, crawled []models.CrawledPage) ([]models.Page, map[string][]models.Finding) {
	resultPages := make([]models.Page, 0, len(crawled))
	findingsByPage := make(map[string][]models.Finding, len(crawled))
	runnerCfg := models.DefaultRunnerConfig()

	for i, cp := range crawled {
		if o.cancelled.Load() {
			break
		}
		if cp.Error != "" {
			resultPages = append(resultPages, models.Page{
				URL:       cp.URL,
				Title:     cp.Title,
				Depth:     cp.Depth,
				ScannedAt: time.Now(),
				Error:     cp.Error,
			})
			continue
		}

		page, err := o.pool.AcquirePage(ctx)
		if err != nil {
			resultPages = append(resultPages, models.Page{
				URL: cp.URL, Title: cp.Title, Depth: cp.Depth,
				ScannedAt: time.Now(),
				Error:     fmt.Sprintf("browser_error: %v", err),
			})
			continue
		}

		navCtx, cancel := context.WithTimeout(ctx, runnerCfg.Timeout)
		navErr := page.Context(navCtx).Navigate(cp.URL)
		cancel()
		if navErr != nil {
			o.pool.ReleasePage(page)
			resultPages = append(resultPages, models.Page{
				URL: cp.URL, Title: cp.Title, Depth: cp.Depth,
				ScannedAt: time.Now(),
				Error:     fmt.Sprintf("browser_error: %v", navErr),
			})
			continue
		}
		_ = page.WaitLoad()

		scanResult := o.runner.Run(page, cp.URL, runnerCfg)

		var loadTimeMs *int
		if job.Options.CaptureScreenshots {
			o.captureFindingScreenshots(page, job.ScanID, i, scanResult.Findings)
		}

		o.pool.ReleasePage(page)

		resultPages = append(resultPages, models.Page{
			URL:             cp.URL,
			Title:           scanResult.Title,
			Depth:           cp.Depth,
			Score:           scanResult.Score,
			IssuesCount:     len(scanResult.Findings),
			PassedRules:     scanResult.PassedRules,
			FailedRules:     scanResult.FailedRules,
			IncompleteRules: scanResult.IncompleteRules,
			LoadTimeMs:      loadTimeMs,
			ScanTimeMs:      scanResult.ScanTimeMs,
			ScannedAt:       scanResult.Timestamp,
			Error:           scanResult.Error,
		})
		findingsByPage[cp.URL] = scanResult.Findings

		o.progress.EmitProgress(ctx, job.ScanID, models.ProgressEvent{
			Stage:        models.ProgressStageScanning,
			PagesScanned: i + 1,
			TotalPages:   len(crawled),
			CurrentURL:   cp.URL,
			IssuesFound:  len(scanResult.Findings),
		})
	}

	return resultPages, findingsByPage
}

// captureFindingScreenshots takes one element screenshot per finding that
// has an element selector, mutating each Finding's ScreenshotPath in place.
func (o *Orchestrator) captureFindingScreenshots(page *rod.Page, scanID string, pageIndex int, findings []models.Finding) {
	opts := screenshot.DefaultOptions()
	for i := range findings {
		if findings[i].ElementSelector == "" {
			continue
		}
		res := o.shots.CaptureElement(page, findings[i].ElementSelector, scanID, findings[i].RuleID, pageIndex*1000+i, opts)
		if res.Error == "" {
			findings[i].ScreenshotPath = res.Path
		}
	}
}

// summarize aggregates per-page results into the scan-level summary
// committed alongside the pages and findings. The score averages only pages
// that scanned without error; a scan where every page errored scores 0.
func summarize(pages []models.Page, findingsByPage map[string][]models.Finding) models.ScanSummary {
	summary := models.ScanSummary{PagesScanned: len(pages)}
	if len(pages) == 0 {
		return summary
	}

	var scoreSum float64
	var successful int
	for _, p := range pages {
		if p.Error != "" {
			continue
		}
		scoreSum += p.Score
		successful++
	}
	if successful > 0 {
		summary.Score = roundTo1Decimal(scoreSum / float64(successful))
	}

	urls := make([]string, 0, len(findingsByPage))
	for url := range findingsByPage {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	for _, url := range urls {
		for _, f := range findingsByPage[url] {
			summary.IssuesByImpact.Add(f.Impact)
			summary.IssuesCount++
		}
	}
	return summary
}

func roundTo1Decimal(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func successfulPageCount(pages []models.Page) int {
	n := 0
	for _, p := range pages {
		if p.Error == "" {
			n++
		}
	}
	return n
}
