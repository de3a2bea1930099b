// Package persistence commits scan lifecycle transitions and final results
// to PostgreSQL. Every write is safe to redeliver: setStatus and setProgress
// are idempotent by construction, and commitScan both checks the scan's
// current status before writing and carries ON CONFLICT upserts as a second
// line of defense against duplicate delivery.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/a11yworks/scanworker/internal/models"
)

// Gateway owns the connection pool and all scan-related SQL.
type Gateway struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and verifies reachability with a ping.
func New(ctx context.Context, databaseURL string) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("persistence: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: ping database: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// Ping is used by the readiness probe.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// SetStatus transitions a scan's status, stamping startedAt on the first
// non-queued transition and completedAt on any terminal status.
func (g *Gateway) SetStatus(ctx context.Context, scanID, status, errorMessage string) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE scans
		SET status = $2,
		    error_message = NULLIF($3, ''),
		    started_at = CASE WHEN started_at IS NULL AND $2 <> 'queued' THEN now() ELSE started_at END,
		    completed_at = CASE WHEN $2 IN ('completed','failed','cancelled') THEN now() ELSE completed_at END
		WHERE id = $1
	`, scanID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("persistence: set status: %w", err)
	}
	return nil
}

// SetProgress records the current crawl/scan stage. Concurrent progress
// messages are tolerated by last-writer-wins; there is no ordering
// guarantee across redelivered or reordered progress events beyond that.
func (g *Gateway) SetProgress(ctx context.Context, scanID, stage string, current, total int) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE scans
		SET progress_stage = $2, progress_current = $3, progress_total = $4
		WHERE id = $1
	`, scanID, stage, current, total)
	if err != nil {
		return fmt.Errorf("persistence: set progress: %w", err)
	}
	return nil
}

// MarkFailed terminally fails a scan with no partial page/finding inserts.
func (g *Gateway) MarkFailed(ctx context.Context, scanID, errorMessage string) error {
	return g.SetStatus(ctx, scanID, string(models.ScanStatusFailed), errorMessage)
}

// currentStatus reads a scan's status for the idempotence check in
// CommitScan: a scan already in a terminal status never gets a second
// commit, guarding against at-least-once queue redelivery after a commit
// that succeeded but whose ack was lost.
func (g *Gateway) currentStatus(ctx context.Context, tx pgx.Tx, scanID string) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM scans WHERE id = $1 FOR UPDATE`, scanID).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// CommitScan writes the final scan summary and all page/finding rows in one
// transaction. A scan already in a terminal status is a no-op: this is the
// primary idempotence guard. ON CONFLICT upserts on (scan_id, url) and
// (page_id, rule_id, element_selector) back that guard up in case a prior
// attempt partially committed before crashing.
func (g *Gateway) CommitScan(ctx context.Context, scanID string, pages []models.Page, findingsByPage map[string][]models.Finding, summary models.ScanSummary) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persistence: begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Warn().Err(rbErr).Str("scanId", scanID).Msg("rollback after commitScan failure encountered an error")
		}
	}()

	status, err := g.currentStatus(ctx, tx, scanID)
	if err != nil {
		return fmt.Errorf("persistence: read current status: %w", err)
	}
	if models.ScanStatus(status).IsTerminal() {
		log.Info().Str("scanId", scanID).Str("status", status).Msg("commitScan skipped, scan already terminal")
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE scans
		SET status = 'completed', completed_at = now(), score = $2,
		    issues_count = $3, issues_critical = $4, issues_serious = $5,
		    issues_moderate = $6, issues_minor = $7,
		    progress_stage = 'complete', progress_current = progress_total
		WHERE id = $1
	`, scanID, summary.Score, summary.IssuesCount,
		summary.IssuesByImpact.Critical, summary.IssuesByImpact.Serious,
		summary.IssuesByImpact.Moderate, summary.IssuesByImpact.Minor)
	if err != nil {
		return fmt.Errorf("persistence: update scan summary: %w", err)
	}

	for _, page := range pages {
		pageID := page.ID
		if pageID == "" {
			pageID = uuid.NewString()
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO pages (id, scan_id, url, title, depth, score, issues_count,
			                    passed_rules, failed_rules, incomplete_rules,
			                    load_time_ms, scan_time_ms, scanned_at, error)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (scan_id, url) DO UPDATE SET
				title = EXCLUDED.title, depth = EXCLUDED.depth, score = EXCLUDED.score,
				issues_count = EXCLUDED.issues_count, passed_rules = EXCLUDED.passed_rules,
				failed_rules = EXCLUDED.failed_rules, incomplete_rules = EXCLUDED.incomplete_rules,
				load_time_ms = EXCLUDED.load_time_ms, scan_time_ms = EXCLUDED.scan_time_ms,
				scanned_at = EXCLUDED.scanned_at, error = EXCLUDED.error
			RETURNING id
		`, pageID, scanID, page.URL, page.Title, page.Depth, page.Score, page.IssuesCount,
			page.PassedRules, page.FailedRules, page.IncompleteRules,
			page.LoadTimeMs, page.ScanTimeMs, page.ScannedAt, nullIfEmpty(page.Error)).Scan(&pageID)
		if err != nil {
			return fmt.Errorf("persistence: upsert page %s: %w", page.URL, err)
		}

		for _, finding := range findingsByPage[page.URL] {
			findingID := finding.ID
			if findingID == "" {
				findingID = uuid.NewString()
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO issues (id, page_id, rule_id, impact, wcag_criteria, wcag_level,
				                    regulatory_reference, title_localized, description_localized,
				                    fix_localized, element_selector, element_html, help_url, screenshot_path)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
				ON CONFLICT (page_id, rule_id, element_selector) DO UPDATE SET
					impact = EXCLUDED.impact, wcag_criteria = EXCLUDED.wcag_criteria,
					wcag_level = EXCLUDED.wcag_level, regulatory_reference = EXCLUDED.regulatory_reference,
					title_localized = EXCLUDED.title_localized, description_localized = EXCLUDED.description_localized,
					fix_localized = EXCLUDED.fix_localized, element_html = EXCLUDED.element_html,
					help_url = EXCLUDED.help_url, screenshot_path = EXCLUDED.screenshot_path
			`, findingID, pageID, finding.RuleID, string(finding.Impact), finding.WCAGCriteria, string(finding.WCAGLevel),
				nullIfEmpty(finding.RegulatoryRef), finding.TitleLocalized, finding.DescriptionLocalized,
				finding.FixSuggestionLocalized, nullIfEmpty(finding.ElementSelector), nullIfEmpty(finding.ElementHTML),
				nullIfEmpty(finding.HelpURL), nullIfEmpty(finding.ScreenshotPath))
			if err != nil {
				return fmt.Errorf("persistence: insert finding %s on page %s: %w", finding.RuleID, page.URL, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("persistence: commit transaction: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
