// Package ruleengine injects an accessibility rule engine into a loaded page
// and parses its raw result into a PageScanResult. The engine itself is
// treated as an external black box: this package never re-implements rule
// logic, only plumbing and scoring.
package ruleengine

import (
	_ "embed"
	"encoding/json"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/a11yworks/scanworker/internal/models"
	"github.com/a11yworks/scanworker/internal/normalize"
)

//go:embed assets/stub_engine.js
var stubEngineScript string

// Runner injects a configured engine script and parses its output.
type Runner struct {
	// EngineScript is the full engine source to evaluate in-page (e.g. an
	// axe-core bundle). Empty means fall back to the embedded stub engine.
	EngineScript string
	Translator   *normalize.Translator
}

// New constructs a Runner. An empty engineScript falls back to the embedded
// stub so the worker runs end to end without a real engine configured.
func New(engineScript string, translator *normalize.Translator) *Runner {
	if engineScript == "" {
		engineScript = stubEngineScript
	}
	return &Runner{EngineScript: engineScript, Translator: translator}
}

// Run injects the engine into page, evaluates it with the given config, and
// returns a PageScanResult. Engine errors and timeouts never propagate as Go
// errors: they produce a zero-score result with Error set, per the contract
// that this runner does not throw.
func (r *Runner) Run(page *rod.Page, pageURL string, cfg models.RunnerConfig) models.PageScanResult {
	start := time.Now()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timedPage := page.Timeout(timeout)

	raw, err := r.evaluate(timedPage)
	elapsed := time.Since(start)

	title, _ := page.Eval(`() => document.title`)
	titleStr := ""
	if title != nil {
		titleStr = title.Value.Str()
	}

	if err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("rule engine evaluation failed")
		return models.PageScanResult{
			URL:        pageURL,
			Title:      titleStr,
			ScanTimeMs: int(elapsed.Milliseconds()),
			Score:      0,
			Timestamp:  start,
			Error:      err.Error(),
		}
	}

	findings := r.Translator.BuildFindings(raw.Violations, pageURL)
	score := computeScore(raw)

	return models.PageScanResult{
		URL:               pageURL,
		Title:             titleStr,
		ScanTimeMs:        int(elapsed.Milliseconds()),
		Score:             score,
		Findings:          findings,
		PassedRules:       len(raw.Passes),
		FailedRules:       len(raw.Violations),
		IncompleteRules:   len(raw.Incomplete),
		InapplicableRules: len(raw.Inapplicable),
		Timestamp:         start,
	}
}

func (r *Runner) evaluate(page *rod.Page) (*models.RawEngineResult, error) {
	result, err := page.Evaluate(&rod.EvalOptions{
		JS: "() => { " + r.EngineScript + " }",
	})
	if err != nil {
		return nil, err
	}

	raw := &models.RawEngineResult{}
	if result == nil || result.Value.Nil() {
		return raw, nil
	}
	if err := json.Unmarshal(result.Value.Bytes(), raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// computeScore implements the documented scoring formula: base 100, minus a
// weighted violation penalty normalized by total rule count and the maximum
// per-rule weight.
func computeScore(raw *models.RawEngineResult) float64 {
	totalRules := len(raw.Passes) + len(raw.Violations) + len(raw.Incomplete) + len(raw.Inapplicable)
	if totalRules == 0 {
		return 100
	}

	var weighted float64
	for _, v := range raw.Violations {
		weighted += models.Impact(v.Impact).Weight() * float64(len(v.Nodes))
	}

	score := 100 - (weighted/(float64(totalRules)*3))*100
	if score < 0 {
		score = 0
	}
	return roundTo1Decimal(score)
}

func roundTo1Decimal(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
