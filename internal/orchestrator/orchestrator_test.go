package orchestrator

import (
	"testing"

	"github.com/a11yworks/scanworker/internal/models"
)

func TestSummarize_EmptyPages(t *testing.T) {
	summary := summarize(nil, nil)
	if summary.PagesScanned != 0 || summary.Score != 0 {
		t.Errorf("expected zero summary for no pages, got %+v", summary)
	}
}

func TestSummarize_AveragesScoreAndCountsImpacts(t *testing.T) {
	pages := []models.Page{
		{URL: "https://a.example/", Score: 80},
		{URL: "https://a.example/b", Score: 100},
	}
	findings := map[string][]models.Finding{
		"https://a.example/":  {{Impact: models.ImpactCritical}, {Impact: models.ImpactMinor}},
		"https://a.example/b": {{Impact: models.ImpactModerate}},
	}

	summary := summarize(pages, findings)
	if summary.Score != 90 {
		t.Errorf("expected averaged score 90, got %v", summary.Score)
	}
	if summary.IssuesCount != 3 {
		t.Errorf("expected 3 total issues, got %d", summary.IssuesCount)
	}
	if summary.IssuesByImpact.Critical != 1 || summary.IssuesByImpact.Minor != 1 || summary.IssuesByImpact.Moderate != 1 {
		t.Errorf("unexpected impact breakdown: %+v", summary.IssuesByImpact)
	}
}

func TestSummarize_ExcludesErroredPagesFromScore(t *testing.T) {
	pages := []models.Page{
		{URL: "https://a.example/", Score: 80},
		{URL: "https://a.example/b", Score: 0, Error: "browser_error: timeout"},
	}
	summary := summarize(pages, nil)
	if summary.Score != 80 {
		t.Errorf("expected errored page excluded from average, got score %v", summary.Score)
	}
	if summary.PagesScanned != 2 {
		t.Errorf("expected PagesScanned to count all attempted pages, got %d", summary.PagesScanned)
	}
}

func TestSummarize_AllPagesErroredScoresZero(t *testing.T) {
	pages := []models.Page{
		{URL: "https://a.example/", Error: "browser_error: timeout"},
		{URL: "https://a.example/b", Error: "browser_error: timeout"},
	}
	summary := summarize(pages, nil)
	if summary.Score != 0 {
		t.Errorf("expected score 0 when every page errored, got %v", summary.Score)
	}
}

func TestSuccessfulPageCount(t *testing.T) {
	pages := []models.Page{
		{URL: "https://a.example/"},
		{URL: "https://a.example/b", Error: "browser_error: timeout"},
	}
	if got := successfulPageCount(pages); got != 1 {
		t.Errorf("expected 1 successful page, got %d", got)
	}
}

func TestRoundTo1Decimal(t *testing.T) {
	cases := map[float64]float64{
		66.666: 66.7,
		100.0:  100.0,
		0.04:   0.0,
	}
	for in, want := range cases {
		if got := roundTo1Decimal(in); got != want {
			t.Errorf("roundTo1Decimal(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestOrchestrator_CancelIsCooperative(t *testing.T) {
	o := &Orchestrator{}
	if o.cancelled.Load() {
		t.Fatal("expected fresh orchestrator to not be cancelled")
	}
	o.Cancel()
	if !o.cancelled.Load() {
		t.Fatal("expected Cancel to set the cancelled flag")
	}
}
