package ruleengine

import (
	"testing"

	"github.com/a11yworks/scanworker/internal/models"
)

func TestComputeScore_NoRulesIsPerfectScore(t *testing.T) {
	if got := computeScore(&models.RawEngineResult{}); got != 100 {
		t.Errorf("expected 100 for zero rules, got %v", got)
	}
}

func TestComputeScore_PenalizesWeightedViolations(t *testing.T) {
	raw := &models.RawEngineResult{
		Passes: []models.RawViolation{{}, {}},
		Violations: []models.RawViolation{
			{Impact: "critical", Nodes: []models.RawNode{{}}},
		},
	}
	got := computeScore(raw)
	// totalRules=3, weighted=3*1=3, penalty=(3/(3*3))*100=33.3
	want := 66.7
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeScore_NeverNegative(t *testing.T) {
	raw := &models.RawEngineResult{
		Violations: []models.RawViolation{
			{Impact: "critical", Nodes: []models.RawNode{{}, {}, {}, {}, {}}},
		},
	}
	got := computeScore(raw)
	if got < 0 {
		t.Errorf("score must never go negative, got %v", got)
	}
}

func TestNew_DefaultsToStubEngineWhenEmpty(t *testing.T) {
	r := New("", nil)
	if r.EngineScript == "" {
		t.Fatal("expected embedded stub engine script to be used as default")
	}
}

func TestNew_PreservesConfiguredEngineScript(t *testing.T) {
	r := New("return {violations:[],passes:[],incomplete:[],inapplicable:[]};", nil)
	if r.EngineScript != "return {violations:[],passes:[],incomplete:[],inapplicable:[]};" {
		t.Errorf("expected configured script to be preserved, got %q", r.EngineScript)
	}
}
