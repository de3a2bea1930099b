package normalize

import (
	"testing"

	"github.com/a11yworks/scanworker/internal/models"
)

func TestExtractWCAGCriteria_OrderPreservedAndDeduped(t *testing.T) {
	tags := []string{"wcag2a", "wcag111", "best-practice", "wcag111", "wcag143"}
	got := ExtractWCAGCriteria(tags)
	want := []string{"1.1.1", "1.4.3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractWCAGLevel(t *testing.T) {
	cases := []struct {
		tags []string
		want models.WCAGLevel
	}{
		{[]string{"wcag111"}, models.WCAGLevelA},
		{[]string{"wcag111", "wcag2aa"}, models.WCAGLevelAA},
		{[]string{"wcag111", "wcag2aa", "wcag2aaa"}, models.WCAGLevelAAA},
		{[]string{"wcag111", "wcag21aa"}, models.WCAGLevelAA},
	}
	for _, c := range cases {
		if got := ExtractWCAGLevel(c.tags); got != c.want {
			t.Errorf("ExtractWCAGLevel(%v) = %v, want %v", c.tags, got, c.want)
		}
	}
}

// TestExtractWCAGCriteria_IgnoresTwoDigitVersionConformanceTags guards
// against treating a two-digit-version conformance-level tag (e.g.
// "wcag21aa", part of the default tagSet alongside wcag2a/wcag2aa/wcag21a)
// as a success criterion: it must never be parsed into a bogus "2.1"
// criterion.
func TestExtractWCAGCriteria_IgnoresTwoDigitVersionConformanceTags(t *testing.T) {
	tags := []string{"wcag2a", "wcag2aa", "wcag21a", "wcag21aa", "best-practice", "wcag111"}
	got := ExtractWCAGCriteria(tags)
	want := []string{"1.1.1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTranslate_FallbackTableHit(t *testing.T) {
	tr := NewTranslator("")
	rt := tr.Translate("image-alt", "some help", "some description", []string{"wcag111"})
	if rt.TitleLocalized == "" || rt.RuleID != "image-alt" {
		t.Fatalf("expected fallback table hit for image-alt, got %#v", rt)
	}
}

func TestTranslate_SynthesizesUnknownRule(t *testing.T) {
	tr := NewTranslator("")
	rt := tr.Translate("totally-unknown-rule", "Some help text", "Some description", []string{"wcag2aa", "wcag143"})
	if rt.TitleLocalized != "Some help text" {
		t.Errorf("expected synthesized title from help text, got %q", rt.TitleLocalized)
	}
	if rt.WCAGLevel != models.WCAGLevelAA {
		t.Errorf("expected AA level from tags, got %v", rt.WCAGLevel)
	}
	if len(rt.WCAGCriteria) != 1 || rt.WCAGCriteria[0] != "1.4.3" {
		t.Errorf("expected criteria [1.4.3], got %v", rt.WCAGCriteria)
	}
}

func TestBuildFindings_OneFindingPerNode(t *testing.T) {
	tr := NewTranslator("")
	violations := []models.RawViolation{
		{
			RuleID: "image-alt",
			Impact: "critical",
			Tags:   []string{"wcag111"},
			Help:   "Images must have alternate text",
			Nodes: []models.RawNode{
				{Target: []string{"body", "img:nth-child(1)"}, HTML: "<img>"},
				{Target: []string{"body", "img:nth-child(2)"}, HTML: "<img>"},
			},
		},
	}
	findings := tr.BuildFindings(violations, "https://example.com")
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings (one per node), got %d", len(findings))
	}
	if findings[0].ElementSelector != "body > img:nth-child(1)" {
		t.Errorf("unexpected selector: %q", findings[0].ElementSelector)
	}
	if findings[0].PageURL != "https://example.com" {
		t.Errorf("expected page url propagated, got %q", findings[0].PageURL)
	}
}

func TestBuildFindings_DefaultsMissingImpactToModerate(t *testing.T) {
	tr := NewTranslator("")
	violations := []models.RawViolation{
		{RuleID: "x", Nodes: []models.RawNode{{Target: []string{"a"}}}},
	}
	findings := tr.BuildFindings(violations, "https://example.com")
	if findings[0].Impact != models.ImpactModerate {
		t.Errorf("expected default impact moderate, got %v", findings[0].Impact)
	}
}
