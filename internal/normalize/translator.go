// Package normalize converts a rule engine's raw violation structures into
// persistable Findings, resolving each rule id against a two-tier
// translation table and extracting WCAG criteria and level from tag strings.
package normalize

import (
	_ "embed"
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/a11yworks/scanworker/internal/models"
)

//go:embed assets/fallback_translations.json
var fallbackTranslationsJSON []byte

// Translator resolves rule ids to RuleTranslation records and builds
// Findings from raw violations. Lookup order: a loaded primary table, then
// the embedded fallback, then a synthesized record from the violation's own
// help text. translate never returns an empty record.
type Translator struct {
	primary  map[string]models.RuleTranslation
	fallback map[string]models.RuleTranslation
}

// NewTranslator loads the embedded fallback table and an optional primary
// table from path (YAML or JSON, sniffed by extension). An empty path or a
// load failure leaves primary empty; lookups still succeed via fallback or
// synthesis.
func NewTranslator(path string) *Translator {
	t := &Translator{
		fallback: mustLoadFallback(),
		primary:  map[string]models.RuleTranslation{},
	}
	if path == "" {
		return t
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("rule translation table unreadable, using embedded fallback only")
		return t
	}

	var table models.TranslationTable
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(data, &table)
	} else {
		err = json.Unmarshal(data, &table)
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("rule translation table unparsable, using embedded fallback only")
		return t
	}
	t.primary = table.Rules
	return t
}

func mustLoadFallback() map[string]models.RuleTranslation {
	var table models.TranslationTable
	if err := json.Unmarshal(fallbackTranslationsJSON, &table); err != nil {
		// The embedded asset is part of the binary; a parse failure here is a
		// build defect, not a runtime condition to recover from gracefully.
		panic("normalize: embedded fallback translation table failed to parse: " + err.Error())
	}
	return table.Rules
}

// Translate resolves ruleId to a RuleTranslation, falling back through the
// primary table, the embedded table, and finally a synthesized record built
// from the violation's own help/description/tags.
func (t *Translator) Translate(ruleID, help, description string, tags []string) models.RuleTranslation {
	if tr, ok := t.primary[ruleID]; ok {
		return tr
	}
	if tr, ok := t.fallback[ruleID]; ok {
		return tr
	}
	return synthesize(ruleID, help, description, tags)
}

func synthesize(ruleID, help, description string, tags []string) models.RuleTranslation {
	title := help
	if title == "" {
		title = ruleID
	}
	return models.RuleTranslation{
		RuleID:                ruleID,
		WCAGCriteria:          ExtractWCAGCriteria(tags),
		WCAGLevel:             ExtractWCAGLevel(tags),
		TitleLocalized:        title,
		DescriptionLocalized:  description,
		FixLocalized:          "Review the flagged element against: " + title,
	}
}

// wcagTagPattern matches success-criterion tags, wholly digits after the
// "wcag" prefix (e.g. "wcag111", "wcag143"). Conformance-level tags like
// "wcag2aa" or "wcag21aa" end in a letter and never match this pattern; they
// are classified separately by wcagLevelTagPattern.
var wcagTagPattern = regexp.MustCompile(`^wcag(\d{2,3})$`)

// wcagLevelTagPattern matches conformance-level tags (e.g. "wcag2a",
// "wcag2aa", "wcag21aaa"), disjoint from wcagTagPattern by requiring a
// trailing a/aa/aaa letter group that criterion tags never carry.
var wcagLevelTagPattern = regexp.MustCompile(`^wcag\d{1,2}(a|aa|aaa)$`)

// ExtractWCAGCriteria maps tags like "wcag111" or "wcag143" into ordered,
// de-duplicated "N.N" / "N.N.N" criteria strings, preserving first-seen
// order.
func ExtractWCAGCriteria(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tag := range tags {
		m := wcagTagPattern.FindStringSubmatch(strings.ToLower(tag))
		if m == nil {
			continue
		}
		digits := m[1]
		criterion := digits[:1] + "." + digits[1:2]
		if len(digits) == 3 {
			criterion += "." + digits[2:3]
		}
		if !seen[criterion] {
			seen[criterion] = true
			out = append(out, criterion)
		}
	}
	return out
}

// ExtractWCAGLevel derives a WCAGLevel from conformance-level tags only:
// AAA if any wcag*aaa tag is present, else AA if any wcag*aa tag is
// present, else A.
func ExtractWCAGLevel(tags []string) models.WCAGLevel {
	level := models.WCAGLevelA
	for _, tag := range tags {
		m := wcagLevelTagPattern.FindStringSubmatch(strings.ToLower(tag))
		if m == nil {
			continue
		}
		switch m[1] {
		case "aaa":
			return models.WCAGLevelAAA
		case "aa":
			level = models.StrongerWCAGLevel(level, models.WCAGLevelAA)
		}
	}
	return level
}

// BuildFindings converts raw violations into Findings, emitting one Finding
// per affected node with the violation's rule-level metadata attached to
// each.
func (t *Translator) BuildFindings(violations []models.RawViolation, pageURL string) []models.Finding {
	var findings []models.Finding
	for _, v := range violations {
		tr := t.Translate(v.RuleID, v.Help, v.Description, v.Tags)
		impact := models.Impact(v.Impact)
		if impact == "" {
			impact = models.ImpactModerate
		}
		for _, node := range v.Nodes {
			findings = append(findings, models.Finding{
				RuleID:                 v.RuleID,
				Impact:                 impact,
				WCAGCriteria:           tr.WCAGCriteria,
				WCAGLevel:              tr.WCAGLevel,
				RegulatoryRef:          tr.RegulatoryReference,
				TitleLocalized:         tr.TitleLocalized,
				DescriptionLocalized:   tr.DescriptionLocalized,
				FixSuggestionLocalized: tr.FixLocalized,
				ElementSelector:        strings.Join(node.Target, " > "),
				ElementHTML:            node.HTML,
				HelpURL:                v.HelpURL,
				PageURL:                pageURL,
			})
		}
	}
	return findings
}
