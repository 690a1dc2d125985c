package quality

import (
	"strings"
	"testing"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/report"
	"github.com/ternarybob/scriba/internal/templates"
)

func testRules() *templates.RuleSet {
	return &templates.RuleSet{
		Key:          "test_report",
		WriterFormat: []string{"Objective", "Results", "Discussion"},
		Quality: templates.QualityRules{
			MinWords: map[string]int{
				"Discussion": 10,
			},
			RequiredTermsBySection: map[string][]string{
				"Results": {"mean", "max"},
			},
			RequiredGlobalTerms: []string{"dataset"},
		},
	}
}

func evaluateText(text string, rules *templates.RuleSet, pass int) *models.QualityResult {
	sections := report.SplitByHeaders(text, rules.WriterFormat, models.OriginGenerated)
	return Evaluate(text, sections, rules, pass)
}

func TestEvaluatePassingDraft(t *testing.T) {
	text := strings.Join([]string{
		"Objective:",
		"Measure heating behaviour across the dataset.",
		"",
		"Results:",
		"The mean was 42.1 and the max was 97.3.",
		"",
		"Discussion:",
		"The measured values track the expected curve closely across every run we recorded.",
	}, "\n")

	result := evaluateText(text, testRules(), 1)

	if !result.Passed {
		t.Fatalf("Expected draft to pass, got violations: %+v", result.Violations)
	}
	if result.PassNumber != 1 {
		t.Errorf("PassNumber = %d, want 1", result.PassNumber)
	}
}

func TestEvaluateMissingSection(t *testing.T) {
	text := "Objective:\nMeasure the dataset.\n\nDiscussion:\nLong enough discussion text with at least ten words in it total."

	result := evaluateText(text, testRules(), 1)

	if result.Passed {
		t.Fatal("Expected draft to fail")
	}
	found := false
	for _, v := range result.Violations {
		if v.Kind == models.ViolationMissingSection && v.Section == "Results" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected missing-section violation for Results, got %+v", result.Violations)
	}
}

func TestEvaluateEmptySection(t *testing.T) {
	text := "Objective:\n\nResults:\nmean and max are in the dataset.\n\nDiscussion:\nA discussion body with comfortably more than ten words in total here."

	result := evaluateText(text, testRules(), 1)

	for _, v := range result.Violations {
		if v.Kind == models.ViolationEmptySection && v.Section == "Objective" {
			return
		}
	}
	t.Errorf("Expected empty-section violation for Objective, got %+v", result.Violations)
}

func TestEvaluateTooShort(t *testing.T) {
	text := "Objective:\nMeasure the dataset.\n\nResults:\nmean and max reported.\n\nDiscussion:\nToo short."

	result := evaluateText(text, testRules(), 2)

	if result.Passed {
		t.Fatal("Expected draft to fail")
	}
	if result.PassNumber != 2 {
		t.Errorf("PassNumber = %d, want 2", result.PassNumber)
	}
	for _, v := range result.Violations {
		if v.Kind == models.ViolationTooShort && v.Section == "Discussion" {
			return
		}
	}
	t.Errorf("Expected too-short violation for Discussion, got %+v", result.Violations)
}

func TestEvaluateRequiredTerms(t *testing.T) {
	// Results body mentions neither "mean" nor "max"; the word "dataset" is
	// absent globally.
	text := "Objective:\nMeasure things.\n\nResults:\nNumbers were recorded.\n\nDiscussion:\nA discussion body with comfortably more than ten words in total here."

	result := evaluateText(text, testRules(), 1)

	var sectionTerm, globalTerm bool
	for _, v := range result.Violations {
		if v.Kind == models.ViolationMissingRequiredTerm && v.Section == "Results" {
			sectionTerm = true
		}
		if v.Kind == models.ViolationMissingRequiredTerm && v.Section == "*" {
			globalTerm = true
		}
	}
	if !sectionTerm {
		t.Errorf("Expected section-term violation for Results, got %+v", result.Violations)
	}
	if !globalTerm {
		t.Errorf("Expected global-term violation, got %+v", result.Violations)
	}
}

func TestEvaluateRequiredTermsCaseInsensitive(t *testing.T) {
	text := "Objective:\nThe dataset was measured.\n\nResults:\nThe MEAN was fine.\n\nDiscussion:\nA discussion body with comfortably more than ten words in total here."

	result := evaluateText(text, testRules(), 1)
	for _, v := range result.Violations {
		if v.Section == "Results" {
			t.Errorf("Term match should be case-insensitive, got %+v", v)
		}
	}
}

func TestEvaluateEmptySectionSkipsWordAndTermRules(t *testing.T) {
	// An empty section is reported once, not additionally as too-short or
	// missing terms.
	rules := testRules()
	text := "Objective:\nMeasure the dataset.\n\nResults:\n\nDiscussion:"

	result := evaluateText(text, rules, 1)

	counts := map[string]int{}
	for _, v := range result.Violations {
		counts[v.Section]++
	}
	if counts["Results"] != 1 {
		t.Errorf("Expected exactly 1 violation for empty Results, got %d", counts["Results"])
	}
	if counts["Discussion"] != 1 {
		t.Errorf("Expected exactly 1 violation for empty Discussion, got %d", counts["Discussion"])
	}
}

func TestBuildRepairInstructions(t *testing.T) {
	rules := testRules()
	violations := []models.Violation{
		{Section: "Results", Kind: models.ViolationTooShort, Detail: "Section 'Results' is too short (3 words, expected >= 10)."},
	}

	instructions := BuildRepairInstructions(violations, rules)

	if !strings.Contains(instructions, "Objective:, Results:, Discussion:") {
		t.Errorf("Instructions should list required headers, got:\n%s", instructions)
	}
	if !strings.Contains(instructions, "- Section 'Results' is too short") {
		t.Errorf("Instructions should echo violation details, got:\n%s", instructions)
	}
}

func TestBuildRepairInstructionsCapsViolations(t *testing.T) {
	rules := testRules()
	var violations []models.Violation
	for i := 0; i < 30; i++ {
		violations = append(violations, models.Violation{
			Section: "Results",
			Kind:    models.ViolationTooShort,
			Detail:  "detail",
		})
	}

	instructions := BuildRepairInstructions(violations, rules)
	if got := strings.Count(instructions, "- detail"); got != maxPromptedViolations {
		t.Errorf("Expected %d echoed violations, got %d", maxPromptedViolations, got)
	}
}
