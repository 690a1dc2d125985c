// Package quality implements the quality gate: a pure evaluation of a draft
// against its template rule set. The gate collects every violation rather
// than short-circuiting, and runs at most twice per pipeline (pass 1, then
// pass 2 after the single repair).
package quality

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/report"
	"github.com/ternarybob/scriba/internal/templates"
)

// Evaluate checks the draft against the rule set. Rules run in order:
// header presence/non-emptiness, per-section word minimums, then required
// terms (per-section and global). Violations preserve evaluation order.
func Evaluate(reportText string, sections []models.Section, rules *templates.RuleSet, passNumber int) *models.QualityResult {
	var violations []models.Violation

	missing := make(map[string]bool)
	for _, h := range report.FindMissingHeaders(reportText, rules.WriterFormat) {
		missing[h] = true
		violations = append(violations, models.Violation{
			Section: h,
			Kind:    models.ViolationMissingSection,
			Detail:  fmt.Sprintf("Missing required header: %s:", h),
		})
	}

	bodies := make(map[string]string, len(sections))
	for _, s := range sections {
		bodies[s.Name] = strings.TrimSpace(s.Body)
	}

	for _, h := range rules.WriterFormat {
		if missing[h] {
			continue
		}
		if bodies[h] == "" {
			violations = append(violations, models.Violation{
				Section: h,
				Kind:    models.ViolationEmptySection,
				Detail:  fmt.Sprintf("Section '%s' is present but empty.", h),
			})
		}
	}

	for _, h := range rules.WriterFormat {
		minWords, ok := rules.Quality.MinWords[h]
		if !ok {
			continue
		}
		body := bodies[h]
		if body == "" {
			continue // Already reported as missing or empty
		}
		if n := report.WordCount(body); n < minWords {
			violations = append(violations, models.Violation{
				Section: h,
				Kind:    models.ViolationTooShort,
				Detail:  fmt.Sprintf("Section '%s' is too short (%d words, expected >= %d).", h, n, minWords),
			})
		}
	}

	for _, h := range rules.WriterFormat {
		terms, ok := rules.Quality.RequiredTermsBySection[h]
		if !ok || len(terms) == 0 {
			continue
		}
		body := strings.ToLower(bodies[h])
		if body == "" {
			continue
		}
		found := false
		for _, t := range terms {
			if strings.Contains(body, strings.ToLower(t)) {
				found = true
				break
			}
		}
		if !found {
			violations = append(violations, models.Violation{
				Section: h,
				Kind:    models.ViolationMissingRequiredTerm,
				Detail:  fmt.Sprintf("Section '%s' should mention at least one of: %s.", h, strings.Join(terms, ", ")),
			})
		}
	}

	textLower := strings.ToLower(reportText)
	for _, t := range rules.Quality.RequiredGlobalTerms {
		if !strings.Contains(textLower, strings.ToLower(t)) {
			violations = append(violations, models.Violation{
				Section: "*",
				Kind:    models.ViolationMissingRequiredTerm,
				Detail:  fmt.Sprintf("Document should mention: %s", t),
			})
		}
	}

	return &models.QualityResult{
		Passed:     len(violations) == 0,
		Violations: violations,
		PassNumber: passNumber,
	}
}
