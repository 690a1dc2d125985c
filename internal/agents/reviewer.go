// -----------------------------------------------------------------------
// Reviewer agent - feedback only, never rewrites the draft
// -----------------------------------------------------------------------

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/templates"
)

// ReviewerAgent produces reader feedback on a finished draft.
type ReviewerAgent struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ interfaces.Reviewer = (*ReviewerAgent)(nil)

func NewReviewerAgent(llm interfaces.LLMService, logger arbor.ILogger) *ReviewerAgent {
	return &ReviewerAgent{llm: llm, logger: logger}
}

func buildReviewerSystem(rules *templates.RuleSet) string {
	return strings.TrimSpace(fmt.Sprintf(`You are a careful reviewer.

Task:
- Review the report and return concise reviewer feedback for the student.
- Do not rewrite the report itself.
- Do not invent facts or numbers.
- Point out missing information explicitly.
- Keep feedback practical and specific.

Return format (plain text only):
Strengths:
- ...

Issues to fix:
- ...

Suggested edits:
- ...

Template: %s`, rules.DisplayName))
}

// Review returns feedback for the draft. An empty draft is a caller error.
func (a *ReviewerAgent) Review(ctx context.Context, rules *templates.RuleSet, draft *models.WriterDraft) (*models.ReviewNotes, error) {
	if draft == nil || strings.TrimSpace(draft.ReportText) == "" {
		return nil, fmt.Errorf("no report provided to reviewer")
	}

	user := fmt.Sprintf(`REPORT TO REVIEW:
%s

Return reviewer feedback now.`, draft.ReportText)

	feedback, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: buildReviewerSystem(rules)},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("review generation failed: %w", err)
	}

	a.logger.Debug().
		Str("template", rules.Key).
		Int("review_length", len(feedback)).
		Msg("Review feedback generated")

	return &models.ReviewNotes{ReviewText: feedback}, nil
}
