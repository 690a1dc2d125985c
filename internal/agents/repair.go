// -----------------------------------------------------------------------
// Repair agent - one targeted rewrite pass driven by gate violations
// -----------------------------------------------------------------------

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/quality"
	"github.com/ternarybob/scriba/internal/report"
	"github.com/ternarybob/scriba/internal/templates"
)

// RepairAgent rewrites a failing draft. It reuses the writer prompt with the
// violation list appended as fix instructions, so the repaired draft keeps
// the same voice and structure as the original.
type RepairAgent struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ interfaces.Repairer = (*RepairAgent)(nil)

func NewRepairAgent(llm interfaces.LLMService, logger arbor.ILogger) *RepairAgent {
	return &RepairAgent{llm: llm, logger: logger}
}

// Repair regenerates the full draft with explicit fix instructions for the
// reported violations. Sections carry the repaired origin.
func (a *RepairAgent) Repair(ctx context.Context, inputs interfaces.StageInputs, rules *templates.RuleSet,
	notes *models.ResearchNotes, data *models.DataSummary,
	draft *models.WriterDraft, violations []models.Violation) (*models.WriterDraft, error) {

	if len(violations) == 0 {
		return draft, nil
	}

	fixInstructions := quality.BuildRepairInstructions(violations, rules)
	extra := strings.TrimSpace(inputs.ExtraInstructions)
	if extra != "" {
		extra += "\n\n"
	}
	extra += fixInstructions

	var currentDraft string
	if draft != nil {
		currentDraft = draft.ReportText
	}
	user := buildWriterUser(notes, data, extra) + fmt.Sprintf(`

CURRENT DRAFT (rewrite this, fixing the listed problems):
%s`, currentDraft)

	reportText, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: buildWriterSystem(rules)},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("repair generation failed: %w", err)
	}

	a.logger.Info().
		Str("job_id", inputs.JobID).
		Str("template", rules.Key).
		Int("violations", len(violations)).
		Msg("Repair pass completed")

	return &models.WriterDraft{
		ReportText: reportText,
		Sections:   report.SplitByHeaders(reportText, rules.WriterFormat, models.OriginRepaired),
	}, nil
}
