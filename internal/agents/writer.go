// -----------------------------------------------------------------------
// Writer agent - produces the full draft from accumulated stage outputs
// -----------------------------------------------------------------------

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/report"
	"github.com/ternarybob/scriba/internal/templates"
)

// WriterAgent turns theory notes and the data summary into the full draft,
// parsed into sections against the template's required headers.
type WriterAgent struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ interfaces.Writer = (*WriterAgent)(nil)

func NewWriterAgent(llm interfaces.LLMService, logger arbor.ILogger) *WriterAgent {
	return &WriterAgent{llm: llm, logger: logger}
}

// buildWriterSystem assembles the system prompt. The STRICT FORMAT block
// lists the exact headers the draft must contain; the gate checks for these
// same headers afterwards.
func buildWriterSystem(rules *templates.RuleSet) string {
	var formatNote string
	if len(rules.WriterFormat) > 0 {
		headerLines := make([]string, 0, len(rules.WriterFormat))
		for _, h := range rules.WriterFormat {
			headerLines = append(headerLines, h+":")
		}
		formatNote = "STRICT FORMAT (use these exact headers, each on its own line, exactly as written):\n" +
			strings.Join(headerLines, "\n") + "\n"
	} else {
		formatNote = "STRUCTURE: Use clear section headers appropriate for the template.\n"
	}

	var rulesBlock string
	if len(rules.WriterRules) > 0 {
		var b strings.Builder
		b.WriteString("Rules:\n")
		for _, r := range rules.WriterRules {
			b.WriteString("- " + r + "\n")
		}
		rulesBlock = b.String()
	}

	return strings.TrimSpace(fmt.Sprintf(`You are a helpful, high-quality writer producing a submission-ready document.
Write in a clear, natural student tone (not AI-sounding).

Template: %s

%s
%s
General rules:
- Use plain text headers exactly (no bold, no markdown).
- Do not invent facts, equipment models, settings, or numbers not supported by the provided manual_text or data summary.
- If details are missing, label them as assumptions explicitly.
- Keep the writing clean and submission-ready.`, rules.DisplayName, formatNote, rulesBlock))
}

// buildWriterUser assembles the user prompt from the upstream stage outputs.
// Shared with the repair pass, which appends fix instructions to
// extraInstructions and reuses the same structure.
func buildWriterUser(notes *models.ResearchNotes, data *models.DataSummary, extraInstructions string) string {
	var theoryText string
	var facts models.ResearchFacts
	if notes != nil {
		theoryText = notes.TheoryText
		facts = notes.Facts
	}
	factsJSON, _ := json.MarshalIndent(facts, "", "  ")

	dataJSON := []byte("{}")
	var highlights []string
	if data != nil {
		dataJSON, _ = json.MarshalIndent(data, "", "  ")
		highlights = data.Highlights
	}
	highlightsJSON, _ := json.MarshalIndent(highlights, "", "  ")

	return fmt.Sprintf(`THEORY / NOTES EXTRACT:
%s

STRUCTURED RESEARCH FACTS (JSON):
%s

DATA SUMMARY (JSON):
%s

DATA HIGHLIGHTS (JSON):
%s

EXTRA INSTRUCTIONS:
%s

Prefer the structured facts/highlights when available, and use full data summary for supporting detail.
Write the full document now following the required headers exactly.`,
		theoryText, factsJSON, dataJSON, highlightsJSON, extraInstructions)
}

// Write generates the draft and splits it against the required headers.
func (a *WriterAgent) Write(ctx context.Context, inputs interfaces.StageInputs, rules *templates.RuleSet,
	notes *models.ResearchNotes, data *models.DataSummary) (*models.WriterDraft, error) {

	reportText, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: buildWriterSystem(rules)},
		{Role: "user", Content: buildWriterUser(notes, data, inputs.ExtraInstructions)},
	})
	if err != nil {
		return nil, fmt.Errorf("draft generation failed: %w", err)
	}

	sections := report.SplitByHeaders(reportText, rules.WriterFormat, models.OriginGenerated)

	a.logger.Debug().
		Str("job_id", inputs.JobID).
		Str("template", rules.Key).
		Int("report_length", len(reportText)).
		Int("sections", len(sections)).
		Msg("Draft generated")

	return &models.WriterDraft{
		ReportText: reportText,
		Sections:   sections,
	}, nil
}
