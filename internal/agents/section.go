// -----------------------------------------------------------------------
// Section regenerator - rewrites exactly one section body
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
	"github.com/ternarybob/scriba/internal/templates"
)

const sectionSystemPrompt = `You revise exactly one report section.
Rules:
- Return only the rewritten section body text (no section header).
- Preserve factual consistency with theory/data.
- Do not invent measurements.
- Keep it detailed, clear, and submission-ready.
`

// SectionAgent regenerates a single section body on user request.
type SectionAgent struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ interfaces.SectionRegenerator = (*SectionAgent)(nil)

func NewSectionAgent(llm interfaces.LLMService, logger arbor.ILogger) *SectionAgent {
	return &SectionAgent{llm: llm, logger: logger}
}

// RegenerateSection returns a replacement body for one section. The caller
// splices the body back into the draft; this agent never sees the rest of
// the document.
func (a *SectionAgent) RegenerateSection(ctx context.Context, rules *templates.RuleSet, sectionName string,
	currentBody, theoryText, instructions string, data *models.DataSummary) (string, error) {

	dataJSON := []byte("{}")
	if data != nil {
		dataJSON, _ = json.MarshalIndent(data, "", "  ")
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = "(none)"
	}

	user := fmt.Sprintf(`TEMPLATE: %s
TARGET SECTION: %s

CURRENT SECTION BODY:
%s

THEORY:
%s

DATA SUMMARY (JSON):
%s

ADDITIONAL INSTRUCTIONS:
%s
`, rules.DisplayName, sectionName, currentBody, theoryText, dataJSON, instructions)

	newBody, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: sectionSystemPrompt},
		{Role: "user", Content: user},
	})
	if err != nil {
		return "", fmt.Errorf("section regeneration failed: %w", err)
	}

	newBody = strings.TrimSpace(newBody)
	if newBody == "" {
		return "", fmt.Errorf("model returned empty section content")
	}

	a.logger.Info().
		Str("template", rules.Key).
		Str("section", sectionName).
		Int("body_length", len(newBody)).
		Msg("Section regenerated")

	return newBody, nil
}
