// -----------------------------------------------------------------------
// Diagram agent - suggests figures derived from the data summary
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

// DiagramAgent suggests figures and plots worth adding to a document.
type DiagramAgent struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ interfaces.Diagrammer = (*DiagramAgent)(nil)

func NewDiagramAgent(llm interfaces.LLMService, logger arbor.ILogger) *DiagramAgent {
	return &DiagramAgent{llm: llm, logger: logger}
}

func buildDiagramSystem(rules *templates.RuleSet) string {
	return strings.TrimSpace(fmt.Sprintf(`You suggest helpful figures/plots/diagrams to include in a report.

Template: %s

Rules:
- Suggest 3-5 figures maximum.
- Do NOT invent experimental apparatus details.
- If a CSV/data_summary exists, prioritize plots derived from it (e.g., time-series, histogram, box plot).
- Keep suggestions generic and applicable; do not hardcode numbers from a single dataset.
- Output plain text (no markdown), with clear titles and 1-2 sentences each explaining why it helps.`, rules.DisplayName))
}

// SuggestFigures returns plain-text figure suggestions.
func (a *DiagramAgent) SuggestFigures(ctx context.Context, rules *templates.RuleSet,
	notes *models.ResearchNotes, data *models.DataSummary) (*models.FigureSuggestions, error) {

	var theoryText string
	if notes != nil {
		theoryText = notes.TheoryText
	}
	dataJSON := []byte("{}")
	if data != nil {
		dataJSON, _ = json.MarshalIndent(data, "", "  ")
	}

	user := fmt.Sprintf(`THEORY / NOTES:
%s

DATA SUMMARY (JSON):
%s

Suggest figures now.`, theoryText, dataJSON)

	figuresText, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: buildDiagramSystem(rules)},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("figure suggestion failed: %w", err)
	}

	a.logger.Debug().
		Str("template", rules.Key).
		Int("figures_length", len(figuresText)).
		Msg("Figure suggestions generated")

	return &models.FigureSuggestions{FiguresText: figuresText}, nil
}
