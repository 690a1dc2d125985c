// -----------------------------------------------------------------------
// Research agent - extracts structured theory notes from the manual text
// -----------------------------------------------------------------------

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

const researchSystemPrompt = `You extract and summarize theory/notes from the provided manual text.

Rules:
- Only use what the user provided in manual_text.
- If information is missing, list it under "Missing Info / Clarifications Needed".
- Keep it structured and detailed.
- Preserve broad topic coverage from the source (do not collapse many topics into a few bullets).
- Prefer specific, content-rich bullets over generic summaries.

Return format:
Key Concepts:
Variables & Units:
Equations/Models:
Procedure Requirements:
Assumptions (explicitly stated in manual):
Missing Info / Clarifications Needed:
`

// ResearchAgent produces the theory extract that seeds every later stage.
type ResearchAgent struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ interfaces.Researcher = (*ResearchAgent)(nil)

func NewResearchAgent(llm interfaces.LLMService, logger arbor.ILogger) *ResearchAgent {
	return &ResearchAgent{llm: llm, logger: logger}
}

// Research invokes the model and parses the structured extract into fact
// lists. Parsing is lenient: unrecognized lines are absorbed into the
// current block so minor format drift never fails the stage.
func (a *ResearchAgent) Research(ctx context.Context, inputs interfaces.StageInputs) (*models.ResearchNotes, error) {
	user := fmt.Sprintf(`GOAL:
%s

MANUAL / NOTES TEXT:
%s

Extract the structured theory now.`, strings.TrimSpace(inputs.Goal), strings.TrimSpace(inputs.ManualText))

	theoryText, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: researchSystemPrompt},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("research generation failed: %w", err)
	}

	a.logger.Debug().
		Str("job_id", inputs.JobID).
		Int("theory_length", len(theoryText)).
		Msg("Research extract generated")

	return &models.ResearchNotes{
		TheoryText: theoryText,
		Facts:      parseResearchFacts(theoryText),
	}, nil
}

// factHeaders maps extract headers to their fact list, in document order.
var factHeaders = []struct {
	header string
	assign func(*models.ResearchFacts, []string)
}{
	{"Key Concepts:", func(f *models.ResearchFacts, v []string) { f.KeyConcepts = v }},
	{"Variables & Units:", func(f *models.ResearchFacts, v []string) { f.VariablesUnits = v }},
	{"Equations/Models:", func(f *models.ResearchFacts, v []string) { f.EquationsModels = v }},
	{"Procedure Requirements:", func(f *models.ResearchFacts, v []string) { f.ProcedureRequirements = v }},
	{"Assumptions (explicitly stated in manual):", func(f *models.ResearchFacts, v []string) { f.Assumptions = v }},
	{"Missing Info / Clarifications Needed:", func(f *models.ResearchFacts, v []string) { f.MissingInfo = v }},
}

func parseResearchFacts(theoryText string) models.ResearchFacts {
	blocks := make([]strings.Builder, len(factHeaders))
	current := -1

	for _, line := range strings.Split(theoryText, "\n") {
		stripped := strings.TrimSpace(line)
		hit := -1
		for i, fh := range factHeaders {
			if strings.EqualFold(stripped, fh.header) {
				hit = i
				break
			}
		}
		if hit >= 0 {
			current = hit
			continue
		}
		if current >= 0 {
			blocks[current].WriteString(line)
			blocks[current].WriteString("\n")
		}
	}

	var facts models.ResearchFacts
	for i, fh := range factHeaders {
		fh.assign(&facts, splitFactList(blocks[i].String()))
	}
	return facts
}

// splitFactList turns a bullet block into individual items. Bullets may pack
// several facts on one line separated by semicolons.
func splitFactList(block string) []string {
	var items []string
	for _, raw := range strings.Split(block, "\n") {
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "-"))
		if s == "" {
			continue
		}
		for _, part := range strings.Split(s, ";") {
			if p := strings.TrimSpace(part); p != "" {
				items = append(items, p)
			}
		}
	}
	return items
}
