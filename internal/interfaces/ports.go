// -----------------------------------------------------------------------
// Content-generation ports consumed by the pipeline orchestrator.
// Each port may fail with a transport/timeout error; the orchestrator
// treats any such failure as a stage failure and never retries beyond
// whatever bounded retry the port performs internally.
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/templates"
)

// StageInputs carries the original submission fields every stage may read
type StageInputs struct {
	JobID             string
	ManualText        string
	Goal              string
	ExtraInstructions string
	CSVPath           string
	PreviewRows       int
}

// Researcher extracts structured theory notes from the manual text
type Researcher interface {
	Research(ctx context.Context, inputs StageInputs) (*models.ResearchNotes, error)
}

// DataSummarizer computes summary metrics over the uploaded CSV
type DataSummarizer interface {
	Summarize(ctx context.Context, inputs StageInputs) (*models.DataSummary, error)
}

// Writer produces the full draft from accumulated stage outputs
type Writer interface {
	Write(ctx context.Context, inputs StageInputs, rules *templates.RuleSet,
		notes *models.ResearchNotes, data *models.DataSummary) (*models.WriterDraft, error)
}

// Reviewer produces reviewer feedback on a draft (optional stage)
type Reviewer interface {
	Review(ctx context.Context, rules *templates.RuleSet, draft *models.WriterDraft) (*models.ReviewNotes, error)
}

// Diagrammer suggests figures derived from the data summary (optional stage)
type Diagrammer interface {
	SuggestFigures(ctx context.Context, rules *templates.RuleSet,
		notes *models.ResearchNotes, data *models.DataSummary) (*models.FigureSuggestions, error)
}

// Repairer rewrites a draft to resolve specific quality violations. Invoked
// at most once per pipeline run, and once more per user-invoked quality fix.
type Repairer interface {
	Repair(ctx context.Context, inputs StageInputs, rules *templates.RuleSet,
		notes *models.ResearchNotes, data *models.DataSummary,
		draft *models.WriterDraft, violations []models.Violation) (*models.WriterDraft, error)
}

// SectionRegenerator rewrites exactly one section body
type SectionRegenerator interface {
	RegenerateSection(ctx context.Context, rules *templates.RuleSet, sectionName string,
		currentBody, theoryText, instructions string, data *models.DataSummary) (string, error)
}

// AgentSet bundles every generation port the pipeline needs
type AgentSet struct {
	Researcher  Researcher
	Data        DataSummarizer
	Writer      Writer
	Reviewer    Reviewer
	Diagrammer  Diagrammer
	Repairer    Repairer
	Regenerator SectionRegenerator
}
