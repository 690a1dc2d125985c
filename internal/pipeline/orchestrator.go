// -----------------------------------------------------------------------
// Pipeline orchestrator - fixed stage order with cooperative cancellation
// checked at every stage boundary
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/quality"
	"github.com/ternarybob/scriba/internal/templates"
)

// ErrCanceled is returned when a cancel request is observed at a stage
// boundary. Work inside a stage always runs to completion first.
var ErrCanceled = errors.New("job canceled by user")

// StageError wraps a stage failure with the stage that produced it
type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CancelCheck reports whether a cancel has been requested for the job
type CancelCheck func() bool

// ProgressFunc receives stage-boundary progress updates
type ProgressFunc func(stage models.Stage, progressPct int)

// Result carries every stage output of one pipeline run
type Result struct {
	Notes   *models.ResearchNotes
	Data    *models.DataSummary
	Draft   *models.WriterDraft
	Review  *models.ReviewNotes
	Figures *models.FigureSuggestions
	Quality *models.QualityResult
	Timings []models.StageTiming
}

// Orchestrator drives the generation stages in order. It is mode-agnostic:
// the same code runs under a durable-queue worker or an in-process
// goroutine, because cancellation and progress flow through callbacks
// rather than any queue primitive.
type Orchestrator struct {
	agents *interfaces.AgentSet
	logger arbor.ILogger
}

func NewOrchestrator(agents *interfaces.AgentSet, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{agents: agents, logger: logger}
}

// Run executes research -> data -> writer -> reviewer -> diagram ->
// quality gate, with at most one repair pass followed by a re-evaluation.
// A failing second gate never fails the run; quality is advisory.
func (o *Orchestrator) Run(ctx context.Context, inputs interfaces.StageInputs, rules *templates.RuleSet,
	includeReview bool, shouldCancel CancelCheck, progress ProgressFunc) (*Result, error) {

	result := &Result{}

	checkCancel := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if shouldCancel != nil && shouldCancel() {
			return ErrCanceled
		}
		return nil
	}
	report := func(stage models.Stage, pct int) {
		if progress != nil {
			progress(stage, pct)
		}
	}
	timed := func(stage models.Stage, fn func() error) error {
		start := time.Now()
		err := fn()
		result.Timings = append(result.Timings, models.StageTiming{
			Stage:      string(stage),
			DurationMS: time.Since(start).Milliseconds(),
		})
		return err
	}

	// Research
	if err := checkCancel(); err != nil {
		return result, err
	}
	report(models.StageResearch, 20)
	if err := timed(models.StageResearch, func() error {
		notes, err := o.agents.Researcher.Research(ctx, inputs)
		result.Notes = notes
		return err
	}); err != nil {
		return result, &StageError{Stage: models.StageResearch, Err: err}
	}

	// Data (only when a CSV is present)
	if inputs.CSVPath != "" {
		if err := checkCancel(); err != nil {
			return result, err
		}
		report(models.StageData, 35)
		if err := timed(models.StageData, func() error {
			data, err := o.agents.Data.Summarize(ctx, inputs)
			result.Data = data
			return err
		}); err != nil {
			return result, &StageError{Stage: models.StageData, Err: err}
		}
	} else if rules.RequireCSV {
		return result, &StageError{Stage: models.StageData, Err: errors.New("template requires a CSV but none was provided")}
	}

	// Writer
	if err := checkCancel(); err != nil {
		return result, err
	}
	report(models.StageWriter, 55)
	if err := timed(models.StageWriter, func() error {
		draft, err := o.agents.Writer.Write(ctx, inputs, rules, result.Notes, result.Data)
		result.Draft = draft
		return err
	}); err != nil {
		return result, &StageError{Stage: models.StageWriter, Err: err}
	}

	// Reviewer (optional). A reviewer failure degrades to no feedback
	// rather than failing the run.
	if includeReview && rules.AllowReview {
		if err := checkCancel(); err != nil {
			return result, err
		}
		report(models.StageReviewer, 75)
		if err := timed(models.StageReviewer, func() error {
			review, err := o.agents.Reviewer.Review(ctx, rules, result.Draft)
			result.Review = review
			return err
		}); err != nil {
			o.logger.Warn().Err(err).Str("job_id", inputs.JobID).Msg("Reviewer stage failed, continuing without feedback")
			result.Review = nil
		}
	}

	// Diagram (optional, data-driven). Failure degrades like the reviewer.
	if rules.IncludeFigures && result.Data != nil {
		if err := checkCancel(); err != nil {
			return result, err
		}
		report(models.StageDiagram, 85)
		if err := timed(models.StageDiagram, func() error {
			figures, err := o.agents.Diagrammer.SuggestFigures(ctx, rules, result.Notes, result.Data)
			result.Figures = figures
			return err
		}); err != nil {
			o.logger.Warn().Err(err).Str("job_id", inputs.JobID).Msg("Diagram stage failed, continuing without figures")
			result.Figures = nil
		}
	}

	// Quality gate, then at most one repair pass and a re-evaluation
	if err := checkCancel(); err != nil {
		return result, err
	}
	report(models.StageQualityGate, 88)
	result.Quality = quality.Evaluate(result.Draft.ReportText, result.Draft.Sections, rules, 1)

	if !result.Quality.Passed {
		if err := checkCancel(); err != nil {
			return result, err
		}
		report(models.StageRepair, 92)
		o.logger.Info().
			Str("job_id", inputs.JobID).
			Int("violations", len(result.Quality.Violations)).
			Msg("Quality gate failed, running repair pass")

		if err := timed(models.StageRepair, func() error {
			repaired, err := o.agents.Repairer.Repair(ctx, inputs, rules,
				result.Notes, result.Data, result.Draft, result.Quality.Violations)
			if err != nil {
				return err
			}
			result.Draft = repaired
			return nil
		}); err != nil {
			return result, &StageError{Stage: models.StageRepair, Err: err}
		}

		result.Quality = quality.Evaluate(result.Draft.ReportText, result.Draft.Sections, rules, 2)
		if !result.Quality.Passed {
			o.logger.Warn().
				Str("job_id", inputs.JobID).
				Int("violations", len(result.Quality.Violations)).
				Msg("Quality gate still failing after repair; completing anyway")
		}
	}

	return result, nil
}
