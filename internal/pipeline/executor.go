// -----------------------------------------------------------------------
// Job executor - runs one job end to end and owns its status transitions.
// Exactly one executor runs per job (single-writer invariant); everything
// outside the executor communicates through the CancelRequested flag.
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/templates"
)

// Executor implements interfaces.JobExecutor
type Executor struct {
	orchestrator *Orchestrator
	jobStorage   interfaces.JobStorage
	artifacts    interfaces.ArtifactStorage
	pdfService   interfaces.PDFService
	registry     *templates.Registry
	config       *common.Config
	logger       arbor.ILogger
}

var _ interfaces.JobExecutor = (*Executor)(nil)

func NewExecutor(orchestrator *Orchestrator, storage interfaces.StorageManager,
	pdfService interfaces.PDFService, registry *templates.Registry,
	config *common.Config, logger arbor.ILogger) *Executor {
	return &Executor{
		orchestrator: orchestrator,
		jobStorage:   storage.JobStorage(),
		artifacts:    storage.ArtifactStorage(),
		pdfService:   pdfService,
		registry:     registry,
		config:       config,
		logger:       logger,
	}
}

// Execute runs the job to a terminal state. It is safe to call for a job
// that already finished (stale queue redelivery); such calls are no-ops.
func (e *Executor) Execute(ctx context.Context, jobID string) error {
	log := e.logger.WithCorrelationId(jobID)

	job, err := e.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.IsTerminal() {
		log.Debug().Str("status", string(job.Status)).Msg("Job already terminal, skipping execution")
		return nil
	}

	// Cancel requested while still queued: never start
	if job.CancelRequested {
		job.MarkCanceled()
		if err := e.jobStorage.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to persist canceled job: %w", err)
		}
		log.Info().Msg("Job canceled before start")
		return nil
	}

	rules, err := e.registry.Get(job.RequestPayload.Template)
	if err != nil {
		job.MarkFailed(models.StageQueued, fmt.Sprintf("unknown template: %s", job.RequestPayload.Template))
		e.jobStorage.SaveJob(ctx, job)
		return err
	}

	job.MarkStarted()
	if err := e.jobStorage.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist running job: %w", err)
	}
	log.Info().Str("template", rules.Key).Str("queue_mode", string(job.QueueMode)).Msg("Job started")

	inputs := interfaces.StageInputs{
		JobID:             job.ID,
		ManualText:        job.RequestPayload.ManualText,
		Goal:              job.RequestPayload.Goal,
		ExtraInstructions: job.RequestPayload.ExtraInstructions,
		CSVPath:           job.RequestPayload.CSVPath,
		PreviewRows:       e.config.Pipeline.PreviewRows,
	}

	// shouldCancel re-reads the record so cancel requests written by the
	// API process are observed at the next stage boundary.
	shouldCancel := func() bool {
		current, err := e.jobStorage.GetJob(ctx, job.ID)
		if err != nil {
			return false
		}
		return current.CancelRequested
	}

	// progress touches only stage, percentage and heartbeat, in one storage
	// transaction, so an externally set cancel flag is never clobbered.
	progress := func(stage models.Stage, pct int) {
		if err := e.jobStorage.UpdateProgress(ctx, job.ID, stage, pct); err != nil {
			log.Warn().Err(err).Str("stage", string(stage)).Msg("Failed to persist progress")
		}
		log.Debug().Str("stage", string(stage)).Int("progress", pct).Msg("Stage started")
	}

	pipelineStart := time.Now()
	result, runErr := e.orchestrator.Run(ctx, inputs, rules, job.RequestPayload.IncludeReview, shouldCancel, progress)

	// Reload for the terminal write so external flag changes survive
	job, err = e.jobStorage.GetJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to reload job: %w", err)
	}
	if job.IsTerminal() {
		log.Warn().Str("status", string(job.Status)).Msg("Job reached terminal state externally, not overwriting")
		return nil
	}

	debug := e.buildDebugRecord(job, rules, result, time.Since(pipelineStart))

	if runErr != nil {
		if errors.Is(runErr, ErrCanceled) || errors.Is(runErr, context.Canceled) {
			job.MarkCanceled()
			e.persistArtifacts(ctx, job.ID, result, log)
			e.artifacts.SaveDebug(ctx, debug)
			if err := e.jobStorage.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("failed to persist canceled job: %w", err)
			}
			log.Info().Str("stage", string(job.Stage)).Msg("Job canceled at stage boundary")
			return nil
		}

		stage := job.Stage
		var stageErr *StageError
		if errors.As(runErr, &stageErr) {
			stage = stageErr.Stage
		}
		debug.Error = runErr.Error()
		job.MarkFailed(stage, runErr.Error())
		e.persistArtifacts(ctx, job.ID, result, log)
		e.artifacts.SaveDebug(ctx, debug)
		if err := e.jobStorage.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to persist failed job: %w", err)
		}
		log.Error().Err(runErr).Str("stage", string(stage)).Msg("Job failed")
		return nil
	}

	// Render and persist the document before declaring success
	progress(models.StageRender, 95)

	e.persistArtifacts(ctx, job.ID, result, log)

	pdfBytes, renderErr := e.pdfService.RenderDocument(e.buildRenderInput(job, result))
	if renderErr == nil {
		renderErr = e.artifacts.SaveDocument(ctx, job.ID, pdfBytes)
	}
	if renderErr != nil {
		debug.Error = renderErr.Error()
		e.artifacts.SaveDebug(ctx, debug)
		job.MarkFailed(models.StageRender, renderErr.Error())
		if err := e.jobStorage.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to persist failed job: %w", err)
		}
		log.Error().Err(renderErr).Msg("Render failed")
		return nil
	}

	if e.config.Storage.Exports != "" {
		e.exportDocument(job.ID, pdfBytes, log)
	}

	e.artifacts.SaveDebug(ctx, debug)
	job.MarkDone()
	if err := e.jobStorage.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist done job: %w", err)
	}

	qualityPassed := result.Quality != nil && result.Quality.Passed
	log.Info().
		Bool("quality_passed", qualityPassed).
		Int64("pipeline_ms", time.Since(pipelineStart).Milliseconds()).
		Msg("Job completed")
	return nil
}

// exportDocument drops a filesystem copy of the rendered PDF for pickup
// outside the API. Failures are logged, never fatal; the stored document is
// the source of truth.
func (e *Executor) exportDocument(jobID string, pdfBytes []byte, log arbor.ILogger) {
	if err := os.MkdirAll(e.config.Storage.Exports, 0755); err != nil {
		log.Warn().Err(err).Msg("Failed to create exports directory")
		return
	}
	path := filepath.Join(e.config.Storage.Exports, jobID+".pdf")
	if err := os.WriteFile(path, pdfBytes, 0644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to export document")
		return
	}
	log.Debug().Str("path", path).Msg("Document exported")
}

// persistArtifacts stores whatever stage outputs exist; partial results from
// failed or canceled runs are kept for inspection.
func (e *Executor) persistArtifacts(ctx context.Context, jobID string, result *Result, log arbor.ILogger) {
	if result == nil {
		return
	}
	save := func(name, text string) {
		if text == "" {
			return
		}
		if err := e.artifacts.SaveText(ctx, jobID, name, text); err != nil {
			log.Warn().Err(err).Str("artifact", name).Msg("Failed to persist artifact")
		}
	}

	if result.Notes != nil {
		save(interfaces.ArtifactTheory, result.Notes.TheoryText)
	}
	if result.Draft != nil {
		save(interfaces.ArtifactReport, result.Draft.ReportText)
		if len(result.Draft.Sections) > 0 {
			if err := e.artifacts.SaveSections(ctx, jobID, result.Draft.Sections); err != nil {
				log.Warn().Err(err).Msg("Failed to persist sections")
			}
		}
	}
	if result.Review != nil {
		save(interfaces.ArtifactReview, result.Review.ReviewText)
	}
	if result.Figures != nil {
		save(interfaces.ArtifactFigures, result.Figures.FiguresText)
	}
}

func (e *Executor) buildDebugRecord(job *models.Job, rules *templates.RuleSet, result *Result, elapsed time.Duration) *models.DebugRecord {
	debug := &models.DebugRecord{
		JobID:              job.ID,
		Template:           rules.Key,
		TemplateDisplay:    rules.DisplayName,
		HasCSV:             job.RequestPayload.CSVPath != "",
		IncludeReview:      job.RequestPayload.IncludeReview,
		RetryOf:            job.RetryOf,
		QueueMode:          job.QueueMode,
		QueueJobID:         job.QueueJobID,
		PipelineDurationMS: elapsed.Milliseconds(),
	}
	if result != nil {
		debug.Timings = result.Timings
		debug.Quality = result.Quality
	}
	return debug
}

func (e *Executor) buildRenderInput(job *models.Job, result *Result) *interfaces.RenderInput {
	input := &interfaces.RenderInput{Meta: job.RequestPayload.Meta}
	if input.Meta.Title == "" {
		input.Meta.Title = e.registryTitle(job.RequestPayload.Template)
	}
	if result.Draft != nil {
		input.Sections = result.Draft.Sections
	}
	if result.Notes != nil {
		input.TheoryText = result.Notes.TheoryText
	}
	if result.Review != nil {
		input.ReviewText = result.Review.ReviewText
	}
	if result.Figures != nil {
		input.FiguresText = result.Figures.FiguresText
	}
	if result.Data != nil {
		input.DataPreview = result.Data.PreviewHead
	}
	return input
}

func (e *Executor) registryTitle(templateKey string) string {
	rules, err := e.registry.Get(templateKey)
	if err != nil {
		return "Report"
	}
	return rules.PDFTitleDefault
}
