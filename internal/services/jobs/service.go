// -----------------------------------------------------------------------
// Jobs service - submission, status, lifecycle actions and post-hoc draft
// editing. This is the only layer handlers talk to.
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/quality"
	"github.com/ternarybob/scriba/internal/report"
	"github.com/ternarybob/scriba/internal/templates"
)

// csvPreviewRows is the row count captured into CSVInfo at validation time
const csvPreviewRows = 5

// SubmitRequest is a document-generation submission. ManualPDFPath, when
// set, takes precedence over ManualText after extraction.
type SubmitRequest struct {
	Template          string `json:"template" validate:"required"`
	ManualText        string `json:"manual_text" validate:"max=400000"`
	ManualPDFPath     string `json:"-"`
	Goal              string `json:"goal" validate:"max=3000"`
	ExtraInstructions string `json:"extra_instructions" validate:"max=5000"`
	CSVPath           string `json:"-"`
	IncludeReview     bool   `json:"include_review"`

	Title  string `json:"report_title" validate:"max=200"`
	Name   string `json:"student_name" validate:"max=120"`
	Course string `json:"course" validate:"max=120"`
	Group  string `json:"group" validate:"max=120"`
	Date   string `json:"date" validate:"max=120"`
}

// ValidationError marks a rejected submission or edit so handlers can map
// it to a 400 rather than a 500.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StatusResponse is the polling projection for one job
type StatusResponse struct {
	models.JobSummary
	Error           *models.JobError      `json:"error,omitempty"`
	CancelRequested bool                  `json:"cancel_requested"`
	RetryOf         string                `json:"retry_of,omitempty"`
	Quality         *models.QualityResult `json:"quality,omitempty"`
	HasDocument     bool                  `json:"has_document"`
}

// Draft is the editable view of a finished job's report
type Draft struct {
	JobID      string           `json:"job_id"`
	Template   string           `json:"template"`
	Headers    []string         `json:"headers"`
	Sections   []models.Section `json:"sections"`
	ReportText string           `json:"report_text"`
	Editable   bool             `json:"editable"`
}

// Service is the job registry and draft editor
type Service struct {
	jobStorage interfaces.JobStorage
	artifacts  interfaces.ArtifactStorage
	queue      interfaces.QueueService
	agents     *interfaces.AgentSet
	pdfService interfaces.PDFService
	extractor  interfaces.PDFExtractor
	registry   *templates.Registry
	config     *common.Config
	validate   *validator.Validate
	logger     arbor.ILogger
}

func NewService(storage interfaces.StorageManager, queue interfaces.QueueService,
	agents *interfaces.AgentSet, pdfService interfaces.PDFService, extractor interfaces.PDFExtractor,
	registry *templates.Registry, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		jobStorage: storage.JobStorage(),
		artifacts:  storage.ArtifactStorage(),
		queue:      queue,
		agents:     agents,
		pdfService: pdfService,
		extractor:  extractor,
		registry:   registry,
		config:     config,
		validate:   validator.New(),
		logger:     logger,
	}
}

// ----- Submission -----

// Submit validates the request, persists a queued job and dispatches it.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*models.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidf("invalid submission: %v", err)
	}

	if req.Template == "" {
		req.Template = templates.DefaultTemplate
	}
	rules, err := s.registry.Get(req.Template)
	if err != nil {
		return nil, invalidf("unknown template: %s", req.Template)
	}

	manualText := strings.TrimSpace(req.ManualText)
	if req.ManualPDFPath != "" {
		extracted, err := s.extractor.ExtractText(req.ManualPDFPath, 0)
		if err != nil {
			return nil, invalidf("failed to read manual PDF: %v", err)
		}
		if strings.TrimSpace(extracted) == "" {
			return nil, invalidf("could not extract text from manual PDF (might be scanned); paste manual_text instead")
		}
		manualText = strings.TrimSpace(extracted)
	}
	if manualText == "" {
		return nil, invalidf("provide either a manual PDF or manual_text")
	}

	hasCSV := req.CSVPath != ""
	if rules.RequireCSV && !hasCSV {
		return nil, invalidf("template '%s' requires a CSV upload", rules.Key)
	}
	if !rules.AllowCSV && hasCSV {
		return nil, invalidf("template '%s' does not accept CSV uploads", rules.Key)
	}
	if req.IncludeReview && !rules.AllowReview {
		return nil, invalidf("template '%s' does not support reviewer feedback", rules.Key)
	}
	if len(strings.TrimSpace(req.Goal)) < rules.GoalMinLen {
		return nil, invalidf("template '%s' requires goal length >= %d characters", rules.Key, rules.GoalMinLen)
	}

	var csvInfo *models.CSVInfo
	if hasCSV {
		csvInfo, err = validateCSV(req.CSVPath)
		if err != nil {
			return nil, err
		}
	}

	payload := models.RequestPayload{
		Template:          rules.Key,
		ManualText:        manualText,
		Goal:              strings.TrimSpace(req.Goal),
		ExtraInstructions: strings.TrimSpace(req.ExtraInstructions),
		CSVPath:           req.CSVPath,
		CSVInfo:           csvInfo,
		IncludeReview:     req.IncludeReview,
		Meta: models.DocMeta{
			Title:  strings.TrimSpace(req.Title),
			Name:   strings.TrimSpace(req.Name),
			Course: strings.TrimSpace(req.Course),
			Group:  strings.TrimSpace(req.Group),
			Date:   strings.TrimSpace(req.Date),
		},
	}

	job := models.NewJob(common.NewJobID(), payload)
	if err := s.jobStorage.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if _, err := s.queue.Submit(ctx, job); err != nil {
		job.MarkFailed(models.StageQueued, err.Error())
		s.jobStorage.SaveJob(ctx, job)
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("template", rules.Key).
		Bool("has_csv", hasCSV).
		Bool("include_review", req.IncludeReview).
		Msg("Job submitted")
	return job, nil
}

// validateCSV checks structure and captures CSVInfo: at least 2 data rows
// and at least one fully numeric column.
func validateCSV(path string) (*models.CSVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, invalidf("could not read CSV: make sure it is a valid .csv file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, invalidf("could not read CSV: make sure it is a valid .csv file")
	}
	if len(records) < 3 { // header + 2 data rows
		return nil, invalidf("CSV must have at least 2 rows of data")
	}

	header := records[0]
	rows := records[1:]

	numeric := make([]bool, len(header))
	present := make([]bool, len(header))
	for i := range numeric {
		numeric[i] = true
	}
	for _, row := range rows {
		for i := range header {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if cell == "" {
				continue
			}
			present[i] = true
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric[i] = false
			}
		}
	}

	info := &models.CSVInfo{
		Rows: len(rows),
		Cols: len(header),
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		info.Columns = append(info.Columns, name)
		if numeric[i] && present[i] {
			info.NumericColumns = append(info.NumericColumns, name)
		}
	}
	if len(info.NumericColumns) == 0 {
		return nil, invalidf("CSV must contain at least one numeric column")
	}

	previewRows := csvPreviewRows
	if previewRows > len(rows) {
		previewRows = len(rows)
	}
	for _, row := range rows[:previewRows] {
		rec := make(map[string]string, len(header))
		for i, name := range info.Columns {
			if i < len(row) {
				rec[name] = strings.TrimSpace(row[i])
			} else {
				rec[name] = ""
			}
		}
		info.PreviewHead = append(info.PreviewHead, rec)
	}
	return info, nil
}

// ----- Status and lifecycle -----

// GetStatus returns the polling view: job state plus the latest quality
// result and whether a rendered document exists.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	if !common.IsSafeJobID(jobID) {
		return nil, invalidf("invalid job id")
	}
	job, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{
		JobSummary:      job.Summary(),
		Error:           job.Error,
		CancelRequested: job.CancelRequested,
		RetryOf:         job.RetryOf,
	}
	if debug, err := s.artifacts.GetDebug(ctx, jobID); err == nil && debug != nil {
		resp.Quality = debug.Quality
	}
	if doc, err := s.artifacts.GetDocument(ctx, jobID); err == nil && len(doc) > 0 {
		resp.HasDocument = true
	}
	return resp, nil
}

// ListRecent returns job summaries, newest first.
func (s *Service) ListRecent(ctx context.Context, statusFilter string, limit int) ([]models.JobSummary, error) {
	jobs, err := s.jobStorage.ListJobs(ctx, &interfaces.JobListOptions{Status: statusFilter, Limit: limit})
	if err != nil {
		return nil, err
	}
	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, job.Summary())
	}
	return summaries, nil
}

// Cancel requests cooperative cancellation. The returned job reflects the
// current state; terminal jobs are returned unchanged.
func (s *Service) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	if !common.IsSafeJobID(jobID) {
		return nil, invalidf("invalid job id")
	}
	return s.queue.Cancel(ctx, jobID)
}

// Retry creates and submits a new job from the stored request payload.
func (s *Service) Retry(ctx context.Context, jobID string) (*models.Job, error) {
	if !common.IsSafeJobID(jobID) {
		return nil, invalidf("invalid job id")
	}

	// A retried CSV job needs its source file to still exist
	original, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if original.RequestPayload.CSVPath != "" {
		if _, err := os.Stat(original.RequestPayload.CSVPath); err != nil {
			return nil, invalidf("retry source CSV is missing on disk")
		}
	}
	return s.queue.Retry(ctx, jobID)
}

// GetDocument returns the rendered PDF bytes.
func (s *Service) GetDocument(ctx context.Context, jobID string) ([]byte, error) {
	if !common.IsSafeJobID(jobID) {
		return nil, invalidf("invalid job id")
	}
	return s.artifacts.GetDocument(ctx, jobID)
}

// ----- Draft editing -----
// All draft operations require a terminal job and never change its status.

func (s *Service) loadTerminal(ctx context.Context, jobID, action string) (*models.Job, *templates.RuleSet, error) {
	if !common.IsSafeJobID(jobID) {
		return nil, nil, invalidf("invalid job id")
	}
	job, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if !job.IsTerminal() {
		return nil, nil, invalidf("%s is allowed only after job completion or failure", action)
	}
	rules, err := s.registry.Get(job.RequestPayload.Template)
	if err != nil {
		return nil, nil, err
	}
	return job, rules, nil
}

// GetDraft returns the stored report split into sections.
func (s *Service) GetDraft(ctx context.Context, jobID string) (*Draft, error) {
	if !common.IsSafeJobID(jobID) {
		return nil, invalidf("invalid job id")
	}
	job, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rules, err := s.registry.Get(job.RequestPayload.Template)
	if err != nil {
		return nil, err
	}

	draft := &Draft{
		JobID:    job.ID,
		Template: rules.Key,
		Headers:  rules.WriterFormat,
		Editable: job.IsTerminal(),
	}
	if text, err := s.artifacts.GetText(ctx, jobID, interfaces.ArtifactReport); err == nil {
		draft.ReportText = text
	}
	if sections, err := s.artifacts.GetSections(ctx, jobID); err == nil {
		draft.Sections = sections
	} else if draft.ReportText != "" {
		draft.Sections = report.SplitByHeaders(draft.ReportText, rules.WriterFormat, models.OriginGenerated)
	}
	return draft, nil
}

// SaveDraft replaces the stored report text with a manual edit. The PDF is
// not rebuilt here; Rebuild is a separate operation.
func (s *Service) SaveDraft(ctx context.Context, jobID, reportText string) error {
	_, rules, err := s.loadTerminal(ctx, jobID, "draft editing")
	if err != nil {
		return err
	}
	if strings.TrimSpace(reportText) == "" {
		return invalidf("draft report text cannot be empty")
	}

	sections := report.SplitByHeaders(reportText, rules.WriterFormat, models.OriginManuallyEdited)
	if err := s.artifacts.SaveText(ctx, jobID, interfaces.ArtifactReport, reportText); err != nil {
		return err
	}
	if err := s.artifacts.SaveSections(ctx, jobID, sections); err != nil {
		return err
	}

	s.logger.Info().Str("job_id", jobID).Msg("Draft saved")
	return nil
}

// Rebuild re-renders the PDF from the stored artifacts.
func (s *Service) Rebuild(ctx context.Context, jobID string) error {
	job, rules, err := s.loadTerminal(ctx, jobID, "PDF rebuild")
	if err != nil {
		return err
	}
	return s.renderStored(ctx, job, rules)
}

func (s *Service) renderStored(ctx context.Context, job *models.Job, rules *templates.RuleSet) error {
	sections, err := s.artifacts.GetSections(ctx, job.ID)
	if err != nil {
		return invalidf("no report draft available for rebuild")
	}

	input := &interfaces.RenderInput{
		Meta:     job.RequestPayload.Meta,
		Sections: sections,
	}
	if input.Meta.Title == "" {
		input.Meta.Title = rules.PDFTitleDefault
	}
	if text, err := s.artifacts.GetText(ctx, job.ID, interfaces.ArtifactReview); err == nil {
		input.ReviewText = text
	}
	if text, err := s.artifacts.GetText(ctx, job.ID, interfaces.ArtifactFigures); err == nil {
		input.FiguresText = text
	}
	if job.RequestPayload.CSVInfo != nil {
		input.DataPreview = job.RequestPayload.CSVInfo.PreviewHead
	}

	pdfBytes, err := s.pdfService.RenderDocument(input)
	if err != nil {
		return fmt.Errorf("failed to rebuild PDF: %w", err)
	}
	if err := s.artifacts.SaveDocument(ctx, job.ID, pdfBytes); err != nil {
		return err
	}

	s.logger.Info().Str("job_id", job.ID).Int("pdf_size", len(pdfBytes)).Msg("PDF rebuilt")
	return nil
}

// QualityFix re-evaluates the stored draft and, when it fails, runs one
// repair pass, persists the result and rebuilds the PDF. Job status is
// never changed.
func (s *Service) QualityFix(ctx context.Context, jobID string) (*models.QualityResult, error) {
	job, rules, err := s.loadTerminal(ctx, jobID, "quality fix")
	if err != nil {
		return nil, err
	}

	reportText, err := s.artifacts.GetText(ctx, jobID, interfaces.ArtifactReport)
	if err != nil || strings.TrimSpace(reportText) == "" {
		return nil, invalidf("no report draft available for quality fix")
	}

	sections := report.SplitByHeaders(reportText, rules.WriterFormat, models.OriginGenerated)
	result := quality.Evaluate(reportText, sections, rules, 1)
	if result.Passed {
		return result, nil
	}

	notes := s.loadNotes(ctx, jobID)
	data := s.resummarize(ctx, job)
	inputs := interfaces.StageInputs{
		JobID:             job.ID,
		ManualText:        job.RequestPayload.ManualText,
		Goal:              job.RequestPayload.Goal,
		ExtraInstructions: job.RequestPayload.ExtraInstructions,
		CSVPath:           job.RequestPayload.CSVPath,
		PreviewRows:       s.config.Pipeline.PreviewRows,
	}
	draft := &models.WriterDraft{ReportText: reportText, Sections: sections}

	repaired, err := s.agents.Repairer.Repair(ctx, inputs, rules, notes, data, draft, result.Violations)
	if err != nil {
		return nil, fmt.Errorf("quality fix failed: %w", err)
	}

	if err := s.artifacts.SaveText(ctx, jobID, interfaces.ArtifactReport, repaired.ReportText); err != nil {
		return nil, err
	}
	if err := s.artifacts.SaveSections(ctx, jobID, repaired.Sections); err != nil {
		return nil, err
	}
	if err := s.renderStored(ctx, job, rules); err != nil {
		return nil, err
	}

	result = quality.Evaluate(repaired.ReportText, repaired.Sections, rules, 2)
	s.logger.Info().
		Str("job_id", jobID).
		Bool("passed", result.Passed).
		Int("violations", len(result.Violations)).
		Msg("Quality fix completed")
	return result, nil
}

// RegenerateSection rewrites one section body, splices it into the stored
// draft and rebuilds the PDF.
func (s *Service) RegenerateSection(ctx context.Context, jobID, sectionName, instructions string) error {
	job, rules, err := s.loadTerminal(ctx, jobID, "section regeneration")
	if err != nil {
		return err
	}

	sectionName = strings.TrimSpace(sectionName)
	if sectionName == "" {
		return invalidf("section is required")
	}
	known := false
	for _, h := range rules.WriterFormat {
		if h == sectionName {
			known = true
			break
		}
	}
	if !known {
		return invalidf("unknown section '%s' for template '%s'", sectionName, rules.Key)
	}

	sections, err := s.artifacts.GetSections(ctx, jobID)
	if err != nil || len(sections) == 0 {
		return invalidf("no report draft available for regeneration")
	}
	target := report.SectionByName(sections, sectionName)
	if target == nil {
		return invalidf("section '%s' not found in report draft", sectionName)
	}

	theoryText, _ := s.artifacts.GetText(ctx, jobID, interfaces.ArtifactTheory)
	data := s.resummarize(ctx, job)

	newBody, err := s.agents.Regenerator.RegenerateSection(ctx, rules, sectionName,
		target.Body, theoryText, instructions, data)
	if err != nil {
		return err
	}

	target.Body = newBody
	target.Origin = models.OriginRegenerated
	newReport := report.JoinSections(sections)

	if err := s.artifacts.SaveText(ctx, jobID, interfaces.ArtifactReport, newReport); err != nil {
		return err
	}
	if err := s.artifacts.SaveSections(ctx, jobID, sections); err != nil {
		return err
	}
	return s.renderStored(ctx, job, rules)
}

// loadNotes rebuilds research notes from the stored theory text.
func (s *Service) loadNotes(ctx context.Context, jobID string) *models.ResearchNotes {
	theoryText, err := s.artifacts.GetText(ctx, jobID, interfaces.ArtifactTheory)
	if err != nil || theoryText == "" {
		return nil
	}
	return &models.ResearchNotes{TheoryText: theoryText}
}

// resummarize recomputes the data summary from the job's CSV when the file
// is still on disk. Summarization is deterministic, so the result matches
// what the pipeline saw.
func (s *Service) resummarize(ctx context.Context, job *models.Job) *models.DataSummary {
	if job.RequestPayload.CSVPath == "" {
		return nil
	}
	if _, err := os.Stat(job.RequestPayload.CSVPath); err != nil {
		return nil
	}
	data, err := s.agents.Data.Summarize(ctx, interfaces.StageInputs{
		JobID:       job.ID,
		CSVPath:     job.RequestPayload.CSVPath,
		PreviewRows: s.config.Pipeline.PreviewRows,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to resummarize CSV")
		return nil
	}
	return data
}
