// -----------------------------------------------------------------------
// Job - the unit of pipeline work and its state machine
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle status of a job
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusDone     JobStatus = "done"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCanceled JobStatus = "canceled"
)

// IsTerminal returns true for done, failed and canceled
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCanceled
}

// Stage names a discrete step of the generation pipeline
type Stage string

const (
	StageQueued      Stage = "queued"
	StageResearch    Stage = "research"
	StageData        Stage = "data"
	StageWriter      Stage = "writer"
	StageReviewer    Stage = "reviewer"
	StageDiagram     Stage = "diagram"
	StageQualityGate Stage = "quality_gate"
	StageRepair      Stage = "repair"
	StageRender      Stage = "render"
)

// QueueMode names the execution substrate that handled a run
type QueueMode string

const (
	// QueueModeDurable executes via the Badger-backed durable queue and worker pool
	QueueModeDurable QueueMode = "durable"
	// QueueModeBackground executes in-process with no cross-process durability
	QueueModeBackground QueueMode = "background"
)

// JobError is a structured failure description naming the offending stage
type JobError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

// RequestPayload is the original submission, persisted verbatim so retry
// can reconstruct an equivalent job.
type RequestPayload struct {
	Template          string   `json:"template"`
	ManualText        string   `json:"manual_text"`
	Goal              string   `json:"goal"`
	ExtraInstructions string   `json:"extra_instructions"`
	CSVPath           string   `json:"csv_path,omitempty"`
	CSVInfo           *CSVInfo `json:"csv_info,omitempty"`
	IncludeReview     bool     `json:"include_review"`
	Meta              DocMeta  `json:"meta"`
}

// CSVInfo is the structural summary captured at upload validation time
type CSVInfo struct {
	Rows           int                 `json:"rows"`
	Cols           int                 `json:"cols"`
	Columns        []string            `json:"columns"`
	NumericColumns []string            `json:"numeric_columns"`
	PreviewHead    []map[string]string `json:"preview_head"`
}

// DocMeta carries document front-matter for the rendered PDF
type DocMeta struct {
	Title  string `json:"title"`
	Name   string `json:"name"`
	Course string `json:"course"`
	Group  string `json:"group"`
	Date   string `json:"date"`
}

// Job is the authoritative per-job record. Status and Stage are mutated only
// by the executor currently running the job (single-writer invariant);
// external callers set CancelRequested or touch derived artifacts, never
// Status/Stage directly.
type Job struct {
	ID       string `json:"id" badgerhold:"key"`
	Template string `json:"template"`

	Status   JobStatus `json:"status" badgerhold:"index"`
	Stage    Stage     `json:"stage"`
	Progress int       `json:"progress"` // 0-100, polling UX only

	RequestPayload RequestPayload `json:"request_payload"`

	QueueMode  QueueMode `json:"queue_mode,omitempty"`
	QueueJobID string    `json:"queue_job_id,omitempty"`

	CancelRequested bool      `json:"cancel_requested"`
	Error           *JobError `json:"error,omitempty"`

	RetryOf string `json:"retry_of,omitempty"` // Job this one was retried from

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// NewJob creates a queued job from a submission payload
func NewJob(id string, payload RequestPayload) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:             id,
		Template:       payload.Template,
		Status:         JobStatusQueued,
		Stage:          StageQueued,
		Progress:       0,
		RequestPayload: payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// CanRetry reports whether retry is permitted for this job's status
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// MarkStarted transitions queued -> running
func (j *Job) MarkStarted() {
	j.Status = JobStatusRunning
	now := time.Now().UTC()
	j.StartedAt = &now
	j.LastHeartbeat = &now
}

// MarkDone transitions running -> done
func (j *Job) MarkDone() {
	j.Status = JobStatusDone
	j.Stage = StageRender
	j.Progress = 100
	j.Error = nil
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkFailed transitions running -> failed with the offending stage recorded
func (j *Job) MarkFailed(stage Stage, message string) {
	j.Status = JobStatusFailed
	j.Progress = 100
	j.Error = &JobError{Stage: string(stage), Message: message}
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkCanceled transitions queued/running -> canceled
func (j *Job) MarkCanceled() {
	j.Status = JobStatusCanceled
	j.Progress = 100
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// ToJSON serializes the job for queue transport
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

// JobSummary is the listing projection served by the registry
type JobSummary struct {
	ID        string    `json:"id"`
	Template  string    `json:"template"`
	Status    JobStatus `json:"status"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	QueueMode QueueMode `json:"queue_mode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary returns the listing projection for this job
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:        j.ID,
		Template:  j.Template,
		Status:    j.Status,
		Stage:     j.Stage,
		Progress:  j.Progress,
		QueueMode: j.QueueMode,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
