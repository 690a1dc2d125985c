package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/scriba/internal/models"
)

// ErrJobNotFound is returned when a job ID resolves to nothing
var ErrJobNotFound = errors.New("job not found")

// JobListOptions filter and bound job listings
type JobListOptions struct {
	Status string // Comma-separated status filter
	Limit  int
}

// JobStorage persists the authoritative job records. Writes are atomic: a
// concurrent reader sees either the previous or the new record, never a
// partial one.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	// RequestCancel sets the cancel flag without touching status/stage
	RequestCancel(ctx context.Context, jobID string) (*models.Job, error)
	// UpdateProgress writes stage, progress and a fresh heartbeat in one
	// transaction, leaving every other field untouched. This is the only
	// write a running executor performs between stage boundaries, so a
	// concurrently set cancel flag can never be clobbered.
	UpdateProgress(ctx context.Context, jobID string, stage models.Stage, progress int) error
	// GetStaleRunning returns running jobs whose heartbeat is older than threshold
	GetStaleRunning(ctx context.Context, threshold time.Time) ([]*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// ArtifactStorage persists per-job derived artifacts: the debug record,
// per-stage text outputs, section sets and the rendered document.
type ArtifactStorage interface {
	SaveDebug(ctx context.Context, record *models.DebugRecord) error
	GetDebug(ctx context.Context, jobID string) (*models.DebugRecord, error)
	SaveText(ctx context.Context, jobID, name, text string) error
	GetText(ctx context.Context, jobID, name string) (string, error)
	SaveSections(ctx context.Context, jobID string, sections []models.Section) error
	GetSections(ctx context.Context, jobID string) ([]models.Section, error)
	SaveDocument(ctx context.Context, jobID string, pdf []byte) error
	GetDocument(ctx context.Context, jobID string) ([]byte, error)
	DeleteArtifacts(ctx context.Context, jobID string) error
	// ListJobIDsOlderThan returns job IDs whose newest artifact predates cutoff
	ListJobIDsOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// StorageManager aggregates the storage backends behind one handle
type StorageManager interface {
	JobStorage() JobStorage
	ArtifactStorage() ArtifactStorage
	Close() error
}

// Well-known artifact names for per-stage text outputs
const (
	ArtifactTheory  = "theory.txt"
	ArtifactReport  = "report.txt"
	ArtifactReview  = "review.txt"
	ArtifactFigures = "figures.txt"
)
