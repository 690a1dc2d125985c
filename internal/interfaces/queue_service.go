package interfaces

import (
	"context"

	"github.com/ternarybob/scriba/internal/models"
)

// SubmitResult reports which substrate actually accepted a job. Callers must
// never assume Mode equals the configured mode: with fallback enabled a
// durable enqueue failure is transparently retried as a background run.
type SubmitResult struct {
	Mode       models.QueueMode
	QueueJobID string
}

// QueueService is the single submit/cancel/retry contract over both
// execution substrates. The orchestrator is mode-agnostic; only the adapter
// knows which substrate runs a job.
type QueueService interface {
	// Submit enqueues an already-persisted queued job for execution
	Submit(ctx context.Context, job *models.Job) (*SubmitResult, error)
	// Cancel sets the cancel flag; it never force-kills an in-flight stage
	Cancel(ctx context.Context, jobID string) (*models.Job, error)
	// Retry creates a brand-new job from a failed/canceled job's stored
	// request payload and resubmits it through the configured mode
	Retry(ctx context.Context, jobID string) (*models.Job, error)
}

// JobExecutor runs one job's pipeline to a terminal state. Both queue
// substrates invoke the same entry point.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string) error
}
