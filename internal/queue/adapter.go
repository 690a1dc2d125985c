// -----------------------------------------------------------------------
// Queue service - submit/cancel/retry over the durable queue with an
// in-process background fallback. QueueMode records the substrate that
// actually ran the job, not the one that was requested.
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// Service implements interfaces.QueueService
type Service struct {
	queue      *DurableQueue
	executor   interfaces.JobExecutor
	jobStorage interfaces.JobStorage
	config     *common.QueueConfig
	logger     arbor.ILogger
}

var _ interfaces.QueueService = (*Service)(nil)

func NewService(queue *DurableQueue, executor interfaces.JobExecutor,
	jobStorage interfaces.JobStorage, config *common.QueueConfig, logger arbor.ILogger) *Service {
	return &Service{
		queue:      queue,
		executor:   executor,
		jobStorage: jobStorage,
		config:     config,
		logger:     logger,
	}
}

// Submit dispatches a queued job for execution. Durable enqueue is
// attempted first when configured; on failure, execution falls back to an
// in-process goroutine when fallback is enabled. The mode actually used is
// persisted on the job before Submit returns.
func (s *Service) Submit(ctx context.Context, job *models.Job) (*interfaces.SubmitResult, error) {
	if job == nil || job.Status != models.JobStatusQueued {
		return nil, fmt.Errorf("only queued jobs can be submitted")
	}

	result := &interfaces.SubmitResult{}

	if s.config.Mode == string(models.QueueModeDurable) {
		if s.queue == nil {
			if !s.config.FallbackBackground {
				return nil, fmt.Errorf("durable queue unavailable and background fallback is disabled")
			}
			s.logger.Warn().
				Str("job_id", job.ID).
				Msg("Durable queue unavailable, falling back to background execution")
		} else {
			msgID, err := s.queue.Enqueue(ctx, job.ID)
			if err == nil {
				result.Mode = models.QueueModeDurable
				result.QueueJobID = msgID
			} else {
				if !s.config.FallbackBackground {
					return nil, fmt.Errorf("durable enqueue failed: %w", err)
				}
				s.logger.Warn().
					Err(err).
					Str("job_id", job.ID).
					Msg("Durable enqueue failed, falling back to background execution")
			}
		}
	}

	if result.Mode == "" {
		result.Mode = models.QueueModeBackground
	}

	job.QueueMode = result.Mode
	job.QueueJobID = result.QueueJobID
	if err := s.jobStorage.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record queue mode: %w", err)
	}

	if result.Mode == models.QueueModeBackground {
		// Detached from the request context: the job outlives the HTTP call
		go func(jobID string) {
			if err := s.executor.Execute(context.Background(), jobID); err != nil {
				s.logger.Error().Err(err).Str("job_id", jobID).Msg("Background execution failed")
			}
		}(job.ID)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("queue_mode", string(result.Mode)).
		Msg("Job submitted")
	return result, nil
}

// Cancel records a cancel request. Terminal jobs are returned unchanged;
// the caller distinguishes that case from the job's status. The request is
// honored cooperatively at the job's next stage boundary.
func (s *Service) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}
	return s.jobStorage.RequestCancel(ctx, jobID)
}

// Retry creates a brand-new queued job from the stored request payload of a
// failed or canceled job and submits it. The original job is not touched.
func (s *Service) Retry(ctx context.Context, jobID string) (*models.Job, error) {
	original, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !original.CanRetry() {
		return nil, fmt.Errorf("retry is only allowed for failed or canceled jobs (status: %s)", original.Status)
	}

	retry := models.NewJob(common.NewJobID(), original.RequestPayload)
	retry.RetryOf = original.ID
	if err := s.jobStorage.SaveJob(ctx, retry); err != nil {
		return nil, fmt.Errorf("failed to save retry job: %w", err)
	}

	if _, err := s.Submit(ctx, retry); err != nil {
		return nil, fmt.Errorf("failed to submit retry job: %w", err)
	}

	s.logger.Info().
		Str("job_id", retry.ID).
		Str("retry_of", original.ID).
		Msg("Retry job created")
	return retry, nil
}
