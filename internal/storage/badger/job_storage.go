package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.JobStorage = (*JobStorage)(nil)

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// SaveJob writes the full job record, refreshing UpdatedAt. Upsert replaces
// the record atomically, so readers never observe a partial write.
func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	job.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns jobs newest first. The status filter accepts a
// comma-separated list of status values.
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")

	limit := 0
	if opts != nil {
		if opts.Status != "" {
			statuses := make([]interface{}, 0, 4)
			for _, st := range strings.Split(opts.Status, ",") {
				if st = strings.TrimSpace(st); st != "" {
					statuses = append(statuses, models.JobStatus(st))
				}
			}
			if len(statuses) > 0 {
				query = query.And("Status").In(statuses...)
			}
		}
		limit = opts.Limit
	}
	query = query.SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// RequestCancel sets the cancel flag and nothing else. The running worker
// owns status transitions; it observes the flag at the next stage boundary.
// The flag is flipped inside a transaction so a concurrent progress write
// never overwrites it with a stale copy of the record.
func (s *JobStorage) RequestCancel(ctx context.Context, jobID string) (*models.Job, error) {
	requested := false
	err := s.db.Store().UpdateMatching(&models.Job{}, badgerhold.Where("ID").Eq(jobID), func(record interface{}) error {
		job, ok := record.(*models.Job)
		if !ok {
			return fmt.Errorf("unexpected record type %T", record)
		}
		if !job.CancelRequested {
			job.CancelRequested = true
			job.UpdatedAt = time.Now()
			requested = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request cancel: %w", err)
	}

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if requested {
		s.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Cancel requested")
	}
	return job, nil
}

// UpdateProgress writes stage, progress and a fresh heartbeat in one
// transaction. No other field is touched, so a cancel request committed
// between a worker's stage boundaries survives the write.
func (s *JobStorage) UpdateProgress(ctx context.Context, jobID string, stage models.Stage, progress int) error {
	err := s.db.Store().UpdateMatching(&models.Job{}, badgerhold.Where("ID").Eq(jobID), func(record interface{}) error {
		job, ok := record.(*models.Job)
		if !ok {
			return fmt.Errorf("unexpected record type %T", record)
		}
		job.Stage = stage
		job.Progress = progress
		now := time.Now().UTC()
		job.LastHeartbeat = &now
		job.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// GetStaleRunning returns running jobs whose last heartbeat predates
// threshold. Jobs that never heartbeat are judged on StartedAt. The running
// set is small, so filtering in memory is fine.
func (s *JobStorage) GetStaleRunning(ctx context.Context, threshold time.Time) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusRunning)); err != nil {
		return nil, fmt.Errorf("failed to query running jobs: %w", err)
	}

	var stale []*models.Job
	for i := range jobs {
		var last time.Time
		if jobs[i].LastHeartbeat != nil {
			last = *jobs[i].LastHeartbeat
		} else if jobs[i].StartedAt != nil {
			last = *jobs[i].StartedAt
		}
		if !last.IsZero() && last.Before(threshold) {
			stale = append(stale, &jobs[i])
		}
	}
	return stale, nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.Job{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
