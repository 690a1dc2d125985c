// -----------------------------------------------------------------------
// Cleanup service - scheduled removal of expired terminal jobs
// -----------------------------------------------------------------------

package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// Result summarizes one cleanup run
type Result struct {
	Scanned int      `json:"scanned"`
	Deleted int      `json:"deleted"`
	Skipped int      `json:"skipped"`
	DryRun  bool     `json:"dry_run"`
	JobIDs  []string `json:"job_ids,omitempty"`
}

// Service deletes jobs and their artifacts once they age out. Only terminal
// jobs are removed; a long-running job is never cleaned from under its
// executor.
type Service struct {
	jobStorage interfaces.JobStorage
	artifacts  interfaces.ArtifactStorage
	config     *common.CleanupConfig
	logger     arbor.ILogger
	cron       *cron.Cron
}

func NewService(storage interfaces.StorageManager, config *common.CleanupConfig, logger arbor.ILogger) *Service {
	return &Service{
		jobStorage: storage.JobStorage(),
		artifacts:  storage.ArtifactStorage(),
		config:     config,
		logger:     logger,
	}
}

// Start schedules periodic cleanup when enabled
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Cleanup service disabled")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		if _, err := s.Run(context.Background(), s.config.MaxAgeHours, false); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule '%s': %w", s.config.Schedule, err)
	}
	s.cron.Start()

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Int("max_age_hours", s.config.MaxAgeHours).
		Msg("Cleanup service started")
	return nil
}

// Stop halts the schedule
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

// Run deletes terminal jobs whose artifacts are older than maxAgeHours.
// With dryRun, it only reports what would be deleted.
func (s *Service) Run(ctx context.Context, maxAgeHours int, dryRun bool) (*Result, error) {
	if maxAgeHours <= 0 {
		maxAgeHours = s.config.MaxAgeHours
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)

	jobIDs, err := s.artifacts.ListJobIDsOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	result := &Result{Scanned: len(jobIDs), DryRun: dryRun}
	for _, jobID := range jobIDs {
		job, err := s.jobStorage.GetJob(ctx, jobID)
		if err == nil && !job.IsTerminal() {
			result.Skipped++
			continue
		}

		if dryRun {
			result.Deleted++
			result.JobIDs = append(result.JobIDs, jobID)
			continue
		}

		if err := s.artifacts.DeleteArtifacts(ctx, jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete artifacts")
			result.Skipped++
			continue
		}
		if err := s.jobStorage.DeleteJob(ctx, jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete job record")
		}
		result.Deleted++
		result.JobIDs = append(result.JobIDs, jobID)
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Bool("dry_run", dryRun).
		Msg("Cleanup run completed")
	return result, nil
}
