// -----------------------------------------------------------------------
// Stale-job reaper - fails running jobs whose worker stopped heartbeating
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// Reaper periodically fails running jobs with no recent heartbeat. A job
// stuck in running after a worker crash would otherwise block retry forever,
// since retry requires a terminal status.
type Reaper struct {
	jobStorage interfaces.JobStorage
	config     *common.PipelineConfig
	logger     arbor.ILogger

	staleAfter time.Duration
	cron       *cron.Cron
}

func NewReaper(jobStorage interfaces.JobStorage, config *common.PipelineConfig, logger arbor.ILogger) (*Reaper, error) {
	staleAfter, err := time.ParseDuration(config.StaleAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid stale_after duration '%s': %w", config.StaleAfter, err)
	}

	return &Reaper{
		jobStorage: jobStorage,
		config:     config,
		logger:     logger,
		staleAfter: staleAfter,
	}, nil
}

// Start schedules the reaper on its cron schedule
func (r *Reaper) Start() error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.config.ReaperSchedule, func() {
		if _, err := r.ReapStale(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("Reaper run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reaper schedule '%s': %w", r.config.ReaperSchedule, err)
	}
	r.cron.Start()

	r.logger.Info().
		Str("schedule", r.config.ReaperSchedule).
		Dur("stale_after", r.staleAfter).
		Msg("Stale-job reaper started")
	return nil
}

// Stop halts the schedule, waiting for an in-flight run
func (r *Reaper) Stop() {
	if r.cron != nil {
		ctx := r.cron.Stop()
		<-ctx.Done()
	}
}

// ReapStale fails every running job whose heartbeat predates the threshold
// and returns how many were reaped.
func (r *Reaper) ReapStale(ctx context.Context) (int, error) {
	threshold := time.Now().Add(-r.staleAfter)
	stale, err := r.jobStorage.GetStaleRunning(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale jobs: %w", err)
	}

	reaped := 0
	for _, job := range stale {
		job.MarkFailed(job.Stage, fmt.Sprintf("reaped: no heartbeat for over %s", r.staleAfter))
		if err := r.jobStorage.SaveJob(ctx, job); err != nil {
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to reap stale job")
			continue
		}
		r.logger.Warn().
			Str("job_id", job.ID).
			Str("stage", string(job.Stage)).
			Msg("Reaped stale running job")
		reaped++
	}

	if reaped > 0 {
		r.logger.Info().Int("reaped", reaped).Msg("Reaper run completed")
	}
	return reaped, nil
}
