package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// WorkerPool polls the durable queue and hands job IDs to the executor.
// The executor owns all job state; a worker only acknowledges the message
// once Execute returns.
type WorkerPool struct {
	queue    *DurableQueue
	executor interfaces.JobExecutor
	config   *common.QueueConfig
	logger   arbor.ILogger

	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewWorkerPool(queue *DurableQueue, executor interfaces.JobExecutor,
	config *common.QueueConfig, logger arbor.ILogger) (*WorkerPool, error) {

	pollInterval, err := time.ParseDuration(config.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval '%s': %w", config.PollInterval, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:        queue,
		executor:     executor,
		config:       config,
		logger:       logger,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Int("concurrency", wp.config.Concurrency).
		Dur("poll_interval", wp.pollInterval).
		Msg("Starting worker pool")

	for i := 0; i < wp.config.Concurrency; i++ {
		go wp.worker(i)
	}
}

// Stop signals every worker to exit after its current message
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
}

func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to reduce claim contention
	staggerDelay := (wp.pollInterval / time.Duration(wp.config.Concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil && !errors.Is(err, ErrNoMessage) {
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing message")
			}
		}
	}
}

// processMessage receives and processes a single message. The message is
// deleted whether Execute succeeds or fails: the executor records failures
// on the job itself, and redelivery would only re-observe a terminal job.
func (wp *WorkerPool) processMessage(workerID int) error {
	msg, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.logger.Debug().
		Str("message_id", msg.ID).
		Str("job_id", msg.JobID).
		Int("worker_id", workerID).
		Msg("Processing message")

	startTime := time.Now()
	execErr := wp.executor.Execute(wp.ctx, msg.JobID)
	duration := time.Since(startTime)

	if execErr != nil {
		wp.logger.Error().
			Err(execErr).
			Str("job_id", msg.JobID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Job execution failed")
	} else {
		wp.logger.Info().
			Str("job_id", msg.JobID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Job execution finished")
	}

	if err := wp.queue.Delete(wp.ctx, msg.ID); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to delete message after processing")
		return err
	}
	return execErr
}
