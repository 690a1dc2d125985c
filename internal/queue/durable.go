// -----------------------------------------------------------------------
// Durable queue - Badger-backed message queue with lease-based visibility.
// Messages survive process restarts; a crashed worker's lease expires and
// the message is redelivered, up to MaxReceive deliveries.
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	storagebadger "github.com/ternarybob/scriba/internal/storage/badger"
	"github.com/timshannon/badgerhold/v4"
)

// ErrNoMessage is returned by Receive when the queue is empty
var ErrNoMessage = errors.New("no message")

// QueueMessage is one durable queue entry. LeaseUntil implements visibility:
// a message is receivable only when its lease has expired.
type QueueMessage struct {
	ID         string `badgerhold:"key"`
	Queue      string `badgerhold:"index"`
	JobID      string
	EnqueuedAt time.Time
	LeaseUntil time.Time
	Receives   int
}

// DurableQueue is the Badger-backed queue substrate. Claims are serialized
// with a process-local mutex; the embedded database is single-process, so
// no cross-process claim race exists.
type DurableQueue struct {
	db     *storagebadger.BadgerDB
	config *common.QueueConfig
	logger arbor.ILogger

	mu                sync.Mutex
	visibilityTimeout time.Duration
}

func NewDurableQueue(db *storagebadger.BadgerDB, config *common.QueueConfig, logger arbor.ILogger) (*DurableQueue, error) {
	visibility, err := time.ParseDuration(config.VisibilityTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid visibility timeout '%s': %w", config.VisibilityTimeout, err)
	}

	return &DurableQueue{
		db:                db,
		config:            config,
		logger:            logger,
		visibilityTimeout: visibility,
	}, nil
}

// Enqueue appends a message for the job and returns the message ID.
func (q *DurableQueue) Enqueue(ctx context.Context, jobID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := &QueueMessage{
		ID:         uuid.New().String(),
		Queue:      q.config.QueueName,
		JobID:      jobID,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.db.Store().Insert(msg.ID, msg); err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.logger.Debug().
		Str("message_id", msg.ID).
		Str("job_id", jobID).
		Str("queue", msg.Queue).
		Msg("Message enqueued")
	return msg.ID, nil
}

// Receive claims the oldest receivable message and extends its lease by
// the visibility timeout. Messages past MaxReceive deliveries are dropped.
// Returns ErrNoMessage when nothing is receivable.
func (q *DurableQueue) Receive(ctx context.Context) (*QueueMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	var candidates []QueueMessage
	query := badgerhold.Where("Queue").Eq(q.config.QueueName).
		And("LeaseUntil").Le(now).
		SortBy("EnqueuedAt")
	if err := q.db.Store().Find(&candidates, query); err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}

	for i := range candidates {
		msg := &candidates[i]

		if q.config.MaxReceive > 0 && msg.Receives >= q.config.MaxReceive {
			q.logger.Warn().
				Str("message_id", msg.ID).
				Str("job_id", msg.JobID).
				Int("receives", msg.Receives).
				Msg("Message exceeded max receives, dropping")
			if err := q.db.Store().Delete(msg.ID, &QueueMessage{}); err != nil {
				q.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to drop poisoned message")
			}
			continue
		}

		msg.Receives++
		msg.LeaseUntil = now.Add(q.visibilityTimeout)
		if err := q.db.Store().Update(msg.ID, msg); err != nil {
			return nil, fmt.Errorf("failed to claim message: %w", err)
		}
		return msg, nil
	}

	return nil, ErrNoMessage
}

// Delete removes a message, acknowledging successful or terminal handling.
func (q *DurableQueue) Delete(ctx context.Context, messageID string) error {
	if err := q.db.Store().Delete(messageID, &QueueMessage{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Len returns the number of pending messages, for diagnostics.
func (q *DurableQueue) Len() (int, error) {
	count, err := q.db.Store().Count(&QueueMessage{}, badgerhold.Where("Queue").Eq(q.config.QueueName))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}
