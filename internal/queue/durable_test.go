package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	storagebadger "github.com/ternarybob/scriba/internal/storage/badger"
)

func newTestQueue(t *testing.T, visibility string, maxReceive int) *DurableQueue {
	t.Helper()
	db, err := storagebadger.NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "queue-db"),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	q, err := NewDurableQueue(db, &common.QueueConfig{
		QueueName:         "jobs",
		VisibilityTimeout: visibility,
		MaxReceive:        maxReceive,
	}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	return q
}

func TestEnqueueReceiveDelete(t *testing.T) {
	q := newTestQueue(t, "5m", 3)
	ctx := context.Background()

	msgID, err := q.Enqueue(ctx, "job-1")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if msgID == "" {
		t.Fatal("Expected a message ID")
	}

	msg, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if msg.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", msg.JobID)
	}
	if msg.Receives != 1 {
		t.Errorf("Receives = %d, want 1", msg.Receives)
	}

	if err := q.Delete(ctx, msg.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := q.Receive(ctx); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Expected ErrNoMessage after delete, got %v", err)
	}
}

func TestReceiveEmptyQueue(t *testing.T) {
	q := newTestQueue(t, "5m", 3)
	if _, err := q.Receive(context.Background()); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Expected ErrNoMessage, got %v", err)
	}
}

func TestReceiveRespectsLease(t *testing.T) {
	q := newTestQueue(t, "5m", 3)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := q.Receive(ctx); err != nil {
		t.Fatalf("First Receive() error = %v", err)
	}

	// Leased message must be invisible until the lease expires.
	if _, err := q.Receive(ctx); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Expected ErrNoMessage while leased, got %v", err)
	}
}

func TestReceiveRedeliversAfterLeaseExpiry(t *testing.T) {
	q := newTestQueue(t, "10ms", 3)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	first, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("First Receive() error = %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	second, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("Redelivery Receive() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the same message redelivered")
	}
	if second.Receives != 2 {
		t.Errorf("Receives = %d, want 2", second.Receives)
	}
}

func TestReceiveDropsPoisonedMessage(t *testing.T) {
	q := newTestQueue(t, "10ms", 2)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := q.Receive(ctx); err != nil {
			t.Fatalf("Receive() #%d error = %v", i+1, err)
		}
		time.Sleep(25 * time.Millisecond)
	}

	// Third receive hits the MaxReceive cap and drops the message.
	if _, err := q.Receive(ctx); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Expected poisoned message to be dropped, got %v", err)
	}
	n, err := q.Len()
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Len() = %d, want 0 after drop", n)
	}
}

func TestReceiveOldestFirst(t *testing.T) {
	q := newTestQueue(t, "5m", 3)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "job-old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := q.Enqueue(ctx, "job-new"); err != nil {
		t.Fatal(err)
	}

	msg, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if msg.JobID != "job-old" {
		t.Errorf("Received %q first, want job-old", msg.JobID)
	}
}

func TestDeleteUnknownMessage(t *testing.T) {
	q := newTestQueue(t, "5m", 3)
	if err := q.Delete(context.Background(), "no-such-message"); err != nil {
		t.Errorf("Delete of unknown message should be tolerated, got %v", err)
	}
}
