package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tracelight/ppm-backend/internal/jobs"
)

func TestPublishAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	job := &jobs.RecomputeVarianceJob{RequestedBy: "u-1"}
	if err := q.PublishRecompute(ctx, job); err != nil {
		t.Fatalf("PublishRecompute: %v", err)
	}

	if job.JobID == "" {
		t.Error("no job ID assigned")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", job.MaxRetries)
	}

	saved, err := store.GetJob(ctx, job.JobID)
	if err != nil {
		t.Fatalf("job not saved: %v", err)
	}
	if saved.RequestedBy != "u-1" {
		t.Errorf("saved job = %+v", saved)
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	processed := make(chan string, 1)
	handler := func(ctx context.Context, job *jobs.RecomputeVarianceJob) error {
		job.GroupCount = 7
		processed <- job.JobID
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.RecomputeVarianceJob{RequestedBy: "u-1"}
	if err := q.PublishRecompute(ctx, job); err != nil {
		t.Fatalf("PublishRecompute: %v", err)
	}

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	// The terminal save races the handler signal slightly; poll.
	deadline := time.Now().Add(2 * time.Second)
	for {
		saved, err := store.GetJob(ctx, job.JobID)
		if err == nil && saved.Status == jobs.JobStatusCompleted {
			if saved.GroupCount != 7 {
				t.Errorf("group count = %d, want 7", saved.GroupCount)
			}
			if saved.CompletedAt == nil {
				t.Error("no completion timestamp")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reached completed state: %+v", saved)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *jobs.RecomputeVarianceJob) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient failure")
		}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.RecomputeVarianceJob{RequestedBy: "u-1"}
	if err := q.PublishRecompute(ctx, job); err != nil {
		t.Fatalf("PublishRecompute: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		saved, err := store.GetJob(ctx, job.JobID)
		if err == nil && saved.Status == jobs.JobStatusCompleted {
			if saved.RetryCount != 2 {
				t.Errorf("retry count = %d, want 2", saved.RetryCount)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed after retries: %+v", saved)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("handler attempts = %d, want 3", got)
	}
}

func TestQueueExhaustsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	handler := func(ctx context.Context, job *jobs.RecomputeVarianceJob) error {
		return errors.New("permanent failure")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.RecomputeVarianceJob{RequestedBy: "u-1", MaxRetries: 1}
	if err := q.PublishRecompute(ctx, job); err != nil {
		t.Fatalf("PublishRecompute: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		saved, err := store.GetJob(ctx, job.JobID)
		if err == nil && saved.Status == jobs.JobStatusFailed {
			if saved.Error == "" {
				t.Error("failed job carries no error message")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reached failed state: %+v", saved)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublishAfterClose(t *testing.T) {
	q := NewQueue(10, NewStore())
	q.Close()

	err := q.PublishRecompute(context.Background(), &jobs.RecomputeVarianceJob{})
	if err == nil {
		t.Fatal("expected an error publishing to a closed queue")
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		store.SaveJob(ctx, &jobs.RecomputeVarianceJob{
			JobID:     id,
			Status:    jobs.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	list, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(list) != 3 || list[0].JobID != "new" || list[2].JobID != "old" {
		t.Errorf("order = %v", []string{list[0].JobID, list[1].JobID, list[2].JobID})
	}

	limited, _ := store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	if len(limited) != 1 || limited[0].JobID != "mid" {
		t.Errorf("limit/offset returned %v", limited)
	}
}
