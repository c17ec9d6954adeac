package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tracelight/ppm-backend/internal/jobs"
)

// Queue is an in-memory publisher/consumer backed by a channel. It is
// suitable for single-instance deployments and tests; multi-instance
// deployments need an external queue.
type Queue struct {
	jobChan   chan *jobs.RecomputeVarianceJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	closed    bool
}

// NewQueue creates an in-memory job queue. bufferSize determines how
// many jobs can be queued before PublishRecompute blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan:   make(chan *jobs.RecomputeVarianceJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   2,
	}
}

// PublishRecompute implements the Publisher interface.
func (q *Queue) PublishRecompute(ctx context.Context, job *jobs.RecomputeVarianceJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one job, retrying up to MaxRetries. Recomputes are
// idempotent, so retries never double-apply.
func (q *Queue) processJob(ctx context.Context, job *jobs.RecomputeVarianceJob, handler jobs.JobHandler) {
	now := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now
	q.save(ctx, job)

	var err error
	for {
		err = handler(ctx, job)
		if err == nil || job.RetryCount >= job.MaxRetries || ctx.Err() != nil {
			break
		}
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		job.Error = err.Error()
		q.save(ctx, job)
	}

	done := time.Now().UTC()
	job.CompletedAt = &done
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.RecomputeVarianceJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface. It waits for in-flight
// jobs, or for ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.closeChan)
	return nil
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
