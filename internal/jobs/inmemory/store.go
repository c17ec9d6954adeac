package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tracelight/ppm-backend/internal/jobs"
)

// Store is an in-memory implementation of JobStore. It is safe for
// concurrent use; data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.RecomputeVarianceJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.RecomputeVarianceJob)}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.RecomputeVarianceJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to keep callers from mutating stored state.
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RecomputeVarianceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs implements the JobStore interface, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RecomputeVarianceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.RecomputeVarianceJob
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.RecomputeVarianceJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
