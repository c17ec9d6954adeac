package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// ProjectLinker resolves project identifier strings to durable
// project references, auto-creating projects that do not exist yet.
// Resolutions are memoized for the lifetime of one import run; the
// cache is not shared across runs, so the persisted store's unique
// constraint remains the single source of truth for existence.
type ProjectLinker struct {
	projects store.ProjectStore
	cache    map[string]*domain.Project
}

// NewProjectLinker creates a linker with an empty per-run cache.
func NewProjectLinker(projects store.ProjectStore) *ProjectLinker {
	return &ProjectLinker{
		projects: projects,
		cache:    make(map[string]*domain.Project),
	}
}

// Resolve returns the project for the given identifier string,
// creating it (status active, health green, description derived from
// the WBS element when present) if it exists neither in the cache nor
// in the store. A unique-constraint violation during creation means a
// concurrent import created the project first; the linker re-fetches
// and treats that as a hit.
func (l *ProjectLinker) Resolve(ctx context.Context, number, wbsElement string) (*domain.Project, error) {
	if p, ok := l.cache[number]; ok {
		return p, nil
	}

	p, err := l.projects.GetByNumber(ctx, number)
	if err == nil {
		l.cache[number] = p
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("Resolve: lookup project %q: %w", number, err)
	}

	created := &domain.Project{
		ID:          uuid.NewString(),
		Number:      number,
		Description: projectDescription(number, wbsElement),
		Status:      domain.ProjectStatusActive,
		Health:      domain.ProjectHealthGreen,
		CreatedAt:   time.Now().UTC(),
	}

	err = l.projects.Create(ctx, created)
	if err == nil {
		l.cache[number] = created
		return created, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("Resolve: create project %q: %w", number, err)
	}

	// Lost the creation race; the winner's row is authoritative.
	p, err = l.projects.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("Resolve: re-fetch project %q after conflict: %w", number, err)
	}
	l.cache[number] = p
	return p, nil
}

func projectDescription(number, wbsElement string) string {
	if wbsElement != "" {
		return fmt.Sprintf("Project %s (WBS %s)", number, wbsElement)
	}
	return "Project " + number
}
