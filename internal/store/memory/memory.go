// Package memory is an in-memory implementation of the store
// interfaces. It mirrors the relational backend's semantics,
// including ErrConflict on natural-key collisions, and is safe for
// concurrent use. Data is lost on restart; it exists for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// Store implements every repository interface over mutex-guarded
// maps.
type Store struct {
	mu          sync.RWMutex
	projects    map[string]*domain.Project // keyed by project number
	commitments map[commitmentKey]*domain.Commitment
	actuals     map[string]*domain.Actual // keyed by fi_doc_no
	variances   map[varianceKey]*domain.FinancialVariance
	importLogs  map[string]*domain.ImportLog
	logOrder    []string // import log ids, insertion order
}

type commitmentKey struct {
	PONumber string
	POLineNr int
}

type varianceKey struct {
	ProjectNumber string
	WBSElement    string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		projects:    make(map[string]*domain.Project),
		commitments: make(map[commitmentKey]*domain.Commitment),
		actuals:     make(map[string]*domain.Actual),
		variances:   make(map[varianceKey]*domain.FinancialVariance),
		importLogs:  make(map[string]*domain.ImportLog),
	}
}

// GetByNumber implements store.ProjectStore.
func (s *Store) GetByNumber(ctx context.Context, number string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Create implements store.ProjectStore.
func (s *Store) Create(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[p.Number]; exists {
		return store.ErrConflict
	}
	cp := *p
	s.projects[p.Number] = &cp
	return nil
}

// Exists implements store.CommitmentStore.
func (s *Store) Exists(ctx context.Context, poNumber string, poLineNr int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.commitments[commitmentKey{PONumber: poNumber, POLineNr: poLineNr}]
	return ok, nil
}

// Insert implements store.CommitmentStore.
func (s *Store) Insert(ctx context.Context, c *domain.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := commitmentKey{PONumber: c.PONumber, POLineNr: c.POLineNr}
	if _, exists := s.commitments[key]; exists {
		return store.ErrConflict
	}
	cp := *c
	s.commitments[key] = &cp
	return nil
}

// List implements store.CommitmentStore.
func (s *Store) List(ctx context.Context, projectNumbers ...string) ([]*domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := numberSet(projectNumbers)
	var result []*domain.Commitment
	for _, c := range s.commitments {
		if filter != nil && !filter[c.ProjectNumber] {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PONumber != result[j].PONumber {
			return result[i].PONumber < result[j].PONumber
		}
		return result[i].POLineNr < result[j].POLineNr
	})
	return result, nil
}

// actualView exposes the store.ActualStore method set. A separate
// view avoids a name clash with CommitmentStore.Exists/Insert/List.
type actualView struct{ s *Store }

// Actuals returns the store.ActualStore view of this store.
func (s *Store) Actuals() store.ActualStore { return actualView{s: s} }

// Commitments returns the store.CommitmentStore view of this store.
func (s *Store) Commitments() store.CommitmentStore { return s }

func (v actualView) Exists(ctx context.Context, fiDocNo string) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	_, ok := v.s.actuals[fiDocNo]
	return ok, nil
}

func (v actualView) Insert(ctx context.Context, a *domain.Actual) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, exists := v.s.actuals[a.FIDocNo]; exists {
		return store.ErrConflict
	}
	cp := *a
	v.s.actuals[a.FIDocNo] = &cp
	return nil
}

func (v actualView) List(ctx context.Context, projectNumbers ...string) ([]*domain.Actual, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	filter := numberSet(projectNumbers)
	var result []*domain.Actual
	for _, a := range v.s.actuals {
		if filter != nil && !filter[a.ProjectNumber] {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FIDocNo < result[j].FIDocNo
	})
	return result, nil
}

// Replace implements store.VarianceStore.
func (s *Store) Replace(ctx context.Context, variances []*domain.FinancialVariance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range variances {
		cp := *v
		s.variances[varianceKey{ProjectNumber: v.ProjectNumber, WBSElement: v.WBSElement}] = &cp
	}
	return nil
}

// varianceView exposes the store.VarianceStore method set.
type varianceView struct{ s *Store }

// Variances returns the store.VarianceStore view of this store.
func (s *Store) Variances() store.VarianceStore { return varianceView{s: s} }

func (v varianceView) Replace(ctx context.Context, variances []*domain.FinancialVariance) error {
	return v.s.Replace(ctx, variances)
}

func (v varianceView) List(ctx context.Context, projectNumbers ...string) ([]*domain.FinancialVariance, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	filter := numberSet(projectNumbers)
	var result []*domain.FinancialVariance
	for _, fv := range v.s.variances {
		if filter != nil && !filter[fv.ProjectNumber] {
			continue
		}
		cp := *fv
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ProjectNumber != result[j].ProjectNumber {
			return result[i].ProjectNumber < result[j].ProjectNumber
		}
		return result[i].WBSElement < result[j].WBSElement
	})
	return result, nil
}

// ImportLogs returns the store.ImportLogStore view of this store.
func (s *Store) ImportLogs() store.ImportLogStore { return importLogView{s: s} }

type importLogView struct{ s *Store }

func (v importLogView) Create(ctx context.Context, l *domain.ImportLog) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, exists := v.s.importLogs[l.ID]; exists {
		return store.ErrConflict
	}
	cp := cloneImportLog(l)
	v.s.importLogs[l.ID] = cp
	v.s.logOrder = append(v.s.logOrder, l.ID)
	return nil
}

func (v importLogView) Update(ctx context.Context, l *domain.ImportLog) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, exists := v.s.importLogs[l.ID]; !exists {
		return store.ErrNotFound
	}
	v.s.importLogs[l.ID] = cloneImportLog(l)
	return nil
}

func (v importLogView) Get(ctx context.Context, id string) (*domain.ImportLog, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	l, ok := v.s.importLogs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneImportLog(l), nil
}

func (v importLogView) List(ctx context.Context, filter store.ImportLogFilter) ([]*domain.ImportLog, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	// Newest first.
	var result []*domain.ImportLog
	for i := len(v.s.logOrder) - 1; i >= 0; i-- {
		l := v.s.importLogs[v.s.logOrder[i]]
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		result = append(result, cloneImportLog(l))
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*domain.ImportLog{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func cloneImportLog(l *domain.ImportLog) *domain.ImportLog {
	cp := *l
	if l.Errors != nil {
		cp.Errors = append([]domain.RowError(nil), l.Errors...)
	}
	return &cp
}

func numberSet(numbers []string) map[string]bool {
	if len(numbers) == 0 {
		return nil
	}
	set := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		set[n] = true
	}
	return set
}

// Interface conformance checks.
var (
	_ store.ProjectStore    = (*Store)(nil)
	_ store.CommitmentStore = (*Store)(nil)
	_ store.ActualStore     = actualView{}
	_ store.VarianceStore   = varianceView{}
	_ store.ImportLogStore  = importLogView{}
)
