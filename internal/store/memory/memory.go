// Package memory provides an in-memory Store for tests and the memory
// backend. Access is serialized by a single mutex, matching the
// one-transaction-per-call contract of the port.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"obras/internal/core"
	"obras/internal/store"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	expenses map[string][]core.Expense // keyed by project id, insertion order
	budgets  map[string]core.Budget
	projects map[string]core.Project
	order    []string // project insertion order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string][]core.Expense),
		budgets:  make(map[string]core.Budget),
		projects: make(map[string]core.Project),
	}
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.expenses[e.ProjectID] = append(s.expenses[e.ProjectID], e)
	return e.ID, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.expenses[e.ProjectID]
	for i := range list {
		if list[i].ID == e.ID {
			list[i] = e
			return nil
		}
	}
	// Upsert: absent id inserts.
	s.expenses[e.ProjectID] = append(list, e)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, projectID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.expenses[projectID]...), nil
}

func (s *Store) DeleteExpense(_ context.Context, projectID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.expenses[projectID]
	for i := range list {
		if list[i].ID == id {
			s.expenses[projectID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	// Absent id: silent no-op.
	return nil
}

func (s *Store) DeleteExpensesByProject(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expenses, projectID)
	return nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.budgets[b.ProjectID]; ok {
		b.ID = prev.ID
	} else {
		s.nextID++
		b.ID = s.nextID
	}
	s.budgets[b.ProjectID] = b
	return b.ID, nil
}

func (s *Store) GetBudget(_ context.Context, projectID string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[projectID]
	if !ok {
		return core.Budget{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, projectID)
	return nil
}

func (s *Store) AddProject(_ context.Context, p core.Project) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.projects[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.projects[p.ID] = p
	return p.ID, nil
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return core.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProjects(_ context.Context) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Project, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

func (s *Store) Close() error {
	return nil
}
