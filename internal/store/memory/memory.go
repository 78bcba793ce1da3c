// Package memory provides a mutex-guarded in-memory store. It backs tests
// and single-process deployments with no persistence requirement.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu     sync.RWMutex
	cases  map[string]cases.Case
	alerts map[string]alert.Alert

	// Error injection for tests.
	CreateAlertError error
	ListCasesError   error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		cases:  make(map[string]cases.Case),
		alerts: make(map[string]alert.Alert),
	}
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

// CreateCase stores a new case.
func (s *Store) CreateCase(ctx context.Context, c cases.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return fmt.Errorf("case %s: %w", c.ID, store.ErrAlreadyExists)
	}
	s.cases[c.ID] = cloneCase(c)
	return nil
}

// GetCase retrieves a case by id.
func (s *Store) GetCase(ctx context.Context, id string) (cases.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return cases.Case{}, fmt.Errorf("case %s: %w", id, store.ErrNotFound)
	}
	return cloneCase(c), nil
}

// ListCases returns every case, newest first.
func (s *Store) ListCases(ctx context.Context) ([]cases.Case, error) {
	if s.ListCasesError != nil {
		return nil, s.ListCasesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cases.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, cloneCase(c))
	}
	sortCases(out)
	return out, nil
}

// ListActiveCases returns only active cases.
func (s *Store) ListActiveCases(ctx context.Context) ([]cases.Case, error) {
	if s.ListCasesError != nil {
		return nil, s.ListCasesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []cases.Case
	for _, c := range s.cases {
		if c.Status == cases.StatusActive {
			out = append(out, cloneCase(c))
		}
	}
	sortCases(out)
	return out, nil
}

// UpdateCaseStatus mutates a case's status.
func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status cases.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return fmt.Errorf("case %s: %w", id, store.ErrNotFound)
	}
	c.Status = status
	s.cases[id] = c
	return nil
}

// CreateAlert stores a new alert.
func (s *Store) CreateAlert(ctx context.Context, a alert.Alert) error {
	if s.CreateAlertError != nil {
		return s.CreateAlertError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; ok {
		return fmt.Errorf("alert %s: %w", a.ID, store.ErrAlreadyExists)
	}
	s.alerts[a.ID] = cloneAlert(a)
	return nil
}

// GetAlert retrieves an alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return alert.Alert{}, fmt.Errorf("alert %s: %w", id, store.ErrNotFound)
	}
	return cloneAlert(a), nil
}

// ListRecentAlerts returns the newest alerts up to limit.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]alert.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateAlertStatus applies lifecycle changes guarded by the expected
// current status.
func (s *Store) UpdateAlertStatus(ctx context.Context, id string, expected alert.Status, changes alert.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alert %s: %w", id, store.ErrNotFound)
	}
	if a.Status != expected {
		return fmt.Errorf("alert %s is %s, expected %s: %w", id, a.Status, expected, store.ErrConflict)
	}
	a.Status = changes.To
	if changes.Assignee != "" {
		a.Assignee = changes.Assignee
	}
	if changes.AssignedAt != nil {
		a.AssignedAt = changes.AssignedAt
	}
	if changes.CompletedAt != nil {
		a.CompletedAt = changes.CompletedAt
	}
	s.alerts[id] = a
	return nil
}

func sortCases(out []cases.Case) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.After(out[j].ReportedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func cloneCase(c cases.Case) cases.Case {
	out := c
	out.Descriptor = append([]float32(nil), c.Descriptor...)
	return out
}

func cloneAlert(a alert.Alert) alert.Alert {
	out := a
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
