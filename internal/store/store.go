// Package store defines the persistence contracts for cases and alerts.
// Backends live in subpackages; callers depend on these interfaces only.
package store

import (
	"context"
	"errors"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
)

var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a conditional update whose expectation no longer
	// holds, e.g. an alert transition racing another transition.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists signals a duplicate record id.
	ErrAlreadyExists = errors.New("already exists")
)

// CaseStore owns missing-person case records.
type CaseStore interface {
	// CreateCase stores a new case. Fails with ErrAlreadyExists on id reuse.
	CreateCase(ctx context.Context, c cases.Case) error
	// GetCase retrieves a case by id, ErrNotFound if absent.
	GetCase(ctx context.Context, id string) (cases.Case, error)
	// ListCases returns every case, newest first.
	ListCases(ctx context.Context) ([]cases.Case, error)
	// ListActiveCases returns only cases whose status is active; these are
	// the matching candidates. Found and closed cases stay stored but are
	// excluded here.
	ListActiveCases(ctx context.Context) ([]cases.Case, error)
	// UpdateCaseStatus mutates a case's status, ErrNotFound if absent.
	UpdateCaseStatus(ctx context.Context, id string, status cases.Status) error
}

// AlertStore owns alert records. Alerts are soft-lifecycle only: they are
// created once and advanced by conditional updates, never deleted.
type AlertStore interface {
	// CreateAlert stores a new pending alert.
	CreateAlert(ctx context.Context, a alert.Alert) error
	// GetAlert retrieves an alert by id, ErrNotFound if absent.
	GetAlert(ctx context.Context, id string) (alert.Alert, error)
	// ListRecentAlerts returns the newest alerts up to limit.
	ListRecentAlerts(ctx context.Context, limit int) ([]alert.Alert, error)
	// UpdateAlertStatus applies lifecycle changes with a read-modify-write
	// guard: the update succeeds only while the stored status still equals
	// expected. A status that moved underneath returns ErrConflict; an
	// unknown id returns ErrNotFound.
	UpdateAlertStatus(ctx context.Context, id string, expected alert.Status, changes alert.Changes) error
}

// Store combines both record families; every backend implements it.
type Store interface {
	CaseStore
	AlertStore
	Close() error
}
