// Package alert holds the alert record, its verification state machine and
// the matching service that creates alerts from descriptor matches.
package alert

import (
	"fmt"
	"time"
)

// Status is the verification state of an alert.
type Status string

const (
	// StatusPending is the only initial state: the match awaits triage.
	StatusPending Status = "pending"
	// StatusAssigned means an administrator or case manager handed the
	// alert to a field officer.
	StatusAssigned Status = "assigned"
	// StatusCompleted is terminal: a field officer resolved the alert.
	StatusCompleted Status = "completed"
	// StatusRejected is terminal: triage dismissed the match.
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Role is the acting user's role. A closed enumeration: authorization
// decisions branch on these values only, never on free-form strings.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleCaseManager  Role = "case_manager"
	RoleInvestigator Role = "investigator"
	RoleCitizen      Role = "citizen"
	RoleSystem       Role = "system"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCaseManager, RoleInvestigator, RoleCitizen, RoleSystem:
		return true
	}
	return false
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// Alert records a candidate match awaiting human verification. It references
// a case by id without owning it; the case may be edited or closed
// independently. Alerts are mutated only through lifecycle transitions and
// never deleted by normal operation.
type Alert struct {
	ID          string     `json:"id"`
	CaseID      string     `json:"case_id"`
	Similarity  float64    `json:"similarity"`
	Confidence  float64    `json:"confidence"`
	SourceRole  Role       `json:"source_role"`
	Status      Status     `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Location    string     `json:"location,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	PhotoRef    string     `json:"photo_ref,omitempty"`
	// Metadata carries free-form context such as the uploader-supplied
	// person name or the descriptor origin.
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
