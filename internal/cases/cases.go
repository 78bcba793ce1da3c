// Package cases defines missing-person case records.
package cases

import (
	"fmt"
	"time"
)

// Status of a missing-person case. Only active cases participate in
// matching; found and closed cases stay in the store for history.
type Status string

const (
	StatusActive Status = "active"
	StatusFound  Status = "found"
	StatusClosed Status = "closed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFound, StatusClosed:
		return true
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown case status %q", raw)
	}
	return s, nil
}

// Case is a registered missing-person record with one reference descriptor.
// The matching pipeline reads cases but never mutates them; status changes
// come from case managers.
type Case struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Age              int       `json:"age,omitempty"`
	Status           Status    `json:"status"`
	LastSeenLocation string    `json:"last_seen_location,omitempty"`
	ReportedAt       time.Time `json:"reported_at"`
	PhotoRef         string    `json:"photo_ref,omitempty"`
	Descriptor       []float32 `json:"-"`
	// DescriptorOrigin records whether the reference descriptor came from
	// the model or the degraded fallback path ("genuine" / "fallback").
	DescriptorOrigin string `json:"descriptor_origin,omitempty"`
}
