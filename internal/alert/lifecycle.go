package alert

import (
	"fmt"
	"time"
)

// Transition names a requested lifecycle step.
type Transition string

const (
	TransitionAssign   Transition = "assign"
	TransitionReject   Transition = "reject"
	TransitionComplete Transition = "complete"
)

// InvalidTransitionError reports a transition the state machine does not
// permit: wrong source state, wrong role, or a terminal state.
type InvalidTransitionError struct {
	From   Status
	Action Transition
	Role   Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s from %s as %s", e.Action, e.From, e.Role)
}

// Changes is the effect of an accepted transition. The caller applies it to
// the stored alert with an expected-status guard so that two concurrent
// transitions cannot both succeed from the same source state.
type Changes struct {
	From        Status
	To          Status
	Assignee    string
	AssignedAt  *time.Time
	CompletedAt *time.Time
}

// transitionRule pairs a permitted (from, action) edge with the roles
// allowed to take it.
type transitionRule struct {
	to    Status
	roles []Role
}

// The full transition table. Creation into pending is open to any source;
// everything after that is role-gated. Terminal states have no outgoing
// edges.
var transitions = map[Status]map[Transition]transitionRule{
	StatusPending: {
		TransitionAssign: {to: StatusAssigned, roles: []Role{RoleAdmin, RoleCaseManager}},
		TransitionReject: {to: StatusRejected, roles: []Role{RoleAdmin, RoleCaseManager}},
	},
	StatusAssigned: {
		// Any investigator may complete, not only the original assignee.
		TransitionComplete: {to: StatusCompleted, roles: []Role{RoleInvestigator}},
	},
}

// Apply is the pure lifecycle function: (current state, requested
// transition, acting role) to (changes) or InvalidTransitionError. It
// touches no storage; atomicity is the store's concern.
func Apply(current Status, action Transition, role Role, assignee string, now time.Time) (*Changes, error) {
	rules, ok := transitions[current]
	if !ok {
		return nil, &InvalidTransitionError{From: current, Action: action, Role: role}
	}
	rule, ok := rules[action]
	if !ok {
		return nil, &InvalidTransitionError{From: current, Action: action, Role: role}
	}

	allowed := false
	for _, r := range rule.roles {
		if r == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &InvalidTransitionError{From: current, Action: action, Role: role}
	}

	changes := &Changes{From: current, To: rule.to}
	switch action {
	case TransitionAssign:
		changes.Assignee = assignee
		changes.AssignedAt = &now
	case TransitionComplete:
		changes.CompletedAt = &now
	}
	return changes, nil
}
