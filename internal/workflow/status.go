package workflow

import (
	"errors"
	"fmt"
	"slices"
)

type Status string

const (
	StatusScreening        Status = "screening"
	StatusInDPIA           Status = "in_dpia"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusCompleted        Status = "completed"
	StatusRedFlag          Status = "red_flag"
)

var allStatuses = []Status{
	StatusScreening, StatusInDPIA, StatusAwaitingApproval, StatusChangesRequested,
	StatusApproved, StatusCompleted, StatusRedFlag,
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrNotADecision      = errors.New("status is not an approver decision")
)

// decisions lists what an approver may move each status to.
var decisions = map[Status][]Status{
	StatusInDPIA:           {StatusCompleted, StatusRedFlag},
	StatusAwaitingApproval: {StatusApproved, StatusChangesRequested, StatusCompleted, StatusRedFlag},
	StatusRedFlag:          {StatusCompleted},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !slices.Contains(allStatuses, st) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// IsDecision reports whether s can be the target of an approver decision.
func IsDecision(s Status) bool {
	switch s {
	case StatusApproved, StatusChangesRequested, StatusCompleted, StatusRedFlag:
		return true
	default:
		return false
	}
}

// Decide validates an approver moving current to target.
func Decide(current, target Status) (Status, error) {
	if !IsDecision(target) {
		return "", fmt.Errorf("%w: %q", ErrNotADecision, target)
	}
	if current == StatusScreening {
		return "", fmt.Errorf("%w: assessment is still in screening", ErrInvalidTransition)
	}
	if !slices.Contains(decisions[current], target) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
	return target, nil
}

// Outcome is the result of an owner submission.
type Outcome struct {
	Next          Status
	AutoCompleted bool
	Resubmission  bool
}

// Submit decides where an owner submission moves the assessment. gateOpen is
// the submitted answer to the personal-information gate question.
func Submit(current Status, gateOpen bool, threads Clarifications) (Outcome, error) {
	if current == StatusScreening {
		if !gateOpen {
			return Outcome{Next: StatusCompleted, AutoCompleted: true}, nil
		}
		return Outcome{Next: StatusAwaitingApproval}, nil
	}
	if !OwnerMayResubmit(current, threads) {
		return Outcome{}, fmt.Errorf("%w: cannot resubmit from %s without an open clarification", ErrInvalidTransition, current)
	}
	return Outcome{Next: StatusAwaitingApproval, Resubmission: true}, nil
}
