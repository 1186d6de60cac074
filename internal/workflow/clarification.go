package workflow

import "errors"

type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "open"
	ThreadResolved ThreadStatus = "resolved"
)

var (
	ErrThreadClosed     = errors.New("thread is resolved")
	ErrAlreadyResolved  = errors.New("thread already resolved")
	ErrOpenThreadExists = errors.New("an open thread already exists for this question")
)

// Clarification is the part of a thread the predicates care about.
type Clarification struct {
	QuestionID int
	Status     ThreadStatus
}

type Clarifications []Clarification

func (c Clarifications) HasOpenFor(questionID int) bool {
	for _, t := range c {
		if t.QuestionID == questionID && t.Status == ThreadOpen {
			return true
		}
	}
	return false
}

func (c Clarifications) AnyOpen() bool {
	for _, t := range c {
		if t.Status == ThreadOpen {
			return true
		}
	}
	return false
}

// CanOpen enforces at most one open thread per question.
func (c Clarifications) CanOpen(questionID int) error {
	if c.HasOpenFor(questionID) {
		return ErrOpenThreadExists
	}
	return nil
}

// OwnerMayEdit: any question while screening, afterwards only questions with
// an open clarification.
func OwnerMayEdit(isOwner bool, status Status, threads Clarifications, questionID int) bool {
	if !isOwner {
		return false
	}
	return status == StatusScreening || threads.HasOpenFor(questionID)
}

func OwnerMayResubmit(status Status, threads Clarifications) bool {
	return status == StatusAwaitingApproval || status == StatusChangesRequested || threads.AnyOpen()
}

func CanComment(s ThreadStatus) error {
	if s != ThreadOpen {
		return ErrThreadClosed
	}
	return nil
}

// Resolve moves an open thread to resolved.
func Resolve(s ThreadStatus) (ThreadStatus, error) {
	if s == ThreadResolved {
		return s, ErrAlreadyResolved
	}
	return ThreadResolved, nil
}
