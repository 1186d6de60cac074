package store

import (
	"errors"
	"time"

	"sra/api/internal/workflow"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Assessment struct {
	ID             int64
	Title          string
	OwnerUserID    int64
	ApproverUserID *int64
	Status         workflow.Status
	IsNew          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AssessmentSummary is an assessment with its people resolved to emails.
type AssessmentSummary struct {
	Assessment
	OwnerEmail    string
	ApproverEmail *string
}

// Answer is one persisted screening answer row.
type Answer struct {
	ID           int64
	AssessmentID int64
	QuestionText string
	Answer       bool
	Notes        string
	CreatedAt    time.Time
}

type Thread struct {
	ID           int64
	AssessmentID int64
	// QuestionID is nil for rows written before question binding was stored.
	QuestionID   *int
	QuestionText string
	OpenedBy     int64
	OpenerEmail  string
	Status       workflow.ThreadStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

type Comment struct {
	ID          int64
	ThreadID    int64
	AuthorID    int64
	AuthorEmail string
	Body        string
	CreatedAt   time.Time
}

// AssessmentFilter narrows list and search queries. A nil OwnerID means all.
type AssessmentFilter struct {
	OwnerID *int64
	Query   string
	Limit   int
}
