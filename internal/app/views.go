package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinzhu/copier"

	"sra/api/internal/questionnaire"
	"sra/api/internal/store"
	"sra/api/internal/workflow"
)

// Ids travel as strings.

// copyView maps src onto dst by field name and logs a mapping failure.
func copyView(dst, src any) {
	if err := copier.Copy(dst, src); err != nil {
		slog.Error("view mapping failed", "view", fmt.Sprintf("%T", dst), "error", err)
	}
}

type UserView struct {
	ID        int64     `json:"id,string"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u store.User) UserView {
	var view UserView
	copyView(&view, &u)
	view.Name = displayName(u.Email)
	return view
}

// displayName is the local part of an email address.
func displayName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

type AssessmentView struct {
	ID             int64           `json:"id,string"`
	Title          string          `json:"title"`
	Status         workflow.Status `json:"status"`
	IsNew          bool            `json:"is_new"`
	OwnerUserID    int64           `json:"owner_user_id,string"`
	OwnerEmail     string          `json:"owner_email"`
	OwnerName      string          `json:"owner_name"`
	ApproverUserID *int64          `json:"approver_user_id,string"`
	ApproverEmail  *string         `json:"approver_email"`
	ApproverName   *string         `json:"approver_name"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func newAssessmentView(summary store.AssessmentSummary) AssessmentView {
	var view AssessmentView
	copyView(&view, &summary)
	view.OwnerName = displayName(summary.OwnerEmail)
	if summary.ApproverEmail != nil {
		name := displayName(*summary.ApproverEmail)
		view.ApproverName = &name
	}
	return view
}

type ThreadView struct {
	ID           int64                 `json:"id,string"`
	AssessmentID int64                 `json:"assessment_id,string"`
	QuestionID   *int                  `json:"question_id"`
	QuestionText string                `json:"question_text"`
	OpenedBy     int64                 `json:"opened_by,string"`
	OpenerEmail  string                `json:"opener_email"`
	Status       workflow.ThreadStatus `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
	ResolvedAt   *time.Time            `json:"resolved_at,omitempty"`
}

func newThreadView(t store.Thread) ThreadView {
	var view ThreadView
	copyView(&view, &t)
	return view
}

type CommentView struct {
	ID          int64     `json:"id,string"`
	ThreadID    int64     `json:"thread_id,string"`
	AuthorID    int64     `json:"author_id,string"`
	AuthorEmail string    `json:"author_email"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

func newCommentView(c store.Comment) CommentView {
	var view CommentView
	copyView(&view, &c)
	return view
}

// QuestionView is one applicable question with what is known about it.
type QuestionView struct {
	questionnaire.Question
	Record   *questionnaire.Record `json:"record,omitempty"`
	Value    *questionnaire.Value  `json:"value,omitempty"`
	Thread   *ThreadView           `json:"thread,omitempty"`
	Editable bool                  `json:"editable"`
}

type QuestionsView struct {
	AssessmentID int64           `json:"assessment_id,string"`
	Status       workflow.Status `json:"status"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	Applicable   []int           `json:"applicable"`
	Questions    []QuestionView  `json:"questions"`
	CanResubmit  bool            `json:"can_resubmit"`
}

// SubmitResult reports where a submission left the assessment.
type SubmitResult struct {
	Status  workflow.Status `json:"next_status"`
	Message string          `json:"message"`
}

func answerRecords(rows []store.Answer) []questionnaire.Record {
	records := make([]questionnaire.Record, len(rows))
	for i, row := range rows {
		records[i] = questionnaire.Record{Question: row.QuestionText, Answer: row.Answer, Notes: row.Notes}
	}
	return records
}
