package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sra/api/internal/logger"
	"sra/api/internal/questionnaire"
	"sra/api/internal/rbac"
	"sra/api/internal/search"
	"sra/api/internal/store"
	"sra/api/internal/util"
	"sra/api/internal/workflow"
)

// OpenThreadInput names the question by id, or by text for older clients
// that send "<question text>: <message>".
type OpenThreadInput struct {
	AssessmentID int64
	QuestionID   *int
	QuestionText string
	Body         string
}

func (s *Service) OpenThread(ctx context.Context, caller Caller, input OpenThreadInput) (ThreadView, error) {
	ctx, span := startOp(ctx, "workflow.open_thread", caller, input.AssessmentID)
	defer span.End()

	var view ThreadView
	var pending *notification
	err := s.withAssessmentLock(ctx, input.AssessmentID, func(ctx context.Context) error {
		a, err := s.loadAssessment(ctx, input.AssessmentID)
		if err != nil {
			return err
		}
		if !caller.can(rbac.ActionOpenThread) || !canReview(caller, a) {
			return forbidden("Only the assigned approver can open a clarification")
		}
		q, body, err := s.threadQuestion(input)
		if err != nil {
			return err
		}

		clar, _, err := s.loadClarifications(ctx, a.ID)
		if err != nil {
			return err
		}
		if err := clar.CanOpen(q.ID); err != nil {
			return translate(err)
		}

		openedAt := s.now().UTC()
		thread := store.Thread{
			ID:           util.NewID(),
			AssessmentID: a.ID,
			QuestionID:   &q.ID,
			QuestionText: q.Text + ": " + body,
			OpenedBy:     caller.UserID,
			Status:       workflow.ThreadOpen,
			CreatedAt:    openedAt,
		}
		first := store.Comment{ID: util.NewID(), ThreadID: thread.ID, AuthorID: caller.UserID, Body: body, CreatedAt: openedAt}
		if err := s.store.CreateThread(ctx, thread, first); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return translate(workflow.ErrOpenThreadExists)
			}
			return fmt.Errorf("create thread: %w", err)
		}
		created, err := s.store.GetThread(ctx, thread.ID)
		if err != nil {
			return fmt.Errorf("reload thread: %w", err)
		}
		threadFields := logger.LogFields{ThreadID: logger.Ptr(created.ID)}
		ctx = logger.WithLogFields(ctx, threadFields)
		logger.Annotate(ctx, threadFields)
		slog.InfoContext(ctx, "clarification opened", "question_id", q.ID)

		s.search.IndexThread(search.ThreadFromStore(created, a.OwnerUserID))
		to, question := s.emailOf(ctx, &a.OwnerUserID), q.Text
		pending = &notification{kind: "thread_opened", send: func(n Notifier) error {
			return n.NotifyThreadOpened(to, a.Title, a.ID, question, body)
		}}
		view = newThreadView(created)
		return nil
	})
	span.RecordError(err)
	if err == nil {
		s.deliver(ctx, pending)
	}
	return view, err
}

// threadQuestion resolves the question a new thread binds to, and its
// message. A legacy text carries the message after the question text.
func (s *Service) threadQuestion(input OpenThreadInput) (questionnaire.Question, string, error) {
	body := strings.TrimSpace(input.Body)
	var (
		q  questionnaire.Question
		ok bool
	)
	switch {
	case input.QuestionID != nil:
		q, ok = s.catalog.ByID(*input.QuestionID)
	case strings.TrimSpace(input.QuestionText) != "":
		q, ok = s.catalog.MatchText(strings.TrimSpace(input.QuestionText))
		if ok && body == "" {
			rest := strings.TrimSpace(input.QuestionText)
			if i := strings.Index(rest, q.Text); i >= 0 {
				rest = rest[i+len(q.Text):]
			}
			body = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
	default:
		return questionnaire.Question{}, "", validationError("question_id or question_text is required", nil)
	}
	if !ok {
		return questionnaire.Question{}, "", validationError("unknown question", nil)
	}
	if body == "" {
		return questionnaire.Question{}, "", validationError("body is required", nil)
	}
	return q, body, nil
}

func (s *Service) ListThreads(ctx context.Context, caller Caller, assessmentID int64) ([]ThreadView, error) {
	if _, err := s.viewableAssessment(ctx, caller, assessmentID); err != nil {
		return nil, err
	}
	threads, err := s.store.ListThreads(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	out := make([]ThreadView, 0, len(threads))
	for _, t := range threads {
		if t.QuestionID == nil {
			if q, ok := s.catalog.MatchText(t.QuestionText); ok {
				t.QuestionID = &q.ID
			}
		}
		out = append(out, newThreadView(t))
	}
	return out, nil
}

func (s *Service) loadThread(ctx context.Context, id int64) (store.Thread, error) {
	t, err := s.store.GetThread(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Thread{}, notFound("Thread not found")
	}
	if err != nil {
		return store.Thread{}, fmt.Errorf("load thread: %w", err)
	}
	return t, nil
}

// AddComment appends to an open thread. The owner and the reviewing approver
// may both reply; the other side is notified.
func (s *Service) AddComment(ctx context.Context, caller Caller, threadID int64, body string) (CommentView, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return CommentView{}, validationError("body is required", nil)
	}
	t, err := s.loadThread(ctx, threadID)
	if err != nil {
		return CommentView{}, err
	}
	ctx, span := startOp(ctx, "workflow.add_comment", caller, t.AssessmentID)
	defer span.End()
	ctx = logger.WithLogFields(ctx, logger.LogFields{ThreadID: logger.Ptr(threadID)})

	var view CommentView
	var pending *notification
	err = s.withAssessmentLock(ctx, t.AssessmentID, func(ctx context.Context) error {
		t, err := s.loadThread(ctx, threadID)
		if err != nil {
			return err
		}
		a, err := s.loadAssessment(ctx, t.AssessmentID)
		if err != nil {
			return err
		}
		isOwner := caller.UserID == a.OwnerUserID
		if !caller.can(rbac.ActionComment) || (!isOwner && !canReview(caller, a)) {
			return forbidden("Not authorized to comment on this thread")
		}
		if err := workflow.CanComment(t.Status); err != nil {
			return translate(err)
		}

		comment := store.Comment{ID: util.NewID(), ThreadID: t.ID, AuthorID: caller.UserID, Body: body, CreatedAt: s.now().UTC()}
		if err := s.store.CreateComment(ctx, comment); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		comment.AuthorEmail = caller.Email
		if comments, err := s.store.ListComments(ctx, t.ID); err == nil {
			for _, c := range comments {
				if c.ID == comment.ID {
					comment = c
				}
			}
		}

		recipient := &a.OwnerUserID
		if isOwner {
			recipient = a.ApproverUserID
			if recipient == nil {
				recipient = &t.OpenedBy
			}
		}
		if to := s.emailOf(ctx, recipient); to != "" {
			author := caller.Email
			pending = &notification{kind: "comment", send: func(n Notifier) error {
				return n.NotifyComment(to, a.Title, a.ID, author, body)
			}}
		}
		view = newCommentView(comment)
		return nil
	})
	span.RecordError(err)
	if err == nil {
		s.deliver(ctx, pending)
	}
	return view, err
}

// ListComments returns the thread's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, caller Caller, threadID int64) ([]CommentView, error) {
	t, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.viewableAssessment(ctx, caller, t.AssessmentID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, newCommentView(c))
	}
	return out, nil
}

// EndThread resolves an open thread. Only the reviewing approver may do so.
func (s *Service) EndThread(ctx context.Context, caller Caller, threadID int64) (ThreadView, error) {
	t, err := s.loadThread(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	ctx, span := startOp(ctx, "workflow.end_thread", caller, t.AssessmentID)
	defer span.End()
	ctx = logger.WithLogFields(ctx, logger.LogFields{ThreadID: logger.Ptr(threadID)})

	var view ThreadView
	err = s.withAssessmentLock(ctx, t.AssessmentID, func(ctx context.Context) error {
		t, err := s.loadThread(ctx, threadID)
		if err != nil {
			return err
		}
		a, err := s.loadAssessment(ctx, t.AssessmentID)
		if err != nil {
			return err
		}
		if !caller.can(rbac.ActionEndThread) || !canReview(caller, a) {
			return forbidden("Only the assigned approver can end a clarification")
		}
		if _, err := workflow.Resolve(t.Status); err != nil {
			return translate(err)
		}
		ok, err := s.store.ResolveThread(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("resolve thread: %w", err)
		}
		if !ok {
			return translate(workflow.ErrAlreadyResolved)
		}
		resolved, err := s.loadThread(ctx, t.ID)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "clarification resolved")
		s.search.IndexThread(search.ThreadFromStore(resolved, a.OwnerUserID))
		view = newThreadView(resolved)
		return nil
	})
	span.RecordError(err)
	return view, err
}
