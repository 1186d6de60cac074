package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"sra/api/internal/history"
	"sra/api/internal/questionnaire"
	"sra/api/internal/rbac"
	"sra/api/internal/search"
	"sra/api/internal/store"
	"sra/api/internal/util"
	"sra/api/internal/workflow"
)

const (
	messageSubmitted     = "Screening submitted successfully"
	messageResubmitted   = "Screening resubmitted for approval"
	messageAutoCompleted = "Risk Assessment is not required since no PI data is collected. Assessment has been auto-completed."
)

type CreateAssessmentInput struct {
	Title          string
	IsNew          bool
	ApproverUserID *int64
}

func (s *Service) CreateAssessment(ctx context.Context, caller Caller, input CreateAssessmentInput) (AssessmentView, error) {
	ctx, span := startOp(ctx, "workflow.create_assessment", caller, 0)
	defer span.End()

	if !caller.can(rbac.ActionCreateAssessment) {
		return AssessmentView{}, forbidden("Only owners can create assessments")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return AssessmentView{}, validationError("title is required", nil)
	}
	if input.ApproverUserID != nil {
		approver, err := s.store.GetUserByID(ctx, *input.ApproverUserID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && approver.Role != string(rbac.RoleApprover)) {
			return AssessmentView{}, validationError("approver_user_id must name an approver", nil)
		}
		if err != nil {
			span.RecordError(err)
			return AssessmentView{}, fmt.Errorf("load approver: %w", err)
		}
	}

	a := store.Assessment{
		ID:             util.NewID(),
		Title:          title,
		OwnerUserID:    caller.UserID,
		ApproverUserID: input.ApproverUserID,
		Status:         workflow.StatusScreening,
		IsNew:          input.IsNew,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateAssessment(ctx, a); err != nil {
		span.RecordError(err)
		return AssessmentView{}, fmt.Errorf("create assessment: %w", err)
	}
	created, err := s.store.GetAssessment(ctx, a.ID)
	if err != nil {
		return AssessmentView{}, fmt.Errorf("reload assessment: %w", err)
	}
	summary := s.summarize(ctx, created)
	s.search.IndexAssessment(search.AssessmentFromStore(summary))
	slog.InfoContext(ctx, "assessment created", "assessment_id", a.ID)
	return newAssessmentView(summary), nil
}

// ListAssessments returns everything to approvers and their own to owners.
func (s *Service) ListAssessments(ctx context.Context, caller Caller, query string) ([]AssessmentView, error) {
	filter := store.AssessmentFilter{Query: strings.TrimSpace(query)}
	if !caller.can(rbac.ActionReviewAll) {
		filter.OwnerID = &caller.UserID
	}
	items, err := s.store.ListAssessments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	out := make([]AssessmentView, 0, len(items))
	for _, item := range items {
		out = append(out, newAssessmentView(item))
	}
	return out, nil
}

func (s *Service) GetAssessment(ctx context.Context, caller Caller, id int64) (AssessmentView, error) {
	a, err := s.viewableAssessment(ctx, caller, id)
	if err != nil {
		return AssessmentView{}, err
	}
	return newAssessmentView(s.summarize(ctx, a)), nil
}

func (s *Service) summarize(ctx context.Context, a store.Assessment) store.AssessmentSummary {
	summary := store.AssessmentSummary{Assessment: a, OwnerEmail: s.emailOf(ctx, &a.OwnerUserID)}
	if email := s.emailOf(ctx, a.ApproverUserID); email != "" {
		summary.ApproverEmail = &email
	}
	return summary
}

// GetAnswers returns the persisted records in catalog order.
func (s *Service) GetAnswers(ctx context.Context, caller Caller, id int64) ([]questionnaire.Record, error) {
	if _, err := s.viewableAssessment(ctx, caller, id); err != nil {
		return nil, err
	}
	rows, err := s.store.ListAnswers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	ordered, _ := s.catalog.Ordered(answerRecords(rows))
	return ordered, nil
}

// clarifications binds each thread to a question id. Rows written before the
// id was stored fall back to matching their text.
func (s *Service) clarifications(threads []store.Thread) (workflow.Clarifications, []store.Thread) {
	bound := make([]store.Thread, 0, len(threads))
	out := make(workflow.Clarifications, 0, len(threads))
	for _, t := range threads {
		if t.QuestionID == nil {
			q, ok := s.catalog.MatchText(t.QuestionText)
			if !ok {
				continue
			}
			t.QuestionID = &q.ID
		}
		bound = append(bound, t)
		out = append(out, workflow.Clarification{QuestionID: *t.QuestionID, Status: t.Status})
	}
	return out, bound
}

func (s *Service) loadClarifications(ctx context.Context, assessmentID int64) (workflow.Clarifications, []store.Thread, error) {
	threads, err := s.store.ListThreads(ctx, assessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("list threads: %w", err)
	}
	clar, bound := s.clarifications(threads)
	return clar, bound, nil
}

// ListApplicableQuestions resolves the questionnaire for page. draft holds
// unsaved answers from the client and takes precedence over persisted ones.
func (s *Service) ListApplicableQuestions(ctx context.Context, caller Caller, id int64, page int, draft []questionnaire.Record) (QuestionsView, error) {
	a, err := s.viewableAssessment(ctx, caller, id)
	if err != nil {
		return QuestionsView{}, err
	}
	rows, err := s.store.ListAnswers(ctx, id)
	if err != nil {
		return QuestionsView{}, fmt.Errorf("list answers: %w", err)
	}
	clar, threads, err := s.loadClarifications(ctx, id)
	if err != nil {
		return QuestionsView{}, err
	}

	persisted := answerRecords(rows)
	_, recordsByID := s.catalog.Ordered(persisted)
	previous := s.catalog.Load(persisted)
	current := s.catalog.Load(draft)
	resolution := s.catalog.Resolve(current, previous)
	active := resolution.ClampPage(page)

	latest := latestThreadByQuestion(threads)
	isOwner := caller.UserID == a.OwnerUserID

	questions := make([]QuestionView, 0)
	for _, q := range resolution.Page(active) {
		view := QuestionView{
			Question: q,
			Editable: workflow.OwnerMayEdit(isOwner, a.Status, clar, q.ID),
		}
		if r, ok := recordsByID[q.ID]; ok {
			view.Record = &r
		}
		if v, ok := current[q.ID]; ok {
			view.Value = &v
		} else if v, ok := previous[q.ID]; ok {
			view.Value = &v
		}
		if t, ok := latest[q.ID]; ok {
			tv := newThreadView(t)
			view.Thread = &tv
		}
		questions = append(questions, view)
	}

	return QuestionsView{
		AssessmentID: id,
		Status:       a.Status,
		Page:         active,
		TotalPages:   resolution.TotalPages,
		Applicable:   resolution.IDs(),
		Questions:    questions,
		CanResubmit:  isOwner && a.Status != workflow.StatusScreening && workflow.OwnerMayResubmit(a.Status, clar),
	}, nil
}

// latestThreadByQuestion prefers an open thread, then the newest one.
func latestThreadByQuestion(threads []store.Thread) map[int]store.Thread {
	out := make(map[int]store.Thread)
	for _, t := range threads {
		qid := *t.QuestionID
		existing, ok := out[qid]
		switch {
		case !ok:
			out[qid] = t
		case existing.Status != workflow.ThreadOpen && t.Status == workflow.ThreadOpen:
			out[qid] = t
		case existing.Status == t.Status && t.CreatedAt.After(existing.CreatedAt):
			out[qid] = t
		}
	}
	return out
}

// SubmitAnswers applies an owner submission. The payload must be exactly the
// applicable question set for the answers it carries.
func (s *Service) SubmitAnswers(ctx context.Context, caller Caller, id int64, payload []questionnaire.Record) (SubmitResult, error) {
	ctx, span := startOp(ctx, "workflow.submit_answers", caller, id)
	defer span.End()

	var result SubmitResult
	var pending *notification
	err := s.withAssessmentLock(ctx, id, func(ctx context.Context) error {
		a, err := s.loadAssessment(ctx, id)
		if err != nil {
			return err
		}
		if caller.UserID != a.OwnerUserID || !caller.can(rbac.ActionSubmitAnswers) {
			return forbidden("Only the assessment owner can submit answers")
		}

		submitted, current, err := s.parsePayload(payload)
		if err != nil {
			return err
		}

		rows, err := s.store.ListAnswers(ctx, id)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}
		persisted := answerRecords(rows)
		_, persistedByID := s.catalog.Ordered(persisted)
		previous := s.catalog.Load(persisted)

		resolution := s.catalog.Resolve(current, previous)
		if err := matchApplicable(s.catalog, resolution, submitted); err != nil {
			return err
		}

		clar, _, err := s.loadClarifications(ctx, id)
		if err != nil {
			return err
		}
		gate := s.catalog.Gate()
		outcome, err := workflow.Submit(a.Status, current[gate.ID].IsTrue(), clar)
		if err != nil {
			return translate(err)
		}
		if outcome.Resubmission {
			if err := checkEdits(s.catalog, a.Status, clar, submitted, persistedByID); err != nil {
				return err
			}
		}

		ordered, _ := s.catalog.Ordered(payload)
		submittedAt := s.now().UTC()
		answers := make([]store.Answer, len(ordered))
		for i, r := range ordered {
			answers[i] = store.Answer{
				ID:           util.NewID(),
				AssessmentID: id,
				QuestionText: r.Question,
				Answer:       r.Answer,
				Notes:        r.Notes,
				CreatedAt:    submittedAt,
			}
		}
		updated, err := s.store.SaveSubmission(ctx, id, answers, outcome.Next)
		if err != nil {
			return fmt.Errorf("save submission: %w", err)
		}

		switch {
		case outcome.AutoCompleted:
			result = SubmitResult{Status: outcome.Next, Message: messageAutoCompleted}
		case outcome.Resubmission:
			result = SubmitResult{Status: outcome.Next, Message: messageResubmitted}
		default:
			result = SubmitResult{Status: outcome.Next, Message: messageSubmitted}
		}
		slog.InfoContext(ctx, "answers submitted",
			"from", a.Status, "to", outcome.Next, "answers", len(answers), "resubmission", outcome.Resubmission)

		s.recordSnapshot(ctx, updated, ordered, caller, result.Message)
		summary := s.summarize(ctx, updated)
		s.search.IndexAssessment(search.AssessmentFromStore(summary))
		if outcome.Next == workflow.StatusAwaitingApproval && summary.ApproverEmail != nil {
			to, owner := *summary.ApproverEmail, summary.OwnerEmail
			pending = &notification{kind: "submitted", send: func(n Notifier) error {
				return n.NotifySubmitted(to, updated.Title, updated.ID, owner)
			}}
		}
		return nil
	})
	span.RecordError(err)
	if err == nil {
		s.deliver(ctx, pending)
	}
	return result, err
}

// AnswerInput is one submitted answer: a record in stored form, or a
// question id with a typed value.
type AnswerInput struct {
	Record     questionnaire.Record
	QuestionID *int
	Value      *questionnaire.Value
}

// EncodeAnswers brings typed answers into stored form. Records pass through
// untouched so their notes stay byte-for-byte as sent.
func (s *Service) EncodeAnswers(inputs []AnswerInput) ([]questionnaire.Record, error) {
	records := make([]questionnaire.Record, 0, len(inputs))
	for _, in := range inputs {
		if in.Value == nil {
			records = append(records, in.Record)
			continue
		}
		if in.QuestionID == nil {
			return nil, validationError("question_id is required with value", nil)
		}
		q, ok := s.catalog.ByID(*in.QuestionID)
		if !ok {
			return nil, validationError("unknown question", map[string]any{"question_id": *in.QuestionID})
		}
		r, err := questionnaire.Encode(q, *in.Value)
		if err != nil {
			return nil, translate(err)
		}
		records = append(records, r)
	}
	return records, nil
}

// parsePayload maps each record to its catalog question. Unknown and
// repeated question texts are rejected.
func (s *Service) parsePayload(payload []questionnaire.Record) (map[int]questionnaire.Record, questionnaire.Answers, error) {
	if len(payload) == 0 {
		return nil, nil, validationError("answers are required", nil)
	}
	submitted := make(map[int]questionnaire.Record, len(payload))
	current := make(questionnaire.Answers, len(payload))
	for _, r := range payload {
		q, ok := s.catalog.ByText(r.Question)
		if !ok {
			return nil, nil, validationError("unknown question", map[string]any{"question": r.Question})
		}
		if _, dup := submitted[q.ID]; dup {
			return nil, nil, validationError("question answered more than once", map[string]any{"question": r.Question})
		}
		submitted[q.ID] = r
		current[q.ID] = questionnaire.Decode(q, r)
	}
	return submitted, current, nil
}

// matchApplicable rejects a payload that is not exactly the applicable set.
func matchApplicable(catalog *questionnaire.Catalog, resolution questionnaire.Resolution, submitted map[int]questionnaire.Record) error {
	var missing, unexpected []string
	for _, id := range resolution.IDs() {
		if _, ok := submitted[id]; !ok {
			q, _ := catalog.ByID(id)
			missing = append(missing, q.Text)
		}
	}
	for id, r := range submitted {
		if !resolution.Contains(id) {
			unexpected = append(unexpected, r.Question)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	slices.Sort(unexpected)
	details := map[string]any{}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	if len(unexpected) > 0 {
		details["unexpected"] = unexpected
	}
	return validationError("answers must cover exactly the applicable questions", details)
}

// checkEdits allows a resubmission to change only questions the owner may
// edit. Questions never answered before may be added.
func checkEdits(catalog *questionnaire.Catalog, status workflow.Status, clar workflow.Clarifications, submitted, persisted map[int]questionnaire.Record) error {
	for id, r := range submitted {
		prev, ok := persisted[id]
		if !ok {
			continue
		}
		q, _ := catalog.ByID(id)
		if questionnaire.Decode(q, prev).Equal(questionnaire.Decode(q, r)) {
			continue
		}
		if !workflow.OwnerMayEdit(true, status, clar, id) {
			return domainError(http.StatusForbidden, CodeForbidden, "question is not open for editing", map[string]any{"question": q.Text})
		}
	}
	return nil
}

// UpdateStatus applies an approver decision.
func (s *Service) UpdateStatus(ctx context.Context, caller Caller, id int64, target string) (AssessmentView, error) {
	ctx, span := startOp(ctx, "workflow.update_status", caller, id)
	defer span.End()

	var view AssessmentView
	var pending *notification
	err := s.withAssessmentLock(ctx, id, func(ctx context.Context) error {
		a, err := s.loadAssessment(ctx, id)
		if err != nil {
			return err
		}
		if !caller.can(rbac.ActionDecide) || !canReview(caller, a) {
			return forbidden("Only the assigned approver can change the status")
		}
		next, err := workflow.ParseStatus(strings.TrimSpace(target))
		if err != nil {
			return translate(err)
		}
		if _, err := workflow.Decide(a.Status, next); err != nil {
			return translate(err)
		}
		updated, err := s.store.UpdateAssessmentStatus(ctx, id, next)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		slog.InfoContext(ctx, "status changed", "from", a.Status, "to", next)

		if rows, err := s.store.ListAnswers(ctx, id); err == nil {
			ordered, _ := s.catalog.Ordered(answerRecords(rows))
			s.recordSnapshot(ctx, updated, ordered, caller, fmt.Sprintf("Status changed to %s", next))
		}
		summary := s.summarize(ctx, updated)
		s.search.IndexAssessment(search.AssessmentFromStore(summary))
		to := summary.OwnerEmail
		pending = &notification{kind: "status_changed", send: func(n Notifier) error {
			return n.NotifyStatusChanged(to, updated.Title, updated.ID, string(next))
		}}
		view = newAssessmentView(summary)
		return nil
	})
	span.RecordError(err)
	if err == nil {
		s.deliver(ctx, pending)
	}
	return view, err
}

// DeleteAssessment removes the assessment with its answers, threads,
// comments, history and search entries.
func (s *Service) DeleteAssessment(ctx context.Context, caller Caller, id int64) error {
	ctx, span := startOp(ctx, "workflow.delete_assessment", caller, id)
	defer span.End()

	err := s.withAssessmentLock(ctx, id, func(ctx context.Context) error {
		a, err := s.loadAssessment(ctx, id)
		if err != nil {
			return err
		}
		if caller.UserID != a.OwnerUserID && !canReview(caller, a) {
			return forbidden("Not authorized to delete this assessment")
		}
		threads, err := s.store.ListThreads(ctx, id)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		if err := s.store.DeleteAssessment(ctx, id); err != nil {
			return translate(err)
		}
		if s.history != nil {
			if err := s.history.Remove(id); err != nil {
				slog.WarnContext(ctx, "history: remove failed", "error", err)
			}
		}
		threadIDs := make([]string, len(threads))
		for i, t := range threads {
			threadIDs[i] = idString(t.ID)
		}
		s.search.DeleteAssessment(idString(id), threadIDs)
		slog.InfoContext(ctx, "assessment deleted", "threads", len(threads))
		return nil
	})
	span.RecordError(err)
	return err
}

// recordSnapshot commits the answer set to history. Failures are logged.
func (s *Service) recordSnapshot(ctx context.Context, a store.Assessment, records []questionnaire.Record, caller Caller, message string) {
	if s.history == nil {
		return
	}
	snap := history.Snapshot{AssessmentID: a.ID, Title: a.Title, Status: string(a.Status), Answers: records}
	author := caller.Email
	if author == "" {
		author = idString(caller.UserID)
	}
	if _, err := s.history.Commit(a.ID, snap, author, message); err != nil {
		slog.WarnContext(ctx, "history: commit failed", "error", err)
	}
}
