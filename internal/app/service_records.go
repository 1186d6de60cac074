package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sra/api/internal/export"
	"sra/api/internal/history"
	"sra/api/internal/questionnaire"
	"sra/api/internal/rbac"
	"sra/api/internal/search"
	"sra/api/internal/store"
)

const historyLimit = 100

func (s *Service) History(ctx context.Context, caller Caller, id int64) ([]history.Commit, error) {
	if _, err := s.viewableAssessment(ctx, caller, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []history.Commit{}, nil
	}
	commits, err := s.history.History(id, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return commits, nil
}

// SnapshotView is the answer set as it was at one revision.
type SnapshotView struct {
	Commit  history.Commit         `json:"commit"`
	Status  string                 `json:"status"`
	Title   string                 `json:"title"`
	Answers []questionnaire.Record `json:"answers"`
}

func (s *Service) Snapshot(ctx context.Context, caller Caller, id int64, hash string) (SnapshotView, error) {
	if _, err := s.viewableAssessment(ctx, caller, id); err != nil {
		return SnapshotView{}, err
	}
	if s.history == nil {
		return SnapshotView{}, notFound("History is not enabled")
	}
	snap, commit, err := s.history.Snapshot(id, strings.TrimSpace(hash))
	if err != nil {
		return SnapshotView{}, translate(err)
	}
	return SnapshotView{Commit: commit, Status: snap.Status, Title: snap.Title, Answers: snap.Answers}, nil
}

// Diff compares two revisions. An empty from compares to against its parent.
func (s *Service) Diff(ctx context.Context, caller Caller, id int64, from, to string) ([]history.Change, error) {
	if _, err := s.viewableAssessment(ctx, caller, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(to) == "" {
		return nil, validationError("to is required", nil)
	}
	if s.history == nil {
		return nil, notFound("History is not enabled")
	}
	changes, err := s.history.Diff(id, strings.TrimSpace(from), strings.TrimSpace(to))
	if err != nil {
		return nil, translate(err)
	}
	return changes, nil
}

// Search looks through assessments and threads. Owners only see their own.
func (s *Service) Search(ctx context.Context, caller Caller, text, kind string, limit, offset int) (search.Response, error) {
	q := search.Query{
		Text:       strings.TrimSpace(text),
		FilterType: search.ResultType(strings.TrimSpace(kind)),
		Limit:      limit,
		Offset:     offset,
	}
	switch q.FilterType {
	case "", search.ResultAssessment, search.ResultThread:
	default:
		return search.Response{}, validationError("type must be assessment or thread", nil)
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if !caller.can(rbac.ActionReviewAll) {
		q.OwnerID = &caller.UserID
	}
	return s.search.Search(ctx, q), nil
}

// Export renders the answered questionnaire with its clarifications.
func (s *Service) Export(ctx context.Context, caller Caller, id int64, format string) (*export.Result, error) {
	ctx, span := startOp(ctx, "workflow.export", caller, id)
	defer span.End()

	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, translate(err)
	}
	a, err := s.viewableAssessment(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.exportDocument(ctx, a)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result, err := s.exporter.Export(ctx, doc, f)
	if err != nil {
		span.RecordError(err)
		return nil, translate(err)
	}
	slog.InfoContext(ctx, "assessment exported", "format", f, "bytes", len(result.Data))
	return result, nil
}

func (s *Service) exportDocument(ctx context.Context, a store.Assessment) (export.Document, error) {
	view := newAssessmentView(s.summarize(ctx, a))
	rows, err := s.store.ListAnswers(ctx, view.ID)
	if err != nil {
		return export.Document{}, fmt.Errorf("list answers: %w", err)
	}
	_, threads, err := s.loadClarifications(ctx, view.ID)
	if err != nil {
		return export.Document{}, err
	}

	byQuestion := make(map[int][]export.Thread)
	for _, t := range threads {
		comments, err := s.store.ListComments(ctx, t.ID)
		if err != nil {
			return export.Document{}, fmt.Errorf("list comments: %w", err)
		}
		et := export.Thread{Opener: t.OpenerEmail, Text: t.QuestionText, Status: string(t.Status), CreatedAt: t.CreatedAt}
		for i, c := range comments {
			if i == 0 && c.AuthorID == t.OpenedBy {
				et.Text = c.Body
				continue
			}
			et.Replies = append(et.Replies, export.Reply{Author: c.AuthorEmail, Body: c.Body, CreatedAt: c.CreatedAt})
		}
		byQuestion[*t.QuestionID] = append(byQuestion[*t.QuestionID], et)
	}

	answers := s.catalog.Load(answerRecords(rows))
	resolution := s.catalog.Resolve(nil, answers)
	doc := export.Document{
		AssessmentID: view.ID,
		Title:        view.Title,
		Status:       string(view.Status),
		Owner:        view.OwnerEmail,
		GeneratedAt:  s.now(),
	}
	if view.ApproverEmail != nil {
		doc.Approver = *view.ApproverEmail
	}
	for page := 1; page <= resolution.TotalPages; page++ {
		p := export.Page{Number: page}
		for _, q := range resolution.Answered(answers) {
			if q.Page != page {
				continue
			}
			p.Items = append(p.Items, export.Item{
				QuestionID: q.ID,
				Question:   q.Text,
				Answer:     answers[q.ID].Display(),
				Threads:    byQuestion[q.ID],
			})
		}
		if len(p.Items) > 0 {
			doc.Pages = append(doc.Pages, p)
		}
	}
	return doc, nil
}
