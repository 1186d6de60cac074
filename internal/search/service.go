package search

import (
	"context"
	"log/slog"
)

// Service is the facade that tries Meilisearch first and falls back to the
// store searcher.
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		slog.WarnContext(ctx, "search: meilisearch error, falling back to store", "error", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		slog.ErrorContext(ctx, "search: store fallback failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

func (s *Service) enabled() bool {
	return s.meili != nil && s.meili.Healthy()
}

// IndexAssessment indexes an assessment (fire-and-forget to Meilisearch).
func (s *Service) IndexAssessment(record AssessmentRecord) {
	if !s.enabled() {
		return
	}
	go func() {
		if err := s.meili.IndexAssessments([]AssessmentRecord{record}); err != nil {
			slog.Warn("search: index assessment", "assessment_id", record.ID, "error", err)
		}
	}()
}

// IndexThread indexes a thread (fire-and-forget to Meilisearch).
func (s *Service) IndexThread(record ThreadRecord) {
	if !s.enabled() {
		return
	}
	go func() {
		if err := s.meili.IndexThreads([]ThreadRecord{record}); err != nil {
			slog.Warn("search: index thread", "thread_id", record.ID, "error", err)
		}
	}()
}

// DeleteAssessment removes an assessment and the given threads from the index.
func (s *Service) DeleteAssessment(id string, threadIDs []string) {
	if !s.enabled() {
		return
	}
	go func() {
		if err := s.meili.DeleteAssessment(id); err != nil {
			slog.Warn("search: delete assessment", "assessment_id", id, "error", err)
		}
		for _, threadID := range threadIDs {
			if err := s.meili.DeleteThread(threadID); err != nil {
				slog.Warn("search: delete thread", "thread_id", threadID, "error", err)
			}
		}
	}()
}

// ReindexAll reads every record from source and pushes it to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context, source RecordSource) {
	if !s.enabled() {
		return
	}
	assessments, threads, err := LoadAllRecords(ctx, source)
	if err != nil {
		slog.WarnContext(ctx, "search: reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexAssessments(assessments); err != nil {
		slog.WarnContext(ctx, "search: reindex assessments", "error", err)
	}
	if err := s.meili.IndexThreads(threads); err != nil {
		slog.WarnContext(ctx, "search: reindex threads", "error", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
