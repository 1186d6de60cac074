package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sra/api/internal/store"
)

// RecordSource is the slice of the store the fallback searcher reads.
type RecordSource interface {
	ListAssessments(ctx context.Context, filter store.AssessmentFilter) ([]store.AssessmentSummary, error)
	SearchThreads(ctx context.Context, filter store.AssessmentFilter) ([]store.Thread, error)
}

// StoreSearcher answers queries with substring matches against the store.
// It is used whenever Meilisearch is not configured or unhealthy.
type StoreSearcher struct {
	source RecordSource
}

func NewStoreSearcher(source RecordSource) *StoreSearcher {
	return &StoreSearcher{source: source}
}

// Healthy always returns true; if the store is down the request fails anyway.
func (s *StoreSearcher) Healthy() bool {
	return true
}

func (s *StoreSearcher) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	filter := store.AssessmentFilter{OwnerID: q.OwnerID, Query: text, Limit: limit + max(q.Offset, 0)}

	var results []Result
	if q.FilterType == "" || q.FilterType == ResultAssessment {
		items, err := s.source.ListAssessments(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("search assessments: %w", err)
		}
		for _, item := range items {
			results = append(results, Result{
				Type:         ResultAssessment,
				ID:           strconv.FormatInt(item.ID, 10),
				Title:        item.Title,
				Snippet:      item.OwnerEmail,
				AssessmentID: strconv.FormatInt(item.ID, 10),
				Status:       string(item.Status),
			})
		}
	}
	if q.FilterType == "" || q.FilterType == ResultThread {
		threads, err := s.source.SearchThreads(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("search threads: %w", err)
		}
		for _, thread := range threads {
			results = append(results, Result{
				Type:         ResultThread,
				ID:           strconv.FormatInt(thread.ID, 10),
				Title:        thread.QuestionText,
				Snippet:      thread.OpenerEmail,
				AssessmentID: strconv.FormatInt(thread.AssessmentID, 10),
				Status:       string(thread.Status),
			})
		}
	}

	total := len(results)
	offset := max(q.Offset, 0)
	if offset >= len(results) {
		return []Result{}, total, nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

// LoadAllRecords returns every searchable record for a full reindex.
func LoadAllRecords(ctx context.Context, source RecordSource) ([]AssessmentRecord, []ThreadRecord, error) {
	items, err := source.ListAssessments(ctx, store.AssessmentFilter{Limit: 100000})
	if err != nil {
		return nil, nil, fmt.Errorf("load assessments: %w", err)
	}
	owners := make(map[int64]int64, len(items))
	assessments := make([]AssessmentRecord, 0, len(items))
	for _, item := range items {
		owners[item.ID] = item.OwnerUserID
		assessments = append(assessments, AssessmentFromStore(item))
	}
	threads, err := source.SearchThreads(ctx, store.AssessmentFilter{Limit: 100000})
	if err != nil {
		return nil, nil, fmt.Errorf("load threads: %w", err)
	}
	threadRecords := make([]ThreadRecord, 0, len(threads))
	for _, thread := range threads {
		threadRecords = append(threadRecords, ThreadFromStore(thread, owners[thread.AssessmentID]))
	}
	return assessments, threadRecords, nil
}

func AssessmentFromStore(item store.AssessmentSummary) AssessmentRecord {
	return AssessmentRecord{
		ID:         strconv.FormatInt(item.ID, 10),
		Title:      item.Title,
		Status:     string(item.Status),
		OwnerID:    strconv.FormatInt(item.OwnerUserID, 10),
		OwnerEmail: item.OwnerEmail,
	}
}

func ThreadFromStore(thread store.Thread, ownerID int64) ThreadRecord {
	return ThreadRecord{
		ID:           strconv.FormatInt(thread.ID, 10),
		AssessmentID: strconv.FormatInt(thread.AssessmentID, 10),
		OwnerID:      strconv.FormatInt(ownerID, 10),
		QuestionText: thread.QuestionText,
		Status:       string(thread.Status),
	}
}
