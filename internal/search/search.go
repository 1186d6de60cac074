package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultAssessment ResultType = "assessment"
	ResultThread     ResultType = "thread"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	AssessmentID string     `json:"assessment_id"`
	Status       string     `json:"status"`
}

// Query describes a search request. A nil OwnerID searches every assessment.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	OwnerID    *int64
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// AssessmentRecord is the data we index for an assessment.
type AssessmentRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
}

// ThreadRecord is the data we index for a clarification thread.
type ThreadRecord struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessmentId"`
	OwnerID      string `json:"ownerId"`
	QuestionText string `json:"questionText"`
	Status       string `json:"status"`
}
