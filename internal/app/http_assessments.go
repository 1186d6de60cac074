package app

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sra/api/internal/questionnaire"
)

// answerPayload is a stored-form record, or question_id with a typed value.
type answerPayload struct {
	questionnaire.Record
	QuestionID *int                 `json:"question_id"`
	Value      *questionnaire.Value `json:"value"`
}

func answerInputs(items []answerPayload) []AnswerInput {
	inputs := make([]AnswerInput, len(items))
	for i, item := range items {
		inputs[i] = AnswerInput{Record: item.Record, QuestionID: item.QuestionID, Value: item.Value}
	}
	return inputs
}

func (s *HTTPServer) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListAssessments(r.Context(), callerFrom(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title          string  `json:"title"`
		IsNew          bool    `json:"is_new"`
		ApproverUserID *jsonID `json:"approver_user_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	input := CreateAssessmentInput{Title: body.Title, IsNew: body.IsNew}
	if body.ApproverUserID != nil && *body.ApproverUserID != 0 {
		id := int64(*body.ApproverUserID)
		input.ApproverUserID = &id
	}
	view, err := s.service.CreateAssessment(r.Context(), callerFrom(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := s.service.GetAssessment(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleDeleteAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.service.DeleteAssessment(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Assessment and all related data deleted successfully",
		"id":      strconv.FormatInt(id, 10),
	})
}

func (s *HTTPServer) handleGetAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	answers, err := s.service.GetAnswers(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessment_id": strconv.FormatInt(id, 10),
		"answers":       answers,
	})
}

func (s *HTTPServer) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body struct {
		Answers []answerPayload `json:"answers"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	records, err := s.service.EncodeAnswers(answerInputs(body.Answers))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := s.service.SubmitAnswers(r.Context(), callerFrom(r.Context()), id, records)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleQuestions serves GET with the persisted answers only, and POST with
// the client's unsaved answers applied on top.
func (s *HTTPServer) handleQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	page := queryInt(r, "page", 1)
	var draft []questionnaire.Record
	if r.Method == http.MethodPost {
		var body struct {
			Page    int             `json:"page"`
			Answers []answerPayload `json:"answers"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Page > 0 {
			page = body.Page
		}
		draft, err = s.service.EncodeAnswers(answerInputs(body.Answers))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	view, err := s.service.ListApplicableQuestions(r.Context(), callerFrom(r.Context()), id, page, draft)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	view, err := s.service.UpdateStatus(r.Context(), callerFrom(r.Context()), id, body.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	commits, err := s.service.History(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	snap, err := s.service.Snapshot(r.Context(), callerFrom(r.Context()), id, chi.URLParam(r, "hash"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleDiff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	query := r.URL.Query()
	changes, err := s.service.Diff(r.Context(), callerFrom(r.Context()), id, query.Get("from"), query.Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    query.Get("from"),
		"to":      query.Get("to"),
		"changes": changes,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := s.service.Export(r.Context(), callerFrom(r.Context()), id, r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	if result.URL != "" {
		w.Header().Set("X-Export-URL", result.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.service.Search(r.Context(), callerFrom(r.Context()),
		query.Get("q"), query.Get("type"), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
