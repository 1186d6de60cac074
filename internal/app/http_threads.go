package app

import "net/http"

func (s *HTTPServer) handleListThreads(w http.ResponseWriter, r *http.Request) {
	assessmentID, err := parseID(r.URL.Query().Get("assessment_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	threads, err := s.service.ListThreads(r.Context(), callerFrom(r.Context()), assessmentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *HTTPServer) handleOpenThread(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssessmentID jsonID `json:"assessment_id"`
		QuestionID   *int   `json:"question_id"`
		QuestionText string `json:"question_text"`
		Body         string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.AssessmentID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "assessment_id is required", nil)
		return
	}
	thread, err := s.service.OpenThread(r.Context(), callerFrom(r.Context()), OpenThreadInput{
		AssessmentID: int64(body.AssessmentID),
		QuestionID:   body.QuestionID,
		QuestionText: body.QuestionText,
		Body:         body.Body,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ThreadID jsonID `json:"thread_id"`
		Body     string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.ThreadID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "thread_id is required", nil)
		return
	}
	comment, err := s.service.AddComment(r.Context(), callerFrom(r.Context()), int64(body.ThreadID), body.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	comments, err := s.service.ListComments(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *HTTPServer) handleEndThread(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	thread, err := s.service.EndThread(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}
