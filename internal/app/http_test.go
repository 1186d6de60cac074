package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sra/api/internal/questionnaire"
	"sra/api/internal/store"
)

func digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

var _ = Describe("HTTP API", func() {
	var (
		f       *fixture
		handler http.Handler
	)

	BeforeEach(func() {
		f = newFixture(Deps{Checks: map[string]func(context.Context) error{
			"cache": func(context.Context) error { return nil },
		}})
		handler = NewHTTPServer(f.svc, "*").Handler()
	})

	tokenFor := func(c Caller) string {
		GinkgoHelper()
		tokens, err := f.svc.issueTokens(context.Background(), store.User{ID: c.UserID, Email: c.Email, Role: string(c.Role)})
		Expect(err).NotTo(HaveOccurred())
		return tokens.AccessToken
	}

	do := func(method, path, token string, body any) *httptest.ResponseRecorder {
		GinkgoHelper()
		var reader *bytes.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, target any) {
		GinkgoHelper()
		Expect(json.Unmarshal(rec.Body.Bytes(), target)).To(Succeed(), "body=%s", rec.Body.String())
	}

	It("reports health and readiness", func() {
		rec := do(http.MethodGet, "/health", "", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("X-Request-ID")).NotTo(BeEmpty())

		rec = do(http.MethodGet, "/ready", "", nil)
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
	})

	It("reports not ready when a check fails", func() {
		f = newFixture(Deps{Checks: map[string]func(context.Context) error{
			"search": func(context.Context) error { return errors.New("meilisearch unreachable") },
		}})
		handler = NewHTTPServer(f.svc, "*").Handler()

		rec := do(http.MethodGet, "/ready", "", nil)
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		var body struct {
			Status string                    `json:"status"`
			Checks map[string]map[string]any `json:"checks"`
		}
		decode(rec, &body)
		Expect(body.Status).To(Equal("not_ready"))
		Expect(body.Checks["search"]["error"]).To(Equal("meilisearch unreachable"))
		Expect(body.Checks["database"]["status"]).To(Equal("ok"))
	})

	It("answers CORS preflight without authentication", func() {
		rec := do(http.MethodOptions, "/assessments/", "", nil)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
	})

	It("rejects protected routes without a valid token", func() {
		for _, path := range []string{"/assessments/", "/threads/?assessment_id=1", "/search?q=x", "/auth/me"} {
			rec := do(http.MethodGet, path, "", nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized), "path %s", path)
		}
		rec := do(http.MethodGet, "/assessments/", "not-a-jwt", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("registers, signs in with a form and rotates the refresh token", func() {
		rec := do(http.MethodPost, "/auth/register", "", map[string]string{
			"email": "Dana@Example.com", "password": digest("s3cret"), "role": "owner",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated), "body=%s", rec.Body.String())
		var user UserView
		decode(rec, &user)
		Expect(user.Email).To(Equal("dana@example.com"))
		Expect(user.Name).To(Equal("dana"))

		rec = do(http.MethodPost, "/auth/register", "", map[string]string{
			"email": "dana@example.com", "password": digest("other"),
		})
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring("Email taken"))

		form := url.Values{"username": {"dana@example.com"}, "password": {digest("s3cret")}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		login := httptest.NewRecorder()
		handler.ServeHTTP(login, req)
		Expect(login.Code).To(Equal(http.StatusOK), "body=%s", login.Body.String())
		var tokens Tokens
		decode(login, &tokens)
		Expect(tokens.TokenType).To(Equal("bearer"))

		rec = do(http.MethodGet, "/auth/me", tokens.AccessToken, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		decode(rec, &user)
		Expect(user.Role).To(Equal("owner"))

		rec = do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		var rotated Tokens
		decode(rec, &rotated)
		Expect(rotated.RefreshToken).NotTo(Equal(tokens.RefreshToken))

		rec = do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))

		rec = do(http.MethodPost, "/auth/logout", rotated.AccessToken, map[string]string{"refresh_token": rotated.RefreshToken})
		Expect(rec.Code).To(Equal(http.StatusOK))
		rec = do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": rotated.RefreshToken})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("refuses a plain password and a wrong credential", func() {
		rec := do(http.MethodPost, "/auth/register", "", map[string]string{"email": "eli@example.com", "password": "hunter2"})
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))

		rec = do(http.MethodPost, "/auth/login", "", map[string]string{"email": "owner@example.com", "password": digest("nope")})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("runs an assessment through submission, clarification and decision", func() {
		owner, approver := tokenFor(f.owner), tokenFor(f.approver)

		rec := do(http.MethodGet, "/assessments/approvers/list", owner, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var approvers []UserView
		decode(rec, &approvers)
		Expect(approvers).To(HaveLen(2))

		rec = do(http.MethodPost, "/assessments/", owner, map[string]any{
			"title": "Payroll migration", "is_new": true, "approver_user_id": strconv.FormatInt(f.approver.UserID, 10),
		})
		Expect(rec.Code).To(Equal(http.StatusCreated), "body=%s", rec.Body.String())
		var created AssessmentView
		decode(rec, &created)
		Expect(created.Status).To(BeEquivalentTo("screening"))
		base := "/assessments/" + strconv.FormatInt(created.ID, 10)

		rec = do(http.MethodPost, base+"/screening", owner, map[string]any{
			"answers": fullPayload(f.svc.Catalog(), nil),
		})
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		var submitted SubmitResult
		decode(rec, &submitted)
		Expect(submitted.Status).To(BeEquivalentTo("awaiting_approval"))

		rec = do(http.MethodPost, "/threads/", approver, map[string]any{
			"assessment_id": strconv.FormatInt(created.ID, 10), "question_id": descriptionID, "body": "Please expand",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated), "body=%s", rec.Body.String())
		var thread ThreadView
		decode(rec, &thread)

		rec = do(http.MethodPost, "/threads/comment", owner, map[string]any{
			"thread_id": strconv.FormatInt(thread.ID, 10), "body": "It covers HR",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated), "body=%s", rec.Body.String())

		rec = do(http.MethodGet, "/threads/"+strconv.FormatInt(thread.ID, 10)+"/comments", approver, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var comments []CommentView
		decode(rec, &comments)
		Expect(comments).To(HaveLen(2))

		rec = do(http.MethodGet, base+"/questions?page=1", owner, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var questions QuestionsView
		decode(rec, &questions)
		Expect(questions.CanResubmit).To(BeTrue())

		rec = do(http.MethodPost, "/threads/"+strconv.FormatInt(thread.ID, 10)+"/end", approver, nil)
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		rec = do(http.MethodPost, "/threads/"+strconv.FormatInt(thread.ID, 10)+"/end", approver, nil)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring(CodeAlreadyResolved))

		rec = do(http.MethodPost, base+"/status", owner, map[string]string{"status": "approved"})
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		rec = do(http.MethodPost, base+"/status", approver, map[string]string{"status": "approved"})
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		var decided AssessmentView
		decode(rec, &decided)
		Expect(decided.Status).To(BeEquivalentTo("approved"))

		rec = do(http.MethodGet, base+"/screening", approver, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var answers struct {
			AssessmentID string                 `json:"assessment_id"`
			Answers      []questionnaire.Record `json:"answers"`
		}
		decode(rec, &answers)
		Expect(answers.AssessmentID).To(Equal(strconv.FormatInt(created.ID, 10)))
		Expect(answers.Answers).To(Equal(fullPayload(f.svc.Catalog(), nil)))
	})

	It("auto-completes over HTTP and reports validation details", func() {
		owner := tokenFor(f.owner)
		id := f.createAssessment().ID
		base := "/assessments/" + strconv.FormatInt(id, 10)

		gate, _ := f.svc.Catalog().ByID(1)
		rec := do(http.MethodPost, base+"/screening", owner, map[string]any{
			"answers": []map[string]any{
				{"question": gate.Text, "answer": true, "notes": ""},
			},
		})
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		var failure struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		}
		decode(rec, &failure)
		Expect(failure.Code).To(Equal(CodeValidation))
		Expect(failure.Details).To(HaveKey("missing"))

		rec = do(http.MethodPost, base+"/screening", owner, map[string]any{
			"answers": []map[string]any{
				{"question": gate.Text, "answer": false, "notes": ""},
			},
		})
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		Expect(rec.Body.String()).To(ContainSubstring(`"next_status":"completed"`))
	})

	It("exports HTML and deletes with a confirmation", func() {
		owner, other := tokenFor(f.owner), tokenFor(f.other)
		id := f.createAssessment().ID
		_, err := f.submitFull(id, nil)
		Expect(err).NotTo(HaveOccurred())
		base := "/assessments/" + strconv.FormatInt(id, 10)

		rec := do(http.MethodGet, base+"/export?format=html", owner, nil)
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/html"))
		Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring(".html"))
		Expect(rec.Body.String()).To(ContainSubstring("Payroll migration"))

		rec = do(http.MethodGet, base+"/export?format=docx", owner, nil)
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))

		rec = do(http.MethodGet, base, other, nil)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		rec = do(http.MethodDelete, base, other, nil)
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		rec = do(http.MethodDelete, base, owner, nil)
		Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		var deleted map[string]string
		decode(rec, &deleted)
		Expect(deleted["id"]).To(Equal(strconv.FormatInt(id, 10)))
		Expect(deleted["message"]).To(Equal("Assessment and all related data deleted successfully"))

		rec = do(http.MethodGet, base, owner, nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("rejects malformed ids and bodies", func() {
		owner := tokenFor(f.owner)
		rec := do(http.MethodGet, "/assessments/abc", owner, nil)
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))

		req := httptest.NewRequest(http.MethodPost, "/assessments/", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+owner)
		bad := httptest.NewRecorder()
		handler.ServeHTTP(bad, req)
		Expect(bad.Code).To(Equal(http.StatusBadRequest))
		Expect(bad.Body.String()).To(ContainSubstring("invalid JSON body"))

		rec = do(http.MethodGet, "/nowhere", owner, nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("accepts ids sent as JavaScript numbers", func() {
		a := f.createAssessment()
		_, err := f.submitFull(a.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		q, _ := f.svc.Catalog().ByID(descriptionID)

		// float64 is what parseInt leaves a browser client holding.
		rec := do(http.MethodPost, "/threads/", tokenFor(f.approver), map[string]any{
			"assessment_id": float64(a.ID),
			"question_text": q.Text + ": Which payroll provider?",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated), "body=%s", rec.Body.String())
		var thread ThreadView
		decode(rec, &thread)
		Expect(thread.AssessmentID).To(Equal(a.ID))
		Expect(*thread.QuestionID).To(Equal(descriptionID))
	})
})
