package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sra/api/internal/questionnaire"
	"sra/api/internal/store"
)

const securityMeasuresID = 17

var _ = Describe("Typed answers", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
	})

	// typedInputs sends the question ids in values as typed answers and the
	// rest of the full payload in stored form.
	typedInputs := func(values map[int]questionnaire.Value) []AnswerInput {
		GinkgoHelper()
		overrides := questionnaire.Answers{}
		for id, v := range values {
			overrides[id] = v
		}
		var inputs []AnswerInput
		for _, r := range fullPayload(f.svc.Catalog(), overrides) {
			q, ok := f.svc.Catalog().ByText(r.Question)
			Expect(ok).To(BeTrue())
			if v, typed := values[q.ID]; typed {
				id := q.ID
				inputs = append(inputs, AnswerInput{QuestionID: &id, Value: &v})
				continue
			}
			inputs = append(inputs, AnswerInput{Record: r})
		}
		return inputs
	}

	It("encodes typed values exactly as the browser would", func() {
		a := f.createAssessment()
		inputs := typedInputs(map[int]questionnaire.Value{
			securityMeasuresID: questionnaire.MultiValue([]string{"Audit Logging"}, "line\u2028break"),
			descriptionID:      questionnaire.TextValue("HR payroll"),
		})

		records, err := f.svc.EncodeAnswers(inputs)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.svc.SubmitAnswers(ctx, f.owner, a.ID, records)
		Expect(err).NotTo(HaveOccurred())

		stored, err := f.svc.GetAnswers(ctx, f.owner, a.ID)
		Expect(err).NotTo(HaveOccurred())
		byText := map[string]questionnaire.Record{}
		for _, r := range stored {
			byText[r.Question] = r
		}
		security, _ := f.svc.Catalog().ByID(securityMeasuresID)
		Expect(byText[security.Text].Notes).To(Equal("[\"Audit Logging\",\"Other: line\u2028break\"]"))
		description, _ := f.svc.Catalog().ByID(descriptionID)
		Expect(byText[description.Text]).To(Equal(questionnaire.Record{Question: description.Text, Answer: true, Notes: "HR payroll"}))
	})

	It("passes stored-form records through untouched", func() {
		raw := questionnaire.Record{Question: "anything", Answer: true, Notes: `["x" , "y"]`}
		records, err := f.svc.EncodeAnswers([]AnswerInput{{Record: raw}})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(Equal([]questionnaire.Record{raw}))
	})

	It("rejects a value whose kind does not match the question", func() {
		id := descriptionID
		v := questionnaire.BoolValue(true)
		_, err := f.svc.EncodeAnswers([]AnswerInput{{QuestionID: &id, Value: &v}})
		expectCode(err, CodeValidation)
	})

	It("rejects typed values without a known question id", func() {
		v := questionnaire.TextValue("x")
		_, err := f.svc.EncodeAnswers([]AnswerInput{{Value: &v}})
		expectCode(err, CodeValidation)

		unknown := 19
		_, err = f.svc.EncodeAnswers([]AnswerInput{{QuestionID: &unknown, Value: &v}})
		expectCode(err, CodeValidation)
	})

	Describe("over HTTP", func() {
		var handler http.Handler

		BeforeEach(func() {
			handler = NewHTTPServer(f.svc, "*").Handler()
		})

		post := func(path string, caller Caller, body any) *httptest.ResponseRecorder {
			GinkgoHelper()
			tokens, err := f.svc.issueTokens(ctx, store.User{ID: caller.UserID, Email: caller.Email, Role: string(caller.Role)})
			Expect(err).NotTo(HaveOccurred())
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		It("accepts question_id with a typed value", func() {
			a := f.createAssessment()
			answers := make([]map[string]any, 0)
			for _, in := range typedInputs(map[int]questionnaire.Value{
				securityMeasuresID: questionnaire.MultiValue([]string{"Audit Logging"}, ""),
			}) {
				if in.Value != nil {
					answers = append(answers, map[string]any{"question_id": *in.QuestionID, "value": in.Value})
					continue
				}
				answers = append(answers, map[string]any{"question": in.Record.Question, "answer": in.Record.Answer, "notes": in.Record.Notes})
			}
			rec := post("/assessments/"+strconv.FormatInt(a.ID, 10)+"/screening", f.owner, map[string]any{"answers": answers})
			Expect(rec.Code).To(Equal(http.StatusOK), "body=%s", rec.Body.String())
		})

		It("answers 422 for a kind mismatch", func() {
			a := f.createAssessment()
			rec := post("/assessments/"+strconv.FormatInt(a.ID, 10)+"/screening", f.owner, map[string]any{
				"answers": []map[string]any{{"question_id": descriptionID, "value": map[string]any{"kind": "boolean", "bool": true}}},
			})
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity), "body=%s", rec.Body.String())
			Expect(rec.Body.String()).To(ContainSubstring(CodeValidation))
		})
	})
})
