package app

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sra/api/internal/history"
	"sra/api/internal/questionnaire"
	"sra/api/internal/workflow"
)

const (
	descriptionID = 2
	sensitiveID   = 3
	continentsID  = 8
	gdprID        = 9
)

var _ = Describe("SubmitAnswers", func() {
	var (
		ctx context.Context
		f   *fixture
		id  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
		id = f.createAssessment().ID
	})

	It("auto-completes when no personal information is collected", func() {
		payload := fullPayload(f.svc.Catalog(), questionnaire.Answers{1: questionnaire.BoolValue(false)})
		Expect(payload).To(HaveLen(1))

		result, err := f.svc.SubmitAnswers(ctx, f.owner, id, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Status).To(Equal(workflow.StatusCompleted))
		Expect(result.Message).To(Equal(messageAutoCompleted))

		view, err := f.svc.GetAssessment(ctx, f.owner, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.Status).To(Equal(workflow.StatusCompleted))
	})

	It("moves a full submission to awaiting approval and tells the approver", func() {
		result, err := f.submitFull(id, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Status).To(Equal(workflow.StatusAwaitingApproval))
		Expect(result.Message).To(Equal(messageSubmitted))

		answers, err := f.svc.GetAnswers(ctx, f.approver, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(answers).To(Equal(fullPayload(f.svc.Catalog(), nil)))
		Expect(f.notifier.Events()).To(ContainElement("submitted:approver@example.com"))
	})

	It("stores notes byte for byte", func() {
		notes := `  "quoted"  , with trailing space `
		payload := fullPayload(f.svc.Catalog(), questionnaire.Answers{descriptionID: questionnaire.TextValue(notes)})
		_, err := f.svc.SubmitAnswers(ctx, f.owner, id, payload)
		Expect(err).NotTo(HaveOccurred())

		answers, err := f.svc.GetAnswers(ctx, f.owner, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(answers[1].Notes).To(Equal(notes))
	})

	It("follows nested visibility rules", func() {
		payload := fullPayload(f.svc.Catalog(), questionnaire.Answers{
			sensitiveID:  questionnaire.BoolValue(true),
			continentsID: questionnaire.MultiValue([]string{"Asia", "Europe"}, ""),
		})
		texts := make([]string, len(payload))
		for i, r := range payload {
			texts[i] = r.Question
		}
		gdpr, _ := f.svc.Catalog().ByID(gdprID)
		Expect(texts).To(ContainElement(gdpr.Text))

		_, err := f.svc.SubmitAnswers(ctx, f.owner, id, payload)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a payload missing an applicable question", func() {
		payload := fullPayload(f.svc.Catalog(), nil)
		dropped := payload[len(payload)-1]

		_, err := f.svc.SubmitAnswers(ctx, f.owner, id, payload[:len(payload)-1])
		domainErr := expectCode(err, CodeValidation)
		Expect(domainErr.Details).To(HaveKeyWithValue("missing", []string{dropped.Question}))
	})

	It("rejects answers to hidden questions", func() {
		payload := fullPayload(f.svc.Catalog(), questionnaire.Answers{1: questionnaire.BoolValue(false)})
		q, _ := f.svc.Catalog().ByID(descriptionID)
		extra, err := questionnaire.Encode(q, questionnaire.TextValue("extra"))
		Expect(err).NotTo(HaveOccurred())

		_, err = f.svc.SubmitAnswers(ctx, f.owner, id, append(payload, extra))
		domainErr := expectCode(err, CodeValidation)
		Expect(domainErr.Details).To(HaveKeyWithValue("unexpected", []string{q.Text}))
	})

	It("rejects unknown and repeated questions", func() {
		payload := fullPayload(f.svc.Catalog(), nil)

		_, err := f.svc.SubmitAnswers(ctx, f.owner, id, append(payload, questionnaire.Record{Question: "Is this on the form?"}))
		expectCode(err, CodeValidation)

		_, err = f.svc.SubmitAnswers(ctx, f.owner, id, append(payload, payload[0]))
		expectCode(err, CodeValidation)

		_, err = f.svc.SubmitAnswers(ctx, f.owner, id, nil)
		expectCode(err, CodeValidation)
	})

	It("only lets the owner submit", func() {
		_, err := f.svc.SubmitAnswers(ctx, f.other, id, fullPayload(f.svc.Catalog(), nil))
		expectCode(err, CodeForbidden)

		_, err = f.svc.SubmitAnswers(ctx, f.approver, id, fullPayload(f.svc.Catalog(), nil))
		expectCode(err, CodeForbidden)
	})

	It("returns not found for a missing assessment", func() {
		_, err := f.svc.SubmitAnswers(ctx, f.owner, id+1, fullPayload(f.svc.Catalog(), nil))
		expectCode(err, CodeNotFound)
	})

	Context("after the first submission", func() {
		BeforeEach(func() {
			_, err := f.submitFull(id, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts an unchanged resubmission", func() {
			result, err := f.submitFull(id, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(workflow.StatusAwaitingApproval))
			Expect(result.Message).To(Equal(messageResubmitted))
		})

		It("refuses to change an answer without an open clarification", func() {
			_, err := f.submitFull(id, questionnaire.Answers{descriptionID: questionnaire.TextValue("changed")})
			expectCode(err, CodeForbidden)

			answers, err := f.svc.GetAnswers(ctx, f.owner, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(answers[1].Notes).To(Equal("n/a"))
		})

		It("accepts a change to a question under clarification", func() {
			qid := descriptionID
			_, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Please expand"})
			Expect(err).NotTo(HaveOccurred())

			result, err := f.submitFull(id, questionnaire.Answers{descriptionID: questionnaire.TextValue("A payroll system for staff")})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(workflow.StatusAwaitingApproval))

			answers, err := f.svc.GetAnswers(ctx, f.owner, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(answers[1].Notes).To(Equal("A payroll system for staff"))
		})

		It("refuses to resubmit an approved assessment without a clarification", func() {
			_, err := f.svc.UpdateStatus(ctx, f.approver, id, "approved")
			Expect(err).NotTo(HaveOccurred())

			_, err = f.submitFull(id, nil)
			expectCode(err, CodeInvalidTransition)
		})

		It("reopens an approved assessment through a clarification", func() {
			_, err := f.svc.UpdateStatus(ctx, f.approver, id, "approved")
			Expect(err).NotTo(HaveOccurred())
			qid := descriptionID
			_, err = f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Which teams?"})
			Expect(err).NotTo(HaveOccurred())

			result, err := f.submitFull(id, questionnaire.Answers{descriptionID: questionnaire.TextValue("HR and finance")})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(workflow.StatusAwaitingApproval))
			Expect(result.Message).To(Equal(messageResubmitted))
		})
	})
})

var _ = Describe("UpdateStatus", func() {
	var (
		ctx context.Context
		f   *fixture
		id  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
		id = f.createAssessment().ID
	})

	It("refuses a decision while the assessment is in screening", func() {
		_, err := f.svc.UpdateStatus(ctx, f.approver, id, "approved")
		expectCode(err, CodeInvalidTransition)
	})

	Context("once submitted", func() {
		BeforeEach(func() {
			_, err := f.submitFull(id, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("escalates to red flag and then completes", func() {
			view, err := f.svc.UpdateStatus(ctx, f.approver, id, "red_flag")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(workflow.StatusRedFlag))

			_, err = f.svc.UpdateStatus(ctx, f.approver, id, "approved")
			expectCode(err, CodeInvalidTransition)

			view, err = f.svc.UpdateStatus(ctx, f.approver, id, "completed")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(workflow.StatusCompleted))
			Expect(f.notifier.Events()).To(ContainElements(
				"status:red_flag:owner@example.com",
				"status:completed:owner@example.com",
			))
		})

		It("rejects targets that are not decisions", func() {
			_, err := f.svc.UpdateStatus(ctx, f.approver, id, "screening")
			expectCode(err, CodeValidation)

			_, err = f.svc.UpdateStatus(ctx, f.approver, id, "archived")
			expectCode(err, CodeValidation)
		})

		It("only lets the bound approver decide", func() {
			_, err := f.svc.UpdateStatus(ctx, f.owner, id, "approved")
			expectCode(err, CodeForbidden)

			_, err = f.svc.UpdateStatus(ctx, f.outsider, id, "approved")
			expectCode(err, CodeForbidden)
		})
	})

	It("lets any approver decide when none is bound", func() {
		view, err := f.svc.CreateAssessment(ctx, f.owner, CreateAssessmentInput{Title: "Unbound"})
		Expect(err).NotTo(HaveOccurred())
		Expect(view.ApproverUserID).To(BeNil())
		_, err = f.submitFull(view.ID, nil)
		Expect(err).NotTo(HaveOccurred())

		updated, err := f.svc.UpdateStatus(ctx, f.outsider, view.ID, "changes_requested")
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(workflow.StatusChangesRequested))
	})
})

var _ = Describe("Clarification threads", func() {
	var (
		ctx context.Context
		f   *fixture
		id  int64
		qid int
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
		id = f.createAssessment().ID
		_, err := f.submitFull(id, nil)
		Expect(err).NotTo(HaveOccurred())
		qid = descriptionID
	})

	open := func() ThreadView {
		GinkgoHelper()
		thread, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Please expand"})
		Expect(err).NotTo(HaveOccurred())
		return thread
	}

	It("binds the thread to the question and records the first comment", func() {
		thread := open()
		q, _ := f.svc.Catalog().ByID(qid)
		Expect(*thread.QuestionID).To(Equal(qid))
		Expect(thread.QuestionText).To(Equal(q.Text + ": Please expand"))
		Expect(thread.Status).To(Equal(workflow.ThreadOpen))
		Expect(thread.OpenerEmail).To(Equal("approver@example.com"))

		comments, err := f.svc.ListComments(ctx, f.owner, thread.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(comments).To(HaveLen(1))
		Expect(comments[0].Body).To(Equal("Please expand"))
		Expect(comments[0].AuthorEmail).To(Equal("approver@example.com"))
		Expect(f.notifier.Events()).To(ContainElement("thread_opened:owner@example.com"))
	})

	It("allows one open thread per question", func() {
		open()
		_, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Again"})
		expectCode(err, CodeConflict)

		other := sensitiveID
		_, err = f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &other, Body: "And this"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("allows a new thread once the previous one is resolved", func() {
		first := open()
		resolved, err := f.svc.EndThread(ctx, f.approver, first.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.Status).To(Equal(workflow.ThreadResolved))
		Expect(resolved.ResolvedAt).NotTo(BeNil())

		second := open()
		Expect(second.ID).NotTo(Equal(first.ID))

		threads, err := f.svc.ListThreads(ctx, f.owner, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(threads).To(HaveLen(2))
	})

	It("rejects comments on resolved threads and double resolution", func() {
		thread := open()
		_, err := f.svc.EndThread(ctx, f.approver, thread.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = f.svc.AddComment(ctx, f.owner, thread.ID, "late reply")
		expectCode(err, CodeThreadClosed)

		_, err = f.svc.EndThread(ctx, f.approver, thread.ID)
		expectCode(err, CodeAlreadyResolved)
	})

	It("keeps opening and ending with the approver", func() {
		_, err := f.svc.OpenThread(ctx, f.owner, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Self review"})
		expectCode(err, CodeForbidden)

		_, err = f.svc.OpenThread(ctx, f.outsider, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Not mine"})
		expectCode(err, CodeForbidden)

		thread := open()
		_, err = f.svc.EndThread(ctx, f.owner, thread.ID)
		expectCode(err, CodeForbidden)
	})

	It("accepts the legacy question text form", func() {
		q, _ := f.svc.Catalog().ByID(qid)
		thread, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{
			AssessmentID: id,
			QuestionText: q.Text + ": Which modules are in scope?",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(*thread.QuestionID).To(Equal(qid))

		comments, err := f.svc.ListComments(ctx, f.approver, thread.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(comments[0].Body).To(Equal("Which modules are in scope?"))
	})

	It("validates the question and body", func() {
		unknown := 19
		_, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &unknown, Body: "?"})
		expectCode(err, CodeValidation)

		_, err = f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "   "})
		expectCode(err, CodeValidation)

		_, err = f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, Body: "no question"})
		expectCode(err, CodeValidation)
	})

	It("notifies the other party on each reply", func() {
		thread := open()

		reply, err := f.svc.AddComment(ctx, f.owner, thread.ID, "It is the payroll export")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.AuthorEmail).To(Equal("owner@example.com"))

		_, err = f.svc.AddComment(ctx, f.approver, thread.ID, "Thanks")
		Expect(err).NotTo(HaveOccurred())

		_, err = f.svc.AddComment(ctx, f.other, thread.ID, "Drive-by")
		expectCode(err, CodeForbidden)

		Expect(f.notifier.Events()).To(ContainElements(
			"comment:approver@example.com",
			"comment:owner@example.com",
		))
		comments, err := f.svc.ListComments(ctx, f.owner, thread.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(comments).To(HaveLen(3))
	})

	It("lets exactly one of many concurrent opens through", func() {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				_, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "race"})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				expectCode(err, CodeConflict)
				conflicts++
			}()
		}
		wg.Wait()
		Expect(succeeded).To(Equal(1))
		Expect(conflicts).To(Equal(7))
	})
})

var _ = Describe("ListApplicableQuestions", func() {
	var (
		ctx context.Context
		f   *fixture
		id  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
		id = f.createAssessment().ID
	})

	It("shows only the gate question before it is answered", func() {
		view, err := f.svc.ListApplicableQuestions(ctx, f.owner, id, 3, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.Page).To(Equal(1))
		Expect(view.TotalPages).To(Equal(1))
		Expect(view.Applicable).To(Equal([]int{1}))
		Expect(view.Questions).To(HaveLen(1))
		Expect(view.Questions[0].Editable).To(BeTrue())
		Expect(view.CanResubmit).To(BeFalse())
	})

	It("applies draft answers on top of persisted ones", func() {
		gate, _ := f.svc.Catalog().ByID(1)
		yes, err := questionnaire.Encode(gate, questionnaire.BoolValue(true))
		Expect(err).NotTo(HaveOccurred())

		view, err := f.svc.ListApplicableQuestions(ctx, f.owner, id, 1, []questionnaire.Record{yes})
		Expect(err).NotTo(HaveOccurred())
		Expect(view.TotalPages).To(Equal(5))
		ids := make([]int, len(view.Questions))
		for i, q := range view.Questions {
			ids[i] = q.ID
		}
		Expect(ids).To(Equal([]int{1, 2, 3, 5, 6, 7}))
		Expect(view.Questions[0].Value.IsTrue()).To(BeTrue())
		Expect(view.Questions[0].Record).To(BeNil())
	})

	It("marks questions editable only for an owner under clarification", func() {
		_, err := f.submitFull(id, nil)
		Expect(err).NotTo(HaveOccurred())

		view, err := f.svc.ListApplicableQuestions(ctx, f.owner, id, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		for _, q := range view.Questions {
			Expect(q.Editable).To(BeFalse())
			Expect(q.Record).NotTo(BeNil())
		}

		qid := descriptionID
		_, err = f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Please expand"})
		Expect(err).NotTo(HaveOccurred())

		view, err = f.svc.ListApplicableQuestions(ctx, f.owner, id, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.CanResubmit).To(BeTrue())
		for _, q := range view.Questions {
			Expect(q.Editable).To(Equal(q.ID == descriptionID), "question %d", q.ID)
			if q.ID == descriptionID {
				Expect(q.Thread).NotTo(BeNil())
				Expect(q.Thread.Status).To(Equal(workflow.ThreadOpen))
			}
		}

		approverView, err := f.svc.ListApplicableQuestions(ctx, f.approver, id, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		for _, q := range approverView.Questions {
			Expect(q.Editable).To(BeFalse())
		}
	})

	It("hides the assessment from other owners", func() {
		_, err := f.svc.ListApplicableQuestions(ctx, f.other, id, 1, nil)
		expectCode(err, CodeForbidden)
	})
})

var _ = Describe("Assessments", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
	})

	It("validates creation", func() {
		_, err := f.svc.CreateAssessment(ctx, f.approver, CreateAssessmentInput{Title: "Mine"})
		expectCode(err, CodeForbidden)

		_, err = f.svc.CreateAssessment(ctx, f.owner, CreateAssessmentInput{Title: "  "})
		expectCode(err, CodeValidation)

		notApprover := f.other.UserID
		_, err = f.svc.CreateAssessment(ctx, f.owner, CreateAssessmentInput{Title: "Bad", ApproverUserID: &notApprover})
		expectCode(err, CodeValidation)
	})

	It("scopes listing by role", func() {
		mine := f.createAssessment()
		_, err := f.svc.CreateAssessment(ctx, f.other, CreateAssessmentInput{Title: "Someone else"})
		Expect(err).NotTo(HaveOccurred())

		owned, err := f.svc.ListAssessments(ctx, f.owner, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(owned).To(HaveLen(1))
		Expect(owned[0].ID).To(Equal(mine.ID))
		Expect(owned[0].OwnerName).To(Equal("owner"))
		Expect(*owned[0].ApproverEmail).To(Equal("approver@example.com"))

		all, err := f.svc.ListAssessments(ctx, f.approver, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(2))
	})

	It("deletes the assessment with everything attached", func() {
		id := f.createAssessment().ID
		_, err := f.submitFull(id, nil)
		Expect(err).NotTo(HaveOccurred())
		qid := descriptionID
		thread, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: id, QuestionID: &qid, Body: "Please expand"})
		Expect(err).NotTo(HaveOccurred())

		err = f.svc.DeleteAssessment(ctx, f.other, id)
		expectCode(err, CodeForbidden)

		Expect(f.svc.DeleteAssessment(ctx, f.owner, id)).To(Succeed())

		_, err = f.svc.GetAssessment(ctx, f.owner, id)
		expectCode(err, CodeNotFound)
		_, err = f.svc.ListComments(ctx, f.owner, thread.ID)
		expectCode(err, CodeNotFound)
		answers, err := f.store.ListAnswers(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(answers).To(BeEmpty())
	})
})

var _ = Describe("History", func() {
	var (
		ctx context.Context
		f   *fixture
		id  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{History: history.New(GinkgoT().TempDir())})
		id = f.createAssessment().ID
	})

	It("records a revision per submission and decision", func() {
		_, err := f.submitFull(id, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.svc.UpdateStatus(ctx, f.approver, id, "approved")
		Expect(err).NotTo(HaveOccurred())

		commits, err := f.svc.History(ctx, f.owner, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(commits).To(HaveLen(2))
		Expect(commits[0].Message).To(ContainSubstring("Status changed to approved"))
		Expect(commits[1].Message).To(ContainSubstring(messageSubmitted))

		snap, err := f.svc.Snapshot(ctx, f.approver, id, commits[1].Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Status).To(Equal(string(workflow.StatusAwaitingApproval)))
		Expect(snap.Answers).To(Equal(fullPayload(f.svc.Catalog(), nil)))

		changes, err := f.svc.Diff(ctx, f.owner, id, commits[1].Hash, commits[0].Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(changes).To(ConsistOf(history.Change{Field: "status", Before: "awaiting_approval", After: "approved"}))
	})

	It("requires a target revision for a diff", func() {
		_, err := f.svc.Diff(ctx, f.owner, id, "", "")
		expectCode(err, CodeValidation)
	})

	It("returns an empty list without a history backend", func() {
		plain := newFixture(Deps{})
		a := plain.createAssessment()
		commits, err := plain.svc.History(ctx, plain.owner, a.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(commits).To(BeEmpty())
	})
})

var _ = Describe("Search", func() {
	It("limits owners to their own assessments", func() {
		ctx := context.Background()
		f := newFixture(Deps{})
		f.createAssessment()
		_, err := f.svc.CreateAssessment(ctx, f.other, CreateAssessmentInput{Title: "Payroll for contractors"})
		Expect(err).NotTo(HaveOccurred())

		mine, err := f.svc.Search(ctx, f.owner, "payroll", "", 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(mine.Results).To(HaveLen(1))

		all, err := f.svc.Search(ctx, f.approver, "payroll", "", 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(all.Results).To(HaveLen(2))

		_, err = f.svc.Search(ctx, f.owner, "payroll", "comments", 0, 0)
		expectCode(err, CodeValidation)
	})
})
