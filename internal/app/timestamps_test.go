package app

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sra/api/internal/store"
	"sra/api/internal/workflow"
)

// createdAtStore records the creation times the service hands to the store.
type createdAtStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	created map[string][]time.Time
}

func (s *createdAtStore) record(kind string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[kind] = append(s.created[kind], t)
}

func (s *createdAtStore) Times(kind string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.created[kind]...)
}

func (s *createdAtStore) CreateAssessment(ctx context.Context, a store.Assessment) error {
	s.record("assessment", a.CreatedAt)
	return s.MemoryStore.CreateAssessment(ctx, a)
}

func (s *createdAtStore) SaveSubmission(ctx context.Context, id int64, answers []store.Answer, status workflow.Status) (store.Assessment, error) {
	for _, a := range answers {
		s.record("answer", a.CreatedAt)
	}
	return s.MemoryStore.SaveSubmission(ctx, id, answers, status)
}

func (s *createdAtStore) CreateThread(ctx context.Context, t store.Thread, first store.Comment) error {
	s.record("thread", t.CreatedAt)
	s.record("comment", first.CreatedAt)
	return s.MemoryStore.CreateThread(ctx, t, first)
}

func (s *createdAtStore) CreateComment(ctx context.Context, c store.Comment) error {
	s.record("comment", c.CreatedAt)
	return s.MemoryStore.CreateComment(ctx, c)
}

var _ = Describe("Creation timestamps", func() {
	var (
		f     *fixture
		st    *createdAtStore
		clock time.Time
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(Deps{})
		st = &createdAtStore{MemoryStore: f.store, created: map[string][]time.Time{}}
		f.svc = New(testConfig(), st, Deps{Notifier: f.notifier})
		clock = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		f.svc.now = func() time.Time { return clock }
	})

	It("stamps every record the service creates with its clock", func() {
		a := f.createAssessment()
		_, err := f.submitFull(a.ID, nil)
		Expect(err).NotTo(HaveOccurred())

		clock = clock.Add(time.Minute)
		qid := descriptionID
		thread, err := f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: a.ID, QuestionID: &qid, Body: "Which systems?"})
		Expect(err).NotTo(HaveOccurred())

		clock = clock.Add(time.Minute)
		_, err = f.svc.AddComment(ctx, f.owner, thread.ID, "Payroll only")
		Expect(err).NotTo(HaveOccurred())

		start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		Expect(st.Times("assessment")).To(Equal([]time.Time{start}))
		answers := st.Times("answer")
		Expect(answers).NotTo(BeEmpty())
		for _, t := range answers {
			Expect(t).To(Equal(start))
		}
		Expect(st.Times("thread")).To(Equal([]time.Time{start.Add(time.Minute)}))
		Expect(st.Times("comment")).To(Equal([]time.Time{start.Add(time.Minute), start.Add(2 * time.Minute)}))

		view, err := f.svc.GetAssessment(ctx, f.owner, a.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.CreatedAt).To(Equal(start))
		Expect(thread.CreatedAt).To(Equal(start.Add(time.Minute)))
	})

	It("shows the most recently opened thread once all are resolved", func() {
		a := f.createAssessment()
		_, err := f.submitFull(a.ID, nil)
		Expect(err).NotTo(HaveOccurred())

		qid := descriptionID
		var last ThreadView
		for _, body := range []string{"First question", "Second question"} {
			clock = clock.Add(time.Hour)
			last, err = f.svc.OpenThread(ctx, f.approver, OpenThreadInput{AssessmentID: a.ID, QuestionID: &qid, Body: body})
			Expect(err).NotTo(HaveOccurred())
			_, err = f.svc.EndThread(ctx, f.approver, last.ID)
			Expect(err).NotTo(HaveOccurred())
		}

		questions, err := f.svc.ListApplicableQuestions(ctx, f.approver, a.ID, 1, nil)
		Expect(err).NotTo(HaveOccurred())
		var found bool
		for _, q := range questions.Questions {
			if q.ID == descriptionID {
				found = true
				Expect(q.Thread).NotTo(BeNil())
				Expect(q.Thread.ID).To(Equal(last.ID))
				Expect(q.Thread.Status).To(Equal(workflow.ThreadResolved))
			}
		}
		Expect(found).To(BeTrue())
	})
})
