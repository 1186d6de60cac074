package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sra/api/internal/lock"
)

// lockCheckingNotifier records, for each submission email, whether the
// assessment lock was free at send time.
type lockCheckingNotifier struct {
	recordingNotifier
	locker   lock.Locker
	mu       sync.Mutex
	lockFree []bool
}

func (n *lockCheckingNotifier) NotifySubmitted(to, title string, assessmentID int64, owner string) error {
	release, err := n.locker.Lock(context.Background(), "assessment:"+strconv.FormatInt(assessmentID, 10))
	if err == nil {
		release()
	}
	n.mu.Lock()
	n.lockFree = append(n.lockFree, err == nil)
	n.mu.Unlock()
	return n.recordingNotifier.NotifySubmitted(to, title, assessmentID, owner)
}

type failingNotifier struct{ recordingNotifier }

func (*failingNotifier) NotifySubmitted(string, string, int64, string) error {
	return errors.New("smtp: connection refused")
}

var _ = Describe("Notifications", func() {
	It("has sent the email by the time the call returns", func() {
		f := newFixture(Deps{})
		a := f.createAssessment()
		Expect(f.notifier.Events()).To(BeEmpty())

		_, err := f.submitFull(a.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.notifier.Events()).To(Equal([]string{"submitted:approver@example.com"}))
	})

	It("sends after the assessment lock is released", func() {
		locker := lock.NewLocal(20 * time.Millisecond)
		notifier := &lockCheckingNotifier{locker: locker}
		f := newFixture(Deps{Locker: locker, Notifier: notifier})
		a := f.createAssessment()

		_, err := f.submitFull(a.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(notifier.lockFree).To(Equal([]bool{true}))
		Expect(notifier.Events()).To(Equal([]string{"submitted:approver@example.com"}))
	})

	It("sends nothing for a rejected change", func() {
		f := newFixture(Deps{})
		a := f.createAssessment()

		_, err := f.svc.UpdateStatus(context.Background(), f.approver, a.ID, "approved")
		expectCode(err, CodeInvalidTransition)
		Expect(f.notifier.Events()).To(BeEmpty())
	})

	It("logs a failed send without failing the request", func() {
		var buf bytes.Buffer
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		f := newFixture(Deps{Notifier: &failingNotifier{}})
		a := f.createAssessment()

		result, err := f.submitFull(a.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Message).To(Equal(messageSubmitted))
		Expect(buf.String()).To(ContainSubstring("notification failed"))
		Expect(buf.String()).To(ContainSubstring("kind=submitted"))
		Expect(buf.String()).To(ContainSubstring("connection refused"))
	})
})
