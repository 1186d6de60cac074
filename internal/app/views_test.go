package app

import (
	"bytes"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sra/api/internal/store"
	"sra/api/internal/workflow"
)

var _ = Describe("Views", func() {
	It("maps an assessment summary with its people", func() {
		approverID := int64(42)
		approverEmail := "dana.reviewer@example.com"
		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		view := newAssessmentView(store.AssessmentSummary{
			Assessment: store.Assessment{
				ID: 7, Title: "Payroll", OwnerUserID: 9, ApproverUserID: &approverID,
				Status: workflow.StatusAwaitingApproval, IsNew: true, CreatedAt: created, UpdatedAt: created,
			},
			OwnerEmail:    "sam@example.com",
			ApproverEmail: &approverEmail,
		})

		Expect(view.ID).To(Equal(int64(7)))
		Expect(view.OwnerUserID).To(Equal(int64(9)))
		Expect(view.ApproverUserID).To(HaveValue(Equal(approverID)))
		Expect(view.Status).To(Equal(workflow.StatusAwaitingApproval))
		Expect(view.CreatedAt).To(Equal(created))
		Expect(view.OwnerName).To(Equal("sam"))
		Expect(view.ApproverName).To(HaveValue(Equal("dana.reviewer")))
	})

	It("logs a mapping failure instead of dropping it", func() {
		var buf bytes.Buffer
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		var view UserView
		copyView(view, &store.User{ID: 1, Email: "a@example.com"})

		Expect(buf.String()).To(ContainSubstring("view mapping failed"))
		Expect(buf.String()).To(ContainSubstring("level=ERROR"))
	})
})
