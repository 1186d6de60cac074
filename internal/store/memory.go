package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sra/api/internal/workflow"
)

type refreshSession struct {
	userID    int64
	expiresAt time.Time
	revoked   bool
}

// MemoryStore keeps everything in process. It backs STORE_DRIVER=memory and
// the service tests. Reads return copies so callers cannot mutate state.
type MemoryStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       map[int64]User
	assessments map[int64]Assessment
	answers     map[int64][]Answer
	threads     map[int64]Thread
	comments    map[int64][]Comment
	sessions    map[string]refreshSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         func() time.Time { return time.Now().UTC() },
		users:       map[int64]User{},
		assessments: map[int64]Assessment{},
		answers:     map[int64][]Answer{},
		threads:     map[int64]Thread{},
		comments:    map[int64][]Comment{},
		sessions:    map[string]refreshSession{},
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) ListUsersByRole(_ context.Context, role string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]User, 0)
	for _, user := range s.users {
		if user.Role == role {
			items = append(items, user)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return items, nil
}

func (s *MemoryStore) SaveRefreshSession(_ context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = refreshSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[tokenHash]; ok {
		session.revoked = true
		s.sessions[tokenHash] = session
	}
	return nil
}

func (s *MemoryStore) LookupRefreshSession(_ context.Context, tokenHash string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tokenHash]
	if !ok || session.revoked || !session.expiresAt.After(s.now()) {
		return User{}, ErrNotFound
	}
	user, ok := s.users[session.userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) CreateAssessment(_ context.Context, a Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.UpdatedAt = a.CreatedAt
	a.ApproverUserID = cloneInt64(a.ApproverUserID)
	s.assessments[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAssessment(_ context.Context, id int64) (Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	a.ApproverUserID = cloneInt64(a.ApproverUserID)
	return a, nil
}

func (s *MemoryStore) ListAssessments(_ context.Context, filter AssessmentFilter) ([]AssessmentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	items := make([]AssessmentSummary, 0)
	for _, a := range s.assessments {
		if filter.OwnerID != nil && a.OwnerUserID != *filter.OwnerID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(a.Title), query) && !strings.Contains(string(a.Status), query) {
			continue
		}
		item := AssessmentSummary{Assessment: a, OwnerEmail: "Unknown"}
		item.ApproverUserID = cloneInt64(a.ApproverUserID)
		if owner, ok := s.users[a.OwnerUserID]; ok {
			item.OwnerEmail = owner.Email
		}
		if a.ApproverUserID != nil {
			if approver, ok := s.users[*a.ApproverUserID]; ok {
				email := approver.Email
				item.ApproverEmail = &email
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *MemoryStore) UpdateAssessmentStatus(_ context.Context, id int64, status workflow.Status) (Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = s.now()
	s.assessments[id] = a
	a.ApproverUserID = cloneInt64(a.ApproverUserID)
	return a, nil
}

func (s *MemoryStore) DeleteAssessment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[id]; !ok {
		return ErrNotFound
	}
	for threadID, thread := range s.threads {
		if thread.AssessmentID == id {
			delete(s.comments, threadID)
			delete(s.threads, threadID)
		}
	}
	delete(s.answers, id)
	delete(s.assessments, id)
	return nil
}

func (s *MemoryStore) ListAnswers(_ context.Context, assessmentID int64) ([]Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Answer, len(s.answers[assessmentID]))
	copy(items, s.answers[assessmentID])
	return items, nil
}

func (s *MemoryStore) SaveSubmission(_ context.Context, assessmentID int64, answers []Answer, status workflow.Status) (Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[assessmentID]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	rows := make([]Answer, len(answers))
	for i, answer := range answers {
		answer.AssessmentID = assessmentID
		if answer.CreatedAt.IsZero() {
			answer.CreatedAt = s.now()
		}
		rows[i] = answer
	}
	s.answers[assessmentID] = rows
	a.Status = status
	a.UpdatedAt = s.now()
	s.assessments[assessmentID] = a
	a.ApproverUserID = cloneInt64(a.ApproverUserID)
	return a, nil
}

func (s *MemoryStore) CreateThread(_ context.Context, thread Thread, first Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[thread.AssessmentID]; !ok {
		return ErrNotFound
	}
	if thread.QuestionID != nil && thread.Status == workflow.ThreadOpen {
		for _, existing := range s.threads {
			if existing.AssessmentID == thread.AssessmentID &&
				existing.Status == workflow.ThreadOpen &&
				existing.QuestionID != nil && *existing.QuestionID == *thread.QuestionID {
				return ErrConflict
			}
		}
	}
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = s.now()
	}
	thread.QuestionID = cloneInt(thread.QuestionID)
	thread.OpenerEmail = ""
	s.threads[thread.ID] = thread
	if first.CreatedAt.IsZero() {
		first.CreatedAt = thread.CreatedAt
	}
	first.AuthorEmail = ""
	s.comments[thread.ID] = append(s.comments[thread.ID], first)
	return nil
}

func (s *MemoryStore) GetThread(_ context.Context, id int64) (Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[id]
	if !ok {
		return Thread{}, ErrNotFound
	}
	return s.threadView(thread), nil
}

func (s *MemoryStore) ListThreads(_ context.Context, assessmentID int64) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Thread, 0)
	for _, thread := range s.threads {
		if thread.AssessmentID == assessmentID {
			items = append(items, s.threadView(thread))
		}
	}
	sortThreads(items, false)
	return items, nil
}

func (s *MemoryStore) SearchThreads(_ context.Context, filter AssessmentFilter) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	items := make([]Thread, 0)
	for _, thread := range s.threads {
		if !strings.Contains(strings.ToLower(thread.QuestionText), query) {
			continue
		}
		if filter.OwnerID != nil {
			a, ok := s.assessments[thread.AssessmentID]
			if !ok || a.OwnerUserID != *filter.OwnerID {
				continue
			}
		}
		items = append(items, s.threadView(thread))
	}
	sortThreads(items, true)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStore) ResolveThread(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok || thread.Status != workflow.ThreadOpen {
		return false, nil
	}
	resolvedAt := s.now()
	thread.Status = workflow.ThreadResolved
	thread.ResolvedAt = &resolvedAt
	s.threads[id] = thread
	return true, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, comment Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[comment.ThreadID]; !ok {
		return ErrNotFound
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}
	comment.AuthorEmail = ""
	s.comments[comment.ThreadID] = append(s.comments[comment.ThreadID], comment)
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, threadID int64) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Comment, 0, len(s.comments[threadID]))
	for _, comment := range s.comments[threadID] {
		comment.AuthorEmail = s.emailOf(comment.AuthorID)
		items = append(items, comment)
	}
	return items, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// threadView copies a thread and resolves its opener email. Callers hold mu.
func (s *MemoryStore) threadView(thread Thread) Thread {
	thread.QuestionID = cloneInt(thread.QuestionID)
	if thread.ResolvedAt != nil {
		resolvedAt := *thread.ResolvedAt
		thread.ResolvedAt = &resolvedAt
	}
	thread.OpenerEmail = s.emailOf(thread.OpenedBy)
	return thread
}

func (s *MemoryStore) emailOf(userID int64) string {
	if user, ok := s.users[userID]; ok {
		return user.Email
	}
	return "Unknown"
}

func sortThreads(items []Thread, newestFirst bool) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if newestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if newestFirst {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
