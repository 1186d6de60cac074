package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sra/api/internal/auth"
	"sra/api/internal/authpw"
	"sra/api/internal/config"
	"sra/api/internal/export"
	"sra/api/internal/history"
	"sra/api/internal/lock"
	"sra/api/internal/logger"
	"sra/api/internal/questionnaire"
	"sra/api/internal/rbac"
	"sra/api/internal/search"
	"sra/api/internal/store"
	"sra/api/internal/workflow"
)

// Caller is the authenticated identity an operation runs as.
type Caller struct {
	UserID int64
	Email  string
	Role   rbac.Role
}

func (c Caller) can(action rbac.Action) bool {
	return rbac.Can(c.Role, action)
}

// Store is the persistence the orchestrator needs. store.PostgresStore and
// store.MemoryStore both satisfy it.
type Store interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, int64) (store.User, error)
	ListUsersByRole(context.Context, string) ([]store.User, error)
	SaveRefreshSession(context.Context, string, int64, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	CreateAssessment(context.Context, store.Assessment) error
	GetAssessment(context.Context, int64) (store.Assessment, error)
	ListAssessments(context.Context, store.AssessmentFilter) ([]store.AssessmentSummary, error)
	UpdateAssessmentStatus(context.Context, int64, workflow.Status) (store.Assessment, error)
	DeleteAssessment(context.Context, int64) error
	ListAnswers(context.Context, int64) ([]store.Answer, error)
	SaveSubmission(context.Context, int64, []store.Answer, workflow.Status) (store.Assessment, error)
	CreateThread(context.Context, store.Thread, store.Comment) error
	GetThread(context.Context, int64) (store.Thread, error)
	ListThreads(context.Context, int64) ([]store.Thread, error)
	SearchThreads(context.Context, store.AssessmentFilter) ([]store.Thread, error)
	ResolveThread(context.Context, int64) (bool, error)
	CreateComment(context.Context, store.Comment) error
	ListComments(context.Context, int64) ([]store.Comment, error)
	Ping(context.Context) error
}

// SessionStore keeps refresh sessions. The redis store returns only the user
// id from a lookup.
type SessionStore interface {
	SaveRefreshSession(context.Context, string, int64, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type HistoryLog interface {
	Commit(int64, history.Snapshot, string, string) (history.Commit, error)
	History(int64, int) ([]history.Commit, error)
	Snapshot(int64, string) (history.Snapshot, history.Commit, error)
	Diff(int64, string, string) ([]history.Change, error)
	Remove(int64) error
}

type SearchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexAssessment(search.AssessmentRecord)
	IndexThread(search.ThreadRecord)
	DeleteAssessment(string, []string)
}

type Exporter interface {
	Export(context.Context, export.Document, export.Format) (*export.Result, error)
}

// Notifier delivers workflow emails. email.Service satisfies it.
type Notifier interface {
	NotifyThreadOpened(to, title string, assessmentID int64, question, body string) error
	NotifyComment(to, title string, assessmentID int64, author, body string) error
	NotifyStatusChanged(to, title string, assessmentID int64, status string) error
	NotifySubmitted(to, title string, assessmentID int64, owner string) error
}

// Deps are the optional collaborators. Nil fields get in-process defaults;
// a nil History disables snapshots.
type Deps struct {
	Sessions SessionStore
	Locker   lock.Locker
	Catalog  *questionnaire.Catalog
	History  HistoryLog
	Search   SearchIndex
	Exporter Exporter
	Notifier Notifier
	// Checks are extra readiness checks keyed by name.
	Checks map[string]func(context.Context) error
}

type Service struct {
	cfg      config.Config
	store    Store
	sessions SessionStore
	locker   lock.Locker
	accounts *authpw.Service
	catalog  *questionnaire.Catalog
	history  HistoryLog
	search   SearchIndex
	exporter Exporter
	notifier Notifier
	checks   map[string]func(context.Context) error
	now      func() time.Time
}

func New(cfg config.Config, dataStore Store, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: deps.Sessions,
		locker:   deps.Locker,
		accounts: authpw.NewService(dataStore),
		catalog:  deps.Catalog,
		history:  deps.History,
		search:   deps.Search,
		exporter: deps.Exporter,
		notifier: deps.Notifier,
		checks:   map[string]func(context.Context) error{"database": dataStore.Ping},
		now:      time.Now,
	}
	for name, check := range deps.Checks {
		s.checks[name] = check
	}
	if s.sessions == nil {
		s.sessions = dataStore
	}
	if s.locker == nil {
		s.locker = lock.NewLocal(cfg.LockWait)
	}
	if s.catalog == nil {
		s.catalog = questionnaire.Default()
	}
	if s.search == nil {
		s.search = search.NewService(nil, search.NewStoreSearcher(dataStore))
	}
	if s.exporter == nil {
		s.exporter = export.NewService(cfg.ChromePath, nil)
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	return s
}

// Ready runs every readiness check and returns each result by name.
func (s *Service) Ready(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.checks))
	for name, check := range s.checks {
		results[name] = check(ctx)
	}
	return results
}

func (s *Service) Catalog() *questionnaire.Catalog {
	return s.catalog
}

// Tokens is what login and refresh hand back to the client.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserView  `json:"user"`
}

func (s *Service) Register(ctx context.Context, email, digest, role string) (UserView, error) {
	user, err := s.accounts.Register(ctx, authpw.RegisterRequest{Email: email, Digest: digest, Role: role})
	if err != nil {
		return UserView{}, translate(err)
	}
	slog.InfoContext(ctx, "account registered", "user_id", user.ID, "role", user.Role)
	return newUserView(user), nil
}

func (s *Service) Login(ctx context.Context, email, digest string) (Tokens, error) {
	user, err := s.accounts.Login(ctx, email, digest)
	if err != nil {
		return Tokens{}, translate(err)
	}
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Tokens{}, domainError(http.StatusUnauthorized, CodeUnauthorized, "Refresh token invalid", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	session, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return Tokens{}, domainError(http.StatusUnauthorized, CodeUnauthorized, "Refresh token invalid", nil)
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	user, err := s.store.GetUserByID(ctx, session.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Tokens{}, domainError(http.StatusUnauthorized, CodeUnauthorized, "Refresh token invalid", nil)
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("load user: %w", err)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Tokens{}, fmt.Errorf("revoke refresh session: %w", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *Service) issueTokens(ctx context.Context, user store.User) (Tokens, error) {
	claims := auth.NewClaims(user.ID, user.Email, user.Role, s.cfg.AccessTTL)
	access, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := authpw.GenerateRefreshToken()
	if err != nil {
		return Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return Tokens{}, fmt.Errorf("save refresh session: %w", err)
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    claims.ExpiresAt.Time,
		User:         newUserView(user),
	}, nil
}

// CallerFromToken authenticates an access token. The account is reloaded so
// a deleted user cannot keep acting on an unexpired token.
func (s *Service) CallerFromToken(ctx context.Context, token string) (Caller, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Caller{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Caller{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Caller{}, fmt.Errorf("load user: %w", err)
	}
	return Caller{UserID: user.ID, Email: user.Email, Role: rbac.Normalize(user.Role)}, nil
}

func (s *Service) Me(ctx context.Context, caller Caller) (UserView, error) {
	user, err := s.store.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return UserView{}, translate(err)
	}
	return newUserView(user), nil
}

func (s *Service) ListApprovers(ctx context.Context) ([]UserView, error) {
	users, err := s.store.ListUsersByRole(ctx, string(rbac.RoleApprover))
	if err != nil {
		return nil, fmt.Errorf("list approvers: %w", err)
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return out, nil
}

// withAssessmentLock serializes fn against every other mutation of the same
// assessment.
func (s *Service) withAssessmentLock(ctx context.Context, assessmentID int64, fn func(context.Context) error) error {
	release, err := s.locker.Lock(ctx, "assessment:"+strconv.FormatInt(assessmentID, 10))
	if err != nil {
		return translate(err)
	}
	defer release()
	return fn(ctx)
}

// startOp tags ctx for logging and opens the operation span.
func startOp(ctx context.Context, name string, caller Caller, assessmentID int64) (context.Context, *logger.SpanContext) {
	fields := logger.LogFields{UserID: logger.Ptr(caller.UserID), Component: "workflow"}
	if assessmentID != 0 {
		fields.AssessmentID = logger.Ptr(assessmentID)
	}
	ctx = logger.WithLogFields(ctx, fields)
	span := logger.StartSpan(ctx, name)
	return span.Context(), span
}

// canReview: the bound approver, or any approver while none is bound.
func canReview(caller Caller, a store.Assessment) bool {
	if caller.Role != rbac.RoleApprover {
		return false
	}
	return a.ApproverUserID == nil || *a.ApproverUserID == caller.UserID
}

func canView(caller Caller, a store.Assessment) bool {
	return caller.UserID == a.OwnerUserID || caller.can(rbac.ActionReviewAll)
}

func (s *Service) loadAssessment(ctx context.Context, id int64) (store.Assessment, error) {
	a, err := s.store.GetAssessment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Assessment{}, notFound("Assessment not found")
	}
	if err != nil {
		return store.Assessment{}, fmt.Errorf("load assessment: %w", err)
	}
	return a, nil
}

func (s *Service) viewableAssessment(ctx context.Context, caller Caller, id int64) (store.Assessment, error) {
	a, err := s.loadAssessment(ctx, id)
	if err != nil {
		return store.Assessment{}, err
	}
	if !canView(caller, a) {
		return store.Assessment{}, forbidden("Not authorized to view this assessment")
	}
	return a, nil
}

func (s *Service) emailOf(ctx context.Context, userID *int64) string {
	if userID == nil {
		return ""
	}
	user, err := s.store.GetUserByID(ctx, *userID)
	if err != nil {
		return ""
	}
	return user.Email
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

type noopNotifier struct{}

func (noopNotifier) NotifyThreadOpened(string, string, int64, string, string) error { return nil }
func (noopNotifier) NotifyComment(string, string, int64, string, string) error      { return nil }
func (noopNotifier) NotifyStatusChanged(string, string, int64, string) error        { return nil }
func (noopNotifier) NotifySubmitted(string, string, int64, string) error            { return nil }

// notification is an email owed for a change, sent once the change is saved.
type notification struct {
	kind string
	send func(Notifier) error
}

// deliver sends n on the caller's goroutine after the assessment lock is
// released. A failed send is logged and never fails the request.
func (s *Service) deliver(ctx context.Context, n *notification) {
	if n == nil {
		return
	}
	if err := n.send(s.notifier); err != nil {
		slog.WarnContext(ctx, "notification failed", "kind", n.kind, "error", err)
	}
}
