package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sra/api/internal/workflow"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Email, user.PasswordHash, user.Role)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE email=$1`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, role, created_at FROM users WHERE id=$1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, notFound(err, "get user")
	}
	return user, nil
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE role=$1
		ORDER BY email ASC
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.role, u.created_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, notFound(err, "lookup refresh session")
	}
	return user, nil
}

func (s *PostgresStore) CreateAssessment(ctx context.Context, a Assessment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, title, owner_user_id, approver_user_id, status, is_new, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, a.ID, a.Title, a.OwnerUserID, a.ApproverUserID, string(a.Status), a.IsNew, stamp(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

const assessmentColumns = `a.id, a.title, a.owner_user_id, a.approver_user_id, a.status, a.is_new, a.created_at, a.updated_at`

func scanAssessment(row interface{ Scan(...any) error }, a *Assessment, extra ...any) error {
	var approver sql.NullInt64
	var status string
	dest := append([]any{&a.ID, &a.Title, &a.OwnerUserID, &approver, &status, &a.IsNew, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if approver.Valid {
		a.ApproverUserID = &approver.Int64
	}
	a.Status = workflow.Status(status)
	return nil
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id int64) (Assessment, error) {
	var a Assessment
	row := s.db.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments a WHERE a.id=$1`, id)
	if err := scanAssessment(row, &a); err != nil {
		return Assessment{}, notFound(err, "get assessment")
	}
	return a, nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]AssessmentSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assessmentColumns+`, COALESCE(o.email, 'Unknown'), ap.email
		FROM assessments a
		LEFT JOIN users o ON o.id = a.owner_user_id
		LEFT JOIN users ap ON ap.id = a.approver_user_id
		WHERE ($1::bigint IS NULL OR a.owner_user_id = $1)
		  AND ($2::text = '' OR a.title ILIKE '%' || $2::text || '%' OR a.status ILIKE '%' || $2::text || '%')
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $3
	`, filter.OwnerID, filter.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	items := make([]AssessmentSummary, 0)
	for rows.Next() {
		var item AssessmentSummary
		var approverEmail sql.NullString
		if err := scanAssessment(rows, &item.Assessment, &item.OwnerEmail, &approverEmail); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		if approverEmail.Valid {
			item.ApproverEmail = &approverEmail.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateAssessmentStatus(ctx context.Context, id int64, status workflow.Status) (Assessment, error) {
	var a Assessment
	row := s.db.QueryRowContext(ctx, `
		UPDATE assessments a SET status=$2, updated_at=NOW()
		WHERE a.id=$1
		RETURNING `+assessmentColumns, id, string(status))
	if err := scanAssessment(row, &a); err != nil {
		return Assessment{}, notFound(err, "update assessment status")
	}
	return a, nil
}

// DeleteAssessment removes the assessment with its answers, threads and comments.
func (s *PostgresStore) DeleteAssessment(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM thread_comments
			WHERE thread_id IN (SELECT id FROM question_threads WHERE assessment_id=$1)
		`, id); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM question_threads WHERE assessment_id=$1`, id); err != nil {
			return fmt.Errorf("delete threads: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM screening_answers WHERE assessment_id=$1`, id); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete assessment: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete assessment rows: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) ListAnswers(ctx context.Context, assessmentID int64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assessment_id, question_text, answer, notes, created_at
		FROM screening_answers
		WHERE assessment_id=$1
		ORDER BY created_at ASC, id ASC
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	items := make([]Answer, 0)
	for rows.Next() {
		var item Answer
		if err := rows.Scan(&item.ID, &item.AssessmentID, &item.QuestionText, &item.Answer, &item.Notes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return items, nil
}

// SaveSubmission replaces the answer set and writes the status in one transaction.
func (s *PostgresStore) SaveSubmission(ctx context.Context, assessmentID int64, answers []Answer, status workflow.Status) (Assessment, error) {
	var updated Assessment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var locked int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM assessments WHERE id=$1 FOR UPDATE`, assessmentID).Scan(&locked); err != nil {
			return notFound(err, "lock assessment")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM screening_answers WHERE assessment_id=$1`, assessmentID); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		for _, a := range answers {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO screening_answers (id, assessment_id, question_text, answer, notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, a.ID, assessmentID, a.QuestionText, a.Answer, a.Notes, stamp(a.CreatedAt)); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
		row := tx.QueryRowContext(ctx, `
			UPDATE assessments a SET status=$2, updated_at=NOW()
			WHERE a.id=$1
			RETURNING `+assessmentColumns, assessmentID, string(status))
		if err := scanAssessment(row, &updated); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	if err != nil {
		return Assessment{}, err
	}
	return updated, nil
}

// CreateThread inserts the thread and its opening comment together.
func (s *PostgresStore) CreateThread(ctx context.Context, thread Thread, first Comment) error {
	thread.CreatedAt = stamp(thread.CreatedAt)
	if first.CreatedAt.IsZero() {
		first.CreatedAt = thread.CreatedAt
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO question_threads (id, assessment_id, question_id, question_text, opened_by, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, thread.ID, thread.AssessmentID, thread.QuestionID, thread.QuestionText, thread.OpenedBy, string(thread.Status), thread.CreatedAt)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}
		if err := insertComment(ctx, tx, first); err != nil {
			return err
		}
		return nil
	})
}

const threadSelect = `
	SELECT t.id, t.assessment_id, t.question_id, t.question_text, t.opened_by, COALESCE(u.email, 'Unknown'), t.status, t.created_at, t.resolved_at
	FROM question_threads t
	LEFT JOIN users u ON u.id = t.opened_by
`

func scanThread(row interface{ Scan(...any) error }) (Thread, error) {
	var item Thread
	var questionID sql.NullInt32
	var status string
	var resolvedAt sql.NullTime
	if err := row.Scan(&item.ID, &item.AssessmentID, &questionID, &item.QuestionText, &item.OpenedBy, &item.OpenerEmail, &status, &item.CreatedAt, &resolvedAt); err != nil {
		return Thread{}, err
	}
	if questionID.Valid {
		id := int(questionID.Int32)
		item.QuestionID = &id
	}
	if resolvedAt.Valid {
		item.ResolvedAt = &resolvedAt.Time
	}
	item.Status = workflow.ThreadStatus(status)
	return item, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, id int64) (Thread, error) {
	item, err := scanThread(s.db.QueryRowContext(ctx, threadSelect+` WHERE t.id=$1`, id))
	if err != nil {
		return Thread{}, notFound(err, "get thread")
	}
	return item, nil
}

func (s *PostgresStore) ListThreads(ctx context.Context, assessmentID int64) ([]Thread, error) {
	return s.queryThreads(ctx, threadSelect+` WHERE t.assessment_id=$1 ORDER BY t.created_at ASC, t.id ASC`, assessmentID)
}

// SearchThreads matches question text. A nil owner searches every assessment.
func (s *PostgresStore) SearchThreads(ctx context.Context, filter AssessmentFilter) ([]Thread, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return s.queryThreads(ctx, threadSelect+`
		JOIN assessments a ON a.id = t.assessment_id
		WHERE t.question_text ILIKE '%' || $1::text || '%'
		  AND ($2::bigint IS NULL OR a.owner_user_id = $2)
		ORDER BY t.created_at DESC
		LIMIT $3
	`, filter.Query, filter.OwnerID, limit)
}

func (s *PostgresStore) queryThreads(ctx context.Context, query string, args ...any) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		item, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

// ResolveThread reports false when the thread was already resolved.
func (s *PostgresStore) ResolveThread(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE question_threads
		SET status='resolved', resolved_at=NOW()
		WHERE id=$1 AND status='open'
	`, id)
	if err != nil {
		return false, fmt.Errorf("resolve thread: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve thread rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) error {
	return insertComment(ctx, s.db, comment)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertComment(ctx context.Context, db execer, comment Comment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO thread_comments (id, thread_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, comment.ID, comment.ThreadID, comment.AuthorID, comment.Body, stamp(comment.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, threadID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.thread_id, c.author_id, COALESCE(u.email, 'Unknown'), c.body, c.created_at
		FROM thread_comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.thread_id=$1
		ORDER BY c.created_at ASC, c.id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.ThreadID, &item.AuthorID, &item.AuthorEmail, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// stamp fills an unset creation time, matching the memory store.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
