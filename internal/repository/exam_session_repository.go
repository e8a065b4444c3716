package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/examvault/internal/model"
)

const examSessionColumns = `id, student_id, exam_id, answers, score, correct_answer_count,
	total_questions, status, started_at, submitted_at, results_available`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanExamSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.StudentID, &s.ExamID, &s.Answers, &s.Score, &s.CorrectAnswerCount,
		&s.TotalQuestions, &s.Status, &s.StartedAt, &s.SubmittedAt, &s.ResultsAvailable)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanExamSession(r.pool.QueryRow(ctx,
		`SELECT `+examSessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the session for a specific exam-student pair.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error) {
	return scanExamSession(r.pool.QueryRow(ctx,
		`SELECT `+examSessionColumns+` FROM exam_sessions WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID))
}

// Create inserts a new in-progress session. When the (student, exam) pair
// already has a session the insert is skipped and pgx.ErrNoRows returned.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (student_id, exam_id, total_questions, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, exam_id) DO NOTHING
		 RETURNING id, started_at, status`,
		s.StudentID, s.ExamID, s.TotalQuestions, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt, &s.Status)
}

// Delete removes a session. Used to roll back a session whose content could
// not be delivered.
func (r *ExamSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exam_sessions WHERE id = $1`, id)
	return err
}

// Complete stores the graded submission and hides its result until the next
// release. Only an in-progress session is updated; otherwise pgx.ErrNoRows is
// returned.
func (r *ExamSessionRepository) Complete(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET answers = $1, score = $2, correct_answer_count = $3, total_questions = $4,
		     status = $5, submitted_at = $6,
		     results_available = FALSE
		 WHERE id = $7 AND status = $8
		 RETURNING submitted_at`,
		s.Answers, s.Score, s.CorrectAnswerCount, s.TotalQuestions,
		model.SessionStatusCompleted, s.SubmittedAt, s.ID, model.SessionStatusInProgress,
	).Scan(&s.SubmittedAt)
}

// MarkTimedOut closes an in-progress session past its deadline, keeping the
// late answers for audit. Returns pgx.ErrNoRows when it is not in progress.
func (r *ExamSessionRepository) MarkTimedOut(ctx context.Context, id uuid.UUID, answers map[string]int, at time.Time) error {
	if answers == nil {
		answers = map[string]int{}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, answers = $2, submitted_at = $3
		 WHERE id = $4 AND status = $5`,
		model.SessionStatusTimedOut, answers, at, id, model.SessionStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ExpireOverdue times out every in-progress session whose deadline plus
// grace lies before now. Returns the number of sessions closed.
func (r *ExamSessionRepository) ExpireOverdue(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions es
		 SET status = $1, submitted_at = $2
		 FROM exam_requests er
		 WHERE es.exam_id = er.id
		   AND es.status = $3
		   AND es.started_at + er.time_limit_minutes * INTERVAL '1 minute' + $4 * INTERVAL '1 second' < $2`,
		model.SessionStatusTimedOut, now, model.SessionStatusInProgress, int64(grace/time.Second))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReleaseForExam makes results visible on every session of the exam.
func (r *ExamSessionRepository) ReleaseForExam(ctx context.Context, examID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET results_available = TRUE WHERE exam_id = $1`, examID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const sessionResultSelect = `SELECT es.id, es.exam_id, er.exam_name, es.student_id, u.name, u.email,
	es.status, es.score, es.correct_answer_count, es.total_questions,
	es.started_at, es.submitted_at, es.results_available
	FROM exam_sessions es
	JOIN exam_requests er ON er.id = es.exam_id
	JOIN users u ON u.id = es.student_id`

func scanSessionResults(rows pgx.Rows) ([]model.SessionResult, error) {
	defer rows.Close()

	var out []model.SessionResult
	for rows.Next() {
		var r model.SessionResult
		if err := rows.Scan(&r.SessionID, &r.ExamID, &r.ExamName, &r.StudentID, &r.StudentName, &r.StudentEmail,
			&r.Status, &r.Score, &r.CorrectAnswerCount, &r.TotalQuestions,
			&r.StartedAt, &r.SubmittedAt, &r.ResultsAvailable); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListByStudent retrieves all of a student's sessions, newest first.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.SessionResult, error) {
	rows, err := r.pool.Query(ctx, sessionResultSelect+`
		WHERE es.student_id = $1
		ORDER BY es.started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	return scanSessionResults(rows)
}

// ListByExam retrieves every session of an exam with student details.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SessionResult, error) {
	rows, err := r.pool.Query(ctx, sessionResultSelect+`
		WHERE es.exam_id = $1
		ORDER BY u.name ASC`, examID)
	if err != nil {
		return nil, err
	}
	return scanSessionResults(rows)
}
