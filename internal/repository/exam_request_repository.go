package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/examvault/internal/model"
)

const examRequestColumns = `id, institute_id, exam_name, description, time_limit_minutes, status,
	encrypted_content, encryption_key, published_handle, published_key,
	exam_mode_enabled, results_released, total_questions,
	reviewer_comment, reviewed_at, reviewed_by, created_at, updated_at`

// ExamRequestRepository handles exam request data access.
type ExamRequestRepository struct {
	pool *pgxpool.Pool
}

// NewExamRequestRepository creates a new ExamRequestRepository.
func NewExamRequestRepository(pool *pgxpool.Pool) *ExamRequestRepository {
	return &ExamRequestRepository{pool: pool}
}

func scanExamRequest(row pgx.Row) (*model.ExamRequest, error) {
	e := &model.ExamRequest{}
	err := row.Scan(&e.ID, &e.InstituteID, &e.ExamName, &e.Description, &e.TimeLimitMinutes, &e.Status,
		&e.EncryptedContent, &e.EncryptionKey, &e.PublishedHandle, &e.PublishedKey,
		&e.ExamModeEnabled, &e.ResultsReleased, &e.TotalQuestions,
		&e.ReviewerComment, &e.ReviewedAt, &e.ReviewedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a pending exam request.
func (r *ExamRequestRepository) Create(ctx context.Context, e *model.ExamRequest) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_requests (institute_id, exam_name, description, time_limit_minutes,
		                            status, encrypted_content, encryption_key, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		e.InstituteID, e.ExamName, e.Description, e.TimeLimitMinutes,
		model.ExamRequestPending, e.EncryptedContent, e.EncryptionKey, e.TotalQuestions,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam request by its UUID.
func (r *ExamRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	return scanExamRequest(r.pool.QueryRow(ctx,
		`SELECT `+examRequestColumns+` FROM exam_requests WHERE id = $1`, id))
}

// GetByHandle retrieves an approved exam by its content-store handle.
func (r *ExamRequestRepository) GetByHandle(ctx context.Context, handle string) (*model.ExamRequest, error) {
	return scanExamRequest(r.pool.QueryRow(ctx,
		`SELECT `+examRequestColumns+` FROM exam_requests WHERE published_handle = $1`, handle))
}

// ListByInstitute retrieves an institute's requests, newest first.
func (r *ExamRequestRepository) ListByInstitute(ctx context.Context, instituteID uuid.UUID, limit, offset int) ([]model.ExamRequest, int, error) {
	return r.list(ctx, "institute_id = $1", "created_at DESC", instituteID, limit, offset)
}

// ListByStatus retrieves requests in a review state, oldest first so the
// review queue is worked in arrival order.
func (r *ExamRequestRepository) ListByStatus(ctx context.Context, status model.ExamRequestStatus, limit, offset int) ([]model.ExamRequest, int, error) {
	return r.list(ctx, "status = $1", "created_at ASC", status, limit, offset)
}

func (r *ExamRequestRepository) list(ctx context.Context, where, order string, arg any, limit, offset int) ([]model.ExamRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_requests WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM exam_requests WHERE %s ORDER BY %s LIMIT $2 OFFSET $3`,
			examRequestColumns, where, order),
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ExamRequest
	for rows.Next() {
		e, err := scanExamRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// Reject records a rejection. Returns pgx.ErrNoRows when the request is no
// longer pending.
func (r *ExamRequestRepository) Reject(ctx context.Context, id, reviewerID uuid.UUID, comment *string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_requests
		 SET status = $1, reviewer_comment = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		model.ExamRequestRejected, comment, reviewerID, at, id, model.ExamRequestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Approve records an approval together with the published handle and the
// key that opens it. Returns pgx.ErrNoRows when the request is no longer
// pending.
func (r *ExamRequestRepository) Approve(ctx context.Context, id, reviewerID uuid.UUID, comment *string, handle, publishedKey string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_requests
		 SET status = $1, reviewer_comment = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4,
		     published_handle = $5, published_key = $6
		 WHERE id = $7 AND status = $8`,
		model.ExamRequestApproved, comment, reviewerID, at, handle, publishedKey, id, model.ExamRequestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetExamMode toggles whether students may start the exam.
func (r *ExamRequestRepository) SetExamMode(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_requests SET exam_mode_enabled = $1, updated_at = NOW() WHERE id = $2`,
		enabled, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkResultsReleased flags the exam's results as released.
func (r *ExamRequestRepository) MarkResultsReleased(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_requests SET results_released = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
