package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/examvault/internal/model"
)

// ExamRequestRepository is the persistence the exam workflow needs.
// Implemented by *repository.ExamRequestRepository.
type ExamRequestRepository interface {
	Create(ctx context.Context, e *model.ExamRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error)
	GetByHandle(ctx context.Context, handle string) (*model.ExamRequest, error)
	ListByInstitute(ctx context.Context, instituteID uuid.UUID, limit, offset int) ([]model.ExamRequest, int, error)
	ListByStatus(ctx context.Context, status model.ExamRequestStatus, limit, offset int) ([]model.ExamRequest, int, error)
	Reject(ctx context.Context, id, reviewerID uuid.UUID, comment *string, at time.Time) error
	Approve(ctx context.Context, id, reviewerID uuid.UUID, comment *string, handle, publishedKey string, at time.Time) error
	SetExamMode(ctx context.Context, id uuid.UUID, enabled bool) error
	MarkResultsReleased(ctx context.Context, id uuid.UUID) error
}

// ExamSessionRepository is the persistence exam sessions need.
// Implemented by *repository.ExamSessionRepository.
type ExamSessionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error)
	Create(ctx context.Context, s *model.ExamSession) error
	Delete(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, s *model.ExamSession) error
	MarkTimedOut(ctx context.Context, id uuid.UUID, answers map[string]int, at time.Time) error
	ExpireOverdue(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
	ReleaseForExam(ctx context.Context, examID uuid.UUID) (int64, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.SessionResult, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SessionResult, error)
}

// UserRepository resolves accounts. Implemented by *repository.UserRepository.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
