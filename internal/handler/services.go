package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/service"
)

// AuthService is implemented by *service.AuthService.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	Logout(ctx context.Context, claims *service.Claims) error
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

// ExamRequestService is implemented by *service.ExamRequestService.
type ExamRequestService interface {
	Submit(ctx context.Context, instituteID uuid.UUID, meta model.SubmitExamRequest, raw []byte) (*model.ExamRequest, error)
	Decide(ctx context.Context, requestID, reviewerID uuid.UUID, d model.DecisionRequest) (*model.ExamRequest, error)
	SetExamMode(ctx context.Context, requestID, instituteID uuid.UUID, enabled bool) (*model.ExamRequest, error)
	Release(ctx context.Context, requestID, instituteID uuid.UUID) (*service.ReleaseReport, error)
	Get(ctx context.Context, requestID, instituteID uuid.UUID) (*model.ExamRequest, error)
	GetForReview(ctx context.Context, requestID uuid.UUID) (*model.ExamRequest, error)
	ListByInstitute(ctx context.Context, instituteID uuid.UUID, page, perPage int) ([]model.ExamRequest, int, error)
	ListPending(ctx context.Context, page, perPage int) ([]model.ExamRequest, int, error)
	PublishedKey(ctx context.Context, requestID, instituteID uuid.UUID) (string, string, error)
}

// ExamSessionService is implemented by *service.ExamSessionService.
type ExamSessionService interface {
	Start(ctx context.Context, studentID uuid.UUID, handle string) (*service.StartedExam, error)
	Submit(ctx context.Context, sessionID, studentID uuid.UUID, answers map[string]int) (*model.ExamSession, error)
	Result(ctx context.Context, sessionID, studentID uuid.UUID) (*model.SessionResult, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]model.SessionResult, error)
	ListForExam(ctx context.Context, examID, instituteID uuid.UUID) ([]model.SessionResult, error)
	Remaining(ctx context.Context, sessionID, studentID uuid.UUID) (*service.Countdown, error)
}
