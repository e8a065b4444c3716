package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/service"
)

// Each stub answers through its func fields; unset fields return zero values.

type stubAuth struct {
	login  func(email, password string) (string, *model.User, error)
	logout func(claims *service.Claims) error
	me     func(id uuid.UUID) (*model.User, error)
}

func (s *stubAuth) Login(_ context.Context, email, password string) (string, *model.User, error) {
	if s.login == nil {
		return "", nil, nil
	}
	return s.login(email, password)
}

func (s *stubAuth) Logout(_ context.Context, claims *service.Claims) error {
	if s.logout == nil {
		return nil
	}
	return s.logout(claims)
}

func (s *stubAuth) Me(_ context.Context, id uuid.UUID) (*model.User, error) {
	if s.me == nil {
		return &model.User{ID: id}, nil
	}
	return s.me(id)
}

type stubExams struct {
	submit    func(instituteID uuid.UUID, meta model.SubmitExamRequest, raw []byte) (*model.ExamRequest, error)
	decide    func(id, reviewerID uuid.UUID, d model.DecisionRequest) (*model.ExamRequest, error)
	examMode  func(id, instituteID uuid.UUID, enabled bool) (*model.ExamRequest, error)
	release   func(id, instituteID uuid.UUID) (*service.ReleaseReport, error)
	get       func(id, instituteID uuid.UUID) (*model.ExamRequest, error)
	review    func(id uuid.UUID) (*model.ExamRequest, error)
	list      func(instituteID uuid.UUID, page, perPage int) ([]model.ExamRequest, int, error)
	pending   func(page, perPage int) ([]model.ExamRequest, int, error)
	published func(id, instituteID uuid.UUID) (string, string, error)
}

func (s *stubExams) Submit(_ context.Context, instituteID uuid.UUID, meta model.SubmitExamRequest, raw []byte) (*model.ExamRequest, error) {
	return s.submit(instituteID, meta, raw)
}

func (s *stubExams) Decide(_ context.Context, id, reviewerID uuid.UUID, d model.DecisionRequest) (*model.ExamRequest, error) {
	return s.decide(id, reviewerID, d)
}

func (s *stubExams) SetExamMode(_ context.Context, id, instituteID uuid.UUID, enabled bool) (*model.ExamRequest, error) {
	return s.examMode(id, instituteID, enabled)
}

func (s *stubExams) Release(_ context.Context, id, instituteID uuid.UUID) (*service.ReleaseReport, error) {
	return s.release(id, instituteID)
}

func (s *stubExams) Get(_ context.Context, id, instituteID uuid.UUID) (*model.ExamRequest, error) {
	return s.get(id, instituteID)
}

func (s *stubExams) GetForReview(_ context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	return s.review(id)
}

func (s *stubExams) ListByInstitute(_ context.Context, instituteID uuid.UUID, page, perPage int) ([]model.ExamRequest, int, error) {
	return s.list(instituteID, page, perPage)
}

func (s *stubExams) ListPending(_ context.Context, page, perPage int) ([]model.ExamRequest, int, error) {
	return s.pending(page, perPage)
}

func (s *stubExams) PublishedKey(_ context.Context, id, instituteID uuid.UUID) (string, string, error) {
	return s.published(id, instituteID)
}

type stubSessions struct {
	start      func(studentID uuid.UUID, handle string) (*service.StartedExam, error)
	submit     func(sessionID, studentID uuid.UUID, answers map[string]int) (*model.ExamSession, error)
	result     func(sessionID, studentID uuid.UUID) (*model.SessionResult, error)
	forStudent func(studentID uuid.UUID) ([]model.SessionResult, error)
	forExam    func(examID, instituteID uuid.UUID) ([]model.SessionResult, error)
	remaining  func(sessionID, studentID uuid.UUID) (*service.Countdown, error)
}

func (s *stubSessions) Start(_ context.Context, studentID uuid.UUID, handle string) (*service.StartedExam, error) {
	return s.start(studentID, handle)
}

func (s *stubSessions) Submit(_ context.Context, sessionID, studentID uuid.UUID, answers map[string]int) (*model.ExamSession, error) {
	return s.submit(sessionID, studentID, answers)
}

func (s *stubSessions) Result(_ context.Context, sessionID, studentID uuid.UUID) (*model.SessionResult, error) {
	return s.result(sessionID, studentID)
}

func (s *stubSessions) ListForStudent(_ context.Context, studentID uuid.UUID) ([]model.SessionResult, error) {
	return s.forStudent(studentID)
}

func (s *stubSessions) ListForExam(_ context.Context, examID, instituteID uuid.UUID) ([]model.SessionResult, error) {
	return s.forExam(examID, instituteID)
}

func (s *stubSessions) Remaining(_ context.Context, sessionID, studentID uuid.UUID) (*service.Countdown, error) {
	return s.remaining(sessionID, studentID)
}

// as injects claims the way RequireJWT would.
func as(id uuid.UUID, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: id, Role: role})
		c.Next()
	}
}
