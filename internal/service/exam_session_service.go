package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/contentstore"
	"github.com/stemsi/examvault/internal/encryption"
	"github.com/stemsi/examvault/internal/examcontent"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/scoring"
)

// ExamSessionService runs a student's single attempt at an exam.
type ExamSessionService struct {
	exams    ExamRequestRepository
	sessions ExamSessionRepository
	store    contentstore.ContentStore
	grace    time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamSessionService creates a new ExamSessionService. grace is how long
// after the deadline a submission is still accepted.
func NewExamSessionService(
	exams ExamRequestRepository,
	sessions ExamSessionRepository,
	store contentstore.ContentStore,
	grace time.Duration,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		exams:    exams,
		sessions: sessions,
		store:    store,
		grace:    grace,
		log:      log.With().Str("component", "exam_session").Logger(),
		now:      time.Now,
	}
}

// StartedExam is what a student receives when starting or resuming.
type StartedExam struct {
	SessionID        uuid.UUID                       `json:"session_id"`
	ExamID           uuid.UUID                       `json:"exam_id"`
	ExamName         string                          `json:"exam_name"`
	Questions        []examcontent.DeliveredQuestion `json:"questions"`
	TimeLimitMinutes int                             `json:"time_limit_minutes"`
	StartedAt        time.Time                       `json:"started_at"`
	Deadline         time.Time                       `json:"deadline"`
	Resumed          bool                            `json:"resumed"`
}

// Countdown is the server's view of a session's remaining time.
type Countdown struct {
	SessionID uuid.UUID           `json:"session_id"`
	Status    model.SessionStatus `json:"status"`
	Deadline  time.Time           `json:"deadline"`
	Remaining time.Duration       `json:"-"`
}

// Start begins or resumes the student's attempt at the exam published under
// handle. A session created here is deleted again when its content cannot
// be delivered.
func (s *ExamSessionService) Start(ctx context.Context, studentID uuid.UUID, handle string) (*StartedExam, error) {
	exam, err := s.exams.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamRequestApproved || exam.PublishedKey == nil {
		return nil, ErrNotFound
	}
	if !exam.ExamModeEnabled {
		return nil, ErrExamNotStarted
	}

	existing, err := s.sessions.GetByExamAndStudent(ctx, exam.ID, studentID)
	switch {
	case err == nil:
		return s.resume(ctx, exam, existing)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	sess := &model.ExamSession{
		StudentID:      studentID,
		ExamID:         exam.ID,
		TotalQuestions: exam.TotalQuestions,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the insert race to a concurrent start; use the winner's row.
			winner, fetchErr := s.sessions.GetByExamAndStudent(ctx, exam.ID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			return s.resume(ctx, exam, winner)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	started, err := s.deliver(ctx, exam, sess, false)
	if err != nil {
		if delErr := s.sessions.Delete(context.WithoutCancel(ctx), sess.ID); delErr != nil {
			s.log.Error().Err(delErr).
				Str("session_id", sess.ID.String()).
				Msg("Rollback of undelivered session failed")
		}
		return nil, err
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("exam_id", exam.ID.String()).
		Str("student_id", studentID.String()).
		Msg("Exam session started")
	return started, nil
}

func (s *ExamSessionService) resume(ctx context.Context, exam *model.ExamRequest, sess *model.ExamSession) (*StartedExam, error) {
	if sess.Status.Terminal() {
		return nil, ErrAlreadyAttempted
	}
	if s.overdue(sess, exam) {
		if err := s.sessions.MarkTimedOut(ctx, sess.ID, nil, s.now()); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("time out session: %w", err)
		}
		return nil, ErrAlreadyAttempted
	}
	return s.deliver(ctx, exam, sess, true)
}

func (s *ExamSessionService) deliver(ctx context.Context, exam *model.ExamRequest, sess *model.ExamSession, resumed bool) (*StartedExam, error) {
	questions, err := s.loadQuestions(ctx, exam)
	if err != nil {
		return nil, err
	}
	return &StartedExam{
		SessionID:        sess.ID,
		ExamID:           exam.ID,
		ExamName:         exam.ExamName,
		Questions:        examcontent.Sanitize(questions),
		TimeLimitMinutes: exam.TimeLimitMinutes,
		StartedAt:        sess.StartedAt,
		Deadline:         sess.Deadline(exam.TimeLimitMinutes),
		Resumed:          resumed,
	}, nil
}

// loadQuestions fetches and decrypts the authoritative published content.
func (s *ExamSessionService) loadQuestions(ctx context.Context, exam *model.ExamRequest) ([]examcontent.Question, error) {
	if exam.PublishedHandle == nil || exam.PublishedKey == nil {
		return nil, ErrNotApproved
	}

	env, err := s.store.Fetch(ctx, *exam.PublishedHandle)
	if err != nil {
		s.log.Error().Err(err).
			Str("exam_id", exam.ID.String()).
			Str("handle", *exam.PublishedHandle).
			Msg("Content fetch failed")
		if errors.Is(err, contentstore.ErrUnavailable) || errors.Is(err, contentstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
		return nil, ErrCorruptContent
	}

	payload, err := encryption.DecryptEnvelope(env, *exam.PublishedKey)
	if err != nil {
		s.log.Error().Err(err).
			Str("exam_id", exam.ID.String()).
			Str("handle", *exam.PublishedHandle).
			Msg("Published content failed to decrypt")
		return nil, ErrCorruptContent
	}

	questions, err := examcontent.FromPayload(payload)
	if err != nil {
		s.log.Error().Err(err).
			Str("exam_id", exam.ID.String()).
			Msg("Published content has no question list")
		return nil, ErrCorruptContent
	}
	return questions, nil
}

func (s *ExamSessionService) overdue(sess *model.ExamSession, exam *model.ExamRequest) bool {
	return s.now().After(sess.Deadline(exam.TimeLimitMinutes).Add(s.grace))
}

// Submit grades the student's answers against the published content and
// closes the session. A submission after the deadline (plus grace) times
// the session out instead. Only one submission per session is ever scored.
func (s *ExamSessionService) Submit(ctx context.Context, sessionID, studentID uuid.UUID, answers map[string]int) (*model.ExamSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.StudentID != studentID || sess.Status != model.SessionStatusInProgress {
		return nil, ErrNoActiveSession
	}

	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	now := s.now()
	if s.overdue(sess, exam) {
		if err := s.sessions.MarkTimedOut(ctx, sess.ID, answers, now); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("time out session: %w", err)
		}
		s.log.Warn().
			Str("session_id", sessionID.String()).
			Time("deadline", sess.Deadline(exam.TimeLimitMinutes)).
			Msg("Late submission rejected")
		return nil, ErrDeadlinePassed
	}

	questions, err := s.loadQuestions(ctx, exam)
	if err != nil {
		return nil, err
	}

	res := scoring.Score(answers, questions)

	if answers == nil {
		answers = map[string]int{}
	}
	sess.Answers = answers
	sess.Score = &res.Percentage
	sess.CorrectAnswerCount = &res.CorrectCount
	sess.TotalQuestions = res.TotalQuestions
	sess.SubmittedAt = &now
	sess.ResultsAvailable = false

	if err := s.sessions.Complete(ctx, sess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("complete session: %w", err)
	}
	sess.Status = model.SessionStatusCompleted

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("exam_id", sess.ExamID.String()).
		Int("correct", res.CorrectCount).
		Int("total", res.TotalQuestions).
		Msg("Exam session submitted")
	return sess, nil
}

// Result returns the student's own result once it has been released.
func (s *ExamSessionService) Result(ctx context.Context, sessionID, studentID uuid.UUID) (*model.SessionResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.StudentID != studentID {
		return nil, ErrNotFound
	}
	if !sess.ResultsAvailable {
		return nil, ErrResultsNotReleased
	}

	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	return &model.SessionResult{
		SessionID:          sess.ID,
		ExamID:             exam.ID,
		ExamName:           exam.ExamName,
		StudentID:          sess.StudentID,
		Status:             sess.Status,
		Score:              sess.Score,
		CorrectAnswerCount: sess.CorrectAnswerCount,
		TotalQuestions:     sess.TotalQuestions,
		StartedAt:          sess.StartedAt,
		SubmittedAt:        sess.SubmittedAt,
		ResultsAvailable:   true,
	}, nil
}

// ListForStudent returns the student's attempts. Scores of unreleased
// results are withheld.
func (s *ExamSessionService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]model.SessionResult, error) {
	rows, err := s.sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i := range rows {
		if !rows[i].ResultsAvailable {
			rows[i].Score = nil
			rows[i].CorrectAnswerCount = nil
		}
		rows[i].StudentName = ""
		rows[i].StudentEmail = ""
	}
	return rows, nil
}

// ListForExam returns every attempt at an exam owned by instituteID.
func (s *ExamSessionService) ListForExam(ctx context.Context, examID, instituteID uuid.UUID) ([]model.SessionResult, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.InstituteID != instituteID {
		return nil, ErrNotOwner
	}

	rows, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// ExpireOverdue times out abandoned sessions whose deadline plus grace has
// passed.
func (s *ExamSessionService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.sessions.ExpireOverdue(ctx, s.now(), s.grace)
	if err != nil {
		return 0, fmt.Errorf("expire overdue sessions: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("Overdue sessions timed out")
	}
	return n, nil
}

// Remaining reports how long the student has left. It is informational;
// Submit enforces the deadline.
func (s *ExamSessionService) Remaining(ctx context.Context, sessionID, studentID uuid.UUID) (*Countdown, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.StudentID != studentID {
		return nil, ErrNotFound
	}

	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	deadline := sess.Deadline(exam.TimeLimitMinutes)
	cd := &Countdown{SessionID: sess.ID, Status: sess.Status, Deadline: deadline}
	if sess.Status == model.SessionStatusInProgress {
		cd.Remaining = max(deadline.Sub(s.now()), 0)
	}
	return cd, nil
}
