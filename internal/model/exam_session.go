package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusTimedOut   SessionStatus = "timed_out"
)

// Terminal reports whether the session can no longer be submitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTimedOut
}

// ExamSession represents a student's single attempt at an exam.
type ExamSession struct {
	ID                 uuid.UUID      `json:"id"`
	StudentID          uuid.UUID      `json:"student_id"`
	ExamID             uuid.UUID      `json:"exam_id"`
	Answers            map[string]int `json:"answers"`
	Score              *float64       `json:"score,omitempty"`
	CorrectAnswerCount *int           `json:"correct_answer_count,omitempty"`
	TotalQuestions     int            `json:"total_questions"`
	Status             SessionStatus  `json:"status"`
	StartedAt          time.Time      `json:"started_at"`
	SubmittedAt        *time.Time     `json:"submitted_at,omitempty"`
	ResultsAvailable   bool           `json:"results_available"`
}

// Deadline is the authoritative end of the attempt.
func (s *ExamSession) Deadline(timeLimitMinutes int) time.Time {
	return s.StartedAt.Add(time.Duration(timeLimitMinutes) * time.Minute)
}

// SubmitAnswersRequest carries answers keyed by stringified 0-based question
// index, valued by 0-based option index.
type SubmitAnswersRequest struct {
	Answers map[string]int `json:"answers" binding:"required"`
}

// SessionResult is a student-facing result row joined with its exam.
type SessionResult struct {
	SessionID          uuid.UUID     `json:"session_id"`
	ExamID             uuid.UUID     `json:"exam_id"`
	ExamName           string        `json:"exam_name"`
	StudentID          uuid.UUID     `json:"student_id"`
	StudentName        string        `json:"student_name,omitempty"`
	StudentEmail       string        `json:"student_email,omitempty"`
	Status             SessionStatus `json:"status"`
	Score              *float64      `json:"score,omitempty"`
	CorrectAnswerCount *int          `json:"correct_answer_count,omitempty"`
	TotalQuestions     int           `json:"total_questions"`
	StartedAt          time.Time     `json:"started_at"`
	SubmittedAt        *time.Time    `json:"submitted_at,omitempty"`
	ResultsAvailable   bool          `json:"results_available"`
}
