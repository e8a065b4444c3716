package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamRequestStatus enumerates the review states of an uploaded exam.
type ExamRequestStatus string

const (
	ExamRequestPending  ExamRequestStatus = "pending"
	ExamRequestApproved ExamRequestStatus = "approved"
	ExamRequestRejected ExamRequestStatus = "rejected"
)

// Terminal reports whether no further review transition is allowed.
func (s ExamRequestStatus) Terminal() bool {
	return s == ExamRequestApproved || s == ExamRequestRejected
}

// ExamRequest is an institute's uploaded exam and its review/publish state.
// The at-rest ciphertext, its key and the published key never leave the
// service layer through JSON.
type ExamRequest struct {
	ID               uuid.UUID         `json:"id"`
	InstituteID      uuid.UUID         `json:"institute_id"`
	ExamName         string            `json:"exam_name"`
	Description      string            `json:"description"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
	Status           ExamRequestStatus `json:"status"`
	EncryptedContent string            `json:"-"`
	EncryptionKey    string            `json:"-"`
	PublishedHandle  *string           `json:"published_handle,omitempty"`
	PublishedKey     *string           `json:"-"`
	ExamModeEnabled  bool              `json:"exam_mode_enabled"`
	ResultsReleased  bool              `json:"results_released"`
	TotalQuestions   int               `json:"total_questions"`
	ReviewerComment  *string           `json:"reviewer_comment,omitempty"`
	ReviewedAt       *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy       *uuid.UUID        `json:"reviewed_by,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// SubmitExamRequest is the multipart form accompanying a question-bank upload.
type SubmitExamRequest struct {
	ExamName         string `form:"exam_name" binding:"required,notblank,nocontrol,min=3,max=255"`
	Description      string `form:"description" binding:"omitempty,max=2000"`
	TimeLimitMinutes int    `form:"time_limit_minutes" binding:"required,min=1,max=480"`
}

// DecisionRequest is an admin's review decision.
type DecisionRequest struct {
	Status  ExamRequestStatus `json:"status" binding:"required,oneof=approved rejected"`
	Comment string            `json:"comment" binding:"omitempty,max=2000"`
}

// ExamModeRequest toggles whether students may start the exam.
type ExamModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
