package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/contentstore"
	"github.com/stemsi/examvault/internal/encryption"
	"github.com/stemsi/examvault/internal/examcontent"
	"github.com/stemsi/examvault/internal/mailer"
	"github.com/stemsi/examvault/internal/model"
)

// ExamRequestService runs the upload, review and publish workflow.
type ExamRequestService struct {
	requests ExamRequestRepository
	users    UserRepository
	store    contentstore.ContentStore
	mail     mailer.Mailer
	release  *ResultsReleaseEngine
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamRequestService creates a new ExamRequestService.
func NewExamRequestService(
	requests ExamRequestRepository,
	users UserRepository,
	store contentstore.ContentStore,
	mail mailer.Mailer,
	release *ResultsReleaseEngine,
	log zerolog.Logger,
) *ExamRequestService {
	return &ExamRequestService{
		requests: requests,
		users:    users,
		store:    store,
		mail:     mail,
		release:  release,
		log:      log.With().Str("component", "exam_request").Logger(),
		now:      time.Now,
	}
}

// Submit validates an uploaded question bank, encrypts it with a fresh
// at-rest key and records a pending request. Nothing is persisted when the
// bank is invalid.
func (s *ExamRequestService) Submit(ctx context.Context, instituteID uuid.UUID, meta model.SubmitExamRequest, raw []byte) (*model.ExamRequest, error) {
	bank, err := examcontent.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	ciphertext, err := encryption.EncryptAtRest(raw, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	req := &model.ExamRequest{
		InstituteID:      instituteID,
		ExamName:         strings.TrimSpace(meta.ExamName),
		Description:      strings.TrimSpace(meta.Description),
		TimeLimitMinutes: meta.TimeLimitMinutes,
		Status:           model.ExamRequestPending,
		EncryptedContent: ciphertext,
		EncryptionKey:    key,
		TotalQuestions:   len(bank.Questions),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create exam request: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("institute_id", instituteID.String()).
		Int("questions", req.TotalQuestions).
		Msg("Exam request submitted")

	return req, nil
}

// Decide approves or rejects a pending request. Approval decrypts the
// at-rest copy, re-encrypts it under a second key and publishes it to the
// content store. The institute is emailed the handle, never the key.
func (s *ExamRequestService) Decide(ctx context.Context, requestID, reviewerID uuid.UUID, d model.DecisionRequest) (*model.ExamRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrAlreadyDecided
	}

	var comment *string
	if c := strings.TrimSpace(d.Comment); c != "" {
		comment = &c
	}
	now := s.now()

	switch d.Status {
	case model.ExamRequestRejected:
		if err := s.requests.Reject(ctx, requestID, reviewerID, comment, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrAlreadyDecided
			}
			return nil, fmt.Errorf("reject exam request: %w", err)
		}
	case model.ExamRequestApproved:
		handle, key, err := s.publish(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := s.requests.Approve(ctx, requestID, reviewerID, comment, handle, key, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.log.Warn().
					Str("request_id", requestID.String()).
					Str("handle", handle).
					Msg("Request decided concurrently, published content left unreferenced")
				return nil, ErrAlreadyDecided
			}
			return nil, fmt.Errorf("approve exam request: %w", err)
		}
		req.PublishedHandle = &handle
		req.PublishedKey = &key
	default:
		return nil, fmt.Errorf("unsupported decision status %q", d.Status)
	}

	req.Status = d.Status
	req.ReviewerComment = comment
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now
	req.UpdatedAt = now

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("reviewer_id", reviewerID.String()).
		Str("status", string(d.Status)).
		Msg("Exam request decided")

	s.notifyDecision(ctx, req)
	return req, nil
}

// publish moves content from the at-rest key to a fresh published key and
// pins the resulting envelope.
func (s *ExamRequestService) publish(ctx context.Context, req *model.ExamRequest) (handle, key string, err error) {
	payload, err := encryption.DecryptAtRest(req.EncryptedContent, req.EncryptionKey)
	if err != nil {
		s.log.Error().Err(err).
			Str("request_id", req.ID.String()).
			Msg("At-rest content failed to decrypt")
		return "", "", ErrIntegrity
	}

	key, err = encryption.GenerateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}

	env, err := encryption.EncryptEnvelope(payload.Bytes(), key)
	if err != nil {
		return "", "", fmt.Errorf("encrypt envelope: %w", err)
	}

	handle, err = s.store.Publish(ctx, "exam-"+req.ID.String(), env)
	if err != nil {
		s.log.Error().Err(err).
			Str("request_id", req.ID.String()).
			Msg("Content store publish failed")
		return "", "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return handle, key, nil
}

func (s *ExamRequestService) notifyDecision(ctx context.Context, req *model.ExamRequest) {
	institute, err := s.users.GetByID(ctx, req.InstituteID)
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", req.ID.String()).Msg("Institute lookup for decision notice failed")
		return
	}

	notice := mailer.DecisionNotice{
		ExamName: req.ExamName,
		Approved: req.Status == model.ExamRequestApproved,
	}
	if req.PublishedHandle != nil {
		notice.Handle = *req.PublishedHandle
	}
	if req.ReviewerComment != nil {
		notice.Comment = *req.ReviewerComment
	}

	msg, err := mailer.RenderDecision(institute.Email, notice)
	if err == nil {
		err = s.mail.Send(context.WithoutCancel(ctx), msg)
	}
	if err != nil {
		s.log.Error().Err(err).Str("request_id", req.ID.String()).Msg("Decision notice failed")
	}
}

// SetExamMode opens or closes an approved exam to students. Only the owning
// institute may toggle it; repeating the same value is a no-op.
func (s *ExamRequestService) SetExamMode(ctx context.Context, requestID, instituteID uuid.UUID, enabled bool) (*model.ExamRequest, error) {
	req, err := s.owned(ctx, requestID, instituteID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.ExamRequestApproved {
		return nil, ErrNotApproved
	}
	if req.ExamModeEnabled == enabled {
		return req, nil
	}

	if err := s.requests.SetExamMode(ctx, requestID, enabled); err != nil {
		return nil, fmt.Errorf("set exam mode: %w", err)
	}
	req.ExamModeEnabled = enabled

	s.log.Info().
		Str("request_id", requestID.String()).
		Bool("enabled", enabled).
		Msg("Exam mode changed")
	return req, nil
}

// Release publishes the results of an approved exam owned by instituteID.
func (s *ExamRequestService) Release(ctx context.Context, requestID, instituteID uuid.UUID) (*ReleaseReport, error) {
	req, err := s.owned(ctx, requestID, instituteID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.ExamRequestApproved {
		return nil, ErrNotApproved
	}
	return s.release.Release(ctx, requestID)
}

// Get returns a request owned by instituteID.
func (s *ExamRequestService) Get(ctx context.Context, requestID, instituteID uuid.UUID) (*model.ExamRequest, error) {
	return s.owned(ctx, requestID, instituteID)
}

// GetForReview returns any request, for admins.
func (s *ExamRequestService) GetForReview(ctx context.Context, requestID uuid.UUID) (*model.ExamRequest, error) {
	return s.getRequest(ctx, requestID)
}

// ListByInstitute returns an institute's requests, newest first.
func (s *ExamRequestService) ListByInstitute(ctx context.Context, instituteID uuid.UUID, page, perPage int) ([]model.ExamRequest, int, error) {
	items, total, err := s.requests.ListByInstitute(ctx, instituteID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list exam requests: %w", err)
	}
	return items, total, nil
}

// ListPending returns the review queue, oldest first.
func (s *ExamRequestService) ListPending(ctx context.Context, page, perPage int) ([]model.ExamRequest, int, error) {
	items, total, err := s.requests.ListByStatus(ctx, model.ExamRequestPending, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending requests: %w", err)
	}
	return items, total, nil
}

// PublishedKey returns the handle and the key that opens it to the owning
// institute. This is the only path by which the published key leaves the
// server.
func (s *ExamRequestService) PublishedKey(ctx context.Context, requestID, instituteID uuid.UUID) (handle, key string, err error) {
	req, err := s.owned(ctx, requestID, instituteID)
	if err != nil {
		return "", "", err
	}
	if req.Status != model.ExamRequestApproved || req.PublishedHandle == nil || req.PublishedKey == nil {
		return "", "", ErrNotApproved
	}

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("institute_id", instituteID.String()).
		Msg("Published key retrieved")
	return *req.PublishedHandle, *req.PublishedKey, nil
}

func (s *ExamRequestService) getRequest(ctx context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam request: %w", err)
	}
	return req, nil
}

func (s *ExamRequestService) owned(ctx context.Context, id, instituteID uuid.UUID) (*model.ExamRequest, error) {
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.InstituteID != instituteID {
		return nil, ErrNotOwner
	}
	return req, nil
}
