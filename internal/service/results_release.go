package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/examvault/internal/mailer"
	"github.com/stemsi/examvault/internal/model"
)

// DefaultReleaseBatchSize bounds concurrent notification sends.
const DefaultReleaseBatchSize = 50

// ReleaseReport summarizes one results release.
type ReleaseReport struct {
	ExamID           uuid.UUID `json:"exam_id"`
	SessionsReleased int64     `json:"sessions_released"`
	Notified         int       `json:"notified"`
	Failed           int       `json:"failed"`
	Skipped          int       `json:"skipped"`
}

// ResultsReleaseEngine makes an exam's results visible and notifies the
// students who completed it.
type ResultsReleaseEngine struct {
	exams     ExamRequestRepository
	sessions  ExamSessionRepository
	mail      mailer.Mailer
	batchSize int
	log       zerolog.Logger
}

// NewResultsReleaseEngine creates a new ResultsReleaseEngine.
func NewResultsReleaseEngine(
	exams ExamRequestRepository,
	sessions ExamSessionRepository,
	mail mailer.Mailer,
	batchSize int,
	log zerolog.Logger,
) *ResultsReleaseEngine {
	if batchSize <= 0 {
		batchSize = DefaultReleaseBatchSize
	}
	return &ResultsReleaseEngine{
		exams:     exams,
		sessions:  sessions,
		mail:      mail,
		batchSize: batchSize,
		log:       log.With().Str("component", "results_release").Logger(),
	}
}

// Release flags the exam released, flips resultsAvailable on every session
// of the exam and emails each completed session's student. Releasing twice
// re-sends notifications but changes no state.
func (e *ResultsReleaseEngine) Release(ctx context.Context, examID uuid.UUID) (*ReleaseReport, error) {
	if err := e.exams.MarkResultsReleased(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark results released: %w", err)
	}

	released, err := e.sessions.ReleaseForExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("release sessions: %w", err)
	}

	rows, err := e.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	report := &ReleaseReport{ExamID: examID, SessionsReleased: released}

	recipients := make([]model.SessionResult, 0, len(rows))
	for _, r := range rows {
		if r.Status != model.SessionStatusCompleted {
			continue
		}
		if strings.TrimSpace(r.StudentEmail) == "" {
			report.Skipped++
			continue
		}
		recipients = append(recipients, r)
	}

	// Mail delivery outlives the request that triggered the release.
	sendCtx := context.WithoutCancel(ctx)

	var notified, failed atomic.Int64
	for start := 0; start < len(recipients); start += e.batchSize {
		end := min(start+e.batchSize, len(recipients))

		var g errgroup.Group
		for _, r := range recipients[start:end] {
			r := r
			g.Go(func() error {
				if err := e.notify(sendCtx, r); err != nil {
					failed.Add(1)
					e.log.Error().Err(err).
						Str("exam_id", examID.String()).
						Str("session_id", r.SessionID.String()).
						Msg("Results notification failed")
					return nil
				}
				notified.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Notified = int(notified.Load())
	report.Failed = int(failed.Load())

	e.log.Info().
		Str("exam_id", examID.String()).
		Int64("sessions", released).
		Int("notified", report.Notified).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Results released")

	return report, nil
}

func (e *ResultsReleaseEngine) notify(ctx context.Context, r model.SessionResult) error {
	msg, err := mailer.RenderResults(r.StudentEmail, mailer.ResultsNotice{
		StudentName: r.StudentName,
		ExamName:    r.ExamName,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return e.mail.Send(ctx, msg)
}
