package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examvault/internal/model"
)

func TestEndToEndAttempt(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := h.users.add("Ada", "ada@student.example", model.RoleStudent, "")

	started, err := h.attempts.Start(ctx, student.ID, *exam.PublishedHandle)
	require.NoError(t, err)
	assert.False(t, started.Resumed)
	assert.Equal(t, 30, started.TimeLimitMinutes)
	assert.Equal(t, h.clock.Add(30*time.Minute), started.Deadline)
	require.Len(t, started.Questions, 2)

	raw, err := json.Marshal(started.Questions)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctAnswer")

	sess, err := h.attempts.Submit(ctx, started.SessionID, student.ID, map[string]int{"0": 1, "1": 0})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, sess.Status)
	assert.Equal(t, 2, *sess.CorrectAnswerCount)
	assert.Equal(t, 2, sess.TotalQuestions)
	assert.Equal(t, 100.0, *sess.Score)
	assert.False(t, sess.ResultsAvailable)

	_, err = h.attempts.Start(ctx, student.ID, *exam.PublishedHandle)
	assert.ErrorIs(t, err, ErrAlreadyAttempted)
}

func TestStartResumesInProgressSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	first, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)
	h.advance(5 * time.Minute)
	second, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Deadline, second.Deadline)
	assert.Len(t, h.sessions.rows, 1)
}

func TestConcurrentStartsShareOneSession(t *testing.T) {
	h := newHarness()
	exam := openExam(t, h)
	student := uuid.New()

	const n = 8
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			started, err := h.attempts.Start(context.Background(), student, *exam.PublishedHandle)
			if assert.NoError(t, err) {
				ids[i] = started.SessionID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, h.sessions.rows, 1)
}

func TestStartGates(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.attempts.Start(ctx, uuid.New(), "sha256-unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	req := approve(t, h, submitBank(t, h, twoQuestionBank).ID)
	_, err = h.attempts.Start(ctx, uuid.New(), *req.PublishedHandle)
	assert.ErrorIs(t, err, ErrExamNotStarted)
	assert.Empty(t, h.sessions.rows)
}

func TestStartRollsBackWhenContentUnavailable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	h.store.down = true
	_, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Empty(t, h.sessions.rows)
	assert.Len(t, h.sessions.deleted, 1)

	h.store.down = false
	started, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)
	assert.False(t, started.Resumed)
}

func TestStartCorruptPublishedContent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)

	h.store.Put(*exam.PublishedHandle, []byte(`{"iv":"AAAAAAAAAAAAAAAAAAAAAA==","encryptedData":"AAAAAAAAAAAAAAAAAAAAAA==","timestamp":1,"version":"1.0"}`))

	_, err := h.attempts.Start(ctx, uuid.New(), *exam.PublishedHandle)
	assert.ErrorIs(t, err, ErrCorruptContent)
	assert.Empty(t, h.sessions.rows)
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	started, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)

	_, err = h.attempts.Submit(ctx, started.SessionID, student, map[string]int{"0": 1})
	require.NoError(t, err)

	_, err = h.attempts.Submit(ctx, started.SessionID, student, map[string]int{"0": 1, "1": 0})
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, 1, *h.sessions.rows[started.SessionID].CorrectAnswerCount)
}

func TestSubmitWrongStudentOrSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	started, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)

	_, err = h.attempts.Submit(ctx, started.SessionID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	_, err = h.attempts.Submit(ctx, uuid.New(), student, nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSubmitAfterDeadline(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	started, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)

	h.advance(30*time.Minute + 20*time.Second)
	other := uuid.New()
	late, err := h.attempts.Start(ctx, other, *exam.PublishedHandle)
	require.NoError(t, err)

	// Within grace.
	_, err = h.attempts.Submit(ctx, started.SessionID, student, map[string]int{"0": 1})
	require.NoError(t, err)

	h.advance(31 * time.Minute)
	_, err = h.attempts.Submit(ctx, late.SessionID, other, map[string]int{"0": 1})
	assert.ErrorIs(t, err, ErrDeadlinePassed)

	row := h.sessions.rows[late.SessionID]
	assert.Equal(t, model.SessionStatusTimedOut, row.Status)
	assert.Nil(t, row.Score)

	_, err = h.attempts.Start(ctx, other, *exam.PublishedHandle)
	assert.ErrorIs(t, err, ErrAlreadyAttempted)
}

func TestStartPastDeadlineTimesOut(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	started, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)

	h.advance(2 * time.Hour)
	_, err = h.attempts.Start(ctx, student, *exam.PublishedHandle)
	assert.ErrorIs(t, err, ErrAlreadyAttempted)
	assert.Equal(t, model.SessionStatusTimedOut, h.sessions.rows[started.SessionID].Status)
}

func TestExpireOverdue(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)

	early, err := h.attempts.Start(ctx, uuid.New(), *exam.PublishedHandle)
	require.NoError(t, err)
	h.advance(20 * time.Minute)
	recent, err := h.attempts.Start(ctx, uuid.New(), *exam.PublishedHandle)
	require.NoError(t, err)

	h.advance(11 * time.Minute)
	n, err := h.attempts.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.SessionStatusTimedOut, h.sessions.rows[early.SessionID].Status)
	assert.Equal(t, model.SessionStatusInProgress, h.sessions.rows[recent.SessionID].Status)
}

func TestResultVisibility(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := h.users.add("Grace", "grace@student.example", model.RoleStudent, "")

	started, err := h.attempts.Start(ctx, student.ID, *exam.PublishedHandle)
	require.NoError(t, err)
	_, err = h.attempts.Submit(ctx, started.SessionID, student.ID, map[string]int{"0": 1, "1": 3})
	require.NoError(t, err)

	_, err = h.attempts.Result(ctx, started.SessionID, student.ID)
	assert.ErrorIs(t, err, ErrResultsNotReleased)

	rows, err := h.attempts.ListForStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Score)

	_, err = h.exams.Release(ctx, exam.ID, h.institute.ID)
	require.NoError(t, err)

	res, err := h.attempts.Result(ctx, started.SessionID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, *res.Score)
	assert.Equal(t, 1, *res.CorrectAnswerCount)

	_, err = h.attempts.Result(ctx, started.SessionID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListForExamOwnership(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := h.users.add("Linus", "linus@student.example", model.RoleStudent, "")

	_, err := h.attempts.Start(ctx, student.ID, *exam.PublishedHandle)
	require.NoError(t, err)

	_, err = h.attempts.ListForExam(ctx, exam.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotOwner)

	rows, err := h.attempts.ListForExam(ctx, exam.ID, h.institute.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "linus@student.example", rows[0].StudentEmail)
}

func TestRemaining(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	student := uuid.New()

	started, err := h.attempts.Start(ctx, student, *exam.PublishedHandle)
	require.NoError(t, err)

	h.advance(10 * time.Minute)
	cd, err := h.attempts.Remaining(ctx, started.SessionID, student)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cd.Remaining)
	assert.Equal(t, model.SessionStatusInProgress, cd.Status)

	h.advance(time.Hour)
	cd, err = h.attempts.Remaining(ctx, started.SessionID, student)
	require.NoError(t, err)
	assert.Zero(t, cd.Remaining)

	_, err = h.attempts.Remaining(ctx, started.SessionID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitAfterReleaseStaysHidden(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	exam := openExam(t, h)
	early := h.users.add("Ada", "ada@student.example", model.RoleStudent, "")
	late := h.users.add("Alan", "alan@student.example", model.RoleStudent, "")

	first, err := h.attempts.Start(ctx, early.ID, *exam.PublishedHandle)
	require.NoError(t, err)
	_, err = h.attempts.Submit(ctx, first.SessionID, early.ID, map[string]int{"0": 1, "1": 0})
	require.NoError(t, err)

	second, err := h.attempts.Start(ctx, late.ID, *exam.PublishedHandle)
	require.NoError(t, err)

	_, err = h.exams.Release(ctx, exam.ID, h.institute.ID)
	require.NoError(t, err)

	sess, err := h.attempts.Submit(ctx, second.SessionID, late.ID, map[string]int{"0": 1, "1": 0})
	require.NoError(t, err)
	assert.False(t, sess.ResultsAvailable)
	assert.False(t, h.sessions.rows[second.SessionID].ResultsAvailable)

	_, err = h.attempts.Result(ctx, second.SessionID, late.ID)
	assert.ErrorIs(t, err, ErrResultsNotReleased)

	_, err = h.exams.Release(ctx, exam.ID, h.institute.ID)
	require.NoError(t, err)

	res, err := h.attempts.Result(ctx, second.SessionID, late.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, *res.Score)
}
