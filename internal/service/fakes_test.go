package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/contentstore"
	"github.com/stemsi/examvault/internal/encryption"
	"github.com/stemsi/examvault/internal/mailer"
	"github.com/stemsi/examvault/internal/model"
)

type fakeRequests struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.ExamRequest
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{rows: map[uuid.UUID]*model.ExamRequest{}}
}

func (f *fakeRequests) Create(_ context.Context, e *model.ExamRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	f.rows[e.ID] = &cp
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRequests) GetByHandle(_ context.Context, handle string) (*model.ExamRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.PublishedHandle != nil && *e.PublishedHandle == handle {
			cp := *e
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeRequests) filter(keep func(*model.ExamRequest) bool, limit, offset int) ([]model.ExamRequest, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.ExamRequest
	for _, e := range f.rows {
		if keep(e) {
			all = append(all, *e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (f *fakeRequests) ListByInstitute(_ context.Context, instituteID uuid.UUID, limit, offset int) ([]model.ExamRequest, int, error) {
	return f.filter(func(e *model.ExamRequest) bool { return e.InstituteID == instituteID }, limit, offset)
}

func (f *fakeRequests) ListByStatus(_ context.Context, status model.ExamRequestStatus, limit, offset int) ([]model.ExamRequest, int, error) {
	return f.filter(func(e *model.ExamRequest) bool { return e.Status == status }, limit, offset)
}

func (f *fakeRequests) Reject(_ context.Context, id, reviewerID uuid.UUID, comment *string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.Status != model.ExamRequestPending {
		return pgx.ErrNoRows
	}
	e.Status = model.ExamRequestRejected
	e.ReviewerComment = comment
	e.ReviewedBy = &reviewerID
	e.ReviewedAt = &at
	return nil
}

func (f *fakeRequests) Approve(_ context.Context, id, reviewerID uuid.UUID, comment *string, handle, key string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.Status != model.ExamRequestPending {
		return pgx.ErrNoRows
	}
	e.Status = model.ExamRequestApproved
	e.ReviewerComment = comment
	e.ReviewedBy = &reviewerID
	e.ReviewedAt = &at
	e.PublishedHandle = &handle
	e.PublishedKey = &key
	return nil
}

func (f *fakeRequests) SetExamMode(_ context.Context, id uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	e.ExamModeEnabled = enabled
	return nil
}

func (f *fakeRequests) MarkResultsReleased(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	e.ResultsReleased = true
	return nil
}

type fakeSessions struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*model.ExamSession
	requests *fakeRequests
	users    *fakeUsers
	deleted  []uuid.UUID
	now      func() time.Time
}

func newFakeSessions(requests *fakeRequests, users *fakeUsers) *fakeSessions {
	return &fakeSessions{rows: map[uuid.UUID]*model.ExamSession{}, requests: requests, users: users, now: time.Now}
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) GetByExamAndStudent(_ context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.ExamID == examID && s.StudentID == studentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessions) Create(_ context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.ExamID == s.ExamID && existing.StudentID == s.StudentID {
			return pgx.ErrNoRows
		}
	}
	s.ID = uuid.New()
	s.StartedAt = f.now()
	s.Status = model.SessionStatusInProgress
	s.Answers = map[string]int{}
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSessions) Complete(_ context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[s.ID]
	if !ok || row.Status != model.SessionStatusInProgress {
		return pgx.ErrNoRows
	}
	row.Answers = s.Answers
	row.Score = s.Score
	row.CorrectAnswerCount = s.CorrectAnswerCount
	row.TotalQuestions = s.TotalQuestions
	row.SubmittedAt = s.SubmittedAt
	row.Status = model.SessionStatusCompleted
	row.ResultsAvailable = false
	return nil
}

func (f *fakeSessions) MarkTimedOut(_ context.Context, id uuid.UUID, answers map[string]int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.Status != model.SessionStatusInProgress {
		return pgx.ErrNoRows
	}
	row.Status = model.SessionStatusTimedOut
	row.Answers = answers
	row.SubmittedAt = &at
	return nil
}

func (f *fakeSessions) ExpireOverdue(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.Status != model.SessionStatusInProgress {
			continue
		}
		exam, err := f.requests.GetByID(ctx, row.ExamID)
		if err != nil {
			return 0, err
		}
		if now.After(row.Deadline(exam.TimeLimitMinutes).Add(grace)) {
			row.Status = model.SessionStatusTimedOut
			row.SubmittedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) ReleaseForExam(_ context.Context, examID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.ExamID == examID {
			row.ResultsAvailable = true
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) results(ctx context.Context, keep func(*model.ExamSession) bool) ([]model.SessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SessionResult
	for _, row := range f.rows {
		if !keep(row) {
			continue
		}
		exam, err := f.requests.GetByID(ctx, row.ExamID)
		if err != nil {
			return nil, err
		}
		r := model.SessionResult{
			SessionID:          row.ID,
			ExamID:             row.ExamID,
			ExamName:           exam.ExamName,
			StudentID:          row.StudentID,
			Status:             row.Status,
			Score:              row.Score,
			CorrectAnswerCount: row.CorrectAnswerCount,
			TotalQuestions:     row.TotalQuestions,
			StartedAt:          row.StartedAt,
			SubmittedAt:        row.SubmittedAt,
			ResultsAvailable:   row.ResultsAvailable,
		}
		if u, err := f.users.GetByID(ctx, row.StudentID); err == nil {
			r.StudentName = u.Name
			r.StudentEmail = u.Email
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentEmail < out[j].StudentEmail })
	return out, nil
}

func (f *fakeSessions) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.SessionResult, error) {
	return f.results(ctx, func(s *model.ExamSession) bool { return s.StudentID == studentID })
}

func (f *fakeSessions) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SessionResult, error) {
	return f.results(ctx, func(s *model.ExamSession) bool { return s.ExamID == examID })
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: map[uuid.UUID]*model.User{}}
}

func (f *fakeUsers) add(name, email string, role model.Role, hash string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.User{ID: uuid.New(), Name: name, Email: email, Role: role, PasswordHash: hash, CreatedAt: time.Now()}
	f.rows[u.ID] = u
	return u
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(msg.To) > 0 && m.fail[msg.To[0]] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.To...)
	}
	sort.Strings(out)
	return out
}

// flakyStore fails fetches while down is set.
type flakyStore struct {
	*contentstore.MemoryStore
	mu          sync.Mutex
	down        bool
	publishDown bool
}

func (s *flakyStore) Publish(ctx context.Context, name string, env *encryption.Envelope) (string, error) {
	s.mu.Lock()
	down := s.publishDown
	s.mu.Unlock()
	if down {
		return "", contentstore.ErrUnavailable
	}
	return s.MemoryStore.Publish(ctx, name, env)
}

func (s *flakyStore) Fetch(ctx context.Context, handle string) (*encryption.Envelope, error) {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		return nil, contentstore.ErrUnavailable
	}
	return s.MemoryStore.Fetch(ctx, handle)
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (r *fakeRevoker) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = map[string]time.Duration{}
	}
	r.revoked[jti] = ttl
	return nil
}

func (r *fakeRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[jti]
	return ok, nil
}

// harness wires the services over in-memory fakes.
type harness struct {
	requests  *fakeRequests
	sessions  *fakeSessions
	users     *fakeUsers
	store     *flakyStore
	mail      *fakeMailer
	exams     *ExamRequestService
	attempts  *ExamSessionService
	release   *ResultsReleaseEngine
	institute *model.User
	admin     *model.User
	clock     time.Time
}

func newHarness() *harness {
	h := &harness{
		requests: newFakeRequests(),
		users:    newFakeUsers(),
		store:    &flakyStore{MemoryStore: contentstore.NewMemoryStore()},
		mail:     &fakeMailer{fail: map[string]bool{}},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.sessions = newFakeSessions(h.requests, h.users)
	h.sessions.now = h.now

	log := zerolog.Nop()
	h.release = NewResultsReleaseEngine(h.requests, h.sessions, h.mail, 2, log)
	h.exams = NewExamRequestService(h.requests, h.users, h.store, h.mail, h.release, log)
	h.exams.now = h.now
	h.attempts = NewExamSessionService(h.requests, h.sessions, h.store, 30*time.Second, log)
	h.attempts.now = h.now

	h.institute = h.users.add("North High", "exams@north.example", model.RoleInstitute, "")
	h.admin = h.users.add("Reviewer", "admin@portal.example", model.RoleAdmin, "")
	return h
}

func (h *harness) now() time.Time { return h.clock }

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }
