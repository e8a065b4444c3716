package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	SweepSchedule       = "@every 1m"
	MailHealthSchedule  = "@every 5m"
	SweepTimeout        = 30 * time.Second
	ShutdownWaitTimeout = 10 * time.Second
)

// SessionSweeper times out abandoned exam sessions.
type SessionSweeper interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// HealthChecker probes a long-lived connection and replaces it when broken.
type HealthChecker interface {
	HealthCheck() error
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper SessionSweeper
	mail    HealthChecker
	log     zerolog.Logger
}

// NewScheduler registers the session sweep and, when mail is non-nil, the
// mail transport health check.
func NewScheduler(sweeper SessionSweeper, mail HealthChecker, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		sweeper: sweeper,
		mail:    mail,
		log:     log.With().Str("component", "scheduler").Logger(),
	}

	cronLog := cron.PrintfLogger(&s.log)
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	if _, err := s.cron.AddFunc(SweepSchedule, s.sweep); err != nil {
		return nil, err
	}
	if mail != nil {
		if _, err := s.cron.AddFunc(MailHealthSchedule, s.checkMail); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the scheduler until ctx is cancelled, then waits for running
// jobs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
	s.cron.Start()

	<-ctx.Done()

	s.log.Info().Msg("Shutdown requested. Waiting for running jobs...")
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(ShutdownWaitTimeout):
		s.log.Warn().Msg("Scheduler jobs did not finish in time")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), SweepTimeout)
	defer cancel()

	n, err := s.sweeper.ExpireOverdue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Session sweep failed")
		return
	}
	if n > 0 {
		s.log.Debug().Int64("timed_out", n).Msg("Session sweep done")
	}
}

func (s *Scheduler) checkMail() {
	if err := s.mail.HealthCheck(); err != nil {
		s.log.Error().Err(err).Msg("Mail transport health check failed")
	}
}
