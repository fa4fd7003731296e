package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one scheduled run
type Job func(ctx context.Context) error

// Scheduler runs the refresher on a cron schedule. A run that is still going
// when the next tick fires makes that tick a no-op.
type Scheduler struct {
	spec string
	job  Job
	cron *cron.Cron

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler validates spec and creates a scheduler for job
func NewScheduler(spec string, job Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	logger := cron.PrintfLogger(&cronLogger{})
	return &Scheduler{
		spec: spec,
		job:  job,
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger))),
	}, nil
}

// Start schedules the job. It runs until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	log.Info().Msg("Scheduler starting...")

	ctx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.run(ctx)
	}); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	s.cancel = cancel
	s.running = true

	log.Info().
		Str("schedule", s.spec).
		Msg("Refresh scheduled")
	return nil
}

// RunNow runs the job once in the calling goroutine
func (s *Scheduler) RunNow(ctx context.Context) {
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log.Info().Msg("Running scheduled refresh...")
	if err := s.job(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled refresh failed")
	}
}

// Stop stops scheduling, cancels an in-flight run and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	log.Info().Msg("Stopping scheduler...")
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.wg.Wait()
	s.running = false
	log.Info().Msg("Scheduler stopped")
}

// cronLogger routes cron's own messages to zerolog
type cronLogger struct{}

func (cronLogger) Printf(format string, args ...interface{}) {
	log.Info().Msgf(format, args...)
}
