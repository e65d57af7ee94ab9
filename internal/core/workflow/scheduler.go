package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Locker guards a job so only one replica runs it at a time
type Locker interface {
	// TryLock returns ok=false when another holder owns key
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Job is a periodic sweep, e.g. resuming due executions
type Job func(ctx context.Context) error

// Scheduler runs periodic sweeps on cron expressions. The engine itself has
// no timers; this is the external invoker that drives it.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]cron.EntryID // job name -> entry id
	jobsMux sync.RWMutex
	locker  Locker
	timeout time.Duration
}

// NewScheduler creates a new scheduler. locker may be nil for single-replica
// deployments.
func NewScheduler(locker Locker, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:    make(map[string]cron.EntryID),
		locker:  locker,
		timeout: timeout,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	log.Info().Msg("⏰ Starting sweep scheduler...")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running sweeps
func (s *Scheduler) Stop() {
	log.Info().Msg("⏰ Stopping sweep scheduler...")
	<-s.cron.Stop().Done()
	log.Info().Msg("✅ Sweep scheduler stopped")
}

// AddJob registers job under name, replacing an existing one.
// schedule is a cron expression with seconds, e.g. "0 * * * * *".
func (s *Scheduler) AddJob(name string, schedule string, job Job) error {
	s.jobsMux.Lock()
	defer s.jobsMux.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() { s.runJob(name, job) })
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	log.Info().Str("job", name).Str("schedule", schedule).Msg("✅ Sweep scheduled")
	return nil
}

// Jobs returns the names of all scheduled jobs
func (s *Scheduler) Jobs() []string {
	s.jobsMux.RLock()
	defer s.jobsMux.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) runJob(name string, job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := RunLocked(ctx, s.locker, "marketing:sweep:"+name, s.timeout, job); err != nil {
		log.Error().Err(err).Str("job", name).Msg("❌ Sweep failed")
	}
}

// RunLocked runs job while holding key. When another holder owns the key the
// job is skipped without error. A nil locker runs the job directly.
func RunLocked(ctx context.Context, locker Locker, key string, ttl time.Duration, job Job) error {
	if locker == nil {
		return job(ctx)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	release, ok, err := locker.TryLock(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		log.Debug().Str("key", key).Msg("⏭️ Sweep already running elsewhere")
		return nil
	}
	defer release()
	return job(ctx)
}
