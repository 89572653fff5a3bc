package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// tickInterval is the scheduler's scan cadence
const tickInterval = time.Second

// CheckRunner executes one monitoring check for a site. The workflow
// engine implements this.
type CheckRunner interface {
	RunCheck(ctx context.Context, site *models.Site) error
}

// Config holds scheduler settings
type Config struct {
	MaxConcurrentJobs int
	MisfireGrace      time.Duration
	BreakerThreshold  int
	BreakerRecovery   time.Duration
	Retry             *RetryPolicy
}

// jobEntry is the in-memory scheduling state for one site
type jobEntry struct {
	job      *models.Job
	site     *models.Site
	schedule *common.Schedule
	inflight bool
}

type command struct {
	apply func()
	done  chan struct{}
}

// Service drives per-site checks. All scheduling state is owned by the
// run loop goroutine; external callers submit commands over the control
// channel and never touch entries directly.
type Service struct {
	config   Config
	clock    common.Clock
	runner   CheckRunner
	jobStore interfaces.JobStorage
	logger   arbor.ILogger

	commands chan command
	slots    chan struct{}
	stopCh   chan struct{}
	stopped  chan struct{}
	startMu  sync.Mutex
	running  bool

	entries map[string]*jobEntry
}

// NewService creates the scheduler
func NewService(config Config, clock common.Clock, runner CheckRunner, jobStore interfaces.JobStorage, logger arbor.ILogger) *Service {
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 5
	}
	if config.MisfireGrace <= 0 {
		config.MisfireGrace = 30 * time.Second
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = 5
	}
	if config.BreakerRecovery <= 0 {
		config.BreakerRecovery = 60 * time.Second
	}
	if config.Retry == nil {
		config.Retry = NewRetryPolicy()
	}

	return &Service{
		config:   config,
		clock:    clock,
		runner:   runner,
		jobStore: jobStore,
		logger:   logger,
		commands: make(chan command),
		slots:    make(chan struct{}, config.MaxConcurrentJobs),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
		entries:  make(map[string]*jobEntry),
	}
}

// Start restores persisted jobs and begins the run loop
func (s *Service) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	jobs, err := s.jobStore.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore jobs: %w", err)
	}

	restored := 0
	for _, job := range jobs {
		if job.Status == models.JobRemoved {
			continue
		}
		schedule, err := common.ParseSchedule(job.Schedule)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Str("schedule", job.Schedule).Msg("Skipping job with invalid schedule")
			continue
		}
		// A restart interrupts running jobs; they go back to scheduled
		if job.Status == models.JobRunning {
			job.Status = models.JobScheduled
		}
		s.entries[job.SiteID] = &jobEntry{job: job, schedule: schedule}
		restored++
	}

	s.running = true
	go s.runLoop()

	s.logger.Info().
		Int("restored_jobs", restored).
		Int("max_concurrent", s.config.MaxConcurrentJobs).
		Msg("Scheduler started")
	return nil
}

// Stop halts the run loop and waits for in-flight checks to hand back
// their slots.
func (s *Service) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	<-s.stopped
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Service) runLoop() {
	defer close(s.stopped)

	tick := s.clock.After(tickInterval)
	for {
		select {
		case <-s.stopCh:
			return
		case cmd := <-s.commands:
			cmd.apply()
			close(cmd.done)
		case <-tick:
			s.dispatchDue()
			tick = s.clock.After(tickInterval)
		}
	}
}

// submit runs fn on the loop goroutine and waits for it
func (s *Service) submit(fn func()) error {
	cmd := command{apply: fn, done: make(chan struct{})}
	select {
	case s.commands <- cmd:
		<-cmd.done
		return nil
	case <-s.stopCh:
		return fmt.Errorf("scheduler is stopped")
	}
}

// dispatchDue fires every due job that has a free slot. Runs on the loop
// goroutine.
func (s *Service) dispatchDue() {
	now := s.clock.Now()

	for _, entry := range s.entries {
		job := entry.job
		if entry.site == nil {
			// restored job whose site has not been re-registered yet
			continue
		}

		switch job.Status {
		case models.JobPaused, models.JobRemoved:
			continue
		case models.JobCircuitOpen:
			if job.BreakerOpenedAt == nil || now.Sub(*job.BreakerOpenedAt) < s.config.BreakerRecovery {
				continue
			}
			// recovery elapsed: fall through and probe
		}

		if job.NextRunAt.After(now) {
			continue
		}
		if entry.inflight {
			// coalesce: skip this fire, catch the next one
			s.logger.Debug().Str("site_id", job.SiteID).Msg("Previous check still running, coalescing")
			job.NextRunAt = entry.schedule.Next(now)
			continue
		}

		// drop stale misfires beyond the grace window
		if job.Status != models.JobCircuitOpen && now.Sub(job.NextRunAt) > s.config.MisfireGrace {
			s.logger.Warn().
				Str("site_id", job.SiteID).
				Dur("missed_by", now.Sub(job.NextRunAt)).
				Msg("Dropping stale misfire")
			job.NextRunAt = entry.schedule.Next(now)
			s.persist(job)
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			// global cap reached; retry on the next tick
			return
		}

		probe := job.Status == models.JobCircuitOpen
		entry.inflight = true
		job.Status = models.JobRunning
		runAt := now
		job.LastRunAt = &runAt
		s.persist(job)

		go s.runJob(entry.site, job.SiteID, probe)
	}
}

// runJob executes one check off the loop goroutine, then reports back
func (s *Service) runJob(site *models.Site, siteID string, probe bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("site_id", siteID).Str("panic", fmt.Sprint(r)).Msg("Check panicked")
			s.completeJob(siteID, probe, fmt.Errorf("check panicked: %v", r))
		}
		<-s.slots
	}()

	err := s.runner.RunCheck(context.Background(), site)
	s.completeJob(siteID, probe, err)
}

// completeJob applies the run outcome to the job state machine
func (s *Service) completeJob(siteID string, probe bool, runErr error) {
	_ = s.submit(func() {
		entry, ok := s.entries[siteID]
		if !ok {
			return
		}
		job := entry.job
		entry.inflight = false
		now := s.clock.Now()

		if runErr == nil {
			successAt := now
			job.LastSuccessAt = &successAt
			job.RetryCount = 0
			job.ConsecutiveFailures = 0
			job.LastError = ""
			job.BreakerOpenedAt = nil
			job.Status = models.JobScheduled
			job.NextRunAt = entry.schedule.Next(now)
			s.persist(job)
			return
		}

		job.LastError = runErr.Error()
		job.ConsecutiveFailures++

		if probe {
			// failed probe re-opens the breaker
			openedAt := now
			job.BreakerOpenedAt = &openedAt
			job.Status = models.JobCircuitOpen
			job.NextRunAt = now.Add(s.config.BreakerRecovery)
			s.logger.Warn().Str("site_id", siteID).Msg("Breaker probe failed, circuit re-opened")
			s.persist(job)
			return
		}

		if job.ConsecutiveFailures >= s.config.BreakerThreshold {
			openedAt := now
			job.BreakerOpenedAt = &openedAt
			job.Status = models.JobCircuitOpen
			job.RetryCount = 0
			job.NextRunAt = now.Add(s.config.BreakerRecovery)
			s.logger.Warn().
				Str("site_id", siteID).
				Int("consecutive_failures", job.ConsecutiveFailures).
				Msg("Circuit breaker opened")
			s.persist(job)
			return
		}

		job.RetryCount++
		if s.config.Retry.ShouldRetry(job.RetryCount, runErr) {
			backoff := s.config.Retry.Backoff(job.RetryCount)
			job.Status = models.JobScheduled
			job.NextRunAt = now.Add(backoff)
			s.logger.Info().
				Str("site_id", siteID).
				Int("attempt", job.RetryCount).
				Dur("backoff", backoff).
				Err(runErr).
				Msg("Check failed, retrying")
		} else {
			job.Status = models.JobFailed
			job.RetryCount = 0
			job.NextRunAt = entry.schedule.Next(now)
			s.logger.Error().
				Str("site_id", siteID).
				Err(runErr).
				Msg("Check failed, retries exhausted")
		}
		s.persist(job)
	})
}

func (s *Service) persist(job *models.Job) {
	job.UpdatedAt = s.clock.Now()
	if err := s.jobStore.SaveJob(context.Background(), job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job state")
	}
}

// AddSite registers (or replaces) the monitoring job for a site
func (s *Service) AddSite(site *models.Site) error {
	schedule, err := common.ParseSchedule(site.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule for site %s: %w", site.ID, err)
	}

	return s.submit(func() {
		now := s.clock.Now()
		entry, exists := s.entries[site.ID]
		if exists {
			entry.site = site
			entry.schedule = schedule
			entry.job.Schedule = site.Schedule
			entry.job.Priority = site.Priority
			entry.job.NextRunAt = schedule.Next(now)
			s.persist(entry.job)
			return
		}

		job := &models.Job{
			ID:         common.NewJobID(),
			SiteID:     site.ID,
			Schedule:   site.Schedule,
			Priority:   site.Priority,
			Status:     models.JobScheduled,
			NextRunAt:  schedule.Next(now),
			MaxRetries: s.config.Retry.MaxAttempts,
			CreatedAt:  now,
		}
		s.entries[site.ID] = &jobEntry{job: job, site: site, schedule: schedule}
		s.persist(job)
		s.logger.Info().
			Str("site_id", site.ID).
			Str("schedule", site.Schedule).
			Str("next_run", job.NextRunAt.Format(time.RFC3339)).
			Msg("Monitoring job registered")
	})
}

// RemoveSite deletes the site's job. In-flight checks finish but their
// outcome is discarded.
func (s *Service) RemoveSite(siteID string) error {
	return s.submit(func() {
		entry, ok := s.entries[siteID]
		if !ok {
			return
		}
		entry.job.Status = models.JobRemoved
		s.persist(entry.job)
		if err := s.jobStore.DeleteJob(context.Background(), entry.job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", entry.job.ID).Msg("Failed to delete job record")
		}
		delete(s.entries, siteID)
		s.logger.Info().Str("site_id", siteID).Msg("Monitoring job removed")
	})
}

// Pause suspends a site's job; paused jobs hold no concurrency slot
func (s *Service) Pause(siteID string) error {
	return s.submit(func() {
		if entry, ok := s.entries[siteID]; ok && entry.job.Status != models.JobRemoved {
			entry.job.Status = models.JobPaused
			s.persist(entry.job)
		}
	})
}

// Resume reactivates a paused job and schedules its next fire
func (s *Service) Resume(siteID string) error {
	return s.submit(func() {
		entry, ok := s.entries[siteID]
		if !ok || entry.job.Status != models.JobPaused {
			return
		}
		entry.job.Status = models.JobScheduled
		entry.job.NextRunAt = entry.schedule.Next(s.clock.Now())
		s.persist(entry.job)
	})
}

// PauseAll suspends every job
func (s *Service) PauseAll() error {
	return s.submit(func() {
		for _, entry := range s.entries {
			if entry.job.Status != models.JobRemoved {
				entry.job.Status = models.JobPaused
				s.persist(entry.job)
			}
		}
		s.logger.Info().Int("jobs", len(s.entries)).Msg("All jobs paused")
	})
}

// ResumeAll reactivates every paused job
func (s *Service) ResumeAll() error {
	return s.submit(func() {
		now := s.clock.Now()
		for _, entry := range s.entries {
			if entry.job.Status == models.JobPaused {
				entry.job.Status = models.JobScheduled
				entry.job.NextRunAt = entry.schedule.Next(now)
				s.persist(entry.job)
			}
		}
		s.logger.Info().Msg("All jobs resumed")
	})
}

// TriggerImmediate fires a check for the site now, bypassing the
// schedule. Coalescing still applies.
func (s *Service) TriggerImmediate(siteID string) error {
	var trigErr error
	err := s.submit(func() {
		entry, ok := s.entries[siteID]
		if !ok {
			trigErr = fmt.Errorf("no job for site %s", siteID)
			return
		}
		if entry.inflight {
			trigErr = fmt.Errorf("check already running for site %s", siteID)
			return
		}
		entry.job.NextRunAt = s.clock.Now()
	})
	if err != nil {
		return err
	}
	return trigErr
}

// JobStatus returns a copy of the job record for a site
func (s *Service) JobStatus(siteID string) (*models.Job, error) {
	var snapshot *models.Job
	err := s.submit(func() {
		if entry, ok := s.entries[siteID]; ok {
			copied := *entry.job
			snapshot = &copied
		}
	})
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("no job for site %s", siteID)
	}
	return snapshot, nil
}

// ActiveJobs reports how many checks are currently in flight
func (s *Service) ActiveJobs() int {
	count := 0
	_ = s.submit(func() {
		for _, entry := range s.entries {
			if entry.inflight {
				count++
			}
		}
	})
	return count
}
