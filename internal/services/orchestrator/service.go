package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/browser"
	"github.com/ternarybob/vigil/internal/services/scheduler"
	"github.com/ternarybob/vigil/internal/services/workflow"
)

// Service owns the monitoring lifecycle. Startup brings components up in
// dependency order: browser pool, scheduler, then site registration;
// shutdown reverses, draining in-flight checks first.
type Service struct {
	storage   interfaces.StorageManager
	scheduler *scheduler.Service
	engine    *workflow.Engine
	pool      *browser.Pool
	validate  *validator.Validate
	logger    arbor.ILogger

	poolShutdownTimeout time.Duration
	started             bool
}

// NewService assembles the orchestrator
func NewService(storage interfaces.StorageManager, sched *scheduler.Service, engine *workflow.Engine, pool *browser.Pool, logger arbor.ILogger) *Service {
	return &Service{
		storage:             storage,
		scheduler:           sched,
		engine:              engine,
		pool:                pool,
		validate:            validator.New(),
		logger:              logger,
		poolShutdownTimeout: 10 * time.Second,
	}
}

// Start brings the monitoring stack up and registers every active site
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("orchestrator already started")
	}

	if s.pool != nil {
		if err := s.pool.Start(ctx); err != nil {
			return fmt.Errorf("failed to start browser pool: %w", err)
		}
	}

	if err := s.scheduler.Start(ctx); err != nil {
		if s.pool != nil {
			s.pool.Shutdown(s.poolShutdownTimeout)
		}
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	sites, err := s.storage.SiteStorage().ListSites(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	registered := 0
	for _, site := range sites {
		if err := s.scheduler.AddSite(site); err != nil {
			s.logger.Warn().Err(err).Str("site_id", site.ID).Str("url", site.URL).Msg("Failed to register site with scheduler")
			continue
		}
		registered++
	}

	s.started = true
	s.logger.Info().Int("sites", registered).Msg("Orchestrator started")
	return nil
}

// Stop shuts the stack down in reverse order: scheduler stops dispatching,
// in-flight checks drain, then the browser pool closes.
func (s *Service) Stop() {
	if !s.started {
		return
	}
	s.scheduler.Stop()
	if err := s.engine.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("Not all checks drained before deadline")
	}
	if s.pool != nil {
		s.pool.Shutdown(s.poolShutdownTimeout)
	}
	s.started = false
	s.logger.Info().Msg("Orchestrator stopped")
}

// RegisterSite validates and persists a new site and schedules its checks
func (s *Service) RegisterSite(ctx context.Context, site *models.Site) error {
	if site.ID == "" {
		site.ID = common.NewSiteID()
	}
	if err := s.validate.Struct(site); err != nil {
		return fmt.Errorf("invalid site: %w", err)
	}
	if _, err := common.ParseSchedule(site.Schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	existing, err := s.storage.SiteStorage().GetSiteByURL(ctx, site.URL)
	if err != nil {
		return fmt.Errorf("failed to check for existing site: %w", err)
	}
	if existing != nil && existing.ID != site.ID {
		return fmt.Errorf("site with URL %s already exists", site.URL)
	}

	if err := s.storage.SiteStorage().SaveSite(ctx, site); err != nil {
		return err
	}
	if site.Active {
		if err := s.scheduler.AddSite(site); err != nil {
			return fmt.Errorf("site saved but scheduling failed: %w", err)
		}
	}

	s.logger.Info().Str("site_id", site.ID).Str("url", site.URL).Msg("Site registered")
	return nil
}

// UpdateSite persists changes to a site and reschedules it
func (s *Service) UpdateSite(ctx context.Context, site *models.Site) error {
	if err := s.validate.Struct(site); err != nil {
		return fmt.Errorf("invalid site: %w", err)
	}
	if _, err := common.ParseSchedule(site.Schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	if err := s.storage.SiteStorage().SaveSite(ctx, site); err != nil {
		return err
	}

	if site.Active {
		return s.scheduler.AddSite(site)
	}
	return s.scheduler.Pause(site.ID)
}

// UnregisterSite removes a site and all of its history
func (s *Service) UnregisterSite(ctx context.Context, siteID string) error {
	if err := s.scheduler.RemoveSite(siteID); err != nil {
		s.logger.Warn().Err(err).Str("site_id", siteID).Msg("Failed to remove scheduler job")
	}
	return s.storage.SiteStorage().DeleteSite(ctx, siteID)
}

// PauseSite suspends monitoring for one site
func (s *Service) PauseSite(siteID string) error {
	return s.scheduler.Pause(siteID)
}

// ResumeSite reactivates monitoring for one site
func (s *Service) ResumeSite(siteID string) error {
	return s.scheduler.Resume(siteID)
}

// PauseAll suspends all monitoring
func (s *Service) PauseAll() error {
	return s.scheduler.PauseAll()
}

// ResumeAll reactivates all monitoring
func (s *Service) ResumeAll() error {
	return s.scheduler.ResumeAll()
}

// TriggerImmediate fires a check for the site now and returns an
// execution ID for tracing it through the logs.
func (s *Service) TriggerImmediate(siteID string) (string, error) {
	if err := s.scheduler.TriggerImmediate(siteID); err != nil {
		return "", err
	}
	executionID := common.NewExecutionID()
	s.logger.Info().Str("site_id", siteID).Str("execution_id", executionID).Msg("Immediate check triggered")
	return executionID, nil
}

// SiteStatus summarizes monitoring state for one site
func (s *Service) SiteStatus(ctx context.Context, siteID string) (*models.SiteStatus, error) {
	site, err := s.storage.SiteStorage().GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("site not found: %s", siteID)
	}

	status := &models.SiteStatus{Site: site}

	if job, err := s.scheduler.JobStatus(siteID); err == nil {
		status.JobStatus = job.Status
		status.LastCheck = job.LastRunAt
	}

	if latest, err := s.storage.SnapshotStorage().LatestSnapshot(ctx, siteID); err == nil && latest != nil {
		status.LastVerdict = latest.Verdict
	}
	if open, err := s.storage.AlertStorage().OpenAlerts(ctx, siteID); err == nil {
		status.OpenAlerts = len(open)
	}
	if count, err := s.storage.SnapshotStorage().CountSnapshots(ctx, siteID); err == nil {
		status.SnapshotRows = count
	}
	return status, nil
}

// ActiveChecks reports how many checks are currently running
func (s *Service) ActiveChecks() int {
	return s.scheduler.ActiveJobs()
}
