package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// SiteStorage implements the SiteStorage interface for Badger. Deleting a
// site cascades to its snapshots, vectors, alerts and job.
type SiteStorage struct {
	db       *BadgerDB
	snapshot interfaces.SnapshotStorage
	alert    interfaces.AlertStorage
	job      interfaces.JobStorage
	vector   interfaces.VectorStorage
	logger   arbor.ILogger
}

// NewSiteStorage creates a new SiteStorage instance
func NewSiteStorage(db *BadgerDB, snapshot interfaces.SnapshotStorage, alert interfaces.AlertStorage, job interfaces.JobStorage, vector interfaces.VectorStorage, logger arbor.ILogger) interfaces.SiteStorage {
	return &SiteStorage{
		db:       db,
		snapshot: snapshot,
		alert:    alert,
		job:      job,
		vector:   vector,
		logger:   logger,
	}
}

func (s *SiteStorage) SaveSite(ctx context.Context, site *models.Site) error {
	if site.ID == "" {
		return fmt.Errorf("site ID is required")
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	site.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(site.ID, site); err != nil {
		return fmt.Errorf("failed to save site: %w", err)
	}
	return nil
}

func (s *SiteStorage) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	if err := s.db.Store().Get(id, &site); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &site, nil
}

func (s *SiteStorage) GetSiteByURL(ctx context.Context, url string) (*models.Site, error) {
	var sites []models.Site
	if err := s.db.Store().Find(&sites, badgerhold.Where("URL").Eq(url)); err != nil {
		return nil, fmt.Errorf("failed to find site by URL: %w", err)
	}
	if len(sites) == 0 {
		return nil, nil
	}
	return &sites[0], nil
}

func (s *SiteStorage) ListSites(ctx context.Context, activeOnly bool) ([]*models.Site, error) {
	query := badgerhold.Where("ID").Ne("")
	if activeOnly {
		query = query.And("Active").Eq(true)
	}

	var sites []models.Site
	if err := s.db.Store().Find(&sites, query.SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	result := make([]*models.Site, len(sites))
	for i := range sites {
		result[i] = &sites[i]
	}
	return result, nil
}

func (s *SiteStorage) DeleteSite(ctx context.Context, id string) error {
	snapshots, err := s.snapshot.ListSnapshots(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("failed to list snapshots for cascade: %w", err)
	}
	for _, snap := range snapshots {
		if err := s.vector.DeleteVectorsForSnapshot(ctx, snap.ID); err != nil {
			s.logger.Warn().Err(err).Str("snapshot_id", snap.ID).Msg("Failed to delete snapshot vectors")
		}
	}

	if err := s.db.Store().DeleteMatching(&models.Snapshot{}, badgerhold.Where("SiteID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.Alert{}, badgerhold.Where("SiteID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.Job{}, badgerhold.Where("SiteID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.ClassifierWeights{}, badgerhold.Where("SiteID").Eq(id)); err != nil {
		s.logger.Warn().Err(err).Str("site_id", id).Msg("Failed to delete classifier weights")
	}

	if err := s.db.Store().Delete(id, &models.Site{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete site: %w", err)
	}

	s.logger.Info().Str("site_id", id).Int("snapshots_removed", len(snapshots)).Msg("Site deleted with cascade")
	return nil
}
