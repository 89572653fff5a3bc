package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// SnapshotStorage implements the SnapshotStorage interface for Badger
type SnapshotStorage struct {
	db     *BadgerDB
	vector interfaces.VectorStorage
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance. Pruning
// cascades to the vector store.
func NewSnapshotStorage(db *BadgerDB, vector interfaces.VectorStorage, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		vector: vector,
		logger: logger,
	}
}

func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot ID is required")
	}
	if snap.SiteID == "" {
		return fmt.Errorf("snapshot site ID is required")
	}

	if err := s.db.Store().Upsert(snap.ID, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStorage) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := s.db.Store().Get(id, &snap); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SnapshotStorage) LatestSnapshot(ctx context.Context, siteID string) (*models.Snapshot, error) {
	var snapshots []models.Snapshot
	query := badgerhold.Where("SiteID").Eq(siteID).SortBy("CapturedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

func (s *SnapshotStorage) Baseline(ctx context.Context, siteID string) (*models.Snapshot, error) {
	var snapshots []models.Snapshot
	query := badgerhold.Where("SiteID").Eq(siteID).
		And("Verdict").In(models.VerdictBenign, models.VerdictInitial).
		SortBy("CapturedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to find baseline: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

func (s *SnapshotStorage) ListSnapshots(ctx context.Context, siteID string, limit int) ([]*models.Snapshot, error) {
	query := badgerhold.Where("SiteID").Eq(siteID).SortBy("CapturedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var snapshots []models.Snapshot
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	result := make([]*models.Snapshot, len(snapshots))
	for i := range snapshots {
		result[i] = &snapshots[i]
	}
	return result, nil
}

func (s *SnapshotStorage) UpdateVerdict(ctx context.Context, snapshotID string, verdict models.Verdict, confidence float64, summary string) error {
	var snap models.Snapshot
	if err := s.db.Store().Get(snapshotID, &snap); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("snapshot not found: %s", snapshotID)
		}
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap.Verdict = verdict
	snap.Confidence = confidence
	snap.ClassifierSummary = summary
	return s.SaveSnapshot(ctx, &snap)
}

func (s *SnapshotStorage) PruneSnapshots(ctx context.Context, siteID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	var snapshots []models.Snapshot
	query := badgerhold.Where("SiteID").Eq(siteID).SortBy("CapturedAt").Reverse()
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return 0, fmt.Errorf("failed to list snapshots for pruning: %w", err)
	}
	if len(snapshots) <= keep {
		return 0, nil
	}

	removed := 0
	for _, snap := range snapshots[keep:] {
		if err := s.vector.DeleteVectorsForSnapshot(ctx, snap.ID); err != nil {
			s.logger.Warn().Err(err).Str("snapshot_id", snap.ID).Msg("Failed to delete vectors while pruning")
		}
		if err := s.db.Store().Delete(snap.ID, &models.Snapshot{}); err != nil && err != badgerhold.ErrNotFound {
			return removed, fmt.Errorf("failed to prune snapshot %s: %w", snap.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *SnapshotStorage) CountSnapshots(ctx context.Context, siteID string) (int, error) {
	count, err := s.db.Store().Count(&models.Snapshot{}, badgerhold.Where("SiteID").Eq(siteID))
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return int(count), nil
}
