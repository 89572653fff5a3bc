package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// WeightsStorage implements the WeightsStorage interface for Badger.
// Records are keyed by site ID; one record per site.
type WeightsStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWeightsStorage creates a new WeightsStorage instance
func NewWeightsStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WeightsStorage {
	return &WeightsStorage{
		db:     db,
		logger: logger,
	}
}

func (s *WeightsStorage) SaveWeights(ctx context.Context, w *models.ClassifierWeights) error {
	if w.SiteID == "" {
		return fmt.Errorf("weights site ID is required")
	}
	if err := s.db.Store().Upsert(w.SiteID, w); err != nil {
		return fmt.Errorf("failed to save classifier weights: %w", err)
	}
	return nil
}

func (s *WeightsStorage) GetWeights(ctx context.Context, siteID string) (*models.ClassifierWeights, error) {
	var w models.ClassifierWeights
	if err := s.db.Store().Get(siteID, &w); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get classifier weights: %w", err)
	}
	return &w, nil
}
