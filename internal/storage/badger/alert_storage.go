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

// AlertStorage implements the AlertStorage interface for Badger
type AlertStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAlertStorage creates a new AlertStorage instance
func NewAlertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AlertStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert ID is required")
	}
	if err := s.db.Store().Upsert(alert.ID, alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (s *AlertStorage) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.Store().Get(id, &alert); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

func (s *AlertStorage) OpenAlerts(ctx context.Context, siteID string) ([]*models.Alert, error) {
	query := badgerhold.Where("Status").Eq(models.AlertOpen)
	if siteID != "" {
		query = query.And("SiteID").Eq(siteID)
	}

	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, query.SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}

	result := make([]*models.Alert, len(alerts))
	for i := range alerts {
		result[i] = &alerts[i]
	}
	return result, nil
}

func (s *AlertStorage) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error {
	var alert models.Alert
	if err := s.db.Store().Get(id, &alert); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("alert not found: %s", id)
		}
		return fmt.Errorf("failed to load alert: %w", err)
	}

	alert.Status = status
	alert.UpdatedAt = time.Now().UTC()
	return s.SaveAlert(ctx, &alert)
}

func (s *AlertStorage) LatestAlert(ctx context.Context, siteID string, kind models.AlertKind) (*models.Alert, error) {
	var alerts []models.Alert
	query := badgerhold.Where("SiteID").Eq(siteID).And("Kind").Eq(kind).
		SortBy("CreatedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&alerts, query); err != nil {
		return nil, fmt.Errorf("failed to find latest alert: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return &alerts[0], nil
}
