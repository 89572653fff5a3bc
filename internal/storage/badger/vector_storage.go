package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// VectorStorage implements the VectorStorage interface for Badger
type VectorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewVectorStorage creates a new VectorStorage instance
func NewVectorStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VectorStorage {
	return &VectorStorage{
		db:     db,
		logger: logger,
	}
}

func (s *VectorStorage) SaveVector(ctx context.Context, vec *models.Vector) error {
	if vec.ID == "" {
		return fmt.Errorf("vector ID is required")
	}
	if vec.SnapshotID == "" {
		return fmt.Errorf("vector snapshot ID is required")
	}
	if err := s.db.Store().Upsert(vec.ID, vec); err != nil {
		return fmt.Errorf("failed to save vector: %w", err)
	}
	return nil
}

func (s *VectorStorage) GetVector(ctx context.Context, id string) (*models.Vector, error) {
	var vec models.Vector
	if err := s.db.Store().Get(id, &vec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}
	return &vec, nil
}

func (s *VectorStorage) VectorsForSnapshot(ctx context.Context, snapshotID string) ([]*models.Vector, error) {
	var vectors []models.Vector
	if err := s.db.Store().Find(&vectors, badgerhold.Where("SnapshotID").Eq(snapshotID)); err != nil {
		return nil, fmt.Errorf("failed to find vectors: %w", err)
	}

	result := make([]*models.Vector, len(vectors))
	for i := range vectors {
		result[i] = &vectors[i]
	}
	return result, nil
}

func (s *VectorStorage) DeleteVectorsForSnapshot(ctx context.Context, snapshotID string) error {
	if err := s.db.Store().DeleteMatching(&models.Vector{}, badgerhold.Where("SnapshotID").Eq(snapshotID)); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}
