package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	site     interfaces.SiteStorage
	snapshot interfaces.SnapshotStorage
	alert    interfaces.AlertStorage
	job      interfaces.JobStorage
	vector   interfaces.VectorStorage
	weights  interfaces.WeightsStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	vector := NewVectorStorage(db, logger)
	snapshot := NewSnapshotStorage(db, vector, logger)
	alert := NewAlertStorage(db, logger)
	job := NewJobStorage(db, logger)

	manager := &Manager{
		db:       db,
		snapshot: snapshot,
		alert:    alert,
		job:      job,
		vector:   vector,
		weights:  NewWeightsStorage(db, logger),
		logger:   logger,
	}
	manager.site = NewSiteStorage(db, snapshot, alert, job, vector, logger)

	logger.Info().Msg("Badger storage manager initialized")
	return manager, nil
}

// SiteStorage returns the Site storage interface
func (m *Manager) SiteStorage() interfaces.SiteStorage {
	return m.site
}

// SnapshotStorage returns the Snapshot storage interface
func (m *Manager) SnapshotStorage() interfaces.SnapshotStorage {
	return m.snapshot
}

// AlertStorage returns the Alert storage interface
func (m *Manager) AlertStorage() interfaces.AlertStorage {
	return m.alert
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// VectorStorage returns the Vector storage interface
func (m *Manager) VectorStorage() interfaces.VectorStorage {
	return m.vector
}

// WeightsStorage returns the classifier weights storage interface
func (m *Manager) WeightsStorage() interfaces.WeightsStorage {
	return m.weights
}

// LoadSiteDefinitionsFromFiles loads site definitions from TOML files
func (m *Manager) LoadSiteDefinitionsFromFiles(ctx context.Context, dirPath string) error {
	return LoadSiteDefinitionsFromFiles(ctx, m.site, dirPath, m.logger)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
