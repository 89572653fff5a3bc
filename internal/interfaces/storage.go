package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	SiteStorage() SiteStorage
	SnapshotStorage() SnapshotStorage
	AlertStorage() AlertStorage
	JobStorage() JobStorage
	VectorStorage() VectorStorage
	WeightsStorage() WeightsStorage
	Close() error
}

// SiteStorage persists monitored sites
type SiteStorage interface {
	SaveSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	GetSiteByURL(ctx context.Context, url string) (*models.Site, error)
	ListSites(ctx context.Context, activeOnly bool) ([]*models.Site, error)
	DeleteSite(ctx context.Context, id string) error // Cascades to snapshots, vectors, alerts, job
}

// SnapshotStorage persists page captures and their verdicts
type SnapshotStorage interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	// LatestSnapshot returns the most recent snapshot for a site, or nil
	LatestSnapshot(ctx context.Context, siteID string) (*models.Snapshot, error)
	// Baseline returns the most recent snapshot whose verdict is benign or
	// initial, or nil when the site has no usable baseline.
	Baseline(ctx context.Context, siteID string) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context, siteID string, limit int) ([]*models.Snapshot, error)
	UpdateVerdict(ctx context.Context, snapshotID string, verdict models.Verdict, confidence float64, summary string) error
	// PruneSnapshots removes the oldest snapshots beyond keep, together with
	// their vectors. Returns the number of snapshots removed.
	PruneSnapshots(ctx context.Context, siteID string, keep int) (int, error)
	CountSnapshots(ctx context.Context, siteID string) (int, error)
}

// AlertStorage persists alerts; the core creates, operators mutate
type AlertStorage interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	OpenAlerts(ctx context.Context, siteID string) ([]*models.Alert, error) // Empty siteID returns all
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error
	// LatestAlert returns the newest alert of the given kind for a site, or nil
	LatestAlert(ctx context.Context, siteID string, kind models.AlertKind) (*models.Alert, error)
}

// JobStorage persists scheduler jobs
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobBySite(ctx context.Context, siteID string) (*models.Job, error)
	ListJobs(ctx context.Context, statuses ...models.JobStatus) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// VectorStorage persists embeddings, indexed by site and snapshot
type VectorStorage interface {
	SaveVector(ctx context.Context, vec *models.Vector) error
	GetVector(ctx context.Context, id string) (*models.Vector, error)
	VectorsForSnapshot(ctx context.Context, snapshotID string) ([]*models.Vector, error)
	DeleteVectorsForSnapshot(ctx context.Context, snapshotID string) error
}

// WeightsStorage persists per-site adaptive classifier weights
type WeightsStorage interface {
	SaveWeights(ctx context.Context, w *models.ClassifierWeights) error
	GetWeights(ctx context.Context, siteID string) (*models.ClassifierWeights, error)
}

// FalsePositiveWindow is the trailing window used for the historical
// confidence factor.
const FalsePositiveWindow = 30 * 24 * time.Hour
