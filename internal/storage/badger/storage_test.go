package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func testSnapshot(siteID string, capturedAt time.Time, verdict models.Verdict) *models.Snapshot {
	return &models.Snapshot{
		ID:          common.NewSnapshotID(),
		SiteID:      siteID,
		CapturedAt:  capturedAt,
		HTTPStatus:  200,
		ContentHash: "hash-" + capturedAt.Format(time.RFC3339Nano),
		Verdict:     verdict,
		Confidence:  1.0,
	}
}

func TestSiteRoundTripAndLookupByURL(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	site := &models.Site{
		ID:       common.NewSiteID(),
		URL:      "https://acme.example.com/",
		Name:     "Acme",
		Schedule: "5m",
		Active:   true,
	}
	require.NoError(t, manager.SiteStorage().SaveSite(ctx, site))

	loaded, err := manager.SiteStorage().GetSite(ctx, site.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, site.URL, loaded.URL)
	assert.False(t, loaded.CreatedAt.IsZero())

	byURL, err := manager.SiteStorage().GetSiteByURL(ctx, site.URL)
	require.NoError(t, err)
	require.NotNil(t, byURL)
	assert.Equal(t, site.ID, byURL.ID)

	missing, err := manager.SiteStorage().GetSite(ctx, "site_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListSitesActiveFilter(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	for i, active := range []bool{true, false, true} {
		require.NoError(t, manager.SiteStorage().SaveSite(ctx, &models.Site{
			ID:       common.NewSiteID(),
			URL:      "https://example.com/" + string(rune('a'+i)),
			Name:     "Site",
			Schedule: "5m",
			Active:   active,
		}))
	}

	all, err := manager.SiteStorage().ListSites(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := manager.SiteStorage().ListSites(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestBaselineSkipsNonBaselineVerdicts(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	siteID := common.NewSiteID()
	base := time.Now().UTC()

	snaps := manager.SnapshotStorage()
	require.NoError(t, snaps.SaveSnapshot(ctx, testSnapshot(siteID, base, models.VerdictInitial)))
	require.NoError(t, snaps.SaveSnapshot(ctx, testSnapshot(siteID, base.Add(time.Minute), models.VerdictBenign)))
	require.NoError(t, snaps.SaveSnapshot(ctx, testSnapshot(siteID, base.Add(2*time.Minute), models.VerdictDefacement)))

	baseline, err := snaps.Baseline(ctx, siteID)
	require.NoError(t, err)
	require.NotNil(t, baseline)
	assert.Equal(t, models.VerdictBenign, baseline.Verdict)
	assert.Equal(t, base.Add(time.Minute).Unix(), baseline.CapturedAt.Unix())

	latest, err := snaps.LatestSnapshot(ctx, siteID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.VerdictDefacement, latest.Verdict)
}

func TestUpdateVerdictBackfill(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	siteID := common.NewSiteID()

	snap := testSnapshot(siteID, time.Now().UTC(), models.VerdictUnclear)
	require.NoError(t, manager.SnapshotStorage().SaveSnapshot(ctx, snap))

	require.NoError(t, manager.SnapshotStorage().UpdateVerdict(ctx, snap.ID, models.VerdictBenign, 0.8, "operator reviewed"))

	loaded, err := manager.SnapshotStorage().GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictBenign, loaded.Verdict)
	assert.Equal(t, 0.8, loaded.Confidence)
	assert.Equal(t, "operator reviewed", loaded.ClassifierSummary)
}

func TestPruneSnapshotsCascadesToVectors(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	siteID := common.NewSiteID()
	base := time.Now().UTC()

	var oldest *models.Snapshot
	for i := 0; i < 5; i++ {
		snap := testSnapshot(siteID, base.Add(time.Duration(i)*time.Minute), models.VerdictBenign)
		if i == 0 {
			oldest = snap
		}
		require.NoError(t, manager.SnapshotStorage().SaveSnapshot(ctx, snap))
		require.NoError(t, manager.VectorStorage().SaveVector(ctx, &models.Vector{
			ID:         common.NewVectorID(),
			SiteID:     siteID,
			SnapshotID: snap.ID,
			Kind:       models.VectorMain,
			Dimension:  3,
			Payload:    []float32{1, 2, 3},
			CreatedAt:  snap.CapturedAt,
		}))
	}

	removed, err := manager.SnapshotStorage().PruneSnapshots(ctx, siteID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := manager.SnapshotStorage().CountSnapshots(ctx, siteID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	orphans, err := manager.VectorStorage().VectorsForSnapshot(ctx, oldest.ID)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	// keeping more than exist removes nothing
	removed, err = manager.SnapshotStorage().PruneSnapshots(ctx, siteID, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeleteSiteCascades(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	site := &models.Site{
		ID:       common.NewSiteID(),
		URL:      "https://cascade.example.com/",
		Name:     "Cascade",
		Schedule: "5m",
		Active:   true,
	}
	require.NoError(t, manager.SiteStorage().SaveSite(ctx, site))

	snap := testSnapshot(site.ID, time.Now().UTC(), models.VerdictInitial)
	require.NoError(t, manager.SnapshotStorage().SaveSnapshot(ctx, snap))
	require.NoError(t, manager.VectorStorage().SaveVector(ctx, &models.Vector{
		ID:         common.NewVectorID(),
		SiteID:     site.ID,
		SnapshotID: snap.ID,
		Kind:       models.VectorMain,
		Dimension:  1,
		Payload:    []float32{1},
	}))
	require.NoError(t, manager.AlertStorage().SaveAlert(ctx, &models.Alert{
		ID:     common.NewAlertID(),
		SiteID: site.ID,
		Kind:   models.AlertSuspicious,
		Status: models.AlertOpen,
	}))
	require.NoError(t, manager.JobStorage().SaveJob(ctx, &models.Job{
		ID:     common.NewJobID(),
		SiteID: site.ID,
		Status: models.JobScheduled,
	}))

	require.NoError(t, manager.SiteStorage().DeleteSite(ctx, site.ID))

	gone, err := manager.SiteStorage().GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	count, err := manager.SnapshotStorage().CountSnapshots(ctx, site.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	alerts, err := manager.AlertStorage().OpenAlerts(ctx, site.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	job, err := manager.JobStorage().GetJobBySite(ctx, site.ID)
	require.NoError(t, err)
	assert.Nil(t, job)

	vectors, err := manager.VectorStorage().VectorsForSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestLatestAlertByKind(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	siteID := common.NewSiteID()
	now := time.Now().UTC()

	first := &models.Alert{
		ID: common.NewAlertID(), SiteID: siteID, Kind: models.AlertSiteDown,
		Status: models.AlertResolved, CreatedAt: now.Add(-time.Hour),
	}
	second := &models.Alert{
		ID: common.NewAlertID(), SiteID: siteID, Kind: models.AlertSiteDown,
		Status: models.AlertOpen, CreatedAt: now,
	}
	other := &models.Alert{
		ID: common.NewAlertID(), SiteID: siteID, Kind: models.AlertDefacement,
		Status: models.AlertOpen, CreatedAt: now.Add(time.Minute),
	}
	for _, alert := range []*models.Alert{first, second, other} {
		require.NoError(t, manager.AlertStorage().SaveAlert(ctx, alert))
	}

	latest, err := manager.AlertStorage().LatestAlert(ctx, siteID, models.AlertSiteDown)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	require.NoError(t, manager.AlertStorage().UpdateAlertStatus(ctx, second.ID, models.AlertAcknowledged))
	updated, err := manager.AlertStorage().GetAlert(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertAcknowledged, updated.Status)
}

func TestJobListByStatus(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	statuses := []models.JobStatus{models.JobScheduled, models.JobPaused, models.JobScheduled, models.JobFailed}
	for _, status := range statuses {
		require.NoError(t, manager.JobStorage().SaveJob(ctx, &models.Job{
			ID:     common.NewJobID(),
			SiteID: common.NewSiteID(),
			Status: status,
		}))
	}

	scheduled, err := manager.JobStorage().ListJobs(ctx, models.JobScheduled)
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)

	all, err := manager.JobStorage().ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestWeightsRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	siteID := common.NewSiteID()

	missing, err := manager.WeightsStorage().GetWeights(ctx, siteID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := &models.ClassifierWeights{
		SiteID:      siteID,
		Weights:     map[string]float64{"llm": 0.5, "semantic": 0.3, "rules": 0.2},
		Agreement:   0.7,
		SampleCount: 4,
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, manager.WeightsStorage().SaveWeights(ctx, record))

	loaded, err := manager.WeightsStorage().GetWeights(ctx, siteID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 0.7, loaded.Agreement)
	assert.Equal(t, 4, loaded.SampleCount)
	assert.Equal(t, 0.5, loaded.Weights["llm"])
}

func TestLoadSiteDefinitionsFromFiles(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	good := `
url = "https://acme.example.com/"
name = "Acme Widgets"
schedule = "5m"
keep_scans = 25
similarity_threshold = 0.95
context = ["corporate product site"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.toml"), []byte(good), 0644))

	bad := `
url = "https://broken.example.com/"
name = "Broken"
schedule = "not-a-schedule"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte(bad), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	require.NoError(t, manager.LoadSiteDefinitionsFromFiles(ctx, dir))

	sites, err := manager.SiteStorage().ListSites(ctx, false)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	site := sites[0]
	assert.Equal(t, "Acme Widgets", site.Name)
	assert.True(t, site.Active)
	assert.Equal(t, 25, site.KeepScans)
	require.NotNil(t, site.SimilarityThreshold)
	assert.Equal(t, 0.95, *site.SimilarityThreshold)
	assert.Equal(t, []string{"corporate product site"}, site.Context)

	// reloading the same URL keeps the site ID
	require.NoError(t, manager.LoadSiteDefinitionsFromFiles(ctx, dir))
	reloaded, err := manager.SiteStorage().GetSiteByURL(ctx, "https://acme.example.com/")
	require.NoError(t, err)
	assert.Equal(t, site.ID, reloaded.ID)

	// missing directory is not an error
	require.NoError(t, manager.LoadSiteDefinitionsFromFiles(ctx, filepath.Join(dir, "missing")))
}
