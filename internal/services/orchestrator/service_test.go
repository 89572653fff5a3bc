package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/classifier"
	"github.com/ternarybob/vigil/internal/services/detector"
	"github.com/ternarybob/vigil/internal/services/extractor"
	"github.com/ternarybob/vigil/internal/services/scheduler"
	"github.com/ternarybob/vigil/internal/services/workflow"
	"github.com/ternarybob/vigil/internal/storage/badger"
)

type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, url string) (*interfaces.FetchOutcome, error) {
	return &interfaces.FetchOutcome{
		RawHTML:    "<html><head><title>ok</title></head><body><p>steady state content here</p></body></html>",
		HTTPStatus: 200,
		FinalURL:   url,
	}, nil
}

type noopNotifier struct{}

func (noopNotifier) Emit(_ *models.Alert) {}

type testStack struct {
	orchestrator *Service
	storage      *badger.Manager
	clock        *common.FakeClock
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := arbor.NewLogger()

	manager, err := badger.NewManager(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	engine := workflow.NewEngine(
		workflow.Config{TotalDeadline: 10 * time.Second, DrainDeadline: 5 * time.Second},
		staticFetcher{},
		extractor.NewService(extractor.Config{}, logger),
		detector.NewService(detector.Thresholds{Similarity: 0.9, Structural: 0.9, CriticalChange: 0.75}, logger),
		nil,
		classifier.NewPipeline(classifier.NewLLMAdapter(nil, time.Second, logger), manager.WeightsStorage(), 2, logger),
		manager,
		noopNotifier{},
		logger,
	)

	clock := common.NewFakeClock(time.Now())
	sched := scheduler.NewService(scheduler.Config{MaxConcurrentJobs: 2}, clock, engine, manager.JobStorage(), logger)

	return &testStack{
		orchestrator: NewService(manager, sched, engine, nil, logger),
		storage:      manager,
		clock:        clock,
	}
}

func activeSite(url string) *models.Site {
	return &models.Site{
		URL:      url,
		Name:     "Test Site",
		Schedule: "5m",
		Active:   true,
	}
}

func TestStartRegistersActiveSites(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	active := activeSite("https://one.example.com/")
	active.ID = common.NewSiteID()
	require.NoError(t, stack.storage.SiteStorage().SaveSite(ctx, active))

	inactive := activeSite("https://two.example.com/")
	inactive.ID = common.NewSiteID()
	inactive.Active = false
	require.NoError(t, stack.storage.SiteStorage().SaveSite(ctx, inactive))

	require.NoError(t, stack.orchestrator.Start(ctx))
	defer stack.orchestrator.Stop()

	status, err := stack.orchestrator.SiteStatus(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobScheduled, status.JobStatus)

	status, err = stack.orchestrator.SiteStatus(ctx, inactive.ID)
	require.NoError(t, err)
	assert.Empty(t, status.JobStatus, "inactive site has no scheduler job")
}

func TestRegisterSiteValidation(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	require.NoError(t, stack.orchestrator.Start(ctx))
	defer stack.orchestrator.Stop()

	err := stack.orchestrator.RegisterSite(ctx, &models.Site{URL: "not-a-url", Name: "x", Schedule: "5m"})
	require.Error(t, err)

	err = stack.orchestrator.RegisterSite(ctx, &models.Site{URL: "https://ok.example.com/", Name: "x", Schedule: "whenever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")

	site := activeSite("https://ok.example.com/")
	require.NoError(t, stack.orchestrator.RegisterSite(ctx, site))
	assert.NotEmpty(t, site.ID)

	// same URL again is rejected
	err = stack.orchestrator.RegisterSite(ctx, activeSite("https://ok.example.com/"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPauseResumeAndTrigger(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	require.NoError(t, stack.orchestrator.Start(ctx))
	defer stack.orchestrator.Stop()

	site := activeSite("https://pause.example.com/")
	require.NoError(t, stack.orchestrator.RegisterSite(ctx, site))

	require.NoError(t, stack.orchestrator.PauseSite(site.ID))
	status, err := stack.orchestrator.SiteStatus(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPaused, status.JobStatus)

	require.NoError(t, stack.orchestrator.ResumeSite(site.ID))
	status, err = stack.orchestrator.SiteStatus(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobScheduled, status.JobStatus)

	executionID, err := stack.orchestrator.TriggerImmediate(site.ID)
	require.NoError(t, err)
	assert.Contains(t, executionID, "exec_")

	_, err = stack.orchestrator.TriggerImmediate("site_unknown")
	require.Error(t, err)
}

func TestUnregisterSiteRemovesEverything(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	require.NoError(t, stack.orchestrator.Start(ctx))
	defer stack.orchestrator.Stop()

	site := activeSite("https://gone.example.com/")
	require.NoError(t, stack.orchestrator.RegisterSite(ctx, site))
	require.NoError(t, stack.orchestrator.UnregisterSite(ctx, site.ID))

	loaded, err := stack.storage.SiteStorage().GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, err = stack.orchestrator.SiteStatus(ctx, site.ID)
	require.Error(t, err)
}

func TestUpdateSiteDeactivationPausesJob(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	require.NoError(t, stack.orchestrator.Start(ctx))
	defer stack.orchestrator.Stop()

	site := activeSite("https://toggle.example.com/")
	require.NoError(t, stack.orchestrator.RegisterSite(ctx, site))

	site.Active = false
	require.NoError(t, stack.orchestrator.UpdateSite(ctx, site))

	status, err := stack.orchestrator.SiteStatus(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPaused, status.JobStatus)
}
