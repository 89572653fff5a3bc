package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/classifier"
	"github.com/ternarybob/vigil/internal/services/detector"
	"github.com/ternarybob/vigil/internal/services/extractor"
	"github.com/ternarybob/vigil/internal/services/llm"
	"github.com/ternarybob/vigil/internal/services/vectorizer"
)

// Config holds per-check workflow settings
type Config struct {
	TotalDeadline time.Duration // Whole-check budget; crossing it cancels outstanding steps
	FetchTimeout  time.Duration // Budget for the fetch step alone; 0 defers to the fetcher
	DrainDeadline time.Duration // How long Drain waits for in-flight checks
	DownThreshold int           // Consecutive fetch failures before a site_down alert
	KeepScans     int           // Snapshots retained per site; site override wins, 0 disables pruning
}

// Engine runs one monitoring check per invocation as a small DAG:
// fetch -> extract -> detect -> vectorize -> [classify] -> persist -> alert.
// The scheduler guarantees at-most-one in-flight check per site, so the
// engine holds no per-site locks.
type Engine struct {
	config     Config
	fetcher    interfaces.Fetcher
	extractor  *extractor.Service
	detector   *detector.Service
	vectorizer *vectorizer.Service
	pipeline   *classifier.Pipeline
	storage    interfaces.StorageManager
	notifier   interfaces.Notifier
	logger     arbor.ILogger

	mu       sync.Mutex
	failures map[string]int // consecutive fetch failures per site
	inflight sync.WaitGroup
}

// NewEngine assembles the check workflow
func NewEngine(
	config Config,
	fetcher interfaces.Fetcher,
	ext *extractor.Service,
	det *detector.Service,
	vec *vectorizer.Service,
	pipeline *classifier.Pipeline,
	storage interfaces.StorageManager,
	notifier interfaces.Notifier,
	logger arbor.ILogger,
) *Engine {
	if config.TotalDeadline <= 0 {
		config.TotalDeadline = 120 * time.Second
	}
	if config.DrainDeadline <= 0 {
		config.DrainDeadline = 30 * time.Second
	}
	if config.DownThreshold <= 0 {
		config.DownThreshold = 3
	}

	return &Engine{
		config:     config,
		fetcher:    fetcher,
		extractor:  ext,
		detector:   det,
		vectorizer: vec,
		pipeline:   pipeline,
		storage:    storage,
		notifier:   notifier,
		logger:     logger,
		failures:   make(map[string]int),
	}
}

// checkState accumulates intermediate results across DAG steps. Steps
// only write fields their dependents read after them, so no locking.
type checkState struct {
	site *models.Site

	outcome     *interfaces.FetchOutcome
	content     *models.ExtractedContent
	prints      models.Fingerprints
	detectDone  bool
	baseline    *models.Snapshot
	baseContent *models.ExtractedContent
	change      *models.ChangeClassification
	vectors     map[models.VectorKind][]float32
	result      *models.ClassificationResult
	weights     *models.ClassifierWeights
	snapshot    *models.Snapshot
}

// RunCheck executes one full monitoring check for a site. The returned
// error drives the scheduler's retry and breaker logic; degraded but
// completed checks (vectorizer down, LLM abstaining) return nil.
func (e *Engine) RunCheck(ctx context.Context, site *models.Site) error {
	e.inflight.Add(1)
	defer e.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, e.config.TotalDeadline)
	defer cancel()

	start := time.Now()
	state := &checkState{site: site}

	steps := []Step{
		{
			Name: "fetch",
			Run:  func(ctx context.Context) error { return e.stepFetch(ctx, state) },
		},
		{
			Name: "extract",
			Deps: []string{"fetch"},
			Gate: func() bool { return state.outcome != nil },
			Run:  func(ctx context.Context) error { return e.stepExtract(state) },
		},
		{
			Name: "detect",
			Deps: []string{"extract"},
			Gate: func() bool { return state.content != nil },
			Run:  func(ctx context.Context) error { return e.stepDetect(ctx, state) },
		},
		{
			Name: "vectorize",
			Deps: []string{"detect"},
			Gate: func() bool {
				return state.content != nil && (state.change == nil || state.change.Kind != models.ChangeUnchanged)
			},
			Run: func(ctx context.Context) error { return e.stepVectorize(ctx, state) },
		},
		{
			Name: "classify",
			Deps: []string{"vectorize"},
			Gate: func() bool { return state.change != nil && state.change.Kind.RequiresClassification() },
			Run:  func(ctx context.Context) error { return e.stepClassify(ctx, state) },
		},
		{
			Name: "persist",
			Deps: []string{"classify"},
			Gate: func() bool { return state.content != nil && state.detectDone },
			Run:  func(ctx context.Context) error { return e.stepPersist(ctx, state) },
		},
		{
			Name: "alert",
			Deps: []string{"persist"},
			Gate: func() bool { return state.snapshot != nil && alertKindFor(state.snapshot.Verdict) != "" },
			Run:  func(ctx context.Context) error { return e.stepAlert(ctx, state) },
		},
	}

	results, dagErr := runDAG(ctx, steps, e.logger)
	if dagErr != nil && results == nil {
		return dagErr
	}

	if err := results["fetch"].Err; err != nil {
		e.recordFetchFailure(ctx, site, err)
		return err
	}
	e.resetFetchFailures(site.ID)

	for _, name := range []string{"extract", "detect", "persist"} {
		if err := results[name].Err; err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
	}
	if dagErr != nil {
		return dagErr
	}

	verdict := models.Verdict("")
	if state.snapshot != nil {
		verdict = state.snapshot.Verdict
	}
	e.logger.Info().
		Str("site_id", site.ID).
		Str("url", site.URL).
		Str("verdict", string(verdict)).
		Dur("duration", time.Since(start)).
		Msg("Check complete")
	return nil
}

// Drain waits for in-flight checks to finish, up to the drain deadline
func (e *Engine) Drain() error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(e.config.DrainDeadline):
		return fmt.Errorf("drain deadline exceeded with checks still in flight")
	}
}

func (e *Engine) stepFetch(ctx context.Context, state *checkState) error {
	if e.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.FetchTimeout)
		defer cancel()
	}
	outcome, err := e.fetcher.Fetch(ctx, state.site.URL)
	if err != nil {
		return err
	}
	state.outcome = outcome
	return nil
}

func (e *Engine) stepExtract(state *checkState) error {
	baseURL := state.outcome.FinalURL
	if baseURL == "" {
		baseURL = state.site.URL
	}
	content, prints, err := e.extractor.Extract(state.outcome.RawHTML, baseURL)
	if err != nil {
		return err
	}
	state.content = content
	state.prints = prints
	return nil
}

// stepDetect loads the site's baseline and classifies change magnitude.
// A site without a baseline skips comparison; its snapshot becomes the
// initial baseline in persist.
func (e *Engine) stepDetect(ctx context.Context, state *checkState) error {
	baseline, err := e.storage.SnapshotStorage().Baseline(ctx, state.site.ID)
	if err != nil {
		return fmt.Errorf("failed to load baseline: %w", err)
	}
	if baseline == nil {
		state.detectDone = true
		return nil
	}
	state.baseline = baseline

	// The baseline's extracted representation is rebuilt from its stored
	// HTML; fingerprints come from the stored hashes.
	if baseline.RawHTML != "" {
		baseContent, _, err := e.extractor.Extract(baseline.RawHTML, state.site.URL)
		if err != nil {
			e.logger.Warn().Err(err).Str("snapshot_id", baseline.ID).Msg("Baseline HTML no longer parseable, comparing fingerprints only")
		} else {
			state.baseContent = baseContent
		}
	}

	if state.baseContent == nil {
		if state.prints.Equal(baseline.Fingerprints()) {
			state.change = &models.ChangeClassification{
				Kind:                 models.ChangeUnchanged,
				KeywordSimilarity:    1.0,
				StructuralSimilarity: 1.0,
			}
		} else {
			state.change = &models.ChangeClassification{
				Kind:    models.ChangeSignificant,
				Summary: []string{"fingerprints diverged from baseline without comparable content"},
			}
		}
		state.detectDone = true
		return nil
	}

	state.change = e.detector.Compare(state.site, state.baseContent, state.content, baseline.Fingerprints(), state.prints)
	state.detectDone = true
	return nil
}

// stepVectorize embeds the current content. Failures are non-fatal: the
// check proceeds and the semantic classifier abstains.
func (e *Engine) stepVectorize(ctx context.Context, state *checkState) error {
	if e.vectorizer == nil {
		return nil
	}

	texts := map[models.VectorKind]string{
		models.VectorMain:       state.content.NormalizedText,
		models.VectorTitle:      state.content.Title,
		models.VectorTextBlocks: strings.Join(state.content.TextBlocks, "\n"),
		models.VectorMeta:       state.content.MetaDescription,
	}

	vectors := make(map[models.VectorKind][]float32)
	for kind, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		vec, err := e.vectorizer.Vectorize(ctx, text, kind)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Str("site_id", state.site.ID).
				Str("kind", string(kind)).
				Msg("Embedding failed, continuing without vector")
			continue
		}
		vectors[kind] = vec
	}
	state.vectors = vectors
	return nil
}

func (e *Engine) stepClassify(ctx context.Context, state *checkState) error {
	pairs, err := e.vectorPairs(ctx, state)
	if err != nil {
		e.logger.Warn().Err(err).Str("site_id", state.site.ID).Msg("Baseline vectors unavailable, semantic classifier will abstain")
	}

	result, weights := e.pipeline.Classify(ctx, classifier.Request{
		Site:        state.site,
		Content:     state.content,
		Change:      state.change,
		Vectors:     pairs,
		Prompt:      e.buildPrompt(state),
		HasBaseline: state.baseline != nil,
	})
	state.result = result
	state.weights = weights
	return nil
}

// vectorPairs matches current vectors against the baseline snapshot's
// stored vectors by kind.
func (e *Engine) vectorPairs(ctx context.Context, state *checkState) ([]classifier.VectorPair, error) {
	if state.baseline == nil || len(state.vectors) == 0 {
		return nil, nil
	}

	stored, err := e.storage.VectorStorage().VectorsForSnapshot(ctx, state.baseline.ID)
	if err != nil {
		return nil, err
	}

	var pairs []classifier.VectorPair
	for _, base := range stored {
		current, ok := state.vectors[base.Kind]
		if !ok {
			continue
		}
		pairs = append(pairs, classifier.VectorPair{
			Kind:     base.Kind,
			Baseline: base.Payload,
			Current:  current,
		})
	}
	return pairs, nil
}

// buildPrompt assembles the LLM prompt context. Changed excerpts are the
// text blocks present now but absent from the baseline, rendered as
// markdown.
func (e *Engine) buildPrompt(state *checkState) interfaces.PromptContext {
	prompt := interfaces.PromptContext{
		SiteURL:       state.site.URL,
		StaticContext: state.site.Context,
		Title:         state.content.Title,
	}
	if state.baseline != nil {
		prompt.PriorVerdict = state.baseline.Verdict
	}

	var fragments []string
	if state.baseContent != nil {
		seen := make(map[string]struct{}, len(state.baseContent.TextBlocks))
		for _, block := range state.baseContent.TextBlocks {
			seen[block] = struct{}{}
		}
		for _, block := range state.content.TextBlocks {
			if _, ok := seen[block]; !ok {
				fragments = append(fragments, block)
			}
		}
	} else {
		fragments = state.content.TextBlocks
	}
	prompt.ChangedExcerpts = llm.RenderExcerpts(state.site.URL, fragments)
	return prompt
}

// stepPersist writes the snapshot, its vectors and the updated weights
// record, then prunes old snapshots. The snapshot save is retried once.
func (e *Engine) stepPersist(ctx context.Context, state *checkState) error {
	snap := e.buildSnapshot(state)

	snapStore := e.storage.SnapshotStorage()
	if err := snapStore.SaveSnapshot(ctx, snap); err != nil {
		e.logger.Warn().Err(err).Str("site_id", state.site.ID).Msg("Snapshot save failed, retrying once")
		if err = snapStore.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}
	state.snapshot = snap

	vecStore := e.storage.VectorStorage()
	for kind, payload := range state.vectors {
		vec := &models.Vector{
			ID:         common.NewVectorID(),
			SiteID:     state.site.ID,
			SnapshotID: snap.ID,
			Kind:       kind,
			Dimension:  len(payload),
			Payload:    payload,
			CreatedAt:  snap.CapturedAt,
		}
		if err := vecStore.SaveVector(ctx, vec); err != nil {
			e.logger.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to persist vector")
			continue
		}
		if kind == models.VectorMain {
			snap.VectorRef = vec.ID
			if err := snapStore.SaveSnapshot(ctx, snap); err != nil {
				e.logger.Warn().Err(err).Msg("Failed to back-fill vector ref")
			}
		}
	}

	if state.weights != nil {
		if err := e.storage.WeightsStorage().SaveWeights(ctx, state.weights); err != nil {
			e.logger.Warn().Err(err).Str("site_id", state.site.ID).Msg("Failed to persist classifier weights")
		}
	}

	keep := e.config.KeepScans
	if state.site.KeepScans > 0 {
		keep = state.site.KeepScans
	}
	if keep > 0 {
		removed, err := snapStore.PruneSnapshots(ctx, state.site.ID, keep)
		if err != nil {
			e.logger.Warn().Err(err).Str("site_id", state.site.ID).Msg("Snapshot pruning failed")
		} else if removed > 0 {
			e.logger.Debug().Int("removed", removed).Str("site_id", state.site.ID).Msg("Pruned old snapshots")
		}
	}
	return nil
}

// buildSnapshot applies the verdict decision tree: no baseline makes the
// snapshot the initial baseline, unchanged inherits, minor is benign
// drift, and classified changes take the ensemble's verdict.
func (e *Engine) buildSnapshot(state *checkState) *models.Snapshot {
	snap := &models.Snapshot{
		ID:            common.NewSnapshotID(),
		SiteID:        state.site.ID,
		CapturedAt:    time.Now().UTC(),
		HTTPStatus:    state.outcome.HTTPStatus,
		ResponseTime:  time.Duration(state.outcome.Elapsed) * time.Millisecond,
		RawHTML:       state.outcome.RawHTML,
		ExtractedText: state.content.NormalizedText,
		Title:         state.content.Title,
		Truncated:     state.content.Truncated,
		ContentHash:   state.prints.Content,
		StructureHash: state.prints.Structure,
		TextBlockHash: state.prints.TextBlock,
		SemanticHash:  state.prints.Semantic,
	}

	switch {
	case state.baseline == nil:
		snap.Verdict = models.VerdictInitial
		snap.Confidence = 1.0
		snap.ClassifierSummary = "first capture, establishing baseline"
	case state.change.Kind == models.ChangeUnchanged:
		snap.PrevSimilarity = 1.0
		snap.Verdict = state.baseline.Verdict
		snap.Confidence = state.baseline.Confidence
		snap.ClassifierSummary = "unchanged from baseline"
	case state.change.Kind == models.ChangeMinor:
		snap.PrevSimilarity = state.change.KeywordSimilarity
		snap.Verdict = models.VerdictBenign
		snap.Confidence = state.change.KeywordSimilarity
		snap.ClassifierSummary = strings.Join(state.change.Summary, "; ")
	case state.result != nil:
		snap.PrevSimilarity = state.change.KeywordSimilarity
		snap.Verdict = state.result.Verdict
		snap.Confidence = state.result.Confidence
		snap.ClassifierSummary = state.result.Reasoning
	default:
		// classify was due but produced nothing (deadline hit mid-DAG)
		snap.PrevSimilarity = state.change.KeywordSimilarity
		snap.Verdict = models.VerdictUnclear
		snap.Confidence = 0
		snap.ClassifierSummary = "classification did not complete"
	}
	return snap
}

// alertKindFor maps a snapshot verdict to the alert it raises, or ""
// for verdicts that stay quiet. Unclear verdicts raise a low-severity
// suspicious alert so a human reviews what the ensemble could not.
func alertKindFor(verdict models.Verdict) models.AlertKind {
	switch verdict {
	case models.VerdictDefacement:
		return models.AlertDefacement
	case models.VerdictSuspicious, models.VerdictUnclear:
		return models.AlertSuspicious
	default:
		return ""
	}
}

func (e *Engine) stepAlert(ctx context.Context, state *checkState) error {
	snap := state.snapshot
	kind := alertKindFor(snap.Verdict)
	now := time.Now().UTC()

	alert := &models.Alert{
		ID:           common.NewAlertID(),
		SiteID:       state.site.ID,
		SnapshotID:   snap.ID,
		Kind:         kind,
		Severity:     models.SeverityForVerdict(snap.Verdict, snap.Confidence),
		Title:        fmt.Sprintf("%s: %s change detected", state.site.Name, snap.Verdict),
		Description:  snap.ClassifierSummary,
		VerdictLabel: snap.Verdict,
		Confidence:   snap.Confidence,
		Similarity:   snap.PrevSimilarity,
		Status:       models.AlertOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.storage.AlertStorage().SaveAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist alert: %w", err)
	}
	e.notifier.Emit(alert)

	e.logger.Warn().
		Str("site_id", state.site.ID).
		Str("alert_id", alert.ID).
		Str("kind", string(kind)).
		Str("severity", string(alert.Severity)).
		Float64("confidence", snap.Confidence).
		Msg("Alert raised")
	return nil
}

// recordFetchFailure advances the consecutive-failure counter and raises
// a site_down alert once the threshold is crossed. At most one open
// site_down alert exists per outage.
func (e *Engine) recordFetchFailure(ctx context.Context, site *models.Site, fetchErr error) {
	e.mu.Lock()
	e.failures[site.ID]++
	count := e.failures[site.ID]
	e.mu.Unlock()

	e.logger.Warn().
		Str("site_id", site.ID).
		Str("url", site.URL).
		Int("consecutive_failures", count).
		Err(fetchErr).
		Msg("Fetch failed")

	if count < e.config.DownThreshold {
		return
	}

	latest, err := e.storage.AlertStorage().LatestAlert(ctx, site.ID, models.AlertSiteDown)
	if err != nil {
		e.logger.Warn().Err(err).Str("site_id", site.ID).Msg("Could not check for existing site_down alert")
		return
	}
	if latest != nil && latest.Status != models.AlertResolved {
		return
	}

	now := time.Now().UTC()
	alert := &models.Alert{
		ID:          common.NewAlertID(),
		SiteID:      site.ID,
		Kind:        models.AlertSiteDown,
		Severity:    models.SeverityHigh,
		Title:       fmt.Sprintf("%s is unreachable", site.Name),
		Description: fmt.Sprintf("%d consecutive fetch failures; last error: %v", count, fetchErr),
		Status:      models.AlertOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.storage.AlertStorage().SaveAlert(ctx, alert); err != nil {
		e.logger.Error().Err(err).Str("site_id", site.ID).Msg("Failed to persist site_down alert")
		return
	}
	e.notifier.Emit(alert)
}

func (e *Engine) resetFetchFailures(siteID string) {
	e.mu.Lock()
	delete(e.failures, siteID)
	e.mu.Unlock()
}
