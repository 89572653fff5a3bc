package classifier

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// Request carries everything one classification needs
type Request struct {
	Site        *models.Site
	Content     *models.ExtractedContent
	Change      *models.ChangeClassification
	Vectors     []VectorPair
	Prompt      interfaces.PromptContext
	HasBaseline bool
}

// Pipeline fans a change out to the three sub-classifiers and merges
// their votes. Sub-classifiers normally run in parallel; when the
// executor is saturated they fall back to sequential execution.
type Pipeline struct {
	rules        *RulesClassifier
	semantic     *SemanticClassifier
	llm          *LLMAdapter
	weightsStore interfaces.WeightsStorage
	executor     *semaphore.Weighted
	baseWeights  map[models.ClassifierKind]float64
	thresholds   map[string]float64
	logger       arbor.ILogger
}

// NewPipeline assembles the classification pipeline. maxParallel bounds
// how many checks may classify concurrently before falling back to
// sequential mode.
func NewPipeline(llm *LLMAdapter, weightsStore interfaces.WeightsStorage, maxParallel int64, logger arbor.ILogger) *Pipeline {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Pipeline{
		rules:        NewRulesClassifier(),
		semantic:     NewSemanticClassifier(),
		llm:          llm,
		weightsStore: weightsStore,
		executor:     semaphore.NewWeighted(maxParallel),
		baseWeights:  DefaultBaseWeights(),
		logger:       logger,
	}
}

// WithBaseWeights overrides the ensemble priors from configuration.
// Unknown classifier names are ignored; missing ones keep their default.
func (p *Pipeline) WithBaseWeights(weights map[string]float64) *Pipeline {
	for name, v := range weights {
		kind := models.ClassifierKind(name)
		if _, ok := p.baseWeights[kind]; ok && v > 0 {
			p.baseWeights[kind] = v
		}
	}
	return p
}

// WithConfidenceThresholds overrides the reporting bucket floors
// (very_high/high/medium/low) from configuration.
func (p *Pipeline) WithConfidenceThresholds(thresholds map[string]float64) *Pipeline {
	if len(thresholds) > 0 {
		p.thresholds = thresholds
	}
	return p
}

// levelFor buckets a confidence score, honoring configured floors
func (p *Pipeline) levelFor(score float64) models.ConfidenceLevel {
	if p.thresholds == nil {
		return models.ConfidenceLevelFor(score)
	}
	floor := func(name string, def float64) float64 {
		if v, ok := p.thresholds[name]; ok {
			return v
		}
		return def
	}
	switch {
	case score >= floor("very_high", 0.8):
		return models.ConfidenceVeryHigh
	case score >= floor("high", 0.6):
		return models.ConfidenceHigh
	case score >= floor("medium", 0.4):
		return models.ConfidenceMedium
	case score >= floor("low", 0.2):
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}

// Classify adjudicates a change. It returns the merged result and the
// updated per-site weights record, which the caller persists alongside
// the snapshot.
func (p *Pipeline) Classify(ctx context.Context, req Request) (*models.ClassificationResult, *models.ClassifierWeights) {
	start := time.Now()

	var record *models.ClassifierWeights
	if req.Site != nil && p.weightsStore != nil {
		record, _ = p.weightsStore.GetWeights(ctx, req.Site.ID)
	}
	weights := EffectiveWeights(p.baseWeights, record)

	results := p.runClassifiers(ctx, req)
	outcome := Vote(results, weights)

	factors := ConfidenceFactors{
		Agreement:       outcome.Agreement,
		Clarity:         outcome.Clarity,
		Context:         contextFactor(req),
		Historical:      historicalFactor(record),
		SemanticQuality: semanticQualityFactor(results),
	}
	confidence := factors.Confidence()

	siteID := ""
	if req.Site != nil {
		siteID = req.Site.ID
	}
	record = UpdateWeightsRecord(record, siteID, outcome.Agreement, time.Now())

	weightsUsed := make(map[string]float64, len(weights))
	for k, v := range weights {
		weightsUsed[string(k)] = v
	}

	result := &models.ClassificationResult{
		Verdict:         outcome.Verdict,
		Confidence:      confidence,
		ConfidenceLevel: p.levelFor(confidence),
		Reasoning:       outcome.Reasoning,
		SubResults:      results,
		WeightsUsed:     weightsUsed,
		ProcessingTime:  time.Since(start),
	}

	p.logger.Info().
		Str("site_id", siteID).
		Str("verdict", string(result.Verdict)).
		Float64("confidence", confidence).
		Str("confidence_level", string(result.ConfidenceLevel)).
		Float64("agreement", outcome.Agreement).
		Msg("Classification complete")

	return result, record
}

// runClassifiers executes the three sub-classifiers, in parallel when an
// executor slot is free, sequentially otherwise.
func (p *Pipeline) runClassifiers(ctx context.Context, req Request) []models.SubResult {
	if !p.executor.TryAcquire(1) {
		p.logger.Debug().Msg("Classifier executor saturated, running sequentially")
		return []models.SubResult{
			p.rules.Classify(req.Content),
			p.semantic.Classify(req.Vectors),
			p.llm.Classify(ctx, req.Prompt),
		}
	}
	defer p.executor.Release(1)

	results := make([]models.SubResult, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		results[0] = p.rules.Classify(req.Content)
	}()
	go func() {
		defer wg.Done()
		results[1] = p.semantic.Classify(req.Vectors)
	}()
	go func() {
		defer wg.Done()
		results[2] = p.llm.Classify(ctx, req.Prompt)
	}()
	wg.Wait()

	return results
}

// contextFactor rewards having a baseline and site metadata to reason
// against
func contextFactor(req Request) float64 {
	factor := 0.4
	if req.HasBaseline {
		factor += 0.4
	}
	if req.Site != nil && req.Site.Name != "" {
		factor += 0.2
	}
	if factor > 1 {
		factor = 1
	}
	return factor
}

// historicalFactor is 1 minus the trailing false-positive rate
func historicalFactor(record *models.ClassifierWeights) float64 {
	if record == nil {
		return 1.0
	}
	f := 1.0 - record.FalsePosRate
	if f < 0 {
		return 0
	}
	return f
}

// semanticQualityFactor is 1 when vectors were comparable, 0 otherwise
func semanticQualityFactor(results []models.SubResult) float64 {
	for _, r := range results {
		if r.Kind == models.ClassifierSemantic && !r.Abstained {
			return 1.0
		}
	}
	return 0.0
}
