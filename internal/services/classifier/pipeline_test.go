package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// stubLLM returns a canned verdict or error
type stubLLM struct {
	verdict interfaces.LLMVerdict
	err     error
	delay   time.Duration
}

func (s *stubLLM) Classify(ctx context.Context, _ interfaces.PromptContext) (*interfaces.LLMVerdict, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	v := s.verdict
	return &v, nil
}

// memWeights is an in-memory WeightsStorage
type memWeights struct {
	records map[string]*models.ClassifierWeights
}

func newMemWeights() *memWeights {
	return &memWeights{records: make(map[string]*models.ClassifierWeights)}
}

func (m *memWeights) SaveWeights(_ context.Context, w *models.ClassifierWeights) error {
	m.records[w.SiteID] = w
	return nil
}

func (m *memWeights) GetWeights(_ context.Context, siteID string) (*models.ClassifierWeights, error) {
	if w, ok := m.records[siteID]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("not found")
}

func newTestPipeline(llm interfaces.LLMClassifier, store interfaces.WeightsStorage) *Pipeline {
	adapter := NewLLMAdapter(llm, time.Second, arbor.NewLogger())
	return NewPipeline(adapter, store, 4, arbor.NewLogger())
}

func defacedRequest() Request {
	return Request{
		Site: &models.Site{ID: "site_1", Name: "Acme", URL: "https://acme.example.com"},
		Content: &models.ExtractedContent{
			NormalizedText: "hacked by darkstorm greetz to the crew",
			Title:          "HACKED",
		},
		Change: &models.ChangeClassification{Kind: models.ChangeSignificant},
		Vectors: []VectorPair{
			{Kind: models.VectorMain, Baseline: []float32{1, 0}, Current: []float32{0, 1}},
		},
		HasBaseline: true,
	}
}

func TestPipelineClassifyDefacement(t *testing.T) {
	llm := &stubLLM{verdict: interfaces.LLMVerdict{
		Verdict:    models.VerdictDefacement,
		Confidence: 0.95,
		Reasoning:  "attacker signature present",
	}}
	pipeline := newTestPipeline(llm, newMemWeights())

	result, record := pipeline.Classify(context.Background(), defacedRequest())

	assert.Equal(t, models.VerdictDefacement, result.Verdict)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)
	assert.Equal(t, models.ConfidenceVeryHigh, result.ConfidenceLevel)
	require.Len(t, result.SubResults, 3)

	require.NotNil(t, record)
	assert.Equal(t, "site_1", record.SiteID)
	assert.Equal(t, 1, record.SampleCount)
}

func TestPipelineLLMFailureAbstains(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("rate limited")}
	pipeline := newTestPipeline(llm, newMemWeights())

	result, _ := pipeline.Classify(context.Background(), defacedRequest())

	// rules and semantic still carry the vote
	assert.Equal(t, models.VerdictDefacement, result.Verdict)

	var llmResult *models.SubResult
	for i := range result.SubResults {
		if result.SubResults[i].Kind == models.ClassifierLLM {
			llmResult = &result.SubResults[i]
		}
	}
	require.NotNil(t, llmResult)
	assert.True(t, llmResult.Abstained)
	assert.NotEmpty(t, llmResult.Err)
}

func TestPipelineLLMTimeoutAbstains(t *testing.T) {
	llm := &stubLLM{delay: 5 * time.Second}
	adapter := NewLLMAdapter(llm, 20*time.Millisecond, arbor.NewLogger())
	pipeline := NewPipeline(adapter, newMemWeights(), 4, arbor.NewLogger())

	start := time.Now()
	result, _ := pipeline.Classify(context.Background(), defacedRequest())

	assert.Less(t, time.Since(start), time.Second)
	for _, sub := range result.SubResults {
		if sub.Kind == models.ClassifierLLM {
			assert.True(t, sub.Abstained)
		}
	}
	assert.Equal(t, models.VerdictDefacement, result.Verdict)
}

func TestPipelineMissingVectorsDegrade(t *testing.T) {
	llm := &stubLLM{verdict: interfaces.LLMVerdict{
		Verdict:    models.VerdictBenign,
		Confidence: 0.9,
	}}
	pipeline := newTestPipeline(llm, newMemWeights())

	req := defacedRequest()
	req.Vectors = nil
	result, _ := pipeline.Classify(context.Background(), req)

	for _, sub := range result.SubResults {
		if sub.Kind == models.ClassifierSemantic {
			assert.True(t, sub.Abstained)
		}
	}
	// semantic_quality factor drops, capping confidence below the top bucket
	assert.Less(t, result.Confidence, 0.9)
}

func TestPipelineSequentialFallback(t *testing.T) {
	llm := &stubLLM{verdict: interfaces.LLMVerdict{Verdict: models.VerdictBenign, Confidence: 0.8}}
	adapter := NewLLMAdapter(llm, time.Second, arbor.NewLogger())
	pipeline := NewPipeline(adapter, newMemWeights(), 1, arbor.NewLogger())

	// hold the only executor slot so classification runs sequentially
	require.True(t, pipeline.executor.TryAcquire(1))
	defer pipeline.executor.Release(1)

	result, _ := pipeline.Classify(context.Background(), defacedRequest())
	require.Len(t, result.SubResults, 3)
	assert.Equal(t, models.VerdictDefacement, result.Verdict)
}

func TestPipelineAdaptiveWeightsDiscount(t *testing.T) {
	store := newMemWeights()
	store.records["site_1"] = &models.ClassifierWeights{
		SiteID:      "site_1",
		Agreement:   0.2,
		SampleCount: 10,
	}

	llm := &stubLLM{verdict: interfaces.LLMVerdict{Verdict: models.VerdictDefacement, Confidence: 0.9}}
	pipeline := newTestPipeline(llm, store)

	result, record := pipeline.Classify(context.Background(), defacedRequest())

	assert.InDelta(t, 0.4, result.WeightsUsed["llm"], 0.001)
	assert.InDelta(t, 0.16, result.WeightsUsed["rules"], 0.001)
	assert.Equal(t, 11, record.SampleCount)
}

func TestUpdateWeightsRecordTrailingMean(t *testing.T) {
	now := time.Now()
	record := UpdateWeightsRecord(nil, "site_1", 1.0, now)
	assert.InDelta(t, 1.0, record.Agreement, 0.001)

	record = UpdateWeightsRecord(record, "site_1", 0.0, now)
	assert.InDelta(t, 0.5, record.Agreement, 0.001)
	assert.Equal(t, 2, record.SampleCount)
}

func TestRecordFalsePositive(t *testing.T) {
	now := time.Now()
	record := &models.ClassifierWeights{SiteID: "site_1", SampleCount: 4, FalsePosRate: 0.25}

	record = RecordFalsePositive(record, "site_1", true, now)
	assert.InDelta(t, 0.4, record.FalsePosRate, 0.001)

	fresh := RecordFalsePositive(nil, "site_2", false, now)
	assert.Equal(t, 0.0, fresh.FalsePosRate)
}
