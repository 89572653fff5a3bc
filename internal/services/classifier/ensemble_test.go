package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/vigil/internal/models"
)

func TestVoteUnanimous(t *testing.T) {
	results := []models.SubResult{
		{Kind: models.ClassifierRules, Verdict: models.VerdictDefacement, Confidence: 0.9},
		{Kind: models.ClassifierSemantic, RiskLevel: models.RiskCritical, Confidence: 0.8},
		{Kind: models.ClassifierLLM, Verdict: models.VerdictDefacement, Confidence: 0.95},
	}

	outcome := Vote(results, DefaultBaseWeights())
	assert.Equal(t, models.VerdictDefacement, outcome.Verdict)
	assert.InDelta(t, 1.0, outcome.Agreement, 0.001)
}

func TestVoteLLMOutweighsRules(t *testing.T) {
	results := []models.SubResult{
		{Kind: models.ClassifierRules, Verdict: models.VerdictDefacement, Confidence: 0.9},
		{Kind: models.ClassifierLLM, Verdict: models.VerdictBenign, Confidence: 0.9},
	}

	// llm: 0.5*0.9=0.45 benign; rules: 0.2*0.9=0.18 defacement
	outcome := Vote(results, DefaultBaseWeights())
	assert.Equal(t, models.VerdictBenign, outcome.Verdict)
	assert.Less(t, outcome.Agreement, 1.0)
}

func TestVoteAbstentionExcluded(t *testing.T) {
	results := []models.SubResult{
		{Kind: models.ClassifierRules, Verdict: models.VerdictSuspicious, Confidence: 0.7},
		{Kind: models.ClassifierLLM, Verdict: models.VerdictBenign, Confidence: 0.9, Abstained: true},
		{Kind: models.ClassifierSemantic, Abstained: true},
	}

	outcome := Vote(results, DefaultBaseWeights())
	assert.Equal(t, models.VerdictSuspicious, outcome.Verdict)
	assert.InDelta(t, 1.0, outcome.Agreement, 0.001)
}

func TestVoteAllAbstained(t *testing.T) {
	results := []models.SubResult{
		{Kind: models.ClassifierLLM, Abstained: true},
		{Kind: models.ClassifierSemantic, Abstained: true},
	}

	outcome := Vote(results, DefaultBaseWeights())
	assert.Equal(t, models.VerdictUnclear, outcome.Verdict)
	assert.Equal(t, 0.0, outcome.Agreement)
}

func TestVoteSemanticProjection(t *testing.T) {
	tests := []struct {
		name    string
		risk    models.RiskLevel
		verdict models.Verdict
	}{
		{"critical projects to defacement", models.RiskCritical, models.VerdictDefacement},
		{"high projects to defacement", models.RiskHigh, models.VerdictDefacement},
		{"low projects to benign", models.RiskLow, models.VerdictBenign},
		{"medium projects to unclear", models.RiskMedium, models.VerdictUnclear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := []models.SubResult{
				{Kind: models.ClassifierSemantic, RiskLevel: tt.risk, Confidence: 0.9},
			}
			outcome := Vote(results, DefaultBaseWeights())
			assert.Equal(t, tt.verdict, outcome.Verdict)
		})
	}
}

func TestVoteTieBreaksTowardAlarmingVerdict(t *testing.T) {
	// equal weights and confidence on defacement and benign
	results := []models.SubResult{
		{Kind: models.ClassifierRules, Verdict: models.VerdictDefacement, Confidence: 0.5},
		{Kind: models.ClassifierLLM, Verdict: models.VerdictBenign, Confidence: 0.2},
	}
	weights := map[models.ClassifierKind]float64{
		models.ClassifierRules: 0.2,
		models.ClassifierLLM:   0.5,
	}

	// rules 0.2*0.5 = 0.1, llm 0.5*0.2 = 0.1
	outcome := Vote(results, weights)
	assert.Equal(t, models.VerdictDefacement, outcome.Verdict)
}

func TestConfidenceFactors(t *testing.T) {
	all := ConfidenceFactors{Agreement: 1, Clarity: 1, Context: 1, Historical: 1, SemanticQuality: 1}
	assert.InDelta(t, 1.0, all.Confidence(), 0.001)

	none := ConfidenceFactors{}
	assert.Equal(t, 0.0, none.Confidence())

	partial := ConfidenceFactors{Agreement: 1, Clarity: 0.5, Context: 1, Historical: 1, SemanticQuality: 0}
	// 0.30 + 0.10 + 0.20 + 0.15 + 0 = 0.75
	assert.InDelta(t, 0.75, partial.Confidence(), 0.001)
}

func TestConfidenceLevelBuckets(t *testing.T) {
	assert.Equal(t, models.ConfidenceVeryHigh, models.ConfidenceLevelFor(0.85))
	assert.Equal(t, models.ConfidenceHigh, models.ConfidenceLevelFor(0.65))
	assert.Equal(t, models.ConfidenceMedium, models.ConfidenceLevelFor(0.45))
	assert.Equal(t, models.ConfidenceLow, models.ConfidenceLevelFor(0.25))
	assert.Equal(t, models.ConfidenceVeryLow, models.ConfidenceLevelFor(0.1))
}
