package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/vigil/internal/models"
)

func TestSemanticClassify(t *testing.T) {
	c := NewSemanticClassifier()

	tests := []struct {
		name string
		a    []float32
		b    []float32
		risk models.RiskLevel
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, models.RiskLow},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, models.RiskCritical},
		{"moderate drift", []float32{1, 0.45, 0}, []float32{1, 0, 0}, models.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify([]VectorPair{
				{Kind: models.VectorMain, Baseline: tt.a, Current: tt.b},
			})
			assert.False(t, result.Abstained)
			assert.Equal(t, tt.risk, result.RiskLevel)
			assert.NotEmpty(t, result.Evidence)
		})
	}
}

func TestSemanticAbstainsWithoutVectors(t *testing.T) {
	c := NewSemanticClassifier()

	result := c.Classify(nil)
	assert.True(t, result.Abstained)

	result = c.Classify([]VectorPair{{Kind: models.VectorMain, Baseline: []float32{1}}})
	assert.True(t, result.Abstained, "missing current vector must abstain")
}

func TestSemanticTopicDriftMaxShiftWins(t *testing.T) {
	c := NewSemanticClassifier()

	// main pair identical, title pair orthogonal: the title drift drives risk
	result := c.Classify([]VectorPair{
		{Kind: models.VectorMain, Baseline: []float32{1, 0}, Current: []float32{1, 0}},
		{Kind: models.VectorTitle, Baseline: []float32{1, 0}, Current: []float32{0, 1}},
	})

	assert.Equal(t, models.RiskCritical, result.RiskLevel)
	assert.Contains(t, result.Reasoning, "title")
}
