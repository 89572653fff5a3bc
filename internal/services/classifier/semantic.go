package classifier

import (
	"fmt"

	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/vectorizer"
)

// VectorPair holds baseline and current vectors of one kind
type VectorPair struct {
	Kind     models.VectorKind
	Baseline []float32
	Current  []float32
}

// SemanticClassifier grades change through embedding similarity. It
// abstains when no comparable vector pair exists.
type SemanticClassifier struct{}

// NewSemanticClassifier creates the semantic analyzer
func NewSemanticClassifier() *SemanticClassifier {
	return &SemanticClassifier{}
}

// Classify compares vector pairs by cosine similarity. The main pair
// drives the risk level; the auxiliary kinds (title, meta, text blocks)
// are checked for topic drift and the largest shift wins.
func (c *SemanticClassifier) Classify(pairs []VectorPair) models.SubResult {
	var (
		worstSim  = 1.0
		worstKind models.VectorKind
		compared  int
		evidence  []string
	)

	for _, pair := range pairs {
		if len(pair.Baseline) == 0 || len(pair.Current) == 0 {
			continue
		}
		sim := vectorizer.CosineSimilarity(pair.Baseline, pair.Current)
		compared++
		evidence = append(evidence, fmt.Sprintf("%s similarity %.3f", pair.Kind, sim))
		if sim < worstSim {
			worstSim = sim
			worstKind = pair.Kind
		}
	}

	if compared == 0 {
		return models.SubResult{
			Kind:      models.ClassifierSemantic,
			Verdict:   models.VerdictUnclear,
			Abstained: true,
			Reasoning: "no comparable vectors",
		}
	}

	risk := models.RiskLevelFor(worstSim)

	// Confidence tracks how decisively the similarity falls on one side:
	// near-identical or near-disjoint vectors are a clearer signal than
	// the middle band.
	var confidence float64
	switch risk {
	case models.RiskLow:
		confidence = worstSim
	case models.RiskMedium:
		confidence = 0.5
	default:
		confidence = 1 - worstSim
	}
	if confidence < 0.3 {
		confidence = 0.3
	}
	if confidence > 1 {
		confidence = 1
	}

	return models.SubResult{
		Kind:       models.ClassifierSemantic,
		Verdict:    models.VerdictUnclear,
		Confidence: confidence,
		RiskLevel:  risk,
		Evidence:   evidence,
		Reasoning:  fmt.Sprintf("max drift on %s (similarity %.3f, risk %s)", worstKind, worstSim, risk),
	}
}
