package classifier

import (
	"fmt"
	"strings"

	"github.com/ternarybob/vigil/internal/models"
)

// verdictPreference breaks vote ties, erring toward the alarming verdict
var verdictPreference = []models.Verdict{
	models.VerdictDefacement,
	models.VerdictSuspicious,
	models.VerdictUnclear,
	models.VerdictBenign,
}

// VoteOutcome is the merged ensemble decision before confidence scoring
type VoteOutcome struct {
	Verdict   models.Verdict
	Votes     map[models.Verdict]float64
	Agreement float64
	Clarity   float64
	Reasoning string
}

// Vote merges sub-classifier results under the given base weights. Each
// classifier's effective weight is base weight times its own confidence;
// abstentions carry zero. Semantic results vote through their risk level
// rather than their verdict.
func Vote(results []models.SubResult, baseWeights map[models.ClassifierKind]float64) VoteOutcome {
	votes := make(map[models.Verdict]float64)
	type cast struct {
		verdict    models.Verdict
		weight     float64
		confidence float64
	}
	var casts []cast

	for _, r := range results {
		if r.Abstained {
			continue
		}
		base := baseWeights[r.Kind]
		effective := base * r.Confidence
		verdict := r.Verdict

		if r.Kind == models.ClassifierSemantic {
			verdict, effective = projectSemantic(r.RiskLevel, effective)
		}
		if effective <= 0 {
			continue
		}

		votes[verdict] += effective
		casts = append(casts, cast{verdict: verdict, weight: effective, confidence: r.Confidence})
	}

	if len(casts) == 0 {
		return VoteOutcome{
			Verdict:   models.VerdictUnclear,
			Votes:     votes,
			Reasoning: "all classifiers abstained",
		}
	}

	final := argmaxVerdict(votes)

	var totalWeight, concurringWeight, concurringConfidence float64
	concurring := 0
	for _, c := range casts {
		totalWeight += c.weight
		if c.verdict == final {
			concurringWeight += c.weight
			concurringConfidence += c.confidence
			concurring++
		}
	}

	agreement := 0.0
	if totalWeight > 0 {
		agreement = concurringWeight / totalWeight
	}
	clarity := 0.0
	if concurring > 0 {
		clarity = concurringConfidence / float64(concurring)
	}

	var parts []string
	for verdict, weight := range votes {
		parts = append(parts, fmt.Sprintf("%s=%.3f", verdict, weight))
	}

	return VoteOutcome{
		Verdict:   final,
		Votes:     votes,
		Agreement: agreement,
		Clarity:   clarity,
		Reasoning: "votes: " + strings.Join(parts, " "),
	}
}

// projectSemantic maps a risk level onto a verdict vote with a discount
func projectSemantic(risk models.RiskLevel, effective float64) (models.Verdict, float64) {
	switch risk {
	case models.RiskCritical, models.RiskHigh:
		return models.VerdictDefacement, effective * 0.8
	case models.RiskLow:
		return models.VerdictBenign, effective * 0.8
	default:
		return models.VerdictUnclear, effective * 0.6
	}
}

func argmaxVerdict(votes map[models.Verdict]float64) models.Verdict {
	best := models.VerdictUnclear
	bestScore := -1.0
	// iterate in preference order so equal scores resolve cautiously
	for _, verdict := range verdictPreference {
		if score, ok := votes[verdict]; ok && score > bestScore {
			best = verdict
			bestScore = score
		}
	}
	return best
}

// ConfidenceFactors are the five normalized inputs to the final score
type ConfidenceFactors struct {
	Agreement       float64
	Clarity         float64
	Context         float64
	Historical      float64
	SemanticQuality float64
}

// Confidence combines the factors under fixed weights
func (f ConfidenceFactors) Confidence() float64 {
	score := 0.30*f.Agreement +
		0.20*f.Clarity +
		0.20*f.Context +
		0.15*f.Historical +
		0.15*f.SemanticQuality
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
