package models

import (
	"time"
)

// ChangeKind is the detector's classification of change magnitude
type ChangeKind string

const (
	ChangeUnchanged   ChangeKind = "unchanged"   // All four fingerprints equal
	ChangeMinor       ChangeKind = "minor"       // Above both similarity thresholds
	ChangeSignificant ChangeKind = "significant" // Requires classifier invocation
	ChangeAmbiguous   ChangeKind = "ambiguous"   // Classifier invoked at reduced priority
)

// RequiresClassification reports whether the classifier must adjudicate
func (k ChangeKind) RequiresClassification() bool {
	return k == ChangeSignificant || k == ChangeAmbiguous
}

// ChangeClassification is the detector's verdict on a snapshot pair
type ChangeClassification struct {
	Kind                 ChangeKind `json:"kind"`
	KeywordSimilarity    float64    `json:"keyword_similarity"`
	StructuralSimilarity float64    `json:"structural_similarity"`
	TitleChanged         bool       `json:"title_changed"`
	Summary              []string   `json:"summary,omitempty"`
}

// ConfidenceLevel buckets a confidence score for reporting
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high" // >= 0.8
	ConfidenceHigh     ConfidenceLevel = "high"      // >= 0.6
	ConfidenceMedium   ConfidenceLevel = "medium"    // >= 0.4
	ConfidenceLow      ConfidenceLevel = "low"       // >= 0.2
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
)

// ConfidenceLevelFor maps a score to its reporting bucket
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceVeryHigh
	case score >= 0.6:
		return ConfidenceHigh
	case score >= 0.4:
		return ConfidenceMedium
	case score >= 0.2:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// ClassifierKind tags a sub-classifier's result
type ClassifierKind string

const (
	ClassifierRules    ClassifierKind = "rules"
	ClassifierSemantic ClassifierKind = "semantic"
	ClassifierLLM      ClassifierKind = "llm"
)

// RiskLevel is the semantic analyzer's assessment of change severity
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"      // similarity >= 0.95
	RiskMedium   RiskLevel = "medium"   // [0.80, 0.95)
	RiskHigh     RiskLevel = "high"     // [0.50, 0.80)
	RiskCritical RiskLevel = "critical" // < 0.50
)

// RiskLevelFor maps cosine similarity to a risk level
func RiskLevelFor(similarity float64) RiskLevel {
	switch {
	case similarity >= 0.95:
		return RiskLow
	case similarity >= 0.80:
		return RiskMedium
	case similarity >= 0.50:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// SubResult is one classifier's contribution to the ensemble. A nil verdict
// with Abstained set removes the classifier's weight from voting.
type SubResult struct {
	Kind       ClassifierKind `json:"kind"`
	Verdict    Verdict        `json:"verdict,omitempty"`
	Confidence float64        `json:"confidence"`
	Abstained  bool           `json:"abstained"`
	RiskLevel  RiskLevel      `json:"risk_level,omitempty"` // Semantic analyzer only
	Evidence   []string       `json:"evidence,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// ClassificationResult is the ensemble's final adjudication, persisted onto
// the snapshot after voting.
type ClassificationResult struct {
	Verdict         Verdict            `json:"verdict"`
	Confidence      float64            `json:"confidence"`
	ConfidenceLevel ConfidenceLevel    `json:"confidence_level"`
	Reasoning       string             `json:"reasoning"`
	SubResults      []SubResult        `json:"sub_results"`
	WeightsUsed     map[string]float64 `json:"weights_used"`
	ProcessingTime  time.Duration      `json:"processing_time"`
}

// ClassifierWeights is the persisted per-site adaptive weight record.
// Updated only in the persist step to avoid read-modify-write races.
type ClassifierWeights struct {
	SiteID       string             `json:"site_id" badgerhold:"key"`
	Weights      map[string]float64 `json:"weights"`
	Agreement    float64            `json:"agreement"` // Trailing mean agreement across checks
	SampleCount  int                `json:"sample_count"`
	FalsePosRate float64            `json:"false_positive_rate"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
