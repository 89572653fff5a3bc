package models

import (
	"time"
)

// Verdict is the adjudicated classification of a snapshot
type Verdict string

const (
	VerdictInitial    Verdict = "initial" // First snapshot of a site; becomes the baseline
	VerdictBenign     Verdict = "benign"
	VerdictSuspicious Verdict = "suspicious"
	VerdictDefacement Verdict = "defacement"
	VerdictUnclear    Verdict = "unclear"
)

// IsBaseline reports whether a snapshot with this verdict can serve as the
// reference for change detection.
func (v Verdict) IsBaseline() bool {
	return v == VerdictBenign || v == VerdictInitial
}

// Snapshot is an immutable capture of a site's rendered state.
// Verdict and Confidence may be back-filled by the classifier.
type Snapshot struct {
	ID           string        `json:"id" badgerhold:"key"`
	SiteID       string        `json:"site_id" badgerhold:"index"`
	CapturedAt   time.Time     `json:"captured_at"`
	HTTPStatus   int           `json:"http_status"`
	ResponseTime time.Duration `json:"response_time"`

	RawHTML       string `json:"raw_html,omitempty"`
	ExtractedText string `json:"extracted_text"`
	Title         string `json:"title"`
	Truncated     bool   `json:"truncated,omitempty"` // Content exceeded the size cap before hashing

	ContentHash   string `json:"content_hash"`
	StructureHash string `json:"structure_hash"`
	TextBlockHash string `json:"text_block_hash"`
	SemanticHash  string `json:"semantic_hash"`

	VectorRef         string  `json:"vector_ref,omitempty"`
	PrevSimilarity    float64 `json:"prev_similarity_score,omitempty"`
	Verdict           Verdict `json:"verdict,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
	ClassifierSummary string  `json:"classifier_summary,omitempty"`
}

// Fingerprints returns the four content hashes as a comparable unit
func (s *Snapshot) Fingerprints() Fingerprints {
	return Fingerprints{
		Content:   s.ContentHash,
		Structure: s.StructureHash,
		TextBlock: s.TextBlockHash,
		Semantic:  s.SemanticHash,
	}
}

// Fingerprints is the family of four hashes computed over distinct
// projections of page content.
type Fingerprints struct {
	Content   string `json:"content"`
	Structure string `json:"structure"`
	TextBlock string `json:"text_block"`
	Semantic  string `json:"semantic"`
}

// Equal reports whether all four fingerprints match
func (f Fingerprints) Equal(other Fingerprints) bool {
	return f.Content == other.Content &&
		f.Structure == other.Structure &&
		f.TextBlock == other.TextBlock &&
		f.Semantic == other.Semantic
}
