package detector

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/models"
)

// Thresholds control when a change escalates to classification
type Thresholds struct {
	Similarity     float64
	Structural     float64
	CriticalChange float64
}

// Service compares a new capture against the site's baseline and grades
// the magnitude of change.
type Service struct {
	defaults Thresholds
	logger   arbor.ILogger
}

// NewService creates a change detector with default thresholds
func NewService(defaults Thresholds, logger arbor.ILogger) *Service {
	return &Service{
		defaults: defaults,
		logger:   logger,
	}
}

// thresholdsFor applies per-site overrides over the defaults
func (s *Service) thresholdsFor(site *models.Site) Thresholds {
	t := s.defaults
	if site == nil {
		return t
	}
	if site.SimilarityThreshold != nil {
		t.Similarity = *site.SimilarityThreshold
	}
	if site.StructuralThreshold != nil {
		t.Structural = *site.StructuralThreshold
	}
	if site.CriticalChangeThreshold != nil {
		t.CriticalChange = *site.CriticalChangeThreshold
	}
	return t
}

// Compare grades the change between the baseline and the new capture.
// Identical fingerprints short-circuit without any similarity work.
func (s *Service) Compare(site *models.Site, baseline, current *models.ExtractedContent, baselinePrints, currentPrints models.Fingerprints) *models.ChangeClassification {
	if baselinePrints.Equal(currentPrints) {
		return &models.ChangeClassification{
			Kind:                 models.ChangeUnchanged,
			KeywordSimilarity:    1.0,
			StructuralSimilarity: 1.0,
			Summary:              []string{"fingerprints identical"},
		}
	}

	keywordSim := KeywordSimilarity(baseline.KeywordSet(), current.KeywordSet())
	structuralSim := StructuralSimilarity(baseline.Outline, current.Outline)
	titleChanged := baseline.Title != current.Title

	t := s.thresholdsFor(site)

	var kind models.ChangeKind
	switch {
	case keywordSim >= t.Similarity && structuralSim >= t.Structural:
		kind = models.ChangeMinor
	case keywordSim < t.CriticalChange || structuralSim < t.CriticalChange:
		kind = models.ChangeSignificant
	default:
		kind = models.ChangeAmbiguous
	}

	result := &models.ChangeClassification{
		Kind:                 kind,
		KeywordSimilarity:    keywordSim,
		StructuralSimilarity: structuralSim,
		TitleChanged:         titleChanged,
		Summary: []string{
			fmt.Sprintf("keyword similarity %.3f", keywordSim),
			fmt.Sprintf("structural similarity %.3f", structuralSim),
			fmt.Sprintf("title changed: %t", titleChanged),
		},
	}

	s.logger.Debug().
		Str("kind", string(kind)).
		Float64("keyword_similarity", keywordSim).
		Float64("structural_similarity", structuralSim).
		Bool("title_changed", titleChanged).
		Msg("Change graded")

	return result
}
