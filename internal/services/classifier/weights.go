package classifier

import (
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// lowAgreementThreshold triggers the reliability discount
const lowAgreementThreshold = 0.3

// lowAgreementDiscount scales base weights when recent checks disagree
const lowAgreementDiscount = 0.8

// DefaultBaseWeights are the ensemble priors before site adaptation
func DefaultBaseWeights() map[models.ClassifierKind]float64 {
	return map[models.ClassifierKind]float64{
		models.ClassifierLLM:      0.5,
		models.ClassifierSemantic: 0.3,
		models.ClassifierRules:    0.2,
	}
}

// EffectiveWeights resolves the base weights for a site, applying the
// low-agreement discount from the persisted record when warranted.
func EffectiveWeights(base map[models.ClassifierKind]float64, record *models.ClassifierWeights) map[models.ClassifierKind]float64 {
	weights := make(map[models.ClassifierKind]float64, len(base))
	for k, v := range base {
		weights[k] = v
	}

	if record != nil {
		for name, v := range record.Weights {
			weights[models.ClassifierKind(name)] = v
		}
		if record.SampleCount > 0 && record.Agreement < lowAgreementThreshold {
			for k := range weights {
				weights[k] *= lowAgreementDiscount
			}
		}
	}

	return weights
}

// UpdateWeightsRecord folds one check's agreement into the per-site record
// as a trailing mean. The caller persists the result.
func UpdateWeightsRecord(record *models.ClassifierWeights, siteID string, agreement float64, now time.Time) *models.ClassifierWeights {
	if record == nil {
		record = &models.ClassifierWeights{SiteID: siteID}
	}

	n := float64(record.SampleCount)
	record.Agreement = (record.Agreement*n + agreement) / (n + 1)
	record.SampleCount++
	record.UpdatedAt = now
	return record
}

// RecordFalsePositive folds operator feedback into the trailing
// false-positive rate used by confidence scoring.
func RecordFalsePositive(record *models.ClassifierWeights, siteID string, falsePositive bool, now time.Time) *models.ClassifierWeights {
	if record == nil {
		record = &models.ClassifierWeights{SiteID: siteID}
	}

	n := float64(record.SampleCount)
	hit := 0.0
	if falsePositive {
		hit = 1.0
	}
	if n > 0 {
		record.FalsePosRate = (record.FalsePosRate*n + hit) / (n + 1)
	} else {
		record.FalsePosRate = hit
	}
	record.UpdatedAt = now
	return record
}
