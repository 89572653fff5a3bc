package models

import (
	"time"
)

// AlertKind categorizes why an alert was raised
type AlertKind string

const (
	AlertDefacement AlertKind = "defacement"
	AlertSuspicious AlertKind = "suspicious"
	AlertSiteDown   AlertKind = "site_down"
)

// AlertSeverity grades operator urgency
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus tracks the operator workflow on an alert
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is raised by the core on adverse classifications or sustained fetch
// failures. The core only creates alerts; status transitions are operator
// actions.
type Alert struct {
	ID           string        `json:"id" badgerhold:"key"`
	SiteID       string        `json:"site_id" badgerhold:"index"`
	SnapshotID   string        `json:"snapshot_id,omitempty"`
	Kind         AlertKind     `json:"kind"`
	Severity     AlertSeverity `json:"severity"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	VerdictLabel Verdict       `json:"verdict_label,omitempty"`
	Confidence   float64       `json:"confidence,omitempty"`
	Similarity   float64       `json:"similarity,omitempty"`
	Status       AlertStatus   `json:"status" badgerhold:"index"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SeverityForVerdict maps a classification to alert severity, scaled by
// confidence: confident defacements are critical, tentative ones high.
func SeverityForVerdict(verdict Verdict, confidence float64) AlertSeverity {
	switch verdict {
	case VerdictDefacement:
		if confidence >= 0.9 {
			return SeverityCritical
		}
		return SeverityHigh
	case VerdictSuspicious:
		if confidence >= 0.6 {
			return SeverityMedium
		}
		return SeverityLow
	case VerdictUnclear:
		return SeverityLow
	default:
		return SeverityLow
	}
}
