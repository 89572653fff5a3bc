package models

import (
	"time"
)

// Site represents a monitored website
type Site struct {
	ID       string `json:"id" badgerhold:"key"`
	URL      string `json:"url" badgerhold:"unique" validate:"required,url"`
	Name     string `json:"name" validate:"required"`
	Schedule string `json:"schedule" validate:"required"` // Interval ("5m") or five-field cron
	Active   bool   `json:"active"`
	MaxDepth int    `json:"max_depth"` // Crawl fanout, typically 1-2
	Priority int    `json:"priority"`  // Higher runs first when jobs contend

	// Per-site detector overrides; nil uses the global defaults
	SimilarityThreshold     *float64 `json:"similarity_threshold,omitempty"`
	StructuralThreshold     *float64 `json:"structural_threshold,omitempty"`
	CriticalChangeThreshold *float64 `json:"critical_change_threshold,omitempty"`

	// KeepScans overrides the global snapshot retention when > 0
	KeepScans int `json:"keep_scans,omitempty"`

	// Context lines passed verbatim to the LLM classifier prompt,
	// e.g. "corporate product site, English only"
	Context []string `json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SiteStatus summarizes monitoring state for a site
type SiteStatus struct {
	Site         *Site      `json:"site"`
	JobStatus    JobStatus  `json:"job_status"`
	LastCheck    *time.Time `json:"last_check,omitempty"`
	LastVerdict  Verdict    `json:"last_verdict,omitempty"`
	OpenAlerts   int        `json:"open_alerts"`
	SnapshotRows int        `json:"snapshot_count"`
}
