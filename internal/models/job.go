package models

import (
	"time"
)

// JobStatus is the scheduler's state machine for a monitoring job
type JobStatus string

const (
	JobScheduled   JobStatus = "scheduled"
	JobRunning     JobStatus = "running"
	JobPaused      JobStatus = "paused"
	JobFailed      JobStatus = "failed"
	JobCircuitOpen JobStatus = "circuit_open"
	JobRemoved     JobStatus = "removed"
)

// Job is the scheduler's per-site record. Mutated by the scheduler only;
// operator surfaces submit commands onto the scheduler's control channel.
type Job struct {
	ID       string `json:"id" badgerhold:"key"`
	SiteID   string `json:"site_id" badgerhold:"unique"`
	Schedule string `json:"schedule"`
	Priority int    `json:"priority"`

	Status        JobStatus  `json:"status" badgerhold:"index"`
	NextRunAt     time.Time  `json:"next_run_at"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`

	RetryCount          int    `json:"retry_count"`
	MaxRetries          int    `json:"max_retries"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`

	// BreakerOpenedAt is set while the circuit is open; cleared on close
	BreakerOpenedAt *time.Time `json:"breaker_opened_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
