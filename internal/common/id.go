package common

import (
	"github.com/google/uuid"
)

// NewSiteID generates a unique site ID with the "site_" prefix
func NewSiteID() string {
	return "site_" + uuid.New().String()
}

// NewSnapshotID generates a unique snapshot ID with the "snap_" prefix
func NewSnapshotID() string {
	return "snap_" + uuid.New().String()
}

// NewAlertID generates a unique alert ID with the "alert_" prefix
func NewAlertID() string {
	return "alert_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewVectorID generates a unique vector ID with the "vec_" prefix
func NewVectorID() string {
	return "vec_" + uuid.New().String()
}

// NewExecutionID generates a unique workflow execution ID with the "exec_" prefix
func NewExecutionID() string {
	return "exec_" + uuid.New().String()
}
