package models

import (
	"time"
)

// VectorKind identifies which projection of the content was embedded
type VectorKind string

const (
	VectorMain       VectorKind = "main"
	VectorTitle      VectorKind = "title"
	VectorTextBlocks VectorKind = "text_blocks"
	VectorMeta       VectorKind = "meta"
	VectorCombined   VectorKind = "combined"
)

// Vector is a persisted semantic embedding. Its lifetime never exceeds the
// lifetime of the snapshot it belongs to; pruning a snapshot removes its
// vectors.
type Vector struct {
	ID         string     `json:"id" badgerhold:"key"`
	SiteID     string     `json:"site_id" badgerhold:"index"`
	SnapshotID string     `json:"snapshot_id" badgerhold:"index"`
	Kind       VectorKind `json:"kind"`
	Dimension  int        `json:"dimension"`
	Payload    []float32  `json:"payload"`
	CreatedAt  time.Time  `json:"created_at"`
}
