package types

import "time"

// JobState is the lifecycle state of a document's vectorization run
type JobState string

const (
	StateIdle      JobState = "idle"
	StateChunking  JobState = "chunking"
	StateEmbedding JobState = "embedding"
	StateComplete  JobState = "complete"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions happen without a new run
func (s JobState) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Active reports whether a run is in progress
func (s JobState) Active() bool {
	return s == StateChunking || s == StateEmbedding
}

// VectorizationStatus is a snapshot of a document's vectorization progress.
// It is not persisted; after a restart it is rebuilt from stored counts.
type VectorizationStatus struct {
	DocumentID      string
	State           JobState
	TotalChunks     int
	ProcessedChunks int
	Error           string // Set only in StateFailed
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Progress returns processed/total in [0, 1], or 0 when the total is unknown
func (s VectorizationStatus) Progress() float64 {
	if s.TotalChunks <= 0 {
		return 0
	}
	return float64(s.ProcessedChunks) / float64(s.TotalChunks)
}
