package model

import "time"

// SyncStatus represents the lifecycle state of a reconciliation run.
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// MaxRunErrors bounds how many per-record errors are persisted on a
// run. Excess errors are dropped, not reported.
const MaxRunErrors = 100

// SyncRun is one ledger entry for a reconciliation run. A row is
// created with status running and mutated exactly once more, to a
// terminal completed or failed state.
type SyncRun struct {
	ID             string     `json:"id"`
	SyncType       string     `json:"sync_type"`
	Status         SyncStatus `json:"status"`
	ContactsSynced int        `json:"contacts_synced"`
	Errors         []string   `json:"errors,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
