package types

import "time"

// Outcome of a wake cycle.
type Outcome string

const (
	// Reconciled cycles fetched the document and ran the engine.
	Reconciled Outcome = "reconciled"
	// Aborted cycles stopped before reconciling (transport or time failure).
	Aborted Outcome = "aborted"
)

// CycleEntry summarizes one wake cycle for the journal.
type CycleEntry struct {
	ID        string
	Thing     string
	StartedAt time.Time
	Elapsed   time.Duration
	Outcome   Outcome
	// Status is the reported status of the cycle, if any.
	Status   string
	Reported map[string]any
	Cause    string
}
