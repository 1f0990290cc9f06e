package models

import (
	"time"

	"github.com/google/uuid"
)

// Load steps, recorded with skip/error reasons so a failed record names
// where in the per-event state machine it stopped.
const (
	StepIdentity   = "identity"
	StepDimensions = "resolve-dimensions"
	StepFact       = "insert-fact"
	StepBridges    = "insert-bridges"
)

// RecordOutcome explains why a single staged event was skipped or errored.
type RecordOutcome struct {
	ReportID string `json:"report_id"`
	Step     string `json:"step"`
	Reason   string `json:"reason"`
}

// LoadSummary reports the result of one warehouse load run. Duplicates are
// events whose report id was already present as a fact row; they are no-op
// successes, not errors.
type LoadSummary struct {
	RunID      uuid.UUID       `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Inserted   int             `json:"inserted"`
	Skipped    int             `json:"skipped"`
	Duplicates int             `json:"duplicates"`
	Errors     int             `json:"errors"`
	Reasons    []RecordOutcome `json:"reasons,omitempty"`
}
