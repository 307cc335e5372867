// Package events defines the induction related events emitted on the event bus.
//
// Available event types:
//   - CycleEvent: a nightly (or on-demand) induction cycle completed
//   - SolverEvent: solver selection and fallback information
//   - DeploymentEvent: emergency backup deployment result
package events

import (
	"time"

	"github.com/kmetro/induction/core/model"
)

// CycleEvent is published when an induction cycle produces a decision.
type CycleEvent struct {
	Summary     model.FleetSummary
	SolverUsed  string
	Status      model.SolverStatus
	BelowQuota  bool
	GeneratedAt time.Time
}

// SolverEvent is emitted when the engine chooses a solver. Action can be
// "exact_attempt", "exact_timeout", "exact_failure", "evolutionary_fallback"
// or "rank_fallback".
type SolverEvent struct {
	Action string
	Err    error
}

// DeploymentEvent is published for each emergency deployment attempt.
type DeploymentEvent struct {
	EmergencyID    string
	Kind           model.DisruptionKind
	AffectedTrain  string
	SelectedBackup string
	Deployed       bool
	Err            error
}
