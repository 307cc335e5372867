package metrics

import (
	"time"

	"github.com/kmetro/induction/core/model"
)

// ScheduleRecord represents a per-train scheduling outcome to be recorded.
type ScheduleRecord struct {
	TrainID        string
	Status         model.TrainStatus
	Score          float64
	BackupPriority float64
	Solver         string
	Depot          string
	GeneratedAt    time.Time
}

// MetricsSink records scheduling outcomes for observability purposes.
type MetricsSink interface {
	RecordSchedule(records []ScheduleRecord) error
}

// CycleEvent captures aggregate data about an induction cycle.
type CycleEvent struct {
	Summary     model.FleetSummary
	Solver      string
	Status      model.SolverStatus
	BelowQuota  bool
	Duration    time.Duration
	GeneratedAt time.Time
}

// CycleRecorder records induction cycle summaries.
type CycleRecorder interface {
	RecordCycle(ev CycleEvent) error
}

// DeploymentEvent represents an emergency backup deployment.
type DeploymentEvent struct {
	EmergencyID   string
	Kind          model.DisruptionKind
	Severity      model.Severity
	AffectedTrain string
	DeployedTrain string
	ResponseTime  time.Duration
	Time          time.Time
}

// DeploymentRecorder records emergency deployments.
type DeploymentRecorder interface {
	RecordDeployment(ev DeploymentEvent) error
}

// SolverEvent captures a single solver attempt inside a cycle.
type SolverEvent struct {
	Solver   string
	Outcome  string
	Duration time.Duration
	Time     time.Time
}

// SolverRecorder records solver attempts and fallbacks.
type SolverRecorder interface {
	RecordSolver(ev SolverEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSchedule([]ScheduleRecord) error  { return nil }
func (NopSink) RecordCycle(CycleEvent) error           { return nil }
func (NopSink) RecordDeployment(DeploymentEvent) error { return nil }
func (NopSink) RecordSolver(SolverEvent) error         { return nil }
