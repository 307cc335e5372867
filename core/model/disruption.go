package model

import (
	"fmt"
	"time"
)

// DisruptionKind classifies an emergency event.
type DisruptionKind int

const (
	DisruptionBreakdown DisruptionKind = iota
	DisruptionDelay
	DisruptionWeather
	DisruptionPower
)

func (k DisruptionKind) String() string {
	switch k {
	case DisruptionBreakdown:
		return "breakdown"
	case DisruptionDelay:
		return "delay"
	case DisruptionWeather:
		return "weather"
	case DisruptionPower:
		return "power"
	default:
		return "unknown"
	}
}

// ParseDisruptionKind converts a wire string to a DisruptionKind.
func ParseDisruptionKind(s string) (DisruptionKind, error) {
	switch s {
	case "breakdown":
		return DisruptionBreakdown, nil
	case "delay":
		return DisruptionDelay, nil
	case "weather":
		return DisruptionWeather, nil
	case "power":
		return DisruptionPower, nil
	}
	return DisruptionBreakdown, fmt.Errorf("unknown disruption kind %q", s)
}

// Severity grades a disruption.
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityModerate
	SeverityMajor
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a wire string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "minor":
		return SeverityMinor, nil
	case "moderate":
		return SeverityModerate, nil
	case "major":
		return SeverityMajor, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityMinor, fmt.Errorf("unknown severity %q", s)
}

// DisruptionEvent triggers the emergency dispatcher.
type DisruptionEvent struct {
	Kind               DisruptionKind `json:"kind"`
	Severity           Severity       `json:"severity"`
	AffectedTrainID    string         `json:"affected_train_id"`
	AffectedPercentage float64        `json:"affected_percentage,omitempty"`
	OccurredAt         time.Time      `json:"occurred_at"`
}

// ImpactEstimate is the derived operational impact of a disruption or
// simulated scenario.
type ImpactEstimate struct {
	AffectedPassengers  int     `json:"affected_passengers"`
	RevenueDelta        float64 `json:"revenue_delta"`
	RecoveryTimeMinutes float64 `json:"recovery_time_minutes"`
}

// DeploymentRecord is the emergency dispatcher's output for one deployment.
type DeploymentRecord struct {
	EmergencyID    string         `json:"emergency_id"`
	AffectedTrain  string         `json:"affected_train"`
	SelectedBackup string         `json:"selected_backup"`
	Reason         string         `json:"deployment_reason"`
	Impact         ImpactEstimate `json:"estimated_impact"`
	DeployedAt     time.Time      `json:"deployed_at"`
}

// PerturbationKind selects a what-if scenario.
type PerturbationKind string

const (
	PerturbTrainFailure      PerturbationKind = "train_failure"
	PerturbWeatherDelay      PerturbationKind = "weather_delay"
	PerturbPeakDemand        PerturbationKind = "peak_demand"
	PerturbMaintenanceWindow PerturbationKind = "maintenance_window"
	PerturbEmergency         PerturbationKind = "emergency"
)

// Perturbation describes a what-if scenario applied to a snapshot copy.
type Perturbation struct {
	Kind           PerturbationKind `json:"kind"`
	AffectedTrains []string         `json:"affected_trains,omitempty"`
	// Magnitude scales the perturbation: weather delay multiplier, demand
	// multiplier, or fraction of the fleet failed for emergency scenarios.
	Magnitude float64       `json:"magnitude,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}
