package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TrainStatus is the operational status assigned to a train for a cycle.
type TrainStatus int

const (
	StatusStandby TrainStatus = iota
	StatusService
	StatusMaintenance
	// StatusCleaning is a deployable maintenance sub-state: the train only
	// awaits cleaning and can still be pulled as an emergency backup.
	StatusCleaning
)

// String returns a human-readable representation of the status.
func (s TrainStatus) String() string {
	switch s {
	case StatusService:
		return "service"
	case StatusStandby:
		return "standby"
	case StatusMaintenance:
		return "maintenance"
	case StatusCleaning:
		return "cleaning"
	default:
		return "unknown"
	}
}

// ParseStatus converts a status string to a TrainStatus.
func ParseStatus(s string) (TrainStatus, error) {
	switch s {
	case "service":
		return StatusService, nil
	case "standby":
		return StatusStandby, nil
	case "maintenance":
		return StatusMaintenance, nil
	case "cleaning":
		return StatusCleaning, nil
	}
	return StatusStandby, fmt.Errorf("unknown train status %q", s)
}

// MarshalJSON encodes the status as its lowercase string form.
func (s TrainStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the lowercase string form.
func (s *TrainStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Deployable reports whether a train in this status can be used as an
// emergency backup. Full maintenance is the only non-deployable state.
func (s TrainStatus) Deployable() bool {
	return s != StatusMaintenance
}

// MaintenancePriority classifies how urgently a train needs the workshop.
type MaintenancePriority int

const (
	PriorityLow MaintenancePriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p MaintenancePriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// FitnessCertificate is a department-issued fitness flag with a validity
// horizon. An expired certificate counts as invalid.
type FitnessCertificate struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CurrentlyValid reports whether the certificate holds at the given time.
// The zero value is invalid: a missing certificate never clears a train.
func (c FitnessCertificate) CurrentlyValid(now time.Time) bool {
	if !c.Valid {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt)
}

// JobCardStatus mirrors the maximo-style open/closed work order state.
type JobCardStatus string

const (
	JobCardOpen   JobCardStatus = "open"
	JobCardClosed JobCardStatus = "closed"
)

// TrainRecord is one physical unit's snapshot for a cycle. Identity,
// eligibility, wear and commercial fields come from the surrounding system;
// Score, MaintPriority, BackupPriority, Status and Rationale are written
// only by this engine.
type TrainRecord struct {
	ID          string `json:"id"`
	Depot       string `json:"depot"`
	BayPosition int    `json:"bay_position"`

	RollingStockCert FitnessCertificate `json:"rolling_stock_cert"`
	SignallingCert   FitnessCertificate `json:"signalling_cert"`
	TelecomCert      FitnessCertificate `json:"telecom_cert"`

	OpenJobCards    int           `json:"open_job_cards"`
	CriticalJobCard bool          `json:"critical_job_card"`
	JobCardStatus   JobCardStatus `json:"job_card_status"`

	BrakeWearPct          float64 `json:"brake_wear_pct"`
	HVACWearPct           float64 `json:"hvac_wear_pct"`
	BatteryHealthPct      float64 `json:"battery_health_pct"`
	TotalMileageKM        float64 `json:"total_mileage_km"`
	MileageSinceServiceKM float64 `json:"mileage_since_service_km"`

	BrandingActive   bool    `json:"branding_active"`
	ExposureTargetH  float64 `json:"exposure_target_h"`
	ExposureAccruedH float64 `json:"exposure_accrued_h"`

	CleaningRequired bool `json:"cleaning_required"`
	ShuntingMoves    int  `json:"shunting_moves"`

	// Externally supplied ML outputs. The engine treats them as given
	// features and performs no inference of its own.
	ReadinessProb     float64 `json:"readiness_prob"`
	PredictedDelayMin float64 `json:"predicted_delay_min"`
	Confidence        float64 `json:"confidence"`

	// Engine-owned fields.
	Score          float64             `json:"score"`
	MaintPriority  MaintenancePriority `json:"maintenance_priority"`
	BackupPriority float64             `json:"backup_priority"`
	Status         TrainStatus         `json:"status"`
	Rationale      []string            `json:"rationale,omitempty"`
}

// Fit reports whether all three fitness certificates hold at the given time.
func (t TrainRecord) Fit(now time.Time) bool {
	return t.RollingStockCert.CurrentlyValid(now) &&
		t.SignallingCert.CurrentlyValid(now) &&
		t.TelecomCert.CurrentlyValid(now)
}

// BrandingShortfallH returns the exposure hours the train still owes its
// campaign, zero when no campaign is active or the target is met.
func (t TrainRecord) BrandingShortfallH() float64 {
	if !t.BrandingActive || t.ExposureTargetH <= 0 {
		return 0
	}
	short := t.ExposureTargetH - t.ExposureAccruedH
	if short < 0 {
		return 0
	}
	return short
}

// Clone returns a deep copy of the record, including the rationale slice.
func (t TrainRecord) Clone() TrainRecord {
	cp := t
	if t.Rationale != nil {
		cp.Rationale = append([]string(nil), t.Rationale...)
	}
	return cp
}

// CloneFleet deep-copies a fleet snapshot.
func CloneFleet(fleet []TrainRecord) []TrainRecord {
	cp := make([]TrainRecord, len(fleet))
	for i, t := range fleet {
		cp[i] = t.Clone()
	}
	return cp
}
