package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SolverStatus describes how the solver that produced a schedule terminated.
type SolverStatus int

const (
	StatusOptimal SolverStatus = iota
	StatusFeasible
	StatusInfeasible
	StatusFallback
)

func (s SolverStatus) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its lowercase string form.
func (s SolverStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the lowercase string form.
func (s *SolverStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "optimal":
		*s = StatusOptimal
	case "feasible":
		*s = StatusFeasible
	case "infeasible":
		*s = StatusInfeasible
	case "fallback":
		*s = StatusFallback
	default:
		return fmt.Errorf("unknown solver status %q", str)
	}
	return nil
}

// FleetSummary is the per-status head count of a schedule.
type FleetSummary struct {
	Total       int `json:"total"`
	Service     int `json:"service"`
	Standby     int `json:"standby"`
	Maintenance int `json:"maintenance"`
	Cleaning    int `json:"cleaning"`
}

// Summarize counts statuses over a fleet.
func Summarize(fleet []TrainRecord) FleetSummary {
	s := FleetSummary{Total: len(fleet)}
	for _, t := range fleet {
		switch t.Status {
		case StatusService:
			s.Service++
		case StatusStandby:
			s.Standby++
		case StatusMaintenance:
			s.Maintenance++
		case StatusCleaning:
			s.Cleaning++
		}
	}
	return s
}

// Exclusion records a train kept out of service and why.
type Exclusion struct {
	TrainID string   `json:"train_id"`
	Reasons []string `json:"reasons"`
}

// ScheduleDecision is the engine's output for one cycle.
type ScheduleDecision struct {
	Trains       []TrainRecord `json:"trains"`
	Summary      FleetSummary  `json:"summary"`
	SolverUsed   string        `json:"solver_used"`
	SolverStatus SolverStatus  `json:"solver_status"`
	BelowQuota   bool          `json:"below_quota"`
	Excluded     []Exclusion   `json:"excluded,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// Train returns the record with the given ID, or nil.
func (d *ScheduleDecision) Train(id string) *TrainRecord {
	for i := range d.Trains {
		if d.Trains[i].ID == id {
			return &d.Trains[i]
		}
	}
	return nil
}

// Clone deep-copies the decision so what-if runs cannot leak mutations back.
func (d ScheduleDecision) Clone() ScheduleDecision {
	cp := d
	cp.Trains = CloneFleet(d.Trains)
	if d.Excluded != nil {
		cp.Excluded = make([]Exclusion, len(d.Excluded))
		for i, e := range d.Excluded {
			cp.Excluded[i] = Exclusion{TrainID: e.TrainID, Reasons: append([]string(nil), e.Reasons...)}
		}
	}
	return cp
}

// ObjectiveWeights are the five competing objective weights. They are
// re-normalized to sum to one before scoring.
type ObjectiveWeights struct {
	Readiness   float64 `json:"readiness" yaml:"readiness"`
	Punctuality float64 `json:"punctuality" yaml:"punctuality"`
	Mileage     float64 `json:"mileage" yaml:"mileage"`
	Branding    float64 `json:"branding" yaml:"branding"`
	Efficiency  float64 `json:"efficiency" yaml:"efficiency"`
}

// ErrEmptyFleet is returned when a cycle is requested over no trains.
var ErrEmptyFleet = errors.New("fleet snapshot is empty")

// ConstraintConfig carries the per-invocation quotas, capacities and
// thresholds. It is input only; the engine never persists it.
type ConstraintConfig struct {
	ServiceQuota        int              `json:"service_quota" yaml:"service_quota"`
	MaxMaintenanceSlots int              `json:"max_maintenance_slots" yaml:"max_maintenance_slots"`
	MaxCleaningSlots    int              `json:"max_cleaning_slots" yaml:"max_cleaning_slots"`
	DepotCapacity       map[string]int   `json:"depot_capacity" yaml:"depot_capacity"`
	Weights             ObjectiveWeights `json:"weights" yaml:"weights"`

	MileageServiceThresholdKM float64 `json:"mileage_service_threshold_km" yaml:"mileage_service_threshold_km"`
	BrakeWearCriticalPct      float64 `json:"brake_wear_critical_pct" yaml:"brake_wear_critical_pct"`
	HVACWearCriticalPct       float64 `json:"hvac_wear_critical_pct" yaml:"hvac_wear_critical_pct"`
	OpenJobCardCeiling        int     `json:"open_job_card_ceiling" yaml:"open_job_card_ceiling"`
	DailyMileagePerTrainKM    float64 `json:"daily_mileage_per_train_km" yaml:"daily_mileage_per_train_km"`

	// SolverTimeLimit bounds the exact solver's wall clock time before the
	// engine falls back to the heuristics.
	SolverTimeLimit time.Duration `json:"solver_time_limit" yaml:"solver_time_limit"`
}

// SetDefaults fills unset fields with the standard depot parameters.
func (c *ConstraintConfig) SetDefaults() {
	if c.ServiceQuota == 0 {
		c.ServiceQuota = 13
	}
	if c.MaxMaintenanceSlots == 0 {
		c.MaxMaintenanceSlots = 8
	}
	if c.MaxCleaningSlots == 0 {
		c.MaxCleaningSlots = 5
	}
	if c.MileageServiceThresholdKM == 0 {
		c.MileageServiceThresholdKM = 45000
	}
	if c.BrakeWearCriticalPct == 0 {
		c.BrakeWearCriticalPct = 85
	}
	if c.HVACWearCriticalPct == 0 {
		c.HVACWearCriticalPct = 90
	}
	if c.OpenJobCardCeiling == 0 {
		c.OpenJobCardCeiling = 3
	}
	if c.DailyMileagePerTrainKM == 0 {
		c.DailyMileagePerTrainKM = 450
	}
	if c.SolverTimeLimit == 0 {
		c.SolverTimeLimit = 2 * time.Second
	}
	if c.Weights == (ObjectiveWeights{}) {
		c.Weights = ObjectiveWeights{Readiness: 0.30, Punctuality: 0.25, Mileage: 0.15, Branding: 0.15, Efficiency: 0.15}
	}
}

// Validate rejects caller errors before any computation starts.
func (c ConstraintConfig) Validate() error {
	if c.ServiceQuota <= 0 {
		return fmt.Errorf("service_quota must be positive, got %d", c.ServiceQuota)
	}
	if c.MaxMaintenanceSlots < 0 || c.MaxCleaningSlots < 0 {
		return errors.New("slot capacities must be non-negative")
	}
	w := c.Weights
	for _, v := range []float64{w.Readiness, w.Punctuality, w.Mileage, w.Branding, w.Efficiency} {
		if v < 0 {
			return fmt.Errorf("objective weights must be non-negative, got %v", w)
		}
	}
	if w.Readiness+w.Punctuality+w.Mileage+w.Branding+w.Efficiency == 0 {
		return errors.New("objective weights must not all be zero")
	}
	for depot, cap := range c.DepotCapacity {
		if cap < 0 {
			return fmt.Errorf("depot %s capacity must be non-negative", depot)
		}
	}
	return nil
}

// NormalizedWeights returns the weight vector scaled to sum to one.
func (c ConstraintConfig) NormalizedWeights() ObjectiveWeights {
	w := c.Weights
	sum := w.Readiness + w.Punctuality + w.Mileage + w.Branding + w.Efficiency
	if sum == 0 {
		return w
	}
	return ObjectiveWeights{
		Readiness:   w.Readiness / sum,
		Punctuality: w.Punctuality / sum,
		Mileage:     w.Mileage / sum,
		Branding:    w.Branding / sum,
		Efficiency:  w.Efficiency / sum,
	}
}
