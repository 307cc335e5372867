package induction

import (
	"fmt"
	"time"

	"github.com/kmetro/induction/core/model"
)

// Verdict is the eligibility filter's decision for one train. Eligible is
// false whenever the train may not legally run in service; ForceMaintenance
// distinguishes hard faults that must send the train to the workshop from
// soft ceilings that only bar it from service.
type Verdict struct {
	Eligible         bool
	ForceMaintenance bool
	Reasons          []string
}

// EligibilityFilter applies the hard service constraints. It is pure and
// total: it never errors and always returns a decision.
type EligibilityFilter struct{}

// Evaluate checks whether the train may be assigned to service this cycle.
// Missing certificates count as invalid and zero-value health fields are
// taken at face value; the filter never assumes a train is fit.
func (EligibilityFilter) Evaluate(t model.TrainRecord, cfg model.ConstraintConfig, now time.Time) Verdict {
	var v Verdict
	v.Eligible = true

	if !t.RollingStockCert.CurrentlyValid(now) {
		v.fail(true, "rolling stock fitness certificate invalid or expired")
	}
	if !t.SignallingCert.CurrentlyValid(now) {
		v.fail(true, "signalling fitness certificate invalid or expired")
	}
	if !t.TelecomCert.CurrentlyValid(now) {
		v.fail(true, "telecom fitness certificate invalid or expired")
	}
	if t.CriticalJobCard {
		v.fail(true, "critical job card open")
	}
	if t.OpenJobCards > cfg.OpenJobCardCeiling {
		v.fail(false, fmt.Sprintf("open job cards %d exceed ceiling %d", t.OpenJobCards, cfg.OpenJobCardCeiling))
	}
	if t.BrakeWearPct > cfg.BrakeWearCriticalPct {
		v.fail(false, fmt.Sprintf("brake pad wear %.1f%% over critical threshold %.1f%%", t.BrakeWearPct, cfg.BrakeWearCriticalPct))
	}
	if t.HVACWearPct > cfg.HVACWearCriticalPct {
		v.fail(false, fmt.Sprintf("HVAC wear %.1f%% over critical threshold %.1f%%", t.HVACWearPct, cfg.HVACWearCriticalPct))
	}
	if t.MileageSinceServiceKM > cfg.MileageServiceThresholdKM && highWear(t, cfg) {
		v.fail(false, fmt.Sprintf("mileage since service %.0f km over threshold with high wear", t.MileageSinceServiceKM))
	}
	return v
}

func (v *Verdict) fail(hard bool, reason string) {
	v.Eligible = false
	if hard {
		v.ForceMaintenance = true
	}
	v.Reasons = append(v.Reasons, reason)
}

// highWear reports wear in the top band but below the critical cut-off.
func highWear(t model.TrainRecord, cfg model.ConstraintConfig) bool {
	return t.BrakeWearPct > cfg.BrakeWearCriticalPct*0.8 || t.HVACWearPct > cfg.HVACWearCriticalPct*0.8
}

// ClassifyMaintenance derives the maintenance priority class. Critical is a
// superset of every disqualifying fault; the lower bands order the remainder
// by wear and job-card pressure.
func ClassifyMaintenance(t model.TrainRecord, cfg model.ConstraintConfig, now time.Time) model.MaintenancePriority {
	if t.CriticalJobCard || t.BrakeWearPct > cfg.BrakeWearCriticalPct || !t.Fit(now) {
		return model.PriorityCritical
	}
	if t.HVACWearPct > cfg.HVACWearCriticalPct || t.OpenJobCards >= cfg.OpenJobCardCeiling {
		return model.PriorityHigh
	}
	if t.BrakeWearPct > cfg.BrakeWearCriticalPct*0.8 || t.OpenJobCards >= 2 ||
		t.MileageSinceServiceKM > cfg.MileageServiceThresholdKM {
		return model.PriorityMedium
	}
	return model.PriorityLow
}

// EvaluateFleet runs the filter over the snapshot and returns verdicts keyed
// by train ID, annotating each record's maintenance priority on the way.
func (f EligibilityFilter) EvaluateFleet(fleet []model.TrainRecord, cfg model.ConstraintConfig, now time.Time) map[string]Verdict {
	verdicts := make(map[string]Verdict, len(fleet))
	for i := range fleet {
		verdicts[fleet[i].ID] = f.Evaluate(fleet[i], cfg, now)
		fleet[i].MaintPriority = ClassifyMaintenance(fleet[i], cfg, now)
	}
	return verdicts
}
