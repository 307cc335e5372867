// Package whatif answers "what would tonight's plan look like if ..."
// questions by rerunning the induction pipeline on a perturbed copy of the
// fleet snapshot. It never touches live engine state.
package whatif

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kmetro/induction/core/induction"
	"github.com/kmetro/induction/core/logger"
	"github.com/kmetro/induction/core/model"
)

// StatusChange records one train whose assignment differs between runs.
type StatusChange struct {
	TrainID string            `json:"train_id"`
	From    model.TrainStatus `json:"from"`
	To      model.TrainStatus `json:"to"`
}

// DiffReport compares the baseline decision with the perturbed one.
type DiffReport struct {
	Scenario        model.Perturbation   `json:"scenario"`
	Before          model.FleetSummary   `json:"before"`
	After           model.FleetSummary   `json:"after"`
	Changes         []StatusChange       `json:"changes"`
	Impact          model.ImpactEstimate `json:"impact"`
	Recommendations []string             `json:"recommendations"`
}

// Simulator runs perturbation scenarios against a snapshot.
type Simulator struct {
	engine *induction.Engine
	logger logger.Logger
	// AvgPassengersPerTrain and RevenuePerTrainHour feed the impact model.
	AvgPassengersPerTrain int
	RevenuePerTrainHour   float64
}

// New builds a simulator sharing the engine's solver pipeline.
func New(engine *induction.Engine, log logger.Logger) *Simulator {
	return &Simulator{
		engine:                engine,
		logger:                log,
		AvgPassengersPerTrain: 975,
		RevenuePerTrainHour:   2500,
	}
}

// Simulate runs the pipeline twice, on the pristine snapshot and on a
// perturbed deep copy, and reports the difference. The input snapshot and
// config are never modified.
func (s *Simulator) Simulate(ctx context.Context, fleet []model.TrainRecord, cfg model.ConstraintConfig, p model.Perturbation) (*DiffReport, error) {
	if len(fleet) == 0 {
		return nil, model.ErrEmptyFleet
	}
	base, err := s.engine.RunCycleWithConfig(ctx, fleet, cfg)
	if err != nil {
		return nil, fmt.Errorf("baseline run: %w", err)
	}

	perturbed := model.CloneFleet(fleet)
	pcfg := cfg
	if err := applyPerturbation(perturbed, &pcfg, p); err != nil {
		return nil, err
	}
	after, err := s.engine.RunCycleWithConfig(ctx, perturbed, pcfg)
	if err != nil {
		return nil, fmt.Errorf("perturbed run: %w", err)
	}

	report := &DiffReport{
		Scenario: p,
		Before:   base.Summary,
		After:    after.Summary,
		Changes:  diffChanges(base, after),
	}
	report.Impact = s.estimateImpact(report, p)
	report.Recommendations = s.recommend(report, pcfg)
	s.logger.Debugf("what-if %s: %d status changes, service %d -> %d",
		p.Kind, len(report.Changes), base.Summary.Service, after.Summary.Service)
	return report, nil
}

func applyPerturbation(fleet []model.TrainRecord, cfg *model.ConstraintConfig, p model.Perturbation) error {
	switch p.Kind {
	case model.PerturbTrainFailure:
		failTrains(fleet, p.AffectedTrains)
	case model.PerturbWeatherDelay:
		mult := weatherMultiplier(p.Magnitude)
		for i := range fleet {
			fleet[i].PredictedDelayMin *= mult
		}
	case model.PerturbPeakDemand:
		mult := p.Magnitude
		if mult <= 1 {
			mult = 1.2
		}
		cfg.ServiceQuota = int(math.Ceil(float64(cfg.ServiceQuota) * mult))
	case model.PerturbMaintenanceWindow:
		for i := range fleet {
			if contains(p.AffectedTrains, fleet[i].ID) {
				fleet[i].CriticalJobCard = true
				fleet[i].JobCardStatus = model.JobCardOpen
			}
		}
	case model.PerturbEmergency:
		frac := p.Magnitude
		if frac <= 0 || frac > 1 {
			frac = 0.1
		}
		n := int(math.Floor(float64(len(fleet)) * frac))
		failTrains(fleet, lowestReadiness(fleet, n))
	default:
		return fmt.Errorf("unknown perturbation kind %q", p.Kind)
	}
	return nil
}

// failTrains invalidates the named trains' certificates so the filter pulls
// them from circulation.
func failTrains(fleet []model.TrainRecord, ids []string) {
	for i := range fleet {
		if !contains(ids, fleet[i].ID) {
			continue
		}
		fleet[i].RollingStockCert.Valid = false
		fleet[i].SignallingCert.Valid = false
		fleet[i].TelecomCert.Valid = false
	}
}

// lowestReadiness returns the n train IDs with the lowest readiness,
// deterministically.
func lowestReadiness(fleet []model.TrainRecord, n int) []string {
	sorted := append([]model.TrainRecord(nil), fleet...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ReadinessProb != sorted[j].ReadinessProb {
			return sorted[i].ReadinessProb < sorted[j].ReadinessProb
		}
		return sorted[i].ID < sorted[j].ID
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	ids := make([]string, 0, n)
	for _, t := range sorted[:n] {
		ids = append(ids, t.ID)
	}
	return ids
}

func weatherMultiplier(magnitude float64) float64 {
	switch {
	case magnitude <= 1:
		return 1.5
	case magnitude <= 2:
		return 2.0
	default:
		return 3.0
	}
}

func diffChanges(before, after *model.ScheduleDecision) []StatusChange {
	var changes []StatusChange
	for _, t := range before.Trains {
		at := after.Train(t.ID)
		if at == nil || at.Status == t.Status {
			continue
		}
		changes = append(changes, StatusChange{TrainID: t.ID, From: t.Status, To: at.Status})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].TrainID < changes[j].TrainID })
	return changes
}

func (s *Simulator) estimateImpact(r *DiffReport, p model.Perturbation) model.ImpactEstimate {
	gap := r.Before.Service - r.After.Service
	if gap < 0 {
		gap = 0
	}
	hours := p.Duration.Hours()
	if hours <= 0 {
		hours = 2
	}
	return model.ImpactEstimate{
		AffectedPassengers:  int(math.Round(float64(gap) * float64(s.AvgPassengersPerTrain) * passengerFactor(gap))),
		RevenueDelta:        -float64(gap) * hours * s.RevenuePerTrainHour,
		RecoveryTimeMinutes: (hours + float64(gap)*0.5) * 60,
	}
}

// passengerFactor scales the headcount by how badly the timetable degrades.
func passengerFactor(gap int) float64 {
	switch {
	case gap == 0:
		return 0
	case gap <= 2:
		return 0.25
	case gap <= 5:
		return 0.60
	default:
		return 0.95
	}
}

func (s *Simulator) recommend(r *DiffReport, cfg model.ConstraintConfig) []string {
	var recs []string
	gap := cfg.ServiceQuota - r.After.Service
	if gap > 0 {
		recs = append(recs, fmt.Sprintf("service falls %d short of the %d quota; pre-position %d standby train(s)", gap, cfg.ServiceQuota, gap))
	}
	if r.After.Maintenance > cfg.MaxMaintenanceSlots {
		recs = append(recs, fmt.Sprintf("maintenance demand (%d) exceeds the %d workshop slots; stagger inspections", r.After.Maintenance, cfg.MaxMaintenanceSlots))
	}
	if r.After.Standby == 0 {
		recs = append(recs, "no standby cover remains; any further failure is unrecoverable")
	}
	if len(recs) == 0 {
		recs = append(recs, "plan absorbs the scenario without service loss")
	}
	return recs
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
