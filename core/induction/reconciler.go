package induction

import (
	"fmt"
	"sort"

	"github.com/kmetro/induction/core/model"
)

// Reconciler merges one or more solver proposals into the final assignment,
// applying safety overrides before any vote counts and enforcing the shared
// resource caps regardless of which solver proposed what.
type Reconciler struct{}

// ReconcileResult is the merged outcome consumed by the engine.
type ReconcileResult struct {
	Assignment Assignment
	Rationale  map[string][]string
	Excluded   []model.Exclusion
	BelowQuota bool
}

// Reconcile produces the final per-train statuses.
func (Reconciler) Reconcile(p Problem, proposals []Proposal) ReconcileResult {
	res := ReconcileResult{
		Assignment: make(Assignment, len(p.Fleet)),
		Rationale:  make(map[string][]string, len(p.Fleet)),
	}
	majority := len(proposals)/2 + 1

	// Deterministic processing order.
	fleet := append([]model.TrainRecord(nil), p.Fleet...)
	sort.Slice(fleet, func(i, j int) bool { return fleet[i].ID < fleet[j].ID })

	maintUsed := 0
	for _, t := range fleet {
		v := p.Verdicts[t.ID]
		if v.Eligible {
			continue
		}
		// Safety override: no vote can put an ineligible train in service.
		res.Excluded = append(res.Excluded, model.Exclusion{TrainID: t.ID, Reasons: v.Reasons})
		switch {
		case v.ForceMaintenance:
			res.Assignment[t.ID] = model.StatusMaintenance
			maintUsed++
			res.Rationale[t.ID] = append([]string{"safety override: forced to maintenance"}, v.Reasons...)
		case needsMaintenance(t, p.Config) && maintUsed < p.Config.MaxMaintenanceSlots:
			res.Assignment[t.ID] = model.StatusMaintenance
			maintUsed++
			res.Rationale[t.ID] = append([]string{"over soft threshold: sent to maintenance"}, v.Reasons...)
		default:
			res.Assignment[t.ID] = model.StatusStandby
			res.Rationale[t.ID] = append([]string{"over soft threshold: held on standby"}, v.Reasons...)
		}
	}

	for _, t := range fleet {
		if _, done := res.Assignment[t.ID]; done {
			continue
		}
		votes := 0
		for _, prop := range proposals {
			if prop.Assignment[t.ID] == model.StatusService {
				votes++
			}
		}
		switch {
		case votes >= majority:
			res.Assignment[t.ID] = model.StatusService
			res.Rationale[t.ID] = append(res.Rationale[t.ID],
				fmt.Sprintf("selected for service by %d of %d solvers", votes, len(proposals)))
		case needsMaintenance(t, p.Config):
			if maintUsed < p.Config.MaxMaintenanceSlots {
				res.Assignment[t.ID] = model.StatusMaintenance
				maintUsed++
				res.Rationale[t.ID] = append(res.Rationale[t.ID],
					fmt.Sprintf("maintenance priority %s: wear or job-card pressure", t.MaintPriority))
			} else {
				res.Assignment[t.ID] = model.StatusStandby
				res.Rationale[t.ID] = append(res.Rationale[t.ID],
					"maintenance needed but all slots occupied, held on standby")
			}
		default:
			res.Assignment[t.ID] = model.StatusStandby
			res.Rationale[t.ID] = append(res.Rationale[t.ID],
				fmt.Sprintf("insufficient solver votes for service (%d of %d)", votes, len(proposals)))
		}
	}

	promoteToQuota(p, &res)
	assignCleaning(p, fleet, &res)

	res.BelowQuota = res.Assignment.ServiceCount() < p.Config.ServiceQuota
	return res
}

// needsMaintenance flags wear or job-card pressure that warrants a workshop
// slot when one is free: component wear over the critical thresholds or
// three or more open job cards.
func needsMaintenance(t model.TrainRecord, cfg model.ConstraintConfig) bool {
	return t.BrakeWearPct > cfg.BrakeWearCriticalPct ||
		t.HVACWearPct > cfg.HVACWearCriticalPct ||
		t.OpenJobCards >= 3
}

// promoteToQuota pulls the highest-scoring eligible standby trains into
// service until the quota is met or candidates run out.
func promoteToQuota(p Problem, res *ReconcileResult) {
	short := p.Config.ServiceQuota - res.Assignment.ServiceCount()
	if short <= 0 {
		return
	}
	var cands []model.TrainRecord
	for _, t := range p.Fleet {
		if res.Assignment[t.ID] == model.StatusStandby && p.Verdicts[t.ID].Eligible {
			cands = append(cands, t)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if p.Scores[cands[i].ID] != p.Scores[cands[j].ID] {
			return p.Scores[cands[i].ID] > p.Scores[cands[j].ID]
		}
		return cands[i].ID < cands[j].ID
	})
	for _, t := range cands {
		if short == 0 {
			break
		}
		res.Assignment[t.ID] = model.StatusService
		res.Rationale[t.ID] = append(res.Rationale[t.ID], "promoted from standby to meet service quota")
		short--
	}
}

// assignCleaning moves cleaning-pending standby trains into the cleaning
// sub-state up to the slot cap. Cleaning trains stay backup-deployable.
func assignCleaning(p Problem, fleet []model.TrainRecord, res *ReconcileResult) {
	used := 0
	for _, t := range fleet {
		if used >= p.Config.MaxCleaningSlots {
			return
		}
		if res.Assignment[t.ID] == model.StatusStandby && t.CleaningRequired && p.Verdicts[t.ID].Eligible {
			res.Assignment[t.ID] = model.StatusCleaning
			res.Rationale[t.ID] = append(res.Rationale[t.ID], "queued for cleaning slot")
			used++
		}
	}
}
