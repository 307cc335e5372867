package induction

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kmetro/induction/core/model"
)

// ExactSolver formulates train selection as a binary assignment problem:
// maximize total utility score subject to the service quota and optional
// per-depot capacities. Ineligible trains never enter the formulation, so
// the eligibility constraints cannot be relaxed by accident.
//
// The LP relaxation is solved with the simplex method. The constraint
// matrix (one all-ones quota row plus depot partition rows plus unit upper
// bounds) is an interval matrix, so vertex solutions are integral; values
// are still rounded and validated before use.
type ExactSolver struct {
	// TimeLimit bounds the wall-clock solve time. Zero means one second.
	TimeLimit time.Duration
}

func (ExactSolver) Name() string { return "exact" }

// lpSolve points to the function used to solve the LP. It can be overridden
// in tests to simulate solver failures.
var lpSolve = solveSelectionLP

// solveSelectionLP minimizes -scores subject to sum(x) = target,
// depot rows <= caps and 0 <= x <= 1.
func solveSelectionLP(scores []float64, depotRows [][]float64, depotCaps []float64, target float64) ([]float64, error) {
	n := len(scores)
	c := make([]float64, n)
	for i, s := range scores {
		c[i] = -s
	}

	rows := n + len(depotRows)
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	for i := 0; i < n; i++ {
		g.Set(i, i, 1)
		h[i] = 1
	}
	for r, row := range depotRows {
		for i, v := range row {
			g.Set(n+r, i, v)
		}
		h[n+r] = depotCaps[r]
	}

	a := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		a.Set(0, i, 1)
	}
	b := []float64{target}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, err
	}
	return sol[:n], nil
}

// Solve runs the exact optimization within the wall-clock limit. An
// unattainable quota is relaxed to the maximum feasible count and reported
// as a below-quota feasible outcome, never by dropping a hard constraint.
func (s ExactSolver) Solve(ctx context.Context, p Problem) (Proposal, error) {
	elig := p.Eligible()
	sort.Slice(elig, func(i, j int) bool { return elig[i].ID < elig[j].ID })

	target := p.Config.ServiceQuota
	maxFeasible := depotFeasibleCount(elig, p.Config.DepotCapacity)
	belowQuota := false
	if maxFeasible < target {
		target = maxFeasible
		belowQuota = true
	}
	if target == 0 {
		// Nothing admits service, so there is no formulation left to
		// relax. The heuristics still produce the non-service plan.
		return Proposal{}, ErrInfeasible
	}

	asn := make(Assignment, len(p.Fleet))
	selected, err := s.solveWithLimit(ctx, elig, p.Scores, p.Config, target)
	if err != nil {
		return Proposal{}, err
	}
	for _, id := range selected {
		asn[id] = model.StatusService
	}
	assignRemainder(p, asn)

	status := model.StatusOptimal
	if belowQuota {
		status = model.StatusFeasible
	}
	return Proposal{Assignment: asn, Status: status, BelowQuota: belowQuota, Solver: s.Name()}, nil
}

// depotFeasibleCount returns the largest service count the depot capacities
// admit over the eligible set.
func depotFeasibleCount(elig []model.TrainRecord, caps map[string]int) int {
	perDepot := make(map[string]int)
	for _, t := range elig {
		perDepot[t.Depot]++
	}
	total := 0
	for depot, n := range perDepot {
		if cap, ok := caps[depot]; ok && cap < n {
			total += cap
		} else {
			total += n
		}
	}
	return total
}

type lpResult struct {
	sol []float64
	err error
}

func (s ExactSolver) solveWithLimit(ctx context.Context, elig []model.TrainRecord, scores map[string]float64, cfg model.ConstraintConfig, target int) ([]string, error) {
	limit := s.TimeLimit
	if limit <= 0 {
		limit = time.Second
	}

	scoreVec := make([]float64, len(elig))
	for i, t := range elig {
		scoreVec[i] = scores[t.ID]
	}
	depotRows, depotCaps := buildDepotRows(elig, cfg.DepotCapacity)

	done := make(chan lpResult, 1)
	go func() {
		sol, err := lpSolve(scoreVec, depotRows, depotCaps, float64(target))
		done <- lpResult{sol: sol, err: err}
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return roundSelection(elig, res.sol, scoreVec, target), nil
	case <-timer.C:
		return nil, ErrSolverTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func buildDepotRows(elig []model.TrainRecord, caps map[string]int) ([][]float64, []float64) {
	if len(caps) == 0 {
		return nil, nil
	}
	depots := make([]string, 0, len(caps))
	for d := range caps {
		depots = append(depots, d)
	}
	sort.Strings(depots)

	var rows [][]float64
	var limits []float64
	for _, d := range depots {
		row := make([]float64, len(elig))
		present := false
		for i, t := range elig {
			if t.Depot == d {
				row[i] = 1
				present = true
			}
		}
		if present {
			rows = append(rows, row)
			limits = append(limits, float64(caps[d]))
		}
	}
	return rows, limits
}

// roundSelection converts the LP solution to exactly target train IDs,
// preferring the largest fractional values and breaking ties by score.
func roundSelection(elig []model.TrainRecord, sol, scores []float64, target int) []string {
	idx := make([]int, len(elig))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if sol[idx[a]] != sol[idx[b]] {
			return sol[idx[a]] > sol[idx[b]]
		}
		return scores[idx[a]] > scores[idx[b]]
	})
	if target > len(idx) {
		target = len(idx)
	}
	out := make([]string, 0, target)
	for _, i := range idx[:target] {
		out = append(out, elig[i].ID)
	}
	sort.Strings(out)
	return out
}

// assignRemainder fills in every train not proposed for service:
// safety-forced and highest-priority trains go to maintenance up to the
// slot cap, cleaning-pending trains take cleaning slots, the rest stand by.
func assignRemainder(p Problem, asn Assignment) {
	type cand struct {
		id   string
		prio model.MaintenancePriority
	}
	var forced, comfort []cand
	for _, t := range p.Fleet {
		if asn[t.ID] == model.StatusService {
			continue
		}
		v := p.Verdicts[t.ID]
		prio := t.MaintPriority
		if v.ForceMaintenance {
			forced = append(forced, cand{t.ID, prio})
		} else if prio >= model.PriorityHigh {
			comfort = append(comfort, cand{t.ID, prio})
		}
	}
	byPriority := func(cs []cand) {
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].prio != cs[j].prio {
				return cs[i].prio > cs[j].prio
			}
			return cs[i].id < cs[j].id
		})
	}
	byPriority(forced)
	byPriority(comfort)

	slots := p.Config.MaxMaintenanceSlots
	used := 0
	// Safety-forced trains take maintenance even over capacity: a train
	// with a lapsed certificate cannot be parked on standby.
	for _, c := range forced {
		asn[c.id] = model.StatusMaintenance
		used++
	}
	for _, c := range comfort {
		if used >= slots {
			break
		}
		asn[c.id] = model.StatusMaintenance
		used++
	}

	cleaning := 0
	for _, t := range p.Fleet {
		if _, ok := asn[t.ID]; ok {
			continue
		}
		if t.CleaningRequired && cleaning < p.Config.MaxCleaningSlots {
			asn[t.ID] = model.StatusCleaning
			cleaning++
			continue
		}
		asn[t.ID] = model.StatusStandby
	}
}
