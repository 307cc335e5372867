package induction

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kmetro/induction/core/model"
)

// RankSolver is the last rung of the fallback chain and the default for
// small fleets: sort eligible trains by utility score with deterministic
// tie-breaks and assign greedily. O(n log n), always terminates, always
// produces a feasible schedule.
type RankSolver struct{}

func (RankSolver) Name() string { return "rank" }

// Solve ranks and assigns. It cannot fail on a non-empty fleet.
func (s RankSolver) Solve(_ context.Context, p Problem) (Proposal, error) {
	if len(p.Fleet) == 0 {
		return Proposal{}, model.ErrEmptyFleet
	}
	elig := p.Eligible()

	mileages := make([]float64, len(p.Fleet))
	for i, t := range p.Fleet {
		mileages[i] = t.TotalMileageKM
	}
	mean := stat.Mean(mileages, nil)

	sort.SliceStable(elig, func(i, j int) bool {
		a, b := elig[i], elig[j]
		if p.Scores[a.ID] != p.Scores[b.ID] {
			return p.Scores[a.ID] > p.Scores[b.ID]
		}
		if a.OpenJobCards != b.OpenJobCards {
			return a.OpenJobCards < b.OpenJobCards
		}
		if a.BrandingShortfallH() != b.BrandingShortfallH() {
			return a.BrandingShortfallH() > b.BrandingShortfallH()
		}
		da := math.Abs(a.TotalMileageKM - mean)
		db := math.Abs(b.TotalMileageKM - mean)
		if da != db {
			return da < db
		}
		if a.ShuntingMoves != b.ShuntingMoves {
			return a.ShuntingMoves < b.ShuntingMoves
		}
		return a.ID < b.ID
	})

	target := p.Config.ServiceQuota
	below := false
	if len(elig) < target {
		target = len(elig)
		below = true
	}

	asn := make(Assignment, len(p.Fleet))
	for _, t := range elig[:target] {
		asn[t.ID] = model.StatusService
	}
	assignRemainder(p, asn)

	return Proposal{Assignment: asn, Status: model.StatusFallback, BelowQuota: below, Solver: s.Name()}, nil
}
