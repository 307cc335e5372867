package induction

import (
	"context"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kmetro/induction/core/model"
)

// GeneticSolver is the population-based heuristic. One categorical gene per
// train encodes its status; variation is constraint-aware so the search
// spends its budget near feasible regions. It never fails: the worst case
// returns the best individual of the initial population.
type GeneticSolver struct {
	Population    int
	Generations   int
	CrossoverProb float64
	MutationProb  float64
	TournamentK   int
	// Seed makes runs reproducible. Zero seeds from the population size so
	// repeated cycles over the same snapshot stay deterministic.
	Seed int64
}

func (GeneticSolver) Name() string { return "evolutionary" }

// NewGeneticSolver returns a solver with the standard evolution parameters.
func NewGeneticSolver() GeneticSolver {
	return GeneticSolver{
		Population:    100,
		Generations:   50,
		CrossoverProb: 0.7,
		MutationProb:  0.3,
		TournamentK:   3,
		Seed:          1,
	}
}

type individual struct {
	genes   []model.TrainStatus
	fitness float64
}

func cloneGenes(g []model.TrainStatus) []model.TrainStatus {
	return append([]model.TrainStatus(nil), g...)
}

// Solve evolves a fixed generation budget and returns the best individual.
func (s GeneticSolver) Solve(ctx context.Context, p Problem) (Proposal, error) {
	fleet := append([]model.TrainRecord(nil), p.Fleet...)
	sort.Slice(fleet, func(i, j int) bool { return fleet[i].ID < fleet[j].ID })

	seed := s.Seed
	if seed == 0 {
		seed = int64(len(fleet) + s.Population)
	}
	rng := rand.New(rand.NewSource(seed))

	pop := make([]individual, s.Population)
	for i := range pop {
		pop[i] = individual{genes: s.randomGenome(rng, fleet, p)}
		pop[i].fitness = s.evaluate(pop[i].genes, fleet, p)
	}
	best := pop[0]
	for _, ind := range pop[1:] {
		if ind.fitness > best.fitness {
			best = ind
		}
	}

	for gen := 0; gen < s.Generations; gen++ {
		select {
		case <-ctx.Done():
			// A canceled context ends evolution early; the best-so-far
			// individual is still a valid result.
			return s.proposal(best, fleet, p), nil
		default:
		}

		next := make([]individual, 0, s.Population)
		// Elitism: the incumbent best survives unchanged.
		next = append(next, individual{genes: cloneGenes(best.genes), fitness: best.fitness})
		for len(next) < s.Population {
			a := s.tournament(rng, pop)
			b := s.tournament(rng, pop)
			c1, c2 := cloneGenes(a.genes), cloneGenes(b.genes)
			if rng.Float64() < s.CrossoverProb {
				twoPointCrossover(rng, c1, c2)
			}
			if rng.Float64() < s.MutationProb {
				s.mutate(rng, c1)
			}
			if rng.Float64() < s.MutationProb {
				s.mutate(rng, c2)
			}
			next = append(next, individual{genes: c1, fitness: s.evaluate(c1, fleet, p)})
			if len(next) < s.Population {
				next = append(next, individual{genes: c2, fitness: s.evaluate(c2, fleet, p)})
			}
		}
		pop = next
		for _, ind := range pop {
			if ind.fitness > best.fitness {
				best = ind
			}
		}
	}
	return s.proposal(best, fleet, p), nil
}

func (s GeneticSolver) proposal(best individual, fleet []model.TrainRecord, p Problem) Proposal {
	asn := make(Assignment, len(fleet))
	for i, t := range fleet {
		asn[t.ID] = best.genes[i]
	}
	below := asn.ServiceCount() < p.Config.ServiceQuota
	return Proposal{Assignment: asn, Status: model.StatusFeasible, BelowQuota: below, Solver: s.Name()}
}

// randomGenome biases the initial population toward sensible states:
// ineligible trains start in maintenance or standby, the rest uniformly.
func (s GeneticSolver) randomGenome(rng *rand.Rand, fleet []model.TrainRecord, p Problem) []model.TrainStatus {
	genes := make([]model.TrainStatus, len(fleet))
	for i, t := range fleet {
		v := p.Verdicts[t.ID]
		switch {
		case v.ForceMaintenance:
			genes[i] = model.StatusMaintenance
		case !v.Eligible:
			if rng.Intn(2) == 0 {
				genes[i] = model.StatusMaintenance
			} else {
				genes[i] = model.StatusStandby
			}
		default:
			genes[i] = []model.TrainStatus{model.StatusService, model.StatusStandby, model.StatusMaintenance}[rng.Intn(3)]
		}
	}
	return genes
}

func (s GeneticSolver) tournament(rng *rand.Rand, pop []individual) individual {
	k := s.TournamentK
	if k < 2 {
		k = 2
	}
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

func twoPointCrossover(rng *rand.Rand, a, b []model.TrainStatus) {
	n := len(a)
	if n < 2 {
		return
	}
	p1, p2 := rng.Intn(n), rng.Intn(n)
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	for i := p1; i < p2; i++ {
		a[i], b[i] = b[i], a[i]
	}
}

// mutate flips genes with constraint awareness: maintenance genes drift
// toward deployment, service genes toward rest, standby genes mostly toward
// service. This biases the walk toward useful regions instead of a uniform
// random one.
func (s GeneticSolver) mutate(rng *rand.Rand, genes []model.TrainStatus) {
	const perGene = 0.15
	for i, g := range genes {
		if rng.Float64() >= perGene {
			continue
		}
		switch g {
		case model.StatusMaintenance, model.StatusCleaning:
			genes[i] = []model.TrainStatus{model.StatusService, model.StatusStandby}[rng.Intn(2)]
		case model.StatusStandby:
			genes[i] = []model.TrainStatus{model.StatusService, model.StatusService, model.StatusMaintenance}[rng.Intn(3)]
		default: // service
			genes[i] = []model.TrainStatus{model.StatusStandby, model.StatusMaintenance}[rng.Intn(2)]
		}
	}
}

// evaluate combines utility rewards with hard-constraint penalties and
// shaping terms for quota compliance and mileage balance.
func (s GeneticSolver) evaluate(genes []model.TrainStatus, fleet []model.TrainRecord, p Problem) float64 {
	cfg := p.Config
	var score, penalty float64

	serviceCount, standbyCount, maintCount, cleaningNeeded := 0, 0, 0, 0
	for i, g := range genes {
		switch g {
		case model.StatusService:
			serviceCount++
		case model.StatusStandby:
			standbyCount++
		case model.StatusMaintenance, model.StatusCleaning:
			maintCount++
			if fleet[i].CleaningRequired {
				cleaningNeeded++
			}
		}
	}

	switch {
	case serviceCount < cfg.ServiceQuota:
		penalty += float64(cfg.ServiceQuota-serviceCount) * 200
	case serviceCount == cfg.ServiceQuota:
		score += 150
	default:
		penalty += float64(serviceCount-cfg.ServiceQuota) * 50
	}

	if maintCount > cfg.MaxMaintenanceSlots {
		penalty += float64(maintCount-cfg.MaxMaintenanceSlots) * 100
	}
	if cleaningNeeded > cfg.MaxCleaningSlots {
		penalty += float64(cleaningNeeded-cfg.MaxCleaningSlots) * 30
	} else {
		score += 20
	}

	for i, g := range genes {
		t := fleet[i]
		v := p.Verdicts[t.ID]
		switch g {
		case model.StatusService:
			if !v.Eligible {
				penalty += 300
			}
			if t.JobCardStatus == model.JobCardOpen && t.OpenJobCards > 0 {
				penalty += 150
			}
			score += p.Scores[t.ID] * 0.5
			if t.BrandingActive {
				score += 30
			}
		case model.StatusMaintenance, model.StatusCleaning:
			if t.MaintPriority >= model.PriorityHigh || v.ForceMaintenance {
				score += 80
			} else {
				penalty += 20
			}
		case model.StatusStandby:
			if p.Scores[t.ID] < 40 {
				score += 10
			} else {
				penalty += 5
			}
		}
	}

	score += mileageBalanceReward(genes, fleet, cfg.DailyMileagePerTrainKM)

	if standbyCount >= 2 {
		score += 25
	}

	fitness := score - penalty
	if fitness < 0 {
		return 0
	}
	return fitness
}

// mileageBalanceReward projects each train's mileage after the cycle and
// rewards low fleet variance.
func mileageBalanceReward(genes []model.TrainStatus, fleet []model.TrainRecord, dailyKM float64) float64 {
	if len(fleet) < 2 {
		return 100
	}
	projected := make([]float64, len(fleet))
	for i, t := range fleet {
		projected[i] = t.TotalMileageKM
		if genes[i] == model.StatusService {
			projected[i] += dailyKM
		}
	}
	v := stat.Variance(projected, nil)
	reward := 100 - v*0.01
	if reward < 0 {
		return 0
	}
	return reward
}
