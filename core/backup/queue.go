// Package backup maintains the ordered pool of deployable trains the
// emergency dispatcher draws from. The queue is rebuilt atomically from each
// induction decision and supports concurrent claims without double
// dispatching a train.
package backup

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/kmetro/induction/core/model"
)

// Entry is one deployable train in the backup pool.
type Entry struct {
	TrainID   string
	Depot     string
	Status    model.TrainStatus
	Priority  float64
	Readiness float64
	Battery   float64
	DelayMin  float64
	claimed   bool
}

type entryPQ []*Entry

func (p entryPQ) Len() int { return len(p) }
func (p entryPQ) Less(i, j int) bool {
	if p[i].Priority != p[j].Priority {
		return p[i].Priority > p[j].Priority
	}
	return p[i].TrainID < p[j].TrainID
}
func (p entryPQ) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p *entryPQ) Push(x any)   { *p = append(*p, x.(*Entry)) }
func (p *entryPQ) Pop() any     { old := *p; n := len(old); v := old[n-1]; *p = old[:n-1]; return v }

// ErrAlreadyClaimed is returned when a concurrent responder won the race for
// the same train.
var ErrAlreadyClaimed = errors.New("backup train already claimed")

// Queue is a mutex-protected priority pool keyed by train ID.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{entries: make(map[string]*Entry)}
}

// Rebuild replaces the pool with the deployable trains of the decision.
// Claims held on the previous generation do not carry over.
func (q *Queue) Rebuild(d *model.ScheduleDecision) {
	next := make(map[string]*Entry)
	if d != nil {
		for _, t := range d.Trains {
			if !t.Status.Deployable() || t.BackupPriority <= 0 {
				continue
			}
			next[t.ID] = &Entry{
				TrainID:   t.ID,
				Depot:     t.Depot,
				Status:    t.Status,
				Priority:  t.BackupPriority,
				Readiness: t.ReadinessProb,
				Battery:   t.BatteryHealthPct,
				DelayMin:  t.PredictedDelayMin,
			}
		}
	}
	q.mu.Lock()
	q.entries = next
	q.mu.Unlock()
}

// Claim marks the train as dispatched. It fails if the train left the pool
// or was already claimed.
func (q *Queue) Claim(trainID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[trainID]
	if !ok {
		return errors.New("train not in backup pool")
	}
	if e.claimed {
		return ErrAlreadyClaimed
	}
	e.claimed = true
	return nil
}

// Release returns a claimed train to the pool, used when a deployment is
// aborted downstream.
func (q *Queue) Release(trainID string) {
	q.mu.Lock()
	if e, ok := q.entries[trainID]; ok {
		e.claimed = false
	}
	q.mu.Unlock()
}

// PopMatch returns the highest-priority unclaimed entry accepted by the
// predicate, without claiming it. A nil predicate accepts everything.
func (q *Queue) PopMatch(accept func(Entry) bool) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pq := make(entryPQ, 0, len(q.entries))
	for _, e := range q.entries {
		if e.claimed {
			continue
		}
		pq = append(pq, e)
	}
	heap.Init(&pq)
	for pq.Len() > 0 {
		e := heap.Pop(&pq).(*Entry)
		if accept == nil || accept(*e) {
			return *e, true
		}
	}
	return Entry{}, false
}

// Snapshot returns the unclaimed entries ordered by descending priority.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	pq := make(entryPQ, 0, len(q.entries))
	for _, e := range q.entries {
		if e.claimed {
			continue
		}
		pq = append(pq, e)
	}
	q.mu.Unlock()
	heap.Init(&pq)
	out := make([]Entry, 0, pq.Len())
	for pq.Len() > 0 {
		out = append(out, *heap.Pop(&pq).(*Entry))
	}
	return out
}

// Len returns the number of unclaimed entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if !e.claimed {
			n++
		}
	}
	return n
}
