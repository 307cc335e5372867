// Package fleetstatus tracks the last known assignment and deployment of
// each train across induction cycles and emergency responses.
package fleetstatus

import (
	"sort"
	"sync"
	"time"
)

// LastAssignment mirrors the summary of an induction decision for one train.
type LastAssignment struct {
	Status         string    `json:"status"`
	Score          float64   `json:"score"`
	BackupPriority float64   `json:"backup_priority"`
	Solver         string    `json:"solver"`
	Rationale      []string  `json:"rationale,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// LastDeployment records the most recent emergency deployment of a train.
type LastDeployment struct {
	EmergencyID string    `json:"emergency_id"`
	Kind        string    `json:"kind"`
	Replaced    string    `json:"replaced"`
	Timestamp   time.Time `json:"timestamp"`
}

// Status captures the current known state of a train.
type Status struct {
	TrainID        string         `json:"train_id"`
	Depot          string         `json:"depot,omitempty"`
	CurrentStatus  string         `json:"current_status"`
	LastAssignment LastAssignment `json:"last_assignment"`
	LastDeployment LastDeployment `json:"last_deployment,omitempty"`
}

type Filter struct {
	Depot  string
	Status string
}

type Store interface {
	Set(Status)
	List(Filter) []Status
	RecordAssignment(id string, a LastAssignment)
	RecordDeployment(id string, d LastDeployment)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.TrainID] = st
	s.mu.Unlock()
}

func (s *MemoryStore) RecordAssignment(id string, a LastAssignment) {
	s.mu.Lock()
	st := s.data[id]
	if st.TrainID == "" {
		st.TrainID = id
	}
	st.LastAssignment = a
	st.CurrentStatus = a.Status
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) RecordDeployment(id string, d LastDeployment) {
	s.mu.Lock()
	st := s.data[id]
	if st.TrainID == "" {
		st.TrainID = id
	}
	st.LastDeployment = d
	st.CurrentStatus = "service"
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.Depot != "" && st.Depot != f.Depot {
			continue
		}
		if f.Status != "" && st.CurrentStatus != f.Status {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TrainID < res[j].TrainID })
	return res
}
