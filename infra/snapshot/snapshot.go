// Package snapshot reads and writes fleet snapshot files. A snapshot is the
// JSON list of train records handed to the engine for one cycle.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kmetro/induction/core/model"
)

// Load reads a fleet snapshot from a JSON file.
func Load(path string) ([]model.TrainRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var fleet []model.TrainRecord
	if err := json.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(fleet) == 0 {
		return nil, model.ErrEmptyFleet
	}
	seen := make(map[string]struct{}, len(fleet))
	for _, t := range fleet {
		if t.ID == "" {
			return nil, fmt.Errorf("snapshot contains a train without an id")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("duplicate train id %s", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return fleet, nil
}

// Save writes a decision to a JSON file, pretty printed for operator review.
func Save(path string, d *model.ScheduleDecision) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
