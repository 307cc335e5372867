package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ScheduleConfig controls the nightly induction run.
type ScheduleConfig struct {
	// CronSpec is the standard 5-field cron expression of the nightly run.
	CronSpec string `json:"cron_spec"`
	// SnapshotPath is the fleet snapshot file read at each run.
	SnapshotPath string `json:"snapshot_path"`
	// OutputPath, when set, receives the decision as JSON after each run.
	OutputPath string `json:"output_path"`
}

// SetDefaults applies the standard 02:00 depot planning slot.
func (c *ScheduleConfig) SetDefaults() {
	if c.CronSpec == "" {
		c.CronSpec = "0 2 * * *"
	}
}

// Validate checks the cron expression and mandatory fields.
func (c ScheduleConfig) Validate() error {
	if c.SnapshotPath == "" {
		return fmt.Errorf("schedule.snapshot_path is required")
	}
	if _, err := cron.ParseStandard(c.CronSpec); err != nil {
		return fmt.Errorf("schedule.cron_spec: %w", err)
	}
	return nil
}
