package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kmetro/induction/config"
	"github.com/kmetro/induction/core/induction"
	"github.com/kmetro/induction/infra/logger"
	"github.com/kmetro/induction/infra/snapshot"
)

var (
	planSnapshot string
	planOutput   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one induction cycle over a fleet snapshot and print the decision",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planSnapshot, "snapshot", "s", "", "fleet snapshot JSON (defaults to schedule.snapshot_path)")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "write the decision to this file instead of stdout")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := planSnapshot
	if path == "" {
		path = cfg.Schedule.SnapshotPath
	}
	fleet, err := snapshot.Load(path)
	if err != nil {
		return err
	}

	engine, err := induction.NewEngine(cfg.Constraints, logger.New("plan"), nil, nil)
	if err != nil {
		return err
	}
	decision, err := engine.RunCycle(ctx, fleet)
	if err != nil {
		return err
	}

	if planOutput != "" {
		return snapshot.Save(planOutput, decision)
	}
	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
