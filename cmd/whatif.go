package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmetro/induction/config"
	"github.com/kmetro/induction/core/induction"
	"github.com/kmetro/induction/core/model"
	"github.com/kmetro/induction/core/whatif"
	"github.com/kmetro/induction/infra/logger"
	"github.com/kmetro/induction/infra/snapshot"
)

var (
	whatifSnapshot  string
	whatifScenario  string
	whatifTrains    []string
	whatifMagnitude float64
	whatifDuration  time.Duration
)

var whatifCmd = &cobra.Command{
	Use:   "whatif",
	Short: "Simulate a disruption scenario against a fleet snapshot",
	RunE:  runWhatif,
}

func init() {
	whatifCmd.Flags().StringVarP(&whatifSnapshot, "snapshot", "s", "", "fleet snapshot JSON (defaults to schedule.snapshot_path)")
	whatifCmd.Flags().StringVar(&whatifScenario, "scenario", "train_failure", "scenario kind: train_failure, weather_delay, peak_demand, maintenance_window, emergency")
	whatifCmd.Flags().StringSliceVar(&whatifTrains, "trains", nil, "affected train IDs")
	whatifCmd.Flags().Float64Var(&whatifMagnitude, "magnitude", 0, "scenario magnitude")
	whatifCmd.Flags().DurationVar(&whatifDuration, "duration", 0, "scenario duration")
	rootCmd.AddCommand(whatifCmd)
}

func runWhatif(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := whatifSnapshot
	if path == "" {
		path = cfg.Schedule.SnapshotPath
	}
	fleet, err := snapshot.Load(path)
	if err != nil {
		return err
	}

	engine, err := induction.NewEngine(cfg.Constraints, logger.New("whatif"), nil, nil)
	if err != nil {
		return err
	}
	sim := whatif.New(engine, logger.New("whatif"))
	report, err := sim.Simulate(ctx, fleet, cfg.Constraints, model.Perturbation{
		Kind:           model.PerturbationKind(whatifScenario),
		AffectedTrains: whatifTrains,
		Magnitude:      whatifMagnitude,
		Duration:       whatifDuration,
	})
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
