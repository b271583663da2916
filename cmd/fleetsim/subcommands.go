package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fleetsim/fleetsim/internal/config"
	"github.com/fleetsim/fleetsim/internal/sim"
	"github.com/fleetsim/fleetsim/internal/store"
	"github.com/fleetsim/fleetsim/internal/telemetry"
	"github.com/fleetsim/fleetsim/pkg/api"
)

func telemetryCollector(cfg config.Config) *telemetry.Collector {
	return telemetry.NewCollector(cfg.Telemetry.Enabled, log.Logger)
}

// Initialize configuration
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file. Run this the first time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("config already exists at %s\n", path)
				return nil
			}
			if err := config.Write(path, config.Default()); err != nil {
				return err
			}
			fmt.Printf("wrote default config to %s\n", path)
			return nil
		},
	}
}

// Run a chaos scenario
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulated cluster scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			services, _ := cmd.Flags().GetInt("services")
			duration, _ := cmd.Flags().GetDuration("duration")
			actionEvery, _ := cmd.Flags().GetDuration("action-every")
			maxInstances, _ := cmd.Flags().GetInt("max-instances")
			seed, _ := cmd.Flags().GetInt64("seed")
			export, _ := cmd.Flags().GetString("export")
			if export == "" {
				export = cfg.Export.Path
			}

			tel := telemetryCollector(cfg)
			defer tel.Shutdown()

			orch := sim.New(cfg.SimOptions(log.Logger, tel))
			defer orch.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report := sim.Run(ctx, orch, sim.Scenario{
				Services:     services,
				Duration:     duration,
				ActionEvery:  actionEvery,
				MaxInstances: maxInstances,
				Seed:         seed,
			})
			printReport(report)

			if export != "" {
				st, err := store.Open(export)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.SaveRun(cmd.Context(), report); err != nil {
					return err
				}
				log.Info().Str("run", report.RunID).Str("path", export).Msg("run archived")
			}
			return nil
		},
	}
	cmd.Flags().Int("services", 3, "number of services to provision")
	cmd.Flags().Duration("duration", 30*time.Second, "how long to run the scenario")
	cmd.Flags().Duration("action-every", 3*time.Second, "interval between chaos actions")
	cmd.Flags().Int("max-instances", 5, "upper bound for random scale targets")
	cmd.Flags().Int64("seed", 0, "RNG seed (0 picks a time-based one)")
	cmd.Flags().String("export", "", "archive the run to a SQLite file at this path")
	return cmd
}

func printReport(report api.RunReport) {
	ids := make([]string, 0, len(report.Services))
	for id := range report.Services {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("run %s (%s)\n\n", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Printf("%-10s %-13s %10s %6s %6s %12s\n", "SERVICE", "STATE", "INSTANCES", "CPU", "MEM", "THROUGHPUT")
	for _, id := range ids {
		svc := report.Services[id]
		fmt.Printf("%-10s %-13s %10d %5.0f%% %5.0f%% %12.0f\n",
			svc.ID, svc.State, svc.InstanceCount, svc.CPULoad, svc.MemoryLoad, svc.Throughput)
	}

	fmt.Printf("\ncounters: provisioned=%d faults=%d recoveries=%d\n",
		report.Counters.Provisioned, report.Counters.FailedInjections, report.Counters.RecoveriesInitiated)

	fmt.Println("\nrecent events:")
	for _, ev := range tail(report.Events, 10) {
		fmt.Printf("  %s  %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Message)
	}
	fmt.Println("\nrecent alerts:")
	for _, al := range tailAlerts(report.Alerts, 10) {
		fmt.Printf("  %s  [%s] %s\n", al.Timestamp.Format(time.TimeOnly), al.Severity, al.Message)
	}
}

func tail(events []api.Event, k int) []api.Event {
	if len(events) > k {
		return events[:k]
	}
	return events
}

func tailAlerts(alerts []api.Alert, k int) []api.Alert {
	if len(alerts) > k {
		return alerts[:k]
	}
	return alerts
}
