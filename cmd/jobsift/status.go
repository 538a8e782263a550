package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print per-platform breaker state and the last run summary",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	states, err := st.LoadAdapterStates()
	if err != nil {
		return fmt.Errorf("loading adapter states: %w", err)
	}

	platforms := make([]string, 0, len(states))
	for p := range states {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	if len(platforms) == 0 {
		fmt.Println("No adapter state recorded yet; run `jobsift once` first.")
	} else {
		fmt.Printf("%-16s %-10s %-9s %-20s %s\n", "PLATFORM", "BREAKER", "FAILURES", "COOLDOWN UNTIL", "LAST SUCCESS")
		for _, p := range platforms {
			s := states[p]
			cooldown, success := "-", "-"
			if !s.CooldownUntil.IsZero() {
				cooldown = s.CooldownUntil.Format(time.RFC3339)
			}
			if !s.LastSuccess.IsZero() {
				success = s.LastSuccess.Format(time.RFC3339)
			}
			fmt.Printf("%-16s %-10s %-9d %-20s %s\n", p, s.State, s.Failures, cooldown, success)
		}
	}

	last, err := st.LastRun()
	if err != nil {
		return fmt.Errorf("loading last run: %w", err)
	}
	if last == nil {
		fmt.Println("\nNo runs recorded.")
		return nil
	}

	fmt.Printf("\nLast run %s (%s, took %s)\n", last.ID,
		last.FinishedAt.Format(time.RFC3339),
		last.FinishedAt.Sub(last.StartedAt).Round(time.Second))
	fmt.Printf("  raw=%d normalized=%d deduped=%d inserted=%d updated=%d degraded=%v zero_yield=%v\n",
		last.RawCount, last.Normalized, last.Deduped, last.Inserted, last.Updated, last.Degraded(), last.ZeroYield())
	for _, a := range last.Adapters {
		line := fmt.Sprintf("  %-16s %-16s fetched=%d", a.Platform, a.Outcome, a.Fetched)
		if a.Err != "" {
			line += "  error: " + a.Err
		}
		fmt.Println(line)
	}
	return nil
}
