package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"fleetgrid/warden/pkg/audit"
	"fleetgrid/warden/pkg/audit/storage"
)

var (
	statsDB       string
	statsTenant   string
	statsDecision string
	statsSince    string
	statsJSON     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate decision statistics from the audit log",
	Long: `Stats aggregates the audit log: total decisions, decisions by outcome,
per-rule match counts and per-tenant volumes. Aggregates are computed from
the log itself, so they always agree with what was recorded.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsDB, "db", "data/audit.db", "audit database path")
	statsCmd.Flags().StringVar(&statsTenant, "tenant", "", "limit to one tenant")
	statsCmd.Flags().StringVar(&statsDecision, "decision", "", "limit to one decision (allow, warn, require_approval, block)")
	statsCmd.Flags().StringVar(&statsSince, "since", "", "only entries after this RFC 3339 time")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSQLiteStorage(statsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	query := &audit.Query{
		TenantID: statsTenant,
		Decision: statsDecision,
	}
	if statsSince != "" {
		since, err := time.Parse(time.RFC3339, statsSince)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		query.Start = &since
	}

	stats, err := store.Stats(context.Background(), query)
	if err != nil {
		return err
	}

	if statsJSON {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Entries: %d\n\n", stats.Total)

	fmt.Fprintln(out, "By decision:")
	for _, k := range sortedStatKeys(stats.ByDecision) {
		fmt.Fprintf(out, "  %-18s %d\n", k, stats.ByDecision[k])
	}

	if len(stats.ByTenant) > 0 {
		fmt.Fprintln(out, "\nBy tenant:")
		for _, k := range sortedStatKeys(stats.ByTenant) {
			fmt.Fprintf(out, "  %-18s %d\n", k, stats.ByTenant[k])
		}
	}

	if len(stats.ByRule) > 0 {
		fmt.Fprintln(out, "\nRule matches:")
		for _, k := range sortedStatKeys(stats.ByRule) {
			fmt.Fprintf(out, "  %-38s %d\n", k, stats.ByRule[k])
		}
	}
	return nil
}

func sortedStatKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
