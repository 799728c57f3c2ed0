package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fleetgrid/warden/pkg/audit"
	"fleetgrid/warden/pkg/audit/storage"
)

var verifyDB string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log's hash chain",
	Long: `Verify walks the retained audit log and recomputes every chain link.
It reports the first entry whose hash, predecessor link or sequence number
does not match, which is how tampering or out-of-band deletion inside the
retained window is detected.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDB, "db", "data/audit.db", "audit database path")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSQLiteStorage(verifyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	log, err := audit.NewLog(store, nil, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	count, err := store.Count(ctx, &audit.Query{})
	if err != nil {
		return err
	}

	if err := log.Verify(ctx); err != nil {
		return fmt.Errorf("chain verification FAILED: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries, chain intact\n", count)
	return nil
}
