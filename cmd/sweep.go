package cmd

import (
	"fmt"

	"forum-keeper/lifecycle"

	"github.com/spf13/cobra"
)

var sweepOnly string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the resolve-lock and stale sweeps once and exit",
	Long: `Runs one pass of each sweep against the configured database and Discord,
without opening the gateway connection. Useful to reconcile after downtime.

Examples:
  forum-keeper sweep                # Both sweeps
  forum-keeper sweep --only lock    # Only fire due resolve locks`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepOnly, "only", "", "Run a single sweep (lock, stale)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepOnly != "" && sweepOnly != "lock" && sweepOnly != "stale" {
		return fmt.Errorf("unknown sweep %q (want lock or stale)", sweepOnly)
	}

	logger, err := newLogger(v)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	a, err := newApp(ctx, v, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if sweepOnly != "stale" {
		rep, err := a.engine.RunLockSweep(ctx)
		if err != nil {
			return fmt.Errorf("lock sweep: %w", err)
		}
		printReport(cmd, "lock", rep)
	}
	if sweepOnly != "lock" {
		rep, err := a.engine.RunStaleSweep(ctx)
		if err != nil {
			return fmt.Errorf("stale sweep: %w", err)
		}
		printReport(cmd, "stale", rep)
	}
	return nil
}

func printReport(cmd *cobra.Command, kind string, rep lifecycle.SweepReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-5s pass %s: locked=%d warned=%d closed=%d removed=%d skipped=%d failed=%d\n",
		kind, rep.PassID, rep.Locked, rep.Warned, rep.Closed, rep.Removed, rep.Skipped, rep.Failed)
}
