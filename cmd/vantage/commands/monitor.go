package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the position risk monitor",
	Long: `Runs the position monitor loop in the foreground. Open
positions are reloaded from the database (when configured) and
re-assessed on every interval: stop advancement by phase, partial
profit targets, extension and structure-break exits.

Example:
  go run ./cmd/vantage monitor
  MONITOR_CHECK_INTERVAL=1m go run ./cmd/vantage monitor`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	// One immediate sweep so a restart reports state without waiting
	// a full interval.
	a.monitor.CheckAll(ctx)

	fmt.Printf("Position monitor running (interval %s)\n", a.cfg.Monitor.CheckInterval)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.monitor.Stop()
	cancel()

	fmt.Println("Monitor stopped")
	return nil
}
