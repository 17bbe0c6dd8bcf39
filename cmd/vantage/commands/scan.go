package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vantage/backend/internal/contracts"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a combined SEPA + QM scan",
	Long: `Runs one combined screening scan in the foreground and prints
the ranked candidates per strategy.

Both strategies share a single market environment assessment and a
single price history download; Ctrl+C cancels cooperatively and
prints whatever was already scored.

Example:
  go run ./cmd/vantage scan
  go run ./cmd/vantage scan --top 10 --lookback 250 --persist`,
	RunE: runScan,
}

var (
	scanTopN     int
	scanLookback int
	scanPersist  bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	// Flags
	scanCmd.Flags().IntVar(&scanTopN, "top", 0, "ranked candidates kept per strategy (0 = config default)")
	scanCmd.Flags().IntVar(&scanLookback, "lookback", 0, "history days fetched per ticker (0 = config default)")
	scanCmd.Flags().BoolVar(&scanPersist, "persist", false, "persist results to the database")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.jobs.Submit(contracts.ScanParams{
		TopN:         scanTopN,
		LookbackDays: scanLookback,
		Persist:      scanPersist,
	})
	if err != nil {
		return fmt.Errorf("submit scan: %w", err)
	}

	fmt.Printf("Scan %s started\n", id)

	// Ctrl+C requests cooperative cancellation; the scan still lands
	// in a terminal state with its partial result.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nCancelling scan...")
		a.jobs.Cancel(id)
	}()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	lastLine := ""
	for range tick.C {
		view, ok := a.jobs.Poll(id)
		if !ok {
			return fmt.Errorf("scan %s disappeared", id)
		}

		line := fmt.Sprintf("[%-14s] %5.1f%%  %s", view.Progress.Stage, view.Progress.Percent, view.Progress.Message)
		if line != lastLine {
			fmt.Println(line)
			lastLine = line
		}

		if view.Status == contracts.JobDone {
			printCombinedResult(view.Result)
			return nil
		}
		if view.Status == contracts.JobError {
			return fmt.Errorf("scan failed: %s", view.Error)
		}
	}
	return nil
}

func printCombinedResult(result *contracts.CombinedResult) {
	if result == nil {
		return
	}

	fmt.Println()
	fmt.Println("=== Combined Scan Result ===")
	fmt.Printf("Regime: %s (%s close %.2f)\n", result.Regime.State, result.Regime.Benchmark, result.Regime.Close)
	fmt.Printf("Union: %d tickers, %d fetched\n", result.UnionSize, result.Fetched)
	fmt.Printf("Duration: %.1fs\n", result.FinishedAt.Sub(result.StartedAt).Seconds())

	printStrategyResult(result.SEPA)
	printStrategyResult(result.QM)
}

func printStrategyResult(strat *contracts.StrategyResult) {
	if strat == nil {
		return
	}

	fmt.Printf("\n--- %s ---\n", strat.Strategy)
	if strat.Blocked {
		fmt.Println("Blocked: bear market")
		return
	}
	if strat.Error != "" {
		fmt.Printf("Failed: %s\n", strat.Error)
		return
	}

	fmt.Printf("Stage1: %d  Gates: %d  Passed: %d\n", strat.Stage1Size, strat.GateSize, len(strat.Passed))
	if len(strat.Passed) == 0 {
		return
	}

	fmt.Printf("%-8s %6s %-12s %10s %10s\n", "TICKER", "STARS", "RATING", "ENTRY", "STOP")
	for _, c := range strat.Passed {
		fmt.Printf("%-8s %6.1f %-12s %10.2f %10.2f\n",
			c.Ticker, c.StarRating, c.Recommendation, c.TradePlan.Entry, c.TradePlan.InitialStop)
	}
}
