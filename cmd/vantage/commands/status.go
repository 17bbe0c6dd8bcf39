package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/config"
	"github.com/wonny/vantage/backend/pkg/httputil"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scan jobs on a running API server",
	Long: `Queries a running API server and prints its scan jobs,
newest first.

Example:
  go run ./cmd/vantage status
  go run ./cmd/vantage status --addr http://localhost:8090`,
	RunE: runStatus,
}

var statusAddr string

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "API server address (default http://localhost:$PORT)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	addr := statusAddr
	if addr == "" {
		addr = "http://localhost:" + cfg.Port
	}

	client := httputil.NewWithTimeout(log, 10*time.Second)
	resp, err := client.Get(context.Background(), addr+"/api/scans")
	if err != nil {
		return fmt.Errorf("query %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var views []contracts.JobView
	if err := json.Unmarshal(body, &views); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if len(views) == 0 {
		fmt.Println("No scan jobs")
		return nil
	}

	fmt.Printf("%-36s %-8s %-14s %7s  %s\n", "JOB", "STATUS", "STAGE", "PCT", "STARTED")
	for _, v := range views {
		fmt.Printf("%-36s %-8s %-14s %6.1f%%  %s\n",
			v.ID, v.Status, v.Progress.Stage, v.Progress.Percent,
			v.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
