package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vantage/backend/internal/api"
	"github.com/wonny/vantage/backend/internal/api/handlers"
	"github.com/wonny/vantage/backend/internal/scheduler"
	"github.com/wonny/vantage/backend/internal/scheduler/jobs"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server together with the nightly scan
scheduler and the position risk monitor.

Endpoints:
  GET    /health                          - Health check
  POST   /api/scan                        - Submit a combined scan
  GET    /api/scans                       - List scan jobs
  GET    /api/scan/{id}                   - Poll scan progress and result
  DELETE /api/scan/{id}                   - Cancel a running scan
  GET    /api/scan/{id}/stream            - WebSocket progress stream
  GET    /api/scan/history/{ticker}       - Persisted scored rows by ticker
  GET    /api/positions                   - List monitored positions
  POST   /api/positions                   - Add a position
  DELETE /api/positions/{ticker}          - Stop monitoring a position
  GET    /api/positions/signals       - Recent risk assessments
  POST   /api/positions/check             - Run one assessment pass now

Example:
  go run ./cmd/vantage api
  go run ./cmd/vantage api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	apiNoScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().BoolVar(&apiNoScheduler, "no-scheduler", false, "disable the nightly scan scheduler")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.logger
	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// Handlers and router
	scanHandler := handlers.NewScanHandler(a.jobs, a.scanRepo, log)
	positionHandler := handlers.NewPositionHandler(a.monitor, log)
	router := api.NewRouter(scanHandler, positionHandler, log)
	server := api.New(a.cfg, log, router)

	// Position monitor loop
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	if err := a.monitor.Start(monitorCtx); err != nil {
		return fmt.Errorf("start position monitor: %w", err)
	}

	// Scheduler
	var sched *scheduler.Scheduler
	if !apiNoScheduler {
		sched = scheduler.New(log)
		if err := sched.AddJob(jobs.NewNightlyScanJob(a.jobs, log)); err != nil {
			return fmt.Errorf("register nightly scan job: %w", err)
		}
		if err := sched.AddJob(jobs.NewPositionCheckJob(a.monitor, log)); err != nil {
			return fmt.Errorf("register position check job: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	a.monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
