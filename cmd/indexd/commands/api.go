package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexforge/backend/internal/api"
	"github.com/indexforge/backend/internal/api/handlers"
)

// apiCmd starts the REST API server.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Start the REST API server.

Endpoints:
  GET    /health                          - Health check
  GET    /metrics                         - Prometheus metrics
  GET    /api/indexes                     - List index definitions
  POST   /api/indexes                     - Create an index definition
  GET    /api/indexes/{id}                - Get one definition
  PUT    /api/indexes/{id}                - Update a definition
  DELETE /api/indexes/{id}                - Delete a definition
  POST   /api/indexes/{id}/calculate      - Value the index for a date
  POST   /api/indexes/{id}/rebalance      - Apply a rebalance
  POST   /api/indexes/{id}/backtest       - Replay over a date range
  GET    /api/indexes/{id}/performance    - Trailing performance summary
  GET    /api/indexes/{id}/values         - Stored values in a range
  GET    /api/indexes/{id}/constituents   - Membership as of a date
  GET    /api/securities                  - List catalog securities
  GET    /api/securities/{symbol}         - Get one security

Example:
  go run ./cmd/indexd api
  go run ./cmd/indexd api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.Config.Port = apiPort
	}

	indexHandler := handlers.NewIndexHandler(
		d.Definitions, d.Memberships, d.Securities, d.Values,
		d.Valuator, d.Rebalancer, d.Backtester, d.Strategies, d.Logger,
	)
	securityHandler := handlers.NewSecurityHandler(d.Securities, d.Logger)

	routerCfg := api.RouterConfig{
		Indexes:    indexHandler,
		Securities: securityHandler,
	}
	if d.Config.MetricsEnabled {
		routerCfg.Metrics = api.MetricsHandler()
	}

	server := api.New(d.Config, d.Logger, api.NewRouter(routerCfg, d.Logger))

	// SCHEDULER_ENABLED runs the cron jobs in-process alongside the API.
	if d.Config.Scheduler.Enabled {
		sched, _, err := buildScheduler(d)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		d.Logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
