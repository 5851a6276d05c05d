package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/labfolio/backend/internal/api"
	"github.com/wonny/labfolio/backend/internal/api/handlers"
	"github.com/wonny/labfolio/backend/internal/scheduler"
	"github.com/wonny/labfolio/backend/internal/scheduler/jobs"
	"github.com/wonny/labfolio/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                         - Health check (pings the database)
  GET  /api/factors                    - Factor library
  GET  /api/factors/{id}               - One factor
  GET  /api/portfolios?user_id=        - A user's portfolios (plus the demo)
  GET  /api/portfolios/{id}/holdings   - Parsed holdings file
  GET  /api/models                     - Factor model presets
  POST /api/analysis/validate          - Validate an analysis request
  POST /api/analysis/factor-model      - Run a factor model analysis

Example:
  go run ./cmd/labfolio api
  go run ./cmd/labfolio api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Labfolio API Server ===")

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port":  a.cfg.Port,
		"env":   a.cfg.Env,
		"redis": a.redis.Enabled(),
	}).Info("Initializing API server")

	engine, err := a.analysisService(cmd.Context())
	if err != nil {
		return err
	}

	deps := api.Dependencies{"database": a.db, "redis": nil}
	if a.redis.Enabled() {
		deps["redis"] = a.redis
	}

	router := api.NewRouter(api.Handlers{
		Factors:    handlers.NewFactorHandler(a.factors, redis.NewCache(a.redis, "labfolio"), log),
		Portfolios: handlers.NewPortfolioHandler(a.portfolios, a.holdingsSource(cmd.Context()), log),
		Analysis:   handlers.NewAnalysisHandler(engine, log),
	}, deps, log)

	server := api.New(a.cfg, log, router)

	// the in-process quote cache lives in this process, so its cleanup does too
	if a.memCache != nil {
		sched := scheduler.New(log)
		if err := sched.AddJob(jobs.NewCacheCleanupJob(a.memCache, log)); err != nil {
			return fmt.Errorf("register cache cleanup: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
