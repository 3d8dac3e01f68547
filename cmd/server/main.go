/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the banking ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (cobra)
  2. Load configuration (file + BANK_* environment variables)
  3. Initialize SQLite store
  4. Build the ledger engine and banking services
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --port    HTTP server port (overrides config)
  --db      SQLite database path (overrides config)
            Use ":memory:" for an in-memory database
  --config  Config file path (optional, YAML)
  --sweep   Run the scheduled-transfer sweeper in the background
  --seed    Load the demo dataset on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the sweeper, if running
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server --db="./data/bank.db"

  # Run with in-memory database and demo data
  ./server --db=":memory:" --seed

  # Run with the background sweeper
  ./server --sweep

ENVIRONMENT:
  BANK_PORT, BANK_SQLITE_PATH, BANK_WITHDRAWAL_TAX_RATE, ... (see config)

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration schema and defaults
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/meridian/bank-ledger/api"
	"github.com/meridian/bank-ledger/bank"
	"github.com/meridian/bank-ledger/config"
	"github.com/meridian/bank-ledger/ledger"
	"github.com/meridian/bank-ledger/store/sqlite"
)

var (
	flagPort   int
	flagDB     string
	flagConfig string
	flagSweep  bool
	flagSeed   bool
)

func main() {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Banking ledger HTTP server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.Flags().IntVar(&flagPort, "port", 0, "HTTP server port (overrides config)")
	root.Flags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
	root.Flags().StringVar(&flagConfig, "config", "", "config file path")
	root.Flags().BoolVar(&flagSweep, "sweep", false, "run the scheduled-transfer sweeper")
	root.Flags().BoolVar(&flagSeed, "seed", false, "load the demo dataset on startup")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "bank",
	})

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagDB != "" {
		cfg.SQLitePath = flagDB
	}

	// Store
	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	logger.Info("database ready", "path", cfg.SQLitePath)

	// Engine and services
	engine := ledger.NewEngine(store, cfg.LedgerConfig())

	billers, err := cfg.BillerRegistry()
	if err != nil {
		return fmt.Errorf("biller registry: %w", err)
	}

	accounts := bank.NewAccountService(store, store, store)
	money := bank.NewMoneyService(engine, billers)
	goals := bank.NewGoalService(store, store)
	requests := bank.NewRequestService(engine, store, store, store)
	schedules := bank.NewScheduleService(engine, store, store)
	gifts := bank.NewGiftService(engine, store)
	interest := &bank.InterestRunner{
		Engine:       engine,
		Store:        store,
		SkipUsername: cfg.AdminUsername,
	}
	otp := bank.NewOTPGate(cfg.OTPThreshold())

	handler := &api.Handler{
		Store:         store,
		Accounts:      accounts,
		Money:         money,
		Goals:         goals,
		Requests:      requests,
		Schedules:     schedules,
		Gifts:         gifts,
		Interest:      interest,
		OTP:           otp,
		Billers:       billers,
		Notifications: store,
		Audit:         store,
		Clock:         ledger.SystemClock{},
		Log:           logger,
	}

	if flagSeed {
		usernames, err := handler.SeedDataset(context.Background())
		if err != nil {
			logger.Warn("demo seed failed", "err", err)
		} else {
			logger.Info("demo dataset loaded", "accounts", len(usernames))
		}
	}

	var sweeper *api.Sweeper
	if flagSweep || cfg.Sweep.Enabled {
		sweeper = api.NewSweeper(store, schedules, logger)
		if cfg.Sweep.IntervalSeconds > 0 {
			sweeper.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second
		}
		sweeper.Start()
	}

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
