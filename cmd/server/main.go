package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jlancaster7/allocator-backend/internal/clients/aladdin"
	"github.com/jlancaster7/allocator-backend/internal/config"
	"github.com/jlancaster7/allocator-backend/internal/database"
	"github.com/jlancaster7/allocator-backend/internal/events"
	"github.com/jlancaster7/allocator-backend/internal/modules/allocation"
	allocationhandlers "github.com/jlancaster7/allocator-backend/internal/modules/allocation/handlers"
	"github.com/jlancaster7/allocator-backend/internal/modules/compliance"
	"github.com/jlancaster7/allocator-backend/internal/modules/portfolio"
	portfoliohandlers "github.com/jlancaster7/allocator-backend/internal/modules/portfolio/handlers"
	"github.com/jlancaster7/allocator-backend/internal/modules/universe"
	universehandlers "github.com/jlancaster7/allocator-backend/internal/modules/universe/handlers"
	"github.com/jlancaster7/allocator-backend/internal/scheduler"
	"github.com/jlancaster7/allocator-backend/internal/server"
	"github.com/jlancaster7/allocator-backend/pkg/logger"
)

// analyticsStaleAfter bounds how old stored analytics may be before an
// allocation forces a vendor refresh.
const analyticsStaleAfter = time.Hour

func main() {
	// Load configuration first; the log level comes from it
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting allocation service")

	// Reference data: securities, portfolio groups, accounts, positions
	refdataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "refdata.db"),
		Profile: database.ProfileStandard,
		Name:    "refdata",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open reference database")
	}
	defer refdataDB.Close()

	// Audit trail gets the ledger profile: fsync on every write
	auditDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "audit.db"),
		Profile: database.ProfileLedger,
		Name:    "audit",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audit database")
	}
	defer auditDB.Close()

	if err := universe.InitSchema(refdataDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize universe schema")
	}
	if err := portfolio.InitSchema(refdataDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio schema")
	}
	if err := allocation.InitAuditSchema(auditDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit schema")
	}

	// Repositories and services
	universeRepo := universe.NewRepository(refdataDB.Conn(), log)
	portfolioRepo := portfolio.NewRepository(refdataDB.Conn(), log)
	auditRepo := allocation.NewAuditRepository(auditDB.Conn(), log)

	vendor := aladdin.NewClient(cfg.AladdinBaseURL, cfg.AladdinTimeout, cfg.MockVendorData, log)
	universeService := universe.NewService(universeRepo, vendor, analyticsStaleAfter, log)

	// Development data, only when running against mock vendor data
	ctx := context.Background()
	if cfg.MockVendorData {
		cusips, err := universe.Seed(ctx, universeRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed security universe")
		}
		if err := portfolio.Seed(ctx, portfolioRepo, cusips, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed portfolio data")
		}
	}

	bus := events.NewBus()
	checker := compliance.NewChecker(refdataDB.Conn(), log)
	validator := allocation.NewValidator(checker, log)

	allocationService := allocation.NewService(
		portfolioRepo,
		universeService,
		validator,
		auditRepo,
		bus,
		allocation.Defaults{
			MinDenomination: cfg.Engine.MinDenomination,
			MinAllocation:   cfg.Engine.MinAllocation,
			Tolerance:       cfg.Engine.Tolerance,
			MaxIterations:   cfg.Engine.MaxIterations,
			SolverTimeout:   cfg.Engine.SolverTimeout,
			RemainderPolicy: allocation.RemainderPolicy(cfg.Engine.RemainderPolicy),
		},
		log,
	)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", scheduler.NewAnalyticsRefreshJob(universeService, bus, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register analytics refresh job")
	}
	if err := sched.AddJob("@daily", scheduler.NewAuditPruneJob(auditRepo, cfg.AuditRetention, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register audit prune job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:              cfg.Port,
		DevMode:           cfg.DevMode,
		Log:               log,
		AllocationHandler: allocationhandlers.NewHandler(allocationService, auditRepo, log),
		PortfolioHandler:  portfoliohandlers.NewHandler(portfolioRepo, log),
		UniverseHandler:   universehandlers.NewHandler(universeRepo, universeService, log),
		SystemHandler:     server.NewSystemHandlers(refdataDB, auditDB, bus, log),
		EventBus:          bus,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
