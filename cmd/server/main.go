package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpilot/stockpilot/internal/config"
	"github.com/stockpilot/stockpilot/internal/database"
	"github.com/stockpilot/stockpilot/internal/modules/backtest"
	"github.com/stockpilot/stockpilot/internal/modules/optimizer"
	"github.com/stockpilot/stockpilot/internal/modules/rebalancing"
	"github.com/stockpilot/stockpilot/internal/modules/screening"
	"github.com/stockpilot/stockpilot/internal/modules/sentiment"
	"github.com/stockpilot/stockpilot/internal/scheduler"
	"github.com/stockpilot/stockpilot/internal/server"
	"github.com/stockpilot/stockpilot/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting StockPilot")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Load Fear & Greed history. The backtest degrades to neutral sentiment
	// when the feed is unreachable.
	var sentimentSource backtest.SentimentSource
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if idx, err := sentiment.Load(ctx, sentiment.NewHTTPFetcher(cfg.FearGreedURL), 0, log); err != nil {
		log.Warn().Err(err).Msg("Fear/greed history unavailable, sentiment disabled")
	} else {
		sentimentSource = idx
	}
	cancel()

	// Optional fundamentals snapshot for the PER quality screen.
	var qualitySource backtest.QualitySource
	if cfg.FundamentalsPath != "" {
		fetcher, err := screening.NewFileFetcher(cfg.FundamentalsPath)
		if err != nil {
			log.Warn().Err(err).Msg("Fundamentals snapshot unavailable, quality screen disabled")
		} else {
			qualitySource = screening.NewCalculator(fetcher, fetcher.SectorAvgPER(), log)
		}
	}

	// Wire services
	engine := backtest.NewEngine(sentimentSource, qualitySource, log)
	backtestRepo := backtest.NewRepository(db, log)
	planner := rebalancing.NewPlanner(log)
	planRepo := rebalancing.NewRepository(db, log)
	opt := optimizer.New(engine, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	if err := registerJobs(sched, planner, planRepo, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		DB:          db,
		Config:      cfg,
		DevMode:     cfg.DevMode,
		Backtest:    backtest.NewBacktestHandlers(engine, backtestRepo, log),
		Optimizer:   optimizer.NewOptimizerHandlers(opt, log),
		Rebalancing: rebalancing.NewRebalancingHandlers(planner, planRepo, cfg.Portfolio, log),
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, planner *rebalancing.Planner, planRepo *rebalancing.Repository, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.RebalanceEnabled {
		return nil
	}

	return sched.AddJob(cfg.RebalanceCron, scheduler.NewRebalanceJob(planner, planRepo, log))
}
