package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gridengine/internal/api"
	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/engine"
	"gridengine/internal/grouplog"
	"gridengine/internal/orchestrator"
	"gridengine/internal/repository"
	"gridengine/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer logger.Sync()

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		logger.Fatal("connect to database", utils.Err(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	repos := engine.Repositories{
		State:  repository.NewStateRepository(db),
		Pair:   repository.NewPairRepository(db),
		Ticket: repository.NewTicketRepository(db),
		Trade:  repository.NewTradeRepository(db),
	}

	hub := grouplog.NewHub()
	go hub.Run()
	history := grouplog.NewHistoryWriter(grouplog.NewHubWriter(hub, logger))

	adapter := resolveAdapter(logger)
	orch := orchestrator.New(cfg.Engine, adapter, orchestrator.StaticRepositoryFactory{Repos: repos}, history, logger)

	symbols := strings.Split(getEnv("GRIDENGINE_SYMBOLS", "BTCUSDT"), ",")
	pollInterval := getEnvDuration("GRIDENGINE_POLL_INTERVAL", 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pollSymbols(ctx, orch, adapter, symbols, pollInterval, logger)

	router := api.SetupRoutes(&api.Dependencies{
		Orchestrator: orch,
		History:      history,
		Hub:          hub,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting control surface", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", utils.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := orch.ShutdownAll(shutdownCtx); err != nil {
		logger.Error("error persisting engines on shutdown", utils.Err(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", utils.Err(err))
	}
	logger.Info("shutdown complete")
}

// pollSymbols pulls a tick for each configured symbol on a fixed
// interval and dispatches it to the orchestrator, mirroring the
// teacher's ticker-driven polling loop.
func pollSymbols(ctx context.Context, orch *orchestrator.Orchestrator, adapter broker.Adapter, symbols []string, interval time.Duration, logger *utils.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range symbols {
				symbol = strings.TrimSpace(symbol)
				if symbol == "" {
					continue
				}

				quote, err := adapter.Tick(ctx, symbol)
				if err != nil {
					logger.Warn("tick fetch failed", utils.Symbol(symbol), utils.Err(err))
					continue
				}

				positions, err := adapter.OpenPositions(ctx, symbol)
				if err != nil {
					logger.Warn("open positions fetch failed", utils.Symbol(symbol), utils.Err(err))
					continue
				}

				if err := orch.DispatchTick(ctx, symbol, quote.Ask, quote.Bid, uint32(len(positions))); err != nil {
					logger.Error("tick dispatch failed", utils.Symbol(symbol), utils.Err(err))
				}
			}
		}
	}
}

// resolveAdapter selects the broker adapter from GRIDENGINE_BROKER:
// "bybit" wires the live REST/WebSocket adapter against
// GRIDENGINE_BYBIT_API_KEY/GRIDENGINE_BYBIT_API_SECRET, anything else
// falls back to the in-memory double.
func resolveAdapter(logger *utils.Logger) broker.Adapter {
	switch getEnv("GRIDENGINE_BROKER", "fake") {
	case "bybit":
		key := os.Getenv("GRIDENGINE_BYBIT_API_KEY")
		secret := os.Getenv("GRIDENGINE_BYBIT_API_SECRET")
		if key == "" || secret == "" {
			logger.Warn("GRIDENGINE_BROKER=bybit but credentials are missing; falling back to the in-memory double")
			return broker.NewFake()
		}
		return broker.NewBybitAdapter(key, secret, logger)
	default:
		return broker.NewFake()
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
