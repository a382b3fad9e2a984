package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/finance-tracker/internal/config"
	gateway "github.com/nimasrn/finance-tracker/internal/gateways"
	"github.com/nimasrn/finance-tracker/internal/handlers"
	"github.com/nimasrn/finance-tracker/internal/insights"
	"github.com/nimasrn/finance-tracker/internal/queue"
	"github.com/nimasrn/finance-tracker/internal/repository"
	"github.com/nimasrn/finance-tracker/internal/seed"
	"github.com/nimasrn/finance-tracker/internal/services"
	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/nimasrn/finance-tracker/pkg/pg"
	"github.com/nimasrn/finance-tracker/pkg/prom"
	"github.com/nimasrn/finance-tracker/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting finance api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.CORSMiddleware(cfg.CorsAllowOrigin))
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "finance-api",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	events, err := queue.NewQueue(redisAdap, queue.EventsConfig(cfg))
	if err != nil {
		logger.Error("failed creating events queue", "error", err)
		return
	}

	if cfg.MetricsListenAddr != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go prom.ListenAndServer(cfg.MetricsListenAddr, "/metrics")
	}

	transactionRepo := repository.NewTransactionRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)

	if cfg.SeedOnStart {
		n, err := seed.LoadFile(context.Background(), transactionRepo, cfg.SeedCSVPath)
		switch {
		case errors.Is(err, seed.ErrStoreNotEmpty):
			logger.Info("skipping seed, transactions already present")
		case err != nil:
			logger.Error("failed to seed transactions", "path", cfg.SeedCSVPath, "error", err)
			return
		default:
			logger.Info("seeded transactions on start", "count", n, "path", cfg.SeedCSVPath)
		}
	}

	generator, llm := newGenerator(cfg)
	cache := insights.NewCache(redisAdap, cfg.InsightsCacheTTL)

	// services
	transactionService := services.NewTransactionService(transactionRepo, events, cache)
	insightService := services.NewInsightService(transactionRepo, generator, cache)
	budgetService := services.NewBudgetService(budgetRepo, transactionRepo)
	logger.Info("insight strategy selected", "strategy", insightService.Strategy())

	// handlers
	transactionHandler := handlers.NewTransactionHandler(transactionService, insightService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	deps := map[string]handlers.Pinger{"postgres": db, "redis": redisAdap}
	healthHandler := handlers.NewHealthHandler(deps)

	g := s.Router.Group("/api")
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterBudgetRoutes(g, budgetHandler)
	handlers.RegisterHealthRoutes(s.Router, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	logger.Info("shutting down")
	s.Shutdown()
	if err := events.Stop(5 * time.Second); err != nil {
		logger.Warn("failed to stop events queue", "error", err)
	}
	if llm != nil {
		st := llm.Stats()
		logger.Info("ollama client stats", "state", st.State, "requests", st.TotalRequests,
			"success_rate", st.SuccessRate, "p95_ms", st.P95LatencyMs)
		_ = llm.Close()
	}
}

// newGenerator picks the insight strategy once at startup. The generative
// strategy is used only when the LLM is enabled and answers a ping; the
// client is returned so it can be closed on shutdown.
func newGenerator(cfg *config.Config) (insights.Generator, *gateway.OllamaClient) {
	if !cfg.OllamaEnabled {
		return insights.NewRuleBased(), nil
	}

	client, err := gateway.NewOllamaClient(gateway.OllamaConfig{
		BaseURL:                 cfg.OllamaBaseURL,
		Model:                   cfg.OllamaModel,
		Timeout:                 cfg.OllamaTimeout,
		CircuitBreakerThreshold: cfg.OllamaCircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.OllamaCircuitBreakerTimeout,
	})
	if err != nil {
		logger.Warn("invalid ollama settings, using rule-based insights", "error", err)
		return insights.NewRuleBased(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		logger.Warn("ollama is not reachable, insights will fall back per request", "url", cfg.OllamaBaseURL, "error", err)
	}
	if err := client.RegisterMetrics(); err != nil {
		logger.Warn("failed to register ollama metrics", "error", err)
	}
	return insights.NewGenerative(client, cfg.OllamaTimeout), client
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
