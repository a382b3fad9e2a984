package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/finance-tracker/internal/config"
	gateway "github.com/nimasrn/finance-tracker/internal/gateways"
	"github.com/nimasrn/finance-tracker/internal/insights"
	"github.com/nimasrn/finance-tracker/internal/processor"
	"github.com/nimasrn/finance-tracker/internal/queue"
	"github.com/nimasrn/finance-tracker/internal/repository"
	"github.com/nimasrn/finance-tracker/internal/services"
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

const defaultMetricsAddr = ":9100"

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting insight refresh worker", "version", version, "commit", commit, "date", date)

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
		ClientName: "finance-worker",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	// a refresh loads two months and may wait for one LLM call
	processingTimeout := processor.ProcessingTimeout
	var generator insights.Generator = insights.NewRuleBased()
	var llm *gateway.OllamaClient
	if cfg.OllamaEnabled {
		client, err := gateway.NewOllamaClient(gateway.OllamaConfig{
			BaseURL:                 cfg.OllamaBaseURL,
			Model:                   cfg.OllamaModel,
			Timeout:                 cfg.OllamaTimeout,
			CircuitBreakerThreshold: cfg.OllamaCircuitBreakerThreshold,
			CircuitBreakerTimeout:   cfg.OllamaCircuitBreakerTimeout,
		})
		if err != nil {
			logger.Error("failed to create ollama client", "error", err)
			return
		}
		defer client.Close()
		llm = client
		generator = insights.NewGenerative(client, cfg.OllamaTimeout)
		processingTimeout += cfg.OllamaTimeout
	}

	transactionRepo := repository.NewTransactionRepository(db)
	cache := insights.NewCache(redisAdap, cfg.InsightsCacheTTL)
	insightService := services.NewInsightService(transactionRepo, generator, cache)

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	service, err := processor.NewProcessorService(redisAdap,
		processor.NewRefreshProcessor(insightService, idempotencyService),
		processor.ServiceConfig{
			Queue:             queue.EventsConfig(cfg),
			Consumers:         2,
			Workers:           cfg.WorkerPoolSize,
			ProcessingTimeout: processingTimeout,
		})
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if llm != nil {
		if err := llm.RegisterMetrics(); err != nil {
			logger.Warn("failed to register ollama metrics", "error", err)
		}
	}
	metricsAddr := cfg.MetricsListenAddr
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}
	go prom.ListenAndServer(metricsAddr, "/metrics")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}
	logger.Info("worker started", "strategy", insightService.Strategy(), "stream", cfg.EventsStream, "workers", cfg.WorkerPoolSize)

	<-c
	logger.Info("shutting down worker")
	done := make(chan struct{})
	go func() {
		service.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(processor.ShutdownTimeout):
		logger.Warn("worker did not stop in time")
	}
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
