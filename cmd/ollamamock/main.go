package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GenerateRequest mirrors the subset of the Ollama generate API the tracker sends.
type GenerateRequest struct {
	Model  string `json:"model" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Response   string    `json:"response"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
}

type TagsResponse struct {
	Models []ModelTag `json:"models"`
}

type ModelTag struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
}

// MockOllama answers generate calls with a canned sentence built from the
// prompt, failing a configurable share of them.
type MockOllama struct {
	mu          sync.Mutex
	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	models      []string
	instanceID  string
	rng         *rand.Rand
}

func NewMockOllama(failureRate float64, minDelay, maxDelay time.Duration, models []string) *MockOllama {
	return &MockOllama{
		failureRate: failureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		models:      models,
		instanceID:  "MOCK_OLLAMA_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockOllama) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockOllama) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.failureRate
}

func (m *MockOllama) setFailureRate(rate float64) {
	m.mu.Lock()
	m.failureRate = rate
	m.mu.Unlock()
}

func (m *MockOllama) currentFailureRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failureRate
}

func (m *MockOllama) hasModel(name string) bool {
	for _, md := range m.models {
		if md == name {
			return true
		}
	}
	return false
}

// completion picks the prompt's Month, Total and Top Category lines and
// turns them into one sentence.
func completion(prompt string) string {
	fields := map[string]string{}
	for _, line := range strings.Split(prompt, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	month, total, top := fields["Month"], fields["Total"], fields["Top Category"]
	if month == "" || total == "" {
		return "Spending looks steady this month; review recurring charges to save a little more."
	}
	if top == "" {
		top = "Uncategorized"
	}
	return fmt.Sprintf("In %s you spent %s, mostly on %s; trimming that category a little would help.", month, total, top)
}

type Handler struct {
	ollama *MockOllama
}

func NewHandler(ollama *MockOllama) *Handler {
	return &Handler{ollama: ollama}
}

func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.ollama.hasModel(req.Model) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("model %q not found, try pulling it first", req.Model)})
		return
	}
	if req.Stream {
		c.JSON(http.StatusBadRequest, gin.H{"error": "streaming is not supported by the mock"})
		return
	}

	delay := h.ollama.randomDelay()
	select {
	case <-time.After(delay):
	case <-c.Request.Context().Done():
		return
	}

	if h.ollama.shouldFail() {
		log.Warn().
			Str("model", req.Model).
			Dur("delay", delay).
			Msg("simulated generation failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "model runner has unexpectedly stopped"})
		return
	}

	log.Info().
		Str("model", req.Model).
		Int("prompt_len", len(req.Prompt)).
		Dur("delay", delay).
		Msg("generated completion")

	c.JSON(http.StatusOK, GenerateResponse{
		Model:      req.Model,
		CreatedAt:  time.Now().UTC(),
		Response:   completion(req.Prompt),
		Done:       true,
		DoneReason: "stop",
	})
}

func (h *Handler) Tags(c *gin.Context) {
	now := time.Now().UTC()
	resp := TagsResponse{Models: make([]ModelTag, 0, len(h.ollama.models))}
	for _, name := range h.ollama.models {
		resp.Models = append(resp.Models, ModelTag{Name: name, ModifiedAt: now})
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateConfig changes the failure rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if config.FailureRate != nil {
		if *config.FailureRate < 0 || *config.FailureRate > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failure_rate must be within [0, 1]"})
			return
		}
		h.ollama.setFailureRate(*config.FailureRate)
		log.Info().Float64("rate", *config.FailureRate).Msg("updated failure rate")
	}
	c.JSON(http.StatusOK, gin.H{"failure_rate": h.ollama.currentFailureRate()})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	router.POST("/api/generate", handler.Generate)
	router.GET("/api/tags", handler.Tags)
	router.PUT("/config", handler.UpdateConfig)
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Ollama is running")
	})
	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "11434")
	failureRate := getEnvFloat("FAILURE_RATE", 0)
	minDelay := getEnvDuration("MIN_DELAY", 200*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", time.Second)
	models := strings.Split(getEnv("MODELS", "llama3.1:8b"), ",")

	log.Info().
		Str("port", port).
		Float64("failure_rate", failureRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Strs("models", models).
		Msg("starting mock ollama")

	gin.SetMode(gin.ReleaseMode)
	ollama := NewMockOllama(failureRate, minDelay, maxDelay, models)
	router := SetupRouter(NewHandler(ollama))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("instance", ollama.instanceID).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
