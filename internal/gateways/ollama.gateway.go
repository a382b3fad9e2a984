package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/nimasrn/finance-tracker/pkg/prom"
	"github.com/valyala/fasthttp"
)

var (
	ErrCircuitOpen     = errors.New("ollama circuit breaker is open")
	ErrMissingResponse = errors.New("ollama response field is missing")
)

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Model    string  `json:"model,omitempty"`
	Response *string `json:"response"`
	Done     bool    `json:"done,omitempty"`
}

type TagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ProviderMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func NewProviderMetrics() *ProviderMetrics {
	return &ProviderMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *ProviderMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *ProviderMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

// AvgLatencyMs averages over successful requests only.
func (m *ProviderMetrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / ok
}

func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *ProviderMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

type OllamaConfig struct {
	BaseURL                 string
	Model                   string
	Timeout                 time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	// Dial overrides how connections are opened, e.g. an in-memory listener.
	Dial fasthttp.DialFunc
}

// OllamaClient talks to an Ollama compatible /api/generate endpoint.
// After CircuitBreakerThreshold consecutive failures it fails fast with
// ErrCircuitOpen for CircuitBreakerTimeout. Once that expires a single
// request is let through while half-open; the rest keep failing fast until
// it settles the state.
type OllamaClient struct {
	config           OllamaConfig
	client           *fasthttp.Client
	metrics          *ProviderMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64
	trialInFlight    atomic.Bool
}

func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("ollama base url is required")
	}
	if config.Model == "" {
		return nil, errors.New("ollama model is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 16
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &OllamaClient{
		config: config,
		client: &fasthttp.Client{
			Name:                "finance-tracker",
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                config.Dial,
		},
		metrics: NewProviderMetrics(),
	}

	logger.Info("ollama client initialized", "url", config.BaseURL, "model", config.Model, "timeout", config.Timeout)
	return c, nil
}

func (c *OllamaClient) State() CircuitState {
	return CircuitState(c.state.Load())
}

func (c *OllamaClient) Metrics() *ProviderMetrics {
	return c.metrics
}

// acquire moves an expired open circuit to half-open. While half-open only
// the caller that sets trialInFlight gets through; trial reports whether the
// caller must clear it.
func (c *OllamaClient) acquire() (ok bool, trial bool) {
	switch c.State() {
	case StateClosed:
		return true, false
	case StateOpen:
		if time.Now().UnixNano() < c.circuitOpenUntil.Load() {
			return false, false
		}
		c.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen))
	}
	if c.trialInFlight.CompareAndSwap(false, true) {
		return true, true
	}
	return false, false
}

// Generate sends prompt with streaming disabled and returns the response text.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	ok, trial := c.acquire()
	if !ok {
		prom.IncLLMRequest("circuit_open")
		return "", ErrCircuitOpen
	}
	if trial {
		defer c.trialInFlight.Store(false)
	}

	body, err := json.Marshal(GenerateRequest{Model: c.config.Model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	raw, err := c.doRequest(ctx, fasthttp.MethodPost, "/api/generate", body)
	latency := time.Since(start)
	prom.AddLLMRequestDuration(latency.Seconds())

	if err == nil {
		var resp GenerateResponse
		if err = json.Unmarshal(raw, &resp); err != nil {
			err = fmt.Errorf("failed to unmarshal response: %w", err)
		} else if resp.Response == nil {
			err = ErrMissingResponse
		} else {
			c.recordSuccess(latency)
			return *resp.Response, nil
		}
	}

	if errors.Is(err, context.Canceled) {
		return "", err
	}
	c.recordFailure()
	logger.Warn("ollama request failed", "error", err, "latency_ms", latency.Milliseconds(),
		"consecutive_fails", c.metrics.ConsecutiveFails.Load())
	return "", err
}

// Models lists the models the server has pulled.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	raw, err := c.doRequest(ctx, fasthttp.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	var tags TagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping reports whether the server answers and has the configured model.
func (c *OllamaClient) Ping(ctx context.Context) error {
	models, err := c.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m == c.config.Model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not available on %s", c.config.Model, c.config.BaseURL)
}

func (c *OllamaClient) recordSuccess(latency time.Duration) {
	c.metrics.RecordSuccess(latency.Milliseconds())
	prom.IncLLMRequest("ok")
	if c.state.Swap(int32(StateClosed)) != int32(StateClosed) {
		logger.Info("ollama circuit breaker closed")
	}
}

func (c *OllamaClient) recordFailure() {
	c.metrics.RecordFailure()
	prom.IncLLMRequest("error")

	fails := c.metrics.ConsecutiveFails.Load()
	if c.State() == StateHalfOpen || (c.config.CircuitBreakerThreshold > 0 && fails >= int32(c.config.CircuitBreakerThreshold)) {
		c.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).UnixNano())
		c.state.Store(int32(StateOpen))
		logger.Warn("ollama circuit breaker opened", "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

type result struct {
	body []byte
	err  error
}

// doRequest runs the request off the caller's goroutine so a cancelled
// context returns immediately; the request itself stops at the deadline.
func (c *OllamaClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	done := make(chan result, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.config.BaseURL + path)
		req.Header.SetMethod(method)
		req.Header.SetContentType("application/json")
		if body != nil {
			req.SetBody(body)
		}

		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			done <- result{err: fmt.Errorf("request failed: %w", err)}
			return
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			done <- result{err: fmt.Errorf("unexpected status code: %d, body: %s", status, resp.Body())}
			return
		}

		out := make([]byte, len(resp.Body()))
		copy(out, resp.Body())
		done <- result{body: out}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type Stats struct {
	State            string
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	ConsecutiveFails int32
}

func (c *OllamaClient) Stats() Stats {
	return Stats{
		State:            stateString(c.State()),
		TotalRequests:    c.metrics.TotalRequests.Load(),
		SuccessfulReqs:   c.metrics.SuccessfulReqs.Load(),
		FailedReqs:       c.metrics.FailedReqs.Load(),
		SuccessRate:      c.metrics.SuccessRate(),
		AvgLatencyMs:     c.metrics.AvgLatencyMs(),
		P95LatencyMs:     c.metrics.P95LatencyMs(),
		ConsecutiveFails: c.metrics.ConsecutiveFails.Load(),
	}
}

// RegisterMetrics publishes Stats as gauges read at scrape time.
func (c *OllamaClient) RegisterMetrics() error {
	gauges := map[string]func() float64{
		prom.MetricLLMCircuitState: func() float64 { return float64(c.State()) },
		prom.MetricLLMLatencyP95:   func() float64 { return float64(c.Stats().P95LatencyMs) },
		prom.MetricLLMLatencyAvg:   func() float64 { return float64(c.Stats().AvgLatencyMs) },
		prom.MetricLLMSuccessRate:  func() float64 { return c.Stats().SuccessRate },
	}
	for name, fn := range gauges {
		if err := prom.CreateGaugeFunc(prom.SystemLLM, name, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}

func (c *OllamaClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func stateString(state CircuitState) string {
	switch state {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}
