package gateway

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimasrn/finance-tracker/pkg/prom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func startServer(t *testing.T, handler fasthttp.RequestHandler) fasthttp.DialFunc {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	return func(addr string) (net.Conn, error) { return ln.Dial() }
}

func newTestClient(t *testing.T, handler fasthttp.RequestHandler, threshold int) *OllamaClient {
	t.Helper()
	c, err := NewOllamaClient(OllamaConfig{
		BaseURL:                 "http://ollama.test/",
		Model:                   "llama3.1:8b",
		Timeout:                 time.Second,
		CircuitBreakerThreshold: threshold,
		CircuitBreakerTimeout:   time.Minute,
		Dial:                    startServer(t, handler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewOllamaClient_Validation(t *testing.T) {
	_, err := NewOllamaClient(OllamaConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewOllamaClient(OllamaConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestOllamaClient_Generate(t *testing.T) {
	t.Run("sends a non-streaming request", func(t *testing.T) {
		var got GenerateRequest
		var path, method string
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			path = string(ctx.Path())
			method = string(ctx.Method())
			_ = json.Unmarshal(ctx.PostBody(), &got)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"model":"llama3.1:8b","response":"You spent most on rent.","done":true}`)
		}, 3)

		out, err := c.Generate(context.Background(), "summarize")
		require.NoError(t, err)
		assert.Equal(t, "You spent most on rent.", out)
		assert.Equal(t, "/api/generate", path)
		assert.Equal(t, fasthttp.MethodPost, method)
		assert.Equal(t, GenerateRequest{Model: "llama3.1:8b", Prompt: "summarize", Stream: false}, got)
		assert.Equal(t, int64(1), c.Metrics().SuccessfulReqs.Load())
	})

	t.Run("missing response field", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetBodyString(`{"done":true}`)
		}, 3)
		_, err := c.Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrMissingResponse)
	})

	t.Run("malformed json", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetBodyString(`not json`)
		}, 3)
		_, err := c.Generate(context.Background(), "p")
		assert.Error(t, err)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString(`{"response":"ignored"}`)
		}, 3)
		_, err := c.Generate(context.Background(), "p")
		assert.Error(t, err)
		assert.Equal(t, int64(1), c.Metrics().FailedReqs.Load())
	})

	t.Run("context deadline bounds the call", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			time.Sleep(300 * time.Millisecond)
			ctx.SetBodyString(`{"response":"late"}`)
		}, 3)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := c.Generate(ctx, "p")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 250*time.Millisecond)
	})

	t.Run("cancelled context does not trip the breaker", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			ctx.SetBodyString(`{"response":"ok"}`)
		}, 1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Generate(ctx, "p")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateClosed, c.State())
	})
}

func TestOllamaClient_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	var healthy atomic.Bool
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		if !healthy.Load() {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString(`{"response":"back"}`)
	}, 2)

	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), "p")
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, c.State())

	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())

	// expire the open window
	c.circuitOpenUntil.Store(time.Now().Add(-time.Second).UnixNano())
	healthy.Store(true)

	out, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "back", out)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, "CLOSED", c.Stats().State)
}

func TestOllamaClient_HalfOpenFailureReopens(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	}, 5)

	c.state.Store(int32(StateOpen))
	c.circuitOpenUntil.Store(time.Now().Add(-time.Second).UnixNano())

	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, StateOpen, c.State())
}

func TestOllamaClient_HalfOpenAllowsOneRequest(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) == 1 {
			close(arrived)
			<-release
		}
		ctx.SetBodyString(`{"response":"recovered"}`)
	}, 3)

	c.state.Store(int32(StateOpen))
	c.circuitOpenUntil.Store(time.Now().Add(-time.Second).UnixNano())

	type outcome struct {
		text string
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		out, err := c.Generate(context.Background(), "p")
		first <- outcome{out, err}
	}()

	select {
	case <-arrived:
	case <-time.After(time.Second):
		t.Fatal("first request never reached the server")
	}
	assert.Equal(t, StateHalfOpen, c.State())

	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, "recovered", res.text)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.Generate(context.Background(), "p")
	assert.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaClient_RegisterMetrics(t *testing.T) {
	enabled := prom.MetricSystemEnabled
	prom.MetricSystemEnabled = true
	defer func() { prom.MetricSystemEnabled = enabled }()

	var fail atomic.Bool
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if fail.Load() {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetBodyString(`{"response":"ok"}`)
	}, 1)

	require.NoError(t, c.RegisterMetrics())
	t.Cleanup(func() {
		for _, g := range prom.MetricCollectionGaugeFunc {
			prometheus.Unregister(g)
		}
	})

	gauge := func(name string) float64 {
		g, ok := prom.MetricCollectionGaugeFunc[prom.SystemLLM+name]
		require.True(t, ok, name)
		return testutil.ToFloat64(g)
	}

	assert.Equal(t, 1.0, gauge(prom.MetricLLMSuccessRate))
	assert.Equal(t, float64(StateClosed), gauge(prom.MetricLLMCircuitState))

	_, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	fail.Store(true)
	_, err = c.Generate(context.Background(), "p")
	require.Error(t, err)

	assert.Equal(t, 0.5, gauge(prom.MetricLLMSuccessRate))
	assert.Equal(t, float64(StateOpen), gauge(prom.MetricLLMCircuitState))
	assert.Equal(t, float64(c.Stats().P95LatencyMs), gauge(prom.MetricLLMLatencyP95))
	assert.Equal(t, float64(c.Stats().AvgLatencyMs), gauge(prom.MetricLLMLatencyAvg))
}

func TestOllamaClient_Ping(t *testing.T) {
	handler := func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/api/tags" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetBodyString(`{"models":[{"name":"mistral:7b"},{"name":"llama3.1:8b"}]}`)
	}
	c := newTestClient(t, handler, 3)

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mistral:7b", "llama3.1:8b"}, models)
	assert.NoError(t, c.Ping(context.Background()))

	c.config.Model = "phi3"
	assert.Error(t, c.Ping(context.Background()))
}

func TestProviderMetrics(t *testing.T) {
	m := NewProviderMetrics()
	m.RecordSuccess(100)
	m.RecordSuccess(200)
	m.RecordFailure()

	assert.Equal(t, int64(3), m.TotalRequests.Load())
	assert.Equal(t, int64(150), m.AvgLatencyMs())
	assert.InDelta(t, 0.666, m.SuccessRate(), 0.01)
	assert.Equal(t, int32(1), m.ConsecutiveFails.Load())

	for i := int64(0); i < 100; i++ {
		m.RecordSuccess(i * 10)
	}
	assert.GreaterOrEqual(t, m.P95LatencyMs(), int64(900))
	assert.Equal(t, int32(0), m.ConsecutiveFails.Load())
}
