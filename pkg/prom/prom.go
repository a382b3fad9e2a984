package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/finance-tracker/pkg/http"
	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemInsights     = "insights"
	SystemTransactions = "transactions"
	SystemLLM          = "llm"
	SystemWorker       = "worker"
)

const (
	MetricInsightsGenerated  = "generated_total"
	MetricInsightsDuration   = "generate_duration_seconds"
	MetricTransactionEvents  = "events_total"
	MetricLLMRequests        = "requests_total"
	MetricLLMRequestDuration = "request_duration_seconds"
	MetricWorkerJobs         = "jobs_total"

	MetricLLMCircuitState = "circuit_state"
	MetricLLMLatencyP95   = "latency_p95_ms"
	MetricLLMLatencyAvg   = "latency_avg_ms"
	MetricLLMSuccessRate  = "success_rate"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)
var MetricCollectionGaugeFunc = make(map[string]prometheus.GaugeFunc)

var defaultLabels prometheus.Labels

// Create registers every metric the services report and enables collection.
// Until it is called all Add*/Inc* helpers are no-ops.
func Create(host string, env string, nameSpace string) error {
	if MetricSystemEnabled {
		return nil
	}
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	// Insights
	hasError(createCounterVec(SystemInsights, MetricInsightsGenerated, []string{"strategy", "outcome"}))
	hasError(createHistogramVec(SystemInsights, MetricInsightsDuration, []string{"strategy"}))

	// Transactions
	hasError(createCounterVec(SystemTransactions, MetricTransactionEvents, []string{"op"}))

	// LLM
	hasError(createCounterVec(SystemLLM, MetricLLMRequests, []string{"status"}))
	hasError(createHistogram(SystemLLM, MetricLLMRequestDuration))

	// Worker
	hasError(createCounterVec(SystemWorker, MetricWorkerJobs, []string{"status"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url, "port", port)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionGaugeVec[subsystem+name])
}

// CreateGaugeFunc registers a gauge read from fn at scrape time. It does
// nothing until Create has enabled collection.
func CreateGaugeFunc(subsystem, name string, fn func() float64) error {
	if !MetricSystemEnabled {
		return nil
	}
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeFunc[subsystem+name] = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, fn)
	return register(MetricCollectionGaugeFunc[subsystem+name])
}

func register(c prometheus.Collector) error {
	return prometheus.Register(c)
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncGaugeVec(subsystem, name string, labelValues ...string) {
	AddGaugeVec(subsystem, name, 1, labelValues...)
}

func AddGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

// IncInsightGenerated counts a served insight. outcome is one of
// "ok", "fallback", "empty" or "cached".
func IncInsightGenerated(strategy, outcome string) {
	IncCounterVec(SystemInsights, MetricInsightsGenerated, strategy, outcome)
}

func AddInsightDuration(seconds float64, strategy string) {
	AddHistogramVec(SystemInsights, MetricInsightsDuration, seconds, strategy)
}

func IncTransactionEvent(op string) {
	IncCounterVec(SystemTransactions, MetricTransactionEvents, op)
}

func IncLLMRequest(status string) {
	IncCounterVec(SystemLLM, MetricLLMRequests, status)
}

func AddLLMRequestDuration(seconds float64) {
	AddHistogram(SystemLLM, MetricLLMRequestDuration, seconds)
}

func IncWorkerJob(status string) {
	IncCounterVec(SystemWorker, MetricWorkerJobs, status)
}
