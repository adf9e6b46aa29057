package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/chris-numeus/aeron/errors"
)

// MetricsRegistrar is the registration surface handed to agents that carry
// their own metrics beyond the core set.
type MetricsRegistrar interface {
	RegisterCounter(agentName, metricName string, counter prometheus.Counter) error
	RegisterGauge(agentName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(agentName, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(agentName, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(agentName, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(agentName, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(agentName, metricName string) bool
}

// MetricsRegistry owns the driver's prometheus registry: the core driver
// metrics, Go runtime collectors, and any per-agent registrations, with
// duplicates rejected by qualified name.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewMetricsRegistry creates a registry pre-loaded with the core driver
// metrics and the Go runtime and process collectors.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(
		r.Metrics.AgentStatus,
		r.Metrics.DutyCycles,
		r.Metrics.DutyCycleWork,
		r.Metrics.DutyCycleDuration,
		r.Metrics.ErrorsTotal,
		r.Metrics.HealthCheckStatus,
		r.Metrics.FramesReceived,
		r.Metrics.FramesSent,
		r.Metrics.BytesReceived,
		r.Metrics.BytesSent,
		r.Metrics.NaksSent,
		r.Metrics.Retransmits,
		r.Metrics.ShortSends,
		r.Metrics.FlowControlStalls,
		r.Metrics.FramesDropped,
	)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying prometheus registry for
// exposition handlers.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core driver metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// register adds one collector under agentName.metricName, rejecting
// duplicates at both the registry and prometheus level.
func (r *MetricsRegistry) register(agentName, metricName, op string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agentName + "." + metricName
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for agent %s", metricName, agentName),
			"MetricsRegistry", op, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegistered) {
			return errors.WrapInvalid(err, "MetricsRegistry", op,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", op,
			"failed to register collector with prometheus")
	}

	r.registered[key] = collector
	return nil
}

// RegisterCounter registers a counter for an agent.
func (r *MetricsRegistry) RegisterCounter(agentName, metricName string, counter prometheus.Counter) error {
	return r.register(agentName, metricName, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge for an agent.
func (r *MetricsRegistry) RegisterGauge(agentName, metricName string, gauge prometheus.Gauge) error {
	return r.register(agentName, metricName, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram for an agent.
func (r *MetricsRegistry) RegisterHistogram(agentName, metricName string, histogram prometheus.Histogram) error {
	return r.register(agentName, metricName, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a labelled counter for an agent.
func (r *MetricsRegistry) RegisterCounterVec(agentName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(agentName, metricName, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec registers a labelled gauge for an agent.
func (r *MetricsRegistry) RegisterGaugeVec(agentName, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(agentName, metricName, "RegisterGaugeVec", gaugeVec)
}

// RegisterHistogramVec registers a labelled histogram for an agent.
func (r *MetricsRegistry) RegisterHistogramVec(agentName, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register(agentName, metricName, "RegisterHistogramVec", histogramVec)
}

// Unregister removes an agent's metric. Returns false when the metric was
// never registered.
func (r *MetricsRegistry) Unregister(agentName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agentName + "." + metricName
	collector, exists := r.registered[key]
	if !exists {
		return false
	}

	if !r.prometheusRegistry.Unregister(collector) {
		return false
	}
	delete(r.registered, key)
	return true
}
