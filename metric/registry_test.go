package metric

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ MetricsRegistrar = (*MetricsRegistry)(nil)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestRegisterCollectorTypes(t *testing.T) {
	registry := NewMetricsRegistry()

	tests := []struct {
		metric   string
		register func() error
	}{
		{"sender_probe_counter", func() error {
			c := prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sender_probe_counter", Help: "probe"})
			c.Inc()
			return registry.RegisterCounter("sender", "sender_probe_counter", c)
		}},
		{"sender_probe_gauge", func() error {
			g := prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sender_probe_gauge", Help: "probe"})
			g.Set(42)
			return registry.RegisterGauge("sender", "sender_probe_gauge", g)
		}},
		{"sender_probe_histogram", func() error {
			h := prometheus.NewHistogram(prometheus.HistogramOpts{
				Name: "sender_probe_histogram", Help: "probe"})
			h.Observe(1.5)
			return registry.RegisterHistogram("sender", "sender_probe_histogram", h)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			require.NoError(t, tt.register())
			assert.True(t, gatheredNames(t, registry)[tt.metric])
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retries_total", Help: "retries"})
	require.NoError(t, registry.RegisterCounter("receiver", "retries_total", first))

	// Same qualified name: caught by the registry's own bookkeeping.
	err := registry.RegisterCounter("receiver", "retries_total", first)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate metric registration")

	// Different agent, colliding prometheus name: caught by prometheus.
	second := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retries_total", Help: "retries"})
	err = registry.RegisterCounter("sender", "retries_total", second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ephemeral_total", Help: "short-lived"})
	require.NoError(t, registry.RegisterCounter("receiver", "ephemeral_total", counter))
	require.True(t, gatheredNames(t, registry)["ephemeral_total"])

	assert.True(t, registry.Unregister("receiver", "ephemeral_total"))
	assert.False(t, gatheredNames(t, registry)["ephemeral_total"])

	// Second unregister finds nothing.
	assert.False(t, registry.Unregister("receiver", "ephemeral_total"))
}

func TestConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	const goroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("parallel_probe_%d", id)
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: name, Help: "parallel registration probe"})
			assert.NoError(t, registry.RegisterCounter("receiver", name, counter))
		}(i)
	}
	wg.Wait()

	registered := 0
	for name := range gatheredNames(t, registry) {
		if strings.HasPrefix(name, "parallel_probe_") {
			registered++
		}
	}
	assert.Equal(t, goroutines, registered)
}

func TestMetricsRegistry_CoreMetricsInitialization(t *testing.T) {
	registry := NewMetricsRegistry()

	// Vector metrics don't appear in Gather() until they have at least one value set
	coreMetrics := registry.CoreMetrics()

	coreMetrics.RecordAgentStatus("conductor", 2)
	coreMetrics.RecordDutyCycle("conductor", 3)
	coreMetrics.RecordDutyCycleDuration("conductor", 10*time.Microsecond)
	coreMetrics.RecordError("conductor", "transient")
	coreMetrics.RecordHealthStatus("conductor", true)
	coreMetrics.RecordFrameReceived("DATA", 64)
	coreMetrics.RecordFrameSent("SM", 36)

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	expectedCoreMetrics := []string{
		"aeron_agent_status",
		"aeron_agent_duty_cycles_total",
		"aeron_agent_work_items_total",
		"aeron_agent_duty_cycle_duration_seconds",
		"aeron_errors_total",
		"aeron_health_status",
		"aeron_wire_frames_received_total",
		"aeron_wire_frames_sent_total",
		"aeron_wire_bytes_received_total",
		"aeron_wire_bytes_sent_total",
		"aeron_wire_naks_sent_total",
		"aeron_wire_retransmits_total",
		"aeron_wire_short_sends_total",
		"aeron_wire_flow_control_stalls_total",
	}

	foundMetrics := make(map[string]bool)
	for _, mf := range metricFamilies {
		foundMetrics[mf.GetName()] = true
	}

	for _, expectedMetric := range expectedCoreMetrics {
		assert.True(t, foundMetrics[expectedMetric],
			"core metric %s should be initialized", expectedMetric)
	}
}

func TestMetricsRegistry_GetCoreMetrics(t *testing.T) {
	registry := NewMetricsRegistry()

	coreMetrics := registry.CoreMetrics()
	assert.NotNil(t, coreMetrics)

	assert.NotNil(t, coreMetrics.AgentStatus)
	assert.NotNil(t, coreMetrics.DutyCycles)
	assert.NotNil(t, coreMetrics.DutyCycleWork)
	assert.NotNil(t, coreMetrics.DutyCycleDuration)
	assert.NotNil(t, coreMetrics.ErrorsTotal)
	assert.NotNil(t, coreMetrics.HealthCheckStatus)
	assert.NotNil(t, coreMetrics.FramesReceived)
	assert.NotNil(t, coreMetrics.FramesSent)
	assert.NotNil(t, coreMetrics.BytesReceived)
	assert.NotNil(t, coreMetrics.BytesSent)
	assert.NotNil(t, coreMetrics.NaksSent)
	assert.NotNil(t, coreMetrics.Retransmits)
	assert.NotNil(t, coreMetrics.ShortSends)
	assert.NotNil(t, coreMetrics.FlowControlStalls)
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	coreMetrics := registry.CoreMetrics()

	coreMetrics.RecordAgentStatus("sender", 2)
	coreMetrics.RecordDutyCycle("sender", 1)
	coreMetrics.RecordDutyCycleDuration("sender", 100*time.Microsecond)
	coreMetrics.RecordError("sender", "transient")
	coreMetrics.RecordHealthStatus("sender", true)

	coreMetrics.RecordFrameReceived("NAK", 44)
	coreMetrics.RecordFrameSent("DATA", 1408)
	coreMetrics.RecordNakSent()
	coreMetrics.RecordRetransmit()
	coreMetrics.RecordShortSend()
	coreMetrics.RecordFlowControlStall()

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	assert.Greater(t, len(metricFamilies), 0, "Should have recorded metrics")
}
