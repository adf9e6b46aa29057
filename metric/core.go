package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not publication-specific)
type Metrics struct {
	// Agent metrics
	AgentStatus       *prometheus.GaugeVec
	DutyCycles        *prometheus.CounterVec
	DutyCycleWork     *prometheus.CounterVec
	DutyCycleDuration *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Wire metrics
	FramesReceived    *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec
	BytesReceived     prometheus.Counter
	BytesSent         prometheus.Counter
	NaksSent          prometheus.Counter
	Retransmits       prometheus.Counter
	ShortSends        prometheus.Counter
	FlowControlStalls prometheus.Counter
	FramesDropped     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		AgentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "aeron",
				Subsystem: "agent",
				Name:      "status",
				Help:      "Agent status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"agent"},
		),

		DutyCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "agent",
				Name:      "duty_cycles_total",
				Help:      "Total number of duty cycles executed",
			},
			[]string{"agent"},
		),

		DutyCycleWork: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "agent",
				Name:      "work_items_total",
				Help:      "Total number of work items processed by duty cycles",
			},
			[]string{"agent"},
		),

		DutyCycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aeron",
				Subsystem: "agent",
				Name:      "duty_cycle_duration_seconds",
				Help:      "Duty cycle duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 10, 8),
			},
			[]string{"agent"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"agent", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "aeron",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"agent"},
		),

		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "frames_received_total",
				Help:      "Total number of frames received by frame type",
			},
			[]string{"type"},
		),

		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "frames_sent_total",
				Help:      "Total number of frames sent by frame type",
			},
			[]string{"type"},
		),

		BytesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "bytes_received_total",
				Help:      "Total bytes received on media endpoints",
			},
		),

		BytesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "bytes_sent_total",
				Help:      "Total bytes sent on media endpoints",
			},
		),

		NaksSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "naks_sent_total",
				Help:      "Total NAK frames sent for detected gaps",
			},
		),

		Retransmits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "retransmits_total",
				Help:      "Total retransmits performed in response to NAKs",
			},
		),

		ShortSends: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "short_sends_total",
				Help:      "Total sends that wrote fewer bytes than requested",
			},
		),

		FlowControlStalls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "flow_control_stalls_total",
				Help:      "Total duty cycles where the sender was window-limited",
			},
		),

		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aeron",
				Subsystem: "wire",
				Name:      "frames_dropped_total",
				Help:      "Total inbound frames dropped by reason",
			},
			[]string{"reason"},
		),
	}
}

// RecordAgentStatus updates agent status metric
func (c *Metrics) RecordAgentStatus(agent string, status int) {
	c.AgentStatus.WithLabelValues(agent).Set(float64(status))
}

// RecordDutyCycle increments the duty cycle counter and records work done
func (c *Metrics) RecordDutyCycle(agent string, workCount int) {
	c.DutyCycles.WithLabelValues(agent).Inc()
	if workCount > 0 {
		c.DutyCycleWork.WithLabelValues(agent).Add(float64(workCount))
	}
}

// RecordDutyCycleDuration records the duration of one duty cycle
func (c *Metrics) RecordDutyCycleDuration(agent string, duration time.Duration) {
	c.DutyCycleDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(agent, class string) {
	c.ErrorsTotal.WithLabelValues(agent, class).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(agent string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(agent).Set(value)
}

// RecordFrameReceived increments the received frame counter for a frame type
func (c *Metrics) RecordFrameReceived(frameType string, bytes int) {
	c.FramesReceived.WithLabelValues(frameType).Inc()
	c.BytesReceived.Add(float64(bytes))
}

// RecordFrameSent increments the sent frame counter for a frame type
func (c *Metrics) RecordFrameSent(frameType string, bytes int) {
	c.FramesSent.WithLabelValues(frameType).Inc()
	c.BytesSent.Add(float64(bytes))
}

// RecordNakSent increments the NAK counter
func (c *Metrics) RecordNakSent() {
	c.NaksSent.Inc()
}

// RecordRetransmit increments the retransmit counter
func (c *Metrics) RecordRetransmit() {
	c.Retransmits.Inc()
}

// RecordShortSend increments the short send counter
func (c *Metrics) RecordShortSend() {
	c.ShortSends.Inc()
}

// RecordFlowControlStall increments the window-limited counter
func (c *Metrics) RecordFlowControlStall() {
	c.FlowControlStalls.Inc()
}

// RecordFrameDropped increments the dropped frame counter for a reason
func (c *Metrics) RecordFrameDropped(reason string) {
	c.FramesDropped.WithLabelValues(reason).Inc()
}
