// Package health provides health snapshots for driver agents and the
// aggregate driver process.
package health

import (
	"regexp"
	"strings"
	"time"
)

// Health states reported for an agent or for the driver as a whole.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	udpURLRegex      = regexp.MustCompile(`udp://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is a point-in-time health report for one named agent, or for the
// driver when it carries SubStatuses.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the duty-cycle counters that back a Status.
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int           `json:"error_count"`
	WorkCount    int64         `json:"work_count,omitempty"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// WithMetrics returns a copy of the status with metrics attached.
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// NewHealthy reports a healthy agent.
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewDegraded reports an agent that is running but has accumulated errors.
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// NewUnhealthy reports a stopped or failing agent.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate rolls agent statuses up into one driver-level status. Any
// unhealthy agent makes the driver unhealthy; otherwise any degraded agent
// makes it degraded.
func Aggregate(component string, agents []Status) Status {
	if len(agents) == 0 {
		return NewHealthy(component, "no agents registered")
	}

	aggregate := NewHealthy(component, "all agents healthy")
	for _, agent := range agents {
		switch {
		case agent.IsUnhealthy():
			aggregate = NewUnhealthy(component, "agent "+agent.Component+" is unhealthy")
		case agent.IsDegraded() && !aggregate.IsUnhealthy():
			aggregate = NewDegraded(component, "agent "+agent.Component+" is degraded")
		}
	}

	aggregate.SubStatuses = append([]Status(nil), agents...)
	return aggregate
}

// sanitizeErrorMessage strips addresses, paths, and credential-shaped
// fragments from an error string before it leaves the process through the
// health surface. Agent errors routinely embed channel URIs and shared
// memory paths.
//
// Replacements: URLs → [URL], file paths → [PATH], IP addresses → [IP],
// ports → [PORT], credential assignments → [REDACTED].
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := err

	// URLs before paths: a udp:// URI contains a path-shaped suffix.
	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = udpURLRegex.ReplaceAllString(sanitized, "[URL]")

	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")

	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "key") || strings.Contains(lower, "secret") ||
		strings.Contains(lower, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}

	return sanitized
}

// AgentHealth is a point-in-time snapshot of one duty-cycle agent, as
// reported by its runner.
type AgentHealth struct {
	Healthy    bool
	LastError  string
	ErrorCount int
	WorkCount  int64
	Uptime     time.Duration
	LastCycle  time.Time
}

// FromAgentHealth converts a runner snapshot to a Status. A running agent
// with past duty-cycle errors is degraded rather than unhealthy: the runner
// contained the error and the agent still makes progress. The last error
// message is sanitized before it is exposed.
func FromAgentHealth(name string, ah AgentHealth) Status {
	var status Status
	switch {
	case !ah.Healthy:
		status = NewUnhealthy(name, "agent stopped")
	case ah.ErrorCount > 0:
		status = NewDegraded(name, "agent running with errors")
	default:
		status = NewHealthy(name, "agent running")
	}

	if ah.LastError != "" {
		status.Message = sanitizeErrorMessage(ah.LastError)
	}

	return status.WithMetrics(&Metrics{
		Uptime:       ah.Uptime,
		ErrorCount:   ah.ErrorCount,
		WorkCount:    ah.WorkCount,
		LastActivity: ah.LastCycle,
	})
}
