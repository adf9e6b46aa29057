// Package health provides health monitoring functionality for driver agents and systems
// with thread-safe status tracking and aggregation.
//
// The health package enables tracking the health status of the driver's duty-cycle
// agents and aggregating driver-wide health information for monitoring, alerting,
// and operational visibility when the driver is embedded in another process.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: agent operating normally
//   - Degraded: agent operating with reduced functionality
//   - Unhealthy: agent not functioning properly
//
// This three-state model enables nuanced health reporting and appropriate operational
// responses. For example, a degraded receiver might trigger a look at loss counters,
// while an unhealthy conductor means the control plane is down.
//
// # Core Components
//
// Status: Individual component health state containing status level, descriptive message,
// timestamp, optional metrics, and hierarchical sub-statuses for complex systems.
//
// Monitor: Thread-safe centralized tracking system for multiple component health statuses
// with concurrent read/write access and automatic timestamp management.
//
// Helpers: Convenience functions for creating status objects and aggregating system health.
//
// # Basic Usage
//
// Creating and tracking agent health:
//
//	monitor := health.NewMonitor()
//
//	// Update agent health
//	monitor.UpdateHealthy("conductor", "agent running")
//	monitor.UpdateDegraded("receiver", "loss rate above threshold")
//	monitor.UpdateUnhealthy("sender", "socket send failed")
//
//	// Check individual agent health
//	if status, exists := monitor.Get("conductor"); exists {
//	    if status.IsHealthy() {
//	        log.Println("Conductor is healthy")
//	    }
//	}
//
// # System-Wide Health Aggregation
//
// Combining the agents' health statuses into one driver-wide indicator:
//
//	driverHealth := monitor.AggregateHealth("media-driver")
//	if driverHealth.IsUnhealthy() {
//	    log.Printf("Driver unhealthy: %s", driverHealth.Message)
//	}
//
//	// Aggregation uses hierarchical rules:
//	// - Any unhealthy component → system unhealthy
//	// - Any degraded component (with no unhealthy) → system degraded
//	// - All healthy → system healthy
//
// # Agent Snapshots
//
// Converting an AgentHealth snapshot from an agent runner to a health.Status:
//
//	healthStatus := health.FromAgentHealth("receiver", runner.Health())
//
//	// Error messages are automatically sanitized to remove:
//	// - URLs (http://, udp://)
//	// - File paths (Unix and Windows)
//	// - IP addresses and ports
//	// - Credentials (password, token, key, secret)
//
// # Thread Safety
//
// All Monitor operations are thread-safe and can be safely called from multiple goroutines.
// The Monitor uses an RWMutex internally to allow concurrent reads while protecting writes.
// Status objects are immutable - methods like WithMetrics return new copies rather than
// modifying the original.
//
// # Security
//
// Error messages passed through FromAgentHealth are automatically sanitized to remove
// potentially sensitive information before they reach dashboards or logs:
//
//	// Original error with sensitive data
//	err := "failed to connect to https://api.example.com/v1 with password=secret123"
//
//	// After sanitization via FromAgentHealth
//	// "failed to connect to [URL] with [REDACTED]"
//
// Sanitization has no opt-out; messages may over-redact during debugging. Status is a
// value type and its With* methods return copies. Aggregation is worst-case: one
// unhealthy agent marks the whole driver unhealthy.
package health
