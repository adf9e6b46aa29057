package health

import (
	"sort"
	"sync"
	"time"
)

// Monitor holds the latest Status per agent. The driver refreshes it from
// runner snapshots; embedders may read it from any goroutine.
type Monitor struct {
	mu     sync.RWMutex
	agents map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{agents: make(map[string]Status)}
}

// Update records the status for a named agent, stamping the name and a
// timestamp if the caller left them unset.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.agents[name] = status
	m.mu.Unlock()
}

// UpdateHealthy records a healthy status for the agent.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded records a degraded status for the agent.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy records an unhealthy status for the agent.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get returns the last recorded status for the agent.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.agents[name]
	return status, ok
}

// Snapshot returns a copy of every recorded status.
func (m *Monitor) Snapshot() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Status, len(m.agents))
	for name, status := range m.agents {
		out[name] = status
	}
	return out
}

// Names returns the monitored agent names, sorted.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.agents))
	for name := range m.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove forgets an agent, e.g. after it is retired.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	delete(m.agents, name)
	m.mu.Unlock()
}

// AggregateHealth rolls all recorded agent statuses up into one status for
// the named system.
func (m *Monitor) AggregateHealth(systemName string) Status {
	snapshot := m.Snapshot()

	agents := make([]Status, 0, len(snapshot))
	for _, name := range m.Names() {
		agents = append(agents, snapshot[name])
	}
	return Aggregate(systemName, agents)
}
