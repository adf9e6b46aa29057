package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePredicates(t *testing.T) {
	tests := []struct {
		status    Status
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{NewHealthy("sender", "running"), true, false, false},
		{NewDegraded("receiver", "running with errors"), false, true, false},
		{NewUnhealthy("conductor", "stopped"), false, false, true},
		{Status{Status: "unknown"}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.Status, func(t *testing.T) {
			assert.Equal(t, tt.healthy, tt.status.IsHealthy())
			assert.Equal(t, tt.degraded, tt.status.IsDegraded())
			assert.Equal(t, tt.unhealthy, tt.status.IsUnhealthy())
			assert.Equal(t, tt.healthy, tt.status.Healthy)
		})
	}
}

func TestConstructorsStampTimestamp(t *testing.T) {
	before := time.Now()
	status := NewHealthy("sender", "running")

	assert.Equal(t, "sender", status.Component)
	assert.Equal(t, "running", status.Message)
	assert.False(t, status.Timestamp.Before(before))
}

func TestWithMetricsDoesNotMutateReceiver(t *testing.T) {
	base := NewHealthy("receiver", "running")
	withMetrics := base.WithMetrics(&Metrics{WorkCount: 42, ErrorCount: 1})

	assert.Nil(t, base.Metrics)
	require.NotNil(t, withMetrics.Metrics)
	assert.Equal(t, int64(42), withMetrics.Metrics.WorkCount)
}

func TestAggregateEmpty(t *testing.T) {
	status := Aggregate("media-driver", nil)
	assert.True(t, status.IsHealthy())
	assert.Empty(t, status.SubStatuses)
}

func TestAggregateWorstStateWins(t *testing.T) {
	tests := []struct {
		name   string
		agents []Status
		want   string
	}{
		{
			name: "all healthy",
			agents: []Status{
				NewHealthy("conductor", ""), NewHealthy("sender", ""), NewHealthy("receiver", ""),
			},
			want: StateHealthy,
		},
		{
			name: "one degraded",
			agents: []Status{
				NewHealthy("conductor", ""), NewDegraded("sender", ""), NewHealthy("receiver", ""),
			},
			want: StateDegraded,
		},
		{
			name: "unhealthy beats degraded regardless of order",
			agents: []Status{
				NewUnhealthy("conductor", ""), NewDegraded("sender", ""), NewHealthy("receiver", ""),
			},
			want: StateUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Aggregate("media-driver", tt.agents)
			assert.Equal(t, tt.want, status.Status)
			assert.Len(t, status.SubStatuses, len(tt.agents))
		})
	}
}

func TestAggregateCopiesSubStatuses(t *testing.T) {
	agents := []Status{NewHealthy("sender", "")}
	status := Aggregate("media-driver", agents)

	agents[0] = NewUnhealthy("sender", "")
	assert.True(t, status.SubStatuses[0].IsHealthy())
}

func TestFromAgentHealthRunning(t *testing.T) {
	status := FromAgentHealth("sender", AgentHealth{
		Healthy:   true,
		WorkCount: 1000,
		Uptime:    time.Minute,
		LastCycle: time.Now(),
	})

	assert.True(t, status.IsHealthy())
	assert.Equal(t, "sender", status.Component)
	require.NotNil(t, status.Metrics)
	assert.Equal(t, int64(1000), status.Metrics.WorkCount)
	assert.Equal(t, time.Minute, status.Metrics.Uptime)
}

func TestFromAgentHealthDegradedOnErrors(t *testing.T) {
	status := FromAgentHealth("receiver", AgentHealth{
		Healthy:    true,
		ErrorCount: 3,
		LastError:  "image rebuild failed",
	})

	assert.True(t, status.IsDegraded())
	assert.Equal(t, "image rebuild failed", status.Message)
	assert.Equal(t, 3, status.Metrics.ErrorCount)
}

func TestFromAgentHealthStopped(t *testing.T) {
	status := FromAgentHealth("conductor", AgentHealth{Healthy: false})

	assert.True(t, status.IsUnhealthy())
	assert.Equal(t, "agent stopped", status.Message)
}
