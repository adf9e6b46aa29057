package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAgentErrors(t *testing.T) {
	tests := []struct {
		name  string
		input AgentHealth
		want  string
	}{
		{
			name:  "shared memory path",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: "mmap failed for /dev/shm/aeron/publications/term-0"},
			want:  "mmap failed for [PATH]",
		},
		{
			name:  "channel uri",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: "cannot bind udp://224.0.1.1:40456"},
			want:  "cannot bind [URL]",
		},
		{
			name:  "bare address and port",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: "status message from 10.0.0.7 refused on :40123"},
			want:  "status message from [IP] refused on [PORT]",
		},
		{
			name:  "windows path",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: `cannot map C:\aeron\cnc.dat`},
			want:  "cannot map [PATH]",
		},
		{
			name:  "credential fragment",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: "metrics push rejected, token=abc123"},
			want:  "metrics push rejected, [REDACTED]",
		},
		{
			name:  "mixed url and credential",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: "post to https://10.1.2.3:9091/push failed with secret=hunter2"},
			want:  "post to [URL] failed with [REDACTED]",
		},
		{
			name:  "plain message untouched",
			input: AgentHealth{Healthy: true, ErrorCount: 1, LastError: "term rotation stalled"},
			want:  "term rotation stalled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := FromAgentHealth("receiver", tt.input)
			assert.Equal(t, tt.want, status.Message)
		})
	}
}

func TestSanitizeEmptyErrorKeepsStateMessage(t *testing.T) {
	status := FromAgentHealth("sender", AgentHealth{Healthy: true})
	assert.Equal(t, "agent running", status.Message)
}
