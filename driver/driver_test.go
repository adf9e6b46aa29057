package driver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-numeus/aeron/config"
	"github.com/chris-numeus/aeron/shm"
)

func driverContext(t *testing.T) *config.Context {
	t.Helper()
	return &config.Context{
		AeronDir:            filepath.Join(t.TempDir(), "aeron"),
		TermBufferLength:    64 * 1024,
		DirDeleteOnShutdown: true,
	}
}

func TestMediaDriverLifecycle(t *testing.T) {
	ctx := driverContext(t)
	d, err := NewMediaDriver(ctx, testLogger())
	require.NoError(t, err)

	// The admin files a client maps are on disk with valid metadata.
	mapped, err := shm.MapExisting(ctx.CncFile(), int64(CncFileLength))
	require.NoError(t, err)
	cnc := WrapCncFile(mapped.Buffer())
	require.NoError(t, cnc.CheckVersion())
	assert.Equal(t, ctx.ConductorBufferLength, cnc.ToDriverLength())
	assert.Equal(t, ctx.ToClientsBufferLength, cnc.ToClientsLength())
	assert.Equal(t, int64(os.Getpid()), cnc.Pid())
	assert.Equal(t, d.InstanceID(), cnc.InstanceID())
	require.NoError(t, mapped.Close())

	for _, file := range []string{ctx.ToDriverFile(), ctx.ToClientsFile(),
		ctx.CounterLabelsFile(), ctx.CounterValuesFile()} {
		_, err := os.Stat(file)
		assert.NoError(t, err, file)
	}

	d.Launch()

	monitor := d.Health()
	for _, agent := range d.Agents() {
		status, ok := monitor.Get(agent.Name())
		require.True(t, ok, agent.Name())
		assert.True(t, status.IsHealthy(), agent.Name())
	}
	driverHealth := monitor.AggregateHealth("media-driver")
	assert.True(t, driverHealth.IsHealthy())

	require.NoError(t, d.Close())
	_, err = os.Stat(ctx.AeronDir)
	assert.True(t, os.IsNotExist(err), "driver directory should be deleted on shutdown")

	// Close is idempotent.
	assert.NoError(t, d.Close())
}

func TestMediaDriverAgentsForEmbedding(t *testing.T) {
	ctx := driverContext(t)
	ctx.DirDeleteOnShutdown = false

	d, err := NewMediaDriver(ctx, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	agents := d.Agents()
	require.Len(t, agents, 3)
	assert.Equal(t, "conductor", agents[0].Name())
	assert.Equal(t, "sender", agents[1].Name())
	assert.Equal(t, "receiver", agents[2].Name())

	// Without Launch the caller owns the duty cycles.
	now := time.Now()
	for _, agent := range agents {
		agent.DoWork(now)
	}
}

func TestMediaDriverDeleteOnStart(t *testing.T) {
	ctx := driverContext(t)
	ctx.DirDeleteOnStart = true
	ctx.DirDeleteOnShutdown = false

	stale := filepath.Join(ctx.AeronDir, "stale.dat")
	require.NoError(t, shm.EnsureDir(ctx.AeronDir, false))
	require.NoError(t, os.WriteFile(stale, []byte("old run"), 0o644))

	d, err := NewMediaDriver(ctx, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale driver directory should be wiped")
}

func TestParseMetricsPort(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{addr: "9090", want: 9090},
		{addr: ":9090", want: 9090},
		{addr: "localhost:9090", want: 9090},
		{addr: "0", wantErr: true},
		{addr: "70000", wantErr: true},
		{addr: "not-a-port", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			port, err := parseMetricsPort(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, port)
		})
	}
}
