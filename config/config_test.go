package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		value string
		want  int64
	}{
		{"0", 0},
		{"4096", 4096},
		{"64k", 64 * 1024},
		{"64K", 64 * 1024},
		{"16m", 16 * 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
	}
	for _, tc := range cases {
		got, err := ParseSize("test.prop", tc.value)
		require.NoError(t, err, tc.value)
		assert.Equal(t, tc.want, got, tc.value)
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "k", "-1", "12x", "1.5m", "9999999999999g"} {
		_, err := ParseSize("test.prop", v)
		assert.Error(t, err, v)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{"100", 100 * time.Nanosecond},
		{"100ns", 100 * time.Nanosecond},
		{"250us", 250 * time.Microsecond},
		{"10ms", 10 * time.Millisecond},
		{"5s", 5 * time.Second},
		{"10MS", 10 * time.Millisecond},
	}
	for _, tc := range cases {
		got, err := ParseDuration("test.prop", tc.value)
		require.NoError(t, err, tc.value)
		assert.Equal(t, tc.want, got, tc.value)
	}
}

func TestParseDurationRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "ms", "-5s", "1.5s", "10m"} {
		_, err := ParseDuration("test.prop", v)
		assert.Error(t, err, v)
	}
}

func TestPropertyEnvOverride(t *testing.T) {
	t.Setenv("AERON_TERM_BUFFER_LENGTH", "64k")
	assert.Equal(t, "64k", Property(PropTermBufferLength, "16m"))
	assert.Equal(t, "fallback", Property("aeron.absent.property", "fallback"))
}

func TestConcludeFillsDefaults(t *testing.T) {
	ctx := &Context{}
	require.NoError(t, ctx.Conclude())

	assert.Equal(t, int32(DefaultTermBufferLength), ctx.TermBufferLength)
	assert.Equal(t, int32(DefaultMTULength), ctx.MTULength)
	assert.Equal(t, DefaultClientLivenessTimeout, ctx.ClientLivenessTimeout)
	assert.Equal(t, DefaultNakMulticastGroupSize, ctx.NakMulticastGroupSize)
	assert.NotEmpty(t, ctx.AeronDir)
}

func TestConcludeRejectsBadTermLength(t *testing.T) {
	ctx := &Context{TermBufferLength: 12345}
	assert.Error(t, ctx.Conclude())
}

func TestConcludeRejectsUnalignedMTU(t *testing.T) {
	ctx := &Context{MTULength: 1400}
	assert.Error(t, ctx.Conclude())
}

func TestConcludeRejectsWindowSmallerThanMTU(t *testing.T) {
	ctx := &Context{MTULength: 8192, InitialWindowLength: 4096}
	assert.Error(t, ctx.Conclude())
}

func TestConcludeIdempotent(t *testing.T) {
	ctx := &Context{}
	require.NoError(t, ctx.Conclude())

	before := *ctx
	ctx.TermBufferLength = 12345
	require.NoError(t, ctx.Conclude())
	ctx.TermBufferLength = before.TermBufferLength

	if diff := cmp.Diff(before, *ctx, cmp.AllowUnexported(Context{})); diff != "" {
		t.Errorf("second Conclude changed the context (-first +second):\n%s", diff)
	}
}

func TestDerivedPaths(t *testing.T) {
	ctx := &Context{AeronDir: "/dev/shm/aeron-test"}
	require.NoError(t, ctx.Conclude())

	assert.Equal(t, "/dev/shm/aeron-test/cnc.dat", ctx.CncFile())
	assert.Equal(t, "/dev/shm/aeron-test/loss-report.dat", ctx.LossReportFile())
	assert.Equal(t, "/dev/shm/aeron-test/publications", ctx.PublicationsDir())
	assert.Equal(t, "/dev/shm/aeron-test/subscriptions", ctx.ImagesDir())
}
