package shm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapNewAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cnc.dat")

	m, err := MapNew(path, 4096)
	require.NoError(t, err)

	m.Buffer().PutInt64(0, 0x1122334455667788)
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	m2, err := MapExisting(path, 4096)
	require.NoError(t, err)
	defer m2.Close()

	assert.Equal(t, int64(0x1122334455667788), m2.Buffer().GetInt64(0))
	assert.Equal(t, int32(4096), m2.Buffer().Capacity())
}

func TestMapExistingLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.dat")

	m, err := MapNew(path, 8192)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = MapExisting(path, 4096)
	assert.Error(t, err)
}

func TestMapExistingMissingFile(t *testing.T) {
	_, err := MapExisting(filepath.Join(t.TempDir(), "absent.dat"), 0)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	m, err := MapNew(filepath.Join(t.TempDir(), "f.dat"), 1024)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestEnsureDirDeleteIfExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "aeron")
	require.NoError(t, EnsureDir(dir, false))

	m, err := MapNew(filepath.Join(dir, "stale.dat"), 128)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	require.NoError(t, EnsureDir(dir, true))
	_, err = MapExisting(filepath.Join(dir, "stale.dat"), 0)
	assert.Error(t, err)
}
