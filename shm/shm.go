// Package shm manages the memory mapped files that carry the driver's shared
// state: the CnC file, per-stream term logs and the counters file. Mappings
// are created sparse so a 48MiB log costs pages only as terms fill.
package shm

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// MappedFile is one live mapping. Close unmaps and closes the backing file
// but never unlinks it; ownership of the path stays with the creator.
type MappedFile struct {
	file *os.File
	data []byte
	buf  *concurrent.AtomicBuffer
}

// MapNew creates path, extends it sparsely to length and maps it read-write.
// An existing file at path is truncated.
func MapNew(path string, length int64) (*MappedFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapFatal(err, "shm", "MapNew", "create parent dir")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.WrapFatal(err, "shm", "MapNew", "create file")
	}
	if err := f.Truncate(length); err != nil {
		f.Close()
		return nil, errors.WrapFatal(err, "shm", "MapNew", "extend file")
	}

	return mapFile(f, length, "MapNew")
}

// MapExisting maps an already created file read-write. When expectedLength
// is non-zero the file size must match exactly.
func MapExisting(path string, expectedLength int64) (*MappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.WrapTransient(err, "shm", "MapExisting", "open file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WrapFatal(err, "shm", "MapExisting", "stat file")
	}
	length := info.Size()
	if expectedLength != 0 && length != expectedLength {
		f.Close()
		return nil, errors.WrapInvalid(
			fmt.Errorf("file %s is %d bytes, expected %d", path, length, expectedLength),
			"shm", "MapExisting", "validate length")
	}

	return mapFile(f, length, "MapExisting")
}

func mapFile(f *os.File, length int64, op string) (*MappedFile, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.WrapFatal(err, "shm", op, "mmap")
	}

	return &MappedFile{
		file: f,
		data: data,
		buf:  concurrent.MakeAtomicBuffer(data),
	}, nil
}

// Buffer returns the mapping as an atomic buffer.
func (m *MappedFile) Buffer() *concurrent.AtomicBuffer {
	return m.buf
}

// Name returns the backing file path.
func (m *MappedFile) Name() string {
	return m.file.Name()
}

// Sync flushes dirty pages to the backing file.
func (m *MappedFile) Sync() error {
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return errors.WrapTransient(err, "shm", "Sync", "msync")
	}
	return nil
}

// Close unmaps and closes the file. The path is left on disk.
func (m *MappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	if err := unix.Munmap(m.data); err != nil {
		return errors.WrapFatal(err, "shm", "Close", "munmap")
	}
	m.data = nil
	m.buf = nil
	if err := m.file.Close(); err != nil {
		return errors.WrapFatal(err, "shm", "Close", "close file")
	}
	return nil
}

// EnsureDir creates the driver directory. When deleteIfExists is set any
// previous contents are removed first, which is how a restarting driver
// clears stale state.
func EnsureDir(dir string, deleteIfExists bool) error {
	if deleteIfExists {
		if err := os.RemoveAll(dir); err != nil {
			return errors.WrapFatal(err, "shm", "EnsureDir", "remove stale dir")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapFatal(err, "shm", "EnsureDir", "create dir")
	}
	return nil
}

// DeleteDir removes the driver directory and everything under it.
func DeleteDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.WrapFatal(err, "shm", "DeleteDir", "remove dir")
	}
	return nil
}
