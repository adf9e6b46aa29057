package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/logbuffer"
	"github.com/chris-numeus/aeron/shm"
)

// MetaFileName is the metadata file within a stream's log directory.
const MetaFileName = "meta"

// TermFileName returns the file name of a term partition.
func TermFileName(partitionIndex int32) string {
	return fmt.Sprintf("term-%d", partitionIndex)
}

// StreamDirName returns the directory for one stream under a channel dir.
func StreamDirName(sessionID, streamID int32) string {
	return fmt.Sprintf("%d-%d", sessionID, streamID)
}

// RawLog is one stream's memory mapped term log: three term partition
// files and a metadata file in a directory shared with client processes.
type RawLog struct {
	dir        string
	termFiles  [logbuffer.PartitionCount]*shm.MappedFile
	metaFile   *shm.MappedFile
	terms      [logbuffer.PartitionCount]*concurrent.AtomicBuffer
	meta       *logbuffer.MetaData
	termLength int32
}

// NewRawLog creates and maps the log files for a new stream, initializing
// the metadata for its first term.
func NewRawLog(dir string, termLength, mtu, initialTermID, sessionID, streamID int32) (*RawLog, error) {
	if err := logbuffer.CheckTermLength(termLength); err != nil {
		return nil, err
	}

	log := &RawLog{dir: dir, termLength: termLength}
	for i := int32(0); i < logbuffer.PartitionCount; i++ {
		mapped, err := shm.MapNew(filepath.Join(dir, TermFileName(i)), int64(termLength))
		if err != nil {
			log.Close()
			return nil, err
		}
		log.termFiles[i] = mapped
		log.terms[i] = mapped.Buffer()
	}

	metaFile, err := shm.MapNew(filepath.Join(dir, MetaFileName), logbuffer.LogMetaDataLength)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.metaFile = metaFile

	meta, err := logbuffer.WrapMetaData(metaFile.Buffer())
	if err != nil {
		log.Close()
		return nil, err
	}
	log.meta = meta

	meta.SetTermLength(termLength)
	meta.SetMTULength(mtu)
	meta.SetSessionID(sessionID)
	meta.SetStreamID(streamID)
	meta.InitForTermID(initialTermID)
	return log, nil
}

// MapRawLog maps an existing stream log created by another process.
func MapRawLog(dir string, termLength int32) (*RawLog, error) {
	if err := logbuffer.CheckTermLength(termLength); err != nil {
		return nil, err
	}

	log := &RawLog{dir: dir, termLength: termLength}
	for i := int32(0); i < logbuffer.PartitionCount; i++ {
		mapped, err := shm.MapExisting(filepath.Join(dir, TermFileName(i)), int64(termLength))
		if err != nil {
			log.Close()
			return nil, err
		}
		log.termFiles[i] = mapped
		log.terms[i] = mapped.Buffer()
	}

	metaFile, err := shm.MapExisting(filepath.Join(dir, MetaFileName), logbuffer.LogMetaDataLength)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.metaFile = metaFile

	meta, err := logbuffer.WrapMetaData(metaFile.Buffer())
	if err != nil {
		log.Close()
		return nil, err
	}
	log.meta = meta
	return log, nil
}

// Term returns the term buffer of a partition.
func (l *RawLog) Term(partitionIndex int32) *concurrent.AtomicBuffer {
	return l.terms[partitionIndex]
}

// MetaData returns the log's shared metadata.
func (l *RawLog) MetaData() *logbuffer.MetaData { return l.meta }

// TermLength returns the length of each term partition.
func (l *RawLog) TermLength() int32 { return l.termLength }

// Dir returns the log directory.
func (l *RawLog) Dir() string { return l.dir }

// CleanDirtyPartitions zeroes any partition retired by a rotation and
// marks it clean. It returns the number of partitions cleaned.
func (l *RawLog) CleanDirtyPartitions() int {
	cleaned := 0
	for i := int32(0); i < logbuffer.PartitionCount; i++ {
		if l.meta.Status(i) == logbuffer.StatusDirty {
			l.terms[i].SetMemory(0, l.termLength, 0)
			l.meta.SetStatusOrdered(i, logbuffer.StatusClean)
			cleaned++
		}
	}
	return cleaned
}

// Close unmaps every file of the log.
func (l *RawLog) Close() error {
	var firstErr error
	for _, f := range l.termFiles {
		if f != nil {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if l.metaFile != nil {
		if err := l.metaFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Delete unmaps the log and removes its directory.
func (l *RawLog) Delete() error {
	if err := l.Close(); err != nil {
		return err
	}
	return os.RemoveAll(l.dir)
}
