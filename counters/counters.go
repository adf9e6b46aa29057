// Package counters manages the shared counters file: a metadata region of
// fixed records describing each counter and a values region of cache line
// spaced 64-bit slots readable by any process mapping the file.
package counters

import (
	"fmt"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// Counter type ids published in the metadata region.
const (
	TypeSystem             int32 = 0
	TypePublisherLimit     int32 = 1
	TypeSenderPosition     int32 = 2
	TypeReceiverHwm        int32 = 3
	TypeSubscriberPosition int32 = 4
	TypeReceiverPosition   int32 = 5
)

// Metadata record layout. Each record holds the state, type id and label of
// one counter; the value lives at the same index in the values region.
const (
	MetadataRecordLength = 2 * concurrent.CacheLineLength
	ValueLength          = concurrent.CacheLineLength

	recordUnused    int32 = 0
	recordAllocated int32 = 1
	recordReclaimed int32 = -1

	stateOffset     = 0
	typeIDOffset    = 4
	keyOffset       = 16
	labelLenOffset  = concurrent.CacheLineLength
	labelOffset     = concurrent.CacheLineLength + 4
	maxLabelLength  = concurrent.CacheLineLength - 4
	maxKeyLength    = labelLenOffset - keyOffset
)

// Manager allocates and frees counters. Allocation happens only on the
// Conductor; reads of counter values are safe from any mapper of the file.
type Manager struct {
	metadata *concurrent.AtomicBuffer
	values   *concurrent.AtomicBuffer
	maxID    int32
	freeList []int32
}

// NewManager wraps the metadata and values regions of a counters file.
func NewManager(metadata, values *concurrent.AtomicBuffer) (*Manager, error) {
	maxByValues := values.Capacity() / ValueLength
	maxByMeta := metadata.Capacity() / MetadataRecordLength
	if maxByMeta < maxByValues {
		return nil, errors.WrapInvalid(
			fmt.Errorf("metadata region holds %d records but values region holds %d", maxByMeta, maxByValues),
			"counters", "NewManager", "validate regions")
	}
	return &Manager{metadata: metadata, values: values, maxID: maxByValues}, nil
}

// Allocate creates a counter with a type id, opaque key and label, returning
// its id. ErrInsufficientCapacity reports a full counters file.
func (m *Manager) Allocate(typeID int32, key []byte, label string) (int32, error) {
	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}
	if len(key) > maxKeyLength {
		return 0, errors.WrapInvalid(
			fmt.Errorf("key of %d bytes exceeds %d", len(key), maxKeyLength),
			"counters", "Allocate", "validate key")
	}

	id, err := m.nextID()
	if err != nil {
		return 0, err
	}

	record := id * MetadataRecordLength
	m.values.PutInt64Ordered(valueOffset(id), 0)
	m.metadata.PutInt32(record+typeIDOffset, typeID)
	if len(key) > 0 {
		m.metadata.PutBytes(record+keyOffset, key)
	}
	m.metadata.PutInt32(record+labelLenOffset, int32(len(label)))
	m.metadata.PutBytes(record+labelOffset, []byte(label))
	m.metadata.PutInt32Ordered(record+stateOffset, recordAllocated)
	return id, nil
}

func (m *Manager) nextID() (int32, error) {
	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return id, nil
	}
	for id := int32(0); id < m.maxID; id++ {
		if m.metadata.GetInt32Volatile(id*MetadataRecordLength+stateOffset) == recordUnused {
			return id, nil
		}
	}
	return 0, errors.WrapTransient(errors.ErrInsufficientCapacity,
		"counters", "Allocate", "find free record")
}

// Free reclaims a counter id for reuse.
func (m *Manager) Free(id int32) {
	m.metadata.PutInt32Ordered(id*MetadataRecordLength+stateOffset, recordReclaimed)
	m.metadata.SetMemory(id*MetadataRecordLength+typeIDOffset, MetadataRecordLength-typeIDOffset, 0)
	m.metadata.PutInt32Ordered(id*MetadataRecordLength+stateOffset, recordUnused)
	m.freeList = append(m.freeList, id)
}

// Label returns the label of an allocated counter.
func (m *Manager) Label(id int32) string {
	record := id * MetadataRecordLength
	length := m.metadata.GetInt32(record + labelLenOffset)
	buf := make([]byte, length)
	m.metadata.GetBytes(record+labelOffset, buf)
	return string(buf)
}

// ForEach invokes fn with the id, type id and label of every allocated
// counter.
func (m *Manager) ForEach(fn func(id, typeID int32, label string)) {
	for id := int32(0); id < m.maxID; id++ {
		record := id * MetadataRecordLength
		if m.metadata.GetInt32Volatile(record+stateOffset) == recordAllocated {
			fn(id, m.metadata.GetInt32(record+typeIDOffset), m.Label(id))
		}
	}
}

func valueOffset(id int32) int32 {
	return id * ValueLength
}

// Position is a single counter slot used as a stream position indicator.
// Setters publish with release ordering so position consumers on other
// agents observe monotonic values.
type Position struct {
	values *concurrent.AtomicBuffer
	id     int32
	offset int32
}

// NewPosition binds a position to a counter id in the values region.
func NewPosition(values *concurrent.AtomicBuffer, id int32) *Position {
	return &Position{values: values, id: id, offset: valueOffset(id)}
}

// ID returns the counter id backing this position.
func (p *Position) ID() int32 { return p.id }

// Get reads the position with acquire ordering.
func (p *Position) Get() int64 {
	return p.values.GetInt64Volatile(p.offset)
}

// Set publishes a new position.
func (p *Position) Set(value int64) {
	p.values.PutInt64Ordered(p.offset, value)
}

// ProposeMax publishes value only if it advances the position.
func (p *Position) ProposeMax(value int64) bool {
	if p.Get() < value {
		p.Set(value)
		return true
	}
	return false
}

// Increment adds one to the counter and returns the new value.
func (p *Position) Increment() int64 {
	return p.values.GetAndAddInt64(p.offset, 1) + 1
}

// Add adds delta to the counter and returns the new value.
func (p *Position) Add(delta int64) int64 {
	return p.values.GetAndAddInt64(p.offset, delta) + delta
}
