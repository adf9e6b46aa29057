package driver

import (
	"fmt"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/errors"
)

// The command-and-control file describes a running driver instance: its
// protocol version, the lengths of the admin buffers a client must map,
// the liveness timeout clients have to honor, and the identity of the
// process that created the directory. A version mismatch means client and
// driver binaries disagree on buffer layouts and must not proceed.
const (
	CncVersion int32 = 1

	CncFileLength int32 = 256

	cncVersionOffset         = 0
	cncToDriverLenOffset     = 4
	cncToClientsLenOffset    = 8
	cncCounterLabelsOffset   = 12
	cncCounterValuesOffset   = 16
	cncClientLivenessOffset  = 24
	cncPidOffset             = 32
	cncStartTimestampOffset  = 40
	cncInstanceIDLenOffset   = 48
	cncInstanceIDOffset      = 52
	cncMaxInstanceIDLength   = CncFileLength - cncInstanceIDOffset
)

// CncFile is a flyweight over the mapped cnc.dat metadata.
type CncFile struct {
	buffer *concurrent.AtomicBuffer
}

func WrapCncFile(buffer *concurrent.AtomicBuffer) *CncFile {
	return &CncFile{buffer: buffer}
}

// Init writes the driver's identity. The version field is written last and
// released so a concurrent mapper never reads half-written metadata.
func (c *CncFile) Init(
	toDriverLen, toClientsLen, counterLabelsLen, counterValuesLen int32,
	clientLivenessNs, pid, startTimestampMs int64, instanceID string,
) {
	c.buffer.PutInt32(cncToDriverLenOffset, toDriverLen)
	c.buffer.PutInt32(cncToClientsLenOffset, toClientsLen)
	c.buffer.PutInt32(cncCounterLabelsOffset, counterLabelsLen)
	c.buffer.PutInt32(cncCounterValuesOffset, counterValuesLen)
	c.buffer.PutInt64(cncClientLivenessOffset, clientLivenessNs)
	c.buffer.PutInt64(cncPidOffset, pid)
	c.buffer.PutInt64(cncStartTimestampOffset, startTimestampMs)

	id := []byte(instanceID)
	if int32(len(id)) > cncMaxInstanceIDLength {
		id = id[:cncMaxInstanceIDLength]
	}
	c.buffer.PutBytes(cncInstanceIDOffset, id)
	c.buffer.PutInt32(cncInstanceIDLenOffset, int32(len(id)))

	c.buffer.PutInt32Ordered(cncVersionOffset, CncVersion)
}

// CheckVersion validates that the mapped file was written by a compatible
// driver.
func (c *CncFile) CheckVersion() error {
	v := c.buffer.GetInt32Volatile(cncVersionOffset)
	if v != CncVersion {
		return errors.WrapInvalid(
			fmt.Errorf("cnc version %d, expected %d", v, CncVersion),
			"driver", "CheckVersion", "validate cnc file")
	}
	return nil
}

func (c *CncFile) ToDriverLength() int32      { return c.buffer.GetInt32(cncToDriverLenOffset) }
func (c *CncFile) ToClientsLength() int32     { return c.buffer.GetInt32(cncToClientsLenOffset) }
func (c *CncFile) CounterLabelsLength() int32 { return c.buffer.GetInt32(cncCounterLabelsOffset) }
func (c *CncFile) CounterValuesLength() int32 { return c.buffer.GetInt32(cncCounterValuesOffset) }

// ClientLivenessTimeoutNs is the silence after which the driver reclaims a
// client's resources.
func (c *CncFile) ClientLivenessTimeoutNs() int64 { return c.buffer.GetInt64(cncClientLivenessOffset) }

func (c *CncFile) Pid() int64              { return c.buffer.GetInt64(cncPidOffset) }
func (c *CncFile) StartTimestampMs() int64 { return c.buffer.GetInt64(cncStartTimestampOffset) }

// InstanceID returns the unique id minted for this driver run.
func (c *CncFile) InstanceID() string {
	length := c.buffer.GetInt32(cncInstanceIDLenOffset)
	if length <= 0 || length > cncMaxInstanceIDLength {
		return ""
	}
	id := make([]byte, length)
	c.buffer.GetBytes(cncInstanceIDOffset, id)
	return string(id)
}
