package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/broadcast"
	"github.com/chris-numeus/aeron/concurrent/ringbuffer"
	"github.com/chris-numeus/aeron/errors"
)

// Property names understood by NewContext.
const (
	PropAeronDir             = "aeron.dir"
	PropDirDeleteOnStart     = "aeron.dir.delete.on.start"
	PropDirDeleteOnShutdown  = "aeron.dir.delete.on.shutdown"
	PropTermBufferLength     = "aeron.term.buffer.length"
	PropMTULength            = "aeron.mtu.length"
	PropInitialWindowLength  = "aeron.rcv.initial.window.length"
	PropSocketRcvBufLength   = "aeron.rcv.buffer.size"
	PropCommandBufferLength  = "aeron.command.buffer.size"
	PropConductorBufferLen   = "aeron.conductor.buffer.size"
	PropToClientsBufferLen   = "aeron.clients.buffer.size"
	PropCountersBufferLen    = "aeron.dir.counters.size"
	PropMulticastInterface   = "aeron.multicast.default.interface"
	PropClientLivenessTimout = "aeron.client.liveness.timeout"
	PropPublicationLinger    = "aeron.publication.linger.timeout"
	PropImageLivenessTimeout = "aeron.image.liveness.timeout"
	PropEventLog             = "aeron.event.log"
	PropMetricsAddr          = "aeron.metrics.addr"
)

// Driver defaults.
const (
	DefaultTermBufferLength    = 16 * 1024 * 1024
	DefaultIPCTermBufferLength = 64 * 1024 * 1024
	DefaultMTULength           = 1408
	DefaultInitialWindowLength = 128 * 1024
	DefaultSocketRcvBufLength  = 128 * 1024
	DefaultSocketSndBufLength  = 0 // OS default

	// Buffer file lengths include the control trailer appended after the
	// power-of-two data region.
	DefaultConductorBufferLength = 1024*1024 + ringbuffer.TrailerLength
	DefaultToClientsBufferLength = 1024*1024 + broadcast.TrailerLength
	DefaultCountersValuesLength  = 1024 * 1024
	DefaultErrorBufferLength     = 1024 * 1024
	DefaultCommandBufferLength   = 64 * 1024

	DefaultClientLivenessTimeout  = 10 * time.Second
	DefaultPublicationLinger      = 5 * time.Second
	DefaultImageLivenessTimeout   = 10 * time.Second
	DefaultStatusMessageTimeout   = 200 * time.Millisecond
	DefaultPublicationUnblockTime = 15 * time.Second
	DefaultTimerInterval          = time.Second

	DefaultNakUnicastDelay       = 60 * time.Millisecond
	DefaultNakMulticastGroupSize = 10
	DefaultNakMulticastMaxBackoff = 60 * time.Millisecond
	DefaultRetransmitDelay       = 0
	DefaultRetransmitLinger      = 60 * time.Millisecond
	DefaultMaxRetransmits        = 16

	DefaultTimerWheelTick  = 10 * time.Millisecond
	DefaultTimerWheelSlots = 1024
)

// DefaultAeronDir returns the per-user driver directory, preferring /dev/shm
// when present so the mapped files never touch a disk.
func DefaultAeronDir() string {
	base := os.TempDir()
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		base = "/dev/shm"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "default"
	}
	return filepath.Join(base, "aeron-"+user)
}

// Context carries every concluded driver setting. Zero or negative fields
// are filled with defaults by Conclude.
type Context struct {
	AeronDir            string
	DirDeleteOnStart    bool
	DirDeleteOnShutdown bool

	TermBufferLength    int32
	IPCTermBufferLength int32
	MTULength           int32
	InitialWindowLength int32
	SocketRcvBufLength  int32
	SocketSndBufLength  int32

	ConductorBufferLength int32
	ToClientsBufferLength int32
	CountersValuesLength  int32
	ErrorBufferLength     int32
	CommandBufferLength   int32

	MulticastInterface string

	ClientLivenessTimeout  time.Duration
	PublicationLinger      time.Duration
	ImageLivenessTimeout   time.Duration
	StatusMessageTimeout   time.Duration
	PublicationUnblockTime time.Duration
	TimerInterval          time.Duration

	NakUnicastDelay        time.Duration
	NakMulticastGroupSize  int
	NakMulticastMaxBackoff time.Duration
	RetransmitDelay        time.Duration
	RetransmitLinger       time.Duration
	MaxRetransmits         int

	TimerWheelTick  time.Duration
	TimerWheelSlots int

	EventLogSpec string
	MetricsAddr  string

	concluded bool
}

// NewContext builds a context from properties layered over the defaults.
// Construction never fails: a property value that does not parse is
// ignored and the setting keeps its default; Conclude does not report it.
func NewContext() *Context {
	ctx := &Context{
		AeronDir:            Property(PropAeronDir, DefaultAeronDir()),
		DirDeleteOnStart:    Property(PropDirDeleteOnStart, "") == "true",
		DirDeleteOnShutdown: Property(PropDirDeleteOnShutdown, "") == "true",
		MulticastInterface:  Property(PropMulticastInterface, ""),
		EventLogSpec:        Property(PropEventLog, ""),
		MetricsAddr:         Property(PropMetricsAddr, ""),
	}

	if v, err := SizeProperty(PropTermBufferLength, DefaultTermBufferLength); err == nil {
		ctx.TermBufferLength = int32(v)
	}
	if v, err := SizeProperty(PropMTULength, DefaultMTULength); err == nil {
		ctx.MTULength = int32(v)
	}
	if v, err := SizeProperty(PropInitialWindowLength, DefaultInitialWindowLength); err == nil {
		ctx.InitialWindowLength = int32(v)
	}
	if v, err := SizeProperty(PropSocketRcvBufLength, DefaultSocketRcvBufLength); err == nil {
		ctx.SocketRcvBufLength = int32(v)
	}
	if v, err := SizeProperty(PropCommandBufferLength, DefaultCommandBufferLength); err == nil {
		ctx.CommandBufferLength = int32(v)
	}
	if v, err := SizeProperty(PropConductorBufferLen, DefaultConductorBufferLength); err == nil {
		ctx.ConductorBufferLength = int32(v)
	}
	if v, err := SizeProperty(PropToClientsBufferLen, DefaultToClientsBufferLength); err == nil {
		ctx.ToClientsBufferLength = int32(v)
	}
	if v, err := SizeProperty(PropCountersBufferLen, DefaultCountersValuesLength); err == nil {
		ctx.CountersValuesLength = int32(v)
	}
	if v, err := DurationProperty(PropClientLivenessTimout, DefaultClientLivenessTimeout); err == nil {
		ctx.ClientLivenessTimeout = v
	}
	if v, err := DurationProperty(PropPublicationLinger, DefaultPublicationLinger); err == nil {
		ctx.PublicationLinger = v
	}
	if v, err := DurationProperty(PropImageLivenessTimeout, DefaultImageLivenessTimeout); err == nil {
		ctx.ImageLivenessTimeout = v
	}

	return ctx
}

// Conclude fills unset fields with defaults and validates the result. It is
// idempotent.
func (c *Context) Conclude() error {
	if c.concluded {
		return nil
	}

	if c.AeronDir == "" {
		c.AeronDir = DefaultAeronDir()
	}
	fillInt32(&c.TermBufferLength, DefaultTermBufferLength)
	fillInt32(&c.IPCTermBufferLength, DefaultIPCTermBufferLength)
	fillInt32(&c.MTULength, DefaultMTULength)
	fillInt32(&c.InitialWindowLength, DefaultInitialWindowLength)
	fillInt32(&c.SocketRcvBufLength, DefaultSocketRcvBufLength)
	fillInt32(&c.ConductorBufferLength, DefaultConductorBufferLength)
	fillInt32(&c.ToClientsBufferLength, DefaultToClientsBufferLength)
	fillInt32(&c.CountersValuesLength, DefaultCountersValuesLength)
	fillInt32(&c.ErrorBufferLength, DefaultErrorBufferLength)
	fillInt32(&c.CommandBufferLength, DefaultCommandBufferLength)
	fillDuration(&c.ClientLivenessTimeout, DefaultClientLivenessTimeout)
	fillDuration(&c.PublicationLinger, DefaultPublicationLinger)
	fillDuration(&c.ImageLivenessTimeout, DefaultImageLivenessTimeout)
	fillDuration(&c.StatusMessageTimeout, DefaultStatusMessageTimeout)
	fillDuration(&c.PublicationUnblockTime, DefaultPublicationUnblockTime)
	fillDuration(&c.TimerInterval, DefaultTimerInterval)
	fillDuration(&c.NakUnicastDelay, DefaultNakUnicastDelay)
	if c.NakMulticastGroupSize <= 0 {
		c.NakMulticastGroupSize = DefaultNakMulticastGroupSize
	}
	fillDuration(&c.NakMulticastMaxBackoff, DefaultNakMulticastMaxBackoff)
	fillDuration(&c.RetransmitLinger, DefaultRetransmitLinger)
	if c.MaxRetransmits <= 0 {
		c.MaxRetransmits = DefaultMaxRetransmits
	}
	fillDuration(&c.TimerWheelTick, DefaultTimerWheelTick)
	if c.TimerWheelSlots <= 0 {
		c.TimerWheelSlots = DefaultTimerWheelSlots
	}

	if err := c.validate(); err != nil {
		return err
	}
	c.concluded = true
	return nil
}

func (c *Context) validate() error {
	if !concurrent.IsPowerOfTwo(int64(c.TermBufferLength)) {
		return invalid("term buffer length %d is not a power of two", c.TermBufferLength)
	}
	if c.MTULength < 64 || c.MTULength > 65504 {
		return invalid("mtu length %d outside [64, 65504]", c.MTULength)
	}
	if c.MTULength%32 != 0 {
		return invalid("mtu length %d is not frame aligned", c.MTULength)
	}
	if c.InitialWindowLength < c.MTULength {
		return invalid("initial window %d smaller than mtu %d", c.InitialWindowLength, c.MTULength)
	}
	if !concurrent.IsPowerOfTwo(int64(c.TimerWheelSlots)) {
		return invalid("timer wheel slots %d is not a power of two", c.TimerWheelSlots)
	}
	return nil
}

// CncFile returns the path of the command-and-control file.
func (c *Context) CncFile() string {
	return filepath.Join(c.AeronDir, "cnc.dat")
}

// LossReportFile returns the path of the loss report file.
func (c *Context) LossReportFile() string {
	return filepath.Join(c.AeronDir, "loss-report.dat")
}

// PublicationsDir returns the directory holding publication term logs.
func (c *Context) PublicationsDir() string {
	return filepath.Join(c.AeronDir, "publications")
}

// ImagesDir returns the directory holding image term logs.
func (c *Context) ImagesDir() string {
	return filepath.Join(c.AeronDir, "subscriptions")
}

// AdminDir returns the directory holding the control buffers shared with
// clients.
func (c *Context) AdminDir() string {
	return filepath.Join(c.AeronDir, "admin")
}

// ToDriverFile returns the path of the command ring buffer file.
func (c *Context) ToDriverFile() string {
	return filepath.Join(c.AdminDir(), "to-driver.dat")
}

// ToClientsFile returns the path of the broadcast buffer file.
func (c *Context) ToClientsFile() string {
	return filepath.Join(c.AdminDir(), "to-clients.dat")
}

// CountersDir returns the directory holding the counters files.
func (c *Context) CountersDir() string {
	return filepath.Join(c.AdminDir(), "counters")
}

// CounterLabelsFile returns the path of the counters metadata file.
func (c *Context) CounterLabelsFile() string {
	return filepath.Join(c.CountersDir(), "labels.dat")
}

// CounterValuesFile returns the path of the counters values file.
func (c *Context) CounterValuesFile() string {
	return filepath.Join(c.CountersDir(), "values.dat")
}

func fillInt32(field *int32, def int32) {
	if *field <= 0 {
		*field = def
	}
}

func fillDuration(field *time.Duration, def time.Duration) {
	if *field <= 0 {
		*field = def
	}
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf(format, args...), "config", "Conclude", "validate")
}
