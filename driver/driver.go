package driver

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chris-numeus/aeron/concurrent/broadcast"
	"github.com/chris-numeus/aeron/concurrent/idle"
	"github.com/chris-numeus/aeron/concurrent/ringbuffer"
	"github.com/chris-numeus/aeron/config"
	"github.com/chris-numeus/aeron/counters"
	"github.com/chris-numeus/aeron/errors"
	"github.com/chris-numeus/aeron/event"
	"github.com/chris-numeus/aeron/health"
	"github.com/chris-numeus/aeron/metric"
	"github.com/chris-numeus/aeron/shm"
)

const (
	agentStopTimeout = 5 * time.Second
	agentJoinRetries = 3

	// Idle backoff tuned for sub-millisecond wakeup without burning a core
	// on an idle driver.
	idleMaxSpins  = 100
	idleMaxYields = 100
	idleMinPark   = 10 * time.Nanosecond
	idleMaxPark   = 100 * time.Microsecond
)

// MediaDriver owns the driver directory, the admin buffers shared with
// client processes and the three agents. A driver is either launched on
// its own goroutines with Launch, or embedded by running the Agents on
// caller-managed goroutines; in the embedded case the caller drives the
// duty cycles and MediaDriver only manages files and buffers.
type MediaDriver struct {
	ctx    *config.Context
	logger *slog.Logger
	events *event.Logger

	registry *metric.MetricsRegistry
	server   *metric.Server
	monitor  *health.Monitor

	cncMap        *shm.MappedFile
	toDriverMap   *shm.MappedFile
	toClientsMap  *shm.MappedFile
	labelsMap     *shm.MappedFile
	valuesMap     *shm.MappedFile

	instanceID string

	conductor *Conductor
	sender    *Sender
	receiver  *Receiver
	runners   []*AgentRunner

	closed bool
}

// NewMediaDriver concludes the context, stands up the driver directory and
// admin buffers, and constructs the three agents. Nothing runs until
// Launch or until the caller starts the Agents itself.
func NewMediaDriver(ctx *config.Context, logger *slog.Logger) (*MediaDriver, error) {
	if err := ctx.Conclude(); err != nil {
		return nil, err
	}

	d := &MediaDriver{
		ctx:        ctx,
		logger:     logger.With("component", "media-driver"),
		events:     event.NewLogger(ctx.EventLogSpec),
		registry:   metric.NewMetricsRegistry(),
		monitor:    health.NewMonitor(),
		instanceID: uuid.NewString(),
	}

	if err := d.createDirectories(); err != nil {
		return nil, err
	}
	if err := d.mapAdminBuffers(); err != nil {
		d.unmapAll()
		return nil, err
	}
	if err := d.buildAgents(); err != nil {
		d.unmapAll()
		return nil, err
	}
	d.writeCncFile()

	if ctx.MetricsAddr != "" {
		port, err := parseMetricsPort(ctx.MetricsAddr)
		if err != nil {
			d.unmapAll()
			return nil, err
		}
		d.server = metric.NewServer(port, "/metrics", d.registry)
	}

	d.logger.Info("media driver constructed",
		"dir", ctx.AeronDir, "instance", d.instanceID, "pid", os.Getpid())
	return d, nil
}

func (d *MediaDriver) createDirectories() error {
	if d.ctx.DirDeleteOnStart {
		if err := shm.DeleteDir(d.ctx.AeronDir); err != nil {
			return err
		}
	} else if _, err := os.Stat(d.ctx.AeronDir); err == nil {
		d.logger.Warn("driver directory already exists", "dir", d.ctx.AeronDir)
	}

	if err := shm.EnsureDir(d.ctx.AeronDir, false); err != nil {
		return err
	}
	for _, dir := range []string{
		d.ctx.AdminDir(), d.ctx.CountersDir(),
		d.ctx.PublicationsDir(), d.ctx.ImagesDir(),
	} {
		if err := shm.EnsureDir(dir, true); err != nil {
			return err
		}
	}
	return nil
}

func (d *MediaDriver) mapAdminBuffers() error {
	var err error
	if d.cncMap, err = shm.MapNew(d.ctx.CncFile(), int64(CncFileLength)); err != nil {
		return err
	}
	if d.toDriverMap, err = shm.MapNew(d.ctx.ToDriverFile(), int64(d.ctx.ConductorBufferLength)); err != nil {
		return err
	}
	if d.toClientsMap, err = shm.MapNew(d.ctx.ToClientsFile(), int64(d.ctx.ToClientsBufferLength)); err != nil {
		return err
	}
	// The metadata region holds one two-cache-line record per value slot.
	labelsLength := int64(d.ctx.CountersValuesLength) *
		int64(counters.MetadataRecordLength) / int64(counters.ValueLength)
	if d.labelsMap, err = shm.MapNew(d.ctx.CounterLabelsFile(), labelsLength); err != nil {
		return err
	}
	if d.valuesMap, err = shm.MapNew(d.ctx.CounterValuesFile(), int64(d.ctx.CountersValuesLength)); err != nil {
		return err
	}
	return nil
}

func (d *MediaDriver) buildAgents() error {
	ring, err := ringbuffer.New(d.toDriverMap.Buffer())
	if err != nil {
		return err
	}
	transmitter, err := broadcast.NewTransmitter(d.toClientsMap.Buffer())
	if err != nil {
		return err
	}
	counterManager, err := counters.NewManager(d.labelsMap.Buffer(), d.valuesMap.Buffer())
	if err != nil {
		return err
	}

	metrics := d.registry.CoreMetrics()
	queueCapacity := int(d.ctx.CommandBufferLength) / 64

	senderProxy := NewSenderProxy(queueCapacity, d.logger)
	receiverProxy := NewReceiverProxy(queueCapacity, d.logger)
	conductorProxy := NewConductorProxy(queueCapacity, d.logger)

	d.sender = NewSender(senderProxy, d.logger, d.events, metrics)
	d.receiver = NewReceiver(receiverProxy, conductorProxy,
		d.ctx.ImageLivenessTimeout, d.logger, d.events, metrics)

	d.conductor, err = NewConductor(ConductorParams{
		Context:       d.ctx,
		ToDriverRing:  ring,
		ToClients:     transmitter,
		Counters:      counterManager,
		CounterValues: d.valuesMap.Buffer(),
		SenderProxy:   senderProxy,
		ReceiverProxy: receiverProxy,
		FromReceiver:  conductorProxy,
		Logger:        d.logger,
		Events:        d.events,
		Metrics:       metrics,
	})
	return err
}

func (d *MediaDriver) writeCncFile() {
	cnc := WrapCncFile(d.cncMap.Buffer())
	cnc.Init(
		d.ctx.ConductorBufferLength, d.ctx.ToClientsBufferLength,
		d.labelsMap.Buffer().Capacity(), d.ctx.CountersValuesLength,
		d.ctx.ClientLivenessTimeout.Nanoseconds(),
		int64(os.Getpid()), time.Now().UnixMilli(), d.instanceID)
}

// Agents returns the three duty cycle agents in start order for embedded
// use. The caller owns their goroutines and must invoke each agent's
// OnClose before closing the driver.
func (d *MediaDriver) Agents() []Agent {
	return []Agent{d.conductor, d.sender, d.receiver}
}

// Conductor exposes the control plane agent.
func (d *MediaDriver) Conductor() *Conductor { return d.conductor }

// Health refreshes the monitor from the runner snapshots and exposes it.
func (d *MediaDriver) Health() *health.Monitor {
	for i, runner := range d.runners {
		agent := d.Agents()[i]
		d.monitor.Update(agent.Name(), health.FromAgentHealth(agent.Name(), runner.Health()))
	}
	return d.monitor
}

// Registry exposes the metrics registry for embedding processes that serve
// their own metrics endpoint.
func (d *MediaDriver) Registry() *metric.MetricsRegistry { return d.registry }

// InstanceID returns the unique id minted for this driver run.
func (d *MediaDriver) InstanceID() string { return d.instanceID }

// Launch starts one goroutine per agent and, when configured, the metrics
// server.
func (d *MediaDriver) Launch() {
	metrics := d.registry.CoreMetrics()
	for _, agent := range d.Agents() {
		runner := NewAgentRunner(agent, NewDriverIdleStrategy(), d.logger, metrics)
		runner.Start()
		d.runners = append(d.runners, runner)
		d.monitor.UpdateHealthy(agent.Name(), "agent running")
		metrics.RecordHealthStatus(agent.Name(), true)
	}

	if d.server != nil {
		go func() {
			if err := d.server.Start(); err != nil {
				d.logger.Error("metrics server failed", "error", err)
			}
		}()
	}
	d.logger.Info("media driver launched", "dir", d.ctx.AeronDir)
}

// Close stops the agents with a bounded retrying join, unmaps the
// admin buffers and, when configured, deletes the driver directory.
func (d *MediaDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	if d.server != nil {
		if err := d.server.Stop(); err != nil {
			d.logger.Error("metrics server stop failed", "error", err)
		}
	}

	metrics := d.registry.CoreMetrics()
	for _, runner := range d.runners {
		stopped := runner.Stop(agentStopTimeout)
		for retry := 0; !stopped && retry < agentJoinRetries; retry++ {
			d.logger.Warn("waiting for agent to stop", "retry", retry+1)
			stopped = runner.Join(agentStopTimeout)
		}
	}
	for _, agent := range d.Agents() {
		d.monitor.UpdateUnhealthy(agent.Name(), "agent stopped")
		metrics.RecordHealthStatus(agent.Name(), false)
	}

	d.unmapAll()

	if d.ctx.DirDeleteOnShutdown {
		if err := shm.DeleteDir(d.ctx.AeronDir); err != nil {
			return err
		}
	}
	d.logger.Info("media driver closed")
	return nil
}

func (d *MediaDriver) unmapAll() {
	for _, m := range []*shm.MappedFile{
		d.cncMap, d.toDriverMap, d.toClientsMap, d.labelsMap, d.valuesMap,
	} {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil {
			d.logger.Error("buffer unmap failed", "file", m.Name(), "error", err)
		}
	}
}

// NewDriverIdleStrategy returns the backoff used by the driver agents.
func NewDriverIdleStrategy() idle.Strategy {
	return idle.NewBackoff(idleMaxSpins, idleMaxYields, idleMinPark, idleMaxPark)
}

func parseMetricsPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// A bare port is accepted too.
		portStr = addr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 0, errors.WrapInvalid(
			fmt.Errorf("invalid metrics address %q", addr),
			"driver", "NewMediaDriver", "parse metrics address")
	}
	return port, nil
}
