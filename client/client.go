// Package client connects a process to a running media driver: it maps the
// driver's admin buffers, serializes commands over the to-driver ring and
// adapts the to-clients broadcast into callbacks and awaited responses.
package client

import (
	"log/slog"
	"time"

	"github.com/chris-numeus/aeron/concurrent"
	"github.com/chris-numeus/aeron/concurrent/broadcast"
	"github.com/chris-numeus/aeron/concurrent/ringbuffer"
	"github.com/chris-numeus/aeron/config"
	"github.com/chris-numeus/aeron/counters"
	"github.com/chris-numeus/aeron/driver"
	"github.com/chris-numeus/aeron/shm"
)

// DefaultDriverTimeout is how long a client waits for a driver response or
// heartbeat before concluding the driver is gone.
const DefaultDriverTimeout = 10 * time.Second

// Client is one process's connection to a media driver instance.
type Client struct {
	cncMap       *shm.MappedFile
	toDriverMap  *shm.MappedFile
	toClientsMap *shm.MappedFile
	valuesMap    *shm.MappedFile

	conductor *Conductor
	logger    *slog.Logger
	closed    bool
}

// Connect maps the admin buffers of the driver running over aeronDir and
// validates compatibility through the cnc file.
func Connect(aeronDir string, logger *slog.Logger) (*Client, error) {
	ctx := &config.Context{AeronDir: aeronDir}
	c := &Client{logger: logger.With("component", "client")}

	var err error
	if c.cncMap, err = shm.MapExisting(ctx.CncFile(), int64(driver.CncFileLength)); err != nil {
		return nil, err
	}
	cnc := driver.WrapCncFile(c.cncMap.Buffer())
	if err := cnc.CheckVersion(); err != nil {
		c.unmapAll()
		return nil, err
	}

	if c.toDriverMap, err = shm.MapExisting(ctx.ToDriverFile(), int64(cnc.ToDriverLength())); err != nil {
		c.unmapAll()
		return nil, err
	}
	if c.toClientsMap, err = shm.MapExisting(ctx.ToClientsFile(), int64(cnc.ToClientsLength())); err != nil {
		c.unmapAll()
		return nil, err
	}
	if c.valuesMap, err = shm.MapExisting(ctx.CounterValuesFile(), int64(cnc.CounterValuesLength())); err != nil {
		c.unmapAll()
		return nil, err
	}

	ring, err := ringbuffer.New(c.toDriverMap.Buffer())
	if err != nil {
		c.unmapAll()
		return nil, err
	}
	receiver, err := broadcast.NewReceiver(c.toClientsMap.Buffer())
	if err != nil {
		c.unmapAll()
		return nil, err
	}

	// Keep well inside the liveness window so one missed poll does not get
	// this client's resources reclaimed.
	keepaliveInterval := time.Duration(cnc.ClientLivenessTimeoutNs()) / 4

	c.conductor = NewConductor(
		NewDriverProxy(ring), ring, broadcast.NewCopyReceiver(receiver),
		DefaultDriverTimeout, keepaliveInterval, logger)

	c.logger.Info("connected to media driver",
		"dir", aeronDir, "instance", cnc.InstanceID(), "driver_pid", cnc.Pid())
	return c, nil
}

// Conductor exposes the client's control plane.
func (c *Client) Conductor() *Conductor { return c.conductor }

// Position wraps a counter id from a BuffersReady answer so the client can
// read and advance the shared position.
func (c *Client) Position(counterID int32) *counters.Position {
	return counters.NewPosition(c.valuesMap.Buffer(), counterID)
}

// CounterValues exposes the mapped counter values region.
func (c *Client) CounterValues() *concurrent.AtomicBuffer {
	return c.valuesMap.Buffer()
}

// Close unmaps the admin buffers. Publications and subscriptions still
// registered are reclaimed by the driver once keepalives stop.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.unmapAll()
	c.logger.Info("client closed")
	return nil
}

func (c *Client) unmapAll() {
	for _, m := range []*shm.MappedFile{c.cncMap, c.toDriverMap, c.toClientsMap, c.valuesMap} {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil {
			c.logger.Error("buffer unmap failed", "file", m.Name(), "error", err)
		}
	}
}
