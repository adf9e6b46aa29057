// Package aeron is a high-throughput UDP message transport built around a
// standalone media driver and thin shared-memory clients.
//
// # Architecture
//
// The media driver owns all sockets and all log buffers. Clients never touch
// the network: they talk to the driver over a shared-memory control channel
// and read or write messages through memory-mapped term buffers the driver
// hands out.
//
//	┌──────────────┐   command ring    ┌─────────────────────────────┐
//	│   Client     │ ────────────────► │        Media Driver         │
//	│  (Conductor) │ ◄──────────────── │                             │
//	└──────┬───────┘  broadcast events │  ┌───────────┐              │
//	       │                           │  │ Conductor │ control plane│
//	  mmap'd term                      │  ├───────────┤              │
//	  buffers                          │  │  Sender   │ ─── UDP ───► │
//	       │                           │  ├───────────┤              │
//	       └─────────────────────────► │  │ Receiver  │ ◄── UDP ──── │
//	                                   │  └───────────┘              │
//	                                   └─────────────────────────────┘
//
// Three agents share the work inside the driver:
//
//   - Conductor: services client commands, manages publication and
//     subscription registrations, allocates log buffers and counters,
//     and reclaims resources from clients that stop heartbeating.
//   - Sender: drains appended messages from publication term buffers and
//     transmits them within the flow-control window granted by receivers,
//     sending setup and heartbeat frames as needed and answering NAKs
//     with retransmits.
//   - Receiver: polls channel endpoints, routes data frames into
//     publication images, emits status messages to open the sender's
//     window, and NAKs detected gaps.
//
// Each agent is a duty-cycle Agent run by an AgentRunner with an idle
// strategy, so a driver can be launched as a standalone process (cmd/aeronmd)
// or embedded with caller-owned threads.
//
// # Packages
//
//   - driver: the media driver (conductor, sender, receiver, raw logs, cnc)
//   - driver/media: UDP channel endpoints and destination URI parsing
//   - client: client-side conductor, publication and subscription API
//   - concurrent: atomic buffers, ring buffer, broadcast, SPSC queues,
//     term appenders and readers, idle strategies, timer wheel
//   - protocol: data-plane frame flyweights (data, setup, SM, NAK)
//   - control: shared-memory control-plane message flyweights
//   - counters: shared counter file management and position counters
//   - config: driver context, defaults, and property parsing
//   - shm: memory-mapped file helpers
//   - errors: driver error codes and wrapping
//   - event: selective event logging for frame-level tracing
//   - metric: Prometheus metrics registry and HTTP handler
//   - health: agent health snapshots with sanitized error reporting
//
// # Usage
//
// Run a standalone driver:
//
//	ctx := config.NewContext()
//	d, err := driver.NewMediaDriver(ctx, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	d.Launch()
//	defer d.Close()
//
// Connect a client and register interest in a stream:
//
//	c, err := client.Connect(ctx.AeronDir, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	pub, err := c.Conductor().AddPublication("udp://127.0.0.1:40456", 7, 1001)
//	registrationID, err := c.Conductor().AddSubscription("udp://127.0.0.1:40456", 1001)
package aeron
