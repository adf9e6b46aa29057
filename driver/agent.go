// Package driver implements the media driver: the Conductor, Sender and
// Receiver agents, network publications and images, flow control and loss
// recovery, all sharing memory mapped term logs with client processes.
package driver

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chris-numeus/aeron/concurrent/idle"
	"github.com/chris-numeus/aeron/health"
	"github.com/chris-numeus/aeron/metric"
)

// Agent is a single threaded duty cycle. DoWork returns how much work the
// cycle performed; zero lets the runner idle.
type Agent interface {
	Name() string
	DoWork(now time.Time) int
	OnClose()
}

// AgentRunner drives one agent on its own goroutine until stopped.
type AgentRunner struct {
	agent    Agent
	strategy idle.Strategy
	logger   *slog.Logger
	metrics  *metric.Metrics

	running atomic.Bool
	done    chan struct{}
	once    sync.Once

	started    time.Time
	workCount  atomic.Int64
	errorCount atomic.Int64
	lastError  atomic.Value
	lastCycle  atomic.Int64
}

// NewAgentRunner wires an agent to an idle strategy.
func NewAgentRunner(agent Agent, strategy idle.Strategy, logger *slog.Logger, metrics *metric.Metrics) *AgentRunner {
	return &AgentRunner{
		agent:    agent,
		strategy: strategy,
		logger:   logger.With("agent", agent.Name()),
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// Start launches the duty cycle goroutine.
func (r *AgentRunner) Start() {
	r.started = time.Now()
	r.running.Store(true)
	go r.run()
}

func (r *AgentRunner) run() {
	defer close(r.done)
	defer r.agent.OnClose()

	r.logger.Info("agent started")
	if r.metrics != nil {
		r.metrics.RecordAgentStatus(r.agent.Name(), 2)
	}

	for r.running.Load() {
		start := time.Now()
		workCount := r.doWork(start)
		r.workCount.Add(int64(workCount))
		r.lastCycle.Store(start.UnixNano())
		if r.metrics != nil {
			r.metrics.RecordDutyCycle(r.agent.Name(), workCount)
			r.metrics.RecordDutyCycleDuration(r.agent.Name(), time.Since(start))
		}
		r.strategy.Idle(workCount)
	}

	if r.metrics != nil {
		r.metrics.RecordAgentStatus(r.agent.Name(), 0)
	}
	r.logger.Info("agent stopped")
}

// doWork contains a duty cycle failure inside the agent: the panic is
// logged and counted and the next cycle proceeds.
func (r *AgentRunner) doWork(now time.Time) (workCount int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("duty cycle panic", "panic", rec)
			r.errorCount.Add(1)
			r.lastError.Store(fmt.Sprint(rec))
			if r.metrics != nil {
				r.metrics.RecordError(r.agent.Name(), "panic")
			}
		}
	}()
	return r.agent.DoWork(now)
}

// Health snapshots the runner for the driver's health monitor.
func (r *AgentRunner) Health() health.AgentHealth {
	ah := health.AgentHealth{
		Healthy:    r.running.Load(),
		ErrorCount: int(r.errorCount.Load()),
		WorkCount:  r.workCount.Load(),
	}
	if !r.started.IsZero() {
		ah.Uptime = time.Since(r.started)
	}
	if last, ok := r.lastError.Load().(string); ok {
		ah.LastError = last
	}
	if ns := r.lastCycle.Load(); ns != 0 {
		ah.LastCycle = time.Unix(0, ns)
	}
	return ah
}

// Join waits up to timeout for the duty cycle goroutine to exit after Stop
// was requested.
func (r *AgentRunner) Join(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop requests shutdown and waits up to timeout for the duty cycle to
// exit. It reports whether the agent stopped in time.
func (r *AgentRunner) Stop(timeout time.Duration) bool {
	stopped := true
	r.once.Do(func() {
		r.running.Store(false)
		select {
		case <-r.done:
		case <-time.After(timeout):
			r.logger.Warn("agent did not stop within timeout", "timeout", timeout)
			stopped = false
		}
	})
	return stopped
}
