package driver

import (
	"log/slog"
	"time"

	"github.com/chris-numeus/aeron/concurrent/spsc"
	"github.com/chris-numeus/aeron/event"
	"github.com/chris-numeus/aeron/metric"
)

const (
	senderCommandLimit = 10
	statusPollLimit    = 16
)

// Sender transmits publication data over the network: one duty cycle scans
// every active publication for new frames within the flow control window,
// answers NAKs with retransmits, and keeps receivers alive with setup and
// heartbeat frames. Publications arrive and leave over the command queue;
// no other agent touches the Sender's state.
type Sender struct {
	commands     *spsc.Queue[senderCommand]
	publications []*NetworkPublication

	logger  *slog.Logger
	events  *event.Logger
	metrics *metric.Metrics
}

func NewSender(proxy *SenderProxy, logger *slog.Logger, events *event.Logger, metrics *metric.Metrics) *Sender {
	return &Sender{
		commands: proxy.commands,
		logger:   logger.With("agent", "sender"),
		events:   events,
		metrics:  metrics,
	}
}

func (s *Sender) Name() string { return "sender" }

// DoWork runs one duty cycle: drain commands, poll status traffic, send.
func (s *Sender) DoWork(now time.Time) int {
	workCount := s.commands.Drain(s.onCommand, senderCommandLimit)

	for _, pub := range s.publications {
		n, err := pub.endpoint.PollStatus(statusPollLimit)
		if err != nil {
			s.logger.Error("status poll failed",
				"session", pub.SessionID(), "stream", pub.StreamID(), "error", err)
		}
		workCount += n
		workCount += pub.Send(now)
		workCount += pub.UpdatePublisherLimit(now)
	}
	return workCount
}

func (s *Sender) OnClose() {
	for _, pub := range s.publications {
		if err := pub.Close(); err != nil {
			s.logger.Error("publication close failed",
				"registration", pub.RegistrationID(), "error", err)
		}
	}
	s.publications = nil
}

func (s *Sender) onCommand(cmd *senderCommand) {
	switch cmd.op {
	case senderAddPublication:
		s.publications = append(s.publications, cmd.publication)
		if s.events.Enabled(event.CodeSendChannelCreation) {
			s.logger.Info("publication added",
				"registration", cmd.publication.RegistrationID(),
				"session", cmd.publication.SessionID(),
				"stream", cmd.publication.StreamID())
		}

	case senderRemovePublication:
		for i, pub := range s.publications {
			if pub.RegistrationID() == cmd.registrationID {
				s.publications = append(s.publications[:i], s.publications[i+1:]...)
				if s.events.Enabled(event.CodeSendChannelClose) {
					s.logger.Info("publication removed", "registration", cmd.registrationID)
				}
				break
			}
		}
	}
}
