package driver

import (
	"strings"

	"github.com/chris-numeus/aeron/driver/media"
)

// SubscriptionLink records one client's interest in a (channel, stream)
// pair. Images arriving on the channel fan out to every link that matches
// their stream id, each with its own subscriber position counter.
type SubscriptionLink struct {
	RegistrationID int64
	ClientID       int64
	StreamID       int32
	Destination    *media.Destination
}

// Matches reports whether an arrival on the given channel and stream
// belongs to this link.
func (l *SubscriptionLink) Matches(channelURI string, streamID int32) bool {
	return l.StreamID == streamID && l.Destination.URI() == channelURI
}

var dirNameReplacer = strings.NewReplacer("://", "-", ":", "-", "/", "-", "@", "-")

// channelDirName flattens a channel URI into a file system safe directory
// name, e.g. "udp://localhost:40123" becomes "udp-localhost-40123".
func channelDirName(channelURI string) string {
	return dirNameReplacer.Replace(channelURI)
}
