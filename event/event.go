// Package event provides the selectable event logging taxonomy for the
// driver. Each event code carries a tag bit; the enabled set is expressed as
// a 64-bit mask so the hot path can gate logging with a single AND.
package event

import (
	"fmt"
	"os"
	"strings"
)

// Code identifies one loggable driver event.
type Code int

const (
	CodeFrameIn Code = iota
	CodeFrameOut
	CodeCmdInAddPublication
	CodeCmdInRemovePublication
	CodeCmdInAddSubscription
	CodeCmdInRemoveSubscription
	CodeCmdInKeepalive
	CodeCmdOutPublicationReady
	CodeCmdOutSubscriptionReady
	CodeCmdOutAvailableImage
	CodeCmdOutUnavailableImage
	CodeCmdOutOnOperationSuccess
	CodeCmdOutError
	CodeRemoveImageCleanup
	CodeRemovePublicationCleanup
	CodeSendChannelCreation
	CodeReceiveChannelCreation
	CodeSendChannelClose
	CodeReceiveChannelClose

	codeCount
)

var codeNames = map[Code]string{
	CodeFrameIn:                  "FRAME_IN",
	CodeFrameOut:                 "FRAME_OUT",
	CodeCmdInAddPublication:      "CMD_IN_ADD_PUBLICATION",
	CodeCmdInRemovePublication:   "CMD_IN_REMOVE_PUBLICATION",
	CodeCmdInAddSubscription:     "CMD_IN_ADD_SUBSCRIPTION",
	CodeCmdInRemoveSubscription:  "CMD_IN_REMOVE_SUBSCRIPTION",
	CodeCmdInKeepalive:           "CMD_IN_KEEPALIVE_CLIENT",
	CodeCmdOutPublicationReady:   "CMD_OUT_PUBLICATION_READY",
	CodeCmdOutSubscriptionReady:  "CMD_OUT_SUBSCRIPTION_READY",
	CodeCmdOutAvailableImage:     "CMD_OUT_AVAILABLE_IMAGE",
	CodeCmdOutUnavailableImage:   "CMD_OUT_ON_UNAVAILABLE_IMAGE",
	CodeCmdOutOnOperationSuccess: "CMD_OUT_ON_OPERATION_SUCCESS",
	CodeCmdOutError:              "CMD_OUT_ERROR",
	CodeRemoveImageCleanup:       "REMOVE_IMAGE_CLEANUP",
	CodeRemovePublicationCleanup: "REMOVE_PUBLICATION_CLEANUP",
	CodeSendChannelCreation:      "SEND_CHANNEL_CREATION",
	CodeReceiveChannelCreation:   "RECEIVE_CHANNEL_CREATION",
	CodeSendChannelClose:         "SEND_CHANNEL_CLOSE",
	CodeReceiveChannelClose:      "RECEIVE_CHANNEL_CLOSE",
}

// String returns the configuration name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_EVENT_CODE_%d", int(c))
}

// TagBit returns the bit this code occupies in an enabled-set mask.
func (c Code) TagBit() uint64 {
	return 1 << uint(c)
}

// AllCodes returns every defined event code.
func AllCodes() []Code {
	codes := make([]Code, 0, int(codeCount))
	for c := Code(0); c < codeCount; c++ {
		codes = append(codes, c)
	}
	return codes
}

// GetEnabledCodes parses a comma separated list of event code names. An empty
// string enables nothing and "all" enables every code. An unrecognized token
// voids the whole set and is reported on stderr so a typo never silently
// enables a partial configuration.
func GetEnabledCodes(spec string) []Code {
	if spec == "" {
		return nil
	}
	if strings.EqualFold(spec, "all") {
		return AllCodes()
	}

	byName := make(map[string]Code, len(codeNames))
	for c, name := range codeNames {
		byName[name] = c
	}

	var codes []Code
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		c, ok := byName[token]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown event code: %s\n", token)
			return nil
		}
		codes = append(codes, c)
	}
	return codes
}

// MakeTagBitSet folds a code list into its enabled-set mask.
func MakeTagBitSet(codes []Code) uint64 {
	var mask uint64
	for _, c := range codes {
		mask |= c.TagBit()
	}
	return mask
}

// Logger gates event reporting on an enabled mask. A nil Logger or a zero
// mask makes Enabled a constant false.
type Logger struct {
	mask uint64
}

// NewLogger builds a logger from a configuration spec string.
func NewLogger(spec string) *Logger {
	return &Logger{mask: MakeTagBitSet(GetEnabledCodes(spec))}
}

// Enabled reports whether a code is in the enabled set.
func (l *Logger) Enabled(c Code) bool {
	return l != nil && l.mask&c.TagBit() != 0
}
