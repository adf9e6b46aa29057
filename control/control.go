// Package control defines the messages exchanged between clients and the
// driver over the to-driver ring and to-clients broadcast. Messages are
// flyweights over shared memory in native byte order; only the wire protocol
// in package protocol is big-endian.
package control

import (
	"github.com/chris-numeus/aeron/concurrent"
)

// Message type ids. Commands flow client to driver on the ring; events flow
// driver to clients on the broadcast.
const (
	AddPublication     int32 = 0x01
	RemovePublication  int32 = 0x02
	AddSubscription    int32 = 0x04
	RemoveSubscription int32 = 0x05
	ClientKeepalive    int32 = 0x06

	OnError                    int32 = 0x0F01
	OnNewConnectedSubscription int32 = 0x0F02
	OnNewPublication           int32 = 0x0F03
	OnOperationSucceeded       int32 = 0x0F04
	OnInactiveConnection       int32 = 0x0F05
)

// TypeName returns a label for a control message type id.
func TypeName(msgTypeID int32) string {
	switch msgTypeID {
	case AddPublication:
		return "ADD_PUBLICATION"
	case RemovePublication:
		return "REMOVE_PUBLICATION"
	case AddSubscription:
		return "ADD_SUBSCRIPTION"
	case RemoveSubscription:
		return "REMOVE_SUBSCRIPTION"
	case ClientKeepalive:
		return "CLIENT_KEEPALIVE"
	case OnError:
		return "ERROR_RESPONSE"
	case OnNewConnectedSubscription:
		return "ON_NEW_CONNECTED_SUBSCRIPTION"
	case OnNewPublication:
		return "ON_NEW_PUBLICATION"
	case OnOperationSucceeded:
		return "OPERATION_SUCCEEDED"
	case OnInactiveConnection:
		return "ON_INACTIVE_CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Strings are encoded as an int32 byte length followed by the bytes.
func getString(buf *concurrent.AtomicBuffer, offset int32) string {
	length := buf.GetInt32(offset)
	b := make([]byte, length)
	buf.GetBytes(offset+4, b)
	return string(b)
}

func putString(buf *concurrent.AtomicBuffer, offset int32, s string) int32 {
	buf.PutInt32(offset, int32(len(s)))
	buf.PutBytes(offset+4, []byte(s))
	return 4 + int32(len(s))
}

// CorrelatedMessage is the common prefix of every command: the issuing
// client and the request correlation id. CLIENT_KEEPALIVE is exactly this.
type CorrelatedMessage struct {
	buf    *concurrent.AtomicBuffer
	offset int32
}

const correlatedMessageLength = 16

func (m *CorrelatedMessage) Wrap(buf *concurrent.AtomicBuffer, offset int32) {
	m.buf = buf
	m.offset = offset
}

func (m *CorrelatedMessage) ClientID() int64       { return m.buf.GetInt64(m.offset) }
func (m *CorrelatedMessage) SetClientID(id int64)  { m.buf.PutInt64(m.offset, id) }
func (m *CorrelatedMessage) CorrelationID() int64  { return m.buf.GetInt64(m.offset + 8) }
func (m *CorrelatedMessage) SetCorrelationID(id int64) {
	m.buf.PutInt64(m.offset+8, id)
}

// Length returns the encoded size.
func (m *CorrelatedMessage) Length() int32 { return correlatedMessageLength }

// PublicationMessage is ADD_PUBLICATION: the channel, stream and publisher
// chosen session.
type PublicationMessage struct {
	CorrelatedMessage
}

func (m *PublicationMessage) SessionID() int32       { return m.buf.GetInt32(m.offset + 16) }
func (m *PublicationMessage) SetSessionID(id int32)  { m.buf.PutInt32(m.offset+16, id) }
func (m *PublicationMessage) StreamID() int32        { return m.buf.GetInt32(m.offset + 20) }
func (m *PublicationMessage) SetStreamID(id int32)   { m.buf.PutInt32(m.offset+20, id) }
func (m *PublicationMessage) Channel() string        { return getString(m.buf, m.offset+24) }
func (m *PublicationMessage) SetChannel(channel string) {
	putString(m.buf, m.offset+24, channel)
}

func (m *PublicationMessage) Length() int32 {
	return 24 + 4 + m.buf.GetInt32(m.offset+24)
}

// SubscriptionMessage is ADD_SUBSCRIPTION: the channel and stream to listen
// on.
type SubscriptionMessage struct {
	CorrelatedMessage
}

func (m *SubscriptionMessage) StreamID() int32      { return m.buf.GetInt32(m.offset + 16) }
func (m *SubscriptionMessage) SetStreamID(id int32) { m.buf.PutInt32(m.offset+16, id) }
func (m *SubscriptionMessage) Channel() string      { return getString(m.buf, m.offset+20) }
func (m *SubscriptionMessage) SetChannel(channel string) {
	putString(m.buf, m.offset+20, channel)
}

func (m *SubscriptionMessage) Length() int32 {
	return 20 + 4 + m.buf.GetInt32(m.offset+20)
}

// RemoveMessage is REMOVE_PUBLICATION and REMOVE_SUBSCRIPTION: the
// registration id returned when the resource was added.
type RemoveMessage struct {
	CorrelatedMessage
}

func (m *RemoveMessage) RegistrationID() int64      { return m.buf.GetInt64(m.offset + 16) }
func (m *RemoveMessage) SetRegistrationID(id int64) { m.buf.PutInt64(m.offset+16, id) }

func (m *RemoveMessage) Length() int32 { return 24 }

// BuffersReadyMessage is ON_NEW_PUBLICATION and
// ON_NEW_CONNECTED_SUBSCRIPTION: where the term log lives and which counter
// tracks the position.
type BuffersReadyMessage struct {
	buf    *concurrent.AtomicBuffer
	offset int32
}

func (m *BuffersReadyMessage) Wrap(buf *concurrent.AtomicBuffer, offset int32) {
	m.buf = buf
	m.offset = offset
}

func (m *BuffersReadyMessage) CorrelationID() int64       { return m.buf.GetInt64(m.offset) }
func (m *BuffersReadyMessage) SetCorrelationID(id int64)  { m.buf.PutInt64(m.offset, id) }
func (m *BuffersReadyMessage) RegistrationID() int64      { return m.buf.GetInt64(m.offset + 8) }
func (m *BuffersReadyMessage) SetRegistrationID(id int64) { m.buf.PutInt64(m.offset+8, id) }
func (m *BuffersReadyMessage) SessionID() int32           { return m.buf.GetInt32(m.offset + 16) }
func (m *BuffersReadyMessage) SetSessionID(id int32)      { m.buf.PutInt32(m.offset+16, id) }
func (m *BuffersReadyMessage) StreamID() int32            { return m.buf.GetInt32(m.offset + 20) }
func (m *BuffersReadyMessage) SetStreamID(id int32)       { m.buf.PutInt32(m.offset+20, id) }
func (m *BuffersReadyMessage) InitialTermID() int32       { return m.buf.GetInt32(m.offset + 24) }
func (m *BuffersReadyMessage) SetInitialTermID(id int32)  { m.buf.PutInt32(m.offset+24, id) }
func (m *BuffersReadyMessage) PositionCounterID() int32   { return m.buf.GetInt32(m.offset + 28) }
func (m *BuffersReadyMessage) SetPositionCounterID(id int32) {
	m.buf.PutInt32(m.offset+28, id)
}

// LogDir is the directory holding the three term files and the meta file.
func (m *BuffersReadyMessage) LogDir() string { return getString(m.buf, m.offset+32) }

func (m *BuffersReadyMessage) SetLogDir(dir string) {
	putString(m.buf, m.offset+32, dir)
}

// SourceIdentity names the sending transport for subscription images; empty
// for publications.
func (m *BuffersReadyMessage) SourceIdentity() string {
	return getString(m.buf, m.sourceIdentityOffset())
}

func (m *BuffersReadyMessage) SetSourceIdentity(identity string) {
	putString(m.buf, m.sourceIdentityOffset(), identity)
}

func (m *BuffersReadyMessage) sourceIdentityOffset() int32 {
	return m.offset + 32 + 4 + m.buf.GetInt32(m.offset+32)
}

func (m *BuffersReadyMessage) Length() int32 {
	end := m.sourceIdentityOffset() + 4 + m.buf.GetInt32(m.sourceIdentityOffset())
	return end - m.offset
}

// ErrorResponse is ERROR_RESPONSE: the failed command's correlation id, an
// enumerated code and a human readable message. Carrying the correlation id
// directly lets clients route the response without re-decoding the
// offending command.
type ErrorResponse struct {
	buf    *concurrent.AtomicBuffer
	offset int32
}

func (m *ErrorResponse) Wrap(buf *concurrent.AtomicBuffer, offset int32) {
	m.buf = buf
	m.offset = offset
}

func (m *ErrorResponse) OffendingCorrelationID() int64 { return m.buf.GetInt64(m.offset) }
func (m *ErrorResponse) SetOffendingCorrelationID(id int64) {
	m.buf.PutInt64(m.offset, id)
}

func (m *ErrorResponse) ErrorCode() int32        { return m.buf.GetInt32(m.offset + 8) }
func (m *ErrorResponse) SetErrorCode(code int32) { m.buf.PutInt32(m.offset+8, code) }
func (m *ErrorResponse) ErrorMessage() string    { return getString(m.buf, m.offset+12) }
func (m *ErrorResponse) SetErrorMessage(message string) {
	putString(m.buf, m.offset+12, message)
}

func (m *ErrorResponse) Length() int32 {
	return 12 + 4 + m.buf.GetInt32(m.offset+12)
}

// InactiveConnectionMessage is ON_INACTIVE_CONNECTION: an image went silent
// past its liveness timeout.
type InactiveConnectionMessage struct {
	buf    *concurrent.AtomicBuffer
	offset int32
}

func (m *InactiveConnectionMessage) Wrap(buf *concurrent.AtomicBuffer, offset int32) {
	m.buf = buf
	m.offset = offset
}

func (m *InactiveConnectionMessage) CorrelationID() int64      { return m.buf.GetInt64(m.offset) }
func (m *InactiveConnectionMessage) SetCorrelationID(id int64) { m.buf.PutInt64(m.offset, id) }
func (m *InactiveConnectionMessage) SessionID() int32          { return m.buf.GetInt32(m.offset + 8) }
func (m *InactiveConnectionMessage) SetSessionID(id int32)     { m.buf.PutInt32(m.offset+8, id) }
func (m *InactiveConnectionMessage) StreamID() int32           { return m.buf.GetInt32(m.offset + 12) }
func (m *InactiveConnectionMessage) SetStreamID(id int32)      { m.buf.PutInt32(m.offset+12, id) }

func (m *InactiveConnectionMessage) Length() int32 { return 16 }
