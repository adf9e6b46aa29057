package broadcast

import (
	"github.com/chris-numeus/aeron/concurrent"
)

// CopyHandler is called with a stable copy of each received message.
type CopyHandler func(msgTypeID int32, buffer *concurrent.AtomicBuffer, index, length int32)

// CopyReceiver drains a broadcast Receiver into a private scratch buffer so
// handlers never observe bytes the transmitter may overwrite mid-read.
type CopyReceiver struct {
	receiver *Receiver
	scratch  *concurrent.AtomicBuffer
}

// NewCopyReceiver wraps receiver, sizing the scratch buffer to the largest
// possible message.
func NewCopyReceiver(receiver *Receiver) *CopyReceiver {
	bc := &CopyReceiver{
		receiver: receiver,
		scratch:  concurrent.MakeAtomicBuffer(make([]byte, receiver.capacity/8+RecordHeaderLength)),
	}

	// Bring the cursor up to the latest record so a fresh client does not
	// replay history.
	for bc.receiver.ReceiveNext() {
	}

	return bc
}

// Receive polls for the next message, copies it out, and invokes handler once
// the copy validates. Returns the number of messages delivered (0 or 1).
func (bc *CopyReceiver) Receive(handler CopyHandler) int {
	messagesReceived := 0

	if bc.receiver.ReceiveNext() {
		length := bc.receiver.Length()
		msgTypeID := bc.receiver.TypeID()
		bc.receiver.Buffer().GetBytes(bc.receiver.Offset(), bc.scratch.Slice(0, length))

		if bc.receiver.Validate() {
			handler(msgTypeID, bc.scratch, 0, length)
			messagesReceived = 1
		}
	}

	return messagesReceived
}
