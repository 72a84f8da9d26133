package fw

import (
	"encoding/binary"

	"github.com/jiangtaoluo/jet-NFD/fw/dispatch"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// Dispatcher implements dispatch.EventSink, routing packets arriving on a
// Face to the forwarding thread responsible for them. It is the only piece
// that knows how to get from "a packet arrived on a face" to "which of the
// Threads slice owns this" (spec.md §5 sharding), replacing the teacher's
// package-level dispatch callbacks with an explicit, constructed sink.
type Dispatcher struct{}

// NewDispatcher constructs the process-wide EventSink. Threads must already
// be populated (fw.Threads) before any Face hands packets to it.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// threadFromToken extracts the owning thread ID from a 6-byte PIT token
// (2-byte thread ID + 4-byte PIT entry token, set in processOutgoingInterest),
// returning false if the token is absent or malformed.
func threadFromToken(token []byte) (int, bool) {
	if len(token) != 6 {
		return 0, false
	}
	id := int(binary.BigEndian.Uint16(token[0:2]))
	if id < 0 || id >= len(Threads) {
		return 0, false
	}
	return id, true
}

func (d *Dispatcher) DispatchInterest(pkt *ndn.Packet, inFace dispatch.Face) {
	pkt.IncomingFaceID = inFace.FaceID()
	thread := Threads[HashNameToFwThread(pkt.Name())]
	thread.QueueInterest(pkt)
}

func (d *Dispatcher) DispatchData(pkt *ndn.Packet, inFace dispatch.Face) {
	pkt.IncomingFaceID = inFace.FaceID()
	if id, ok := threadFromToken(pkt.PitToken); ok {
		Threads[id].QueueData(pkt)
		return
	}
	// No usable PIT token (e.g. unsolicited Data): fall back to sharding
	// by name, same as an Interest for this name would have been.
	Threads[HashNameToFwThread(pkt.Name())].QueueData(pkt)
}

func (d *Dispatcher) DispatchNack(pkt *ndn.Packet, inFace dispatch.Face) {
	pkt.IncomingFaceID = inFace.FaceID()
	if id, ok := threadFromToken(pkt.PitToken); ok {
		Threads[id].QueueNack(pkt)
		return
	}
	Threads[HashNameToFwThread(pkt.Name())].QueueNack(pkt)
}
