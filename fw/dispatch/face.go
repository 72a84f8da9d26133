// Package dispatch defines the boundary between the forwarding core and the
// faces that carry packets to and from the network. It intentionally knows
// nothing about transports (UDP, TCP, unix sockets, ...): that is I/O, and is
// out of scope for this module (spec.md Non-goals). A Face is just an
// address the core can hand packets to.
package dispatch

import "github.com/jiangtaoluo/jet-NFD/ndn"

// Scope distinguishes faces whose peer is on this machine (eligible to
// exchange /localhost-scoped packets) from all others.
type Scope int

const (
	NonLocal Scope = iota
	Local
)

func (s Scope) String() string {
	if s == Local {
		return "Local"
	}
	return "NonLocal"
}

// LinkType affects Interest suppression and retransmission policy: a
// multi-access or ad-hoc face can observe its own forwarded Interest being
// relayed back by a neighbor, which point-to-point links never see
// (spec.md §4.8 RandomWaitStrategy is built for MultiAccess/AdHoc).
type LinkType int

const (
	PointToPoint LinkType = iota
	MultiAccess
	AdHoc
)

func (l LinkType) String() string {
	switch l {
	case MultiAccess:
		return "MultiAccess"
	case AdHoc:
		return "AdHoc"
	default:
		return "PointToPoint"
	}
}

// Face is the contract a forwarding thread uses to move packets on and off
// the wire. Concrete transports (not part of this module) implement it.
type Face interface {
	FaceID() uint64
	Scope() Scope
	LinkType() LinkType

	// SendPacket hands a fully-formed outgoing packet to the face. It must
	// not block the calling forwarding thread for longer than a bounded
	// local enqueue.
	SendPacket(pkt *ndn.Packet)
}

// EventSink receives packets and lifecycle notifications from a Face and
// routes them to the appropriate forwarding thread, replacing the teacher's
// ad-hoc collection of package-level callback globals with an explicit
// interface a Face is handed at construction time.
type EventSink interface {
	DispatchInterest(pkt *ndn.Packet, inFace Face)
	DispatchData(pkt *ndn.Packet, inFace Face)
	DispatchNack(pkt *ndn.Packet, inFace Face)
}

// Table is the process-wide registry of active faces, keyed by face ID.
type Table struct {
	faces map[uint64]Face
}

func NewTable() *Table {
	return &Table{faces: make(map[uint64]Face)}
}

func (t *Table) Add(f Face) {
	t.faces[f.FaceID()] = f
}

func (t *Table) Remove(id uint64) {
	delete(t.faces, id)
}

func (t *Table) Get(id uint64) (Face, bool) {
	f, ok := t.faces[id]
	return f, ok
}

// All returns every registered face, in no particular order. Used by the
// emergency-flood Data pipeline (spec.md §4.7), which re-floods to every
// face rather than a FIB-selected nexthop set.
func (t *Table) All() []Face {
	all := make([]Face, 0, len(t.faces))
	for _, f := range t.faces {
		all = append(all, f)
	}
	return all
}

// Faces is the process-wide face table. Forwarding threads look up faces by
// ID far too often (every Interest/Data/Nack) to thread a *Table through
// every call site, so - mirroring the teacher's package-level dispatch
// table - it is exposed as a singleton alongside the Table type above.
var Faces = NewTable()

// GetFace looks up a face by ID in the process-wide face table.
func GetFace(id uint64) Face {
	f, _ := Faces.Get(id)
	return f
}

// AddFace registers a face in the process-wide face table.
func AddFace(f Face) { Faces.Add(f) }

// RemoveFace removes a face from the process-wide face table.
func RemoveFace(id uint64) { Faces.Remove(id) }
