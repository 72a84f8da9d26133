package fw

import (
	"fmt"

	"github.com/jiangtaoluo/jet-NFD/fw/dispatch"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// Strategy represents a forwarding strategy (spec.md §4.8, §5: the
// forwarding decision for an Interest/Data/Nack is delegated to the
// strategy registered for its name's longest matching prefix).
type Strategy interface {
	Instantiate(fwThread *Thread)
	String() string
	GetName() ndn.Name

	AfterContentStoreHit(packet *ndn.Packet, pitEntry table.PitEntry, inFace uint64)
	AfterReceiveData(packet *ndn.Packet, pitEntry table.PitEntry, inFace uint64)
	AfterReceiveInterest(
		packet *ndn.Packet,
		pitEntry table.PitEntry,
		inFace uint64,
		nexthops []*table.FibNextHopEntry,
	)
	BeforeSatisfyInterest(pitEntry table.PitEntry, inFace uint64)

	// AfterReceiveNack lets the strategy react to a Nack from an upstream
	// (spec.md §4.6, §4.8): RandomWaitStrategy uses this to drop the
	// out-record and any relay still pending for that face; it does not
	// try another nexthop.
	AfterReceiveNack(nack *ndn.Packet, pitEntry table.PitEntry, inFace uint64)

	// AfterSendInterest fires once an Interest has actually been written
	// to outFace, letting a strategy schedule retransmission bookkeeping
	// (spec.md §4.8 "afterSendInterest"). retransmitted is true if this is
	// not the first Interest sent to outFace for pitEntry.
	AfterSendInterest(pitEntry table.PitEntry, outFace uint64, retransmitted bool)

	// AfterInterestLoop reacts to a non-point-to-point Interest recognized
	// as a forwarding loop (spec.md §4.2): RandomWaitStrategy uses this to
	// cancel a pending relay it had scheduled for the same Interest.
	AfterInterestLoop(pitEntry table.PitEntry, inFace uint64)

	// AfterUnsolicitedData reacts to a Data packet with no matching PIT
	// entry that the Unsolicited Data policy chose to cache (spec.md §4.7,
	// §6): RandomWaitStrategy uses this to cancel a pending relay it had
	// scheduled for the same Data.
	AfterUnsolicitedData(data *ndn.Data, inFace uint64)
}

// StrategyBase provides common helper methods for forwarding strategies.
type StrategyBase struct {
	thread   *Thread
	threadID int
	name     ndn.Name
	version  uint64
	logName  string
	self     Strategy
}

// NewStrategyBase is a helper that allows specific strategies to initialize
// the base. self must be the concrete strategy embedding this StrategyBase,
// so that SendInterest can invoke its AfterSendInterest hook.
func (s *StrategyBase) NewStrategyBase(fwThread *Thread, self Strategy, name string, version uint64) {
	s.thread = fwThread
	s.threadID = fwThread.threadID
	s.name = ndn.StrategyPrefix.Append(ndn.Component(name), ndn.Component(fmt.Sprintf("v%d", version)))
	s.version = version
	s.logName = name
	s.self = self
}

func (s *StrategyBase) String() string {
	return fmt.Sprintf("%s (v=%d t=%d)", s.logName, s.version, s.threadID)
}

func (s *StrategyBase) GetName() ndn.Name { return s.name }

// SendInterest sends an Interest on the specified face, then notifies the
// concrete strategy that the send happened.
func (s *StrategyBase) SendInterest(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	nexthop uint64,
	inFace uint64,
) bool {
	sent := s.thread.processOutgoingInterest(packet, pitEntry, nexthop, inFace)
	if sent {
		retransmitted := pitEntry.RetxCount(nexthop) > 0
		pitEntry.IncRetxCount(nexthop)
		if s.shouldDispatchAfterSendInterest(nexthop, inFace) {
			s.self.AfterSendInterest(pitEntry, nexthop, retransmitted)
		}
	}
	return sent
}

// shouldDispatchAfterSendInterest implements spec.md §4.5's gate on
// afterSendInterest: only RandomWaitStrategy receives the hook, and only
// when neither the downstream nor the upstream face is Local. The link
// type of either face is not checked.
func (s *StrategyBase) shouldDispatchAfterSendInterest(outFace, inFace uint64) bool {
	if _, ok := s.self.(*RandomWaitStrategy); !ok {
		return false
	}
	if f := dispatch.GetFace(inFace); f != nil && f.Scope() == dispatch.Local {
		return false
	}
	if f := dispatch.GetFace(outFace); f != nil && f.Scope() == dispatch.Local {
		return false
	}
	return true
}

// SendData sends a Data packet on the specified face.
func (s *StrategyBase) SendData(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	nexthop uint64,
	inFace uint64,
) {
	var pitToken []byte
	if inRecord, ok := pitEntry.InRecords()[nexthop]; ok {
		pitToken = inRecord.PitToken
		pitEntry.RemoveInRecord(nexthop)
	}
	s.thread.processOutgoingData(packet, nexthop, pitToken, inFace)
}

// SendNack sends a Nack with the given reason back to inFace, answering
// pitEntry's Interest (spec.md §4.6), then removes the in-record so the
// entry is not double-answered.
func (s *StrategyBase) SendNack(pitEntry table.PitEntry, reason ndn.NackReason, inFace uint64) {
	interest := &ndn.Interest{NameV: pitEntry.Name(), CanBePrefixV: pitEntry.CanBePrefix(), MustBeFreshV: pitEntry.MustBeFresh()}
	if inRecord, ok := pitEntry.InRecords()[inFace]; ok {
		interest.NonceV.Set(inRecord.LatestNonce)
	}
	s.thread.processOutgoingNack(interest, reason, inFace, nil, 0)
	pitEntry.RemoveInRecord(inFace)
}
