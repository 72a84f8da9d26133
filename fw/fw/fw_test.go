package fw

import (
	"testing"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/fw/dispatch"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFace is a hand-written dispatch.Face test double recording every
// packet sent through it, mirroring the corpus's preference for small
// in-package fakes over a mocking framework (SPEC_FULL.md §10.4).
type fakeFace struct {
	id       uint64
	scope    dispatch.Scope
	linkType dispatch.LinkType
	sent     []*ndn.Packet
}

func newFakeFace(id uint64, scope dispatch.Scope, linkType dispatch.LinkType) *fakeFace {
	return &fakeFace{id: id, scope: scope, linkType: linkType}
}

func (f *fakeFace) FaceID() uint64             { return f.id }
func (f *fakeFace) Scope() dispatch.Scope      { return f.scope }
func (f *fakeFace) LinkType() dispatch.LinkType { return f.linkType }
func (f *fakeFace) SendPacket(pkt *ndn.Packet)  { f.sent = append(f.sent, pkt) }

// newTestThread resets the process-wide FIB/Strategy and face tables and
// returns a freshly-instantiated forwarding thread, so tests never leak
// state into one another despite those tables being package singletons.
func newTestThread(t *testing.T, defaultStrategy string) *Thread {
	t.Helper()

	core.C = core.DefaultConfig()
	core.C.Tables.Strategy.Default = defaultStrategy
	core.C.Tables.Strategy.RandomWait.DelayMinUs = 100
	core.C.Tables.Strategy.RandomWait.DelayMaxUs = 200
	core.C.Tables.Strategy.RandomWait.RetxSuppressionInitialMs = 10
	core.C.Tables.Strategy.RandomWait.RetxSuppressionMaxMs = 40
	core.C.Tables.Strategy.RandomWait.RetxTimerUnitMs = 20
	core.C.Tables.Strategy.RandomWait.MaxRetxCount = 2

	dispatch.Faces = dispatch.NewTable()
	table.Initialize()

	return NewThread(0)
}

func TestBestRouteForwardsToLowestCostNexthop(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/best-route/v1")

	downstream := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	cheap := newFakeFace(2, dispatch.NonLocal, dispatch.PointToPoint)
	expensive := newFakeFace(3, dispatch.NonLocal, dispatch.PointToPoint)
	dispatch.AddFace(downstream)
	dispatch.AddFace(cheap)
	dispatch.AddFace(expensive)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, expensive.FaceID(), 50)
	table.FibStrategyTable.InsertNextHopEnc(name, cheap.FaceID(), 10)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	require.Len(t, cheap.sent, 1)
	assert.Empty(t, expensive.sent)
	assert.Equal(t, uint64(1), th.NInInterests)
	assert.Equal(t, uint64(1), th.NOutInterests)
}

func TestBestRouteDropsWhenNoRoute(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/best-route/v1")

	downstream := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	dispatch.AddFace(downstream)

	interest := &ndn.Interest{NameV: ndn.NameFromString("/no/route")}
	interest.NonceV.Set(1)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	// BestRoute has no Nack pipeline reaction: the Interest is simply
	// dropped and the PIT entry will expire unsatisfied.
	assert.Equal(t, 1, th.GetNumPitEntries())
}

func TestMulticastForwardsToEveryNexthop(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/multicast/v1")

	downstream := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	faceA := newFakeFace(2, dispatch.NonLocal, dispatch.PointToPoint)
	faceB := newFakeFace(3, dispatch.NonLocal, dispatch.PointToPoint)
	dispatch.AddFace(downstream)
	dispatch.AddFace(faceA)
	dispatch.AddFace(faceB)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, faceA.FaceID(), 10)
	table.FibStrategyTable.InsertNextHopEnc(name, faceB.FaceID(), 20)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	assert.Len(t, faceA.sent, 1)
	assert.Len(t, faceB.sent, 1)
}

func TestRandomWaitSendsImmediatelyOverLocalFace(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/random-wait/v1")

	downstream := newFakeFace(1, dispatch.Local, dispatch.AdHoc)
	upstream := newFakeFace(2, dispatch.NonLocal, dispatch.AdHoc)
	dispatch.AddFace(downstream)
	dispatch.AddFace(upstream)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, upstream.FaceID(), 10)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	// The downstream face is Local, so RandomWaitStrategy must forward
	// immediately rather than scheduling a delayed ad-hoc relay.
	require.Len(t, upstream.sent, 1)
}

func TestRandomWaitNacksWhenNoRoute(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/random-wait/v1")

	downstream := newFakeFace(1, dispatch.NonLocal, dispatch.AdHoc)
	dispatch.AddFace(downstream)

	interest := &ndn.Interest{NameV: ndn.NameFromString("/no/route")}
	interest.NonceV.Set(1)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	require.Len(t, downstream.sent, 1)
	nack := downstream.sent[0].Nack
	require.NotNil(t, nack)
	assert.Equal(t, ndn.NackNoRoute, nack.Reason)
}

func TestRandomWaitSuppressionDecisionEscalates(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/random-wait/v1")
	strategy := th.strategies[ndn.NameFromString("/localhost/nfd/strategy/random-wait/v1").Hash()]
	rw, ok := strategy.(*RandomWaitStrategy)
	require.True(t, ok)

	name := ndn.NameFromString("/a/b")
	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)
	pitEntry, _ := th.pitCS.InsertInterest(interest, nil, 1)

	// No out-record yet: a fresh upstream is always NEW.
	assert.Equal(t, suppressNew, rw.decidePerUpstream(pitEntry, 42))

	outRecord := pitEntry.InsertOutRecord(interest, 42)
	assert.Equal(t, suppressSuppress, rw.decidePerUpstream(pitEntry, 42))

	// Once the interval has elapsed, the decision flips to FORWARD.
	outRecord.LatestTimestamp = outRecord.LatestTimestamp.Add(-time.Hour)
	assert.Equal(t, suppressForward, rw.decidePerUpstream(pitEntry, 42))
}

func TestRandomWaitRemovesOutRecordOnNack(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/random-wait/v1")

	downstream := newFakeFace(1, dispatch.NonLocal, dispatch.AdHoc)
	upstream := newFakeFace(2, dispatch.NonLocal, dispatch.AdHoc)
	dispatch.AddFace(downstream)
	dispatch.AddFace(upstream)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, upstream.FaceID(), 10)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(7)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	// Both faces are ad-hoc, so the relay is delayed: let it fire so the
	// out-record exists.
	select {
	case fn := <-th.timerFire:
		fn()
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the scheduled relay callback to fire")
	}

	pitEntry := th.pitCS.FindInterestExactMatchEnc(interest)
	require.NotNil(t, pitEntry)
	_, hasOutRecord := pitEntry.OutRecords()[upstream.FaceID()]
	require.True(t, hasOutRecord)

	nackInterest := &ndn.Interest{NameV: name}
	nackInterest.NonceV.Set(7)
	nackPkt := &ndn.Packet{
		Nack:           &ndn.Nack{Interest: nackInterest, Reason: ndn.NackNoRoute},
		IncomingFaceID: upstream.FaceID(),
	}
	th.processIncomingNack(nackPkt)

	// AfterReceiveNack must remove the out-record so a later-firing retx
	// timer for that face finds nothing left to resend.
	_, hasOutRecord = pitEntry.OutRecords()[upstream.FaceID()]
	assert.False(t, hasOutRecord)
}

func TestInterestLoopPointToPointSendsNackDuplicate(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/best-route/v1")

	faceA := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	faceB := newFakeFace(2, dispatch.NonLocal, dispatch.PointToPoint)
	upstream := newFakeFace(3, dispatch.NonLocal, dispatch.PointToPoint)
	dispatch.AddFace(faceA)
	dispatch.AddFace(faceB)
	dispatch.AddFace(upstream)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, upstream.FaceID(), 10)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(5)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: faceA.FaceID()})
	require.Len(t, upstream.sent, 1)

	// Same name and nonce arriving on a different downstream face is a
	// forwarding loop (DUPLICATE_IN_OTHER); since faceB is point-to-point
	// this must be answered with Nack{reason=Duplicate}, not just dropped.
	dup := &ndn.Interest{NameV: name}
	dup.NonceV.Set(5)
	th.processIncomingInterest(&ndn.Packet{Interest: dup, IncomingFaceID: faceB.FaceID()})

	require.Len(t, faceB.sent, 1)
	nack := faceB.sent[0].Nack
	require.NotNil(t, nack)
	assert.Equal(t, ndn.NackDuplicate, nack.Reason)
}

func TestInterestLoopOnAdHocCancelsPendingRelay(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/random-wait/v1")

	downstream := newFakeFace(1, dispatch.NonLocal, dispatch.AdHoc)
	upstream := newFakeFace(2, dispatch.NonLocal, dispatch.AdHoc)
	dispatch.AddFace(downstream)
	dispatch.AddFace(upstream)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, upstream.FaceID(), 10)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(7)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: downstream.FaceID()})

	// Both faces are ad-hoc, so RandomWaitStrategy schedules a delayed
	// relay rather than sending immediately.
	require.Empty(t, upstream.sent)

	// The same Interest is echoed back on the upstream its relay is
	// scheduled for. No out-record exists yet, so it matches downstream's
	// in-record: DUPLICATE_IN_OTHER. upstream is ad-hoc, not
	// point-to-point, so this must cancel the pending relay rather than
	// Nack.
	echoed := &ndn.Interest{NameV: name}
	echoed.NonceV.Set(7)
	th.processIncomingInterest(&ndn.Packet{Interest: echoed, IncomingFaceID: upstream.FaceID()})

	require.Empty(t, upstream.sent, "a non-point-to-point loop must not Nack")

	// Let the previously-scheduled relay fire; its pending entry must
	// already be gone, so it sends nothing.
	select {
	case fn := <-th.timerFire:
		fn()
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the scheduled relay callback to fire")
	}
	assert.Empty(t, upstream.sent, "a cancelled relay must not send")
}

func TestContentStoreHitFinalizesPitEntry(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/best-route/v1")

	producer := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	consumer := newFakeFace(2, dispatch.NonLocal, dispatch.PointToPoint)
	dispatch.AddFace(producer)
	dispatch.AddFace(consumer)

	name := ndn.NameFromString("/a/b")
	table.FibStrategyTable.InsertNextHopEnc(name, producer.FaceID(), 10)

	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)
	th.processIncomingInterest(&ndn.Packet{Interest: interest, IncomingFaceID: consumer.FaceID()})
	require.Len(t, producer.sent, 1)

	data := &ndn.Data{NameV: name, MetaInfo: &ndn.MetaInfo{}}
	data.MetaInfo.FreshnessPeriod.Set(time.Hour)
	th.processIncomingData(&ndn.Packet{Data: data, IncomingFaceID: producer.FaceID()})

	// Satisfying Data only sets the entry's expiry to now; the next
	// Update() tick reclaims it.
	th.pitCS.Update()
	require.Equal(t, 0, th.GetNumPitEntries(), "a Data-satisfied entry must be removed")
	require.Equal(t, 1, th.GetNumCsEntries())

	// A second Interest for the same name is answered straight from the CS.
	interest2 := &ndn.Interest{NameV: name}
	interest2.NonceV.Set(2)
	th.processIncomingInterest(&ndn.Packet{Interest: interest2, IncomingFaceID: consumer.FaceID()})

	require.Len(t, consumer.sent, 2, "consumer got the Data for its first Interest, then the CS answer to the second")
	require.Equal(t, 1, th.GetNumPitEntries(), "CS-hit entry is reclaimed on the next Update() tick, not immediately")

	th.pitCS.Update()
	assert.Equal(t, 0, th.GetNumPitEntries(), "CS-hit PIT entries must not leak")
}

func TestEmergencyDataRefloodsAndDeduplicates(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/best-route/v1")

	inFace := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	other1 := newFakeFace(2, dispatch.NonLocal, dispatch.PointToPoint)
	other2 := newFakeFace(3, dispatch.NonLocal, dispatch.PointToPoint)
	dispatch.AddFace(inFace)
	dispatch.AddFace(other1)
	dispatch.AddFace(other2)

	name := ndn.NameFromString("/alert/fire")
	data := &ndn.Data{NameV: name, Emergency: ndn.EmergencyFlood}
	data.NonceV.Set(99)

	th.processIncomingData(&ndn.Packet{Data: data, IncomingFaceID: inFace.FaceID()})

	require.Len(t, other1.sent, 1)
	require.Len(t, other2.sent, 1)
	assert.Empty(t, inFace.sent, "emergency Data is not re-flooded back to a non-adhoc incoming face")

	// A second copy with the same (name, nonce) is a duplicate and must
	// not be re-flooded again.
	dup := &ndn.Data{NameV: name, Emergency: ndn.EmergencyFlood}
	dup.NonceV.Set(99)
	th.processIncomingData(&ndn.Packet{Data: dup, IncomingFaceID: other1.FaceID()})

	assert.Len(t, other1.sent, 1)
	assert.Len(t, other2.sent, 1)
}

func TestUnsolicitedDataPolicy(t *testing.T) {
	th := newTestThread(t, "/localhost/nfd/strategy/best-route/v1")

	nonLocal := newFakeFace(1, dispatch.NonLocal, dispatch.PointToPoint)
	local := newFakeFace(2, dispatch.Local, dispatch.PointToPoint)
	dispatch.AddFace(nonLocal)
	dispatch.AddFace(local)

	name := ndn.NameFromString("/unsolicited")

	// No PIT entry exists for this name in either case, so both arrivals
	// take the Unsolicited Data Pipeline.
	dropData := &ndn.Data{NameV: name}
	th.processIncomingData(&ndn.Packet{Data: dropData, IncomingFaceID: nonLocal.FaceID()})
	assert.Equal(t, 0, th.GetNumCsEntries(), "default policy drops unsolicited Data from the network")

	cacheData := &ndn.Data{NameV: name}
	th.processIncomingData(&ndn.Packet{Data: cacheData, IncomingFaceID: local.FaceID()})
	assert.Equal(t, 1, th.GetNumCsEntries(), "default policy caches unsolicited Data from a Local face")
}
