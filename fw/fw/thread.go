/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/fw/defn"
	"github.com/jiangtaoluo/jet-NFD/fw/dispatch"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// Threads holds every forwarding thread, indexed by thread ID. Populated by
// the caller that constructs the forwarder (cmd/ndndrw).
var Threads []*Thread

// MaxFwThreads bounds the number of forwarding threads a single process may
// run: thread IDs are packed into the top 2 bytes of the 6-byte PIT token,
// but more practically this is a sanity bound on the configured thread count.
const MaxFwThreads = 32

// HashNameToFwThread determines which forwarding thread is responsible for a
// name (spec.md §5: every name is sharded to exactly one thread, except the
// reserved /localhost namespace which always lands on thread 0).
func HashNameToFwThread(name ndn.Name) int {
	if name.HasLocalhostScope() {
		return 0
	}
	return int(name.Hash() % uint64(len(Threads)))
}

// HashNameToAllPrefixFwThreads returns, for every forwarding thread, whether
// some prefix of name (including name itself) hashes to it. Used to reach
// every thread that might hold a PIT entry matching a FIB/Strategy Choice
// update under name.
func HashNameToAllPrefixFwThreads(name ndn.Name) []bool {
	hit := make([]bool, len(Threads))
	if name.HasLocalhostScope() {
		hit[0] = true
		return hit
	}
	for _, h := range name.PrefixHash() {
		hit[h%uint64(len(Threads))] = true
	}
	return hit
}

// Thread is a single forwarding thread: it owns a PIT/CS pair and a queue of
// pending Interests/Data/Nacks, and processes them on a single goroutine so
// no locking is needed within a thread (spec.md §5).
type Thread struct {
	threadID int

	pendingInterests chan *ndn.Packet
	pendingDatas     chan *ndn.Packet
	pendingNacks     chan *ndn.Packet

	// timerFire carries scheduled-callback closures (relay/retx timers,
	// spec.md §4.10) back onto this thread's goroutine, so a fired timer
	// never touches the PIT/CS from outside the single-threaded event loop.
	timerFire chan func()

	pitCS         table.PitCsTable
	strategies    map[uint64]Strategy
	deadNonceList *table.DeadNonceList
	dataNonceList *table.DataNonceList

	// unsolicitedPolicy decides whether Data with no matching PIT entry is
	// dropped or cached (spec.md §4.7, §6).
	unsolicitedPolicy UnsolicitedDataPolicy

	shouldQuit chan interface{}
	HasQuit    chan interface{}

	NInInterests          uint64
	NInData               uint64
	NInNacks              uint64
	NOutInterests         uint64
	NOutData              uint64
	NOutNacks             uint64
	NSatisfiedInterests   uint64
	NUnsatisfiedInterests uint64
	NCsHits               uint64
	NCsMisses             uint64
}

// Counters snapshots this thread's forwarding statistics, adapted from the
// teacher's per-face defn.FWThreadCounters (repurposed here as a per-thread
// rather than per-face stat block, since this module has no face lifecycle
// to report on - see DESIGN.md).
func (t *Thread) Counters() defn.FWThreadCounters {
	return defn.FWThreadCounters{
		NPitEntries:           t.GetNumPitEntries(),
		NCsEntries:            t.GetNumCsEntries(),
		NInInterests:          t.NInInterests,
		NInData:               t.NInData,
		NOutInterests:         t.NOutInterests,
		NOutData:              t.NOutData,
		NSatisfiedInterests:   t.NSatisfiedInterests,
		NUnsatisfiedInterests: t.NUnsatisfiedInterests,
		NCsHits:               t.NCsHits,
		NCsMisses:             t.NCsMisses,
	}
}

// NewThread creates a new forwarding thread with the given ID.
func NewThread(id int) *Thread {
	t := &Thread{
		threadID:          id,
		pendingInterests:  make(chan *ndn.Packet, CfgFwQueueSize()),
		pendingDatas:      make(chan *ndn.Packet, CfgFwQueueSize()),
		pendingNacks:      make(chan *ndn.Packet, CfgFwQueueSize()),
		timerFire:         make(chan func(), 64),
		deadNonceList:     table.NewDeadNonceList(),
		dataNonceList:     table.NewDataNonceList(),
		unsolicitedPolicy: DefaultUnsolicitedDataPolicy{},
		shouldQuit:        make(chan interface{}, 1),
		HasQuit:           make(chan interface{}, 1),
	}
	t.pitCS = table.NewPitCS(t.finalizeInterest)
	t.strategies = InstantiateStrategies(t)
	return t
}

func (t *Thread) String() string {
	return fmt.Sprintf("fw-thread-%d", t.threadID)
}

func (t *Thread) GetID() int { return t.threadID }

func (t *Thread) GetNumPitEntries() int { return t.pitCS.PitSize() }
func (t *Thread) GetNumCsEntries() int  { return t.pitCS.CsSize() }

// ScheduleAfter runs fn on this thread's own goroutine after d elapses,
// letting a strategy's relay/retx timers (spec.md §4.8, §4.10) touch the
// PIT/CS without racing the event loop. fn should re-resolve anything it
// needs by key (PIT entry name, face ID) since the state it captured at
// schedule time may be gone by the time it fires.
func (t *Thread) ScheduleAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case t.timerFire <- fn:
		default:
			core.Log.Warn(t, "Timer queue full, dropping scheduled callback")
		}
	})
}

// TellToQuit asks the thread to stop processing at its next opportunity.
func (t *Thread) TellToQuit() {
	core.Log.Info(t, "Telling forwarding thread to quit")
	t.shouldQuit <- true
}

// QueueInterest queues an incoming Interest for processing by this thread,
// dropping it if the queue is full rather than blocking the caller.
func (t *Thread) QueueInterest(packet *ndn.Packet) {
	select {
	case t.pendingInterests <- packet:
	default:
		core.Log.Warn(t, "Interest queue full, dropping packet")
	}
}

// QueueData queues an incoming Data for processing by this thread.
func (t *Thread) QueueData(packet *ndn.Packet) {
	select {
	case t.pendingDatas <- packet:
	default:
		core.Log.Warn(t, "Data queue full, dropping packet")
	}
}

// QueueNack queues an incoming Nack for processing by this thread.
func (t *Thread) QueueNack(packet *ndn.Packet) {
	select {
	case t.pendingNacks <- packet:
	default:
		core.Log.Warn(t, "Nack queue full, dropping packet")
	}
}

// Run is the forwarding thread's event loop. It must run on its own
// goroutine and is the only goroutine allowed to touch this thread's PIT/CS
// (spec.md §5).
func (t *Thread) Run() {
	defer func() { t.HasQuit <- true }()

	for {
		select {
		case interest := <-t.pendingInterests:
			t.processIncomingInterest(interest)
		case data := <-t.pendingDatas:
			t.processIncomingData(data)
		case nack := <-t.pendingNacks:
			t.processIncomingNack(nack)
		case fn := <-t.timerFire:
			fn()
		case <-t.deadNonceList.Ticker.C:
			t.deadNonceList.RemoveExpiredEntries()
		case <-t.dataNonceList.Ticker.C:
			t.dataNonceList.RemoveExpiredEntries()
		case <-t.pitCS.UpdateTicker():
			t.pitCS.Update()
		case <-t.shouldQuit:
			return
		}
	}
}

func (t *Thread) processIncomingInterest(packet *ndn.Packet) {
	interest := packet.Interest
	incomingFace := dispatch.GetFace(packet.IncomingFaceID)
	if incomingFace == nil {
		core.Log.Warn(t, "Incoming face not found for Interest, dropping", "name", interest.Name())
		return
	}

	t.NInInterests++

	if interest.HopLimitV != nil {
		if *interest.HopLimitV == 0 {
			core.Log.Info(t, "HopLimit=0 on Interest, dropping", "name", interest.Name())
			return
		}
		decremented := *interest.HopLimitV - 1
		interest.HopLimitV = &decremented
	}

	if incomingFace.Scope() == dispatch.NonLocal && interest.Name().HasLocalhostScope() {
		core.Log.Warn(t, "Received Interest with /localhost scope from non-local face, dropping",
			"name", interest.Name(), "face", incomingFace.FaceID())
		return
	}

	// Resolve forwarding hint: if it names a region this forwarder is a
	// producer for, strip it and forward under the original name
	// (spec.md §4.1 forwarding hint resolution).
	hint := interest.ForwardingHintV
	fhName := interest.Name()
	if hint != nil && len(hint.Names) > 0 {
		for _, delegation := range hint.Names {
			if table.NetworkRegion.IsProducer(delegation) {
				stripped := *interest
				stripped.ForwardingHintV = nil
				interest = &stripped
				strippedPkt := *packet
				strippedPkt.Interest = interest
				packet = &strippedPkt
				hint = nil
				break
			}
		}
	}

	if !interest.NonceV.IsSet() {
		core.Log.Info(t, "Interest missing Nonce, dropping", "name", interest.Name())
		return
	}
	nonce := interest.NonceV.Unwrap()

	if t.deadNonceList.Find(fhName, nonce) {
		core.Log.Info(t, "Interest nonce in dead nonce list, dropping", "name", interest.Name())
		return
	}

	strategyName := table.FibStrategyTable.FindStrategyEnc(fhName)
	strategy := t.strategies[strategyName.Hash()]
	if strategy == nil {
		core.Log.Fatal(t, "No strategy found for name, misconfigured Strategy Choice table", "name", fhName)
		return
	}

	pitEntry, isLooped := t.pitCS.InsertInterest(interest, hint, incomingFace.FaceID())
	if isLooped {
		// Interest Loop Pipeline (spec.md §4.2): on a point-to-point face the
		// duplicate is answered with Nack{Duplicate}; on a broadcast/ad-hoc
		// face it is just an overheard echo of our own relay, so it is
		// dropped silently after letting the strategy cancel anything it
		// still has pending for this Interest.
		if incomingFace.LinkType() == dispatch.PointToPoint {
			core.Log.Info(t, "Interest looped on point-to-point face, sending Nack{Duplicate}", "name", interest.Name())
			t.processOutgoingNack(interest, ndn.NackDuplicate, incomingFace.FaceID(), packet.PitToken, 0)
		} else {
			core.Log.Info(t, "Interest looped, cancelling pending relays", "name", interest.Name())
			strategy.AfterInterestLoop(pitEntry, incomingFace.FaceID())
		}
		return
	}

	_, isAlreadyPending, prevNonce := pitEntry.InsertInRecord(interest, incomingFace.FaceID(), packet.PitToken)
	if isAlreadyPending {
		core.Log.Info(t, "Interest is retransmission", "name", interest.Name(), "previousNonce", prevNonce)
	}

	if !isAlreadyPending && t.pitCS.IsCsServing() {
		if csEntry := t.pitCS.FindMatchingDataFromCS(interest); csEntry != nil {
			if csData, err := csEntry.Copy(); err == nil {
				t.NCsHits++
				// CS Hit Pipeline (spec.md §4.4): satisfy and finalize the
				// PIT entry the same way a real Data reply would, so it is
				// reclaimed on the next Update() tick instead of leaking.
				strategy.BeforeSatisfyInterest(pitEntry, incomingFace.FaceID())
				pitEntry.SetSatisfied(true)
				table.SetExpirationTimerToNow(pitEntry)
				t.NSatisfiedInterests++
				strategy.AfterContentStoreHit(&ndn.Packet{Data: csData}, pitEntry, incomingFace.FaceID())
				return
			}
		} else {
			t.NCsMisses++
		}
	}

	table.UpdateExpirationTimer(pitEntry, time.Now().Add(interest.Lifetime().GetOr(4000*time.Millisecond)))

	if nextHopFace, ok := packet.NextHopFaceID.Get(); ok {
		if face := dispatch.GetFace(nextHopFace); face != nil {
			strategy.AfterReceiveInterest(packet, pitEntry, incomingFace.FaceID(),
				[]*table.FibNextHopEntry{{Nexthop: face.FaceID(), Cost: 0}})
		}
		return
	}

	lookupName := fhName
	if hint != nil && len(hint.Names) > 0 {
		lookupName = hint.Names[0]
	}

	nexthops := table.FibStrategyTable.FindNextHopsEnc(lookupName)

	filtered := make([]*table.FibNextHopEntry, 0, len(nexthops))
	for _, nh := range nexthops {
		if nh.Nexthop == incomingFace.FaceID() {
			continue
		}
		nhFace := dispatch.GetFace(nh.Nexthop)
		if nhFace == nil {
			continue
		}
		if interest.Name().HasLocalhopScope() &&
			incomingFace.Scope() == dispatch.NonLocal && nhFace.Scope() == dispatch.NonLocal {
			continue
		}
		if _, pending := pitEntry.OutRecords()[nh.Nexthop]; pending {
			continue
		}
		filtered = append(filtered, nh)
	}

	strategy.AfterReceiveInterest(packet, pitEntry, incomingFace.FaceID(), filtered)
}

// processOutgoingInterest sends an Interest to nexthop on behalf of a
// strategy, recording an out-record and PIT token. Returns false if the
// Interest was not sent (e.g. nexthop is the face the Interest arrived on
// for a non-AdHoc link, or HopLimit has already been exhausted).
func (t *Thread) processOutgoingInterest(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	nexthop uint64,
	inFace uint64,
) bool {
	outgoingFace := dispatch.GetFace(nexthop)
	if outgoingFace == nil {
		core.Log.Warn(t, "Nexthop face does not exist, dropping", "face", nexthop)
		return false
	}

	if nexthop == inFace && outgoingFace.LinkType() != dispatch.AdHoc {
		core.Log.Info(t, "Suppressing Interest sent back on non-adhoc incoming face", "face", nexthop)
		return false
	}

	interest := packet.Interest
	if interest.HopLimitV != nil && *interest.HopLimitV == 0 && outgoingFace.Scope() == dispatch.NonLocal {
		core.Log.Info(t, "HopLimit=0, dropping outgoing Interest to non-local face")
		return false
	}

	pitEntry.InsertOutRecord(interest, nexthop)

	token := make([]byte, 6)
	binary.BigEndian.PutUint16(token[0:2], uint16(t.threadID))
	binary.BigEndian.PutUint32(token[2:6], pitEntry.Token())

	out := *packet
	out.PitToken = token
	out.IncomingFaceID = inFace
	outgoingFace.SendPacket(&out)

	t.NOutInterests++
	return true
}

// finalizeInterest is invoked for every PIT entry whose expiry elapses and
// does nothing for satisfied ones. For an unsatisfied entry, every
// upstream it was relayed to gets its nonce recorded in the Dead Nonce List
// so a late, identical retransmission is not mistaken for a new request
// (spec.md §4.3).
func (t *Thread) finalizeInterest(pitEntry table.PitEntry) {
	if pitEntry.Satisfied() {
		return
	}
	for _, outRecord := range pitEntry.OutRecords() {
		t.deadNonceList.Insert(pitEntry.Name(), outRecord.LatestNonce)
	}
	t.NUnsatisfiedInterests++
}

func (t *Thread) processIncomingData(packet *ndn.Packet) {
	data := packet.Data
	incomingFace := dispatch.GetFace(packet.IncomingFaceID)
	if incomingFace == nil {
		core.Log.Warn(t, "Incoming face not found for Data, dropping", "name", data.Name())
		return
	}

	t.NInData++

	if incomingFace.Scope() == dispatch.NonLocal && data.Name().HasLocalhostScope() {
		core.Log.Warn(t, "Received Data with /localhost scope from non-local face, dropping", "name", data.Name())
		return
	}

	if data.Emergency == ndn.EmergencyFlood {
		t.processEmergencyData(packet, incomingFace)
		return
	}

	var token *uint32
	if len(packet.PitToken) == 6 {
		v := binary.BigEndian.Uint32(packet.PitToken[2:6])
		token = &v
	}

	pitEntries := t.pitCS.FindInterestPrefixMatchByDataEnc(data, token)
	if len(pitEntries) == 0 {
		t.processUnsolicitedData(packet, incomingFace)
		return
	}

	if t.pitCS.IsCsAdmitting() {
		t.pitCS.InsertData(data)
	}

	satisfy := func(pitEntry table.PitEntry) {
		strategyName := table.FibStrategyTable.FindStrategyEnc(pitEntry.Name())
		strategy := t.strategies[strategyName.Hash()]

		table.SetExpirationTimerToNow(pitEntry)

		for _, outRecord := range pitEntry.OutRecords() {
			t.deadNonceList.Insert(pitEntry.Name(), outRecord.LatestNonce)
		}

		if strategy != nil {
			strategy.BeforeSatisfyInterest(pitEntry, incomingFace.FaceID())
			strategy.AfterReceiveData(packet, pitEntry, incomingFace.FaceID())
		}

		pitEntry.SetSatisfied(true)
		t.NSatisfiedInterests++
	}

	if len(pitEntries) == 1 {
		pitEntry := pitEntries[0]
		satisfy(pitEntry)
		pitEntry.ClearInRecords()
		pitEntry.ClearOutRecords()
		return
	}

	downstreams := make(map[uint64][]byte)
	for _, pitEntry := range pitEntries {
		satisfy(pitEntry)
		for face, inRecord := range pitEntry.InRecords() {
			if face != incomingFace.FaceID() {
				downstreams[face] = inRecord.PitToken
			}
		}
		pitEntry.ClearInRecords()
		pitEntry.ClearOutRecords()
	}

	for downstream, pitToken := range downstreams {
		t.processOutgoingData(packet, downstream, pitToken, incomingFace.FaceID())
	}
}

// processEmergencyData implements the emergency-flood branch of the
// Incoming Data Pipeline (spec.md §4.7): it bypasses PIT/CS matching
// entirely and re-floods the Data to every other face (and back out the
// incoming face when that face is ad-hoc), de-duplicated by
// (name, nonce) via the Data Nonce List so a broadcast echo of our own
// flood is not flooded again.
func (t *Thread) processEmergencyData(packet *ndn.Packet, incomingFace dispatch.Face) {
	data := packet.Data
	nonce, ok := data.Nonce().Get()
	if !ok {
		core.Log.Info(t, "Emergency Data missing Nonce, dropping", "name", data.Name())
		return
	}
	if t.dataNonceList.Insert(data.Name(), nonce) {
		core.Log.Info(t, "Emergency Data already seen, dropping", "name", data.Name())
		return
	}

	core.Log.Info(t, "Re-flooding emergency Data", "name", data.Name())
	for _, face := range dispatch.Faces.All() {
		if face.FaceID() == incomingFace.FaceID() && face.LinkType() != dispatch.AdHoc {
			continue
		}
		out := *packet
		out.IncomingFaceID = incomingFace.FaceID()
		face.SendPacket(&out)
		t.NOutData++
	}
}

// processUnsolicitedData implements the Unsolicited Data Pipeline (spec.md
// §4.7): Data with no matching PIT entry is consulted against the
// UnsolicitedDataPolicy (spec.md §6) and, if the policy says to cache it,
// inserted into the CS and offered to the owning strategy's
// unsolicited-data hook.
func (t *Thread) processUnsolicitedData(packet *ndn.Packet, incomingFace dispatch.Face) {
	data := packet.Data
	if t.unsolicitedPolicy.Decide(incomingFace, data) != UnsolicitedCache {
		core.Log.Info(t, "Unsolicited Data, dropping", "name", data.Name())
		return
	}

	core.Log.Info(t, "Unsolicited Data, caching", "name", data.Name())
	if t.pitCS.IsCsAdmitting() {
		t.pitCS.InsertData(data)
	}

	strategyName := table.FibStrategyTable.FindStrategyEnc(data.Name())
	if strategy := t.strategies[strategyName.Hash()]; strategy != nil {
		strategy.AfterUnsolicitedData(data, incomingFace.FaceID())
	}
}

func (t *Thread) processOutgoingData(packet *ndn.Packet, nexthop uint64, pitToken []byte, inFace uint64) {
	outgoingFace := dispatch.GetFace(nexthop)
	if outgoingFace == nil {
		core.Log.Warn(t, "Nexthop face does not exist, dropping Data", "face", nexthop)
		return
	}

	if outgoingFace.Scope() == dispatch.NonLocal && packet.Data.Name().HasLocalhostScope() {
		core.Log.Warn(t, "Suppressing /localhost Data sent to non-local face", "face", nexthop)
		return
	}

	out := *packet
	out.PitToken = pitToken
	out.IncomingFaceID = inFace
	outgoingFace.SendPacket(&out)
	t.NOutData++
}

// processIncomingNack matches a Nack to the out-record it answers and hands
// it to the owning strategy (spec.md §4.6). Nack pipeline support has no
// equivalent in the teacher, so its shape is grounded directly on NFD's Nack
// forwarding pipeline: a Nack is only honored if its Nonce matches the
// out-record recorded for the face it arrived on.
func (t *Thread) processIncomingNack(packet *ndn.Packet) {
	nack := packet.Nack
	incomingFace := dispatch.GetFace(packet.IncomingFaceID)
	if incomingFace == nil || nack == nil || nack.Interest == nil {
		return
	}
	t.NInNacks++

	pitEntry := t.pitCS.FindInterestExactMatchEnc(nack.Interest)
	if pitEntry == nil {
		core.Log.Info(t, "No PIT entry matches incoming Nack, dropping", "name", nack.Interest.Name())
		return
	}

	outRecord, ok := pitEntry.OutRecords()[incomingFace.FaceID()]
	nonce, hasNonce := nack.Interest.NonceV.Get()
	if !ok || !hasNonce || outRecord.LatestNonce != nonce {
		core.Log.Info(t, "Incoming Nack does not match an out-record nonce, dropping", "name", nack.Interest.Name())
		return
	}

	strategyName := table.FibStrategyTable.FindStrategyEnc(pitEntry.Name())
	if strategy := t.strategies[strategyName.Hash()]; strategy != nil {
		strategy.AfterReceiveNack(packet, pitEntry, incomingFace.FaceID())
	}
}

// processOutgoingNack sends a Nack downstream on behalf of a strategy.
func (t *Thread) processOutgoingNack(nack *ndn.Interest, reason ndn.NackReason, nexthop uint64, pitToken []byte, inFace uint64) {
	outgoingFace := dispatch.GetFace(nexthop)
	if outgoingFace == nil {
		return
	}
	out := &ndn.Packet{
		Nack:           &ndn.Nack{Interest: nack, Reason: reason},
		PitToken:       pitToken,
		IncomingFaceID: inFace,
	}
	outgoingFace.SendPacket(out)
	t.NOutNacks++
}
