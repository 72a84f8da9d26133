package fw

import (
	"math/rand"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/fw/dispatch"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// RandomWaitStrategy forwards every FIB nexthop, but unless the downstream
// or the upstream face is Local it delays each Interest relay by a small
// uniform-random amount instead of sending immediately (Data relays are
// delayed only toward ad-hoc downstreams), so that neighbors overhearing the same
// broadcast Interest/Data being relayed by someone else can suppress their
// own redundant retransmission (spec.md §4.8). Grounded on
// `_examples/original_source/daemon/fw/randomwait-strategy.{hpp,cpp}`,
// structured in this repo's Go idiom the way BestRoute/Multicast are.
type RandomWaitStrategy struct {
	StrategyBase

	delayMin time.Duration
	delayMax time.Duration

	retxSuppressionInitial time.Duration
	retxSuppressionMax     time.Duration
	retxTimerUnit          time.Duration
	maxRetxCount           int

	// pendingInterestRelays / pendingDataRelays record which delayed relays
	// sendInterestLater / AfterReceiveData have scheduled but not yet fired,
	// so the loop-cancel and unsolicited-data hooks (spec.md §4.8) can
	// cancel one early on an overheard duplicate. Per spec.md §4.10/§9 the
	// scheduled closures re-check this state "by key" at fire time rather
	// than holding a direct timer handle - deleting the key here is enough
	// to make the eventual fire a no-op.
	pendingInterestRelays map[uint32]map[uint64]struct{} // PIT token -> nexthops
	pendingDataRelays     map[uint64]map[uint64]struct{} // name hash -> downstreams
}

const retxSuppressionMultiplier = 2.0

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &RandomWaitStrategy{} })
	StrategyVersions["random-wait"] = []uint64{1}
}

func (s *RandomWaitStrategy) Instantiate(fwThread *Thread) {
	s.NewStrategyBase(fwThread, s, "random-wait", 1)

	cfg := core.C.Tables.Strategy.RandomWait
	s.delayMin = time.Duration(cfg.DelayMinUs) * time.Microsecond
	s.delayMax = time.Duration(cfg.DelayMaxUs) * time.Microsecond
	s.retxSuppressionInitial = time.Duration(cfg.RetxSuppressionInitialMs) * time.Millisecond
	s.retxSuppressionMax = time.Duration(cfg.RetxSuppressionMaxMs) * time.Millisecond
	s.retxTimerUnit = time.Duration(cfg.RetxTimerUnitMs) * time.Millisecond
	s.maxRetxCount = cfg.MaxRetxCount

	s.pendingInterestRelays = make(map[uint32]map[uint64]struct{})
	s.pendingDataRelays = make(map[uint64]map[uint64]struct{})
}

func (s *RandomWaitStrategy) markInterestRelayPending(token uint32, nexthop uint64) {
	if s.pendingInterestRelays[token] == nil {
		s.pendingInterestRelays[token] = make(map[uint64]struct{})
	}
	s.pendingInterestRelays[token][nexthop] = struct{}{}
}

// takeInterestRelayPending reports whether the (token, nexthop) relay is
// still pending and, if so, consumes it so it cannot fire or be cancelled
// twice.
func (s *RandomWaitStrategy) takeInterestRelayPending(token uint32, nexthop uint64) bool {
	pending, ok := s.pendingInterestRelays[token]
	if !ok {
		return false
	}
	if _, ok := pending[nexthop]; !ok {
		return false
	}
	delete(pending, nexthop)
	if len(pending) == 0 {
		delete(s.pendingInterestRelays, token)
	}
	return true
}

// cancelInterestRelays drops every relay still pending for token: an
// overheard duplicate means some neighbor has already relayed this
// Interest, so our own scheduled relays for it are now redundant.
func (s *RandomWaitStrategy) cancelInterestRelays(token uint32) {
	delete(s.pendingInterestRelays, token)
}

func (s *RandomWaitStrategy) markDataRelayPending(nameHash, downstream uint64) {
	if s.pendingDataRelays[nameHash] == nil {
		s.pendingDataRelays[nameHash] = make(map[uint64]struct{})
	}
	s.pendingDataRelays[nameHash][downstream] = struct{}{}
}

func (s *RandomWaitStrategy) takeDataRelayPending(nameHash, downstream uint64) bool {
	pending, ok := s.pendingDataRelays[nameHash]
	if !ok {
		return false
	}
	if _, ok := pending[downstream]; !ok {
		return false
	}
	delete(pending, downstream)
	if len(pending) == 0 {
		delete(s.pendingDataRelays, nameHash)
	}
	return true
}

// cancelDataRelays drops every relay still pending for nameHash: the Data
// has already reached its downstreams some other way (a CS hit answered
// them directly, or the Data itself was overheard), so relaying it again
// would just be a duplicate transmission.
func (s *RandomWaitStrategy) cancelDataRelays(nameHash uint64) {
	delete(s.pendingDataRelays, nameHash)
}

func (s *RandomWaitStrategy) randomDelay() time.Duration {
	span := int64(s.delayMax - s.delayMin)
	if span <= 0 {
		return s.delayMin
	}
	return s.delayMin + time.Duration(rand.Int63n(span))
}

// suppressionDecision mirrors NFD's RetxSuppressionExponential: NEW for a
// face seen for the first time, SUPPRESS while inside the current
// exponentially-growing window, FORWARD once the window has elapsed.
type suppressionDecision int

const (
	suppressNew suppressionDecision = iota
	suppressSuppress
	suppressForward
)

func (s *RandomWaitStrategy) decidePerUpstream(pitEntry table.PitEntry, nexthop uint64) suppressionDecision {
	outRecord, ok := pitEntry.OutRecords()[nexthop]
	if !ok {
		return suppressNew
	}
	interval := outRecord.SuppressionInterval
	if interval == 0 {
		interval = s.retxSuppressionInitial
	}
	if time.Since(outRecord.LatestTimestamp) < interval {
		return suppressSuppress
	}
	return suppressForward
}

func (s *RandomWaitStrategy) incrementInterval(outRecord *table.PitOutRecord) {
	interval := outRecord.SuppressionInterval
	if interval == 0 {
		interval = s.retxSuppressionInitial
	}
	interval = time.Duration(float64(interval) * retxSuppressionMultiplier)
	if interval > s.retxSuppressionMax {
		interval = s.retxSuppressionMax
	}
	outRecord.SuppressionInterval = interval
}

func (s *RandomWaitStrategy) AfterContentStoreHit(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
) {
	// Any relayTimerForData pending for this name is now moot: the CS
	// already has fresh Data, so cancel it outright and answer immediately.
	s.cancelDataRelays(pitEntry.Name().Hash())
	s.SendData(packet, pitEntry, inFace, 0)
}

func (s *RandomWaitStrategy) AfterReceiveData(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
) {
	name := pitEntry.Name()
	for faceID := range pitEntry.InRecords() {
		if faceID == inFace {
			continue
		}
		downFace := dispatch.GetFace(faceID)
		if downFace == nil {
			continue
		}
		if inFace == 0 || downFace.Scope() == dispatch.Local || downFace.LinkType() != dispatch.AdHoc {
			s.SendData(packet, pitEntry, faceID, inFace)
			continue
		}

		delay := s.randomDelay()
		downstream := faceID
		nameHash := name.Hash()
		s.markDataRelayPending(nameHash, downstream)
		core.Log.Debug(s, "Scheduling delayed Data relay", "name", name, "face", downstream, "delay", delay)
		s.thread.ScheduleAfter(delay, func() {
			if !s.takeDataRelayPending(nameHash, downstream) {
				return
			}
			if entry := s.thread.pitCS.FindMatchingDataFromCS(&ndn.Interest{NameV: name}); entry != nil {
				if data, err := entry.Copy(); err == nil {
					s.thread.processOutgoingData(&ndn.Packet{Data: data}, downstream, nil, inFace)
				}
			}
		})
	}
}

func (s *RandomWaitStrategy) AfterReceiveInterest(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
	nexthops []*table.FibNextHopEntry,
) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop found - NACK", "name", packet.Name())
		s.SendNack(pitEntry, ndn.NackNoRoute, inFace)
		return
	}

	inFaceObj := dispatch.GetFace(inFace)
	nEligible := 0
	suppressed := false

	for _, nh := range nexthops {
		decision := s.decidePerUpstream(pitEntry, nh.Nexthop)
		if decision == suppressSuppress {
			core.Log.Debug(s, "Suppressed upstream", "name", packet.Name(), "face", nh.Nexthop)
			suppressed = true
			continue
		}

		outFace := dispatch.GetFace(nh.Nexthop)
		if outFace == nil {
			continue
		}

		if inFaceObj != nil && (inFaceObj.Scope() == dispatch.Local || outFace.Scope() == dispatch.Local) {
			core.Log.Debug(s, "From/To local, sending now", "name", packet.Name(), "face", nh.Nexthop)
			s.SendInterest(packet, pitEntry, nh.Nexthop, inFace)
		} else {
			s.sendInterestLater(packet, pitEntry, nh.Nexthop, inFace)
		}

		if decision == suppressForward {
			if outRecord, ok := pitEntry.OutRecords()[nh.Nexthop]; ok {
				s.incrementInterval(outRecord)
			}
		}
		nEligible++
	}

	if nEligible == 0 && !suppressed {
		core.Log.Debug(s, "No usable nexthop for Interest - NACK", "name", packet.Name())
		s.SendNack(pitEntry, ndn.NackNoRoute, inFace)
	}
}

// sendInterestLater schedules a delayed relay over an ad-hoc hop (spec.md
// §4.8). The callback re-resolves the PIT entry by name before touching it,
// per spec.md §4.10 / §9's PIT-entry/timer-closure-cycle decision: by the
// time the timer fires, the entry may already be gone.
func (s *RandomWaitStrategy) sendInterestLater(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	nexthop uint64,
	inFace uint64,
) {
	delay := s.randomDelay()
	name := pitEntry.Name()
	canBePrefix := pitEntry.CanBePrefix()
	mustBeFresh := pitEntry.MustBeFresh()
	token := pitEntry.Token()

	s.markInterestRelayPending(token, nexthop)
	core.Log.Debug(s, "Scheduling delayed Interest relay", "name", name, "face", nexthop, "delay", delay)

	s.thread.ScheduleAfter(delay, func() {
		if !s.takeInterestRelayPending(token, nexthop) {
			return
		}
		live := s.thread.pitCS.FindInterestExactMatchEnc(&ndn.Interest{
			NameV:        name,
			CanBePrefixV: canBePrefix,
			MustBeFreshV: mustBeFresh,
		})
		if live == nil || live.Satisfied() {
			return
		}
		s.SendInterest(packet, live, nexthop, inFace)
	})
}

// AfterSendInterest schedules a retransmission, bounded by maxRetxCount
// (spec.md §9 resolved decision: MAX_RETX_COUNT=3). The retx timer
// re-resolves the PIT entry by name when it fires, so a since-satisfied or
// since-expired entry silently drops the reschedule rather than looping.
func (s *RandomWaitStrategy) AfterSendInterest(pitEntry table.PitEntry, outFace uint64, retransmitted bool) {
	// IncRetxCount already ran (StrategyBase.SendInterest calls it just
	// before this hook), so the current count already reflects this send.
	if pitEntry.RetxCount(outFace) > s.maxRetxCount {
		core.Log.Debug(s, "Dropped Interest retransmission, max retx count reached",
			"name", pitEntry.Name(), "face", outFace)
		return
	}

	name := pitEntry.Name()
	canBePrefix := pitEntry.CanBePrefix()
	mustBeFresh := pitEntry.MustBeFresh()
	delay := time.Duration(pitEntry.RetxCount(outFace)) * s.retxTimerUnit

	s.thread.ScheduleAfter(delay, func() {
		live := s.thread.pitCS.FindInterestExactMatchEnc(&ndn.Interest{
			NameV:        name,
			CanBePrefixV: canBePrefix,
			MustBeFreshV: mustBeFresh,
		})
		if live == nil || live.Satisfied() {
			return
		}
		if outRecord, ok := live.OutRecords()[outFace]; ok {
			interest := &ndn.Interest{NameV: name, CanBePrefixV: canBePrefix, MustBeFreshV: mustBeFresh}
			interest.NonceV.Set(outRecord.LatestNonce)
			s.SendInterest(&ndn.Packet{Interest: interest}, live, outFace, 0)
		}
	})
}

// BeforeSatisfyInterest cancels nothing extra here: the relay timer
// callbacks above already re-check Satisfied()/existence before acting, so
// there is no separate timer handle to cancel (spec.md §4.10 "cancellation
// = no-op if already fired" is satisfied by the re-lookup itself).
func (s *RandomWaitStrategy) BeforeSatisfyInterest(pitEntry table.PitEntry, inFace uint64) {}

// AfterReceiveNack reacts to a Nack from an upstream (spec.md §4.8): it
// removes the PIT entry's out-record for that face, so any still-pending
// retx timer for it finds nothing to resend when it fires, and drops any
// relay to that face still pending.
func (s *RandomWaitStrategy) AfterReceiveNack(nack *ndn.Packet, pitEntry table.PitEntry, inFace uint64) {
	core.Log.Debug(s, "Received Nack", "name", pitEntry.Name(), "face", inFace, "reason", nack.Nack.Reason)
	pitEntry.RemoveOutRecord(inFace)
	s.takeInterestRelayPending(pitEntry.Token(), inFace)
}

// AfterInterestLoop implements the loop-cancel hook (spec.md §4.2): a
// non-point-to-point duplicate of pitEntry means some neighbor has already
// relayed this Interest, so any relay this thread still has scheduled for
// it is now redundant and is cancelled rather than left to fire.
func (s *RandomWaitStrategy) AfterInterestLoop(pitEntry table.PitEntry, inFace uint64) {
	core.Log.Debug(s, "Interest loop detected, cancelling pending relays", "name", pitEntry.Name(), "face", inFace)
	s.cancelInterestRelays(pitEntry.Token())
}

// AfterUnsolicitedData implements the unsolicited-data hook (spec.md §4.7,
// §4.8): an overheard or unsolicited copy of data means any Data relay this
// thread still has scheduled for the same name is now redundant.
func (s *RandomWaitStrategy) AfterUnsolicitedData(data *ndn.Data, inFace uint64) {
	core.Log.Debug(s, "Unsolicited Data, cancelling pending relays", "name", data.Name(), "face", inFace)
	s.cancelDataRelays(data.Name().Hash())
}
