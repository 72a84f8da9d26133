/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// Multicast is a forwarding strategy that forwards Interests to every
// available nexthop, useful over broadcast/multi-access media where more
// than one downstream may want the same content.
type Multicast struct {
	StrategyBase
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &Multicast{} })
	StrategyVersions["multicast"] = []uint64{1}
}

func (s *Multicast) Instantiate(fwThread *Thread) {
	s.NewStrategyBase(fwThread, s, "multicast", 1)
}

func (s *Multicast) AfterContentStoreHit(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
) {
	core.Log.Debug(s, "AfterContentStoreHit", "name", packet.Name(), "faceid", inFace)
	s.SendData(packet, pitEntry, inFace, 0)
}

func (s *Multicast) AfterReceiveData(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
) {
	core.Log.Debug(s, "AfterReceiveData", "name", packet.Name(), "inrecords", len(pitEntry.InRecords()))
	for faceID := range pitEntry.InRecords() {
		core.Log.Debug(s, "Forwarding Data", "name", packet.Name(), "faceid", faceID)
		s.SendData(packet, pitEntry, faceID, inFace)
	}
}

func (s *Multicast) AfterReceiveInterest(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
	nexthops []*table.FibNextHopEntry,
) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop found - DROP", "name", packet.Name())
		return
	}

	sentAny := false
	for _, nh := range nexthops {
		core.Log.Debug(s, "Forwarding Interest", "name", packet.Name(), "faceid", nh.Nexthop)
		if sent := s.SendInterest(packet, pitEntry, nh.Nexthop, inFace); sent {
			sentAny = true
		}
	}

	if !sentAny {
		core.Log.Debug(s, "No usable nexthop for Interest - DROP", "name", packet.Name())
	}
}

func (s *Multicast) BeforeSatisfyInterest(pitEntry table.PitEntry, inFace uint64) {
	// This does nothing in Multicast
}

func (s *Multicast) AfterReceiveNack(nack *ndn.Packet, pitEntry table.PitEntry, inFace uint64) {
	// Multicast already tried every nexthop up front, so a Nack from one of
	// them carries no new forwarding decision.
}

func (s *Multicast) AfterSendInterest(pitEntry table.PitEntry, outFace uint64, retransmitted bool) {
	// This does nothing in Multicast
}

func (s *Multicast) AfterInterestLoop(pitEntry table.PitEntry, inFace uint64) {
	// This does nothing in Multicast
}

func (s *Multicast) AfterUnsolicitedData(data *ndn.Data, inFace uint64) {
	// This does nothing in Multicast
}
