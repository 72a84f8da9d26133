/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"sort"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/fw/table"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// BestRouteSuppressionTime is the time to suppress retransmissions of the same Interest.
const BestRouteSuppressionTime = 400 * time.Millisecond

// BestRoute is a forwarding strategy that forwards Interests
// to the nexthop with the lowest cost.
type BestRoute struct {
	StrategyBase
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &BestRoute{} })
	StrategyVersions["best-route"] = []uint64{1}
}

func (s *BestRoute) Instantiate(fwThread *Thread) {
	s.NewStrategyBase(fwThread, s, "best-route", 1)
}

func (s *BestRoute) AfterContentStoreHit(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
) {
	core.Log.Debug(s, "AfterContentStoreHit", "name", packet.Name(), "faceid", inFace)
	s.SendData(packet, pitEntry, inFace, 0) // 0 indicates ContentStore is source
}

func (s *BestRoute) AfterReceiveData(
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

func (s *BestRoute) AfterReceiveInterest(
	packet *ndn.Packet,
	pitEntry table.PitEntry,
	inFace uint64,
	nexthops []*table.FibNextHopEntry,
) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop found - DROP", "name", packet.Name())
		return
	}

	// Sort nexthops by cost and send to best-possible nexthop
	sort.Slice(nexthops, func(i, j int) bool { return nexthops[i].Cost < nexthops[j].Cost })

	now := time.Now()
	for pass := range 2 {
		for _, nh := range nexthops {
			// In the first pass, skip hops that already have a out record
			if pass == 0 {
				if oR := pitEntry.OutRecords()[nh.Nexthop]; oR != nil {
					// Suppress retransmissions of the same Interest within suppression time
					if oR.LatestTimestamp.Add(BestRouteSuppressionTime).After(now) {
						core.Log.Debug(s, "Suppressed Interest - DROP", "name", packet.Name())
						return
					}

					// If an out record exists, skip this hop
					continue
				}
			}

			core.Log.Debug(s, "Forwarding Interest", "name", packet.Name(), "faceid", nh.Nexthop)
			if sent := s.SendInterest(packet, pitEntry, nh.Nexthop, inFace); sent {
				return
			}
		}
	}

	core.Log.Debug(s, "No usable nexthop for Interest - DROP", "name", packet.Name())
}

func (s *BestRoute) BeforeSatisfyInterest(pitEntry table.PitEntry, inFace uint64) {
	// This does nothing in BestRoute
}

func (s *BestRoute) AfterReceiveNack(nack *ndn.Packet, pitEntry table.PitEntry, inFace uint64) {
	// BestRoute does not react to Nacks; the PIT entry simply times out and
	// the next strategy-driven retransmission (if any) tries another hop.
}

func (s *BestRoute) AfterSendInterest(pitEntry table.PitEntry, outFace uint64, retransmitted bool) {
	// This does nothing in BestRoute
}

func (s *BestRoute) AfterInterestLoop(pitEntry table.PitEntry, inFace uint64) {
	// This does nothing in BestRoute
}

func (s *BestRoute) AfterUnsolicitedData(data *ndn.Data, inFace uint64) {
	// This does nothing in BestRoute
}
