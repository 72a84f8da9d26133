package fw

import (
	"github.com/jiangtaoluo/jet-NFD/fw/dispatch"
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// UnsolicitedDataDecision is the outcome of consulting an
// UnsolicitedDataPolicy (spec.md §4.7, §6).
type UnsolicitedDataDecision int

const (
	UnsolicitedDrop UnsolicitedDataDecision = iota
	UnsolicitedCache
)

// UnsolicitedDataPolicy decides what to do with Data that arrives with no
// matching PIT entry. Grounded on NFD's nfd::UnsolicitedDataPolicy
// interface, adapted to this forwarder's Face/ndn.Data types.
type UnsolicitedDataPolicy interface {
	Decide(face dispatch.Face, data *ndn.Data) UnsolicitedDataDecision
}

// DefaultUnsolicitedDataPolicy caches unsolicited Data only when it arrived
// over a Local face (e.g. from a producer application on this machine);
// anything from the network is dropped, mirroring NFD's default-drop
// policy.
type DefaultUnsolicitedDataPolicy struct{}

func (DefaultUnsolicitedDataPolicy) Decide(face dispatch.Face, data *ndn.Data) UnsolicitedDataDecision {
	if face != nil && face.Scope() == dispatch.Local {
		return UnsolicitedCache
	}
	return UnsolicitedDrop
}
