package table

import (
	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// FibNextHopEntry is one FIB nexthop: a face and the routing cost NFD uses
// to prefer among multiple nexthops for the same prefix (spec.md §4.3).
type FibNextHopEntry struct {
	Nexthop uint64
	Cost    uint64
}

// FibStrategyEntry is a read-only view of one FIB-Strategy node, used by
// status reporting.
type FibStrategyEntry interface {
	Name() ndn.Name
	GetNextHops() []*FibNextHopEntry
	GetStrategy() ndn.Name
}

// fibStrategyPayload is the per-node information carried by the
// FIB-Strategy NameTree: the set of nexthops registered exactly at this
// prefix, and the strategy choice registered exactly at this prefix (both
// may be nil/empty — the effective nexthops/strategy for a name are found
// by walking up to the nearest ancestor that has them, see FindNextHopsEnc
// and FindStrategyEnc).
type fibStrategyPayload struct {
	name     ndn.Name
	nexthops []*FibNextHopEntry
	strategy ndn.Name
}

func (p *fibStrategyPayload) Empty() bool {
	return len(p.nexthops) == 0 && p.strategy == nil
}

func (p *fibStrategyPayload) Name() ndn.Name                    { return p.name }
func (p *fibStrategyPayload) GetNextHops() []*FibNextHopEntry    { return p.nexthops }
func (p *fibStrategyPayload) GetStrategy() ndn.Name              { return p.strategy }

// FibStrategyTree is the FIB combined with the per-prefix Strategy Choice
// table (spec.md §4.3 FIB, §5 Strategy Choice Table), implemented as a
// single shared NameTree. It is shared by every forwarding thread, so all
// mutation goes through the tree's mutex.
type FibStrategyTree struct {
	tree *NameTree[*fibStrategyPayload]
}

// FibStrategyTable is the process-wide FIB-Strategy table.
var FibStrategyTable *FibStrategyTree

func newFibStrategyTableTree() {
	FibStrategyTable = &FibStrategyTree{
		tree: NewNameTree[*fibStrategyPayload](&fibStrategyPayload{name: ndn.Name{}}),
	}
}

// FindNextHopsEnc returns the longest-prefix-match nexthop(s) for name.
func (f *FibStrategyTree) FindNextHopsEnc(name ndn.Name) []*FibNextHopEntry {
	f.tree.RLock()
	defer f.tree.RUnlock()

	entry := FindLongestPrefixEntry(f.tree.Root(), name)
	for ; entry != nil; entry = entry.Parent {
		if len(entry.Payload.nexthops) > 0 {
			return append([]*FibNextHopEntry{}, entry.Payload.nexthops...)
		}
	}
	return nil
}

// FindStrategyEnc returns the longest-prefix-match strategy choice for name.
func (f *FibStrategyTree) FindStrategyEnc(name ndn.Name) ndn.Name {
	f.tree.RLock()
	defer f.tree.RUnlock()

	entry := FindLongestPrefixEntry(f.tree.Root(), name)
	for ; entry != nil; entry = entry.Parent {
		if entry.Payload.strategy != nil {
			return entry.Payload.strategy
		}
	}
	return nil
}

// InsertNextHopEnc adds or updates a nexthop entry for the given prefix.
func (f *FibStrategyTree) InsertNextHopEnc(name ndn.Name, nexthop uint64, cost uint64) {
	f.tree.Lock()
	defer f.tree.Unlock()

	entry := f.fillToPrefix(name)
	for _, nh := range entry.Payload.nexthops {
		if nh.Nexthop == nexthop {
			nh.Cost = cost
			return
		}
	}
	entry.Payload.nexthops = append(entry.Payload.nexthops, &FibNextHopEntry{Nexthop: nexthop, Cost: cost})
}

// ClearNextHopsEnc removes every nexthop registered exactly at name.
func (f *FibStrategyTree) ClearNextHopsEnc(name ndn.Name) {
	f.tree.Lock()
	defer f.tree.Unlock()

	if name == nil {
		return
	}
	if node := FindExactMatchEntry(f.tree.Root(), name); node != nil {
		node.Payload.nexthops = nil
	}
}

// RemoveNextHopEnc removes one nexthop entry registered at name.
func (f *FibStrategyTree) RemoveNextHopEnc(name ndn.Name, nexthop uint64) {
	f.tree.Lock()
	defer f.tree.Unlock()

	entry := FindExactMatchEntry(f.tree.Root(), name)
	if entry == nil {
		return
	}
	for i, nh := range entry.Payload.nexthops {
		if nh.Nexthop == nexthop {
			entry.Payload.nexthops = append(entry.Payload.nexthops[:i], entry.Payload.nexthops[i+1:]...)
			break
		}
	}
	PruneIfEmpty(entry)
}

// SetStrategyEnc registers strategy as the strategy choice for name.
func (f *FibStrategyTree) SetStrategyEnc(name ndn.Name, strategy ndn.Name) {
	f.tree.Lock()
	defer f.tree.Unlock()

	entry := f.fillToPrefix(name)
	entry.Payload.strategy = strategy.Clone()
}

// UnSetStrategyEnc removes the strategy choice registered exactly at name.
func (f *FibStrategyTree) UnSetStrategyEnc(name ndn.Name) {
	f.tree.Lock()
	defer f.tree.Unlock()

	entry := FindExactMatchEntry(f.tree.Root(), name)
	if entry == nil {
		return
	}
	entry.Payload.strategy = nil
	PruneIfEmpty(entry)
}

func (f *FibStrategyTree) fillToPrefix(name ndn.Name) *Node[*fibStrategyPayload] {
	return f.tree.FillToPrefix(name, func() *fibStrategyPayload {
		return &fibStrategyPayload{}
	})
}

// GetNumFIBEntries returns the number of nodes in the tree.
func (f *FibStrategyTree) GetNumFIBEntries() int {
	f.tree.RLock()
	defer f.tree.RUnlock()

	count := 0
	f.tree.Walk(func(*Node[*fibStrategyPayload]) { count++ })
	return count
}

// GetAllFIBEntries returns every node that carries at least one nexthop.
func (f *FibStrategyTree) GetAllFIBEntries() []FibStrategyEntry {
	f.tree.RLock()
	defer f.tree.RUnlock()

	entries := make([]FibStrategyEntry, 0)
	f.tree.Walk(func(n *Node[*fibStrategyPayload]) {
		if len(n.Payload.nexthops) > 0 {
			n.Payload.name = n.Name
			entries = append(entries, n.Payload)
		}
	})
	return entries
}

// GetAllForwardingStrategies returns every node that carries a strategy
// choice.
func (f *FibStrategyTree) GetAllForwardingStrategies() []FibStrategyEntry {
	f.tree.RLock()
	defer f.tree.RUnlock()

	entries := make([]FibStrategyEntry, 0)
	f.tree.Walk(func(n *Node[*fibStrategyPayload]) {
		if n.Payload.strategy != nil {
			n.Payload.name = n.Name
			entries = append(entries, n.Payload)
		}
	})
	return entries
}
