package table

import (
	"sync/atomic"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/ndn"
	"github.com/jiangtaoluo/jet-NFD/std/types/priority_queue"
)

const expiredPitTickerInterval = 200 * time.Millisecond
const pitTokenLookupTableSize = 125000

// OnPitExpiration is called when a PIT entry's expiry time elapses, just
// before the entry is removed; satisfied entries are passed to it too.
type OnPitExpiration func(PitEntry)

// pitCsPayload is the per-node information carried by the combined PIT-CS
// NameTree: every PIT entry registered exactly at this name, plus at most
// one cached Data entry.
type pitCsPayload struct {
	pitEntries []*nameTreePitEntry
	csEntry    *nameTreeCsEntry
}

func (p *pitCsPayload) Empty() bool {
	return len(p.pitEntries) == 0 && p.csEntry == nil
}

type nameTreePitEntry struct {
	basePitEntry
	pitCsTable *PitCsTree
	node       *Node[*pitCsPayload]
	pqItem     *priority_queue.Item[*nameTreePitEntry, int64]
}

type nameTreeCsEntry struct {
	baseCsEntry
	node *Node[*pitCsPayload]
}

// PitCsTree is the combined PIT-CS implementation for a single forwarding
// thread (spec.md §4.4 PIT, §4.5 CS), backed by the shared NameTree type.
type PitCsTree struct {
	tree *NameTree[*pitCsPayload]

	nPitEntries atomic.Int64

	nPitToken uint64
	pitTokens []*nameTreePitEntry

	nCsEntries    atomic.Int64
	csReplacement CsReplacementPolicy
	csMap         map[uint64]*nameTreeCsEntry

	pitExpiryQueue priority_queue.Queue[*nameTreePitEntry, int64]
	updateTicker   *time.Ticker
	onExpiration   OnPitExpiration
}

// NewPitCS creates a new combined PIT-CS for a forwarding thread.
func NewPitCS(onExpiration OnPitExpiration) *PitCsTree {
	p := &PitCsTree{
		tree:           NewNameTree[*pitCsPayload](&pitCsPayload{}),
		onExpiration:   onExpiration,
		pitTokens:      make([]*nameTreePitEntry, pitTokenLookupTableSize),
		pitExpiryQueue: priority_queue.New[*nameTreePitEntry, int64](),
		updateTicker:   time.NewTicker(expiredPitTickerInterval),
		csMap:          make(map[uint64]*nameTreeCsEntry),
	}

	switch CfgCsReplacementPolicy() {
	case "lru":
		p.csReplacement = NewCsLRU(p)
	default:
		core.Log.Fatal(nil, "Unknown CS replacement policy", "policy", CfgCsReplacementPolicy())
	}

	return p
}

func (p *PitCsTree) UpdateTicker() <-chan time.Time {
	return p.updateTicker.C
}

// Update expires all PIT entries whose timers have elapsed.
func (p *PitCsTree) Update() {
	for p.pitExpiryQueue.Len() > 0 && p.pitExpiryQueue.PeekPriority() <= time.Now().UnixNano() {
		entry := p.pitExpiryQueue.Pop()
		entry.pqItem = nil
		p.onExpiration(entry)
		p.RemoveInterest(entry)
	}
}

func (p *PitCsTree) updatePitExpiry(pitEntry PitEntry) {
	e := pitEntry.(*nameTreePitEntry)
	if e.pqItem == nil {
		e.pqItem = p.pitExpiryQueue.Push(e, e.expirationTime.UnixNano())
	} else {
		p.pitExpiryQueue.Update(e.pqItem, e, e.expirationTime.UnixNano())
	}
}

func (e *nameTreePitEntry) PitCs() PitCsTable { return e.pitCsTable }

func sameForwardingHint(a, b *ndn.Links) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a.Names) != len(b.Names) {
		return false
	}
	for i := range a.Names {
		if !a.Names[i].Equal(b.Names[i]) {
			return false
		}
	}
	return true
}

// InsertInterest inserts an entry in the PIT upon receipt of an Interest.
// Returns the PIT entry and whether the Interest's nonce is a duplicate (a
// forwarding loop, spec.md §4.1): either an in-record from a different face
// or any out-record already carries the same nonce.
func (p *PitCsTree) InsertInterest(interest *ndn.Interest, hint *ndn.Links, inFace uint64) (PitEntry, bool) {
	name := interest.Name()

	node := p.tree.FillToPrefix(name, func() *pitCsPayload { return &pitCsPayload{} })

	var entry *nameTreePitEntry
	for _, cur := range node.Payload.pitEntries {
		if cur.CanBePrefix() == interest.CanBePrefixV &&
			cur.MustBeFresh() == interest.MustBeFreshV &&
			sameForwardingHint(hint, cur.ForwardingHint()) {
			entry = cur
			break
		}
	}

	if entry == nil {
		p.nPitEntries.Add(1)
		entry = &nameTreePitEntry{}
		entry.node = node
		entry.pitCsTable = p
		entry.name = node.Name
		entry.canBePrefix = interest.CanBePrefixV
		entry.mustBeFresh = interest.MustBeFreshV
		entry.forwardingHint = hint
		entry.satisfied = false
		entry.inRecords = make(map[uint64]*PitInRecord)
		entry.outRecords = make(map[uint64]*PitOutRecord)
		node.Payload.pitEntries = append(node.Payload.pitEntries, entry)
		entry.token = p.newPitToken()

		p.pitTokens[p.pitTokenIdx(entry.token)] = entry
	}

	// Only a loop if a different face echoes the same nonce; the same face
	// retransmitting its own Interest is not a loop (DUPLICATE_IN_SAME vs
	// DUPLICATE_IN_OTHER, spec.md §4.1 step 6).
	for face, inRecord := range entry.inRecords {
		if face != inFace && inRecord.LatestNonce == interest.NonceV.Unwrap() {
			return entry, true
		}
	}

	// A nonce this thread already forwarded out on some upstream is always
	// a loop (DUPLICATE_OUT), regardless of which face it comes back on -
	// including the very upstream it was sent to.
	for _, outRecord := range entry.outRecords {
		if outRecord.LatestNonce == interest.NonceV.Unwrap() {
			return entry, true
		}
	}

	entry.expirationTime = time.Unix(0, 0)

	return entry, false
}

// RemoveInterest removes the specified PIT entry.
func (p *PitCsTree) RemoveInterest(pitEntry PitEntry) bool {
	e := pitEntry.(*nameTreePitEntry)
	for i, entry := range e.node.Payload.pitEntries {
		if entry == e {
			e.node.Payload.pitEntries = append(e.node.Payload.pitEntries[:i], e.node.Payload.pitEntries[i+1:]...)
			PruneIfEmpty(e.node)
			p.nPitEntries.Add(-1)

			tokIdx := p.pitTokenIdx(entry.Token())
			if p.pitTokens[tokIdx] == entry {
				p.pitTokens[tokIdx] = nil
			}

			entry.name = nil
			entry.pitCsTable = nil
			entry.node = nil
			pitEntry.ClearInRecords()
			pitEntry.ClearOutRecords()
			return true
		}
	}
	return false
}

// FindInterestExactMatchEnc returns the PIT entry for an exact match of interest.
func (p *PitCsTree) FindInterestExactMatchEnc(interest *ndn.Interest) PitEntry {
	node := FindExactMatchEntry(p.tree.Root(), interest.NameV)
	if node != nil {
		for _, cur := range node.Payload.pitEntries {
			if cur.CanBePrefix() == interest.CanBePrefixV && cur.MustBeFresh() == interest.MustBeFreshV {
				return cur
			}
		}
	}
	return nil
}

// FindInterestPrefixMatchByDataEnc returns every PIT entry that could be
// satisfied by data. For example, if entries exist for /a and /a/b, a
// prefix search for /a/b returns both, the /a entry only if it has
// CanBePrefix set.
func (p *PitCsTree) FindInterestPrefixMatchByDataEnc(data *ndn.Data, token *uint32) []PitEntry {
	if token != nil {
		entry := p.pitTokens[p.pitTokenIdx(*token)]
		if entry != nil && entry.name != nil && entry.Token() == *token {
			return []PitEntry{entry}
		}
	}
	return p.findInterestPrefixMatchByNameEnc(data.NameV)
}

func (p *PitCsTree) findInterestPrefixMatchByNameEnc(name ndn.Name) []PitEntry {
	matching := make([]PitEntry, 0)
	dataNameLen := len(name)
	for cur := FindLongestPrefixEntry(p.tree.Root(), name); cur != nil; cur = cur.Parent {
		for _, entry := range cur.Payload.pitEntries {
			if entry.canBePrefix || cur.Depth == dataNameLen {
				matching = append(matching, entry)
			}
		}
	}
	return matching
}

func (p *PitCsTree) PitSize() int { return int(p.nPitEntries.Load()) }
func (p *PitCsTree) CsSize() int  { return int(p.nCsEntries.Load()) }

func (p *PitCsTree) IsCsAdmitting() bool { return CfgCsAdmit() }
func (p *PitCsTree) IsCsServing() bool   { return CfgCsServe() }

func (p *PitCsTree) newPitToken() uint32 {
	p.nPitToken++
	return uint32(p.nPitToken)
}

func (p *PitCsTree) pitTokenIdx(token uint32) uint32 {
	return token % uint32(len(p.pitTokens))
}

// FindMatchingDataFromCS finds the best matching entry in the CS, if any. If
// MustBeFresh is set on the Interest, only non-stale entries are returned.
func (p *PitCsTree) FindMatchingDataFromCS(interest *ndn.Interest) CsEntry {
	node := FindExactMatchEntry(p.tree.Root(), interest.NameV)
	if node == nil {
		return nil
	}
	if !interest.CanBePrefixV {
		entry := node.Payload.csEntry
		if entry != nil && (!interest.MustBeFreshV || time.Now().Before(entry.staleTime)) {
			p.csReplacement.BeforeUse(entry.index, entry.data)
			return entry
		}
		return nil
	}
	return findMatchingDataCSPrefix(node, interest)
}

// findMatchingDataCSPrefix looks for any CS entry reachable below node,
// which must already be the longest-prefix match for interest's name.
func findMatchingDataCSPrefix(node *Node[*pitCsPayload], interest *ndn.Interest) CsEntry {
	if node.Payload.csEntry != nil &&
		(!interest.MustBeFreshV || time.Now().Before(node.Payload.csEntry.staleTime)) {
		return node.Payload.csEntry
	}
	if node.Depth >= len(interest.NameV) {
		for _, child := range node.Children {
			if match := findMatchingDataCSPrefix(child, interest); match != nil {
				return match
			}
		}
	}
	return nil
}

// InsertData inserts a Data packet into the Content Store.
func (p *PitCsTree) InsertData(data *ndn.Data) {
	index := data.NameV.Hash()
	staleTime := time.Now().Add(data.FreshnessPeriod())

	stored := *data
	content := make([]byte, len(data.Content))
	copy(content, data.Content)
	stored.Content = content

	if entry, ok := p.csMap[index]; ok {
		entry.data = &stored
		entry.staleTime = staleTime
		p.csReplacement.AfterRefresh(index, &stored)
		return
	}

	p.nCsEntries.Add(1)
	node := p.tree.FillToPrefix(data.NameV, func() *pitCsPayload { return &pitCsPayload{} })
	node.Payload.csEntry = &nameTreeCsEntry{
		node: node,
		baseCsEntry: baseCsEntry{
			index:     index,
			staleTime: staleTime,
			data:      &stored,
		},
	}
	p.csMap[index] = node.Payload.csEntry
	p.csReplacement.AfterInsert(index, &stored)
	p.csReplacement.EvictEntries()
}

func (p *PitCsTree) eraseCsDataFromReplacementStrategy(index uint64) {
	if entry, ok := p.csMap[index]; ok {
		entry.node.Payload.csEntry = nil
		delete(p.csMap, index)
		p.nCsEntries.Add(-1)
		PruneIfEmpty(entry.node)
	}
}
