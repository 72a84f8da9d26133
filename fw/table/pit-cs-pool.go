package table

import (
	"github.com/jiangtaoluo/jet-NFD/std/types/sync_pool"
)

// PitCsPoolsT pools the small, high-churn record types allocated on every
// Interest (spec.md §4.4): one PitInRecord/PitOutRecord per pending
// downstream/upstream face. The PIT/CS tree nodes and entries themselves
// are no longer pooled now that both tables share the generic NameTree:
// their lifetime is tied to trie structure, not to a single hot allocation
// path, so letting the garbage collector reclaim them is simpler and the
// teacher's own pool-per-node bookkeeping (clearing maps, nilling fields)
// does not carry over cleanly to a generic payload type.
type PitCsPoolsT struct {
	PitInRecord  sync_pool.SyncPool[*PitInRecord]
	PitOutRecord sync_pool.SyncPool[*PitOutRecord]
}

var PitCsPools = &PitCsPoolsT{
	PitInRecord: sync_pool.New(
		func() *PitInRecord { return &PitInRecord{} },
		func(obj *PitInRecord) {
			// Do not reuse the PitToken array: it is handed to the
			// outgoing pipeline without copying.
			obj.PitToken = make([]byte, 0, 8)
		},
	),

	PitOutRecord: sync_pool.New(
		func() *PitOutRecord { return &PitOutRecord{} },
		func(obj *PitOutRecord) { obj.SuppressionInterval = 0 },
	),
}
