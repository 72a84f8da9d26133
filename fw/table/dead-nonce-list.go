package table

import "time"

const deadNonceListTickerInterval = 1 * time.Second

// DeadNonceList records (name, nonce) pairs of Interests recently forwarded
// out of this thread, so that a returning copy of the same Interest -
// reflected back by a broadcast or ad-hoc neighbor, spec.md §4.8 - can be
// recognized as a loop even after its PIT entry has been satisfied and
// removed (spec.md §4.1 "duplicate/looping Interest detection").
//
// Owned by a single forwarding thread.
type DeadNonceList struct {
	*nonceMemory
}

// NewDeadNonceList creates a new Dead Nonce List for a forwarding thread.
func NewDeadNonceList() *DeadNonceList {
	return &DeadNonceList{newNonceMemory(CfgDeadNonceListLifetime(), deadNonceListTickerInterval)}
}
