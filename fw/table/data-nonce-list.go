package table

import "time"

const dataNonceListTickerInterval = 1 * time.Second

// DataNonceList records (name, nonce) pairs of emergency-flood Data recently
// re-flooded by this thread, so a Data packet reflected back by a broadcast
// or ad-hoc neighbor is not re-flooded a second time (spec.md §4.7 "re-flood
// ... de-duplicated via DataNonceList").
//
// Owned by a single forwarding thread.
type DataNonceList struct {
	*nonceMemory
}

// NewDataNonceList creates a new Data Nonce List for a forwarding thread.
func NewDataNonceList() *DataNonceList {
	return &DataNonceList{newNonceMemory(CfgDataNonceListLifetime(), dataNonceListTickerInterval)}
}
