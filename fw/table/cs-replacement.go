package table

import "github.com/jiangtaoluo/jet-NFD/ndn"

// CsReplacementPolicy represents a cache replacement policy for the Content Store.
type CsReplacementPolicy interface {
	// AfterInsert is called after a new entry is inserted into the Content Store.
	AfterInsert(index uint64, data *ndn.Data)

	// AfterRefresh is called after a Data packet refreshes an existing entry.
	AfterRefresh(index uint64, data *ndn.Data)

	// BeforeErase is called before an entry is erased from the Content Store.
	BeforeErase(index uint64, data *ndn.Data)

	// BeforeUse is called before an entry is used to satisfy a pending Interest.
	BeforeUse(index uint64, data *ndn.Data)

	// EvictEntries instructs the policy to evict enough entries to bring
	// the Content Store back under its capacity.
	EvictEntries()
}
