package table

import (
	"time"

	"github.com/jiangtaoluo/jet-NFD/ndn"
	"github.com/jiangtaoluo/jet-NFD/std/types/priority_queue"
)

// nonceMemory is a bounded (name, nonce) memory that expires entries on a
// fixed ticker rather than one timer per entry, the same batching idiom the
// PIT expiration queue uses. It backs both the Dead Nonce List and the Data
// Nonce List (spec.md §2, §4.7, §4.8), which differ only in what they
// remember and how long they remember it for.
type nonceMemory struct {
	entries     map[uint64]struct{}
	expiryQueue priority_queue.Queue[uint64, int64]
	lifetime    time.Duration
	Ticker      *time.Ticker
}

func newNonceMemory(lifetime time.Duration, tickerInterval time.Duration) *nonceMemory {
	return &nonceMemory{
		entries:     make(map[uint64]struct{}),
		expiryQueue: priority_queue.New[uint64, int64](),
		lifetime:    lifetime,
		Ticker:      time.NewTicker(tickerInterval),
	}
}

func (m *nonceMemory) hash(name ndn.Name, nonce uint32) uint64 {
	return name.Hash()*31 + uint64(nonce)
}

// Find returns whether the specified name and nonce combination are present.
func (m *nonceMemory) Find(name ndn.Name, nonce uint32) bool {
	_, ok := m.entries[m.hash(name, nonce)]
	return ok
}

// Insert inserts an entry, returning whether it was already present.
func (m *nonceMemory) Insert(name ndn.Name, nonce uint32) bool {
	hash := m.hash(name, nonce)
	if _, exists := m.entries[hash]; exists {
		return true
	}
	m.entries[hash] = struct{}{}
	m.expiryQueue.Push(hash, time.Now().Add(m.lifetime).UnixNano())
	return false
}

// RemoveExpiredEntries drops every entry whose lifetime has elapsed. Called
// from the forwarding thread's event loop on Ticker fires.
func (m *nonceMemory) RemoveExpiredEntries() {
	now := time.Now().UnixNano()
	for m.expiryQueue.Len() > 0 && m.expiryQueue.PeekPriority() <= now {
		hash := m.expiryQueue.Pop()
		delete(m.entries, hash)
	}
}
