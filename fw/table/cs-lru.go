package table

import (
	"container/list"

	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// CsLRU is a least-recently-used replacement policy for the Content Store.
type CsLRU struct {
	cs        *PitCsTree
	queue     *list.List
	locations map[uint64]*list.Element
}

// NewCsLRU creates a new LRU replacement policy bound to cs.
func NewCsLRU(cs *PitCsTree) *CsLRU {
	return &CsLRU{
		cs:        cs,
		queue:     list.New(),
		locations: make(map[uint64]*list.Element),
	}
}

func (l *CsLRU) AfterInsert(index uint64, data *ndn.Data) {
	l.locations[index] = l.queue.PushBack(index)
}

func (l *CsLRU) AfterRefresh(index uint64, data *ndn.Data) {
	if loc, ok := l.locations[index]; ok {
		l.queue.Remove(loc)
	}
	l.locations[index] = l.queue.PushBack(index)
}

func (l *CsLRU) BeforeErase(index uint64, data *ndn.Data) {
	if loc, ok := l.locations[index]; ok {
		l.queue.Remove(loc)
		delete(l.locations, index)
	}
}

func (l *CsLRU) BeforeUse(index uint64, data *ndn.Data) {
	if loc, ok := l.locations[index]; ok {
		l.queue.Remove(loc)
	}
	l.locations[index] = l.queue.PushBack(index)
}

func (l *CsLRU) EvictEntries() {
	for l.queue.Len() > CfgCsCapacity() {
		front := l.queue.Front()
		l.cs.eraseCsDataFromReplacementStrategy(front.Value.(uint64))
		l.queue.Remove(front)
	}
}
