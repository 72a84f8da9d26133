package table

import (
	"testing"
	"time"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/ndn"
	"github.com/jiangtaoluo/jet-NFD/std/types/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPitCS(t *testing.T) *PitCsTree {
	core.C.Tables.ContentStore.ReplacementPolicy = "lru"
	core.C.Tables.ContentStore.Capacity = 16
	mutCfg.csCapacity.Store(16)
	mutCfg.csAdmit.Store(true)
	mutCfg.csServe.Store(true)
	return NewPitCS(func(PitEntry) {})
}

func TestPitCsTreeInsertAndExactMatch(t *testing.T) {
	p := newTestPitCS(t)
	name := ndn.NameFromString("/a/b")
	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)

	entry, looped := p.InsertInterest(interest, nil, 1)
	require.False(t, looped)
	assert.Equal(t, 1, p.PitSize())

	found := p.FindInterestExactMatchEnc(interest)
	require.NotNil(t, found)
	assert.Equal(t, entry, found)

	// Same name, same CanBePrefix/MustBeFresh, different face: aggregates
	// onto the same entry rather than creating a new one.
	again, looped := p.InsertInterest(interest, nil, 2)
	assert.False(t, looped)
	assert.Same(t, entry, again)
	assert.Equal(t, 1, p.PitSize())
}

func TestPitCsTreeLoopDetection(t *testing.T) {
	p := newTestPitCS(t)
	name := ndn.NameFromString("/a/b")
	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(5)

	entry, _ := p.InsertInterest(interest, nil, 1)
	entry.InsertInRecord(interest, 1, nil)

	// Same nonce arriving on a different face is a loop.
	_, looped := p.InsertInterest(interest, nil, 2)
	assert.True(t, looped)
}

func TestPitCsTreeRemoveInterest(t *testing.T) {
	p := newTestPitCS(t)
	interest := &ndn.Interest{NameV: ndn.NameFromString("/a/b")}
	interest.NonceV.Set(1)

	entry, _ := p.InsertInterest(interest, nil, 1)
	assert.Equal(t, 1, p.PitSize())

	removed := p.RemoveInterest(entry)
	assert.True(t, removed)
	assert.Equal(t, 0, p.PitSize())
	assert.Nil(t, p.FindInterestExactMatchEnc(interest))
}

func TestPitCsTreePrefixMatchByData(t *testing.T) {
	p := newTestPitCS(t)
	interest := &ndn.Interest{NameV: ndn.NameFromString("/a"), CanBePrefixV: true}
	interest.NonceV.Set(1)
	p.InsertInterest(interest, nil, 1)

	data := &ndn.Data{NameV: ndn.NameFromString("/a/b")}
	matches := p.FindInterestPrefixMatchByDataEnc(data, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, ndn.NameFromString("/a"), matches[0].Name())
}

func TestPitCsTreePitTokenFastPath(t *testing.T) {
	p := newTestPitCS(t)
	interest := &ndn.Interest{NameV: ndn.NameFromString("/a/b")}
	interest.NonceV.Set(1)
	entry, _ := p.InsertInterest(interest, nil, 1)

	token := entry.Token()
	data := &ndn.Data{NameV: ndn.NameFromString("/somewhere/else")}
	matches := p.FindInterestPrefixMatchByDataEnc(data, &token)
	require.Len(t, matches, 1)
	assert.Same(t, entry, matches[0])
}

func TestPitCsTreeContentStoreRoundTrip(t *testing.T) {
	p := newTestPitCS(t)
	data := &ndn.Data{
		NameV:    ndn.NameFromString("/a/b"),
		Content:  []byte("hello"),
		MetaInfo: &ndn.MetaInfo{FreshnessPeriod: optional.Some(time.Minute)},
	}
	p.InsertData(data)
	assert.Equal(t, 1, p.CsSize())

	fresh := &ndn.Interest{NameV: ndn.NameFromString("/a/b"), MustBeFreshV: true}
	found := p.FindMatchingDataFromCS(fresh)
	require.NotNil(t, found)
	copied, err := found.Copy()
	require.NoError(t, err)
	assert.Equal(t, data.Content, copied.Content)
}

func TestPitCsTreeContentStoreStaleNotServedWhenMustBeFresh(t *testing.T) {
	p := newTestPitCS(t)
	data := &ndn.Data{
		NameV:    ndn.NameFromString("/a/b"),
		MetaInfo: &ndn.MetaInfo{FreshnessPeriod: optional.Some(time.Duration(0))},
	}
	p.InsertData(data)

	time.Sleep(time.Millisecond)

	fresh := &ndn.Interest{NameV: ndn.NameFromString("/a/b"), MustBeFreshV: true}
	assert.Nil(t, p.FindMatchingDataFromCS(fresh))

	stale := &ndn.Interest{NameV: ndn.NameFromString("/a/b"), MustBeFreshV: false}
	assert.NotNil(t, p.FindMatchingDataFromCS(stale))
}
