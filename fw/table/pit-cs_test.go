package table

import (
	"bytes"
	"testing"
	"time"

	"github.com/jiangtaoluo/jet-NFD/ndn"
	"github.com/stretchr/testify/assert"
)

func TestBasePitEntryGetters(t *testing.T) {
	name := ndn.NameFromString("/something")
	currTime := time.Now()
	bpe := basePitEntry{
		name:           name,
		canBePrefix:    true,
		mustBeFresh:    true,
		forwardingHint: &ndn.Links{Names: []ndn.Name{name}},
		expirationTime: currTime,
		satisfied:      true,
		token:          1234,
	}

	assert.Equal(t, name, bpe.Name())
	assert.True(t, bpe.CanBePrefix())
	assert.True(t, bpe.MustBeFresh())
	assert.Equal(t, name, bpe.ForwardingHint().Names[0])
	assert.Equal(t, 0, len(bpe.InRecords()))
	assert.Equal(t, 0, len(bpe.OutRecords()))
	assert.Equal(t, currTime, bpe.ExpirationTime())
	assert.True(t, bpe.Satisfied())
	assert.Equal(t, uint32(1234), bpe.Token())
}

func TestBasePitEntrySetters(t *testing.T) {
	bpe := basePitEntry{satisfied: true}

	newTime := time.Now()
	bpe.setExpirationTime(newTime)
	assert.Equal(t, newTime, bpe.ExpirationTime())

	bpe.SetSatisfied(false)
	assert.False(t, bpe.Satisfied())
}

func TestClearInRecords(t *testing.T) {
	bpe := basePitEntry{
		inRecords: map[uint64]*PitInRecord{
			1: {Face: 1},
			2: {Face: 2},
		},
	}
	assert.NotEqual(t, 0, len(bpe.InRecords()))
	bpe.ClearInRecords()
	assert.Equal(t, 0, len(bpe.InRecords()))
}

func TestClearOutRecords(t *testing.T) {
	bpe := basePitEntry{
		outRecords: map[uint64]*PitOutRecord{
			1: {Face: 1},
			2: {Face: 2},
		},
		retxCount: map[uint64]int{1: 3},
	}
	assert.NotEqual(t, 0, len(bpe.OutRecords()))
	bpe.ClearOutRecords()
	assert.Equal(t, 0, len(bpe.OutRecords()))
	assert.Equal(t, 0, len(bpe.retxCount))
}

func TestInsertInRecord(t *testing.T) {
	name := ndn.NameFromString("/something")
	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(1)

	bpe := basePitEntry{inRecords: make(map[uint64]*PitInRecord)}
	faceID := uint64(1234)
	pitToken := []byte("abc")

	inRecord, alreadyExists, _ := bpe.InsertInRecord(interest, faceID, pitToken)
	assert.False(t, alreadyExists)
	assert.Equal(t, faceID, inRecord.Face)
	assert.Equal(t, uint32(1), inRecord.LatestNonce)
	assert.Equal(t, 0, bytes.Compare(inRecord.PitToken, pitToken))
	assert.Equal(t, 1, len(bpe.InRecords()))

	// Retransmission on the same face updates in place and returns the
	// previous nonce.
	interest.NonceV.Set(2)
	inRecord, alreadyExists, prevNonce := bpe.InsertInRecord(interest, faceID, pitToken)
	assert.True(t, alreadyExists)
	assert.Equal(t, uint32(1), prevNonce)
	assert.Equal(t, uint32(2), inRecord.LatestNonce)
	assert.Equal(t, 1, len(bpe.InRecords()))

	// A second face gets its own record.
	faceID2 := uint64(5678)
	_, alreadyExists, _ = bpe.InsertInRecord(interest, faceID2, pitToken)
	assert.False(t, alreadyExists)
	assert.Equal(t, 2, len(bpe.InRecords()))
}

func TestInsertOutRecordAndRetx(t *testing.T) {
	name := ndn.NameFromString("/something")
	interest := &ndn.Interest{NameV: name}
	interest.NonceV.Set(7)

	bpe := basePitEntry{outRecords: make(map[uint64]*PitOutRecord)}
	faceID := uint64(42)

	record := bpe.InsertOutRecord(interest, faceID)
	assert.Equal(t, faceID, record.Face)
	assert.Equal(t, uint32(7), record.LatestNonce)
	assert.Equal(t, 0, bpe.RetxCount(faceID))

	bpe.IncRetxCount(faceID)
	bpe.IncRetxCount(faceID)
	assert.Equal(t, 2, bpe.RetxCount(faceID))

	// Re-inserting on the same face updates the existing record in place.
	interest.NonceV.Set(8)
	record2 := bpe.InsertOutRecord(interest, faceID)
	assert.Same(t, record, record2)
	assert.Equal(t, uint32(8), record2.LatestNonce)
}

func TestBaseCsEntryGetters(t *testing.T) {
	name := ndn.NameFromString("/ndn/edu/ucla/ping/123")
	currTime := time.Now()
	data := &ndn.Data{NameV: name, Content: []byte("hello")}
	bce := baseCsEntry{
		index:     1234,
		staleTime: currTime,
		data:      data,
	}

	assert.Equal(t, uint64(1234), bce.Index())
	assert.Equal(t, currTime, bce.StaleTime())

	copied, err := bce.Copy()
	assert.Nil(t, err)
	assert.Equal(t, name, copied.NameV)
	assert.Equal(t, data.Content, copied.Content)

	// Copy is defensive: mutating it must not affect the original.
	copied.Content[0] = 'X'
	assert.NotEqual(t, data.Content[0], copied.Content[0])
}
