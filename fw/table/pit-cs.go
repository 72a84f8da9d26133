package table

import (
	"time"

	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// PitCsTable dictates what functionality a Pit-Cs table should implement.
// Warning: All functions must be called in the same forwarding goroutine as
// the creation of the table (spec.md §5: each forwarding thread owns its
// PIT/CS, never shared across threads).
type PitCsTable interface {
	// InsertInterest inserts an Interest into the PIT.
	InsertInterest(interest *ndn.Interest, hint *ndn.Links, inFace uint64) (PitEntry, bool)
	// RemoveInterest removes an Interest from the PIT.
	RemoveInterest(pitEntry PitEntry) bool
	// FindInterestExactMatchEnc finds an exact match for an Interest in the PIT.
	FindInterestExactMatchEnc(interest *ndn.Interest) PitEntry
	// FindInterestPrefixMatchByDataEnc finds a prefix match for a Data in the PIT.
	FindInterestPrefixMatchByDataEnc(data *ndn.Data, token *uint32) []PitEntry
	// PitSize returns the number of entries in the PIT.
	PitSize() int

	// InsertData inserts a Data into the CS.
	InsertData(data *ndn.Data)
	// FindMatchingDataFromCS finds a matching Data in the CS.
	FindMatchingDataFromCS(interest *ndn.Interest) CsEntry
	// CsSize returns the number of entries in the CS.
	CsSize() int
	// IsCsAdmitting returns whether the CS is admitting new entries.
	IsCsAdmitting() bool
	// IsCsServing returns whether the CS is serving entries.
	IsCsServing() bool

	// UpdateTicker returns the channel used to signal regular Update() calls in the forwarding thread.
	UpdateTicker() <-chan time.Time
	// Update does whatever the PIT table needs to do regularly (expire stale entries).
	Update()

	eraseCsDataFromReplacementStrategy(index uint64)
	updatePitExpiry(pitEntry PitEntry)
}

// PitEntry dictates what entries in a PIT-CS table should implement.
type PitEntry interface {
	PitCs() PitCsTable
	Name() ndn.Name
	CanBePrefix() bool
	MustBeFresh() bool

	// ForwardingHint is the forwarding hint the Interest carried; Interests
	// must match on forwarding hint to be aggregated in the same PIT entry.
	ForwardingHint() *ndn.Links

	InRecords() map[uint64]*PitInRecord
	OutRecords() map[uint64]*PitOutRecord

	ExpirationTime() time.Time
	setExpirationTime(t time.Time) // use table.UpdateExpirationTimer()

	Satisfied() bool
	SetSatisfied(isSatisfied bool)

	Token() uint32

	InsertInRecord(interest *ndn.Interest, face uint64, incomingPitToken []byte) (*PitInRecord, bool, uint32)
	InsertOutRecord(interest *ndn.Interest, face uint64) *PitOutRecord

	// RetxCount returns how many times an Interest has been relayed
	// upstream on the given face, for RandomWaitStrategy's MAX_RETX_COUNT
	// gate (spec.md §4.8).
	RetxCount(face uint64) int
	IncRetxCount(face uint64)

	RemoveInRecord(face uint64)
	RemoveOutRecord(face uint64)
	ClearOutRecords()
	ClearInRecords()
}

// basePitEntry contains PIT entry properties common to all tables.
type basePitEntry struct {
	name           ndn.Name
	canBePrefix    bool
	mustBeFresh    bool
	forwardingHint *ndn.Links

	inRecords  map[uint64]*PitInRecord
	outRecords map[uint64]*PitOutRecord

	expirationTime time.Time
	satisfied      bool

	token uint32

	retxCount map[uint64]int
}

// PitInRecord records an incoming Interest on a given face.
type PitInRecord struct {
	Face            uint64
	LatestTimestamp time.Time
	LatestNonce     uint32
	ExpirationTime  time.Time
	PitToken        []byte
}

// PitOutRecord records an outgoing Interest on a given face.
type PitOutRecord struct {
	Face            uint64
	LatestTimestamp time.Time
	LatestNonce     uint32
	ExpirationTime  time.Time

	// SuppressionInterval is the per-upstream exponential retransmission
	// suppression window a strategy (e.g. RandomWaitStrategy, spec.md §4.8)
	// may maintain on this out-record. Zero means "not yet set", so the
	// strategy should treat it as its configured initial interval.
	SuppressionInterval time.Duration
}

// CsEntry is an entry in a thread's CS.
type CsEntry interface {
	Index() uint64
	StaleTime() time.Time
	Copy() (*ndn.Data, error)
}

type baseCsEntry struct {
	index     uint64
	staleTime time.Time
	data      *ndn.Data
}

// InsertInRecord finds or inserts an InRecord for the face, updating the
// metadata and returning whether there was already an in-record in the
// entry. The third return value is the previous nonce if the in-record
// already existed.
func (bpe *basePitEntry) InsertInRecord(
	interest *ndn.Interest,
	face uint64,
	incomingPitToken []byte,
) (*PitInRecord, bool, uint32) {
	lifetime := interest.Lifetime().GetOr(4000 * time.Millisecond)

	if record, ok := bpe.inRecords[face]; ok {
		previousNonce := record.LatestNonce
		record.LatestNonce = interest.NonceV.Unwrap()
		record.LatestTimestamp = time.Now()
		record.ExpirationTime = time.Now().Add(lifetime)
		return record, true, previousNonce
	}

	record := PitCsPools.PitInRecord.Get()
	record.Face = face
	record.LatestNonce = interest.NonceV.Unwrap()
	record.LatestTimestamp = time.Now()
	record.ExpirationTime = time.Now().Add(lifetime)
	record.PitToken = append(record.PitToken, incomingPitToken...)
	bpe.inRecords[face] = record
	return record, false, 0
}

// InsertOutRecord inserts an outrecord for the given interest, updating the
// preexisting one if it already occurs.
func (bpe *basePitEntry) InsertOutRecord(interest *ndn.Interest, face uint64) *PitOutRecord {
	lifetime := interest.Lifetime().GetOr(4000 * time.Millisecond)

	if record, ok := bpe.outRecords[face]; ok {
		record.LatestNonce = interest.NonceV.Unwrap()
		record.LatestTimestamp = time.Now()
		record.ExpirationTime = time.Now().Add(lifetime)
		return record
	}

	record := PitCsPools.PitOutRecord.Get()
	record.Face = face
	record.LatestNonce = interest.NonceV.Unwrap()
	record.LatestTimestamp = time.Now()
	record.ExpirationTime = time.Now().Add(lifetime)
	bpe.outRecords[face] = record
	return record
}

// RetxCount returns the number of times this entry has relayed an Interest
// upstream on face.
func (bpe *basePitEntry) RetxCount(face uint64) int {
	return bpe.retxCount[face]
}

// IncRetxCount records one more relay of this entry's Interest upstream on face.
func (bpe *basePitEntry) IncRetxCount(face uint64) {
	if bpe.retxCount == nil {
		bpe.retxCount = make(map[uint64]int)
	}
	bpe.retxCount[face]++
}

// UpdateExpirationTimer sets the expiration time of the PIT entry.
func UpdateExpirationTimer(e PitEntry, t time.Time) {
	e.setExpirationTime(t)
	e.PitCs().updatePitExpiry(e)
}

// SetExpirationTimerToNow marks a PIT entry for immediate expiry, used once
// an Interest has been satisfied by Data so its entry is reclaimed on the
// next Update() tick rather than waiting out its full lifetime.
func SetExpirationTimerToNow(e PitEntry) {
	UpdateExpirationTimer(e, time.Now())
}

func (bpe *basePitEntry) Name() ndn.Name              { return bpe.name }
func (bpe *basePitEntry) CanBePrefix() bool            { return bpe.canBePrefix }
func (bpe *basePitEntry) MustBeFresh() bool            { return bpe.mustBeFresh }
func (bpe *basePitEntry) ForwardingHint() *ndn.Links   { return bpe.forwardingHint }

func (bpe *basePitEntry) InRecords() map[uint64]*PitInRecord   { return bpe.inRecords }
func (bpe *basePitEntry) OutRecords() map[uint64]*PitOutRecord { return bpe.outRecords }

func (bpe *basePitEntry) RemoveInRecord(face uint64) {
	if record, ok := bpe.inRecords[face]; ok {
		PitCsPools.PitInRecord.Put(record)
		delete(bpe.inRecords, face)
	}
}

func (bpe *basePitEntry) RemoveOutRecord(face uint64) {
	if record, ok := bpe.outRecords[face]; ok {
		PitCsPools.PitOutRecord.Put(record)
		delete(bpe.outRecords, face)
	}
}

// ClearInRecords removes all in-records from the PIT entry.
func (bpe *basePitEntry) ClearInRecords() {
	for _, record := range bpe.inRecords {
		PitCsPools.PitInRecord.Put(record)
	}
	clear(bpe.inRecords)
}

// ClearOutRecords removes all out-records from the PIT entry.
func (bpe *basePitEntry) ClearOutRecords() {
	for _, record := range bpe.outRecords {
		PitCsPools.PitOutRecord.Put(record)
	}
	clear(bpe.outRecords)
	clear(bpe.retxCount)
}

func (bpe *basePitEntry) ExpirationTime() time.Time    { return bpe.expirationTime }
func (bpe *basePitEntry) setExpirationTime(t time.Time) { bpe.expirationTime = t }

func (bpe *basePitEntry) Satisfied() bool             { return bpe.satisfied }
func (bpe *basePitEntry) SetSatisfied(isSatisfied bool) { bpe.satisfied = isSatisfied }

func (bpe *basePitEntry) Token() uint32 { return bpe.token }

func (bce *baseCsEntry) Index() uint64        { return bce.index }
func (bce *baseCsEntry) StaleTime() time.Time { return bce.staleTime }

// Copy returns a defensive copy of the cached Data.
func (bce *baseCsEntry) Copy() (*ndn.Data, error) {
	clone := *bce.data
	content := make([]byte, len(bce.data.Content))
	copy(content, bce.data.Content)
	clone.Content = content
	return &clone, nil
}
