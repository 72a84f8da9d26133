package ndn

import (
	"time"

	"github.com/jiangtaoluo/jet-NFD/std/types/optional"
)

// NackReason enumerates why an Interest was declined, mirroring the NDN
// LpPacket NACK header (spec.md §4.2, §4.6).
type NackReason int

const (
	NackNone NackReason = iota
	NackCongestion
	NackDuplicate
	NackNoRoute
)

func (r NackReason) String() string {
	switch r {
	case NackCongestion:
		return "Congestion"
	case NackDuplicate:
		return "Duplicate"
	case NackNoRoute:
		return "NoRoute"
	default:
		return "None"
	}
}

// Links is a forwarding hint: an ordered list of delegation names.
type Links struct {
	Names []Name
}

// Interest is the decoded form of an NDN Interest packet.
type Interest struct {
	NameV             Name
	CanBePrefixV      bool
	MustBeFreshV      bool
	ForwardingHintV   *Links
	NonceV            optional.Optional[uint32]
	InterestLifetimeV optional.Optional[time.Duration]
	HopLimitV         *byte
}

func (i *Interest) Name() Name { return i.NameV }

func (i *Interest) Lifetime() optional.Optional[time.Duration] { return i.InterestLifetimeV }

// WithName returns a shallow copy of the Interest with a new name; the
// receiver is not modified.
func (i *Interest) WithName(n Name) *Interest {
	clone := *i
	clone.NameV = n
	return &clone
}

// MetaInfo carries Data packet metadata relevant to caching.
type MetaInfo struct {
	ContentType     optional.Optional[uint64]
	FreshnessPeriod optional.Optional[time.Duration]
}

// DataEmergency is a Data packet's emergency-flood indicator (spec.md §3).
// Emergency Data bypasses the normal PIT/CS matching pipeline entirely and
// is re-flooded to every other face instead (spec.md §4.7).
type DataEmergency int

const (
	EmergencyNormal DataEmergency = iota
	EmergencyFlood
)

func (e DataEmergency) String() string {
	if e == EmergencyFlood {
		return "Emergency"
	}
	return "Normal"
}

// Data is the decoded form of an NDN Data packet.
type Data struct {
	NameV     Name
	MetaInfo  *MetaInfo
	Content   []byte
	NonceV    optional.Optional[uint32]
	Emergency DataEmergency
}

func (d *Data) Name() Name { return d.NameV }

func (d *Data) Nonce() optional.Optional[uint32] { return d.NonceV }

func (d *Data) FreshnessPeriod() time.Duration {
	if d.MetaInfo == nil {
		return 0
	}
	return d.MetaInfo.FreshnessPeriod.GetOr(0)
}

// Nack is an LpPacket-level negative acknowledgement wrapping the Interest
// it responds to.
type Nack struct {
	Interest *Interest
	Reason   NackReason
}

// Packet is a tagged union of the three NDN packet types that can travel
// between the forwarding core and a Face, replacing the TLV FwPacket model.
type Packet struct {
	Interest *Interest
	Data     *Data
	Nack     *Nack

	// PitToken is the opaque 6-byte LpPacket PIT token used to fast-path
	// a returning Data/Nack to its PIT entry without a name lookup.
	PitToken []byte

	CongestionMark optional.Optional[uint64]

	IncomingFaceID uint64
	NextHopFaceID  optional.Optional[uint64]
}

func (p *Packet) Name() Name {
	switch {
	case p.Interest != nil:
		return p.Interest.NameV
	case p.Data != nil:
		return p.Data.NameV
	case p.Nack != nil && p.Nack.Interest != nil:
		return p.Nack.Interest.NameV
	default:
		return nil
	}
}
