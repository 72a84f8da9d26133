// Package ndn defines the wire-free domain model for Named Data Networking
// packets used by the forwarding core: names, Interests, Data and Nacks.
//
// Unlike the TLV-encoded packet model this package replaces, names here are
// plain slices of string components. The forwarder never needs to touch the
// NDN TLV wire format: faces are expected to hand the core already-decoded
// packets and accept already-decoded packets back. This keeps the
// forwarding/PIT/CS/FIB logic testable without a codec dependency.
package ndn

import (
	"strings"

	"github.com/cespare/xxhash"
)

// Component is a single element of a Name.
type Component string

// Name is an ordered sequence of Components.
type Name []Component

// NameFromString parses a slash-separated name such as "/ndn/edu/ucla/ping".
// The leading slash is optional; empty components are skipped so "//" does
// not produce a zero-length component.
func NameFromString(s string) Name {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Name{}
	}
	parts := strings.Split(s, "/")
	name := make(Name, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			name = append(name, Component(p))
		}
	}
	return name
}

// String renders the name back into slash-separated form.
func (n Name) String() string {
	if len(n) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, c := range n {
		b.WriteByte('/')
		b.WriteString(string(c))
	}
	return b.String()
}

// Equal reports whether two names have identical components.
func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// IsPrefix reports whether n is a prefix of other (n == other counts).
func (n Name) IsPrefix(other Name) bool {
	if len(n) > len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// Append returns a new name with components appended, without mutating n.
func (n Name) Append(comps ...Component) Name {
	out := make(Name, len(n)+len(comps))
	copy(out, n)
	copy(out[len(n):], comps)
	return out
}

// Clone returns an independent copy of the name.
func (n Name) Clone() Name {
	out := make(Name, len(n))
	copy(out, n)
	return out
}

// Hash returns a content hash of the full name, used to shard work across
// forwarding threads and to key the Content Store and Dead Nonce List
// (spec.md §5 "names are hashed to a forwarding thread").
func (n Name) Hash() uint64 {
	return xxhash.Sum64String(n.String())
}

// PrefixHash returns the hash of every prefix of n, including the empty
// prefix at index 0 and the full name at the last index, so a single pass
// can determine which forwarding thread(s) a name and its ancestors land on
// (used for Strategy Choice/FIB updates that must reach every thread that
// might hold a matching PIT entry).
func (n Name) PrefixHash() []uint64 {
	hashes := make([]uint64, len(n)+1)
	h := xxhash.New()
	hashes[0] = Name{}.Hash()
	for i, c := range n {
		h.Write([]byte("/"))
		h.Write([]byte(c))
		hashes[i+1] = h.Sum64()
	}
	return hashes
}

// Reserved first components of the /localhost and /localhop namespaces
// (spec.md Face Scope rules: /localhost packets never cross a NonLocal
// face, /localhop packets may only be relayed one hop beyond it).
const (
	LocalhostComponent Component = "localhost"
	LocalhopComponent  Component = "localhop"
)

// HasLocalhostScope reports whether n falls under /localhost.
func (n Name) HasLocalhostScope() bool {
	return len(n) > 0 && n[0] == LocalhostComponent
}

// HasLocalhopScope reports whether n falls under /localhop.
func (n Name) HasLocalhopScope() bool {
	return len(n) > 0 && n[0] == LocalhopComponent
}

// Well-known name prefixes, mirroring NFD's reserved /localhost/nfd
// management and strategy namespaces.
var (
	LocalhostPrefix        = NameFromString("/localhost/nfd")
	LocalhopPrefix         = NameFromString("/localhop/nfd")
	StrategyPrefix         = LocalhostPrefix.Append("strategy")
	DefaultStrategy        = StrategyPrefix.Append("best-route", "v1")
	RandomWaitStrategyName = StrategyPrefix.Append("random-wait", "v1")
)
