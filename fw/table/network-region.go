package table

import "github.com/jiangtaoluo/jet-NFD/ndn"

// networkRegionTable holds the prefixes this forwarder is a producer for,
// used to decide whether an Interest forwarding hint has reached its
// destination region (spec.md §4.1 forwarding hint resolution).
type networkRegionTable struct {
	table []ndn.Name
}

// NetworkRegion is the process-wide table of this forwarder's producer regions.
var NetworkRegion = &networkRegionTable{}

// Add registers name as a producer region, if not already present.
func (n *networkRegionTable) Add(name ndn.Name) {
	for _, region := range n.table {
		if region.Equal(name) {
			return
		}
	}
	n.table = append(n.table, name)
}

// IsProducer reports whether any registered region is a prefix of name.
func (n *networkRegionTable) IsProducer(name ndn.Name) bool {
	for _, region := range n.table {
		if region.IsPrefix(name) {
			return true
		}
	}
	return false
}
