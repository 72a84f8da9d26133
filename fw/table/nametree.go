package table

import (
	"container/list"
	"sync"

	"github.com/jiangtaoluo/jet-NFD/ndn"
)

// NameTree is a generic prefix trie shared by the FIB-Strategy and PIT-CS
// tables (spec.md GLOSSARY "NameTree"). Both tables need the same longest-
// prefix-match / exact-match / fill-to-prefix / prune-if-empty operations
// over an NDN name; they used to carry two nearly-identical hand-written
// copies of this logic (fib-strategy-tree.go and pit-cs-tree.go in the
// teacher), one keyed on FIB/strategy payloads and one on PIT/CS payloads.
// This type factors that walk out once, parameterized on the per-node
// payload.
//
// Payload must know when a node carries no information of its own, so a
// childless node can be pruned once its payload and children are both
// empty.
type Payload interface {
	// Empty reports whether the node holds no FIB/PIT/CS information and
	// is therefore a pruning candidate once it has no children either.
	Empty() bool
}

// Node is one trie node. Depth is the number of components from the root to
// (and including) this node; the root has depth 0 and a zero Component.
type Node[P Payload] struct {
	Component ndn.Component
	Name      ndn.Name
	Depth     int
	Parent    *Node[P]
	Children  []*Node[P]
	Payload   P
}

// NameTree is a concurrency-safe generic trie. The FIB-Strategy table is
// shared across all forwarding threads and needs the mutex; the PIT-CS
// table is owned by a single forwarding thread and never contends, but
// using the same type costs nothing since an uncontended RWMutex is cheap.
type NameTree[P Payload] struct {
	root *Node[P]
	mu   sync.RWMutex
	zero P // zero-value payload for a freshly created node
}

// NewNameTree constructs a tree holding only its root node, whose payload is
// rootPayload.
func NewNameTree[P Payload](rootPayload P) *NameTree[P] {
	t := &NameTree[P]{}
	t.root = &Node[P]{
		Component: "",
		Name:      ndn.Name{},
		Depth:     0,
		Payload:   rootPayload,
	}
	return t
}

// Root returns the tree's root node, the match for the empty Name.
func (t *NameTree[P]) Root() *Node[P] { return t.root }

// Lock/Unlock/RLock/RUnlock expose the tree's mutex so callers can combine a
// lookup with a payload mutation in a single critical section.
func (t *NameTree[P]) Lock()    { t.mu.Lock() }
func (t *NameTree[P]) Unlock()  { t.mu.Unlock() }
func (t *NameTree[P]) RLock()   { t.mu.RLock() }
func (t *NameTree[P]) RUnlock() { t.mu.RUnlock() }

// FindLongestPrefixEntry returns the deepest node whose name is a prefix of
// name. It always returns a non-nil node (the root, at worst).
func FindLongestPrefixEntry[P Payload](n *Node[P], name ndn.Name) *Node[P] {
	if len(name) > n.Depth {
		for _, child := range n.Children {
			if name[child.Depth-1] == child.Component {
				return FindLongestPrefixEntry(child, name)
			}
		}
	}
	return n
}

// FindExactMatchEntry returns the node whose name equals name exactly, or
// nil if no such node exists.
func FindExactMatchEntry[P Payload](n *Node[P], name ndn.Name) *Node[P] {
	match := FindLongestPrefixEntry(n, name)
	if len(match.Name) == len(name) {
		return match
	}
	return nil
}

// FillToPrefix walks down from the tree root, creating any missing
// intermediate nodes, and returns the (possibly newly created) node for
// name. newPayload is called once per newly created node.
func (t *NameTree[P]) FillToPrefix(name ndn.Name, newPayload func() P) *Node[P] {
	entry := FindLongestPrefixEntry(t.root, name)
	for depth := entry.Depth; depth < len(name); depth++ {
		component := name[depth]
		child := &Node[P]{
			Component: component,
			Name:      entry.Name.Append(component),
			Depth:     depth + 1,
			Parent:    entry,
			Payload:   newPayload(),
		}
		entry.Children = append(entry.Children, child)
		entry = child
	}
	return entry
}

// PruneIfEmpty removes n, and any now-empty ancestors, from the tree once
// they carry no payload and have no remaining children. The root is never
// pruned.
func PruneIfEmpty[P Payload](n *Node[P]) {
	for entry := n; entry.Parent != nil && len(entry.Children) == 0 && entry.Payload.Empty(); entry = entry.Parent {
		parent := entry.Parent
		for i, child := range parent.Children {
			if child == entry {
				parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
				break
			}
		}
	}
}

// Walk visits every node in the tree breadth-first.
func (t *NameTree[P]) Walk(fn func(*Node[P])) {
	queue := list.New()
	queue.PushBack(t.root)
	for queue.Len() > 0 {
		front := queue.Front()
		entry := front.Value.(*Node[P])
		queue.Remove(front)
		for _, child := range entry.Children {
			queue.PushBack(child)
		}
		fn(entry)
	}
}
