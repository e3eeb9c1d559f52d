package mem

import (
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/ValentinKolb/dSuspend/lib/util"
)

// --------------------------------------------------------------------------
// Tree Types
// --------------------------------------------------------------------------

// suspendedEntry is a value suspended under a node together with its quantized restoration time (unix millis)
type suspendedEntry struct {
	object          any
	restorationTime int64
}

// minInfo identifies the entry with the smallest restoration time found in a subtree
type minInfo struct {
	node            *treeNode
	segment         string
	restorationTime int64
}

// path returns the full path of the entry identified by the info
func (m minInfo) path() suspender.Path {
	return m.node.path.Child(m.segment)
}

// treeNode is one node of a division's trie of suspended objects.
// A node represents a path prefix: an entry keyed by segment s under the node
// with path p is the object suspended by p/s.
//
// Invariant: a non-root node with neither entries nor children is never attached to the tree.
//
// Thread-safety: A treeNode is not thread-safe, the owning division's lock guards it.
type treeNode struct {
	path     suspender.Path
	root     bool
	parent   *treeNode                 // nil for the root and for the top of a detached subtree
	children map[string]*treeNode      // last segment of the child path -> child
	entries  map[string]suspendedEntry // last segment of the object path -> entry
	index    *util.BucketHeap[string]  // restoration time -> last segments, used for minimum queries
}

// newRootNode creates the root of a division tree. The root has the empty path and never holds entries.
func newRootNode() *treeNode {
	n := newTreeNode(nil, suspender.Path{})
	n.root = true
	return n
}

func newTreeNode(parent *treeNode, path suspender.Path) *treeNode {
	return &treeNode{
		path:     path,
		parent:   parent,
		children: make(map[string]*treeNode),
		entries:  make(map[string]suspendedEntry),
		index:    util.NewBucketHeap[string](),
	}
}

// --------------------------------------------------------------------------
// Entries
// --------------------------------------------------------------------------

func (n *treeNode) hasEntries() bool { return len(n.entries) > 0 }

func (n *treeNode) hasEntry(segment string) bool {
	_, ok := n.entries[segment]
	return ok
}

func (n *treeNode) entry(segment string) (suspendedEntry, bool) {
	e, ok := n.entries[segment]
	return e, ok
}

// suspend stores object under segment until restorationTime, overwriting an existing entry.
// The root never holds entries: calling suspend on it returns an ErrCInvalidState error.
func (n *treeNode) suspend(segment string, object any, restorationTime int64) error {
	if n.root {
		return suspender.NewError(suspender.ErrCInvalidState, "cannot suspend an object on the tree root")
	}

	n.removeEntry(segment)
	n.entries[segment] = suspendedEntry{object: object, restorationTime: restorationTime}
	n.index.Add(restorationTime, segment)
	return nil
}

// removeEntry removes the entry keyed by segment and returns its object.
// The second return value is false if there was no such entry.
func (n *treeNode) removeEntry(segment string) (any, bool) {
	e, ok := n.entries[segment]
	if !ok {
		return nil, false
	}

	n.index.Remove(e.restorationTime, segment)
	delete(n.entries, segment)
	return e.object, true
}

// --------------------------------------------------------------------------
// Children
// --------------------------------------------------------------------------

func (n *treeNode) hasChildren() bool { return len(n.children) > 0 }

func (n *treeNode) hasChild(segment string) bool {
	_, ok := n.children[segment]
	return ok
}

func (n *treeNode) child(segment string) *treeNode {
	return n.children[segment]
}

// ensureChild returns the child keyed by segment, creating it if needed
func (n *treeNode) ensureChild(segment string) *treeNode {
	if c, ok := n.children[segment]; ok {
		return c
	}

	c := newTreeNode(n, n.path.Child(segment))
	n.children[segment] = c
	return c
}

func (n *treeNode) isEmpty() bool {
	return !n.hasEntries() && !n.hasChildren()
}

// --------------------------------------------------------------------------
// Detaching
// --------------------------------------------------------------------------

// isDetached returns true if the subtree containing n was cut off the tree by detach.
// The root itself is never detached.
func (n *treeNode) isDetached() bool {
	top := n
	for top.parent != nil {
		top = top.parent
	}
	return !top.root
}

// detach unlinks the subtree rooted at n from its parent. It does nothing on the root.
func (n *treeNode) detach() {
	if n.parent == nil {
		return
	}
	delete(n.parent.children, n.path.LastSegment())
	n.parent = nil
}

// detachRecursivelyUpIfEmpty unlinks n and every ancestor that becomes empty,
// stopping at the root or at the first ancestor that is not empty
func (n *treeNode) detachRecursivelyUpIfEmpty() {
	for node := n; node.parent != nil && node.isEmpty(); {
		parent := node.parent
		node.detach()
		node = parent
	}
}

// --------------------------------------------------------------------------
// Subtree Operations
// --------------------------------------------------------------------------

// traverse visits every node of the subtree rooted at n in breadth-first order
func (n *treeNode) traverse(visit func(node *treeNode)) {
	queue := []*treeNode{n}
	for len(queue) > 0 {
		node := queue[0]
		queue[0] = nil
		queue = queue[1:]

		visit(node)
		for _, c := range node.children {
			queue = append(queue, c)
		}
	}
}

// findMinimumInSubtree returns the entry with the smallest restoration time in the subtree rooted at n.
// Every node is visited: there is no subtree wide index, only the local ones.
func (n *treeNode) findMinimumInSubtree() (minInfo, bool) {
	var (
		best  minInfo
		found bool
	)

	n.traverse(func(node *treeNode) {
		t, segment, ok := node.index.PeekMember()
		if !ok {
			return
		}
		if !found || t < best.restorationTime {
			best = minInfo{node: node, segment: segment, restorationTime: t}
			found = true
		}
	})

	return best, found
}

// removeMinimumFromSubtree removes the entry identified by info (as returned by findMinimumInSubtree)
// and prunes the emptied nodes. It returns the path and object of the removed entry.
func (n *treeNode) removeMinimumFromSubtree(info minInfo) (suspender.Path, any) {
	object, _ := info.node.removeEntry(info.segment)
	info.node.detachRecursivelyUpIfEmpty()
	return info.path(), object
}
