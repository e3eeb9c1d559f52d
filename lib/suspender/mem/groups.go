package mem

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// groupCounter maps the first segment of a path (its group) to the number of divisions
// holding at least one object under that segment.
//
// A division changes its contribution only on its own empty <-> non-empty transition for
// a group, and only while holding its own lock, so every counter equals the true number of
// divisions at all times. Counters are never removed from the map.
//
// Thread-safety: All methods are thread-safe.
type groupCounter struct {
	counts *xsync.MapOf[string, *atomic.Int64]
}

func newGroupCounter() *groupCounter {
	return &groupCounter{counts: xsync.NewMapOf[string, *atomic.Int64]()}
}

func (g *groupCounter) counter(group string) *atomic.Int64 {
	c, _ := g.counts.LoadOrCompute(group, func() *atomic.Int64 {
		return new(atomic.Int64)
	})
	return c
}

// inc records that one more division holds objects of the group
func (g *groupCounter) inc(group string) {
	g.counter(group).Add(1)
}

// dec records that one division no longer holds objects of the group
func (g *groupCounter) dec(group string) {
	g.counter(group).Add(-1)
}

// count returns the number of divisions holding objects of the group
func (g *groupCounter) count(group string) int64 {
	c, ok := g.counts.Load(group)
	if !ok {
		return 0
	}
	return c.Load()
}

func (g *groupCounter) has(group string) bool {
	return g.count(group) > 0
}

// activeGroups returns the number of groups held by at least one division
func (g *groupCounter) activeGroups() int {
	active := 0
	g.counts.Range(func(_ string, c *atomic.Int64) bool {
		if c.Load() > 0 {
			active++
		}
		return true
	})
	return active
}
