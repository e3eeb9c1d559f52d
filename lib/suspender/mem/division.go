package mem

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/ValentinKolb/dSuspend/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Restoration Queue Element
// --------------------------------------------------------------------------

// queueElement references one suspended entry: the node holding it and the entry's segment.
// Elements compare by node pointer, so an element of a detached node never equals an element
// of a node that was re-created for the same path.
type queueElement struct {
	node    *treeNode
	segment string
}

func (e queueElement) String() string {
	return fmt.Sprintf("queueElement{path: %s, segment: %s}", e.node.path, e.segment)
}

// restoredObject is a restored (path, object) pair waiting for notification
type restoredObject struct {
	path   suspender.Path
	object any
}

// --------------------------------------------------------------------------
// Division
// --------------------------------------------------------------------------

// division is one independently locked shard of a suspender.
// It owns a tree of suspended objects and a restoration queue ordering every entry of the tree
// by restoration time. Tree, node indices and queue are only changed together under mu.
//
// Listeners are never called while mu is held.
//
// Thread-safety: All methods are thread-safe.
type division struct {
	mu    sync.Mutex
	root  *treeNode
	queue *util.BucketHeap[queueElement]

	groups  *groupCounter // shared by all divisions of a suspender
	metrics *engineMetrics
	now     func() time.Time
	log     logger.ILogger
}

func newDivision(groups *groupCounter, m *engineMetrics, now func() time.Time) *division {
	return &division{
		root:    newRootNode(),
		queue:   util.NewBucketHeap[queueElement](),
		groups:  groups,
		metrics: m,
		now:     now,
		log:     common.GetLogger(common.LoggerDivision),
	}
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// hasObjectsUnder returns true if an object is suspended by path or by a path with the prefix path.
// The path needs at least one segment.
func (d *division) hasObjectsUnder(path suspender.Path) (bool, error) {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent := d.findParent(path)
	if parent == nil {
		return false, nil
	}

	last := path.LastSegment()
	return parent.hasEntry(last) || parent.hasChild(last), nil
}

// hasObjectsUnderFirstSegment returns true if the division holds any object of the group
func (d *division) hasObjectsUnderFirstSegment(group string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holdsGroup(group)
}

// findMinimumRestorationTime returns the smallest restoration time of the objects under path.
// The second return value is false if there is no such object.
func (d *division) findMinimumRestorationTime(path suspender.Path) (int64, bool, error) {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return 0, false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent := d.findParent(path)
	if parent == nil {
		return 0, false, nil
	}

	direct, subtree, hasDirect, hasSubtree := d.minimumCandidates(parent, path.LastSegment())
	switch {
	case hasDirect && hasSubtree:
		if direct.restorationTime < subtree.restorationTime {
			return direct.restorationTime, true, nil
		}
		return subtree.restorationTime, true, nil
	case hasDirect:
		return direct.restorationTime, true, nil
	case hasSubtree:
		return subtree.restorationTime, true, nil
	default:
		return 0, false, nil
	}
}

// size returns the number of objects in the restoration queue
func (d *division) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Size()
}

// --------------------------------------------------------------------------
// Suspend
// --------------------------------------------------------------------------

// suspend suspends object by path for duration, overwriting an object already suspended by path.
// The path needs at least two segments, the duration is clamped into the allowed range.
func (d *division) suspend(path suspender.Path, object any, duration time.Duration) error {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount); err != nil {
		return err
	}

	duration = util.MustAdjustDuration(duration, suspender.MinSuspensionDuration, suspender.MaxSuspensionDuration)
	group := path.FirstSegment()

	d.mu.Lock()
	defer d.mu.Unlock()

	hadGroup := d.holdsGroup(group)

	parent := d.root
	for i := 0; i < path.SegmentCount()-1; i++ {
		parent = parent.ensureChild(path.Segment(i))
	}

	last := path.LastSegment()
	if old, ok := parent.entry(last); ok {
		d.queue.Remove(old.restorationTime, queueElement{node: parent, segment: last})
	}

	restorationTime := calcRestorationTime(d.now().UnixMilli(), duration)
	if err := parent.suspend(last, object, restorationTime); err != nil {
		return err
	}
	d.queue.Add(restorationTime, queueElement{node: parent, segment: last})

	if !hadGroup {
		d.groups.inc(group)
	}
	d.metrics.objectSuspended()
	return nil
}

// --------------------------------------------------------------------------
// Restore
// --------------------------------------------------------------------------

// restore restores the object suspended by path and every object suspended by a path with the
// prefix path, and notifies listeners about each of them. It returns the number of restored objects.
// The path needs at least one segment.
func (d *division) restore(path suspender.Path, listeners []suspender.RestoredObjectListener) (int, error) {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return 0, err
	}

	var (
		group       = path.FirstSegment()
		last        = path.LastSegment()
		direct      any
		hasDirect   bool
		subtreeRoot *treeNode
	)

	d.mu.Lock()

	hadGroup := d.holdsGroup(group)
	parent := d.findParent(path)
	if parent == nil {
		d.mu.Unlock()
		return 0, nil
	}

	if e, ok := parent.entry(last); ok {
		d.queue.Remove(e.restorationTime, queueElement{node: parent, segment: last})
		direct, hasDirect = parent.removeEntry(last)
	}

	// only unlink the subtree here, its entries are dequeued and notified outside the lock
	if parent.hasChild(last) {
		subtreeRoot = parent.child(last)
		subtreeRoot.detach()
	}
	parent.detachRecursivelyUpIfEmpty()

	if hadGroup && !d.holdsGroup(group) {
		d.groups.dec(group)
	}

	d.mu.Unlock()

	restored := 0
	if hasDirect {
		d.notify(path, direct, listeners)
		restored++
	}

	if subtreeRoot != nil {
		subtreeRoot.traverse(func(node *treeNode) {
			objects := d.dequeueDetachedNode(node)
			for _, r := range objects {
				d.notify(r.path, r.object, listeners)
			}
			restored += len(objects)
		})
	}

	d.metrics.objectsRestored(restoreCauseExplicit, restored)
	return restored, nil
}

// dequeueDetachedNode removes the entries of a detached node from the restoration queue
// and returns them. The node itself is left untouched.
func (d *division) dequeueDetachedNode(node *treeNode) []restoredObject {
	d.mu.Lock()
	defer d.mu.Unlock()

	objects := make([]restoredObject, 0, len(node.entries))
	for segment, e := range node.entries {
		d.queue.Remove(e.restorationTime, queueElement{node: node, segment: segment})
		objects = append(objects, restoredObject{path: node.path.Child(segment), object: e.object})
	}
	return objects
}

// restoreMinimumInSubtree restores the object with the smallest restoration time among the object
// suspended by path and the objects suspended by paths with the prefix path, and notifies listeners.
// The object suspended by path itself is only chosen if its time is strictly smaller than the
// minimum below it. Returns whether an object was restored. The path needs at least one segment.
func (d *division) restoreMinimumInSubtree(path suspender.Path, listeners []suspender.RestoredObjectListener) (bool, error) {
	if err := checkSegmentCount(path, suspender.MinSuspensionPathSegmentCount-1); err != nil {
		return false, err
	}

	var (
		group    = path.FirstSegment()
		last     = path.LastSegment()
		restored restoredObject
		found    bool
	)

	d.mu.Lock()

	hadGroup := d.holdsGroup(group)
	parent := d.findParent(path)
	if parent == nil {
		d.mu.Unlock()
		return false, nil
	}

	direct, subtree, hasDirect, hasSubtree := d.minimumCandidates(parent, last)

	switch {
	case hasDirect && (!hasSubtree || direct.restorationTime < subtree.restorationTime):
		d.queue.Remove(direct.restorationTime, queueElement{node: parent, segment: last})
		object, _ := parent.removeEntry(last)
		parent.detachRecursivelyUpIfEmpty()
		restored, found = restoredObject{path: path, object: object}, true

	case hasSubtree:
		d.queue.Remove(subtree.restorationTime, queueElement{node: subtree.node, segment: subtree.segment})
		p, object := parent.child(last).removeMinimumFromSubtree(subtree)
		restored, found = restoredObject{path: p, object: object}, true
	}

	if hadGroup && !d.holdsGroup(group) {
		d.groups.dec(group)
	}

	d.mu.Unlock()

	if !found {
		return false, nil
	}

	d.notify(restored.path, restored.object, listeners)
	d.metrics.objectsRestored(restoreCauseMinimum, 1)
	return true, nil
}

// restoreExpired restores every object whose restoration time is not after asOf (unix millis)
// and notifies listeners. Due buckets are taken out of the queue one whole bucket at a time.
// It returns the number of restored objects.
func (d *division) restoreExpired(listeners []suspender.RestoredObjectListener, asOf int64) int {
	restored := 0

	for {
		batch, more := d.takeDueBucket(asOf)
		for _, r := range batch {
			d.notify(r.path, r.object, listeners)
		}
		restored += len(batch)

		if !more {
			break
		}
	}

	d.metrics.objectsRestored(restoreCauseExpired, restored)
	return restored
}

// takeDueBucket removes the smallest bucket of the queue if it is due.
// The second return value is false once no bucket is due.
func (d *division) takeDueBucket(asOf int64) ([]restoredObject, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.queue.Peek()
	if !ok || t > asOf {
		return nil, false
	}

	_, elements, _ := d.queue.PopMin()
	batch := make([]restoredObject, 0, len(elements))

	for _, e := range elements {
		// a concurrent subtree restore owns the entries of detached nodes
		if e.node.isDetached() {
			continue
		}

		path := e.node.path.Child(e.segment)
		group := path.FirstSegment()

		hadGroup := d.holdsGroup(group)
		object, _ := e.node.removeEntry(e.segment)
		e.node.detachRecursivelyUpIfEmpty()
		if hadGroup && !d.holdsGroup(group) {
			d.groups.dec(group)
		}

		batch = append(batch, restoredObject{path: path, object: object})
	}

	return batch, true
}

// --------------------------------------------------------------------------
// Helper (callers hold mu)
// --------------------------------------------------------------------------

// findParent returns the node for all but the last segment of path, or nil if it does not exist
func (d *division) findParent(path suspender.Path) *treeNode {
	parent := d.root
	for i := 0; i < path.SegmentCount()-1; i++ {
		parent = parent.child(path.Segment(i))
		if parent == nil {
			return nil
		}
	}
	return parent
}

// holdsGroup returns true if the division holds any object under the first segment group.
// The root holds no entries, so this is the same as having a child for group.
func (d *division) holdsGroup(group string) bool {
	return d.root.hasChild(group)
}

// minimumCandidates returns the entry keyed by last under parent and the minimum of the subtree
// keyed by last under parent, each with a flag telling whether it exists
func (d *division) minimumCandidates(parent *treeNode, last string) (direct minInfo, subtree minInfo, hasDirect, hasSubtree bool) {
	if e, ok := parent.entry(last); ok {
		direct = minInfo{node: parent, segment: last, restorationTime: e.restorationTime}
		hasDirect = true
	}
	if parent.hasChild(last) {
		subtree, hasSubtree = parent.child(last).findMinimumInSubtree()
	}
	return direct, subtree, hasDirect, hasSubtree
}

// --------------------------------------------------------------------------
// Notification
// --------------------------------------------------------------------------

// notify delivers one restoration to every listener. A failing listener does not stop the others.
func (d *division) notify(path suspender.Path, object any, listeners []suspender.RestoredObjectListener) {
	for _, l := range listeners {
		d.notifyListener(l, path, object)
	}
}

func (d *division) notifyListener(l suspender.RestoredObjectListener, path suspender.Path, object any) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.listenerFailed()
			d.log.Warningf("listener panicked on restoration of %s: %v", path, r)
		}
	}()

	if err := l.OnObjectRestored(path, object); err != nil {
		d.metrics.listenerFailed()
		d.log.Warningf("listener failed on restoration of %s: %v", path, err)
	}
}

// checkSegmentCount returns an ErrCInvalidArgument error if path has less than min segments
func checkSegmentCount(path suspender.Path, min int) error {
	if path.SegmentCount() < min {
		return suspender.NewError(suspender.ErrCInvalidArgument,
			fmt.Sprintf("path %s has %d segments, at least %d required", path, path.SegmentCount(), min))
	}
	return nil
}
