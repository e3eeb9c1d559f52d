// Package util
//
// This file provides a time-ordered multimap used by the suspension engine.
//
// The implementation combines a binary heap of buckets with a hash map from
// priority to bucket. Every bucket groups all members that share exactly the same
// priority (a quantized restoration time). This gives:
//
// 1. Time Complexity:
//   - O(log b) to add the first member of a new priority (b = number of buckets)
//   - O(1) to add a member to an existing bucket
//   - O(1) to peek the smallest priority
//   - O(1) to remove a member, O(log b) if its bucket becomes empty
//
// 2. Why buckets:
//   - Restoration times are quantized, so many members share one priority
//   - Fewer buckets means a smaller heap and cheaper minimum lookups
//   - All members of the smallest bucket can be taken out at once
//
// 3. Concurrency Considerations:
//   - Note: This implementation is not thread-safe
//   - For concurrent use, external synchronization should be applied
//
// Example usage:
//
//	queue := NewBucketHeap[string]()
//
//	queue.Add(1000, "a")
//	queue.Add(1000, "b")
//	queue.Add(500, "c")
//
//	// smallest priority and one of its members
//	priority, member, ok := queue.PeekMember() // 500, "c", true
//
//	// take out every member of the smallest bucket
//	priority, members, ok := queue.PopMin() // 500, ["c"], true
//
//	// remove a specific member
//	queue.Remove(1000, "b")
package util

import (
	"container/heap"
	"strconv"
)

// bucket holds every member that shares one priority
type bucket[E comparable] struct {
	Priority int64          // Priority shared by all members
	members  map[E]struct{} // Set of members
	index    int            // Index in the heap, maintained by heap package
}

func (b *bucket[E]) String() string {
	return "{Priority: " + strconv.FormatInt(b.Priority, 10) + ", Members: " + strconv.Itoa(len(b.members)) + "}"
}

// BucketHeap implements a min-heap of priority buckets
// with key-based access to each bucket
type BucketHeap[E comparable] struct {
	buckets    []*bucket[E]         // The actual heap slice
	byPriority map[int64]*bucket[E] // Map for O(1) access by priority
	size       int                  // Total number of members over all buckets
}

// NewBucketHeap creates a new, empty bucket heap
func NewBucketHeap[E comparable]() *BucketHeap[E] {
	return &BucketHeap[E]{
		buckets:    make([]*bucket[E], 0),
		byPriority: make(map[int64]*bucket[E]),
	}
}

// Len returns the number of buckets in the heap (part of heap.Interface)
func (bh *BucketHeap[E]) Len() int { return len(bh.buckets) }

// Less compares buckets by priority (part of heap.Interface)
func (bh *BucketHeap[E]) Less(i, j int) bool {
	return bh.buckets[i].Priority < bh.buckets[j].Priority
}

// Swap exchanges buckets at positions i and j (part of heap.Interface)
func (bh *BucketHeap[E]) Swap(i, j int) {
	bh.buckets[i], bh.buckets[j] = bh.buckets[j], bh.buckets[i]
	bh.buckets[i].index = i
	bh.buckets[j].index = j
}

// Push adds a bucket to the heap (part of heap.Interface)
func (bh *BucketHeap[E]) Push(x interface{}) {
	n := len(bh.buckets)
	b := x.(*bucket[E])
	b.index = n
	bh.buckets = append(bh.buckets, b)
	bh.byPriority[b.Priority] = b
}

// Pop removes and returns the last bucket of the heap slice (part of heap.Interface)
func (bh *BucketHeap[E]) Pop() interface{} {
	old := bh.buckets
	n := len(old)
	b := old[n-1]
	old[n-1] = nil // Avoid memory leak
	b.index = -1   // For safety
	bh.buckets = old[:n-1]
	delete(bh.byPriority, b.Priority)
	return b
}

// Size returns the number of members over all buckets
func (bh *BucketHeap[E]) Size() int { return bh.size }

// Add adds member to the bucket with the given priority.
// Adding a member that is already in that bucket does nothing.
func (bh *BucketHeap[E]) Add(priority int64, member E) {
	b, exists := bh.byPriority[priority]
	if !exists {
		b = &bucket[E]{
			Priority: priority,
			members:  make(map[E]struct{}, 1),
		}
		heap.Push(bh, b)
	}

	if _, dup := b.members[member]; dup {
		return
	}
	b.members[member] = struct{}{}
	bh.size++
}

// Remove removes member from the bucket with the given priority.
// Returns whether the member was found. An emptied bucket is removed from the heap.
func (bh *BucketHeap[E]) Remove(priority int64, member E) bool {
	b, exists := bh.byPriority[priority]
	if !exists {
		return false
	}
	if _, found := b.members[member]; !found {
		return false
	}

	delete(b.members, member)
	bh.size--

	if len(b.members) == 0 {
		heap.Remove(bh, b.index)
	}
	return true
}

// Contains checks if member is in the bucket with the given priority
func (bh *BucketHeap[E]) Contains(priority int64, member E) bool {
	b, exists := bh.byPriority[priority]
	if !exists {
		return false
	}
	_, found := b.members[member]
	return found
}

// Peek returns the smallest priority without removing anything
func (bh *BucketHeap[E]) Peek() (int64, bool) {
	if len(bh.buckets) == 0 {
		return 0, false
	}
	return bh.buckets[0].Priority, true
}

// PeekMember returns the smallest priority together with one (arbitrary) member of its bucket
func (bh *BucketHeap[E]) PeekMember() (int64, E, bool) {
	var zero E
	if len(bh.buckets) == 0 {
		return 0, zero, false
	}

	b := bh.buckets[0]
	for member := range b.members {
		return b.Priority, member, true
	}

	// buckets are never left empty
	return b.Priority, zero, false
}

// PopMin removes the bucket with the smallest priority and returns all of its members.
// The order of the returned members is unspecified.
func (bh *BucketHeap[E]) PopMin() (int64, []E, bool) {
	if len(bh.buckets) == 0 {
		return 0, nil, false
	}

	b := heap.Pop(bh).(*bucket[E])
	members := make([]E, 0, len(b.members))
	for member := range b.members {
		members = append(members, member)
	}
	bh.size -= len(members)

	return b.Priority, members, true
}
