package util

import (
	"sort"
	"testing"
)

// TestNewBucketHeap tests the creation of a new BucketHeap
func TestNewBucketHeap(t *testing.T) {
	bh := NewBucketHeap[string]()

	if bh == nil {
		t.Fatal("NewBucketHeap() returned nil")
	}

	if bh.Len() != 0 || bh.Size() != 0 {
		t.Errorf("New heap should be empty, but has %d buckets and %d members", bh.Len(), bh.Size())
	}

	if _, ok := bh.Peek(); ok {
		t.Error("Peek on empty heap should return ok=false")
	}

	if _, _, ok := bh.PeekMember(); ok {
		t.Error("PeekMember on empty heap should return ok=false")
	}

	if _, _, ok := bh.PopMin(); ok {
		t.Error("PopMin on empty heap should return ok=false")
	}
}

// TestAddGroupsByPriority tests that members with the same priority share a bucket
func TestAddGroupsByPriority(t *testing.T) {
	bh := NewBucketHeap[string]()

	bh.Add(100, "a")
	bh.Add(100, "b")
	bh.Add(50, "c")
	bh.Add(100, "a") // duplicate

	if bh.Len() != 2 {
		t.Errorf("Heap should have 2 buckets, but has %d", bh.Len())
	}

	if bh.Size() != 3 {
		t.Errorf("Heap should have 3 members, but has %d", bh.Size())
	}

	priority, member, ok := bh.PeekMember()
	if !ok || priority != 50 || member != "c" {
		t.Errorf("Expected min member (50,c), got (%d,%s,%v)", priority, member, ok)
	}

	if !bh.Contains(100, "b") {
		t.Error("Heap should contain (100,b)")
	}

	if bh.Contains(50, "b") {
		t.Error("Heap should not contain (50,b)")
	}
}

// TestRemoveMember tests removing members and dropping empty buckets
func TestRemoveMember(t *testing.T) {
	bh := NewBucketHeap[string]()

	bh.Add(10, "a")
	bh.Add(20, "b")
	bh.Add(20, "c")

	if !bh.Remove(10, "a") {
		t.Fatal("Remove should return true for existing member")
	}

	if bh.Len() != 1 {
		t.Errorf("Empty bucket should be removed, heap has %d buckets", bh.Len())
	}

	if priority, _ := bh.Peek(); priority != 20 {
		t.Errorf("Min priority should now be 20, got %d", priority)
	}

	if bh.Remove(10, "a") {
		t.Error("Remove should return false for a removed member")
	}

	if bh.Remove(20, "x") {
		t.Error("Remove should return false for a non-existent member")
	}

	bh.Remove(20, "b")
	bh.Remove(20, "c")

	if bh.Len() != 0 || bh.Size() != 0 {
		t.Errorf("Heap should be empty, has %d buckets and %d members", bh.Len(), bh.Size())
	}
}

// TestPopMinOrder tests if buckets are popped in priority order
func TestPopMinOrder(t *testing.T) {
	bh := NewBucketHeap[int]()

	priorities := []int64{50, 30, 10, 40, 20, 30, 10}
	for i, p := range priorities {
		bh.Add(p, i)
	}

	var popped []int64
	total := 0
	for bh.Len() > 0 {
		priority, members, ok := bh.PopMin()
		if !ok {
			t.Fatal("PopMin should return a bucket while the heap is not empty")
		}
		popped = append(popped, priority)
		total += len(members)
	}

	if !sort.SliceIsSorted(popped, func(i, j int) bool { return popped[i] < popped[j] }) {
		t.Errorf("Buckets were not popped in order: %v", popped)
	}

	if len(popped) != 5 {
		t.Errorf("Expected 5 distinct buckets, got %d", len(popped))
	}

	if total != len(priorities) {
		t.Errorf("Expected %d members, got %d", len(priorities), total)
	}

	if bh.Size() != 0 {
		t.Errorf("Size should be 0 after popping everything, got %d", bh.Size())
	}
}

// TestPopMinReturnsWholeBucket tests that all members of the smallest bucket are returned
func TestPopMinReturnsWholeBucket(t *testing.T) {
	bh := NewBucketHeap[string]()

	bh.Add(5, "x")
	bh.Add(5, "y")
	bh.Add(5, "z")
	bh.Add(7, "w")

	priority, members, _ := bh.PopMin()
	if priority != 5 {
		t.Errorf("Expected priority 5, got %d", priority)
	}

	sort.Strings(members)
	if len(members) != 3 || members[0] != "x" || members[1] != "y" || members[2] != "z" {
		t.Errorf("Expected members [x y z], got %v", members)
	}

	if bh.Size() != 1 {
		t.Errorf("Expected 1 remaining member, got %d", bh.Size())
	}
}

// TestLargeNumberOfMembers tests heap integrity with many interleaved adds and removes
func TestLargeNumberOfMembers(t *testing.T) {
	bh := NewBucketHeap[int]()
	const n = 10000

	for i := 0; i < n; i++ {
		bh.Add(int64((i*7919)%997), i)
	}

	// remove every even member
	for i := 0; i < n; i += 2 {
		if !bh.Remove(int64((i*7919)%997), i) {
			t.Fatalf("Failed to remove member %d", i)
		}
	}

	if bh.Size() != n/2 {
		t.Fatalf("Expected %d members, got %d", n/2, bh.Size())
	}

	last := int64(-1)
	for bh.Len() > 0 {
		priority, members, _ := bh.PopMin()
		if priority < last {
			t.Fatalf("Heap order violated: %d after %d", priority, last)
		}
		for _, m := range members {
			if m%2 == 0 {
				t.Fatalf("Removed member %d was returned", m)
			}
		}
		last = priority
	}
}
