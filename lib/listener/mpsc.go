package listener

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// mpscQueue is a lock-free multi-producer single-consumer queue.
// Producers append to a linked list with atomic operations, one consumer goroutine
// hands every item to the handler in the order the appends completed.
//
// After close no more items are accepted, items already pushed are still handled
// before the consumer exits.
type mpscQueue[T any] struct {
	head    atomic.Pointer[node[T]]
	tail    atomic.Pointer[node[T]]
	handle  func(*T)
	closed  atomic.Bool
	pushing atomic.Int64 // producers between the closed check and the append
	pending atomic.Int64
	done    chan struct{}

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// newMPSCQueue creates the queue and starts its consumer goroutine
func newMPSCQueue[T any](handle func(*T)) *mpscQueue[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &mpscQueue[T]{
		handle: handle,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()

	return q
}

// push adds an item to the queue.
// Returns true if the item was added, or false if the item is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *mpscQueue[T]) push(value *T) bool {
	if value == nil {
		return false
	}

	q.pushing.Add(1)
	defer q.pushing.Add(-1)

	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	// counted before the append so that the consumer never sees a negative count
	q.pending.Add(1)

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// CAS may fail if another producer already moved the tail
				q.tail.CompareAndSwap(tailNode, newNode)

				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// consume hands items to the handler until the queue is closed and drained
func (q *mpscQueue[T]) consume() {
	defer close(q.done)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			next.value = nil

			q.handle(value)
			q.pending.Add(-1)
		}

		if hasItems {
			continue
		}

		// the order of these loads matters: a producer that passed the closed check is
		// counted in pushing until its item is visible
		if q.closed.Load() {
			if q.pushing.Load() == 0 && q.head.Load().next.Load() == nil {
				return
			}
			runtime.Gosched()
			continue
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// close stops accepting items. It does not wait for the consumer, see wait.
func (q *mpscQueue[T]) close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// wait blocks until the consumer has handled every item and exited
func (q *mpscQueue[T]) wait() {
	<-q.done
}

// len returns the number of pushed items not yet handled
func (q *mpscQueue[T]) len() int {
	return int(q.pending.Load())
}
