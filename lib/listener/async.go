package listener

import (
	"sync/atomic"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/lni/dragonboat/v4/logger"
)

// restoration is one queued notification
type restoration struct {
	path   suspender.Path
	object any
}

// AsyncListener decouples a slow listener from the goroutine restoring objects.
// OnObjectRestored only queues the restoration and returns, a single goroutine delivers the
// queued restorations to the target listener. Restorations queued by one goroutine are
// delivered in the order they were queued.
//
// Thread-safety: All methods are thread-safe.
type AsyncListener struct {
	target    suspender.RestoredObjectListener
	queue     *mpscQueue[restoration]
	failures  atomic.Uint64
	delivered atomic.Uint64
	log       logger.ILogger
}

// NewAsyncListener creates an AsyncListener delivering to target and starts its delivery goroutine.
// Call Close to stop it.
func NewAsyncListener(target suspender.RestoredObjectListener) *AsyncListener {
	a := &AsyncListener{
		target: target,
		log:    common.GetLogger(common.LoggerListener),
	}
	a.queue = newMPSCQueue[restoration](a.deliver)
	return a
}

// OnObjectRestored queues the restoration. It fails with ErrCInvalidState after Close.
func (a *AsyncListener) OnObjectRestored(path suspender.Path, object any) error {
	if !a.queue.push(&restoration{path: path, object: object}) {
		return suspender.NewError(suspender.ErrCInvalidState, "async listener is closed")
	}
	return nil
}

func (a *AsyncListener) deliver(r *restoration) {
	defer func() {
		if rec := recover(); rec != nil {
			a.failures.Add(1)
			a.log.Warningf("async target panicked on restoration of %s: %v", r.path, rec)
		}
	}()

	a.delivered.Add(1)
	if err := a.target.OnObjectRestored(r.path, r.object); err != nil {
		a.failures.Add(1)
		a.log.Warningf("async target failed on restoration of %s: %v", r.path, err)
	}
}

// Close stops accepting restorations, delivers the queued ones and waits until that is done
func (a *AsyncListener) Close() {
	a.queue.close()
	a.queue.wait()
}

// Pending returns the number of queued restorations not yet delivered
func (a *AsyncListener) Pending() int {
	return a.queue.len()
}

// Delivered returns the number of restorations handed to the target
func (a *AsyncListener) Delivered() uint64 {
	return a.delivered.Load()
}

// Failures returns the number of deliveries the target failed (error or panic)
func (a *AsyncListener) Failures() uint64 {
	return a.failures.Load()
}
