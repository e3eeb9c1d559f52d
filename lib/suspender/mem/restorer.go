package mem

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Background Restorer
// --------------------------------------------------------------------------

// restorer is the background worker restoring expired objects.
//
// It loops through two states until it is cancelled:
//
//  1. sweeping: restore the expired objects of every division (threshold = current clock time)
//  2. sleeping: sleep sleepAfterUseful if the sweep restored anything, else sleepAfterIdle
//
// Cancellation interrupts a sleep immediately, a sweep in flight is finished first.
// A panic during the sweep of one division is logged and the sweep continues with the next division.
type restorer struct {
	divisions []*division
	listeners func() []suspender.RestoredObjectListener
	clock     func() time.Time
	metrics   *engineMetrics
	log       logger.ILogger

	sleepAfterUseful atomic.Int64 // time.Duration
	sleepAfterIdle   atomic.Int64 // time.Duration

	// replaceable for tests
	sweepDivision func(d *division, listeners []suspender.RestoredObjectListener, asOf int64) int
	sleep         func(ctx context.Context, d time.Duration) bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newRestorer(divisions []*division, listeners func() []suspender.RestoredObjectListener, clock func() time.Time, m *engineMetrics) *restorer {
	return &restorer{
		divisions:     divisions,
		listeners:     listeners,
		clock:         clock,
		metrics:       m,
		log:           common.GetLogger(common.LoggerRestorer),
		sweepDivision: (*division).restoreExpired,
		sleep:         sleepContext,
	}
}

// start spawns the restorer goroutine
func (r *restorer) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
}

// stop cancels the restorer goroutine and blocks until it has exited
func (r *restorer) stop() {
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
}

func (r *restorer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		// sweeping
		restored := r.sweep()

		if ctx.Err() != nil {
			return
		}

		// sleeping
		sleepTime := time.Duration(r.sleepAfterIdle.Load())
		if restored > 0 {
			sleepTime = time.Duration(r.sleepAfterUseful.Load())
		}

		if !r.sleep(ctx, sleepTime) {
			return
		}
	}
}

// sweep restores the expired objects of all divisions and returns the number of restored objects
func (r *restorer) sweep() int {
	start := time.Now()
	asOf := r.clock().UnixMilli()
	listeners := r.listeners()

	restored := 0
	failed := false
	for i, d := range r.divisions {
		n, err := r.sweepOne(d, listeners, asOf)
		if err != nil {
			failed = true
			r.log.Errorf("sweep of division %d failed: %v", i, err)
			continue
		}
		restored += n
	}

	r.metrics.sweepDone(start, failed)
	if restored > 0 {
		r.log.Debugf("sweep restored %d expired objects in %s", restored, time.Since(start))
	}
	return restored
}

// sweepOne sweeps one division, turning a panic into an error
func (r *restorer) sweepOne(d *division, listeners []suspender.RestoredObjectListener, asOf int64) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during sweep: %v", rec)
		}
	}()
	return r.sweepDivision(d, listeners, asOf), nil
}

func (r *restorer) setSleepAfterUseful(d time.Duration) { r.sleepAfterUseful.Store(int64(d)) }
func (r *restorer) setSleepAfterIdle(d time.Duration)   { r.sleepAfterIdle.Store(int64(d)) }

// sleepContext sleeps for d and returns false if ctx was cancelled before or during the sleep
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
